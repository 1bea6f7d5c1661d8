package launch

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/TopTalent-23/bundler-bot-backend/pkg/types"
)

// Platform names the launchpad a token is created on.
type Platform string

const (
	PlatformPumpFun  Platform = "pumpfun"
	PlatformLetsBonk Platform = "letsbonk"
)

// ParsePlatform accepts the platform names used in requests and config. Empty means pumpfun.
func ParsePlatform(s string) (Platform, error) {
	switch p := Platform(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PlatformPumpFun, nil
	case PlatformPumpFun, PlatformLetsBonk:
		return p, nil
	default:
		return "", types.NewValidationError("platform", fmt.Sprintf("unknown platform %q", s))
	}
}

// Request is one launch as submitted by a user. SOL amounts are decimal strings.
type Request struct {
	UserID      string   `json:"user_id"`
	Platform    string   `json:"platform,omitempty"`
	Name        string   `json:"name"`
	Symbol      string   `json:"symbol"`
	Description string   `json:"description"`
	Twitter     string   `json:"twitter,omitempty"`
	Telegram    string   `json:"telegram,omitempty"`
	Website     string   `json:"website,omitempty"`
	DevBuySOL   string   `json:"dev_buy_sol"`
	SubBuySOL   []string `json:"sub_buy_sol"`

	// Image is uploaded with the metadata when set.
	Image     []byte `json:"-"`
	ImageName string `json:"image,omitempty"`
}

// Amounts is a request's buys in lamports, developer first.
type Amounts struct {
	Dev  *big.Int
	Subs []*big.Int
}

// All returns the developer amount followed by the sub wallet amounts.
func (a Amounts) All() []*big.Int {
	return append([]*big.Int{a.Dev}, a.Subs...)
}

// Total sums every buy.
func (a Amounts) Total() *big.Int {
	total := new(big.Int)
	for _, v := range a.All() {
		total.Add(total, v)
	}
	return total
}

// Validate checks required fields and parses the amounts.
func (r Request) Validate() (Amounts, error) {
	if strings.TrimSpace(r.UserID) == "" {
		return Amounts{}, types.NewValidationError("user_id", "is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return Amounts{}, types.NewValidationError("name", "is required")
	}
	if strings.TrimSpace(r.Symbol) == "" {
		return Amounts{}, types.NewValidationError("symbol", "is required")
	}
	if _, err := ParsePlatform(r.Platform); err != nil {
		return Amounts{}, err
	}

	dev, err := types.ParseSOL(r.DevBuySOL)
	if err != nil {
		return Amounts{}, fmt.Errorf("dev_buy_sol: %w", err)
	}
	out := Amounts{Dev: dev, Subs: make([]*big.Int, len(r.SubBuySOL))}
	for i, s := range r.SubBuySOL {
		v, err := types.ParseSOL(s)
		if err != nil {
			return Amounts{}, fmt.Errorf("sub_buy_sol[%d]: %w", i, err)
		}
		out.Subs[i] = v
	}
	return out, nil
}
