// Package store persists users, launch records and the vanity mint pool.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/TopTalent-23/bundler-bot-backend/pkg/config"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("store: not found")

// KeyPair holds a wallet as base58 strings.
type KeyPair struct {
	PublicKey  string `bson:"publicKey" json:"publicKey"`
	PrivateKey string `bson:"privateKey" json:"privateKey"`
}

// User owns the funding and developer wallets a launch spends from.
type User struct {
	TelegramID string    `bson:"telegramId" json:"telegramId"`
	Username   string    `bson:"username" json:"username"`
	FundWallet KeyPair   `bson:"fundWallet" json:"fundWallet"`
	DevWallet  KeyPair   `bson:"devWallet" json:"devWallet"`
	SubWallets []KeyPair `bson:"subWallets,omitempty" json:"subWallets,omitempty"`
	Role       string    `bson:"role" json:"role"`
	IsVerified bool      `bson:"isVerified" json:"isVerified"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
}

// Launch phases, in order.
const (
	PhaseCreated    = "created"
	PhaseSimulated  = "simulated"
	PhaseMetadata   = "metadata_uploaded"
	PhaseLUTCreated = "lut_created"
	PhaseLUTExtend  = "lut_extended"
	PhaseLaunched   = "launched"
	PhaseFailed     = "failed"
)

// LaunchRecord tracks one token launch. It is keyed by Mint, the mint public key.
// Amounts are decimal strings in lamports and raw token units.
type LaunchRecord struct {
	Mint       string `bson:"mint" json:"mint"`
	MintSecret string `bson:"mintSecret" json:"-"`
	Platform   string `bson:"platform" json:"platform"`
	Owner      string `bson:"owner" json:"owner"`

	Name        string `bson:"name" json:"name"`
	Symbol      string `bson:"symbol" json:"symbol"`
	Description string `bson:"description" json:"description"`
	Twitter     string `bson:"twitter,omitempty" json:"twitter,omitempty"`
	Telegram    string `bson:"telegram,omitempty" json:"telegram,omitempty"`
	Website     string `bson:"website,omitempty" json:"website,omitempty"`
	MetadataURI string `bson:"metadataUri,omitempty" json:"metadataUri,omitempty"`

	DevWallet      string   `bson:"devWallet" json:"devWallet"`
	DevBuyLamports string   `bson:"devBuyLamports" json:"devBuyLamports"`
	DevBuyTokens   string   `bson:"devBuyTokens,omitempty" json:"devBuyTokens,omitempty"`
	SubWallets     []string `bson:"subWallets" json:"-"`
	SubBuyLamports []string `bson:"subBuyLamports" json:"subBuyLamports"`
	SubBuyTokens   []string `bson:"subBuyTokens,omitempty" json:"subBuyTokens,omitempty"`

	LUTAddress string `bson:"lutAddress,omitempty" json:"lutAddress,omitempty"`
	Phase      string `bson:"phase" json:"phase"`
	Signature  string `bson:"signature,omitempty" json:"signature,omitempty"`
	Error      string `bson:"error,omitempty" json:"error,omitempty"`
	IsValid    bool   `bson:"isValid" json:"isValid"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// VanityKeypair is a pre-generated mint key. IsValid turns false once claimed.
type VanityKeypair struct {
	PublicKey  string    `bson:"publicKey"`
	PrivateKey string    `bson:"privateKey"`
	IsValid    bool      `bson:"isValid"`
	CreatedAt  time.Time `bson:"createdAt"`
}

// Users reads and writes users.
type Users interface {
	FindUser(ctx context.Context, telegramID string) (*User, error)
	SaveUser(ctx context.Context, u *User) error
}

// Launches persists launch records. SaveLaunch upserts by mint.
type Launches interface {
	SaveLaunch(ctx context.Context, rec *LaunchRecord) error
	FindLaunch(ctx context.Context, mint string) (*LaunchRecord, error)
}

// VanityPool hands out pre-generated mint keys at most once each.
type VanityPool interface {
	AddVanity(ctx context.Context, kp VanityKeypair) error
	// ClaimVanity atomically marks one valid keypair used and returns it, or ErrNotFound.
	ClaimVanity(ctx context.Context) (*VanityKeypair, error)
	CountVanity(ctx context.Context) (int64, error)
}

// Store is the full persistence surface.
type Store interface {
	Users
	Launches
	VanityPool
	Close(ctx context.Context) error
}

// Open returns a Mongo store when cfg names a URI, otherwise a Memory store.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	if cfg.MongoURI == "" {
		return NewMemory(), nil
	}
	return NewMongo(ctx, cfg.MongoURI, cfg.Database)
}
