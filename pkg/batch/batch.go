// Package batch turns a simulated launch into the instruction groups of the final bundle:
// one developer group that creates the token and makes the first buy, followed by the sub
// wallets split into four contiguous cohorts.
package batch

import (
	"fmt"
	"math/big"
	"math/rand"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"

	"github.com/TopTalent-23/bundler-bot-backend/pkg/curve"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/pump"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/txbuilder"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/types"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/wallet"
)

// SubGroupCount is the number of cohorts sub wallets are split into, which together with
// the developer group fills a five-transaction bundle.
const SubGroupCount = 4

// DefaultFundingOverhead is added to every funded wallet on top of its buy amount to
// cover its token account rent and the protocol trading fee.
var DefaultFundingOverhead = big.NewInt(5_000_000)

// Input describes one launch's buys.
type Input struct {
	Dev  wallet.Signer
	Mint wallet.Signer
	Subs []wallet.Signer
	// Allocations holds the developer allocation first, then one per sub wallet.
	Allocations []curve.Allocation

	Name   string
	Symbol string
	URI    string

	// FeeRecipients defaults to the published pump fee recipient set.
	FeeRecipients []solana.PublicKey
	// Rand picks fee recipients; seed it for reproducible output.
	Rand *rand.Rand

	// Funder, when set, transfers each buying wallet its allocation plus FundingOverhead
	// at the start of the wallet's group and pays the group's fee.
	Funder          wallet.Signer
	FundingOverhead *big.Int

	TrackVolume bool
}

// Plan is the builder output. Subs has exactly SubGroupCount entries when there is at
// least one sub wallet; some may be empty.
type Plan struct {
	Dev  txbuilder.Group
	Subs []txbuilder.Group
	// SubWalletCounts is the number of wallets that contributed instructions per sub group.
	SubWalletCounts []int
}

// Groups returns the developer group followed by every sub group.
func (p Plan) Groups() []txbuilder.Group {
	return append([]txbuilder.Group{p.Dev}, p.Subs...)
}

// ExecutableGroups drops empty sub groups, which cannot be compiled into transactions.
func (p Plan) ExecutableGroups() []txbuilder.Group {
	out := []txbuilder.Group{p.Dev}
	for _, g := range p.Subs {
		if !g.Empty() {
			out = append(out, g)
		}
	}
	return out
}

// Build produces the developer group and the sub wallet cohorts.
func Build(in Input) (Plan, error) {
	if err := validate(in); err != nil {
		return Plan{}, err
	}

	accts, err := pump.DeriveMintAccounts(in.Mint.PublicKey(), in.Dev.PublicKey())
	if err != nil {
		return Plan{}, err
	}
	b := &builder{in: in, accts: accts}

	dev, err := b.devGroup()
	if err != nil {
		return Plan{}, err
	}
	plan := Plan{Dev: dev}

	n := len(in.Subs)
	if n == 0 {
		return plan, nil
	}
	size := (n + SubGroupCount - 1) / SubGroupCount
	plan.Subs = make([]txbuilder.Group, SubGroupCount)
	plan.SubWalletCounts = make([]int, SubGroupCount)
	for g := 0; g < SubGroupCount; g++ {
		start := g * size
		end := start + size
		if start > n {
			start = n
		}
		if end > n {
			end = n
		}
		group, count, err := b.subGroup(start, end)
		if err != nil {
			return Plan{}, fmt.Errorf("sub group %d: %w", g, err)
		}
		plan.Subs[g] = group
		plan.SubWalletCounts[g] = count
	}
	return plan, nil
}

func validate(in Input) error {
	if in.Dev == nil {
		return types.NewValidationError("dev", "signer is required")
	}
	if in.Mint == nil {
		return types.NewValidationError("mint", "signer is required")
	}
	if len(in.Allocations) != len(in.Subs)+1 {
		return types.NewValidationError("allocations", fmt.Sprintf("want %d, got %d", len(in.Subs)+1, len(in.Allocations)))
	}
	for i, a := range in.Allocations {
		if a.Tokens != nil && a.Tokens.Sign() < 0 {
			return fmt.Errorf("allocation %d: %w", i, types.ErrNegativeAllocation)
		}
	}
	if in.Rand == nil {
		return types.NewValidationError("rand", "source is required")
	}
	return nil
}

type builder struct {
	in    Input
	accts pump.MintAccounts
}

func (b *builder) devGroup() (txbuilder.Group, error) {
	dev := b.in.Dev
	alloc := b.in.Allocations[0]
	group := txbuilder.Group{}
	if b.in.Funder != nil && Buys(alloc) {
		group.AddSigner(b.in.Funder)
	}
	group.AddSigner(dev)
	group.AddSigner(b.in.Mint)

	if Buys(alloc) {
		if err := b.fund(&group, dev.PublicKey(), alloc.Lamports); err != nil {
			return group, err
		}
	}

	create, err := pump.NewCreateInstruction(b.accts, dev.PublicKey(), pump.CreateArgs{
		Name:    b.in.Name,
		Symbol:  b.in.Symbol,
		URI:     b.in.URI,
		Creator: dev.PublicKey(),
	})
	if err != nil {
		return group, err
	}
	group.Instructions = append(group.Instructions, create)

	if Buys(alloc) {
		if err := b.buy(&group, dev.PublicKey(), alloc); err != nil {
			return group, err
		}
	}
	return group, nil
}

func (b *builder) subGroup(start, end int) (txbuilder.Group, int, error) {
	group := txbuilder.Group{}
	count := 0
	for i := start; i < end; i++ {
		alloc := b.in.Allocations[i+1]
		if !Buys(alloc) {
			continue
		}
		sub := b.in.Subs[i]
		if b.in.Funder != nil {
			group.AddSigner(b.in.Funder)
			if err := b.fund(&group, sub.PublicKey(), alloc.Lamports); err != nil {
				return group, 0, err
			}
		}
		group.AddSigner(sub)
		if err := b.buy(&group, sub.PublicKey(), alloc); err != nil {
			return group, 0, fmt.Errorf("wallet %d: %w", i, err)
		}
		count++
	}
	return group, count, nil
}

func (b *builder) fund(group *txbuilder.Group, to solana.PublicKey, lamports *big.Int) error {
	if b.in.Funder == nil {
		return nil
	}
	overhead := b.in.FundingOverhead
	if overhead == nil {
		overhead = DefaultFundingOverhead
	}
	total := new(big.Int).Add(lamports, overhead)
	if !total.IsUint64() {
		return types.NewValidationError("lamports", "exceeds u64")
	}
	group.Instructions = append(group.Instructions,
		system.NewTransferInstruction(total.Uint64(), b.in.Funder.PublicKey(), to).Build())
	return nil
}

// buy appends the idempotent token account creation and the buy itself. The SOL cap is
// the wallet's own allocation.
func (b *builder) buy(group *txbuilder.Group, user solana.PublicKey, alloc curve.Allocation) error {
	if alloc.Tokens == nil || !alloc.Tokens.IsUint64() || !alloc.Lamports.IsUint64() {
		return types.NewValidationError("allocation", "amount exceeds u64")
	}
	ata, err := pump.NewCreateATAIdempotentInstruction(user, user, b.accts.Mint)
	if err != nil {
		return err
	}
	feeRecipient := pump.PickFeeRecipient(b.in.FeeRecipients, b.in.Rand)
	buy, err := pump.NewBuyInstruction(b.accts, user, feeRecipient, pump.BuyArgs{
		Amount:      alloc.Tokens.Uint64(),
		MaxSolCost:  alloc.Lamports.Uint64(),
		TrackVolume: pump.OptionBool{Field0: b.in.TrackVolume},
	})
	if err != nil {
		return err
	}
	group.Instructions = append(group.Instructions, ata, buy)
	return nil
}

// Buys reports whether alloc receives tokens. Wallets that spend SOL on an exhausted
// curve get nothing and are left out of the bundle.
func Buys(alloc curve.Allocation) bool {
	return positive(alloc.Tokens) && positive(alloc.Lamports)
}

// BuyingWallets counts the allocations that receive tokens.
func BuyingWallets(allocs []curve.Allocation) int {
	n := 0
	for _, a := range allocs {
		if Buys(a) {
			n++
		}
	}
	return n
}

func positive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}
