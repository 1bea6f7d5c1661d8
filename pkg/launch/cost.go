package launch

import (
	"fmt"
	"math/big"
	"math/rand"

	"github.com/TopTalent-23/bundler-bot-backend/pkg/batch"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/constants"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/curve"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/guard"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/lut"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/txbuilder"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/wallet"
)

// Cost is what a launch draws from the fund wallet, in lamports.
type Cost struct {
	// Buys sums the buy amounts of wallets that receive tokens.
	Buys *big.Int
	// Funding is the overhead transferred to each buying wallet on top of its buy.
	Funding *big.Int
	Tips    *big.Int
	// Rent keeps the lookup table rent exempt.
	Rent *big.Int
	Fees *big.Int

	Bundles         int
	TableAddresses  int
	FinalSignatures int
	FundedWallets   int
}

// Total is the balance the fund wallet needs.
func (c Cost) Total() *big.Int {
	total := new(big.Int)
	for _, v := range []*big.Int{c.Buys, c.Funding, c.Tips, c.Rent, c.Fees} {
		if v != nil {
			total.Add(total, v)
		}
	}
	return total
}

// estimateCost prices a launch by building a plan of the same shape with a throwaway mint.
// Fee recipients are drawn per buy, so the whole recipient set is counted towards the table.
func (s *Service) estimateCost(fund, dev wallet.Signer, subs []wallet.Local, allocs []curve.Allocation) (Cost, error) {
	mint, err := wallet.NewRandomLocal()
	if err != nil {
		return Cost{}, err
	}
	overhead := s.opts.FundingOverhead
	if overhead == nil {
		overhead = batch.DefaultFundingOverhead
	}
	plan, err := batch.Build(batch.Input{
		Dev:             dev,
		Mint:            mint,
		Subs:            signers(subs),
		Allocations:     allocs,
		FeeRecipients:   s.opts.FeeRecipients,
		Rand:            rand.New(rand.NewSource(0)),
		Funder:          fund,
		FundingOverhead: overhead,
	})
	if err != nil {
		return Cost{}, fmt.Errorf("estimate cost: %w", err)
	}
	groups := plan.ExecutableGroups()

	statePDA, err := guard.StatePDA()
	if err != nil {
		return Cost{}, err
	}
	recipients := len(s.opts.FeeRecipients)
	if recipients == 0 {
		recipients = len(constants.PumpFeeRecipients)
	}
	addrs := len(lut.CollectAddresses(groups, constants.DoubleCheckProgramID, statePDA, fund.PublicKey())) + recipients

	c := Cost{
		Buys:           new(big.Int),
		Funding:        new(big.Int),
		TableAddresses: addrs,
	}
	for _, a := range allocs {
		if batch.Buys(a) {
			c.Buys.Add(c.Buys, a.Lamports)
			c.Funding.Add(c.Funding, overhead)
			c.FundedWallets++
		}
	}

	// One create bundle, the extend bundles, then the launch. Every transaction outside
	// the launch bundle is signed by the fund wallet alone.
	extendTxs := ceilDiv(addrs, constants.MaxExtendAddresses)
	extendBundles := ceilDiv(extendTxs, constants.MaxBundleTransactions)
	c.Bundles = 2 + extendBundles

	signatures := bundleTxs(1)
	for start := 0; start < extendTxs; start += constants.MaxBundleTransactions {
		signatures += bundleTxs(min(constants.MaxBundleTransactions, extendTxs-start))
	}
	c.FinalSignatures = finalSignatures(groups)
	signatures += c.FinalSignatures

	c.Tips = new(big.Int).Mul(new(big.Int).SetUint64(s.opts.TipLamports), big.NewInt(int64(c.Bundles)))
	c.Fees = new(big.Int).Mul(new(big.Int).SetUint64(constants.LamportsPerSignature), big.NewInt(int64(signatures)))
	tableBytes := constants.AccountStorageOverhead + lut.MetaSize + addrs*32
	c.Rent = new(big.Int).Mul(new(big.Int).SetUint64(constants.RentExemptLamportsPerByte), big.NewInt(int64(tableBytes)))
	return c, nil
}

// bundleTxs is the transaction count of a bundle of n groups once a tip group is prepended.
func bundleTxs(n int) int {
	if n < constants.MaxBundleTransactions {
		return n + 1
	}
	return n
}

func finalSignatures(groups []txbuilder.Group) int {
	n := 0
	for _, g := range groups {
		n += len(g.Signers)
	}
	if len(groups) < constants.MaxBundleTransactions {
		n++
	}
	return n
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func signers(locals []wallet.Local) []wallet.Signer {
	out := make([]wallet.Signer, len(locals))
	for i, l := range locals {
		out[i] = l
	}
	return out
}
