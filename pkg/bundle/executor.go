// Package bundle races a set of instruction groups to the block engines as one atomic
// bundle, retrying in staggered concurrent rounds until one of them confirms.
package bundle

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/TopTalent-23/bundler-bot-backend/pkg/constants"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/guard"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/txbuilder"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/types"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/wallet"
)

// Group is one transaction's worth of instructions and signers.
type Group = txbuilder.Group

// Chain is the read side of the RPC client the executor needs.
type Chain interface {
	GetLatestBlockhash(ctx context.Context) (*solanarpc.GetLatestBlockhashResult, error)
	txbuilder.StatusReader
}

// Relay submits serialized bundles and supplies tip accounts.
type Relay interface {
	SendBundle(ctx context.Context, txs [][]byte) (string, error)
	RandomTipAccount(rng *rand.Rand) solana.PublicKey
}

// Options tunes an Executor. Zero values take the defaults.
type Options struct {
	// MaxTries is the number of rounds per Execute call.
	MaxTries int
	// Stagger delays round i by i*Stagger from the start of the call.
	Stagger time.Duration
	// Deadline bounds a whole Execute call; zero means no bound beyond MaxTries.
	Deadline time.Duration

	Confirmation txbuilder.ConfirmationLevel
	PollInterval time.Duration
	// Rand drives tip account and guard nonce selection.
	Rand   *rand.Rand
	Logger zerolog.Logger
}

// DefaultOptions returns five rounds one second apart.
func DefaultOptions() Options {
	return Options{
		MaxTries:     5,
		Stagger:      time.Second,
		Confirmation: txbuilder.ConfirmationConfirmed,
		PollInterval: txbuilder.DefaultPollInterval,
		Logger:       zerolog.Nop(),
	}
}

// Result is the outcome of an Execute call.
type Result struct {
	Confirmed bool
	// Signature is the first transaction signature of the winning round.
	Signature solana.Signature
	BundleID  string
	// Round is the 1-based winning round, or 0.
	Round int
	// Err explains an unconfirmed result.
	Err error
}

// Executor submits bundles with bounded retries.
type Executor struct {
	chain Chain
	relay Relay
	opts  Options
	log   zerolog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewExecutor builds an Executor.
func NewExecutor(chain Chain, relay Relay, opts Options) *Executor {
	d := DefaultOptions()
	if opts.MaxTries <= 0 {
		opts.MaxTries = d.MaxTries
	}
	if opts.Stagger < 0 {
		opts.Stagger = 0
	}
	if opts.Confirmation == "" {
		opts.Confirmation = d.Confirmation
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = d.PollInterval
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Executor{chain: chain, relay: relay, opts: opts, log: opts.Logger, rng: rng}
}

var errRoundConfirmed = errors.New("round confirmed")

// Execute submits groups as one bundle, adding a tip transfer from payer and a submit-once
// guard, and returns once a round confirms or every round has failed. Groups are never
// mutated. The guard is built once per call so at most one round can land.
func (e *Executor) Execute(ctx context.Context, groups []Group, payer wallet.Signer, tipLamports uint64, table *txbuilder.LookupTable) Result {
	if err := validateGroups(groups, payer); err != nil {
		return Result{Err: err}
	}
	if e.opts.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Deadline)
		defer cancel()
	}

	e.rngMu.Lock()
	nonce := uint64(e.rng.Intn(guard.MaxNonce + 1))
	e.rngMu.Unlock()
	guardIx, err := guard.NewInstructionWithNonce(payer.PublicKey(), nonce)
	if err != nil {
		return Result{Err: err}
	}

	var (
		mu      sync.Mutex
		winner  Result
		lastErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	start := time.Now()
	for i := 0; i < e.opts.MaxTries; i++ {
		round := i + 1
		g.Go(func() error {
			if wait := time.Until(start.Add(time.Duration(round-1) * e.opts.Stagger)); wait > 0 {
				select {
				case <-gctx.Done():
					return nil
				case <-time.After(wait):
				}
			}
			sig, bundleID, err := e.runRound(gctx, round, groups, payer, tipLamports, guardIx, table)
			if err != nil {
				if gctx.Err() == nil {
					e.log.Warn().Err(err).Int("round", round).Int("max_tries", e.opts.MaxTries).Msg("bundle round failed")
				}
				mu.Lock()
				lastErr = err
				mu.Unlock()
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			if !winner.Confirmed {
				winner = Result{Confirmed: true, Signature: sig, BundleID: bundleID, Round: round}
			}
			return errRoundConfirmed
		})
	}
	_ = g.Wait()

	if winner.Confirmed {
		e.log.Info().Int("round", winner.Round).Str("signature", winner.Signature.String()).Msg("bundle confirmed")
		return winner
	}
	if lastErr == nil {
		lastErr = ctx.Err()
	}
	if lastErr != nil {
		return Result{Err: fmt.Errorf("%w: %w", types.ErrBundleNotConfirmed, lastErr)}
	}
	return Result{Err: types.ErrBundleNotConfirmed}
}

func validateGroups(groups []Group, payer wallet.Signer) error {
	if payer == nil {
		return types.ErrNilFeePayer
	}
	if len(groups) == 0 {
		return types.ErrNoGroups
	}
	if len(groups) > constants.MaxBundleTransactions {
		return types.NewValidationError("groups", fmt.Sprintf("at most %d per bundle, got %d", constants.MaxBundleTransactions, len(groups)))
	}
	for i, g := range groups {
		if g.Empty() || len(g.Signers) == 0 {
			return types.NewValidationError("groups", fmt.Sprintf("group %d has no instructions or signers", i))
		}
	}
	return nil
}

func (e *Executor) runRound(
	ctx context.Context,
	round int,
	groups []Group,
	payer wallet.Signer,
	tipLamports uint64,
	guardIx solana.Instruction,
	table *txbuilder.LookupTable,
) (solana.Signature, string, error) {
	e.rngMu.Lock()
	tipAccount := e.relay.RandomTipAccount(e.rng)
	e.rngMu.Unlock()
	tipIx := system.NewTransferInstruction(tipLamports, payer.PublicKey(), tipAccount).Build()

	working, err := Place(ctx, groups, payer, tipIx, guardIx, table)
	if err != nil {
		return solana.Signature{}, "", fmt.Errorf("place tip: %w", err)
	}

	bh, err := e.chain.GetLatestBlockhash(ctx)
	if err != nil {
		return solana.Signature{}, "", err
	}

	raws := make([][]byte, 0, len(working))
	var first solana.Signature
	for i, group := range working {
		tx, raw, err := txbuilder.CompileAndSign(ctx, group, bh.Value.Blockhash, table)
		if err != nil {
			return solana.Signature{}, "", fmt.Errorf("group %d: %w", i, err)
		}
		if len(raw) > constants.MaxTransactionSize {
			return solana.Signature{}, "", fmt.Errorf("group %d: %w: %d bytes", i, types.ErrTransactionTooLarge, len(raw))
		}
		if i == 0 {
			first = tx.Signatures[0]
		}
		raws = append(raws, raw)
	}

	bundleID, err := e.relay.SendBundle(ctx, raws)
	if err != nil {
		return solana.Signature{}, "", err
	}
	e.log.Debug().
		Int("round", round).
		Int("max_tries", e.opts.MaxTries).
		Str("bundle_id", bundleID).
		Str("signature", first.String()).
		Msg("confirming bundle")

	if err := txbuilder.WaitForConfirmation(ctx, e.chain, first, bh.Value.LastValidBlockHeight, e.opts.Confirmation, e.opts.PollInterval); err != nil {
		return solana.Signature{}, "", err
	}
	return first, bundleID, nil
}

// Place returns clones of groups with the tip and guard instructions added.
//
// With fewer than five groups both go into a new leading group paid by payer. Otherwise
// the tip is appended to the first group and the guard to whichever group is smallest
// once compiled and signed.
func Place(ctx context.Context, groups []Group, payer wallet.Signer, tipIx, guardIx solana.Instruction, table *txbuilder.LookupTable) ([]Group, error) {
	working := make([]Group, len(groups))
	for i, g := range groups {
		working[i] = g.Clone()
	}

	if len(working) < constants.MaxBundleTransactions {
		lead := Group{
			Instructions: []solana.Instruction{tipIx, guardIx},
			Signers:      []wallet.Signer{payer},
		}
		return append([]Group{lead}, working...), nil
	}

	working[0].Instructions = append(working[0].Instructions, tipIx)
	working[0].AddSigner(payer)

	smallest, smallestSize := 0, -1
	for i, g := range working {
		size, err := txbuilder.SignedSize(ctx, g, solana.Hash{}, table)
		if err != nil {
			return nil, fmt.Errorf("size group %d: %w", i, err)
		}
		if smallestSize < 0 || size < smallestSize {
			smallest, smallestSize = i, size
		}
	}
	working[smallest].Instructions = append(working[smallest].Instructions, guardIx)
	working[smallest].AddSigner(payer)
	return working, nil
}
