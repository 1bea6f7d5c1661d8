// Package launch runs a token launch end to end: balance check, curve simulation,
// metadata upload, lookup table setup and the final atomic bundle. Each phase is persisted
// to the launch record so a failed launch can be inspected and its table reused.
package launch

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"math/rand"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/rs/zerolog"

	"github.com/TopTalent-23/bundler-bot-backend/internal/store"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/batch"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/bundle"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/constants"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/curve"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/guard"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/jito"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/lut"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/metadata"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/txbuilder"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/types"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/wallet"
)

// Chain is the RPC surface a launch reads.
type Chain interface {
	lut.Chain
	GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
}

// Executor lands instruction groups as one bundle.
type Executor interface {
	Execute(ctx context.Context, groups []txbuilder.Group, payer wallet.Signer, tipLamports uint64, table *txbuilder.LookupTable) bundle.Result
}

// Uploader stores token metadata and returns its URI.
type Uploader interface {
	Upload(ctx context.Context, tok metadata.Token) (string, error)
}

// MintSource supplies the mint keypair of each launch.
type MintSource interface {
	Next(ctx context.Context) (wallet.Local, bool, error)
}

// Store is the persistence a launch needs.
type Store interface {
	store.Users
	store.Launches
}

// Options tunes a Service.
type Options struct {
	// TipLamports is attached to every bundle the launch sends.
	TipLamports uint64
	Retry       RetryPolicy
	LUT         lut.Options
	// FundingOverhead is sent to each buying wallet on top of its buy.
	FundingOverhead *big.Int
	FeeRecipients   []solana.PublicKey
	Rand            *rand.Rand
	Logger          zerolog.Logger
}

// Service runs launches. It is safe for concurrent use.
type Service struct {
	chain    Chain
	exec     Executor
	uploader Uploader
	mints    MintSource
	store    Store
	opts     Options
	log      zerolog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewService wires a Service.
func NewService(chain Chain, exec Executor, uploader Uploader, mints MintSource, st Store, opts Options) *Service {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{
		chain:    chain,
		exec:     exec,
		uploader: uploader,
		mints:    mints,
		store:    st,
		opts:     opts,
		log:      opts.Logger,
		rng:      rng,
	}
}

// Outcome describes a landed launch.
type Outcome struct {
	Mint        solana.PublicKey
	LookupTable solana.PublicKey
	Signature   solana.Signature
	BundleID    string
	Round       int
	Record      *store.LaunchRecord
}

// run carries one launch through its phases.
type run struct {
	svc     *Service
	rec     *store.LaunchRecord
	fund    wallet.Local
	dev     wallet.Local
	mint    wallet.Local
	subs    []wallet.Signer
	amounts Amounts
	image   []byte
	imgName string
	rng     *rand.Rand
	log     zerolog.Logger
}

// Launch validates req, checks the funding wallet covers the estimated Cost and then runs
// the launch. Validation and balance failures return before anything is persisted or sent.
func (s *Service) Launch(ctx context.Context, req Request) (*Outcome, error) {
	amounts, err := req.Validate()
	if err != nil {
		return nil, err
	}
	platform, _ := ParsePlatform(req.Platform)
	if platform == PlatformLetsBonk {
		s.log.Warn().Str("platform", string(platform)).Msg("letsbonk launches use the pump program configuration")
	}

	user, err := s.store.FindUser(ctx, req.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("user %s: %w", req.UserID, types.ErrWalletNotFound)
	}
	if err != nil {
		return nil, err
	}
	fund, err := wallet.NewLocalFromString(user.FundWallet.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("fund wallet: %w", err)
	}
	dev, err := wallet.NewLocalFromString(user.DevWallet.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("dev wallet: %w", err)
	}

	allocs, _, err := curve.Simulate(amounts.All())
	if err != nil {
		return nil, fmt.Errorf("simulate curve: %w", err)
	}
	subs, err := newSubWallets(len(amounts.Subs))
	if err != nil {
		return nil, err
	}
	cost, err := s.estimateCost(fund, dev, subs, allocs)
	if err != nil {
		return nil, err
	}
	if err := s.checkBalance(ctx, fund.PublicKey(), cost); err != nil {
		return nil, err
	}

	r, err := s.prepare(ctx, req, platform, fund, dev, subs, amounts)
	if err != nil {
		return nil, err
	}
	out, err := r.execute(ctx)
	if err != nil {
		r.rec.Phase = store.PhaseFailed
		r.rec.Error = err.Error()
		r.rec.IsValid = false
		if saveErr := s.save(context.WithoutCancel(ctx), r.rec); saveErr != nil {
			r.log.Error().Err(saveErr).Msg("record launch failure")
		}
		return nil, err
	}
	return out, nil
}

func (s *Service) checkBalance(ctx context.Context, fund solana.PublicKey, cost Cost) error {
	balance, err := s.chain.GetBalance(ctx, fund)
	if err != nil {
		return fmt.Errorf("fund wallet balance: %w", err)
	}
	have, need := new(big.Int).SetUint64(balance), cost.Total()
	s.log.Debug().
		Str("buys", cost.Buys.String()).
		Str("funding", cost.Funding.String()).
		Str("tips", cost.Tips.String()).
		Str("rent", cost.Rent.String()).
		Str("fees", cost.Fees.String()).
		Int("bundles", cost.Bundles).
		Msg("launch cost estimated")
	if have.Cmp(need) < 0 {
		return fmt.Errorf("%w: have %s SOL, need %s SOL", types.ErrInsufficientBalance,
			types.FormatLamports(have), types.FormatLamports(need))
	}
	return nil
}

func newSubWallets(n int) ([]wallet.Local, error) {
	subs := make([]wallet.Local, n)
	for i := range subs {
		sub, err := wallet.NewRandomLocal()
		if err != nil {
			return nil, err
		}
		subs[i] = sub
	}
	return subs, nil
}

// prepare picks the mint and saves the initial record.
func (s *Service) prepare(ctx context.Context, req Request, platform Platform, fund, dev wallet.Local, subs []wallet.Local, amounts Amounts) (*run, error) {
	subSecrets := make([]string, len(subs))
	for i, sub := range subs {
		subSecrets[i] = wallet.EncodeBase58(sub.PrivateKey())
	}

	mint, fromPool, err := s.mints.Next(ctx)
	if err != nil {
		return nil, fmt.Errorf("mint keypair: %w", err)
	}

	subLamports := make([]string, len(amounts.Subs))
	for i, v := range amounts.Subs {
		subLamports[i] = v.String()
	}
	rec := &store.LaunchRecord{
		Mint:           mint.PublicKey().String(),
		MintSecret:     wallet.EncodeBase58(mint.PrivateKey()),
		Platform:       string(platform),
		Owner:          req.UserID,
		Name:           req.Name,
		Symbol:         req.Symbol,
		Description:    req.Description,
		Twitter:        req.Twitter,
		Telegram:       req.Telegram,
		Website:        req.Website,
		DevWallet:      dev.PublicKey().String(),
		DevBuyLamports: amounts.Dev.String(),
		SubWallets:     subSecrets,
		SubBuyLamports: subLamports,
		Phase:          store.PhaseCreated,
		IsValid:        true,
	}

	s.rngMu.Lock()
	seed := s.rng.Int63()
	s.rngMu.Unlock()

	log := s.log.With().Str("mint", rec.Mint).Logger()
	log.Info().
		Bool("vanity", fromPool).
		Int("sub_wallets", len(subs)).
		Str("total_sol", types.FormatLamports(amounts.Total())).
		Msg("launch created")

	if err := s.save(ctx, rec); err != nil {
		return nil, err
	}
	return &run{
		svc:     s,
		rec:     rec,
		fund:    fund,
		dev:     dev,
		mint:    mint,
		subs:    signers(subs),
		amounts: amounts,
		image:   req.Image,
		imgName: req.ImageName,
		rng:     rand.New(rand.NewSource(seed)),
		log:     log,
	}, nil
}

func (s *Service) save(ctx context.Context, rec *store.LaunchRecord) error {
	if err := s.store.SaveLaunch(ctx, rec); err != nil {
		return fmt.Errorf("save launch record: %w", err)
	}
	return nil
}

func (r *run) advance(ctx context.Context, phase string) error {
	r.rec.Phase = phase
	r.log.Info().Str("phase", phase).Msg("launch phase complete")
	return r.svc.save(ctx, r.rec)
}

func (r *run) execute(ctx context.Context) (*Outcome, error) {
	s := r.svc

	allocs, err := r.simulate(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.uploadMetadata(ctx); err != nil {
		return nil, err
	}

	plan, err := batch.Build(batch.Input{
		Dev:             r.dev,
		Mint:            r.mint,
		Subs:            r.subs,
		Allocations:     allocs,
		Name:            r.rec.Name,
		Symbol:          r.rec.Symbol,
		URI:             r.rec.MetadataURI,
		FeeRecipients:   s.opts.FeeRecipients,
		Rand:            r.rng,
		Funder:          r.fund,
		FundingOverhead: s.opts.FundingOverhead,
	})
	if err != nil {
		return nil, fmt.Errorf("build bundle: %w", err)
	}
	groups := plan.ExecutableGroups()

	statePDA, err := guard.StatePDA()
	if err != nil {
		return nil, err
	}
	addrs := lut.CollectAddresses(groups, constants.DoubleCheckProgramID, statePDA, r.fund.PublicKey())
	manager := lut.NewManager(s.chain, r.fund, s.opts.LUT)

	table, err := r.createTable(ctx, manager, groups, addrs)
	if err != nil {
		return nil, err
	}
	if err := r.extendTable(ctx, manager, table, addrs); err != nil {
		return nil, err
	}
	active, err := retry(ctx, s.opts.Retry, r.log, "lut_activate", func(ctx context.Context) (*txbuilder.LookupTable, error) {
		return manager.WaitActive(ctx, table, len(addrs))
	})
	if err != nil {
		return nil, fmt.Errorf("activate lookup table: %w", err)
	}

	res, err := r.sendFinal(ctx, groups, active)
	if err != nil {
		return nil, err
	}
	if !res.Signature.IsZero() {
		r.rec.Signature = res.Signature.String()
	}
	if err := r.advance(ctx, store.PhaseLaunched); err != nil {
		return nil, err
	}
	return &Outcome{
		Mint:        r.mint.PublicKey(),
		LookupTable: table,
		Signature:   res.Signature,
		BundleID:    res.BundleID,
		Round:       res.Round,
		Record:      r.rec,
	}, nil
}

// simulate folds the buys through a fresh curve. Curve failures are never retried.
func (r *run) simulate(ctx context.Context) ([]curve.Allocation, error) {
	allocs, _, err := curve.Simulate(r.amounts.All())
	if err != nil {
		return nil, fmt.Errorf("simulate curve: %w", err)
	}
	r.rec.DevBuyTokens = allocs[0].Tokens.String()
	r.rec.SubBuyTokens = make([]string, 0, len(allocs)-1)
	for _, a := range allocs[1:] {
		r.rec.SubBuyTokens = append(r.rec.SubBuyTokens, a.Tokens.String())
	}
	r.log.Debug().
		Str("dev_tokens", r.rec.DevBuyTokens).
		Str("total_tokens", curve.TotalTokens(allocs).String()).
		Msg("curve simulated")
	return allocs, r.advance(ctx, store.PhaseSimulated)
}

func (r *run) uploadMetadata(ctx context.Context) error {
	if r.rec.MetadataURI != "" {
		return nil
	}
	uri, err := r.svc.uploader.Upload(ctx, metadata.Token{
		Name:        r.rec.Name,
		Symbol:      r.rec.Symbol,
		Description: r.rec.Description,
		Twitter:     r.rec.Twitter,
		Telegram:    r.rec.Telegram,
		Website:     r.rec.Website,
		Image:       r.image,
		ImageName:   r.imgName,
	})
	if err != nil {
		return err
	}
	r.rec.MetadataURI = uri
	return r.advance(ctx, store.PhaseMetadata)
}

// createTable reuses the recorded table when it exists on chain and creates one otherwise.
// The final groups are size-checked against the prospective table before anything is sent.
func (r *run) createTable(ctx context.Context, manager *lut.Manager, groups []txbuilder.Group, addrs solana.PublicKeySlice) (solana.PublicKey, error) {
	s := r.svc
	table, err := retry(ctx, s.opts.Retry, r.log, store.PhaseLUTCreated, func(ctx context.Context) (solana.PublicKey, error) {
		var recorded solana.PublicKey
		if r.rec.LUTAddress != "" {
			pk, err := solana.PublicKeyFromBase58(r.rec.LUTAddress)
			if err != nil {
				return solana.PublicKey{}, types.NewValidationError("lut_address", err.Error())
			}
			recorded = pk
		}
		table, create, err := manager.Ensure(ctx, recorded)
		if err != nil {
			return solana.PublicKey{}, err
		}
		if err := r.checkSizes(ctx, groups, &txbuilder.LookupTable{Address: table, Addresses: addrs}); err != nil {
			return solana.PublicKey{}, err
		}
		if create == nil {
			return table, nil
		}

		r.rec.LUTAddress = table.String()
		if err := s.save(ctx, r.rec); err != nil {
			return solana.PublicKey{}, err
		}
		res := s.exec.Execute(ctx, []txbuilder.Group{*create}, r.fund, s.opts.TipLamports, nil)
		if !res.Confirmed {
			return solana.PublicKey{}, res.Err
		}
		return table, nil
	})
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("create lookup table: %w", err)
	}
	r.rec.LUTAddress = table.String()
	return table, r.advance(ctx, store.PhaseLUTCreated)
}

// extendTable adds whatever addrs the table lacks, at most one bundle of extensions at a time.
func (r *run) extendTable(ctx context.Context, manager *lut.Manager, table solana.PublicKey, addrs solana.PublicKeySlice) error {
	s := r.svc
	_, err := retry(ctx, s.opts.Retry, r.log, store.PhaseLUTExtend, func(ctx context.Context) (struct{}, error) {
		missing, err := manager.Missing(ctx, table, addrs)
		if err != nil || len(missing) == 0 {
			return struct{}{}, err
		}
		extends, err := manager.ExtendGroups(table, missing)
		if err != nil {
			return struct{}{}, err
		}
		for start := 0; start < len(extends); start += constants.MaxBundleTransactions {
			end := min(start+constants.MaxBundleTransactions, len(extends))
			res := s.exec.Execute(ctx, extends[start:end], r.fund, s.opts.TipLamports, nil)
			if !res.Confirmed {
				return struct{}{}, res.Err
			}
		}
		r.log.Debug().Int("added", len(missing)).Int("bundles", (len(extends)+constants.MaxBundleTransactions-1)/constants.MaxBundleTransactions).Msg("lookup table extended")
		return struct{}{}, nil
	})
	if err != nil {
		return fmt.Errorf("extend lookup table: %w", err)
	}
	return r.advance(ctx, store.PhaseLUTExtend)
}

// sendFinal lands the launch bundle. A retry first checks whether the mint already exists,
// since an earlier attempt may have landed without its confirmation being observed.
func (r *run) sendFinal(ctx context.Context, groups []txbuilder.Group, table *txbuilder.LookupTable) (bundle.Result, error) {
	s := r.svc
	attempt := 0
	res, err := retry(ctx, s.opts.Retry, r.log, "bundle", func(ctx context.Context) (bundle.Result, error) {
		attempt++
		if attempt > 1 {
			landed, err := r.mintExists(ctx)
			if err != nil {
				return bundle.Result{}, err
			}
			if landed {
				r.log.Warn().Msg("mint found on chain after an unconfirmed attempt")
				return bundle.Result{Confirmed: true}, nil
			}
		}
		res := s.exec.Execute(ctx, groups, r.fund, s.opts.TipLamports, table)
		if !res.Confirmed {
			return res, res.Err
		}
		return res, nil
	})
	if err != nil {
		return bundle.Result{}, fmt.Errorf("launch bundle: %w", err)
	}
	return res, nil
}

func (r *run) mintExists(ctx context.Context) (bool, error) {
	_, err := r.svc.chain.GetAccountData(ctx, r.mint.PublicKey())
	if errors.Is(err, types.ErrAccountNotFound) {
		return false, nil
	}
	return err == nil, err
}

// checkSizes places a representative tip and guard the way the executor will and checks
// every resulting transaction fits.
func (r *run) checkSizes(ctx context.Context, groups []txbuilder.Group, table *txbuilder.LookupTable) error {
	tipIx := system.NewTransferInstruction(r.svc.opts.TipLamports, r.fund.PublicKey(), jito.MainnetTipAccounts[0]).Build()
	guardIx, err := guard.NewInstructionWithNonce(r.fund.PublicKey(), guard.MaxNonce)
	if err != nil {
		return err
	}
	placed, err := bundle.Place(ctx, groups, r.fund, tipIx, guardIx, table)
	if err != nil {
		return err
	}
	for i, g := range placed {
		if _, err := txbuilder.CheckSize(ctx, g, table); err != nil {
			return fmt.Errorf("transaction %d: %w", i, err)
		}
	}
	return nil
}
