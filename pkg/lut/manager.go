package lut

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"

	"github.com/TopTalent-23/bundler-bot-backend/pkg/txbuilder"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/types"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/wallet"
)

// Chain is the slice of the RPC client the manager reads from.
type Chain interface {
	GetSlot(ctx context.Context, commitment solanarpc.CommitmentType) (uint64, error)
	GetAccountData(ctx context.Context, account solana.PublicKey) ([]byte, error)
}

// Options tunes activation waiting.
type Options struct {
	// MaxWait bounds WaitActive.
	MaxWait time.Duration
	// PollInterval is the delay between slot checks.
	PollInterval time.Duration
	// ActivationSlots is how many slots past the last extension must elapse.
	ActivationSlots uint64
	Logger          zerolog.Logger
}

// DefaultOptions waits up to 15 seconds, polling every 400ms, for one slot past the
// last extension.
func DefaultOptions() Options {
	return Options{
		MaxWait:         15 * time.Second,
		PollInterval:    400 * time.Millisecond,
		ActivationSlots: 1,
		Logger:          zerolog.Nop(),
	}
}

// Manager owns the lookup table lifecycle for one authority, which also pays.
type Manager struct {
	chain     Chain
	authority wallet.Signer
	opts      Options
	log       zerolog.Logger
}

// NewManager builds a Manager.
func NewManager(chain Chain, authority wallet.Signer, opts Options) *Manager {
	d := DefaultOptions()
	if opts.MaxWait <= 0 {
		opts.MaxWait = d.MaxWait
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = d.PollInterval
	}
	if opts.ActivationSlots == 0 {
		opts.ActivationSlots = d.ActivationSlots
	}
	return &Manager{chain: chain, authority: authority, opts: opts, log: opts.Logger}
}

// CreateGroup returns a single-instruction group creating a new table anchored at the
// latest finalized slot, together with the table address.
func (m *Manager) CreateGroup(ctx context.Context) (txbuilder.Group, solana.PublicKey, error) {
	slot, err := m.chain.GetSlot(ctx, solanarpc.CommitmentFinalized)
	if err != nil {
		return txbuilder.Group{}, solana.PublicKey{}, fmt.Errorf("get finalized slot: %w", err)
	}
	authority := m.authority.PublicKey()
	ix, table, err := CreateInstruction(authority, authority, slot)
	if err != nil {
		return txbuilder.Group{}, solana.PublicKey{}, err
	}
	m.log.Debug().Str("table", table.String()).Uint64("slot", slot).Msg("lookup table create prepared")
	return txbuilder.Group{
		Instructions: []solana.Instruction{ix},
		Signers:      []wallet.Signer{m.authority},
	}, table, nil
}

// Ensure reuses recorded when it is set and already on chain. Otherwise it returns a new
// table address together with the group that creates it; create is nil on reuse.
func (m *Manager) Ensure(ctx context.Context, recorded solana.PublicKey) (solana.PublicKey, *txbuilder.Group, error) {
	if !recorded.IsZero() {
		ok, err := m.Exists(ctx, recorded)
		if err != nil {
			return solana.PublicKey{}, nil, err
		}
		if ok {
			m.log.Info().Str("table", recorded.String()).Msg("reusing lookup table")
			return recorded, nil, nil
		}
	}
	group, table, err := m.CreateGroup(ctx)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	return table, &group, nil
}

// ExtendGroups returns one single-instruction group per chunk of addrs.
func (m *Manager) ExtendGroups(table solana.PublicKey, addrs []solana.PublicKey) ([]txbuilder.Group, error) {
	authority := m.authority.PublicKey()
	ixs, err := ExtendInstructions(table, authority, authority, addrs)
	if err != nil {
		return nil, err
	}
	groups := make([]txbuilder.Group, 0, len(ixs))
	for _, ix := range ixs {
		groups = append(groups, txbuilder.Group{
			Instructions: []solana.Instruction{ix},
			Signers:      []wallet.Signer{m.authority},
		})
	}
	return groups, nil
}

// Fetch loads and decodes the table.
func (m *Manager) Fetch(ctx context.Context, table solana.PublicKey) (*State, error) {
	data, err := m.chain.GetAccountData(ctx, table)
	if err != nil {
		if errors.Is(err, types.ErrAccountNotFound) {
			return nil, fmt.Errorf("%s: %w", table, types.ErrLookupTableNotFound)
		}
		return nil, err
	}
	return DecodeState(data)
}

// Exists reports whether the table account is on chain.
func (m *Manager) Exists(ctx context.Context, table solana.PublicKey) (bool, error) {
	_, err := m.Fetch(ctx, table)
	if errors.Is(err, types.ErrLookupTableNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Missing returns the addresses of want not yet stored in the table.
func (m *Manager) Missing(ctx context.Context, table solana.PublicKey, want []solana.PublicKey) ([]solana.PublicKey, error) {
	state, err := m.Fetch(ctx, table)
	if err != nil {
		return nil, err
	}
	have := make(map[solana.PublicKey]struct{}, len(state.Addresses))
	for _, pk := range state.Addresses {
		have[pk] = struct{}{}
	}
	var missing []solana.PublicKey
	for _, pk := range want {
		if _, ok := have[pk]; !ok {
			missing = append(missing, pk)
		}
	}
	return missing, nil
}

// WaitActive blocks until the table holds at least minAddresses entries and the chain
// has advanced ActivationSlots past its last extension, so transactions compiled against
// it resolve every index. It gives up after MaxWait.
func (m *Manager) WaitActive(ctx context.Context, table solana.PublicKey, minAddresses int) (*txbuilder.LookupTable, error) {
	ctx, cancel := context.WithTimeout(ctx, m.opts.MaxWait)
	defer cancel()

	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		state, err := m.Fetch(ctx, table)
		if err == nil && len(state.Addresses) >= minAddresses {
			slot, slotErr := m.chain.GetSlot(ctx, solanarpc.CommitmentConfirmed)
			if slotErr == nil && slot >= state.LastExtendedSlot+m.opts.ActivationSlots {
				m.log.Debug().
					Str("table", table.String()).
					Int("addresses", len(state.Addresses)).
					Uint64("slot", slot).
					Msg("lookup table active")
				return &txbuilder.LookupTable{Address: table, Addresses: state.Addresses}, nil
			}
			err = slotErr
		}
		if err != nil {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return nil, fmt.Errorf("lookup table %s not active: %w", table, lastErr)
			}
			return nil, fmt.Errorf("lookup table %s not active: %w", table, ctx.Err())
		case <-ticker.C:
		}
	}
}
