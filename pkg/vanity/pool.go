package vanity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/TopTalent-23/bundler-bot-backend/internal/store"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/wallet"
)

// Pool stores pre-generated mint keypairs.
type Pool interface {
	AddVanity(ctx context.Context, kp store.VanityKeypair) error
	ClaimVanity(ctx context.Context) (*store.VanityKeypair, error)
}

// MintSource hands out mint keypairs, preferring the pool over a random key.
type MintSource struct {
	pool Pool
	log  zerolog.Logger
}

// NewMintSource returns a MintSource. A nil pool always yields random keys.
func NewMintSource(pool Pool, log zerolog.Logger) *MintSource {
	return &MintSource{pool: pool, log: log}
}

// Next claims a pooled keypair, falling back to a fresh random one when the pool is empty.
// fromPool reports which path was taken.
func (s *MintSource) Next(ctx context.Context) (mint wallet.Local, fromPool bool, err error) {
	if s.pool != nil {
		kp, err := s.pool.ClaimVanity(ctx)
		switch {
		case err == nil:
			mint, err := decodePooled(kp)
			if err != nil {
				return wallet.Local{}, false, err
			}
			return mint, true, nil
		case errors.Is(err, store.ErrNotFound):
			s.log.Warn().Msg("vanity pool empty, using a random mint")
		default:
			return wallet.Local{}, false, fmt.Errorf("claim vanity mint: %w", err)
		}
	}
	mint, err = wallet.NewRandomLocal()
	return mint, false, err
}

func decodePooled(kp *store.VanityKeypair) (wallet.Local, error) {
	mint, err := wallet.NewLocalFromString(kp.PrivateKey)
	if err != nil {
		return wallet.Local{}, fmt.Errorf("pooled mint %s: %w", kp.PublicKey, err)
	}
	if got := mint.PublicKey().String(); got != kp.PublicKey {
		return wallet.Local{}, fmt.Errorf("pooled mint %s: secret belongs to %s", kp.PublicKey, got)
	}
	return mint, nil
}

// Fill generates count keypairs matching opts and adds them to pool. It returns how many
// were stored before any error.
func Fill(ctx context.Context, pool Pool, count int, opts Options, log zerolog.Logger) (int, error) {
	for i := 0; i < count; i++ {
		res, err := Generate(ctx, opts)
		if err != nil {
			return i, err
		}
		kp := store.VanityKeypair{
			PublicKey:  res.PublicKey.String(),
			PrivateKey: wallet.EncodeBase58(res.PrivateKey),
			IsValid:    true,
			CreatedAt:  time.Now(),
		}
		if err := pool.AddVanity(ctx, kp); err != nil {
			return i, err
		}
		log.Info().
			Str("mint", kp.PublicKey).
			Uint64("attempts", res.Attempts).
			Dur("took", res.Duration).
			Int("stored", i+1).
			Int("target", count).
			Msg("vanity mint stored")
	}
	return count, nil
}
