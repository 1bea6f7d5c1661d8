package vanity

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TopTalent-23/bundler-bot-backend/internal/store"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/types"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/wallet"
)

func TestMatcher(t *testing.T) {
	m, err := NewMatcher("Ab", "pump", false)
	require.NoError(t, err)
	assert.True(t, m.Match("AbXYZpump"))
	assert.False(t, m.Match("abXYZpump"))
	assert.False(t, m.Match("AbXYZPUMP"))

	fold, err := NewMatcher("", "PUMP", true)
	require.NoError(t, err)
	assert.True(t, fold.Match("xxxPuMp"))

	_, err = NewMatcher("", "", false)
	var ve types.ValidationError
	assert.ErrorAs(t, err, &ve)

	_, err = NewMatcher("0", "", false)
	assert.ErrorAs(t, err, &ve)

	// 'l' only exists upper-cased in base58.
	_, err = NewMatcher("l", "", false)
	assert.ErrorAs(t, err, &ve)
	_, err = NewMatcher("l", "", true)
	assert.NoError(t, err)
}

func TestGenerateSuffix(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := Generate(ctx, Options{Suffix: "a", Workers: 2, CaseInsensitive: true})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(strings.ToLower(res.PublicKey.String()), "a"))
	assert.Equal(t, res.PublicKey, res.PrivateKey.PublicKey())
	assert.NotZero(t, res.Attempts)
}

func TestGenerateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Generate(ctx, Options{Prefix: "zzzzzzzz", Workers: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEstimateDifficulty(t *testing.T) {
	assert.Equal(t, uint64(1), EstimateDifficulty(0, 0))
	assert.Equal(t, uint64(58), EstimateDifficulty(1, 0))
	assert.Equal(t, uint64(58*58*58*58), EstimateDifficulty(0, 4))
	assert.Equal(t, uint64(math.MaxUint64), EstimateDifficulty(10, 10))
}

func TestMintSourcePrefersPool(t *testing.T) {
	ctx := context.Background()
	pool := store.NewMemory()
	pooled, err := wallet.NewRandomLocal()
	require.NoError(t, err)
	require.NoError(t, pool.AddVanity(ctx, store.VanityKeypair{
		PublicKey:  pooled.PublicKey().String(),
		PrivateKey: wallet.EncodeBase58(pooled.PrivateKey()),
		IsValid:    true,
	}))

	src := NewMintSource(pool, zerolog.Nop())
	mint, fromPool, err := src.Next(ctx)
	require.NoError(t, err)
	assert.True(t, fromPool)
	assert.Equal(t, pooled.PublicKey(), mint.PublicKey())

	mint, fromPool, err = src.Next(ctx)
	require.NoError(t, err)
	assert.False(t, fromPool)
	assert.NotEqual(t, pooled.PublicKey(), mint.PublicKey())
}

func TestMintSourceRejectsMismatchedSecret(t *testing.T) {
	ctx := context.Background()
	pool := store.NewMemory()
	a, err := wallet.NewRandomLocal()
	require.NoError(t, err)
	b, err := wallet.NewRandomLocal()
	require.NoError(t, err)
	require.NoError(t, pool.AddVanity(ctx, store.VanityKeypair{
		PublicKey:  a.PublicKey().String(),
		PrivateKey: wallet.EncodeBase58(b.PrivateKey()),
		IsValid:    true,
	}))

	_, _, err = NewMintSource(pool, zerolog.Nop()).Next(ctx)
	assert.Error(t, err)
}

func TestFill(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	pool := store.NewMemory()

	n, err := Fill(ctx, pool, 2, Options{Suffix: "b", CaseInsensitive: true, Workers: 2}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := pool.CountVanity(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	kp, err := pool.ClaimVanity(ctx)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(strings.ToLower(kp.PublicKey), "b"))
}
