package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TopTalent-23/bundler-bot-backend/pkg/config"
)

func TestMemoryLaunchUpsert(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	rec := &LaunchRecord{Mint: "Mint111", Name: "Dog", Phase: PhaseCreated, SubWallets: []string{"a", "b"}}
	require.NoError(t, m.SaveLaunch(ctx, rec))
	created := rec.CreatedAt
	require.False(t, created.IsZero())

	rec.Phase = PhaseSimulated
	rec.SubWallets[0] = "changed"
	require.NoError(t, m.SaveLaunch(ctx, rec))

	got, err := m.FindLaunch(ctx, "Mint111")
	require.NoError(t, err)
	assert.Equal(t, PhaseSimulated, got.Phase)
	assert.Equal(t, created, got.CreatedAt)
	assert.Equal(t, []string{"changed", "b"}, got.SubWallets)

	got.SubWallets[1] = "mutated"
	again, err := m.FindLaunch(ctx, "Mint111")
	require.NoError(t, err)
	assert.Equal(t, "b", again.SubWallets[1])

	_, err = m.FindLaunch(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryUsers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.FindUser(ctx, "42")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.SaveUser(ctx, &User{TelegramID: "42", Username: "alice", FundWallet: KeyPair{PublicKey: "Fund"}}))
	u, err := m.FindUser(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "Fund", u.FundWallet.PublicKey)
	assert.False(t, u.CreatedAt.IsZero())
}

func TestMemoryClaimVanityOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for _, pk := range []string{"v1", "v2", "v3"} {
		require.NoError(t, m.AddVanity(ctx, VanityKeypair{PublicKey: pk, IsValid: true}))
	}
	require.NoError(t, m.AddVanity(ctx, VanityKeypair{PublicKey: "used", IsValid: false}))

	n, err := m.CountVanity(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	var (
		mu      sync.Mutex
		claimed = map[string]int{}
		wg      sync.WaitGroup
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			kp, err := m.ClaimVanity(ctx)
			if err != nil {
				assert.ErrorIs(t, err, ErrNotFound)
				return
			}
			mu.Lock()
			claimed[kp.PublicKey]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, map[string]int{"v1": 1, "v2": 1, "v3": 1}, claimed)
	n, err = m.CountVanity(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOpenWithoutURIIsMemory(t *testing.T) {
	s, err := Open(context.Background(), config.StoreConfig{})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)
	assert.NoError(t, s.Close(context.Background()))
}
