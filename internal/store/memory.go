package store

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Store for tests and dry runs.
type Memory struct {
	mu       sync.Mutex
	users    map[string]User
	launches map[string]LaunchRecord
	vanity   []VanityKeypair
	now      func() time.Time
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]User),
		launches: make(map[string]LaunchRecord),
		now:      time.Now,
	}
}

func (m *Memory) FindUser(_ context.Context, telegramID string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[telegramID]
	if !ok {
		return nil, ErrNotFound
	}
	u.SubWallets = append([]KeyPair(nil), u.SubWallets...)
	return &u, nil
}

func (m *Memory) SaveUser(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = m.now()
	}
	cp.SubWallets = append([]KeyPair(nil), u.SubWallets...)
	m.users[u.TelegramID] = cp
	return nil
}

func (m *Memory) SaveLaunch(_ context.Context, rec *LaunchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	m.launches[rec.Mint] = copyRecord(*rec)
	return nil
}

func (m *Memory) FindLaunch(_ context.Context, mint string) (*LaunchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.launches[mint]
	if !ok {
		return nil, ErrNotFound
	}
	rec = copyRecord(rec)
	return &rec, nil
}

func (m *Memory) AddVanity(_ context.Context, kp VanityKeypair) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if kp.CreatedAt.IsZero() {
		kp.CreatedAt = m.now()
	}
	m.vanity = append(m.vanity, kp)
	return nil
}

func (m *Memory) ClaimVanity(context.Context) (*VanityKeypair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.vanity {
		if m.vanity[i].IsValid {
			m.vanity[i].IsValid = false
			kp := m.vanity[i]
			return &kp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) CountVanity(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, kp := range m.vanity {
		if kp.IsValid {
			n++
		}
	}
	return n, nil
}

func (m *Memory) Close(context.Context) error { return nil }

func copyRecord(rec LaunchRecord) LaunchRecord {
	rec.SubWallets = append([]string(nil), rec.SubWallets...)
	rec.SubBuyLamports = append([]string(nil), rec.SubBuyLamports...)
	rec.SubBuyTokens = append([]string(nil), rec.SubBuyTokens...)
	return rec
}
