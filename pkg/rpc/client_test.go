package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TopTalent-23/bundler-bot-backend/pkg/config"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/types"
)

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
}

// newRPCServer answers every request with result(method); a nil result with failFirst
// returns a transport error on the first call.
func newRPCServer(t *testing.T, failFirst bool, result func(method string) string) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if failFirst && n == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":` + result(req.Method) + `}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func testConfig(url string) config.RPCConfig {
	cfg := config.DefaultRPCConfig()
	cfg.RPCURL = url
	cfg.RateLimit.RPS = 0
	cfg.Retry.InitialBackoff = time.Millisecond
	cfg.Retry.MaxBackoff = 5 * time.Millisecond
	cfg.Retry.Jitter = false
	return cfg
}

func TestGetBalance(t *testing.T) {
	srv, _ := newRPCServer(t, false, func(string) string {
		return `{"context":{"slot":10},"value":2500000000}`
	})
	client := NewClient(testConfig(srv.URL))

	lamports, err := client.GetBalance(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.Equal(t, uint64(2_500_000_000), lamports)
}

func TestCallRetriesTransientFailure(t *testing.T) {
	srv, calls := newRPCServer(t, true, func(string) string {
		return `1234`
	})
	client := NewClient(testConfig(srv.URL))

	slot, err := client.GetSlot(context.Background(), "finalized")
	require.NoError(t, err)
	assert.Equal(t, uint64(1234), slot)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestCallGivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	_, err := client.GetBlockHeight(context.Background())
	require.Error(t, err)

	var rpcErr types.RPCError
	assert.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGetAccountDataNotFound(t *testing.T) {
	srv, calls := newRPCServer(t, false, func(string) string {
		return `{"context":{"slot":10},"value":null}`
	})
	client := NewClient(testConfig(srv.URL))

	_, err := client.GetAccountData(context.Background(), solana.NewWallet().PublicKey())
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrAccountNotFound)
	// a missing account is an answer, not a transient failure
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestBackoffCapped(t *testing.T) {
	cfg := testConfig("http://localhost")
	cfg.Retry.InitialBackoff = 100 * time.Millisecond
	cfg.Retry.MaxBackoff = 300 * time.Millisecond
	client := NewClient(cfg)

	assert.Equal(t, 100*time.Millisecond, client.backoff(0))
	assert.Equal(t, 200*time.Millisecond, client.backoff(1))
	assert.Equal(t, 300*time.Millisecond, client.backoff(5))
}
