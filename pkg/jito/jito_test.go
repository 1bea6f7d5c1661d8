package jito

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TopTalent-23/bundler-bot-backend/pkg/config"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/types"
)

type relayServer struct {
	*httptest.Server
	hits atomic.Int32
}

func newRelay(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, req rpcRequest)) *relayServer {
	t.Helper()
	rs := &relayServer{}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.hits.Add(1)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req rpcRequest
		require.NoError(t, json.Unmarshal(body, &req))
		handler(w, r, req)
	}))
	t.Cleanup(rs.Close)
	return rs
}

func accept(id string) func(http.ResponseWriter, *http.Request, rpcRequest) {
	return func(w http.ResponseWriter, _ *http.Request, _ rpcRequest) {
		_, _ = io.WriteString(w, `{"jsonrpc":"2.0","id":1,"result":"`+id+`"}`)
	}
}

func reject(w http.ResponseWriter, _ *http.Request, _ rpcRequest) {
	http.Error(w, "rate limited", http.StatusTooManyRequests)
}

func newClient(t *testing.T, endpoints ...string) *Client {
	t.Helper()
	c, err := NewClient(config.JitoConfig{
		UUID:            "token",
		Endpoints:       endpoints,
		SubAttempts:     5,
		SubAttemptDelay: time.Millisecond,
		RequestTimeout:  time.Second,
	}, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func TestSendBundleWireFormat(t *testing.T) {
	txs := [][]byte{{1, 2, 3}, {4, 5, 6, 7}}
	relay := newRelay(t, func(w http.ResponseWriter, r *http.Request, req rpcRequest) {
		assert.Equal(t, "/api/v1/bundles", r.URL.Path)
		assert.Equal(t, "token", r.URL.Query().Get("uuid"))
		assert.Equal(t, "sendBundle", req.Method)
		assert.Equal(t, "2.0", req.JSONRPC)
		require.Len(t, req.Params, 1)

		encoded, ok := req.Params[0].([]interface{})
		require.True(t, ok)
		require.Len(t, encoded, 2)
		for i, v := range encoded {
			raw, err := base58.Decode(v.(string))
			require.NoError(t, err)
			assert.Equal(t, txs[i], raw)
		}
		accept("bundle-1")(w, r, req)
	})

	id, err := newClient(t, relay.URL+"/api/v1").SendBundle(context.Background(), txs)
	require.NoError(t, err)
	assert.Equal(t, "bundle-1", id)
	assert.Equal(t, int32(1), relay.hits.Load())
}

func TestSendBundleAnyEndpointAccepts(t *testing.T) {
	bad := newRelay(t, reject)
	good := newRelay(t, accept("ok"))

	id, err := newClient(t, bad.URL, good.URL).SendBundle(context.Background(), [][]byte{{1}})
	require.NoError(t, err)
	assert.Equal(t, "ok", id)
	assert.Equal(t, int32(1), bad.hits.Load())
	assert.Equal(t, int32(1), good.hits.Load())
}

func TestSendBundleRetriesThenAccepts(t *testing.T) {
	var calls atomic.Int32
	flaky := newRelay(t, func(w http.ResponseWriter, r *http.Request, req rpcRequest) {
		if calls.Add(1) < 3 {
			_, _ = io.WriteString(w, `{"jsonrpc":"2.0","id":1,"error":{"code":-32097,"message":"congested"}}`)
			return
		}
		accept("third")(w, r, req)
	})

	id, err := newClient(t, flaky.URL).SendBundle(context.Background(), [][]byte{{1}})
	require.NoError(t, err)
	assert.Equal(t, "third", id)
	assert.Equal(t, int32(3), flaky.hits.Load())
}

func TestSendBundleAllReject(t *testing.T) {
	a := newRelay(t, reject)
	b := newRelay(t, reject)

	_, err := newClient(t, a.URL, b.URL).SendBundle(context.Background(), [][]byte{{1}})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrRelayRejected)
	var endpointErr types.EndpointError
	require.ErrorAs(t, err, &endpointErr)
	assert.Equal(t, http.StatusTooManyRequests, endpointErr.StatusCode)
	assert.Equal(t, int32(5), a.hits.Load())
	assert.Equal(t, int32(5), b.hits.Load())
}

func TestSendBundleEmpty(t *testing.T) {
	_, err := newClient(t, "http://127.0.0.1:1").SendBundle(context.Background(), nil)
	assert.Error(t, err)
}

func TestSendBundleThroughProxy(t *testing.T) {
	var auth atomic.Value
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Proxy-Authorization"))
		assert.Equal(t, "relay.example", r.URL.Host)
		_, _ = io.WriteString(w, `{"jsonrpc":"2.0","id":1,"result":"via-proxy"}`)
	}))
	t.Cleanup(proxy.Close)

	c, err := NewClient(config.JitoConfig{
		Endpoints:   []string{"http://relay.example/api/v1"},
		ProxyURL:    proxy.URL,
		ProxyUser:   "user",
		ProxyPass:   "pass",
		SubAttempts: 1,
	}, zerolog.Nop())
	require.NoError(t, err)

	id, err := c.SendBundle(context.Background(), [][]byte{{9}})
	require.NoError(t, err)
	assert.Equal(t, "via-proxy", id)
	assert.Equal(t, "Basic "+base64.StdEncoding.EncodeToString([]byte("user:pass")), auth.Load())
}

func TestRefreshTipAccounts(t *testing.T) {
	tip := MainnetTipAccounts[3]
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/bundles"))
		_, _ = io.WriteString(w, `{"jsonrpc":"2.0","id":1,"result":["`+tip.String()+`","not-a-key"]}`)
	}))
	t.Cleanup(relay.Close)

	c := newClient(t, relay.URL)
	tips, err := c.RefreshTipAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, tips, 1)
	assert.Equal(t, tip, c.RandomTipAccount(rand.New(rand.NewSource(1))))
}

func TestGetBundleStatuses(t *testing.T) {
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/getBundleStatuses"))
		_, _ = io.WriteString(w, `{"jsonrpc":"2.0","id":1,"result":{"context":{"slot":10},"value":[`+
			`{"bundle_id":"b1","transactions":["s1"],"slot":9,"confirmation_status":"confirmed","err":{"Ok":null}}]}}`)
	}))
	t.Cleanup(relay.Close)

	statuses, err := newClient(t, relay.URL).GetBundleStatuses(context.Background(), []string{"b1"})
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, "b1", statuses[0].BundleID)
	assert.Equal(t, int64(9), statuses[0].Slot)
	assert.True(t, statuses[0].Landed())
}

func TestRandomTipAccountDefaults(t *testing.T) {
	c := newClient(t)
	assert.Contains(t, MainnetTipAccounts, c.RandomTipAccount(rand.New(rand.NewSource(7))))
	assert.Equal(t, config.DefaultBlockEngines, c.Endpoints())
}

func TestNewClientDefaults(t *testing.T) {
	c, err := NewClient(config.JitoConfig{}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, config.DefaultBlockEngines, c.Endpoints())
	assert.Equal(t, 5, c.SubAttempts())
	assert.Equal(t, 250*time.Millisecond, c.subDelay)
	assert.Equal(t, 10*time.Second, c.http.Timeout)

	c, err = NewClient(config.JitoConfig{SubAttempts: 2, SubAttemptDelay: time.Millisecond}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 2, c.SubAttempts())
	assert.Equal(t, time.Millisecond, c.subDelay)
}
