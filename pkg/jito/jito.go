// Package jito submits bundles to Jito block engines and reads tip accounts and bundle
// statuses.
//
// Bundles are posted to every configured block engine at once; an endpoint that answers
// with a bundle id counts as an acceptance. See https://github.com/jito-labs/jito-go-rpc
// for the status API.
package jito

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	jitorpc "github.com/jito-labs/jito-go-rpc"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/TopTalent-23/bundler-bot-backend/pkg/config"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/types"
)

// MainnetTipAccounts are the published Jito tip accounts. They rarely change, so picking
// from this list avoids a round trip per bundle.
var MainnetTipAccounts = []solana.PublicKey{
	solana.MustPublicKeyFromBase58("96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5"),
	solana.MustPublicKeyFromBase58("HFqU5x63VTqvQss8hp11i4wVV8bD44PvwucfZ2bU7gRe"),
	solana.MustPublicKeyFromBase58("Cw8CFyM9FkoMi7K7Crf6HNQqf4uEMzpKw6QNghXLvLkY"),
	solana.MustPublicKeyFromBase58("ADaUMid9yfUytqMBgopwjb2DTLSokTSzL1zt6iGPaS49"),
	solana.MustPublicKeyFromBase58("DfXygSm4jCyNCybVYYK6DwvWqjKee8pbDmJGcLWNDXjh"),
	solana.MustPublicKeyFromBase58("ADuUkR4vqLUMWXxW9gh6D6L8pMSawimctcNZ5pGwDcEt"),
	solana.MustPublicKeyFromBase58("DttWaMuVvTiduZRnguLF7jNxTgiMBZ1hyAumKUiL2KRL"),
	solana.MustPublicKeyFromBase58("3AVi9Tg9Uo68tJfuvoKvqKNWKkC5wPdSSdeBnizKZ6jT"),
}

// Client posts bundles to a set of block engines.
type Client struct {
	endpoints   []string
	uuid        string
	http        *http.Client
	subAttempts int
	subDelay    time.Duration
	log         zerolog.Logger

	currentIndex uint32

	mu   sync.RWMutex
	tips []solana.PublicKey
}

// NewClient builds a Client from cfg. Missing endpoints fall back to
// config.DefaultBlockEngines.
func NewClient(cfg config.JitoConfig, log zerolog.Logger) (*Client, error) {
	endpoints := cfg.Endpoints
	if len(endpoints) == 0 {
		endpoints = config.DefaultBlockEngines
	}
	defaults := config.DefaultBundlerConfig().Jito
	subAttempts := cfg.SubAttempts
	if subAttempts <= 0 {
		subAttempts = defaults.SubAttempts
	}
	subDelay := cfg.SubAttemptDelay
	if subDelay <= 0 {
		subDelay = defaults.SubAttemptDelay
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaults.RequestTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.ProxyURL != "" {
		proxy, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, types.NewValidationError("jito.proxy_url", err.Error())
		}
		if cfg.ProxyUser != "" {
			proxy.User = url.UserPassword(cfg.ProxyUser, cfg.ProxyPass)
		}
		transport.Proxy = http.ProxyURL(proxy)
	}

	return &Client{
		endpoints:   append([]string(nil), endpoints...),
		uuid:        cfg.UUID,
		http:        &http.Client{Transport: transport, Timeout: timeout},
		subAttempts: subAttempts,
		subDelay:    subDelay,
		log:         log,
		tips:        MainnetTipAccounts,
	}, nil
}

// Endpoints returns the configured block engines.
func (c *Client) Endpoints() []string {
	return append([]string(nil), c.endpoints...)
}

// SubAttempts is the number of fan-outs made per bundle before giving up.
func (c *Client) SubAttempts() int {
	return c.subAttempts
}

// RandomTipAccount picks a tip account using rng.
func (c *Client) RandomTipAccount(rng *rand.Rand) solana.PublicKey {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tips[rng.Intn(len(c.tips))]
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SendBundle posts the serialized transactions to every endpoint concurrently and returns
// the first bundle id handed back. When every endpoint fails it retries the whole fan-out
// up to SubAttempts times, then fails with types.ErrRelayRejected.
func (c *Client) SendBundle(ctx context.Context, txs [][]byte) (string, error) {
	if len(txs) == 0 {
		return "", fmt.Errorf("bundle requires at least one transaction")
	}
	encoded := make([]string, len(txs))
	for i, raw := range txs {
		encoded[i] = base58.Encode(raw)
	}
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "sendBundle",
		Params:  []interface{}{encoded},
	})
	if err != nil {
		return "", fmt.Errorf("marshal bundle request: %w", err)
	}

	var errs []error
	for attempt := 1; attempt <= c.subAttempts; attempt++ {
		id, accepted, err := c.fanOut(ctx, body)
		if accepted > 0 {
			c.log.Debug().
				Str("bundle_id", id).
				Int("accepted", accepted).
				Int("endpoints", len(c.endpoints)).
				Int("attempt", attempt).
				Msg("bundle sent")
			return id, nil
		}
		errs = append(errs, err)
		c.log.Debug().Err(err).Int("attempt", attempt).Msg("no block engine accepted bundle")
		if attempt == c.subAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.subDelay):
		}
	}
	return "", fmt.Errorf("%w after %d attempts: %w", types.ErrRelayRejected, c.subAttempts, errors.Join(errs...))
}

// fanOut posts body to every endpoint concurrently and reports how many accepted it.
func (c *Client) fanOut(ctx context.Context, body []byte) (string, int, error) {
	var (
		mu       sync.Mutex
		bundleID string
		accepted int
		errs     []error
	)
	var g errgroup.Group
	for _, endpoint := range c.endpoints {
		g.Go(func() error {
			id, err := c.post(ctx, endpoint, body)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return nil
			}
			if accepted == 0 {
				bundleID = id
			}
			accepted++
			return nil
		})
	}
	_ = g.Wait()
	return bundleID, accepted, errors.Join(errs...)
}

func (c *Client) post(ctx context.Context, endpoint string, body []byte) (string, error) {
	target := strings.TrimRight(endpoint, "/") + "/bundles"
	if c.uuid != "" {
		target += "?uuid=" + url.QueryEscape(c.uuid)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return "", types.EndpointError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.uuid != "" {
		req.Header.Set("x-jito-auth", c.uuid)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", types.EndpointError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", types.EndpointError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", types.EndpointError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Err:        errors.New(strings.TrimSpace(string(payload))),
		}
	}

	var out rpcResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", types.EndpointError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if out.Error != nil {
		return "", types.EndpointError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("rpc error %d: %s", out.Error.Code, out.Error.Message),
		}
	}
	var id string
	if err := json.Unmarshal(out.Result, &id); err != nil {
		return "", types.EndpointError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode bundle id: %w", err)}
	}
	return id, nil
}

// nextClient returns a status client for the next endpoint in round-robin order.
func (c *Client) nextClient() *jitorpc.JitoJsonRpcClient {
	idx := atomic.AddUint32(&c.currentIndex, 1)
	rc := jitorpc.NewJitoJsonRpcClient(c.endpoints[int(idx)%len(c.endpoints)], c.uuid)
	rc.Client = c.http
	return rc
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "congested") ||
		strings.Contains(msg, "429")
}

// withRotation runs fn against successive endpoints while it keeps hitting rate limits.
func withRotation[T any](ctx context.Context, c *Client, op string, fn func(*jitorpc.JitoJsonRpcClient) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for i := 0; i < len(c.endpoints)+2; i++ {
		out, err := fn(c.nextClient())
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !isRateLimitError(err) {
			return zero, fmt.Errorf("%s: %w", op, err)
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	return zero, fmt.Errorf("%s failed after rotating endpoints: %w", op, lastErr)
}

// RefreshTipAccounts replaces the local tip account list with the block engine's.
func (c *Client) RefreshTipAccounts(ctx context.Context) ([]solana.PublicKey, error) {
	raw, err := withRotation(ctx, c, "get tip accounts", func(rc *jitorpc.JitoJsonRpcClient) (json.RawMessage, error) {
		return rc.GetTipAccounts()
	})
	if err != nil {
		return nil, err
	}

	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, fmt.Errorf("unmarshal tip accounts: %w", err)
	}
	result := make([]solana.PublicKey, 0, len(accounts))
	for _, acc := range accounts {
		pk, err := solana.PublicKeyFromBase58(acc)
		if err != nil {
			continue
		}
		result = append(result, pk)
	}
	if len(result) == 0 {
		return nil, errors.New("block engine returned no tip accounts")
	}

	c.mu.Lock()
	c.tips = result
	c.mu.Unlock()
	return result, nil
}

// BundleStatus is the landed state of one bundle.
type BundleStatus struct {
	BundleID           string   `json:"bundle_id"`
	Slot               int64    `json:"slot"`
	ConfirmationStatus string   `json:"confirmation_status"`
	Transactions       []string `json:"transactions"`
}

// Landed reports whether the bundle reached confirmed or finalized.
func (s BundleStatus) Landed() bool {
	return s.ConfirmationStatus == "confirmed" || s.ConfirmationStatus == "finalized"
}

// GetBundleStatuses looks up submitted bundles. The block engine only reports bundles
// that landed.
func (c *Client) GetBundleStatuses(ctx context.Context, bundleIDs []string) ([]BundleStatus, error) {
	resp, err := withRotation(ctx, c, "get bundle statuses", func(rc *jitorpc.JitoJsonRpcClient) (*jitorpc.BundleStatusResponse, error) {
		return rc.GetBundleStatuses(bundleIDs)
	})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}
	out := make([]BundleStatus, 0, len(resp.Value))
	for _, v := range resp.Value {
		out = append(out, BundleStatus{
			BundleID:           v.BundleID,
			Slot:               v.Slot,
			ConfirmationStatus: v.ConfirmationStatus,
			Transactions:       v.Transactions,
		})
	}
	return out, nil
}
