package rpc

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/TopTalent-23/bundler-bot-backend/pkg/config"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/types"
)

// Client wraps solana-go rpc.Client with retry, timeout, and rate limiting.
type Client struct {
	raw        *solanarpc.Client
	cfg        config.RPCConfig
	commitment solanarpc.CommitmentType
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// NewClient builds a configured Client.
func NewClient(cfg config.RPCConfig) *Client {
	endpoint := cfg.ResolveRPCURL()
	rpcClient := solanarpc.New(endpoint)

	var limiter *rate.Limiter
	if cfg.RateLimit.RPS > 0 {
		burst := cfg.RateLimit.Burst
		if burst == 0 {
			burst = int(cfg.RateLimit.RPS * 2)
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RPS), burst)
	}

	log := cfg.Logger
	if log.GetLevel() == zerolog.NoLevel {
		log = zerolog.Nop()
	}

	commitment := solanarpc.CommitmentType(cfg.Commitment)
	if commitment == "" {
		commitment = solanarpc.CommitmentConfirmed
	}

	return &Client{
		raw:        rpcClient,
		cfg:        cfg,
		commitment: commitment,
		limiter:    limiter,
		log:        log,
	}
}

// Raw exposes the underlying solana-go client.
func (c *Client) Raw() *solanarpc.Client {
	return c.raw
}

// GetLatestBlockhash fetches the latest blockhash at the configured commitment.
func (c *Client) GetLatestBlockhash(ctx context.Context) (*solanarpc.GetLatestBlockhashResult, error) {
	var out *solanarpc.GetLatestBlockhashResult
	err := c.call(ctx, "getLatestBlockhash", func(ctx context.Context) error {
		var err error
		out, err = c.raw.GetLatestBlockhash(ctx, c.commitment)
		return err
	})
	if err == nil && (out == nil || out.Value == nil) {
		return nil, types.RPCError{Op: "getLatestBlockhash", Err: errors.New("empty response")}
	}
	return out, err
}

// GetBalance returns the lamport balance of an account.
func (c *Client) GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	var lamports uint64
	err := c.call(ctx, "getBalance", func(ctx context.Context) error {
		res, err := c.raw.GetBalance(ctx, account, c.commitment)
		if err != nil {
			return err
		}
		lamports = res.Value
		return nil
	})
	return lamports, err
}

// GetSlot returns the current slot at the given commitment.
func (c *Client) GetSlot(ctx context.Context, commitment solanarpc.CommitmentType) (uint64, error) {
	var slot uint64
	err := c.call(ctx, "getSlot", func(ctx context.Context) error {
		var err error
		slot, err = c.raw.GetSlot(ctx, commitment)
		return err
	})
	return slot, err
}

// GetBlockHeight returns the current block height at the configured commitment.
func (c *Client) GetBlockHeight(ctx context.Context) (uint64, error) {
	var height uint64
	err := c.call(ctx, "getBlockHeight", func(ctx context.Context) error {
		var err error
		height, err = c.raw.GetBlockHeight(ctx, c.commitment)
		return err
	})
	return height, err
}

// GetSignatureStatuses returns one status per signature; unknown signatures yield nil entries.
func (c *Client) GetSignatureStatuses(ctx context.Context, sigs ...solana.Signature) ([]*solanarpc.SignatureStatusesResult, error) {
	var out []*solanarpc.SignatureStatusesResult
	err := c.call(ctx, "getSignatureStatuses", func(ctx context.Context) error {
		res, err := c.raw.GetSignatureStatuses(ctx, true, sigs...)
		if err != nil {
			return err
		}
		out = res.Value
		return nil
	})
	return out, err
}

// GetAccountData returns the raw data of an account, or types.ErrAccountNotFound.
func (c *Client) GetAccountData(ctx context.Context, account solana.PublicKey) ([]byte, error) {
	var data []byte
	err := c.call(ctx, "getAccountInfo", func(ctx context.Context) error {
		res, err := c.raw.GetAccountInfoWithOpts(ctx, account, &solanarpc.GetAccountInfoOpts{
			Commitment: c.commitment,
		})
		if err != nil {
			if errors.Is(err, solanarpc.ErrNotFound) {
				return errNotFound
			}
			return err
		}
		if res == nil || res.Value == nil {
			return errNotFound
		}
		data = res.Value.Data.GetBinary()
		return nil
	})
	if errors.Is(err, errNotFound) {
		return nil, fmt.Errorf("%s: %w", account, types.ErrAccountNotFound)
	}
	return data, err
}

var errNotFound = errors.New("not found")

func (c *Client) call(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	if !c.cfg.Retry.Enabled {
		if err := fn(ctx); err != nil {
			return types.RPCError{Op: op, Err: err}
		}
		return nil
	}

	attempts := c.cfg.Retry.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}

		if !retryable(err) || i == attempts-1 {
			break
		}
		backoff := c.backoff(i)
		c.log.Debug().
			Str("op", op).
			Int("attempt", i+1).
			Dur("backoff", backoff).
			Err(err).
			Msg("rpc retry")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	if errors.Is(err, errNotFound) {
		return err
	}
	return types.RPCError{Op: fmt.Sprintf("%s after %d attempts", op, attempts), Err: err}
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.cfg.Timeout)
}

func (c *Client) backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := c.cfg.Retry.InitialBackoff
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay > c.cfg.Retry.MaxBackoff && c.cfg.Retry.MaxBackoff > 0 {
			delay = c.cfg.Retry.MaxBackoff
			break
		}
	}
	if c.cfg.Retry.Jitter {
		jitter := rand.Int63n(int64(delay / 2))
		delay = delay/2 + time.Duration(jitter)
	}
	return delay
}

func retryable(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, errNotFound) {
		return false
	}
	return true
}
