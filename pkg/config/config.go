package config

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Network defines the target Solana cluster.
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkDevnet  Network = "devnet"
	NetworkCustom  Network = "custom"
)

// DefaultRPCURL returns the standard RPC endpoint for a known network.
func DefaultRPCURL(network Network) string {
	switch network {
	case NetworkMainnet:
		return "https://api.mainnet-beta.solana.com"
	case NetworkDevnet:
		return "https://api.devnet.solana.com"
	default:
		return ""
	}
}

// RetryConfig controls RPC retry behavior.
type RetryConfig struct {
	Enabled        bool
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Jitter         bool
}

// RateLimitConfig throttles outbound RPC calls.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// RPCConfig aggregates runtime settings for RPC usage.
type RPCConfig struct {
	Network    Network
	RPCURL     string
	Commitment string
	Timeout    time.Duration
	Retry      RetryConfig
	RateLimit  RateLimitConfig
	Logger     zerolog.Logger
}

// DefaultRPCConfig yields mainnet defaults with confirmed commitment, which is what
// blockhash fetching and balance checks during a launch want.
func DefaultRPCConfig() RPCConfig {
	return RPCConfig{
		Network:    NetworkMainnet,
		RPCURL:     DefaultRPCURL(NetworkMainnet),
		Commitment: "confirmed",
		Timeout:    20 * time.Second,
		Retry: RetryConfig{
			Enabled:        true,
			MaxAttempts:    3,
			InitialBackoff: 150 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
			Jitter:         true,
		},
		RateLimit: RateLimitConfig{
			RPS:   8,
			Burst: 16,
		},
		Logger: zerolog.New(io.Discard),
	}
}

// ResolveRPCURL returns RPCURL if set, otherwise falls back to network defaults.
func (c RPCConfig) ResolveRPCURL() string {
	if c.RPCURL != "" {
		return c.RPCURL
	}
	return DefaultRPCURL(c.Network)
}

// JitoConfig configures bundle relay submission.
type JitoConfig struct {
	// UUID is appended as the uuid query parameter on every bundle request.
	UUID string
	// Endpoints are block engine base URLs ending in /api/v1.
	Endpoints []string
	// FeeSOL is the tip attached to each bundle, as a decimal SOL string.
	FeeSOL string
	// ProxyURL routes relay traffic through an authenticated forward proxy when set.
	ProxyURL  string
	ProxyUser string
	ProxyPass string
	// SubAttempts per endpoint and the fixed delay between them.
	SubAttempts     int
	SubAttemptDelay time.Duration
	RequestTimeout  time.Duration
}

// ExecutorConfig configures the multi-try bundle executor.
type ExecutorConfig struct {
	MaxTries int
	Stagger  time.Duration
	// Deadline bounds a whole Execute call; zero disables it.
	Deadline time.Duration
}

// RetryPolicyConfig bounds how often a failed launch phase is retried.
// MaxAttempts of zero retries until the context ends.
type RetryPolicyConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// LaunchConfig configures the launch pipeline.
type LaunchConfig struct {
	Platform          string
	MetadataURL       string
	VanitySuffix      string
	LUTActivationWait time.Duration
	LUTPollInterval   time.Duration
	PhaseRetry        RetryPolicyConfig
}

// StoreConfig selects the persistence backend. An empty MongoURI keeps everything in memory.
type StoreConfig struct {
	MongoURI string
	Database string
}

// BundlerConfig is the full runtime configuration of the bundler.
type BundlerConfig struct {
	RPC      RPCConfig
	Jito     JitoConfig
	Executor ExecutorConfig
	Launch   LaunchConfig
	Store    StoreConfig
}

// DefaultBundlerConfig returns defaults matching the production deployment.
func DefaultBundlerConfig() BundlerConfig {
	return BundlerConfig{
		RPC: DefaultRPCConfig(),
		Jito: JitoConfig{
			Endpoints:       append([]string(nil), DefaultBlockEngines...),
			FeeSOL:          "0.001",
			SubAttempts:     5,
			SubAttemptDelay: 250 * time.Millisecond,
			RequestTimeout:  10 * time.Second,
		},
		Executor: ExecutorConfig{
			MaxTries: 5,
			Stagger:  time.Second,
		},
		Launch: LaunchConfig{
			Platform:          "pumpfun",
			MetadataURL:       "https://pump.fun/api/ipfs",
			VanitySuffix:      "pump",
			LUTActivationWait: 15 * time.Second,
			LUTPollInterval:   400 * time.Millisecond,
			PhaseRetry: RetryPolicyConfig{
				MaxAttempts:    0,
				InitialBackoff: 500 * time.Millisecond,
				MaxBackoff:     10 * time.Second,
			},
		},
		Store: StoreConfig{
			Database: "bundler",
		},
	}
}

// DefaultBlockEngines are the mainnet block engine regions a bundle is raced across.
var DefaultBlockEngines = []string{
	"https://mainnet.block-engine.jito.wtf/api/v1",
	"https://frankfurt.mainnet.block-engine.jito.wtf/api/v1",
	"https://amsterdam.mainnet.block-engine.jito.wtf/api/v1",
	"https://ny.mainnet.block-engine.jito.wtf/api/v1",
	"https://tokyo.mainnet.block-engine.jito.wtf/api/v1",
	"https://slc.mainnet.block-engine.jito.wtf/api/v1",
}
