package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. BUNDLER_JITO_UUID.
const EnvPrefix = "BUNDLER"

// Load builds a BundlerConfig from defaults, an optional config file, a .env file in the
// working directory and BUNDLER_* environment variables, in increasing precedence.
func Load(path string) (BundlerConfig, error) {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return BundlerConfig{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, DefaultBundlerConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return BundlerConfig{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := fromViper(v)
	if err := Validate(cfg); err != nil {
		return BundlerConfig{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d BundlerConfig) {
	defaults := map[string]interface{}{
		"rpc.network":              string(d.RPC.Network),
		"rpc.url":                  d.RPC.RPCURL,
		"rpc.commitment":           d.RPC.Commitment,
		"rpc.timeout":              d.RPC.Timeout,
		"rpc.retry_attempts":       d.RPC.Retry.MaxAttempts,
		"rpc.retry_backoff":        d.RPC.Retry.InitialBackoff,
		"rpc.retry_max_backoff":    d.RPC.Retry.MaxBackoff,
		"rpc.rate_limit_rps":       d.RPC.RateLimit.RPS,
		"rpc.rate_limit_burst":     d.RPC.RateLimit.Burst,
		"jito.uuid":                d.Jito.UUID,
		"jito.endpoints":           d.Jito.Endpoints,
		"jito.fee":                 d.Jito.FeeSOL,
		"jito.proxy_url":           d.Jito.ProxyURL,
		"jito.proxy_user":          d.Jito.ProxyUser,
		"jito.proxy_pass":          d.Jito.ProxyPass,
		"jito.sub_attempts":        d.Jito.SubAttempts,
		"jito.sub_attempt_delay":   d.Jito.SubAttemptDelay,
		"jito.request_timeout":     d.Jito.RequestTimeout,
		"executor.max_tries":       d.Executor.MaxTries,
		"executor.stagger":         d.Executor.Stagger,
		"executor.deadline":        d.Executor.Deadline,
		"launch.platform":          d.Launch.Platform,
		"launch.metadata_url":      d.Launch.MetadataURL,
		"launch.vanity_suffix":     d.Launch.VanitySuffix,
		"launch.lut_wait":          d.Launch.LUTActivationWait,
		"launch.lut_poll":          d.Launch.LUTPollInterval,
		"launch.retry_attempts":    d.Launch.PhaseRetry.MaxAttempts,
		"launch.retry_backoff":     d.Launch.PhaseRetry.InitialBackoff,
		"launch.retry_max_backoff": d.Launch.PhaseRetry.MaxBackoff,
		"store.mongo_uri":          d.Store.MongoURI,
		"store.database":           d.Store.Database,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

func fromViper(v *viper.Viper) BundlerConfig {
	cfg := DefaultBundlerConfig()

	cfg.RPC.Network = Network(v.GetString("rpc.network"))
	cfg.RPC.RPCURL = v.GetString("rpc.url")
	cfg.RPC.Commitment = v.GetString("rpc.commitment")
	cfg.RPC.Timeout = v.GetDuration("rpc.timeout")
	cfg.RPC.Retry.MaxAttempts = v.GetInt("rpc.retry_attempts")
	cfg.RPC.Retry.Enabled = cfg.RPC.Retry.MaxAttempts > 1
	cfg.RPC.Retry.InitialBackoff = v.GetDuration("rpc.retry_backoff")
	cfg.RPC.Retry.MaxBackoff = v.GetDuration("rpc.retry_max_backoff")
	cfg.RPC.RateLimit.RPS = v.GetFloat64("rpc.rate_limit_rps")
	cfg.RPC.RateLimit.Burst = v.GetInt("rpc.rate_limit_burst")

	cfg.Jito.UUID = v.GetString("jito.uuid")
	cfg.Jito.Endpoints = splitList(v.GetStringSlice("jito.endpoints"))
	cfg.Jito.FeeSOL = v.GetString("jito.fee")
	cfg.Jito.ProxyURL = v.GetString("jito.proxy_url")
	cfg.Jito.ProxyUser = v.GetString("jito.proxy_user")
	cfg.Jito.ProxyPass = v.GetString("jito.proxy_pass")
	cfg.Jito.SubAttempts = v.GetInt("jito.sub_attempts")
	cfg.Jito.SubAttemptDelay = v.GetDuration("jito.sub_attempt_delay")
	cfg.Jito.RequestTimeout = v.GetDuration("jito.request_timeout")

	cfg.Executor.MaxTries = v.GetInt("executor.max_tries")
	cfg.Executor.Stagger = v.GetDuration("executor.stagger")
	cfg.Executor.Deadline = v.GetDuration("executor.deadline")

	cfg.Launch.Platform = v.GetString("launch.platform")
	cfg.Launch.MetadataURL = v.GetString("launch.metadata_url")
	cfg.Launch.VanitySuffix = v.GetString("launch.vanity_suffix")
	cfg.Launch.LUTActivationWait = v.GetDuration("launch.lut_wait")
	cfg.Launch.LUTPollInterval = v.GetDuration("launch.lut_poll")
	cfg.Launch.PhaseRetry.MaxAttempts = v.GetInt("launch.retry_attempts")
	cfg.Launch.PhaseRetry.InitialBackoff = v.GetDuration("launch.retry_backoff")
	cfg.Launch.PhaseRetry.MaxBackoff = v.GetDuration("launch.retry_max_backoff")

	cfg.Store.MongoURI = v.GetString("store.mongo_uri")
	cfg.Store.Database = v.GetString("store.database")
	return cfg
}

// splitList accepts both YAML lists and comma separated env values.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if clean := strings.TrimSpace(part); clean != "" {
				out = append(out, clean)
			}
		}
	}
	return out
}

// Validate rejects configurations the launch pipeline cannot run with.
func Validate(cfg BundlerConfig) error {
	if cfg.RPC.ResolveRPCURL() == "" {
		return errors.New("rpc url is empty")
	}
	if len(cfg.Jito.Endpoints) == 0 {
		return errors.New("jito endpoints are empty")
	}
	for _, endpoint := range cfg.Jito.Endpoints {
		if err := validateURL(endpoint, "http"); err != nil {
			return fmt.Errorf("jito endpoint %q: %w", endpoint, err)
		}
	}
	if cfg.Jito.ProxyURL != "" {
		if err := validateURL(cfg.Jito.ProxyURL, "http"); err != nil {
			return fmt.Errorf("jito proxy: %w", err)
		}
	}
	if cfg.Jito.SubAttempts <= 0 {
		return errors.New("invalid jito sub_attempts")
	}
	if cfg.Executor.MaxTries <= 0 {
		return errors.New("invalid executor max_tries")
	}
	if cfg.Executor.Stagger < 0 {
		return errors.New("invalid executor stagger")
	}
	if cfg.Launch.LUTActivationWait <= 0 {
		return errors.New("invalid launch lut_wait")
	}
	if cfg.Launch.PhaseRetry.MaxAttempts < 0 {
		return errors.New("invalid launch retry_attempts")
	}
	return nil
}

func validateURL(rawURL, protocol string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	return nil
}
