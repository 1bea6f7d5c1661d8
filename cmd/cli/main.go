package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/TopTalent-23/bundler-bot-backend/pkg/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globalOpts struct {
	configPath string
	rpcURL     string
	commitment string
	jitoUUID   string
	logLevel   string
}

// app is the state every subcommand shares once flags are parsed.
type app struct {
	opts *globalOpts
	cfg  config.BundlerConfig
	log  zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{opts: &globalOpts{}}

	root := &cobra.Command{
		Use:           "bundler",
		Short:         "Launch pump.fun tokens with atomic Jito bundle buys",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.opts.configPath, "config", "", "config file (yaml, json or toml)")
	root.PersistentFlags().StringVar(&a.opts.rpcURL, "rpc-url", "", "RPC endpoint, overrides config")
	root.PersistentFlags().StringVar(&a.opts.commitment, "commitment", "", "RPC commitment level, overrides config")
	root.PersistentFlags().StringVar(&a.opts.jitoUUID, "jito-uuid", "", "block engine uuid, overrides config")
	root.PersistentFlags().StringVar(&a.opts.logLevel, "log-level", "info", "log level (debug|info|warn|error)")

	root.AddCommand(
		newConfigCmd(a),
		newSimulateCmd(),
		newLaunchCmd(a),
		newVanityCmd(a),
		newTipAccountsCmd(a),
		newBundleCmd(a),
		newLUTCmd(a),
	)
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.opts.configPath)
	if err != nil {
		return err
	}
	if a.opts.rpcURL != "" {
		cfg.RPC.RPCURL = a.opts.rpcURL
	}
	if a.opts.commitment != "" {
		cfg.RPC.Commitment = a.opts.commitment
	}
	if a.opts.jitoUUID != "" {
		cfg.Jito.UUID = a.opts.jitoUUID
	}
	a.log = zerolog.New(cmd.ErrOrStderr()).Level(parseLogLevel(a.opts.logLevel)).With().Timestamp().Logger()
	cfg.RPC.Logger = a.log
	a.cfg = cfg
	return nil
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "network=%s\nrpc=%s\ncommitment=%s\n", cfg.RPC.Network, cfg.RPC.ResolveRPCURL(), cfg.RPC.Commitment)
			fmt.Fprintf(out, "jito.endpoints=%s\njito.fee=%s SOL\njito.proxy=%t\n", strings.Join(cfg.Jito.Endpoints, ","), cfg.Jito.FeeSOL, cfg.Jito.ProxyURL != "")
			fmt.Fprintf(out, "executor.max_tries=%d\nexecutor.stagger=%s\n", cfg.Executor.MaxTries, cfg.Executor.Stagger)
			fmt.Fprintf(out, "launch.platform=%s\nlaunch.metadata_url=%s\nlaunch.lut_wait=%s\n", cfg.Launch.Platform, cfg.Launch.MetadataURL, cfg.Launch.LUTActivationWait)
			store := "memory"
			if cfg.Store.MongoURI != "" {
				store = "mongo/" + cfg.Store.Database
			}
			fmt.Fprintf(out, "store=%s\n", store)
			return nil
		},
	}
}

func parseLogLevel(lvl string) zerolog.Level {
	switch strings.ToLower(lvl) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
