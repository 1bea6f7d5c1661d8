package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"github.com/TopTalent-23/bundler-bot-backend/pkg/bundle"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/jito"
	sdkrpc "github.com/TopTalent-23/bundler-bot-backend/pkg/rpc"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/txbuilder"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/types"
)

// parsePubkey converts base58 string to PublicKey.
func parsePubkey(label, v string) (solana.PublicKey, error) {
	if v == "" {
		return solana.PublicKey{}, fmt.Errorf("%s is required", label)
	}
	pk, err := solana.PublicKeyFromBase58(v)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%s invalid pubkey: %w", label, err)
	}
	return pk, nil
}

func readJSONFile(path string, v interface{}) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(content, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	bz, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", bz)
	return err
}

func (a *app) rpcClient() *sdkrpc.Client {
	return sdkrpc.NewClient(a.cfg.RPC)
}

func (a *app) jitoClient() (*jito.Client, error) {
	return jito.NewClient(a.cfg.Jito, component(a.log, "jito"))
}

func (a *app) tipLamports() (uint64, error) {
	tip, err := types.ParseSOL(a.cfg.Jito.FeeSOL)
	if err != nil {
		return 0, fmt.Errorf("jito fee: %w", err)
	}
	if !tip.IsUint64() {
		return 0, types.NewValidationError("jito.fee", "exceeds u64 lamports")
	}
	return tip.Uint64(), nil
}

func (a *app) executor(chain bundle.Chain, relay bundle.Relay) *bundle.Executor {
	return bundle.NewExecutor(chain, relay, bundle.Options{
		MaxTries:     a.cfg.Executor.MaxTries,
		Stagger:      a.cfg.Executor.Stagger,
		Deadline:     a.cfg.Executor.Deadline,
		Confirmation: txbuilder.ConfirmationConfirmed,
		Logger:       component(a.log, "executor"),
	})
}

func component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
