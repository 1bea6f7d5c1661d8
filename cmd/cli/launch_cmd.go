package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/TopTalent-23/bundler-bot-backend/internal/store"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/launch"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/lut"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/metadata"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/vanity"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/wallet"
)

func newLaunchCmd(a *app) *cobra.Command {
	var (
		requestPath string
		imagePath   string
		fundKeyFile string
		devKeyFile  string
	)
	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Create a token and land the initial buys in one bundle",
		Example: `  bundler launch --request launch.json --image logo.png

launch.json:
  {"user_id":"123","name":"Doge","symbol":"DOGE","description":"wow",
   "dev_buy_sol":"1","sub_buy_sol":["0.5","0.5"]}`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if requestPath == "" {
				return fmt.Errorf("--request is required")
			}
			var req launch.Request
			if err := readJSONFile(requestPath, &req); err != nil {
				return err
			}
			if req.Platform == "" {
				req.Platform = a.cfg.Launch.Platform
			}
			if imagePath != "" {
				img, err := os.ReadFile(imagePath)
				if err != nil {
					return fmt.Errorf("read image: %w", err)
				}
				req.Image = img
				req.ImageName = filepath.Base(imagePath)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			if a.cfg.Store.MongoURI == "" && (fundKeyFile == "" || devKeyFile == "") {
				return fmt.Errorf("no store.mongo_uri configured: pass --fund-key-file and --dev-key-file to launch without one")
			}
			st, err := store.Open(ctx, a.cfg.Store)
			if err != nil {
				return err
			}
			defer st.Close(cmd.Context())
			if a.cfg.Store.MongoURI == "" {
				a.log.Warn().Msg("no mongo uri configured, launch records are kept in memory only")
				if err := seedUser(ctx, st, req.UserID, fundKeyFile, devKeyFile); err != nil {
					return err
				}
			}

			tip, err := a.tipLamports()
			if err != nil {
				return err
			}
			relay, err := a.jitoClient()
			if err != nil {
				return err
			}
			chain := a.rpcClient()

			svc := launch.NewService(
				chain,
				a.executor(chain, relay),
				metadata.NewUploader(metadata.Options{
					Endpoint: a.cfg.Launch.MetadataURL,
					Logger:   component(a.log, "metadata"),
				}),
				vanity.NewMintSource(st, component(a.log, "vanity")),
				st,
				launch.Options{
					TipLamports: tip,
					Retry:       launch.RetryPolicyFromConfig(a.cfg.Launch.PhaseRetry),
					LUT: lut.Options{
						MaxWait:      a.cfg.Launch.LUTActivationWait,
						PollInterval: a.cfg.Launch.LUTPollInterval,
						Logger:       component(a.log, "lut"),
					},
					Logger: component(a.log, "launch"),
				},
			)

			out, err := svc.Launch(ctx, req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"mint":         out.Mint.String(),
				"lookup_table": out.LookupTable.String(),
				"signature":    out.Signature.String(),
				"bundle_id":    out.BundleID,
				"round":        out.Round,
				"metadata_uri": out.Record.MetadataURI,
			})
		},
	}
	cmd.Flags().StringVar(&requestPath, "request", "", "path to the launch request JSON")
	cmd.Flags().StringVar(&imagePath, "image", "", "token image uploaded with the metadata")
	cmd.Flags().StringVar(&fundKeyFile, "fund-key-file", "", "fund wallet key file, used when no mongo uri is configured")
	cmd.Flags().StringVar(&devKeyFile, "dev-key-file", "", "dev wallet key file, used when no mongo uri is configured")
	return cmd
}

// seedUser registers the request's user in a store that has no user records of its own.
func seedUser(ctx context.Context, st store.Users, userID, fundFile, devFile string) error {
	fund, err := wallet.LoadLocal(fundFile)
	if err != nil {
		return fmt.Errorf("fund wallet: %w", err)
	}
	dev, err := wallet.LoadLocal(devFile)
	if err != nil {
		return fmt.Errorf("dev wallet: %w", err)
	}
	return st.SaveUser(ctx, &store.User{
		TelegramID: userID,
		FundWallet: keyPair(fund),
		DevWallet:  keyPair(dev),
		IsVerified: true,
	})
}

func keyPair(l wallet.Local) store.KeyPair {
	return store.KeyPair{PublicKey: l.PublicKey().String(), PrivateKey: wallet.EncodeBase58(l.PrivateKey())}
}
