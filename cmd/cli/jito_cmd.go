package main

import (
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/TopTalent-23/bundler-bot-backend/pkg/wallet"
)

func newTipAccountsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tip-accounts",
		Short: "Fetch the current block engine tip accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.jitoClient()
			if err != nil {
				return err
			}
			accounts, err := client.RefreshTipAccounts(cmd.Context())
			if err != nil {
				return err
			}
			for _, pk := range accounts {
				fmt.Fprintln(cmd.OutOrStdout(), pk.String())
			}
			return nil
		},
	}
}

func newBundleCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Inspect or submit bundles",
	}
	cmd.AddCommand(newBundleStatusCmd(a), newBundleSubmitCmd(a))
	return cmd
}

func newBundleStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status [bundle-id...]",
		Short: "Show the landing status of bundles",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.jitoClient()
			if err != nil {
				return err
			}
			statuses, err := client.GetBundleStatuses(cmd.Context(), args)
			if err != nil {
				return err
			}
			if len(statuses) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no bundles found")
				return nil
			}
			return printJSON(cmd.OutOrStdout(), statuses)
		},
	}
}

func newBundleSubmitCmd(a *app) *cobra.Command {
	var (
		payerKey  string
		payerFile string
		rawTxs    []string
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Send already signed transactions as one bundle behind a tip transaction",
		RunE: func(cmd *cobra.Command, args []string) error {
			payer, err := loadPayer(payerKey, payerFile)
			if err != nil {
				return err
			}

			txs := make([]*solana.Transaction, 0, len(rawTxs))
			for i, raw := range rawTxs {
				tx, err := decodeTransaction(raw)
				if err != nil {
					return fmt.Errorf("transaction %d: %w", i, err)
				}
				txs = append(txs, tx)
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
			bh, err := chain.GetLatestBlockhash(cmd.Context())
			if err != nil {
				return err
			}

			res := a.executor(chain, relay).ExecuteSigned(cmd.Context(), txs, payer, tip, bh)
			if !res.Confirmed {
				return res.Err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "bundle=%s tip_signature=%s\n", res.BundleID, res.Signature)
			return nil
		},
	}
	cmd.Flags().StringVar(&payerKey, "payer", "", "tip payer private key (base58, JSON array, comma list or mnemonic)")
	cmd.Flags().StringVar(&payerFile, "payer-file", "", "tip payer key file, e.g. a solana-keygen JSON file")
	cmd.Flags().StringArrayVar(&rawTxs, "tx", nil, "signed transaction, base64 or base58; repeatable")
	return cmd
}

func loadPayer(key, file string) (wallet.Local, error) {
	if file != "" {
		return wallet.LoadLocal(file)
	}
	if key == "" {
		key = os.Getenv("BUNDLER_PAYER_KEY")
	}
	if key == "" {
		return wallet.Local{}, fmt.Errorf("--payer, --payer-file or BUNDLER_PAYER_KEY is required")
	}
	payer, err := wallet.NewLocalFromString(key)
	if err != nil {
		return wallet.Local{}, fmt.Errorf("payer: %w", err)
	}
	return payer, nil
}

func decodeTransaction(raw string) (*solana.Transaction, error) {
	if tx, err := solana.TransactionFromBase64(raw); err == nil {
		return tx, nil
	}
	tx, err := solana.TransactionFromBase58(raw)
	if err != nil {
		return nil, fmt.Errorf("neither base64 nor base58: %w", err)
	}
	return tx, nil
}
