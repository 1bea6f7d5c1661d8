package main

import (
	"fmt"
	"math/big"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/TopTalent-23/bundler-bot-backend/pkg/curve"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/launch"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/types"
)

func newSimulateCmd() *cobra.Command {
	var (
		dev  string
		subs []string
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Dry-run the initial buys against a fresh bonding curve",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := launch.Request{UserID: "simulate", Name: "simulate", Symbol: "SIM", DevBuySOL: dev, SubBuySOL: subs}
			amounts, err := req.Validate()
			if err != nil {
				return err
			}
			allocs, state, err := curve.Simulate(amounts.All())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "WALLET\tSOL\tTOKENS")
			for _, a := range allocs {
				label := "dev"
				if a.Index > 0 {
					label = fmt.Sprintf("sub-%d", a.Index)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", label, types.FormatLamports(a.Lamports), formatTokens(a.Tokens))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			total := curve.TotalTokens(allocs)
			fmt.Fprintf(cmd.OutOrStdout(), "total_sol=%s total_tokens=%s remaining_real_tokens=%s\n",
				types.FormatLamports(amounts.Total()), formatTokens(total), formatTokens(state.RealTokenReserves()))
			return nil
		},
	}
	cmd.Flags().StringVar(&dev, "dev", "0", "developer buy in SOL")
	cmd.Flags().StringSliceVar(&subs, "sub", nil, "sub wallet buys in SOL, repeatable or comma separated")
	return cmd
}

// formatTokens renders raw token units with six decimals.
func formatTokens(raw *big.Int) string {
	whole, frac := new(big.Int).QuoRem(raw, curve.TokenDecimalsFactor, new(big.Int))
	return fmt.Sprintf("%s.%06d", whole, frac.Int64())
}
