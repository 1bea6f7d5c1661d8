package main

import (
	"github.com/spf13/cobra"

	"github.com/TopTalent-23/bundler-bot-backend/pkg/lut"
)

func newLUTCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lut",
		Short: "Inspect address lookup tables",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show [address]",
		Short: "Decode a lookup table account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := parsePubkey("table", args[0])
			if err != nil {
				return err
			}
			data, err := a.rpcClient().GetAccountData(cmd.Context(), table)
			if err != nil {
				return err
			}
			state, err := lut.DecodeState(data)
			if err != nil {
				return err
			}
			authority := ""
			if state.Authority != nil {
				authority = state.Authority.String()
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"address":            table.String(),
				"active":             state.Active(),
				"authority":          authority,
				"deactivation_slot":  state.DeactivationSlot,
				"last_extended_slot": state.LastExtendedSlot,
				"addresses":          state.Addresses,
			})
		},
	})
	return cmd
}
