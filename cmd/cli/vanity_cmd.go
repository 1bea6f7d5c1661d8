package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/TopTalent-23/bundler-bot-backend/internal/store"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/vanity"
)

func newVanityCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vanity",
		Short: "Manage the pool of pre-generated vanity mints",
	}
	cmd.AddCommand(newVanityFillCmd(a), newVanityCountCmd(a), newVanityEstimateCmd())
	return cmd
}

func newVanityFillCmd(a *app) *cobra.Command {
	var (
		count           int
		prefix, suffix  string
		workers         int
		caseInsensitive bool
	)
	cmd := &cobra.Command{
		Use:   "fill",
		Short: "Generate vanity mints and add them to the pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			if count <= 0 {
				return fmt.Errorf("--count must be positive")
			}
			if !cmd.Flags().Changed("suffix") && prefix == "" {
				suffix = a.cfg.Launch.VanitySuffix
			}
			if a.cfg.Store.MongoURI == "" {
				return fmt.Errorf("vanity fill needs store.mongo_uri; an in-memory pool would be discarded on exit")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			st, err := store.Open(ctx, a.cfg.Store)
			if err != nil {
				return err
			}
			defer st.Close(cmd.Context())

			a.log.Info().
				Str("prefix", prefix).
				Str("suffix", suffix).
				Uint64("expected_attempts", vanity.EstimateDifficulty(len(prefix), len(suffix))).
				Msg("filling vanity pool")
			n, err := vanity.Fill(ctx, st, count, vanity.Options{
				Prefix:          prefix,
				Suffix:          suffix,
				Workers:         workers,
				CaseInsensitive: caseInsensitive,
			}, component(a.log, "vanity"))
			fmt.Fprintf(cmd.OutOrStdout(), "stored=%d\n", n)
			return err
		},
	}
	cmd.Flags().IntVar(&count, "count", 1, "number of mints to generate")
	cmd.Flags().StringVar(&prefix, "prefix", "", "required address prefix")
	cmd.Flags().StringVar(&suffix, "suffix", "", "required address suffix (default from config)")
	cmd.Flags().IntVar(&workers, "workers", 0, "search goroutines (default NumCPU)")
	cmd.Flags().BoolVar(&caseInsensitive, "case-insensitive", false, "match ignoring case")
	return cmd
}

func newVanityCountCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Show how many unclaimed mints the pool holds",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(cmd.Context(), a.cfg.Store)
			if err != nil {
				return err
			}
			defer st.Close(cmd.Context())
			n, err := st.CountVanity(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "available=%d\n", n)
			return nil
		},
	}
}

func newVanityEstimateCmd() *cobra.Command {
	var prefix, suffix string
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate the attempts needed for a pattern",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "expected_attempts=%d\n", vanity.EstimateDifficulty(len(prefix), len(suffix)))
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "address prefix")
	cmd.Flags().StringVar(&suffix, "suffix", "", "address suffix")
	return cmd
}
