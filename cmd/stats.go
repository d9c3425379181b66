package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/lead-enrich/internal/cache"
	"github.com/sells-group/lead-enrich/internal/monitoring"
)

var statsOutput string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show enrichment coverage and list health",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		caches, err := cache.NewSet(ctx, cfg.Cache)
		if err != nil {
			return eris.Wrap(err, "open caches")
		}
		defer caches.Close() //nolint:errcheck

		snap, err := monitoring.NewCollector(st, caches).Collect(ctx)
		if err != nil {
			return eris.Wrap(err, "stats")
		}
		return writeOutput(os.Stdout, statsOutput, snap)
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the lookup caches",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show how many keys each cache holds",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		caches, err := cache.NewSet(ctx, cfg.Cache)
		if err != nil {
			return eris.Wrap(err, "open caches")
		}
		defer caches.Close() //nolint:errcheck

		s, err := caches.Stats(ctx)
		if err != nil {
			return eris.Wrap(err, "cache stats")
		}
		return writeOutput(os.Stdout, statsOutput, s)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the lead store schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		// initStore migrates on open.
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		return st.Close()
	},
}

func init() {
	statsCmd.Flags().StringVarP(&statsOutput, "output", "o", "json", "output format (json, yaml)")
	cacheStatsCmd.Flags().StringVarP(&statsOutput, "output", "o", "json", "output format (json, yaml)")

	cacheCmd.AddCommand(cacheStatsCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(migrateCmd)
}
