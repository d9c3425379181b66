package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/lead-enrich/internal/model"
)

var enrichListID int64

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich a list in the foreground",
	Long:  "Runs the URL, social and email stages over a list. Interrupting commits what was found so far; run it again to resume.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "enrich", nil)
		if err != nil {
			return err
		}
		defer env.Close()

		l, err := env.Store.GetList(ctx, enrichListID)
		if err != nil {
			return eris.Wrap(err, "enrich")
		}
		if l.EnrichmentStatus.IsEnriching() {
			return eris.Errorf("list %d is already %s", l.ID, l.EnrichmentStatus)
		}

		env.Pipeline.Run(ctx, l.ID)

		p, err := env.Store.ListProgress(context.WithoutCancel(ctx), l.ID)
		if err != nil {
			return eris.Wrap(err, "enrich: read progress")
		}
		if err := writeOutput(os.Stdout, "json", p); err != nil {
			return err
		}
		if p.Status != model.StatusComplete {
			return eris.Errorf("list %d ended with status %s", l.ID, p.Status)
		}
		return nil
	},
}

func init() {
	enrichCmd.Flags().Int64Var(&enrichListID, "list", 0, "list id (required)")
	_ = enrichCmd.MarkFlagRequired("list")
	rootCmd.AddCommand(enrichCmd)
}
