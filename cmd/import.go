package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enrich/internal/leadimport"
)

var (
	importFile string
	importName string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a CSV or XLSX lead file as a new list",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("import"); err != nil {
			return err
		}
		if !leadimport.Supported(importFile) {
			return eris.Errorf("unsupported file %q: only .csv and .xlsx are allowed", importFile)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := leadimport.Import(ctx, st, importFile, leadimport.Options{Name: importName})
		if err != nil {
			return eris.Wrap(err, "import")
		}

		zap.L().Info("import complete",
			zap.Int64("list_id", res.List.ID),
			zap.String("name", res.List.Name),
			zap.Int("imported", res.Imported),
			zap.Int("skipped", res.Skipped),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "path to CSV or XLSX file (required)")
	importCmd.Flags().StringVar(&importName, "name", "", "list name (default: file name)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
