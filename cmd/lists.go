package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var listsCmd = &cobra.Command{
	Use:   "lists",
	Short: "List imported lead lists",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		lists, err := st.ListLists(ctx)
		if err != nil {
			return eris.Wrap(err, "lists")
		}
		if len(lists) == 0 {
			fmt.Fprintln(os.Stderr, "No lists found.")
			return nil
		}

		formatLists(os.Stdout, lists)
		return nil
	},
}

var (
	statusListID int64
	statusOutput string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show enrichment progress of a list",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p, err := st.ListProgress(ctx, statusListID)
		if err != nil {
			return eris.Wrap(err, "status")
		}
		return writeOutput(os.Stdout, statusOutput, p)
	},
}

func init() {
	statusCmd.Flags().Int64Var(&statusListID, "list", 0, "list id (required)")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "json", "output format (json, yaml)")
	_ = statusCmd.MarkFlagRequired("list")

	rootCmd.AddCommand(listsCmd)
	rootCmd.AddCommand(statusCmd)
}
