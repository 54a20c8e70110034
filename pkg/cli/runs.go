package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/storage"
)

func newRunsCmd(opts *options) *cobra.Command {
	var dbPath string
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			db, err := storage.Open(ctx, dbPath)
			if err != nil {
				return err
			}
			defer db.Close()
			runs, err := storage.ListRuns(ctx, db, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATUS\tVARIANT\tSTARTED\tU BY%\tU RY%\tU TREND\tERROR")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f\t%.2f\t%.2f\t%s\n",
					r.ID, r.Status, r.Variant, r.StartedAt, r.UBY, r.URY, r.UTrend, r.Error)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "euq.sqlite", "SQLite run store")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs")
	return cmd
}
