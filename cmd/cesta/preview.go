package main

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/fortuna/cesta/internal/sink"
	"github.com/fortuna/cesta/internal/syncjob"
)

func newPreviewCmd(root *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "preview <job>",
		Short: "Fetch and normalize a job and print the rows without writing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(root)
			if err != nil {
				return err
			}
			job, err := cat.Get(args[0])
			if err != nil {
				return err
			}

			e, err := newEnv(false)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, stop := signalContext()
			defer stop()

			runner := syncjob.NewRunner(e.deps, sink.NewMemory(), syncjob.WithDryRun())
			rows, skipped, err := runner.Preview(ctx, job)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, row := range rows {
				if limit > 0 && i >= limit {
					break
				}
				data, err := sonic.ConfigStd.Marshal(row)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
			}
			fmt.Fprintf(out, "%d rows, %d skipped\n", len(rows), len(skipped))
			for _, skipErr := range skipped {
				fmt.Fprintf(out, "  skipped: %v\n", skipErr)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "rows to print (0 prints all)")
	return cmd
}
