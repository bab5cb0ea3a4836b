package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the jobs in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(root)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "JOB\tSOURCE\tTABLE\tSTRATEGY\tKEY\tON EMPTY")
			for _, job := range cat.All() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					job.Name, job.Source.Kind, job.Target.Table, job.Target.Strategy,
					strings.Join(job.Target.ConflictKey, ","), job.OnEmpty)
			}
			return w.Flush()
		},
	}
}
