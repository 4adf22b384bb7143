package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gramy/gramy/internal/platform/db"
	"github.com/gramy/gramy/migrations"
)

func newMigrateCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := db.New(cmd.Context(), opts.PGDSN, 1)
			if err != nil {
				return err
			}
			defer pool.Close()
			applied, err := migrations.Apply(cmd.Context(), pool)
			for _, name := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
			}
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			}
			return nil
		},
	}
}
