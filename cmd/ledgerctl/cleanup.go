package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCleanupCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired idempotency keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := c.context(cmd)
			a, err := c.open(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.Idempotency.CleanupExpired(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d expired keys deleted\n", n)
			return nil
		},
	}
}
