package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"prodledger/internal/domain/ledger"
)

func newBalanceCmd(c *cli) *cobra.Command {
	var (
		prefix      string
		excludeZero bool
	)

	cmd := &cobra.Command{
		Use:   "balance [style...]",
		Short: "Print style balances",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := c.context(cmd)
			a, err := c.open(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			balances, err := a.Ledger.List(ctx, ledger.BalanceFilter{
				StyleCodes:  args,
				StylePrefix: prefix,
				ExcludeZero: excludeZero,
			})
			if err != nil {
				return err
			}

			if len(balances) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No balances.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(w, "STYLE\tTARGET\tPRODUCED\tBALANCE\tVERSION\t")
			for _, b := range balances {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t\n",
					b.StyleCode, b.TotalTarget, b.TotalProduced, b.CurrentBalance, b.Version)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "only styles whose code starts with prefix")
	cmd.Flags().BoolVar(&excludeZero, "exclude-zero", false, "hide styles with a zero balance")
	return cmd
}
