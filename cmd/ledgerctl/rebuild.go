package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"prodledger/internal/app"
	"prodledger/internal/domain"
	"prodledger/internal/domain/ledger"
)

func newRebuildCmd(c *cli) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "rebuild [style...]",
		Short: "Recompute style balances from the event log",
		Long: `rebuild recomputes totalTarget and totalProduced for each style from the
stored targets and production entries, and corrects the ledger row when it
drifted. With --all every style known to the catalog or the ledger is rebuilt.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return fmt.Errorf("name at least one style or pass --all")
			}

			ctx := c.context(cmd)
			a, err := c.open(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			styles := args
			if all {
				if styles, err = allStyleCodes(ctx, a); err != nil {
					return err
				}
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STYLE\tTARGET\tPRODUCED\tBALANCE\tCHANGED")

			var failed int
			for _, code := range styles {
				res, err := a.Engine.Rebuild(ctx, code)
				if err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", code, err)
					continue
				}
				b := res.Balance
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%t\n",
					b.StyleCode, b.TotalTarget, b.TotalProduced, b.CurrentBalance, res.Applied)
				for _, warn := range res.Warnings {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s %s\n", code, warn.Code, warn.Message)
				}
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d styles failed", failed, len(styles))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "rebuild every style")
	return cmd
}

// allStyleCodes returns catalog style codes plus any codes that only exist
// in the ledger.
func allStyleCodes(ctx context.Context, a *app.App) ([]string, error) {
	seen := make(map[string]bool)
	var codes []string
	add := func(code string) {
		if !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}

	filter := domain.ListFilter{Limit: 500}
	for {
		page, err := a.Styles.List(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("list styles: %w", err)
		}
		for _, s := range page.Items {
			add(s.Code)
		}
		filter.Offset += len(page.Items)
		if len(page.Items) < filter.Limit {
			break
		}
	}

	bf := ledger.BalanceFilter{Limit: 1000}
	for {
		balances, err := a.Ledger.List(ctx, bf)
		if err != nil {
			return nil, fmt.Errorf("list balances: %w", err)
		}
		for _, b := range balances {
			add(b.StyleCode)
		}
		bf.Offset += len(balances)
		if len(balances) < bf.Limit {
			break
		}
	}
	return codes, nil
}
