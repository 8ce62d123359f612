package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"prodledger/internal/app"
	"prodledger/internal/core/apperror"
	"prodledger/internal/core/entity"
	"prodledger/internal/domain"
	"prodledger/internal/domain/catalogs/line"
	"prodledger/internal/domain/catalogs/style"
	"prodledger/internal/domain/production"
	"prodledger/internal/domain/targets"
	"prodledger/internal/infrastructure/storage/postgres"
)

func demoLines() []*line.Line {
	specs := []struct {
		code, name, floor string
		operators         int
	}{
		{"L01", "Line 01", "1", 28},
		{"L02", "Line 02", "1", 30},
		{"L03", "Line 03", "2", 24},
	}
	out := make([]*line.Line, 0, len(specs))
	for _, s := range specs {
		l := line.NewLine(s.code, s.name)
		l.Floor = s.floor
		l.Operators = s.operators
		out = append(out, l)
	}
	return out
}

func demoStyles() []*style.Style {
	specs := []struct {
		code, name, buyer string
		smv               int64
	}{
		{"ST-TEE-01", "Crew neck tee", "NORDWEAR", 1250},
		{"ST-POLO-02", "Pique polo", "NORDWEAR", 1875},
		{"ST-HOOD-03", "Zip hoodie", "URBANLINE", 3420},
	}
	out := make([]*style.Style, 0, len(specs))
	for _, s := range specs {
		st := style.NewStyle(s.code, s.name)
		st.Buyer = s.buyer
		st.SMV = s.smv
		out = append(out, st)
	}
	return out
}

func newSeedCmd(c *cli) *cobra.Command {
	var (
		withEvents bool
		date       string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load demo lines, styles and (optionally) targets and entries",
		Long: `seed bulk-loads the demo catalog with COPY, skipping codes that already
exist. With --events it also posts one target per line and a day of hourly
sewing output through the services, so the ledger is reconciled as usual.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := c.context(cmd)
			a, err := c.open(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			nLines, nStyles, err := seedCatalogs(ctx, a)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "catalog: %d lines, %d styles inserted\n", nLines, nStyles)

			if !withEvents {
				return nil
			}
			if date == "" {
				date = time.Now().UTC().Format("2006-01-02")
			}
			nTargets, nEntries, err := seedEvents(ctx, a, date)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "events: %d targets, %d entries created for %s\n", nTargets, nEntries, date)
			return nil
		},
	}

	cmd.Flags().BoolVar(&withEvents, "events", false, "also create demo targets and production entries")
	cmd.Flags().StringVar(&date, "date", "", "production date for demo events (YYYY-MM-DD, default today UTC)")
	return cmd
}

// seedCatalogs inserts the demo lines and styles that are not present yet.
func seedCatalogs(ctx context.Context, a *app.App) (int64, int64, error) {
	lines, err := missing(ctx, a.Lines.CatalogService, demoLines())
	if err != nil {
		return 0, 0, err
	}
	styles, err := missing(ctx, a.Styles.CatalogService, demoStyles())
	if err != nil {
		return 0, 0, err
	}

	batch := postgres.NewBatchInserter(a.PgTx)
	var nLines, nStyles int64
	err = a.PgTx.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		nLines, err = postgres.CopyStructs(ctx, batch, "cat_lines",
			postgres.ExtractDBColumns[line.Line](), lines)
		if err != nil {
			return err
		}
		nStyles, err = postgres.CopyStructs(ctx, batch, "cat_styles",
			postgres.ExtractDBColumns[style.Style](), styles)
		return err
	})
	if err != nil {
		return 0, 0, fmt.Errorf("seed catalogs: %w", err)
	}
	return nLines, nStyles, nil
}

func missing[T domain.CatalogItem](ctx context.Context, svc *domain.CatalogService[T], items []T) ([]T, error) {
	codes := make([]string, len(items))
	for i, item := range items {
		codes[i] = item.GetCode()
	}
	existing, err := svc.List(ctx, domain.ListFilter{Codes: codes, Limit: len(codes)})
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(existing.Items))
	for _, item := range existing.Items {
		have[item.GetCode()] = true
	}

	var out []T
	for _, item := range items {
		if !have[item.GetCode()] {
			out = append(out, item)
		}
	}
	return out, nil
}

// seedEvents posts one target per (line, style) pair on the diagonal and a
// sewing entry for each working hour. Slots that already exist are skipped.
func seedEvents(ctx context.Context, a *app.App, date string) (int, int, error) {
	var nTargets, nEntries int

	demoL, demoS := demoLines(), demoStyles()
	for i := range demoL {
		l, err := a.Lines.GetByCode(ctx, demoL[i].Code)
		if err != nil {
			return nTargets, nEntries, err
		}
		s, err := a.Styles.GetByCode(ctx, demoS[i].Code)
		if err != nil {
			return nTargets, nEntries, err
		}

		const hourly = 60
		_, err = a.Targets.Create(ctx, targets.CreateInput{
			LineCode:         l.Code,
			StyleCode:        s.Code,
			Date:             date,
			LineTarget:       hourly * 10,
			HourlyProduction: hourly,
		})
		switch {
		case err == nil:
			nTargets++
		case !apperror.IsConflict(err):
			return nTargets, nEntries, fmt.Errorf("target %s/%s: %w", l.Code, s.Code, err)
		}

		for hour := 8; hour < 18; hour++ {
			out := int64(hourly - 5 + (hour*7)%11)
			_, err := a.Production.Add(ctx, production.AddInput{
				Date:      date,
				HourIndex: hour,
				LineID:    l.ID,
				StyleID:   s.ID,
				Stage:     entity.StageSewing,
				Quantities: entity.Quantities{
					InputQty:  out + 2,
					OutputQty: out,
					DefectQty: int64(hour % 3),
				},
			})
			switch {
			case err == nil:
				nEntries++
			case !apperror.IsConflict(err):
				return nTargets, nEntries, fmt.Errorf("entry %s/%s hour %d: %w", l.Code, s.Code, hour, err)
			}
		}
	}
	return nTargets, nEntries, nil
}
