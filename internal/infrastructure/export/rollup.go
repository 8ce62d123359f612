// Package export renders reports as spreadsheets.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"prodledger/internal/domain/reports"
)

// ContentTypeXLSX is the MIME type of WriteRollup output.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// RollupSheet is the name of the only worksheet.
const RollupSheet = "Rollup"

type column struct {
	heading string
	value   func(c reports.Cell) any
}

var dimensionColumns = map[reports.Dimension]column{
	reports.DimDate:  {"Date", func(c reports.Cell) any { return c.Date.String() }},
	reports.DimLine:  {"Line", func(c reports.Cell) any { return c.LineCode }},
	reports.DimStyle: {"Style", func(c reports.Cell) any { return c.StyleCode }},
	reports.DimStage: {"Stage", func(c reports.Cell) any { return string(c.Stage) }},
	reports.DimHour:  {"Hour", func(c reports.Cell) any { return c.HourLabel }},
}

var measureColumns = []column{
	{"Input", func(c reports.Cell) any { return c.InputQty }},
	{"Output", func(c reports.Cell) any { return c.OutputQty }},
	{"Defects", func(c reports.Cell) any { return c.DefectQty }},
	{"Rework", func(c reports.Cell) any { return c.ReworkQty }},
	{"Efficiency %", func(c reports.Cell) any { return c.Efficiency.InexactFloat64() }},
	{"Defect rate %", func(c reports.Cell) any { return c.DefectRate.InexactFloat64() }},
	{"Rework rate %", func(c reports.Cell) any { return c.ReworkRate.InexactFloat64() }},
	{"Entries", func(c reports.Cell) any { return c.Entries }},
}

// WriteRollup writes r as an XLSX workbook: one heading row, one row per
// cell in rollup order, then a totals row.
func WriteRollup(w io.Writer, r *reports.Rollup) error {
	cols := columnsFor(r.GroupBy)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", RollupSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for i, col := range cols {
		if err := setCell(f, i+1, 1, col.heading); err != nil {
			return err
		}
	}

	row := 2
	for _, cell := range r.Cells {
		for i, col := range cols {
			if err := setCell(f, i+1, row, col.value(cell)); err != nil {
				return err
			}
		}
		row++
	}

	if err := setCell(f, 1, row, "Total"); err != nil {
		return err
	}
	first := len(cols) - len(measureColumns)
	for i, col := range measureColumns {
		if err := setCell(f, first+i+1, row, col.value(r.Totals)); err != nil {
			return err
		}
	}

	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   fmt.Sprintf("Daily rollup %s to %s", r.From, r.To),
		Creator: "prodledger",
	}); err != nil {
		return fmt.Errorf("set doc props: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// columnsFor lists dimension columns in groupBy order, then the measures.
func columnsFor(groupBy []reports.Dimension) []column {
	if len(groupBy) == 0 {
		groupBy = reports.AllDimensions
	}
	cols := make([]column, 0, len(groupBy)+len(measureColumns))
	for _, d := range groupBy {
		if c, ok := dimensionColumns[d]; ok {
			cols = append(cols, c)
		}
	}
	return append(cols, measureColumns...)
}

func setCell(f *excelize.File, col, row int, v any) error {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(RollupSheet, name, v); err != nil {
		return fmt.Errorf("set %s: %w", name, err)
	}
	return nil
}

// Filename returns the attachment name for a rollup.
func Filename(r *reports.Rollup) string {
	if r.From == r.To {
		return fmt.Sprintf("daily-rollup-%s.xlsx", r.From)
	}
	return fmt.Sprintf("daily-rollup-%s_%s.xlsx", r.From, r.To)
}
