package reports

import (
	"sort"

	"prodledger/internal/core/shift"
	"prodledger/internal/core/types"
)

type cellKey struct {
	date  types.Day
	line  string
	style string
	stage string
	hour  string
}

// Aggregate groups rows by the requested dimensions and derives the rates.
// It is pure: the same rows always give the same rollup, in the same order.
// From and To of the result are left for the caller.
func Aggregate(rows []Row, groupBy []Dimension) Rollup {
	if len(groupBy) == 0 {
		groupBy = AllDimensions
	}
	use := make(map[Dimension]bool, len(groupBy))
	for _, d := range groupBy {
		use[d] = true
	}

	cells := make(map[cellKey]*Cell)
	var totals Cell

	for _, r := range rows {
		var k cellKey
		if use[DimDate] {
			k.date = r.Date
		}
		if use[DimLine] {
			k.line = r.LineCode
		}
		if use[DimStyle] {
			k.style = r.StyleCode
		}
		if use[DimStage] {
			k.stage = string(r.Stage)
		}
		if use[DimHour] {
			k.hour = shift.LabelFor(r.HourIndex)
		}

		c, ok := cells[k]
		if !ok {
			c = &Cell{Date: k.date, LineCode: k.line, StyleCode: k.style, HourLabel: k.hour}
			if use[DimStage] {
				c.Stage = r.Stage
			}
			cells[k] = c
		}
		add(c, r)
		add(&totals, r)
	}

	out := make([]Cell, 0, len(cells))
	for _, c := range cells {
		finish(c)
		out = append(out, *c)
	}
	finish(&totals)

	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })

	return Rollup{
		GroupBy: groupBy,
		Cells:   out,
		Totals:  totals,
	}
}

func add(c *Cell, r Row) {
	c.InputQty += r.InputQty
	c.OutputQty += r.OutputQty
	c.DefectQty += r.DefectQty
	c.ReworkQty += r.ReworkQty
	c.Entries++
}

// finish derives the rates; each is zero when its denominator is zero.
func finish(c *Cell) {
	c.Efficiency = types.Percent(c.OutputQty, c.InputQty)
	c.DefectRate = types.Percent(c.DefectQty, c.OutputQty)
	c.ReworkRate = types.Percent(c.ReworkQty, c.OutputQty)
}

func less(a, b Cell) bool {
	if a.Date != b.Date {
		return a.Date < b.Date
	}
	if a.LineCode != b.LineCode {
		return a.LineCode < b.LineCode
	}
	if a.StyleCode != b.StyleCode {
		return a.StyleCode < b.StyleCode
	}
	if a.Stage != b.Stage {
		return a.Stage.Order() < b.Stage.Order()
	}
	return shift.Order(a.HourLabel) < shift.Order(b.HourLabel)
}
