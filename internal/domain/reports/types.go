// Package reports builds daily production rollups from raw entries.
package reports

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"prodledger/internal/core/entity"
	"prodledger/internal/core/types"
)

// Dimension is a rollup grouping key.
type Dimension string

const (
	DimDate  Dimension = "date"
	DimLine  Dimension = "line"
	DimStyle Dimension = "style"
	DimStage Dimension = "stage"
	DimHour  Dimension = "hour"
)

// AllDimensions is the default grouping.
var AllDimensions = []Dimension{DimDate, DimLine, DimStyle, DimStage, DimHour}

// ParseDimensions parses a comma-separated list. Empty input yields all
// dimensions; duplicates are dropped.
func ParseDimensions(s string) ([]Dimension, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return AllDimensions, nil
	}
	seen := make(map[Dimension]bool)
	var out []Dimension
	for _, part := range strings.Split(s, ",") {
		d := Dimension(strings.ToLower(strings.TrimSpace(part)))
		switch d {
		case DimDate, DimLine, DimStyle, DimStage, DimHour:
		default:
			return nil, fmt.Errorf("unknown groupBy dimension %q", part)
		}
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out, nil
}

// Row is one raw production entry joined with its catalog codes.
type Row struct {
	Date      types.Day    `db:"entry_date"`
	LineCode  string       `db:"line_code"`
	StyleCode string       `db:"style_code"`
	Stage     entity.Stage `db:"stage"`
	HourIndex int          `db:"hour_index"`
	InputQty  int64        `db:"input_qty"`
	OutputQty int64        `db:"output_qty"`
	DefectQty int64        `db:"defect_qty"`
	ReworkQty int64        `db:"rework_qty"`
}

// Filter selects rows for a rollup.
type Filter struct {
	From      types.Day
	To        types.Day
	LineCode  string
	StyleCode string
	Stage     entity.Stage
	GroupBy   []Dimension
}

// RowFilter is what the repository needs.
type RowFilter struct {
	From      types.Day
	To        types.Day
	LineCode  string
	StyleCode string
	Stage     entity.Stage
}

// Cell is one group of the rollup. Dimensions outside GroupBy are empty.
type Cell struct {
	Date      types.Day    `json:"date,omitempty"`
	LineCode  string       `json:"lineCode,omitempty"`
	StyleCode string       `json:"styleCode,omitempty"`
	Stage     entity.Stage `json:"stage,omitempty"`
	HourLabel string       `json:"hourLabel,omitempty"`

	InputQty  int64 `json:"inputQty"`
	OutputQty int64 `json:"outputQty"`
	DefectQty int64 `json:"defectQty"`
	ReworkQty int64 `json:"reworkQty"`

	Efficiency decimal.Decimal `json:"efficiency"`
	DefectRate decimal.Decimal `json:"defectRate"`
	ReworkRate decimal.Decimal `json:"reworkRate"`

	Entries int `json:"entries"`
}

// Rollup is the full report.
type Rollup struct {
	From    types.Day   `json:"from"`
	To      types.Day   `json:"to"`
	GroupBy []Dimension `json:"groupBy"`
	Cells   []Cell      `json:"cells"`
	Totals  Cell        `json:"totals"`
}
