package entity

import (
	"context"
	"time"

	"prodledger/internal/core/apperror"
	"prodledger/internal/core/id"
	"prodledger/internal/core/types"
)

// Stage is a production stage.
type Stage string

const (
	StageCutting   Stage = "CUTTING"
	StageSewing    Stage = "SEWING"
	StageFinishing Stage = "FINISHING"
)

// Stages lists stages in floor order.
var Stages = []Stage{StageCutting, StageSewing, StageFinishing}

// IsValid reports a known stage.
func (s Stage) IsValid() bool {
	switch s {
	case StageCutting, StageSewing, StageFinishing:
		return true
	}
	return false
}

// Order returns the floor position of the stage; unknown stages sort last.
func (s Stage) Order() int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return len(Stages)
}

// Quantities are the four counters recorded per slot.
type Quantities struct {
	InputQty  int64 `db:"input_qty" json:"inputQty"`
	OutputQty int64 `db:"output_qty" json:"outputQty"`
	DefectQty int64 `db:"defect_qty" json:"defectQty"`
	ReworkQty int64 `db:"rework_qty" json:"reworkQty"`
}

// Validate rejects negative counters.
func (q Quantities) Validate() error {
	fields := []struct {
		name string
		v    int64
	}{
		{"inputQty", q.InputQty},
		{"outputQty", q.OutputQty},
		{"defectQty", q.DefectQty},
		{"reworkQty", q.ReworkQty},
	}
	for _, f := range fields {
		if f.v < 0 {
			return apperror.NewValidation(f.name+" must not be negative").
				WithDetail("field", f.name).
				WithDetail("value", f.v)
		}
	}
	return nil
}

// ProductionEntry is the output of one line/style/stage in one hour.
// Unique per (date, hourIndex, lineId, styleId, stage).
type ProductionEntry struct {
	BaseEntity

	Date      types.Day `db:"entry_date" json:"date"`
	HourIndex int       `db:"hour_index" json:"hourIndex"`
	LineID    id.ID     `db:"line_id" json:"lineId"`
	StyleID   id.ID     `db:"style_id" json:"styleId"`
	Stage     Stage     `db:"stage" json:"stage"`

	Quantities

	// Version starts at 1 and is bumped by every correction.
	Version   int       `db:"version" json:"version"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
	CreatedBy string    `db:"created_by" json:"createdBy,omitempty"`
}

// NewProductionEntry creates an entry with generated ID at version 1.
func NewProductionEntry(date types.Day, hour int, lineID, styleID id.ID, stage Stage, q Quantities) *ProductionEntry {
	base := NewBaseEntity()
	return &ProductionEntry{
		BaseEntity: base,
		Date:       date,
		HourIndex:  hour,
		LineID:     lineID,
		StyleID:    styleID,
		Stage:      stage,
		Quantities: q,
		Version:    1,
		UpdatedAt:  base.CreatedAt,
	}
}

// Correct replaces the quantities and bumps the version.
func (p *ProductionEntry) Correct(q Quantities) {
	p.Quantities = q
	p.Version++
	p.UpdatedAt = time.Now().UTC()
}

// Validate implements Validatable interface.
func (p *ProductionEntry) Validate(ctx context.Context) error {
	if err := p.Date.Validate(); err != nil {
		return apperror.NewValidation("date must be YYYY-MM-DD").
			WithDetail("field", "date").
			WithCause(err)
	}
	if p.HourIndex < 0 || p.HourIndex > 23 {
		return apperror.NewValidation("hourIndex must be within 0..23").
			WithDetail("field", "hourIndex").
			WithDetail("value", p.HourIndex)
	}
	if id.IsNil(p.LineID) {
		return apperror.NewValidation("lineId is required").WithDetail("field", "lineId")
	}
	if id.IsNil(p.StyleID) {
		return apperror.NewValidation("styleId is required").WithDetail("field", "styleId")
	}
	if !p.Stage.IsValid() {
		return apperror.NewValidation("stage must be one of CUTTING, SEWING, FINISHING").
			WithDetail("field", "stage").
			WithDetail("value", string(p.Stage))
	}
	return p.Quantities.Validate()
}
