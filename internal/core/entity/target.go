package entity

import (
	"context"

	"prodledger/internal/core/apperror"
	"prodledger/internal/core/types"
)

// TargetEvent is the planned output for one (line, style, day).
// Events are immutable: an edit is a delete of the old event and a create
// of a new one.
type TargetEvent struct {
	BaseEntity

	LineCode  string    `db:"line_code" json:"lineCode"`
	StyleCode string    `db:"style_code" json:"styleCode"`
	Date      types.Day `db:"target_date" json:"date"`

	// LineTarget is the planned piece count for the day.
	LineTarget int64 `db:"line_target" json:"lineTarget"`

	// HourlyProduction is the planned per-hour rate. It feeds totalProduced
	// only under the "target" produced-source policy.
	HourlyProduction int64 `db:"hourly_production" json:"hourlyProduction"`

	// CreatedBy is the actor id, kept for audit.
	CreatedBy string `db:"created_by" json:"createdBy,omitempty"`
}

// NewTargetEvent creates a TargetEvent with generated ID.
func NewTargetEvent(lineCode, styleCode string, date types.Day, lineTarget, hourly int64) *TargetEvent {
	return &TargetEvent{
		BaseEntity:       NewBaseEntity(),
		LineCode:         NormalizeCode(lineCode),
		StyleCode:        NormalizeCode(styleCode),
		Date:             date,
		LineTarget:       lineTarget,
		HourlyProduction: hourly,
	}
}

// Validate implements Validatable interface.
func (t *TargetEvent) Validate(ctx context.Context) error {
	if err := ValidateCode("lineCode", t.LineCode); err != nil {
		return err
	}
	if err := ValidateCode("styleCode", t.StyleCode); err != nil {
		return err
	}
	if err := t.Date.Validate(); err != nil {
		return apperror.NewValidation("date must be YYYY-MM-DD").
			WithDetail("field", "date").
			WithCause(err)
	}
	if t.LineTarget <= 0 {
		return apperror.NewValidation("lineTarget must be positive").
			WithDetail("field", "lineTarget").
			WithDetail("value", t.LineTarget)
	}
	if t.HourlyProduction < 0 {
		return apperror.NewValidation("hourlyProduction must not be negative").
			WithDetail("field", "hourlyProduction").
			WithDetail("value", t.HourlyProduction)
	}
	return nil
}
