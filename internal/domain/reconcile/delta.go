// Package reconcile turns target and production events into ledger deltas.
package reconcile

import (
	"fmt"

	"prodledger/internal/core/apperror"
	"prodledger/internal/core/id"
)

// Direction of a delta.
type Direction string

const (
	// DirectionApply adds the magnitudes (event created).
	DirectionApply Direction = "APPLY"
	// DirectionReverse subtracts them (event deleted).
	DirectionReverse Direction = "REVERSE"
)

// IsValid reports a known direction.
func (d Direction) IsValid() bool {
	return d == DirectionApply || d == DirectionReverse
}

// Inverse returns the opposite direction.
func (d Direction) Inverse() Direction {
	if d == DirectionApply {
		return DirectionReverse
	}
	return DirectionApply
}

// Delta is one signed change to a style balance. Magnitudes are always
// non-negative; Direction carries the sign.
type Delta struct {
	EventID       id.ID     `json:"eventId"`
	Revision      int       `json:"revision"`
	StyleCode     string    `json:"styleCode"`
	TargetDelta   int64     `json:"targetDelta"`
	ProducedDelta int64     `json:"producedDelta"`
	Direction     Direction `json:"direction"`
}

// Key identifies the delta for idempotence. Applying the same key twice is
// a no-op the second time.
func (d Delta) Key() string {
	return fmt.Sprintf("%s:%d:%s", d.EventID, d.Revision, d.Direction)
}

// Validate checks the delta before any ledger access.
func (d Delta) Validate() error {
	if id.IsNil(d.EventID) {
		return apperror.NewValidation("eventId is required").WithDetail("field", "eventId")
	}
	if d.StyleCode == "" {
		return apperror.NewValidation("styleCode is required").WithDetail("field", "styleCode")
	}
	if !d.Direction.IsValid() {
		return apperror.NewValidation("direction must be APPLY or REVERSE").
			WithDetail("field", "direction").
			WithDetail("value", string(d.Direction))
	}
	if d.TargetDelta < 0 || d.ProducedDelta < 0 {
		return apperror.NewValidation("delta magnitudes must not be negative").
			WithDetail("targetDelta", d.TargetDelta).
			WithDetail("producedDelta", d.ProducedDelta)
	}
	if d.Revision < 0 {
		return apperror.NewValidation("revision must not be negative").WithDetail("field", "revision")
	}
	return nil
}
