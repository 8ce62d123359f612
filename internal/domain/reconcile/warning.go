package reconcile

import (
	"prodledger/internal/core/id"
)

// WarningCode classifies a non-fatal reconciliation anomaly.
type WarningCode string

const (
	// WarnTargetClamped: a reversal would have driven totalTarget below zero.
	WarnTargetClamped WarningCode = "TARGET_CLAMPED"
	// WarnProducedClamped: a reversal would have driven totalProduced below zero.
	WarnProducedClamped WarningCode = "PRODUCED_CLAMPED"
	// WarnOverproduction: produced exceeds target after an apply.
	WarnOverproduction WarningCode = "OVERPRODUCTION"
	// WarnDriftCorrected: a rebuild found the ledger out of step with the event log.
	WarnDriftCorrected WarningCode = "DRIFT_CORRECTED"
)

// Warning is returned alongside a successful apply. It never aborts.
type Warning struct {
	Code      WarningCode `json:"code"`
	StyleCode string      `json:"styleCode"`
	EventID   id.ID       `json:"eventId"`
	Message   string      `json:"message"`
	Requested int64       `json:"requested"`
	Available int64       `json:"available"`
}
