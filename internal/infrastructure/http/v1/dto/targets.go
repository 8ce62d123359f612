package dto

import (
	"time"

	"prodledger/internal/core/entity"
	"prodledger/internal/domain/reconcile"
	"prodledger/internal/domain/targets"
)

// CreateTargetRequest is the body of POST /targets and PUT /targets/:id.
type CreateTargetRequest struct {
	LineCode         string `json:"lineCode" binding:"required"`
	StyleCode        string `json:"styleCode" binding:"required"`
	Date             string `json:"date" binding:"required"`
	LineTarget       int64  `json:"lineTarget" binding:"required"`
	HourlyProduction int64  `json:"hourlyProduction"`
}

// ToInput maps the request to the service input.
func (r CreateTargetRequest) ToInput() targets.CreateInput {
	return targets.CreateInput{
		LineCode:         r.LineCode,
		StyleCode:        r.StyleCode,
		Date:             r.Date,
		LineTarget:       r.LineTarget,
		HourlyProduction: r.HourlyProduction,
	}
}

// ListTargetsQuery holds GET /targets query parameters.
type ListTargetsQuery struct {
	PageQuery
	From      string `form:"from"`
	To        string `form:"to"`
	LineCode  string `form:"lineCode"`
	StyleCode string `form:"styleCode"`
}

// TargetResponse is a target as returned by the API.
type TargetResponse struct {
	ID               string    `json:"id"`
	LineCode         string    `json:"lineCode"`
	StyleCode        string    `json:"styleCode"`
	Date             string    `json:"date"`
	LineTarget       int64     `json:"lineTarget"`
	HourlyProduction int64     `json:"hourlyProduction"`
	CreatedBy        string    `json:"createdBy,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// FromTarget maps a target event.
func FromTarget(t *entity.TargetEvent) TargetResponse {
	return TargetResponse{
		ID:               t.ID.String(),
		LineCode:         t.LineCode,
		StyleCode:        t.StyleCode,
		Date:             t.Date.String(),
		LineTarget:       t.LineTarget,
		HourlyProduction: t.HourlyProduction,
		CreatedBy:        t.CreatedBy,
		CreatedAt:        t.CreatedAt,
	}
}

// FromTargets maps a slice of target events.
func FromTargets(ts []*entity.TargetEvent) []TargetResponse {
	out := make([]TargetResponse, len(ts))
	for i, t := range ts {
		out[i] = FromTarget(t)
	}
	return out
}

// TargetWriteResponse is returned by target create, replace and delete.
type TargetWriteResponse struct {
	Target     *TargetResponse     `json:"target,omitempty"`
	PreviousID string              `json:"previousId,omitempty"`
	Balance    BalanceResponse     `json:"balance"`
	Warnings   []reconcile.Warning `json:"warnings"`
}

// FromTargetResult maps a target service result.
func FromTargetResult(r *targets.Result) TargetWriteResponse {
	out := TargetWriteResponse{
		Balance:  FromBalance(r.Balance),
		Warnings: warnings(r.Warnings),
	}
	if r.Target != nil {
		t := FromTarget(r.Target)
		out.Target = &t
	}
	if r.Previous != nil {
		out.PreviousID = r.Previous.ID.String()
	}
	return out
}

// BulkDeleteRequest is the body of POST /targets/bulk-delete.
type BulkDeleteRequest struct {
	IDs []string `json:"ids" binding:"required,min=1,max=1000"`
}

// BulkDeleteResponse reports reconciled and deleted counts separately; they
// differ when some ids were already gone or failed.
type BulkDeleteResponse struct {
	Requested       int                    `json:"requested"`
	ReconciledCount int                    `json:"reconciledCount"`
	DeletedCount    int64                  `json:"deletedCount"`
	Items           []reconcile.BatchItem  `json:"items"`
	Errors          []reconcile.BatchError `json:"errors"`
	Warnings        []reconcile.Warning    `json:"warnings"`
}

// FromBatchReport maps a bulk coordinator report.
func FromBatchReport(r reconcile.BatchReport) BulkDeleteResponse {
	out := BulkDeleteResponse{
		Requested:       r.Requested,
		ReconciledCount: r.ReconciledCount,
		DeletedCount:    r.DeletedCount,
		Items:           r.Items,
		Errors:          r.Errors,
		Warnings:        warnings(r.Warnings),
	}
	if out.Items == nil {
		out.Items = []reconcile.BatchItem{}
	}
	if out.Errors == nil {
		out.Errors = []reconcile.BatchError{}
	}
	return out
}
