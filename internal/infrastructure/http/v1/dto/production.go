package dto

import (
	"time"

	"prodledger/internal/core/entity"
	"prodledger/internal/core/shift"
	"prodledger/internal/domain/production"
	"prodledger/internal/domain/reconcile"
)

// QuantitiesRequest carries the four slot counters.
type QuantitiesRequest struct {
	InputQty  int64 `json:"inputQty" binding:"min=0"`
	OutputQty int64 `json:"outputQty" binding:"min=0"`
	DefectQty int64 `json:"defectQty" binding:"min=0"`
	ReworkQty int64 `json:"reworkQty" binding:"min=0"`
}

// ToQuantities maps the request to entity quantities.
func (r QuantitiesRequest) ToQuantities() entity.Quantities {
	return entity.Quantities{
		InputQty:  r.InputQty,
		OutputQty: r.OutputQty,
		DefectQty: r.DefectQty,
		ReworkQty: r.ReworkQty,
	}
}

// AddEntryRequest is the body of POST /production-entries.
type AddEntryRequest struct {
	Date      string `json:"date" binding:"required"`
	HourIndex *int   `json:"hourIndex" binding:"required"`
	LineID    string `json:"lineId" binding:"required"`
	StyleID   string `json:"styleId" binding:"required"`
	Stage     string `json:"stage" binding:"required"`
	QuantitiesRequest
}

// CorrectEntryRequest is the body of PATCH /production-entries/:id.
type CorrectEntryRequest struct {
	QuantitiesRequest
}

// ListEntriesQuery holds GET /production-entries query parameters.
type ListEntriesQuery struct {
	PageQuery
	From    string `form:"from"`
	To      string `form:"to"`
	LineID  string `form:"lineId"`
	StyleID string `form:"styleId"`
	Stage   string `form:"stage"`
}

// EntryResponse is a production entry as returned by the API.
type EntryResponse struct {
	ID        string       `json:"id"`
	Date      string       `json:"date"`
	HourIndex int          `json:"hourIndex"`
	HourLabel string       `json:"hourLabel"`
	LineID    string       `json:"lineId"`
	StyleID   string       `json:"styleId"`
	Stage     entity.Stage `json:"stage"`
	InputQty  int64        `json:"inputQty"`
	OutputQty int64        `json:"outputQty"`
	DefectQty int64        `json:"defectQty"`
	ReworkQty int64        `json:"reworkQty"`
	Version   int          `json:"version"`
	CreatedBy string       `json:"createdBy,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// FromEntry maps a production entry.
func FromEntry(e *entity.ProductionEntry) EntryResponse {
	return EntryResponse{
		ID:        e.ID.String(),
		Date:      e.Date.String(),
		HourIndex: e.HourIndex,
		HourLabel: shift.LabelFor(e.HourIndex),
		LineID:    e.LineID.String(),
		StyleID:   e.StyleID.String(),
		Stage:     e.Stage,
		InputQty:  e.InputQty,
		OutputQty: e.OutputQty,
		DefectQty: e.DefectQty,
		ReworkQty: e.ReworkQty,
		Version:   e.Version,
		CreatedBy: e.CreatedBy,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

// FromEntries maps a slice of production entries.
func FromEntries(es []*entity.ProductionEntry) []EntryResponse {
	out := make([]EntryResponse, len(es))
	for i, e := range es {
		out[i] = FromEntry(e)
	}
	return out
}

// EntryWriteResponse is returned by entry add and correct. Balance is
// absent when the entry's stage does not feed the ledger.
type EntryWriteResponse struct {
	Entry    EntryResponse       `json:"entry"`
	Balance  *BalanceResponse    `json:"balance,omitempty"`
	Warnings []reconcile.Warning `json:"warnings"`
}

// FromEntryResult maps a production service result.
func FromEntryResult(r *production.Result) EntryWriteResponse {
	out := EntryWriteResponse{
		Entry:    FromEntry(r.Entry),
		Warnings: warnings(r.Warnings),
	}
	if r.Balance != nil {
		b := FromBalance(*r.Balance)
		out.Balance = &b
	}
	return out
}
