// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"prodledger/internal/core/id"
	"prodledger/internal/domain/reconcile"
)

// --- Pagination ---

// PageQuery is the limit/offset pair accepted by list endpoints.
type PageQuery struct {
	Limit  int `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}

// --- List Response ---

// ListResponse wraps list results with pagination.
type ListResponse[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// --- ID Response ---

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}

// --- Error Response ---

// ErrorResponse for error details.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// warnings never serializes as null.
func warnings(ws []reconcile.Warning) []reconcile.Warning {
	if ws == nil {
		return []reconcile.Warning{}
	}
	return ws
}
