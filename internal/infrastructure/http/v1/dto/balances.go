package dto

import (
	"time"

	"prodledger/internal/core/entity"
)

// ListBalancesQuery holds GET /balances query parameters.
type ListBalancesQuery struct {
	PageQuery
	StyleCodes  []string `form:"styleCode"`
	Prefix      string   `form:"prefix"`
	ExcludeZero bool     `form:"excludeZero"`
}

// BalanceResponse is a style balance. LastUpdated is omitted for styles
// that never had a delta applied.
type BalanceResponse struct {
	StyleCode      string     `json:"styleCode"`
	TotalTarget    int64      `json:"totalTarget"`
	TotalProduced  int64      `json:"totalProduced"`
	CurrentBalance int64      `json:"currentBalance"`
	Version        int64      `json:"version"`
	LastUpdated    *time.Time `json:"lastUpdated,omitempty"`
}

// FromBalance maps a style balance.
func FromBalance(b entity.StyleBalance) BalanceResponse {
	out := BalanceResponse{
		StyleCode:      b.StyleCode,
		TotalTarget:    b.TotalTarget,
		TotalProduced:  b.TotalProduced,
		CurrentBalance: b.CurrentBalance,
		Version:        b.Version,
	}
	if !b.LastUpdated.IsZero() {
		t := b.LastUpdated
		out.LastUpdated = &t
	}
	return out
}

// FromBalances maps a slice of style balances.
func FromBalances(bs []entity.StyleBalance) []BalanceResponse {
	out := make([]BalanceResponse, len(bs))
	for i, b := range bs {
		out[i] = FromBalance(b)
	}
	return out
}
