// Package ledger provides the per-style balance ledger.
package ledger

import (
	"context"
	"time"

	"prodledger/internal/core/entity"
	"prodledger/internal/core/id"
)

// Repository defines storage for balances and the applied-delta journal.
// Every write method must be called inside a transaction from tx.Manager.
type Repository interface {
	// GetBalance returns the committed balance, or a zero-valued balance
	// if the style has no row yet.
	GetBalance(ctx context.Context, styleCode string) (entity.StyleBalance, error)

	// LockBalance creates the row if missing and locks it until the
	// surrounding transaction ends. Concurrent callers for the same style
	// block here.
	LockBalance(ctx context.Context, styleCode string) (entity.StyleBalance, error)

	// SaveBalance overwrites the locked row.
	SaveBalance(ctx context.Context, balance entity.StyleBalance) error

	// ListBalances returns balances ordered by style code.
	ListBalances(ctx context.Context, filter BalanceFilter) ([]entity.StyleBalance, error)

	// IsApplied reports whether a delta key is already journaled.
	IsApplied(ctx context.Context, key string) (bool, error)

	// RecordApplied journals a delta key.
	RecordApplied(ctx context.Context, delta AppliedDelta) error
}

// BalanceFilter for filtering balance queries.
type BalanceFilter struct {
	StyleCodes  []string
	StylePrefix string
	ExcludeZero bool
	Limit       int
	Offset      int
}

// AppliedDelta is one journal row. Key is unique.
type AppliedDelta struct {
	Key           string    `db:"delta_key" json:"key"`
	EventID       id.ID     `db:"event_id" json:"eventId"`
	Revision      int       `db:"revision" json:"revision"`
	StyleCode     string    `db:"style_code" json:"styleCode"`
	Direction     string    `db:"direction" json:"direction"`
	TargetDelta   int64     `db:"target_delta" json:"targetDelta"`
	ProducedDelta int64     `db:"produced_delta" json:"producedDelta"`
	AppliedAt     time.Time `db:"applied_at" json:"appliedAt"`
}
