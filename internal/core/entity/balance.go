package entity

import (
	"time"
)

// StyleBalance is the running target/produced balance of one style.
//
// Invariant, on every persisted row: CurrentBalance == TotalTarget - TotalProduced.
// Rows are created lazily and never deleted; an absent row reads as zeros.
type StyleBalance struct {
	StyleCode      string    `db:"style_code" json:"styleCode"`
	TotalTarget    int64     `db:"total_target" json:"totalTarget"`
	TotalProduced  int64     `db:"total_produced" json:"totalProduced"`
	CurrentBalance int64     `db:"current_balance" json:"currentBalance"`
	Version        int64     `db:"version" json:"version"`
	LastUpdated    time.Time `db:"last_updated" json:"lastUpdated"`
}

// ZeroBalance returns the value reported for a style with no ledger row.
func ZeroBalance(styleCode string) StyleBalance {
	return StyleBalance{StyleCode: styleCode}
}

// Recompute restores the invariant from the two totals.
func (b *StyleBalance) Recompute() {
	b.CurrentBalance = b.TotalTarget - b.TotalProduced
}

// Consistent reports whether the invariant holds.
func (b StyleBalance) Consistent() bool {
	return b.CurrentBalance == b.TotalTarget-b.TotalProduced
}
