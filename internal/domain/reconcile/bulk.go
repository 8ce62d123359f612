package reconcile

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"prodledger/internal/core/apperror"
	"prodledger/internal/core/entity"
	"prodledger/internal/core/id"
	"prodledger/internal/core/tx"
	"prodledger/pkg/logger"
)

// MaxBatchSize caps one bulk request.
const MaxBatchSize = 1000

// TargetStore is the part of the target repository the coordinator needs.
type TargetStore interface {
	GetByIDs(ctx context.Context, ids []id.ID) ([]*entity.TargetEvent, error)
	DeleteMany(ctx context.Context, ids []id.ID) (int64, error)
}

// ItemStatus is the per-id outcome of a bulk request.
type ItemStatus string

const (
	ItemReconciled ItemStatus = "RECONCILED"
	ItemNotFound   ItemStatus = "NOT_FOUND"
	ItemFailed     ItemStatus = "FAILED"
)

// BatchItem reports one requested id.
type BatchItem struct {
	ID        id.ID      `json:"id"`
	StyleCode string     `json:"styleCode,omitempty"`
	Status    ItemStatus `json:"status"`
	Applied   bool       `json:"applied"`
}

// BatchError is a per-item failure or notice.
type BatchError struct {
	ID     id.ID  `json:"id"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// BatchReport is the outcome of a bulk delete. ReconciledCount counts ids
// whose ledger side is settled (missing ids count as no-op successes);
// DeletedCount is what the store actually removed.
type BatchReport struct {
	Requested       int          `json:"requested"`
	ReconciledCount int          `json:"reconciledCount"`
	DeletedCount    int64        `json:"deletedCount"`
	Items           []BatchItem  `json:"items"`
	Errors          []BatchError `json:"errors"`
	Warnings        []Warning    `json:"warnings,omitempty"`
}

// Coordinator deletes targets in bulk: every target is reconciled in its own
// transaction, styles in parallel and each style's items in request order.
type Coordinator struct {
	engine      *Engine
	store       TargetStore
	txm         tx.Manager
	concurrency int
}

// NewCoordinator creates a bulk coordinator. concurrency bounds the number of
// styles reconciled at once.
func NewCoordinator(engine *Engine, store TargetStore, txm tx.Manager, concurrency int) *Coordinator {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Coordinator{
		engine:      engine,
		store:       store,
		txm:         txm,
		concurrency: concurrency,
	}
}

type slot struct {
	index  int
	target *entity.TargetEvent
}

// DeleteTargets reverses and deletes the given targets. All events are loaded
// before anything is deleted. Only targets whose reversal succeeded are
// deleted. The returned error is non-nil only when the load or the final
// delete fails; per-item failures are reported in BatchReport.Errors. A
// failed request can be retried as-is: reversals already applied are skipped.
//
// ctx must not carry a transaction: items run on separate goroutines.
func (c *Coordinator) DeleteTargets(ctx context.Context, ids []id.ID) (BatchReport, error) {
	ids = id.Unique(ids)
	report := BatchReport{
		Requested: len(ids),
		Items:     make([]BatchItem, len(ids)),
		Errors:    []BatchError{},
	}
	if len(ids) == 0 {
		return report, nil
	}
	if len(ids) > MaxBatchSize {
		return report, apperror.NewValidation(fmt.Sprintf("at most %d ids per request", MaxBatchSize)).
			WithDetail("count", len(ids))
	}

	targets, err := c.store.GetByIDs(ctx, ids)
	if err != nil {
		return report, apperror.Persistence("bulk.load", err)
	}
	byID := make(map[id.ID]*entity.TargetEvent, len(targets))
	for _, t := range targets {
		byID[t.ID] = t
	}

	// Group by style, keeping request order inside each group.
	groups := make(map[string][]slot)
	var styles []string
	for i, eid := range ids {
		t, ok := byID[eid]
		if !ok {
			report.Items[i] = BatchItem{ID: eid, Status: ItemNotFound}
			continue
		}
		if _, seen := groups[t.StyleCode]; !seen {
			styles = append(styles, t.StyleCode)
		}
		groups[t.StyleCode] = append(groups[t.StyleCode], slot{index: i, target: t})
	}
	sort.Strings(styles)

	warnings := make([][]Warning, len(ids))
	itemErrs := make([]error, len(ids))
	policy := c.engine.Policy()

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for _, style := range styles {
		items := groups[style]
		g.Go(func() error {
			ctx := logger.WithFields(ctx, "style_code", style, "bulk_items", len(items))
			for _, s := range items {
				res, err := c.engine.Apply(ctx, policy.ForTarget(s.target, DirectionReverse))
				item := BatchItem{ID: s.target.ID, StyleCode: s.target.StyleCode}
				if err != nil {
					item.Status = ItemFailed
					itemErrs[s.index] = err
				} else {
					item.Status = ItemReconciled
					item.Applied = res.Applied
					warnings[s.index] = res.Warnings
				}
				report.Items[s.index] = item
			}
			return nil
		})
	}
	_ = g.Wait()

	var deletable []id.ID
	var lockStyles []string
	for i, item := range report.Items {
		switch item.Status {
		case ItemReconciled:
			report.ReconciledCount++
			deletable = append(deletable, item.ID)
			lockStyles = append(lockStyles, item.StyleCode)
			report.Warnings = append(report.Warnings, warnings[i]...)
		case ItemNotFound:
			report.ReconciledCount++
			report.Errors = append(report.Errors, BatchError{
				ID:     item.ID,
				Code:   apperror.CodeNotFound,
				Reason: "target not found; nothing to reconcile",
			})
		case ItemFailed:
			report.Errors = append(report.Errors, BatchError{
				ID:     item.ID,
				Code:   apperror.CodeOf(itemErrs[i]),
				Reason: itemErrs[i].Error(),
			})
		}
	}

	if len(deletable) > 0 {
		// Rebuild reads the targets under the style row lock, so holding the
		// same locks here keeps it from seeing reversed rows not yet deleted.
		err := c.txm.RunInTransaction(ctx, func(ctx context.Context) error {
			if err := c.engine.LockStyles(ctx, lockStyles...); err != nil {
				return err
			}
			n, err := c.store.DeleteMany(ctx, deletable)
			if err != nil {
				return err
			}
			report.DeletedCount = n
			return nil
		})
		if err != nil {
			report.DeletedCount = 0
			err = apperror.Persistence("bulk.delete", err)
			logger.Error(ctx, "bulk delete failed after reconciliation",
				"reconciled", report.ReconciledCount,
				"error", err,
			)
			c.engine.observer.BatchFinished(report.Requested, report.ReconciledCount, 0)
			return report, err
		}
	}

	c.engine.observer.BatchFinished(report.Requested, report.ReconciledCount, report.DeletedCount)
	logger.Info(ctx, "bulk target delete finished",
		"requested", report.Requested,
		"reconciled", report.ReconciledCount,
		"deleted", report.DeletedCount,
		"errors", len(report.Errors),
	)

	return report, nil
}
