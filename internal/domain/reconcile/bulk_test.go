package reconcile_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodledger/internal/core/apperror"
	"prodledger/internal/core/entity"
	"prodledger/internal/core/id"
	"prodledger/internal/core/types"
	"prodledger/internal/domain/reconcile"
)

// seedTargets stores and reconciles one target per style.
func (h *harness) seedTargets(t *testing.T, styles ...string) []*entity.TargetEvent {
	t.Helper()
	ctx := context.Background()

	out := make([]*entity.TargetEvent, 0, len(styles))
	for i, s := range styles {
		tgt := entity.NewTargetEvent("L01", s, types.MustDay("2024-03-01"), int64(100+i*10), 0)
		require.NoError(t, h.targets.Create(ctx, tgt))
		_, err := h.engine.Apply(ctx, h.engine.Policy().ForTarget(tgt, reconcile.DirectionApply))
		require.NoError(t, err)
		out = append(out, tgt)
	}
	return out
}

func TestCoordinator_DeleteWithMissingID(t *testing.T) {
	h := newHarness(t, reconcile.Config{})
	c := reconcile.NewCoordinator(h.engine, h.targets, h.txm, 2)

	seeded := h.seedTargets(t, "ST001", "ST002")
	missing := id.New()

	report, err := c.DeleteTargets(context.Background(), []id.ID{seeded[0].ID, missing, seeded[1].ID})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Requested)
	assert.Equal(t, 3, report.ReconciledCount)
	assert.Equal(t, int64(2), report.DeletedCount)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, missing, report.Errors[0].ID)
	assert.Equal(t, apperror.CodeNotFound, report.Errors[0].Code)

	require.Len(t, report.Items, 3)
	assert.Equal(t, reconcile.ItemReconciled, report.Items[0].Status)
	assert.Equal(t, reconcile.ItemNotFound, report.Items[1].Status)
	assert.Equal(t, reconcile.ItemReconciled, report.Items[2].Status)

	assert.Equal(t, 0, h.targets.Count())
	for _, s := range []string{"ST001", "ST002"} {
		b := h.balance(t, s)
		assert.Equal(t, int64(0), b.TotalTarget, s)
		assert.Equal(t, int64(0), b.CurrentBalance, s)
	}
}

func TestCoordinator_EmptyAndDuplicateIDs(t *testing.T) {
	h := newHarness(t, reconcile.Config{})
	c := reconcile.NewCoordinator(h.engine, h.targets, h.txm, 0)

	report, err := c.DeleteTargets(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Requested)
	assert.NotNil(t, report.Errors)

	seeded := h.seedTargets(t, "ST003")
	report, err = c.DeleteTargets(context.Background(), []id.ID{seeded[0].ID, seeded[0].ID})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Requested)
	assert.Equal(t, int64(1), report.DeletedCount)
	assert.Equal(t, int64(0), h.balance(t, "ST003").TotalTarget)
}

func TestCoordinator_RejectsOversizedBatch(t *testing.T) {
	h := newHarness(t, reconcile.Config{})
	c := reconcile.NewCoordinator(h.engine, h.targets, h.txm, 4)

	ids := make([]id.ID, reconcile.MaxBatchSize+1)
	for i := range ids {
		ids[i] = id.New()
	}
	_, err := c.DeleteTargets(context.Background(), ids)
	assert.True(t, apperror.IsValidation(err))
}

func TestCoordinator_IsolatesItemFailure(t *testing.T) {
	h := newHarness(t, reconcile.Config{})
	c := reconcile.NewCoordinator(h.engine, h.targets, h.txm, 3)

	seeded := h.seedTargets(t, "ST004", "ST005", "ST006")
	before := map[id.ID]entity.StyleBalance{}
	for _, s := range seeded {
		before[s.ID] = h.balance(t, s.StyleCode)
	}

	var calls atomic.Int32
	boom := errors.New("connection reset")
	h.store.SetFault(func(op string) error {
		if op == "journal.record" && calls.Add(1) == 1 {
			return boom
		}
		return nil
	})

	ids := []id.ID{seeded[0].ID, seeded[1].ID, seeded[2].ID}
	report, err := c.DeleteTargets(context.Background(), ids)
	require.NoError(t, err)

	assert.Equal(t, 2, report.ReconciledCount)
	assert.Equal(t, int64(2), report.DeletedCount)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, apperror.CodeDatabase, report.Errors[0].Code)

	failed := report.Errors[0].ID
	assert.Equal(t, 1, h.targets.Count())
	_, err = h.targets.GetByID(context.Background(), failed)
	require.NoError(t, err, "failed target must not be deleted")

	for _, s := range seeded {
		b := h.balance(t, s.StyleCode)
		if s.ID == failed {
			assert.Equal(t, before[s.ID], b)
		} else {
			assert.Equal(t, int64(0), b.TotalTarget)
		}
	}
}

func TestCoordinator_RetryAfterDeleteFailure(t *testing.T) {
	h := newHarness(t, reconcile.Config{})
	c := reconcile.NewCoordinator(h.engine, h.targets, h.txm, 2)
	ctx := context.Background()

	seeded := h.seedTargets(t, "ST007", "ST008")
	ids := []id.ID{seeded[0].ID, seeded[1].ID}

	h.store.SetFault(func(op string) error {
		if op == "target.delete_many" {
			return errors.New("lock timeout")
		}
		return nil
	})

	report, err := c.DeleteTargets(ctx, ids)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeDatabase, apperror.CodeOf(err))
	assert.Equal(t, 2, report.ReconciledCount)
	assert.Equal(t, int64(0), report.DeletedCount)
	assert.Equal(t, 2, h.targets.Count())

	h.store.SetFault(nil)
	report, err = c.DeleteTargets(ctx, ids)
	require.NoError(t, err)
	assert.Equal(t, 2, report.ReconciledCount)
	assert.Equal(t, int64(2), report.DeletedCount)
	for _, item := range report.Items {
		assert.False(t, item.Applied, "reversal must not be applied twice")
	}

	for _, s := range []string{"ST007", "ST008"} {
		b := h.balance(t, s)
		assert.Equal(t, int64(0), b.TotalTarget)
		assert.Equal(t, int64(0), b.CurrentBalance)
	}
}

// rebuildingStore runs a Rebuild from outside the delete transaction while
// DeleteMany is in flight.
type rebuildingStore struct {
	reconcile.TargetStore
	engine *reconcile.Engine
	style  string
	err    error
}

func (s *rebuildingStore) DeleteMany(ctx context.Context, ids []id.ID) (int64, error) {
	rctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, s.err = s.engine.Rebuild(rctx, s.style)
	return s.TargetStore.DeleteMany(ctx, ids)
}

func TestCoordinator_DeleteHoldsStyleLocks(t *testing.T) {
	h := newHarness(t, reconcile.Config{})
	store := &rebuildingStore{TargetStore: h.targets, engine: h.engine, style: "ST009"}
	c := reconcile.NewCoordinator(h.engine, store, h.txm, 1)
	ctx := context.Background()

	seeded := h.seedTargets(t, "ST009")
	report, err := c.DeleteTargets(ctx, []id.ID{seeded[0].ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.DeletedCount)

	// Rebuild waited on the style row and gave up.
	require.Error(t, store.err)

	res, err := h.engine.Rebuild(ctx, "ST009")
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Balance.TotalTarget)
	assert.Equal(t, int64(0), h.balance(t, "ST009").TotalTarget)
}

func TestCoordinator_SameStyleItemsRunInOrder(t *testing.T) {
	h := newHarness(t, reconcile.Config{})
	c := reconcile.NewCoordinator(h.engine, h.targets, h.txm, 4)
	ctx := context.Background()

	var ids []id.ID
	var total int64
	for i, day := range []string{"2024-03-01", "2024-03-02", "2024-03-03", "2024-03-04"} {
		tgt := entity.NewTargetEvent("L01", "ST009", types.MustDay(day), int64(50+i), 0)
		require.NoError(t, h.targets.Create(ctx, tgt))
		_, err := h.engine.Apply(ctx, h.engine.Policy().ForTarget(tgt, reconcile.DirectionApply))
		require.NoError(t, err)
		ids = append(ids, tgt.ID)
		total += tgt.LineTarget
	}
	require.Equal(t, total, h.balance(t, "ST009").TotalTarget)

	report, err := c.DeleteTargets(ctx, ids)
	require.NoError(t, err)
	assert.Equal(t, 4, report.ReconciledCount)
	assert.Empty(t, report.Errors)
	assert.Empty(t, report.Warnings)

	b := h.balance(t, "ST009")
	assert.Equal(t, int64(0), b.TotalTarget)
	assert.Equal(t, int64(8), b.Version)
}
