package memory

import (
	"context"
	"sort"

	"prodledger/internal/core/apperror"
	"prodledger/internal/core/entity"
	"prodledger/internal/core/id"
	"prodledger/internal/core/types"
	"prodledger/internal/domain"
	"prodledger/internal/domain/reconcile"
	"prodledger/internal/domain/targets"
)

// TargetRepo implements targets.Repository.
type TargetRepo struct {
	s *Store
}

var (
	_ targets.Repository    = (*TargetRepo)(nil)
	_ reconcile.TargetStore = (*TargetRepo)(nil)
)

// NewTargetRepo creates a target repository.
func NewTargetRepo(s *Store) *TargetRepo {
	return &TargetRepo{s: s}
}

func (r *TargetRepo) slotTakenLocked(t *entity.TargetEvent) bool {
	for _, other := range r.s.targets {
		if other.ID != t.ID && other.LineCode == t.LineCode && other.StyleCode == t.StyleCode && other.Date == t.Date {
			return true
		}
	}
	return false
}

// Create inserts a target.
func (r *TargetRepo) Create(ctx context.Context, t *entity.TargetEvent) error {
	return r.s.write(ctx, "target.create", func() (func(), error) {
		if _, ok := r.s.targets[t.ID]; ok {
			return nil, apperror.NewDuplicate("target", "id", t.ID.String())
		}
		if r.slotTakenLocked(t) {
			return nil, apperror.NewConflict("a target already exists for this line, style and date").
				WithDetail("lineCode", t.LineCode).
				WithDetail("styleCode", t.StyleCode).
				WithDetail("date", t.Date)
		}
		r.s.targets[t.ID] = *t
		return func() { delete(r.s.targets, t.ID) }, nil
	})
}

// GetByID returns a copy of the target.
func (r *TargetRepo) GetByID(ctx context.Context, targetID id.ID) (*entity.TargetEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.targets[targetID]
	if !ok {
		return nil, apperror.NewNotFound("target", targetID.String())
	}
	return &t, nil
}

// GetByIDs returns the existing targets among ids.
func (r *TargetRepo) GetByIDs(ctx context.Context, ids []id.ID) ([]*entity.TargetEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*entity.TargetEvent, 0, len(ids))
	for _, tid := range ids {
		if t, ok := r.s.targets[tid]; ok {
			out = append(out, &t)
		}
	}
	return out, nil
}

// FindBySlot returns the target occupying a slot, or nil.
func (r *TargetRepo) FindBySlot(ctx context.Context, lineCode, styleCode string, date types.Day) (*entity.TargetEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, t := range r.s.targets {
		if t.LineCode == lineCode && t.StyleCode == styleCode && t.Date == date {
			return &t, nil
		}
	}
	return nil, nil
}

// Delete removes one target.
func (r *TargetRepo) Delete(ctx context.Context, targetID id.ID) error {
	return r.s.write(ctx, "target.delete", func() (func(), error) {
		t, ok := r.s.targets[targetID]
		if !ok {
			return nil, apperror.NewNotFound("target", targetID.String())
		}
		delete(r.s.targets, targetID)
		return func() { r.s.targets[targetID] = t }, nil
	})
}

// DeleteMany removes the existing targets among ids.
func (r *TargetRepo) DeleteMany(ctx context.Context, ids []id.ID) (int64, error) {
	var n int64
	err := r.s.write(ctx, "target.delete_many", func() (func(), error) {
		removed := make(map[id.ID]entity.TargetEvent)
		for _, tid := range ids {
			if t, ok := r.s.targets[tid]; ok {
				removed[tid] = t
				delete(r.s.targets, tid)
			}
		}
		n = int64(len(removed))
		return func() {
			for k, v := range removed {
				r.s.targets[k] = v
			}
		}, nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// List returns targets ordered by date, line, style.
func (r *TargetRepo) List(ctx context.Context, f targets.ListFilter) (domain.ListResult[*entity.TargetEvent], error) {
	res := domain.ListResult[*entity.TargetEvent]{Limit: f.Limit, Offset: f.Offset}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	r.s.mu.RLock()
	var all []*entity.TargetEvent
	for _, t := range r.s.targets {
		if !f.From.IsZero() && t.Date.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && f.To.Before(t.Date) {
			continue
		}
		if f.LineCode != "" && t.LineCode != f.LineCode {
			continue
		}
		if f.StyleCode != "" && t.StyleCode != f.StyleCode {
			continue
		}
		all = append(all, &t)
	}
	r.s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.LineCode != b.LineCode {
			return a.LineCode < b.LineCode
		}
		return a.StyleCode < b.StyleCode
	})

	res.TotalCount = int64(len(all))
	res.Items = page(all, f.Limit, f.Offset)
	return res, nil
}

// TargetTotals sums a style's targets.
func (r *TargetRepo) TargetTotals(ctx context.Context, styleCode string) (int64, int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var lineTarget, hourly int64
	for _, t := range r.s.targets {
		if t.StyleCode == styleCode {
			lineTarget += t.LineTarget
			hourly += t.HourlyProduction
		}
	}
	return lineTarget, hourly, nil
}

// Count returns the number of stored targets.
func (r *TargetRepo) Count() int {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.targets)
}
