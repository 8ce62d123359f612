package memory

import (
	"context"
	"fmt"
	"sort"

	"prodledger/internal/core/apperror"
	"prodledger/internal/core/entity"
	"prodledger/internal/core/id"
	"prodledger/internal/domain"
	"prodledger/internal/domain/production"
)

// EntryRepo implements production.Repository.
type EntryRepo struct {
	s *Store
}

var _ production.Repository = (*EntryRepo)(nil)

// NewEntryRepo creates a production entry repository.
func NewEntryRepo(s *Store) *EntryRepo {
	return &EntryRepo{s: s}
}

// Create inserts an entry; the slot must be free.
func (r *EntryRepo) Create(ctx context.Context, e *entity.ProductionEntry) error {
	return r.s.write(ctx, "entry.create", func() (func(), error) {
		for _, o := range r.s.entries {
			if o.Date == e.Date && o.HourIndex == e.HourIndex && o.LineID == e.LineID &&
				o.StyleID == e.StyleID && o.Stage == e.Stage {
				return nil, apperror.NewDuplicate("production entry", "slot",
					fmt.Sprintf("%s/%d/%s", e.Date, e.HourIndex, e.Stage)).
					WithDetail("existingId", o.ID)
			}
		}
		r.s.entries[e.ID] = *e
		return func() { delete(r.s.entries, e.ID) }, nil
	})
}

// GetByID returns a copy of the entry.
func (r *EntryRepo) GetByID(ctx context.Context, entryID id.ID) (*entity.ProductionEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	e, ok := r.s.entries[entryID]
	if !ok {
		return nil, apperror.NewNotFound("production entry", entryID.String())
	}
	return &e, nil
}

// GetForUpdate locks the entry for the rest of the transaction.
func (r *EntryRepo) GetForUpdate(ctx context.Context, entryID id.ID) (*entity.ProductionEntry, error) {
	if err := r.s.lock(ctx, "entry:"+entryID.String()); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, entryID)
}

// UpdateQuantities writes a corrected entry.
func (r *EntryRepo) UpdateQuantities(ctx context.Context, e *entity.ProductionEntry) error {
	return r.s.write(ctx, "entry.update", func() (func(), error) {
		prev, ok := r.s.entries[e.ID]
		if !ok {
			return nil, apperror.NewNotFound("production entry", e.ID.String())
		}
		if prev.Version != e.Version-1 {
			return nil, apperror.NewConflict("production entry was modified concurrently").
				WithDetail("id", e.ID)
		}
		next := prev
		next.Quantities = e.Quantities
		next.Version = e.Version
		next.UpdatedAt = e.UpdatedAt
		r.s.entries[e.ID] = next
		return func() { r.s.entries[e.ID] = prev }, nil
	})
}

// List returns entries ordered by date, hour, stage.
func (r *EntryRepo) List(ctx context.Context, f production.ListFilter) (domain.ListResult[*entity.ProductionEntry], error) {
	res := domain.ListResult[*entity.ProductionEntry]{Limit: f.Limit, Offset: f.Offset}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	r.s.mu.RLock()
	var all []*entity.ProductionEntry
	for _, e := range r.s.entries {
		if !f.From.IsZero() && e.Date.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && f.To.Before(e.Date) {
			continue
		}
		if f.LineID != nil && e.LineID != *f.LineID {
			continue
		}
		if f.StyleID != nil && e.StyleID != *f.StyleID {
			continue
		}
		if f.Stage != "" && e.Stage != f.Stage {
			continue
		}
		all = append(all, &e)
	}
	r.s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.HourIndex != b.HourIndex {
			return a.HourIndex < b.HourIndex
		}
		if a.Stage != b.Stage {
			return a.Stage.Order() < b.Stage.Order()
		}
		return a.ID.String() < b.ID.String()
	})

	res.TotalCount = int64(len(all))
	res.Items = page(all, f.Limit, f.Offset)
	return res, nil
}

// OutputTotal sums outputQty for a style code at one stage.
func (r *EntryRepo) OutputTotal(ctx context.Context, styleCode string, stage entity.Stage) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var total int64
	for _, e := range r.s.entries {
		if e.Stage != stage {
			continue
		}
		if st, ok := r.s.styles[e.StyleID]; ok && st.Code == styleCode {
			total += e.OutputQty
		}
	}
	return total, nil
}
