package memory

import (
	"context"
	"sort"
	"strings"

	"prodledger/internal/core/apperror"
	"prodledger/internal/core/id"
	"prodledger/internal/domain"
	"prodledger/internal/domain/catalogs/line"
	"prodledger/internal/domain/catalogs/style"
)

type catalogEntity interface {
	domain.CatalogItem
	GetName() string
	Active() bool
}

// catalogRepo is a generic catalog table. table returns the backing map and
// is only called with the store lock held.
type catalogRepo[V any, T interface {
	*V
	catalogEntity
}] struct {
	s     *Store
	name  string
	table func() map[id.ID]V
}

func (r *catalogRepo[V, T]) Create(ctx context.Context, item T) error {
	return r.s.write(ctx, r.name+".create", func() (func(), error) {
		tbl := r.table()
		for _, v := range tbl {
			if T(&v).GetCode() == item.GetCode() {
				return nil, apperror.NewDuplicate(r.name, "code", item.GetCode())
			}
		}
		key := item.GetID()
		tbl[key] = *item
		return func() { delete(r.table(), key) }, nil
	})
}

func (r *catalogRepo[V, T]) GetByID(ctx context.Context, itemID id.ID) (T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	v, ok := r.table()[itemID]
	if !ok {
		return nil, apperror.NewNotFound(r.name, itemID.String())
	}
	return T(&v), nil
}

func (r *catalogRepo[V, T]) GetByCode(ctx context.Context, code string) (T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, v := range r.table() {
		if T(&v).GetCode() == code {
			return T(&v), nil
		}
	}
	return nil, apperror.NewNotFound(r.name, code)
}

func (r *catalogRepo[V, T]) SetActive(ctx context.Context, itemID id.ID, active bool) error {
	return r.s.write(ctx, r.name+".set_active", func() (func(), error) {
		tbl := r.table()
		v, ok := tbl[itemID]
		if !ok {
			return nil, apperror.NewNotFound(r.name, itemID.String())
		}
		prev := v
		T(&v).SetActive(active)
		tbl[itemID] = v
		return func() { r.table()[itemID] = prev }, nil
	})
}

func (r *catalogRepo[V, T]) List(ctx context.Context, f domain.ListFilter) (domain.ListResult[T], error) {
	res := domain.ListResult[T]{Limit: f.Limit, Offset: f.Offset}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	ids := make(map[id.ID]bool, len(f.IDs))
	for _, v := range f.IDs {
		ids[v] = true
	}
	codes := make(map[string]bool, len(f.Codes))
	for _, c := range f.Codes {
		codes[c] = true
	}
	search := strings.ToLower(f.Search)

	r.s.mu.RLock()
	var all []T
	for _, v := range r.table() {
		item := T(&v)
		if len(ids) > 0 && !ids[item.GetID()] {
			continue
		}
		if len(codes) > 0 && !codes[item.GetCode()] {
			continue
		}
		if f.ActiveOnly && !item.Active() {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(item.GetCode()), search) &&
			!strings.Contains(strings.ToLower(item.GetName()), search) {
			continue
		}
		all = append(all, item)
	}
	r.s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].GetCode() < all[j].GetCode() })
	res.TotalCount = int64(len(all))
	res.Items = page(all, f.Limit, f.Offset)
	return res, nil
}

func (r *catalogRepo[V, T]) ExistsByCode(ctx context.Context, code string) (bool, error) {
	_, err := r.GetByCode(ctx, code)
	if apperror.IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

// LineRepo implements line.Repository.
type LineRepo struct {
	catalogRepo[line.Line, *line.Line]
}

var _ line.Repository = (*LineRepo)(nil)

// NewLineRepo creates a line repository.
func NewLineRepo(s *Store) *LineRepo {
	return &LineRepo{catalogRepo[line.Line, *line.Line]{
		s:     s,
		name:  "line",
		table: func() map[id.ID]line.Line { return s.lines },
	}}
}

// StyleRepo implements style.Repository.
type StyleRepo struct {
	catalogRepo[style.Style, *style.Style]
}

var _ style.Repository = (*StyleRepo)(nil)

// NewStyleRepo creates a style repository.
func NewStyleRepo(s *Store) *StyleRepo {
	return &StyleRepo{catalogRepo[style.Style, *style.Style]{
		s:     s,
		name:  "style",
		table: func() map[id.ID]style.Style { return s.styles },
	}}
}
