package production

import (
	"context"
	"fmt"

	"prodledger/internal/core/apperror"
	"prodledger/internal/core/entity"
	"prodledger/internal/core/id"
	"prodledger/internal/core/tx"
	"prodledger/internal/core/types"
	"prodledger/internal/domain"
	"prodledger/internal/domain/audit"
	"prodledger/internal/domain/catalogs/line"
	"prodledger/internal/domain/catalogs/style"
	"prodledger/internal/domain/reconcile"
	"prodledger/pkg/logger"
)

// EntityType tags production entries in the audit log.
const EntityType = "production_entry"

// LineLookup resolves line references.
type LineLookup interface {
	GetByID(ctx context.Context, id id.ID) (*line.Line, error)
}

// StyleLookup resolves style references.
type StyleLookup interface {
	GetByID(ctx context.Context, id id.ID) (*style.Style, error)
}

// AddInput is a new entry as submitted by a client.
type AddInput struct {
	Date      string
	HourIndex int
	LineID    id.ID
	StyleID   id.ID
	Stage     entity.Stage
	entity.Quantities
}

// Result is an entry write with the ledger state it produced, if any.
type Result struct {
	Entry    *entity.ProductionEntry
	Balance  *entity.StyleBalance
	Warnings []reconcile.Warning
}

// Service manages production entries. Entries at the counting stage feed
// the style ledger when the produced source is "production".
type Service struct {
	repo   Repository
	lines  LineLookup
	styles StyleLookup
	engine *reconcile.Engine
	txm    tx.Manager
	audit  audit.Recorder
}

// NewService creates a new production entry service.
func NewService(
	repo Repository,
	lines LineLookup,
	styles StyleLookup,
	engine *reconcile.Engine,
	txm tx.Manager,
	recorder audit.Recorder,
) *Service {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &Service{
		repo:   repo,
		lines:  lines,
		styles: styles,
		engine: engine,
		txm:    txm,
		audit:  recorder,
	}
}

// Add validates and stores an entry.
func (s *Service) Add(ctx context.Context, in AddInput) (*Result, error) {
	day, err := types.ParseDay(in.Date)
	if err != nil {
		return nil, apperror.NewValidation("date must be YYYY-MM-DD").
			WithDetail("field", "date").
			WithDetail("value", in.Date)
	}

	e := entity.NewProductionEntry(day, in.HourIndex, in.LineID, in.StyleID, in.Stage, in.Quantities)
	audit.EnrichCreatedBy(ctx, &e.CreatedBy)
	if err := e.Validate(ctx); err != nil {
		return nil, err
	}

	st, err := s.resolve(ctx, e.LineID, e.StyleID)
	if err != nil {
		return nil, err
	}

	out := Result{Entry: e}
	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, e); err != nil {
			return fmt.Errorf("create entry: %w", err)
		}
		err := s.audit.Record(ctx, audit.Entry{
			EntityType: EntityType,
			EntityID:   e.ID,
			Action:     audit.ActionCreate,
			Changes: map[string]any{
				"date":      e.Date,
				"hourIndex": e.HourIndex,
				"stage":     e.Stage,
				"styleCode": st.Code,
				"outputQty": e.OutputQty,
			},
		})
		if err != nil {
			return err
		}

		policy := s.engine.Policy()
		if !policy.CountsStage(e.Stage) {
			return nil
		}
		res, err := s.engine.Apply(ctx, policy.ForEntry(e.ID, e.Version, st.Code, e.OutputQty, reconcile.DirectionApply))
		if err != nil {
			return err
		}
		out.Balance = &res.Balance
		out.Warnings = res.Warnings
		return nil
	})
	if err != nil {
		return nil, apperror.Persistence("entry.add", err)
	}

	logger.Info(ctx, "production entry added",
		"entry_id", e.ID,
		"date", e.Date,
		"hour_index", e.HourIndex,
		"stage", e.Stage,
		"output_qty", e.OutputQty,
	)
	return &out, nil
}

// Correct replaces an entry's quantities. The old revision's delta is
// reversed and the new revision's applied, so retries of either half are
// harmless.
func (s *Service) Correct(ctx context.Context, entryID id.ID, q entity.Quantities) (*Result, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var out Result
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		e, err := s.repo.GetForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		prev := *e

		e.Correct(q)
		if err := s.repo.UpdateQuantities(ctx, e); err != nil {
			return fmt.Errorf("update entry: %w", err)
		}
		out.Entry = e

		policy := s.engine.Policy()
		if policy.CountsStage(e.Stage) {
			st, err := s.styles.GetByID(ctx, e.StyleID)
			if err != nil {
				return err
			}
			rev, err := s.engine.Apply(ctx, policy.ForEntry(prev.ID, prev.Version, st.Code, prev.OutputQty, reconcile.DirectionReverse))
			if err != nil {
				return err
			}
			app, err := s.engine.Apply(ctx, policy.ForEntry(e.ID, e.Version, st.Code, e.OutputQty, reconcile.DirectionApply))
			if err != nil {
				return err
			}
			out.Balance = &app.Balance
			out.Warnings = append(rev.Warnings, app.Warnings...)
		}

		return s.audit.Record(ctx, audit.Entry{
			EntityType: EntityType,
			EntityID:   e.ID,
			Action:     audit.ActionCorrect,
			Changes: map[string]any{
				"version":   e.Version,
				"inputQty":  map[string]any{"old": prev.InputQty, "new": e.InputQty},
				"outputQty": map[string]any{"old": prev.OutputQty, "new": e.OutputQty},
				"defectQty": map[string]any{"old": prev.DefectQty, "new": e.DefectQty},
				"reworkQty": map[string]any{"old": prev.ReworkQty, "new": e.ReworkQty},
			},
		})
	})
	if err != nil {
		return nil, apperror.Persistence("entry.correct", err)
	}

	logger.Info(ctx, "production entry corrected", "entry_id", entryID, "version", out.Entry.Version)
	return &out, nil
}

// Get returns one entry.
func (s *Service) Get(ctx context.Context, entryID id.ID) (*entity.ProductionEntry, error) {
	e, err := s.repo.GetByID(ctx, entryID)
	if err != nil {
		return nil, apperror.Persistence("entry.get", err)
	}
	return e, nil
}

// List returns entries matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*entity.ProductionEntry], error) {
	var empty domain.ListResult[*entity.ProductionEntry]
	if !filter.From.IsZero() && filter.From.Validate() != nil {
		return empty, apperror.NewValidation("from must be YYYY-MM-DD").WithDetail("field", "from")
	}
	if !filter.To.IsZero() && filter.To.Validate() != nil {
		return empty, apperror.NewValidation("to must be YYYY-MM-DD").WithDetail("field", "to")
	}
	if filter.Stage != "" && !filter.Stage.IsValid() {
		return empty, apperror.NewValidation("unknown stage").WithDetail("value", string(filter.Stage))
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	res, err := s.repo.List(ctx, filter)
	if err != nil {
		return res, apperror.Persistence("entry.list", err)
	}
	return res, nil
}

// resolve checks that both references exist and accept new entries.
func (s *Service) resolve(ctx context.Context, lineID, styleID id.ID) (*style.Style, error) {
	ln, err := s.lines.GetByID(ctx, lineID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewValidation("lineId references an unknown line").
				WithDetail("field", "lineId").
				WithDetail("value", lineID)
		}
		return nil, err
	}
	if !ln.IsActive {
		return nil, apperror.NewBusinessRule(apperror.CodeInactiveEntry, "line is inactive").
			WithDetail("lineId", lineID)
	}

	st, err := s.styles.GetByID(ctx, styleID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewValidation("styleId references an unknown style").
				WithDetail("field", "styleId").
				WithDetail("value", styleID)
		}
		return nil, err
	}
	if !st.IsActive {
		return nil, apperror.NewBusinessRule(apperror.CodeInactiveEntry, "style is inactive").
			WithDetail("styleId", styleID)
	}
	return st, nil
}
