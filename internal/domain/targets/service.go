package targets

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
	"prodledger/internal/domain/reconcile"
	"prodledger/pkg/logger"
)

// EntityType tags target entries in the audit log.
const EntityType = "target"

// CreateInput is a new target as submitted by a client.
type CreateInput struct {
	LineCode         string
	StyleCode        string
	Date             string
	LineTarget       int64
	HourlyProduction int64
}

// Result is a target write with the ledger state it produced.
type Result struct {
	Target   *entity.TargetEvent
	Previous *entity.TargetEvent
	Balance  entity.StyleBalance
	Warnings []reconcile.Warning
}

// Service manages target events. Every write reconciles the ledger in the
// same transaction, so an event is never stored without its delta.
type Service struct {
	repo        Repository
	engine      *reconcile.Engine
	coordinator *reconcile.Coordinator
	txm         tx.Manager
	audit       audit.Recorder
}

// NewService creates a new target service.
func NewService(
	repo Repository,
	engine *reconcile.Engine,
	coordinator *reconcile.Coordinator,
	txm tx.Manager,
	recorder audit.Recorder,
) *Service {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &Service{
		repo:        repo,
		engine:      engine,
		coordinator: coordinator,
		txm:         txm,
		audit:       recorder,
	}
}

func (s *Service) build(ctx context.Context, in CreateInput) (*entity.TargetEvent, error) {
	day, err := types.ParseDay(in.Date)
	if err != nil {
		return nil, apperror.NewValidation("date must be YYYY-MM-DD").
			WithDetail("field", "date").
			WithDetail("value", in.Date)
	}
	t := entity.NewTargetEvent(in.LineCode, in.StyleCode, day, in.LineTarget, in.HourlyProduction)
	audit.EnrichCreatedBy(ctx, &t.CreatedBy)
	if err := t.Validate(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// insert stores t and applies its delta. Must run inside a transaction.
func (s *Service) insert(ctx context.Context, t *entity.TargetEvent) (reconcile.Result, error) {
	existing, err := s.repo.FindBySlot(ctx, t.LineCode, t.StyleCode, t.Date)
	if err != nil {
		return reconcile.Result{}, fmt.Errorf("find slot: %w", err)
	}
	if existing != nil {
		return reconcile.Result{}, apperror.NewConflict("a target already exists for this line, style and date").
			WithDetail("lineCode", t.LineCode).
			WithDetail("styleCode", t.StyleCode).
			WithDetail("date", t.Date).
			WithDetail("existingId", existing.ID)
	}

	if err := s.repo.Create(ctx, t); err != nil {
		return reconcile.Result{}, fmt.Errorf("create target: %w", err)
	}

	return s.engine.Apply(ctx, s.engine.Policy().ForTarget(t, reconcile.DirectionApply))
}

// remove reverses t and deletes it. Must run inside a transaction.
func (s *Service) remove(ctx context.Context, t *entity.TargetEvent) (reconcile.Result, error) {
	res, err := s.engine.Apply(ctx, s.engine.Policy().ForTarget(t, reconcile.DirectionReverse))
	if err != nil {
		return reconcile.Result{}, err
	}
	if err := s.repo.Delete(ctx, t.ID); err != nil {
		return reconcile.Result{}, fmt.Errorf("delete target: %w", err)
	}
	return res, nil
}

// Create stores a target and adds it to the style balance.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Result, error) {
	t, err := s.build(ctx, in)
	if err != nil {
		return nil, err
	}

	var out Result
	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		res, err := s.insert(ctx, t)
		if err != nil {
			return err
		}
		out = Result{Target: t, Balance: res.Balance, Warnings: res.Warnings}

		return s.audit.Record(ctx, audit.Entry{
			EntityType: EntityType,
			EntityID:   t.ID,
			Action:     audit.ActionCreate,
			Changes: map[string]any{
				"lineCode":         t.LineCode,
				"styleCode":        t.StyleCode,
				"date":             t.Date,
				"lineTarget":       t.LineTarget,
				"hourlyProduction": t.HourlyProduction,
			},
		})
	})
	if err != nil {
		return nil, apperror.Persistence("target.create", err)
	}

	logger.Info(ctx, "target created",
		"target_id", t.ID,
		"style_code", t.StyleCode,
		"line_code", t.LineCode,
		"date", t.Date,
		"line_target", t.LineTarget,
	)
	return &out, nil
}

// Get returns one target.
func (s *Service) Get(ctx context.Context, targetID id.ID) (*entity.TargetEvent, error) {
	t, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return nil, apperror.Persistence("target.get", err)
	}
	return t, nil
}

// List returns targets matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*entity.TargetEvent], error) {
	if err := validateRange(filter.From, filter.To); err != nil {
		return domain.ListResult[*entity.TargetEvent]{}, err
	}
	filter.LineCode = entity.NormalizeCode(filter.LineCode)
	filter.StyleCode = entity.NormalizeCode(filter.StyleCode)
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	res, err := s.repo.List(ctx, filter)
	if err != nil {
		return res, apperror.Persistence("target.list", err)
	}
	return res, nil
}

// Delete reverses a target's contribution and removes it.
func (s *Service) Delete(ctx context.Context, targetID id.ID) (*Result, error) {
	var out Result
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		t, err := s.repo.GetByID(ctx, targetID)
		if err != nil {
			return err
		}

		res, err := s.remove(ctx, t)
		if err != nil {
			return err
		}
		out = Result{Previous: t, Balance: res.Balance, Warnings: res.Warnings}

		return s.audit.Record(ctx, audit.Entry{
			EntityType: EntityType,
			EntityID:   t.ID,
			Action:     audit.ActionDelete,
			Changes:    map[string]any{"styleCode": t.StyleCode, "lineTarget": t.LineTarget},
		})
	})
	if err != nil {
		return nil, apperror.Persistence("target.delete", err)
	}

	logger.Info(ctx, "target deleted", "target_id", targetID, "style_code", out.Previous.StyleCode)
	return &out, nil
}

// Replace deletes a target and creates its successor in one transaction.
// The successor gets a new id. Old and new may belong to different styles;
// each style row is locked in turn.
func (s *Service) Replace(ctx context.Context, targetID id.ID, in CreateInput) (*Result, error) {
	next, err := s.build(ctx, in)
	if err != nil {
		return nil, err
	}

	var out Result
	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		prev, err := s.repo.GetByID(ctx, targetID)
		if err != nil {
			return err
		}

		if err := s.engine.LockStyles(ctx, prev.StyleCode, next.StyleCode); err != nil {
			return err
		}

		reversed, err := s.remove(ctx, prev)
		if err != nil {
			return err
		}

		applied, err := s.insert(ctx, next)
		if err != nil {
			return err
		}

		out = Result{
			Target:   next,
			Previous: prev,
			Balance:  applied.Balance,
			Warnings: append(reversed.Warnings, applied.Warnings...),
		}

		return s.audit.Record(ctx, audit.Entry{
			EntityType: EntityType,
			EntityID:   next.ID,
			Action:     audit.ActionReplace,
			Changes: map[string]any{
				"previousId": prev.ID,
				"lineTarget": map[string]any{"old": prev.LineTarget, "new": next.LineTarget},
				"styleCode":  map[string]any{"old": prev.StyleCode, "new": next.StyleCode},
			},
		})
	})
	if err != nil {
		return nil, apperror.Persistence("target.replace", err)
	}

	logger.Info(ctx, "target replaced", "previous_id", targetID, "target_id", next.ID)
	return &out, nil
}

// BulkDelete reverses and deletes many targets, isolating failures per id.
func (s *Service) BulkDelete(ctx context.Context, ids []id.ID) (reconcile.BatchReport, error) {
	report, err := s.coordinator.DeleteTargets(ctx, ids)
	if report.Requested == 0 {
		return report, err
	}

	auditErr := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.audit.Record(ctx, audit.Entry{
			EntityType: EntityType,
			Action:     audit.ActionBulkDelete,
			Changes: map[string]any{
				"ids":             ids,
				"reconciledCount": report.ReconciledCount,
				"deletedCount":    report.DeletedCount,
				"errors":          len(report.Errors),
			},
		})
	})
	if auditErr != nil {
		logger.Error(ctx, "bulk delete audit failed", "error", auditErr)
	}

	return report, err
}

func validateRange(from, to types.Day) error {
	if !from.IsZero() {
		if err := from.Validate(); err != nil {
			return apperror.NewValidation("from must be YYYY-MM-DD").WithDetail("field", "from")
		}
	}
	if !to.IsZero() {
		if err := to.Validate(); err != nil {
			return apperror.NewValidation("to must be YYYY-MM-DD").WithDetail("field", "to")
		}
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return apperror.NewValidation("from must not be after to")
	}
	return nil
}
