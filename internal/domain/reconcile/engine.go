package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"prodledger/internal/core/apperror"
	"prodledger/internal/core/entity"
	"prodledger/internal/domain/ledger"
	"prodledger/pkg/logger"
)

var tracer = otel.Tracer("prodledger/reconcile")

// TotalsSource reads the event log for Rebuild.
type TotalsSource interface {
	// TargetTotals sums lineTarget and hourlyProduction over a style's targets.
	TargetTotals(ctx context.Context, styleCode string) (lineTarget, hourly int64, err error)

	// OutputTotal sums outputQty over a style's entries at one stage.
	OutputTotal(ctx context.Context, styleCode string, stage entity.Stage) (int64, error)
}

// Config configures the Engine.
type Config struct {
	Policy Policy

	// Timeout bounds every Apply when the caller sets no earlier deadline.
	// Zero disables it.
	Timeout time.Duration

	Observer Observer
}

// Result is the outcome of one Apply.
type Result struct {
	Balance  entity.StyleBalance `json:"balance"`
	Applied  bool                `json:"applied"`
	Warnings []Warning           `json:"warnings,omitempty"`
}

// Engine applies deltas to the ledger: transactionally, idempotently per
// delta key and serialized per style.
type Engine struct {
	ledger   *ledger.Service
	source   TotalsSource
	policy   Policy
	timeout  time.Duration
	observer Observer
}

// NewEngine creates a new reconciliation engine.
func NewEngine(ledgerSvc *ledger.Service, source TotalsSource, cfg Config) (*Engine, error) {
	if cfg.Policy == (Policy{}) {
		cfg.Policy = DefaultPolicy()
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	return &Engine{
		ledger:   ledgerSvc,
		source:   source,
		policy:   cfg.Policy,
		timeout:  cfg.Timeout,
		observer: cfg.Observer,
	}, nil
}

// Policy returns the active produced-source policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Apply applies one delta. A delta whose key is already journaled returns
// Applied=false and leaves the ledger untouched. Reversals that would take a
// total below zero clamp at zero and report a Warning.
func (e *Engine) Apply(ctx context.Context, d Delta) (Result, error) {
	start := time.Now()
	d.StyleCode = entity.NormalizeCode(d.StyleCode)

	if err := d.Validate(); err != nil {
		e.observer.Failed(apperror.CodeOf(err))
		return Result{}, err
	}

	ctx, span := tracer.Start(ctx, "reconcile.apply",
		trace.WithAttributes(
			attribute.String("style.code", d.StyleCode),
			attribute.String("delta.key", d.Key()),
		))
	defer span.End()

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var res Result
	balance, err := e.ledger.ApplyAtomic(ctx, d.StyleCode, func(ctx context.Context, b *entity.StyleBalance) error {
		// Checked under the row lock: two racing applies of the same key
		// cannot both pass.
		done, err := e.ledger.IsApplied(ctx, d.Key())
		if err != nil {
			return err
		}
		if done {
			return ledger.ErrNoChange
		}

		res.Warnings = applyTotals(b, d)

		if err := e.ledger.RecordApplied(ctx, ledger.AppliedDelta{
			Key:           d.Key(),
			EventID:       d.EventID,
			Revision:      d.Revision,
			StyleCode:     d.StyleCode,
			Direction:     string(d.Direction),
			TargetDelta:   d.TargetDelta,
			ProducedDelta: d.ProducedDelta,
		}); err != nil {
			return err
		}
		res.Applied = true
		return nil
	})
	if err != nil {
		err = apperror.FromContext("reconcile.apply", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.observer.Failed(apperror.CodeOf(err))
		logger.Error(ctx, "reconciliation failed",
			"delta_key", d.Key(),
			"style_code", d.StyleCode,
			"error", err,
		)
		return Result{}, err
	}

	res.Balance = balance
	e.report(ctx, d, res)
	e.observer.Applied(d.Direction, res.Applied, time.Since(start))
	span.SetAttributes(attribute.Bool("delta.applied", res.Applied))

	return res, nil
}

// Rebuild recomputes a style's totals from the event log under the row lock.
// It repairs a ledger that drifted because something wrote events without
// reconciling them.
func (e *Engine) Rebuild(ctx context.Context, styleCode string) (Result, error) {
	styleCode = entity.NormalizeCode(styleCode)
	if err := entity.ValidateCode("styleCode", styleCode); err != nil {
		return Result{}, err
	}
	if e.source == nil {
		return Result{}, apperror.NewInternal(fmt.Errorf("rebuild: no totals source configured"))
	}

	ctx, span := tracer.Start(ctx, "reconcile.rebuild",
		trace.WithAttributes(attribute.String("style.code", styleCode)))
	defer span.End()

	var res Result
	balance, err := e.ledger.ApplyAtomic(ctx, styleCode, func(ctx context.Context, b *entity.StyleBalance) error {
		lineTarget, hourly, err := e.source.TargetTotals(ctx, styleCode)
		if err != nil {
			return fmt.Errorf("target totals: %w", err)
		}

		produced := hourly
		if e.policy.Source == SourceProduction {
			produced, err = e.source.OutputTotal(ctx, styleCode, e.policy.CountingStage)
			if err != nil {
				return fmt.Errorf("output total: %w", err)
			}
		}

		if b.TotalTarget == lineTarget && b.TotalProduced == produced && b.Consistent() {
			return ledger.ErrNoChange
		}

		res.Warnings = append(res.Warnings, Warning{
			Code:      WarnDriftCorrected,
			StyleCode: styleCode,
			Message: fmt.Sprintf("target %d->%d, produced %d->%d",
				b.TotalTarget, lineTarget, b.TotalProduced, produced),
			Requested: lineTarget - produced,
			Available: b.CurrentBalance,
		})
		b.TotalTarget = lineTarget
		b.TotalProduced = produced
		res.Applied = true
		return nil
	})
	if err != nil {
		err = apperror.FromContext("reconcile.rebuild", err)
		span.RecordError(err)
		e.observer.Failed(apperror.CodeOf(err))
		return Result{}, err
	}

	res.Balance = balance
	for _, w := range res.Warnings {
		e.observer.Warned(w.Code)
		logger.Warn(ctx, "ledger drift corrected", "style_code", styleCode, "detail", w.Message)
	}
	return res, nil
}

func (e *Engine) report(ctx context.Context, d Delta, res Result) {
	if !res.Applied {
		logger.Info(ctx, "delta already applied, skipped",
			"delta_key", d.Key(),
			"style_code", d.StyleCode,
		)
		return
	}

	logger.Info(ctx, "delta applied",
		"delta_key", d.Key(),
		"style_code", d.StyleCode,
		"total_target", res.Balance.TotalTarget,
		"total_produced", res.Balance.TotalProduced,
		"current_balance", res.Balance.CurrentBalance,
	)

	for _, w := range res.Warnings {
		e.observer.Warned(w.Code)
		logger.Warn(ctx, "reconciliation warning",
			"code", w.Code,
			"style_code", w.StyleCode,
			"event_id", w.EventID,
			"requested", w.Requested,
			"available", w.Available,
		)
	}
}

// applyTotals mutates the totals and returns any warnings. The caller
// recomputes CurrentBalance.
func applyTotals(b *entity.StyleBalance, d Delta) []Warning {
	var warnings []Warning

	switch d.Direction {
	case DirectionApply:
		b.TotalTarget += d.TargetDelta
		b.TotalProduced += d.ProducedDelta
		if d.ProducedDelta > 0 && b.TotalProduced > b.TotalTarget {
			warnings = append(warnings, Warning{
				Code:      WarnOverproduction,
				StyleCode: d.StyleCode,
				EventID:   d.EventID,
				Message:   "produced exceeds target",
				Requested: b.TotalProduced,
				Available: b.TotalTarget,
			})
		}

	case DirectionReverse:
		if d.TargetDelta > b.TotalTarget {
			warnings = append(warnings, Warning{
				Code:      WarnTargetClamped,
				StyleCode: d.StyleCode,
				EventID:   d.EventID,
				Message:   "target reversal clamped at zero",
				Requested: d.TargetDelta,
				Available: b.TotalTarget,
			})
			b.TotalTarget = 0
		} else {
			b.TotalTarget -= d.TargetDelta
		}

		if d.ProducedDelta > b.TotalProduced {
			warnings = append(warnings, Warning{
				Code:      WarnProducedClamped,
				StyleCode: d.StyleCode,
				EventID:   d.EventID,
				Message:   "produced reversal clamped at zero",
				Requested: d.ProducedDelta,
				Available: b.TotalProduced,
			})
			b.TotalProduced = 0
		} else {
			b.TotalProduced -= d.ProducedDelta
		}
	}

	return warnings
}

// LockStyles pre-locks style rows in a stable order inside the caller's
// transaction. See ledger.Service.LockStyles.
func (e *Engine) LockStyles(ctx context.Context, styleCodes ...string) error {
	return e.ledger.LockStyles(ctx, styleCodes...)
}

// Sources joins the two stores Rebuild reads from.
type Sources struct {
	Targets interface {
		TargetTotals(ctx context.Context, styleCode string) (lineTarget, hourly int64, err error)
	}
	Entries interface {
		OutputTotal(ctx context.Context, styleCode string, stage entity.Stage) (int64, error)
	}
}

// TargetTotals implements TotalsSource.
func (s Sources) TargetTotals(ctx context.Context, styleCode string) (int64, int64, error) {
	return s.Targets.TargetTotals(ctx, styleCode)
}

// OutputTotal implements TotalsSource.
func (s Sources) OutputTotal(ctx context.Context, styleCode string, stage entity.Stage) (int64, error) {
	return s.Entries.OutputTotal(ctx, styleCode, stage)
}
