package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"prodledger/internal/core/apperror"
	"prodledger/internal/core/entity"
	"prodledger/internal/core/tx"
	"prodledger/pkg/logger"
)

// ErrNoChange is returned by a Mutation to leave the row as it was.
var ErrNoChange = errors.New("ledger: no change")

// Mutation changes a locked balance. CurrentBalance is recomputed after it
// returns, so mutations only touch the totals.
type Mutation func(ctx context.Context, balance *entity.StyleBalance) error

// Service is the single write path for style balances.
type Service struct {
	repo Repository
	txm  tx.Manager
	now  func() time.Time
}

// NewService creates a new ledger service.
func NewService(repo Repository, txm tx.Manager) *Service {
	return &Service{
		repo: repo,
		txm:  txm,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Get returns the balance of a style. A style without a row reads as zeros
// and nothing is persisted.
func (s *Service) Get(ctx context.Context, styleCode string) (entity.StyleBalance, error) {
	styleCode = entity.NormalizeCode(styleCode)
	if err := entity.ValidateCode("styleCode", styleCode); err != nil {
		return entity.StyleBalance{}, err
	}

	b, err := s.repo.GetBalance(ctx, styleCode)
	if err != nil {
		return entity.StyleBalance{}, apperror.Persistence("ledger.get", err)
	}
	return b, nil
}

// List returns balances matching the filter.
func (s *Service) List(ctx context.Context, filter BalanceFilter) ([]entity.StyleBalance, error) {
	filter.StylePrefix = strings.ToUpper(strings.TrimSpace(filter.StylePrefix))
	for i, c := range filter.StyleCodes {
		filter.StyleCodes[i] = entity.NormalizeCode(c)
	}
	if filter.Limit <= 0 || filter.Limit > 1000 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	out, err := s.repo.ListBalances(ctx, filter)
	if err != nil {
		return nil, apperror.Persistence("ledger.list", err)
	}
	return out, nil
}

// ApplyAtomic locks (or creates) the style row, runs mutate and persists the
// result in one transaction. Readers never observe a partial update. If the
// caller already holds a transaction in ctx, it is reused and the row lock is
// held until that transaction ends.
func (s *Service) ApplyAtomic(ctx context.Context, styleCode string, mutate Mutation) (entity.StyleBalance, error) {
	result, err := tx.Do(ctx, s.txm, func(ctx context.Context) (entity.StyleBalance, error) {
		b, err := s.repo.LockBalance(ctx, styleCode)
		if err != nil {
			return entity.StyleBalance{}, apperror.Persistence("ledger.lock", err)
		}
		b.StyleCode = styleCode

		next := b
		if err := mutate(ctx, &next); err != nil {
			if errors.Is(err, ErrNoChange) {
				return b, nil
			}
			return entity.StyleBalance{}, err
		}

		next.Recompute()
		next.Version = b.Version + 1
		next.LastUpdated = s.now()

		if err := s.repo.SaveBalance(ctx, next); err != nil {
			return entity.StyleBalance{}, apperror.Persistence("ledger.save", err)
		}
		return next, nil
	})
	if err != nil {
		return entity.StyleBalance{}, apperror.Persistence("ledger.apply", err)
	}

	logger.Debug(ctx, "ledger row written",
		"style_code", styleCode,
		"total_target", result.TotalTarget,
		"total_produced", result.TotalProduced,
		"version", result.Version,
	)

	return result, nil
}

// IsApplied checks the journal. Call it from inside a Mutation so the
// check is serialized with the row lock.
func (s *Service) IsApplied(ctx context.Context, key string) (bool, error) {
	ok, err := s.repo.IsApplied(ctx, key)
	if err != nil {
		return false, fmt.Errorf("journal lookup %s: %w", key, err)
	}
	return ok, nil
}

// RecordApplied journals a delta. Call it from inside a Mutation.
func (s *Service) RecordApplied(ctx context.Context, d AppliedDelta) error {
	if d.AppliedAt.IsZero() {
		d.AppliedAt = s.now()
	}
	if err := s.repo.RecordApplied(ctx, d); err != nil {
		return fmt.Errorf("journal insert %s: %w", d.Key, err)
	}
	return nil
}

// LockStyles locks several style rows in code order. It must run inside the
// caller's transaction; the locks are held until that transaction ends.
// Writers that touch more than one style call it first so that two such
// writers never wait on each other in opposite order.
func (s *Service) LockStyles(ctx context.Context, styleCodes ...string) error {
	codes := make([]string, 0, len(styleCodes))
	seen := make(map[string]struct{}, len(styleCodes))
	for _, c := range styleCodes {
		c = entity.NormalizeCode(c)
		if _, ok := seen[c]; ok || c == "" {
			continue
		}
		seen[c] = struct{}{}
		codes = append(codes, c)
	}
	sort.Strings(codes)

	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, c := range codes {
			if _, err := s.repo.LockBalance(ctx, c); err != nil {
				return apperror.Persistence("ledger.lock", err)
			}
		}
		return nil
	})
}
