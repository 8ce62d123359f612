package reconcile_test

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodledger/internal/core/apperror"
	"prodledger/internal/core/entity"
	"prodledger/internal/core/id"
	"prodledger/internal/core/types"
	"prodledger/internal/domain/ledger"
	"prodledger/internal/domain/reconcile"
	"prodledger/internal/infrastructure/storage/memory"
)

type harness struct {
	store   *memory.Store
	txm     *memory.TxManager
	ledger  *ledger.Service
	lrepo   *memory.LedgerRepo
	targets *memory.TargetRepo
	entries *memory.EntryRepo
	engine  *reconcile.Engine
}

func newHarness(t *testing.T, cfg reconcile.Config) *harness {
	t.Helper()

	store := memory.New()
	txm := memory.NewTxManager(store)
	lrepo := memory.NewLedgerRepo(store)
	ledgerSvc := ledger.NewService(lrepo, txm)
	targets := memory.NewTargetRepo(store)
	entries := memory.NewEntryRepo(store)

	engine, err := reconcile.NewEngine(ledgerSvc, reconcile.Sources{Targets: targets, Entries: entries}, cfg)
	require.NoError(t, err)

	return &harness{
		store:   store,
		txm:     txm,
		ledger:  ledgerSvc,
		lrepo:   lrepo,
		targets: targets,
		entries: entries,
		engine:  engine,
	}
}

func (h *harness) balance(t *testing.T, style string) entity.StyleBalance {
	t.Helper()
	b, err := h.ledger.Get(context.Background(), style)
	require.NoError(t, err)
	require.True(t, b.Consistent(), "invariant broken: %+v", b)
	return b
}

func targetDelta(style string, target, produced int64, dir reconcile.Direction) reconcile.Delta {
	return reconcile.Delta{
		EventID:       id.New(),
		Revision:      reconcile.TargetRevision,
		StyleCode:     style,
		TargetDelta:   target,
		ProducedDelta: produced,
		Direction:     dir,
	}
}

func TestEngine_ApplyTargetCreate(t *testing.T) {
	h := newHarness(t, reconcile.Config{})
	ctx := context.Background()

	tgt := entity.NewTargetEvent("L01", "ST001", types.MustDay("2024-03-01"), 300, 0)
	res, err := h.engine.Apply(ctx, h.engine.Policy().ForTarget(tgt, reconcile.DirectionApply))
	require.NoError(t, err)

	assert.True(t, res.Applied)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, int64(300), res.Balance.TotalTarget)
	assert.Equal(t, int64(0), res.Balance.TotalProduced)
	assert.Equal(t, int64(300), res.Balance.CurrentBalance)

	assert.Equal(t, res.Balance, h.balance(t, "ST001"))
}

func TestEngine_ProductionOutputReducesBalance(t *testing.T) {
	h := newHarness(t, reconcile.Config{})
	ctx := context.Background()
	policy := h.engine.Policy()

	_, err := h.engine.Apply(ctx, targetDelta("ST001", 300, 0, reconcile.DirectionApply))
	require.NoError(t, err)

	res, err := h.engine.Apply(ctx, policy.ForEntry(id.New(), 1, "ST001", 200, reconcile.DirectionApply))
	require.NoError(t, err)

	assert.Equal(t, int64(300), res.Balance.TotalTarget)
	assert.Equal(t, int64(200), res.Balance.TotalProduced)
	assert.Equal(t, int64(100), res.Balance.CurrentBalance)
}

func TestEngine_Idempotent(t *testing.T) {
	h := newHarness(t, reconcile.Config{})
	ctx := context.Background()
	d := targetDelta("ST002", 120, 0, reconcile.DirectionApply)

	first, err := h.engine.Apply(ctx, d)
	require.NoError(t, err)
	require.True(t, first.Applied)

	second, err := h.engine.Apply(ctx, d)
	require.NoError(t, err)
	assert.False(t, second.Applied)
	assert.Equal(t, first.Balance, second.Balance)
	assert.Equal(t, 1, h.lrepo.AppliedCount())
}

func TestEngine_InverseLaw(t *testing.T) {
	h := newHarness(t, reconcile.Config{})
	ctx := context.Background()

	_, err := h.engine.Apply(ctx, targetDelta("ST003", 75, 0, reconcile.DirectionApply))
	require.NoError(t, err)
	before := h.balance(t, "ST003")

	d := targetDelta("ST003", 40, 10, reconcile.DirectionApply)
	_, err = h.engine.Apply(ctx, d)
	require.NoError(t, err)

	d.Direction = reconcile.DirectionReverse
	res, err := h.engine.Apply(ctx, d)
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)

	after := h.balance(t, "ST003")
	assert.Equal(t, before.TotalTarget, after.TotalTarget)
	assert.Equal(t, before.TotalProduced, after.TotalProduced)
	assert.Equal(t, before.CurrentBalance, after.CurrentBalance)
}

func TestEngine_ReverseClampsAndWarns(t *testing.T) {
	h := newHarness(t, reconcile.Config{})
	ctx := context.Background()

	_, err := h.engine.Apply(ctx, targetDelta("ST004", 50, 0, reconcile.DirectionApply))
	require.NoError(t, err)

	res, err := h.engine.Apply(ctx, targetDelta("ST004", 80, 5, reconcile.DirectionReverse))
	require.NoError(t, err)
	require.True(t, res.Applied)

	codes := []reconcile.WarningCode{}
	for _, w := range res.Warnings {
		codes = append(codes, w.Code)
	}
	assert.ElementsMatch(t, []reconcile.WarningCode{reconcile.WarnTargetClamped, reconcile.WarnProducedClamped}, codes)

	b := h.balance(t, "ST004")
	assert.Equal(t, int64(0), b.TotalTarget)
	assert.Equal(t, int64(0), b.TotalProduced)
	assert.Equal(t, int64(0), b.CurrentBalance)
}

func TestEngine_OverproductionWarns(t *testing.T) {
	h := newHarness(t, reconcile.Config{})
	ctx := context.Background()

	_, err := h.engine.Apply(ctx, targetDelta("ST005", 10, 0, reconcile.DirectionApply))
	require.NoError(t, err)

	res, err := h.engine.Apply(ctx, h.engine.Policy().ForEntry(id.New(), 1, "ST005", 15, reconcile.DirectionApply))
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, reconcile.WarnOverproduction, res.Warnings[0].Code)
	assert.Equal(t, int64(-5), res.Balance.CurrentBalance)
}

func TestEngine_RejectsInvalidDelta(t *testing.T) {
	h := newHarness(t, reconcile.Config{})
	ctx := context.Background()

	tests := []struct {
		name  string
		delta reconcile.Delta
	}{
		{"nil event", reconcile.Delta{StyleCode: "ST006", TargetDelta: 1, Direction: reconcile.DirectionApply}},
		{"no style", reconcile.Delta{EventID: id.New(), TargetDelta: 1, Direction: reconcile.DirectionApply}},
		{"negative", targetDelta("ST006", -1, 0, reconcile.DirectionApply)},
		{"bad direction", targetDelta("ST006", 1, 0, "SIDEWAYS")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.engine.Apply(ctx, tt.delta)
			require.Error(t, err)
			assert.True(t, apperror.IsValidation(err))
		})
	}

	assert.Equal(t, entity.ZeroBalance("ST006"), h.balance(t, "ST006"))
}

func TestEngine_ConcurrentAppliesSameStyle(t *testing.T) {
	h := newHarness(t, reconcile.Config{})
	ctx := context.Background()

	_, err := h.engine.Apply(ctx, targetDelta("ST001", 300, 0, reconcile.DirectionApply))
	require.NoError(t, err)

	amounts := []int64{50, 70}
	for i := 0; i < 40; i++ {
		amounts = append(amounts, int64(i+1))
	}
	var want int64 = 300
	for _, a := range amounts {
		want += a
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(amounts))
	for _, a := range amounts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.engine.Apply(ctx, targetDelta("ST001", a, 0, reconcile.DirectionApply))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	b := h.balance(t, "ST001")
	assert.Equal(t, want, b.TotalTarget)
	assert.Equal(t, int64(len(amounts)+1), b.Version)
}

func TestEngine_ConcurrentDuplicateDeltaAppliedOnce(t *testing.T) {
	h := newHarness(t, reconcile.Config{})
	ctx := context.Background()
	d := targetDelta("ST007", 25, 0, reconcile.DirectionApply)

	var wg sync.WaitGroup
	var mu sync.Mutex
	applied := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.engine.Apply(ctx, d)
			if assert.NoError(t, err) && res.Applied {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, applied)
	assert.Equal(t, int64(25), h.balance(t, "ST007").TotalTarget)
}

func TestEngine_InvariantHoldsOverRandomSequence(t *testing.T) {
	h := newHarness(t, reconcile.Config{})
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	var applied []reconcile.Delta
	for i := 0; i < 300; i++ {
		var d reconcile.Delta
		if len(applied) > 0 && rng.Intn(3) == 0 {
			j := rng.Intn(len(applied))
			d = applied[j]
			d.Direction = reconcile.DirectionReverse
			applied = append(applied[:j], applied[j+1:]...)
		} else {
			d = targetDelta("ST008", rng.Int63n(500), rng.Int63n(300), reconcile.DirectionApply)
			applied = append(applied, d)
		}

		res, err := h.engine.Apply(ctx, d)
		require.NoError(t, err)
		require.True(t, res.Balance.Consistent())
		require.GreaterOrEqual(t, res.Balance.TotalTarget, int64(0))
		require.GreaterOrEqual(t, res.Balance.TotalProduced, int64(0))
	}

	for _, d := range applied {
		d.Direction = reconcile.DirectionReverse
		_, err := h.engine.Apply(ctx, d)
		require.NoError(t, err)
	}
	b := h.balance(t, "ST008")
	assert.Equal(t, int64(0), b.TotalTarget)
	assert.Equal(t, int64(0), b.TotalProduced)
}

func TestEngine_PersistenceFailureRollsBack(t *testing.T) {
	h := newHarness(t, reconcile.Config{})
	ctx := context.Background()

	_, err := h.engine.Apply(ctx, targetDelta("ST009", 100, 0, reconcile.DirectionApply))
	require.NoError(t, err)
	before := h.balance(t, "ST009")

	boom := errors.New("disk full")
	h.store.SetFault(func(op string) error {
		if op == "journal.record" {
			return boom
		}
		return nil
	})

	d := targetDelta("ST009", 30, 0, reconcile.DirectionApply)
	_, err = h.engine.Apply(ctx, d)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeDatabase, apperror.CodeOf(err))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, before, h.balance(t, "ST009"))

	h.store.SetFault(nil)
	res, err := h.engine.Apply(ctx, d)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, int64(130), res.Balance.TotalTarget)
}

func TestEngine_TimeoutWhileStyleLocked(t *testing.T) {
	h := newHarness(t, reconcile.Config{})

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- h.txm.RunInTransaction(context.Background(), func(ctx context.Context) error {
			if err := h.ledger.LockStyles(ctx, "ST010"); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := h.engine.Apply(ctx, targetDelta("ST010", 5, 0, reconcile.DirectionApply))
	require.Error(t, err)
	assert.Equal(t, apperror.CodeTimeout, apperror.CodeOf(err))

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, entity.ZeroBalance("ST010"), h.balance(t, "ST010"))
}

func TestEngine_ConfiguredTimeout(t *testing.T) {
	h := newHarness(t, reconcile.Config{Timeout: 30 * time.Millisecond})

	locked := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = h.txm.RunInTransaction(context.Background(), func(ctx context.Context) error {
			_ = h.ledger.LockStyles(ctx, "ST011")
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked
	defer close(release)

	_, err := h.engine.Apply(context.Background(), targetDelta("ST011", 5, 0, reconcile.DirectionApply))
	assert.Equal(t, apperror.CodeTimeout, apperror.CodeOf(err))
}

func TestEngine_TargetPolicyCountsHourlyProduction(t *testing.T) {
	h := newHarness(t, reconcile.Config{Policy: reconcile.Policy{Source: reconcile.SourceTarget}})
	ctx := context.Background()

	tgt := entity.NewTargetEvent("L01", "ST012", types.MustDay("2024-03-01"), 300, 40)
	res, err := h.engine.Apply(ctx, h.engine.Policy().ForTarget(tgt, reconcile.DirectionApply))
	require.NoError(t, err)
	assert.Equal(t, int64(40), res.Balance.TotalProduced)
	assert.Equal(t, int64(260), res.Balance.CurrentBalance)
	assert.False(t, h.engine.Policy().CountsStage(entity.StageSewing))
}

func TestEngine_RebuildCorrectsDrift(t *testing.T) {
	h := newHarness(t, reconcile.Config{})
	ctx := context.Background()

	// Stored without reconciling: the ledger knows nothing about them.
	for i, day := range []string{"2024-03-01", "2024-03-02"} {
		tgt := entity.NewTargetEvent("L01", "ST013", types.MustDay(day), int64(100*(i+1)), 0)
		require.NoError(t, h.targets.Create(ctx, tgt))
	}

	res, err := h.engine.Rebuild(ctx, "st013")
	require.NoError(t, err)
	assert.True(t, res.Applied)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, reconcile.WarnDriftCorrected, res.Warnings[0].Code)
	assert.Equal(t, int64(300), res.Balance.TotalTarget)
	assert.Equal(t, int64(300), res.Balance.CurrentBalance)

	again, err := h.engine.Rebuild(ctx, "ST013")
	require.NoError(t, err)
	assert.False(t, again.Applied)
	assert.Equal(t, res.Balance, again.Balance)
}

func TestNewEngine_RejectsBadPolicy(t *testing.T) {
	store := memory.New()
	svc := ledger.NewService(memory.NewLedgerRepo(store), memory.NewTxManager(store))

	_, err := reconcile.NewEngine(svc, nil, reconcile.Config{
		Policy: reconcile.Policy{Source: reconcile.SourceProduction, CountingStage: "PRESSING"},
	})
	assert.Error(t, err)
}

func TestParseProducedSource(t *testing.T) {
	src, err := reconcile.ParseProducedSource("")
	require.NoError(t, err)
	assert.Equal(t, reconcile.SourceProduction, src)

	src, err = reconcile.ParseProducedSource(" Target ")
	require.NoError(t, err)
	assert.Equal(t, reconcile.SourceTarget, src)

	_, err = reconcile.ParseProducedSource("both")
	assert.Error(t, err)
}

func TestDelta_Key(t *testing.T) {
	eid := id.MustParse("0190b1d2-0000-7000-8000-000000000001")
	d := reconcile.Delta{EventID: eid, Revision: 3, Direction: reconcile.DirectionReverse}
	assert.Equal(t, "0190b1d2-0000-7000-8000-000000000001:3:REVERSE", d.Key())
	assert.Equal(t, reconcile.DirectionApply, d.Direction.Inverse())
}
