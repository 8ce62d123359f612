package production_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodledger/internal/core/apperror"
	"prodledger/internal/core/entity"
	"prodledger/internal/core/id"
	"prodledger/internal/domain/catalogs/line"
	"prodledger/internal/domain/catalogs/style"
	"prodledger/internal/domain/ledger"
	"prodledger/internal/domain/production"
	"prodledger/internal/domain/reconcile"
	"prodledger/internal/infrastructure/storage/memory"
)

type fixture struct {
	store  *memory.Store
	ledger *ledger.Service
	engine *reconcile.Engine
	svc    *production.Service
	line   *line.Line
	style  *style.Style
}

func newFixture(t *testing.T, policy reconcile.Policy) *fixture {
	t.Helper()
	ctx := context.Background()

	store := memory.New()
	txm := memory.NewTxManager(store)
	entries := memory.NewEntryRepo(store)
	lines := memory.NewLineRepo(store)
	styles := memory.NewStyleRepo(store)
	ledgerSvc := ledger.NewService(memory.NewLedgerRepo(store), txm)

	engine, err := reconcile.NewEngine(ledgerSvc,
		reconcile.Sources{Targets: memory.NewTargetRepo(store), Entries: entries},
		reconcile.Config{Policy: policy})
	require.NoError(t, err)

	ln := line.NewLine("L01", "Line 1")
	st := style.NewStyle("ST001", "Polo shirt")
	require.NoError(t, lines.Create(ctx, ln))
	require.NoError(t, styles.Create(ctx, st))

	return &fixture{
		store:  store,
		ledger: ledgerSvc,
		engine: engine,
		svc:    production.NewService(entries, lines, styles, engine, txm, memory.NewAuditLog(store)),
		line:   ln,
		style:  st,
	}
}

func (f *fixture) addInput(stage entity.Stage, hour int, out int64) production.AddInput {
	return production.AddInput{
		Date:       "2024-03-01",
		HourIndex:  hour,
		LineID:     f.line.ID,
		StyleID:    f.style.ID,
		Stage:      stage,
		Quantities: entity.Quantities{InputQty: out + 5, OutputQty: out, DefectQty: 2, ReworkQty: 1},
	}
}

func (f *fixture) produced(t *testing.T) int64 {
	t.Helper()
	b, err := f.ledger.Get(context.Background(), "ST001")
	require.NoError(t, err)
	require.True(t, b.Consistent())
	return b.TotalProduced
}

func TestService_AddCountsSewingOutput(t *testing.T) {
	f := newFixture(t, reconcile.DefaultPolicy())
	ctx := context.Background()

	_, err := f.engine.Apply(ctx, reconcile.Delta{
		EventID: id.New(), Revision: 1, StyleCode: "ST001", TargetDelta: 300, Direction: reconcile.DirectionApply,
	})
	require.NoError(t, err)

	res, err := f.svc.Add(ctx, f.addInput(entity.StageSewing, 8, 200))
	require.NoError(t, err)
	require.NotNil(t, res.Balance)
	assert.Equal(t, int64(100), res.Balance.CurrentBalance)
	assert.Equal(t, 1, res.Entry.Version)

	cut, err := f.svc.Add(ctx, f.addInput(entity.StageCutting, 8, 500))
	require.NoError(t, err)
	assert.Nil(t, cut.Balance)

	assert.Equal(t, int64(200), f.produced(t))
}

func TestService_AddUnderTargetPolicyLeavesLedger(t *testing.T) {
	f := newFixture(t, reconcile.Policy{Source: reconcile.SourceTarget})

	res, err := f.svc.Add(context.Background(), f.addInput(entity.StageSewing, 9, 40))
	require.NoError(t, err)
	assert.Nil(t, res.Balance)
	assert.Equal(t, int64(0), f.produced(t))
}

func TestService_AddDuplicateSlot(t *testing.T) {
	f := newFixture(t, reconcile.DefaultPolicy())
	ctx := context.Background()

	_, err := f.svc.Add(ctx, f.addInput(entity.StageSewing, 10, 30))
	require.NoError(t, err)

	_, err = f.svc.Add(ctx, f.addInput(entity.StageSewing, 10, 45))
	require.Error(t, err)
	assert.Equal(t, apperror.CodeDuplicate, apperror.CodeOf(err))
	assert.Equal(t, int64(30), f.produced(t))
}

func TestService_AddValidation(t *testing.T) {
	f := newFixture(t, reconcile.DefaultPolicy())

	tests := []struct {
		name   string
		mutate func(in *production.AddInput)
		code   string
	}{
		{"bad date", func(in *production.AddInput) { in.Date = "2024-13-01" }, apperror.CodeValidation},
		{"hour too high", func(in *production.AddInput) { in.HourIndex = 24 }, apperror.CodeValidation},
		{"negative hour", func(in *production.AddInput) { in.HourIndex = -1 }, apperror.CodeValidation},
		{"unknown stage", func(in *production.AddInput) { in.Stage = "PRESSING" }, apperror.CodeValidation},
		{"negative defect", func(in *production.AddInput) { in.DefectQty = -1 }, apperror.CodeValidation},
		{"unknown line", func(in *production.AddInput) { in.LineID = id.New() }, apperror.CodeValidation},
		{"unknown style", func(in *production.AddInput) { in.StyleID = id.New() }, apperror.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := f.addInput(entity.StageSewing, 11, 10)
			tt.mutate(&in)
			_, err := f.svc.Add(context.Background(), in)
			require.Error(t, err)
			assert.Equal(t, tt.code, apperror.CodeOf(err))
		})
	}
	assert.Equal(t, int64(0), f.produced(t))
}

func TestService_AddInactiveStyle(t *testing.T) {
	f := newFixture(t, reconcile.DefaultPolicy())
	ctx := context.Background()

	require.NoError(t, memory.NewStyleRepo(f.store).SetActive(ctx, f.style.ID, false))

	_, err := f.svc.Add(ctx, f.addInput(entity.StageSewing, 12, 10))
	require.Error(t, err)
	assert.Equal(t, apperror.CodeInactiveEntry, apperror.CodeOf(err))
}

func TestService_Correct(t *testing.T) {
	f := newFixture(t, reconcile.DefaultPolicy())
	ctx := context.Background()

	added, err := f.svc.Add(ctx, f.addInput(entity.StageSewing, 13, 40))
	require.NoError(t, err)

	res, err := f.svc.Correct(ctx, added.Entry.ID, entity.Quantities{InputQty: 60, OutputQty: 55})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Entry.Version)
	assert.Equal(t, int64(55), f.produced(t))

	res, err = f.svc.Correct(ctx, added.Entry.ID, entity.Quantities{InputQty: 60, OutputQty: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Entry.Version)
	assert.Equal(t, int64(10), f.produced(t))

	stored, err := f.svc.Get(ctx, added.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), stored.OutputQty)
	assert.Equal(t, int64(0), stored.DefectQty)
}

func TestService_CorrectErrors(t *testing.T) {
	f := newFixture(t, reconcile.DefaultPolicy())
	ctx := context.Background()

	_, err := f.svc.Correct(ctx, id.New(), entity.Quantities{OutputQty: 1})
	assert.True(t, apperror.IsNotFound(err))

	added, err := f.svc.Add(ctx, f.addInput(entity.StageSewing, 14, 40))
	require.NoError(t, err)

	_, err = f.svc.Correct(ctx, added.Entry.ID, entity.Quantities{OutputQty: -3})
	assert.True(t, apperror.IsValidation(err))
	assert.Equal(t, int64(40), f.produced(t))
}

func TestService_List(t *testing.T) {
	f := newFixture(t, reconcile.DefaultPolicy())
	ctx := context.Background()

	for _, h := range []int{8, 9, 10} {
		_, err := f.svc.Add(ctx, f.addInput(entity.StageFinishing, h, 5))
		require.NoError(t, err)
	}

	res, err := f.svc.List(ctx, production.ListFilter{Stage: entity.StageFinishing})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.TotalCount)

	_, err = f.svc.List(ctx, production.ListFilter{Stage: "PRESSING"})
	assert.True(t, apperror.IsValidation(err))
}
