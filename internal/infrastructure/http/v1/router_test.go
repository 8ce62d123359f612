package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"prodledger/internal/app"
	"prodledger/internal/config"
	"prodledger/internal/core/entity"
	"prodledger/internal/domain/auth"
	"prodledger/internal/domain/catalogs/line"
	"prodledger/internal/domain/catalogs/style"
	"prodledger/internal/domain/reconcile"
	v1 "prodledger/internal/infrastructure/http/v1"
	"prodledger/internal/infrastructure/http/v1/handlers"
	"prodledger/internal/infrastructure/http/v1/middleware"
	"prodledger/internal/infrastructure/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type server struct {
	t      *testing.T
	app    *app.App
	router *gin.Engine
	line   *line.Line
	style  *style.Style
}

func testConfig() config.Config {
	return config.Config{
		Storage:         config.StorageMemory,
		Env:             "test",
		RequestTimeout:  5 * time.Second,
		ProducedSource:  reconcile.SourceProduction,
		CountingStage:   entity.StageSewing,
		BulkConcurrency: 4,
	}
}

func newServer(t *testing.T, mutate func(*v1.RouterConfig)) *server {
	t.Helper()
	ctx := context.Background()

	m := metrics.New()
	a, err := app.Build(ctx, testConfig(), app.Options{Metrics: m})
	require.NoError(t, err)

	ln := line.NewLine("L01", "Line 1")
	st := style.NewStyle("ST001", "Polo shirt")
	require.NoError(t, a.Lines.Create(ctx, ln))
	require.NoError(t, a.Styles.Create(ctx, st))

	cfg := v1.RouterConfig{
		RequestTimeout: 5 * time.Second,
		Metrics:        m,
		MetricsHandler: m.Handler(),
		Health:         handlers.HealthConfig{Version: "test", Storage: config.StorageMemory},
		Targets:        a.Targets,
		Production:     a.Production,
		Ledger:         a.Ledger,
		Reports:        a.Reports,
		Lines:          a.Lines,
		Styles:         a.Styles,
		History:        a.Audit,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	return &server{t: t, app: a, router: v1.NewRouter(cfg), line: ln, style: st}
}

func (s *server) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

type balanceBody struct {
	StyleCode      string `json:"styleCode"`
	TotalTarget    int64  `json:"totalTarget"`
	TotalProduced  int64  `json:"totalProduced"`
	CurrentBalance int64  `json:"currentBalance"`
}

type targetWriteBody struct {
	Target *struct {
		ID string `json:"id"`
	} `json:"target"`
	PreviousID string              `json:"previousId"`
	Balance    balanceBody         `json:"balance"`
	Warnings   []reconcile.Warning `json:"warnings"`
}

func (s *server) createTarget(lineCode, styleCode, date string, lineTarget int64) targetWriteBody {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/v1/targets", map[string]any{
		"lineCode": lineCode, "styleCode": styleCode, "date": date, "lineTarget": lineTarget,
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[targetWriteBody](s.t, w)
}

func (s *server) balance(styleCode string) balanceBody {
	s.t.Helper()
	w := s.do(http.MethodGet, "/api/v1/balances/"+styleCode, nil)
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	return decode[balanceBody](s.t, w)
}

func TestHealth(t *testing.T) {
	s := newServer(t, nil)

	for _, path := range []string{"/health/live", "/health/ready", "/health/info"} {
		w := s.do(http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestTargets_CreateAndDeleteReconcileBalance(t *testing.T) {
	s := newServer(t, nil)

	created := s.createTarget("L01", "st001", "2024-03-01", 500)
	require.NotNil(t, created.Target)
	assert.Equal(t, int64(500), created.Balance.TotalTarget)
	assert.Equal(t, int64(500), created.Balance.CurrentBalance)
	assert.Empty(t, created.Warnings)

	w := s.do(http.MethodGet, "/api/v1/targets/"+created.Target.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodDelete, "/api/v1/targets/"+created.Target.ID, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	deleted := decode[targetWriteBody](t, w)
	assert.Equal(t, created.Target.ID, deleted.PreviousID)
	assert.Equal(t, int64(0), deleted.Balance.TotalTarget)

	w = s.do(http.MethodGet, "/api/v1/targets/"+created.Target.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTargets_DuplicateSlotConflicts(t *testing.T) {
	s := newServer(t, nil)
	s.createTarget("L01", "ST001", "2024-03-01", 500)

	w := s.do(http.MethodPost, "/api/v1/targets", map[string]any{
		"lineCode": "L01", "styleCode": "ST001", "date": "2024-03-01", "lineTarget": 10,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, int64(500), s.balance("ST001").TotalTarget)
}

func TestTargets_ValidationRejectedBeforeMutation(t *testing.T) {
	s := newServer(t, nil)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"non-positive target", map[string]any{"lineCode": "L01", "styleCode": "ST001", "date": "2024-03-01", "lineTarget": -5}},
		{"bad date", map[string]any{"lineCode": "L01", "styleCode": "ST001", "date": "01/03/2024", "lineTarget": 5}},
		{"missing style", map[string]any{"lineCode": "L01", "date": "2024-03-01", "lineTarget": 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodPost, "/api/v1/targets", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
	assert.Equal(t, int64(0), s.balance("ST001").TotalTarget)
}

func TestTargets_ReplaceMovesBetweenStyles(t *testing.T) {
	s := newServer(t, nil)
	created := s.createTarget("L01", "ST001", "2024-03-01", 500)

	w := s.do(http.MethodPut, "/api/v1/targets/"+created.Target.ID, map[string]any{
		"lineCode": "L01", "styleCode": "ST002", "date": "2024-03-01", "lineTarget": 300,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	replaced := decode[targetWriteBody](t, w)
	assert.NotEqual(t, created.Target.ID, replaced.Target.ID)

	assert.Equal(t, int64(0), s.balance("ST001").TotalTarget)
	assert.Equal(t, int64(300), s.balance("ST002").TotalTarget)
}

func TestTargets_BulkDelete(t *testing.T) {
	s := newServer(t, nil)
	a := s.createTarget("L01", "ST001", "2024-03-01", 100)
	b := s.createTarget("L02", "ST001", "2024-03-01", 200)
	missing := "018e0000-0000-7000-8000-000000000000"

	w := s.do(http.MethodPost, "/api/v1/targets/bulk-delete", map[string]any{
		"ids": []string{a.Target.ID, b.Target.ID, missing},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	report := decode[struct {
		Requested       int   `json:"requested"`
		ReconciledCount int   `json:"reconciledCount"`
		DeletedCount    int64 `json:"deletedCount"`
		Errors          []struct {
			ID   string `json:"id"`
			Code string `json:"code"`
		} `json:"errors"`
	}](t, w)

	assert.Equal(t, 3, report.Requested)
	assert.Equal(t, 3, report.ReconciledCount)
	assert.Equal(t, int64(2), report.DeletedCount)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, missing, report.Errors[0].ID)
	assert.Equal(t, "NOT_FOUND", report.Errors[0].Code)
	assert.Equal(t, int64(0), s.balance("ST001").TotalTarget)

	w = s.do(http.MethodPost, "/api/v1/targets/bulk-delete", map[string]any{"ids": []string{"nope"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTargets_BulkDeleteFailureKeepsReport(t *testing.T) {
	s := newServer(t, nil)
	a := s.createTarget("L01", "ST001", "2024-03-01", 100)
	b := s.createTarget("L02", "ST001", "2024-03-01", 200)

	s.app.Memory.SetFault(func(op string) error {
		if op == "target.delete_many" {
			return errors.New("disk full")
		}
		return nil
	})
	w := s.do(http.MethodPost, "/api/v1/targets/bulk-delete", map[string]any{
		"ids": []string{a.Target.ID, b.Target.ID},
	})
	s.app.Memory.SetFault(nil)
	require.Equal(t, http.StatusInternalServerError, w.Code, w.Body.String())

	body := decode[struct {
		Code    string `json:"code"`
		Details struct {
			Report struct {
				Requested       int   `json:"requested"`
				ReconciledCount int   `json:"reconciledCount"`
				DeletedCount    int64 `json:"deletedCount"`
				Items           []struct {
					ID     string `json:"id"`
					Status string `json:"status"`
				} `json:"items"`
			} `json:"report"`
		} `json:"details"`
	}](t, w)

	report := body.Details.Report
	assert.Equal(t, 2, report.Requested)
	assert.Equal(t, 2, report.ReconciledCount)
	assert.Equal(t, int64(0), report.DeletedCount)
	require.Len(t, report.Items, 2)
	assert.Equal(t, "RECONCILED", report.Items[0].Status)

	// The reversals stand and are journaled, so a retry only deletes.
	assert.Equal(t, int64(0), s.balance("ST001").TotalTarget)
	w = s.do(http.MethodPost, "/api/v1/targets/bulk-delete", map[string]any{
		"ids": []string{a.Target.ID, b.Target.ID},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	retry := decode[struct {
		DeletedCount int64 `json:"deletedCount"`
	}](t, w)
	assert.Equal(t, int64(2), retry.DeletedCount)
	assert.Equal(t, int64(0), s.balance("ST001").TotalTarget)
}

func TestProduction_SewingOutputFeedsBalance(t *testing.T) {
	s := newServer(t, nil)
	s.createTarget("L01", "ST001", "2024-03-01", 500)

	entry := map[string]any{
		"date": "2024-03-01", "hourIndex": 9,
		"lineId": s.line.ID.String(), "styleId": s.style.ID.String(),
		"stage": "SEWING", "inputQty": 130, "outputQty": 120, "defectQty": 6, "reworkQty": 4,
	}
	w := s.do(http.MethodPost, "/api/v1/production-entries", entry)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	added := decode[struct {
		Entry struct {
			ID        string `json:"id"`
			HourLabel string `json:"hourLabel"`
		} `json:"entry"`
		Balance *balanceBody `json:"balance"`
	}](t, w)
	assert.Equal(t, "9-10", added.Entry.HourLabel)
	require.NotNil(t, added.Balance)
	assert.Equal(t, int64(120), added.Balance.TotalProduced)
	assert.Equal(t, int64(380), added.Balance.CurrentBalance)

	w = s.do(http.MethodPost, "/api/v1/production-entries", entry)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPatch, "/api/v1/production-entries/"+added.Entry.ID, map[string]any{
		"inputQty": 130, "outputQty": 100, "defectQty": 6, "reworkQty": 4,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, int64(100), s.balance("ST001").TotalProduced)

	cutting := map[string]any{
		"date": "2024-03-01", "hourIndex": 9,
		"lineId": s.line.ID.String(), "styleId": s.style.ID.String(),
		"stage": "CUTTING", "inputQty": 200, "outputQty": 200,
	}
	w = s.do(http.MethodPost, "/api/v1/production-entries", cutting)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, int64(100), s.balance("ST001").TotalProduced)

	w = s.do(http.MethodGet, "/api/v1/production-entries?stage=SEWING", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		TotalCount int64 `json:"totalCount"`
	}](t, w)
	assert.Equal(t, int64(1), list.TotalCount)

	w = s.do(http.MethodGet, "/api/v1/production-entries/"+added.Entry.ID+"/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decode[struct {
		Items []struct {
			Action string `json:"action"`
		} `json:"items"`
	}](t, w)
	require.Len(t, history.Items, 2)
	assert.Equal(t, "correct", history.Items[0].Action)
}

func TestProduction_UnknownLineIsValidationError(t *testing.T) {
	s := newServer(t, nil)

	w := s.do(http.MethodPost, "/api/v1/production-entries", map[string]any{
		"date": "2024-03-01", "hourIndex": 9,
		"lineId": "018e0000-0000-7000-8000-000000000000", "styleId": s.style.ID.String(),
		"stage": "SEWING", "outputQty": 1,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBalances_UnknownStyleReadsZero(t *testing.T) {
	s := newServer(t, nil)

	b := s.balance("NOPE")
	assert.Equal(t, "NOPE", b.StyleCode)
	assert.Equal(t, int64(0), b.CurrentBalance)

	w := s.do(http.MethodGet, "/api/v1/balances?excludeZero=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"items":[]}`, w.Body.String())
}

func TestReports_DailyRollupAndExport(t *testing.T) {
	s := newServer(t, nil)
	for hour, out := range map[int]int64{9: 90, 10: 110} {
		w := s.do(http.MethodPost, "/api/v1/production-entries", map[string]any{
			"date": "2024-03-01", "hourIndex": hour,
			"lineId": s.line.ID.String(), "styleId": s.style.ID.String(),
			"stage": "SEWING", "inputQty": 100, "outputQty": out,
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := s.do(http.MethodGet, "/api/v1/reports/daily-rollup?date=2024-03-01&groupBy=line", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rollup := decode[struct {
		Cells []struct {
			LineCode  string `json:"lineCode"`
			OutputQty int64  `json:"outputQty"`
			Entries   int    `json:"entries"`
		} `json:"cells"`
		Totals struct {
			InputQty  int64 `json:"inputQty"`
			OutputQty int64 `json:"outputQty"`
		} `json:"totals"`
	}](t, w)
	require.Len(t, rollup.Cells, 1)
	assert.Equal(t, "L01", rollup.Cells[0].LineCode)
	assert.Equal(t, int64(200), rollup.Cells[0].OutputQty)
	assert.Equal(t, 2, rollup.Cells[0].Entries)
	assert.Equal(t, int64(200), rollup.Totals.InputQty)

	w = s.do(http.MethodGet, "/api/v1/reports/daily-rollup?date=2024-03-01&from=2024-03-01", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(http.MethodGet, "/api/v1/reports/daily-rollup?date=2024-03-01&groupBy=shift", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(http.MethodGet, "/api/v1/reports/daily-rollup", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/v1/reports/daily-rollup/export?date=2024-03-01&groupBy=line", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Rollup")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "L01", rows[1][0])
}

func TestCatalog_CreateListGet(t *testing.T) {
	s := newServer(t, nil)

	w := s.do(http.MethodPost, "/api/v1/catalog/styles", map[string]any{
		"code": "st002", "name": "Hoodie", "buyer": "Acme", "smv": 1250,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[struct {
		ID   string `json:"id"`
		Code string `json:"code"`
	}](t, w)
	assert.Equal(t, "ST002", created.Code)

	w = s.do(http.MethodPost, "/api/v1/catalog/styles", map[string]any{"code": "ST002", "name": "Again"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodGet, "/api/v1/catalog/styles/by-code/st002", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/v1/catalog/styles?search=hood", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		TotalCount int64 `json:"totalCount"`
	}](t, w)
	assert.Equal(t, int64(1), list.TotalCount)

	w = s.do(http.MethodPost, "/api/v1/catalog/lines/"+s.line.ID.String()+"/active", map[string]any{"active": false})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(http.MethodGet, "/api/v1/catalog/lines/not-an-id", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestActor_HeaderRecordedOnTarget(t *testing.T) {
	s := newServer(t, nil)

	w := s.do(http.MethodPost, "/api/v1/targets", map[string]any{
		"lineCode": "L01", "styleCode": "ST001", "date": "2024-03-01", "lineTarget": 5,
	}, middleware.HeaderActorID, "planner-7")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"createdBy":"planner-7"`)
}

func TestActor_BearerTokenRequiredWhenValidatorSet(t *testing.T) {
	jwtSvc := auth.NewJWTService(auth.DefaultJWTConfig("secret"))
	s := newServer(t, func(cfg *v1.RouterConfig) { cfg.ActorValidator = jwtSvc })

	w := s.do(http.MethodGet, "/api/v1/balances/ST001", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, _, err := jwtSvc.IssueToken("supervisor-2", "", nil)
	require.NoError(t, err)
	w = s.do(http.MethodGet, "/api/v1/balances/ST001", nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newServer(t, nil)
	s.createTarget("L01", "ST001", "2024-03-01", 5)

	w := s.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, `prodledger_reconcile_applies_total{applied="true",direction="APPLY"} 1`), body)
	assert.Contains(t, body, `route="/api/v1/targets"`)
}
