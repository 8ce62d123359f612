package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodledger/internal/core/apperror"
	appctx "prodledger/internal/core/context"
	"prodledger/internal/infrastructure/storage/postgres"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(Recovery(), Trace(), ErrorHandler())
	r.Use(mw...)
	return r
}

func TestErrorHandler_AppError(t *testing.T) {
	r := newEngine()
	r.GET("/x", func(c *gin.Context) {
		_ = c.Error(apperror.NewNotFound("target", "abc"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"NOT_FOUND"`)
}

func TestErrorHandler_HidesUnknownErrors(t *testing.T) {
	r := newEngine()
	r.GET("/x", func(c *gin.Context) {
		_ = c.Error(errors.New("pq: secret detail"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "secret")
	assert.Contains(t, w.Body.String(), apperror.CodeInternal)
}

func TestRecovery(t *testing.T) {
	r := newEngine()
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "boom")

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, apperror.CodeInternal, body["code"])
	assert.Equal(t, "Internal server error", body["message"])
	details, ok := body["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, w.Header().Get(HeaderRequestID), details["request_id"])
}

func TestRecovery_FailsIdempotencyKey(t *testing.T) {
	store := newFakeIdempotencyStore()
	calls := 0
	r := newEngine(Idempotency(store))
	r.POST("/targets", func(c *gin.Context) {
		calls++
		panic("storage exploded")
	})

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/targets", strings.NewReader(`{"a":1}`))
		req.Header.Set(HeaderIdempotencyKey, "k-panic")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	first := send()
	assert.Equal(t, http.StatusInternalServerError, first.Code)
	assert.Equal(t, 1, store.failures)

	// The key is settled, so a retry replays the failure instead of reporting
	// a request still in progress.
	retry := send()
	assert.Equal(t, http.StatusInternalServerError, retry.Code)
	assert.Equal(t, "true", retry.Header().Get("Idempotent-Replay"))
	assert.Equal(t, 1, calls)
}

func TestRecovery_InsideMetricsRecordsServerError(t *testing.T) {
	obs := &recordingObserver{}
	r := gin.New()
	r.Use(Trace(), Metrics(obs), Recovery(), ErrorHandler())
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, http.StatusInternalServerError, obs.status)
	assert.Equal(t, "/panic", obs.route)
}

func TestTrace_KeepsIncomingRequestID(t *testing.T) {
	r := newEngine()
	var seen string
	r.GET("/x", func(c *gin.Context) {
		seen = appctx.GetRequestID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-1", seen)
	assert.Equal(t, "req-1", w.Header().Get(HeaderRequestID))
	assert.NotEmpty(t, w.Header().Get(HeaderTraceID))
}

type stubValidator struct{}

func (stubValidator) ValidateToken(token string) (*appctx.Actor, error) {
	if token != "good" {
		return nil, errors.New("bad token")
	}
	return &appctx.Actor{ID: "planner-7", Roles: []string{"planner"}}, nil
}

func TestAuth(t *testing.T) {
	r := newEngine(Auth(stubValidator{}))
	r.GET("/x", func(c *gin.Context) {
		c.String(http.StatusOK, appctx.GetActorID(c.Request.Context()))
	})

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"valid", "Bearer good", http.StatusOK, "planner-7"},
		{"missing", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic good", http.StatusUnauthorized, ""},
		{"invalid token", "Bearer bad", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}

func TestHeaderActor(t *testing.T) {
	r := newEngine(HeaderActor())
	r.GET("/x", func(c *gin.Context) {
		c.String(http.StatusOK, "[%s]", appctx.GetActorID(c.Request.Context()))
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderActorID, " supervisor-2 ")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "[supervisor-2]", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, "[]", w.Body.String())
}

func TestTimeout_SetsDeadline(t *testing.T) {
	r := newEngine(Timeout(time.Second))
	r.GET("/x", func(c *gin.Context) {
		_, ok := c.Request.Context().Deadline()
		c.String(http.StatusOK, "%v", ok)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, "true", w.Body.String())
}

type recordingObserver struct {
	method, route string
	status        int
}

func (o *recordingObserver) ObserveHTTP(method, route string, status int, _ time.Duration) {
	o.method, o.route, o.status = method, route, status
}

func TestMetrics_UsesRouteTemplate(t *testing.T) {
	obs := &recordingObserver{}
	r := newEngine(Metrics(obs))
	r.GET("/targets/:id", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/targets/123", nil))

	assert.Equal(t, http.MethodGet, obs.method)
	assert.Equal(t, "/targets/:id", obs.route)
	assert.Equal(t, http.StatusAccepted, obs.status)
}

type fakeIdempotencyStore struct {
	mu       sync.Mutex
	records  map[string]*postgres.IdempotencyReplay
	hashes   map[string]string
	pending  map[string]bool
	failures int
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{
		records: make(map[string]*postgres.IdempotencyReplay),
		hashes:  make(map[string]string),
		pending: make(map[string]bool),
	}
}

func (s *fakeIdempotencyStore) AcquireKey(_ context.Context, key, _, operation, hash string) (*postgres.IdempotencyReplay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.hashes[key]; ok {
		if h != operation+hash {
			return nil, apperror.NewIdempotencyMismatch(key)
		}
		if s.pending[key] {
			return nil, apperror.NewIdempotencyConflict(key)
		}
		return s.records[key], nil
	}
	s.hashes[key] = operation + hash
	s.pending[key] = true
	return nil, nil
}

func (s *fakeIdempotencyStore) CompleteKey(ctx context.Context, key string, status int, ct string, response any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[key] = false
	s.records[key] = &postgres.IdempotencyReplay{StatusCode: status, ContentType: ct, Body: []byte(response.(string))}
	return nil
}

func (s *fakeIdempotencyStore) FailKey(ctx context.Context, key string, status int, ct string, _ any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures++
	s.pending[key] = false
	s.records[key] = &postgres.IdempotencyReplay{StatusCode: status, ContentType: ct, Body: []byte(`{"replayed":true}`)}
	return nil
}

func TestIdempotency_FailsKeyAfterTimeout(t *testing.T) {
	store := newFakeIdempotencyStore()
	calls := 0
	r := newEngine(Timeout(20*time.Millisecond), Idempotency(store))
	r.POST("/slow", func(c *gin.Context) {
		calls++
		<-c.Request.Context().Done()
		_ = c.Error(apperror.FromContext("target.create", c.Request.Context().Err()))
	})

	send := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/slow", strings.NewReader(`{}`))
		req.Header.Set(HeaderIdempotencyKey, "k-timeout")
		r.ServeHTTP(w, req)
		return w
	}

	w := send()
	assert.Equal(t, apperror.CodeTimeout, decodeCode(t, w))
	assert.Equal(t, 1, store.failures)

	w = send()
	assert.Equal(t, "true", w.Header().Get("Idempotent-Replay"))
	assert.Equal(t, 1, calls)
}

func decodeCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Code
}

func TestIdempotency_ReplaysCompletedResponse(t *testing.T) {
	store := newFakeIdempotencyStore()
	calls := 0
	r := newEngine(Idempotency(store))
	r.POST("/targets", func(c *gin.Context) {
		calls++
		require.NoError(t, CompleteIdempotency(c, http.StatusCreated, "application/json", `{"id":"t1"}`))
		c.Data(http.StatusCreated, "application/json", []byte(`{"id":"t1"}`))
	})

	send := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/targets", strings.NewReader(body))
		req.Header.Set(HeaderIdempotencyKey, "k1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	first := send(`{"a":1}`)
	assert.Equal(t, http.StatusCreated, first.Code)

	second := send(`{"a":1}`)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, `{"id":"t1"}`, second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replay"))
	assert.Equal(t, 1, calls)

	mismatch := send(`{"a":2}`)
	assert.Equal(t, http.StatusConflict, mismatch.Code)
	assert.Equal(t, 1, calls)
}

func TestIdempotency_FailureIsStored(t *testing.T) {
	store := newFakeIdempotencyStore()
	r := newEngine(Idempotency(store))
	r.POST("/targets", func(c *gin.Context) {
		_ = c.Error(apperror.NewValidation("lineTarget must be positive"))
	})

	req := httptest.NewRequest(http.MethodPost, "/targets", strings.NewReader(`{}`))
	req.Header.Set(HeaderIdempotencyKey, "k2")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 1, store.failures)
}

func TestIdempotency_IgnoresSafeMethodsAndMissingKey(t *testing.T) {
	store := newFakeIdempotencyStore()
	r := newEngine(Idempotency(store))
	r.GET("/targets", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/targets", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/targets", nil)
	req.Header.Set(HeaderIdempotencyKey, "k3")
	r.ServeHTTP(httptest.NewRecorder(), req)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/targets", strings.NewReader(`{}`)))

	assert.Empty(t, store.hashes)
}
