package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/qtop/internal/database"
	"github.com/aristath/qtop/internal/scheduler"
	testingpkg "github.com/aristath/qtop/internal/testing"
)

type pingModule struct{}

func (pingModule) RegisterRoutes(r chi.Router) {
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

type stubJob struct {
	name string
	err  error
	runs int
}

func (j *stubJob) Run() error {
	j.runs++
	return j.err
}

func (j *stubJob) Name() string { return j.name }

func newTestServer(t *testing.T, jobs ...scheduler.Job) *Server {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t, "analytics")
	t.Cleanup(cleanup)

	return New(Config{
		Log:       zerolog.Nop(),
		Modules:   []RouteRegistrar{pingModule{}},
		Databases: []*database.DB{db, nil},
		Jobs:      jobs,
		Port:      0,
		DevMode:   true,
	})
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)
}

func TestModuleRoutesMountedUnderAPI(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/ping", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatus(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/system/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["healthy"])
	assert.Equal(t, map[string]interface{}{"analytics": "ok"}, body["databases"])
}

func TestRunJob(t *testing.T) {
	ok := &stubJob{name: "refresh_recommendations"}
	failing := &stubJob{name: "history_cache_cleanup", err: errors.New("locked")}
	s := newTestServer(t, ok, failing)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/system/jobs", nil))
	assert.JSONEq(t, `{"jobs":["history_cache_cleanup","refresh_recommendations"]}`, rec.Body.String())

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/system/jobs/refresh_recommendations/run", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, ok.runs)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/system/jobs/history_cache_cleanup/run", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/system/jobs/nope/run", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
