package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/garnizeh/wildspot/api"
	"github.com/garnizeh/wildspot/internal/metrics"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggingMiddleware_RecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	api.SetLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { api.SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil))) })

	h := api.LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("made"))
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/tasks", nil))

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "made", rr.Body.String())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "request", entry["msg"])
	assert.Equal(t, "/api/tasks", entry["path"])
	assert.EqualValues(t, http.StatusCreated, entry["status"])
}

func TestCORSMiddleware(t *testing.T) {
	reached := false
	h := api.CORSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	cases := []struct {
		method  string
		status  int
		reached bool
	}{
		{http.MethodOptions, http.StatusNoContent, false},
		{http.MethodGet, http.StatusOK, true},
		{http.MethodPost, http.StatusOK, true},
	}
	for _, tc := range cases {
		t.Run(tc.method, func(t *testing.T) {
			reached = false
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(tc.method, "/api/recognize", nil))
			assert.Equal(t, tc.status, rr.Code)
			assert.Equal(t, tc.reached, reached)
			assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
			assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "POST")
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := api.RecoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/boom" {
			panic("boom")
		}
		w.WriteHeader(http.StatusAccepted)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/fine", nil))
	assert.Equal(t, http.StatusAccepted, rr.Code)
}

func TestMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	m := metrics.New()
	r := mux.NewRouter()
	r.Use(api.MetricsMiddleware(m))
	r.HandleFunc("/share/{token}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, tok := range []string{"AAAA1111", "BBBB2222"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/share/"+tok, nil))
	}

	n, err := testutil.GatherAndCount(m.Registry(), "wildspot_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "both requests share one series")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rr.Body.String(), `route="/share/{token}",status="404"} 2`)
}
