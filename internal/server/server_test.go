package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pathakanu/eventMemo/internal/dispatch"
	"github.com/pathakanu/eventMemo/internal/logging"
	"github.com/pathakanu/eventMemo/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeScheduler struct {
	state   scheduler.State
	busy    bool
	skipped int64
	last    *dispatch.Summary
	ran     bool
	err     error
}

func (f *fakeScheduler) State() scheduler.State { return f.state }
func (f *fakeScheduler) Busy() bool             { return f.busy }
func (f *fakeScheduler) Skipped() int64         { return f.skipped }

func (f *fakeScheduler) LastSummary() (dispatch.Summary, bool) {
	if f.last == nil {
		return dispatch.Summary{}, false
	}
	return *f.last, true
}

func (f *fakeScheduler) TriggerNow(context.Context) (dispatch.Summary, bool, error) {
	if f.err != nil {
		return dispatch.Summary{}, false, f.err
	}
	return dispatch.Summary{Attempted: 2, Sent: 2}, f.ran, nil
}

func serve(t *testing.T, sched Scheduler, gatherer prometheus.Gatherer, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	router := NewRouter(sched, gatherer, logging.Discard())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	rec := serve(t, &fakeScheduler{state: scheduler.StateRunning}, nil, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
	require.Equal(t, "running", body["scheduler"])
}

func TestStats(t *testing.T) {
	t.Parallel()

	rec := serve(t, &fakeScheduler{skipped: 4, busy: true}, nil, http.MethodGet, "/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "stopped", body["scheduler"])
	require.Equal(t, true, body["tick_running"])
	require.EqualValues(t, 4, body["ticks_skipped"])
	require.NotContains(t, body, "last_tick")

	sched := &fakeScheduler{last: &dispatch.Summary{Sent: 3, Window: "[-2m0s, +0s]"}}
	rec = serve(t, sched, nil, http.MethodGet, "/stats")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	last, ok := body["last_tick"].(map[string]any)
	require.True(t, ok)
	require.EqualValues(t, 3, last["sent"])
}

func TestDispatch(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		sched *fakeScheduler
		code  int
	}{
		{"ran", &fakeScheduler{state: scheduler.StateRunning, ran: true}, http.StatusOK},
		{"busy", &fakeScheduler{state: scheduler.StateRunning}, http.StatusConflict},
		{"stopped", &fakeScheduler{err: scheduler.ErrNotRunning}, http.StatusServiceUnavailable},
		{"other", &fakeScheduler{err: errors.New("boom")}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(t, tc.sched, nil, http.MethodPost, "/dispatch")
			require.Equal(t, tc.code, rec.Code)
		})
	}

	rec := serve(t, &fakeScheduler{ran: true}, nil, http.MethodPost, "/dispatch")
	var summary dispatch.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.Equal(t, 2, summary.Sent)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	metrics := dispatch.MustNewMetrics(reg)
	metrics.TickSkipped()

	rec := serve(t, &fakeScheduler{}, reg, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), `event_memo_dispatch_ticks_total{result="skipped"} 1`))

	rec = serve(t, &fakeScheduler{}, nil, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
