package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/rzbill/logwindow/internal/config"
	"github.com/rzbill/logwindow/internal/logstore"
	"github.com/rzbill/logwindow/internal/message"
	"github.com/rzbill/logwindow/internal/runtime"
	pebblestore "github.com/rzbill/logwindow/internal/storage/pebble"
	logpkg "github.com/rzbill/logwindow/pkg/log"
)

func newTestServer(t *testing.T) (*Server, *runtime.Runtime) {
	t.Helper()
	return newTestServerWith(t, cfgpkg.Default())
}

func newTestServerWith(t *testing.T, cfg cfgpkg.Config) (*Server, *runtime.Runtime) {
	t.Helper()
	rt, err := runtime.Open(runtime.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways, Config: cfg})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	logger, err := logpkg.ApplyConfig(&logpkg.Config{Level: "error", Format: "text"})
	require.NoError(t, err)
	return New(rt, logger), rt
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

type page struct {
	Messages []*message.Message `json:"messages"`
	Total    int64              `json:"total"`
	Stale    bool               `json:"stale"`
}

func decodePage(t *testing.T, w *httptest.ResponseRecorder) page {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var p page
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	return p
}

func TestHealthHandler(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(t, s, http.MethodGet, "/v1/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","backend":"pebble","maxBacklog":1000,"count":0}`, w.Body.String())
}

func TestHealthHandlerAfterClose(t *testing.T) {
	s, rt := newTestServer(t)
	require.NoError(t, rt.Close())
	w := do(t, s, http.MethodGet, "/v1/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestReportAndLatest(t *testing.T) {
	s, _ := newTestServer(t)

	for _, body := range []string{
		`{"severity":"error","progname":"web","message":"boom"}`,
		`{"severity":3,"progname":"web","message":"boom"}`,
		`{"severity":"warn","progname":"web","message":"slow query","env":{"hostname":"a1","secret":"x"}}`,
	} {
		w := do(t, s, http.MethodPost, "/v1/messages", body)
		require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	}

	p := decodePage(t, do(t, s, http.MethodGet, "/v1/messages", ""))
	require.Len(t, p.Messages, 2)
	assert.EqualValues(t, 2, p.Total)
	assert.Equal(t, "boom", p.Messages[0].Message)
	assert.EqualValues(t, 2, p.Messages[0].Count)
	assert.Equal(t, "slow query", p.Messages[1].Message)
	assert.Equal(t, "a1", p.Messages[1].Env["hostname"])
	assert.NotContains(t, p.Messages[1].Env, "secret")
}

func TestReportRejectsBadBody(t *testing.T) {
	s, _ := newTestServer(t)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/v1/messages", `{`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/v1/messages", `{"severity":"loud","message":"x"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/v1/messages", `{"severity":9,"message":"x"}`).Code)
}

func TestReportEmptyIsAccepted(t *testing.T) {
	s, rt := newTestServer(t)
	w := do(t, s, http.MethodPost, "/v1/messages", `{"severity":"error","message":""}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
	n, err := rt.Store().Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLatestFiltersAndCursors(t *testing.T) {
	s, rt := newTestServer(t)
	ctx := context.Background()
	st := rt.Store()
	texts := []string{"one", "two", "three", "four"}
	sevs := []message.Severity{message.Info, message.Error, message.Info, message.Fatal}
	for i, text := range texts {
		require.NoError(t, st.Report(ctx, logstore.ReportParams{Severity: sevs[i], Text: text}))
	}

	p := decodePage(t, do(t, s, http.MethodGet, "/v1/messages?severity=error,fatal", ""))
	require.Len(t, p.Messages, 2)
	assert.Equal(t, "two", p.Messages[0].Message)
	assert.Equal(t, "four", p.Messages[1].Message)

	p = decodePage(t, do(t, s, http.MethodGet, "/v1/messages?search=t", ""))
	require.Len(t, p.Messages, 2)
	assert.Equal(t, "two", p.Messages[0].Message)
	assert.Equal(t, "three", p.Messages[1].Message)

	p = decodePage(t, do(t, s, http.MethodGet, "/v1/messages?search=%5Eo&regex=1", ""))
	require.Len(t, p.Messages, 1)
	assert.Equal(t, "one", p.Messages[0].Message)

	all := decodePage(t, do(t, s, http.MethodGet, "/v1/messages", ""))
	require.Len(t, all.Messages, 4)
	p = decodePage(t, do(t, s, http.MethodGet, "/v1/messages?limit=2&before="+all.Messages[3].Key, ""))
	require.Len(t, p.Messages, 2)
	assert.Equal(t, "two", p.Messages[0].Message)
	assert.Equal(t, "three", p.Messages[1].Message)

	p = decodePage(t, do(t, s, http.MethodGet, "/v1/messages?after="+all.Messages[1].Key, ""))
	require.Len(t, p.Messages, 2)
	assert.Equal(t, "three", p.Messages[0].Message)

	p = decodePage(t, do(t, s, http.MethodGet, "/v1/messages?after=nope", ""))
	assert.Empty(t, p.Messages)

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/v1/messages?search=%28&regex=1", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/v1/messages?severity=loud", "").Code)
}

func TestReportNullSeverityIsUnknown(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(t, s, http.MethodPost, "/v1/messages", `{"severity":null,"message":"no level"}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	w = do(t, s, http.MethodPost, "/v1/messages", `{"message":"missing level"}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	p := decodePage(t, do(t, s, http.MethodGet, "/v1/messages", ""))
	require.Len(t, p.Messages, 2)
	for _, m := range p.Messages {
		assert.Equal(t, message.Unknown, m.Severity, m.Message)
	}
}

func TestLatestStaleCursor(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.MaxBacklog = 2
	s, rt := newTestServerWith(t, cfg)
	ctx := context.Background()
	st := rt.Store()
	require.NoError(t, st.Report(ctx, logstore.ReportParams{Severity: message.Error, Text: "kept"}))
	rows, err := st.Latest(ctx, logstore.LatestOptions{})
	require.NoError(t, err)
	kept := rows[0].Key
	_, err = st.Protect(ctx, kept)
	require.NoError(t, err)

	// kept is the only row, so both directions are empty but the cursor is live
	p := decodePage(t, do(t, s, http.MethodGet, "/v1/messages?after="+kept, ""))
	assert.Empty(t, p.Messages)
	assert.False(t, p.Stale)
	p = decodePage(t, do(t, s, http.MethodGet, "/v1/messages?before="+kept, ""))
	assert.False(t, p.Stale)

	for _, text := range []string{"b", "c"} {
		require.NoError(t, st.Report(ctx, logstore.ReportParams{Severity: message.Error, Text: text}))
	}
	p = decodePage(t, do(t, s, http.MethodGet, "/v1/messages?after="+kept, ""))
	assert.Empty(t, p.Messages)
	assert.True(t, p.Stale)
	p = decodePage(t, do(t, s, http.MethodGet, "/v1/messages?after=unknown", ""))
	assert.True(t, p.Stale)
	p = decodePage(t, do(t, s, http.MethodGet, "/v1/messages", ""))
	assert.False(t, p.Stale)
	assert.Len(t, p.Messages, 2)
}

func TestLatestHugeLimit(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.MaxBacklog = 3
	s, rt := newTestServerWith(t, cfg)
	ctx := context.Background()
	for _, text := range []string{"a", "b", "c", "d"} {
		require.NoError(t, rt.Store().Report(ctx, logstore.ReportParams{Severity: message.Error, Text: text}))
	}
	p := decodePage(t, do(t, s, http.MethodGet, "/v1/messages?limit=1000000000", ""))
	require.Len(t, p.Messages, 3)
	assert.Equal(t, "d", p.Messages[2].Message)
}

func TestGetProtectUnprotect(t *testing.T) {
	s, rt := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, rt.Store().Report(ctx, logstore.ReportParams{Severity: message.Error, Text: "keep me"}))
	all := decodePage(t, do(t, s, http.MethodGet, "/v1/messages", ""))
	require.Len(t, all.Messages, 1)
	key := all.Messages[0].Key

	w := do(t, s, http.MethodGet, "/v1/messages/"+key, "")
	require.Equal(t, http.StatusOK, w.Code)
	var m message.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	assert.Equal(t, "keep me", m.Message)
	assert.False(t, m.Protected)

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/v1/messages/missing", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodPost, "/v1/messages/missing/protect", "").Code)

	w = do(t, s, http.MethodPost, "/v1/messages/"+key+"/protect", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"protected":true`)

	assert.Equal(t, http.StatusNoContent, do(t, s, http.MethodPost, "/v1/clear", "").Code)
	p := decodePage(t, do(t, s, http.MethodGet, "/v1/messages", ""))
	require.Len(t, p.Messages, 1)
	assert.True(t, p.Messages[0].Protected)

	w = do(t, s, http.MethodDelete, "/v1/messages/"+key+"/protect", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"protected":false`)
}

func TestCountAndClearAll(t *testing.T) {
	s, rt := newTestServer(t)
	ctx := context.Background()
	st := rt.Store()
	require.NoError(t, st.Report(ctx, logstore.ReportParams{Severity: message.Error, Text: "a"}))
	require.NoError(t, st.Report(ctx, logstore.ReportParams{Severity: message.Error, Text: "b"}))

	w := do(t, s, http.MethodGet, "/v1/count", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":2}`, w.Body.String())

	all := decodePage(t, do(t, s, http.MethodGet, "/v1/messages", ""))
	require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/v1/messages/"+all.Messages[0].Key+"/protect", "").Code)

	assert.Equal(t, http.StatusNoContent, do(t, s, http.MethodPost, "/v1/clear?all=1", "").Code)
	w = do(t, s, http.MethodGet, "/v1/count", "")
	assert.JSONEq(t, `{"count":0}`, w.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(t, s, http.MethodOptions, "/v1/messages", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestPanicIsRecorded(t *testing.T) {
	s, rt := newTestServer(t)
	s.Handler().(*chi.Mux).Get("/v1/boom", func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	})

	w := do(t, s, http.MethodGet, "/v1/boom?user=ann&password=hunter2", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	rows, err := rt.Store().Latest(context.Background(), logstore.LatestOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "kaboom", rows[0].Message)
	assert.Equal(t, message.Error, rows[0].Severity)
	assert.Equal(t, Progname, rows[0].Progname)
	assert.NotEmpty(t, rows[0].Backtrace)
	params, ok := rows[0].Env["params"].(map[string]any)
	require.True(t, ok, "params missing from %v", rows[0].Env)
	assert.Equal(t, "ann", params["user"])
	assert.Equal(t, "[redacted]", params["password"])
}
