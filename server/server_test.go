package server

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/amp-labs/tickfsm/herd"
	"github.com/amp-labs/tickfsm/statemachine"
	"github.com/amp-labs/tickfsm/statemachine/presets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, opts ...Option) (*Server, *herd.Herd) {
	t.Helper()

	graph, initial, err := presets.Animal()
	require.NoError(t, err)

	h, err := herd.New(graph, initial, herd.WithName("server_"+t.Name()))
	require.NoError(t, err)
	t.Cleanup(h.Close)

	return New(h, Config{ShutdownTimeout: time.Second}, opts...), h
}

func do(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequestWithContext(t.Context(), method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))

	return out
}

func TestHealthAndReadiness(t *testing.T) {
	t.Parallel()

	ready := errors.New("redis down")
	failing := true

	s, _ := newTestServer(t, WithReadinessCheck(func(context.Context) error {
		if failing {
			return ready
		}

		return nil
	}))
	handler := s.Handler()

	rec := do(t, handler, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ALIVE", rec.Body.String())

	rec = do(t, handler, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "NOT_READY", rec.Body.String())

	failing = false

	rec = do(t, handler, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "READY", rec.Body.String())
}

func TestMachineLifecycle(t *testing.T) {
	t.Parallel()

	s, h := newTestServer(t)
	handler := s.Handler()

	rec := do(t, handler, http.MethodPost, "/machines",
		`{"id":"cow","facts":{"isHungry":true,"isHeat":false}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decode[machineView](t, rec)
	assert.Equal(t, "cow", created.ID)
	assert.Equal(t, presets.Idle, created.State)

	rec = do(t, handler, http.MethodPost, "/machines", `{"id":"cow"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, handler, http.MethodPost, "/machines/cow/step", "")
	require.Equal(t, http.StatusOK, rec.Code)

	step := decode[stepView](t, rec)
	assert.Equal(t, stepView{Tick: 1, From: presets.Idle, To: presets.Eat, Changed: true, Label: "hungry"}, step)

	rec = do(t, handler, http.MethodPut, "/machines/cow/facts/isHungry", "false\n")
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = do(t, handler, http.MethodPut, "/machines/cow/facts/energy", "int:7")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, handler, http.MethodGet, "/machines/cow", "")
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[map[string]any](t, rec)
	assert.Equal(t, presets.Eat, got["state"])
	assert.Equal(t, map[string]any{"isHungry": false, "isHeat": false, "energy": float64(7)}, got["facts"])
	assert.Len(t, got["history"], 1)

	rec = do(t, handler, http.MethodDelete, "/machines/cow/facts/energy", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, handler, http.MethodGet, "/machines", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]machineView](t, rec), 1)

	rec = do(t, handler, http.MethodDelete, "/machines/cow", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, h.Len())

	rec = do(t, handler, http.MethodGet, "/machines/cow", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["error"], herd.ErrMemberNotFound.Error())

	rec = do(t, handler, http.MethodDelete, "/machines/cow", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateGeneratesID(t *testing.T) {
	t.Parallel()

	s, h := newTestServer(t)

	rec := do(t, s.Handler(), http.MethodPost, "/machines", "")
	require.Equal(t, http.StatusCreated, rec.Code)

	view := decode[machineView](t, rec)
	assert.NotEmpty(t, view.ID)

	_, ok := h.Get(view.ID)
	assert.True(t, ok)
}

func TestBadRequests(t *testing.T) {
	t.Parallel()

	s, h := newTestServer(t)
	handler := s.Handler()

	_, err := h.AddWithID(t.Context(), "goat", nil)
	require.NoError(t, err)

	tests := []struct {
		name, method, path, body string
		status                   int
	}{
		{"malformed json", http.MethodPost, "/machines", `{"id":`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/machines", `{"name":"x"}`, http.StatusBadRequest},
		{"composite fact", http.MethodPost, "/machines", `{"facts":{"a":[1]}}`, http.StatusBadRequest},
		{"empty fact", http.MethodPut, "/machines/goat/facts/isHungry", "  ", http.StatusBadRequest},
		{"bad kind text", http.MethodPut, "/machines/goat/facts/energy", "int:lots", http.StatusBadRequest},
		{"non-finite float", http.MethodPut, "/machines/goat/facts/energy", "float:nan", http.StatusBadRequest},
		{"infinite float", http.MethodPut, "/machines/goat/facts/energy", "float:+Inf", http.StatusBadRequest},
		{"unknown member fact", http.MethodPut, "/machines/sheep/facts/isHungry", "true", http.StatusNotFound},
		{"unknown member step", http.MethodPost, "/machines/sheep/step", "", http.StatusNotFound},
		{"unknown active", http.MethodGet, "/graph?active=sheep", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := do(t, handler, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestParseFactBody(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want statemachine.Value
	}{
		{"true", statemachine.Bool(true)},
		{"42", statemachine.Int(42)},
		{"2.5", statemachine.Float(2.5)},
		{"float:3", statemachine.Float(3)},
		{"string:true", statemachine.String("true")},
		{"url:http://example.com", statemachine.String("url:http://example.com")},
		{"nan", statemachine.String("nan")},
		{"-inf", statemachine.String("-inf")},
	}

	for _, tt := range tests {
		got, err := parseFactBody(tt.in)
		require.NoError(t, err, tt.in)
		assert.True(t, tt.want.Equal(got), "%s: got %v", tt.in, got)
	}

	_, err := parseFactBody("float:NaN")
	require.ErrorIs(t, err, statemachine.ErrUnsupportedValue)

	_, err = parseFactBody("bool:maybe")
	require.ErrorIs(t, err, statemachine.ErrInvalidValueText)

	_, err = parseFactBody("")
	require.ErrorIs(t, err, errEmptyValue)
}

func TestUnencodableResponse(t *testing.T) {
	t.Parallel()

	s, h := newTestServer(t)
	handler := s.Handler()

	member, err := h.AddWithID(t.Context(), "ewe", nil)
	require.NoError(t, err)

	rec := do(t, handler, http.MethodPut, "/machines/ewe/facts/weight", "nan")
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = do(t, handler, http.MethodGet, "/machines/ewe", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nan", decode[map[string]any](t, rec)["facts"].(map[string]any)["weight"])

	// Stores take a Value directly, bypassing the finite check.
	require.NoError(t, member.Store().Put(t.Context(), "weight", statemachine.Float(math.NaN())))

	rec = do(t, handler, http.MethodGet, "/machines/ewe", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, decode[map[string]string](t, rec)["error"])
}

func TestTickEndpoint(t *testing.T) {
	t.Parallel()

	s, h := newTestServer(t)

	_, err := h.AddWithID(t.Context(), "a", map[string]any{presets.FactHungry: true, presets.FactHeat: false})
	require.NoError(t, err)

	_, err = h.AddWithID(t.Context(), "b", nil)
	require.NoError(t, err)

	rec := do(t, s.Handler(), http.MethodPost, "/tick", "")
	require.Equal(t, http.StatusOK, rec.Code)

	view := decode[tickView](t, rec)
	assert.Equal(t, uint64(1), view.Tick)
	assert.Equal(t, 2, view.Members)
	assert.Equal(t, 1, view.Transitions)
	assert.Equal(t, 1, view.Diagnosed)
	assert.Equal(t, presets.Eat, view.Results["a"].To)
	assert.NotEmpty(t, view.Results["b"].Diagnostics)

	h.Close()

	rec = do(t, s.Handler(), http.MethodPost, "/tick", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGraphEndpoint(t *testing.T) {
	t.Parallel()

	s, h := newTestServer(t)

	_, err := h.AddWithID(t.Context(), "a", nil)
	require.NoError(t, err)

	rec := do(t, s.Handler(), http.MethodGet, "/graph", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "stateDiagram-v2"), rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "```")

	rec = do(t, s.Handler(), http.MethodGet, "/graph?active=a", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), presets.Idle)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	s, h := newTestServer(t)

	_, err := h.Tick(t.Context())
	require.NoError(t, err)

	rec := do(t, s.Handler(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tickfsm_herd_ticks_total")
}

func TestVersionEndpoint(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)

	rec := do(t, s.Handler(), http.MethodGet, "/version", "")
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[map[string]any](t, rec)
	assert.NotEmpty(t, got["version"])
	assert.NotContains(t, got, "dependencies")
}

func TestRunAndShutdown(t *testing.T) {
	t.Parallel()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	graph, initial, err := presets.Animal()
	require.NoError(t, err)

	h, err := herd.New(graph, initial)
	require.NoError(t, err)
	t.Cleanup(h.Close)

	s := New(h, Config{Addr: addr, ShutdownTimeout: time.Second})

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)

	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		req, reqErr := http.NewRequestWithContext(t.Context(), http.MethodGet, "http://"+addr+"/healthz", nil)
		if reqErr != nil {
			return false
		}

		resp, reqErr := http.DefaultClient.Do(req)
		if reqErr != nil {
			return false
		}

		_ = resp.Body.Close()

		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	require.ErrorIs(t, s.Run(t.Context()), ErrAlreadyRunning)

	cancel()
	require.NoError(t, <-done)
	require.NoError(t, s.Shutdown(t.Context()))
}
