package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/amp-labs/tickfsm/build"
	"github.com/amp-labs/tickfsm/herd"
	"github.com/amp-labs/tickfsm/logger"
	"github.com/amp-labs/tickfsm/statemachine"
	"github.com/amp-labs/tickfsm/statemachine/visualizer"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBodyBytes = 1 << 20

var (
	errEmptyValue  = errors.New("fact value must not be empty")
	errInvalidBody = errors.New("invalid request body")
)

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/version", s.version)
	r.Get("/graph", s.graph)
	r.Post("/tick", s.tick)

	r.Route("/machines", func(r chi.Router) {
		r.Get("/", s.listMachines)
		r.Post("/", s.createMachine)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getMachine)
			r.Delete("/", s.deleteMachine)
			r.Post("/step", s.stepMachine)
			r.Put("/facts/{key}", s.putFact)
			r.Delete("/facts/{key}", s.deleteFact)
		})
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if r.URL.Path == "/healthz" || r.URL.Path == "/readyz" {
			ctx = logger.WithMuted(ctx, true)
		}

		ctx = logger.With(ctx, "request_id", middleware.GetReqID(ctx))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r.WithContext(ctx))

		logger.Get(ctx).Debug("HTTP request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)))
	})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "ALIVE")
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	for _, check := range s.ready {
		if err := check(ctx); err != nil {
			logger.Get(context.WithoutCancel(ctx)).Error("Readiness check failed", logger.Error(err))
			writeText(w, http.StatusServiceUnavailable, "NOT_READY")

			return
		}
	}

	writeText(w, http.StatusOK, "READY")
}

func (s *Server) version(w http.ResponseWriter, r *http.Request) {
	info := build.Current()
	info.Dependencies = nil

	writeJSON(w, r, http.StatusOK, info)
}

func (s *Server) graph(w http.ResponseWriter, r *http.Request) {
	graph, initialName := s.herd.Graph()

	initial, ok := graph.StateByName(initialName)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, statemachine.ErrInitialStateNotFound)

		return
	}

	opts := visualizer.DefaultOptions().WithFenced(false)

	if id := r.URL.Query().Get("active"); id != "" {
		member, found := s.herd.Get(id)
		if !found {
			writeError(w, r, http.StatusNotFound, herd.ErrMemberNotFound)

			return
		}

		opts = opts.WithActive(member.Machine().ActiveState().Name())
	}

	diagram, err := visualizer.GenerateMermaidWithOptions(graph, initial.ID(), opts)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)

		return
	}

	writeText(w, http.StatusOK, diagram)
}

func (s *Server) tick(w http.ResponseWriter, r *http.Request) {
	report, err := s.herd.Tick(r.Context())
	if err != nil {
		writeHerdError(w, r, err)

		return
	}

	view := tickView{
		Tick:        report.Tick,
		Members:     report.Members,
		Transitions: report.Transitions,
		Diagnosed:   report.Diagnosed,
		DurationMS:  float64(report.Duration.Microseconds()) / 1000, //nolint:mnd
		Results:     make(map[string]stepView, len(report.Results)),
	}

	for id, res := range report.Results {
		view.Results[id] = newStepView(res)
	}

	writeJSON(w, r, http.StatusOK, view)
}

func (s *Server) listMachines(w http.ResponseWriter, r *http.Request) {
	members := s.herd.Members()
	views := make([]machineView, 0, len(members))

	for _, m := range members {
		views = append(views, newMachineView(m, false))
	}

	writeJSON(w, r, http.StatusOK, views)
}

type createRequest struct {
	ID    string                        `json:"id,omitempty"`
	Facts map[string]statemachine.Value `json:"facts,omitempty"`
}

func (s *Server) createMachine(w http.ResponseWriter, r *http.Request) {
	var req createRequest

	if r.ContentLength != 0 {
		dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
		dec.DisallowUnknownFields()

		if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, r, http.StatusBadRequest, errors.Join(errInvalidBody, err))

			return
		}
	}

	facts := make(map[string]any, len(req.Facts))
	for k, v := range req.Facts {
		facts[k] = v
	}

	var (
		member *herd.Member
		err    error
	)

	if req.ID != "" {
		member, err = s.herd.AddWithID(r.Context(), req.ID, facts)
	} else {
		member, err = s.herd.Add(r.Context(), facts)
	}

	if err != nil {
		writeHerdError(w, r, err)

		return
	}

	writeJSON(w, r, http.StatusCreated, newMachineView(member, true))
}

func (s *Server) member(w http.ResponseWriter, r *http.Request) (*herd.Member, bool) {
	member, ok := s.herd.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, r, http.StatusNotFound, herd.ErrMemberNotFound)

		return nil, false
	}

	return member, true
}

func (s *Server) getMachine(w http.ResponseWriter, r *http.Request) {
	member, ok := s.member(w, r)
	if !ok {
		return
	}

	view := newMachineView(member, true)

	facts, err := member.Store().Snapshot(r.Context())
	if err != nil {
		writeError(w, r, http.StatusBadGateway, err)

		return
	}

	view.Facts = make(map[string]statemachine.Value, len(facts.Keys()))
	for _, key := range facts.Keys() {
		if v, found := facts.Lookup(key); found {
			view.Facts[key] = v
		}
	}

	writeJSON(w, r, http.StatusOK, view)
}

func (s *Server) deleteMachine(w http.ResponseWriter, r *http.Request) {
	if err := s.herd.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeHerdError(w, r, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) stepMachine(w http.ResponseWriter, r *http.Request) {
	member, ok := s.member(w, r)
	if !ok {
		return
	}

	writeJSON(w, r, http.StatusOK, newStepView(member.Step(r.Context())))
}

func (s *Server) putFact(w http.ResponseWriter, r *http.Request) {
	member, ok := s.member(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, errors.Join(errInvalidBody, err))

		return
	}

	value, err := parseFactBody(strings.TrimSpace(string(body)))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)

		return
	}

	if err := member.Store().Put(r.Context(), chi.URLParam(r, "key"), value); err != nil {
		writeError(w, r, http.StatusBadGateway, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parseFactBody reads "kind:text" strictly when the prefix names a kind and
// falls back to inference otherwise, so "url:http://x" stays a string.
func parseFactBody(text string) (statemachine.Value, error) {
	if text == "" {
		return statemachine.Value{}, errEmptyValue
	}

	if kind, _, ok := strings.Cut(text, ":"); ok && isKindName(kind) {
		var v statemachine.Value
		if err := v.UnmarshalText([]byte(text)); err != nil {
			return statemachine.Value{}, err
		}

		return v, nil
	}

	return statemachine.ParseValue(text), nil
}

func isKindName(name string) bool {
	for _, k := range []statemachine.Kind{
		statemachine.KindBool, statemachine.KindInt, statemachine.KindFloat, statemachine.KindString,
	} {
		if k.String() == name {
			return true
		}
	}

	return false
}

func (s *Server) deleteFact(w http.ResponseWriter, r *http.Request) {
	member, ok := s.member(w, r)
	if !ok {
		return
	}

	if err := member.Store().Remove(r.Context(), chi.URLParam(r, "key")); err != nil {
		writeError(w, r, http.StatusBadGateway, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeHerdError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, herd.ErrMemberNotFound):
		writeError(w, r, http.StatusNotFound, err)
	case errors.Is(err, herd.ErrMemberExists):
		writeError(w, r, http.StatusConflict, err)
	case errors.Is(err, herd.ErrClosed):
		writeError(w, r, http.StatusServiceUnavailable, err)
	case errors.Is(err, statemachine.ErrUnsupportedValue):
		writeError(w, r, http.StatusBadRequest, err)
	default:
		writeError(w, r, http.StatusInternalServerError, err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	writeJSON(w, r, status, map[string]string{"error": err.Error()})
}

// writeJSON encodes body before writing the header so an unencodable body
// becomes a 500 rather than an empty success.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		logger.Get(r.Context()).Error("Failed to encode response", logger.Error(err))

		status = http.StatusInternalServerError
		data = []byte(`{"error":"failed to encode response"}`)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_, _ = w.Write(append(data, '\n'))
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)

	_, _ = io.WriteString(w, body)
}
