//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package rest provides a HTTP server that runs a graph on persisted
// threads and exposes the stored threads and tenant configs.
package rest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"trpc.group/trpc-go/trpc-agent-graph/flow/llmflow"
	"trpc.group/trpc-go/trpc-agent-graph/graph"
	"trpc.group/trpc-go/trpc-agent-graph/log"
	"trpc.group/trpc-go/trpc-agent-graph/runner"
	"trpc.group/trpc-go/trpc-agent-graph/server/rest/internal/schema"
	"trpc.group/trpc-go/trpc-agent-graph/storage"
	"trpc.group/trpc-go/trpc-agent-graph/workflow"
)

// defaultMaxBodyBytes bounds request bodies.
const defaultMaxBodyBytes = 1 << 20

// Server exposes a Runner over HTTP.
type Server struct {
	runner runner.Runner
	router *mux.Router

	states       storage.StateRepository
	configs      storage.ConfigRepository
	graph        *graph.CompiledGraph
	metrics      http.Handler
	origins      []string
	maxBodyBytes int64
}

// Option configures the Server instance.
type Option func(*Server)

// WithStateRepository enables the thread routes. Pass the repository the
// runner saves to.
func WithStateRepository(repo storage.StateRepository) Option {
	return func(s *Server) { s.states = repo }
}

// WithConfigRepository enables the tenant config routes.
func WithConfigRepository(repo storage.ConfigRepository) Option {
	return func(s *Server) { s.configs = repo }
}

// WithGraph enables GET /graph, which returns the graph in DOT format.
func WithGraph(cg *graph.CompiledGraph) Option {
	return func(s *Server) { s.graph = cg }
}

// WithMetricsHandler serves h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithAllowedOrigins sets the CORS origins. The default allows any origin.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithMaxBodyBytes bounds the size of request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// New creates a new HTTP server over r.
func New(r runner.Runner, opts ...Option) *Server {
	s := &Server{
		runner:       r,
		router:       mux.NewRouter(),
		origins:      []string{"*"},
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}

	c := cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Content-Length", "Content-Type"},
	})
	s.router.Use(c.Handler)
	s.registerRoutes()
	return s
}

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	thread := "/tenants/{tenant}/threads/{thread}"
	s.router.HandleFunc(thread+"/run", s.handleRun).Methods(http.MethodPost, http.MethodOptions)
	if s.states != nil {
		s.router.HandleFunc(thread, s.handleGetThread).Methods(http.MethodGet)
		s.router.HandleFunc(thread, s.handleDeleteThread).Methods(http.MethodDelete, http.MethodOptions)
	}
	if s.configs != nil {
		config := "/tenants/{tenant}/config"
		s.router.HandleFunc(config, s.handleGetConfig).Methods(http.MethodGet)
		s.router.HandleFunc(config, s.handlePutConfig).Methods(http.MethodPut, http.MethodOptions)
		s.router.HandleFunc(config, s.handleDeleteConfig).Methods(http.MethodDelete)
	}
	if s.graph != nil {
		s.router.HandleFunc("/graph", s.handleGraph).Methods(http.MethodGet)
	}
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, schema.Health{Status: "ok"})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	vars := mux.Vars(r)
	var req schema.RunRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Input == "" && len(req.Messages) == 0 {
		s.writeError(w, http.StatusBadRequest, errors.New("input or messages is required"))
		return
	}

	opts := []runner.RunOption{runner.WithMessages(req.Messages...)}
	if req.RunID != "" {
		opts = append(opts, runner.WithRunID(req.RunID))
	}
	for node, ov := range req.Overrides {
		opts = append(opts, runner.WithOverrides(node, &llmflow.Overrides{
			SystemPrompt:     ov.SystemPrompt,
			GenerationConfig: ov.Generation,
		}))
	}
	res, err := s.runner.Run(r.Context(), vars["tenant"], vars["thread"], req.Input, opts...)
	if err != nil {
		log.Errorf("run on %s/%s failed: %v", vars["tenant"], vars["thread"], err)
		s.writeError(w, statusOf(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, toRunResponse(res))
}

func toRunResponse(res *runner.Result) schema.RunResponse {
	rsp := schema.RunResponse{
		RunID:   res.RunID,
		Status:  string(res.Status),
		Answer:  res.Answer,
		Steps:   res.Steps,
		Visited: res.Visited,
	}
	if rsp.Visited == nil {
		rsp.Visited = []string{}
	}
	for _, e := range res.Errors {
		rsp.Errors = append(rsp.Errors, e.Error())
	}
	if res.Err != nil {
		rsp.Error = res.Err.Error()
	}
	return rsp
}

func (s *Server) handleGetThread(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	st, err := s.states.FindByID(r.Context(), vars["tenant"], vars["thread"])
	if err != nil {
		s.writeError(w, statusOf(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, st.Snapshot())
}

func (s *Server) handleDeleteThread(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	vars := mux.Vars(r)
	if err := s.states.Delete(r.Context(), vars["tenant"], vars["thread"]); err != nil {
		s.writeError(w, statusOf(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.configs.FindByID(r.Context(), mux.Vars(r)["tenant"])
	if err != nil {
		s.writeError(w, statusOf(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	cfg, err := workflow.Parse(data)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	cfg.TenantID = mux.Vars(r)["tenant"]
	if err := s.configs.Save(r.Context(), cfg); err != nil {
		s.writeError(w, statusOf(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleDeleteConfig(w http.ResponseWriter, r *http.Request) {
	if err := s.configs.Delete(r.Context(), mux.Vars(r)["tenant"]); err != nil {
		s.writeError(w, statusOf(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := []graph.VizOption{graph.WithIncludeDestinations(q.Get("destinations") != "false")}
	if dir := q.Get("rankdir"); dir != "" {
		opts = append(opts, graph.WithRankDir(dir))
	}
	w.Header().Set("Content-Type", "text/vnd.graphviz")
	if err := s.graph.WriteDOT(w, opts...); err != nil {
		log.Warnf("write graph: %v", err)
	}
}

// statusOf maps repository and runner errors to HTTP statuses.
func statusOf(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, runner.ErrTenantRequired), errors.Is(err, runner.ErrThreadRequired),
		errors.Is(err, storage.ErrTenantRequired), errors.Is(err, storage.ErrThreadRequired):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, schema.ErrorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnf("encode response: %v", err)
	}
}
