package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"cveroast/internal/model"
	"cveroast/internal/pipeline"
	"cveroast/internal/scanners/depcheck"
	"cveroast/internal/scanners/trivy"
	"cveroast/internal/state"
)

// NoMessage is returned for a narrative variant that was never written.
const NoMessage = "No DeepSeek message available yet."

const maxBodyBytes = 1 << 20

// Analyzer runs the pipeline for an identifier on demand.
type Analyzer interface {
	Run(ctx context.Context, id string) (pipeline.Result, error)
}

// Server exposes persisted artifacts over HTTP and triggers analyses for
// identifiers that have none yet.
type Server struct {
	store    *state.Store
	analyzer Analyzer
	logger   *zap.Logger

	// mu serializes on-demand analyses.
	mu sync.Mutex
}

func New(store *state.Store, analyzer Analyzer, logger *zap.Logger) *Server {
	return &Server{
		store:    store,
		analyzer: analyzer,
		logger:   logger.Named("server"),
	}
}

// Handler returns the routed handler wrapped in CORS and request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /deepseek-message", s.handleGetMessage)
	mux.HandleFunc("POST /deepseek-message", s.handlePostMessage)
	mux.HandleFunc("GET /security-analysis/{id}", s.handleAnalysis)
	return s.logRequests(cors(mux))
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

type messageResponse struct {
	Message string `json:"message"`
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	variant, err := state.ParseVariant(r.URL.Query().Get("variant"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	msg, err := s.store.LoadMessage(variant)
	switch {
	case errors.Is(err, state.ErrNotFound):
		msg = NoMessage
	case err != nil:
		s.logger.Error("failed to read message", zap.String("variant", string(variant)), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to read message"})
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}

// handlePostMessage overwrites the legacy narrative. Failures are reported
// in the body with status "error".
func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	var req messageResponse
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Message: fmt.Sprintf("invalid body: %v", err)})
		return
	}

	if err := s.store.SaveMessage(state.VariantLegacy, req.Message); err != nil {
		s.logger.Error("failed to save message", zap.Error(err))
		writeJSON(w, http.StatusOK, statusResponse{Status: "error", Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "success", Message: req.Message})
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := state.ValidIdentifier(id); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	if r.URL.Query().Get("format") == "detailed" {
		writeJSON(w, http.StatusOK, s.detailed(id))
		return
	}

	rec, err := s.store.LoadRecord(id)
	if err == nil {
		writeJSON(w, http.StatusOK, rec)
		return
	}
	if !errors.Is(err, state.ErrNotFound) {
		s.logger.Warn("stored record unreadable", zap.String("commit", id), zap.Error(err))
	}
	if id == state.LatestID {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no analysis available yet"})
		return
	}

	rec, err = s.analyze(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, rec)
	case errors.Is(err, pipeline.ErrNoResult):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("no analysis data for commit %s", id)})
	case errors.Is(err, state.ErrInvalidIdentifier):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		s.logger.Error("analysis failed", zap.String("commit", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: fmt.Sprintf("failed to analyze commit %s", id)})
	}
}

// analyze runs at most one pipeline at a time. A record written by a run
// that held the lock before us is reused.
func (s *Server) analyze(ctx context.Context, id string) (model.AnalysisRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, err := s.store.LoadRecord(id); err == nil {
		return rec, nil
	}
	res, err := s.analyzer.Run(ctx, id)
	if err != nil {
		return model.AnalysisRecord{}, err
	}
	return res.Record, nil
}

type detailedResponse struct {
	Trivy json.RawMessage `json:"trivy"`
	OWASP json.RawMessage `json:"owasp"`
}

// detailed returns both raw reports, substituting the empty shape for
// missing or malformed files.
func (s *Server) detailed(id string) detailedResponse {
	return detailedResponse{
		Trivy: s.rawOrEmpty(model.ToolTrivy, id, trivy.EmptyReport),
		OWASP: s.rawOrEmpty(model.ToolDependencyCheck, id, depcheck.EmptyReport),
	}
}

func (s *Server) rawOrEmpty(tool model.Tool, id string, empty []byte) json.RawMessage {
	raw, err := s.store.LoadRaw(tool, id)
	if err != nil {
		if !errors.Is(err, state.ErrNotFound) {
			s.logger.Warn("raw report unreadable", zap.String("tool", string(tool)), zap.Error(err))
		}
		return empty
	}
	if !json.Valid(raw) {
		s.logger.Warn("raw report malformed", zap.String("tool", string(tool)), zap.String("commit", id))
		return empty
	}
	return raw
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
