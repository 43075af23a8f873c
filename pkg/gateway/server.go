package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sergiialekseev/mypitch-saas-sub000/pkg/core"
	"github.com/sergiialekseev/mypitch-saas-sub000/pkg/core/types"
)

// Store is the persistence surface the handlers need. The production
// implementation lives in pkg/gateway/store; tests use an in-memory one.
type Store interface {
	CreateSession(ctx context.Context, session types.Session) error
	GetSession(ctx context.Context, sessionID string) (types.Session, error)
	AppendTranscriptTurn(ctx context.Context, turn types.TranscriptTurn) error
	ListTranscriptTurns(ctx context.Context, sessionID string) ([]types.TranscriptTurn, error)
	UpsertReport(ctx context.Context, report types.Report) error
	GetReport(ctx context.Context, sessionID string) (types.Report, error)
}

// ReportScorer evaluates a transcript into a report.
type ReportScorer interface {
	Score(ctx context.Context, session types.Session, turns []types.TranscriptTurn) (types.Report, error)
}

// Server is the backend HTTP service.
type Server struct {
	cfg    Config
	store  Store
	minter CredentialMinter
	scorer ReportScorer
	logger *slog.Logger
}

// ServerOption customizes a Server.
type ServerOption func(*Server)

// WithServerLogger sets the structured logger. Default: slog.Default.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer wires the handlers to their collaborators.
func NewServer(cfg Config, st Store, minter CredentialMinter, scorer ReportScorer, opts ...ServerOption) *Server {
	s := &Server{
		cfg:    cfg,
		store:  st,
		minter: minter,
		scorer: scorer,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/interviews", s.handleCreateInterview)
	mux.HandleFunc("GET /v1/interviews/{id}", s.handleGetInterview)
	mux.HandleFunc("POST /v1/interviews/{id}/token", s.handleMintToken)
	mux.HandleFunc("POST /v1/interviews/{id}/transcript", s.handleAppendTranscript)
	mux.HandleFunc("POST /v1/interviews/{id}/report", s.handleGenerateReport)
	mux.HandleFunc("GET /v1/interviews/{id}/report", s.handleGetReport)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return s.withRequestLog(mux)
}

// withRequestLog tags every request with an id and logs its outcome.
func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", requestID)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

type createInterviewRequest struct {
	Topic         types.Topic `json:"topic"`
	CandidateName string      `json:"candidate_name"`
}

func (s *Server) handleCreateInterview(w http.ResponseWriter, r *http.Request) {
	var req createInterviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, core.NewInvalidRequestError("malformed request body"))
		return
	}
	if req.Topic.Title == "" {
		s.writeError(w, core.NewInvalidRequestErrorWithParam("topic title is required", "topic.title"))
		return
	}
	if req.Topic.Persona == "" {
		s.writeError(w, core.NewInvalidRequestErrorWithParam("topic persona is required", "topic.persona"))
		return
	}

	session := types.Session{
		ID:            uuid.NewString(),
		Topic:         req.Topic,
		CandidateName: req.CandidateName,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.CreateSession(r.Context(), session); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleGetInterview(w http.ResponseWriter, r *http.Request) {
	session, err := s.store.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleMintToken(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if _, err := s.store.GetSession(r.Context(), sessionID); err != nil {
		s.writeError(w, err)
		return
	}

	token, err := s.minter.MintSessionToken(r.Context(), s.cfg.Gemini.LiveModel)
	if err != nil {
		s.logger.Error("token mint failed", "session_id", sessionID, "error", err)
		s.writeError(w, core.NewAPIError("could not mint session credential"))
		return
	}
	s.writeJSON(w, http.StatusOK, types.Credential{
		Token: token,
		Model: s.cfg.Gemini.LiveModel,
	})
}

func (s *Server) handleAppendTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	var turn types.TranscriptTurn
	if err := json.NewDecoder(r.Body).Decode(&turn); err != nil {
		s.writeError(w, core.NewInvalidRequestError("malformed request body"))
		return
	}
	if !turn.Speaker.Valid() {
		s.writeError(w, core.NewInvalidRequestErrorWithParam("speaker must be user or ai", "speaker"))
		return
	}
	if turn.Text == "" {
		s.writeError(w, core.NewInvalidRequestErrorWithParam("text must not be empty", "text"))
		return
	}

	if _, err := s.store.GetSession(r.Context(), sessionID); err != nil {
		s.writeError(w, err)
		return
	}
	turn.SessionID = sessionID
	if err := s.store.AppendTranscriptTurn(r.Context(), turn); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	session, err := s.store.GetSession(r.Context(), sessionID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	turns, err := s.store.ListTranscriptTurns(r.Context(), sessionID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if len(turns) == 0 {
		s.writeError(w, core.NewInvalidRequestError("no transcript to score"))
		return
	}

	report, err := s.scorer.Score(r.Context(), session, turns)
	if err != nil {
		s.logger.Error("report scoring failed", "session_id", sessionID, "error", err)
		s.writeError(w, core.NewAPIError("report scoring failed"))
		return
	}
	if err := s.store.UpsertReport(r.Context(), report); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.store.GetReport(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("response encode failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var apiErr *core.Error
	if !errors.As(err, &apiErr) {
		s.logger.Error("internal error", "error", err)
		apiErr = core.NewAPIError("internal error")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusForError(apiErr.Type))
	_ = json.NewEncoder(w).Encode(map[string]*core.Error{"error": apiErr})
}

func statusForError(t core.ErrorType) int {
	switch t {
	case core.ErrInvalidRequest:
		return http.StatusBadRequest
	case core.ErrAuthentication:
		return http.StatusUnauthorized
	case core.ErrPermission:
		return http.StatusForbidden
	case core.ErrNotFound:
		return http.StatusNotFound
	case core.ErrOverloaded:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
