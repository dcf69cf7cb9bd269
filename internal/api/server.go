package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/tgc-rag/internal/config"
	"github.com/JakeFAU/tgc-rag/internal/metrics"
	"github.com/JakeFAU/tgc-rag/internal/openai"
	"github.com/JakeFAU/tgc-rag/internal/rag"
	"github.com/JakeFAU/tgc-rag/internal/store"
	"github.com/JakeFAU/tgc-rag/internal/vectorstore"
)

const fallbackIndex = "<p>TGC RAG API. <a href='/docs'>Docs</a> | <a href='/health'>Health</a></p>"

// Retriever finds the chunks relevant to a question.
type Retriever interface {
	Retrieve(ctx context.Context, query string, opts rag.Options) ([]rag.RetrievedChunk, error)
}

// Answerer turns retrieved chunks into an answer.
type Answerer interface {
	Answer(ctx context.Context, query string, chunks []rag.RetrievedChunk) (string, error)
}

// RequestIDGenerator issues per-request correlation IDs.
type RequestIDGenerator interface {
	NewRequestID() string
}

// Deps are the collaborators behind the routes. Retriever and Answerer are
// nil when no provider key is configured; Runs is nil without a ledger.
type Deps struct {
	Index      rag.CollectionSource
	Retriever  Retriever
	Answerer   Answerer
	Runs       store.RunRepository
	RequestIDs RequestIDGenerator
	Logger     *zap.Logger
}

// Server wires HTTP handlers to the retrieval stack.
type Server struct {
	router    chi.Router
	index     rag.CollectionSource
	retriever Retriever
	answerer  Answerer
	staticDir string
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(cfg config.Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("api")
	s := &Server{
		index:     deps.Index,
		retriever: deps.Retriever,
		answerer:  deps.Answerer,
		staticDir: cfg.Server.StaticDir,
		logger:    logger,
	}
	timeout := time.Duration(cfg.Server.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware(deps.RequestIDs))
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(timeout))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/", s.root)
	r.Get("/api", s.apiInfo)
	r.Get("/health", s.health)
	r.Post("/ask", s.ask)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	runs := NewRunsHandler(deps.Runs, logger)
	r.Route("/api/runs", func(r chi.Router) {
		r.Get("/", runs.ListRuns)
		r.Get("/{run_id}", runs.GetRun)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) root(w http.ResponseWriter, r *http.Request) {
	if s.staticDir != "" {
		index := filepath.Join(s.staticDir, "index.html")
		if info, err := os.Stat(index); err == nil && !info.IsDir() {
			http.ServeFile(w, r, index)
			return
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(fallbackIndex)); err != nil {
		s.logger.Debug("write index failed", zap.Error(err))
	}
}

func (s *Server) apiInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "TGC RAG API",
		"docs":    "/docs",
		"health":  "/health",
		"ask":     `POST /ask with {"query": "Your question?"}`,
	})
}

type healthResponse struct {
	Status       string `json:"status"`
	ChromaChunks *int   `json:"chroma_chunks,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	count, err := s.countChunks(r.Context())
	if err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unhealthy", Reason: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", ChromaChunks: &count})
}

func (s *Server) countChunks(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, rag.ErrIndexUnavailable
	}
	col, err := s.index.Collection(ctx)
	if err != nil {
		return 0, err
	}
	return col.Count(ctx)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

// errorStatus maps retrieval and provider failures onto HTTP statuses.
func errorStatus(err error) (int, string) {
	var apiErr *openai.APIError
	switch {
	case errors.Is(err, openai.ErrMissingAPIKey):
		return http.StatusInternalServerError, "OPENAI_API_KEY not set"
	case errors.Is(err, openai.ErrAuthentication):
		return http.StatusUnauthorized, "Invalid or missing OpenAI API key"
	case errors.Is(err, openai.ErrRateLimited):
		return http.StatusTooManyRequests, "OpenAI rate limit exceeded; retry later"
	case errors.Is(err, vectorstore.ErrInvalidFilter):
		return http.StatusUnprocessableEntity, "invalid where_document filter"
	case errors.Is(err, rag.ErrIndexUnavailable):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "request timed out"
	case errors.As(err, &apiErr):
		return http.StatusBadGateway, "OpenAI API error: " + apiErr.Message
	case errors.Is(err, openai.ErrEmptyResponse), openai.Retryable(err):
		return http.StatusBadGateway, "OpenAI API error: " + err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
