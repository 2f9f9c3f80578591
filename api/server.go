// Package api provides the HTTP REST API server for ThesisAI.
//
// It exposes thesis generation, retrieval of recent theses, configuration
// status, and WebSocket streaming of pipeline stage events.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/phuslu/log"

	"github.com/seenimoa/thesisai/internal/analyst"
	"github.com/seenimoa/thesisai/internal/config"
	"github.com/seenimoa/thesisai/internal/datasource"
	"github.com/seenimoa/thesisai/internal/infra"
	"github.com/seenimoa/thesisai/internal/llm"
	"github.com/seenimoa/thesisai/internal/report"
	"github.com/seenimoa/thesisai/pkg/models"
)

// Runner executes one thesis request. *analyst.Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, request string, observers ...analyst.Observer) (*models.NarrativeResult, error)
}

// Server is the HTTP API server.
type Server struct {
	router  chi.Router
	cfg     *config.Config
	runner  Runner
	wsHub   *WSHub
	results *infra.Cache // request ID → *models.NarrativeResult
	logger  *log.Logger
	version string
}

// resultTTL bounds how long finished theses stay retrievable.
const resultTTL = time.Hour

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config, runner Runner, logger *log.Logger, version string) *Server {
	if logger == nil {
		logger = &log.DefaultLogger
	}
	srv := &Server{
		cfg:     cfg,
		runner:  runner,
		wsHub:   NewWSHub(logger),
		results: infra.NewCache(resultTTL),
		logger:  logger,
		version: version,
	}
	srv.router = srv.buildRouter()
	return srv
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *WSHub { return s.wsHub }

// ListenAndServe starts the HTTP server and shuts it down gracefully when
// ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.wsHub.Run(hubCtx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("api listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Theses
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/theses/{id}", s.handleGetThesis)
		r.Get("/theses/{id}/page", s.handleThesisPage)

		// Configuration
		r.Get("/config", s.handleGetConfig)
		r.Get("/config/keys", s.handleGetConfigKeys)

		// Stage events
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// requestLogger logs one line per request with the structured logger.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("took", time.Since(start)).
			Str("req_id", middleware.GetReqID(r.Context())).
			Msg("http")
	})
}

// ============================================================
// Request / Response types
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Stage   string `json:"stage,omitempty"` // failed pipeline stage
}

// AnalyzeRequest is the body of POST /api/v1/analyze.
type AnalyzeRequest struct {
	Request string `json:"request"` // e.g. "Write an investment thesis on Microsoft"
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]any{
			"status":     "ok",
			"version":    s.version,
			"ws_clients": s.wsHub.ClientCount(),
			"time":       time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Request = strings.TrimSpace(req.Request)
	if req.Request == "" {
		writeError(w, http.StatusBadRequest, "request is required")
		return
	}
	if s.runner == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline not configured")
		return
	}

	res, err := s.runner.Run(r.Context(), req.Request, s.broadcastStage)
	if err != nil {
		status := statusFor(err)
		s.logger.Warn().Err(err).Int("status", status).Msg("analyze failed")
		writeJSON(w, status, APIResponse{
			Success: false,
			Error:   err.Error(),
			Stage:   string(analyst.FailedStage(err)),
		})
		return
	}

	s.results.Set(res.RequestID, res)
	s.wsHub.Broadcast(WSMessage{
		Type: "analysis_complete",
		Data: map[string]any{
			"request_id": res.RequestID,
			"ticker":     res.Entities.CompanyTicker,
		},
	})

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: res})
}

func (s *Server) handleGetThesis(w http.ResponseWriter, r *http.Request) {
	res, ok := s.lookup(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "thesis not found")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: res})
}

func (s *Server) handleThesisPage(w http.ResponseWriter, r *http.Request) {
	res, ok := s.lookup(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "thesis not found", http.StatusNotFound)
		return
	}
	page, err := report.RenderPage(*res)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(page)) //nolint:errcheck
}

func (s *Server) lookup(id string) (*models.NarrativeResult, bool) {
	v, ok := s.results.Get(id)
	if !ok {
		return nil, false
	}
	res, ok := v.(*models.NarrativeResult)
	return res, ok
}

// broadcastStage forwards pipeline stage events to WebSocket clients.
func (s *Server) broadcastStage(ev analyst.StageEvent) {
	s.wsHub.Broadcast(WSMessage{Type: "stage", Data: ev})
}

// statusFor maps a pipeline error to an HTTP status.
func statusFor(err error) int {
	var re *analyst.ResolutionError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, datasource.ErrRateLimited), llm.IsRateLimited(err):
		return http.StatusTooManyRequests
	case errors.As(err, &re):
		return http.StatusUnprocessableEntity
	case errors.Is(err, datasource.ErrUnknownSymbol), errors.Is(err, analyst.ErrNoPriceData):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to write JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
