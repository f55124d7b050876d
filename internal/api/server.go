// Package api wires the HTTP routes of the decoder service.
package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/aso824/dcf77decoder/internal/auth"
	"github.com/aso824/dcf77decoder/internal/health"
	"github.com/aso824/dcf77decoder/internal/metrics"
	"github.com/aso824/dcf77decoder/internal/publish"
	"github.com/aso824/dcf77decoder/internal/store"
	"github.com/aso824/dcf77decoder/internal/stream"
)

// Deps are the collaborators shared by the handlers.
type Deps struct {
	Store     *store.Store
	Publisher publish.Publisher
	Stream    *stream.Handler
	Readiness *health.Readiness
	// Century is added to the two-digit year for the civil timestamp.
	Century int
	// Now stamps accepted telegrams. Defaults to time.Now.
	Now func() time.Time
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, logger *slog.Logger, authCfg auth.Config, deps Deps) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           NewHandler(logger, authCfg, deps),
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			// Streams extend their own deadline per write.
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger,
	}
}

// NewHandler builds the routed and wrapped handler without a listener.
func NewHandler(logger *slog.Logger, authCfg auth.Config, deps Deps) http.Handler {
	if deps.Store == nil {
		deps.Store = store.New()
	}
	if deps.Publisher == nil {
		deps.Publisher = publish.Nop{}
	}
	if deps.Stream == nil {
		deps.Stream = stream.NewHandler(deps.Store, stream.Config{}, logger)
	}
	if deps.Readiness == nil {
		deps.Readiness = &health.Readiness{}
		deps.Readiness.SetReady(true)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	mux := http.NewServeMux()

	// Register routes.
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", deps.Readiness.Readyz)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("POST /api/v1/decode", decodeHandler(logger, deps))
	mux.HandleFunc("GET /api/v1/receivers", receiversHandler(deps))
	mux.HandleFunc("GET /api/v1/receivers/{id}/last", lastHandler(deps))
	mux.HandleFunc("GET /api/v1/stream/results", deps.Stream.HandleResults)

	// Build middleware chain: metrics -> request id -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(authCfg)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware(handler)
	handler = metrics.Middleware(handler)

	return handler
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE responses streaming through the recorder.
func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"request_id", RequestIDFrom(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", r.RemoteAddr,
			)
		})
	}
}
