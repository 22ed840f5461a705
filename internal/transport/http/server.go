package http

import (
	"bufio"
	"context"
	"io/fs"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"roulette/internal/app"
	"roulette/internal/config"
	"roulette/internal/domain"
	"roulette/internal/transport/ws"
)

// RecordLister reads the current record list
type RecordLister interface {
	List(ctx context.Context) (domain.Snapshot, error)
}

// Server represents the HTTP server
type Server struct {
	server  *http.Server
	hub     *app.Hub
	records RecordLister
	bank    app.WordBank
	config  *config.Config
	logger  zerolog.Logger
	webFS   fs.FS
}

// NewServer creates a new HTTP server. webFS must contain a web/ directory
// holding index.html and static/.
func NewServer(cfg *config.Config, hub *app.Hub, records RecordLister, bank app.WordBank, logger zerolog.Logger, webFS fs.FS) *Server {
	s := &Server{
		hub:     hub,
		records: records,
		bank:    bank,
		config:  cfg,
		logger:  logger.With().Str("component", "http").Logger(),
	}

	// Get the web subdirectory from embed FS
	webContent, err := fs.Sub(webFS, "web")
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to get web subdirectory")
	}
	s.webFS = webContent

	// Set up routes
	mux := http.NewServeMux()
	s.setupRoutes(mux, ws.NewHandler(hub, cfg.Server.AllowedOrigins, logger))

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodHead, http.MethodGet},
		AllowedHeaders: []string{"*"},
	})
	handler := c.Handler(s.middleware(mux))

	s.server = &http.Server{
		Addr:        cfg.GetAddr(),
		Handler:     h2c.NewHandler(handler, &http2.Server{}),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(mux *http.ServeMux, wsHandler http.Handler) {
	// API routes
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/words", s.handleWords)
	mux.HandleFunc("GET /api/records", s.handleRecords)

	// WebSocket
	mux.Handle("GET /ws", wsHandler)

	// Static files and the page
	mux.HandleFunc("GET /static/", s.handleStatic)
	mux.HandleFunc("GET /", s.handleSPA)
}

// Handler returns the fully wrapped handler
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// middleware wraps the handler with request logging
func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		// Log request (skip static files in production)
		if s.config.IsDevelopment() || !isStaticRequest(r.URL.Path) {
			s.logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", wrapped.statusCode).
				Dur("duration", time.Since(start)).
				Msg("request")
		}
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("server starting")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("server shutting down")
	return s.server.Shutdown(ctx)
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack implements http.Hijacker for WebSocket support
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

// Flush implements http.Flusher
func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// isStaticRequest checks if the request is for a static file
func isStaticRequest(path string) bool {
	return strings.HasPrefix(path, "/static/")
}
