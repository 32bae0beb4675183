// Package http exposes the ledger over HTTP: a JSON API and a single HTML
// page, both driving the same LedgerService.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"saldo/internal/core"
	"saldo/internal/ledger"
	"saldo/internal/log"
	appweb "saldo/web"
)

// LedgerService is what the handlers need from the service layer.
type LedgerService interface {
	Load(ctx context.Context) core.LedgerState
	Apply(ctx context.Context, amount core.Money, kind core.Kind, description string) (core.LedgerState, error)
	ResetAll(ctx context.Context) (core.LedgerState, error)
	EraseHistory(ctx context.Context) (core.LedgerState, error)
	Recent(ctx context.Context, n int) []core.TransactionRecord
	Calendar(ctx context.Context, loc *time.Location) []ledger.DayGroup
	Ping(ctx context.Context) error
}

// Options tune presentation defaults.
type Options struct {
	RecentLimit int
	Location    *time.Location
	Logger      *log.Logger
}

type Server struct {
	http.Server
	svc         LedgerService
	templates   *template.Template
	rateLimiter *rateLimiter
	metrics     *securityMetrics
	logger      *log.Logger
	recentLimit int
	location    *time.Location

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, svc LedgerService, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = ledger.DefaultRecentLimit
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	s := &Server{
		svc:         svc,
		rateLimiter: newRateLimiter(),
		metrics:     &securityMetrics{},
		logger:      opts.Logger.WithComponent(log.ComponentHTTP),
		recentLimit: opts.RecentLimit,
		location:    opts.Location,
	}

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", log.FieldError, err.Error())
	}
	s.templates = t

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.withRequestContext)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.Get("/static/*", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600")
			static.ServeHTTP(w, r)
		})
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err.Error())
	}

	r.Group(func(r chi.Router) {
		r.Use(s.withSecurityHeaders)
		r.Get("/", s.handleIndex)

		r.Route("/api", func(r chi.Router) {
			r.Get("/ledger", s.handleLedger)
			r.Get("/history/recent", s.handleRecent)
			r.Get("/history/calendar", s.handleCalendar)

			r.Group(func(r chi.Router) {
				r.Use(s.withRateLimit)
				r.Post("/transactions", s.handleCreateTransaction)
				r.Post("/reset", s.handleReset)
				r.Post("/erase", s.handleErase)
			})
		})
	})

	return r
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		limited, suspicious := s.metrics.snapshot()
		s.logger.Info("HTTP server shutting down",
			log.FieldOperation, log.OpShutdown,
			"rate_limit_hits", limited,
			"suspicious_requests", suspicious)
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withRequestContext tags the request with an ID and a logger, and logs its
// completion.
func (s *Server) withRequestContext(next http.Handler) http.Handler {
	structured := log.NewStructuredLogger(s.logger)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		logger := s.logger.With(log.FieldRequestID, requestID)
		ctx := log.WithLogger(r.Context(), logger)
		r = r.WithContext(ctx)

		if detectSuspiciousRequest(r, s.metrics) {
			logger.WarnContext(ctx, "Suspicious request",
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
		}

		w.Header().Set("X-Request-ID", requestID)
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		structured.LogHTTPEnd(ctx, r, requestID, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	})
}

func (s *Server) withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self'; img-src 'self' data:; form-action 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := extractClientIP(r)
		if !s.rateLimiter.allow(clientIP, s.metrics) {
			log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
				log.FieldClientIP, clientIP,
				log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.svc.Ping(ctx); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err.Error())
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
