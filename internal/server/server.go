// Package server composes the HTTP surface of baconbot: the Slack slash-command
// endpoint, the distribution gateway, static assets and metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"baconbot/internal/gateway"
	"baconbot/internal/metrics"

	"github.com/google/uuid"
)

const headerRequestID = "X-Request-ID"

// Config configures the HTTP server.
type Config struct {
	Host            string
	Port            int
	StaticDir       string        // optional; serves index.html and assets
	ShutdownTimeout time.Duration // default 10s
	CommandPath     string        // e.g. "/api/slack/bacon"
	Slash           http.Handler
	Gateway         *gateway.Gateway // optional
	MetricsEndpoint string           // empty disables /metrics
	Logger          *slog.Logger
}

// Server is the baconbot HTTP server.
type Server struct {
	addr            string
	handler         http.Handler
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	s := &Server{
		addr:            net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          cfg.Logger,
	}
	s.handler = s.routes(cfg)
	return s
}

// Handler returns the fully wrapped handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.handler }

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.addr }

func (s *Server) routes(cfg Config) http.Handler {
	mux := http.NewServeMux()

	if cfg.Slash != nil && cfg.CommandPath != "" {
		mux.Handle(cfg.CommandPath, cfg.Slash)
	}
	if cfg.Gateway != nil {
		cfg.Gateway.Register(mux)
	}
	if cfg.MetricsEndpoint != "" {
		mux.Handle("GET "+cfg.MetricsEndpoint, metrics.Collector.Handler())
	}

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/index.html", http.StatusFound)
	})

	var static http.Handler
	if cfg.StaticDir != "" {
		static = staticHandler(cfg.StaticDir)
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if static != nil && (r.Method == http.MethodGet || r.Method == http.MethodHead) {
			static.ServeHTTP(w, r)
			return
		}
		gateway.WriteNotFound(w)
	})

	return s.withCORS(s.withRequestID(s.withMetrics(mux)))
}

// staticHandler serves files from dir. FileServer redirects ".../index.html" to
// the directory, which would loop with the root redirect, so index pages are
// served directly.
func staticHandler(dir string) http.Handler {
	root := http.Dir(dir)
	files := http.FileServer(root)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/index.html") {
			files.ServeHTTP(w, r)
			return
		}
		f, err := root.Open(r.URL.Path)
		if err != nil {
			gateway.WriteNotFound(w)
			return
		}
		defer f.Close()
		st, err := f.Stat()
		if err != nil || st.IsDir() {
			gateway.WriteNotFound(w)
			return
		}
		http.ServeContent(w, r, st.Name(), st.ModTime(), f)
	})
}

// withCORS answers preflight requests and marks every response cross-origin readable.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		r.Header.Set(headerRequestID, id)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	if rec.status == 0 {
		rec.status = code
	}
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	if rec.status == 0 {
		rec.status = http.StatusOK
	}
	return rec.ResponseWriter.Write(b)
}

// withMetrics must wrap the mux directly: the mux records the matched pattern
// on the request it receives, which is read back here.
func (s *Server) withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		metrics.InFlightRequests.Inc()
		defer metrics.InFlightRequests.Dec()

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}

		route := r.Pattern
		if route == "" || route == "/" {
			route = "other"
		}
		metrics.HTTPRequestsTotal(route, rec.status).Inc()
		metrics.RequestLatency.Since(start)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"request_id", r.Header.Get(headerRequestID),
		)
	})
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      150 * time.Second, // ord batches can take a while
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("http server starting", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("http server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	}
}
