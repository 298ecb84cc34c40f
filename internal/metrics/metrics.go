// Package metrics serves the Prometheus scrape endpoint for a running crawl.
package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server exposes /metrics, /healthz and /readyz over HTTP.
type Server struct {
	router   chi.Router
	srv      *http.Server
	logger   *zap.Logger
	ready    atomic.Bool
	addr     atomic.Value
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewServer builds a Server publishing reg. The server's own request
// counters are registered on reg as well.
func NewServer(addr string, reg *prometheus.Registry, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		logger: logger,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bankcrawler_http_requests_total",
			Help: "Requests served by the metrics endpoint, labeled by route and code.",
		}, []string{"route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bankcrawler_http_request_duration_seconds",
			Help:    "Latency of requests served by the metrics endpoint.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"route"}),
	}
	for _, c := range []prometheus.Collector{s.requests, s.duration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics server collectors: %w", err)
		}
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)
	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	s.router = r

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

// Handler returns the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listener and serves in the background. A bind failure is
// returned immediately.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.srv.Addr, err)
	}
	s.addr.Store(ln.Addr().String())
	s.ready.Store(true)
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	s.logger.Info("metrics server listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Addr reports the bound address once Start has succeeded.
func (s *Server) Addr() string {
	v, _ := s.addr.Load().(string)
	return v
}

// Shutdown stops accepting scrapes and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.ready.Store(false)
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}
	return nil
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unknown"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		s.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
