// Package server exposes the analyzer over HTTP.
//
//	POST /api/parse   {"code": "..."} -> analyzer response
//	GET  /api/health  liveness
//	GET  /metrics     Prometheus metrics
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/san-kum/loopviz/internal/analyzer"
	"github.com/san-kum/loopviz/internal/logging"
)

const (
	DefaultShutdownTimeout = 5 * time.Second
	// maxBodyOverhead leaves room for the JSON envelope around the source.
	maxBodyOverhead = 64 << 10
)

type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRateLimit allows r requests per second with the given burst. r <= 0
// disables limiting.
func WithRateLimit(r float64, burst int) Option {
	return func(s *Server) {
		if r <= 0 {
			s.limiter = nil
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(r), max(burst, 1))
	}
}

// WithMaxSourceSize bounds the request body.
func WithMaxSourceSize(n int) Option {
	return func(s *Server) { s.maxBody = int64(n) + maxBodyOverhead }
}

type Server struct {
	addr     string
	parser   analyzer.Parser
	logger   *slog.Logger
	limiter  *rate.Limiter
	maxBody  int64
	registry *prometheus.Registry
	metrics  *Metrics
	router   *gin.Engine
}

func New(addr string, parser analyzer.Parser, opts ...Option) *Server {
	s := &Server{
		addr:     addr,
		parser:   parser,
		logger:   logging.Discard(),
		maxBody:  analyzer.DefaultMaxSize + maxBodyOverhead,
		registry: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.metrics = NewMetrics(s.registry)
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(s.logger), accessLog(s.metrics), cors())

	api := r.Group("/api", rateLimit(s.limiter, s.metrics))
	api.POST("/parse", s.handleParse)
	api.GET("/health", s.handleHealth)

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	return r
}

func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("server listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		s.logger.Info("server shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) handleParse(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBody)

	var req analyzer.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": analyzer.ErrTooLarge.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	logger := logging.FromContext(ctx)

	start := time.Now()
	resp, err := s.parser.Parse(ctx, req.Code)
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case resp.Error != "":
		outcome = "syntax_error"
	}
	s.metrics.ParseDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	if err != nil {
		logger.Error("parse failed", "error", err, "size", len(req.Code))
		status := http.StatusInternalServerError
		if errors.Is(err, analyzer.ErrTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	logger.Debug("parsed",
		"structures", len(resp.Structures),
		"has_loop", resp.HasLoop,
		"dependencies", len(resp.LoopDependencies))
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Server is running"})
}
