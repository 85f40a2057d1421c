package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kbukum/nodeflow/logger"
	"github.com/kbukum/nodeflow/observability"
	"github.com/kbukum/nodeflow/server/endpoint"
	"github.com/kbukum/nodeflow/server/middleware"
)

// Server serves the debug API with Gin. HTTP/1.1 and cleartext HTTP/2 share
// one port so editors can multiplex event streams with requests.
type Server struct {
	cfg    Config
	log    *logger.Logger
	router *gin.Engine
	h2     *http2.Server
	http   *http.Server
	ln     net.Listener
}

// New creates a Server for cfg. Routes and middleware are added afterwards.
func New(cfg Config, log *logger.Logger) *Server {
	mode := gin.ReleaseMode
	if log.Level() <= zerolog.DebugLevel {
		mode = gin.DebugMode
	}
	gin.SetMode(mode)

	s := &Server{
		cfg:    cfg,
		log:    log.WithComponent("server"),
		router: gin.New(),
		h2:     &http2.Server{MaxConcurrentStreams: 250, IdleTimeout: cfg.IdleTimeout},
	}
	s.http = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	s.serve(s.router)
	return s
}

func (s *Server) serve(h http.Handler) {
	s.http.Handler = h2c.NewHandler(h, s.h2)
}

// GinEngine returns the router routes are registered on.
func (s *Server) GinEngine() *gin.Engine { return s.router }

// Handler returns the root handler, middleware included.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// ApplyMiddleware wraps every route in recovery, request ids, CORS, the body
// size limit and request logging. Per-route request metrics are recorded
// when metrics is non-nil.
func (s *Server) ApplyMiddleware(metrics *observability.Metrics) {
	s.router.Use(middleware.Metrics(metrics))
	s.serve(middleware.Chain(
		middleware.Recovery(s.log),
		middleware.RequestID(),
		middleware.CORS(&s.cfg.CORS),
		middleware.BodySizeLimit(s.cfg.MaxBodySize),
		middleware.RequestLogger(s.log),
	)(s.router))
}

// RegisterDefaultEndpoints adds the /healthz and /version probes.
func (s *Server) RegisterDefaultEndpoints(service, version string, checkers ...observability.HealthChecker) {
	s.router.GET("/healthz", endpoint.Health(service, version, checkers...))
	s.router.GET("/version", endpoint.Version())
}

// Start binds the listener and serves in the background. A port of 0 picks
// a free port; Addr reports it.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.http.Addr, err)
	}
	s.ln = ln
	s.log.Info("Debug API listening", logger.Fields("addr", ln.Addr().String()))

	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Debug API stopped", logger.Fields(logger.FieldError, err.Error()))
		}
	}()
	return nil
}

// Stop drains open requests for at most the configured shutdown timeout.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.shutdownTimeout())
	defer cancel()

	start := time.Now()
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("shut down debug API: %w", err)
	}
	s.log.Info("Debug API shut down", logger.Fields(logger.FieldDuration, time.Since(start).Milliseconds()))
	return nil
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.http.Addr
}
