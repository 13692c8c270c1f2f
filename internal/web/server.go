package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"tradingmodels/internal/config"
	"tradingmodels/internal/daytrading"
	"tradingmodels/internal/loader"
	"tradingmodels/internal/logger"
	"tradingmodels/internal/metrics"
	"tradingmodels/internal/pipeline"
	"tradingmodels/internal/publish"
	"tradingmodels/internal/stream"
	"tradingmodels/pkg/model"
)

// RunLister lists recorded training runs, newest first
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error)
}

// Options wires the server's collaborators
type Options struct {
	Config     daytrading.Config
	StorageDir string
	Loader     *loader.Loader
	Logger     *logger.Logger
	Metrics    *metrics.Recorder
	Recorder   pipeline.RunRecorder
	Runs       RunLister
	Publisher  publish.Publisher
	HTTP       config.ServerConfig
}

// Server serves the day-trading model over HTTP
type Server struct {
	echo    *echo.Echo
	opts    Options
	log     *logger.Logger
	metrics *metrics.Recorder
	hub     *Hub

	// mu serializes training and streaming against the storage directory
	mu            sync.Mutex
	cfg           daytrading.Config
	lastPublished time.Time
}

// NewServer creates the server and registers its routes
func NewServer(opts Options) (*Server, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	if opts.Loader == nil {
		return nil, fmt.Errorf("web server requires a loader")
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}

	s := &Server{
		opts:    opts,
		log:     opts.Logger,
		metrics: opts.Metrics,
		hub:     NewHub(opts.Logger),
		cfg:     opts.Config.Clone(),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(s.observe)
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	s.registerRoutes(e)
	s.echo = e
	return s, nil
}

func (s *Server) registerRoutes(e *echo.Echo) {
	g := e.Group("/day_trading")
	g.POST("/train", s.handleTrain)
	g.GET("/status", s.handleStatus)
	g.GET("/stream", s.handleStream)
	g.GET("/stream/ws", s.hub.ServeWS)
	g.GET("/runs", s.handleRuns)

	e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}

// Echo returns the underlying echo instance
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Hub returns the websocket hub
func (s *Server) Hub() *Hub {
	return s.hub
}

// Config returns the configuration used by status and stream requests.
// A successful training run replaces it with the trained configuration.
func (s *Server) Config() daytrading.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Clone()
}

// IsTrained reports whether a model bundle exists for the active configuration
func (s *Server) IsTrained() bool {
	p, err := s.pipeline(s.Config())
	if err != nil {
		return false
	}
	return p.IsTrained()
}

// Start listens until Shutdown is called
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.opts.HTTP.Host, s.opts.HTTP.Port)
	s.echo.Server.ReadTimeout = s.opts.HTTP.ReadTimeout
	s.echo.Server.WriteTimeout = s.opts.HTTP.WriteTimeout

	s.log.Info("http server listening", logger.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown disconnects subscribers and stops the HTTP server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.log.Info("http server stopped")
	return nil
}

// Train runs the training pipeline with overrides applied to the active
// configuration.
func (s *Server) Train(ctx context.Context, overrides map[string]interface{}, forceDownload bool) (*pipeline.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.cfg.WithOverrides(overrides)
	if err != nil {
		return nil, err
	}
	p, err := s.pipeline(cfg)
	if err != nil {
		return nil, err
	}

	res, err := p.Train(ctx, forceDownload)
	if err != nil {
		s.metrics.RecordTrainingFailure(cfg.Symbol, kindOf(err))
		return nil, err
	}
	s.metrics.RecordTraining(cfg.Symbol, res.Duration, res.Evaluation)
	s.cfg = cfg
	return res, nil
}

// Retrain trains the active configuration on freshly fetched bars
func (s *Server) Retrain(ctx context.Context) error {
	_, err := s.Train(ctx, nil, true)
	return err
}

// LatestPoints scores the freshest bars with the persisted model
func (s *Server) LatestPoints(ctx context.Context) ([]model.StreamPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latestPointsLocked(ctx)
}

// RefreshStream computes the latest points and pushes them to websocket
// subscribers and the publisher. Only points newer than the last publish
// are published.
func (s *Server) RefreshStream(ctx context.Context) error {
	s.mu.Lock()
	points, err := s.latestPointsLocked(ctx)
	cfg := s.cfg.Clone()
	since := s.lastPublished
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if err := s.hub.Broadcast(newStreamResponse(cfg.Symbol, points)); err != nil {
		return fmt.Errorf("broadcast stream: %w", err)
	}

	if s.opts.Publisher == nil || len(points) == 0 {
		return nil
	}
	fresh := publish.NewlyAfter(points, since)
	if len(fresh) == 0 {
		return nil
	}
	if err := s.opts.Publisher.Publish(ctx, cfg.Symbol, fresh); err != nil {
		s.metrics.RecordError("publish", "upstream_fetch")
		return fmt.Errorf("publish stream: %w", err)
	}

	s.mu.Lock()
	s.lastPublished = fresh[len(fresh)-1].Time
	s.mu.Unlock()
	return nil
}

func (s *Server) latestPointsLocked(ctx context.Context) ([]model.StreamPoint, error) {
	p, err := s.pipeline(s.cfg)
	if err != nil {
		return nil, err
	}
	streamer, err := stream.New(p, s.log)
	if err != nil {
		return nil, err
	}
	points, err := streamer.LatestPoints(ctx)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordStream(s.cfg.Symbol, points)
	return points, nil
}

func (s *Server) pipeline(cfg daytrading.Config) (*pipeline.Pipeline, error) {
	p, err := pipeline.New(cfg, s.opts.StorageDir, s.opts.Loader, s.log)
	if err != nil {
		return nil, err
	}
	if s.opts.Recorder != nil {
		p.SetRecorder(s.opts.Recorder)
	}
	return p, nil
}

// observe records request metrics and logs failed or slow requests
func (s *Server) observe(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		status := c.Response().Status
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
		}
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		duration := time.Since(start)
		s.metrics.RecordHTTP(route, c.Request().Method, status, duration)

		if status >= http.StatusInternalServerError {
			s.log.Error("http request failed",
				logger.String("route", route),
				logger.String("method", c.Request().Method),
				logger.Int("status", status),
				logger.Duration("duration_ms", duration),
			)
		} else if duration > 5*time.Second {
			s.log.Warn("http request slow",
				logger.String("route", route),
				logger.Int("status", status),
				logger.Duration("duration_ms", duration),
			)
		}
		return err
	}
}
