// Package server exposes the backend HTTP API. All dataset routes live
// under the configured base path and require a known Authorization header
// value; the prometheus endpoint is served at the root, outside the
// guard.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/config"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/logger"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/store"
)

// Refresher triggers dataset refresh runs; satisfied by *datasets.Manager.
type Refresher interface {
	RefreshAll(ctx context.Context) error
	ForceUpdate(ctx context.Context, name string) error
}

// Server is the backend HTTP API.
type Server struct {
	echo    *echo.Echo
	cfg     config.ServerConfig
	log     *logger.Logger
	manager Refresher
	store   *store.Store
	sample  int
}

// Options wires a Server.
type Options struct {
	Config   config.Config
	Manager  Refresher
	Store    *store.Store
	Gatherer prometheus.Gatherer
	Logger   *logger.Logger
}

// New builds the echo application with its middleware and routes.
func New(opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		cfg:     opts.Config.Server,
		log:     opts.Logger,
		manager: opts.Manager,
		store:   opts.Store,
		sample:  opts.Config.Datasets.SampleRows,
	}

	e.Use(s.requestLogger())

	if opts.Config.Metrics.Enabled && opts.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(
			promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}),
		))
	}

	api := e.Group(s.cfg.BasePath, s.authGuard(opts.Config.Auth.APIKeys))
	api.GET("/health-check", s.handleHealthCheck)
	api.GET("/update-tgf-datasets", s.handleUpdateDatasets)
	api.GET("/force-update-tgf-dataset/:name", s.handleForceUpdate)
	api.GET("/dataset/:name", s.handleDataset)
	api.GET("/sample-data/:name", s.handleSampleData)

	return s
}

// Start serves HTTP on the configured listen address. It blocks until the
// server stops; http.ErrServerClosed after a graceful shutdown is not
// reported as an error.
func (s *Server) Start() error {
	s.log.Info("http server starting",
		logger.Field{Key: "listen", Value: s.cfg.Listen},
		logger.Field{Key: "base_path", Value: s.cfg.BasePath})

	err := s.echo.Start(s.cfg.Listen)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("http server shutting down")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the echo app as an http.Handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// requestLogger logs every request with its latency and status.
func (s *Server) requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			s.log.Info("request",
				logger.Field{Key: "method", Value: c.Request().Method},
				logger.Field{Key: "path", Value: c.Request().URL.Path},
				logger.Field{Key: "status", Value: c.Response().Status},
				logger.Field{Key: "latency", Value: time.Since(start).Round(time.Microsecond).String()})
			return err
		}
	}
}

// authGuard rejects requests whose Authorization header is not one of the
// configured keys.
func (s *Server) authGuard(keys []string) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		allowed[k] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := c.Request().Header.Get("Authorization")
			if _, ok := allowed[token]; !ok {
				return c.JSON(http.StatusUnauthorized, envelope(http.StatusUnauthorized, "Unauthorized"))
			}
			return next(c)
		}
	}
}

func envelope(code int, result interface{}) map[string]interface{} {
	return map[string]interface{}{
		"code":   code,
		"result": result,
	}
}
