// Package web serves the permission engine over HTTP.
package web

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	recovermw "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/voxguild/permengine/internal/config"
	"github.com/voxguild/permengine/internal/engine"
	accesslog "github.com/voxguild/permengine/internal/logger/adapter/fiber"
	"github.com/voxguild/permengine/internal/web/handler"
	"github.com/voxguild/permengine/internal/web/handler/flags"
	"github.com/voxguild/permengine/internal/web/handler/lifecycle"
	"github.com/voxguild/permengine/internal/web/handler/overrides"
	"github.com/voxguild/permengine/internal/web/handler/permissions"
	"github.com/voxguild/permengine/internal/web/handler/roles"
	authmiddleware "github.com/voxguild/permengine/internal/web/middleware/auth"
)

const (
	// CheckAlivePath answers 200 while the service accepts traffic.
	CheckAlivePath = "/checkalive"
	// MetricsPath serves prometheus metrics.
	MetricsPath = "/metrics"
)

// Service represents the web service.
type Service struct {
	App          *fiber.App
	cfg          *config.Config
	fastShutDown bool
	alive        atomic.Bool
}

// Start listens on the configured port until the app is shut down.
func (s *Service) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Webserver.Port)

	log.Info().Str("addr", addr).Msg("http server listening")

	err := s.App.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("fiber listen: %w", err)
	}

	return nil
}

// Shutdown fails /checkalive for Webserver.ShutDownTime seconds so load balancers drain
// this instance, then stops the server.
func (s *Service) Shutdown() {
	s.alive.Store(false)

	if !s.fastShutDown && s.cfg.Webserver.ShutDownTime > 0 {
		log.Info().Msgf(
			"graceful shutdown: return 503 while %d seconds to let LB to remove this pod from active targets",
			s.cfg.Webserver.ShutDownTime,
		)

		time.Sleep(time.Duration(s.cfg.Webserver.ShutDownTime) * time.Second)
	}

	log.Info().Msg("stopping http server ...")

	if err := s.App.Shutdown(); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}

	log.Info().Msg("http server was stopped ... good bye...")
}

// New builds the app with every route. gatherer defaults to prometheus.DefaultGatherer.
func New(cfg *config.Config, eng *engine.Engine, gatherer prometheus.Gatherer) (*Service, error) {
	if cfg == nil || eng == nil {
		return nil, errors.New(handler.ErrNilACEFatalLogMsg)
	}

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	app := fiber.New(fiber.Config{
		AppName:       "permengine",
		CaseSensitive: true,
		Immutable:     true,
		BodyLimit:     cfg.Webserver.BodyLimit,
		ErrorHandler:  handler.ErrorHandler,
	})

	service := &Service{App: app, cfg: cfg, fastShutDown: cfg.Webserver.FastShutdown}
	service.alive.Store(true)

	app.Use(handler.RequestID)
	app.Use(accesslog.New(accesslog.Config{Config: cfg.Log, CheckAliveURI: CheckAlivePath}))

	if !cfg.Webserver.DisableRecover {
		app.Use(recovermw.New())
	}

	app.Get(CheckAlivePath, service.checkAlive)
	app.Get(MetricsPath, adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	userAuth := authmiddleware.New(cfg.Auth)

	app.Use(handler.APIPrefix, func(c fiber.Ctx) error {
		if strings.HasPrefix(c.Path(), handler.InternalPrefix) {
			return c.Next()
		}

		return userAuth(c)
	})

	for _, h := range []handler.Service{
		&flags.Handler,
		&permissions.Handler,
		&roles.Handler,
		&overrides.Handler,
		&lifecycle.Handler,
	} {
		if err := h.Init(app, cfg, eng); err != nil {
			return nil, err
		}
	}

	return service, nil
}

func (s *Service) checkAlive(c fiber.Ctx) error {
	if !s.alive.Load() {
		return c.Status(fiber.StatusServiceUnavailable).SendString("shutting down")
	}

	return c.SendString("OK")
}
