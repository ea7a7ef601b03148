// Package server exposes the research workflow over HTTP.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jatanrathod13/researcher/config"
	"github.com/jatanrathod13/researcher/internal/telemetry"
	"github.com/jatanrathod13/researcher/internal/workflow"
)

// Server wires the orchestrator into an echo application.
type Server struct {
	cfg    *config.Config
	orch   *workflow.Orchestrator
	logger *log.Logger
	echo   *echo.Echo
}

func New(cfg *config.Config, orch *workflow.Orchestrator) *Server {
	s := &Server{
		cfg:    cfg,
		orch:   orch,
		logger: telemetry.NewLogger("HTTP"),
		echo:   echo.New(),
	}

	e := s.echo
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		s.logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	if secret := cfg.Server.JWTSecret; secret != "" {
		api.Use(AuthMiddleware([]byte(secret)))
	}
	api.POST("/research", s.createResearch)
	api.GET("/research/:id", s.getResearch)
	api.GET("/research/:id/report", s.getReport)
	api.DELETE("/research/:id", s.cancelResearch)
	api.GET("/runs", s.listRuns)
	api.GET("/examples", s.listExamples)

	return s
}

// Start blocks serving HTTP on addr, falling back to the configured listen
// address when addr is empty.
func (s *Server) Start(addr string) error {
	if addr == "" {
		addr = s.cfg.Server.Listen
	}
	if addr == "" {
		addr = ":10010"
	}
	s.logger.Printf("listening on %s", addr)
	return s.echo.Start(addr)
}

// Shutdown stops the HTTP listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Echo exposes the underlying router for tests.
func (s *Server) Echo() *echo.Echo { return s.echo }
