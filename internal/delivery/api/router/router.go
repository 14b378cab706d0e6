// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"bikeshare/config"
	"bikeshare/internal/delivery/api/router/handler"
	"bikeshare/internal/infra/metrics"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	SessionHandler *handler.SessionHandler
	Metrics        *metrics.Registry `optional:"true"`
	Config         *config.Config
}

// router holds all the handlers that need to be registered.
type router struct {
	sessionHandler *handler.SessionHandler
	metrics        *metrics.Registry
	config         *config.Config
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		sessionHandler: params.SessionHandler,
		metrics:        params.Metrics,
		config:         params.Config,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	// Health check endpoint
	e.GET("/health", handler.HealthCheck)

	// API v1 routes
	apiV1 := e.Group("/api/v1")

	// Session routes; each session owns one proximity graph
	sessionsGroup := apiV1.Group("/sessions")
	{
		sessionsGroup.POST("", r.sessionHandler.StartSession)
		sessionsGroup.DELETE("/:id", r.sessionHandler.EndSession)
		sessionsGroup.GET("/:id/graph", r.sessionHandler.GraphStats)
		sessionsGroup.PUT("/:id/graph", r.sessionHandler.SetDistance)
		sessionsGroup.GET("/:id/graph/geojson", r.sessionHandler.GraphGeoJSON)
		sessionsGroup.POST("/:id/route", r.sessionHandler.Route)
		sessionsGroup.POST("/:id/distribute", r.sessionHandler.Distribute)
		sessionsGroup.POST("/:id/refresh", r.sessionHandler.Refresh)
	}
}

// RegisterMetricsRoute exposes Prometheus metrics when enabled
func (r *router) RegisterMetricsRoute(e *echo.Echo) {
	if r.metrics == nil || r.config.Metrics == nil || !r.config.Metrics.Enabled {
		return
	}

	e.GET(r.config.Metrics.Path, echo.WrapHandler(r.metrics.Handler()))
}
