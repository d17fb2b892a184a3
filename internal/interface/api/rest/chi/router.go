package rest

import (
	"net/http"

	"github.com/KretovDmitry/backoffice/internal/config"
	"github.com/KretovDmitry/backoffice/pkg/accesslog"
	"github.com/KretovDmitry/backoffice/pkg/logger"
	"github.com/KretovDmitry/backoffice/pkg/metrics"
	"github.com/KretovDmitry/backoffice/pkg/unzip"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nanmu42/gzip"
)

// InitChi builds the root router with the middleware stack shared by every
// controller plus the liveness and metrics endpoints.
func InitChi(cfg *config.Config, metrics *metrics.Metrics, logger logger.Logger) *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(accesslog.Handler(logger))
	router.Use(middleware.Recoverer)
	router.Use(metrics.Middleware)
	router.Use(middleware.Heartbeat("/ping"))
	router.Use(gzip.DefaultHandler().WrapHandler)
	router.Use(unzip.Middleware(logger, cfg.HTTPServer.MaxBodyBytes))

	router.Method(http.MethodGet, "/metrics", metrics.Handler())

	return router
}

type (
	MiddlewareFunc func(http.Handler) http.Handler

	ChiServerOptions struct {
		BaseRouter  chi.Router
		BaseURL     string
		Middlewares []MiddlewareFunc
	}
)
