package httpserver

import (
	"context"
	"errors"
	"net/http"
	"slices"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"lessonshop/internal/domain"
	"lessonshop/internal/metrics"
	"lessonshop/internal/requestid"
)

type LessonService interface {
	List(ctx context.Context) ([]domain.Lesson, error)
	Get(ctx context.Context, id string) (*domain.Lesson, error)
	UpdateSpaces(ctx context.Context, id string, spaces int, expectedVersion int64) (*domain.Lesson, error)
}

type OrderService interface {
	Create(ctx context.Context, req domain.OrderRequest, requestID string) (*domain.Order, error)
	Get(ctx context.Context, id string) (*domain.Order, error)
}

// Deps are the services the router dispatches to.
type Deps struct {
	LessonSvc LessonService
	OrderSvc  OrderService
	// Metrics is optional; nil disables /metrics and request instrumentation.
	Metrics *metrics.ServerMetrics
}

// buildRouter wires routes for the API.
func buildRouter(logger zerolog.Logger, db pinger, deps Deps, opts Options) (*gin.Engine, error) {
	if deps.LessonSvc == nil || deps.OrderSvc == nil {
		return nil, errors.New("lesson and order services required")
	}

	router := gin.New()
	router.Use(requestIDMiddleware(), loggerMiddleware(logger), recoveryMiddleware(logger))
	router.Use(cors.New(corsConfig(opts.CORSOrigins)))
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Middleware())
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))

	lessons := &lessonHandler{svc: deps.LessonSvc, metrics: deps.Metrics, fileURLHost: opts.FileURLHost}
	router.GET("/lessons", lessons.list)
	router.GET("/lessons/:id", lessons.get)
	router.PUT("/lessons/:id", lessons.updateSpaces)

	orders := &orderHandler{svc: deps.OrderSvc, metrics: deps.Metrics}
	router.POST("/orders", orders.create)
	router.GET("/orders/:id", orders.get)

	return router, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "If-Match", requestid.Header},
		ExposeHeaders: []string{"ETag", requestid.Header},
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
