// Package httpapi exposes the traffic capacity service over HTTP using gin.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trafficcap/internal/blob"
	"trafficcap/internal/core"
)

// Service is the capacity surface served by the router. *core.Service implements it.
type Service interface {
	CreateTraffic(ctx context.Context, payload core.TrafficPayload) (string, error)
	EditTrafficLimit(ctx context.Context, id string, payload core.TrafficPayload) (core.Traffic, error)
	GetTraffic(ctx context.Context, id string) (core.Traffic, error)
	ListTraffic(ctx context.Context) ([]core.Traffic, error)
	GetTrafficRemainingLimit(ctx context.Context, id string) int
	CapacityUsage(ctx context.Context, id string) (core.CapacityUsage, error)
	ListOverAllocated(ctx context.Context) ([]core.CapacityUsage, error)
	CreateHousing(ctx context.Context, payload core.HousingPayload) (core.HousingResponse, error)
	GetHousing(ctx context.Context, id string) (core.Housing, error)
	ListHousing(ctx context.Context, trafficID string) ([]core.Housing, error)
}

// SnapshotArchive exports and lists archived state. *snapshots.Exporter implements it.
type SnapshotArchive interface {
	Export(ctx context.Context) (blob.Info, error)
	List(ctx context.Context) ([]blob.Info, error)
}

type options struct {
	logger         core.Logger
	snapshots      SnapshotArchive
	metrics        http.Handler
	allowedOrigins []string
}

// Option configures the router.
type Option func(*options)

// WithLogger logs one line per request.
func WithLogger(logger core.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithSnapshots enables the /snapshots endpoints.
func WithSnapshots(archive SnapshotArchive) Option {
	return func(o *options) { o.snapshots = archive }
}

// WithMetricsHandler serves h on /metrics instead of the default Prometheus registry.
func WithMetricsHandler(h http.Handler) Option {
	return func(o *options) { o.metrics = h }
}

// WithAllowedOrigins restricts CORS to origins. The default allows all.
func WithAllowedOrigins(origins ...string) Option {
	return func(o *options) { o.allowedOrigins = origins }
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(svc Service, opts ...Option) *gin.Engine {
	o := options{metrics: promhttp.Handler()}
	for _, opt := range opts {
		opt(&o)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if o.logger != nil {
		router.Use(requestLogger(o.logger))
	}
	router.Use(cors.New(corsConfig(o.allowedOrigins)))

	h := &handlers{svc: svc, snapshots: o.snapshots}
	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(o.metrics))

	traffic := router.Group("/traffic")
	traffic.POST("", h.createTraffic)
	traffic.GET("", h.listTraffic)
	traffic.GET("/over-allocated", h.listOverAllocated)
	traffic.GET("/:id", h.getTraffic)
	traffic.PUT("/:id", h.editTrafficLimit)
	traffic.GET("/:id/remaining-limit", h.remainingLimit)
	traffic.GET("/:id/usage", h.capacityUsage)

	housing := router.Group("/housing")
	housing.POST("", h.createHousing)
	housing.GET("", h.listHousing)
	housing.GET("/:id", h.getHousing)

	router.POST("/snapshots", h.exportSnapshot)
	router.GET("/snapshots", h.listSnapshots)
	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func requestLogger(logger core.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		args := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("http request", args...)
		case status >= http.StatusBadRequest:
			logger.Info("http request", args...)
		default:
			logger.Debug("http request", args...)
		}
	}
}
