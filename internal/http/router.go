// Package httpapi mounts the admin API: middleware, health and metrics
// endpoints, and the read-only module and session handlers.
//
// Middleware order:
//  1. OpenTelemetry, so every request is traced
//  2. RequestID, then the redacting Logger, then Recovery
//  3. body size limit
//  4. Prometheus metrics
//  5. gzip
//  6. per-operator rate limit
//  7. CORS and security headers
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/go-autoreply-backend/internal/config"
	"github.com/tbourn/go-autoreply-backend/internal/http/handlers"
	"github.com/tbourn/go-autoreply-backend/internal/http/middleware"
)

// maxBodyBytes caps request bodies. The API is read-only, so anything large
// is a mistake or abuse.
const maxBodyBytes = 64 << 10

// Deps are the services behind the handlers. Registry defaults to the
// Prometheus default registry; tests pass their own.
type Deps struct {
	Modules  handlers.ModuleService
	Sessions handlers.SessionService
	Registry *prometheus.Registry
}

// RegisterRoutes installs middleware and routes on r.
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	var (
		reg      prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if deps.Registry != nil {
		reg, gatherer = deps.Registry, deps.Registry
	}

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(middleware.RedactOptions{}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))
	r.Use(middleware.Metrics(reg))
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	r.Use(middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByOperatorOrIP()).Handler())
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	h := handlers.New(deps.Modules, deps.Sessions)
	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.GET("/channels/:channel/modules", h.ListModules)
		api.GET("/channels/:channel/stats/modules", h.ModuleStats)
		api.GET("/channels/:channel/stats/keywords", h.KeywordStats)
		api.GET("/modules", h.GetModules)
	}
	rc := api.Group("/remote-control", middleware.SecurityHeaders(middleware.SecurityOptions{NoStore: true}))
	rc.GET("/:user/:source", h.GetSession)
}

// corsMiddleware allows any origin without credentials when no allowlist is
// configured, and echoes allowlisted origins otherwise.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Accept", "If-None-Match", "X-Request-ID", middleware.OperatorHeader},
		ExposeHeaders:    []string{"X-Request-ID", "ETag", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		base.AllowAllOrigins = true
		// Also answer requests without an Origin header, e.g. health probes.
		star := func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		}
		return []gin.HandlerFunc{star, cors.New(base)}
	}
	base.AllowOrigins = origins
	return []gin.HandlerFunc{cors.New(base)}
}

func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
