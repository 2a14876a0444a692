package router

import (
	"net/http"
	"strings"

	"whatsapp-assistant/backend/internal/api"
	"whatsapp-assistant/backend/internal/ws"
	"whatsapp-assistant/backend/pkg/config"
	"whatsapp-assistant/backend/pkg/di"
	"whatsapp-assistant/backend/pkg/errors"
	"whatsapp-assistant/backend/pkg/logger"
	"whatsapp-assistant/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Router is the main router for the application
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger
	Config    *config.Config
}

// New creates a new router with the given container
func New(container *di.Container) *Router {
	cfg := container.Config

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// logger first so every later middleware sees the request logger
	engine.Use(logger.Middleware(container.Logger))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())
	engine.Use(corsMiddleware(cfg.Security.AllowedOrigins))

	return &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
		Config:    cfg,
	}
}

// SetupRoutes registers all application routes. Middleware added to the
// engine afterwards does not apply to them.
func (r *Router) SetupRoutes() {
	c := r.Container

	jwtAuth := middleware.JWTAuthMiddleware(c.JWTService, r.Logger)
	limiter := middleware.NewRateLimiter(r.Logger, middleware.RateLimiterOptions{
		Limit: rate.Limit(r.Config.Security.RateLimit),
		Burst: r.Config.Security.RateLimitBurst,
	})

	authHandler := api.NewAuthHandler(c.UserService, r.Logger)
	threadHandler := api.NewThreadHandler(c.ThreadSvc, r.Logger)
	operatorHandler := api.NewOperatorHandler(c.Takeover, c.Pipeline, r.Logger)
	statsHandler := api.NewStatsHandler(c.StatsService)
	webhookHandler := api.NewWebhookHandler(
		c.Normalizers,
		c.Verifier,
		c.Pipeline,
		c.Dispatcher,
		r.Config.Security.MaxBodySize,
		r.Logger,
	)

	r.Engine.GET("/health", gin.WrapF(c.Health.HTTPHandler()))

	// providers retry on 429, so webhooks stay outside the rate limiter
	webhookHandler.RegisterRoutes(r.Engine.Group("/"))

	limited := r.Engine.Group("/")
	limited.Use(middleware.BodyLimit(r.Config.Security.MaxBodySize), limiter.Middleware())
	limited.POST("/auth/login", authHandler.Login)

	protected := limited.Group("/")
	protected.Use(jwtAuth)
	{
		protected.GET("/me", authHandler.Me)
		threadHandler.RegisterRoutes(protected)
		operatorHandler.RegisterRoutes(protected)
		statsHandler.RegisterRoutes(protected)
		protected.GET("/ws", func(ctx *gin.Context) {
			ws.ServeWs(c.Hub, ctx)
		})
	}
}

// MountMetrics serves the Prometheus handler at /metrics
func (r *Router) MountMetrics(handler http.Handler) {
	r.Engine.GET("/metrics", gin.WrapH(handler))
}

func corsMiddleware(allowed []string) gin.HandlerFunc {
	origins := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		origins[o] = true
	}
	anyOrigin := len(origins) == 0 || origins["*"]

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		switch {
		case origin != "" && (anyOrigin || origins[origin]):
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Add("Vary", "Origin")
		case anyOrigin:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", strings.Join([]string{
			"Content-Type", "Content-Length", "Accept", "Authorization", "Origin", "X-Request-ID", "Upgrade", "Connection",
		}, ", "))
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
