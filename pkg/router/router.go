package router

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"realtime-chat/backend/internal/api"
	"realtime-chat/backend/internal/ws"
	"realtime-chat/backend/pkg/config"
	"realtime-chat/backend/pkg/di"
	"realtime-chat/backend/pkg/errors"
	"realtime-chat/backend/pkg/logger"
	"realtime-chat/backend/pkg/metrics"
	"realtime-chat/backend/pkg/middleware"
	"realtime-chat/backend/pkg/validator"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Router is the main router for the application
type Router struct {
	Engine      *gin.Engine
	Container   *di.Container
	Logger      *logger.Logger
	Config      *config.Config
	RateLimiter *middleware.RateLimiter
}

// New creates the engine with the global middleware chain
func New(container *di.Container) *Router {
	cfg := container.Config

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		container.Logger.Warn("Invalid trusted proxies, trusting none", "error", err.Error())
		_ = engine.SetTrustedProxies(nil)
	}

	// Use the logger middleware first to capture all requests
	engine.Use(logger.Middleware(container.Logger))
	engine.Use(middleware.ContextPropagation())
	engine.Use(metrics.Middleware())
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())
	engine.Use(bodyLimit(cfg.Security.MaxBodySize))
	engine.Use(middleware.SessionAuth(container.UserService, cfg.Session.CookieName))

	r := &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
		Config:    cfg,
		RateLimiter: middleware.NewRateLimiter(container.Logger, middleware.RateLimiterOptions{
			Limit:          rate.Limit(cfg.Security.RateLimit),
			Burst:          cfg.Security.RateLimitBurst,
			ExpiryDuration: time.Hour,
		}),
	}

	r.loadTemplates()
	return r
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	c := r.Container
	cookie := api.SessionCookie{
		Name:   r.Config.Session.CookieName,
		MaxAge: int(r.Config.Session.TTL.Seconds()),
		Secure: r.Config.Session.CookieSecure,
	}

	authHandler := api.NewAuthHandler(c.UserService, cookie, r.Logger)
	chatHandler := api.NewChatHandler(c.ChatService, c.Notifier, api.ChatLimits{
		Recent:    r.Config.Chat.RecentLimit,
		MaxRecent: r.Config.Chat.MaxRecentLimit,
	})
	healthHandler := api.NewHealthHandler(c.Health, os.Getenv("APP_VERSION"))
	wsHandler := ws.NewHandler(c.Hub, r.Config.Security.AllowedOrigins)

	limited := r.RateLimiter.Middleware()
	requireAuth := middleware.RequireAuth()
	requirePage := middleware.RequirePageAuth("/login")
	guest := middleware.RedirectIfAuthenticated("/chat")

	// Browser pages
	r.Engine.GET("/", chatHandler.Index)
	r.Engine.GET("/register", guest, authHandler.ShowRegister)
	r.Engine.POST("/register", guest, limited, authHandler.Register)
	r.Engine.GET("/login", guest, authHandler.ShowLogin)
	r.Engine.POST("/login", guest, limited, authHandler.Login)
	r.Engine.POST("/logout", authHandler.Logout)
	r.Engine.GET("/chat", requirePage, chatHandler.Page)
	r.Engine.POST("/chat/send", requireAuth, limited, chatHandler.Send)

	// JSON API
	v1 := r.Engine.Group("/api/v1")
	v1.Use(corsMiddleware(r.Config.Security.AllowedOrigins))
	r.addOpenAPIValidation(v1)
	{
		auth := v1.Group("/auth")
		auth.POST("/register", limited, authHandler.APIRegister)
		auth.POST("/login", limited, authHandler.APILogin)
		auth.GET("/me", requireAuth, authHandler.Me)

		v1.GET("/messages", requireAuth, chatHandler.List)
		v1.POST("/messages", requireAuth, limited, chatHandler.Create)

		// Preflight requests are answered by corsMiddleware
		v1.OPTIONS("/*path", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	}

	r.Engine.GET("/ws", wsHandler.ServeWs)
	r.Engine.GET("/health", healthHandler.Health)
	r.Engine.GET("/metrics", gin.WrapH(metrics.Handler()))
}

// addOpenAPIValidation validates JSON API requests against the schema when the file exists
func (r *Router) addOpenAPIValidation(group *gin.RouterGroup) {
	schemaPath := r.Config.Web.OpenAPISchemaPath
	if schemaPath == "" {
		return
	}
	if _, err := os.Stat(schemaPath); err != nil {
		r.Logger.Warn("OpenAPI schema file not found, skipping validation", "path", schemaPath)
		return
	}

	v, err := validator.NewOpenAPIValidator(schemaPath)
	if err != nil {
		r.Logger.Error("Failed to initialize OpenAPI validator", "error", err.Error())
		return
	}

	group.Use(v.Middleware())
	r.Engine.StaticFile("/api/docs/openapi.yaml", schemaPath)
	r.Logger.Info("OpenAPI validation enabled", "schema", schemaPath)
}

func (r *Router) loadTemplates() {
	pattern := filepath.Join(r.Config.Web.TemplateDir, "*.tmpl")
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		r.Logger.Warn("No HTML templates found, pages will not render", "pattern", pattern)
		return
	}
	r.Engine.LoadHTMLGlob(pattern)
}

// bodyLimit caps request bodies; larger bodies fail to bind
func bodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// corsMiddleware answers preflight requests for the JSON API
func corsMiddleware(allowed []string) gin.HandlerFunc {
	allowAll := len(allowed) == 0
	allowedSet := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			allowAll = true
		}
		allowedSet[origin] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && (allowAll || allowedSet[origin]) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization, X-Request-ID")
			c.Header("Access-Control-Max-Age", fmt.Sprint(int((24 * time.Hour).Seconds())))
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
