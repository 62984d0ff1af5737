package router

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/risk-api/internal/handler/prometheus"
	"github.com/jwalitptl/risk-api/internal/middleware"
)

type Handler interface {
	RegisterRoutes(gin.IRouter)
}

type Handlers struct {
	Health   Handler
	Password Handler
	Login    Handler
	// Admin is only mounted when an auth middleware is configured.
	Admin   Handler
	Metrics *prometheus.Handler
}

type RouterConfig struct {
	Mode             string
	RateLimitEnabled bool
	RateLimit        rate.Limit
	RateBurst        int
	RateClientTTL    time.Duration
	CORSConfig       middleware.CORSConfig
	Timeout          time.Duration
	MaxBodyBytes     int64
	TrustedProxies   []string
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	handlers Handlers
	config   RouterConfig
}

func NewRouter(auth *middleware.AuthMiddleware, handlers Handlers, config RouterConfig) (*Router, error) {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}

	engine := gin.New()

	var proxies []string
	if len(config.TrustedProxies) > 0 {
		proxies = config.TrustedProxies
	}
	if err := engine.SetTrustedProxies(proxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	if err := middleware.RegisterValidators(middleware.DefaultValidationConfig()); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	r := &Router{
		engine:   engine,
		auth:     auth,
		handlers: handlers,
		config:   config,
	}

	core := []gin.HandlerFunc{
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
	}
	if handlers.Metrics != nil {
		core = append(core, handlers.Metrics.Middleware())
	}
	core = append(core,
		middleware.ErrorHandler(),
		middleware.Validation(middleware.DefaultValidationConfig()),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
	)
	engine.Use(core...)

	if len(config.CORSConfig.AllowOrigins) > 0 {
		engine.Use(middleware.CORS(config.CORSConfig))
	}

	return r, nil
}

func (r *Router) Setup() {
	if r.handlers.Health != nil {
		r.handlers.Health.RegisterRoutes(r.engine)
	}
	if r.handlers.Metrics != nil {
		r.engine.GET("/metrics", r.handlers.Metrics.Handler())
	}

	api := r.engine.Group("/api/v1")
	api.Use(r.apiMiddleware()...)

	r.handlers.Password.RegisterRoutes(api)
	r.handlers.Login.RegisterRoutes(api)

	if r.auth != nil && r.handlers.Admin != nil {
		admin := api.Group("/admin")
		admin.Use(r.auth.RequireAdmin())
		r.handlers.Admin.RegisterRoutes(admin)
	}
}

func (r *Router) apiMiddleware() []gin.HandlerFunc {
	maxBody := r.config.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = middleware.DefaultSizeLimitConfig().MaxBodySize
	}
	timeout := r.config.Timeout
	if timeout <= 0 {
		timeout = middleware.DefaultTimeoutConfig().Duration
	}

	mw := []gin.HandlerFunc{
		func(c *gin.Context) {
			c.Header("X-API-Version", "1.0")
			c.Next()
		},
		middleware.SizeLimit(middleware.SizeLimitConfig{
			MaxBodySize:   maxBody,
			MaxHeaderSize: middleware.DefaultSizeLimitConfig().MaxHeaderSize,
		}),
		middleware.Timeout(middleware.TimeoutConfig{Duration: timeout}),
	}

	if r.config.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:      r.config.RateLimit,
			Burst:     r.config.RateBurst,
			ClientTTL: r.config.RateClientTTL,
		})
		mw = append(mw, limiter.RateLimit())
	}
	return mw
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
