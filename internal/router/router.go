package router

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/aimkt/marketing-api/internal/handler/prometheus"
	"github.com/aimkt/marketing-api/internal/middleware"
)

// Handler registers a resource's routes on a group.
type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// PublicHandler additionally has routes that skip authentication.
type PublicHandler interface {
	Handler
	RegisterPublicRoutes(*gin.RouterGroup)
}

type Router struct {
	engine     *gin.Engine
	auth       *middleware.AuthMiddleware
	healthH    Handler
	campaignH  Handler
	messageH   PublicHandler
	notifH     Handler
	analyticsH Handler
	prom       *prometheus.Handler
}

type Config struct {
	RateLimit  rate.Limit
	RateBurst  int
	CORSConfig middleware.CORSConfig
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	healthH Handler,
	campaignH Handler,
	messageH PublicHandler,
	notifH Handler,
	analyticsH Handler,
	config Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	middleware.RegisterValidators()
	engine := gin.New()

	prom := prometheus.New()

	engine.Use(
		middleware.Recovery(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		prom.Middleware(),
		middleware.RequestID(),
	)
	engine.Use(middleware.CORS(config.CORSConfig))

	if config.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(limiter.RateLimit())
	}

	return &Router{
		engine:     engine,
		auth:       auth,
		healthH:    healthH,
		campaignH:  campaignH,
		messageH:   messageH,
		notifH:     notifH,
		analyticsH: analyticsH,
		prom:       prom,
	}
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	r.healthH.RegisterRoutes(api)
	api.GET("/health/metrics", r.prom.Handler())

	// Engagement tracking has no caller identity.
	r.messageH.RegisterPublicRoutes(api)

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	r.campaignH.RegisterRoutes(protected)
	r.messageH.RegisterRoutes(protected)
	r.notifH.RegisterRoutes(protected)
	r.analyticsH.RegisterRoutes(protected)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
