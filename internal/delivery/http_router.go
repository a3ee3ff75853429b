package delivery

import (
	"utmtrack/internal/delivery/middleware"
	"utmtrack/pkg/config"
	"utmtrack/pkg/logger"
	"utmtrack/pkg/metrics"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type HTTPRouter struct {
	handlers *HTTPHandlers
	server   config.ServerConfig
	session  config.SessionConfig
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewHTTPRouter(handlers *HTTPHandlers, server config.ServerConfig, session config.SessionConfig, logger *logger.Logger, metrics *metrics.Metrics) *HTTPRouter {
	return &HTTPRouter{
		handlers: handlers,
		server:   server,
		session:  session,
		logger:   logger,
		metrics:  metrics,
	}
}

func (r *HTTPRouter) SetupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(r.logger))
	router.Use(middleware.Recovery(r.logger))
	router.Use(middleware.Metrics(r.metrics))
	router.Use(middleware.Timeout(r.server.RequestTimeout))
	router.Use(cors.New(r.corsConfig()))

	// Health endpoint
	router.GET("/health", r.handlers.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	// an origin allow-list means the landing pages may live on other sites
	crossSite := len(r.server.AllowOrigins) > 0
	v1.Use(middleware.Session(r.session.CookieName, r.session.CookieSecure, crossSite))
	{
		v1.GET("/", r.handlers.GetAPIInfo)
		v1.GET("", r.handlers.GetAPIInfo)

		v1.POST("/extract", r.handlers.Extract)

		// Attribution endpoints
		attribution := v1.Group("/attribution")
		{
			attribution.GET("", r.handlers.GetAttribution)
			attribution.GET("/diagnose", r.handlers.Diagnose)
		}

		v1.GET("/analytics/ready", r.handlers.AnalyticsReady)

		// Event endpoints
		events := v1.Group("/events")
		{
			events.POST("", r.handlers.SendEvent)
			events.POST("/pageview", r.handlers.SendPageView)
			events.POST("/conversion", r.handlers.SendConversion)
		}
	}

	// Prometheus metrics endpoint
	router.GET("/metrics", middleware.PrometheusHandler())

	return router
}

// corsConfig allows every origin unless an allow-list is configured.
// Credentialed requests, which carry the session cookie, need the list.
func (r *HTTPRouter) corsConfig() cors.Config {
	config := cors.DefaultConfig()
	if len(r.server.AllowOrigins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = r.server.AllowOrigins
		config.AllowCredentials = true
	}
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	config.AllowHeaders = []string{"Content-Type", "X-Request-ID"}
	config.ExposeHeaders = []string{"X-Request-ID"}
	return config
}
