package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"utmtrack/pkg/logger"
	"utmtrack/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// gin context keys
const (
	RequestIDKey = "request_id"
	SessionIDKey = "session_id"
)

// RequestID adds a unique request ID to each request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Header("X-Request-ID", requestID)
		c.Set(RequestIDKey, requestID)

		// Add to context for logging
		ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey, requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// Session ties the request to a browser session through a session cookie.
// A missing or malformed cookie is replaced with a fresh id. The cookie has
// no Max-Age, so it lives as long as the browser session.
//
// A Lax cookie is not sent on cross-site fetches. With crossSite set the
// cookie is issued as SameSite=None, which browsers only accept when Secure.
func Session(cookieName string, secure, crossSite bool) gin.HandlerFunc {
	sameSite := http.SameSiteLaxMode
	if crossSite {
		sameSite = http.SameSiteNoneMode
		secure = true
	}

	return func(c *gin.Context) {
		sessionID, err := c.Cookie(cookieName)
		if err != nil || !validSessionID(sessionID) {
			sessionID = uuid.New().String()
			c.SetSameSite(sameSite)
			c.SetCookie(cookieName, sessionID, 0, "/", "", secure, true)
		}

		c.Set(SessionIDKey, sessionID)

		ctx := context.WithValue(c.Request.Context(), logger.SessionIDKey, sessionID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func validSessionID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Structured logging middleware
func Logger(log *logger.Logger) gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		log.WithFields(map[string]any{
			"request_id": param.Keys[RequestIDKey],
			"session_id": param.Keys[SessionIDKey],
			"status":     param.StatusCode,
			"latency":    param.Latency,
			"client_ip":  param.ClientIP,
			"method":     param.Method,
			"path":       param.Path,
			"user_agent": param.Request.UserAgent(),
			"error":      param.ErrorMessage,
		}).Info("HTTP Request")

		return ""
	})
}

// Panic recovery middleware
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		requestID := c.GetString(RequestIDKey)

		log.WithFields(map[string]any{
			"request_id": requestID,
			"error":      recovered,
			"path":       c.Request.URL.Path,
			"method":     c.Request.Method,
		}).Error("Panic recovered")

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "Internal server error",
			"request_id": requestID,
		})
	})
}

// Timeout bounds the request context. Handlers that block on it, like the
// readiness wait, give up once it expires.
func Timeout(timeout time.Duration) gin.HandlerFunc {
	if timeout <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		if ctx.Err() == context.DeadlineExceeded && !c.Writer.Written() {
			c.AbortWithStatusJSON(http.StatusRequestTimeout, gin.H{
				"error":      "Request timeout",
				"request_id": c.GetString(RequestIDKey),
			})
		}
	}
}

func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.IncHTTPRequestsInFlight()
		defer m.DecHTTPRequestsInFlight()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

func PrometheusHandler() gin.HandlerFunc {
	handler := promhttp.Handler()

	return func(c *gin.Context) {
		handler.ServeHTTP(c.Writer, c.Request)
	}
}
