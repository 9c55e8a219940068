package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextKey is the gin context key holding the request-scoped logger
const ContextKey = "logger"

// Middleware returns a Gin middleware function that logs requests
func Middleware(logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Generate a request ID if one doesn't exist
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("requestID", requestID)

		reqLogger := logger.WithRequestID(requestID)
		c.Set(ContextKey, reqLogger)

		start := time.Now()

		c.Next()

		// The auth gate runs after this middleware, so the user id is only known now.
		if userID, ok := c.Get("userID"); ok {
			if id, ok := userID.(uint); ok {
				reqLogger = reqLogger.WithUserID(id)
			}
		}

		method := c.Request.Method
		path := c.Request.URL.Path
		reqLogger.LogRequest(method, path, c.Writer.Status(), time.Since(start), c.ClientIP())

		for _, err := range c.Errors {
			reqLogger.LogError(err.Err, "request error",
				"method", method,
				"path", path,
				"error_type", err.Type,
			)
		}
	}
}

// FromContext returns the request-scoped logger, or the global one outside a request
func FromContext(c *gin.Context) *Logger {
	if c != nil {
		if l, ok := c.Get(ContextKey); ok {
			if reqLogger, ok := l.(*Logger); ok {
				return reqLogger
			}
		}
	}
	return GetGlobal()
}
