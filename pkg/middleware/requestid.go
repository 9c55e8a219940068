package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
)

// Key types for context values
type contextKey string

const (
	// RequestIDKey is the key for request ID values in contexts
	RequestIDKey contextKey = "requestID"
	// UserIDKey is the key for user ID values in contexts
	UserIDKey contextKey = "userID"
)

// ContextPropagation copies the request id assigned by the logging
// middleware into the request's context.Context so services and background
// work started from the request can log it.
func ContextPropagation() gin.HandlerFunc {
	return func(c *gin.Context) {
		if requestID := c.GetString("requestID"); requestID != "" {
			ctx := context.WithValue(c.Request.Context(), RequestIDKey, requestID)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

// GetRequestID extracts the request ID from a context
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}

	return ""
}

// GetUserID extracts the authenticated user ID from a context, 0 if none
func GetUserID(ctx context.Context) uint {
	if ctx == nil {
		return 0
	}

	if userID, ok := ctx.Value(UserIDKey).(uint); ok {
		return userID
	}

	return 0
}
