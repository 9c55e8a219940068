package errors

import (
	"realtime-chat/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ErrorHandler returns a middleware that catches and formats application errors
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		appErr := FromError(c.Errors[0].Err)

		log := logger.FromContext(c)
		if appErr.StatusCode >= 500 {
			cause := appErr.Error()
			if appErr.Err != nil {
				cause = appErr.Err.Error()
			}
			log.Error("Request failed",
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
				"status_code", appErr.StatusCode,
				"error_code", appErr.Code,
				"cause", cause,
			)
		} else {
			log.Debug("Request rejected",
				"path", c.Request.URL.Path,
				"status_code", appErr.StatusCode,
				"error_code", appErr.Code,
				"field", appErr.Field,
			)
		}

		// A handler may already have written a body (HTML pages); don't write twice.
		if c.Writer.Written() {
			return
		}

		c.AbortWithStatusJSON(appErr.StatusCode, gin.H{
			"error": gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
				"field":   appErr.Field,
				"details": appErr.Details,
			},
		})
	}
}
