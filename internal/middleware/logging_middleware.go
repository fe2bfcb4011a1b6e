// internal/middleware/logging_middleware.go
package middleware

import (
	"adcp-service/internal/utils"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func LoggingMiddleware(logger *utils.ServiceLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		duration := time.Since(startTime)

		logger.LogAPIRequest(
			c.Request.Method,
			c.Request.URL.Path,
			c.Request.UserAgent(),
			c.ClientIP(),
			c.Writer.Status(),
			duration,
		)

		for _, ginErr := range c.Errors {
			logger.Warn("Request error",
				zap.String("request_id", utils.GetRequestID(c)),
				zap.Error(ginErr.Err),
			)
		}
	}
}
