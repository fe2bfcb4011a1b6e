// internal/middleware/recovery_middleware.go
package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"adcp-service/internal/utils"
)

// RecoveryMiddleware turns a handler panic into a 500 envelope carrying the
// request id, so a failed call can be matched to its log entry
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		requestID := utils.GetRequestID(c)
		logger.Error("Panic recovered",
			zap.Any("panic", recovered),
			zap.String("request_id", requestID),
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
			zap.Stack("stacktrace"),
		)

		utils.ErrorResponseWithCode(c, http.StatusInternalServerError, "INTERNAL_ERROR",
			"Internal server error", fmt.Errorf("request %s failed", requestID))
		c.Abort()
	})
}
