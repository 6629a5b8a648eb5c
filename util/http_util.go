// api/util/http_util.go
package util

import (
	logger "github.com/propsync/keyway/api/logging"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func RespondWithError(c *gin.Context, code int, message string, err error) {
	logger.Error(message,
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method))
	c.JSON(code, gin.H{"error": message})
}

// GetActorFromContext returns the acting user injected by the hosting
// application's gateway, empty when the request is unattributed.
func GetActorFromContext(c *gin.Context) string {
	if actor := c.GetHeader("X-Actor-Id"); actor != "" {
		return actor
	}
	actor, exists := c.Get("actorID")
	if !exists {
		return ""
	}
	return actor.(string)
}
