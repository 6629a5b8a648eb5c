// api/router/router.go

package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/propsync/keyway/api/controller"
	"github.com/propsync/keyway/api/middleware"
)

func SetupRouter(
	controllers *controller.Controllers,
	rateLimitRequests int,
	rateLimitDuration time.Duration,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.RateLimiter(rateLimitRequests, rateLimitDuration))

	api := router.Group("/api/v1")

	controllers.Rule.RegisterRoutes(api)
	controllers.Lock.RegisterRoutes(api)
	controllers.Code.RegisterRoutes(api)
	controllers.Monitor.RegisterRoutes(api)
	controllers.Sweep.RegisterRoutes(api)

	return router
}
