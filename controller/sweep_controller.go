// api/controller/sweep_controller.go
package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/propsync/keyway/api/scheduler"
	"github.com/propsync/keyway/api/util"
)

// SweepController exposes the renewal sweep for operators. The periodic job
// runs the same pass; the lock and the per-rule CAS keep overlaps harmless.
type SweepController struct {
	sweeper *scheduler.Sweeper
}

func NewSweepController(sweeper *scheduler.Sweeper) *SweepController {
	return &SweepController{
		sweeper: sweeper,
	}
}

// RegisterRoutes registers the API routes
func (sc *SweepController) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/renewals/sweep", sc.TriggerSweep)
}

// TriggerSweep endpoint
func (sc *SweepController) TriggerSweep(c *gin.Context) {
	result, err := sc.sweeper.Sweep(c, time.Now())
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Renewal sweep failed", err)
		return
	}

	c.JSON(http.StatusOK, result)
}
