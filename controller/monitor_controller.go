// api/controller/monitor_controller.go
package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	keyway_errors "github.com/propsync/keyway/api/errors"
	"github.com/propsync/keyway/api/model"
	"github.com/propsync/keyway/api/service"
	"github.com/propsync/keyway/api/util"
	helper_util "github.com/propsync/keyway/api/util/helper"
)

type MonitorController struct {
	monitorService service.IMonitorService
}

func NewMonitorController(monitorService service.IMonitorService) *MonitorController {
	return &MonitorController{
		monitorService: monitorService,
	}
}

// RegisterRoutes registers the API routes
func (mc *MonitorController) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/events", mc.IngestAccessEvent)
	r.GET("/reports/access-logs", mc.QueryAccessLogs)
	r.GET("/reports/violations", mc.QueryViolations)
}

// IngestAccessEvent endpoint accepts one normalized vendor event. The
// response carries the detected violation, if any.
func (mc *MonitorController) IngestAccessEvent(c *gin.Context) {
	var entry model.AccessLog
	if err := c.ShouldBindJSON(&entry); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid access event", keyway_errors.ErrInvalidRuleData)
		return
	}

	violation, err := mc.monitorService.OnAccessEvent(c, entry)
	if err != nil {
		if errors.Is(err, keyway_errors.ErrInvalidRuleData) {
			util.RespondWithError(c, http.StatusBadRequest, "Invalid access event", err)
		} else {
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to ingest access event", err)
		}
		return
	}

	if violation == nil {
		c.Status(http.StatusAccepted)
		return
	}
	c.JSON(http.StatusAccepted, violation)
}

// QueryAccessLogs endpoint
func (mc *MonitorController) QueryAccessLogs(c *gin.Context) {
	from, to, err := helper_util.GetTimeRangeParams(c)
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid time range", err)
		return
	}

	logs, err := mc.monitorService.QueryAccessLogs(c, from, to, c.Query("propertyId"), c.Query("lockId"))
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to query access logs", err)
		return
	}

	c.JSON(http.StatusOK, logs)
}

// QueryViolations endpoint
func (mc *MonitorController) QueryViolations(c *gin.Context) {
	from, to, err := helper_util.GetTimeRangeParams(c)
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid time range", err)
		return
	}

	violations, err := mc.monitorService.QueryViolations(c, from, to, c.Query("propertyId"), model.Severity(c.Query("severity")))
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to query violations", err)
		return
	}

	c.JSON(http.StatusOK, violations)
}
