// api/controller/rule_controller.go
package controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	keyway_errors "github.com/propsync/keyway/api/errors"
	"github.com/propsync/keyway/api/model"
	"github.com/propsync/keyway/api/service"
	"github.com/propsync/keyway/api/util"
	helper_util "github.com/propsync/keyway/api/util/helper"
)

type RuleController struct {
	ruleService service.IRuleService
}

func NewRuleController(ruleService service.IRuleService) *RuleController {
	return &RuleController{
		ruleService: ruleService,
	}
}

// RegisterRoutes registers the API routes
func (rc *RuleController) RegisterRoutes(r *gin.RouterGroup) {
	rules := r.Group("/rules")
	{
		rules.POST("", rc.CreateRule)
		rules.PATCH("/:id", rc.UpdateRule)
		rules.DELETE("/:id", rc.DeactivateRule)
		rules.GET("/:id", rc.GetRule)
		rules.GET("", rc.ListRules)
	}
	r.GET("/reports/expiring-rules", rc.ListExpiringRules)
}

// CreateRule endpoint
func (rc *RuleController) CreateRule(c *gin.Context) {
	var rule model.AccessRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid access rule data", keyway_errors.ErrInvalidRuleData)
		return
	}
	actorID := util.GetActorFromContext(c)

	createdRule, err := rc.ruleService.CreateRule(c, rule, actorID)
	if err != nil {
		switch {
		case errors.Is(err, keyway_errors.ErrInvalidRuleData), errors.Is(err, keyway_errors.ErrInvalidTimeSpec):
			util.RespondWithError(c, http.StatusBadRequest, "Invalid access rule data", err)
		case errors.Is(err, keyway_errors.ErrRuleConflict):
			util.RespondWithError(c, http.StatusConflict, "Access rule already exists", err)
		case errors.Is(err, keyway_errors.ErrDatabaseOperation):
			util.RespondWithError(c, http.StatusInternalServerError, "Database operation failed", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to create access rule", keyway_errors.ErrInternalServer)
		}
		return
	}

	c.JSON(http.StatusCreated, createdRule)
}

// UpdateRule endpoint
func (rc *RuleController) UpdateRule(c *gin.Context) {
	ruleID := c.Param("id")
	var patch model.RulePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid access rule data", err)
		return
	}
	actorID := util.GetActorFromContext(c)

	updatedRule, err := rc.ruleService.UpdateRule(c, ruleID, patch, actorID)
	if err != nil {
		switch {
		case errors.Is(err, keyway_errors.ErrRuleNotFound):
			util.RespondWithError(c, http.StatusNotFound, "Access rule not found", err)
		case errors.Is(err, keyway_errors.ErrInvalidRuleData), errors.Is(err, keyway_errors.ErrInvalidTimeSpec):
			util.RespondWithError(c, http.StatusBadRequest, "Invalid access rule data", err)
		case errors.Is(err, keyway_errors.ErrRuleSuspended):
			util.RespondWithError(c, http.StatusConflict, "Access rule is suspended", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to update access rule", err)
		}
		return
	}

	c.JSON(http.StatusOK, updatedRule)
}

// DeactivateRule endpoint
func (rc *RuleController) DeactivateRule(c *gin.Context) {
	ruleID := c.Param("id")
	actorID := util.GetActorFromContext(c)

	if err := rc.ruleService.DeactivateRule(c, ruleID, actorID); err != nil {
		switch {
		case errors.Is(err, keyway_errors.ErrRuleNotFound):
			util.RespondWithError(c, http.StatusNotFound, "Access rule not found", err)
		case errors.Is(err, keyway_errors.ErrVendorUnavailable):
			util.RespondWithError(c, http.StatusBadGateway, "Vendor API unavailable", err)
		case errors.Is(err, keyway_errors.ErrVendorRejected):
			util.RespondWithError(c, http.StatusUnprocessableEntity, "Vendor API rejected the request", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to deactivate access rule", err)
		}
		return
	}

	c.Status(http.StatusNoContent)
}

// GetRule endpoint
func (rc *RuleController) GetRule(c *gin.Context) {
	ruleID := c.Param("id")

	rule, err := rc.ruleService.GetRule(c, ruleID)
	if err != nil {
		if errors.Is(err, keyway_errors.ErrRuleNotFound) {
			util.RespondWithError(c, http.StatusNotFound, "Access rule not found", err)
		} else {
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve access rule", err)
		}
		return
	}

	c.JSON(http.StatusOK, rule)
}

// ListRules endpoint
func (rc *RuleController) ListRules(c *gin.Context) {
	limit, offset, err := helper_util.GetPaginationParams(c)
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid pagination parameters", keyway_errors.ErrInvalidPagination)
		return
	}

	criteria := model.RuleSearchCriteria{
		PropertyID:  c.Query("propertyId"),
		GranteeID:   c.Query("granteeId"),
		GranteeType: model.GranteeType(c.Query("granteeType")),
		RuleType:    model.RuleType(c.Query("ruleType")),
		Status:      model.RenewalStatus(c.Query("status")),
		ActiveOnly:  c.Query("activeOnly") == "true",
		Limit:       limit,
		Offset:      offset,
	}

	rules, err := rc.ruleService.ListRules(c, criteria)
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to list access rules", err)
		return
	}

	c.JSON(http.StatusOK, rules)
}

// ListExpiringRules endpoint reports the rules whose renewal date falls
// inside the requested window (default: the configured lookahead).
func (rc *RuleController) ListExpiringRules(c *gin.Context) {
	within := 168 * time.Hour
	if v := c.Query("within"); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			util.RespondWithError(c, http.StatusBadRequest, "Invalid duration", err)
			return
		}
		within = parsed
	}

	rules, err := rc.ruleService.ListExpiring(c, within)
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to list expiring rules", err)
		return
	}

	c.JSON(http.StatusOK, rules)
}
