// api/controller/code_controller.go
package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	keyway_errors "github.com/propsync/keyway/api/errors"
	"github.com/propsync/keyway/api/service"
	"github.com/propsync/keyway/api/util"
)

type CodeController struct {
	provisioningService service.IProvisioningService
}

func NewCodeController(provisioningService service.IProvisioningService) *CodeController {
	return &CodeController{
		provisioningService: provisioningService,
	}
}

// RegisterRoutes registers the API routes
func (cc *CodeController) RegisterRoutes(r *gin.RouterGroup) {
	codes := r.Group("/codes")
	{
		codes.POST("", cc.ProvisionCode)
		codes.GET("/:id", cc.GetCode)
		codes.DELETE("/:id", cc.RevokeCode)
	}
	r.GET("/rules/:id/codes", cc.ListCodesByRule)
}

type provisionRequest struct {
	RuleID string `json:"rule_id" binding:"required"`
	LockID string `json:"lock_id" binding:"required"`
}

// ProvisionCode endpoint. The response carries the plaintext passcode; it is
// the only place it ever appears.
func (cc *CodeController) ProvisionCode(c *gin.Context) {
	var req provisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid provisioning request", keyway_errors.ErrInvalidCodeSpec)
		return
	}

	issued, err := cc.provisioningService.ProvisionCode(c, req.RuleID, req.LockID)
	if err != nil {
		switch {
		case errors.Is(err, keyway_errors.ErrRuleNotFound):
			util.RespondWithError(c, http.StatusNotFound, "Access rule not found", err)
		case errors.Is(err, keyway_errors.ErrLockNotFound):
			util.RespondWithError(c, http.StatusNotFound, "Smart lock not found", err)
		case errors.Is(err, keyway_errors.ErrRuleSuspended):
			util.RespondWithError(c, http.StatusConflict, "Access rule is not active", err)
		case errors.Is(err, keyway_errors.ErrCodeAlreadyIssued):
			util.RespondWithError(c, http.StatusConflict, "Rule already holds a live access code", err)
		case errors.Is(err, keyway_errors.ErrInvalidCodeSpec):
			util.RespondWithError(c, http.StatusBadRequest, "Invalid provisioning request", err)
		case errors.Is(err, keyway_errors.ErrCodeCollision):
			util.RespondWithError(c, http.StatusConflict, "Could not generate a collision-free passcode", err)
		case errors.Is(err, keyway_errors.ErrPlatformNotRegistered):
			util.RespondWithError(c, http.StatusBadRequest, "Unknown platform", err)
		case errors.Is(err, keyway_errors.ErrVendorUnavailable):
			util.RespondWithError(c, http.StatusBadGateway, "Vendor API unavailable", err)
		case errors.Is(err, keyway_errors.ErrVendorRejected):
			util.RespondWithError(c, http.StatusUnprocessableEntity, "Vendor API rejected the request", err)
		case errors.Is(err, keyway_errors.ErrConsistency):
			util.RespondWithError(c, http.StatusInternalServerError, "Vendor and local state diverged", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to provision access code", keyway_errors.ErrInternalServer)
		}
		return
	}

	c.JSON(http.StatusCreated, issued)
}

// GetCode endpoint
func (cc *CodeController) GetCode(c *gin.Context) {
	codeID := c.Param("id")

	code, err := cc.provisioningService.GetCode(c, codeID)
	if err != nil {
		if errors.Is(err, keyway_errors.ErrCodeNotFound) {
			util.RespondWithError(c, http.StatusNotFound, "Access code not found", err)
		} else {
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve access code", err)
		}
		return
	}

	c.JSON(http.StatusOK, code)
}

// RevokeCode endpoint
func (cc *CodeController) RevokeCode(c *gin.Context) {
	codeID := c.Param("id")

	if err := cc.provisioningService.RevokeCode(c, codeID); err != nil {
		switch {
		case errors.Is(err, keyway_errors.ErrCodeNotFound):
			util.RespondWithError(c, http.StatusNotFound, "Access code not found", err)
		case errors.Is(err, keyway_errors.ErrVendorUnavailable):
			util.RespondWithError(c, http.StatusBadGateway, "Vendor API unavailable", err)
		case errors.Is(err, keyway_errors.ErrVendorRejected):
			util.RespondWithError(c, http.StatusUnprocessableEntity, "Vendor API rejected the request", err)
		case errors.Is(err, keyway_errors.ErrConsistency):
			util.RespondWithError(c, http.StatusInternalServerError, "Vendor and local state diverged", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to revoke access code", err)
		}
		return
	}

	c.Status(http.StatusNoContent)
}

// ListCodesByRule endpoint
func (cc *CodeController) ListCodesByRule(c *gin.Context) {
	ruleID := c.Param("id")

	codes, err := cc.provisioningService.ListCodesByRule(c, ruleID)
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to list access codes", err)
		return
	}

	c.JSON(http.StatusOK, codes)
}
