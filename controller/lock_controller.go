// api/controller/lock_controller.go
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

type LockController struct {
	lockService service.ILockService
}

func NewLockController(lockService service.ILockService) *LockController {
	return &LockController{
		lockService: lockService,
	}
}

// RegisterRoutes registers the API routes
func (lc *LockController) RegisterRoutes(r *gin.RouterGroup) {
	locks := r.Group("/locks")
	{
		locks.POST("", lc.RegisterLock)
		locks.GET("/:id", lc.GetLock)
		locks.GET("", lc.ListLocks)
		locks.DELETE("/:id", lc.DeregisterLock)
		locks.POST("/:id/lock", lc.RemoteLock)
		locks.POST("/:id/unlock", lc.RemoteUnlock)
		locks.POST("/:id/sync", lc.SyncStatus)
	}
	r.POST("/properties/:propertyId/sync-locks", lc.SyncProperty)
}

// RegisterLock endpoint
func (lc *LockController) RegisterLock(c *gin.Context) {
	var lock model.SmartLock
	if err := c.ShouldBindJSON(&lock); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid smart lock data", keyway_errors.ErrInvalidRuleData)
		return
	}

	createdLock, err := lc.lockService.RegisterLock(c, lock)
	if err != nil {
		switch {
		case errors.Is(err, keyway_errors.ErrInvalidRuleData):
			util.RespondWithError(c, http.StatusBadRequest, "Invalid smart lock data", err)
		case errors.Is(err, keyway_errors.ErrLockConflict):
			util.RespondWithError(c, http.StatusConflict, "Smart lock already registered", err)
		case errors.Is(err, keyway_errors.ErrPlatformNotRegistered):
			util.RespondWithError(c, http.StatusBadRequest, "Unknown platform", err)
		case errors.Is(err, keyway_errors.ErrVendorUnavailable):
			util.RespondWithError(c, http.StatusBadGateway, "Vendor API unavailable", err)
		case errors.Is(err, keyway_errors.ErrVendorRejected):
			util.RespondWithError(c, http.StatusUnprocessableEntity, "Vendor API rejected the request", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to register smart lock", keyway_errors.ErrInternalServer)
		}
		return
	}

	c.JSON(http.StatusCreated, createdLock)
}

// GetLock endpoint
func (lc *LockController) GetLock(c *gin.Context) {
	lockID := c.Param("id")

	lock, err := lc.lockService.GetLock(c, lockID)
	if err != nil {
		if errors.Is(err, keyway_errors.ErrLockNotFound) {
			util.RespondWithError(c, http.StatusNotFound, "Smart lock not found", err)
		} else {
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve smart lock", err)
		}
		return
	}

	c.JSON(http.StatusOK, lock)
}

// ListLocks endpoint
func (lc *LockController) ListLocks(c *gin.Context) {
	limit, offset, err := helper_util.GetPaginationParams(c)
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid pagination parameters", keyway_errors.ErrInvalidPagination)
		return
	}

	criteria := model.LockSearchCriteria{
		PropertyID: c.Query("propertyId"),
		Platform:   c.Query("platform"),
		Status:     model.LockStatus(c.Query("status")),
		Limit:      limit,
		Offset:     offset,
	}

	locks, err := lc.lockService.ListLocks(c, criteria)
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to list smart locks", err)
		return
	}

	c.JSON(http.StatusOK, locks)
}

// DeregisterLock endpoint
func (lc *LockController) DeregisterLock(c *gin.Context) {
	lockID := c.Param("id")

	if err := lc.lockService.DeregisterLock(c, lockID); err != nil {
		switch {
		case errors.Is(err, keyway_errors.ErrLockNotFound):
			util.RespondWithError(c, http.StatusNotFound, "Smart lock not found", err)
		case errors.Is(err, keyway_errors.ErrLockInUse):
			util.RespondWithError(c, http.StatusConflict, "Smart lock still referenced by active codes", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to deregister smart lock", err)
		}
		return
	}

	c.Status(http.StatusNoContent)
}

// RemoteLock endpoint
func (lc *LockController) RemoteLock(c *gin.Context) {
	lc.remoteOperate(c, true)
}

// RemoteUnlock endpoint
func (lc *LockController) RemoteUnlock(c *gin.Context) {
	lc.remoteOperate(c, false)
}

func (lc *LockController) remoteOperate(c *gin.Context, engage bool) {
	lockID := c.Param("id")
	actorID := util.GetActorFromContext(c)

	var err error
	if engage {
		err = lc.lockService.RemoteLock(c, lockID, actorID)
	} else {
		err = lc.lockService.RemoteUnlock(c, lockID, actorID)
	}
	if err != nil {
		switch {
		case errors.Is(err, keyway_errors.ErrLockNotFound):
			util.RespondWithError(c, http.StatusNotFound, "Smart lock not found", err)
		case errors.Is(err, keyway_errors.ErrPlatformNotRegistered):
			util.RespondWithError(c, http.StatusBadRequest, "Unknown platform", err)
		case errors.Is(err, keyway_errors.ErrVendorUnavailable):
			util.RespondWithError(c, http.StatusBadGateway, "Vendor API unavailable", err)
		case errors.Is(err, keyway_errors.ErrVendorRejected):
			util.RespondWithError(c, http.StatusUnprocessableEntity, "Vendor API rejected the request", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Remote operation failed", err)
		}
		return
	}

	c.Status(http.StatusNoContent)
}

// SyncStatus endpoint
func (lc *LockController) SyncStatus(c *gin.Context) {
	lockID := c.Param("id")

	lock, err := lc.lockService.SyncStatus(c, lockID)
	if err != nil {
		switch {
		case errors.Is(err, keyway_errors.ErrLockNotFound):
			util.RespondWithError(c, http.StatusNotFound, "Smart lock not found", err)
		case errors.Is(err, keyway_errors.ErrVendorUnavailable):
			util.RespondWithError(c, http.StatusBadGateway, "Vendor API unavailable", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to sync lock status", err)
		}
		return
	}

	c.JSON(http.StatusOK, lock)
}

// SyncProperty endpoint
func (lc *LockController) SyncProperty(c *gin.Context) {
	propertyID := c.Param("propertyId")

	locks, err := lc.lockService.SyncProperty(c, propertyID)
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to sync property locks", err)
		return
	}

	c.JSON(http.StatusOK, locks)
}
