// api/service/lock_service.go
package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/propsync/keyway/api/config"
	logger "github.com/propsync/keyway/api/logging"
	"github.com/propsync/keyway/api/model"
	"github.com/propsync/keyway/api/util"
)

type ILockService interface {
	RegisterLock(ctx context.Context, lock model.SmartLock) (*model.SmartLock, error)
	GetLock(ctx context.Context, lockID string) (*model.SmartLock, error)
	ListLocks(ctx context.Context, criteria model.LockSearchCriteria) ([]*model.SmartLock, error)
	RemoteLock(ctx context.Context, lockID, actorID string) error
	RemoteUnlock(ctx context.Context, lockID, actorID string) error
	SyncStatus(ctx context.Context, lockID string) (*model.SmartLock, error)
	SyncProperty(ctx context.Context, propertyID string) ([]*model.SmartLock, error)
	DeregisterLock(ctx context.Context, lockID string) error
}

type LockService struct {
	lockStore      LockStore
	registry       AdapterResolver
	auditService   AuditRecorder
	validationUtil *util.ValidationUtil
	cacheService   *util.CacheService
}

func NewLockService(lockStore LockStore, registry AdapterResolver, auditService AuditRecorder, validationUtil *util.ValidationUtil, cacheService *util.CacheService) *LockService {
	return &LockService{
		lockStore:      lockStore,
		registry:       registry,
		auditService:   auditService,
		validationUtil: validationUtil,
		cacheService:   cacheService,
	}
}

// RegisterLock verifies the device exists on the vendor side before storing
// it, and takes the vendor's name, model and state as the initial record.
func (s *LockService) RegisterLock(ctx context.Context, lock model.SmartLock) (*model.SmartLock, error) {
	if err := s.validationUtil.ValidateLock(lock); err != nil {
		return nil, err
	}

	adapter, err := s.registry.Resolve(lock.Platform)
	if err != nil {
		return nil, err
	}

	device, err := adapter.GetDevice(ctx, lock.ExternalID)
	if err != nil {
		logger.Error("Vendor lookup failed during lock registration",
			zap.Error(err), zap.String("platform", lock.Platform), zap.String("externalID", lock.ExternalID))
		return nil, err
	}

	if lock.Name == "" {
		lock.Name = device.Name
	}
	lock.Model = device.Model
	lock.Status = device.Status
	lock.BatteryLevel = device.BatteryLevel
	lock.Online = device.Online

	lockID, err := s.lockStore.CreateLock(ctx, lock)
	if err != nil {
		return nil, err
	}

	created, err := s.lockStore.GetLock(ctx, lockID)
	if err != nil {
		return nil, err
	}

	if err := s.cacheService.SetLock(ctx, *created); err != nil {
		logger.Warn("Failed to cache smart lock", zap.Error(err), zap.String("lockID", lockID))
	}

	logger.Info("Smart lock registered",
		zap.String("lockID", lockID),
		zap.String("propertyID", created.PropertyID),
		zap.String("platform", created.Platform))
	return created, nil
}

func (s *LockService) GetLock(ctx context.Context, lockID string) (*model.SmartLock, error) {
	if cached, err := s.cacheService.GetLock(ctx, lockID); err == nil && cached != nil {
		return cached, nil
	}

	lock, err := s.lockStore.GetLock(ctx, lockID)
	if err != nil {
		return nil, err
	}

	if err := s.cacheService.SetLock(ctx, *lock); err != nil {
		logger.Warn("Failed to cache smart lock", zap.Error(err), zap.String("lockID", lockID))
	}
	return lock, nil
}

func (s *LockService) ListLocks(ctx context.Context, criteria model.LockSearchCriteria) ([]*model.SmartLock, error) {
	return s.lockStore.ListLocks(ctx, criteria)
}

func (s *LockService) RemoteLock(ctx context.Context, lockID, actorID string) error {
	return s.remoteOperate(ctx, lockID, actorID, true)
}

func (s *LockService) RemoteUnlock(ctx context.Context, lockID, actorID string) error {
	return s.remoteOperate(ctx, lockID, actorID, false)
}

// remoteOperate drives the bolt through the vendor API and records the
// attempt in the audit trail either way. The stored state only moves on
// vendor success.
func (s *LockService) remoteOperate(ctx context.Context, lockID, actorID string, engage bool) error {
	lock, err := s.lockStore.GetLock(ctx, lockID)
	if err != nil {
		return err
	}

	adapter, err := s.registry.Resolve(lock.Platform)
	if err != nil {
		return err
	}

	var vendorErr error
	eventType := model.EventLock
	status := model.LockStatusLocked
	if engage {
		vendorErr = adapter.Lock(ctx, lock.ExternalID)
		if vendorErr != nil {
			eventType = model.EventLockFailed
		}
	} else {
		status = model.LockStatusUnlocked
		vendorErr = adapter.Unlock(ctx, lock.ExternalID)
		if vendorErr != nil {
			eventType = model.EventUnlockFailed
		} else {
			eventType = model.EventUnlock
		}
	}

	logEntry := model.AccessLog{
		PropertyID:   lock.PropertyID,
		LockID:       lockID,
		Timestamp:    time.Now(),
		EventType:    eventType,
		AccessMethod: model.MethodRemote,
		AccessorID:   actorID,
		Success:      vendorErr == nil,
	}
	if err := s.auditService.RecordAccess(ctx, logEntry); err != nil {
		logger.Warn("Failed to index remote operation", zap.Error(err), zap.String("lockID", lockID))
	}

	if vendorErr != nil {
		logger.Error("Remote lock operation failed",
			zap.Error(vendorErr), zap.String("lockID", lockID), zap.Bool("engage", engage))
		return vendorErr
	}

	if err := s.lockStore.UpdateState(ctx, lockID, status, lock.BatteryLevel, lock.Online, time.Now()); err != nil {
		logger.Warn("Failed to record lock state after remote operation", zap.Error(err), zap.String("lockID", lockID))
	}
	if err := s.cacheService.DeleteLock(ctx, lockID); err != nil {
		logger.Warn("Failed to evict cached lock", zap.Error(err), zap.String("lockID", lockID))
	}

	return nil
}

// SyncStatus pulls the vendor's view of the device and reconciles the
// stored record with it.
func (s *LockService) SyncStatus(ctx context.Context, lockID string) (*model.SmartLock, error) {
	lock, err := s.lockStore.GetLock(ctx, lockID)
	if err != nil {
		return nil, err
	}

	adapter, err := s.registry.Resolve(lock.Platform)
	if err != nil {
		return nil, err
	}

	device, err := adapter.SyncStatus(ctx, lock.ExternalID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.lockStore.UpdateState(ctx, lockID, device.Status, device.BatteryLevel, device.Online, now); err != nil {
		return nil, err
	}
	if err := s.cacheService.DeleteLock(ctx, lockID); err != nil {
		logger.Warn("Failed to evict cached lock", zap.Error(err), zap.String("lockID", lockID))
	}

	lock.Status = device.Status
	lock.BatteryLevel = device.BatteryLevel
	lock.Online = device.Online
	lock.LastHeartbeat = &now
	return lock, nil
}

// SyncProperty refreshes every lock at the property concurrently. A single
// unreachable device does not abort the pass; failures are logged and the
// successfully synced locks are returned.
func (s *LockService) SyncProperty(ctx context.Context, propertyID string) ([]*model.SmartLock, error) {
	locks, err := s.lockStore.ListLocks(ctx, model.LockSearchCriteria{PropertyID: propertyID})
	if err != nil {
		return nil, err
	}

	timeout := config.GetDuration("platforms.requestTimeout")
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	var mu sync.Mutex
	synced := make([]*model.SmartLock, 0, len(locks))

	g, gctx := errgroup.WithContext(ctx)
	for _, lock := range locks {
		lock := lock
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, timeout)
			defer cancel()

			updated, err := s.SyncStatus(callCtx, lock.ID)
			if err != nil {
				logger.Warn("Lock status sync failed",
					zap.Error(err), zap.String("lockID", lock.ID), zap.String("propertyID", propertyID))
				return nil
			}
			mu.Lock()
			synced = append(synced, updated)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Info("Property lock sync finished",
		zap.String("propertyID", propertyID),
		zap.Int("total", len(locks)),
		zap.Int("synced", len(synced)))
	return synced, nil
}

// DeregisterLock removes the lock record. The store refuses while active
// codes still reference the lock.
func (s *LockService) DeregisterLock(ctx context.Context, lockID string) error {
	if err := s.lockStore.DeleteLock(ctx, lockID); err != nil {
		return err
	}
	if err := s.cacheService.DeleteLock(ctx, lockID); err != nil {
		logger.Warn("Failed to evict cached lock", zap.Error(err), zap.String("lockID", lockID))
	}
	logger.Info("Smart lock deregistered", zap.String("lockID", lockID))
	return nil
}
