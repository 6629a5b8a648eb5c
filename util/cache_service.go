// api/util/cache_service.go

package util

import (
	"context"

	"github.com/propsync/keyway/api/db"
	"github.com/propsync/keyway/api/model"
)

type CacheService struct{}

func NewCacheService() *CacheService {
	return &CacheService{}
}

func (c *CacheService) GetRule(ctx context.Context, ruleID string) (*model.AccessRule, error) {
	return db.GetCachedRule(ctx, ruleID)
}

func (c *CacheService) SetRule(ctx context.Context, rule model.AccessRule) error {
	return db.CacheRule(ctx, &rule)
}

func (c *CacheService) DeleteRule(ctx context.Context, ruleID string) error {
	return db.DeleteCachedRule(ctx, ruleID)
}

func (c *CacheService) GetLock(ctx context.Context, lockID string) (*model.SmartLock, error) {
	return db.GetCachedLock(ctx, lockID)
}

func (c *CacheService) SetLock(ctx context.Context, lock model.SmartLock) error {
	return db.CacheLock(ctx, &lock)
}

func (c *CacheService) DeleteLock(ctx context.Context, lockID string) error {
	return db.DeleteCachedLock(ctx, lockID)
}
