// test/mock/services.go
package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/propsync/keyway/api/model"
)

// MockRuleService is a mock implementation of service.IRuleService
type MockRuleService struct {
	mock.Mock
}

func (m *MockRuleService) CreateRule(ctx context.Context, rule model.AccessRule, actorID string) (*model.AccessRule, error) {
	args := m.Called(ctx, rule, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccessRule), args.Error(1)
}

func (m *MockRuleService) UpdateRule(ctx context.Context, ruleID string, patch model.RulePatch, actorID string) (*model.AccessRule, error) {
	args := m.Called(ctx, ruleID, patch, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccessRule), args.Error(1)
}

func (m *MockRuleService) GetRule(ctx context.Context, ruleID string) (*model.AccessRule, error) {
	args := m.Called(ctx, ruleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccessRule), args.Error(1)
}

func (m *MockRuleService) ListRules(ctx context.Context, criteria model.RuleSearchCriteria) ([]*model.AccessRule, error) {
	args := m.Called(ctx, criteria)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.AccessRule), args.Error(1)
}

func (m *MockRuleService) ListExpiring(ctx context.Context, within time.Duration) ([]*model.AccessRule, error) {
	args := m.Called(ctx, within)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.AccessRule), args.Error(1)
}

func (m *MockRuleService) DeactivateRule(ctx context.Context, ruleID string, actorID string) error {
	args := m.Called(ctx, ruleID, actorID)
	return args.Error(0)
}

// MockLockService is a mock implementation of service.ILockService
type MockLockService struct {
	mock.Mock
}

func (m *MockLockService) RegisterLock(ctx context.Context, lock model.SmartLock) (*model.SmartLock, error) {
	args := m.Called(ctx, lock)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SmartLock), args.Error(1)
}

func (m *MockLockService) GetLock(ctx context.Context, lockID string) (*model.SmartLock, error) {
	args := m.Called(ctx, lockID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SmartLock), args.Error(1)
}

func (m *MockLockService) ListLocks(ctx context.Context, criteria model.LockSearchCriteria) ([]*model.SmartLock, error) {
	args := m.Called(ctx, criteria)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.SmartLock), args.Error(1)
}

func (m *MockLockService) RemoteLock(ctx context.Context, lockID, actorID string) error {
	args := m.Called(ctx, lockID, actorID)
	return args.Error(0)
}

func (m *MockLockService) RemoteUnlock(ctx context.Context, lockID, actorID string) error {
	args := m.Called(ctx, lockID, actorID)
	return args.Error(0)
}

func (m *MockLockService) SyncStatus(ctx context.Context, lockID string) (*model.SmartLock, error) {
	args := m.Called(ctx, lockID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SmartLock), args.Error(1)
}

func (m *MockLockService) SyncProperty(ctx context.Context, propertyID string) ([]*model.SmartLock, error) {
	args := m.Called(ctx, propertyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.SmartLock), args.Error(1)
}

func (m *MockLockService) DeregisterLock(ctx context.Context, lockID string) error {
	args := m.Called(ctx, lockID)
	return args.Error(0)
}

// MockProvisioningService is a mock implementation of
// service.IProvisioningService. It also satisfies scheduler.CodeProvisioner.
type MockProvisioningService struct {
	mock.Mock
}

func (m *MockProvisioningService) ProvisionCode(ctx context.Context, ruleID, lockID string) (*model.IssuedCode, error) {
	args := m.Called(ctx, ruleID, lockID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.IssuedCode), args.Error(1)
}

func (m *MockProvisioningService) RevokeCode(ctx context.Context, codeID string) error {
	args := m.Called(ctx, codeID)
	return args.Error(0)
}

func (m *MockProvisioningService) RevokeActiveCodeForRule(ctx context.Context, ruleID string) error {
	args := m.Called(ctx, ruleID)
	return args.Error(0)
}

func (m *MockProvisioningService) EnsureValidCode(ctx context.Context, rule *model.AccessRule, expiryThreshold time.Duration) (bool, error) {
	args := m.Called(ctx, rule, expiryThreshold)
	return args.Bool(0), args.Error(1)
}

func (m *MockProvisioningService) GetCode(ctx context.Context, codeID string) (*model.AccessCode, error) {
	args := m.Called(ctx, codeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccessCode), args.Error(1)
}

func (m *MockProvisioningService) ListCodesByRule(ctx context.Context, ruleID string) ([]*model.AccessCode, error) {
	args := m.Called(ctx, ruleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.AccessCode), args.Error(1)
}

// MockResourceLocker is a mock implementation of scheduler.ResourceLocker
type MockResourceLocker struct {
	mock.Mock
}

func (m *MockResourceLocker) Lock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, name, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockResourceLocker) Unlock(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}
