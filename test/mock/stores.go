// test/mock/stores.go
package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/propsync/keyway/api/model"
)

// MockRuleStore is a mock implementation of service.RuleStore
type MockRuleStore struct {
	mock.Mock
}

func (m *MockRuleStore) CreateRule(ctx context.Context, rule model.AccessRule) (string, error) {
	args := m.Called(ctx, rule)
	return args.String(0), args.Error(1)
}

func (m *MockRuleStore) UpdateRule(ctx context.Context, rule model.AccessRule) error {
	args := m.Called(ctx, rule)
	return args.Error(0)
}

func (m *MockRuleStore) GetRule(ctx context.Context, ruleID string) (*model.AccessRule, error) {
	args := m.Called(ctx, ruleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccessRule), args.Error(1)
}

func (m *MockRuleStore) ListRules(ctx context.Context, criteria model.RuleSearchCriteria) ([]*model.AccessRule, error) {
	args := m.Called(ctx, criteria)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.AccessRule), args.Error(1)
}

func (m *MockRuleStore) ListDueForRenewal(ctx context.Context, horizon time.Time) ([]*model.AccessRule, error) {
	args := m.Called(ctx, horizon)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.AccessRule), args.Error(1)
}

func (m *MockRuleStore) FindMatchingRules(ctx context.Context, propertyID, granteeID string) ([]*model.AccessRule, error) {
	args := m.Called(ctx, propertyID, granteeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.AccessRule), args.Error(1)
}

func (m *MockRuleStore) RenewCAS(ctx context.Context, ruleID string, expectedVersion int, nextRenewalDate time.Time, status model.RenewalStatus) (bool, error) {
	args := m.Called(ctx, ruleID, expectedVersion, nextRenewalDate, status)
	return args.Bool(0), args.Error(1)
}

func (m *MockRuleStore) SetRenewalStatus(ctx context.Context, ruleID string, status model.RenewalStatus) error {
	args := m.Called(ctx, ruleID, status)
	return args.Error(0)
}

func (m *MockRuleStore) DeactivateRule(ctx context.Context, ruleID string) error {
	args := m.Called(ctx, ruleID)
	return args.Error(0)
}

// MockCodeStore is a mock implementation of service.CodeStore
type MockCodeStore struct {
	mock.Mock
}

func (m *MockCodeStore) CreateCode(ctx context.Context, code model.AccessCode) (string, error) {
	args := m.Called(ctx, code)
	return args.String(0), args.Error(1)
}

func (m *MockCodeStore) GetCode(ctx context.Context, codeID string) (*model.AccessCode, error) {
	args := m.Called(ctx, codeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccessCode), args.Error(1)
}

func (m *MockCodeStore) ListCodesByRule(ctx context.Context, ruleID string) ([]*model.AccessCode, error) {
	args := m.Called(ctx, ruleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.AccessCode), args.Error(1)
}

func (m *MockCodeStore) ListActiveCodesByLock(ctx context.Context, lockID string) ([]*model.AccessCode, error) {
	args := m.Called(ctx, lockID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.AccessCode), args.Error(1)
}

func (m *MockCodeStore) GetActiveCodeForRule(ctx context.Context, ruleID string) (*model.AccessCode, error) {
	args := m.Called(ctx, ruleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccessCode), args.Error(1)
}

func (m *MockCodeStore) DeactivateCode(ctx context.Context, codeID string) error {
	args := m.Called(ctx, codeID)
	return args.Error(0)
}

func (m *MockCodeStore) IncrementUsage(ctx context.Context, codeID string) error {
	args := m.Called(ctx, codeID)
	return args.Error(0)
}

// MockLockStore is a mock implementation of service.LockStore
type MockLockStore struct {
	mock.Mock
}

func (m *MockLockStore) CreateLock(ctx context.Context, lock model.SmartLock) (string, error) {
	args := m.Called(ctx, lock)
	return args.String(0), args.Error(1)
}

func (m *MockLockStore) GetLock(ctx context.Context, lockID string) (*model.SmartLock, error) {
	args := m.Called(ctx, lockID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SmartLock), args.Error(1)
}

func (m *MockLockStore) ListLocks(ctx context.Context, criteria model.LockSearchCriteria) ([]*model.SmartLock, error) {
	args := m.Called(ctx, criteria)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.SmartLock), args.Error(1)
}

func (m *MockLockStore) UpdateState(ctx context.Context, lockID string, status model.LockStatus, batteryLevel int, online bool, heartbeat time.Time) error {
	args := m.Called(ctx, lockID, status, batteryLevel, online, heartbeat)
	return args.Error(0)
}

func (m *MockLockStore) DeleteLock(ctx context.Context, lockID string) error {
	args := m.Called(ctx, lockID)
	return args.Error(0)
}
