// api/service/stores.go
package service

import (
	"context"
	"time"

	"github.com/propsync/keyway/api/model"
	"github.com/propsync/keyway/api/platform"
)

// Store interfaces the services depend on. The dao package provides the
// Neo4j implementations; tests substitute testify mocks.

type RuleStore interface {
	CreateRule(ctx context.Context, rule model.AccessRule) (string, error)
	UpdateRule(ctx context.Context, rule model.AccessRule) error
	GetRule(ctx context.Context, ruleID string) (*model.AccessRule, error)
	ListRules(ctx context.Context, criteria model.RuleSearchCriteria) ([]*model.AccessRule, error)
	ListDueForRenewal(ctx context.Context, horizon time.Time) ([]*model.AccessRule, error)
	FindMatchingRules(ctx context.Context, propertyID, granteeID string) ([]*model.AccessRule, error)
	RenewCAS(ctx context.Context, ruleID string, expectedVersion int, nextRenewalDate time.Time, status model.RenewalStatus) (bool, error)
	SetRenewalStatus(ctx context.Context, ruleID string, status model.RenewalStatus) error
	DeactivateRule(ctx context.Context, ruleID string) error
}

type CodeStore interface {
	CreateCode(ctx context.Context, code model.AccessCode) (string, error)
	GetCode(ctx context.Context, codeID string) (*model.AccessCode, error)
	ListCodesByRule(ctx context.Context, ruleID string) ([]*model.AccessCode, error)
	ListActiveCodesByLock(ctx context.Context, lockID string) ([]*model.AccessCode, error)
	GetActiveCodeForRule(ctx context.Context, ruleID string) (*model.AccessCode, error)
	DeactivateCode(ctx context.Context, codeID string) error
	IncrementUsage(ctx context.Context, codeID string) error
}

type LockStore interface {
	CreateLock(ctx context.Context, lock model.SmartLock) (string, error)
	GetLock(ctx context.Context, lockID string) (*model.SmartLock, error)
	ListLocks(ctx context.Context, criteria model.LockSearchCriteria) ([]*model.SmartLock, error)
	UpdateState(ctx context.Context, lockID string, status model.LockStatus, batteryLevel int, online bool, heartbeat time.Time) error
	DeleteLock(ctx context.Context, lockID string) error
}

// AdapterResolver is the slice of the platform registry the services need.
type AdapterResolver interface {
	Resolve(name string) (platform.Adapter, error)
}
