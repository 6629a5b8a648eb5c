// api/scheduler/sweeper_test.go
package scheduler_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	tmock "github.com/stretchr/testify/mock"

	keyway_errors "github.com/propsync/keyway/api/errors"
	logger "github.com/propsync/keyway/api/logging"
	"github.com/propsync/keyway/api/model"
	"github.com/propsync/keyway/api/scheduler"
	mock "github.com/propsync/keyway/api/test/mock"
	"github.com/propsync/keyway/api/util"
)

var sweepNow = time.Date(2024, 6, 12, 3, 0, 0, 0, time.UTC)

func dueRule(id string, daysUntilRenewal int) *model.AccessRule {
	return &model.AccessRule{
		ID:                id,
		RuleType:          model.RuleTypeTenant,
		PropertyID:        "prop-1",
		GranteeID:         "user-1",
		Term:              model.TermLongTerm,
		RenewalPeriodDays: 90,
		NextRenewalDate:   sweepNow.AddDate(0, 0, daysUntilRenewal),
		RenewalStatus:     model.RenewalActive,
		IsActive:          true,
		Version:           3,
	}
}

func newSweeper(ruleStore *mock.MockRuleStore, provisioner *mock.MockProvisioningService) *scheduler.Sweeper {
	return scheduler.NewSweeper(ruleStore, provisioner, nil, util.NewEventBus(), scheduler.SweepConfig{
		Lookahead:           168 * time.Hour,
		CodeExpiryThreshold: 72 * time.Hour,
		LockTTL:             5 * time.Minute,
	})
}

func TestSweep_RenewsPendingRule(t *testing.T) {
	logger.InitLogger("")
	ruleStore := new(mock.MockRuleStore)
	provisioner := new(mock.MockProvisioningService)
	sweeper := newSweeper(ruleStore, provisioner)

	rule := dueRule("rule-1", 3)
	ruleStore.On("ListDueForRenewal", tmock.Anything, sweepNow.Add(168*time.Hour)).
		Return([]*model.AccessRule{rule}, nil)
	ruleStore.On("RenewCAS", tmock.Anything, "rule-1", 3, rule.NextRenewalDate.AddDate(0, 0, 90), model.RenewalActive).
		Return(true, nil)
	provisioner.On("EnsureValidCode", tmock.Anything, tmock.Anything, 72*time.Hour).Return(true, nil)

	result, err := sweeper.Sweep(context.Background(), sweepNow)
	assert.NoError(t, err)
	assert.Equal(t, 1, result.RenewedCount)
	assert.Empty(t, result.Failed)
}

func TestSweep_SecondPassRenewsNothing(t *testing.T) {
	logger.InitLogger("")
	ruleStore := new(mock.MockRuleStore)
	provisioner := new(mock.MockProvisioningService)
	sweeper := newSweeper(ruleStore, provisioner)

	rule := dueRule("rule-1", -1)
	next := sweepNow.AddDate(0, 0, 90)
	ruleStore.On("ListDueForRenewal", tmock.Anything, tmock.Anything).
		Return([]*model.AccessRule{rule}, nil)
	// First pass wins the CAS; a repeat with the stale version loses it.
	ruleStore.On("RenewCAS", tmock.Anything, "rule-1", 3, next, model.RenewalActive).
		Return(true, nil).Once()
	ruleStore.On("RenewCAS", tmock.Anything, "rule-1", 3, next, model.RenewalActive).
		Return(false, nil).Once()
	provisioner.On("EnsureValidCode", tmock.Anything, tmock.Anything, tmock.Anything).Return(true, nil).Once()

	first, err := sweeper.Sweep(context.Background(), sweepNow)
	assert.NoError(t, err)
	assert.Equal(t, 1, first.RenewedCount)

	rule.NextRenewalDate = dueRule("rule-1", -1).NextRenewalDate
	rule.Version = 3
	second, err := sweeper.Sweep(context.Background(), sweepNow)
	assert.NoError(t, err)
	assert.Equal(t, 0, second.RenewedCount)
	assert.Equal(t, 1, second.LostRaces)
	provisioner.AssertNumberOfCalls(t, "EnsureValidCode", 1)
}

func TestSweep_LateRuleStillRenews(t *testing.T) {
	logger.InitLogger("")
	ruleStore := new(mock.MockRuleStore)
	provisioner := new(mock.MockProvisioningService)
	sweeper := newSweeper(ruleStore, provisioner)

	// One day past due: the sweep ran late, the grant must survive. The new
	// date is anchored on now, not on the stale renewal date.
	rule := dueRule("rule-1", -1)
	ruleStore.On("ListDueForRenewal", tmock.Anything, tmock.Anything).
		Return([]*model.AccessRule{rule}, nil)
	ruleStore.On("RenewCAS", tmock.Anything, "rule-1", 3, sweepNow.AddDate(0, 0, 90), model.RenewalActive).
		Return(true, nil)
	provisioner.On("EnsureValidCode", tmock.Anything, tmock.Anything, tmock.Anything).Return(true, nil)

	result, err := sweeper.Sweep(context.Background(), sweepNow)
	assert.NoError(t, err)
	assert.Equal(t, 1, result.RenewedCount)
	assert.Equal(t, 0, result.ExpiredCount)
}

func TestSweep_ExpiresRuleAtLeaseEnd(t *testing.T) {
	logger.InitLogger("")
	ruleStore := new(mock.MockRuleStore)
	provisioner := new(mock.MockProvisioningService)
	sweeper := newSweeper(ruleStore, provisioner)

	rule := dueRule("rule-1", -2)
	rule.Term = model.TermShortTerm
	rule.RenewalPeriodDays = 0
	rule.RenewalStatus = model.RenewalPending
	leaseEnd := rule.NextRenewalDate
	rule.LeaseEnd = &leaseEnd
	ruleStore.On("ListDueForRenewal", tmock.Anything, tmock.Anything).
		Return([]*model.AccessRule{rule}, nil)
	provisioner.On("RevokeActiveCodeForRule", tmock.Anything, "rule-1").Return(nil)
	ruleStore.On("SetRenewalStatus", tmock.Anything, "rule-1", model.RenewalExpired).Return(nil)

	result, err := sweeper.Sweep(context.Background(), sweepNow)
	assert.NoError(t, err)
	assert.Equal(t, 1, result.ExpiredCount)
	assert.Equal(t, 0, result.RenewedCount)
}

func TestSweep_FailureIsolation(t *testing.T) {
	logger.InitLogger("")
	ruleStore := new(mock.MockRuleStore)
	provisioner := new(mock.MockProvisioningService)
	sweeper := newSweeper(ruleStore, provisioner)

	broken := dueRule("rule-broken", 2)
	healthy := dueRule("rule-healthy", 4)
	ruleStore.On("ListDueForRenewal", tmock.Anything, tmock.Anything).
		Return([]*model.AccessRule{broken, healthy}, nil)
	ruleStore.On("RenewCAS", tmock.Anything, "rule-broken", tmock.Anything, tmock.Anything, tmock.Anything).
		Return(false, keyway_errors.ErrDatabaseOperation)
	ruleStore.On("SetRenewalStatus", tmock.Anything, "rule-broken", model.RenewalPending).Return(nil)
	ruleStore.On("RenewCAS", tmock.Anything, "rule-healthy", tmock.Anything, tmock.Anything, tmock.Anything).
		Return(true, nil)
	provisioner.On("EnsureValidCode", tmock.Anything, tmock.Anything, tmock.Anything).Return(true, nil)

	result, err := sweeper.Sweep(context.Background(), sweepNow)
	assert.NoError(t, err)
	assert.Equal(t, 1, result.RenewedCount)
	assert.Len(t, result.Failed, 1)
	assert.Equal(t, "rule-broken", result.Failed[0].RuleID)
	ruleStore.AssertCalled(t, "SetRenewalStatus", tmock.Anything, "rule-broken", model.RenewalPending)
}

func TestSweep_SkipsWhenLockHeldElsewhere(t *testing.T) {
	logger.InitLogger("")
	ruleStore := new(mock.MockRuleStore)
	provisioner := new(mock.MockProvisioningService)
	locker := new(mock.MockResourceLocker)
	sweeper := scheduler.NewSweeper(ruleStore, provisioner, locker, util.NewEventBus(), scheduler.SweepConfig{})

	locker.On("Lock", tmock.Anything, tmock.Anything, tmock.Anything).Return(false, nil)

	result, err := sweeper.Sweep(context.Background(), sweepNow)
	assert.NoError(t, err)
	assert.True(t, result.Skipped)
	ruleStore.AssertNotCalled(t, "ListDueForRenewal", tmock.Anything, tmock.Anything)
}

func TestSweep_ShortStayRuleLeftAloneUntilLeaseEnd(t *testing.T) {
	logger.InitLogger("")
	ruleStore := new(mock.MockRuleStore)
	provisioner := new(mock.MockProvisioningService)
	sweeper := newSweeper(ruleStore, provisioner)

	// Lease ends in three days: inside the lookahead window, but a
	// lease-bounded rule neither renews nor expires before its lease end.
	rule := dueRule("rule-1", 3)
	rule.Term = model.TermShortTerm
	rule.RenewalPeriodDays = 0
	leaseEnd := rule.NextRenewalDate
	rule.LeaseEnd = &leaseEnd
	ruleStore.On("ListDueForRenewal", tmock.Anything, tmock.Anything).
		Return([]*model.AccessRule{rule}, nil)

	result, err := sweeper.Sweep(context.Background(), sweepNow)
	assert.NoError(t, err)
	assert.Equal(t, 0, result.RenewedCount)
	assert.Equal(t, 0, result.ExpiredCount)
	ruleStore.AssertNotCalled(t, "RenewCAS", tmock.Anything, tmock.Anything, tmock.Anything, tmock.Anything, tmock.Anything)
	ruleStore.AssertNotCalled(t, "SetRenewalStatus", tmock.Anything, tmock.Anything, tmock.Anything)
}
