// api/service/provisioning_service_test.go
package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	tmock "github.com/stretchr/testify/mock"

	keyway_errors "github.com/propsync/keyway/api/errors"
	logger "github.com/propsync/keyway/api/logging"
	"github.com/propsync/keyway/api/model"
	"github.com/propsync/keyway/api/platform"
	"github.com/propsync/keyway/api/service"
	mock "github.com/propsync/keyway/api/test/mock"
	"github.com/propsync/keyway/api/util"
)

func activeRule() *model.AccessRule {
	return &model.AccessRule{
		ID:                "rule-1",
		RuleType:          model.RuleTypeTenant,
		PropertyID:        "prop-1",
		GranteeID:         "user-1",
		GranteeType:       model.GranteeTypeTenant,
		Term:              model.TermLongTerm,
		TimeRestriction:   model.RestrictionNone,
		RenewalPeriodDays: 90,
		NextRenewalDate:   time.Now().AddDate(0, 0, 60),
		RenewalStatus:     model.RenewalActive,
		IsActive:          true,
		Version:           1,
	}
}

func registeredLock() *model.SmartLock {
	return &model.SmartLock{
		ID:         "lock-1",
		PropertyID: "prop-1",
		Platform:   "ttlock",
		ExternalID: "ext-1",
		Status:     model.LockStatusLocked,
		Online:     true,
	}
}

type provisioningFixture struct {
	ruleStore *mock.MockRuleStore
	codeStore *mock.MockCodeStore
	lockStore *mock.MockLockStore
	adapter   *mock.MockAdapter
	resolver  *mock.MockResolver
	audit     *mock.MockAuditService
	svc       *service.ProvisioningService
}

func newProvisioningFixture() *provisioningFixture {
	f := &provisioningFixture{
		ruleStore: new(mock.MockRuleStore),
		codeStore: new(mock.MockCodeStore),
		lockStore: new(mock.MockLockStore),
		adapter:   new(mock.MockAdapter),
		resolver:  new(mock.MockResolver),
		audit:     new(mock.MockAuditService),
	}
	f.svc = service.NewProvisioningService(
		f.ruleStore, f.codeStore, f.lockStore, f.resolver, f.audit,
		util.NewNotificationService(), util.NewEventBus(),
		service.ProvisioningPolicy{CodeLength: 6, MaxAttempts: 5, ShortStayDigits: 4},
	)
	return f
}

func TestProvisionCode_Success(t *testing.T) {
	logger.InitLogger("")
	f := newProvisioningFixture()
	ctx := context.Background()

	f.ruleStore.On("GetRule", tmock.Anything, "rule-1").Return(activeRule(), nil)
	f.lockStore.On("GetLock", tmock.Anything, "lock-1").Return(registeredLock(), nil)
	f.codeStore.On("GetActiveCodeForRule", tmock.Anything, "rule-1").Return(nil, keyway_errors.ErrCodeNotFound)
	f.codeStore.On("ListActiveCodesByLock", tmock.Anything, "lock-1").Return([]*model.AccessCode{}, nil)
	f.resolver.On("Resolve", "ttlock").Return(f.adapter, nil)
	f.adapter.On("CreateAccessCode", tmock.Anything, "ext-1", tmock.Anything).Return("vendor-77", nil)
	f.codeStore.On("CreateCode", tmock.Anything, tmock.Anything).Return("code-1", nil)
	f.codeStore.On("GetCode", tmock.Anything, "code-1").Return(&model.AccessCode{
		ID: "code-1", RuleID: "rule-1", LockID: "lock-1", VendorCodeID: "vendor-77", IsActive: true,
	}, nil)
	f.audit.On("RecordAccess", tmock.Anything, tmock.Anything).Return(nil)

	issued, err := f.svc.ProvisionCode(ctx, "rule-1", "lock-1")
	assert.NoError(t, err)
	assert.NotNil(t, issued)
	assert.Equal(t, "vendor-77", issued.Code.VendorCodeID)
	assert.Len(t, issued.Plaintext, 6)
	for _, r := range issued.Plaintext {
		assert.True(t, r >= '0' && r <= '9')
	}
}

func TestProvisionCode_VendorFailureDoesNotPersist(t *testing.T) {
	logger.InitLogger("")
	f := newProvisioningFixture()
	ctx := context.Background()

	f.ruleStore.On("GetRule", tmock.Anything, "rule-1").Return(activeRule(), nil)
	f.lockStore.On("GetLock", tmock.Anything, "lock-1").Return(registeredLock(), nil)
	f.codeStore.On("GetActiveCodeForRule", tmock.Anything, "rule-1").Return(nil, keyway_errors.ErrCodeNotFound)
	f.codeStore.On("ListActiveCodesByLock", tmock.Anything, "lock-1").Return([]*model.AccessCode{}, nil)
	f.resolver.On("Resolve", "ttlock").Return(f.adapter, nil)
	f.adapter.On("CreateAccessCode", tmock.Anything, "ext-1", tmock.Anything).
		Return("", keyway_errors.ErrVendorUnavailable)

	_, err := f.svc.ProvisionCode(ctx, "rule-1", "lock-1")
	assert.ErrorIs(t, err, keyway_errors.ErrVendorUnavailable)
	f.codeStore.AssertNotCalled(t, "CreateCode", tmock.Anything, tmock.Anything)
}

func TestProvisionCode_PersistFailureCompensates(t *testing.T) {
	logger.InitLogger("")
	f := newProvisioningFixture()
	ctx := context.Background()

	f.ruleStore.On("GetRule", tmock.Anything, "rule-1").Return(activeRule(), nil)
	f.lockStore.On("GetLock", tmock.Anything, "lock-1").Return(registeredLock(), nil)
	f.codeStore.On("GetActiveCodeForRule", tmock.Anything, "rule-1").Return(nil, keyway_errors.ErrCodeNotFound)
	f.codeStore.On("ListActiveCodesByLock", tmock.Anything, "lock-1").Return([]*model.AccessCode{}, nil)
	f.resolver.On("Resolve", "ttlock").Return(f.adapter, nil)
	f.adapter.On("CreateAccessCode", tmock.Anything, "ext-1", tmock.Anything).Return("vendor-77", nil)
	f.codeStore.On("CreateCode", tmock.Anything, tmock.Anything).Return("", keyway_errors.ErrDatabaseOperation)

	t.Run("compensating delete succeeds", func(t *testing.T) {
		f.adapter.On("DeleteAccessCode", tmock.Anything, "ext-1", "vendor-77").Return(nil).Once()

		_, err := f.svc.ProvisionCode(ctx, "rule-1", "lock-1")
		assert.ErrorIs(t, err, keyway_errors.ErrDatabaseOperation)
	})

	t.Run("compensating delete fails", func(t *testing.T) {
		f.adapter.On("DeleteAccessCode", tmock.Anything, "ext-1", "vendor-77").
			Return(keyway_errors.ErrVendorUnavailable).Once()

		_, err := f.svc.ProvisionCode(ctx, "rule-1", "lock-1")
		assert.ErrorIs(t, err, keyway_errors.ErrConsistency)
	})
}

func TestProvisionCode_SuspendedRuleRejected(t *testing.T) {
	logger.InitLogger("")
	f := newProvisioningFixture()

	rule := activeRule()
	rule.IsActive = false
	rule.RenewalStatus = model.RenewalSuspended
	f.ruleStore.On("GetRule", tmock.Anything, "rule-1").Return(rule, nil)

	_, err := f.svc.ProvisionCode(context.Background(), "rule-1", "lock-1")
	assert.ErrorIs(t, err, keyway_errors.ErrRuleSuspended)
}

func TestProvisionCode_LiveCodeRejected(t *testing.T) {
	logger.InitLogger("")
	f := newProvisioningFixture()

	f.ruleStore.On("GetRule", tmock.Anything, "rule-1").Return(activeRule(), nil)
	f.lockStore.On("GetLock", tmock.Anything, "lock-1").Return(registeredLock(), nil)
	f.codeStore.On("GetActiveCodeForRule", tmock.Anything, "rule-1").Return(&model.AccessCode{
		ID: "code-1", RuleID: "rule-1", LockID: "lock-1", IsActive: true,
		ValidUntil: time.Now().AddDate(0, 0, 30),
	}, nil)

	_, err := f.svc.ProvisionCode(context.Background(), "rule-1", "lock-1")
	assert.ErrorIs(t, err, keyway_errors.ErrCodeAlreadyIssued)
}

func TestProvisionCode_ShortStayDerivesFromContact(t *testing.T) {
	logger.InitLogger("")
	f := newProvisioningFixture()

	rule := activeRule()
	rule.Term = model.TermShortTerm
	rule.GranteeContact = "+1 (555) 123-4567"
	leaseEnd := time.Now().AddDate(0, 0, 7)
	rule.LeaseEnd = &leaseEnd
	rule.RenewalPeriodDays = 0

	f.ruleStore.On("GetRule", tmock.Anything, "rule-1").Return(rule, nil)
	f.lockStore.On("GetLock", tmock.Anything, "lock-1").Return(registeredLock(), nil)
	f.codeStore.On("GetActiveCodeForRule", tmock.Anything, "rule-1").Return(nil, keyway_errors.ErrCodeNotFound)
	f.codeStore.On("ListActiveCodesByLock", tmock.Anything, "lock-1").Return([]*model.AccessCode{}, nil)
	f.resolver.On("Resolve", "ttlock").Return(f.adapter, nil)
	f.adapter.On("CreateAccessCode", tmock.Anything, "ext-1", tmock.Anything).Return("vendor-9", nil)
	f.codeStore.On("CreateCode", tmock.Anything, tmock.Anything).Return("code-2", nil)
	f.codeStore.On("GetCode", tmock.Anything, "code-2").Return(&model.AccessCode{
		ID: "code-2", RuleID: "rule-1", LockID: "lock-1", VendorCodeID: "vendor-9", IsActive: true,
	}, nil)
	f.audit.On("RecordAccess", tmock.Anything, tmock.Anything).Return(nil)

	issued, err := f.svc.ProvisionCode(context.Background(), "rule-1", "lock-1")
	assert.NoError(t, err)
	assert.Equal(t, "4567", issued.Plaintext)
}

func TestProvisionCode_ShortStayOpensAtDeliveryLead(t *testing.T) {
	logger.InitLogger("")
	f := newProvisioningFixture()

	rule := activeRule()
	rule.Term = model.TermShortTerm
	rule.GranteeContact = "+1 (555) 123-4567"
	leaseStart := time.Now().AddDate(0, 0, 5)
	leaseEnd := time.Now().AddDate(0, 0, 12)
	rule.LeaseStart = &leaseStart
	rule.LeaseEnd = &leaseEnd
	rule.NextRenewalDate = leaseEnd
	rule.RenewalPeriodDays = 0

	f.ruleStore.On("GetRule", tmock.Anything, "rule-1").Return(rule, nil)
	f.lockStore.On("GetLock", tmock.Anything, "lock-1").Return(registeredLock(), nil)
	f.codeStore.On("GetActiveCodeForRule", tmock.Anything, "rule-1").Return(nil, keyway_errors.ErrCodeNotFound)
	f.codeStore.On("ListActiveCodesByLock", tmock.Anything, "lock-1").Return([]*model.AccessCode{}, nil)
	f.resolver.On("Resolve", "ttlock").Return(f.adapter, nil)

	// Default delivery lead is 24h, so the guest code only goes live a day
	// before check-in and dies with the lease.
	opens := leaseStart.Add(-24 * time.Hour)
	f.adapter.On("CreateAccessCode", tmock.Anything, "ext-1", tmock.MatchedBy(func(spec platform.CodeSpec) bool {
		return spec.ValidFrom.Equal(opens) && spec.ValidUntil.Equal(leaseEnd)
	})).Return("vendor-12", nil)
	f.codeStore.On("CreateCode", tmock.Anything, tmock.MatchedBy(func(code model.AccessCode) bool {
		return code.ValidFrom.Equal(opens)
	})).Return("code-3", nil)
	f.codeStore.On("GetCode", tmock.Anything, "code-3").Return(&model.AccessCode{
		ID: "code-3", RuleID: "rule-1", LockID: "lock-1", VendorCodeID: "vendor-12", IsActive: true,
	}, nil)
	f.audit.On("RecordAccess", tmock.Anything, tmock.Anything).Return(nil)

	_, err := f.svc.ProvisionCode(context.Background(), "rule-1", "lock-1")
	assert.NoError(t, err)
	f.adapter.AssertExpectations(t)
}

func TestProvisionCode_StayInProgressOpensImmediately(t *testing.T) {
	logger.InitLogger("")
	f := newProvisioningFixture()

	rule := activeRule()
	rule.Term = model.TermShortTerm
	rule.GranteeContact = "555-0042"
	leaseStart := time.Now().AddDate(0, 0, -1)
	leaseEnd := time.Now().AddDate(0, 0, 6)
	rule.LeaseStart = &leaseStart
	rule.LeaseEnd = &leaseEnd
	rule.NextRenewalDate = leaseEnd
	rule.RenewalPeriodDays = 0

	f.ruleStore.On("GetRule", tmock.Anything, "rule-1").Return(rule, nil)
	f.lockStore.On("GetLock", tmock.Anything, "lock-1").Return(registeredLock(), nil)
	f.codeStore.On("GetActiveCodeForRule", tmock.Anything, "rule-1").Return(nil, keyway_errors.ErrCodeNotFound)
	f.codeStore.On("ListActiveCodesByLock", tmock.Anything, "lock-1").Return([]*model.AccessCode{}, nil)
	f.resolver.On("Resolve", "ttlock").Return(f.adapter, nil)
	f.adapter.On("CreateAccessCode", tmock.Anything, "ext-1", tmock.MatchedBy(func(spec platform.CodeSpec) bool {
		return !spec.ValidFrom.After(time.Now()) && spec.ValidUntil.Equal(leaseEnd)
	})).Return("vendor-13", nil)
	f.codeStore.On("CreateCode", tmock.Anything, tmock.Anything).Return("code-4", nil)
	f.codeStore.On("GetCode", tmock.Anything, "code-4").Return(&model.AccessCode{
		ID: "code-4", RuleID: "rule-1", LockID: "lock-1", VendorCodeID: "vendor-13", IsActive: true,
	}, nil)
	f.audit.On("RecordAccess", tmock.Anything, tmock.Anything).Return(nil)

	_, err := f.svc.ProvisionCode(context.Background(), "rule-1", "lock-1")
	assert.NoError(t, err)
	f.adapter.AssertExpectations(t)
}

func TestRevokeCode_VendorFailureKeepsLocalActive(t *testing.T) {
	logger.InitLogger("")
	f := newProvisioningFixture()

	f.codeStore.On("GetCode", tmock.Anything, "code-1").Return(&model.AccessCode{
		ID: "code-1", RuleID: "rule-1", LockID: "lock-1", VendorCodeID: "vendor-77", IsActive: true,
	}, nil)
	f.lockStore.On("GetLock", tmock.Anything, "lock-1").Return(registeredLock(), nil)
	f.resolver.On("Resolve", "ttlock").Return(f.adapter, nil)
	f.adapter.On("DeleteAccessCode", tmock.Anything, "ext-1", "vendor-77").
		Return(keyway_errors.ErrVendorUnavailable)

	err := f.svc.RevokeCode(context.Background(), "code-1")
	assert.ErrorIs(t, err, keyway_errors.ErrVendorUnavailable)
	f.codeStore.AssertNotCalled(t, "DeactivateCode", tmock.Anything, tmock.Anything)
}

func TestRevokeCode_Success(t *testing.T) {
	logger.InitLogger("")
	f := newProvisioningFixture()

	f.codeStore.On("GetCode", tmock.Anything, "code-1").Return(&model.AccessCode{
		ID: "code-1", RuleID: "rule-1", LockID: "lock-1", VendorCodeID: "vendor-77", IsActive: true,
	}, nil)
	f.lockStore.On("GetLock", tmock.Anything, "lock-1").Return(registeredLock(), nil)
	f.resolver.On("Resolve", "ttlock").Return(f.adapter, nil)
	f.adapter.On("DeleteAccessCode", tmock.Anything, "ext-1", "vendor-77").Return(nil)
	f.codeStore.On("DeactivateCode", tmock.Anything, "code-1").Return(nil)
	f.ruleStore.On("GetRule", tmock.Anything, "rule-1").Return(activeRule(), nil)
	f.audit.On("RecordAccess", tmock.Anything, tmock.Anything).Return(nil)

	err := f.svc.RevokeCode(context.Background(), "code-1")
	assert.NoError(t, err)
	f.codeStore.AssertCalled(t, "DeactivateCode", tmock.Anything, "code-1")
}

func TestRevokeActiveCodeForRule_NoCodeIsNoop(t *testing.T) {
	logger.InitLogger("")
	f := newProvisioningFixture()

	f.codeStore.On("GetActiveCodeForRule", tmock.Anything, "rule-1").
		Return(nil, keyway_errors.ErrCodeNotFound)

	err := f.svc.RevokeActiveCodeForRule(context.Background(), "rule-1")
	assert.NoError(t, err)
}
