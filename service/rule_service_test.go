// api/service/rule_service_test.go
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
	"github.com/propsync/keyway/api/service"
	mock "github.com/propsync/keyway/api/test/mock"
	"github.com/propsync/keyway/api/util"
)

type ruleFixture struct {
	ruleStore *mock.MockRuleStore
	revoker   *mock.MockProvisioningService
	svc       *service.RuleService
}

func newRuleFixture() *ruleFixture {
	f := &ruleFixture{
		ruleStore: new(mock.MockRuleStore),
		revoker:   new(mock.MockProvisioningService),
	}
	f.svc = service.NewRuleService(
		f.ruleStore, f.revoker,
		util.NewValidationUtil(), util.NewCacheService(), util.NewNotificationService(), util.NewEventBus(),
	)
	return f
}

func TestCreateRule_TenantDefaults(t *testing.T) {
	logger.InitLogger("")
	f := newRuleFixture()
	before := time.Now()

	var stored model.AccessRule
	f.ruleStore.On("CreateRule", tmock.Anything, tmock.MatchedBy(func(r model.AccessRule) bool {
		stored = r
		return true
	})).Return("rule-1", nil)
	f.ruleStore.On("GetRule", tmock.Anything, "rule-1").Return(&model.AccessRule{ID: "rule-1"}, nil)

	_, err := f.svc.CreateRule(context.Background(), model.AccessRule{
		RuleType:    model.RuleTypeTenant,
		PropertyID:  "prop-1",
		GranteeID:   "user-1",
		GranteeType: model.GranteeTypeTenant,
	}, "admin")
	assert.NoError(t, err)

	assert.Equal(t, model.TermLongTerm, stored.Term)
	assert.Equal(t, model.RestrictionNone, stored.TimeRestriction)
	assert.Equal(t, 90, stored.RenewalPeriodDays)
	assert.Equal(t, model.RenewalActive, stored.RenewalStatus)
	assert.True(t, stored.IsActive)

	// NextRenewalDate lands one cadence out from creation.
	expected := before.AddDate(0, 0, 90)
	assert.WithinDuration(t, expected, stored.NextRenewalDate, time.Minute)
}

func TestCreateRule_ProviderDefaults(t *testing.T) {
	logger.InitLogger("")
	f := newRuleFixture()

	var stored model.AccessRule
	f.ruleStore.On("CreateRule", tmock.Anything, tmock.MatchedBy(func(r model.AccessRule) bool {
		stored = r
		return true
	})).Return("rule-2", nil)
	f.ruleStore.On("GetRule", tmock.Anything, "rule-2").Return(&model.AccessRule{ID: "rule-2"}, nil)

	_, err := f.svc.CreateRule(context.Background(), model.AccessRule{
		RuleType:    model.RuleTypeProvider,
		PropertyID:  "prop-1",
		GranteeID:   "cleaner-1",
		GranteeType: model.GranteeTypeProvider,
	}, "admin")
	assert.NoError(t, err)
	assert.Equal(t, model.TermRegular, stored.Term)
	assert.Equal(t, 180, stored.RenewalPeriodDays)
}

func TestCreateRule_ShortStayPinnedToLeaseEnd(t *testing.T) {
	logger.InitLogger("")
	f := newRuleFixture()
	leaseEnd := time.Now().AddDate(0, 0, 14)

	var stored model.AccessRule
	f.ruleStore.On("CreateRule", tmock.Anything, tmock.MatchedBy(func(r model.AccessRule) bool {
		stored = r
		return true
	})).Return("rule-3", nil)
	f.ruleStore.On("GetRule", tmock.Anything, "rule-3").Return(&model.AccessRule{ID: "rule-3"}, nil)

	_, err := f.svc.CreateRule(context.Background(), model.AccessRule{
		RuleType:    model.RuleTypeTenant,
		PropertyID:  "prop-1",
		GranteeID:   "guest-1",
		GranteeType: model.GranteeTypeGuest,
		Term:        model.TermShortTerm,
		LeaseEnd:    &leaseEnd,
	}, "admin")
	assert.NoError(t, err)
	assert.Equal(t, 0, stored.RenewalPeriodDays)
	assert.True(t, stored.NextRenewalDate.Equal(leaseEnd))
}

func TestCreateRule_InvalidDataRejected(t *testing.T) {
	logger.InitLogger("")
	f := newRuleFixture()

	_, err := f.svc.CreateRule(context.Background(), model.AccessRule{
		RuleType:    model.RuleTypeTenant,
		GranteeID:   "user-1",
		GranteeType: model.GranteeTypeTenant,
	}, "admin")
	assert.ErrorIs(t, err, keyway_errors.ErrInvalidRuleData)
	f.ruleStore.AssertNotCalled(t, "CreateRule", tmock.Anything, tmock.Anything)
}

func TestUpdateRule_AppliesPatch(t *testing.T) {
	logger.InitLogger("")
	f := newRuleFixture()

	current := &model.AccessRule{
		ID:              "rule-1",
		RuleType:        model.RuleTypeTenant,
		PropertyID:      "prop-1",
		GranteeID:       "user-1",
		GranteeType:     model.GranteeTypeTenant,
		Term:            model.TermLongTerm,
		TimeRestriction: model.RestrictionNone,
		RenewalStatus:   model.RenewalActive,
		IsActive:        true,
	}
	f.ruleStore.On("GetRule", tmock.Anything, "rule-1").Return(current, nil)

	restriction := model.RestrictionBusinessHours
	weekdays := []int{1, 2, 3, 4, 5}
	var stored model.AccessRule
	f.ruleStore.On("UpdateRule", tmock.Anything, tmock.MatchedBy(func(r model.AccessRule) bool {
		stored = r
		return true
	})).Return(nil)

	_, err := f.svc.UpdateRule(context.Background(), "rule-1", model.RulePatch{
		TimeRestriction: &restriction,
		AllowedWeekdays: &weekdays,
	}, "admin")
	assert.NoError(t, err)
	assert.Equal(t, model.RestrictionBusinessHours, stored.TimeRestriction)
	assert.Equal(t, weekdays, stored.AllowedWeekdays)
}

func TestDeactivateRule_RevokesLiveCodeFirst(t *testing.T) {
	logger.InitLogger("")
	f := newRuleFixture()

	f.ruleStore.On("GetRule", tmock.Anything, "rule-1").Return(&model.AccessRule{
		ID: "rule-1", RenewalStatus: model.RenewalActive, IsActive: true,
	}, nil)
	f.revoker.On("RevokeActiveCodeForRule", tmock.Anything, "rule-1").Return(nil)
	f.ruleStore.On("DeactivateRule", tmock.Anything, "rule-1").Return(nil)

	err := f.svc.DeactivateRule(context.Background(), "rule-1", "admin")
	assert.NoError(t, err)
	f.revoker.AssertCalled(t, "RevokeActiveCodeForRule", tmock.Anything, "rule-1")
	f.ruleStore.AssertCalled(t, "DeactivateRule", tmock.Anything, "rule-1")
}

func TestDeactivateRule_AbortsWhenRevocationFails(t *testing.T) {
	logger.InitLogger("")
	f := newRuleFixture()

	f.ruleStore.On("GetRule", tmock.Anything, "rule-1").Return(&model.AccessRule{
		ID: "rule-1", RenewalStatus: model.RenewalActive, IsActive: true,
	}, nil)
	f.revoker.On("RevokeActiveCodeForRule", tmock.Anything, "rule-1").
		Return(keyway_errors.ErrVendorUnavailable)

	err := f.svc.DeactivateRule(context.Background(), "rule-1", "admin")
	assert.ErrorIs(t, err, keyway_errors.ErrVendorUnavailable)
	f.ruleStore.AssertNotCalled(t, "DeactivateRule", tmock.Anything, tmock.Anything)
}

func TestDeactivateRule_AlreadySuspendedIsNoop(t *testing.T) {
	logger.InitLogger("")
	f := newRuleFixture()

	f.ruleStore.On("GetRule", tmock.Anything, "rule-1").Return(&model.AccessRule{
		ID: "rule-1", RenewalStatus: model.RenewalSuspended, IsActive: false,
	}, nil)

	err := f.svc.DeactivateRule(context.Background(), "rule-1", "admin")
	assert.NoError(t, err)
	f.revoker.AssertNotCalled(t, "RevokeActiveCodeForRule", tmock.Anything, tmock.Anything)
}
