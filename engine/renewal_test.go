// api/engine/renewal_test.go
package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/propsync/keyway/api/engine"
	"github.com/propsync/keyway/api/model"
)

func TestDefaultRenewalPeriodDays(t *testing.T) {
	assert.Equal(t, 180, engine.DefaultRenewalPeriodDays(model.RuleTypeProvider, model.TermRegular))
	assert.Equal(t, 180, engine.DefaultRenewalPeriodDays(model.RuleTypeProvider, model.TermLongTerm))
	assert.Equal(t, 90, engine.DefaultRenewalPeriodDays(model.RuleTypeTenant, model.TermLongTerm))

	// Short-stay rules never renew; their expiry is the lease end.
	assert.Equal(t, 0, engine.DefaultRenewalPeriodDays(model.RuleTypeTenant, model.TermShortTerm))
	assert.Equal(t, 0, engine.DefaultRenewalPeriodDays(model.RuleTypeProvider, model.TermShortTerm))
}

func TestNextRenewalState(t *testing.T) {
	now := time.Date(2024, 6, 12, 12, 0, 0, 0, time.UTC)
	lookahead := 168 * time.Hour

	t.Run("far renewal date stays active", func(t *testing.T) {
		rule := &model.AccessRule{
			RenewalStatus:   model.RenewalActive,
			NextRenewalDate: now.AddDate(0, 0, 30),
		}
		assert.Equal(t, model.RenewalActive, engine.NextRenewalState(rule, now, lookahead))
	})

	t.Run("inside lookahead moves to pending", func(t *testing.T) {
		rule := &model.AccessRule{
			RenewalStatus:   model.RenewalActive,
			NextRenewalDate: now.AddDate(0, 0, 3),
		}
		assert.Equal(t, model.RenewalPending, engine.NextRenewalState(rule, now, lookahead))
	})

	t.Run("past renewal date expires", func(t *testing.T) {
		rule := &model.AccessRule{
			RenewalStatus:   model.RenewalPending,
			NextRenewalDate: now.AddDate(0, 0, -1),
		}
		assert.Equal(t, model.RenewalExpired, engine.NextRenewalState(rule, now, lookahead))
	})

	t.Run("suspended is terminal", func(t *testing.T) {
		rule := &model.AccessRule{
			RenewalStatus:   model.RenewalSuspended,
			NextRenewalDate: now.AddDate(0, 0, -10),
		}
		assert.Equal(t, model.RenewalSuspended, engine.NextRenewalState(rule, now, lookahead))
	})

	t.Run("expired is terminal", func(t *testing.T) {
		rule := &model.AccessRule{
			RenewalStatus:   model.RenewalExpired,
			NextRenewalDate: now.AddDate(0, 0, 30),
		}
		assert.Equal(t, model.RenewalExpired, engine.NextRenewalState(rule, now, lookahead))
	})
}

func TestRenewed(t *testing.T) {
	now := time.Date(2024, 6, 12, 12, 0, 0, 0, time.UTC)

	t.Run("extends from the pending renewal date", func(t *testing.T) {
		rule := &model.AccessRule{
			RenewalPeriodDays: 90,
			NextRenewalDate:   now.AddDate(0, 0, 5),
		}
		assert.Equal(t, now.AddDate(0, 0, 95), engine.Renewed(rule, now))
	})

	t.Run("a stale date extends from now instead", func(t *testing.T) {
		rule := &model.AccessRule{
			RenewalPeriodDays: 180,
			NextRenewalDate:   now.AddDate(0, 0, -10),
		}
		assert.Equal(t, now.AddDate(0, 0, 180), engine.Renewed(rule, now))
	})
}
