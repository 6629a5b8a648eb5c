// api/engine/renewal.go
package engine

import (
	"time"

	"github.com/propsync/keyway/api/model"
)

// Renewal cadences. Short-stay tenant rules are bounded by the lease end
// instead of a recurring cadence and never enter the sweep.
const (
	ProviderRenewalDays = 180
	TenantRenewalDays   = 90
)

// DefaultRenewalPeriodDays resolves the cadence for a new rule. Zero means
// the rule does not renew.
func DefaultRenewalPeriodDays(ruleType model.RuleType, term model.Term) int {
	switch {
	case ruleType == model.RuleTypeProvider && term != model.TermShortTerm:
		return ProviderRenewalDays
	case ruleType == model.RuleTypeTenant && term == model.TermLongTerm:
		return TenantRenewalDays
	default:
		return 0
	}
}

// NextRenewalState advances the rule lifecycle for the given instant:
// ACTIVE -> PENDING_RENEWAL once inside the lookahead window, and
// PENDING_RENEWAL -> EXPIRED once the renewal date has passed unrenewed.
// SUSPENDED and EXPIRED are terminal here.
func NextRenewalState(rule *model.AccessRule, now time.Time, lookahead time.Duration) model.RenewalStatus {
	switch rule.RenewalStatus {
	case model.RenewalSuspended:
		return model.RenewalSuspended
	case model.RenewalExpired:
		return model.RenewalExpired
	}

	if now.After(rule.NextRenewalDate) {
		return model.RenewalExpired
	}
	if !now.Before(rule.NextRenewalDate.Add(-lookahead)) {
		return model.RenewalPending
	}
	return model.RenewalActive
}

// Renewed returns the renewal date after a successful extension.
func Renewed(rule *model.AccessRule, now time.Time) time.Time {
	base := rule.NextRenewalDate
	if base.Before(now) {
		base = now
	}
	return base.AddDate(0, 0, rule.RenewalPeriodDays)
}
