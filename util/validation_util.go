// api/util/validation_util.go

package util

import (
	"fmt"

	keyway_errors "github.com/propsync/keyway/api/errors"
	"github.com/propsync/keyway/api/model"
)

type ValidationUtil struct{}

func NewValidationUtil() *ValidationUtil {
	return &ValidationUtil{}
}

func (v *ValidationUtil) ValidateRule(rule model.AccessRule) error {
	if rule.PropertyID == "" {
		return fmt.Errorf("%w: property id cannot be empty", keyway_errors.ErrInvalidRuleData)
	}
	if rule.GranteeID == "" {
		return fmt.Errorf("%w: grantee id cannot be empty", keyway_errors.ErrInvalidRuleData)
	}
	switch rule.RuleType {
	case model.RuleTypeProvider, model.RuleTypeTenant:
	default:
		return fmt.Errorf("%w: rule type must be PROVIDER or TENANT", keyway_errors.ErrInvalidRuleData)
	}
	switch rule.GranteeType {
	case model.GranteeTypeTenant, model.GranteeTypeProvider, model.GranteeTypeGuest:
	default:
		return fmt.Errorf("%w: unknown grantee type %q", keyway_errors.ErrInvalidRuleData, rule.GranteeType)
	}
	if rule.Term == model.TermShortTerm && rule.LeaseEnd == nil {
		return fmt.Errorf("%w: short-stay rules require a lease end date", keyway_errors.ErrInvalidRuleData)
	}
	if rule.LeaseStart != nil && rule.LeaseEnd != nil && !rule.LeaseStart.Before(*rule.LeaseEnd) {
		return fmt.Errorf("%w: lease start must precede lease end", keyway_errors.ErrInvalidRuleData)
	}
	if err := v.ValidateTimeSpec(rule); err != nil {
		return err
	}
	return nil
}

// ValidateTimeSpec checks the weekday set and the time-of-day policy. Rules
// without restriction skip the window checks.
func (v *ValidationUtil) ValidateTimeSpec(rule model.AccessRule) error {
	switch rule.TimeRestriction {
	case model.RestrictionNone:
		return nil
	case model.RestrictionBusinessHours, model.RestrictionExtendedHours, model.RestrictionDaylightOnly:
	case model.RestrictionCustom:
		if rule.CustomStart == "" || rule.CustomEnd == "" {
			return fmt.Errorf("%w: custom restriction requires start and end times", keyway_errors.ErrInvalidTimeSpec)
		}
		if err := ValidateClock(rule.CustomStart); err != nil {
			return fmt.Errorf("%w: %v", keyway_errors.ErrInvalidTimeSpec, err)
		}
		if err := ValidateClock(rule.CustomEnd); err != nil {
			return fmt.Errorf("%w: %v", keyway_errors.ErrInvalidTimeSpec, err)
		}
	default:
		return fmt.Errorf("%w: unknown time restriction %q", keyway_errors.ErrInvalidTimeSpec, rule.TimeRestriction)
	}

	if len(rule.AllowedWeekdays) == 0 {
		return fmt.Errorf("%w: restricted rules require at least one allowed weekday", keyway_errors.ErrInvalidTimeSpec)
	}
	for _, d := range rule.AllowedWeekdays {
		if d < 1 || d > 7 {
			return fmt.Errorf("%w: weekday %d outside ISO range 1-7", keyway_errors.ErrInvalidTimeSpec, d)
		}
	}
	return nil
}

// ValidateClock checks an "HH:MM" clock value.
func ValidateClock(value string) error {
	var h, m int
	if _, err := fmt.Sscanf(value, "%d:%d", &h, &m); err != nil {
		return fmt.Errorf("invalid clock value %q", value)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return fmt.Errorf("clock value %q out of range", value)
	}
	return nil
}

func (v *ValidationUtil) ValidateLock(lock model.SmartLock) error {
	if lock.PropertyID == "" {
		return fmt.Errorf("%w: property id cannot be empty", keyway_errors.ErrInvalidRuleData)
	}
	if lock.Platform == "" {
		return fmt.Errorf("%w: platform cannot be empty", keyway_errors.ErrInvalidRuleData)
	}
	if lock.ExternalID == "" {
		return fmt.Errorf("%w: external id cannot be empty", keyway_errors.ErrInvalidRuleData)
	}
	return nil
}

func (v *ValidationUtil) ValidateAccessEvent(log model.AccessLog) error {
	if log.PropertyID == "" {
		return fmt.Errorf("%w: property id cannot be empty", keyway_errors.ErrInvalidRuleData)
	}
	if log.LockID == "" {
		return fmt.Errorf("%w: lock id cannot be empty", keyway_errors.ErrInvalidRuleData)
	}
	if log.EventType == "" {
		return fmt.Errorf("%w: event type cannot be empty", keyway_errors.ErrInvalidRuleData)
	}
	return nil
}
