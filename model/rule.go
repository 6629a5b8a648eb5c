// api/model/rule.go
package model

import "time"

// RuleType distinguishes who the grant is for.
type RuleType string

const (
	RuleTypeProvider RuleType = "PROVIDER"
	RuleTypeTenant   RuleType = "TENANT"
)

// GranteeType identifies the kind of person a rule grants entry to.
type GranteeType string

const (
	GranteeTypeTenant   GranteeType = "TENANT"
	GranteeTypeProvider GranteeType = "PROVIDER"
	GranteeTypeGuest    GranteeType = "GUEST"
)

// Term describes the engagement length behind a rule. Short-stay tenant rules
// are bounded by the lease end instead of a renewal cadence.
type Term string

const (
	TermRegular   Term = "REGULAR"
	TermLongTerm  Term = "LONG_TERM"
	TermShortTerm Term = "SHORT_TERM"
)

// TimeRestriction selects the time-of-day policy a rule enforces.
type TimeRestriction string

const (
	RestrictionBusinessHours TimeRestriction = "BUSINESS_HOURS"
	RestrictionExtendedHours TimeRestriction = "EXTENDED_HOURS"
	RestrictionDaylightOnly  TimeRestriction = "DAYLIGHT_ONLY"
	RestrictionCustom        TimeRestriction = "CUSTOM"
	RestrictionNone          TimeRestriction = "NO_RESTRICTION"
)

// RenewalStatus is the rule lifecycle state.
type RenewalStatus string

const (
	RenewalActive    RenewalStatus = "ACTIVE"
	RenewalPending   RenewalStatus = "PENDING_RENEWAL"
	RenewalExpired   RenewalStatus = "EXPIRED"
	RenewalSuspended RenewalStatus = "SUSPENDED"
)

// AccessRule encodes who may enter a property, when, and for how long. Rules
// are deactivated on revocation, never hard-deleted. Version carries the
// optimistic-concurrency counter used by the renewal sweep.
type AccessRule struct {
	ID                string          `json:"id"`
	RuleType          RuleType        `json:"rule_type" binding:"required"`
	PropertyID        string          `json:"property_id" binding:"required"`
	GranteeID         string          `json:"grantee_id" binding:"required"`
	GranteeType       GranteeType     `json:"grantee_type" binding:"required"`
	GranteeContact    string          `json:"grantee_contact,omitempty"`
	Term              Term            `json:"term"`
	TimeRestriction   TimeRestriction `json:"time_restriction"`
	CustomStart       string          `json:"custom_start,omitempty"` // "HH:MM"
	CustomEnd         string          `json:"custom_end,omitempty"`   // "HH:MM"
	AllowedWeekdays   []int           `json:"allowed_weekdays"`       // ISO 1 (Mon) .. 7 (Sun)
	RenewalPeriodDays int             `json:"renewal_period_days"`
	NextRenewalDate   time.Time       `json:"next_renewal_date"`
	LeaseStart        *time.Time      `json:"lease_start,omitempty"`
	LeaseEnd          *time.Time      `json:"lease_end,omitempty"`
	RenewalStatus     RenewalStatus   `json:"renewal_status"`
	IsActive          bool            `json:"is_active"`
	Version           int             `json:"version"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// InRenewalCycle reports whether the rule is subject to the periodic sweep.
// Short-stay rules expire with the lease instead of renewing.
func (r *AccessRule) InRenewalCycle() bool {
	return r.RenewalPeriodDays > 0
}

// RuleSearchCriteria filters rule listings.
type RuleSearchCriteria struct {
	PropertyID  string
	GranteeID   string
	GranteeType GranteeType
	RuleType    RuleType
	Status      RenewalStatus
	ActiveOnly  bool
	Limit       int
	Offset      int
}

// RulePatch carries the updatable subset of a rule. Nil fields are left as-is.
type RulePatch struct {
	TimeRestriction   *TimeRestriction `json:"time_restriction,omitempty"`
	CustomStart       *string          `json:"custom_start,omitempty"`
	CustomEnd         *string          `json:"custom_end,omitempty"`
	AllowedWeekdays   *[]int           `json:"allowed_weekdays,omitempty"`
	RenewalPeriodDays *int             `json:"renewal_period_days,omitempty"`
	LeaseStart        *time.Time       `json:"lease_start,omitempty"`
	LeaseEnd          *time.Time       `json:"lease_end,omitempty"`
	GranteeContact    *string          `json:"grantee_contact,omitempty"`
}
