// api/engine/evaluator.go
package engine

import (
	"fmt"
	"time"

	"github.com/propsync/keyway/api/model"
)

// Effect is the outcome of evaluating a rule against a timestamp.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// DenyReason explains a deny decision.
type DenyReason string

const (
	ReasonOutsideWeekday    DenyReason = "OUTSIDE_WEEKDAY"
	ReasonOutsideTimeWindow DenyReason = "OUTSIDE_TIME_WINDOW"
)

// Decision is the result of one evaluation.
type Decision struct {
	Effect Effect     `json:"effect"`
	Reason DenyReason `json:"reason,omitempty"`
}

func (d Decision) Allowed() bool { return d.Effect == EffectAllow }

// window is a time-of-day interval in minutes since midnight, inclusive on
// both ends. start > end means the window wraps past midnight.
type window struct {
	start int
	end   int
}

// Preset time-of-day windows for the non-custom restrictions.
var presetWindows = map[model.TimeRestriction]window{
	model.RestrictionBusinessHours: {start: 9 * 60, end: 17 * 60},
	model.RestrictionExtendedHours: {start: 7 * 60, end: 22 * 60},
	model.RestrictionDaylightOnly:  {start: 6 * 60, end: 20 * 60},
}

// Evaluator decides whether a rule permits entry at a candidate timestamp.
// It is stateless and safe for concurrent use.
type Evaluator struct{}

func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate applies the rule's weekday set and time-of-day window to the
// candidate timestamp. NO_RESTRICTION allows unconditionally.
func (e *Evaluator) Evaluate(rule *model.AccessRule, ts time.Time) Decision {
	if rule.TimeRestriction == model.RestrictionNone {
		return Decision{Effect: EffectAllow}
	}

	if !weekdayAllowed(rule.AllowedWeekdays, ts) {
		return Decision{Effect: EffectDeny, Reason: ReasonOutsideWeekday}
	}

	w, err := resolveWindow(rule)
	if err != nil {
		// A malformed window can only reach here if validation was bypassed;
		// fail closed.
		return Decision{Effect: EffectDeny, Reason: ReasonOutsideTimeWindow}
	}

	minute := ts.Hour()*60 + ts.Minute()
	if w.contains(minute) {
		return Decision{Effect: EffectAllow}
	}
	return Decision{Effect: EffectDeny, Reason: ReasonOutsideTimeWindow}
}

func (w window) contains(minute int) bool {
	if w.start <= w.end {
		return minute >= w.start && minute <= w.end
	}
	// Overnight window, e.g. 22:00-06:00.
	return minute >= w.start || minute <= w.end
}

func resolveWindow(rule *model.AccessRule) (window, error) {
	switch rule.TimeRestriction {
	case model.RestrictionBusinessHours, model.RestrictionExtendedHours, model.RestrictionDaylightOnly:
		return presetWindows[rule.TimeRestriction], nil
	case model.RestrictionCustom:
		start, err := ParseClock(rule.CustomStart)
		if err != nil {
			return window{}, err
		}
		end, err := ParseClock(rule.CustomEnd)
		if err != nil {
			return window{}, err
		}
		return window{start: start, end: end}, nil
	case model.RestrictionNone:
		return window{start: 0, end: 24*60 - 1}, nil
	default:
		return window{}, fmt.Errorf("unknown time restriction %q", rule.TimeRestriction)
	}
}

// ParseClock parses an "HH:MM" clock value into minutes since midnight.
func ParseClock(value string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(value, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock value %q: %w", value, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock value %q out of range", value)
	}
	return h*60 + m, nil
}

// ISOWeekday returns the ISO-8601 weekday number for ts: Monday 1 .. Sunday 7.
func ISOWeekday(ts time.Time) int {
	wd := int(ts.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func weekdayAllowed(allowed []int, ts time.Time) bool {
	if len(allowed) == 0 {
		return false
	}
	iso := ISOWeekday(ts)
	for _, d := range allowed {
		if d == iso {
			return true
		}
	}
	return false
}
