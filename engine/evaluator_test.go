// api/engine/evaluator_test.go
package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/propsync/keyway/api/engine"
	"github.com/propsync/keyway/api/model"
)

func businessHoursRule() *model.AccessRule {
	return &model.AccessRule{
		ID:              "rule-1",
		TimeRestriction: model.RestrictionBusinessHours,
		AllowedWeekdays: []int{1, 2, 3, 4, 5},
	}
}

func TestEvaluate_BusinessHours(t *testing.T) {
	evaluator := engine.NewEvaluator()
	rule := businessHoursRule()

	t.Run("weekday inside window allows", func(t *testing.T) {
		// Wednesday 10:00
		ts := time.Date(2024, 6, 12, 10, 0, 0, 0, time.UTC)
		decision := evaluator.Evaluate(rule, ts)
		assert.True(t, decision.Allowed())
	})

	t.Run("weekday before window denies", func(t *testing.T) {
		// Wednesday 08:00
		ts := time.Date(2024, 6, 12, 8, 0, 0, 0, time.UTC)
		decision := evaluator.Evaluate(rule, ts)
		assert.False(t, decision.Allowed())
		assert.Equal(t, engine.ReasonOutsideTimeWindow, decision.Reason)
	})

	t.Run("weekend denies on weekday before window", func(t *testing.T) {
		// Saturday 10:00: the weekday check fires before the window check
		ts := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
		decision := evaluator.Evaluate(rule, ts)
		assert.False(t, decision.Allowed())
		assert.Equal(t, engine.ReasonOutsideWeekday, decision.Reason)
	})

	t.Run("window bounds are inclusive", func(t *testing.T) {
		opens := time.Date(2024, 6, 12, 9, 0, 0, 0, time.UTC)
		closes := time.Date(2024, 6, 12, 17, 0, 0, 0, time.UTC)
		assert.True(t, evaluator.Evaluate(rule, opens).Allowed())
		assert.True(t, evaluator.Evaluate(rule, closes).Allowed())
	})
}

func TestEvaluate_CustomOvernightWindow(t *testing.T) {
	evaluator := engine.NewEvaluator()
	rule := &model.AccessRule{
		ID:              "rule-2",
		TimeRestriction: model.RestrictionCustom,
		CustomStart:     "22:00",
		CustomEnd:       "06:00",
		AllowedWeekdays: []int{1, 2, 3, 4, 5, 6, 7},
	}

	t.Run("before midnight allows", func(t *testing.T) {
		ts := time.Date(2024, 6, 12, 23, 30, 0, 0, time.UTC)
		assert.True(t, evaluator.Evaluate(rule, ts).Allowed())
	})

	t.Run("after midnight allows", func(t *testing.T) {
		ts := time.Date(2024, 6, 13, 2, 0, 0, 0, time.UTC)
		assert.True(t, evaluator.Evaluate(rule, ts).Allowed())
	})

	t.Run("midday denies", func(t *testing.T) {
		ts := time.Date(2024, 6, 12, 10, 0, 0, 0, time.UTC)
		decision := evaluator.Evaluate(rule, ts)
		assert.False(t, decision.Allowed())
		assert.Equal(t, engine.ReasonOutsideTimeWindow, decision.Reason)
	})
}

func TestEvaluate_NoRestriction(t *testing.T) {
	evaluator := engine.NewEvaluator()
	rule := &model.AccessRule{
		ID:              "rule-3",
		TimeRestriction: model.RestrictionNone,
	}

	// No weekday set needed; any instant passes.
	for _, ts := range []time.Time{
		time.Date(2024, 6, 12, 3, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 15, 23, 59, 0, 0, time.UTC),
		time.Date(2024, 6, 16, 12, 0, 0, 0, time.UTC),
	} {
		assert.True(t, evaluator.Evaluate(rule, ts).Allowed())
	}
}

func TestEvaluate_EmptyWeekdaySetFailsClosed(t *testing.T) {
	evaluator := engine.NewEvaluator()
	rule := &model.AccessRule{
		ID:              "rule-4",
		TimeRestriction: model.RestrictionExtendedHours,
		AllowedWeekdays: nil,
	}

	ts := time.Date(2024, 6, 12, 10, 0, 0, 0, time.UTC)
	decision := evaluator.Evaluate(rule, ts)
	assert.False(t, decision.Allowed())
	assert.Equal(t, engine.ReasonOutsideWeekday, decision.Reason)
}

func TestEvaluate_MalformedCustomWindowFailsClosed(t *testing.T) {
	evaluator := engine.NewEvaluator()
	rule := &model.AccessRule{
		ID:              "rule-5",
		TimeRestriction: model.RestrictionCustom,
		CustomStart:     "not-a-clock",
		CustomEnd:       "06:00",
		AllowedWeekdays: []int{3},
	}

	ts := time.Date(2024, 6, 12, 2, 0, 0, 0, time.UTC)
	assert.False(t, evaluator.Evaluate(rule, ts).Allowed())
}

func TestISOWeekday(t *testing.T) {
	// Sunday maps to 7, not 0.
	assert.Equal(t, 7, engine.ISOWeekday(time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 1, engine.ISOWeekday(time.Date(2024, 6, 17, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 6, engine.ISOWeekday(time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)))
}

func TestParseClock(t *testing.T) {
	minutes, err := engine.ParseClock("09:30")
	assert.NoError(t, err)
	assert.Equal(t, 570, minutes)

	_, err = engine.ParseClock("25:00")
	assert.Error(t, err)
}
