package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"sickleave_notifier/internal/domain/notification"
)

func TestRules_ZeroValuesFallBackToDefaults(t *testing.T) {
	r := Rules{}.withDefaults()
	assert.Equal(t, notification.StopGraceDays, r.StopGraceDays)
	assert.Equal(t, notification.LongHorizonRemainingDaysThreshold, r.LongHorizonThresholdDays)

	r = Rules{StopGraceDays: 20}.withDefaults()
	assert.Equal(t, 20, r.StopGraceDays)
}

func TestRules_StopDueIsMidnightInOslo(t *testing.T) {
	due := DefaultRules().StopDue(notification.Date(2020, 10, 20))
	assert.Equal(t, time.Date(2020, 11, 6, 0, 0, 0, 0, notification.Oslo), due)
	assert.Equal(t, time.Date(2020, 11, 5, 23, 0, 0, 0, time.UTC), due.UTC())
}

func TestRules_LongHorizonDueNowWhenComputedTimeHasPassed(t *testing.T) {
	now := time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC)
	event := &notification.SettlementEvent{
		Fnr:           testFnr,
		StartDate:     notification.Date(2020, 5, 2),
		Tom:           notification.Date(2021, 2, 28),
		RemainingDays: 120,
	}

	for _, m := range DefaultRules().Plan(event, now) {
		if m.Type == notification.Type39Week {
			assert.Equal(t, now, m.SendAt)
		}
	}
}

func TestRules_ThresholdIsExclusive(t *testing.T) {
	now := time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)
	event := &notification.SettlementEvent{
		Fnr:           testFnr,
		StartDate:     notification.Date(2020, 5, 2),
		Tom:           notification.Date(2020, 5, 31),
		RemainingDays: notification.LongHorizonRemainingDaysThreshold,
	}

	for _, m := range DefaultRules().Plan(event, now) {
		if m.Type == notification.Type39Week {
			assert.Equal(t, LetterDue(event.StartDate, 39), m.SendAt)
		}
	}
}
