package app

import (
	"time"

	"sickleave_notifier/internal/domain/notification"
)

// Rules holds the scheduling constants. Zero values fall back to the defaults.
type Rules struct {
	StopGraceDays            int
	LongHorizonThresholdDays int
}

func DefaultRules() Rules {
	return Rules{
		StopGraceDays:            notification.StopGraceDays,
		LongHorizonThresholdDays: notification.LongHorizonRemainingDaysThreshold,
	}
}

func (r Rules) withDefaults() Rules {
	d := DefaultRules()
	if r.StopGraceDays > 0 {
		d.StopGraceDays = r.StopGraceDays
	}
	if r.LongHorizonThresholdDays > 0 {
		d.LongHorizonThresholdDays = r.LongHorizonThresholdDays
	}
	return d
}

// LetterDue is start + weeks, at midnight in Oslo.
func LetterDue(startDate time.Time, weeks int) time.Time {
	return notification.MidnightOslo(startDate.AddDate(0, 0, 7*weeks))
}

// StopDue is the last paid or sick day plus the grace window, at midnight in Oslo.
func (r Rules) StopDue(lastDay time.Time) time.Time {
	return notification.MidnightOslo(lastDay.AddDate(0, 0, r.StopGraceDays))
}

// Plan computes the due time of every type for a new case.
func (r Rules) Plan(event *notification.SettlementEvent, now time.Time) []*notification.PlannedMessage {
	msgs := make([]*notification.PlannedMessage, 0, len(notification.AllTypes))
	for _, t := range notification.AllTypes {
		var sendAt time.Time
		if weeks, ok := t.WeeksAfterStart(); ok {
			sendAt = LetterDue(event.StartDate, weeks)
		} else {
			sendAt = r.StopDue(event.Tom)
		}
		if t == notification.Type39Week && (event.RemainingDays < r.LongHorizonThresholdDays || !sendAt.After(now)) {
			sendAt = now
		}
		m := notification.NewPlannedMessage(event.Fnr, event.StartDate, t, sendAt, now)
		msgs = append(msgs, &m)
	}
	return msgs
}
