package reminder

import (
	"errors"
	"time"
)

// ErrUnsupportedRepeat rejects after_creation repeat configurations whose
// duration is not "count". The behavior of forever/until repeats on that
// trigger was never defined, so the combination is a configuration error
// instead of a silent guess.
var ErrUnsupportedRepeat = errors.New("after_creation repeat supports only count duration")

// ComputeRemindAts produces the candidate instants for one trigger type.
// A disabled config yields nothing, and no candidate is ever in the past:
// every instant returned is strictly after now.
func ComputeRemindAts(cfg TemplateConfig, typ ReminderType, now time.Time, due *time.Time) ([]time.Time, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	switch typ {
	case TypeAfterCreation:
		base := now
		if cfg.ReferenceDate != nil {
			base = *cfg.ReferenceDate
		}
		first := addDelay(base, cfg.Delay)
		candidates := []time.Time{first}
		if repeats(cfg.Repeat) {
			if cfg.Repeat.Duration != DurationCount {
				return nil, ErrUnsupportedRepeat
			}
			for i := 1; i < cfg.Repeat.Count; i++ {
				candidates = append(candidates, addUnits(first, i*cfg.Repeat.Interval, cfg.Repeat.Type))
			}
		}
		return strictlyAfter(candidates, now), nil

	case TypeBeforeDue:
		if due == nil {
			return nil, nil
		}
		var candidates []time.Time
		if repeats(cfg.Repeat) {
			n := 1
			if cfg.Repeat.Duration == DurationCount {
				n = cfg.Repeat.Count
			}
			for i := 1; i <= n; i++ {
				candidates = append(candidates, addUnits(*due, -i*cfg.Repeat.Interval, cfg.Repeat.Type))
			}
		} else {
			candidates = []time.Time{due.AddDate(0, 0, -1)}
		}
		return strictlyAfter(candidates, now), nil

	case TypeOnDue:
		if due == nil || !due.After(now) {
			return nil, nil
		}
		return []time.Time{*due}, nil
	}

	return nil, nil
}

func repeats(r Repeat) bool {
	return r.Type != "" && r.Type != RepeatNone
}

func strictlyAfter(candidates []time.Time, now time.Time) []time.Time {
	var out []time.Time
	for _, c := range candidates {
		if c.After(now) {
			out = append(out, c)
		}
	}
	return out
}

func addDelay(t time.Time, d Delay) time.Time {
	switch d.Unit {
	case UnitMinutesDelay:
		return t.Add(time.Duration(d.Value) * time.Minute)
	case UnitHoursDelay:
		return t.Add(time.Duration(d.Value) * time.Hour)
	case UnitDaysDelay:
		return t.AddDate(0, 0, d.Value)
	}
	return t
}

// addUnits moves t by n units, calendar-aware. Month and year steps clamp
// the day-of-month instead of normalizing, so Jan 31 + 1 month lands on
// the last day of February rather than early March.
func addUnits(t time.Time, n int, unit RepeatUnit) time.Time {
	switch unit {
	case RepeatMinutes:
		return t.Add(time.Duration(n) * time.Minute)
	case RepeatHours:
		return t.Add(time.Duration(n) * time.Hour)
	case RepeatDays:
		return t.AddDate(0, 0, n)
	case RepeatWeeks:
		return t.AddDate(0, 0, 7*n)
	case RepeatMonths:
		return addMonths(t, n)
	case RepeatYears:
		return addMonths(t, 12*n)
	}
	return t
}

func addMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	m := int(month) - 1 + n
	year += m / 12
	m %= 12
	if m < 0 {
		m += 12
		year--
	}
	target := time.Month(m + 1)
	if last := daysIn(year, target); day > last {
		day = last
	}
	return time.Date(year, target, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	// Day zero of the following month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
