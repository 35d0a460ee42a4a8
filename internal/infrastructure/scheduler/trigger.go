package scheduler

import "time"

// Trigger computes fire times.
type Trigger interface {
	// Next returns the first fire time strictly after after.
	Next(after time.Time) time.Time
	// Immediate reports whether the runner fires once on start.
	Immediate() bool
	String() string
}

type every struct {
	interval time.Duration
}

// Every fires on start and then every d.
func Every(d time.Duration) Trigger {
	return every{interval: d}
}

func (e every) Next(after time.Time) time.Time { return after.Add(e.interval) }
func (e every) Immediate() bool                { return true }
func (e every) String() string                 { return "every " + e.interval.String() }

type dailyAt struct {
	hour, minute int
	loc          *time.Location
}

// DailyAt fires once a day at hour:minute wall-clock time in loc.
func DailyAt(hour, minute int, loc *time.Location) Trigger {
	if loc == nil {
		loc = time.UTC
	}
	return dailyAt{hour: hour, minute: minute, loc: loc}
}

func (d dailyAt) Next(after time.Time) time.Time {
	local := after.In(d.loc)
	slot := time.Date(local.Year(), local.Month(), local.Day(), d.hour, d.minute, 0, 0, d.loc)
	if !slot.After(after) {
		slot = time.Date(local.Year(), local.Month(), local.Day()+1, d.hour, d.minute, 0, 0, d.loc)
	}
	return slot
}

func (d dailyAt) Immediate() bool { return false }

func (d dailyAt) String() string {
	return time.Date(2000, 1, 1, d.hour, d.minute, 0, 0, d.loc).Format("daily at 15:04 MST")
}
