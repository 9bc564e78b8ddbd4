package calendar

import "time"

// DefaultSlots is the fixed time-of-day catalog offered on every date.
var DefaultSlots = []string{"13-15", "15-17"}

// DefaultWeekdays restricts offers to weekend days.
var DefaultWeekdays = []time.Weekday{time.Saturday, time.Sunday}

// Calendar enumerates the offerable (date, slot) space. It is pure: the
// same now always yields the same dates, so one resolution must reuse a
// single now value to avoid drifting across the horizon boundary.
type Calendar struct {
	horizonDays int
	allowed     map[time.Weekday]bool
	slots       []string
}

func New(horizonDays int, weekdays []time.Weekday, slots []string) *Calendar {
	if horizonDays <= 0 {
		horizonDays = 28
	}
	if len(weekdays) == 0 {
		weekdays = DefaultWeekdays
	}
	if len(slots) == 0 {
		slots = DefaultSlots
	}

	allowed := make(map[time.Weekday]bool, len(weekdays))
	for _, wd := range weekdays {
		allowed[wd] = true
	}

	return &Calendar{
		horizonDays: horizonDays,
		allowed:     allowed,
		slots:       append([]string(nil), slots...),
	}
}

// Dates returns the offerable dates in [now, now+horizonDays), ascending,
// without duplicates. A date exactly horizonDays out is excluded.
func (c *Calendar) Dates(now time.Time) []time.Time {
	start := Midnight(now)
	dates := make([]time.Time, 0, c.horizonDays)
	for i := 0; i < c.horizonDays; i++ {
		d := start.AddDate(0, 0, i)
		if c.allowed[d.Weekday()] {
			dates = append(dates, d)
		}
	}
	return dates
}

// DateOffered reports whether date falls inside the current horizon and on
// an allowed weekday.
func (c *Calendar) DateOffered(now, date time.Time) bool {
	start := Midnight(now)
	d := Midnight(date)
	if d.Before(start) || !d.Before(start.AddDate(0, 0, c.horizonDays)) {
		return false
	}
	return c.allowed[d.Weekday()]
}

// RangeDates returns the allowed dates in [start, end], ascending. Unlike
// Dates it ignores the horizon; reporting ranges may reach into the past.
func (c *Calendar) RangeDates(start, end time.Time) []time.Time {
	var dates []time.Time
	for d := Midnight(start); !d.After(Midnight(end)); d = d.AddDate(0, 0, 1) {
		if c.allowed[d.Weekday()] {
			dates = append(dates, d)
		}
	}
	return dates
}

// Slots returns the ordered slot catalog. The catalog is identical for
// every table and every date.
func (c *Calendar) Slots() []string {
	return append([]string(nil), c.slots...)
}

func (c *Calendar) HasSlot(slot string) bool {
	for _, s := range c.slots {
		if s == slot {
			return true
		}
	}
	return false
}

// Midnight truncates a timestamp to its civil date in its own location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
