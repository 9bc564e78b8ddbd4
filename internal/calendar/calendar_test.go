package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatesWindow(t *testing.T) {
	// Wednesday 2026-03-04.
	now := time.Date(2026, 3, 4, 17, 30, 0, 0, time.UTC)
	cal := New(28, nil, nil)

	dates := cal.Dates(now)
	require.NotEmpty(t, dates)

	start := Midnight(now)
	end := start.AddDate(0, 0, 28)

	seen := make(map[string]bool)
	prev := time.Time{}
	for _, d := range dates {
		assert.False(t, d.Before(start), "date before window: %s", d)
		assert.True(t, d.Before(end), "date at or past horizon: %s", d)
		assert.Contains(t, []time.Weekday{time.Saturday, time.Sunday}, d.Weekday())
		assert.True(t, d.After(prev), "dates must be strictly ascending")
		key := d.Format("2006-01-02")
		assert.False(t, seen[key], "duplicate date %s", key)
		seen[key] = true
		prev = d
	}

	// 28 days starting on a Wednesday cover exactly 4 full weekends.
	assert.Len(t, dates, 8)
}

func TestDatesHorizonBoundary(t *testing.T) {
	// Saturday now: day 0 is included, the Saturday exactly horizonDays out
	// is not.
	now := time.Date(2026, 3, 7, 9, 0, 0, 0, time.UTC)
	require.Equal(t, time.Saturday, now.Weekday())

	cal := New(7, nil, nil)
	dates := cal.Dates(now)

	require.Len(t, dates, 2) // this Saturday and Sunday only
	assert.Equal(t, Midnight(now), dates[0])
	assert.Equal(t, Midnight(now).AddDate(0, 0, 1), dates[1])

	assert.True(t, cal.DateOffered(now, now))
	assert.False(t, cal.DateOffered(now, now.AddDate(0, 0, 7)))
	assert.False(t, cal.DateOffered(now, now.AddDate(0, 0, -7)))
}

func TestDatesDeterministic(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	cal := New(28, nil, nil)
	assert.Equal(t, cal.Dates(now), cal.Dates(now))
}

func TestDateOfferedWeekdayFilter(t *testing.T) {
	// Wednesday now; Thursday is inside the horizon but not offerable.
	now := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)
	cal := New(28, nil, nil)

	thursday := now.AddDate(0, 0, 1)
	require.Equal(t, time.Thursday, thursday.Weekday())
	assert.False(t, cal.DateOffered(now, thursday))

	saturday := now.AddDate(0, 0, 3)
	require.Equal(t, time.Saturday, saturday.Weekday())
	assert.True(t, cal.DateOffered(now, saturday))
}

func TestSlotCatalog(t *testing.T) {
	cal := New(28, nil, nil)

	assert.Equal(t, []string{"13-15", "15-17"}, cal.Slots())
	assert.True(t, cal.HasSlot("13-15"))
	assert.True(t, cal.HasSlot("15-17"))
	assert.False(t, cal.HasSlot("17-19"))

	// Returned catalog is a copy.
	slots := cal.Slots()
	slots[0] = "mutated"
	assert.Equal(t, []string{"13-15", "15-17"}, cal.Slots())
}

func TestCustomConfig(t *testing.T) {
	cal := New(14, []time.Weekday{time.Friday}, []string{"18-20"})
	now := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)

	dates := cal.Dates(now)
	require.Len(t, dates, 2)
	for _, d := range dates {
		assert.Equal(t, time.Friday, d.Weekday())
	}
	assert.Equal(t, []string{"18-20"}, cal.Slots())
}
