package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSchoolYear(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want int
	}{
		{"september starts the year", time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC), 2025},
		{"december stays in the year", time.Date(2025, time.December, 31, 23, 59, 59, 0, time.UTC), 2025},
		{"january belongs to the previous year", time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), 2025},
		{"august ends the previous year", time.Date(2026, time.August, 31, 23, 59, 59, 0, time.UTC), 2025},
		{"next september rolls over", time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC), 2026},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SchoolYear(tt.at))
		})
	}
}

func TestSchoolYearBounds(t *testing.T) {
	start := SchoolYearStart(2025)
	end := SchoolYearEnd(2025)

	assert.Equal(t, time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC), end)

	assert.True(t, InSchoolYear(start, 2025))
	assert.True(t, InSchoolYear(end.Add(-time.Second), 2025))
	assert.False(t, InSchoolYear(end, 2025), "the bound is half-open")
	assert.False(t, InSchoolYear(start.Add(-time.Second), 2025))
}

func TestSameDay(t *testing.T) {
	morning := time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2026, time.March, 2, 22, 30, 0, 0, time.UTC)
	nextDay := time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC)

	assert.True(t, SameDay(morning, evening))
	assert.False(t, SameDay(evening, nextDay))
}

func TestFormatDate(t *testing.T) {
	at := time.Date(2026, time.March, 2, 23, 0, 0, 0, time.FixedZone("UTC+5", 5*3600))
	assert.Equal(t, "2026-03-02", FormatDate(at))
}
