package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinutesFromClock(t *testing.T) {
	cases := map[string]int{
		"00:00": 0,
		"09:30": 570,
		"23:59": 1439,
	}
	for clock, want := range cases {
		got, err := MinutesFromClock(clock)
		require.NoError(t, err, clock)
		assert.Equal(t, want, got, clock)
	}
}

func TestMinutesFromClockRejectsMalformed(t *testing.T) {
	for _, clock := range []string{"", "9:30", "09:3", "24:00", "12:60", "ab:cd", "12-30", "+9:30"} {
		_, err := MinutesFromClock(clock)
		require.Error(t, err, clock)
		assert.ErrorIs(t, err, ErrBadClock)
	}
}

func TestClockRoundTrip(t *testing.T) {
	for minutes := 0; minutes < 24*60; minutes += 7 {
		clock := ClockFromMinutes(minutes)
		back, err := MinutesFromClock(clock)
		require.NoError(t, err)
		assert.Equal(t, minutes, back)
	}
}

func TestClockFromMinutesWraps(t *testing.T) {
	assert.Equal(t, "01:00", ClockFromMinutes(25*60))
	assert.Equal(t, "23:00", ClockFromMinutes(-60))
}

func TestOverlapsHalfOpen(t *testing.T) {
	// Touching endpoints do not overlap.
	assert.False(t, Overlaps(0, 60, 60, 120))
	assert.False(t, Overlaps(60, 120, 0, 60))

	assert.True(t, Overlaps(0, 61, 60, 120))
	assert.True(t, Overlaps(30, 90, 0, 120))

	// Symmetry.
	for _, c := range [][4]int{{0, 60, 30, 90}, {10, 20, 15, 25}, {0, 5, 5, 10}} {
		assert.Equal(t,
			Overlaps(c[0], c[1], c[2], c[3]),
			Overlaps(c[2], c[3], c[0], c[1]))
	}
}

func TestOverlapsInstant(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	assert.False(t, OverlapsInstant(base, base.Add(time.Hour), base.Add(time.Hour), base.Add(2*time.Hour)))
	assert.True(t, OverlapsInstant(base, base.Add(time.Hour), base.Add(30*time.Minute), base.Add(2*time.Hour)))
}

func TestRoundToStep(t *testing.T) {
	at := func(min, sec int) time.Time {
		return time.Date(2026, 3, 2, 9, min, sec, 0, time.UTC)
	}

	assert.Equal(t, at(15, 0), RoundToStep(at(13, 0), 15))
	assert.Equal(t, at(0, 0), RoundToStep(at(7, 0), 15))
	assert.Equal(t, at(15, 0), RoundToStep(at(8, 0), 15))
	assert.Equal(t, at(30, 0), RoundToStep(at(30, 0), 15))
	// Sub-minute precision is discarded before rounding.
	assert.Equal(t, at(0, 0), RoundToStep(at(7, 30), 15))
	// Ties round toward the later instant.
	assert.Equal(t, at(10, 0), RoundToStep(at(5, 0), 10))
}
