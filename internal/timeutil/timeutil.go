// Package timeutil holds the pure time arithmetic behind availability
// computation. Everything here is deterministic and database-free so the
// interval logic can be tested without a store.
package timeutil

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrBadClock reports a wall-clock string that is not "HH:MM".
var ErrBadClock = errors.New("clock value must be HH:MM")

const minutesPerDay = 24 * 60

// MinutesFromClock parses "HH:MM" into minutes since midnight.
func MinutesFromClock(clock string) (int, error) {
	if len(clock) != 5 || clock[2] != ':' {
		return 0, fmt.Errorf("%w: %q", ErrBadClock, clock)
	}
	for _, i := range []int{0, 1, 3, 4} {
		if clock[i] < '0' || clock[i] > '9' {
			return 0, fmt.Errorf("%w: %q", ErrBadClock, clock)
		}
	}
	hh, _ := strconv.Atoi(clock[:2])
	mm, _ := strconv.Atoi(clock[3:])
	if hh > 23 || mm > 59 {
		return 0, fmt.Errorf("%w: %q", ErrBadClock, clock)
	}
	return hh*60 + mm, nil
}

// ClockFromMinutes renders minutes since midnight as "HH:MM". Values outside
// [0, 1439] wrap modulo one day, so 1500 renders as "01:00".
func ClockFromMinutes(minutes int) string {
	minutes %= minutesPerDay
	if minutes < 0 {
		minutes += minutesPerDay
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Overlaps reports whether the half-open minute intervals [s1,e1) and [s2,e2)
// intersect. Touching endpoints do not overlap.
func Overlaps(s1, e1, s2, e2 int) bool {
	return s1 < e2 && s2 < e1
}

// OverlapsInstant is Overlaps for absolute instants, same half-open semantics.
func OverlapsInstant(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// RoundToStep rounds t to the nearest multiple of step minutes, ties rounding
// toward the later instant. Sub-minute precision is discarded.
func RoundToStep(t time.Time, step int) time.Time {
	if step <= 0 {
		return t.Truncate(time.Minute)
	}
	stepSec := int64(step) * 60
	unix := t.Truncate(time.Minute).Unix()
	rounded := ((unix + stepSec/2) / stepSec) * stepSec
	return time.Unix(rounded, 0).In(t.Location())
}
