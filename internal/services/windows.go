package services

import (
	"fmt"
	"time"
)

// windowBounds resolves a named calendar window to a half-open [from, to)
// interval. All windows are evaluated against the single reference time
// passed in, so every row of a query sees the same boundaries.
//
//	D0..D7  single calendar day, n days before the reference day
//	W0      current ISO week (Monday through Sunday)
//	M0      current calendar month
//	Y0      current calendar year
func windowBounds(window string, now time.Time) (time.Time, time.Time, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch window {
	case "D0", "D1", "D2", "D3", "D4", "D5", "D6", "D7":
		n := int(window[1] - '0')
		from := today.AddDate(0, 0, -n)
		return from, from.AddDate(0, 0, 1), nil
	case "W0":
		// ISO week starts Monday.
		offset := (int(today.Weekday()) + 6) % 7
		from := today.AddDate(0, 0, -offset)
		return from, from.AddDate(0, 0, 7), nil
	case "M0":
		from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return from, from.AddDate(0, 1, 0), nil
	case "Y0":
		from := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
		return from, from.AddDate(1, 0, 0), nil
	}
	return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidWindow, window)
}
