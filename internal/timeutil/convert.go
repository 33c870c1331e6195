// Package timeutil centralizes the date/time handling shared by formatters
// and the reminder scheduler: bookings arrive as separate "YYYY-MM-DD" and
// "HH:MM" strings expressed in the booking system's zone.
package timeutil

import (
	"fmt"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// ParseStart combines a booking date and clock string into a time.Time in loc.
func ParseStart(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout+" "+ClockLayout, date+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse booking start %q %q: %w", date, clock, err)
	}
	return t, nil
}

// ConvertZone converts a (date, clock) pair from one IANA zone to another and
// returns the converted pair. Empty or equal zones return the input unchanged.
// All formatters go through this one function instead of re-implementing the
// conversion per call site.
func ConvertZone(date, clock, fromZone, toZone string) (string, string, error) {
	if fromZone == "" || toZone == "" || fromZone == toZone {
		return date, clock, nil
	}
	from, err := time.LoadLocation(fromZone)
	if err != nil {
		return date, clock, fmt.Errorf("load zone %q: %w", fromZone, err)
	}
	to, err := time.LoadLocation(toZone)
	if err != nil {
		return date, clock, fmt.Errorf("load zone %q: %w", toZone, err)
	}
	t, err := ParseStart(date, clock, from)
	if err != nil {
		return date, clock, err
	}
	t = t.In(to)
	return t.Format(DateLayout), t.Format(ClockLayout), nil
}
