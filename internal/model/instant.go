package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidInstant is returned when a string is not a UTC RFC 3339 instant.
var ErrInvalidInstant = errors.New("invalid instant")

// ParseInstant parses an RFC 3339 timestamp with a mandatory "Z" designator
// and up to nanosecond fractional seconds.
func ParseInstant(s string) (time.Time, error) {
	if !strings.HasSuffix(s, "Z") {
		return time.Time{}, fmt.Errorf("%w: %q must be in UTC", ErrInvalidInstant, s)
	}
	if !validFraction(s) {
		return time.Time{}, fmt.Errorf("%w: %q fractional seconds must be '.' and 1 to 9 digits", ErrInvalidInstant, s)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidInstant, s)
	}
	return t.UTC(), nil
}

// validFraction requires anything between the seconds and the trailing "Z"
// to be '.' and 1 to 9 digits. time.Parse alone accepts a comma and
// truncates longer fractions.
func validFraction(s string) bool {
	const secondsEnd = len("2006-01-02T15:04:05")
	if len(s) <= secondsEnd+1 {
		return true
	}
	frac := s[secondsEnd : len(s)-1]
	if frac[0] != '.' || len(frac) < 2 || len(frac) > 10 {
		return false
	}
	for _, c := range frac[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// FormatInstant renders t in UTC, keeping only the fractional digits it needs.
func FormatInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// DateString returns the UTC calendar date of t as YYYY-MM-DD.
func DateString(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}
