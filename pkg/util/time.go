package util

import (
	"time"
)

// AddTimeToDate combines the calendar date of date with the time of day of sourceTime, in the location of date
func AddTimeToDate(date time.Time, sourceTime time.Time) time.Time {
	newDateTime := time.Date(date.Year(), date.Month(), date.Day(), sourceTime.Hour(), sourceTime.Minute(), sourceTime.Second(), sourceTime.Nanosecond(), date.Location())

	return newDateTime
}

// LoadLocationOrUTC resolves an IANA timezone name, falling back to UTC when it is empty or unknown
func LoadLocationOrUTC(name string) *time.Location {
	if name == "" {
		return time.UTC
	}

	location, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}

	return location
}

// StartOfDay truncates t to midnight in its own location
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
