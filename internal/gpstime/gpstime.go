// Package gpstime provides GPS-time arithmetic for the receiver pipeline:
// conversion between wall-clock time, GPS week/time-of-week, and the
// seconds-since-GPS-epoch representation used throughout the solver and
// frame decoder.
package gpstime

import "time"

// SecondsPerWeek is the length of one GPS week.
const SecondsPerWeek = 604800.0

// gpsEpoch is 1980-01-06 00:00:00 UTC, the origin of GPS time. GPS time has
// no leap seconds; this package does not attempt to track the UTC/GPS leap
// second offset, consistent with the receiver's hundreds-of-metres accuracy
// target (spec Non-goals).
var gpsEpoch = time.Date(1980, time.January, 6, 0, 0, 0, 0, time.UTC)

// Time represents an instant in GPS time as a GPS week number and the
// fractional seconds of time-of-week elapsed since its start.
type Time struct {
	Week int
	TOW  float64 // seconds into the week
}

// FromWall converts a wall-clock UTC instant to GPS week/TOW.
func FromWall(t time.Time) Time {
	d := t.UTC().Sub(gpsEpoch).Seconds()
	week := int(d / SecondsPerWeek)
	tow := d - float64(week)*SecondsPerWeek
	return Time{Week: week, TOW: tow}
}

// Wall converts a GPS week/TOW back to a wall-clock UTC instant.
func (t Time) Wall() time.Time {
	secs := float64(t.Week)*SecondsPerWeek + t.TOW
	return gpsEpoch.Add(time.Duration(secs * float64(time.Second)))
}

// Add returns t advanced by d seconds, rolling over the week boundary.
func (t Time) Add(d float64) Time {
	tow := t.TOW + d
	week := t.Week
	for tow >= SecondsPerWeek {
		tow -= SecondsPerWeek
		week++
	}
	for tow < 0 {
		tow += SecondsPerWeek
		week--
	}
	return Time{Week: week, TOW: tow}
}

// Sub returns t - other in seconds, accounting for week rollover the way
// the GPS ICD requires when comparing a transmit time to a receive time
// that straddles a week boundary.
func (t Time) Sub(other Time) float64 {
	d := float64(t.Week-other.Week)*SecondsPerWeek + (t.TOW - other.TOW)
	if d > SecondsPerWeek/2 {
		d -= SecondsPerWeek
	} else if d < -SecondsPerWeek/2 {
		d += SecondsPerWeek
	}
	return d
}

// TOWFromSubframeCount converts the HOW time-of-week count (units of 6 s,
// naming the start of the *next* subframe per the GPS ICD) into seconds of
// time-of-week at that boundary.
func TOWFromSubframeCount(towCount uint32) float64 {
	return float64(towCount) * 6.0
}
