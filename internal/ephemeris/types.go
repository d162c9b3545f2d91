// Package ephemeris holds the broadcast navigation parameters decoded
// from subframes 1-3 (spec §3, "Ephemeris parameters") and the physics
// that turns them into a satellite ECEF position and clock bias at a
// given transmit time (spec §4.5).
//
// Field names and the bit-decode shape mirror the teacher's
// pkg/gnssgo/rtcm GPSEphemeris struct (there the same orbital elements
// arrive over RTCM message 1019; here they arrive over the L1 C/A
// navigation message subframes), adapted from RTCM units/scaling to the
// GPS ICD subframe 2/3 units and fields this spec names.
package ephemeris

// Subframe is one validated, parity-checked 300-bit navigation subframe
// (spec §3 "Subframe"; §4.4).
type Subframe struct {
	ID          int    // 1..5, from HOW bits 20-22
	TOWCount    uint32 // HOW time-of-week count (units of 6s), names subframe ID+1's start
	SampleIndex int64  // sample index at which the subframe's last bit was received
	Words       [10]uint32 // each word's low 26 bits hold its 24 data bits, then D29, D30
}

// ClockCorrection is the subframe-1 clock polynomial (spec §3).
type ClockCorrection struct {
	Af0, Af1, Af2 float64 // clock bias/drift/drift-rate (s, s/s, s/s^2)
	TGD           float64 // group delay (s)
	Toc           float64 // clock reference time, seconds of GPS TOW
	WN            int     // GPS week number
	IODC          uint16
}

// Parameters is the orbital parameter set from subframes 2 and 3 (spec
// §3, "Ephemeris parameters").
type Parameters struct {
	SqrtA   float64 // sqrt of semi-major axis, sqrt(m)
	E       float64 // eccentricity
	M0      float64 // mean anomaly at reference time, rad
	Omega   float64 // argument of perigee, rad
	I0      float64 // inclination at reference time, rad
	Omega0  float64 // right ascension at weekly epoch, rad
	DeltaN  float64 // mean motion correction, rad/s
	OmegaDot float64 // rate of right ascension, rad/s
	IDOT    float64 // rate of inclination, rad/s
	Cuc, Cus float64 // argument-of-latitude harmonic corrections, rad
	Crc, Crs float64 // orbit-radius harmonic corrections, m
	Cic, Cis float64 // inclination harmonic corrections, rad
	Toe     float64 // ephemeris reference time, seconds of GPS TOW
	IODE    uint16  // issue of data (ephemeris)
}

// Complete reports whether a-potentially-partial set of subframes 1-3
// yields internally-consistent ephemeris: all three present with a
// matching issue-of-data (spec §4.4, "Ephemeris validation").
func Complete(sf1IODC uint16, sf2IODE, sf3IODE uint16) bool {
	return (sf1IODC & 0xFF) == (sf2IODE & 0xFF) && sf2IODE == sf3IODE
}
