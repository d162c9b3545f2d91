package ephemeris

import "math"

// WGS-84 / GPS ICD constants (spec §4.5, §9 "Numerics: double precision
// throughout orbit math").
const (
	muGPS      = 3.986005e14    // earth gravitational constant, m^3/s^2
	omegaEarth = 7.2921151467e-5 // earth rotation rate, rad/s

	keplerTolerance = 1e-12
	keplerMaxIter   = 10
)

// SatellitePosition is the result of propagating a satellite's orbit to a
// transmit time (spec §4.5).
type SatellitePosition struct {
	X, Y, Z   float64 // ECEF, meters
	ClockBias float64 // seconds, satellite clock offset relative to GPS time
}

// Position computes the satellite's ECEF position and clock bias at
// transmit time tSV (seconds of GPS time-of-week), following the GPS ICD
// algorithm named step-by-step in spec §4.5.
func Position(params *Parameters, clock *ClockCorrection, tSV float64) SatellitePosition {
	// Step 1: clock correction.
	dtClockInput := tSV - clock.Toc
	deltaT := clock.Af0 + clock.Af1*dtClockInput + clock.Af2*dtClockInput*dtClockInput - clock.TGD
	t := tSV - deltaT

	// Step 2: mean motion.
	a := params.SqrtA * params.SqrtA
	n0 := math.Sqrt(muGPS / (a * a * a))
	n := n0 + params.DeltaN

	// Step 3: mean anomaly.
	tk := t - params.Toe
	m := params.M0 + n*tk

	// Step 4: solve Kepler's equation E - e sin E = M by Newton iteration.
	e := params.E
	ecc := m
	for i := 0; i < keplerMaxIter; i++ {
		f := ecc - e*math.Sin(ecc) - m
		fPrime := 1 - e*math.Cos(ecc)
		delta := f / fPrime
		ecc -= delta
		if math.Abs(delta) < keplerTolerance {
			break
		}
	}

	// Step 5: true anomaly.
	sinE, cosE := math.Sin(ecc), math.Cos(ecc)
	nu := math.Atan2(math.Sqrt(1-e*e)*sinE, cosE-e)

	// Step 6: argument of latitude + harmonic corrections.
	phi := nu + params.Omega
	sin2phi, cos2phi := math.Sin(2*phi), math.Cos(2*phi)

	du := params.Cus*sin2phi + params.Cuc*cos2phi
	dr := params.Crs*sin2phi + params.Crc*cos2phi
	di := params.Cis*sin2phi + params.Cic*cos2phi

	u := phi + du
	r := a*(1-e*cosE) + dr
	i := params.I0 + di + params.IDOT*tk

	// Step 7: position in orbital plane, corrected longitude of ascending node.
	xp := r * math.Cos(u)
	yp := r * math.Sin(u)
	omega := params.Omega0 + (params.OmegaDot-omegaEarth)*tk - omegaEarth*params.Toe

	// Step 8: ECEF.
	sinO, cosO := math.Sin(omega), math.Cos(omega)
	cosI := math.Cos(i)
	sinI := math.Sin(i)

	return SatellitePosition{
		X:         xp*cosO - yp*cosI*sinO,
		Y:         xp*sinO + yp*cosI*cosO,
		Z:         yp * sinI,
		ClockBias: deltaT,
	}
}
