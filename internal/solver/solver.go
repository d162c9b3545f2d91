// Package solver implements the Gauss-Newton navigation solve (spec
// §4.6): given >=4 pseudorange tuples sharing a common receive epoch, it
// estimates receiver ECEF position and clock bias, then converts to
// geodetic coordinates.
//
// The iteration shape (unweighted residual/Jacobian, normal-equations
// solve, 1e-4 convergence over at most a fixed iteration count) mirrors
// the teacher corpus's RTKLIB-derived point-positioning solver
// (FengXuebin-gnssgo/src/pntpos.go EstimatePos); here the normal
// equations are solved with gonum's linear algebra rather than a
// hand-rolled LSQ, per the domain-stack wiring in SPEC_FULL.md.
package solver

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// CLight is the speed of light in m/s.
const CLight = 299792458.0

const (
	maxIterations = 20
	convergenceTol = 1e-4
)

// ErrDidNotConverge is returned when the iteration fails to converge
// within maxIterations (spec §4.6, "DidNotConverge").
var ErrDidNotConverge = errors.New("solver: did not converge")

// Measurement is one satellite's pseudorange input to the solver (spec
// §4.6 contract).
type Measurement struct {
	X, Y, Z       float64 // satellite ECEF position, meters
	TTransmitted  float64 // seconds
	TReceived     float64 // seconds, common across all measurements in an epoch
}

// Solution is the solver's estimated receiver state (spec §3,
// "Solution").
type Solution struct {
	ClockBiasS     float64
	X, Y, Z        float64 // ECEF meters
	LatDeg, LonDeg float64
	HeightM        float64
}

// Solve runs Gauss-Newton iteration from beta0=(0,0,0,0) to estimate
// (x,y,z,clock_bias) from >=4 pseudorange measurements (spec §4.6).
func Solve(measurements []Measurement) (Solution, error) {
	n := len(measurements)
	if n < 4 {
		return Solution{}, errors.New("solver: need at least 4 measurements")
	}

	// x, y, z, c*b: the clock bias is carried in meters so the normal
	// equations stay well conditioned; ClockBiasS converts it to seconds.
	beta := mat.NewVecDense(4, nil)

	residual := mat.NewVecDense(n, nil)
	jac := mat.NewDense(n, 4, nil)

	for iter := 0; iter < maxIterations; iter++ {
		x, y, z, cb := beta.AtVec(0), beta.AtVec(1), beta.AtVec(2), beta.AtVec(3)

		for i, m := range measurements {
			dx := x - m.X
			dy := y - m.Y
			dz := z - m.Z
			rangeEst := math.Sqrt(dx*dx + dy*dy + dz*dz)
			if rangeEst == 0 {
				rangeEst = 1e-9
			}
			r := rangeEst - CLight*(m.TReceived-m.TTransmitted) - cb
			residual.SetVec(i, r)

			jac.Set(i, 0, dx/rangeEst)
			jac.Set(i, 1, dy/rangeEst)
			jac.Set(i, 2, dz/rangeEst)
			jac.Set(i, 3, -1)
		}

		var jacT mat.Dense
		jacT.CloneFrom(jac.T())

		var jtj mat.Dense
		jtj.Mul(&jacT, jac)

		var jtr mat.VecDense
		jtr.MulVec(&jacT, residual)

		var jtjInv mat.Dense
		if err := jtjInv.Inverse(&jtj); err != nil {
			return Solution{}, ErrDidNotConverge
		}

		var delta mat.VecDense
		delta.MulVec(&jtjInv, &jtr)

		var newBeta mat.VecDense
		newBeta.SubVec(beta, &delta)

		norm := 0.0
		for i := 0; i < 4; i++ {
			d := newBeta.AtVec(i) - beta.AtVec(i)
			norm += d * d
		}
		norm = math.Sqrt(norm)

		beta = &newBeta

		if norm < convergenceTol {
			sol := Solution{
				X:         beta.AtVec(0),
				Y:         beta.AtVec(1),
				Z:         beta.AtVec(2),
				ClockBiasS: beta.AtVec(3) / CLight,
			}
			sol.LatDeg, sol.LonDeg, sol.HeightM = ECEFToGeodetic(sol.X, sol.Y, sol.Z)
			return sol, nil
		}
	}

	return Solution{}, ErrDidNotConverge
}
