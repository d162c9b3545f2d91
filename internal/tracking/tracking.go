// Package tracking implements the per-satellite tracking loop (spec
// §4.2): early/prompt/late correlators, non-coherent code discriminator,
// cross-product FLL and Costas PLL carrier discriminators, and the loop
// filters that turn those into NCO rate updates.
//
// There is no tracking-loop library in the corpus; the control-loop math
// is standard GPS-receiver DSP (~150 lines against the GPS ICD / classic
// DLL-PLL literature) and is implemented directly against the standard
// library, in the same spirit as internal/prncode's Gold-code generator.
package tracking

import (
	"math"

	"github.com/bramburn/gnssgo-sdr/internal/prncode"
	"github.com/bramburn/gnssgo-sdr/internal/samples"
)

const (
	// correlatorSpacingSamples is the E/L spacing: 0.5 chip = 1 sample at
	// 2 samples/chip (spec §4.2, "Structure").
	correlatorSpacingSamples = 1.0

	integrationTimeS = 0.001 // one ms per update (spec §4.2, "Contract")

	dllBandwidthHz       = 1.0
	fllBandwidthPullInHz = 10.0
	fllBandwidthLockedHz = 2.0
	pllBandwidthHz       = 15.0

	// lockTransitionMs is how long FLL assist runs at its wider pull-in
	// bandwidth before narrowing (spec §4.2, "Loop filters").
	lockTransitionMs = 1000

	// lossOfLockWindow is how many recent |P| samples feed the
	// loss-of-lock statistic (spec §4.2, "Loss of lock").
	lossOfLockWindow = 50

	// lossOfLockFactor scales the early/late variance threshold.
	lossOfLockFactor = 1.5

	// maxCodePhaseJumpSamples is the largest single-ms code-phase jump
	// tolerated before declaring loss of lock (spec §4.2).
	maxCodePhaseJumpSamples = 2.0
)

// Chip is the sign of the integrated prompt in-phase correlator, the
// tracking engine's per-ms output to the bit synchronizer (spec §4.2,
// "Emitted chip").
type Chip int8

const (
	ChipNegative Chip = -1
	ChipPositive Chip = 1
)

// State is one PRN's tracking-loop state, carried ms-to-ms (spec §3,
// "Tracking State").
type State struct {
	PRN int

	CarrierDopplerHz          float64
	CarrierPhaseRad           float64
	CodePhaseSamples          float64
	CodePhaseRateSamplesPerMs float64

	msTracked int
	prevP     complex128
	havePrevP bool

	promptMagHistory []float64
	earlyMagHistory  []float64
	lateMagHistory   []float64

	code *prncode.Code
}

// NewState seeds a tracking loop from an acquisition result (spec §4.2,
// handoff from acquisition).
func NewState(code *prncode.Code, dopplerHz, codePhaseSamples float64) *State {
	return &State{
		PRN:                       code.PRN,
		CarrierDopplerHz:          dopplerHz,
		CodePhaseSamples:          codePhaseSamples,
		CodePhaseRateSamplesPerMs: float64(samples.PerMillisecond),
		code:                      code,
	}
}

// Update consumes one millisecond of samples and returns the emitted
// chip. ok is false if this update caused loss of lock, in which case the
// caller should demote the PRN back to the acquisition pool.
func (s *State) Update(ms samples.Millisecond) (chip Chip, ok bool) {
	prevCodePhase := s.CodePhaseSamples

	early := correlate(ms, s.code, s.CodePhaseSamples-correlatorSpacingSamples, s.CarrierDopplerHz, s.CarrierPhaseRad)
	prompt := correlate(ms, s.code, s.CodePhaseSamples, s.CarrierDopplerHz, s.CarrierPhaseRad)
	late := correlate(ms, s.code, s.CodePhaseSamples+correlatorSpacingSamples, s.CarrierDopplerHz, s.CarrierPhaseRad)

	s.pushHistory(&s.promptMagHistory, cmplxAbs(prompt))
	s.pushHistory(&s.earlyMagHistory, cmplxAbs(early))
	s.pushHistory(&s.lateMagHistory, cmplxAbs(late))

	dCode := codeDiscriminator(early, late)
	s.CodePhaseSamples += dllFilter(dCode)
	for s.CodePhaseSamples >= float64(samples.PerMillisecond) {
		s.CodePhaseSamples -= float64(samples.PerMillisecond)
	}
	for s.CodePhaseSamples < 0 {
		s.CodePhaseSamples += float64(samples.PerMillisecond)
	}

	if s.havePrevP {
		dFreq := freqDiscriminator(prompt, s.prevP, integrationTimeS)
		fllBW := fllBandwidthPullInHz
		if s.msTracked > lockTransitionMs {
			fllBW = fllBandwidthLockedHz
		}
		s.CarrierDopplerHz += fllFilter(dFreq, fllBW)
	}
	s.prevP = prompt
	s.havePrevP = true

	dPhase := phaseDiscriminator(prompt)
	s.CarrierPhaseRad += pllFilter(dPhase)
	s.CarrierPhaseRad += 2 * math.Pi * s.CarrierDopplerHz * integrationTimeS
	s.CarrierPhaseRad = wrapPhase(s.CarrierPhaseRad)

	s.msTracked++

	jump := math.Abs(s.CodePhaseSamples - prevCodePhase)
	if jump > float64(samples.PerMillisecond)/2 {
		jump = float64(samples.PerMillisecond) - jump // wrapped across 0
	}
	if s.lossOfLock() || jump > maxCodePhaseJumpSamples {
		return 0, false
	}

	if real(prompt) >= 0 {
		return ChipPositive, true
	}
	return ChipNegative, true
}

func (s *State) pushHistory(history *[]float64, v float64) {
	*history = append(*history, v)
	if len(*history) > lossOfLockWindow {
		*history = (*history)[len(*history)-lossOfLockWindow:]
	}
}

func (s *State) lossOfLock() bool {
	if len(s.promptMagHistory) < lossOfLockWindow {
		return false
	}
	meanP := mean(s.promptMagHistory)
	threshold := lossOfLockFactor * math.Sqrt(variance(s.earlyMagHistory)+variance(s.lateMagHistory))
	return meanP < threshold
}

// correlate sums sample * replica_prn(t - phase) * exp(-j(2*pi*f*t + theta))
// over one ms of samples (spec §4.2, "Structure").
func correlate(ms samples.Millisecond, code *prncode.Code, codePhase, dopplerHz, carrierPhase float64) complex128 {
	var acc complex128
	n := float64(samples.PerMillisecond)
	omega := 2 * math.Pi * dopplerHz / samples.Rate
	for i, s := range ms {
		chipIdx := int(math.Floor((float64(i)-codePhase)/2.0)) % prncode.ChipsPerCode
		chipIdx = ((chipIdx % prncode.ChipsPerCode) + prncode.ChipsPerCode) % prncode.ChipsPerCode
		replica := float64(code.Chips[chipIdx])

		phase := omega*float64(i) + carrierPhase
		rot := complex(math.Cos(-phase), math.Sin(-phase))

		acc += complex(float64(real(s)), float64(imag(s))) * complex(replica, 0) * rot
	}
	return acc / complex(n, 0)
}

func codeDiscriminator(early, late complex128) float64 {
	e, l := cmplxAbs(early), cmplxAbs(late)
	if e+l == 0 {
		return 0
	}
	return (e - l) / (e + l)
}

func freqDiscriminator(pk, pkMinus1 complex128, dt float64) float64 {
	cross := pk * complexConj(pkMinus1)
	return math.Atan2(imag(cross), real(cross)) / (2 * math.Pi * dt)
}

func phaseDiscriminator(p complex128) float64 {
	if real(p) == 0 {
		if imag(p) == 0 {
			return 0
		}
		return math.Pi / 2
	}
	return math.Atan(imag(p) / real(p))
}

// dllFilter is a first-order loop filter (proportional-only) at the DLL
// bandwidth (spec §4.2, "Loop filters").
func dllFilter(d float64) float64 {
	const gain = 4 * dllBandwidthHz * integrationTimeS
	return gain * d
}

func fllFilter(d, bandwidthHz float64) float64 {
	gain := 4 * bandwidthHz
	return gain * d * integrationTimeS
}

func pllFilter(d float64) float64 {
	const gain = 4 * pllBandwidthHz
	return gain * d * integrationTimeS
}

func wrapPhase(p float64) float64 {
	for p > math.Pi {
		p -= 2 * math.Pi
	}
	for p < -math.Pi {
		p += 2 * math.Pi
	}
	return p
}

func cmplxAbs(v complex128) float64 { return math.Hypot(real(v), imag(v)) }
func complexConj(v complex128) complex128 { return complex(real(v), -imag(v)) }

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

func variance(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	m := mean(v)
	var sum float64
	for _, x := range v {
		d := x - m
		sum += d * d
	}
	return sum / float64(len(v))
}
