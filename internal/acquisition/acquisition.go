// Package acquisition implements the acquisition engine (spec §4.1): an
// FFT-accelerated parallel-code-phase search across a Doppler bin bank,
// deciding satellite visibility from the peak-to-side-lobe ratio of the
// cross-correlation between the PRN replica and the incoming samples.
//
// FFT cross-correlation uses gonum's complex FFT (gonum.org/v1/gonum/dsp
// /fourier), the library other SDR-adjacent repositories in this corpus
// depend on for exactly this kind of spectral processing (see
// DESIGN.md/SPEC_FULL.md domain-stack table).
package acquisition

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/bramburn/gnssgo-sdr/internal/prncode"
	"github.com/bramburn/gnssgo-sdr/internal/samples"
)

const (
	// FFTLength is the zero-padded transform length (spec §9: "zero-pad
	// to 2048 (preferred)").
	FFTLength = 2048

	dopplerRangeHz = 10_000.0
	dopplerStepHz  = 500.0

	// DefaultKIncoh is the number of consecutive milliseconds incoherently
	// summed (spec §4.1).
	DefaultKIncoh = 10

	// PSRThreshold is the minimum peak-to-side-lobe ratio to declare
	// acquisition (spec §4.1).
	PSRThreshold = 2.5

	// DefaultRetryInterval bounds how often a given PRN is re-attempted
	// (spec §4.1, "Scheduling").
	DefaultRetryInterval = 10 * time.Second

	// sideLobeExclusionSamples excludes cells within 1 chip (2 samples at
	// 2 samples/chip) of the peak from the side-lobe mean (spec §4.1).
	sideLobeExclusionSamples = 2
)

// Result is the outcome of one acquisition attempt (spec §4.1 contract).
type Result struct {
	Visible           bool
	DopplerHz         float64
	CodePhaseSamples  float64
	PeakToSideRatio   float64
}

// Engine runs acquisition attempts against a sample window, holding the
// precomputed FFT of each PRN's zero-padded conjugate template so repeated
// attempts don't re-transform the replica.
type Engine struct {
	fft          *fourier.CmplxFFT
	templateFFTs map[int][]complex128 // conj(FFT(template)), per PRN
}

// NewEngine precomputes the FFT-domain PRN templates for every code.
func NewEngine(codes map[int]*prncode.Code) *Engine {
	fft := fourier.NewCmplxFFT(FFTLength)
	e := &Engine{
		fft:          fft,
		templateFFTs: make(map[int][]complex128, len(codes)),
	}
	for prn, code := range codes {
		padded := make([]complex128, FFTLength)
		for i, c := range code.Upsample() {
			padded[i] = complex(float64(real(c)), float64(imag(c)))
		}
		spectrum := fft.Coefficients(nil, padded)
		conj := make([]complex128, len(spectrum))
		for i, v := range spectrum {
			conj[i] = complex(real(v), -imag(v))
		}
		e.templateFFTs[prn] = conj
	}
	return e
}

// Attempt runs one acquisition attempt for prn against the most recent
// kIncoh milliseconds held in window (spec §4.1 Algorithm).
func (e *Engine) Attempt(window *samples.Window, prn int, kIncoh int) (Result, error) {
	if kIncoh <= 0 {
		kIncoh = DefaultKIncoh
	}
	if window.Len() < kIncoh {
		return Result{}, fmt.Errorf("acquisition: need %d ms of history, have %d", kIncoh, window.Len())
	}
	templateFFT, ok := e.templateFFTs[prn]
	if !ok {
		return Result{}, fmt.Errorf("acquisition: no PRN template for satellite %d", prn)
	}

	millis := window.Recent(kIncoh)

	numBins := int(2*dopplerRangeHz/dopplerStepHz) + 1
	// accumPower[bin][sampleOffset] is the incoherent sum of per-ms
	// correlation magnitudes for that Doppler bin and code-phase cell.
	accumPower := make([][]float64, numBins)
	for b := range accumPower {
		accumPower[b] = make([]float64, FFTLength)
	}

	wipeoffBuf := make([]complex128, FFTLength)
	for binIdx := 0; binIdx < numBins; binIdx++ {
		dopplerHz := -dopplerRangeHz + float64(binIdx)*dopplerStepHz

		for _, ms := range millis {
			wipeoffCarrier(ms[:], dopplerHz, samples.Rate, wipeoffBuf)

			spectrum := e.fft.Coefficients(nil, wipeoffBuf)
			for i := range spectrum {
				spectrum[i] *= templateFFT[i]
			}
			corr := e.fft.Sequence(nil, spectrum)

			for i, v := range corr {
				mag := cmplxAbs(v)
				accumPower[binIdx][i] += mag
			}
		}
	}

	// Find the global peak cell.
	bestBin, bestOffset := 0, 0
	bestPower := -1.0
	for b := range accumPower {
		for off, p := range accumPower[b] {
			if p > bestPower {
				bestPower = p
				bestBin = b
				bestOffset = off
			}
		}
	}

	psr := peakToSideRatio(accumPower[bestBin], bestOffset, bestPower)
	codePhase := parabolicPeakOffset(accumPower[bestBin], bestOffset)
	dopplerHz := -dopplerRangeHz + float64(bestBin)*dopplerStepHz

	return Result{
		Visible:          psr >= PSRThreshold,
		DopplerHz:        dopplerHz,
		CodePhaseSamples: codePhase,
		PeakToSideRatio:  psr,
	}, nil
}

// wipeoffCarrier multiplies one ms of complex samples by exp(-j*2*pi*f*t),
// writing the zero-padded (to FFTLength) result into dst (spec §4.1 step 1).
func wipeoffCarrier(ms []samples.Sample, dopplerHz, fs float64, dst []complex128) {
	for i := range dst {
		dst[i] = 0
	}
	omega := -2 * math.Pi * dopplerHz / fs
	for i, s := range ms {
		phase := omega * float64(i)
		rot := complex(math.Cos(phase), math.Sin(phase))
		dst[i] = complex(float64(real(s)), float64(imag(s))) * rot
	}
}

func cmplxAbs(v complex128) float64 {
	return math.Hypot(real(v), imag(v))
}

// peakToSideRatio computes the spec §4.1 PSR: peak / mean(cells more than
// sideLobeExclusionSamples from the peak, wrapped circularly).
func peakToSideRatio(power []float64, peakIdx int, peak float64) float64 {
	n := len(power)
	var sum float64
	var count int
	for i, p := range power {
		d := circularDistance(i, peakIdx, n)
		if d > sideLobeExclusionSamples {
			sum += p
			count++
		}
	}
	if count == 0 || sum == 0 {
		return 0
	}
	mean := sum / float64(count)
	if mean == 0 {
		return math.Inf(1)
	}
	return peak / mean
}

func circularDistance(i, j, n int) int {
	d := i - j
	if d < 0 {
		d = -d
	}
	if d > n-d {
		d = n - d
	}
	return d
}

// parabolicPeakOffset refines the integer peak index to a fractional
// sample offset by fitting a parabola through the peak and its two
// neighbours, compensating for the zero-padding-induced peak broadening
// (spec §9).
func parabolicPeakOffset(power []float64, peakIdx int) float64 {
	n := len(power)
	left := power[(peakIdx-1+n)%n]
	center := power[peakIdx]
	right := power[(peakIdx+1)%n]

	denom := left - 2*center + right
	if denom == 0 {
		return float64(peakIdx)
	}
	delta := 0.5 * (left - right) / denom
	return float64(peakIdx) + delta
}
