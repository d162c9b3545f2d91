// Package prncode generates the GPS L1 C/A Gold codes: the 1023-chip
// pseudo-random sequences, one per PRN ID 1..32, produced by two 10-stage
// LFSRs with a satellite-specific G2 tap pair. The codes are computed once
// at process start and are immutable thereafter (spec data model, "PRN
// Code").
//
// There is no third-party library in the corpus for Gold-code generation;
// it is ~30 lines of bit-shifting against a fixed standard (the GPS ICD),
// so it is implemented directly against the standard library.
package prncode

import "fmt"

// ChipsPerCode is the length of one C/A code period.
const ChipsPerCode = 1023

// g2Delay gives, for PRN 1..32, the G2 shift-register tap delay (in chips)
// that produces that satellite's code. Values are the standard GPS ICD
// G2 delay table.
var g2Delay = [33]int{
	0, // unused, PRN is 1-indexed
	5, 6, 7, 8, 17, 18, 139, 140, 141, 251,
	252, 254, 255, 256, 257, 258, 469, 470, 471, 472,
	473, 474, 509, 512, 513, 514, 515, 516, 859, 860,
	861, 862,
}

// Code is the immutable ±1 chip sequence for one satellite.
type Code struct {
	PRN   int
	Chips [ChipsPerCode]int8
}

// Generate returns the C/A code for the given PRN ID (1..32).
func Generate(prn int) (*Code, error) {
	if prn < 1 || prn > 32 {
		return nil, fmt.Errorf("prncode: invalid PRN %d, want 1..32", prn)
	}
	delay := g2Delay[prn]

	g1 := newLFSR10(g1Taps)
	g2 := newLFSR10(g2Taps)

	// The G2 code is resampled with a fixed delay to produce the per-PRN
	// Gold code; G2 is delayed by `delay` chips before combining with G1.
	g2Delayed := make([]int8, ChipsPerCode)
	for i := 0; i < ChipsPerCode; i++ {
		g2Delayed[i] = g2.output()
		g2.shift()
	}

	code := &Code{PRN: prn}
	for i := 0; i < ChipsPerCode; i++ {
		g1Bit := g1.output()
		g1.shift()
		g2Bit := g2Delayed[(i+ChipsPerCode-delay)%ChipsPerCode]
		code.Chips[i] = g1Bit * g2Bit
	}
	return code, nil
}

// GenerateAll returns the codes for all 32 PRNs, keyed by PRN ID.
func GenerateAll() (map[int]*Code, error) {
	codes := make(map[int]*Code, 32)
	for prn := 1; prn <= 32; prn++ {
		c, err := Generate(prn)
		if err != nil {
			return nil, err
		}
		codes[prn] = c
	}
	return codes, nil
}

// Upsample expands the 1023-chip ±1 code to a length-2046 ±1 template at
// 2 samples/chip, the correlation reference used by acquisition and
// tracking (spec §3, "upsampled to 2 samples/chip").
func (c *Code) Upsample() []complex64 {
	out := make([]complex64, ChipsPerCode*2)
	for i, chip := range c.Chips {
		v := complex64(complex(float32(chip), 0))
		out[2*i] = v
		out[2*i+1] = v
	}
	return out
}

// g1Taps and g2Taps are the feedback tap positions (1-indexed, per the ICD
// polynomial notation) for the two GPS C/A generator polynomials:
//
//	G1(x) = 1 + x^3 + x^10
//	G2(x) = 1 + x^2 + x^3 + x^6 + x^8 + x^9 + x^10
var g1Taps = []int{3, 10}
var g2Taps = []int{2, 3, 6, 8, 9, 10}

// lfsr10 is a 10-stage linear feedback shift register with all-ones initial
// state, as specified for both G1 and G2 generators.
type lfsr10 struct {
	state [10]int8 // state[0] is stage 1 (output tap), state[9] is stage 10
	taps  []int
}

func newLFSR10(taps []int) *lfsr10 {
	r := &lfsr10{taps: taps}
	for i := range r.state {
		r.state[i] = -1 // bit value 1 in the ±1 representation
	}
	return r
}

// output returns the current chip value (±1) from stage 10.
func (r *lfsr10) output() int8 {
	if r.state[9] == 1 {
		return 1
	}
	return -1
}

// shift advances the register by one chip, feeding back the XOR of the
// tapped stages into stage 1.
func (r *lfsr10) shift() {
	var fb int8
	for _, tap := range r.taps {
		fb ^= toBit(r.state[tap-1])
	}
	var next [10]int8
	next[0] = fromBit(fb)
	copy(next[1:], r.state[:9])
	r.state = next
}

func toBit(v int8) int8 {
	if v == 1 {
		return 0
	}
	return 1
}

func fromBit(b int8) int8 {
	if b == 0 {
		return 1
	}
	return -1
}
