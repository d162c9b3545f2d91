package frame

import (
	"math"

	"github.com/bramburn/gnssgo-sdr/internal/ephemeris"
)

const semicircleToRad = math.Pi

// field reads an n-bit field starting at data bit startD (1-indexed, ICD
// D-numbering) out of a packed word (see decoder.go packWord).
func field(word uint32, startD, n int) uint32 {
	shift := 27 - startD - n
	return (word >> uint(shift)) & ((1 << uint(n)) - 1)
}

func fieldS(word uint32, startD, n int) int32 {
	return twosComplement(field(word, startD, n), n)
}

func combine(msb uint32, msbBits int, lsb uint32, lsbBits int) uint32 {
	return (msb << uint(lsbBits)) | lsb
}

// DecodeClockCorrection parses subframe 1 into the clock-correction
// polynomial (spec §3, "clock_correction"; §4.4, "Ephemeris validation").
// Field layout and scale factors follow the standard GPS ICD subframe-1
// word assignments (IS-GPS-200 Table 20-I).
func DecodeClockCorrection(sf *ephemeris.Subframe) *ephemeris.ClockCorrection {
	w3, w7, w8, w9, w10 := sf.Words[2], sf.Words[6], sf.Words[7], sf.Words[8], sf.Words[9]

	wn := field(w3, 1, 10)
	iodcMSB := field(w3, 23, 2)
	iodcLSB := field(w8, 1, 8)
	iodc := uint16(combine(iodcMSB, 2, iodcLSB, 8))

	tgd := scale(fieldS(w7, 17, 8), -31)
	toc := scaleU(field(w8, 9, 16), 4)
	af2 := scale(fieldS(w9, 1, 8), -55)
	af1 := scale(fieldS(w9, 9, 16), -43)
	af0 := scale(fieldS(w10, 1, 22), -31)

	return &ephemeris.ClockCorrection{
		Af0:  af0,
		Af1:  af1,
		Af2:  af2,
		TGD:  tgd,
		Toc:  toc,
		WN:   int(wn),
		IODC: iodc,
	}
}

// DecodeEphemerisPart2 parses subframe 2 into the first half of the
// orbital parameter set (spec §3, "Ephemeris parameters").
func DecodeEphemerisPart2(sf *ephemeris.Subframe) *ephemeris.Parameters {
	w3, w4, w5, w6, w7, w8, w9, w10 := sf.Words[2], sf.Words[3], sf.Words[4], sf.Words[5], sf.Words[6], sf.Words[7], sf.Words[8], sf.Words[9]

	iode := uint16(field(w3, 1, 8))
	crs := scale(fieldS(w3, 9, 16), -5)

	deltaN := scale(fieldS(w4, 1, 16), -43) * semicircleToRad
	m0MSB := field(w4, 17, 8)
	m0LSB := field(w5, 1, 24)
	m0 := float64(twosComplement(combine(m0MSB, 8, m0LSB, 24), 32)) * math.Pow(2, -31) * semicircleToRad

	cuc := scale(fieldS(w6, 1, 16), -29)
	eMSB := field(w6, 17, 8)
	eLSB := field(w7, 1, 24)
	e := scaleU(combine(eMSB, 8, eLSB, 24), -33)

	cus := scale(fieldS(w8, 1, 16), -29)
	sqrtAMSB := field(w8, 17, 8)
	sqrtALSB := field(w9, 1, 24)
	sqrtA := scaleU(combine(sqrtAMSB, 8, sqrtALSB, 24), -19)

	toe := scaleU(field(w10, 1, 16), 4)

	return &ephemeris.Parameters{
		IODE:   iode,
		Crs:    crs,
		DeltaN: deltaN,
		M0:     m0,
		Cuc:    cuc,
		E:      e,
		Cus:    cus,
		SqrtA:  sqrtA,
		Toe:    toe,
	}
}

// DecodeEphemerisPart3 parses subframe 3 and fills the remaining orbital
// parameters into params (which should already hold the subframe-2
// fields decoded by DecodeEphemerisPart2). It returns subframe 3's own
// IODE separately so the caller can check it against subframe 2's IODE
// (spec §4.4, "Ephemeris validation") before trusting the merge.
func DecodeEphemerisPart3(sf *ephemeris.Subframe, params *ephemeris.Parameters) (iode3 uint16) {
	w3, w4, w5, w6, w7, w8, w9, w10 := sf.Words[2], sf.Words[3], sf.Words[4], sf.Words[5], sf.Words[6], sf.Words[7], sf.Words[8], sf.Words[9]

	params.Cic = scale(fieldS(w3, 1, 16), -29)
	omega0MSB := field(w3, 17, 8)
	omega0LSB := field(w4, 1, 24)
	params.Omega0 = float64(twosComplement(combine(omega0MSB, 8, omega0LSB, 24), 32)) * math.Pow(2, -31) * semicircleToRad

	params.Cis = scale(fieldS(w5, 1, 16), -29)
	i0MSB := field(w5, 17, 8)
	i0LSB := field(w6, 1, 24)
	params.I0 = float64(twosComplement(combine(i0MSB, 8, i0LSB, 24), 32)) * math.Pow(2, -31) * semicircleToRad

	params.Crc = scale(fieldS(w7, 1, 16), -5)
	omegaMSB := field(w7, 17, 8)
	omegaLSB := field(w8, 1, 24)
	params.Omega = float64(twosComplement(combine(omegaMSB, 8, omegaLSB, 24), 32)) * math.Pow(2, -31) * semicircleToRad

	params.OmegaDot = scale(fieldS(w9, 1, 24), -43) * semicircleToRad

	iode := uint16(field(w10, 1, 8))
	params.IDOT = scale(fieldS(w10, 9, 14), -43) * semicircleToRad
	return iode
}
