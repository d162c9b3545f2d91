package frame

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bramburn/gnssgo-sdr/internal/ephemeris"
)

// setField writes the low n bits of raw into data[startD-1 : startD-1+n],
// MSB first — the inverse of field()'s extraction, using the same
// D-numbering (ICD Table 20-I).
func setField(data *[24]int, startD, n int, raw uint32) {
	for j := 0; j < n; j++ {
		bit := (raw >> uint(n-1-j)) & 1
		data[startD-1+j] = int(bit)
	}
}

// toBits returns the two's-complement n-bit pattern of a signed raw
// value, ready for setField.
func toBits(v int32, n int) uint32 {
	return uint32(v) & ((1 << uint(n)) - 1)
}

// split32 breaks a 32-bit field into the 8-bit MSB / 24-bit LSB halves
// the GPS ICD splits ephemeris doubles-words across two words.
func split32(bits32 uint32) (msb8, lsb24 uint32) {
	return bits32 >> 24, bits32 & 0xFFFFFF
}

// buildSubframeWithData builds a full, parity-valid 300-bit subframe
// carrying the given 8 data words (words 3-10) instead of all-zero
// filler, so tests can exercise real orbital/clock field extraction.
func buildSubframeWithData(id int, towCount uint32, dataWords [8][24]int) []int8 {
	var out []int8
	prevD29, prevD30 := 0, 0

	var tlmData [24]int
	tlmData[0], tlmData[4], tlmData[6], tlmData[7] = 1, 1, 1, 1
	bits, d29, d30 := buildWordBits(tlmData, prevD29, prevD30)
	out = append(out, bits...)
	prevD29, prevD30 = d29, d30

	var howData [24]int
	for i := 0; i < 17; i++ {
		bit := (towCount >> uint(16-i)) & 1
		howData[i] = int(bit)
	}
	for i := 0; i < 3; i++ {
		bit := (uint32(id) >> uint(2-i)) & 1
		howData[19+i] = int(bit)
	}
	bits, d29, d30 = buildWordBits(howData, prevD29, prevD30)
	out = append(out, bits...)
	prevD29, prevD30 = d29, d30

	for w := 2; w < subframeWords; w++ {
		// The satellite transmits D1-D24 complemented whenever the
		// previous word's D30 was set; buildWordBits expects its data
		// argument already in that transmitted form (see
		// TestCheckParityHandlesPreviousD30Inversion).
		d := dataWords[w-2]
		if prevD30 == 1 {
			for i := range d {
				d[i] ^= 1
			}
		}
		bits, d29, d30 = buildWordBits(d, prevD29, prevD30)
		out = append(out, bits...)
		prevD29, prevD30 = d29, d30
	}

	return out
}

func decodeOneSubframe(t *testing.T, id int, towCount uint32, dataWords [8][24]int) *ephemeris.Subframe {
	t.Helper()
	sfBits := buildSubframeWithData(id, towCount, dataWords)
	d := NewDecoder()
	var sampleIdx int64
	for _, b := range sfBits {
		sampleIdx++
		if sf, ok := d.Push(b, sampleIdx); ok {
			return sf
		}
	}
	t.Fatal("decoder never assembled the synthetic subframe")
	return nil
}

func TestSubframeRoundTripClockCorrection(t *testing.T) {
	const (
		wnRaw   = 512
		iodcRaw = 557 // MSB=2, LSB=45, matches IODE used in the ephemeris round trip
		tgdRaw  = -20
		tocRaw  = 13050 // * 16 = 208800
		af2Raw  = 0
		af1Raw  = 100
		af0Raw  = 257731
	)
	iodcMSB := uint32(iodcRaw) >> 8
	iodcLSB := uint32(iodcRaw) & 0xFF

	var words [8][24]int
	setField(&words[0], 1, 10, wnRaw)
	setField(&words[0], 23, 2, iodcMSB)
	setField(&words[4], 17, 8, toBits(tgdRaw, 8))
	setField(&words[5], 1, 8, iodcLSB)
	setField(&words[5], 9, 16, tocRaw)
	setField(&words[6], 1, 8, toBits(af2Raw, 8))
	setField(&words[6], 9, 16, toBits(af1Raw, 16))
	setField(&words[7], 1, 22, toBits(af0Raw, 22))

	sf := decodeOneSubframe(t, 1, 1000, words)
	cc := DecodeClockCorrection(sf)
	require.NotNil(t, cc)

	require.Equal(t, wnRaw, cc.WN)
	require.EqualValues(t, iodcRaw, cc.IODC)
	require.Equal(t, float64(tgdRaw)*math.Pow(2, -31), cc.TGD)
	require.Equal(t, float64(tocRaw)*math.Pow(2, 4), cc.Toc)
	require.Equal(t, float64(af2Raw)*math.Pow(2, -55), cc.Af2)
	require.Equal(t, float64(af1Raw)*math.Pow(2, -43), cc.Af1)
	require.Equal(t, float64(af0Raw)*math.Pow(2, -31), cc.Af0)
}

func TestSubframeRoundTripEphemerisParts2And3(t *testing.T) {
	const (
		iodeRaw      = 45
		crsRaw       = 1200
		deltaNRaw    = 85
		m0Raw        = 123456789
		cucRaw       = -300
		eRaw         = 5000000
		cusRaw       = 450
		sqrtARaw     = 2712450000
		toeRaw       = 16200
		cicRaw       = -75
		omega0Raw    = -987654321
		cisRaw       = 60
		i0Raw        = 500000000
		crcRaw       = 2100
		omegaRaw     = 300000000
		omegaDotRaw  = -1200
		idotRaw      = 200
	)

	m0MSB, m0LSB := split32(uint32(int32(m0Raw)))
	eMSB, eLSB := split32(uint32(eRaw))
	sqrtAMSB, sqrtALSB := split32(uint32(sqrtARaw))

	var words2 [8][24]int
	setField(&words2[0], 1, 8, iodeRaw)
	setField(&words2[0], 9, 16, toBits(crsRaw, 16))
	setField(&words2[1], 1, 16, toBits(deltaNRaw, 16))
	setField(&words2[1], 17, 8, m0MSB)
	setField(&words2[2], 1, 24, m0LSB)
	setField(&words2[3], 1, 16, toBits(cucRaw, 16))
	setField(&words2[3], 17, 8, eMSB)
	setField(&words2[4], 1, 24, eLSB)
	setField(&words2[5], 1, 16, toBits(cusRaw, 16))
	setField(&words2[5], 17, 8, sqrtAMSB)
	setField(&words2[6], 1, 24, sqrtALSB)
	setField(&words2[7], 1, 16, toeRaw)

	sf2 := decodeOneSubframe(t, 2, 1001, words2)
	params := DecodeEphemerisPart2(sf2)
	require.NotNil(t, params)

	require.EqualValues(t, iodeRaw, params.IODE)
	require.Equal(t, float64(crsRaw)*math.Pow(2, -5), params.Crs)
	require.Equal(t, float64(deltaNRaw)*math.Pow(2, -43)*math.Pi, params.DeltaN)
	require.Equal(t, float64(m0Raw)*math.Pow(2, -31)*math.Pi, params.M0)
	require.Equal(t, float64(cucRaw)*math.Pow(2, -29), params.Cuc)
	require.Equal(t, float64(eRaw)*math.Pow(2, -33), params.E)
	require.Equal(t, float64(cusRaw)*math.Pow(2, -29), params.Cus)
	require.Equal(t, float64(sqrtARaw)*math.Pow(2, -19), params.SqrtA)
	require.Equal(t, float64(toeRaw)*math.Pow(2, 4), params.Toe)

	omega0MSB, omega0LSB := split32(toBits(omega0Raw, 32))
	i0MSB, i0LSB := split32(uint32(int32(i0Raw)))
	omegaMSB, omegaLSB := split32(uint32(int32(omegaRaw)))

	var words3 [8][24]int
	setField(&words3[0], 1, 16, toBits(cicRaw, 16))
	setField(&words3[0], 17, 8, omega0MSB)
	setField(&words3[1], 1, 24, omega0LSB)
	setField(&words3[2], 1, 16, toBits(cisRaw, 16))
	setField(&words3[2], 17, 8, i0MSB)
	setField(&words3[3], 1, 24, i0LSB)
	setField(&words3[4], 1, 16, toBits(crcRaw, 16))
	setField(&words3[4], 17, 8, omegaMSB)
	setField(&words3[5], 1, 24, omegaLSB)
	setField(&words3[6], 1, 24, toBits(omegaDotRaw, 24))
	setField(&words3[7], 1, 8, iodeRaw)
	setField(&words3[7], 9, 14, toBits(idotRaw, 14))

	sf3 := decodeOneSubframe(t, 3, 1002, words3)
	iode3 := DecodeEphemerisPart3(sf3, params)

	require.EqualValues(t, iodeRaw, iode3)
	require.Equal(t, float64(cicRaw)*math.Pow(2, -29), params.Cic)
	require.Equal(t, float64(omega0Raw)*math.Pow(2, -31)*math.Pi, params.Omega0)
	require.Equal(t, float64(cisRaw)*math.Pow(2, -29), params.Cis)
	require.Equal(t, float64(i0Raw)*math.Pow(2, -31)*math.Pi, params.I0)
	require.Equal(t, float64(crcRaw)*math.Pow(2, -5), params.Crc)
	require.Equal(t, float64(omegaRaw)*math.Pow(2, -31)*math.Pi, params.Omega)
	require.Equal(t, float64(omegaDotRaw)*math.Pow(2, -43)*math.Pi, params.OmegaDot)
	require.Equal(t, float64(idotRaw)*math.Pow(2, -43)*math.Pi, params.IDOT)
}
