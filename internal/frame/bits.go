// Package frame implements the GPS L1 C/A frame decoder (spec §4.4):
// TLM preamble hunt with polarity resolution, the standard GPS parity
// check, subframe assembly, and ephemeris parameter extraction.
//
// Bit extraction follows the teacher's pkg/gnssgo/rtcm GetBitU/GetBits
// idiom (itself grounded on FengXuebin-gnssgo/src/common.go), adapted
// here to pull bits out of a []int8 (±1) bit stream instead of a byte
// buffer, since that's the representation frame.Decoder is fed.
package frame

// getBitsU reads an n-bit (n<=32) unsigned field starting at bit offset
// pos out of a ±1 bit stream, treating +1 as bit value 1 and -1 as 0.
// Used by the HOW decode in decoder.go for the unsigned TOW
// count/subframe-ID/reserved fields; the orbital parameters' signed
// fields arrive in a different packed-word representation and go
// through field/fieldS in ephemeris.go instead.
func getBitsU(bits []int8, pos, n int) uint32 {
	var v uint32
	for i := pos; i < pos+n; i++ {
		var b uint32
		if bits[i] > 0 {
			b = 1
		}
		v = (v << 1) | b
	}
	return v
}
