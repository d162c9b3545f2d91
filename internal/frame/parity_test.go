package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// wordWithParity builds a 30-bit word array from 24 transmitted data bits
// (0/1, D1..D24) and fills in correct D25-D30 using the same equations
// checkParity verifies (over the source bits, i.e. D1..D24 with the
// previous D30's complement undone), so tests can construct words
// guaranteed to pass.
func wordWithParity(data [24]int, prevD29, prevD30 int) [30]int {
	xor := func(idx ...int) int {
		v := 0
		for _, i := range idx {
			v ^= data[i-1] ^ prevD30
		}
		return v
	}
	p25 := prevD29 ^ xor(1, 2, 3, 5, 6, 10, 11, 12, 13, 14, 17, 18, 20, 23)
	p26 := prevD30 ^ xor(2, 3, 4, 6, 7, 11, 12, 13, 14, 15, 18, 19, 21, 24)
	p27 := prevD29 ^ xor(1, 3, 4, 5, 7, 8, 12, 13, 14, 15, 16, 19, 20, 22)
	p28 := prevD30 ^ xor(2, 4, 5, 6, 8, 9, 13, 14, 15, 16, 17, 20, 21, 23)
	p29 := prevD30 ^ xor(1, 3, 5, 6, 7, 9, 10, 14, 15, 16, 17, 18, 21, 22, 24)
	p30 := prevD29 ^ xor(3, 5, 6, 8, 9, 10, 11, 13, 15, 19, 22, 23, 24)

	var w [30]int
	copy(w[:24], data[:])
	w[24], w[25], w[26], w[27], w[28], w[29] = p25, p26, p27, p28, p29, p30
	return w
}

func TestCheckParityAcceptsWellFormedWord(t *testing.T) {
	var data [24]int
	data[0], data[5], data[10] = 1, 1, 1
	word := wordWithParity(data, 0, 0)

	got, _, _, ok := checkParity(word, 0, 0)
	assert.True(t, ok, "expected parity to pass for a correctly-built word")
	assert.Equal(t, data, got)
}

func TestCheckParityRejectsCorruptedWord(t *testing.T) {
	var data [24]int
	data[2] = 1
	word := wordWithParity(data, 0, 0)
	word[3] ^= 1 // flip one data bit after parity was computed

	_, _, _, ok := checkParity(word, 0, 0)
	assert.False(t, ok, "expected parity to fail for a corrupted word")
}

func TestCheckParityHandlesPreviousD30Inversion(t *testing.T) {
	var trueData [24]int
	trueData[1], trueData[7] = 1, 1

	// The satellite complements D1-D24 before transmission whenever the
	// previous word's D30 was 1.
	var transmitted [24]int
	for i, b := range trueData {
		transmitted[i] = b ^ 1
	}
	word := wordWithParity(transmitted, 1, 1)

	got, _, _, ok := checkParity(word, 1, 1)
	assert.True(t, ok, "expected parity to pass")
	assert.Equal(t, trueData, got, "decoded data should be un-inverted")
}
