package frame

// checkParity implements the standard GPS ICD word parity check (spec
// §4.4, "Parity"): given a 30-bit word (as 0/1 ints, MSB first) and the
// previous word's last two bits D29*, D30*, it un-inverts the data bits
// if D30* is set, verifies the six parity bits, and returns the 24
// corrected data bits plus D29/D30 for the next word's check.
func checkParity(word [30]int, prevD29, prevD30 int) (data [24]int, d29, d30 int, ok bool) {
	// d[i] is D(i+1) in ICD 1-based notation. The satellite complements
	// D1-D24 when the previous word's D30* is set; the parity equations
	// operate on the source data bits, so that complement is undone first.
	d := word
	if prevD30 == 1 {
		for i := 0; i < 24; i++ {
			d[i] ^= 1
		}
	}

	xor := func(idx ...int) int {
		v := 0
		for _, i := range idx {
			v ^= d[i-1]
		}
		return v
	}

	p25 := prevD29 ^ xor(1, 2, 3, 5, 6, 10, 11, 12, 13, 14, 17, 18, 20, 23)
	p26 := prevD30 ^ xor(2, 3, 4, 6, 7, 11, 12, 13, 14, 15, 18, 19, 21, 24)
	p27 := prevD29 ^ xor(1, 3, 4, 5, 7, 8, 12, 13, 14, 15, 16, 19, 20, 22)
	p28 := prevD30 ^ xor(2, 4, 5, 6, 8, 9, 13, 14, 15, 16, 17, 20, 21, 23)
	p29 := prevD30 ^ xor(1, 3, 5, 6, 7, 9, 10, 14, 15, 16, 17, 18, 21, 22, 24)
	p30 := prevD29 ^ xor(3, 5, 6, 8, 9, 10, 11, 13, 15, 19, 22, 23, 24)

	computed := [6]int{p25, p26, p27, p28, p29, p30}
	received := [6]int{word[24], word[25], word[26], word[27], word[28], word[29]}
	if computed != received {
		return data, 0, 0, false
	}

	copy(data[:], d[:24])

	return data, p29, p30, true
}
