// Package bitsync finds the 20-ms navigation-bit boundary in a tracked
// satellite's prompt chip stream and emits decoded bits once that
// boundary is known (spec §4.3).
//
// The sign-transition histogram is small, self-contained GPS-ICD logic
// with no natural third-party library home in the corpus; it follows
// internal/prncode's precedent of implementing fixed-standard bit
// arithmetic directly against the standard library.
package bitsync

import "github.com/bramburn/gnssgo-sdr/internal/tracking"

const (
	// bitLengthMs is the number of ms chips per navigation bit.
	bitLengthMs = 20

	// minHistoryMs is the minimum history before a boundary can be
	// declared (spec §4.3, "at least 200 ms of data").
	minHistoryMs = 200

	// confidenceRatio is how far the best histogram bin must lead the
	// second-best before the boundary is accepted (spec §4.3).
	confidenceRatio = 3.0
)

// Synchronizer accumulates sign-transition statistics and, once locked,
// assembles 20-ms groups of chips into navigation bits.
type Synchronizer struct {
	histogram [bitLengthMs]int
	msSeen    int

	havePrevChip bool
	prevChip     tracking.Chip

	locked      bool
	bitBoundary int

	groupChips []tracking.Chip // chips accumulated since the last emitted bit
}

// NewSynchronizer returns an unlocked synchronizer.
func NewSynchronizer() *Synchronizer {
	return &Synchronizer{}
}

// Locked reports whether the bit boundary has been determined.
func (s *Synchronizer) Locked() bool { return s.locked }

// Push feeds one millisecond's chip into the synchronizer. If a bit
// boundary hasn't yet been found, it updates the transition histogram and
// returns (0, false). Once locked, it accumulates chips and, every 20 ms
// aligned to the boundary, returns the decoded bit and true.
func (s *Synchronizer) Push(chip tracking.Chip) (bit int8, emitted bool) {
	if !s.locked {
		s.observe(chip)
		return 0, false
	}

	k := s.msSeen
	s.msSeen++
	if len(s.groupChips) == 0 && k%bitLengthMs != s.bitBoundary {
		// Still inside the partially-seen bit before the next boundary.
		return 0, false
	}

	s.groupChips = append(s.groupChips, chip)
	if len(s.groupChips) < bitLengthMs {
		return 0, false
	}

	sum := 0
	for _, c := range s.groupChips {
		sum += int(c)
	}
	s.groupChips = s.groupChips[:0]

	if sum >= 0 {
		return 1, true
	}
	return 0, true
}

func (s *Synchronizer) observe(chip tracking.Chip) {
	if s.havePrevChip && sign(chip) != sign(s.prevChip) {
		s.histogram[s.msSeen%bitLengthMs]++
	}
	s.prevChip = chip
	s.havePrevChip = true
	s.msSeen++

	if s.msSeen < minHistoryMs {
		return
	}

	best, second := topTwo(s.histogram)
	if best.count == 0 {
		return
	}
	if float64(best.count) >= confidenceRatio*float64(second.count) {
		s.locked = true
		s.bitBoundary = best.index
		// Drop the chips already seen before the boundary so bit grouping
		// starts aligned; Push discards the chips that finish the
		// partially-seen bit, up to the next boundary millisecond.
		s.groupChips = s.groupChips[:0]
	}
}

type bucket struct {
	index int
	count int
}

func topTwo(h [bitLengthMs]int) (best, second bucket) {
	best = bucket{index: -1, count: -1}
	second = bucket{index: -1, count: -1}
	for i, c := range h {
		switch {
		case c > best.count:
			second = best
			best = bucket{index: i, count: c}
		case c > second.count:
			second = bucket{index: i, count: c}
		}
	}
	if second.count < 0 {
		second.count = 0
	}
	return best, second
}

func sign(c tracking.Chip) int {
	if c >= 0 {
		return 1
	}
	return -1
}
