// Package registry owns the process-wide Satellite Registry: the map from
// PRN ID to per-satellite state (spec §2, "Satellite Registry"; §3,
// "SatelliteState"). It is the sole mutable shared structure in the
// pipeline; mutation is confined to the single tick loop (spec §5), so no
// locking is required beyond what the status-endpoint snapshot needs.
package registry

import (
	"time"

	"github.com/google/uuid"

	"github.com/bramburn/gnssgo-sdr/internal/ephemeris"
	"github.com/bramburn/gnssgo-sdr/internal/ring"
)

// Status is a satellite's position in the acquisition -> tracking ->
// bit-sync -> frame-decode -> solvable pipeline (spec §3, Invariants:
// "Status is monotone non-decreasing except for explicit demotion").
type Status int

const (
	Untracked Status = iota
	Acquired
	Tracking
	BitSynced
	FrameSynced
	EphemerisReady
	Lost
)

func (s Status) String() string {
	switch s {
	case Untracked:
		return "Untracked"
	case Acquired:
		return "Acquired"
	case Tracking:
		return "Tracking"
	case BitSynced:
		return "BitSynced"
	case FrameSynced:
		return "FrameSynced"
	case EphemerisReady:
		return "EphemerisReady"
	case Lost:
		return "Lost"
	default:
		return "Unknown"
	}
}

// rank orders statuses for the monotone-advance invariant; Lost is a
// terminal demotion target, not a forward rank.
var rank = map[Status]int{
	Untracked:      0,
	Acquired:       1,
	Tracking:       2,
	BitSynced:      3,
	FrameSynced:    4,
	EphemerisReady: 5,
}

// Correlation is one early/prompt/late correlator triple for one ms.
type Correlation struct {
	Early, Prompt, Late complex64
}

// PseudorangeMeasurement is the tuple produced once a subframe boundary and
// its satellite position are known (spec §3, last_pseudorange_measurement).
type PseudorangeMeasurement struct {
	TReceivedGPS    float64 // seconds of GPS time-of-week
	TTransmittedSV  float64 // seconds of GPS time-of-week
	SVPositionECEF  [3]float64
	MeasuredAtTick  int64
}

// SatelliteState is the full per-PRN state record (spec §3).
type SatelliteState struct {
	PRNID int
	Status Status

	AcquiredAt *time.Time

	CarrierDopplerHz            float64
	CarrierPhaseRad             float64
	CodePhaseSamples            float64
	CodePhaseRateSamplesPerMS   float64

	LastCorrelations *ring.Buffer[Correlation]
	PromptChipStream *ring.Buffer[int8]

	BitBoundaryOffset *int // 0..19, nil if not yet found
	BitPhase          *int8 // +1 or -1, nil if not yet resolved
	BitStream         *ring.Buffer[int8]

	Subframes []ephemeris.Subframe // up to 5 most recent validated

	Ephemeris       *ephemeris.Parameters
	ClockCorrection *ephemeris.ClockCorrection

	LastPseudorange *PseudorangeMeasurement

	// lossOfLockCount tracks consecutive ms of a below-floor prompt
	// correlator magnitude, per spec §3 Invariants (K=50 default).
	lossOfLockCount int
}

func newSatelliteState(prn int) *SatelliteState {
	return &SatelliteState{
		PRNID:            prn,
		Status:           Untracked,
		LastCorrelations: ring.New[Correlation](1000),
		PromptChipStream: ring.New[int8](20 * 10),
		BitStream:        ring.New[int8](1500),
	}
}

// LossOfLockCount returns the number of consecutive milliseconds the
// prompt correlator has been below the noise floor.
func (s *SatelliteState) LossOfLockCount() int { return s.lossOfLockCount }

// RecordLossOfLockTick increments or resets the consecutive-low-power
// counter. The tracking engine's loss-of-lock decision does not use it.
func (s *SatelliteState) RecordLossOfLockTick(belowFloor bool) {
	if belowFloor {
		s.lossOfLockCount++
	} else {
		s.lossOfLockCount = 0
	}
}

// Advance moves the satellite forward to the given status. It is a no-op
// (and a programmer error, reported via ok=false) to move backward through
// Advance; use Demote for that.
func (s *SatelliteState) Advance(to Status) (ok bool) {
	if to == Lost {
		return false
	}
	if rank[to] < rank[s.Status] {
		return false
	}
	s.Status = to
	return true
}

// Demote resets the satellite to Untracked and clears every field at or
// below the acquisition stage, per spec §3 Invariants: "Demotion resets
// all fields at or below the demoted status."
func (s *SatelliteState) Demote() {
	prn := s.PRNID
	*s = *newSatelliteState(prn)
}

// Registry is the process-wide map from PRN ID to SatelliteState. It is
// constructed at pipeline startup and destroyed at shutdown (spec §9,
// "Global state"); there is no process-wide static.
type Registry struct {
	RunID string // uuid tag distinguishing receiver runs; not logged or served
	sats  map[int]*SatelliteState
}

// New builds a Registry pre-populated with an Untracked state for every
// PRN 1..32.
func New() *Registry {
	r := &Registry{
		RunID: uuid.NewString(),
		sats:  make(map[int]*SatelliteState, 32),
	}
	for prn := 1; prn <= 32; prn++ {
		r.sats[prn] = newSatelliteState(prn)
	}
	return r
}

// Get returns the state for a PRN, or nil if prn is out of range.
func (r *Registry) Get(prn int) *SatelliteState {
	return r.sats[prn]
}

// All returns every satellite state, in PRN order.
func (r *Registry) All() []*SatelliteState {
	out := make([]*SatelliteState, 0, len(r.sats))
	for prn := 1; prn <= 32; prn++ {
		if s, ok := r.sats[prn]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Tracked returns every satellite at Acquired or better.
func (r *Registry) Tracked() []*SatelliteState {
	out := make([]*SatelliteState, 0, len(r.sats))
	for _, s := range r.All() {
		if s.Status != Untracked && s.Status != Lost {
			out = append(out, s)
		}
	}
	return out
}

// UntrackedSats returns every satellite at Untracked or Lost.
func (r *Registry) UntrackedSats() []*SatelliteState {
	out := make([]*SatelliteState, 0, len(r.sats))
	for _, s := range r.All() {
		if s.Status == Untracked || s.Status == Lost {
			out = append(out, s)
		}
	}
	return out
}

// WithEphemerisReady returns every satellite that has reached
// EphemerisReady.
func (r *Registry) WithEphemerisReady() []*SatelliteState {
	out := make([]*SatelliteState, 0, len(r.sats))
	for _, s := range r.All() {
		if s.Status == EphemerisReady {
			out = append(out, s)
		}
	}
	return out
}
