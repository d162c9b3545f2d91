// Package pipeline drives the single-threaded, millisecond-grain tick
// loop that owns every stage of the receiver (spec §5, "Concurrency &
// Resource Model"): sample ingestion, tracking, bit sync, frame
// decoding, and the navigation solver.
//
// The tick/run-loop shape (cancellable context, one goroutine, a
// logrus.FieldLogger threaded through every stage) mirrors the
// teacher's pkg/server.Server.run(), generalized from one NTRIP relay
// loop to the multi-stage GPS pipeline this spec describes.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bramburn/gnssgo-sdr/internal/acquisition"
	"github.com/bramburn/gnssgo-sdr/internal/bitsync"
	"github.com/bramburn/gnssgo-sdr/internal/ephemeris"
	"github.com/bramburn/gnssgo-sdr/internal/frame"
	"github.com/bramburn/gnssgo-sdr/internal/gpstime"
	"github.com/bramburn/gnssgo-sdr/internal/prncode"
	"github.com/bramburn/gnssgo-sdr/internal/registry"
	"github.com/bramburn/gnssgo-sdr/internal/samples"
	"github.com/bramburn/gnssgo-sdr/internal/samplesource"
	"github.com/bramburn/gnssgo-sdr/internal/solver"
	"github.com/bramburn/gnssgo-sdr/internal/statusapi"
	"github.com/bramburn/gnssgo-sdr/internal/tracking"
)

const (
	acquisitionWindowMs   = acquisition.DefaultKIncoh
	solverMinMeasurements = 4
)

// Pipeline wires together every receiver stage around one shared sample
// window and satellite registry (spec §5, "Shared resources").
type Pipeline struct {
	source    samplesource.Source
	window    *samples.Window
	registry  *registry.Registry
	codes     map[int]*prncode.Code
	acqEngine *acquisition.Engine
	logger    logrus.FieldLogger

	bitSyncs map[int]*bitsync.Synchronizer
	decoders map[int]*frame.Decoder
	tracks   map[int]*tracking.State

	lastAcquisitionAttempt map[int]time.Time
	acquisitionCursor      int

	sampleIndex int64
	tick        int64
	startTime   time.Time

	solutions []solver.Solution
}

// New builds a Pipeline against a given sample source. codes should be
// the output of prncode.GenerateAll.
func New(source samplesource.Source, codes map[int]*prncode.Code, logger logrus.FieldLogger) *Pipeline {
	return &Pipeline{
		source:                 source,
		window:                 samples.NewWindow(acquisitionWindowMs),
		registry:               registry.New(),
		codes:                  codes,
		acqEngine:              acquisition.NewEngine(codes),
		logger:                 logger,
		bitSyncs:               make(map[int]*bitsync.Synchronizer),
		decoders:               make(map[int]*frame.Decoder),
		tracks:                 make(map[int]*tracking.State),
		lastAcquisitionAttempt: make(map[int]time.Time),
		startTime:              source.TimestampOfFirstSample(),
	}
}

// Registry exposes the satellite registry, e.g. for the status endpoint.
func (p *Pipeline) Registry() *registry.Registry { return p.registry }

// Run drives ticks until ctx is cancelled or the source is exhausted.
func (p *Pipeline) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := p.tickOnce(ctx); err != nil {
			if errors.Is(err, samplesource.ErrEndOfStream) {
				return nil
			}
			return err
		}
	}
}

func (p *Pipeline) tickOnce(ctx context.Context) error {
	ms, err := p.source.NextMillisecond(ctx)
	if err != nil {
		return err
	}
	p.window.Push(ms)
	p.sampleIndex += samples.PerMillisecond
	p.tick++

	p.stepTracking(ms)
	p.stepAcquisition()

	measurements, fresh := p.readyMeasurements()
	if fresh && len(measurements) >= solverMinMeasurements {
		sol, err := solver.Solve(measurements)
		if err != nil {
			p.logger.WithError(err).Debug("pipeline: solver did not converge this tick")
		} else {
			p.solutions = append(p.solutions, sol)
		}
	}
	return nil
}

// stepTracking advances every tracked PRN by one ms, feeding the emitted
// chip through bit sync and frame decode in order (spec §5, "Ordering
// guarantees").
func (p *Pipeline) stepTracking(ms samples.Millisecond) {
	for _, sat := range p.registry.Tracked() {
		track, ok := p.tracks[sat.PRNID]
		if !ok {
			continue
		}

		chip, locked := track.Update(ms)
		sat.CarrierDopplerHz = track.CarrierDopplerHz
		sat.CarrierPhaseRad = track.CarrierPhaseRad
		sat.CodePhaseSamples = track.CodePhaseSamples

		if !locked {
			p.logger.WithField("prn", sat.PRNID).Info("pipeline: loss of lock, returning to acquisition pool")
			sat.Demote()
			delete(p.tracks, sat.PRNID)
			delete(p.bitSyncs, sat.PRNID)
			delete(p.decoders, sat.PRNID)
			continue
		}
		sat.PromptChipStream.Push(int8(chip))

		bs, ok := p.bitSyncs[sat.PRNID]
		if !ok {
			bs = bitsync.NewSynchronizer()
			p.bitSyncs[sat.PRNID] = bs
		}
		bit, emitted := bs.Push(chip)
		if !emitted {
			continue
		}
		if sat.Status == registry.Tracking {
			sat.Advance(registry.BitSynced)
		}
		sat.BitStream.Push(bit*2 - 1) // map 0/1 -> -1/+1 (spec §3, "bit_stream")

		dec, ok := p.decoders[sat.PRNID]
		if !ok {
			dec = frame.NewDecoder()
			p.decoders[sat.PRNID] = dec
		}
		sf, gotFrame := dec.Push(bit*2-1, p.sampleIndex)
		if !gotFrame {
			continue
		}
		p.handleSubframe(sat, sf)
	}
}

func (p *Pipeline) handleSubframe(sat *registry.SatelliteState, sf *ephemeris.Subframe) {
	if sat.Status == registry.BitSynced {
		sat.Advance(registry.FrameSynced)
	}
	sat.Subframes = append(sat.Subframes, *sf)
	if len(sat.Subframes) > 5 {
		sat.Subframes = sat.Subframes[len(sat.Subframes)-5:]
	}

	switch sf.ID {
	case 1:
		sat.ClockCorrection = frame.DecodeClockCorrection(sf)
	case 2:
		sat.Ephemeris = frame.DecodeEphemerisPart2(sf)
	case 3:
		if sat.Ephemeris != nil {
			iode3 := frame.DecodeEphemerisPart3(sf, sat.Ephemeris)
			if sat.ClockCorrection != nil && ephemeris.Complete(sat.ClockCorrection.IODC, sat.Ephemeris.IODE, iode3) {
				sat.Advance(registry.EphemerisReady)
				p.recordPseudorange(sat, sf)
			}
		}
	}
}

// recordPseudorange derives the satellite's last pseudorange measurement
// from the just-decoded subframe boundary (spec §4.4 "Time-of-week";
// §4.5 "Satellite Position and Pseudorange").
func (p *Pipeline) recordPseudorange(sat *registry.SatelliteState, sf *ephemeris.Subframe) {
	towOfThisSubframeEnd := gpstime.TOWFromSubframeCount(sf.TOWCount)
	receiveWallClock := p.startTime.Add(time.Duration(float64(p.sampleIndex)/samples.Rate) * time.Second)
	tReceived := gpstime.FromWall(receiveWallClock)

	sat.LastPseudorange = &registry.PseudorangeMeasurement{
		TReceivedGPS:   tReceived.TOW,
		TTransmittedSV: towOfThisSubframeEnd,
		MeasuredAtTick: p.tick,
	}
}

// stepAcquisition runs at most one acquisition attempt per tick,
// round-robin across untracked PRNs respecting each one's retry
// interval (spec §5, "Acquisition cost amortization").
func (p *Pipeline) stepAcquisition() {
	if !p.window.Ready() {
		return
	}
	candidates := p.registry.UntrackedSats()
	if len(candidates) == 0 {
		return
	}

	now := time.Now()
	for i := 0; i < len(candidates); i++ {
		idx := (p.acquisitionCursor + i) % len(candidates)
		sat := candidates[idx]

		if last, seen := p.lastAcquisitionAttempt[sat.PRNID]; seen && now.Sub(last) < acquisition.DefaultRetryInterval {
			continue
		}
		p.lastAcquisitionAttempt[sat.PRNID] = now
		p.acquisitionCursor = (idx + 1) % len(candidates)

		result, err := p.acqEngine.Attempt(p.window, sat.PRNID, acquisitionWindowMs)
		if err != nil {
			p.logger.WithError(err).WithField("prn", sat.PRNID).Warn("pipeline: acquisition attempt failed")
			return
		}
		if !result.Visible {
			return
		}

		p.logger.WithFields(logrus.Fields{
			"prn":     sat.PRNID,
			"doppler": result.DopplerHz,
			"psr":     result.PeakToSideRatio,
		}).Info("pipeline: satellite acquired")

		acquiredAt := time.Now()
		sat.AcquiredAt = &acquiredAt
		sat.Advance(registry.Acquired)
		sat.Advance(registry.Tracking)
		sat.CarrierDopplerHz = result.DopplerHz
		sat.CodePhaseSamples = result.CodePhaseSamples

		p.tracks[sat.PRNID] = tracking.NewState(p.codes[sat.PRNID], result.DopplerHz, result.CodePhaseSamples)
		return
	}
}

// readyMeasurements collects a solver.Measurement for every satellite with
// a complete ephemeris and a recorded pseudorange, and reports whether at
// least one of them was measured on this tick. The solver is only worth
// re-running when something actually changed (spec §5, "invoked at most
// once, if >=4 satellites have a new measurement this tick") — otherwise
// every tick would re-solve and append a duplicate, stale Solution between
// subframe-3 decodes.
func (p *Pipeline) readyMeasurements() (out []solver.Measurement, fresh bool) {
	for _, sat := range p.registry.WithEphemerisReady() {
		if sat.LastPseudorange == nil || sat.Ephemeris == nil || sat.ClockCorrection == nil {
			continue
		}
		if sat.LastPseudorange.MeasuredAtTick == p.tick {
			fresh = true
		}
		pos := ephemeris.Position(sat.Ephemeris, sat.ClockCorrection, sat.LastPseudorange.TTransmittedSV)
		out = append(out, solver.Measurement{
			X:            pos.X,
			Y:            pos.Y,
			Z:            pos.Z,
			TTransmitted: sat.LastPseudorange.TTransmittedSV,
			TReceived:    sat.LastPseudorange.TReceivedGPS,
		})
	}
	return out, fresh
}

// Snapshot builds a statusapi.Snapshot from the current registry state
// (spec §6, "Status HTTP endpoint").
func (p *Pipeline) Snapshot() statusapi.Snapshot {
	var snap statusapi.Snapshot

	for _, sol := range p.solutions {
		snap.Solutions = append(snap.Solutions, statusapi.Solution{
			ClockBias: sol.ClockBiasS,
			Position: statusapi.Position{
				Latitude:  sol.LatDeg,
				Longitude: sol.LonDeg,
				Height:    sol.HeightM,
			},
		})
	}

	for _, sat := range p.registry.Tracked() {
		snap.TrackedSatellites = append(snap.TrackedSatellites, statusapi.TrackedSatellite{
			SatelliteID:               sat.PRNID,
			AcquiredAt:                sat.AcquiredAt,
			BitBoundaryFound:          sat.Status >= registry.BitSynced,
			BitPhase:                  sat.BitPhase,
			RequiredSubframesReceived: sat.Status == registry.EphemerisReady,
			SubframeCount:             len(sat.Subframes),
			CarrierFrequencyShifts:    []float64{sat.CarrierDopplerHz},
			PRNCodePhaseShifts:        []float64{sat.CodePhaseSamples},
		})
	}

	for _, sat := range p.registry.UntrackedSats() {
		next := p.lastAcquisitionAttempt[sat.PRNID].Add(acquisition.DefaultRetryInterval)
		snap.UntrackedSatellites = append(snap.UntrackedSatellites, statusapi.UntrackedSatellite{
			SatelliteID:       sat.PRNID,
			NextAcquisitionAt: &next,
		})
	}

	return snap
}
