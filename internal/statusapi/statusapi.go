// Package statusapi exposes the file-mode status endpoint (spec §6,
// "Status HTTP endpoint"): a single GET / returning the current
// solutions and per-satellite tracking state as JSON.
//
// The net/http server lifecycle (cancellable context, mutex-guarded
// Start/Stop, background goroutine) mirrors the teacher's
// pkg/server.Server; here there's exactly one handler instead of an
// NTRIP proxy loop.
package statusapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Solution is one navigation-solver output, as shown at the endpoint
// (spec §6).
type Solution struct {
	ClockBias float64  `json:"clock_bias"`
	Position  Position `json:"position"`
}

// Position is the geodetic half of a Solution.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Height    float64 `json:"height"`
}

// TrackedSatellite is one row of the status endpoint's tracked-satellite
// list (spec §6).
type TrackedSatellite struct {
	SatelliteID                int         `json:"satellite_id"`
	AcquiredAt                 *time.Time  `json:"acquired_at"`
	BitBoundaryFound           bool        `json:"bit_boundary_found"`
	BitPhase                   *int8       `json:"bit_phase"`
	RequiredSubframesReceived  bool        `json:"required_subframes_received"`
	SubframeCount              int         `json:"subframe_count"`
	CarrierFrequencyShifts     []float64   `json:"carrier_frequency_shifts"`
	PRNCodePhaseShifts         []float64   `json:"prn_code_phase_shifts"`
	Correlations               [][]float64 `json:"correlations"`
}

// UntrackedSatellite is one row of the status endpoint's untracked list.
type UntrackedSatellite struct {
	SatelliteID      int        `json:"satellite_id"`
	NextAcquisitionAt *time.Time `json:"next_acquisition_at"`
}

// Snapshot is the full status payload (spec §6 JSON shape).
type Snapshot struct {
	Solutions          []Solution           `json:"solutions"`
	TrackedSatellites  []TrackedSatellite   `json:"tracked_satellites"`
	UntrackedSatellites []UntrackedSatellite `json:"untracked_satellites"`
}

// SnapshotFunc produces the current Snapshot; the pipeline supplies one
// backed by the live Registry, read under its own tick-boundary
// synchronization (spec §5, "Shared resources").
type SnapshotFunc func() Snapshot

// Server is the file-mode-only status HTTP endpoint (spec §6, "Never
// enabled in live mode").
type Server struct {
	addr     string
	snapshot SnapshotFunc
	logger   logrus.FieldLogger

	mutex   sync.Mutex
	running bool
	httpSrv *http.Server
}

// New returns a Server listening on addr (spec §6: "localhost:8080").
func New(addr string, snapshot SnapshotFunc, logger logrus.FieldLogger) *Server {
	return &Server{addr: addr, snapshot: snapshot, logger: logger}
}

// Start begins serving in the background. It is an error to call Start
// twice without an intervening Stop.
func (s *Server) Start() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.running {
		return fmt.Errorf("statusapi: server already running")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleStatus)

	s.httpSrv = &http.Server{Addr: s.addr, Handler: mux}
	s.running = true

	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("statusapi: server exited")
		}
	}()
	return nil
}

// Stop shuts the server down, waiting at most 5s for in-flight requests.
func (s *Server) Stop() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	snap := s.snapshot()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		s.logger.WithError(err).Warn("statusapi: failed to encode snapshot")
	}
}
