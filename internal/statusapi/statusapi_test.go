package statusapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleStatusEncodesSnapshot(t *testing.T) {
	snap := Snapshot{
		Solutions: []Solution{{ClockBias: 1e-6, Position: Position{Latitude: 50, Longitude: -5, Height: 100}}},
		TrackedSatellites: []TrackedSatellite{
			{SatelliteID: 3, BitBoundaryFound: true, SubframeCount: 2},
		},
		UntrackedSatellites: []UntrackedSatellite{{SatelliteID: 7}},
	}
	srv := New("localhost:0", func() Snapshot { return snap }, logrus.New())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.handleStatus(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var got Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Solutions, 1)
	assert.EqualValues(t, 50, got.Solutions[0].Position.Latitude)
	require.Len(t, got.TrackedSatellites, 1)
	assert.EqualValues(t, 3, got.TrackedSatellites[0].SatelliteID)
}

func TestHandleStatusRejectsNonGet(t *testing.T) {
	srv := New("localhost:0", func() Snapshot { return Snapshot{} }, logrus.New())

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	srv.handleStatus(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
