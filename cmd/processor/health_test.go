package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedStatus struct {
	state  orchestrator.State
	status orchestrator.Status
}

func (f fixedStatus) State() orchestrator.State   { return f.state }
func (f fixedStatus) Status() orchestrator.Status { return f.status }

func get(t *testing.T, mux http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := get(t, newHealthMux(fixedStatus{state: orchestrator.StateRunning}), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, newHealthMux(fixedStatus{state: orchestrator.StateFatal}), "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatusJSON(t *testing.T) {
	wm := uint64(199)
	st := orchestrator.Status{Job: "events_processor", State: "running", StartVersion: 100, Watermark: &wm, PendingRanges: 2}
	rec := get(t, newHealthMux(fixedStatus{state: orchestrator.StateRunning, status: st}), "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got orchestrator.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "events_processor", got.Job)
	require.NotNil(t, got.Watermark)
	assert.Equal(t, uint64(199), *got.Watermark)
	assert.Equal(t, 2, got.PendingRanges)
	assert.Nil(t, got.EndVersion)
}
