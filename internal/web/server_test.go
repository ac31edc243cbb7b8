package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sweeney/garage-opener/internal/door"
	"github.com/sweeney/garage-opener/internal/status"
)

type fakeDoors struct {
	mu        sync.Mutex
	active    map[door.ID]bool
	activated []door.ID
	err       error
}

func newFakeDoors() *fakeDoors {
	return &fakeDoors{active: map[door.ID]bool{}}
}

func (f *fakeDoors) Activate(id door.ID, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.active[id] {
		return door.ErrPulseInProgress
	}
	f.active[id] = on
	f.activated = append(f.activated, id)
	return nil
}

func (f *fakeDoors) Active(id door.ID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active[id]
}

func (f *fakeDoors) Doors() []door.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]door.Status, 0, 2)
	for _, id := range door.IDs() {
		out = append(out, door.Status{ID: id, Active: f.active[id]})
	}
	return out
}

func (f *fakeDoors) activations() []door.ID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]door.ID(nil), f.activated...)
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeDoors, *status.Tracker) {
	t.Helper()
	doors := newFakeDoors()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		Door1Pin:     17,
		Door2Pin:     27,
		IndicatorPin: 22,
		PulseMs:      500,
		HeartbeatMs:  900000,
		Broker:       "tcp://192.168.1.200:1883",
		HTTPAddr:     ":8080",
	}
	tr := status.NewTracker(start, cfg, doors)
	srv := New(":0", tr, doors, nil)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, doors, tr
}

func noRedirect() *http.Client {
	return &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
}

func TestJSONEndpoint(t *testing.T) {
	ts, doors, tr := newTestServer(t)
	doors.Activate(door.Door2, true)
	tr.SetMQTTConnected(true)

	resp, err := http.Get(ts.URL + "/index.json")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var sj status.StatusJSON
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sj))
	require.Len(t, sj.Status.Doors, 2)
	require.False(t, sj.Status.Doors[0].Active)
	require.True(t, sj.Status.Doors[1].Active)
	require.True(t, sj.Status.Indicator.On)
	require.True(t, sj.Status.MQTT.Connected)
	require.Equal(t, int64(500), sj.Status.Config.PulseMs)
}

func TestIndexPage(t *testing.T) {
	ts, _, _ := newTestServer(t)

	for _, path := range []string{"/", "/index.html"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode, path)
		require.Contains(t, resp.Header.Get("Content-Type"), "text/html")
		html := string(body)
		require.Contains(t, html, "Garage Opener")
		require.Contains(t, html, `action="/doors/door1"`)
		require.Contains(t, html, `action="/doors/door2"`)
		require.Contains(t, html, "IDLE")
	}
}

func TestUnknownPath(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDoorState(t *testing.T) {
	ts, doors, _ := newTestServer(t)
	doors.Activate(door.Door1, true)

	resp, err := http.Get(ts.URL + "/api/doors/door1")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Door   string `json:"door"`
		Active bool   `json:"active"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "door1", body.Door)
	require.True(t, body.Active)
}

func TestActivate(t *testing.T) {
	ts, doors, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/doors/2/activate", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Equal(t, []door.ID{door.Door2}, doors.activations())

	resp, err = http.Post(ts.URL+"/api/doors/door2/activate", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Len(t, doors.activations(), 1)
}

func TestActivateUnknownDoor(t *testing.T) {
	ts, doors, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/doors/door3/activate", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Empty(t, doors.activations())
}

func TestActivateFailure(t *testing.T) {
	ts, doors, _ := newTestServer(t)
	doors.err = errors.New("boom")

	resp, err := http.Post(ts.URL+"/api/doors/door1/activate", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestActivateWhileShuttingDown(t *testing.T) {
	ts, doors, _ := newTestServer(t)
	doors.err = door.ErrStopped

	resp, err := http.Post(ts.URL+"/api/doors/door1/activate", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestFormActivateRedirects(t *testing.T) {
	ts, doors, _ := newTestServer(t)

	resp, err := noRedirect().Post(ts.URL+"/doors/door1", "application/x-www-form-urlencoded", strings.NewReader(""))
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("Location"))
	require.Equal(t, []door.ID{door.Door1}, doors.activations())
}
