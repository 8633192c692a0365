package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvasnell/telezap/internal/db"
	"github.com/kvasnell/telezap/internal/logger"
	"github.com/kvasnell/telezap/internal/middleware"
	"github.com/kvasnell/telezap/internal/models"
	"github.com/kvasnell/telezap/internal/preflight"
	"github.com/kvasnell/telezap/internal/resolver"
	"github.com/kvasnell/telezap/internal/session"
	"github.com/kvasnell/telezap/internal/timesync"
)

func init() {
	logger.Init("error", false)
	gin.SetMode(gin.TestMode)
}

// noopSink discards playback requests
type noopSink struct{}

func (noopSink) Play(string) error { return nil }
func (noopSink) Stop()             {}
func (noopSink) Release()          {}

// staticList serves a fixed channel lineup
type staticList struct {
	channels []models.Channel
}

func (l *staticList) Count() int { return len(l.channels) }

func (l *staticList) At(index int) (models.Channel, bool) {
	if index < 0 || index >= len(l.channels) {
		return models.Channel{}, false
	}
	return l.channels[index], true
}

func (l *staticList) FindByNumber(number int) (int, bool) {
	for i, ch := range l.channels {
		if ch.Number == number {
			return i, true
		}
	}
	return 0, false
}

// okProber always succeeds
type okProber struct{}

func (okProber) Probe(context.Context, string) error { return nil }

type testEnv struct {
	router *gin.Engine
	guard  *preflight.Guard
}

func newTestEnv(t *testing.T, guardPassed bool) *testEnv {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	require.NoError(t, database.AutoMigrate(&models.Settings{}, &models.Channel{}))

	settings := db.NewSettingsRepository(database, "239.255.1.1:1234")
	endpoint := resolver.NewEndpoint("239.255.1.1:1234")

	list := &staticList{channels: []models.Channel{
		{Number: 1, Name: "One", URLTemplate: "udp://{serverip}/one"},
		{Number: 7, Name: "Seven", URLTemplate: "udp://{serverip}/seven"},
	}}

	// No candidate servers: a triggered sync fails fast without touching the
	// network
	engine := timesync.NewEngine(nil, time.Second, 0)
	res := resolver.New(engine, endpoint.Provider())
	controller := session.NewController(list, res, noopSink{}, 50*time.Millisecond, 4)

	guard := preflight.NewGuard("gateway.test:80", 1, time.Second, time.Millisecond)
	if guardPassed {
		guard.SetProber(okProber{})
		passed := make(chan struct{}, 1)
		guard.Run(context.Background(), func() { passed <- struct{}{} }, nil)
		select {
		case <-passed:
		case <-time.After(time.Second):
			t.Fatal("preflight guard never passed")
		}
	}

	handler := NewControlHandler(controller, engine, guard, settings, endpoint)

	router := gin.New()
	apiGroup := router.Group("/api")
	SetupControlRoutes(apiGroup, handler, middleware.PreflightGate(guard))

	return &testEnv{router: router, guard: guard}
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestStatus_AvailableBeforePreflight(t *testing.T) {
	env := newTestEnv(t, false)

	w := doJSON(t, env.router, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var status StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "pending", status.Guard)
	assert.Equal(t, "idle", status.Session)
	assert.Equal(t, -1, status.ChannelIndex)
	assert.False(t, status.TimeSynced)
}

func TestControl_GatedBeforePreflight(t *testing.T) {
	env := newTestEnv(t, false)

	paths := []string{"/api/control/up", "/api/control/stop", "/api/control/sync"}
	for _, path := range paths {
		w := doJSON(t, env.router, http.MethodPost, path, nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
	}

	w := doJSON(t, env.router, http.MethodGet, "/api/settings", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestDigit_Accepted(t *testing.T) {
	env := newTestEnv(t, true)

	digit := 7
	w := doJSON(t, env.router, http.MethodPost, "/api/control/digit", DigitRequest{Digit: &digit})
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestDigit_OutOfRangeRejected(t *testing.T) {
	env := newTestEnv(t, true)

	for _, digit := range []int{-1, 10} {
		d := digit
		w := doJSON(t, env.router, http.MethodPost, "/api/control/digit", DigitRequest{Digit: &d})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "invalid_digit", resp.Error)
	}
}

func TestDigit_MissingBodyRejected(t *testing.T) {
	env := newTestEnv(t, true)

	w := doJSON(t, env.router, http.MethodPost, "/api/control/digit", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSwitch_Accepted(t *testing.T) {
	env := newTestEnv(t, true)

	index := 0
	w := doJSON(t, env.router, http.MethodPost, "/api/control/switch", SwitchRequest{Index: &index})
	assert.Equal(t, http.StatusAccepted, w.Code)

	// The switch itself is asynchronous
	assert.Eventually(t, func() bool {
		w := doJSON(t, env.router, http.MethodGet, "/api/status", nil)
		var status StatusResponse
		if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
			return false
		}
		return status.Session == "playing" && status.ChannelIndex == 0
	}, time.Second, 10*time.Millisecond)
}

func TestStop_OK(t *testing.T) {
	env := newTestEnv(t, true)

	w := doJSON(t, env.router, http.MethodPost, "/api/control/stop", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSync_AcceptedAndRecorded(t *testing.T) {
	env := newTestEnv(t, true)

	w := doJSON(t, env.router, http.MethodPost, "/api/control/sync", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)

	// With no candidate servers the attempt fails and is recorded in status
	assert.Eventually(t, func() bool {
		w := doJSON(t, env.router, http.MethodGet, "/api/status", nil)
		var status StatusResponse
		if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
			return false
		}
		return status.LastSync != nil && !status.LastSync.OK
	}, time.Second, 10*time.Millisecond)
}

func TestSettings_RoundTrip(t *testing.T) {
	env := newTestEnv(t, true)

	w := doJSON(t, env.router, http.MethodPut, "/api/settings/stream-server",
		StreamServerRequest{Endpoint: "10.0.0.9:5000"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, env.router, http.MethodPut, "/api/settings/time-server",
		TimeServerRequest{Host: "ntp.example.com"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, env.router, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var settings models.Settings
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &settings))
	assert.Equal(t, "10.0.0.9:5000", settings.StreamServer)
	assert.Equal(t, "ntp.example.com", settings.TimeServer)
}

func TestSetStreamServer_MissingEndpointRejected(t *testing.T) {
	env := newTestEnv(t, true)

	w := doJSON(t, env.router, http.MethodPut, "/api/settings/stream-server", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
