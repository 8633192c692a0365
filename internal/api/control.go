// Package api provides HTTP handlers for the control surface: the inbound
// entry points a UI or remote-control collaborator calls into the core.
package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kvasnell/telezap/internal/db"
	"github.com/kvasnell/telezap/internal/logger"
	"github.com/kvasnell/telezap/internal/preflight"
	"github.com/kvasnell/telezap/internal/resolver"
	"github.com/kvasnell/telezap/internal/session"
	"github.com/kvasnell/telezap/internal/timesync"
)

// ErrorResponse is the common error payload
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// DigitRequest carries one remote-control digit
type DigitRequest struct {
	Digit *int `json:"digit" binding:"required"`
}

// SwitchRequest carries an explicit channel index
type SwitchRequest struct {
	Index *int `json:"index" binding:"required"`
}

// StreamServerRequest carries a new stream server endpoint
type StreamServerRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// TimeServerRequest carries a time server override; an empty host clears it
type TimeServerRequest struct {
	Host string `json:"host"`
}

// SyncStatus describes the last completed time synchronization attempt
type SyncStatus struct {
	OK      bool   `json:"ok"`
	Server  string `json:"server,omitempty"`
	Message string `json:"message"`
	At      string `json:"at"`
}

// StatusResponse is the aggregate device status
type StatusResponse struct {
	Guard         string                   `json:"guard"`
	Session       string                   `json:"session"`
	ChannelIndex  int                      `json:"channel_index"`
	PendingDigits string                   `json:"pending_digits,omitempty"`
	TimeSynced    bool                     `json:"time_synced"`
	Time          string                   `json:"time"`
	Playing       *session.PlaybackSession `json:"playing,omitempty"`
	LastSync      *SyncStatus              `json:"last_sync,omitempty"`
}

// ControlHandler handles playback control and device status requests
type ControlHandler struct {
	controller *session.Controller
	engine     *timesync.Engine
	guard      *preflight.Guard
	settings   *db.SettingsRepository
	endpoint   *resolver.Endpoint

	mu       sync.Mutex
	lastSync *SyncStatus
}

// NewControlHandler creates a new control handler
func NewControlHandler(
	controller *session.Controller,
	engine *timesync.Engine,
	guard *preflight.Guard,
	settings *db.SettingsRepository,
	endpoint *resolver.Endpoint,
) *ControlHandler {
	return &ControlHandler{
		controller: controller,
		engine:     engine,
		guard:      guard,
		settings:   settings,
		endpoint:   endpoint,
	}
}

// Digit handles POST /control/digit. Digits are fire-and-forget; the switch
// fires once the debounce window elapses.
func (h *ControlHandler) Digit(c *gin.Context) {
	var req DigitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}
	if *req.Digit < 0 || *req.Digit > 9 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_digit", Message: "digit must be between 0 and 9"})
		return
	}

	h.controller.SelectDigit(*req.Digit)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// Switch handles POST /control/switch. Out-of-range indexes are ignored by
// the controller, so the request is always accepted.
func (h *ControlHandler) Switch(c *gin.Context) {
	var req SwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	index := *req.Index
	go h.controller.SwitchTo(index)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// Up handles POST /control/up
func (h *ControlHandler) Up(c *gin.Context) {
	go h.controller.SwitchUp()
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// Down handles POST /control/down
func (h *ControlHandler) Down(c *gin.Context) {
	go h.controller.SwitchDown()
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// Stop handles POST /control/stop
func (h *ControlHandler) Stop(c *gin.Context) {
	h.controller.Stop()
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

// Sync handles POST /control/sync, triggering one asynchronous time sync
func (h *ControlHandler) Sync(c *gin.Context) {
	h.engine.SyncAsync(func(result timesync.Result) {
		h.mu.Lock()
		h.lastSync = &SyncStatus{
			OK:      result.OK,
			Server:  result.Server,
			Message: result.Message,
			At:      time.Now().UTC().Format(time.RFC3339),
		}
		h.mu.Unlock()
	})
	c.JSON(http.StatusAccepted, gin.H{"status": "sync_started"})
}

// Status handles GET /status
func (h *ControlHandler) Status(c *gin.Context) {
	h.mu.Lock()
	lastSync := h.lastSync
	h.mu.Unlock()

	c.JSON(http.StatusOK, StatusResponse{
		Guard:         h.guard.State().String(),
		Session:       h.controller.State().String(),
		ChannelIndex:  h.controller.CurrentIndex(),
		PendingDigits: h.controller.PendingDigits(),
		TimeSynced:    h.engine.Synced(),
		Time:          h.engine.Now().Format(time.RFC3339),
		Playing:       h.controller.Session(),
		LastSync:      lastSync,
	})
}

// GetSettings handles GET /settings
func (h *ControlHandler) GetSettings(c *gin.Context) {
	settings, err := h.settings.Get(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "settings_error", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, settings)
}

// SetStreamServer handles PUT /settings/stream-server
func (h *ControlHandler) SetStreamServer(c *gin.Context) {
	var req StreamServerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	if err := h.settings.SetStreamServer(c.Request.Context(), req.Endpoint); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "settings_error", Message: err.Error()})
		return
	}
	h.endpoint.Set(req.Endpoint)

	logger.Log.Info().
		Str("endpoint", req.Endpoint).
		Msg("Stream server updated")
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// SetTimeServer handles PUT /settings/time-server
func (h *ControlHandler) SetTimeServer(c *gin.Context) {
	var req TimeServerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	if err := h.settings.SetTimeServer(c.Request.Context(), req.Host); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "settings_error", Message: err.Error()})
		return
	}
	h.engine.SetTimeServer(req.Host)

	logger.Log.Info().
		Str("host", req.Host).
		Msg("Time server override updated")
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// SetupControlRoutes registers playback control, status and settings routes.
// Control and settings routes are gated behind the preflight check.
func SetupControlRoutes(apiGroup *gin.RouterGroup, handler *ControlHandler, gate gin.HandlerFunc) {
	apiGroup.GET("/status", handler.Status)

	control := apiGroup.Group("/control", gate)
	control.POST("/digit", handler.Digit)
	control.POST("/switch", handler.Switch)
	control.POST("/up", handler.Up)
	control.POST("/down", handler.Down)
	control.POST("/stop", handler.Stop)
	control.POST("/sync", handler.Sync)

	settings := apiGroup.Group("/settings", gate)
	settings.GET("", handler.GetSettings)
	settings.PUT("/stream-server", handler.SetStreamServer)
	settings.PUT("/time-server", handler.SetTimeServer)
}
