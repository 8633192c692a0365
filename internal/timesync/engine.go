// Package timesync maintains an offset between the local monotonic clock and
// network time, obtained over NTP from an ordered list of candidate servers.
package timesync

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/beevik/ntp"

	"github.com/kvasnell/telezap/internal/logger"
)

// Common errors
var (
	ErrNoCandidates = errors.New("no time server candidates configured")
)

// QueryFunc performs one time-protocol exchange against a server and returns
// the network time reported at the moment the reply was processed.
type QueryFunc func(host string, timeout time.Duration) (time.Time, error)

// Result describes the outcome of one synchronization attempt
type Result struct {
	OK      bool
	Server  string
	Offset  time.Duration
	Message string
}

// Engine derives a trustworthy current time from a single network measurement
// plus ongoing monotonic elapsed time. The offset is owned exclusively by the
// engine; readers only ever observe a fully committed value.
type Engine struct {
	servers      []string
	queryTimeout time.Duration
	query        QueryFunc

	mu       sync.RWMutex
	override string
	offset   time.Duration
	synced   bool
	lastSync time.Time

	// started carries the process-local monotonic reading all offsets are
	// measured against.
	started time.Time

	resyncInterval time.Duration
	resyncTicker   *time.Ticker
	stopChan       chan struct{}
	resyncDone     chan struct{}
	stopOnce       sync.Once
}

// NewEngine creates a time sync engine with the given built-in fallback
// servers, tried in declared order after any user override.
func NewEngine(servers []string, queryTimeout, resyncInterval time.Duration) *Engine {
	return &Engine{
		servers:        servers,
		queryTimeout:   queryTimeout,
		query:          ntpQuery,
		started:        time.Now(),
		resyncInterval: resyncInterval,
		stopChan:       make(chan struct{}),
		resyncDone:     make(chan struct{}),
	}
}

// ntpQuery is the default QueryFunc, a single NTP round-trip. The underlying
// UDP connection is closed by the client on every exit path.
func ntpQuery(host string, timeout time.Duration) (time.Time, error) {
	resp, err := ntp.QueryWithOptions(host, ntp.QueryOptions{Timeout: timeout})
	if err != nil {
		return time.Time{}, err
	}
	if err := resp.Validate(); err != nil {
		return time.Time{}, err
	}
	return time.Now().Add(resp.ClockOffset), nil
}

// monotonicNow returns a wall-clock value derived purely from the monotonic
// clock, immune to system clock adjustments after engine creation.
func (e *Engine) monotonicNow() time.Time {
	return e.started.Add(time.Since(e.started))
}

// Now returns the current network-time estimate. It never blocks. Before the
// first successful sync it falls back to the device's own wall clock.
func (e *Engine) Now() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.synced {
		return time.Now().UTC()
	}
	return e.monotonicNow().Add(e.offset).UTC()
}

// NowMillis returns the current network-time estimate in Unix milliseconds
func (e *Engine) NowMillis() int64 {
	return e.Now().UnixMilli()
}

// Synced reports whether at least one synchronization has succeeded
func (e *Engine) Synced() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.synced
}

// LastSync returns the time of the last successful synchronization and
// whether one has ever happened
func (e *Engine) LastSync() (time.Time, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastSync, e.synced
}

// SetTimeServer sets or clears the user time server override. The override is
// always tried before the built-in fallback set.
func (e *Engine) SetTimeServer(host string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.override = host
}

// candidates returns the ordered, deduplicated server list: user override
// first, then built-ins in declared order, first occurrence kept.
func (e *Engine) candidates() []string {
	e.mu.RLock()
	override := e.override
	e.mu.RUnlock()

	out := make([]string, 0, len(e.servers)+1)
	seen := make(map[string]bool, len(e.servers)+1)

	if override != "" {
		out = append(out, override)
		seen[override] = true
	}
	for _, s := range e.servers {
		if s == "" || seen[s] {
			continue
		}
		out = append(out, s)
		seen[s] = true
	}
	return out
}

// Sync performs one synchronization attempt: candidates are tried in order
// and the first successful reply wins. On total failure the prior offset is
// left untouched and the last error encountered is returned. Concurrent
// calls may race; the offset that lands last wins.
func (e *Engine) Sync() (Result, error) {
	candidates := e.candidates()
	if len(candidates) == 0 {
		return Result{OK: false, Message: ErrNoCandidates.Error()}, ErrNoCandidates
	}

	var lastErr error
	for _, server := range candidates {
		networkTime, err := e.query(server, e.queryTimeout)
		if err != nil {
			logger.Log.Debug().
				Err(err).
				Str("server", server).
				Msg("Time server attempt failed")
			lastErr = err
			continue
		}

		offset := networkTime.Sub(e.monotonicNow())

		e.mu.Lock()
		e.offset = offset
		e.synced = true
		e.lastSync = networkTime.UTC()
		e.mu.Unlock()

		logger.Log.Info().
			Str("server", server).
			Dur("offset", offset).
			Msg("Time synchronized")

		return Result{OK: true, Server: server, Offset: offset, Message: "synchronized"}, nil
	}

	err := fmt.Errorf("all time servers failed: %w", lastErr)
	logger.Log.Warn().
		Err(lastErr).
		Int("candidates", len(candidates)).
		Msg("Time sync failed, keeping previous offset")
	return Result{OK: false, Message: err.Error()}, err
}

// SyncAsync performs one synchronization attempt off the caller's goroutine.
// The callback is always invoked exactly once and never receives a panic.
func (e *Engine) SyncAsync(onComplete func(Result)) {
	go func() {
		result, _ := e.Sync()
		if onComplete != nil {
			onComplete(result)
		}
	}()
}

// Start begins the periodic resync loop
func (e *Engine) Start() {
	if e.resyncInterval <= 0 {
		return
	}
	e.resyncTicker = time.NewTicker(e.resyncInterval)
	go e.runResyncLoop()

	logger.Log.Info().
		Dur("resync_interval", e.resyncInterval).
		Msg("Time sync engine started")
}

// Stop shuts down the periodic resync loop
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopChan)
	})
	// Wait for the loop only if it was started
	if e.resyncTicker != nil {
		<-e.resyncDone
		e.resyncTicker.Stop()
	}
}

// runResyncLoop re-synchronizes on a fixed schedule until stopped
func (e *Engine) runResyncLoop() {
	defer close(e.resyncDone)

	for {
		select {
		case <-e.stopChan:
			logger.Log.Debug().Msg("Resync loop stopping")
			return
		case <-e.resyncTicker.C:
			if _, err := e.Sync(); err != nil {
				logger.Log.Debug().Err(err).Msg("Periodic resync failed")
			}
		}
	}
}
