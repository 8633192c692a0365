// Package preflight implements the mandatory reachability gate. Playback,
// time sync and channel operations are only permitted after the required
// internal host has been reached once.
package preflight

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/kvasnell/telezap/internal/logger"
)

// GuardState represents the lifecycle of the reachability gate
type GuardState string

// Guard state constants. A guard transitions out of pending exactly once per
// process lifetime and never re-enters it.
const (
	StatePending GuardState = "pending"
	StatePassed  GuardState = "passed"
	StateFailed  GuardState = "failed"
)

// String returns the string representation of the guard state
func (s GuardState) String() string {
	return string(s)
}

// Prober performs a single round-trip reachability probe
type Prober interface {
	Probe(ctx context.Context, host string) error
}

// TCPProber probes reachability with a plain TCP connect. ICMP echo needs
// raw-socket privileges the device does not grant, so a connect to a known
// open port stands in for it.
type TCPProber struct{}

// Probe dials host (host:port) and closes the connection immediately
func (TCPProber) Probe(ctx context.Context, host string) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", host)
	if err != nil {
		return fmt.Errorf("probe %s: %w", host, err)
	}
	return conn.Close()
}

// Guard runs the bounded-retry reachability check against the required host
type Guard struct {
	host         string
	maxAttempts  int
	probeTimeout time.Duration
	retryDelay   time.Duration
	prober       Prober

	// dispatch marshals completion callbacks onto whatever execution context
	// the embedding application designates as primary. The default runs them
	// on the guard's own goroutine.
	dispatch func(func())

	mu      sync.Mutex
	state   GuardState
	started bool
}

// NewGuard creates a guard probing host up to maxAttempts times
func NewGuard(host string, maxAttempts int, probeTimeout, retryDelay time.Duration) *Guard {
	return &Guard{
		host:         host,
		maxAttempts:  maxAttempts,
		probeTimeout: probeTimeout,
		retryDelay:   retryDelay,
		prober:       TCPProber{},
		dispatch:     func(fn func()) { fn() },
		state:        StatePending,
	}
}

// SetProber replaces the reachability probe implementation
func (g *Guard) SetProber(p Prober) {
	g.prober = p
}

// SetDispatch replaces the callback delivery context
func (g *Guard) SetDispatch(dispatch func(func())) {
	g.dispatch = dispatch
}

// State returns the current guard state
func (g *Guard) State() GuardState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Passed reports whether the gate has been cleared
func (g *Guard) Passed() bool {
	return g.State() == StatePassed
}

// Run executes the reachability check off the caller's goroutine. The first
// successful probe invokes onPass exactly once; exhausting all attempts
// without success invokes onFail exactly once with the last probe error.
// Probe errors never escape the attempt loop. A guard runs at most once per
// process lifetime; later calls are ignored so a settled state never
// re-transitions.
func (g *Guard) Run(ctx context.Context, onPass func(), onFail func(err error)) {
	g.mu.Lock()
	if g.started {
		g.mu.Unlock()
		return
	}
	g.started = true
	g.mu.Unlock()

	go g.run(ctx, onPass, onFail)
}

func (g *Guard) run(ctx context.Context, onPass func(), onFail func(err error)) {
	var lastErr error

	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, g.probeTimeout)
		err := g.prober.Probe(attemptCtx, g.host)
		cancel()

		if err == nil {
			g.setState(StatePassed)
			logger.Log.Info().
				Str("host", g.host).
				Int("attempt", attempt).
				Msg("Preflight check passed")
			if onPass != nil {
				g.dispatch(onPass)
			}
			return
		}

		lastErr = err
		logger.Log.Debug().
			Err(err).
			Str("host", g.host).
			Int("attempt", attempt).
			Int("max_attempts", g.maxAttempts).
			Msg("Preflight probe failed")

		if attempt < g.maxAttempts {
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				attempt = g.maxAttempts // no further probes after cancellation
			case <-time.After(g.retryDelay):
			}
		}
	}

	g.setState(StateFailed)
	logger.Log.Error().
		Err(lastErr).
		Str("host", g.host).
		Int("attempts", g.maxAttempts).
		Msg("Preflight check failed, refusing to continue")
	if onFail != nil {
		err := lastErr
		g.dispatch(func() { onFail(err) })
	}
}

func (g *Guard) setState(state GuardState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = state
}
