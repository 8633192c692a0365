package timesync

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvasnell/telezap/internal/logger"
)

func init() {
	logger.Init("error", false)
}

// recordingQuery returns a QueryFunc that records attempted servers and
// answers from the results map; servers not in the map fail.
func recordingQuery(attempts *[]string, mu *sync.Mutex, results map[string]time.Time) QueryFunc {
	return func(host string, timeout time.Duration) (time.Time, error) {
		mu.Lock()
		*attempts = append(*attempts, host)
		mu.Unlock()
		if t, ok := results[host]; ok {
			return t, nil
		}
		return time.Time{}, errors.New("unreachable: " + host)
	}
}

func newTestEngine(servers []string) *Engine {
	return NewEngine(servers, 50*time.Millisecond, 0)
}

func TestCandidates_OverrideFirstAndDeduplicated(t *testing.T) {
	e := newTestEngine([]string{"a", "b", "a", "c"})
	e.SetTimeServer("b")

	assert.Equal(t, []string{"b", "a", "c"}, e.candidates())
}

func TestCandidates_NoOverride(t *testing.T) {
	e := newTestEngine([]string{"a", "b"})

	assert.Equal(t, []string{"a", "b"}, e.candidates())
}

func TestCandidates_EmptyEntriesSkipped(t *testing.T) {
	e := newTestEngine([]string{"", "a"})

	assert.Equal(t, []string{"a"}, e.candidates())
}

func TestSync_FirstSuccessWins(t *testing.T) {
	var attempts []string
	var mu sync.Mutex

	e := newTestEngine([]string{"serverA", "serverB"})
	e.SetTimeServer("override")
	e.query = recordingQuery(&attempts, &mu, map[string]time.Time{
		"serverB": time.Now(),
	})

	result, err := e.Sync()
	require.NoError(t, err)

	// Exactly three attempts, in order, and the winner is the one that replied
	assert.Equal(t, []string{"override", "serverA", "serverB"}, attempts)
	assert.True(t, result.OK)
	assert.Equal(t, "serverB", result.Server)
	assert.True(t, e.Synced())
}

func TestSync_StopsAfterFirstSuccess(t *testing.T) {
	var attempts []string
	var mu sync.Mutex

	e := newTestEngine([]string{"a", "b", "c"})
	e.query = recordingQuery(&attempts, &mu, map[string]time.Time{
		"a": time.Now(),
	})

	_, err := e.Sync()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, attempts)
}

func TestSync_AllFailLeavesClockUnsynced(t *testing.T) {
	var attempts []string
	var mu sync.Mutex

	e := newTestEngine([]string{"a", "b"})
	e.query = recordingQuery(&attempts, &mu, nil)

	result, err := e.Sync()
	require.Error(t, err)
	assert.False(t, result.OK)
	assert.False(t, e.Synced())
	assert.Contains(t, err.Error(), "unreachable: b") // last error encountered

	// Unsynced engine falls back to the local wall clock
	assert.WithinDuration(t, time.Now().UTC(), e.Now(), time.Second)
}

func TestSync_FailureKeepsPriorOffset(t *testing.T) {
	networkTime := time.Now().Add(42 * time.Minute)

	e := newTestEngine([]string{"good"})
	e.query = func(host string, timeout time.Duration) (time.Time, error) {
		return networkTime, nil
	}
	_, err := e.Sync()
	require.NoError(t, err)

	before := e.Now()

	e.query = func(host string, timeout time.Duration) (time.Time, error) {
		return time.Time{}, errors.New("down")
	}
	_, err = e.Sync()
	require.Error(t, err)

	assert.True(t, e.Synced())
	assert.WithinDuration(t, before, e.Now(), time.Second)
}

func TestNow_TracksNetworkTimePlusElapsed(t *testing.T) {
	networkTime := time.Now().Add(10 * time.Minute)

	e := newTestEngine([]string{"srv"})
	e.query = func(host string, timeout time.Duration) (time.Time, error) {
		return networkTime, nil
	}
	_, err := e.Sync()
	require.NoError(t, err)

	elapsed := 50 * time.Millisecond
	time.Sleep(elapsed)

	want := networkTime.Add(elapsed)
	assert.WithinDuration(t, want, e.Now(), 100*time.Millisecond)
}

func TestNowMillis_NeverZero(t *testing.T) {
	e := newTestEngine([]string{"srv"})

	assert.Greater(t, e.NowMillis(), int64(0))
}

func TestSync_LastWriteWins(t *testing.T) {
	first := time.Now().Add(1 * time.Hour)
	second := time.Now().Add(2 * time.Hour)

	e := newTestEngine([]string{"srv"})

	e.query = func(host string, timeout time.Duration) (time.Time, error) { return first, nil }
	_, err := e.Sync()
	require.NoError(t, err)

	e.query = func(host string, timeout time.Duration) (time.Time, error) { return second, nil }
	_, err = e.Sync()
	require.NoError(t, err)

	assert.WithinDuration(t, second, e.Now(), time.Second)
}

func TestSyncAsync_CallbackInvokedOnce(t *testing.T) {
	e := newTestEngine([]string{"srv"})
	e.query = func(host string, timeout time.Duration) (time.Time, error) {
		return time.Now(), nil
	}

	results := make(chan Result, 2)
	e.SyncAsync(func(r Result) { results <- r })

	select {
	case r := <-results:
		assert.True(t, r.OK)
	case <-time.After(time.Second):
		t.Fatal("sync callback never invoked")
	}

	select {
	case <-results:
		t.Fatal("sync callback invoked more than once")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSync_NoCandidates(t *testing.T) {
	e := newTestEngine(nil)

	_, err := e.Sync()
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestStartStop_ResyncLoop(t *testing.T) {
	var mu sync.Mutex
	count := 0

	e := NewEngine([]string{"srv"}, 50*time.Millisecond, 10*time.Millisecond)
	e.query = func(host string, timeout time.Duration) (time.Time, error) {
		mu.Lock()
		count++
		mu.Unlock()
		return time.Now(), nil
	}

	e.Start()
	time.Sleep(50 * time.Millisecond)
	e.Stop()

	mu.Lock()
	synced := count
	mu.Unlock()
	assert.Greater(t, synced, 0)
}
