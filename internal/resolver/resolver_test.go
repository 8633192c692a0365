package resolver

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fixedClock always returns the same instant
type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time { return c.t }

// tickingClock advances by one second on every call, to detect resolvers
// taking more than one time snapshot per call
type tickingClock struct {
	t     time.Time
	calls int32
}

func (c *tickingClock) Now() time.Time {
	n := atomic.AddInt32(&c.calls, 1)
	return c.t.Add(time.Duration(n-1) * time.Second)
}

func staticEndpoint(s string) EndpointProvider {
	return func() string { return s }
}

func TestResolve_GoldenValues(t *testing.T) {
	// 1769221812000 ms = 2026-01-24T02:30:12Z
	clock := fixedClock{t: time.UnixMilli(1769221812000)}
	r := New(clock, staticEndpoint("10.0.0.5:8000"))

	assert.Equal(t, "20260124T023012.00Z", r.Resolve("{timestamp}"))
	assert.Equal(t, "1769221812", r.Resolve("{starttime}"))
	assert.Equal(t, "10.0.0.5:8000", r.Resolve("{serverip}"))
}

func TestResolve_FullTemplate(t *testing.T) {
	clock := fixedClock{t: time.UnixMilli(1769221812000)}
	r := New(clock, staticEndpoint("192.168.1.10"))

	got := r.Resolve("http://{serverip}/live/ch1?start={starttime}&ts={timestamp}")
	assert.Equal(t, "http://192.168.1.10/live/ch1?start=1769221812&ts=20260124T023012.00Z", got)
}

func TestResolve_Deterministic(t *testing.T) {
	clock := fixedClock{t: time.UnixMilli(1769221812000)}
	r := New(clock, staticEndpoint("a"))

	template := "udp://{serverip}:1234?t={timestamp}"
	assert.Equal(t, r.Resolve(template), r.Resolve(template))
}

func TestResolve_SingleTimeSnapshot(t *testing.T) {
	// Both time placeholders must resolve against the same reading even when
	// the clock keeps moving.
	clock := &tickingClock{t: time.Unix(1769221812, 0)}
	r := New(clock, staticEndpoint("a"))

	got := r.Resolve("{starttime}/{timestamp}/{starttime}")
	assert.Equal(t, "1769221812/20260124T023012.00Z/1769221812", got)
	assert.Equal(t, int32(1), clock.calls)
}

func TestResolve_NoPlaceholders(t *testing.T) {
	r := New(fixedClock{t: time.Now()}, staticEndpoint("a"))

	template := "http://example.com/stream.m3u8"
	assert.Equal(t, template, r.Resolve(template))
}

func TestResolve_UnknownPlaceholderUntouched(t *testing.T) {
	r := New(fixedClock{t: time.UnixMilli(1769221812000)}, staticEndpoint("srv"))

	got := r.Resolve("http://{serverip}/{channel}/x")
	assert.Equal(t, "http://srv/{channel}/x", got)
}

func TestFormatTimestamp_UTCAndFixedFraction(t *testing.T) {
	// A zoned input must still render in UTC
	loc := time.FixedZone("CET", 3600)
	in := time.Date(2026, 1, 24, 3, 30, 12, 999_000_000, loc)

	assert.Equal(t, "20260124T023012.00Z", FormatTimestamp(in))
}

func TestFormatTimestamp_FieldWidths(t *testing.T) {
	in := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

	assert.Equal(t, "20260203T040506.00Z", FormatTimestamp(in))
}
