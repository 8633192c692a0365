// Package resolver turns a channel URL template into a concrete,
// request-ready stream address by substituting time and endpoint
// placeholders. The upstream servers are strict about the formatting, so the
// substitution rules here are treated as bit-exact.
package resolver

import (
	"strconv"
	"strings"
	"time"
)

// Recognized placeholders. Unknown placeholders are left untouched.
const (
	PlaceholderServerIP  = "{serverip}"
	PlaceholderTimestamp = "{timestamp}"
	PlaceholderStartTime = "{starttime}"
)

// Clock provides the current network-time estimate
type Clock interface {
	Now() time.Time
}

// EndpointProvider supplies the currently configured stream server endpoint
type EndpointProvider func() string

// Resolver substitutes placeholders in channel URL templates
type Resolver struct {
	clock    Clock
	endpoint EndpointProvider
}

// New creates a resolver reading time from clock and the {serverip} value
// from endpoint
func New(clock Clock, endpoint EndpointProvider) *Resolver {
	return &Resolver{clock: clock, endpoint: endpoint}
}

// Resolve substitutes all recognized placeholders in template. Every time
// placeholder in a single call is resolved against the same time snapshot so
// one request never carries inconsistent timestamps. Templates without
// placeholders pass through unchanged.
func (r *Resolver) Resolve(template string) string {
	now := r.clock.Now().UTC()

	out := strings.ReplaceAll(template, PlaceholderServerIP, r.endpoint())
	out = strings.ReplaceAll(out, PlaceholderTimestamp, FormatTimestamp(now))
	out = strings.ReplaceAll(out, PlaceholderStartTime, strconv.FormatInt(now.Unix(), 10))
	return out
}

// FormatTimestamp renders t in the fixed upstream wire format
// yyyyMMdd'T'HHmmss.00Z: no date separators, a literal fractional-second
// field of .00, UTC always.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("20060102T150405") + ".00Z"
}
