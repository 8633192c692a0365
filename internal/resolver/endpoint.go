package resolver

import "sync"

// Endpoint is the single-writer cell holding the currently configured stream
// server endpoint. The settings store seeds it at startup and updates it when
// the user changes the server; the resolver only ever reads it.
type Endpoint struct {
	mu    sync.RWMutex
	value string
}

// NewEndpoint creates an endpoint cell with an initial value
func NewEndpoint(value string) *Endpoint {
	return &Endpoint{value: value}
}

// Get returns the current endpoint string
func (e *Endpoint) Get() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.value
}

// Set replaces the endpoint string
func (e *Endpoint) Set(value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.value = value
}

// Provider returns an EndpointProvider reading from the cell
func (e *Endpoint) Provider() EndpointProvider {
	return e.Get
}
