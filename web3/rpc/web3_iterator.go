package rpc

import (
	"fmt"
	"sync"
)

// Web3Iterator struct is a pool of Web3Endpoint that allows to get the next
// available endpoint in a round-robin fashion. It also allows to disable an
// endpoint if it fails. It allows to manage multiple endpoints safely.
type Web3Iterator struct {
	mtx       sync.Mutex
	available []*Web3Endpoint
	disabled  []*Web3Endpoint
	nextIndex int
}

// NewWeb3Iterator creates a new Web3Iterator with the given endpoints.
func NewWeb3Iterator(endpoints ...*Web3Endpoint) *Web3Iterator {
	return &Web3Iterator{
		available: endpoints,
	}
}

// Available returns the number of available endpoints.
func (w3pp *Web3Iterator) Available() int {
	w3pp.mtx.Lock()
	defer w3pp.mtx.Unlock()
	return len(w3pp.available)
}

// Disabled returns the number of disabled endpoints.
func (w3pp *Web3Iterator) Disabled() int {
	w3pp.mtx.Lock()
	defer w3pp.mtx.Unlock()
	return len(w3pp.disabled)
}

// Add adds a new endpoint to the pool, making it available.
func (w3pp *Web3Iterator) Add(endpoint ...*Web3Endpoint) {
	w3pp.mtx.Lock()
	defer w3pp.mtx.Unlock()
	w3pp.available = append(w3pp.available, endpoint...)
}

// Next returns the next available endpoint in a round-robin fashion. If
// there are no available endpoints, it resets the disabled ones and returns
// the first of them, so the pool can start over.
func (w3pp *Web3Iterator) Next() (*Web3Endpoint, error) {
	w3pp.mtx.Lock()
	defer w3pp.mtx.Unlock()
	if len(w3pp.available) == 0 {
		if len(w3pp.disabled) == 0 {
			return nil, fmt.Errorf("no endpoints available")
		}
		// reset the disabled endpoints and start over
		w3pp.available = w3pp.disabled
		w3pp.disabled = nil
		w3pp.nextIndex = 0
	}
	if w3pp.nextIndex >= len(w3pp.available) {
		w3pp.nextIndex = 0
	}
	endpoint := w3pp.available[w3pp.nextIndex]
	w3pp.nextIndex = (w3pp.nextIndex + 1) % len(w3pp.available)
	return endpoint, nil
}

// Disable marks the endpoint with the given URI as unavailable.
func (w3pp *Web3Iterator) Disable(uri string) {
	w3pp.mtx.Lock()
	defer w3pp.mtx.Unlock()
	for i, e := range w3pp.available {
		if e.URI == uri {
			w3pp.available = append(w3pp.available[:i], w3pp.available[i+1:]...)
			w3pp.disabled = append(w3pp.disabled, e)
			break
		}
	}
	if w3pp.nextIndex >= len(w3pp.available) {
		w3pp.nextIndex = 0
	}
}
