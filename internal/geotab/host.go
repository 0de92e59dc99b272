package geotab

import (
	"strings"
	"sync"

	"github.com/kingrea/driver-activity/internal/hostapi"
)

// Host adapts a Client to the form's host capabilities. Readiness is
// announced once, after the first successful sign-in or an explicit Signal.
type Host struct {
	client   *Client
	sentinel string

	mu        sync.Mutex
	callbacks []func()
	fired     bool
}

// NewHost wraps client. A nil client yields a host without an API.
func NewHost(client *Client, sentinel string) *Host {
	sentinel = strings.TrimSpace(sentinel)
	if sentinel == "" {
		sentinel = hostapi.DefaultDeviceSentinel
	}
	h := &Host{client: client, sentinel: sentinel}
	if client != nil {
		client.OnAuthenticated(func() { h.Signal() })
	}
	return h
}

// API implements hostapi.Host.
func (h *Host) API() hostapi.API {
	if h.client == nil {
		return nil
	}
	return h.client
}

// DeviceSentinel implements hostapi.Host.
func (h *Host) DeviceSentinel() string { return h.sentinel }

// Ready implements hostapi.Host. Registering after the host became ready
// runs fn immediately.
func (h *Host) Ready(fn func()) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	if h.fired {
		h.mu.Unlock()
		fn()
		return
	}
	h.callbacks = append(h.callbacks, fn)
	h.mu.Unlock()
}

// Signal marks the host ready. Only the first call has an effect; it
// reports whether this call fired the callbacks.
func (h *Host) Signal() bool {
	h.mu.Lock()
	if h.fired {
		h.mu.Unlock()
		return false
	}
	h.fired = true
	callbacks := h.callbacks
	h.callbacks = nil
	h.mu.Unlock()
	for _, fn := range callbacks {
		fn()
	}
	return true
}

// IsReady reports whether Signal has fired.
func (h *Host) IsReady() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fired
}
