package hostapi

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Responder produces the value (or error) for one scripted call.
type Responder func(params any) (any, error)

// Call is one recorded invocation.
type Call struct {
	Method string
	Params any
}

// Fake is an in-memory Host for tests and offline demos. Responses are
// round-tripped through JSON so callers decode them like real replies.
type Fake struct {
	mu         sync.Mutex
	responders map[string][]Responder
	calls      []Call
	ready      []func()
	fired      bool
	sentinel   string
	disabled   bool
}

// NewFake returns a fake host using the default device sentinel.
func NewFake() *Fake {
	return &Fake{responders: map[string][]Responder{}, sentinel: DefaultDeviceSentinel}
}

// On queues a responder for method. Responders are consumed in order; the
// last one is reused once the queue drains.
func (f *Fake) On(method string, r Responder) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responders[method] = append(f.responders[method], r)
	return f
}

// Reply queues a fixed value for method.
func (f *Fake) Reply(method string, value any) *Fake {
	return f.On(method, func(any) (any, error) { return value, nil })
}

// Fail queues an error for method.
func (f *Fake) Fail(method string, err error) *Fake {
	return f.On(method, func(any) (any, error) { return nil, err })
}

// Disable makes API return nil, as if the host never provided one.
func (f *Fake) Disable() *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disabled = true
	return f
}

// WithSentinel overrides the device sentinel.
func (f *Fake) WithSentinel(s string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sentinel = s
	return f
}

// API implements Host.
func (f *Fake) API() API {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.disabled {
		return nil
	}
	return f
}

// Ready implements Host.
func (f *Fake) Ready(fn func()) {
	if fn == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ready = append(f.ready, fn)
}

// FireReady runs the registered readiness callbacks once.
func (f *Fake) FireReady() {
	f.mu.Lock()
	if f.fired {
		f.mu.Unlock()
		return
	}
	f.fired = true
	callbacks := f.ready
	f.mu.Unlock()
	for _, fn := range callbacks {
		fn()
	}
}

// DeviceSentinel implements Host.
func (f *Fake) DeviceSentinel() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sentinel
}

// Calls returns a copy of every recorded invocation.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsTo returns the recorded invocations of method.
func (f *Fake) CallsTo(method string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Call implements API.
func (f *Fake) Call(ctx context.Context, method string, params any, result any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	f.calls = append(f.calls, Call{Method: method, Params: params})
	queue := f.responders[method]
	var r Responder
	switch len(queue) {
	case 0:
	case 1:
		r = queue[0]
	default:
		r = queue[0]
		f.responders[method] = queue[1:]
	}
	f.mu.Unlock()
	if r == nil {
		return fmt.Errorf("hostapi: fake has no response for %s", method)
	}
	value, err := r(params)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("hostapi: encode fake reply: %w", err)
	}
	return json.Unmarshal(raw, result)
}
