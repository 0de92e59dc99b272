package form

import (
	"sync/atomic"

	"github.com/kingrea/driver-activity/internal/activity"
	"github.com/kingrea/driver-activity/internal/hostapi"
	"github.com/kingrea/driver-activity/internal/metrics"
)

// User-facing texts.
const (
	TextSelectActivity = "Please select an activity."
	TextDeviceInfo     = "Could not get device info. Check connection."
	TextSubmitFailed   = "Submission failed. Please try again."
	TextSubmitted      = "Activity submitted!"
)

// Logger receives diagnostic entries. *logbook.Logbook satisfies it.
type Logger interface {
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Status is the feedback region shown under the list.
type Status struct {
	Visible bool
	Text    string
}

// Item is one rendered element of the list.
type Item struct {
	Label    activity.Label
	Selected bool
}

// Option customizes Controller construction.
type Option func(*Controller)

// WithHost attaches the host capability set. A nil host leaves remote
// operations unavailable.
func WithHost(h hostapi.Host) Option {
	return func(c *Controller) {
		c.host = h
	}
}

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records selections and submission outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// Controller tracks the selection and status for one form instance.
type Controller struct {
	catalog  activity.Catalog
	selected int
	status   Status
	pending  int

	host     hostapi.Host
	api      hostapi.API
	sentinel string
	ready    atomic.Bool

	logger  Logger
	metrics *metrics.Metrics
}

// New renders one element per catalog label. Host presence is checked here
// once; without a host, selection still works but submissions cannot reach
// the remote API.
func New(catalog activity.Catalog, opts ...Option) *Controller {
	c := &Controller{
		catalog:  catalog,
		selected: -1,
		logger:   nopLogger{},
		sentinel: hostapi.DefaultDeviceSentinel,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.host == nil {
		c.logger.Warn("host api not found; running without remote submission")
		return c
	}
	c.api = c.host.API()
	if s := c.host.DeviceSentinel(); s != "" {
		c.sentinel = s
	}
	c.host.Ready(c.onHostReady)
	return c
}

// onHostReady may run on a host goroutine; it only records that the host
// announced itself.
func (c *Controller) onHostReady() {
	c.ready.Store(true)
	c.logger.Info("host api is ready")
}

// HostPresent reports whether a host API was available at construction.
func (c *Controller) HostPresent() bool { return c.api != nil }

// HostReady reports whether the host has invoked the readiness hook.
func (c *Controller) HostReady() bool { return c.ready.Load() }

// Items returns the list in display order with the selection marked.
func (c *Controller) Items() []Item {
	labels := c.catalog.Labels()
	items := make([]Item, len(labels))
	for i, l := range labels {
		items[i] = Item{Label: l, Selected: i == c.selected}
	}
	return items
}

// Len reports the number of selectable elements.
func (c *Controller) Len() int { return c.catalog.Len() }

// Selected returns the current selection, if any.
func (c *Controller) Selected() (activity.Label, bool) {
	if c.selected < 0 {
		return "", false
	}
	l, _ := c.catalog.At(c.selected)
	return l, true
}

// SelectedIndex returns the selected element index or -1.
func (c *Controller) SelectedIndex() int { return c.selected }

// Status returns the status region.
func (c *Controller) Status() Status { return c.status }

// Pending reports submissions issued but not yet completed.
func (c *Controller) Pending() int { return c.pending }

// Select marks the element at index. An index outside the list is a click
// on a non-selectable area and changes nothing.
func (c *Controller) Select(index int) bool {
	if _, ok := c.catalog.At(index); !ok {
		return false
	}
	c.selected = index
	c.hideStatus()
	c.metrics.RecordSelection()
	return true
}

func (c *Controller) clearSelection() {
	c.selected = -1
}

func (c *Controller) showStatus(text string) {
	c.status = Status{Visible: true, Text: text}
}

func (c *Controller) hideStatus() {
	c.status.Visible = false
}
