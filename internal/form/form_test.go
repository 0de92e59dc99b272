package form

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/kingrea/driver-activity/internal/activity"
	"github.com/kingrea/driver-activity/internal/hostapi"
	"github.com/kingrea/driver-activity/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type recordingLogger struct {
	mu      sync.Mutex
	entries []string
}

func (r *recordingLogger) add(level, format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, level+" "+fmt.Sprintf(format, args...))
}

func (r *recordingLogger) Info(format string, args ...any)  { r.add("INFO", format, args...) }
func (r *recordingLogger) Warn(format string, args ...any)  { r.add("WARN", format, args...) }
func (r *recordingLogger) Error(format string, args ...any) { r.add("ERROR", format, args...) }

func (r *recordingLogger) count(level string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if strings.HasPrefix(e, level+" ") {
			n++
		}
	}
	return n
}

func newController(t *testing.T, host hostapi.Host) (*Controller, *recordingLogger) {
	t.Helper()
	logger := &recordingLogger{}
	opts := []Option{WithLogger(logger)}
	if host != nil {
		opts = append(opts, WithHost(host))
	}
	return New(activity.DefaultCatalog(), opts...), logger
}

func submitAndComplete(t *testing.T, c *Controller) (Result, bool) {
	t.Helper()
	sub, ok := c.Submit()
	if !ok {
		t.Fatalf("submit rejected with status %+v", c.Status())
	}
	res := sub.Run(context.Background())
	return res, c.Complete(res)
}

func assertSelected(t *testing.T, c *Controller, want activity.Label) {
	t.Helper()
	got, ok := c.Selected()
	if !ok || got != want {
		t.Fatalf("selected = %q (%v), want %q", got, ok, want)
	}
}

func TestItemsRenderCatalogInOrder(t *testing.T) {
	c, _ := newController(t, nil)
	items := c.Items()
	if len(items) != 10 {
		t.Fatalf("items = %d", len(items))
	}
	for i, label := range activity.DefaultLabels {
		if items[i].Label != label || items[i].Selected {
			t.Fatalf("item %d = %+v", i, items[i])
		}
	}
}

func TestEveryClickLeavesExactlyOneSelected(t *testing.T) {
	c, _ := newController(t, nil)
	for _, idx := range []int{3, 3, 0, 9, 4, 7, 1} {
		if !c.Select(idx) {
			t.Fatalf("select %d rejected", idx)
		}
		marked := 0
		for i, it := range c.Items() {
			if it.Selected {
				marked++
				if i != idx {
					t.Fatalf("item %d marked after clicking %d", i, idx)
				}
			}
		}
		if marked != 1 {
			t.Fatalf("marked = %d after clicking %d", marked, idx)
		}
		assertSelected(t, c, activity.DefaultLabels[idx])
		if got := c.SelectedIndex(); got != idx {
			t.Fatalf("SelectedIndex = %d, want %d", got, idx)
		}
	}
}

func TestClickOutsideListIsNoop(t *testing.T) {
	c, _ := newController(t, nil)
	c.Select(2)
	for _, idx := range []int{-1, 10, 99} {
		if c.Select(idx) {
			t.Fatalf("select %d should be ignored", idx)
		}
	}
	assertSelected(t, c, "At Stop: Unloading")
	if got := c.SelectedIndex(); got != 2 {
		t.Fatalf("SelectedIndex = %d, want 2", got)
	}
}

func TestSubmitWithoutSelectionNeverCallsHost(t *testing.T) {
	host := hostapi.NewFake()
	m := metrics.New()
	c := New(activity.DefaultCatalog(), WithHost(host), WithMetrics(m))
	for i := 0; i < 3; i++ {
		if _, ok := c.Submit(); ok {
			t.Fatalf("submit without selection must fail validation")
		}
		if st := c.Status(); !st.Visible || st.Text != TextSelectActivity {
			t.Fatalf("status = %+v", st)
		}
	}
	if calls := host.Calls(); len(calls) != 0 {
		t.Fatalf("host received %d calls", len(calls))
	}
	if c.Pending() != 0 {
		t.Fatalf("pending = %d", c.Pending())
	}
	count, err := testutil.GatherAndCount(m.Registry(), "driver_activity_submissions_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected only the validation series, got %d", count)
	}
}

func TestSuccessfulSubmissionScenario(t *testing.T) {
	host := hostapi.NewFake().
		Reply(hostapi.MethodGet, []map[string]string{{"id": "b123"}}).
		Reply(hostapi.MethodAdd, map[string]bool{"ok": true})
	c, logger := newController(t, host)

	c.Select(4)
	assertSelected(t, c, "On Break: Meal")

	res, acknowledged := submitAndComplete(t, c)
	if !acknowledged {
		t.Fatalf("expected acknowledgment, result %+v", res)
	}
	if res.Stage != StageDone || res.Err != nil {
		t.Fatalf("result = %+v", res)
	}
	if string(res.Confirmation) != `{"ok":true}` {
		t.Fatalf("confirmation = %s", res.Confirmation)
	}

	gets := host.CallsTo(hostapi.MethodGet)
	if len(gets) != 1 {
		t.Fatalf("get calls = %d", len(gets))
	}
	if p := gets[0].Params.(hostapi.GetParams); p.TypeName != "Device" || p.Search.ID != hostapi.DefaultDeviceSentinel {
		t.Fatalf("get params = %+v", p)
	}
	adds := host.CallsTo(hostapi.MethodAdd)
	if len(adds) != 1 {
		t.Fatalf("add calls = %d", len(adds))
	}
	params := adds[0].Params.(hostapi.AddParams)
	if params.TypeName != "LogRecord" {
		t.Fatalf("add type = %s", params.TypeName)
	}
	raw, _ := json.Marshal(params.Entity)
	want := `{"device":{"id":"b123"},"logType":"DriverActivity","message":"Driver selected activity: On Break: Meal"}`
	if string(raw) != want {
		t.Fatalf("entity = %s\nwant     %s", raw, want)
	}

	if _, ok := c.Selected(); ok {
		t.Fatalf("selection must reset after success")
	}
	for _, it := range c.Items() {
		if it.Selected {
			t.Fatalf("visual selection not cleared: %+v", it)
		}
	}
	if c.Status().Visible {
		t.Fatalf("status must stay hidden after success")
	}
	if logger.count("ERROR") != 0 {
		t.Fatalf("unexpected error entries: %v", logger.entries)
	}
}

func TestIdentityFailureKeepsSelection(t *testing.T) {
	host := hostapi.NewFake().Fail(hostapi.MethodGet, errors.New("offline"))
	c, logger := newController(t, host)
	c.Select(6)

	res, acknowledged := submitAndComplete(t, c)
	if acknowledged {
		t.Fatalf("identity failure must not acknowledge")
	}
	if res.Stage != StageIdentity {
		t.Fatalf("stage = %s", res.Stage)
	}
	if n := len(host.CallsTo(hostapi.MethodAdd)); n != 0 {
		t.Fatalf("add issued %d times after identity failure", n)
	}
	if st := c.Status(); !st.Visible || st.Text != TextDeviceInfo {
		t.Fatalf("status = %+v", st)
	}
	assertSelected(t, c, "Fueling Vehicle")
	if logger.count("ERROR") != 1 {
		t.Fatalf("expected one diagnostic error, got %v", logger.entries)
	}
}

func TestEmptyDeviceListIsIdentityFailure(t *testing.T) {
	host := hostapi.NewFake().Reply(hostapi.MethodGet, []activity.Device{})
	c, _ := newController(t, host)
	c.Select(0)
	res, _ := submitAndComplete(t, c)
	if !errors.Is(res.Err, ErrNoDevice) || res.Stage != StageIdentity {
		t.Fatalf("result = %+v", res)
	}
	if c.Status().Text != TextDeviceInfo {
		t.Fatalf("status = %+v", c.Status())
	}
}

func TestCreateFailureKeepsSelectionForRetry(t *testing.T) {
	host := hostapi.NewFake().
		Reply(hostapi.MethodGet, []activity.Device{{ID: "b123"}}).
		Fail(hostapi.MethodAdd, errors.New("quota")).
		Reply(hostapi.MethodAdd, "a1")
	c, _ := newController(t, host)
	c.Select(8)

	res, acknowledged := submitAndComplete(t, c)
	if acknowledged || res.Stage != StageCreate {
		t.Fatalf("result = %+v acknowledged=%v", res, acknowledged)
	}
	if st := c.Status(); !st.Visible || st.Text != TextSubmitFailed {
		t.Fatalf("status = %+v", st)
	}
	assertSelected(t, c, "Delayed: Weather")

	res, acknowledged = submitAndComplete(t, c)
	if !acknowledged || res.Stage != StageDone {
		t.Fatalf("retry result = %+v", res)
	}
	if n := len(host.CallsTo(hostapi.MethodGet)); n != 2 {
		t.Fatalf("identity must be resolved fresh on every submission, got %d gets", n)
	}
}

func TestSelectingHidesVisibleStatus(t *testing.T) {
	host := hostapi.NewFake().Fail(hostapi.MethodGet, errors.New("offline"))
	c, _ := newController(t, host)

	c.Submit()
	if !c.Status().Visible {
		t.Fatalf("validation status should be visible")
	}
	c.Select(1)
	if c.Status().Visible {
		t.Fatalf("selection must hide validation status")
	}

	submitAndComplete(t, c)
	if !c.Status().Visible {
		t.Fatalf("identity failure status should be visible")
	}
	c.Select(1)
	if c.Status().Visible {
		t.Fatalf("selection must hide failure status")
	}
}

func TestNoHostStillSelectsButCannotSubmit(t *testing.T) {
	c, logger := newController(t, nil)
	if c.HostPresent() {
		t.Fatalf("no host should be present")
	}
	if logger.count("WARN") != 1 {
		t.Fatalf("expected a warning about the missing host, got %v", logger.entries)
	}
	c.Select(5)
	res, acknowledged := submitAndComplete(t, c)
	if acknowledged || !errors.Is(res.Err, hostapi.ErrHostUnavailable) {
		t.Fatalf("result = %+v", res)
	}
	if c.Status().Text != TextDeviceInfo {
		t.Fatalf("status = %+v", c.Status())
	}
	assertSelected(t, c, "On Break: Personal")
}

func TestDisabledHostAPIBehavesLikeMissingHost(t *testing.T) {
	host := hostapi.NewFake().Disable()
	c, _ := newController(t, host)
	if c.HostPresent() {
		t.Fatalf("disabled api must not count as present")
	}
	c.Select(0)
	res, _ := submitAndComplete(t, c)
	if !errors.Is(res.Err, hostapi.ErrHostUnavailable) {
		t.Fatalf("err = %v", res.Err)
	}
}

func TestReadinessHookChangesNoFormState(t *testing.T) {
	host := hostapi.NewFake()
	c, logger := newController(t, host)
	c.Select(3)
	before := c.Items()
	if c.HostReady() {
		t.Fatalf("host not ready before the hook fires")
	}
	host.FireReady()
	if !c.HostReady() {
		t.Fatalf("hook should record readiness")
	}
	after := c.Items()
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("ready hook changed item %d", i)
		}
	}
	if logger.count("INFO") == 0 {
		t.Fatalf("ready hook should log")
	}
}

func TestCustomSentinelIsForwarded(t *testing.T) {
	host := hostapi.NewFake().WithSentinel("b77").
		Reply(hostapi.MethodGet, []activity.Device{{ID: "b77"}}).
		Reply(hostapi.MethodAdd, "ok")
	c, _ := newController(t, host)
	c.Select(0)
	submitAndComplete(t, c)
	p := host.CallsTo(hostapi.MethodGet)[0].Params.(hostapi.GetParams)
	if p.Search.ID != "b77" {
		t.Fatalf("sentinel = %s", p.Search.ID)
	}
}

func TestPendingCountsOverlappingSubmissions(t *testing.T) {
	host := hostapi.NewFake().
		Reply(hostapi.MethodGet, []activity.Device{{ID: "b1"}}).
		Reply(hostapi.MethodAdd, "ok")
	c, _ := newController(t, host)
	c.Select(2)
	first, _ := c.Submit()
	second, _ := c.Submit()
	if c.Pending() != 2 {
		t.Fatalf("pending = %d", c.Pending())
	}
	if !c.Complete(first.Run(context.Background())) {
		t.Fatalf("first submission should succeed")
	}
	if second.Label() != "At Stop: Unloading" {
		t.Fatalf("second label = %s", second.Label())
	}
	c.Complete(second.Run(context.Background()))
	if c.Pending() != 0 {
		t.Fatalf("pending = %d", c.Pending())
	}
}

func TestSubmissionMetrics(t *testing.T) {
	m := metrics.New()
	host := hostapi.NewFake().
		Reply(hostapi.MethodGet, []activity.Device{{ID: "b1"}}).
		Reply(hostapi.MethodAdd, "ok")
	c := New(activity.DefaultCatalog(), WithHost(host), WithMetrics(m))
	c.Submit()
	c.Select(1)
	submitAndComplete(t, c)

	count, err := testutil.GatherAndCount(m.Registry(), "driver_activity_submissions_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if count != 2 {
		t.Fatalf("submission series = %d, want validation + submitted", count)
	}
}
