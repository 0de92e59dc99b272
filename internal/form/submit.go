package form

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kingrea/driver-activity/internal/activity"
	"github.com/kingrea/driver-activity/internal/hostapi"
	"github.com/kingrea/driver-activity/internal/metrics"
)

// ErrNoDevice is returned when identity resolution yields no usable device.
var ErrNoDevice = errors.New("form: host returned no device")

// Stage names the step a submission stopped at.
type Stage int

const (
	StageIdentity Stage = iota + 1
	StageCreate
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageIdentity:
		return "identity"
	case StageCreate:
		return "create"
	case StageDone:
		return "done"
	}
	return "unknown"
}

// Result is what one submission produced. Err is nil only when Stage is
// StageDone.
type Result struct {
	Label        activity.Label
	Stage        Stage
	DeviceID     string
	Record       activity.LogRecord
	Confirmation json.RawMessage
	Err          error
}

// Submission is one in-flight attempt. Its label is captured when Submit
// succeeds validation.
type Submission struct {
	label    activity.Label
	api      hostapi.API
	sentinel string
	logger   Logger
	metrics  *metrics.Metrics
	clock    func() time.Time
}

// Label returns the activity being submitted.
func (s Submission) Label() activity.Label { return s.label }

// Submit validates the selection. With nothing selected it shows the
// "please select" status and returns false without contacting the host.
func (c *Controller) Submit() (Submission, bool) {
	label, ok := c.Selected()
	if !ok {
		c.showStatus(TextSelectActivity)
		c.metrics.RecordSubmission(metrics.OutcomeValidation)
		return Submission{}, false
	}
	c.hideStatus()
	c.pending++
	c.logger.Info("submitting: %s", label)
	return Submission{
		label:    label,
		api:      c.api,
		sentinel: c.sentinel,
		logger:   c.logger,
		metrics:  c.metrics,
		clock:    time.Now,
	}, true
}

// Run resolves the current device and then creates the log record. The
// record call is issued only after the device lookup succeeded; neither call
// is retried.
func (s Submission) Run(ctx context.Context) Result {
	res := Result{Label: s.label, Stage: StageIdentity}
	clock := s.clock
	if clock == nil {
		clock = time.Now
	}

	started := clock()
	devices, err := hostapi.GetDevices(ctx, s.api, s.sentinel)
	s.metrics.ObserveCall(hostapi.MethodGet, clock().Sub(started), err)
	if err != nil {
		res.Err = err
		return res
	}
	if len(devices) == 0 || devices[0].ID == "" {
		res.Err = ErrNoDevice
		return res
	}
	res.DeviceID = devices[0].ID

	record, err := activity.NewLogRecord(res.DeviceID, s.label)
	if err != nil {
		res.Err = err
		return res
	}
	res.Record = record

	res.Stage = StageCreate
	started = clock()
	confirmation, err := hostapi.AddLogRecord(ctx, s.api, record)
	s.metrics.ObserveCall(hostapi.MethodAdd, clock().Sub(started), err)
	if err != nil {
		res.Err = err
		return res
	}
	res.Confirmation = confirmation
	res.Stage = StageDone
	return res
}

// Complete applies a finished submission. Failures show a status and keep
// the selection so the driver can retry; success clears the selection and
// returns true, meaning the caller must acknowledge it to the driver.
func (c *Controller) Complete(res Result) bool {
	if c.pending > 0 {
		c.pending--
	}
	if res.Err != nil || res.Stage != StageDone {
		err := res.Err
		if err == nil {
			err = fmt.Errorf("form: submission stopped at %s", res.Stage)
		}
		switch res.Stage {
		case StageIdentity:
			c.logger.Error("error getting device: %v", err)
			c.showStatus(TextDeviceInfo)
			c.metrics.RecordSubmission(metrics.OutcomeIdentityFailed)
		default:
			c.logger.Error("error adding log record: %v", err)
			c.showStatus(TextSubmitFailed)
			c.metrics.RecordSubmission(metrics.OutcomeCreateFailed)
		}
		return false
	}
	c.logger.Info("log record added for %s (device %s): %s", res.Label, res.DeviceID, string(res.Confirmation))
	c.clearSelection()
	c.hideStatus()
	c.metrics.RecordSubmission(metrics.OutcomeSubmitted)
	return true
}
