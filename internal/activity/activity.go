// Package activity holds the driver activity catalog and the log record
// payload submitted to the fleet platform.
package activity

import (
	"fmt"
	"strings"
)

// LogTypeDriverActivity tags every record this form creates.
const LogTypeDriverActivity = "DriverActivity"

const messagePrefix = "Driver selected activity: "

// Label is one selectable activity.
type Label string

func (l Label) String() string { return string(l) }

// DefaultLabels is the catalog used when the config file does not override it.
var DefaultLabels = []Label{
	"Pre-Trip Inspection",
	"At Stop: Loading",
	"At Stop: Unloading",
	"At Stop: Paperwork",
	"On Break: Meal",
	"On Break: Personal",
	"Fueling Vehicle",
	"Vehicle Maintenance",
	"Delayed: Weather",
	"Delayed: Traffic",
}

// Catalog is the fixed, ordered list of labels shown to the driver.
type Catalog struct {
	labels []Label
}

// NewCatalog copies labels in declaration order. Duplicates are kept.
func NewCatalog(labels []Label) Catalog {
	out := make([]Label, len(labels))
	copy(out, labels)
	return Catalog{labels: out}
}

// DefaultCatalog returns the built-in ten activities.
func DefaultCatalog() Catalog {
	return NewCatalog(DefaultLabels)
}

// Len reports the number of labels.
func (c Catalog) Len() int { return len(c.labels) }

// At returns the label at index i and whether i is in range.
func (c Catalog) At(i int) (Label, bool) {
	if i < 0 || i >= len(c.labels) {
		return "", false
	}
	return c.labels[i], true
}

// Labels returns a copy of the catalog contents.
func (c Catalog) Labels() []Label {
	out := make([]Label, len(c.labels))
	copy(out, c.labels)
	return out
}

// Duplicates lists labels that appear more than once.
func (c Catalog) Duplicates() []Label {
	seen := make(map[Label]int, len(c.labels))
	var dups []Label
	for _, l := range c.labels {
		seen[l]++
		if seen[l] == 2 {
			dups = append(dups, l)
		}
	}
	return dups
}

// DeviceRef points a record at a device by id.
type DeviceRef struct {
	ID string `json:"id"`
}

// Device is the subset of a device entity the form reads back.
type Device struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// LogRecord is the entity passed to the Add call.
type LogRecord struct {
	Device  DeviceRef `json:"device"`
	LogType string    `json:"logType"`
	Message string    `json:"message"`
}

// Message renders the human-readable text stored on the record.
func Message(l Label) string {
	return messagePrefix + string(l)
}

// NewLogRecord builds the record for a device and label.
func NewLogRecord(deviceID string, l Label) (LogRecord, error) {
	if strings.TrimSpace(deviceID) == "" {
		return LogRecord{}, fmt.Errorf("activity: empty device id")
	}
	if strings.TrimSpace(string(l)) == "" {
		return LogRecord{}, fmt.Errorf("activity: empty label")
	}
	return LogRecord{
		Device:  DeviceRef{ID: deviceID},
		LogType: LogTypeDriverActivity,
		Message: Message(l),
	}, nil
}
