// Package models holds the archive and transport shapes of samples collected
// at the border router.
package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tree "github.com/meshtree/pkg/models"
)

const (
	MetricTemperature = "temperature"
	MetricEvents      = "events"

	devicePrefix = "node-"
)

// Record is one sample in the JSON shape published over MQTT and archived.
// Timestamp is unix milliseconds at the border router.
type Record struct {
	Timestamp  int64   `json:"timestamp"`
	Value      float64 `json:"value"`
	DeviceID   string  `json:"device_id"`
	MetricName string  `json:"metric_name"`
	Clock      int64   `json:"clock,omitempty"`
	Via        string  `json:"via,omitempty"`
}

// MetricFor names the metric a sample kind is published under.
func MetricFor(kind tree.SampleKind) string {
	if kind == tree.SampleNotify {
		return MetricEvents
	}
	return MetricTemperature
}

// DeviceID names a tree node in the archive.
func DeviceID(source uint16) string {
	return devicePrefix + strconv.Itoa(int(source))
}

// ParseDeviceID is the inverse of DeviceID.
func ParseDeviceID(id string) (uint16, error) {
	if !strings.HasPrefix(id, devicePrefix) {
		return 0, fmt.Errorf("device id %q: missing %q prefix", id, devicePrefix)
	}
	n, err := strconv.ParseUint(strings.TrimPrefix(id, devicePrefix), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("device id %q: %w", id, err)
	}
	return uint16(n), nil
}

// FromSample converts a delivered sample. A zero sample timestamp is stamped
// with now.
func FromSample(s tree.Sample, now time.Time) Record {
	ts := s.Timestamp
	if ts == 0 {
		ts = now.UnixMilli()
	}
	rec := Record{
		Timestamp:  ts,
		Value:      float64(s.Value),
		DeviceID:   DeviceID(s.SourceID),
		MetricName: MetricFor(s.Kind),
		Clock:      s.Clock,
	}
	if !s.From.IsNull() {
		rec.Via = s.From.String()
	}
	return rec
}

// Validate reports a record that cannot be archived.
func (r Record) Validate() error {
	if r.DeviceID == "" {
		return fmt.Errorf("missing device_id")
	}
	if r.MetricName == "" {
		return fmt.Errorf("missing metric_name")
	}
	return nil
}
