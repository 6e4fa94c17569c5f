package models

// SampleKind distinguishes slot-gated readings from unsolicited notifications.
type SampleKind string

const (
	SampleReport SampleKind = "report"
	SampleNotify SampleKind = "notify"
)

// Sample is a sensor value delivered to the border router. Timestamp is unix
// milliseconds, set by the sink that first records it.
type Sample struct {
	Kind      SampleKind `json:"kind"`
	SourceID  uint16     `json:"source_id"`
	Value     int32      `json:"value"`
	From      Address    `json:"from"`
	Clock     int64      `json:"clock"`
	Timestamp int64      `json:"timestamp"`
}
