package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "meshtree"
)

var (
	// FramesSent counts frames handed to the transport
	FramesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Total number of frames sent",
		},
		[]string{"signal", "status"}, // status: ok/error
	)

	// FramesReceived counts decoded inbound frames
	FramesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Total number of frames received",
		},
		[]string{"signal"},
	)

	// FramesDropped counts inbound frames that could not be decoded
	FramesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Total number of undecodable inbound frames",
		},
	)

	// Children tracks the current child count
	Children = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "children",
			Help:      "Current number of children",
		},
		[]string{"node"},
	)

	// Rank tracks the current rank (-1 when not joined)
	Rank = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rank",
			Help:      "Current tree rank, -1 when detached",
		},
		[]string{"node"},
	)

	// Evictions counts peers removed by the liveness monitor
	Evictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "liveness_evictions_total",
			Help:      "Peers removed after missing two liveness cycles",
		},
		[]string{"peer"}, // peer: parent/child
	)

	// ParentChanges counts accepted join offers
	ParentChanges = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parent_changes_total",
			Help:      "Total number of accepted join offers",
		},
	)

	// ClockRounds counts completed synchronization rounds
	ClockRounds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clock_rounds_total",
			Help:      "Clock synchronization rounds by outcome",
		},
		[]string{"outcome"}, // outcome: completed/abandoned/skipped
	)

	// ClockCompensation tracks the current clock offset in ticks
	ClockCompensation = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "clock_compensation_ticks",
			Help:      "Current clock compensation in ticks",
		},
		[]string{"node"},
	)

	// SamplesDelivered counts samples reaching the sink
	SamplesDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_delivered_total",
			Help:      "Samples delivered at the border router",
		},
		[]string{"kind"},
	)

	// SamplesRelayed counts samples forwarded toward the root
	SamplesRelayed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_relayed_total",
			Help:      "Samples forwarded toward the border router",
		},
	)

	// RecordsIngested counts records archived by the collector
	RecordsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_ingested_total",
			Help:      "Records archived from MQTT",
		},
		[]string{"metric"},
	)

	// GatewayLines counts lines read by the gateway bridge
	GatewayLines = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_lines_total",
			Help:      "Lines read from the border router link",
		},
		[]string{"status"}, // status: ok/invalid/error
	)
)

// RecordSend records one transport send attempt.
func RecordSend(signal string, ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	FramesSent.WithLabelValues(signal, status).Inc()
}

func RecordReceive(signal string) {
	FramesReceived.WithLabelValues(signal).Inc()
}

func RecordDrop() {
	FramesDropped.Inc()
}

// RecordTopology publishes the node's rank and child count.
func RecordTopology(node string, rank, children int) {
	Rank.WithLabelValues(node).Set(float64(rank))
	Children.WithLabelValues(node).Set(float64(children))
}

func RecordEviction(peer string) {
	Evictions.WithLabelValues(peer).Inc()
}

func RecordParentChange() {
	ParentChanges.Inc()
}

func RecordClockRound(outcome string) {
	ClockRounds.WithLabelValues(outcome).Inc()
}

func RecordCompensation(node string, ticks int64) {
	ClockCompensation.WithLabelValues(node).Set(float64(ticks))
}

func RecordSample(kind string) {
	SamplesDelivered.WithLabelValues(kind).Inc()
}

func RecordRelay() {
	SamplesRelayed.Inc()
}

func RecordIngested(metric string) {
	RecordsIngested.WithLabelValues(metric).Inc()
}

func RecordGatewayLine(status string) {
	GatewayLines.WithLabelValues(status).Inc()
}
