// Package sink delivers samples that reached the border router to the
// outside world: MQTT, the archive, websocket clients and stdout.
package sink

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/meshtree/internal/logger"
	"github.com/meshtree/internal/models"
	tree "github.com/meshtree/pkg/models"
)

// Sink consumes samples at the border router.
type Sink interface {
	DeliverSample(s tree.Sample)
}

// Multi stamps each sample with the wall clock and hands it to every sink.
type Multi struct {
	sinks []Sink
	now   func() time.Time
}

func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks, now: time.Now}
}

func (m *Multi) Add(s Sink) {
	m.sinks = append(m.sinks, s)
}

func (m *Multi) DeliverSample(s tree.Sample) {
	if s.Timestamp == 0 {
		s.Timestamp = m.now().UnixMilli()
	}
	for _, sk := range m.sinks {
		sk.DeliverSample(s)
	}
}

// Line writes "SAMPLE <kind> <source> <value> <clock>" per sample, the
// format the gateway bridge parses.
type Line struct {
	mu sync.Mutex
	w  io.Writer
}

func NewLine(w io.Writer) *Line {
	return &Line{w: w}
}

func (l *Line) DeliverSample(s tree.Sample) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "SAMPLE %s %d %d %d\n", s.Kind, s.SourceID, s.Value, s.Clock)
}

// Publisher is the part of the MQTT client the sink needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// MQTT publishes each sample as a JSON record on <prefix>/<metric>.
type MQTT struct {
	pub    Publisher
	prefix string
	log    *zap.Logger
}

func NewMQTT(pub Publisher, prefix string) *MQTT {
	return &MQTT{pub: pub, prefix: prefix, log: logger.Named("sink.mqtt")}
}

func (m *MQTT) DeliverSample(s tree.Sample) {
	rec := models.FromSample(s, time.Now())
	payload, err := json.Marshal(rec)
	if err != nil {
		m.log.Error("marshal record", zap.Error(err))
		return
	}
	topic := m.prefix + "/" + rec.MetricName
	if err := m.pub.Publish(topic, payload, 0, false); err != nil {
		m.log.Warn("publish failed", zap.String("topic", topic), zap.Error(err))
	}
}

// Persister is the part of the archive the sink needs.
type Persister interface {
	Persist(rec models.Record) error
}

// Archive stores each sample.
type Archive struct {
	store Persister
	log   *zap.Logger
}

func NewArchive(store Persister) *Archive {
	return &Archive{store: store, log: logger.Named("sink.archive")}
}

func (a *Archive) DeliverSample(s tree.Sample) {
	if err := a.store.Persist(models.FromSample(s, time.Now())); err != nil {
		a.log.Warn("persist failed", zap.Uint16("source", s.SourceID), zap.Error(err))
	}
}

// RecordPublisher is satisfied by the websocket hub.
type RecordPublisher interface {
	Publish(rec models.Record)
}

// Stream forwards samples to live subscribers.
type Stream struct {
	hub RecordPublisher
}

func NewStream(hub RecordPublisher) *Stream {
	return &Stream{hub: hub}
}

func (st *Stream) DeliverSample(s tree.Sample) {
	st.hub.Publish(models.FromSample(s, time.Now()))
}
