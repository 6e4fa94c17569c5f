package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/meshtree/internal/models"
	"github.com/meshtree/internal/storage"
	tree "github.com/meshtree/pkg/models"
)

type published struct {
	topic   string
	payload []byte
}

type fakePublisher struct {
	msgs []published
	err  error
}

func (f *fakePublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	f.msgs = append(f.msgs, published{topic, payload})
	return f.err
}

type recorder struct {
	got []tree.Sample
}

func (r *recorder) DeliverSample(s tree.Sample) {
	r.got = append(r.got, s)
}

type fakeHub struct {
	recs []models.Record
}

func (h *fakeHub) Publish(rec models.Record) {
	h.recs = append(h.recs, rec)
}

func sample() tree.Sample {
	return tree.Sample{Kind: tree.SampleReport, SourceID: 4, Value: 2215, Clock: 777, From: tree.AddressFromID(2)}
}

func TestLine(t *testing.T) {
	var buf bytes.Buffer
	NewLine(&buf).DeliverSample(sample())
	if got, want := buf.String(), "SAMPLE report 4 2215 777\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestMultiStampsOnce(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	m := NewMulti(a)
	m.Add(b)
	m.now = func() time.Time { return time.UnixMilli(42) }

	m.DeliverSample(sample())
	if len(a.got) != 1 || len(b.got) != 1 {
		t.Fatalf("fan-out failed: %d, %d", len(a.got), len(b.got))
	}
	if a.got[0].Timestamp != 42 || b.got[0].Timestamp != 42 {
		t.Errorf("timestamps %d, %d; want 42", a.got[0].Timestamp, b.got[0].Timestamp)
	}

	pre := sample()
	pre.Timestamp = 7
	m.DeliverSample(pre)
	if a.got[1].Timestamp != 7 {
		t.Errorf("existing timestamp overwritten: %d", a.got[1].Timestamp)
	}
}

func TestMQTTPublishesRecord(t *testing.T) {
	pub := &fakePublisher{}
	NewMQTT(pub, "iot/sensors").DeliverSample(sample())

	if len(pub.msgs) != 1 || pub.msgs[0].topic != "iot/sensors/temperature" {
		t.Fatalf("unexpected publishes %+v", pub.msgs)
	}
	var rec models.Record
	if err := json.Unmarshal(pub.msgs[0].payload, &rec); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if rec.DeviceID != "node-4" || rec.Value != 2215 || rec.Clock != 777 {
		t.Errorf("unexpected record %+v", rec)
	}

	failing := &fakePublisher{err: errors.New("broker down")}
	NewMQTT(failing, "x").DeliverSample(sample())
	if len(failing.msgs) != 1 {
		t.Error("publish should still be attempted")
	}
}

func TestArchiveAndStream(t *testing.T) {
	store := storage.NewMemoryStorage()
	hub := &fakeHub{}
	m := NewMulti(NewArchive(store), NewStream(hub))
	m.DeliverSample(sample())

	recs, _ := store.Query("node-4", models.MetricTemperature, 0, 0)
	if len(recs) != 1 || recs[0].Value != 2215 {
		t.Errorf("archive holds %+v", recs)
	}
	if len(hub.recs) != 1 || hub.recs[0].DeviceID != "node-4" {
		t.Errorf("stream got %+v", hub.recs)
	}
}

func TestAsyncDrainsOnShutdown(t *testing.T) {
	rec := &recorder{}
	a := NewAsync(rec, 4)
	for i := 0; i < 6; i++ {
		a.DeliverSample(sample())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a.Run(ctx)

	select {
	case <-a.Done():
	default:
		t.Error("Done not closed after Run")
	}
	if len(rec.got) != 4 {
		t.Errorf("delivered %d samples, want 4 (queue size)", len(rec.got))
	}
}

type drainCheck struct {
	rec    *recorder
	atStop int
	closed bool
}

func (d *drainCheck) Close() error {
	d.atStop = len(d.rec.got)
	d.closed = true
	return nil
}

func TestAsyncClosesAfterDrain(t *testing.T) {
	rec := &recorder{}
	a := NewAsync(rec, 8)
	for i := 0; i < 5; i++ {
		a.DeliverSample(sample())
	}

	ctx, cancel := context.WithCancel(context.Background())
	closer := &drainCheck{rec: rec}
	closed := make(chan error, 1)
	go func() { closed <- a.CloseAfterDrain(closer) }()

	select {
	case <-closed:
		t.Fatal("closed before the queue was drained")
	case <-time.After(20 * time.Millisecond):
	}

	cancel()
	go a.Run(ctx)

	select {
	case err := <-closed:
		if err != nil {
			t.Fatalf("CloseAfterDrain: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("CloseAfterDrain did not return")
	}
	if !closer.closed || closer.atStop != 5 {
		t.Errorf("closed %v with %d samples delivered, want 5", closer.closed, closer.atStop)
	}
}
