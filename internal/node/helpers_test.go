package node

import (
	"math/rand"
	"testing"

	"github.com/meshtree/internal/wire"
	"github.com/meshtree/pkg/models"
)

type sentMsg struct {
	msg wire.Message
	dst models.Address
}

type captureTransport struct {
	sent []sentMsg
}

func (c *captureTransport) Send(msg wire.Message, dst models.Address) error {
	c.sent = append(c.sent, sentMsg{msg: msg, dst: dst})
	return nil
}

func (c *captureTransport) to(dst models.Address) []wire.Message {
	var out []wire.Message
	for _, s := range c.sent {
		if s.dst == dst {
			out = append(out, s.msg)
		}
	}
	return out
}

func (c *captureTransport) bySignal(sig wire.Signal) []sentMsg {
	var out []sentMsg
	for _, s := range c.sent {
		if s.msg.Signal() == sig {
			out = append(out, s)
		}
	}
	return out
}

func (c *captureTransport) reset() {
	c.sent = nil
}

type fakeClock struct {
	t int64
}

func (c *fakeClock) Now() int64 {
	return c.t
}

type sinkRecorder struct {
	samples []models.Sample
}

func (s *sinkRecorder) DeliverSample(sm models.Sample) {
	s.samples = append(s.samples, sm)
}

func addr(id uint16) models.Address {
	return models.AddressFromID(id)
}

type harness struct {
	node  *Node
	tx    *captureTransport
	clock *fakeClock
	sink  *sinkRecorder
}

func newHarness(t *testing.T, id uint16, role models.Role, tweak func(*Config)) *harness {
	t.Helper()
	cfg := DefaultConfig(id, role)
	if tweak != nil {
		tweak(&cfg)
	}
	h := &harness{
		tx:    &captureTransport{},
		clock: &fakeClock{},
		sink:  &sinkRecorder{},
	}
	h.node = New(cfg, h.tx, h.clock,
		WithRand(rand.New(rand.NewSource(1))),
		WithSink(h.sink),
		WithSampleSource(func() int32 { return 2150 }))
	return h
}

// joinUnder makes the harness node adopt parent at parentRank.
func (h *harness) joinUnder(parent models.Address, parentRank, rssi int) {
	h.node.Handle(wire.JoinOffer{Rank: parentRank}, parent, rssi)
	h.tx.reset()
}

func (h *harness) addChildren(ids ...uint16) {
	for _, id := range ids {
		h.node.Handle(wire.JoinAck{}, addr(id), 0)
	}
	h.tx.reset()
}
