// Package sim runs many nodes against an in-memory radio medium on a
// deterministic virtual clock. One tick of virtual time is one millisecond.
package sim

import (
	"bytes"
	"errors"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/meshtree/internal/logger"
	"github.com/meshtree/internal/node"
	"github.com/meshtree/internal/wire"
	"github.com/meshtree/pkg/models"
)

// ErrNoLink is returned for unicast to a node out of radio range.
var ErrNoLink = errors.New("sim: destination out of range")

// DropFilter reports whether a frame from src to dst should be lost.
type DropFilter func(src, dst models.Address, msg wire.Message) bool

type Option func(*Network)

// WithLatency sets the one-hop delivery delay in ticks.
func WithLatency(ticks int64) Option {
	return func(n *Network) { n.latency = ticks }
}

// WithTiming sets the timer periods; durations are read as milliseconds of
// virtual time.
func WithTiming(t node.Timing) Option {
	return func(n *Network) { n.timing = t }
}

func WithDropFilter(f DropFilter) Option {
	return func(n *Network) { n.drop = f }
}

// WithSampleSink attaches sink to every node; only the root delivers to it.
func WithSampleSink(sink node.SampleSink) Option {
	return func(n *Network) { n.sink = sink }
}

func WithLogger(l *zap.Logger) Option {
	return func(n *Network) { n.log = l }
}

// VirtualClock is a node's local clock: network time plus a fixed skew.
type VirtualClock struct {
	sched *scheduler
	Skew  int64
}

func (c *VirtualClock) Now() int64 {
	return c.sched.now + c.Skew
}

type linkKey struct {
	a, b models.Address
}

func keyOf(a, b models.Address) linkKey {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return linkKey{a, b}
}

type member struct {
	node  *node.Node
	clock *VirtualClock
}

// Network is a set of simulated nodes sharing one radio medium.
type Network struct {
	sched   scheduler
	latency int64
	timing  node.Timing
	drop    DropFilter
	sink    node.SampleSink
	links   map[linkKey]int
	cut     map[linkKey]bool
	members map[models.Address]*member
	order   []models.Address
	log     *zap.Logger
}

func New(opts ...Option) *Network {
	n := &Network{
		latency: 1,
		timing:  node.DefaultTiming(node.DefaultSlotWindow * time.Millisecond),
		links:   make(map[linkKey]int),
		cut:     make(map[linkKey]bool),
		members: make(map[models.Address]*member),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.log == nil {
		n.log = logger.Named("sim")
	}
	return n
}

// AddNode creates a node whose local clock runs skew ticks ahead of network
// time and starts its timers. Each node's random source is seeded from its id.
func (n *Network) AddNode(cfg node.Config, skew int64, opts ...node.Option) *node.Node {
	clock := &VirtualClock{sched: &n.sched, Skew: skew}
	base := []node.Option{
		node.WithRand(rand.New(rand.NewSource(int64(cfg.ID)))),
		node.WithLogger(n.log),
	}
	if n.sink != nil {
		base = append(base, node.WithSink(n.sink))
	}
	nd := node.New(cfg, &endpoint{net: n, addr: cfg.Address}, clock, append(base, opts...)...)
	addr := nd.Address()
	n.members[addr] = &member{node: nd, clock: clock}
	n.order = append(n.order, addr)
	n.startTimers(nd)
	return nd
}

func (n *Network) startTimers(nd *node.Node) {
	timers := []struct {
		period int64
		fire   func()
	}{
		{n.timing.Discovery.Milliseconds(), nd.OnDiscoveryTick},
		{n.timing.Liveness.Milliseconds(), nd.OnLivenessTick},
		{n.timing.Clock.Milliseconds(), nd.OnClockTick},
		{n.timing.SlotCheck.Milliseconds(), nd.OnSlotTick},
	}
	for i, t := range timers {
		if t.period <= 0 {
			continue
		}
		// Spread first firings so nodes do not move in lockstep.
		phase := (int64(nd.ID())*37 + int64(i)*11) % t.period
		n.sched.every(n.sched.now+phase+1, t.period, t.fire)
	}
}

// Link puts a and b in radio range of each other at the given signal strength.
func (n *Network) Link(a, b models.Address, rssi int) {
	k := keyOf(a, b)
	n.links[k] = rssi
	delete(n.cut, k)
}

// Cut takes a link down without forgetting its signal strength.
func (n *Network) Cut(a, b models.Address) {
	n.cut[keyOf(a, b)] = true
}

func (n *Network) Restore(a, b models.Address) {
	delete(n.cut, keyOf(a, b))
}

func (n *Network) linkRSSI(a, b models.Address) (int, bool) {
	k := keyOf(a, b)
	rssi, ok := n.links[k]
	if !ok || n.cut[k] {
		return 0, false
	}
	return rssi, true
}

// RunFor advances virtual time by d ticks.
func (n *Network) RunFor(d int64) {
	n.sched.runUntil(n.sched.now + d)
}

func (n *Network) Now() int64 {
	return n.sched.now
}

func (n *Network) Node(addr models.Address) *node.Node {
	if m, ok := n.members[addr]; ok {
		return m.node
	}
	return nil
}

// Nodes returns every node in insertion order.
func (n *Network) Nodes() []*node.Node {
	out := make([]*node.Node, 0, len(n.order))
	for _, a := range n.order {
		out = append(out, n.members[a].node)
	}
	return out
}

func (n *Network) Snapshots() []models.Snapshot {
	out := make([]models.Snapshot, 0, len(n.order))
	for _, a := range n.order {
		out = append(out, n.members[a].node.Snapshot())
	}
	return out
}

func (n *Network) send(src, dst models.Address, msg wire.Message) error {
	payload := wire.Encode(msg)
	if dst.IsNull() {
		for _, to := range n.order {
			if to == src {
				continue
			}
			if rssi, ok := n.linkRSSI(src, to); ok {
				n.transmit(src, to, dst, msg, payload, rssi)
			}
		}
		return nil
	}
	rssi, ok := n.linkRSSI(src, dst)
	if !ok {
		return ErrNoLink
	}
	n.transmit(src, dst, dst, msg, payload, rssi)
	return nil
}

func (n *Network) transmit(src, to, dst models.Address, msg wire.Message, payload []byte, rssi int) {
	if n.drop != nil && n.drop(src, to, msg) {
		return
	}
	m, ok := n.members[to]
	if !ok {
		return
	}
	n.sched.at(n.sched.now+n.latency, func() {
		m.node.HandleFrame(node.Frame{Src: src, Dst: dst, Payload: payload, RSSI: rssi})
	})
}

// endpoint is one node's attachment to the medium.
type endpoint struct {
	net  *Network
	addr models.Address
}

func (e *endpoint) Send(msg wire.Message, dst models.Address) error {
	return e.net.send(e.addr, dst, msg)
}
