// Package node implements the tree control-plane protocol run by every node
// of the sensor network: tree formation, liveness, clock synchronization and
// slot scheduling. A Node is not safe for concurrent use; Runner owns one and
// serializes frames and timer firings onto a single goroutine.
package node

import (
	"math/rand"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/meshtree/internal/logger"
	"github.com/meshtree/internal/metrics"
	"github.com/meshtree/internal/topology"
	"github.com/meshtree/internal/wire"
	"github.com/meshtree/pkg/models"
)

// Transport sends one message. A null destination broadcasts to every
// neighbor in range. Delivery is at-most-once.
type Transport interface {
	Send(msg wire.Message, dst models.Address) error
}

// Clock reads the local monotonic clock in ticks since node start.
type Clock interface {
	Now() int64
}

// SampleSink receives samples that reached the border router.
type SampleSink interface {
	DeliverSample(s models.Sample)
}

// SampleSource produces a sensor reading when a node is allowed to transmit.
type SampleSource func() int32

// Frame is an inbound link-layer frame with its reception signal strength.
type Frame struct {
	Src     models.Address
	Dst     models.Address
	Payload []byte
	RSSI    int
}

type Node struct {
	cfg    Config
	state  *topology.State
	tx     Transport
	clock  Clock
	rng    *rand.Rand
	sink   SampleSink
	source SampleSource
	round  *clockRound
	log    *zap.Logger
	label  string
}

type Option func(*Node)

// WithRand fixes the random source used for sample gating.
func WithRand(r *rand.Rand) Option {
	return func(n *Node) { n.rng = r }
}

func WithSink(s SampleSink) Option {
	return func(n *Node) { n.sink = s }
}

func WithSampleSource(src SampleSource) Option {
	return func(n *Node) { n.source = src }
}

func WithLogger(l *zap.Logger) Option {
	return func(n *Node) { n.log = l }
}

// New creates a node in its start-of-life state.
func New(cfg Config, tx Transport, clock Clock, opts ...Option) *Node {
	cfg = cfg.withDefaults()
	n := &Node{
		cfg:   cfg,
		state: topology.New(cfg.Role, cfg.MaxChildren),
		tx:    tx,
		clock: clock,
		label: strconv.Itoa(int(cfg.ID)),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.rng == nil {
		n.rng = rand.New(rand.NewSource(time.Now().UnixNano() + int64(cfg.ID)))
	}
	if n.source == nil {
		n.source = n.simulatedReading
	}
	if n.log == nil {
		n.log = logger.Named("node")
	}
	n.log = n.log.With(zap.Uint16("node", cfg.ID), zap.Stringer("role", cfg.Role))
	n.observe()
	return n
}

func (n *Node) ID() uint16 {
	return n.cfg.ID
}

func (n *Node) Address() models.Address {
	return n.cfg.Address
}

func (n *Node) Role() models.Role {
	return n.cfg.Role
}

// Snapshot returns a copy of the node's topology state.
func (n *Node) Snapshot() models.Snapshot {
	return n.state.Snapshot(n.cfg.ID, n.cfg.Address)
}

// CompensatedNow is the local clock corrected toward the root's clock.
func (n *Node) CompensatedNow() int64 {
	return n.clock.Now() + n.state.ClockCompensation
}

func (n *Node) send(msg wire.Message, dst models.Address) {
	err := n.tx.Send(msg, dst)
	metrics.RecordSend(msg.Signal().String(), err == nil)
	if err != nil {
		n.log.Debug("send failed",
			zap.Stringer("signal", msg.Signal()),
			zap.Stringer("dst", dst),
			zap.Error(err))
	}
}

func (n *Node) sendChildren(msg wire.Message) {
	for _, c := range n.state.Children.Addresses() {
		n.send(msg, c)
	}
}

func (n *Node) observe() {
	metrics.RecordTopology(n.label, n.state.RankValue(), n.state.Children.Len())
	metrics.RecordCompensation(n.label, n.state.ClockCompensation)
}

// simulatedReading mimics a temperature sensor in centi-degrees.
func (n *Node) simulatedReading() int32 {
	return 2000 + int32(n.rng.Intn(1000))
}
