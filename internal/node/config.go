package node

import (
	"time"

	"github.com/meshtree/pkg/models"
)

const (
	DefaultMaxChildren       = 16
	DefaultMaxRank           = 32
	DefaultLivenessStrikes   = 2
	DefaultReselectAboveRank = 1
	DefaultSampleProbability = 1.0 / 6
	DefaultSlotWindow        = 2000
)

// Config holds the per-node protocol parameters. Clock-valued fields are in
// ticks of the node's Clock.
type Config struct {
	ID      uint16
	Address models.Address
	Role    models.Role

	// MaxChildren bounds the child set; joins beyond it are not recorded.
	MaxChildren int
	// MaxRank caps tree depth; deeper ranks are treated as a routing loop.
	MaxRank int
	// LivenessStrikes is the number of unanswered liveness cycles after which
	// a peer is dropped.
	LivenessStrikes int
	// SignalMargin is how much stronger a competing offer must be than the
	// current parent's.
	SignalMargin int
	// ReselectAboveRank is the rank at or below which a joined node ignores
	// competing offers.
	ReselectAboveRank int
	// SlotWindow is the TDMA window W.
	SlotWindow int64
	// SampleProbability is the chance of emitting a report per in-slot check.
	SampleProbability float64
}

// DefaultConfig returns the reference parameters for a node.
func DefaultConfig(id uint16, role models.Role) Config {
	return Config{
		ID:                id,
		Address:           models.AddressFromID(id),
		Role:              role,
		MaxChildren:       DefaultMaxChildren,
		MaxRank:           DefaultMaxRank,
		LivenessStrikes:   DefaultLivenessStrikes,
		ReselectAboveRank: DefaultReselectAboveRank,
		SlotWindow:        DefaultSlotWindow,
		SampleProbability: DefaultSampleProbability,
	}
}

func (c Config) withDefaults() Config {
	if c.Address.IsNull() {
		c.Address = models.AddressFromID(c.ID)
	}
	if c.MaxChildren <= 0 {
		c.MaxChildren = DefaultMaxChildren
	}
	if c.MaxRank <= 0 {
		c.MaxRank = DefaultMaxRank
	}
	if c.LivenessStrikes <= 0 {
		c.LivenessStrikes = DefaultLivenessStrikes
	}
	if c.SlotWindow < 0 {
		c.SlotWindow = 0
	}
	return c
}

// Timing holds the timer periods used by Runner.
type Timing struct {
	Discovery time.Duration
	Liveness  time.Duration
	Clock     time.Duration
	SlotCheck time.Duration
}

// DefaultTiming mirrors the reference deployment: discovery every 2s,
// liveness and clock rounds every 5s, slot checks every W/10.
func DefaultTiming(window time.Duration) Timing {
	return Timing{
		Discovery: 2 * time.Second,
		Liveness:  5 * time.Second,
		Clock:     5 * time.Second,
		SlotCheck: window / 10,
	}
}
