package node

import (
	"context"
	"errors"
	"time"

	"github.com/meshtree/internal/metrics"
	"github.com/meshtree/pkg/models"
)

// ErrStopped is returned by Runner calls made after Run has returned.
var ErrStopped = errors.New("node: runner stopped")

const inboxSize = 256

// MonotonicClock reads milliseconds since its creation.
type MonotonicClock struct {
	start time.Time
}

func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{start: time.Now()}
}

func (c *MonotonicClock) Now() int64 {
	return time.Since(c.start).Milliseconds()
}

// Runner owns a Node and drives it from a single goroutine: inbound frames,
// timer ticks and external calls are processed one at a time.
type Runner struct {
	node   *Node
	timing Timing
	inbox  chan Frame
	calls  chan func(*Node)
	done   chan struct{}
}

func NewRunner(n *Node, timing Timing) *Runner {
	return &Runner{
		node:   n,
		timing: timing,
		inbox:  make(chan Frame, inboxSize),
		calls:  make(chan func(*Node)),
		done:   make(chan struct{}),
	}
}

// Deliver queues an inbound frame. When the queue is full the frame is
// dropped, like a radio buffer overrun.
func (r *Runner) Deliver(f Frame) {
	select {
	case r.inbox <- f:
	default:
		metrics.RecordDrop()
	}
}

// Do runs fn on the owning goroutine and waits for it to finish.
func (r *Runner) Do(ctx context.Context, fn func(*Node)) error {
	finished := make(chan struct{})
	wrapped := func(n *Node) {
		fn(n)
		close(finished)
	}
	select {
	case r.calls <- wrapped:
	case <-r.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-r.done:
		return ErrStopped
	}
}

// Snapshot returns a copy of the node state taken on the owning goroutine.
func (r *Runner) Snapshot(ctx context.Context) (models.Snapshot, error) {
	var snap models.Snapshot
	err := r.Do(ctx, func(n *Node) { snap = n.Snapshot() })
	return snap, err
}

// Notify asks the node to emit a SampleNotify.
func (r *Runner) Notify(ctx context.Context, value int32) error {
	return r.Do(ctx, func(n *Node) { n.Notify(value) })
}

// Run processes events until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.done)

	discovery := newTicker(r.timing.Discovery)
	defer discovery.Stop()
	liveness := newTicker(r.timing.Liveness)
	defer liveness.Stop()
	clock := newTicker(r.timing.Clock)
	defer clock.Stop()
	slots := newTicker(r.timing.SlotCheck)
	defer slots.Stop()

	for {
		select {
		case f := <-r.inbox:
			r.node.HandleFrame(f)
		case <-discovery.C:
			r.node.OnDiscoveryTick()
		case <-liveness.C:
			r.node.OnLivenessTick()
		case <-clock.C:
			r.node.OnClockTick()
		case <-slots.C:
			r.node.OnSlotTick()
		case fn := <-r.calls:
			fn(r.node)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ticker wraps time.Ticker so that a zero period disables the timer.
type ticker struct {
	C <-chan time.Time
	t *time.Ticker
}

func newTicker(d time.Duration) ticker {
	if d <= 0 {
		return ticker{}
	}
	t := time.NewTicker(d)
	return ticker{C: t.C, t: t}
}

func (t ticker) Stop() {
	if t.t != nil {
		t.t.Stop()
	}
}
