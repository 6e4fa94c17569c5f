package node

import (
	"go.uber.org/zap"

	"github.com/meshtree/internal/metrics"
	"github.com/meshtree/internal/wire"
	"github.com/meshtree/pkg/models"
)

// clockRound is one Berkeley round run by the root over its direct children.
type clockRound struct {
	requestClock int64
	expected     map[models.Address]struct{}
	replies      map[models.Address]int64
}

// RoundResult describes a completed clock round.
type RoundResult struct {
	AverageDelta      int64
	SynchronizedClock int64
	Replies           int
}

// OnClockTick starts a new clock round at the root. An unfinished round is
// abandoned; no partial average is ever computed.
func (n *Node) OnClockTick() {
	if !n.cfg.Role.IsRoot() {
		return
	}
	if n.round != nil {
		metrics.RecordClockRound("abandoned")
		n.log.Debug("abandoning incomplete clock round",
			zap.Int("replies", len(n.round.replies)),
			zap.Int("expected", len(n.round.expected)))
		n.round = nil
	}

	children := n.state.Children.Addresses()
	if len(children) == 0 {
		metrics.RecordClockRound("skipped")
		return
	}

	r := &clockRound{
		requestClock: n.CompensatedNow(),
		expected:     make(map[models.Address]struct{}, len(children)),
		replies:      make(map[models.Address]int64, len(children)),
	}
	for _, c := range children {
		r.expected[c] = struct{}{}
	}
	n.round = r

	for _, c := range children {
		n.send(wire.ClockRequest{}, c)
	}
}

func (n *Node) onClockRequest(src models.Address) {
	if n.cfg.Role.IsRoot() {
		return
	}
	n.send(wire.ClockReply{Clock: n.CompensatedNow()}, src)
}

func (n *Node) onClockReply(src models.Address, reply wire.ClockReply) {
	r := n.round
	if r == nil {
		return
	}
	if _, ok := r.expected[src]; !ok {
		return
	}
	if _, dup := r.replies[src]; dup {
		return
	}
	r.replies[src] = reply.Clock
	if len(r.replies) < len(r.expected) {
		return
	}

	res := r.result(n.CompensatedNow())
	n.round = nil
	n.finishRound(res)
}

func (r *clockRound) result(now int64) RoundResult {
	var sum int64
	for _, c := range r.replies {
		sum += r.requestClock - c
	}
	avg := sum / int64(len(r.replies))
	return RoundResult{
		AverageDelta:      avg,
		SynchronizedClock: now - avg,
		Replies:           len(r.replies),
	}
}

// finishRound broadcasts the synchronized clock, adopts it locally and
// hands out the slots referenced to it.
func (n *Node) finishRound(res RoundResult) {
	n.state.ClockCompensation = res.SynchronizedClock - n.clock.Now()
	metrics.RecordClockRound("completed")
	n.log.Debug("clock round complete",
		zap.Int64("average_delta", res.AverageDelta),
		zap.Int64("synchronized_clock", res.SynchronizedClock),
		zap.Int("replies", res.Replies))

	n.sendChildren(wire.ClockBroadcast{Clock: res.SynchronizedClock})
	n.allocateSlots(res.SynchronizedClock)
}

func (n *Node) onClockBroadcast(src models.Address, m wire.ClockBroadcast) {
	if n.cfg.Role.IsRoot() {
		return
	}
	n.state.ClockCompensation = m.Clock - n.clock.Now()
	n.log.Debug("clock compensated",
		zap.Stringer("from", src),
		zap.Int64("compensation", n.state.ClockCompensation))
}
