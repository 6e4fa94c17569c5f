package node

import (
	"go.uber.org/zap"

	"github.com/meshtree/internal/metrics"
	"github.com/meshtree/internal/wire"
	"github.com/meshtree/pkg/models"
)

// HandleFrame decodes an inbound frame and dispatches it. Undecodable frames
// and messages that do not apply to this node are ignored.
func (n *Node) HandleFrame(f Frame) {
	if f.Src == n.cfg.Address {
		return
	}
	msg, err := wire.Decode(f.Payload)
	if err != nil {
		metrics.RecordDrop()
		n.log.Debug("dropping frame", zap.Stringer("src", f.Src), zap.Error(err))
		return
	}
	metrics.RecordReceive(msg.Signal().String())
	n.Handle(msg, f.Src, f.RSSI)
	n.observe()
}

// Handle processes one decoded message from src received at signal strength rssi.
func (n *Node) Handle(msg wire.Message, src models.Address, rssi int) {
	switch m := msg.(type) {
	case wire.JoinRequest:
		n.onJoinRequest(src, m)
	case wire.JoinOffer:
		n.onJoinOffer(src, m, rssi)
	case wire.JoinAck:
		n.onJoinAck(src)
	case wire.LeaveNotice:
		n.onLeaveNotice(src)
	case wire.RankUpdate:
		n.onRankUpdate(src, m)
	case wire.LivenessPing:
		n.onPing(src)
	case wire.LivenessPong:
		n.onPong(src)
	case wire.ClockRequest:
		n.onClockRequest(src)
	case wire.ClockReply:
		n.onClockReply(src, m)
	case wire.ClockBroadcast:
		n.onClockBroadcast(src, m)
	case wire.SlotAssign:
		n.onSlotAssign(src, m)
	case wire.SlotTrigger:
		n.onSlotTrigger(src)
	case wire.SampleReport:
		n.onSample(src, models.SampleReport, m.SourceID, m.Value, m.Clock, m)
	case wire.SampleNotify:
		n.onSample(src, models.SampleNotify, m.SourceID, m.Value, m.Clock, m)
	}
}
