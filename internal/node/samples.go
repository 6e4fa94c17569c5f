package node

import (
	"go.uber.org/zap"

	"github.com/meshtree/internal/metrics"
	"github.com/meshtree/internal/wire"
	"github.com/meshtree/pkg/models"
)

// Notify emits an unsolicited SampleNotify toward the root, outside any slot.
// At the root the value is delivered locally.
func (n *Node) Notify(value int32) {
	msg := wire.SampleNotify{SourceID: n.cfg.ID, Value: value, Clock: n.CompensatedNow()}
	if n.cfg.Role.IsRoot() {
		n.deliver(models.SampleNotify, msg.SourceID, msg.Value, msg.Clock, n.cfg.Address)
		return
	}
	if n.state.Parent == nil {
		n.log.Debug("not joined, dropping notification", zap.Int32("value", value))
		return
	}
	n.send(msg, *n.state.Parent)
}

// onSample relays a sample one hop toward the root, or delivers it there.
func (n *Node) onSample(src models.Address, kind models.SampleKind, source uint16, value int32, clock int64, msg wire.Message) {
	if source == n.cfg.ID {
		return
	}
	if n.cfg.Role.IsRoot() {
		n.deliver(kind, source, value, clock, src)
		return
	}
	if n.state.Parent == nil {
		return
	}
	metrics.RecordRelay()
	n.send(msg, *n.state.Parent)
}

func (n *Node) deliver(kind models.SampleKind, source uint16, value int32, clock int64, from models.Address) {
	metrics.RecordSample(string(kind))
	n.log.Info("sample received",
		zap.String("kind", string(kind)),
		zap.Uint16("source", source),
		zap.Int32("value", value))
	if n.sink != nil {
		n.sink.DeliverSample(models.Sample{
			Kind:     kind,
			SourceID: source,
			Value:    value,
			From:     from,
			Clock:    clock,
		})
	}
}
