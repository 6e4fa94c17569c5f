package node

import (
	"go.uber.org/zap"

	"github.com/meshtree/internal/metrics"
	"github.com/meshtree/internal/wire"
	"github.com/meshtree/pkg/models"
)

// OnLivenessTick runs one liveness cycle: peers that left LivenessStrikes
// pings unanswered are dropped, every other peer is pinged.
func (n *Node) OnLivenessTick() {
	if n.state.Parent != nil {
		if n.state.ParentReachCount >= n.cfg.LivenessStrikes {
			n.log.Info("parent unreachable", zap.Stringer("parent", *n.state.Parent))
			metrics.RecordEviction("parent")
			n.detach()
		} else {
			n.send(wire.LivenessPing{}, *n.state.Parent)
			n.state.ParentReachCount++
		}
	}

	probe, evicted := n.state.Children.Sweep(n.cfg.LivenessStrikes)
	for _, c := range evicted {
		n.log.Info("child unreachable", zap.Stringer("child", c))
		metrics.RecordEviction("child")
	}
	for _, c := range probe {
		n.send(wire.LivenessPing{}, c)
	}
	n.observe()
}

func (n *Node) onPing(src models.Address) {
	n.send(wire.LivenessPong{}, src)
}

func (n *Node) onPong(src models.Address) {
	if n.state.IsParent(src) {
		n.state.ParentReachCount = 0
	}
	n.state.Children.ResetReach(src)
}
