package node

import (
	"go.uber.org/zap"

	"github.com/meshtree/internal/metrics"
	"github.com/meshtree/internal/wire"
	"github.com/meshtree/pkg/models"
)

// OnDiscoveryTick broadcasts a JoinRequest while a non-root node has no parent.
func (n *Node) OnDiscoveryTick() {
	if n.cfg.Role.IsRoot() || n.state.Joined {
		return
	}
	n.log.Debug("broadcasting join request")
	n.send(wire.JoinRequest{Role: n.cfg.Role}, models.NullAddress)
}

func (n *Node) onJoinRequest(src models.Address, req wire.JoinRequest) {
	if !n.state.Joined || n.state.IsParent(src) {
		return
	}
	own := n.state.RankValue()
	if req.Rank != nil && *req.Rank <= own {
		return
	}
	if n.state.Children.Full() && !n.state.Children.Contains(src) {
		n.log.Debug("child set full, not offering", zap.Stringer("src", src))
		return
	}
	n.send(wire.JoinOffer{Role: n.cfg.Role, Rank: own}, src)
}

func (n *Node) onJoinOffer(src models.Address, offer wire.JoinOffer, rssi int) {
	if n.cfg.Role.IsRoot() || offer.Rank < 0 {
		return
	}
	newRank := offer.Rank + 1
	if newRank > n.cfg.MaxRank || n.state.Children.Contains(src) {
		return
	}

	switch {
	case n.state.Parent == nil:
		n.adopt(src, newRank, rssi)

	case n.state.IsParent(src):
		n.state.BestSignalStrength = rssi
		if n.state.SetRank(newRank) {
			n.sendChildren(wire.RankUpdate{Rank: newRank})
		}

	default:
		own := n.state.RankValue()
		if own <= n.cfg.ReselectAboveRank || offer.Rank >= own {
			return
		}
		best := n.state.BestSignalStrength
		switch {
		case rssi > best+n.cfg.SignalMargin:
		case n.cfg.Role == models.RoleSensor && rssi >= best && newRank < own:
			// Sensors break signal ties on depth.
		default:
			return
		}
		n.adopt(src, newRank, rssi)
	}
}

// adopt makes src the parent, acknowledges it, releases the previous parent
// and pushes the new rank into the subtree.
func (n *Node) adopt(src models.Address, rank, rssi int) {
	var prev *models.Address
	if n.state.Parent != nil {
		p := *n.state.Parent
		prev = &p
	} else if n.state.FormerParent != nil {
		p := *n.state.FormerParent
		prev = &p
	}
	oldRank := n.state.RankValue()

	n.state.Attach(src, rank, rssi)
	metrics.RecordParentChange()
	n.log.Info("joined parent",
		zap.Stringer("parent", src),
		zap.Int("rank", rank),
		zap.Int("rssi", rssi))

	n.send(wire.JoinAck{}, src)
	if prev != nil && *prev != src {
		n.send(wire.LeaveNotice{}, *prev)
	}
	if oldRank != rank {
		n.sendChildren(wire.RankUpdate{Rank: rank})
	}
}

func (n *Node) onJoinAck(src models.Address) {
	if !n.state.Joined || n.state.IsParent(src) {
		return
	}
	if n.state.Children.Contains(src) {
		return
	}
	if !n.state.Children.Add(src) {
		n.log.Debug("child set full, ignoring join ack", zap.Stringer("src", src))
		return
	}
	n.log.Info("child joined", zap.Stringer("child", src), zap.Int("children", n.state.Children.Len()))
}

func (n *Node) onLeaveNotice(src models.Address) {
	if n.state.Children.Remove(src) {
		n.log.Info("child left", zap.Stringer("child", src), zap.Int("children", n.state.Children.Len()))
	}
}

func (n *Node) onRankUpdate(src models.Address, upd wire.RankUpdate) {
	if !n.state.IsParent(src) || upd.Rank < 0 {
		return
	}
	newRank := upd.Rank + 1
	if newRank > n.cfg.MaxRank {
		n.log.Warn("rank beyond limit, leaving parent",
			zap.Stringer("parent", src),
			zap.Int("rank", newRank))
		n.detach()
		n.send(wire.LeaveNotice{}, src)
		return
	}
	if n.state.SetRank(newRank) {
		n.log.Debug("rank updated", zap.Int("rank", newRank))
		n.sendChildren(wire.RankUpdate{Rank: newRank})
	}
}

func (n *Node) detach() {
	if old, ok := n.state.Detach(); ok {
		n.state.PendingSlot = nil
		n.log.Info("detached from parent", zap.Stringer("parent", old))
	}
}
