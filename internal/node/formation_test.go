package node

import (
	"testing"

	"github.com/meshtree/internal/wire"
	"github.com/meshtree/pkg/models"
)

func TestDiscovery_BroadcastOnlyWhileDetached(t *testing.T) {
	root := newHarness(t, 1, models.RoleBorderRouter, nil)
	root.node.OnDiscoveryTick()
	if len(root.tx.sent) != 0 {
		t.Errorf("root should never broadcast join requests, sent %d", len(root.tx.sent))
	}

	s := newHarness(t, 5, models.RoleSensor, nil)
	s.node.OnDiscoveryTick()
	reqs := s.tx.bySignal(wire.SignalJoinRequest)
	if len(reqs) != 1 || !reqs[0].dst.IsNull() {
		t.Fatalf("expected one broadcast join request, got %+v", s.tx.sent)
	}

	s.joinUnder(addr(1), 0, -40)
	s.node.OnDiscoveryTick()
	if len(s.tx.sent) != 0 {
		t.Errorf("joined node should stop discovery, sent %+v", s.tx.sent)
	}
}

func TestJoinRequest_RootAlwaysOffersRankZero(t *testing.T) {
	root := newHarness(t, 1, models.RoleBorderRouter, nil)
	root.node.Handle(wire.JoinRequest{Role: models.RoleCoordinator}, addr(2), -30)
	root.node.Handle(wire.JoinRequest{Role: models.RoleSensor}, addr(3), -30)

	for _, id := range []uint16{2, 3} {
		msgs := root.tx.to(addr(id))
		if len(msgs) != 1 {
			t.Fatalf("expected one offer to %d, got %d", id, len(msgs))
		}
		offer, ok := msgs[0].(wire.JoinOffer)
		if !ok || offer.Rank != 0 {
			t.Errorf("expected JoinOffer rank 0 to %d, got %+v", id, msgs[0])
		}
	}
}

func TestJoinRequest_JoinedNodeOffersOwnRank(t *testing.T) {
	c := newHarness(t, 2, models.RoleCoordinator, nil)

	c.node.Handle(wire.JoinRequest{}, addr(9), -30)
	if len(c.tx.sent) != 0 {
		t.Fatal("detached node must not offer")
	}

	c.joinUnder(addr(1), 0, -40)

	c.node.Handle(wire.JoinRequest{}, addr(1), -30)
	if len(c.tx.sent) != 0 {
		t.Error("node must not offer to its own parent")
	}

	shallow := 1
	c.node.Handle(wire.JoinRequest{Rank: &shallow}, addr(8), -30)
	if len(c.tx.sent) != 0 {
		t.Error("node must not offer to a requester at or above its rank")
	}

	c.node.Handle(wire.JoinRequest{}, addr(9), -30)
	msgs := c.tx.to(addr(9))
	if len(msgs) != 1 || msgs[0].(wire.JoinOffer).Rank != 1 {
		t.Errorf("expected JoinOffer rank 1, got %+v", msgs)
	}
}

func TestJoinRequest_FullNodeDoesNotOffer(t *testing.T) {
	root := newHarness(t, 1, models.RoleBorderRouter, func(c *Config) { c.MaxChildren = 1 })
	root.addChildren(2)

	root.node.Handle(wire.JoinRequest{}, addr(3), -30)
	if len(root.tx.sent) != 0 {
		t.Errorf("full node should not offer, sent %+v", root.tx.sent)
	}
}

func TestJoinOffer_FirstOfferAccepted(t *testing.T) {
	s := newHarness(t, 5, models.RoleSensor, nil)
	s.node.Handle(wire.JoinOffer{Rank: 1}, addr(2), -70)

	snap := s.node.Snapshot()
	if !snap.Joined || snap.Parent == nil || *snap.Parent != addr(2) {
		t.Fatalf("expected to join under 2, got %+v", snap)
	}
	if *snap.Rank != 2 {
		t.Errorf("rank = %d, want 2", *snap.Rank)
	}
	if snap.BestSignalStrength != -70 {
		t.Errorf("best signal = %d, want -70", snap.BestSignalStrength)
	}
	msgs := s.tx.to(addr(2))
	if len(msgs) != 1 || msgs[0].Signal() != wire.SignalJoinAck {
		t.Errorf("expected JoinAck to new parent, got %+v", msgs)
	}
}

func TestJoinOffer_CompetingOffers(t *testing.T) {
	tests := []struct {
		name      string
		offerRank int
		rssi      int
		switched  bool
	}{
		{"weaker signal", 0, -80, false},
		{"equal signal and shallower", 0, -60, true},
		{"equal signal same depth", 1, -60, false},
		{"same rank as own", 2, -20, false},
		{"deeper offerer", 3, -20, false},
		{"stronger and shallower", 0, -20, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newHarness(t, 5, models.RoleSensor, nil)
			s.joinUnder(addr(2), 1, -60)

			s.node.Handle(wire.JoinOffer{Rank: tt.offerRank}, addr(3), tt.rssi)
			snap := s.node.Snapshot()
			if got := *snap.Parent == addr(3); got != tt.switched {
				t.Fatalf("switched = %v, want %v", got, tt.switched)
			}
			if !tt.switched {
				if len(s.tx.sent) != 0 {
					t.Errorf("rejected offer should send nothing, sent %+v", s.tx.sent)
				}
				return
			}
			if *snap.Rank != tt.offerRank+1 {
				t.Errorf("rank = %d, want %d", *snap.Rank, tt.offerRank+1)
			}
			old := s.tx.to(addr(2))
			if len(old) != 1 || old[0].Signal() != wire.SignalLeaveNotice {
				t.Errorf("expected LeaveNotice to previous parent, got %+v", old)
			}
		})
	}
}

func TestJoinOffer_CoordinatorIgnoresDepthOnEqualSignal(t *testing.T) {
	c := newHarness(t, 6, models.RoleCoordinator, nil)
	c.joinUnder(addr(2), 1, -60)

	c.node.Handle(wire.JoinOffer{Rank: 0}, addr(3), -60)
	snap := c.node.Snapshot()
	if *snap.Parent != addr(2) || *snap.Rank != 2 {
		t.Errorf("coordinator switched on equal signal: parent %s rank %d", *snap.Parent, *snap.Rank)
	}
	if len(c.tx.sent) != 0 {
		t.Errorf("rejected offer should send nothing, sent %+v", c.tx.sent)
	}
}

func TestJoinOffer_SensorTieNeedsEqualSignal(t *testing.T) {
	s := newHarness(t, 5, models.RoleSensor, nil)
	s.joinUnder(addr(2), 1, -60)

	s.node.Handle(wire.JoinOffer{Rank: 0}, addr(3), -61)
	if snap := s.node.Snapshot(); *snap.Parent != addr(2) {
		t.Errorf("weaker shallower offer adopted, parent now %s", *snap.Parent)
	}
}

func TestJoinOffer_ShallowNodeKeepsParent(t *testing.T) {
	c := newHarness(t, 2, models.RoleCoordinator, nil)
	c.joinUnder(addr(1), 0, -60)

	c.node.Handle(wire.JoinOffer{Rank: 0}, addr(7), -10)
	if snap := c.node.Snapshot(); *snap.Parent != addr(1) {
		t.Errorf("rank-1 node should not reselect, parent now %s", *snap.Parent)
	}
}

func TestJoinOffer_FromChildRejected(t *testing.T) {
	c := newHarness(t, 2, models.RoleCoordinator, nil)
	c.joinUnder(addr(1), 0, -60)
	c.addChildren(5)
	for i := 0; i < 3; i++ {
		c.node.OnLivenessTick()
		c.node.Handle(wire.LivenessPong{}, addr(5), 0)
	}
	c.tx.reset()
	if snap := c.node.Snapshot(); snap.Joined || len(snap.Children) != 1 {
		t.Fatalf("expected detached node with child 5, got %+v", snap)
	}

	// Parent was lost; our own child must not become our parent.
	c.node.Handle(wire.JoinOffer{Rank: 2}, addr(5), -10)
	if snap := c.node.Snapshot(); snap.Joined {
		t.Errorf("joined through own child: %+v", snap)
	}
}

func TestJoinOffer_RankChangePropagates(t *testing.T) {
	s := newHarness(t, 5, models.RoleSensor, nil)
	s.joinUnder(addr(2), 1, -60)
	s.addChildren(6, 7)

	s.node.Handle(wire.JoinOffer{Rank: 0}, addr(3), -20)

	for _, id := range []uint16{6, 7} {
		msgs := s.tx.to(addr(id))
		if len(msgs) != 1 {
			t.Fatalf("expected one RankUpdate to %d, got %+v", id, msgs)
		}
		if upd, ok := msgs[0].(wire.RankUpdate); !ok || upd.Rank != 1 {
			t.Errorf("expected RankUpdate rank 1 to %d, got %+v", id, msgs[0])
		}
	}
}

func TestJoinOffer_RejectsBeyondMaxRank(t *testing.T) {
	s := newHarness(t, 5, models.RoleSensor, func(c *Config) { c.MaxRank = 3 })
	s.node.Handle(wire.JoinOffer{Rank: 3}, addr(2), -20)
	if s.node.Snapshot().Joined {
		t.Error("offer producing rank 4 should be rejected with MaxRank 3")
	}
}

func TestJoinAck_Idempotent(t *testing.T) {
	root := newHarness(t, 1, models.RoleBorderRouter, nil)
	root.node.Handle(wire.JoinAck{}, addr(2), 0)
	root.node.Handle(wire.JoinAck{}, addr(2), 0)

	snap := root.node.Snapshot()
	if len(snap.Children) != 1 || snap.Children[0].Address != addr(2) {
		t.Errorf("expected exactly one child entry, got %+v", snap.Children)
	}
}

func TestJoinAck_ZeroMaxChildrenUsesDefault(t *testing.T) {
	root := newHarness(t, 1, models.RoleBorderRouter, func(c *Config) { c.MaxChildren = 0 })
	for id := uint16(2); id < 2+DefaultMaxChildren+3; id++ {
		root.node.Handle(wire.JoinAck{}, addr(id), 0)
	}
	if got := len(root.node.Snapshot().Children); got != DefaultMaxChildren {
		t.Errorf("children = %d, want bound %d", got, DefaultMaxChildren)
	}
}

func TestJoinAck_CapacityAndParent(t *testing.T) {
	c := newHarness(t, 2, models.RoleCoordinator, func(c *Config) { c.MaxChildren = 2 })
	c.joinUnder(addr(1), 0, -50)

	c.node.Handle(wire.JoinAck{}, addr(1), 0)
	c.addChildren(5, 6, 7)

	got := c.node.Snapshot().ChildAddresses()
	if len(got) != 2 || got[0] != addr(5) || got[1] != addr(6) {
		t.Errorf("expected children [5 6], got %v", got)
	}
}

func TestLeaveNotice_RemovesChild(t *testing.T) {
	root := newHarness(t, 1, models.RoleBorderRouter, nil)
	root.addChildren(2, 3)
	root.node.Handle(wire.LeaveNotice{}, addr(2), 0)
	root.node.Handle(wire.LeaveNotice{}, addr(9), 0)

	got := root.node.Snapshot().ChildAddresses()
	if len(got) != 1 || got[0] != addr(3) {
		t.Errorf("expected children [3], got %v", got)
	}
}

func TestRankUpdate(t *testing.T) {
	c := newHarness(t, 2, models.RoleCoordinator, nil)
	c.joinUnder(addr(1), 0, -50)
	c.addChildren(5)

	c.node.Handle(wire.RankUpdate{Rank: 4}, addr(9), 0)
	if *c.node.Snapshot().Rank != 1 {
		t.Fatal("RankUpdate from a non-parent must be ignored")
	}

	c.node.Handle(wire.RankUpdate{Rank: 2}, addr(1), 0)
	if *c.node.Snapshot().Rank != 3 {
		t.Errorf("rank = %d, want 3", *c.node.Snapshot().Rank)
	}
	msgs := c.tx.to(addr(5))
	if len(msgs) != 1 || msgs[0].(wire.RankUpdate).Rank != 3 {
		t.Errorf("expected cascaded RankUpdate 3, got %+v", msgs)
	}

	c.tx.reset()
	c.node.Handle(wire.RankUpdate{Rank: 2}, addr(1), 0)
	if len(c.tx.sent) != 0 {
		t.Errorf("unchanged rank should not cascade, sent %+v", c.tx.sent)
	}
}

func TestRankUpdate_BeyondMaxRankDetaches(t *testing.T) {
	c := newHarness(t, 2, models.RoleCoordinator, func(c *Config) { c.MaxRank = 5 })
	c.joinUnder(addr(1), 0, -50)

	c.node.Handle(wire.RankUpdate{Rank: 5}, addr(1), 0)
	snap := c.node.Snapshot()
	if snap.Joined || snap.Parent != nil || snap.Rank != nil {
		t.Fatalf("expected detach, got %+v", snap)
	}
	msgs := c.tx.to(addr(1))
	if len(msgs) != 1 || msgs[0].Signal() != wire.SignalLeaveNotice {
		t.Errorf("expected LeaveNotice to parent, got %+v", msgs)
	}
}

func TestHandleFrame_IgnoresGarbage(t *testing.T) {
	root := newHarness(t, 1, models.RoleBorderRouter, nil)
	root.node.HandleFrame(Frame{Src: addr(2), Payload: []byte{1, 2, 3}})

	bad := wire.Encode(wire.JoinAck{})
	bad[0] = 0xEE
	root.node.HandleFrame(Frame{Src: addr(2), Payload: bad})

	if len(root.tx.sent) != 0 || len(root.node.Snapshot().Children) != 0 {
		t.Error("malformed frames must not change state or trigger sends")
	}

	root.node.HandleFrame(Frame{Src: addr(2), Payload: wire.Encode(wire.JoinAck{})})
	if len(root.node.Snapshot().Children) != 1 {
		t.Error("well-formed JoinAck frame should add a child")
	}
}
