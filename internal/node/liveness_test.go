package node

import (
	"testing"

	"github.com/meshtree/internal/wire"
	"github.com/meshtree/pkg/models"
)

func TestLiveness_ChildSurvivesOneMissedCycle(t *testing.T) {
	root := newHarness(t, 1, models.RoleBorderRouter, nil)
	root.addChildren(2, 3)

	root.node.OnLivenessTick()
	if n := len(root.tx.bySignal(wire.SignalLivenessPing)); n != 2 {
		t.Fatalf("expected 2 pings, got %d", n)
	}
	root.node.Handle(wire.LivenessPong{}, addr(3), 0)

	root.node.OnLivenessTick()
	if got := root.node.Snapshot().ChildAddresses(); len(got) != 2 {
		t.Fatalf("one missed cycle should not evict, children %v", got)
	}
	root.node.Handle(wire.LivenessPong{}, addr(3), 0)

	root.node.OnLivenessTick()
	got := root.node.Snapshot().ChildAddresses()
	if len(got) != 1 || got[0] != addr(3) {
		t.Errorf("expected only child 3 to remain, got %v", got)
	}
}

func TestLiveness_ParentLossDetaches(t *testing.T) {
	s := newHarness(t, 5, models.RoleSensor, nil)
	s.joinUnder(addr(2), 1, -50)
	s.node.Handle(wire.SlotAssign{Slot: models.Slot{Start: 100, End: 500}}, addr(2), 0)

	s.node.OnLivenessTick()
	s.node.OnLivenessTick()
	if !s.node.Snapshot().Joined {
		t.Fatal("parent dropped too early")
	}
	s.node.OnLivenessTick()

	snap := s.node.Snapshot()
	if snap.Joined || snap.Parent != nil || snap.Rank != nil || snap.PendingSlot != nil {
		t.Fatalf("expected full detach, got %+v", snap)
	}
	if snap.BestSignalStrength != -100 {
		t.Errorf("best signal = %d, want reset to -100", snap.BestSignalStrength)
	}

	// Rejoining elsewhere tells the lost parent to drop us.
	s.tx.reset()
	s.node.Handle(wire.JoinOffer{Rank: 1}, addr(3), -60)
	msgs := s.tx.to(addr(2))
	if len(msgs) != 1 || msgs[0].Signal() != wire.SignalLeaveNotice {
		t.Errorf("expected LeaveNotice to former parent, got %+v", msgs)
	}
}

func TestLiveness_PongResetsParentCounter(t *testing.T) {
	s := newHarness(t, 5, models.RoleSensor, nil)
	s.joinUnder(addr(2), 1, -50)

	for i := 0; i < 5; i++ {
		s.node.OnLivenessTick()
		s.node.Handle(wire.LivenessPong{}, addr(2), 0)
	}
	if snap := s.node.Snapshot(); !snap.Joined || snap.ParentReachCount != 0 {
		t.Errorf("answered pings should keep the parent, got %+v", snap)
	}
}

func TestLiveness_PingAnsweredUnconditionally(t *testing.T) {
	s := newHarness(t, 5, models.RoleSensor, nil)
	s.node.Handle(wire.LivenessPing{}, addr(77), 0)

	msgs := s.tx.to(addr(77))
	if len(msgs) != 1 || msgs[0].Signal() != wire.SignalLivenessPong {
		t.Errorf("expected pong to stranger, got %+v", msgs)
	}
}
