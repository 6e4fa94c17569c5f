package topology

import (
	"testing"

	"github.com/meshtree/pkg/models"
)

func TestChildren_AddIdempotent(t *testing.T) {
	c := NewChildren(0)
	a := models.AddressFromID(2)

	if !c.Add(a) || !c.Add(a) {
		t.Fatal("Add should succeed for a new and an existing child")
	}
	if c.Len() != 1 {
		t.Errorf("Expected 1 child after duplicate add, got %d", c.Len())
	}
}

func TestChildren_JoinOrder(t *testing.T) {
	c := NewChildren(0)
	for _, id := range []uint16{5, 3, 9} {
		c.Add(models.AddressFromID(id))
	}
	c.Remove(models.AddressFromID(3))

	got := c.Addresses()
	want := []models.Address{models.AddressFromID(5), models.AddressFromID(9)}
	if len(got) != len(want) {
		t.Fatalf("Expected %d children, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestChildren_Capacity(t *testing.T) {
	c := NewChildren(2)
	c.Add(models.AddressFromID(1))
	c.Add(models.AddressFromID(2))

	if c.Add(models.AddressFromID(3)) {
		t.Error("Add beyond capacity should be refused")
	}
	if c.Len() != 2 {
		t.Errorf("Expected 2 children, got %d", c.Len())
	}
	if !c.Add(models.AddressFromID(2)) {
		t.Error("re-adding an existing child to a full set should still report presence")
	}
}

func TestChildren_RemoveMissing(t *testing.T) {
	c := NewChildren(0)
	if c.Remove(models.AddressFromID(1)) {
		t.Error("removing a non-member should report false")
	}
}

func TestChildren_SweepTwoStrikes(t *testing.T) {
	c := NewChildren(0)
	alive := models.AddressFromID(1)
	silent := models.AddressFromID(2)
	c.Add(alive)
	c.Add(silent)

	probe, evicted := c.Sweep(1)
	if len(probe) != 2 || len(evicted) != 0 {
		t.Fatalf("first sweep: probe=%d evicted=%d, want 2/0", len(probe), len(evicted))
	}

	c.ResetReach(alive)

	probe, evicted = c.Sweep(1)
	if len(probe) != 1 || probe[0] != alive {
		t.Errorf("second sweep should only probe the responsive child, got %v", probe)
	}
	if len(evicted) != 1 || evicted[0] != silent {
		t.Errorf("second sweep should evict the silent child, got %v", evicted)
	}
	if n, _ := c.Reach(alive); n != 1 {
		t.Errorf("responsive child reach count = %d, want 1", n)
	}
}

func TestState_RootStartsJoined(t *testing.T) {
	s := New(models.RoleBorderRouter, 0)
	if !s.Joined || s.RankValue() != 0 {
		t.Errorf("root should start joined at rank 0, got joined=%v rank=%d", s.Joined, s.RankValue())
	}
	if _, ok := s.Detach(); ok {
		t.Error("root must not detach")
	}
}

func TestState_AttachDetach(t *testing.T) {
	s := New(models.RoleSensor, 0)
	if s.Joined || s.Rank != nil || s.Parent != nil {
		t.Fatal("non-root should start unjoined")
	}

	p := models.AddressFromID(1)
	s.Attach(p, 2, -40)
	if !s.IsParent(p) || s.RankValue() != 2 || s.BestSignalStrength != -40 {
		t.Fatalf("unexpected state after attach: %+v", s)
	}

	old, ok := s.Detach()
	if !ok || old != p {
		t.Fatalf("detach returned %s/%v", old, ok)
	}
	if s.Joined || s.Rank != nil || s.Parent != nil || s.BestSignalStrength != NoSignal {
		t.Errorf("detach left state inconsistent: %+v", s)
	}
	if s.FormerParent == nil || *s.FormerParent != p {
		t.Error("detach should remember the former parent")
	}
}
