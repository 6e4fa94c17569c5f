package node

import (
	"github.com/meshtree/internal/wire"
	"github.com/meshtree/pkg/models"
)

// PartitionWindow splits window into n equal slices starting at ref. Each
// slot begins one guard interval (window/20) after its slice start.
func PartitionWindow(ref, window int64, n int) []models.Slot {
	if n <= 0 || window <= 0 {
		return nil
	}
	slice := window / int64(n)
	guard := window / 20
	slots := make([]models.Slot, n)
	for i := range slots {
		slots[i] = models.Slot{
			Start: ref + int64(i)*slice + guard,
			End:   ref + int64(i+1)*slice,
		}
	}
	return slots
}

func (n *Node) allocateSlots(ref int64) {
	children := n.state.Children.Addresses()
	slots := PartitionWindow(ref, n.cfg.SlotWindow, len(children))
	for i, c := range children {
		n.send(wire.SlotAssign{Slot: slots[i], Clock: ref}, c)
	}
}

func (n *Node) onSlotAssign(src models.Address, m wire.SlotAssign) {
	if n.cfg.Role.IsRoot() || !n.state.IsParent(src) {
		return
	}
	n.state.ClockCompensation = m.Clock - n.clock.Now()
	slot := m.Slot
	n.state.PendingSlot = &slot

	// Children inherit the same bounds, referenced to our own clock.
	n.sendChildren(wire.SlotAssign{Slot: slot, Clock: n.CompensatedNow()})
}

// OnSlotTick slides an expired window forward and, inside the window, lets
// the subtree transmit.
func (n *Node) OnSlotTick() {
	slot := n.state.PendingSlot
	if slot == nil || n.cfg.SlotWindow <= 0 {
		return
	}
	now := n.CompensatedNow()
	if now >= slot.End {
		k := (now-slot.End)/n.cfg.SlotWindow + 1
		slot.Start += k * n.cfg.SlotWindow
		slot.End += k * n.cfg.SlotWindow
	}
	if slot.Contains(now) {
		n.sendChildren(wire.SlotTrigger{})
		n.maybeSample()
	}
}

func (n *Node) onSlotTrigger(src models.Address) {
	if !n.state.IsParent(src) || n.state.PendingSlot != nil {
		return
	}
	n.sendChildren(wire.SlotTrigger{})
	n.maybeSample()
}

func (n *Node) maybeSample() {
	if n.cfg.Role.IsRoot() || n.state.Parent == nil {
		return
	}
	if n.rng.Float64() >= n.cfg.SampleProbability {
		return
	}
	n.send(wire.SampleReport{
		SourceID: n.cfg.ID,
		Value:    n.source(),
		Clock:    n.CompensatedNow(),
	}, *n.state.Parent)
}
