// Package topology holds the per-node tree state shared by the protocol
// engines. It has no locking; the owning node serializes access.
package topology

import "github.com/meshtree/pkg/models"

// NoSignal is the best-signal sentinel meaning "no parent selected yet".
const NoSignal = -100

// State is the topology record of a single node.
type State struct {
	Role               models.Role
	Joined             bool
	Rank               *int
	Parent             *models.Address
	ParentReachCount   int
	BestSignalStrength int
	Children           *Children
	ClockCompensation  int64
	PendingSlot        *models.Slot

	// FormerParent remembers the parent lost to a liveness teardown so the
	// next join can tell it to drop us.
	FormerParent *models.Address
}

// New returns the start-of-life state for role. The root is joined at rank 0
// from the outset.
func New(role models.Role, maxChildren int) *State {
	s := &State{
		Role:               role,
		BestSignalStrength: NoSignal,
		Children:           NewChildren(maxChildren),
	}
	if role.IsRoot() {
		zero := 0
		s.Joined = true
		s.Rank = &zero
	}
	return s
}

// IsParent reports whether addr is the current parent.
func (s *State) IsParent(addr models.Address) bool {
	return s.Parent != nil && *s.Parent == addr
}

// RankValue returns the rank, or -1 when absent.
func (s *State) RankValue() int {
	if s.Rank == nil {
		return -1
	}
	return *s.Rank
}

// Attach records addr as parent at the given rank.
func (s *State) Attach(parent models.Address, rank, signal int) {
	p := parent
	r := rank
	s.Parent = &p
	s.Rank = &r
	s.Joined = true
	s.ParentReachCount = 0
	s.BestSignalStrength = signal
	s.FormerParent = nil
}

// Detach tears the parent relation down and returns the former parent.
func (s *State) Detach() (models.Address, bool) {
	if s.Role.IsRoot() || s.Parent == nil {
		return models.NullAddress, false
	}
	old := *s.Parent
	s.FormerParent = &old
	s.Parent = nil
	s.Rank = nil
	s.Joined = false
	s.ParentReachCount = 0
	s.BestSignalStrength = NoSignal
	return old, true
}

// SetRank replaces the rank and reports whether it changed.
func (s *State) SetRank(rank int) bool {
	if s.Rank != nil && *s.Rank == rank {
		return false
	}
	r := rank
	s.Rank = &r
	return true
}

// Snapshot copies the state into its read-only form.
func (s *State) Snapshot(id uint16, self models.Address) models.Snapshot {
	snap := models.Snapshot{
		ID:                 id,
		Address:            self,
		Role:               s.Role,
		Joined:             s.Joined,
		ParentReachCount:   s.ParentReachCount,
		BestSignalStrength: s.BestSignalStrength,
		Children:           s.Children.Info(),
		ClockCompensation:  s.ClockCompensation,
	}
	if s.Rank != nil {
		r := *s.Rank
		snap.Rank = &r
	}
	if s.Parent != nil {
		p := *s.Parent
		snap.Parent = &p
	}
	if s.PendingSlot != nil {
		sl := *s.PendingSlot
		snap.PendingSlot = &sl
	}
	return snap
}
