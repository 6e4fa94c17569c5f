package sim

import (
	"testing"

	"github.com/meshtree/pkg/models"
)

func snap(id uint16, parent uint16, rank int, children ...uint16) models.Snapshot {
	s := models.Snapshot{ID: id, Address: addr(id), Joined: rank >= 0}
	if rank >= 0 {
		r := rank
		s.Rank = &r
	}
	if parent != 0 {
		p := addr(parent)
		s.Parent = &p
	}
	for _, c := range children {
		s.Children = append(s.Children, models.ChildInfo{Address: addr(c)})
	}
	return s
}

func TestCheckAcyclicDetectsLoop(t *testing.T) {
	snaps := []models.Snapshot{
		snap(2, 3, 2, 3),
		snap(3, 2, 3, 2),
	}
	if err := CheckAcyclic(snaps); err == nil {
		t.Error("expected loop to be reported")
	}

	root := snap(1, 0, 0, 2)
	root.Role = models.RoleBorderRouter
	healthy := []models.Snapshot{root, snap(2, 1, 1, 3), snap(3, 2, 2)}
	if err := CheckAcyclic(healthy); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := CheckRanks(healthy); err != nil {
		t.Errorf("unexpected rank error: %v", err)
	}
	if err := CheckChildren(healthy); err != nil {
		t.Errorf("unexpected children error: %v", err)
	}
}

func TestCheckChildrenDetectsMismatch(t *testing.T) {
	snaps := []models.Snapshot{
		snap(1, 0, 0, 2, 3),
		snap(2, 1, 1),
		snap(3, 2, 2),
	}
	if err := CheckChildren(snaps); err == nil {
		t.Error("expected mismatch to be reported")
	}
	if err := CheckRanks([]models.Snapshot{snap(1, 0, 0), snap(2, 1, 4)}); err == nil {
		t.Error("expected rank gap to be reported")
	}
}
