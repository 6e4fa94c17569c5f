package sim

import (
	"errors"
	"fmt"

	"github.com/meshtree/pkg/models"
)

func index(snaps []models.Snapshot) map[models.Address]models.Snapshot {
	byAddr := make(map[models.Address]models.Snapshot, len(snaps))
	for _, s := range snaps {
		byAddr[s.Address] = s
	}
	return byAddr
}

// CheckAcyclic verifies that no chain of parent links returns to a node it
// already visited. Chains may end at a detached node while the tree heals.
func CheckAcyclic(snaps []models.Snapshot) error {
	byAddr := index(snaps)
	var errs []error
	for _, s := range snaps {
		seen := map[models.Address]bool{s.Address: true}
		cur := s
		for cur.Parent != nil {
			if seen[*cur.Parent] {
				errs = append(errs, fmt.Errorf("node %d: parent chain loops at %s", s.ID, *cur.Parent))
				break
			}
			seen[*cur.Parent] = true
			next, ok := byAddr[*cur.Parent]
			if !ok {
				break
			}
			cur = next
		}
	}
	return errors.Join(errs...)
}

// CheckRanks verifies that every joined node sits exactly one rank below its
// parent. It only holds once rank updates have settled.
func CheckRanks(snaps []models.Snapshot) error {
	byAddr := index(snaps)
	var errs []error
	for _, s := range snaps {
		if s.Parent == nil {
			continue
		}
		parent, ok := byAddr[*s.Parent]
		if !ok || parent.Rank == nil || s.Rank == nil {
			continue
		}
		if *s.Rank != *parent.Rank+1 {
			errs = append(errs, fmt.Errorf("node %d: rank %d under parent %d at rank %d", s.ID, *s.Rank, parent.ID, *parent.Rank))
		}
	}
	return errors.Join(errs...)
}

// CheckChildren verifies that parent and child links agree in both directions.
func CheckChildren(snaps []models.Snapshot) error {
	byAddr := index(snaps)
	var errs []error
	for _, p := range snaps {
		for _, c := range p.ChildAddresses() {
			child, ok := byAddr[c]
			if !ok {
				continue
			}
			if child.Parent == nil || *child.Parent != p.Address {
				errs = append(errs, fmt.Errorf("node %d lists %d as child, but its parent is %v", p.ID, child.ID, child.Parent))
			}
		}
	}
	for _, s := range snaps {
		if s.Parent == nil {
			continue
		}
		parent, ok := byAddr[*s.Parent]
		if !ok {
			continue
		}
		found := false
		for _, c := range parent.ChildAddresses() {
			if c == s.Address {
				found = true
				break
			}
		}
		if !found {
			errs = append(errs, fmt.Errorf("node %d is missing from parent %d's children", s.ID, parent.ID))
		}
	}
	return errors.Join(errs...)
}
