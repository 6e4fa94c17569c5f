package models

import (
	"fmt"
	"strings"
)

// Role is fixed for a node's lifetime.
type Role uint8

const (
	RoleBorderRouter Role = iota
	RoleCoordinator
	RoleSensor
)

func (r Role) String() string {
	switch r {
	case RoleBorderRouter:
		return "border_router"
	case RoleCoordinator:
		return "coordinator"
	case RoleSensor:
		return "sensor"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// IsRoot reports whether the role is the tree root.
func (r Role) IsRoot() bool {
	return r == RoleBorderRouter
}

// ParseRole maps a configuration string onto a Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "border_router", "border-router", "br", "root":
		return RoleBorderRouter, nil
	case "coordinator", "coord":
		return RoleCoordinator, nil
	case "sensor":
		return RoleSensor, nil
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Slot is a transmission window in compensated-clock ticks, [Start, End).
type Slot struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

func (s Slot) Contains(t int64) bool {
	return t >= s.Start && t < s.End
}

func (s Slot) Width() int64 {
	return s.End - s.Start
}

// ChildInfo is one entry of a node's child set.
type ChildInfo struct {
	Address    Address `json:"address"`
	ReachCount int     `json:"reach_count"`
}

// Snapshot is a read-only copy of a node's topology state.
type Snapshot struct {
	ID                 uint16      `json:"id"`
	Address            Address     `json:"address"`
	Role               Role        `json:"role"`
	Joined             bool        `json:"joined"`
	Rank               *int        `json:"rank,omitempty"`
	Parent             *Address    `json:"parent,omitempty"`
	ParentReachCount   int         `json:"parent_reach_count"`
	BestSignalStrength int         `json:"best_signal_strength"`
	Children           []ChildInfo `json:"children"`
	ClockCompensation  int64       `json:"clock_compensation"`
	PendingSlot        *Slot       `json:"pending_slot,omitempty"`
}

// ChildAddresses returns the child addresses in join order.
func (s Snapshot) ChildAddresses() []Address {
	out := make([]Address, len(s.Children))
	for i, c := range s.Children {
		out[i] = c.Address
	}
	return out
}
