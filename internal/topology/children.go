package topology

import "github.com/meshtree/pkg/models"

type child struct {
	addr  models.Address
	reach int
}

// Children is an ordered, bounded set of child addresses with a liveness
// counter per entry. Order is join order.
type Children struct {
	entries []child
	max     int
}

// NewChildren returns an empty set holding at most max entries. A
// non-positive max means unbounded.
func NewChildren(max int) *Children {
	return &Children{max: max}
}

func (c *Children) Len() int {
	return len(c.entries)
}

func (c *Children) Full() bool {
	return c.max > 0 && len(c.entries) >= c.max
}

func (c *Children) index(addr models.Address) int {
	for i := range c.entries {
		if c.entries[i].addr == addr {
			return i
		}
	}
	return -1
}

func (c *Children) Contains(addr models.Address) bool {
	return c.index(addr) >= 0
}

// Add appends addr with a zero reach count. It reports whether the set
// contains addr afterwards; re-adding is a no-op and a full set refuses.
func (c *Children) Add(addr models.Address) bool {
	if c.Contains(addr) {
		return true
	}
	if c.Full() {
		return false
	}
	c.entries = append(c.entries, child{addr: addr})
	return true
}

// Remove deletes addr and reports whether it was present.
func (c *Children) Remove(addr models.Address) bool {
	i := c.index(addr)
	if i < 0 {
		return false
	}
	c.entries = append(c.entries[:i], c.entries[i+1:]...)
	return true
}

// ResetReach zeroes the counter of addr, if it is a child.
func (c *Children) ResetReach(addr models.Address) bool {
	i := c.index(addr)
	if i < 0 {
		return false
	}
	c.entries[i].reach = 0
	return true
}

func (c *Children) Reach(addr models.Address) (int, bool) {
	i := c.index(addr)
	if i < 0 {
		return 0, false
	}
	return c.entries[i].reach, true
}

// Addresses returns a copy of the child addresses in join order.
func (c *Children) Addresses() []models.Address {
	out := make([]models.Address, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.addr
	}
	return out
}

// Sweep runs one liveness cycle over the set: entries whose counter is at
// least strikes are removed and returned as evicted, every survivor has its
// counter incremented and is returned in probe.
func (c *Children) Sweep(strikes int) (probe, evicted []models.Address) {
	kept := c.entries[:0]
	for _, e := range c.entries {
		if e.reach >= strikes {
			evicted = append(evicted, e.addr)
			continue
		}
		e.reach++
		probe = append(probe, e.addr)
		kept = append(kept, e)
	}
	for i := len(kept); i < len(c.entries); i++ {
		c.entries[i] = child{}
	}
	c.entries = kept
	return probe, evicted
}

func (c *Children) Info() []models.ChildInfo {
	out := make([]models.ChildInfo, len(c.entries))
	for i, e := range c.entries {
		out[i] = models.ChildInfo{Address: e.addr, ReachCount: e.reach}
	}
	return out
}
