package sim

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/meshtree/internal/node"
	"github.com/meshtree/pkg/models"
)

// NodeSpec describes one simulated node.
type NodeSpec struct {
	ID   uint16 `mapstructure:"id"`
	Role string `mapstructure:"role"`
	Skew int64  `mapstructure:"skew"`
}

// LinkSpec puts two nodes in range at a signal strength.
type LinkSpec struct {
	A    uint16 `mapstructure:"a"`
	B    uint16 `mapstructure:"b"`
	RSSI int    `mapstructure:"rssi"`
}

// Topology is a simulated deployment.
type Topology struct {
	Nodes []NodeSpec `mapstructure:"nodes"`
	Links []LinkSpec `mapstructure:"links"`
}

// Reference is the five-node deployment used throughout the protocol docs:
// a border router, two coordinators in its range and one sensor per
// coordinator. The coordinators also hear each other.
func Reference() Topology {
	return Topology{
		Nodes: []NodeSpec{
			{ID: 1, Role: "border_router"},
			{ID: 2, Role: "coordinator", Skew: 350},
			{ID: 3, Role: "coordinator", Skew: -120},
			{ID: 4, Role: "sensor", Skew: 40},
			{ID: 5, Role: "sensor", Skew: 900},
		},
		Links: []LinkSpec{
			{A: 1, B: 2, RSSI: -45},
			{A: 1, B: 3, RSSI: -50},
			{A: 2, B: 3, RSSI: -70},
			{A: 2, B: 4, RSSI: -40},
			{A: 3, B: 5, RSSI: -40},
		},
	}
}

// LoadTopology reads a topology from a YAML or JSON file.
func LoadTopology(path string) (Topology, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Topology{}, fmt.Errorf("read topology %s: %w", path, err)
	}
	var topo Topology
	if err := v.Unmarshal(&topo); err != nil {
		return Topology{}, fmt.Errorf("decode topology %s: %w", path, err)
	}
	return topo, nil
}

// Build creates the nodes and links of topo on a new network. configure, if
// set, can adjust each node's parameters before it starts.
func Build(topo Topology, configure func(*node.Config), opts ...Option) (*Network, error) {
	net := New(opts...)
	known := make(map[uint16]bool, len(topo.Nodes))
	for _, spec := range topo.Nodes {
		if spec.ID == 0 {
			return nil, fmt.Errorf("node id 0 is reserved")
		}
		if known[spec.ID] {
			return nil, fmt.Errorf("duplicate node id %d", spec.ID)
		}
		role, err := models.ParseRole(spec.Role)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", spec.ID, err)
		}
		cfg := node.DefaultConfig(spec.ID, role)
		if configure != nil {
			configure(&cfg)
		}
		net.AddNode(cfg, spec.Skew)
		known[spec.ID] = true
	}
	for _, l := range topo.Links {
		if !known[l.A] || !known[l.B] {
			return nil, fmt.Errorf("link %d-%d references unknown node", l.A, l.B)
		}
		net.Link(models.AddressFromID(l.A), models.AddressFromID(l.B), l.RSSI)
	}
	return net, nil
}
