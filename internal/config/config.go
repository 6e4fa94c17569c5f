// Package config loads node and gateway settings from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/meshtree/internal/node"
	"github.com/meshtree/pkg/models"
	"github.com/meshtree/pkg/network"
)

// EnvPrefix prefixes environment overrides, e.g. MESHTREE_NODE_ID.
const EnvPrefix = "MESHTREE"

var (
	ErrInvalidRole = errors.New("config: invalid role")
	ErrInvalid     = errors.New("config: invalid value")
)

type NodeSection struct {
	ID      uint16 `mapstructure:"id"`
	Role    string `mapstructure:"role"`
	Address string `mapstructure:"address"`
}

type TimingSection struct {
	DiscoveryInterval time.Duration `mapstructure:"discovery_interval"`
	LivenessInterval  time.Duration `mapstructure:"liveness_interval"`
	ClockInterval     time.Duration `mapstructure:"clock_interval"`
	SlotWindow        time.Duration `mapstructure:"slot_window"`
}

type ProtocolSection struct {
	MaxChildren       int     `mapstructure:"max_children"`
	MaxRank           int     `mapstructure:"max_rank"`
	LivenessStrikes   int     `mapstructure:"liveness_strikes"`
	SignalMargin      int     `mapstructure:"signal_margin"`
	ReselectAboveRank int     `mapstructure:"reselect_above_rank"`
	SampleProbability float64 `mapstructure:"sample_probability"`
}

// NeighborEntry is a peer in radio range. Either ID or Address names it.
type NeighborEntry struct {
	ID       uint16 `mapstructure:"id"`
	Address  string `mapstructure:"address"`
	Endpoint string `mapstructure:"endpoint"`
	RSSI     int    `mapstructure:"rssi"`
}

type LinkSection struct {
	Listen    string          `mapstructure:"listen"`
	Neighbors []NeighborEntry `mapstructure:"neighbors"`
}

type SinkSection struct {
	MQTTBroker  string `mapstructure:"mqtt_broker"`
	MQTTTopic   string `mapstructure:"mqtt_topic"`
	ArchivePath string `mapstructure:"archive_path"`
	Stdout      bool   `mapstructure:"stdout"`
}

type GatewaySection struct {
	Mode       string `mapstructure:"mode"`
	SerialPort string `mapstructure:"serial_port"`
	BaudRate   int    `mapstructure:"baud_rate"`
	Address    string `mapstructure:"address"`
}

type APISection struct {
	Port int `mapstructure:"port"`
}

type LogSection struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type Config struct {
	Node     NodeSection     `mapstructure:"node"`
	Timing   TimingSection   `mapstructure:"timing"`
	Protocol ProtocolSection `mapstructure:"protocol"`
	Link     LinkSection     `mapstructure:"link"`
	Sink     SinkSection     `mapstructure:"sink"`
	Gateway  GatewaySection  `mapstructure:"gateway"`
	API      APISection      `mapstructure:"api"`
	Log      LogSection      `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("node.id", 1)
	v.SetDefault("node.role", "sensor")
	v.SetDefault("node.address", "")

	v.SetDefault("timing.discovery_interval", 2*time.Second)
	v.SetDefault("timing.liveness_interval", 5*time.Second)
	v.SetDefault("timing.clock_interval", 5*time.Second)
	v.SetDefault("timing.slot_window", 2*time.Second)

	v.SetDefault("protocol.max_children", node.DefaultMaxChildren)
	v.SetDefault("protocol.max_rank", node.DefaultMaxRank)
	v.SetDefault("protocol.liveness_strikes", node.DefaultLivenessStrikes)
	v.SetDefault("protocol.signal_margin", 0)
	v.SetDefault("protocol.reselect_above_rank", node.DefaultReselectAboveRank)
	v.SetDefault("protocol.sample_probability", node.DefaultSampleProbability)

	v.SetDefault("link.listen", ":7400")

	v.SetDefault("sink.mqtt_broker", "")
	v.SetDefault("sink.mqtt_topic", "iot/sensors")
	v.SetDefault("sink.archive_path", "")
	v.SetDefault("sink.stdout", true)

	v.SetDefault("gateway.mode", "bridge")
	v.SetDefault("gateway.serial_port", "")
	v.SetDefault("gateway.baud_rate", 115200)
	v.SetDefault("gateway.address", "localhost:60001")

	v.SetDefault("api.port", 8080)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

// Load reads path (if non-empty), applies MESHTREE_* environment overrides
// and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail deep inside the node.
func (c *Config) Validate() error {
	if _, err := models.ParseRole(c.Node.Role); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRole, err)
	}
	if c.Node.ID == 0 && c.Node.Address == "" {
		return fmt.Errorf("%w: node.id 0 needs an explicit node.address", ErrInvalid)
	}
	if c.Node.Address != "" {
		if _, err := models.ParseAddress(c.Node.Address); err != nil {
			return fmt.Errorf("%w: node.address: %v", ErrInvalid, err)
		}
	}
	if c.Timing.SlotWindow < 0 {
		return fmt.Errorf("%w: timing.slot_window must not be negative", ErrInvalid)
	}
	if p := c.Protocol.SampleProbability; p < 0 || p > 1 {
		return fmt.Errorf("%w: protocol.sample_probability %v not in [0,1]", ErrInvalid, p)
	}
	if c.Protocol.MaxChildren < 1 {
		return fmt.Errorf("%w: protocol.max_children must be positive", ErrInvalid)
	}
	if c.Protocol.MaxRank < 1 {
		return fmt.Errorf("%w: protocol.max_rank must be positive", ErrInvalid)
	}
	for i, n := range c.Link.Neighbors {
		if n.Endpoint == "" {
			return fmt.Errorf("%w: link.neighbors[%d] has no endpoint", ErrInvalid, i)
		}
		if _, err := n.address(); err != nil {
			return fmt.Errorf("%w: link.neighbors[%d]: %v", ErrInvalid, i, err)
		}
	}
	switch c.Gateway.Mode {
	case "bridge", "collect":
	default:
		return fmt.Errorf("%w: gateway.mode %q", ErrInvalid, c.Gateway.Mode)
	}
	return nil
}

func (n NeighborEntry) address() (models.Address, error) {
	if n.Address != "" {
		return models.ParseAddress(n.Address)
	}
	if n.ID == 0 {
		return models.NullAddress, errors.New("neither id nor address set")
	}
	return models.AddressFromID(n.ID), nil
}

// NodeConfig converts the protocol settings for node.New. Clock ticks are
// milliseconds.
func (c *Config) NodeConfig() (node.Config, error) {
	role, err := models.ParseRole(c.Node.Role)
	if err != nil {
		return node.Config{}, fmt.Errorf("%w: %v", ErrInvalidRole, err)
	}
	nc := node.DefaultConfig(c.Node.ID, role)
	if c.Node.Address != "" {
		addr, err := models.ParseAddress(c.Node.Address)
		if err != nil {
			return node.Config{}, fmt.Errorf("node.address: %w", err)
		}
		nc.Address = addr
	}
	nc.MaxChildren = c.Protocol.MaxChildren
	nc.MaxRank = c.Protocol.MaxRank
	nc.LivenessStrikes = c.Protocol.LivenessStrikes
	nc.SignalMargin = c.Protocol.SignalMargin
	nc.ReselectAboveRank = c.Protocol.ReselectAboveRank
	nc.SampleProbability = c.Protocol.SampleProbability
	nc.SlotWindow = c.Timing.SlotWindow.Milliseconds()
	return nc, nil
}

// NodeTiming returns the runner timer periods.
func (c *Config) NodeTiming() node.Timing {
	t := node.DefaultTiming(c.Timing.SlotWindow)
	t.Discovery = c.Timing.DiscoveryInterval
	t.Liveness = c.Timing.LivenessInterval
	t.Clock = c.Timing.ClockInterval
	return t
}

// Neighbors returns the static link neighbor table.
func (c *Config) Neighbors() ([]network.Neighbor, error) {
	out := make([]network.Neighbor, 0, len(c.Link.Neighbors))
	for i, n := range c.Link.Neighbors {
		addr, err := n.address()
		if err != nil {
			return nil, fmt.Errorf("link.neighbors[%d]: %w", i, err)
		}
		out = append(out, network.Neighbor{Address: addr, Endpoint: n.Endpoint, RSSI: n.RSSI})
	}
	return out, nil
}
