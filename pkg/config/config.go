package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is dsim's top-level configuration: logging, the simulated
// network's tuning knobs, the optional metrics listener, and the
// demo cluster's node count/addressing scheme.
type Config struct {
	Framework  FrameworkConfig  `yaml:"framework"`
	Simulation SimulationConfig `yaml:"simulation"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Cluster    ClusterConfig    `yaml:"cluster"`
}

// FrameworkConfig contains general logging settings.
type FrameworkConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// SimulationConfig tunes the simulated network's determinism and fault
// model, mirroring simnet.Config plus the seed driving simrand.Source.
type SimulationConfig struct {
	Seed           int64         `yaml:"seed"`
	PacketLossRate float64       `yaml:"packet_loss_rate"`
	SendLatencyLo  time.Duration `yaml:"send_latency_lo"`
	SendLatencyHi  time.Duration `yaml:"send_latency_hi"`
}

// MetricsConfig controls the optional HTTP listener simmetrics exposes
// for external inspection of a running demo.
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// ClusterConfig describes the demo cluster cmd/dsim run builds: node
// count and the base IPv4 address nodes are assigned from in sequence.
type ClusterConfig struct {
	NodeCount int    `yaml:"node_count"`
	IPBase    string `yaml:"ip_base"`
}

// DefaultConfig returns dsim's baked-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Framework: FrameworkConfig{
			LogLevel:  "info",
			LogFormat: "text",
		},
		Simulation: SimulationConfig{
			Seed:           1,
			PacketLossRate: 0,
			SendLatencyLo:  time.Millisecond,
			SendLatencyHi:  10 * time.Millisecond,
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			ListenAddr: ":9090",
		},
		Cluster: ClusterConfig{
			NodeCount: 3,
			IPBase:    "10.0.0.1",
		},
	}
}

// Load reads configuration from a YAML file (dsim.yaml when path is
// empty), falling back silently to DefaultConfig when the file doesn't
// exist. It applies no environment overrides; cmd/dsim uses its own
// koanf-based loader for that instead of this function.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = "dsim.yaml"
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the fields cmd/dsim needs before it can build a
// Network from this config.
func (c *Config) Validate() error {
	if c.Simulation.PacketLossRate < 0 || c.Simulation.PacketLossRate > 1 {
		return fmt.Errorf("simulation.packet_loss_rate must be in [0,1]")
	}
	if c.Simulation.SendLatencyLo >= c.Simulation.SendLatencyHi {
		return fmt.Errorf("simulation.send_latency_lo must be strictly less than send_latency_hi")
	}
	if c.Cluster.NodeCount < 1 {
		return fmt.Errorf("cluster.node_count must be at least 1")
	}
	if net.ParseIP(c.Cluster.IPBase) == nil {
		return fmt.Errorf("cluster.ip_base %q is not a valid IP", c.Cluster.IPBase)
	}
	return nil
}
