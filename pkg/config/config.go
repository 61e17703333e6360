// Package config loads the platform configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level platform configuration.
type Config struct {
	Cloud     CloudConfig     `yaml:"cloud"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Devices   []DeviceConfig  `yaml:"devices"`
	Log       LogConfig       `yaml:"log"`

	// CredentialFile is where paired token/key pairs are stored.
	CredentialFile string `yaml:"credential_file"`
}

// CloudConfig holds the vendor account used for first pairing.
type CloudConfig struct {
	Account  string `yaml:"account"`
	Password string `yaml:"password"`
}

// DiscoveryConfig tunes the broadcast scan.
type DiscoveryConfig struct {
	Interval time.Duration `yaml:"interval"`

	// ProbeAddresses are direct IPs for appliances on other subnets that
	// broadcast cannot reach.
	ProbeAddresses []string `yaml:"probe_addresses"`
}

// DeviceConfig pins or overrides one appliance's settings.
type DeviceConfig struct {
	Name string `yaml:"name"`
	IP   string `yaml:"ip"`
	Port int    `yaml:"port"`
	ID   uint64 `yaml:"id"`

	// Token and Key override the credential store, hex-encoded.
	Token string `yaml:"token,omitempty"`
	Key   string `yaml:"key,omitempty"`

	ProtocolVersion uint8 `yaml:"protocol_version,omitempty"`
}

// LogConfig selects the event log outputs.
type LogConfig struct {
	// Level for console output ("debug", "info", "warn").
	Level string `yaml:"level"`

	// File is an optional CBOR event log path.
	File string `yaml:"file,omitempty"`
}

// Load reads and validates a configuration file.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.setDefaults()

	for i, d := range cfg.Devices {
		if d.IP == "" {
			return nil, fmt.Errorf("devices[%d]: ip is required", i)
		}
	}
	return &cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if account := os.Getenv("MIDEA_ACCOUNT"); account != "" {
		c.Cloud.Account = account
	}
	if password := os.Getenv("MIDEA_PASSWORD"); password != "" {
		c.Cloud.Password = password
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

func (c *Config) setDefaults() {
	if c.Discovery.Interval <= 0 {
		c.Discovery.Interval = 5 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.CredentialFile == "" {
		c.CredentialFile = "credentials.json"
	}
	for i := range c.Devices {
		if c.Devices[i].Port == 0 {
			c.Devices[i].Port = 6444
		}
		if c.Devices[i].ProtocolVersion == 0 {
			c.Devices[i].ProtocolVersion = 3
		}
	}
}
