// Package config loads process configuration for the central and point
// binaries from TOML files.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/voltbridge/voltbridge/internal/confstore"
)

type CentralConfig struct {
	Name                     string   `toml:"name"`
	ListenAddr               string   `toml:"listen_addr"`
	AdminAddr                string   `toml:"admin_addr"`
	SchemaDir                string   `toml:"schema_dir"`
	HeartbeatIntervalSeconds int      `toml:"heartbeat_interval_seconds"`
	CallTimeoutSeconds       int      `toml:"call_timeout_seconds"`
	CORSOrigins              []string `toml:"cors_origins"`
	AdminRateLimit           float64  `toml:"admin_rate_limit"`
	AdminRateBurst           int      `toml:"admin_rate_burst"`
}

type PointConfig struct {
	Name                  string     `toml:"name"`
	CentralAddr           string     `toml:"central_addr"`
	Model                 string     `toml:"model"`
	Vendor                string     `toml:"vendor"`
	SerialNumber          string     `toml:"serial_number"`
	SchemaDir             string     `toml:"schema_dir"`
	ConnectTimeoutSeconds int        `toml:"connect_timeout_seconds"`
	CallTimeoutSeconds    int        `toml:"call_timeout_seconds"`
	Keys                  []KeyEntry `toml:"keys"`
}

// KeyEntry declares one configuration store entry in a point config file.
type KeyEntry struct {
	Key      string `toml:"key"`
	Type     string `toml:"type"` // "int" or "string"
	Value    string `toml:"value"`
	Readonly bool   `toml:"readonly"`
}

func LoadCentralConfig(path string) (CentralConfig, error) {
	var cfg CentralConfig
	if err := loadToml(path, &cfg); err != nil {
		return CentralConfig{}, err
	}
	if cfg.Name == "" {
		cfg.Name = "centrald"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":9000"
	}
	if cfg.AdminAddr == "" {
		cfg.AdminAddr = ":3000"
	}
	if cfg.HeartbeatIntervalSeconds <= 0 {
		cfg.HeartbeatIntervalSeconds = 300
	}
	if cfg.CallTimeoutSeconds <= 0 {
		cfg.CallTimeoutSeconds = 30
	}
	return cfg, nil
}

func LoadPointConfig(path string) (PointConfig, error) {
	var cfg PointConfig
	if err := loadToml(path, &cfg); err != nil {
		return PointConfig{}, err
	}
	if cfg.Name == "" {
		cfg.Name = "pointd"
	}
	if cfg.ConnectTimeoutSeconds <= 0 {
		cfg.ConnectTimeoutSeconds = 5
	}
	if cfg.CallTimeoutSeconds <= 0 {
		cfg.CallTimeoutSeconds = 30
	}
	if len(cfg.Keys) == 0 {
		cfg.Keys = []KeyEntry{
			{Key: "HeartbeatInterval", Type: "int", Value: "30"},
		}
	}
	if err := ValidatePointConfig(cfg); err != nil {
		return PointConfig{}, err
	}
	return cfg, nil
}

func ValidatePointConfig(cfg PointConfig) error {
	if strings.TrimSpace(cfg.CentralAddr) == "" {
		return fmt.Errorf("point config missing central_addr")
	}
	if strings.TrimSpace(cfg.SerialNumber) == "" {
		return fmt.Errorf("point config missing serial_number")
	}
	for i, entry := range cfg.Keys {
		if strings.TrimSpace(entry.Key) == "" {
			return fmt.Errorf("keys[%d] missing key", i)
		}
		switch entry.Type {
		case "", "string", "int":
		default:
			return fmt.Errorf("keys[%d] invalid type %q", i, entry.Type)
		}
	}
	return nil
}

// Store builds the point's configuration store from the declared entries.
func (cfg PointConfig) Store() (*confstore.Store, error) {
	entries := make([]confstore.Entry, 0, len(cfg.Keys))
	for i, entry := range cfg.Keys {
		switch entry.Type {
		case "int":
			var n int
			if _, err := fmt.Sscanf(strings.TrimSpace(entry.Value), "%d", &n); err != nil {
				return nil, fmt.Errorf("keys[%d] %q: non-integer value %q", i, entry.Key, entry.Value)
			}
			entries = append(entries, confstore.IntEntry(entry.Key, n, entry.Readonly))
		default:
			entries = append(entries, confstore.StringEntry(entry.Key, entry.Value, entry.Readonly))
		}
	}
	return confstore.New(entries...), nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}
