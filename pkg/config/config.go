// Package config holds the engine's configuration surface: the
// teacher's flat nested Config struct (API/AWS/Scan/Output), extended
// with an Engine section (cache TTL, drift-tick defaults) and a Store
// section (table names / in-memory switch).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config is the top-level configuration loaded from file and overridden
// by flags, the same precedence order the teacher's CLI uses.
type Config struct {
	API struct {
		URL     string `json:"url"`
		Timeout int    `json:"timeout"`
	} `json:"api"`

	AWS struct {
		Region  string `json:"region"`
		Profile string `json:"profile"`
	} `json:"aws"`

	Scan struct {
		Resources []string `json:"resources"`
		Limit     int      `json:"limit"`
		Metrics   struct {
			PeriodDays int `json:"period_days"`
		} `json:"metrics"`
	} `json:"scan"`

	Output struct {
		Colors    bool   `json:"colors"`
		Format    string `json:"format"`
		Verbosity string `json:"verbosity"`
	} `json:"output"`

	Engine struct {
		CacheTTLSeconds            int  `json:"cache_ttl_seconds"`
		TreatMissingMetricsAsIdle  bool `json:"treat_missing_metrics_as_idle"`
		DriftAutoExecuteDefault    bool `json:"drift_auto_execute_default"`
	} `json:"engine"`

	Store struct {
		Backend    string            `json:"backend"` // "memory" or "dynamodb"
		TableNames map[string]string `json:"table_names,omitempty"`
	} `json:"store"`
}

// Default returns the configuration the teacher ships as its built-in
// default, extended with this repo's Engine/Store sections.
func Default() *Config {
	cfg := &Config{}
	cfg.API.URL = "https://example.invalid/analyze"
	cfg.API.Timeout = 60
	cfg.AWS.Region = "eu-west-1"
	cfg.Scan.Resources = []string{"ec2", "s3", "rds"}
	cfg.Scan.Limit = 10
	cfg.Scan.Metrics.PeriodDays = 7
	cfg.Output.Colors = true
	cfg.Output.Format = "table"
	cfg.Output.Verbosity = "normal"
	cfg.Engine.CacheTTLSeconds = 30
	cfg.Engine.TreatMissingMetricsAsIdle = true
	cfg.Engine.DriftAutoExecuteDefault = false
	cfg.Store.Backend = "memory"
	return cfg
}

// CacheTTL returns the configured scan-cache TTL as a time.Duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Engine.CacheTTLSeconds) * time.Second
}

// Load reads a JSON config file from path. The file is decoded on top of
// Default(), so any field the file omits keeps its default value.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := json.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg as indented JSON to path.
func Save(cfg *Config, path string) error {
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
