// Package config defines the sector geometry configuration for the
// emulated EEPROM and its YAML loader.
package config

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/INLOpen/nexusflash/core"
)

// SectorConfig describes one physical flash sector.
type SectorConfig struct {
	Base uint32 `yaml:"base"`
	Size uint32 `yaml:"size"`
}

// End returns the first address past the sector.
func (s SectorConfig) End() uint32 {
	return s.Base + s.Size
}

// Config holds the full engine configuration. The two sectors may differ in
// size; usable capacity is bounded by the smaller one.
type Config struct {
	Sector1 SectorConfig `yaml:"sector1"`
	Sector2 SectorConfig `yaml:"sector2"`
}

// DefaultConfig returns the geometry of the reference hardware.
func DefaultConfig() *Config {
	return &Config{
		Sector1: SectorConfig{Base: core.DefaultSector1Base, Size: core.DefaultSector1Size},
		Sector2: SectorConfig{Base: core.DefaultSector2Base, Size: core.DefaultSector2Size},
	}
}

// LoadConfig reads and validates a YAML configuration file. A missing path
// returns the default configuration.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer f.Close()
	cfg, err := ParseConfig(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes and validates YAML configuration from r.
func ParseConfig(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SmallestSectorSize returns the size of the smaller sector, which bounds
// the total capacity of the store.
func (c *Config) SmallestSectorSize() uint32 {
	if c.Sector1.Size < c.Sector2.Size {
		return c.Sector1.Size
	}
	return c.Sector2.Size
}

// Validate checks that the geometry can hold at least one record and that
// the sectors do not overlap.
func (c *Config) Validate() error {
	for i, s := range []SectorConfig{c.Sector1, c.Sector2} {
		if s.Size < core.SectorHeaderSize+core.RecordHeaderSize+1 {
			return fmt.Errorf("sector%d size %d cannot hold a sector header and one record", i+1, s.Size)
		}
		if s.Base+s.Size < s.Base {
			return fmt.Errorf("sector%d span overflows the address space", i+1)
		}
	}
	if c.Sector1.Base < c.Sector2.End() && c.Sector2.Base < c.Sector1.End() {
		return fmt.Errorf("sector spans [0x%X, 0x%X) and [0x%X, 0x%X) overlap",
			c.Sector1.Base, c.Sector1.End(), c.Sector2.Base, c.Sector2.End())
	}
	return nil
}
