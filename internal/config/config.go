// Package config loads and validates the station's YAML key/value
// configuration record, and supplies the built-in defaults documented in
// the spec's glossary.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Orientation is the physical mounting orientation of a channel.
type Orientation string

const (
	OrientationVertical Orientation = "vertical"
	OrientationNorth    Orientation = "north"
	OrientationEast     Orientation = "east"
)

// Channel describes one of the (up to three) ADC channels wired to a
// named seismic component.
type Channel struct {
	Name        string      `yaml:"name"`
	ADCChannel  int         `yaml:"adc_channel"`
	Orientation Orientation `yaml:"orientation"`
}

// Location is an optional geodetic siting record, purely informational.
type Location struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// Config is the full key/value configuration record described in spec §6.
type Config struct {
	Network           string     `yaml:"network"`
	Station           string     `yaml:"station"`
	SamplingRate      int        `yaml:"sampling_rate"`
	DecimationFactor  int        `yaml:"decimation_factor"`
	ADCPGA            uint8      `yaml:"adc_pga"`
	ADCDataRateIndex  uint8      `yaml:"adc_data_rate_index"`
	ADCDataRateSPS    int        `yaml:"adc_data_rate_sps"`
	SerialDevice      string     `yaml:"serial_device"`
	DataDir           string     `yaml:"data_dir"`
	WriteIntervalSec  int        `yaml:"write_interval_sec"`
	EventWindowSec    int        `yaml:"event_window_sec"`
	STASeconds        float64    `yaml:"sta_seconds"`
	LTASeconds        float64    `yaml:"lta_seconds"`
	OnThreshold       float64    `yaml:"on_threshold"`
	OffThreshold      float64    `yaml:"off_threshold"`
	BroadcastBindAddr string     `yaml:"broadcast_bind_addr"`
	Channels          []Channel  `yaml:"channels"`
	Location          *Location  `yaml:"location,omitempty"`
}

// Default returns the built-in default configuration, per the spec's
// Glossary "Defaults" entry.
func Default() Config {
	return Config{
		Network:           "XX",
		Station:           "RPI3",
		SamplingRate:      100,
		DecimationFactor:  4,
		ADCPGA:            6,  // PGA_64, matches the original driver's default.
		ADCDataRateIndex:  11, // DRATE_2000SPS
		ADCDataRateSPS:    2000,
		SerialDevice:      "/dev/ttyUSB0",
		DataDir:           "./data",
		WriteIntervalSec:  1800,
		EventWindowSec:    300,
		STASeconds:        1.0,
		LTASeconds:        30.0,
		OnThreshold:       3.5,
		OffThreshold:      1.5,
		BroadcastBindAddr: "0.0.0.0:8765",
		Channels: []Channel{
			{Name: "EHZ", ADCChannel: 0, Orientation: OrientationVertical},
			{Name: "EHN", ADCChannel: 1, Orientation: OrientationNorth},
			{Name: "EHE", ADCChannel: 2, Orientation: OrientationEast},
		},
	}
}

// Load reads the YAML configuration record at path, creating it from
// Default() if it doesn't exist yet, and validates the result.
func Load(path string) (Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := Save(path, cfg); err != nil {
			return Config{}, fmt.Errorf("config: writing default config: %w", err)
		}
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Save writes cfg to path as YAML, creating the parent directory if needed.
func Save(path string, cfg Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: creating %s: %w", dir, err)
		}
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshalling: %w", err)
	}

	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("config: writing %s: %w", path, err)
	}

	return nil
}
