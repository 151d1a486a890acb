package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Voice describes one loop generator in a voice-set file.
type Voice struct {
	Name   string  `yaml:"name"`
	Pitch  float64 `yaml:"pitch"`  // Hz
	Period float64 `yaml:"period"` // seconds
}

// Config is the optional YAML configuration for the player. Zero fields
// fall back to the defaults.
type Config struct {
	SampleRate   int     `yaml:"sampleRate,omitempty"`
	Lookahead    float64 `yaml:"lookahead,omitempty"`    // seconds
	TickInterval float64 `yaml:"tickInterval,omitempty"` // seconds
	Seed         int64   `yaml:"seed,omitempty"`
	Volume       float64 `yaml:"volume,omitempty"`
	Voices       []Voice `yaml:"voices"`
}

// Default returns the compiled-in reference configuration: seven voices
// with non-coincident periods, so the combined pattern effectively never
// repeats within a listening session.
func Default() Config {
	return Config{
		SampleRate:   48000,
		Lookahead:    0.5,
		TickInterval: 0.1,
		Volume:       1.0,
		Voices: []Voice{
			{Name: "Ab4", Pitch: 415.30, Period: 17.8},
			{Name: "C5", Pitch: 523.25, Period: 20.1},
			{Name: "Db5", Pitch: 554.37, Period: 31.7},
			{Name: "F4", Pitch: 349.23, Period: 19.6},
			{Name: "Eb5", Pitch: 622.25, Period: 24.7},
			{Name: "F5", Pitch: 698.46, Period: 21.3},
			{Name: "Ab5", Pitch: 830.61, Period: 17.7},
		},
	}
}

// Load reads a YAML config file and fills unset fields from Default.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(data)
}

// Parse decodes YAML bytes and fills unset fields from Default.
func Parse(data []byte) (Config, error) {
	cfg := Config{}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	def := Default()
	if cfg.SampleRate == 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.Lookahead == 0 {
		cfg.Lookahead = def.Lookahead
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.Volume == 0 {
		cfg.Volume = def.Volume
	}
	if len(cfg.Voices) == 0 {
		cfg.Voices = def.Voices
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the core would fail fast on anyway,
// with friendlier messages.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sampleRate must be positive, got %d", c.SampleRate)
	}
	if c.Lookahead <= 0 {
		return fmt.Errorf("lookahead must be positive, got %v", c.Lookahead)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tickInterval must be positive, got %v", c.TickInterval)
	}
	if c.TickInterval >= c.Lookahead {
		return fmt.Errorf("tickInterval %vs must be shorter than lookahead %vs", c.TickInterval, c.Lookahead)
	}
	if c.Volume < 0 {
		return fmt.Errorf("volume must not be negative, got %v", c.Volume)
	}
	if len(c.Voices) == 0 {
		return fmt.Errorf("at least one voice is required")
	}
	for i, v := range c.Voices {
		if v.Period <= 0 {
			return fmt.Errorf("voice %d (%q): period must be positive, got %v", i, v.Name, v.Period)
		}
		if v.Pitch <= 0 {
			return fmt.Errorf("voice %d (%q): pitch must be positive, got %v", i, v.Name, v.Pitch)
		}
	}
	return nil
}

// TickDuration converts the tick interval to a time.Duration.
func (c Config) TickDuration() time.Duration {
	return time.Duration(c.TickInterval * float64(time.Second))
}
