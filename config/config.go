package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"midi-fixture-control/cue"
	"midi-fixture-control/patch"
)

const appName = "midi-fixture-control"

// Config is the main configuration structure
type Config struct {
	Output  string         `json:"output,omitempty"`  // default MIDI output port
	Library string         `json:"library,omitempty"` // extra fixture library file
	Patches []patch.Record `json:"patches,omitempty"`
	Cues    []cue.Cue      `json:"cues,omitempty"`
	Debug   bool           `json:"debug,omitempty"`

	path string
}

// DefaultConfig returns an empty session
func DefaultConfig() *Config {
	return &Config{}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads the config at path, or returns defaults if there is none.
// Save on the result writes back to the same path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			cfg.path = path
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.path = path

	return &cfg, nil
}

// Path returns where the config was loaded from ("" for the default path)
func (c *Config) Path() string {
	return c.path
}

// Save writes the config to where it was loaded from, or to ConfigPath
func (c *Config) Save() error {
	path := c.path
	if path == "" {
		var err error
		if path, err = ConfigPath(); err != nil {
			return err
		}
	}
	return c.SaveTo(path)
}

// SaveTo writes the config to path
func (c *Config) SaveTo(path string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}
	c.path = path
	return nil
}

// FindCue finds a cue by name
func (c *Config) FindCue(name string) *cue.Cue {
	for i := range c.Cues {
		if c.Cues[i].Name == name {
			return &c.Cues[i]
		}
	}
	return nil
}

// SetCue adds or updates a cue, matched by name
func (c *Config) SetCue(q cue.Cue) {
	for i := range c.Cues {
		if c.Cues[i].Name == q.Name {
			c.Cues[i] = q
			return
		}
	}
	c.Cues = append(c.Cues, q)
}

// RemoveCue deletes a cue by name and reports whether it existed
func (c *Config) RemoveCue(name string) bool {
	for i := range c.Cues {
		if c.Cues[i].Name == name {
			c.Cues = append(c.Cues[:i], c.Cues[i+1:]...)
			return true
		}
	}
	return false
}
