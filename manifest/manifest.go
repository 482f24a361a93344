// Package manifest handles sb3vm.toml player configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/chazu/sb3vm/vm"
)

// FileName is the configuration file looked up next to a project.
const FileName = "sb3vm.toml"

// Config represents an sb3vm.toml file.
type Config struct {
	Player Player `toml:"player"`
	Limits Limits `toml:"limits"`
	Cloud  Cloud  `toml:"cloud"`
	Log    Log    `toml:"log"`

	// Dir is the directory containing the sb3vm.toml file (set at load time).
	Dir string `toml:"-"`
}

// Player configures the frame loop.
type Player struct {
	FPS         int    `toml:"fps"`
	Turbo       bool   `toml:"turbo"`
	MaxFrames   uint64 `toml:"max_frames"`
	KeepRunning bool   `toml:"keep_running"`
	Username    string `toml:"username"`
}

// Limits bounds executor resources.
type Limits struct {
	MaxClones     int `toml:"max_clones"`
	MaxCallDepth  int `toml:"max_call_depth"`
	WarpBudgetMS  int `toml:"warp_budget_ms"`
	MaxListLength int `toml:"max_list_length"`
}

// Cloud configures the local cloud-variable store.
type Cloud struct {
	Enabled bool   `toml:"enabled"`
	Store   string `toml:"store"`
}

// Log configures logging.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no sb3vm.toml exists.
func Default() *Config {
	return &Config{
		Player: Player{FPS: 30},
		Limits: Limits{
			MaxClones:     vm.DefaultMaxClones,
			MaxCallDepth:  vm.DefaultMaxCallDepth,
			WarpBudgetMS:  int(vm.DefaultWarpBudget / time.Millisecond),
			MaxListLength: vm.MaxListLength,
		},
		Cloud: Cloud{Enabled: true, Store: filepath.Join(".sb3vm", "cloud.db")},
	}
}

// Load parses the sb3vm.toml file in dir. Keys missing from the file keep
// their defaults.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find an sb3vm.toml file, then
// loads it. When no file is found the defaults are returned, rooted at
// startDir.
func FindAndLoad(startDir string) (*Config, error) {
	start, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for dir := start; ; {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			c := Default()
			c.Dir = start
			return c, nil
		}
		dir = parent
	}
}

// Validate rejects values the player cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Player.FPS <= 0:
		return fmt.Errorf("player.fps must be positive, got %d", c.Player.FPS)
	case c.Limits.MaxClones < 0:
		return fmt.Errorf("limits.max_clones must not be negative, got %d", c.Limits.MaxClones)
	case c.Limits.MaxCallDepth <= 0:
		return fmt.Errorf("limits.max_call_depth must be positive, got %d", c.Limits.MaxCallDepth)
	case c.Limits.WarpBudgetMS < 0:
		return fmt.Errorf("limits.warp_budget_ms must not be negative, got %d", c.Limits.WarpBudgetMS)
	case c.Limits.MaxListLength <= 0:
		return fmt.Errorf("limits.max_list_length must be positive, got %d", c.Limits.MaxListLength)
	}
	return nil
}

// WarpBudget returns the warp budget as a duration.
func (c *Config) WarpBudget() time.Duration {
	return time.Duration(c.Limits.WarpBudgetMS) * time.Millisecond
}

// StorePath returns the cloud store path, resolved against Dir.
func (c *Config) StorePath() string {
	if c.Cloud.Store == "" || filepath.IsAbs(c.Cloud.Store) {
		return c.Cloud.Store
	}
	return filepath.Join(c.Dir, c.Cloud.Store)
}

// LogPath returns the log file path resolved against Dir, or nil for
// standard error.
func (c *Config) LogPath() *string {
	if c.Log.File == "" {
		return nil
	}
	p := c.Log.File
	if !filepath.IsAbs(p) {
		p = filepath.Join(c.Dir, p)
	}
	return &p
}

// ExecutorOptions translates the limits into executor options.
func (c *Config) ExecutorOptions() []vm.Option {
	return []vm.Option{
		vm.WithMaxClones(c.Limits.MaxClones),
		vm.WithMaxCallDepth(c.Limits.MaxCallDepth),
		vm.WithWarpBudget(c.WarpBudget()),
		vm.WithMaxListLength(c.Limits.MaxListLength),
	}
}
