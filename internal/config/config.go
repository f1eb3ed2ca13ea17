// Package config loads the server configuration file. Flags override the
// listen address and directories; everything sim-affecting lives in the yaml
// so a replay can be run against the exact same world parameters.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Listen  string `yaml:"listen"`
	DataDir string `yaml:"data_dir"`

	World   WorldSpec   `yaml:"world"`
	Protect ProtectSpec `yaml:"protect"`
	Brush   BrushSpec   `yaml:"brush"`
	Rates   RateSpec    `yaml:"rates"`
}

type WorldSpec struct {
	ID         string `yaml:"id"`
	Seed       int64  `yaml:"seed"`
	Height     int    `yaml:"height"`
	BoundaryR  int    `yaml:"boundary_r"`
	TickRateHz int    `yaml:"tick_rate_hz"`

	MoveStepMax int `yaml:"move_step_max"`
	PlaceReach  int `yaml:"place_reach"`
}

type ProtectSpec struct {
	SpawnRadius int `yaml:"spawn_radius"`
}

type BrushSpec struct {
	Reach    int    `yaml:"reach"`
	MaxCells int    `yaml:"max_cells"`
	Tool     string `yaml:"tool"`
}

// RateSpec are per-agent sliding windows, in ticks.
type RateSpec struct {
	MoveWindowTicks  int `yaml:"move_window_ticks"`
	MoveMax          int `yaml:"move_max"`
	BrushWindowTicks int `yaml:"brush_window_ticks"`
	BrushMax         int `yaml:"brush_max"`
	PlaceWindowTicks int `yaml:"place_window_ticks"`
	PlaceMax         int `yaml:"place_max"`
}

// Load reads path (empty means built-in defaults), fills defaults for
// anything the file leaves out, and validates the result.
func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("server config: %w", err)
		}
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("server config: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		Listen:  ":8080",
		DataDir: "./data",
		World: WorldSpec{
			ID:          "w_main",
			Seed:        1337,
			Height:      64,
			BoundaryR:   256,
			TickRateHz:  5,
			MoveStepMax: 8,
			PlaceReach:  8,
		},
		Protect: ProtectSpec{SpawnRadius: 12},
		Brush:   BrushSpec{Reach: 32, MaxCells: 512, Tool: "BUILD_BRUSH"},
		Rates: RateSpec{
			MoveWindowTicks:  50,
			MoveMax:          100,
			BrushWindowTicks: 50,
			BrushMax:         40,
			PlaceWindowTicks: 50,
			PlaceMax:         120,
		},
	}
}

func (c *Config) Normalize() {
	c.Listen = strings.TrimSpace(c.Listen)
	c.DataDir = strings.TrimSpace(c.DataDir)
	c.World.ID = strings.TrimSpace(c.World.ID)
	c.Brush.Tool = strings.TrimSpace(c.Brush.Tool)
	d := defaults()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.DataDir == "" {
		c.DataDir = d.DataDir
	}
	if c.World.ID == "" {
		c.World.ID = d.World.ID
	}
	if c.Brush.Tool == "" {
		c.Brush.Tool = d.Brush.Tool
	}
}

func (c *Config) Validate() error {
	if c.World.TickRateHz < 1 || c.World.TickRateHz > 60 {
		return fmt.Errorf("world.tick_rate_hz out of range: %d", c.World.TickRateHz)
	}
	if c.World.Height < 8 || c.World.Height > 512 {
		return fmt.Errorf("world.height out of range: %d", c.World.Height)
	}
	if c.World.BoundaryR < 16 {
		return fmt.Errorf("world.boundary_r too small: %d", c.World.BoundaryR)
	}
	if c.Protect.SpawnRadius < 0 {
		return fmt.Errorf("protect.spawn_radius negative: %d", c.Protect.SpawnRadius)
	}
	if c.Protect.SpawnRadius >= c.World.BoundaryR {
		return fmt.Errorf("protect.spawn_radius %d covers the whole world (boundary_r=%d)", c.Protect.SpawnRadius, c.World.BoundaryR)
	}
	if c.Brush.Reach < 1 {
		return fmt.Errorf("brush.reach too small: %d", c.Brush.Reach)
	}
	if c.Brush.MaxCells < 1 {
		return fmt.Errorf("brush.max_cells too small: %d", c.Brush.MaxCells)
	}
	return nil
}
