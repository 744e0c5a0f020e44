// Package config provides configuration loading and management for mprviewer.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"mprviewer/internal/models"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// View parameters
	Views struct {
		// Keys names the three orthogonal views, in top/left/front order
		Keys []models.ViewKey `yaml:"keys"`
	} `yaml:"views"`

	// Volume loading parameters
	Volume struct {
		// PixelSpacing is the in-plane pixel size of loaded slices in mm
		PixelSpacing float64 `yaml:"pixelSpacing"`

		// SliceGap is the distance between loaded slices in mm
		SliceGap float64 `yaml:"sliceGap"`

		// DenoiseSigma is the Gaussian smoothing applied to each slice in pixels (0 disables)
		DenoiseSigma float64 `yaml:"denoiseSigma"`
	} `yaml:"volume"`

	// Synchronization parameters
	Sync struct {
		// WindowLevels copies window/level changes from one view to the others
		WindowLevels bool `yaml:"windowLevels"`
	} `yaml:"sync"`

	// Interaction parameters
	Interaction struct {
		// DefaultTool is activated once a volume is loaded
		DefaultTool models.Tool `yaml:"defaultTool"`

		// LevelScale scales the window/level change per dragged pixel
		LevelScale float64 `yaml:"levelScale"`

		// ScrollStep is the slice distance moved per wheel step
		ScrollStep float64 `yaml:"scrollStep"`

		// ZoomFactor is the parallel scale change per dragged pixel
		ZoomFactor float64 `yaml:"zoomFactor"`
	} `yaml:"interaction"`

	// Geometry parameters
	Geometry struct {
		// Epsilon is the tolerance for parallel and zero-length checks
		Epsilon float64 `yaml:"epsilon"`

		// MIPThreshold is the slab thickness in px above which MIP becomes the default blend
		MIPThreshold float64 `yaml:"mipThreshold"`
	} `yaml:"geometry"`

	// Render parameters for the headless renderer
	Render struct {
		// Width of each view in pixels
		Width int `yaml:"width"`

		// Height of each view in pixels
		Height int `yaml:"height"`

		// Workers is the number of goroutines sharing a frame
		Workers int `yaml:"workers"`
	} `yaml:"render"`

	// Output parameters
	Output struct {
		// FrameDir is where rendered frames are written
		FrameDir string `yaml:"frameDir"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Views.Keys = append([]models.ViewKey(nil), models.DefaultViewKeys...)

	cfg.Volume.PixelSpacing = 1.0
	cfg.Volume.SliceGap = 1.5
	cfg.Volume.DenoiseSigma = 0

	cfg.Sync.WindowLevels = true

	cfg.Interaction.DefaultTool = models.ToolLevel
	cfg.Interaction.LevelScale = 1.0
	cfg.Interaction.ScrollStep = 1.0
	cfg.Interaction.ZoomFactor = 0.01

	cfg.Geometry.Epsilon = 1e-6
	cfg.Geometry.MIPThreshold = 1.0

	cfg.Render.Width = 256
	cfg.Render.Height = 256
	cfg.Render.Workers = runtime.NumCPU()

	cfg.Output.FrameDir = "frames"
	cfg.Output.Verbose = false

	return cfg
}

// Validate checks the configuration for values the coordinator cannot work with
func (c *Config) Validate() error {
	if len(c.Views.Keys) != 3 {
		return fmt.Errorf("exactly 3 view keys are required, got %d", len(c.Views.Keys))
	}
	seen := make(map[models.ViewKey]bool, len(c.Views.Keys))
	for _, k := range c.Views.Keys {
		if k == "" {
			return fmt.Errorf("view keys must not be empty")
		}
		if seen[k] {
			return fmt.Errorf("duplicate view key %q", k)
		}
		seen[k] = true
	}
	if c.Volume.PixelSpacing <= 0 || c.Volume.SliceGap <= 0 {
		return fmt.Errorf("pixel spacing and slice gap must be positive")
	}
	if c.Volume.DenoiseSigma < 0 {
		return fmt.Errorf("denoise sigma must not be negative")
	}
	if !c.Interaction.DefaultTool.Valid() {
		return fmt.Errorf("invalid default tool %v", c.Interaction.DefaultTool)
	}
	if c.Geometry.Epsilon <= 0 {
		return fmt.Errorf("geometry epsilon must be positive")
	}
	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		return fmt.Errorf("render size must be positive")
	}
	if c.Render.Workers < 1 {
		return fmt.Errorf("render workers must be at least 1")
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
