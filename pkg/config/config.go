// Package config provides configuration loading and management for mriinit.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"mriinit/pkg/initialiser"
	"mriinit/pkg/moments"
)

// VolumeGeometry places a slice stack in scanner space
type VolumeGeometry struct {
	// VoxelSize is the voxel size in mm along x, y and z (z is the slice gap)
	VoxelSize [3]float64 `yaml:"voxelSize,flow"`

	// Origin is the scanner position of voxel (0,0,0) in mm
	Origin [3]float64 `yaml:"origin,flow"`
}

// OriginVec returns the origin as a vector
func (g VolumeGeometry) OriginVec() r3.Vec {
	return r3.Vec{X: g.Origin[0], Y: g.Origin[1], Z: g.Origin[2]}
}

// Config represents the application configuration loaded from YAML
type Config struct {
	// Initialisation parameters
	Initialisation struct {
		// Type selects the strategy, e.g. "mass" or "moments_unmasked"
		Type initialiser.InitType `yaml:"type"`

		// Lmax is the spherical harmonic degree used by the fod strategy;
		// -1 uses the largest degree both images store
		Lmax int `yaml:"lmax"`

		// DegeneracyTolerance is the relative eigenvalue gap below which
		// principal axes are reported as ambiguous
		DegeneracyTolerance float64 `yaml:"degeneracyTolerance"`
	} `yaml:"initialisation"`

	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use for the voxel reductions
		NumCores int `yaml:"numCores"`

		// ChunkSize is the number of voxels handed to a worker at a time
		ChunkSize int `yaml:"chunkSize"`
	} `yaml:"processing"`

	// Geometry of slice-stack inputs, which carry no header of their own
	Geometry struct {
		Image1 VolumeGeometry `yaml:"image1"`
		Image2 VolumeGeometry `yaml:"image2"`
	} `yaml:"geometry"`

	// Output parameters
	Output struct {
		// TransformFile is where the initialised transform is written
		TransformFile string `yaml:"transformFile"`

		// PreviewDir receives orthogonal slices through the centre; empty disables previews
		PreviewDir string `yaml:"previewDir"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Initialisation.Type = initialiser.Mass
	cfg.Initialisation.Lmax = initialiser.LmaxNative
	cfg.Initialisation.DegeneracyTolerance = initialiser.DefaultDegeneracyTolerance

	cfg.Processing.NumCores = runtime.NumCPU()
	cfg.Processing.ChunkSize = moments.DefaultChunkSize

	unit := VolumeGeometry{VoxelSize: [3]float64{1, 1, 1}}
	cfg.Geometry.Image1 = unit
	cfg.Geometry.Image2 = unit

	cfg.Output.TransformFile = "init_transform.yaml"
	cfg.Output.PreviewDir = ""
	cfg.Output.Verbose = false

	return cfg
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
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
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

// Validate checks value ranges that YAML decoding cannot
func (c *Config) Validate() error {
	if l := c.Initialisation.Lmax; l != initialiser.LmaxNative && (l < 2 || l%2 != 0) {
		return fmt.Errorf("initialisation.lmax must be %d or an even degree of at least 2, got %d", initialiser.LmaxNative, l)
	}
	if c.Initialisation.DegeneracyTolerance < 0 || c.Initialisation.DegeneracyTolerance >= 1 {
		return fmt.Errorf("initialisation.degeneracyTolerance must be in [0, 1), got %g", c.Initialisation.DegeneracyTolerance)
	}
	if c.Processing.NumCores < 0 {
		return fmt.Errorf("processing.numCores must not be negative, got %d", c.Processing.NumCores)
	}
	if c.Processing.ChunkSize < 0 {
		return fmt.Errorf("processing.chunkSize must not be negative, got %d", c.Processing.ChunkSize)
	}
	for n, g := range []VolumeGeometry{c.Geometry.Image1, c.Geometry.Image2} {
		for i, s := range g.VoxelSize {
			if s <= 0 {
				return fmt.Errorf("geometry.image%d.voxelSize[%d] must be positive, got %g", n+1, i, s)
			}
		}
	}
	return nil
}

// InitialiserOptions converts the processing and initialisation sections
// into options for initialiser.New
func (c *Config) InitialiserOptions(logger *slog.Logger) initialiser.Options {
	return initialiser.Options{
		Workers:             c.Processing.NumCores,
		ChunkSize:           c.Processing.ChunkSize,
		DegeneracyTolerance: c.Initialisation.DegeneracyTolerance,
		Logger:              logger,
	}
}
