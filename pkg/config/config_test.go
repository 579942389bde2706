package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mriinit/pkg/initialiser"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Initialisation.Type != initialiser.Mass {
		t.Errorf("Expected default type mass, got %v", cfg.Initialisation.Type)
	}
	if cfg.Initialisation.Lmax != initialiser.LmaxNative {
		t.Errorf("Expected default lmax %d, got %d", initialiser.LmaxNative, cfg.Initialisation.Lmax)
	}
	if cfg.Initialisation.DegeneracyTolerance != initialiser.DefaultDegeneracyTolerance {
		t.Errorf("Expected tolerance %g, got %g", initialiser.DefaultDegeneracyTolerance, cfg.Initialisation.DegeneracyTolerance)
	}
	if cfg.Processing.NumCores <= 0 {
		t.Errorf("Expected a positive core count, got %d", cfg.Processing.NumCores)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Output.TransformFile != DefaultConfig().Output.TransformFile {
		t.Errorf("Expected defaults for a missing file, got %+v", cfg)
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Initialisation.Type = initialiser.FOD
	cfg.Initialisation.Lmax = 4
	cfg.Processing.NumCores = 3
	cfg.Geometry.Image2.VoxelSize = [3]float64{0.5, 0.5, 2}
	cfg.Geometry.Image2.Origin = [3]float64{10, -4, 0}
	cfg.Output.PreviewDir = "previews"

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read saved config: %v", err)
	}
	if !strings.Contains(string(data), "type: fod") {
		t.Errorf("Saved config should name the strategy, got:\n%s", data)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Initialisation.Type != initialiser.FOD || loaded.Initialisation.Lmax != 4 {
		t.Errorf("Initialisation section not restored: %+v", loaded.Initialisation)
	}
	if loaded.Geometry.Image2 != cfg.Geometry.Image2 {
		t.Errorf("Expected geometry %+v, got %+v", cfg.Geometry.Image2, loaded.Geometry.Image2)
	}
	if loaded.Output.PreviewDir != "previews" {
		t.Errorf("Expected preview dir previews, got %q", loaded.Output.PreviewDir)
	}
}

func TestLoadConfigPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "initialisation:\n  type: moments_unmasked\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Initialisation.Type != initialiser.MomentsUnmasked {
		t.Errorf("Expected moments_unmasked, got %v", cfg.Initialisation.Type)
	}
	if cfg.Geometry.Image1.VoxelSize != [3]float64{1, 1, 1} {
		t.Errorf("Unset sections should keep defaults, got %+v", cfg.Geometry.Image1)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "unknown type", content: "initialisation:\n  type: rigid\n"},
		{name: "odd lmax", content: "initialisation:\n  lmax: 3\n"},
		{name: "zero lmax", content: "initialisation:\n  lmax: 0\n"},
		{name: "negative lmax", content: "initialisation:\n  lmax: -2\n"},
		{name: "bad tolerance", content: "initialisation:\n  degeneracyTolerance: 1.5\n"},
		{name: "zero voxel size", content: "geometry:\n  image1:\n    voxelSize: [1, 0, 1]\n"},
		{name: "negative cores", content: "processing:\n  numCores: -2\n"},
		{name: "malformed yaml", content: "processing: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("Failed to write config: %v", err)
			}
			if _, err := LoadConfig(path); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestInitialiserOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Processing.NumCores = 2
	cfg.Processing.ChunkSize = 100
	cfg.Initialisation.DegeneracyTolerance = 0.05

	opts := cfg.InitialiserOptions(nil)
	if opts.Workers != 2 || opts.ChunkSize != 100 || opts.DegeneracyTolerance != 0.05 {
		t.Errorf("Unexpected options %+v", opts)
	}
}

func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := CreateDefaultConfigFile(path); err != nil {
		t.Fatalf("CreateDefaultConfigFile failed: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Initialisation.Type != initialiser.Mass {
		t.Errorf("Expected mass, got %v", cfg.Initialisation.Type)
	}
}
