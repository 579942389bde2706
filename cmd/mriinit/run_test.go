package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mriinit/pkg/config"
	"mriinit/pkg/transform"
)

// writeCube writes a size^3 stack whose inner cube is bright
func writeCube(t *testing.T, dir string, size int) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create %s: %v", dir, err)
	}
	for z := 0; z < size; z++ {
		img := image.NewGray16(image.Rect(0, 0, size, size))
		for y := 1; y < size-1; y++ {
			for x := 1; x < size-1; x++ {
				if z > 0 && z < size-1 {
					img.SetGray16(x, y, color.Gray16{Y: 40000})
				}
			}
		}
		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("slice_%02d.png", z)))
		if err != nil {
			t.Fatalf("Failed to create slice: %v", err)
		}
		if err := png.Encode(f, img); err != nil {
			t.Fatalf("Failed to encode slice: %v", err)
		}
		f.Close()
	}
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	image1 := filepath.Join(dir, "image1")
	image2 := filepath.Join(dir, "image2")
	writeCube(t, image1, 5)
	writeCube(t, image2, 5)

	cfg := config.DefaultConfig()
	cfg.Geometry.Image2.Origin = [3]float64{5, 0, 0}
	cfgPath := filepath.Join(dir, "mriinit.yaml")
	if err := config.SaveConfig(cfg, cfgPath); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	outPath := filepath.Join(dir, "out", "transform.yaml")
	previews := filepath.Join(dir, "previews")

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetArgs([]string{
		"run",
		"--image1", image1,
		"--image2", image2,
		"--init", "mass",
		"--config", cfgPath,
		"--output", outPath,
		"--preview-dir", previews,
		"--log-level", "error",
	})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if !strings.Contains(stdout.String(), "Initialisation: mass") {
		t.Errorf("Unexpected output:\n%s", stdout.String())
	}

	p, err := transform.LoadParams(outPath)
	if err != nil {
		t.Fatalf("LoadParams failed: %v", err)
	}
	want := [3]float64{-5, 0, 0}
	for i := range want {
		if math.Abs(p.Translation[i]-want[i]) > 1e-9 {
			t.Errorf("Translation = %v, expected %v", p.Translation, want)
			break
		}
	}

	for _, name := range []string{"image1_x.jpg", "image1_z.jpg", "image2_y.jpg"} {
		if _, err := os.Stat(filepath.Join(previews, name)); err != nil {
			t.Errorf("Expected preview %s: %v", name, err)
		}
	}
}

func TestExecuteFailure(t *testing.T) {
	dir := t.TempDir()
	var stderr bytes.Buffer
	rootCmd.SetArgs([]string{
		"run",
		"--image1", filepath.Join(dir, "missing1"),
		"--image2", filepath.Join(dir, "missing2"),
		"--config", filepath.Join(dir, "none.yaml"),
		"--log-level", "error",
	})
	if code := execute(&stderr); code != 1 {
		t.Errorf("Expected exit code 1, got %d", code)
	}
	if !strings.HasPrefix(stderr.String(), "Error: failed to load image 1") {
		t.Errorf("Unexpected error output: %q", stderr.String())
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("debug").String() != "DEBUG" {
		t.Error("Expected debug level")
	}
	if parseLevel("bogus").String() != "INFO" {
		t.Error("Unknown levels should fall back to info")
	}
}
