package visualization

import (
	"image"
	"math"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"mriinit/internal/models"
)

// createGradientVolume creates a volume whose value grows with z
func createGradientVolume(width, height, depth int) *models.Volume {
	vol := models.NewVolume(width, height, depth, 1)
	for z := 0; z < depth; z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				vol.Set(x, y, z, 0, float64(z)/float64(depth))
			}
		}
	}
	return vol
}

// TestNewViewer verifies that a new viewer is created with the correct intensity window
func TestNewViewer(t *testing.T) {
	vol := createGradientVolume(10, 10, 5)

	viewer, err := NewViewer(vol, 0)
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	if viewer.low != 0 {
		t.Errorf("Expected window low 0, got %f", viewer.low)
	}
	if math.Abs(viewer.high-0.8) > 1e-12 {
		t.Errorf("Expected window high 0.8, got %f", viewer.high)
	}

	if _, err := NewViewer(vol, 1); err == nil {
		t.Error("Expected error for a component out of range, got nil")
	}
	if _, err := NewViewer(&models.Volume{}, 0); err == nil {
		t.Error("Expected error for an empty volume, got nil")
	}
}

// TestExtractSlice verifies that slices are correctly extracted and windowed
func TestExtractSlice(t *testing.T) {
	width, height, depth := 10, 8, 5
	viewer, err := NewViewer(createGradientVolume(width, height, depth), 0)
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	// Z slices are uniform; the window stretches 0..0.8 over the full range
	for z := 0; z < depth; z++ {
		img, err := viewer.ExtractSlice("z", z)
		if err != nil {
			t.Fatalf("Failed to extract Z slice at position %d: %v", z, err)
		}

		bounds := img.Bounds()
		if bounds.Dx() != width || bounds.Dy() != height {
			t.Errorf("Expected Z slice dimensions %dx%d, got %dx%d",
				width, height, bounds.Dx(), bounds.Dy())
		}

		gray16Img, ok := img.(*image.Gray16)
		if !ok {
			t.Fatalf("Expected *image.Gray16, got %T", img)
		}

		expectedValue := float64(z) / float64(depth-1) * 65535
		centerValue := float64(gray16Img.Gray16At(width/2, height/2).Y)
		if math.Abs(centerValue-expectedValue) > 1.0 {
			t.Errorf("Expected Z slice value ~%.0f at center, got %.0f", expectedValue, centerValue)
		}
	}

	imgX, err := viewer.ExtractSlice("x", width/2)
	if err != nil {
		t.Fatalf("Failed to extract X slice: %v", err)
	}
	if b := imgX.Bounds(); b.Dx() != depth || b.Dy() != height {
		t.Errorf("Expected X slice dimensions %dx%d, got %dx%d", depth, height, b.Dx(), b.Dy())
	}

	imgY, err := viewer.ExtractSlice("y", height/2)
	if err != nil {
		t.Fatalf("Failed to extract Y slice: %v", err)
	}
	if b := imgY.Bounds(); b.Dx() != width || b.Dy() != depth {
		t.Errorf("Expected Y slice dimensions %dx%d, got %dx%d", width, depth, b.Dx(), b.Dy())
	}

	if _, err := viewer.ExtractSlice("invalid", 0); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
	if _, err := viewer.ExtractSlice("z", depth+1); err == nil {
		t.Error("Expected error for out of bounds position, got nil")
	}
	if _, err := viewer.ExtractSlice("x", -1); err == nil {
		t.Error("Expected error for negative position, got nil")
	}
}

// TestConstantVolume verifies that a flat volume renders black instead of dividing by zero
func TestConstantVolume(t *testing.T) {
	vol := models.NewVolume(4, 4, 4, 1)
	for i := range vol.Data {
		vol.Data[i] = 3
	}
	viewer, err := NewViewer(vol, 0)
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}
	img, err := viewer.ExtractSlice("z", 2)
	if err != nil {
		t.Fatalf("Failed to extract slice: %v", err)
	}
	if v := img.(*image.Gray16).Gray16At(1, 1).Y; v != 0 {
		t.Errorf("Expected 0 for a constant volume, got %d", v)
	}
}

// TestResample verifies that slices are stretched to square physical pixels
func TestResample(t *testing.T) {
	vol := createGradientVolume(10, 8, 5)
	vol.SetGeometry(0.5, 0.5, 2, r3.Vec{})
	viewer, err := NewViewer(vol, 0)
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	tests := []struct {
		axis          string
		width, height int
	}{
		{"z", 10, 8},
		{"x", 20, 8},
		{"y", 10, 20},
	}

	for _, tt := range tests {
		pos := 2
		img, err := viewer.ExtractSlice(tt.axis, pos)
		if err != nil {
			t.Fatalf("Failed to extract %s slice: %v", tt.axis, err)
		}
		b := viewer.Resample(img, tt.axis).Bounds()
		if b.Dx() != tt.width || b.Dy() != tt.height {
			t.Errorf("Axis %s: expected %dx%d, got %dx%d", tt.axis, tt.width, tt.height, b.Dx(), b.Dy())
		}
	}
}

// TestVoxelAt verifies the scanner to voxel lookup
func TestVoxelAt(t *testing.T) {
	vol := createGradientVolume(10, 10, 5)
	vol.SetGeometry(2, 2, 3, r3.Vec{X: -10, Y: 0, Z: 5})
	viewer, err := NewViewer(vol, 0)
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	x, y, z, err := viewer.VoxelAt(r3.Vec{X: -3.2, Y: 9.1, Z: 11.4})
	if err != nil {
		t.Fatalf("VoxelAt failed: %v", err)
	}
	if x != 3 || y != 5 || z != 2 {
		t.Errorf("Expected voxel (3,5,2), got (%d,%d,%d)", x, y, z)
	}

	if _, _, _, err := viewer.VoxelAt(r3.Vec{X: 100}); err == nil {
		t.Error("Expected error for a point outside the grid, got nil")
	}
}

// TestSaveOrthogonalSlices verifies that the three previews are written to disk
func TestSaveOrthogonalSlices(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	vol := createGradientVolume(6, 6, 4)
	viewer, err := NewViewer(vol, 0)
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	outputDir := filepath.Join(t.TempDir(), "previews")
	paths, err := viewer.SaveOrthogonalSlices(vol.GeometricCentre(), outputDir, "image1")
	if err != nil {
		t.Fatalf("Failed to save slices: %v", err)
	}

	if len(paths) != 3 {
		t.Fatalf("Expected 3 files, got %v", paths)
	}
	for _, axis := range []string{"x", "y", "z"} {
		filename := filepath.Join(outputDir, "image1_"+axis+".jpg")
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			t.Errorf("Expected slice file does not exist: %s", filename)
		}
	}

	if _, err := viewer.SaveOrthogonalSlices(r3.Vec{X: -50}, outputDir, "outside"); err == nil {
		t.Error("Expected error for a centre outside the grid, got nil")
	}
}
