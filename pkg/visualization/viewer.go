package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/spatial/r3"

	"mriinit/internal/models"
)

// Viewer renders orthogonal slices of one component of a volume, with
// intensities windowed to the component's range
type Viewer struct {
	volume    *models.Volume
	component int

	// intensity window mapped to black and white
	low, high float64
}

// NewViewer creates a viewer for the given component of vol
func NewViewer(vol *models.Volume, component int) (*Viewer, error) {
	if err := vol.Validate(); err != nil {
		return nil, err
	}
	if component < 0 || component >= vol.Components {
		return nil, fmt.Errorf("component %d out of range for volume with %d components", component, vol.Components)
	}

	low, high := math.Inf(1), math.Inf(-1)
	for idx := 0; idx < vol.NumVoxels(); idx++ {
		val := vol.At(idx, component)
		low = math.Min(low, val)
		high = math.Max(high, val)
	}

	return &Viewer{volume: vol, component: component, low: low, high: high}, nil
}

func (v *Viewer) gray(x, y, z int) color.Gray16 {
	if v.high <= v.low {
		return color.Gray16{}
	}
	val := (v.volume.Value(x, y, z, v.component) - v.low) / (v.high - v.low)
	return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, val*65535)))}
}

// ExtractSlice extracts a 2D slice from the volume along the specified axis
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	vol := v.volume
	var img *image.Gray16

	switch axis {
	case "x", "X":
		// YZ plane
		if position >= vol.Width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, vol.Width)
		}
		img = image.NewGray16(image.Rect(0, 0, vol.Depth, vol.Height))
		for y := 0; y < vol.Height; y++ {
			for z := 0; z < vol.Depth; z++ {
				img.SetGray16(z, y, v.gray(position, y, z))
			}
		}

	case "y", "Y":
		// XZ plane
		if position >= vol.Height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, vol.Height)
		}
		img = image.NewGray16(image.Rect(0, 0, vol.Width, vol.Depth))
		for z := 0; z < vol.Depth; z++ {
			for x := 0; x < vol.Width; x++ {
				img.SetGray16(x, z, v.gray(x, position, z))
			}
		}

	case "z", "Z":
		// XY plane
		if position >= vol.Depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, vol.Depth)
		}
		img = image.NewGray16(image.Rect(0, 0, vol.Width, vol.Height))
		for y := 0; y < vol.Height; y++ {
			for x := 0; x < vol.Width; x++ {
				img.SetGray16(x, y, v.gray(x, y, position))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// pixelSpacing returns the physical size of a slice pixel along its
// horizontal and vertical image axes
func (v *Viewer) pixelSpacing(axis string) (float64, float64) {
	s := v.volume.VoxelSize
	switch axis {
	case "x", "X":
		return s.Z, s.Y
	case "y", "Y":
		return s.X, s.Z
	default:
		return s.X, s.Y
	}
}

// Resample stretches a slice extracted along axis so that pixels are
// square in physical space. The finer spacing keeps one pixel per voxel.
func (v *Viewer) Resample(img image.Image, axis string) image.Image {
	sw, sh := v.pixelSpacing(axis)
	if sw <= 0 || sh <= 0 || sw == sh {
		return img
	}
	unit := math.Min(sw, sh)
	b := img.Bounds()
	w := int(math.Round(float64(b.Dx()) * sw / unit))
	h := int(math.Round(float64(b.Dy()) * sh / unit))

	dst := image.NewGray16(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// VoxelAt returns the voxel nearest the scanner-space point p
func (v *Viewer) VoxelAt(p r3.Vec) (x, y, z int, err error) {
	inv, err := v.volume.VoxelToScanner.Inverse()
	if err != nil {
		return 0, 0, 0, err
	}
	idx := inv.Apply(p.X, p.Y, p.Z)
	x, y, z = int(math.Round(idx.X)), int(math.Round(idx.Y)), int(math.Round(idx.Z))

	vol := v.volume
	if x < 0 || y < 0 || z < 0 || x >= vol.Width || y >= vol.Height || z >= vol.Depth {
		return x, y, z, fmt.Errorf("point %v lies outside the %dx%dx%d grid (voxel %d,%d,%d)",
			p, vol.Width, vol.Height, vol.Depth, x, y, z)
	}
	return x, y, z, nil
}

// SaveSlice saves an extracted slice as a JPEG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveOrthogonalSlices saves the x, y and z slices through the voxel
// nearest p as <prefix>_<axis>.jpg in outputDir and returns the paths written
func (v *Viewer) SaveOrthogonalSlices(p r3.Vec, outputDir, prefix string) ([]string, error) {
	x, y, z, err := v.VoxelAt(p)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}

	var paths []string
	for _, s := range []struct {
		axis string
		pos  int
	}{{"x", x}, {"y", y}, {"z", z}} {
		img, err := v.ExtractSlice(s.axis, s.pos)
		if err != nil {
			return paths, err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("%s_%s.jpg", prefix, s.axis))
		if err := v.SaveSlice(v.Resample(img, s.axis), filename); err != nil {
			return paths, err
		}
		paths = append(paths, filename)
	}
	return paths, nil
}
