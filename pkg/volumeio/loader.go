// Package volumeio loads volumes stored as directories of 2D slice images.
//
// A directory of images is a scalar volume, one image per z slice, ordered
// by the number in each filename. A directory of sub-directories is a
// multi-component volume: each sub-directory holds one component, and the
// components are ordered by the number in the sub-directory name.
package volumeio

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	"gonum.org/v1/gonum/spatial/r3"

	"mriinit/internal/models"
)

// ErrNoSlices is returned for a directory with neither slice images nor
// component sub-directories
var ErrNoSlices = errors.New("no slice images found")

var sliceExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// Geometry places a loaded volume in scanner space
type Geometry struct {
	// VoxelSize is the in-plane pixel size (x, y) and slice gap (z) in mm
	VoxelSize [3]float64

	// Origin is the scanner position of voxel (0,0,0)
	Origin r3.Vec
}

// UnitGeometry is 1mm isotropic at the scanner origin
var UnitGeometry = Geometry{VoxelSize: [3]float64{1, 1, 1}}

// ListSlices returns the slice images in dir sorted by slice number
func ListSlices(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if sliceExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, e.Name())
		}
	}

	// numeric order keeps slice_10 after slice_9
	sort.SliceStable(files, func(i, j int) bool {
		ni, nj := extractNumber(files[i]), extractNumber(files[j])
		if ni != nj {
			return ni < nj
		}
		return files[i] < files[j]
	})
	return files, nil
}

// LoadSlices decodes every slice image in dir, in slice order. All slices
// must share the dimensions of the first.
func LoadSlices(dir string) ([]models.Slice, error) {
	files, err := ListSlices(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoSlices, dir)
	}

	slices := make([]models.Slice, 0, len(files))
	for i, filename := range files {
		img, err := loadImage(filepath.Join(dir, filename))
		if err != nil {
			return nil, fmt.Errorf("failed to load image %s: %w", filename, err)
		}
		s := models.Slice{Image: img, Index: i, Filename: filename}

		if i > 0 {
			w0, h0 := slices[0].Bounds()
			if w, h := s.Bounds(); w != w0 || h != h0 {
				return nil, fmt.Errorf("slice %s is %dx%d, expected %dx%d", filename, w, h, w0, h0)
			}
		}
		slices = append(slices, s)
	}
	return slices, nil
}

// LoadVolume loads the volume stored in dir and applies geom. Slice
// images directly inside dir take precedence over sub-directories.
func LoadVolume(dir string, geom Geometry) (*models.Volume, error) {
	files, err := ListSlices(dir)
	if err != nil {
		return nil, err
	}

	var components []string
	var stacks [][]models.Slice
	if len(files) > 0 {
		slices, err := LoadSlices(dir)
		if err != nil {
			return nil, err
		}
		stacks = append(stacks, slices)
	} else {
		if components, err = componentDirs(dir); err != nil {
			return nil, err
		}
		if len(components) == 0 {
			return nil, fmt.Errorf("%w in %s", ErrNoSlices, dir)
		}
		for _, c := range components {
			slices, err := LoadSlices(filepath.Join(dir, c))
			if err != nil {
				return nil, fmt.Errorf("component %s: %w", c, err)
			}
			stacks = append(stacks, slices)
		}
	}

	width, height := stacks[0][0].Bounds()
	depth := len(stacks[0])
	for i, s := range stacks[1:] {
		w, h := s[0].Bounds()
		if w != width || h != height || len(s) != depth {
			return nil, fmt.Errorf("component %s is %dx%dx%d, expected %dx%dx%d",
				components[i+1], w, h, len(s), width, height, depth)
		}
	}

	vol := models.NewVolume(width, height, depth, len(stacks))
	for c, slices := range stacks {
		for z, s := range slices {
			values := imageToFloat(s.Image)
			for y := 0; y < height; y++ {
				for x := 0; x < width; x++ {
					vol.Set(x, y, z, c, values[y*width+x])
				}
			}
		}
	}

	sx, sy, sz := geom.VoxelSize[0], geom.VoxelSize[1], geom.VoxelSize[2]
	if sx <= 0 || sy <= 0 || sz <= 0 {
		return nil, fmt.Errorf("voxel size must be positive, got %v", geom.VoxelSize)
	}
	vol.SetGeometry(sx, sy, sz, geom.Origin)
	return vol, nil
}

// componentDirs lists the sub-directories of dir sorted by component number
func componentDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	sort.SliceStable(dirs, func(i, j int) bool {
		ni, nj := extractNumber(dirs[i]), extractNumber(dirs[j])
		if ni != nj {
			return ni < nj
		}
		return dirs[i] < dirs[j]
	})
	return dirs, nil
}

// extractNumber extracts the numeric part from a filename
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	numStr := ""
	for _, c := range base {
		if c >= '0' && c <= '9' {
			numStr += string(c)
		}
	}

	if numStr != "" {
		num, err := strconv.Atoi(numStr)
		if err == nil {
			return num
		}
	}
	return 0
}

func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// imageToFloat converts an image to grey levels in [0, 1]
func imageToFloat(img image.Image) []float64 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	result := make([]float64, width*height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			g := color.Gray16Model.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray16)
			result[y*width+x] = float64(g.Y) / 65535.0
		}
	}

	return result
}
