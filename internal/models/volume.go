package models

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Affine maps voxel indices to scanner-space coordinates:
// scanner = Linear * (i, j, k) + Offset
type Affine struct {
	Linear [3][3]float64
	Offset [3]float64
}

// IdentityAffine returns the affine of a unit-voxel volume sitting at the origin
func IdentityAffine() Affine {
	return ScalingAffine(1, 1, 1, r3.Vec{})
}

// ScalingAffine returns an axis-aligned affine with the given voxel size
// and the scanner position of voxel (0,0,0)
func ScalingAffine(sx, sy, sz float64, origin r3.Vec) Affine {
	return Affine{
		Linear: [3][3]float64{
			{sx, 0, 0},
			{0, sy, 0},
			{0, 0, sz},
		},
		Offset: [3]float64{origin.X, origin.Y, origin.Z},
	}
}

// Apply maps a (possibly fractional) voxel index to scanner space
func (a Affine) Apply(i, j, k float64) r3.Vec {
	l := &a.Linear
	return r3.Vec{
		X: l[0][0]*i + l[0][1]*j + l[0][2]*k + a.Offset[0],
		Y: l[1][0]*i + l[1][1]*j + l[1][2]*k + a.Offset[1],
		Z: l[2][0]*i + l[2][1]*j + l[2][2]*k + a.Offset[2],
	}
}

// Inverse returns the scanner-to-voxel mapping
func (a Affine) Inverse() (Affine, error) {
	m := mat.NewDense(3, 3, []float64{
		a.Linear[0][0], a.Linear[0][1], a.Linear[0][2],
		a.Linear[1][0], a.Linear[1][1], a.Linear[1][2],
		a.Linear[2][0], a.Linear[2][1], a.Linear[2][2],
	})
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return Affine{}, fmt.Errorf("voxel-to-scanner transform is singular: %w", err)
	}

	var out Affine
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out.Linear[r][c] = inv.At(r, c)
		}
	}
	for r := 0; r < 3; r++ {
		out.Offset[r] = -(out.Linear[r][0]*a.Offset[0] + out.Linear[r][1]*a.Offset[1] + out.Linear[r][2]*a.Offset[2])
	}
	return out, nil
}

// Equal reports whether two affines agree to within tol, scaled by the
// magnitude of the entries being compared
func (a Affine) Equal(b Affine, tol float64) bool {
	near := func(x, y float64) bool {
		return math.Abs(x-y) <= tol*math.Max(1, math.Max(math.Abs(x), math.Abs(y)))
	}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			if !near(a.Linear[r][c], b.Linear[r][c]) {
				return false
			}
		}
		if !near(a.Offset[r], b.Offset[r]) {
			return false
		}
	}
	return true
}

// Volume is a sampled 3D field on a regular grid. Scalar images have one
// component per voxel; orientation images store their spherical-harmonic
// coefficients as components.
type Volume struct {
	// Data holds the voxel values in row-major order, components innermost:
	// ((z*Height+y)*Width+x)*Components + c
	Data []float64

	// Width, Height and Depth are the grid extents in voxels
	Width  int
	Height int
	Depth  int

	// Components is the number of values stored per voxel
	Components int

	// VoxelSize is the physical size of each voxel in mm
	VoxelSize struct {
		X, Y, Z float64
	}

	// VoxelToScanner maps voxel indices to scanner coordinates
	VoxelToScanner Affine
}

// NewVolume allocates a zero-filled volume with unit voxels at the origin
func NewVolume(width, height, depth, components int) *Volume {
	v := &Volume{
		Data:           make([]float64, width*height*depth*components),
		Width:          width,
		Height:         height,
		Depth:          depth,
		Components:     components,
		VoxelToScanner: IdentityAffine(),
	}
	v.VoxelSize.X, v.VoxelSize.Y, v.VoxelSize.Z = 1, 1, 1
	return v
}

// SetGeometry sets voxel size and origin and rebuilds an axis-aligned
// voxel-to-scanner affine from them
func (v *Volume) SetGeometry(sx, sy, sz float64, origin r3.Vec) {
	v.VoxelSize.X, v.VoxelSize.Y, v.VoxelSize.Z = sx, sy, sz
	v.VoxelToScanner = ScalingAffine(sx, sy, sz, origin)
}

// NumVoxels returns the number of grid points
func (v *Volume) NumVoxels() int {
	return v.Width * v.Height * v.Depth
}

// Index returns the linear voxel index of (x, y, z)
func (v *Volume) Index(x, y, z int) int {
	return (z*v.Height+y)*v.Width + x
}

// Coords is the inverse of Index
func (v *Volume) Coords(idx int) (x, y, z int) {
	x = idx % v.Width
	y = (idx / v.Width) % v.Height
	z = idx / (v.Width * v.Height)
	return x, y, z
}

// Value returns component c of voxel (x, y, z)
func (v *Volume) Value(x, y, z, c int) float64 {
	return v.Data[v.Index(x, y, z)*v.Components+c]
}

// Set writes component c of voxel (x, y, z)
func (v *Volume) Set(x, y, z, c int, val float64) {
	v.Data[v.Index(x, y, z)*v.Components+c] = val
}

// At returns component c of the voxel with linear index idx
func (v *Volume) At(idx, c int) float64 {
	return v.Data[idx*v.Components+c]
}

// Position returns the scanner-space coordinate of the voxel with linear index idx
func (v *Volume) Position(idx int) r3.Vec {
	x, y, z := v.Coords(idx)
	return v.VoxelToScanner.Apply(float64(x), float64(y), float64(z))
}

// GeometricCentre returns the scanner-space position of the middle of the
// index-space extent. It depends on the header geometry only.
func (v *Volume) GeometricCentre() r3.Vec {
	return v.VoxelToScanner.Apply(
		0.5*float64(v.Width-1),
		0.5*float64(v.Height-1),
		0.5*float64(v.Depth-1),
	)
}

// Validate checks that the grid is non-empty and the data slice matches it
func (v *Volume) Validate() error {
	if v == nil {
		return fmt.Errorf("volume is nil")
	}
	if v.Width <= 0 || v.Height <= 0 || v.Depth <= 0 {
		return fmt.Errorf("invalid volume extents %dx%dx%d", v.Width, v.Height, v.Depth)
	}
	if v.Components <= 0 {
		return fmt.Errorf("invalid component count %d", v.Components)
	}
	if want := v.NumVoxels() * v.Components; len(v.Data) != want {
		return fmt.Errorf("volume data has %d values, expected %d", len(v.Data), want)
	}
	return nil
}

// SameGrid reports whether o samples the same voxel grid as v
func (v *Volume) SameGrid(o *Volume, tol float64) bool {
	if o == nil {
		return false
	}
	if v.Width != o.Width || v.Height != o.Height || v.Depth != o.Depth {
		return false
	}
	return v.VoxelToScanner.Equal(o.VoxelToScanner, tol)
}

// Clone returns a deep copy of the volume
func (v *Volume) Clone() *Volume {
	out := *v
	out.Data = make([]float64, len(v.Data))
	copy(out.Data, v.Data)
	return &out
}
