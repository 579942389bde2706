// Package moments accumulates the weighted raw and central moments of a
// volume, optionally gated by a mask, using a deterministic parallel
// reduction over the voxel grid.
package moments

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"mriinit/internal/models"
)

// ErrZeroMass is returned when the total weight of the sampled region is
// zero, which leaves the centroid undefined.
var ErrZeroMass = errors.New("total weight of sampled region is zero")

// gridTolerance is the relative tolerance used to compare image and mask affines
const gridTolerance = 1e-6

// Weighting selects how each sampled voxel contributes
type Weighting int

const (
	// WeightIntensity weights each voxel by its image value
	WeightIntensity Weighting = iota
	// WeightMask weights each voxel by its mask value
	WeightMask
)

func (w Weighting) String() string {
	switch w {
	case WeightIntensity:
		return "intensity"
	case WeightMask:
		return "mask"
	default:
		return fmt.Sprintf("Weighting(%d)", int(w))
	}
}

// Source describes what to sample: an image, an optional mask gating the
// voxels (non-zero is foreground), how to weight them, and which
// per-voxel component to read.
type Source struct {
	Image     *models.Volume
	Mask      *models.Volume
	Weighting Weighting
	Component int
}

func (s Source) validate() error {
	if err := s.Image.Validate(); err != nil {
		return fmt.Errorf("invalid image: %w", err)
	}
	if s.Component < 0 || s.Component >= s.Image.Components {
		return fmt.Errorf("component %d out of range for image with %d components", s.Component, s.Image.Components)
	}
	if s.Mask != nil {
		if err := s.Mask.Validate(); err != nil {
			return fmt.Errorf("invalid mask: %w", err)
		}
		if !s.Image.SameGrid(s.Mask, gridTolerance) {
			return fmt.Errorf("mask grid does not match image grid")
		}
	} else if s.Weighting == WeightMask {
		return fmt.Errorf("mask weighting requested without a mask")
	}
	return nil
}

// sample returns the weight of voxel idx and whether it lies in the region
func (s Source) sample(idx int) (float64, bool) {
	if s.Mask != nil && s.Mask.At(idx, 0) == 0 {
		return 0, false
	}
	switch s.Weighting {
	case WeightMask:
		return s.Mask.At(idx, 0), true
	default:
		return s.Image.At(idx, s.Component), true
	}
}

// Stats holds the moments of one sampled region
type Stats struct {
	// Mass is the zeroth moment, the sum of weights
	Mass float64

	// Centroid is the first moment divided by the mass
	Centroid r3.Vec

	// Covariance is the second central moment divided by the mass.
	// It is nil when only the centroid was computed.
	Covariance *mat.SymDense

	// Voxels is the number of voxels inside the sampled region
	Voxels int
}

// partial is the running sum carried through the reduction tree
type partial struct {
	mass   float64
	first  [3]float64
	second [6]float64 // xx xy xz yy yz zz
	voxels int
}

func mergePartials(a, b partial) partial {
	a.mass += b.mass
	floats.Add(a.first[:], b.first[:])
	floats.Add(a.second[:], b.second[:])
	a.voxels += b.voxels
	return a
}

func zeroPartial() partial { return partial{} }

// Accumulator computes moments of volumes
type Accumulator struct {
	opts Options
}

// NewAccumulator creates an accumulator using the given reduction options
func NewAccumulator(opts Options) *Accumulator {
	return &Accumulator{opts: opts}
}

// Centroid computes the mass and centroid of the sampled region in one pass
func (a *Accumulator) Centroid(src Source) (Stats, error) {
	if err := src.validate(); err != nil {
		return Stats{}, err
	}

	img := src.Image
	sum := Reduce(img.NumVoxels(), a.opts, zeroPartial, func(lo, hi int, acc partial) partial {
		for idx := lo; idx < hi; idx++ {
			w, ok := src.sample(idx)
			if !ok {
				continue
			}
			p := img.Position(idx)
			acc.mass += w
			acc.first[0] += w * p.X
			acc.first[1] += w * p.Y
			acc.first[2] += w * p.Z
			acc.voxels++
		}
		return acc
	}, mergePartials)

	if sum.mass == 0 {
		return Stats{Voxels: sum.voxels}, fmt.Errorf("%w (%d voxels sampled)", ErrZeroMass, sum.voxels)
	}

	return Stats{
		Mass: sum.mass,
		Centroid: r3.Vec{
			X: sum.first[0] / sum.mass,
			Y: sum.first[1] / sum.mass,
			Z: sum.first[2] / sum.mass,
		},
		Voxels: sum.voxels,
	}, nil
}

// Moments computes mass, centroid and the mass-normalised second central
// moment tensor. The first pass finds the centroid, the second sums the
// outer products of positions relative to it.
func (a *Accumulator) Moments(src Source) (Stats, error) {
	stats, err := a.Centroid(src)
	if err != nil {
		return stats, err
	}

	img := src.Image
	mu := stats.Centroid
	sum := Reduce(img.NumVoxels(), a.opts, zeroPartial, func(lo, hi int, acc partial) partial {
		for idx := lo; idx < hi; idx++ {
			w, ok := src.sample(idx)
			if !ok {
				continue
			}
			d := r3.Sub(img.Position(idx), mu)
			acc.second[0] += w * d.X * d.X
			acc.second[1] += w * d.X * d.Y
			acc.second[2] += w * d.X * d.Z
			acc.second[3] += w * d.Y * d.Y
			acc.second[4] += w * d.Y * d.Z
			acc.second[5] += w * d.Z * d.Z
		}
		return acc
	}, mergePartials)

	s := sum.second
	floats.Scale(1/stats.Mass, s[:])
	stats.Covariance = mat.NewSymDense(3, []float64{
		s[0], s[1], s[2],
		s[1], s[3], s[4],
		s[2], s[4], s[5],
	})
	return stats, nil
}

// SumComponents sums the first n components of every voxel inside the
// sampled region and returns the sums with the number of voxels visited.
// The source's weighting is not applied: each voxel contributes its raw values.
func (a *Accumulator) SumComponents(src Source, n int) ([]float64, int, error) {
	if err := src.validate(); err != nil {
		return nil, 0, err
	}
	img := src.Image
	if n <= 0 || n > img.Components {
		return nil, 0, fmt.Errorf("cannot sum %d components of an image with %d", n, img.Components)
	}

	type coefSum struct {
		values []float64
		voxels int
	}

	sum := Reduce(img.NumVoxels(), a.opts,
		func() coefSum { return coefSum{values: make([]float64, n)} },
		func(lo, hi int, acc coefSum) coefSum {
			for idx := lo; idx < hi; idx++ {
				if _, ok := src.sample(idx); !ok {
					continue
				}
				base := idx * img.Components
				floats.Add(acc.values, img.Data[base:base+n])
				acc.voxels++
			}
			return acc
		},
		func(x, y coefSum) coefSum {
			floats.Add(x.values, y.values)
			x.voxels += y.voxels
			return x
		})

	return sum.values, sum.voxels, nil
}
