package initialiser

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"mriinit/pkg/mask"
	"mriinit/pkg/moments"
)

// imageMoments matches centroids and principal axes of the two images. With
// useMaskValues each image that has a valid mask is weighted by its mask
// values; an image without one falls back to its intensities.
func (in *Initialiser) imageMoments(req Request, sel mask.Selection, useMaskValues bool) (*Result, error) {
	var warnings []Warning

	sources := [2]moments.Source{
		{Image: req.Image1, Mask: sel.Mask1},
		{Image: req.Image2, Mask: sel.Mask2},
	}
	if useMaskValues {
		for i := range sources {
			if sources[i].Mask != nil {
				sources[i].Weighting = moments.WeightMask
				continue
			}
			warnings = append(warnings, Warning{Image: i + 1, Message: "no valid mask, weighting by image intensity"})
		}
	}

	var stats [2]moments.Stats
	var axes [2]moments.Axes
	for i, src := range sources {
		s, err := in.acc.Moments(src)
		if err != nil {
			return nil, sampleError(i+1, err)
		}
		a, err := s.PrincipalAxes()
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i+1, err)
		}
		stats[i], axes[i] = s, a
		in.logger.Debug("image moments", "image", i+1, "mass", s.Mass, "centroid", s.Centroid, "eigenvalues", a.Values, "weighting", src.Weighting.String())
	}

	rot, axisWarnings := in.alignAxes(axes[0], axes[1])
	warnings = append(warnings, axisWarnings...)

	c1, c2 := stats[0].Centroid, stats[1].Centroid
	return &Result{
		Centre:      midpoint(c1, c2),
		Translation: r3.Sub(c1, c2),
		Rotation:    rot,
		Warnings:    warnings,
	}, nil
}

// alignAxes returns the rotation carrying image 2's principal frame onto
// image 1's.
//
// Axes correspond by eigenvalue rank (ascending). Image 1's frame is made
// right-handed by negating its first axis if needed. Each image 2 axis is
// negated when it points away from its image 1 partner (a zero dot
// product keeps the sign). If image 2's frame is then left-handed, the
// axis with the weakest agreement is negated and a warning raised, since
// no proper rotation matches all three axes.
func (in *Initialiser) alignAxes(a1, a2 moments.Axes) (*mat.Dense, []Warning) {
	var warnings []Warning
	for i, a := range []moments.Axes{a1, a2} {
		for j, gap := range a.Gaps() {
			if gap < in.tolerance {
				warnings = append(warnings, Warning{
					Image: i + 1,
					Message: fmt.Sprintf("eigenvalues %d and %d differ by %.3g (relative); principal axis correspondence may be unreliable",
						j, j+1, gap),
				})
			}
		}
	}

	v1 := a1.Vectors
	if tripleProduct(v1) < 0 {
		v1[0] = r3.Scale(-1, v1[0])
	}

	v2 := a2.Vectors
	var agreement [3]float64
	for i := range v2 {
		d := r3.Dot(v2[i], v1[i])
		if d < 0 {
			v2[i] = r3.Scale(-1, v2[i])
			d = -d
		}
		agreement[i] = d
	}

	if tripleProduct(v2) < 0 {
		weakest := 0
		for i := 1; i < 3; i++ {
			if agreement[i] < agreement[weakest] {
				weakest = i
			}
		}
		v2[weakest] = r3.Scale(-1, v2[weakest])
		warnings = append(warnings, Warning{
			Message: fmt.Sprintf("principal frames differ in handedness; axis %d reversed (alignment %.3g)", weakest, agreement[weakest]),
		})
	}

	// R = sum_i v1_i v2_i^T
	rot := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		p := [3]float64{v1[i].X, v1[i].Y, v1[i].Z}
		q := [3]float64{v2[i].X, v2[i].Y, v2[i].Z}
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				rot.Set(r, c, rot.At(r, c)+p[r]*q[c])
			}
		}
	}
	return rot, warnings
}

func tripleProduct(v [3]r3.Vec) float64 {
	return r3.Dot(v[0], r3.Cross(v[1], v[2]))
}
