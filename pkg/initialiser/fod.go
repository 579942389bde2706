package initialiser

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"

	"mriinit/internal/models"
	"mriinit/pkg/mask"
	"mriinit/pkg/moments"
	"mriinit/pkg/sh"
)

// fod treats each voxel as an orientation distribution in the even
// spherical harmonic basis. Translation comes from centroids weighted by
// the l=0 coefficient; rotation aligns the principal axes of the second
// moment tensors of the two mean distributions.
func (in *Initialiser) fod(req Request, sel mask.Selection) (*Result, error) {
	lmax, err := resolveLmax(req)
	if err != nil {
		return nil, err
	}
	n := sh.NumCoefficients(lmax)

	sources := [2]moments.Source{
		{Image: req.Image1, Mask: sel.Mask1},
		{Image: req.Image2, Mask: sel.Mask2},
	}

	var centroids [2]r3.Vec
	var axes [2]moments.Axes
	for i, src := range sources {
		stats, err := in.acc.Centroid(src)
		if err != nil {
			return nil, sampleError(i+1, err)
		}
		centroids[i] = stats.Centroid

		sum, voxels, err := in.acc.SumComponents(src, n)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i+1, err)
		}
		floats.Scale(1/float64(voxels), sum)

		tensor, err := sh.Tensor(sum)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i+1, err)
		}
		a, err := moments.Decompose(tensor)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i+1, err)
		}
		axes[i] = a

		in.logger.Debug("mean FOD", "image", i+1, "voxels", voxels, "lmax", lmax, "centroid", stats.Centroid, "eigenvalues", a.Values)
	}

	rot, warnings := in.alignAxes(axes[0], axes[1])

	return &Result{
		Centre:      midpoint(centroids[0], centroids[1]),
		Translation: r3.Sub(centroids[0], centroids[1]),
		Rotation:    rot,
		Warnings:    warnings,
	}, nil
}

// resolveLmax returns the spherical harmonic degree to use. Both images
// must store an even series of degree two or more; an explicit degree must
// be even, at least two and stored by both images.
func resolveLmax(req Request) (int, error) {
	native := -1
	for i, img := range []*models.Volume{req.Image1, req.Image2} {
		l, err := sh.LmaxForCount(img.Components)
		if err != nil {
			return 0, fmt.Errorf("%w: image %d: %v", ErrConfiguration, i+1, err)
		}
		if native < 0 || l < native {
			native = l
		}
	}
	if native < 2 {
		return 0, fmt.Errorf("%w: images store spherical harmonics up to degree %d, orientation needs degree 2", ErrConfiguration, native)
	}

	lmax := req.Lmax
	if lmax == LmaxNative {
		return native, nil
	}
	if lmax < 2 || lmax%2 != 0 || lmax > native {
		return 0, fmt.Errorf("%w: lmax %d must be even and between 2 and %d", ErrConfiguration, lmax, native)
	}
	return lmax, nil
}
