package initialiser

import (
	"mriinit/internal/models"
)

// The helpers below run a single strategy with default options.

// InitialiseUsingImageCentres aligns the geometric centres of the two grids
func InitialiseUsingImageCentres(im1, im2 *models.Volume, t Transform) error {
	_, err := New(Options{}).Run(Request{Image1: im1, Image2: im2, Kind: Geometric}, t)
	return err
}

// InitialiseUsingImageMass aligns the centres of mass, gated by whichever
// masks are valid. Pass nil masks for the unmasked variant.
func InitialiseUsingImageMass(im1, im2, mask1, mask2 *models.Volume, t Transform) error {
	_, err := New(Options{}).Run(Request{Image1: im1, Image2: im2, Mask1: mask1, Mask2: mask2, Kind: Mass}, t)
	return err
}

// SetCentreUsingImageMass moves the centre of rotation to the midpoint of
// the centres of mass without changing the mapping
func SetCentreUsingImageMass(im1, im2, mask1, mask2 *models.Volume, t Transform) error {
	_, err := New(Options{}).Run(Request{Image1: im1, Image2: im2, Mask1: mask1, Mask2: mask2, Kind: SetCentreMass}, t)
	return err
}

// InitialiseUsingImageMoments aligns centroids and principal axes. With
// useMaskValues the masks supply the weights and at least one must be valid.
func InitialiseUsingImageMoments(im1, im2, mask1, mask2 *models.Volume, t Transform, useMaskValues bool) error {
	kind := Moments
	if useMaskValues {
		kind = MomentsUseMaskIntensity
	}
	_, err := New(Options{}).Run(Request{Image1: im1, Image2: im2, Mask1: mask1, Mask2: mask2, Kind: kind}, t)
	return err
}

// InitialiseUsingFOD aligns centroids and the principal axes of the mean
// orientation distributions, truncated to lmax (LmaxNative for all stored degrees)
func InitialiseUsingFOD(im1, im2, mask1, mask2 *models.Volume, t Transform, lmax int) error {
	_, err := New(Options{}).Run(Request{Image1: im1, Image2: im2, Mask1: mask1, Mask2: mask2, Kind: FOD, Lmax: lmax}, t)
	return err
}
