package initialiser

import (
	"errors"
	"fmt"

	"mriinit/pkg/moments"
)

var (
	// ErrConfiguration marks requests that can never succeed as posed:
	// unknown strategy, missing images, a mask-weighted strategy without a
	// valid mask, or an unusable spherical harmonic degree.
	ErrConfiguration = errors.New("invalid initialisation configuration")

	// ErrDegenerateInput marks images whose sampled region carries no
	// weight, leaving centroid and moments undefined.
	ErrDegenerateInput = errors.New("degenerate input")
)

// Warning describes a non-fatal condition that makes the result less reliable
type Warning struct {
	// Image is 1 or 2 for a condition specific to one image, 0 otherwise
	Image   int
	Message string
}

func (w Warning) String() string {
	if w.Image == 0 {
		return w.Message
	}
	return fmt.Sprintf("image %d: %s", w.Image, w.Message)
}

// sampleError attributes an accumulator failure to an image, classifying
// empty regions as degenerate input
func sampleError(image int, err error) error {
	if errors.Is(err, moments.ErrZeroMass) {
		return fmt.Errorf("%w: image %d: %w", ErrDegenerateInput, image, err)
	}
	return fmt.Errorf("image %d: %w", image, err)
}
