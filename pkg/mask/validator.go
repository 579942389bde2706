// Package mask decides which of the supplied mask images an
// initialisation strategy may use.
package mask

import (
	"errors"
	"fmt"

	"mriinit/internal/models"
)

// GridTolerance is the relative tolerance used when comparing a mask's
// voxel-to-scanner transform with its image's
const GridTolerance = 1e-6

var (
	// ErrNoMask marks an absent mask
	ErrNoMask = errors.New("no mask supplied")
	// ErrGridMismatch marks a mask that does not sample its image's grid
	ErrGridMismatch = errors.New("mask grid does not match image grid")
	// ErrMalformed marks a mask whose header and data disagree
	ErrMalformed = errors.New("malformed mask")
	// ErrNoValidMask is returned when a strategy requires a mask and neither is valid
	ErrNoValidMask = errors.New("no valid mask supplied")
)

// Requirement states how a strategy uses masks
type Requirement int

const (
	// Ignored strategies never look at masks
	Ignored Requirement = iota
	// Optional strategies gate by valid masks and run unmasked otherwise
	Optional
	// Required strategies need at least one valid mask
	Required
)

func (r Requirement) String() string {
	switch r {
	case Ignored:
		return "ignored"
	case Optional:
		return "optional"
	case Required:
		return "required"
	default:
		return fmt.Sprintf("Requirement(%d)", int(r))
	}
}

// Check reports why mask cannot be used with image, or nil if it can
func Check(image, mask *models.Volume) error {
	if mask == nil {
		return ErrNoMask
	}
	if err := mask.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if image == nil || !image.SameGrid(mask, GridTolerance) {
		return ErrGridMismatch
	}
	return nil
}

// Selection holds the masks a strategy will use. A nil entry means the
// corresponding image is sampled unmasked.
type Selection struct {
	Mask1 *models.Volume
	Mask2 *models.Volume

	// Issues explains, per image, why a supplied mask was not selected
	Issues []error
}

// Valid reports how many masks were selected
func (s Selection) Valid() int {
	n := 0
	if s.Mask1 != nil {
		n++
	}
	if s.Mask2 != nil {
		n++
	}
	return n
}

// Validate checks both masks against their images and selects the ones
// the requirement allows.
//
// Ignored drops both masks. Optional keeps each valid mask and records an
// issue for every supplied mask that is invalid. Required behaves like
// Optional but fails with ErrNoValidMask if neither mask is valid.
func Validate(req Requirement, image1, image2, mask1, mask2 *models.Volume) (Selection, error) {
	var sel Selection
	if req == Ignored {
		return sel, nil
	}

	if err := Check(image1, mask1); err == nil {
		sel.Mask1 = mask1
	} else if mask1 != nil {
		sel.Issues = append(sel.Issues, fmt.Errorf("mask 1: %w", err))
	}

	if err := Check(image2, mask2); err == nil {
		sel.Mask2 = mask2
	} else if mask2 != nil {
		sel.Issues = append(sel.Issues, fmt.Errorf("mask 2: %w", err))
	}

	if req == Required && sel.Valid() == 0 {
		return sel, ErrNoValidMask
	}
	return sel, nil
}
