package initialiser

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Transform is the registration transform being initialised.
// TransformHalf maps a point through half of the current correction (the
// half applied to image 2); TransformHalfInverse maps through the inverse
// of that half (the half applied to image 1).
type Transform interface {
	SetCentre(c r3.Vec)
	SetCentreWithoutTransformUpdate(c r3.Vec)
	SetTranslation(t r3.Vec)
	SetLinear(m mat.Matrix) error
	TransformHalf(p r3.Vec) r3.Vec
	TransformHalfInverse(p r3.Vec) r3.Vec
}

// Result is the complete outcome of one strategy, computed before the
// transform is touched
type Result struct {
	Kind InitType

	// Centre is the new centre of rotation
	Centre r3.Vec

	// Translation is reference1 - reference2
	Translation r3.Vec

	// Rotation maps image 2's principal frame onto image 1's; nil when
	// the strategy does not estimate one
	Rotation *mat.Dense

	// CentreOnly results move the centre and keep the mapping unchanged
	CentreOnly bool

	Warnings []Warning
}

// Apply writes the result into t. The rotation, the only step that can
// fail, goes first so a failure leaves t untouched; centre and
// translation are then always set together.
func (r *Result) Apply(t Transform) error {
	if r.Kind == None {
		return nil
	}
	if r.CentreOnly {
		t.SetCentreWithoutTransformUpdate(r.Centre)
		return nil
	}
	if r.Rotation != nil {
		if err := t.SetLinear(r.Rotation); err != nil {
			return fmt.Errorf("cannot apply %s rotation: %w", r.Kind, err)
		}
	}
	t.SetCentre(r.Centre)
	t.SetTranslation(r.Translation)
	return nil
}

func midpoint(a, b r3.Vec) r3.Vec {
	return r3.Scale(0.5, r3.Add(a, b))
}
