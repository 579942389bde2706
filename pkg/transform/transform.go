// Package transform provides an affine registration transform with an
// explicit centre of rotation and a symmetric half-transform decomposition.
//
// The full map is x -> L(x - c) + c + t for linear part L, centre c and
// translation t. TransformHalf applies the principal square root of the
// full map and TransformHalfInverse the inverse of that root, so that
// moving image2 by one and image1 by the other meets in a shared midway
// space.
package transform

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrNoSquareRoot is returned by SetLinear for matrices that have no
// principal square root (for example a rotation by exactly 180 degrees).
var ErrNoSquareRoot = errors.New("linear part has no principal square root")

const (
	sqrtMaxIterations = 100
	sqrtTolerance     = 1e-13
)

// Affine is a centred affine transform
type Affine struct {
	linear      *mat.Dense
	centre      r3.Vec
	translation r3.Vec
	offset      r3.Vec

	// principal square root of linear and its inverse
	halfLinear    *mat.Dense
	halfLinearInv *mat.Dense
	halfOffset    r3.Vec
}

// NewAffine returns the identity transform centred on the origin
func NewAffine() *Affine {
	a := &Affine{
		linear:        eye(),
		halfLinear:    eye(),
		halfLinearInv: eye(),
	}
	a.update()
	return a
}

func eye() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}

// Centre returns the centre of rotation
func (a *Affine) Centre() r3.Vec { return a.centre }

// Translation returns the translation applied after the centred linear map
func (a *Affine) Translation() r3.Vec { return a.translation }

// Offset returns the constant term of the full map x -> Lx + offset
func (a *Affine) Offset() r3.Vec { return a.offset }

// Linear returns a copy of the linear part
func (a *Affine) Linear() *mat.Dense {
	return mat.DenseCopyOf(a.linear)
}

// SetCentre moves the centre of rotation, keeping the translation. The
// full mapping changes unless the linear part is the identity.
func (a *Affine) SetCentre(c r3.Vec) {
	a.centre = c
	a.update()
}

// SetCentreWithoutTransformUpdate moves the centre of rotation and adjusts
// the translation so that the full mapping is unchanged.
func (a *Affine) SetCentreWithoutTransformUpdate(c r3.Vec) {
	// offset = t + c - Lc must stay fixed
	a.translation = r3.Add(r3.Sub(a.offset, c), mulVec(a.linear, c))
	a.centre = c
	a.update()
}

// SetTranslation sets the translation
func (a *Affine) SetTranslation(t r3.Vec) {
	a.translation = t
	a.update()
}

// SetLinear replaces the linear part. It fails, leaving the transform
// unchanged, if m is not 3x3 or has no principal square root.
func (a *Affine) SetLinear(m mat.Matrix) error {
	if r, c := m.Dims(); r != 3 || c != 3 {
		return fmt.Errorf("linear part must be 3x3, got %dx%d", r, c)
	}
	lin := mat.DenseCopyOf(m)

	root, rootInv, err := sqrtm(lin)
	if err != nil {
		return err
	}

	a.linear = lin
	a.halfLinear = root
	a.halfLinearInv = rootInv
	a.update()
	return nil
}

// update recomputes the offset and the half-transform translation
func (a *Affine) update() {
	a.offset = r3.Add(r3.Add(a.translation, a.centre), r3.Scale(-1, mulVec(a.linear, a.centre)))

	// the root [S u] of [L o] satisfies S u + u = o
	var sPlusI mat.Dense
	sPlusI.Add(a.halfLinear, eye())
	var u mat.VecDense
	if err := u.SolveVec(&sPlusI, mat.NewVecDense(3, []float64{a.offset.X, a.offset.Y, a.offset.Z})); err != nil {
		// S has no eigenvalue -1 for a principal root; reaching this means
		// the root was built from a numerically singular matrix
		a.halfOffset = r3.Scale(0.5, a.offset)
		return
	}
	a.halfOffset = r3.Vec{X: u.AtVec(0), Y: u.AtVec(1), Z: u.AtVec(2)}
}

// Apply maps p through the full transform
func (a *Affine) Apply(p r3.Vec) r3.Vec {
	return r3.Add(mulVec(a.linear, p), a.offset)
}

// TransformHalf maps p through half of the transform
func (a *Affine) TransformHalf(p r3.Vec) r3.Vec {
	return r3.Add(mulVec(a.halfLinear, p), a.halfOffset)
}

// TransformHalfInverse maps p through the inverse of the half transform
func (a *Affine) TransformHalfInverse(p r3.Vec) r3.Vec {
	return mulVec(a.halfLinearInv, r3.Sub(p, a.halfOffset))
}

// Matrix returns the full transform as a 4x4 homogeneous matrix
func (a *Affine) Matrix() *mat.Dense {
	m := mat.NewDense(4, 4, nil)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m.Set(r, c, a.linear.At(r, c))
		}
	}
	m.Set(0, 3, a.offset.X)
	m.Set(1, 3, a.offset.Y)
	m.Set(2, 3, a.offset.Z)
	m.Set(3, 3, 1)
	return m
}

func mulVec(m mat.Matrix, p r3.Vec) r3.Vec {
	return r3.Vec{
		X: m.At(0, 0)*p.X + m.At(0, 1)*p.Y + m.At(0, 2)*p.Z,
		Y: m.At(1, 0)*p.X + m.At(1, 1)*p.Y + m.At(1, 2)*p.Z,
		Z: m.At(2, 0)*p.X + m.At(2, 1)*p.Y + m.At(2, 2)*p.Z,
	}
}

// sqrtm returns the principal square root of m and its inverse using the
// Denman-Beavers iteration
func sqrtm(m *mat.Dense) (*mat.Dense, *mat.Dense, error) {
	if det := mat.Det(m); det <= 0 || math.IsNaN(det) {
		return nil, nil, fmt.Errorf("%w: determinant %g", ErrNoSquareRoot, det)
	}

	y := mat.DenseCopyOf(m)
	z := eye()

	for iter := 0; iter < sqrtMaxIterations; iter++ {
		var yInv, zInv mat.Dense
		if err := yInv.Inverse(y); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrNoSquareRoot, err)
		}
		if err := zInv.Inverse(z); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrNoSquareRoot, err)
		}

		var yNext, zNext mat.Dense
		yNext.Add(y, &zInv)
		yNext.Scale(0.5, &yNext)
		zNext.Add(z, &yInv)
		zNext.Scale(0.5, &zNext)

		var diff mat.Dense
		diff.Sub(&yNext, y)
		y, z = &yNext, &zNext

		if mat.Norm(&diff, 1) <= sqrtTolerance*math.Max(1, mat.Norm(y, 1)) {
			var check mat.Dense
			check.Mul(y, y)
			check.Sub(&check, m)
			if mat.Norm(&check, 1) > 1e-8*math.Max(1, mat.Norm(m, 1)) {
				break
			}
			return y, z, nil
		}
	}
	return nil, nil, fmt.Errorf("%w: iteration did not converge", ErrNoSquareRoot)
}
