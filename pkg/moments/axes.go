package moments

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrNoCovariance is returned when principal axes are requested from
// statistics that were computed without the second pass.
var ErrNoCovariance = errors.New("second moments were not computed")

// Axes holds an eigendecomposition of a symmetric 3x3 tensor.
// Values are in ascending order; Vectors[i] is the unit eigenvector
// belonging to Values[i].
type Axes struct {
	Values  [3]float64
	Vectors [3]r3.Vec
}

// PrincipalAxes decomposes the covariance tensor of the statistics
func (s Stats) PrincipalAxes() (Axes, error) {
	if s.Covariance == nil {
		return Axes{}, ErrNoCovariance
	}
	return Decompose(s.Covariance)
}

// Decompose returns the eigenvalues and eigenvectors of a symmetric 3x3 tensor
func Decompose(tensor mat.Symmetric) (Axes, error) {
	if n := tensor.SymmetricDim(); n != 3 {
		return Axes{}, errors.New("tensor must be 3x3")
	}

	var es mat.EigenSym
	if ok := es.Factorize(tensor, true); !ok {
		return Axes{}, errors.New("eigendecomposition did not converge")
	}

	vals := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	var axes Axes
	for i := 0; i < 3; i++ {
		axes.Values[i] = vals[i]
		axes.Vectors[i] = r3.Unit(r3.Vec{X: vecs.At(0, i), Y: vecs.At(1, i), Z: vecs.At(2, i)})
	}
	return axes, nil
}

// Gaps returns, for each pair of adjacent eigenvalues, their difference
// relative to the largest eigenvalue magnitude. A tensor whose eigenvalues
// are all zero reports zero gaps.
func (a Axes) Gaps() [2]float64 {
	scale := math.Max(math.Abs(a.Values[0]), math.Max(math.Abs(a.Values[1]), math.Abs(a.Values[2])))
	if scale == 0 {
		return [2]float64{}
	}
	return [2]float64{
		(a.Values[1] - a.Values[0]) / scale,
		(a.Values[2] - a.Values[1]) / scale,
	}
}
