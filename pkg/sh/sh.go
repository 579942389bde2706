// Package sh works with orientation distributions stored as even-degree
// real spherical harmonic series.
//
// Coefficients are laid out by degree, l = 0, 2, 4, ..., and within a
// degree by order m = -l..l, so the coefficient of (l, m) lives at
// index l(l+1)/2 + m. The basis is real and orthonormal over the unit
// sphere, without the Condon-Shortley phase: negative orders carry the
// sine terms and positive orders the cosine terms, each scaled by sqrt(2).
package sh

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// NumCoefficients returns the number of coefficients of an even series up to lmax
func NumCoefficients(lmax int) int {
	return (lmax + 1) * (lmax + 2) / 2
}

// LmaxForCount returns the maximum degree of a series with n coefficients
func LmaxForCount(n int) (int, error) {
	for l := 0; NumCoefficients(l) <= n; l += 2 {
		if NumCoefficients(l) == n {
			return l, nil
		}
	}
	return 0, fmt.Errorf("%d coefficients do not form an even spherical harmonic series", n)
}

// Index returns the position of coefficient (l, m)
func Index(l, m int) int {
	return l*(l+1)/2 + m
}

// Eval evaluates every basis function up to lmax in direction dir.
// The returned coefficients are those of a unit delta function
// pointing along dir, truncated to lmax.
func Eval(lmax int, dir r3.Vec) []float64 {
	out := make([]float64, NumCoefficients(lmax))

	u := r3.Unit(dir)
	cosTheta := math.Max(-1, math.Min(1, u.Z))
	phi := math.Atan2(u.Y, u.X)

	for l := 0; l <= lmax; l += 2 {
		for m := 0; m <= l; m++ {
			p := legendre(l, m, cosTheta) * norm(l, m)
			if m == 0 {
				out[Index(l, 0)] = p
				continue
			}
			out[Index(l, m)] = math.Sqrt2 * p * math.Cos(float64(m)*phi)
			out[Index(l, -m)] = math.Sqrt2 * p * math.Sin(float64(m)*phi)
		}
	}
	return out
}

// norm is the orthonormalisation factor sqrt((2l+1)/4pi * (l-m)!/(l+m)!)
func norm(l, m int) float64 {
	ratio := 1.0
	for k := l - m + 1; k <= l+m; k++ {
		ratio /= float64(k)
	}
	return math.Sqrt(float64(2*l+1) / (4 * math.Pi) * ratio)
}

// legendre evaluates the associated Legendre function P_l^m(x) without
// the Condon-Shortley phase
func legendre(l, m int, x float64) float64 {
	pmm := 1.0
	if m > 0 {
		s := math.Sqrt((1 - x) * (1 + x))
		fact := 1.0
		for i := 1; i <= m; i++ {
			pmm *= fact * s
			fact += 2
		}
	}
	if l == m {
		return pmm
	}

	pmm1 := x * float64(2*m+1) * pmm
	if l == m+1 {
		return pmm1
	}

	var pll float64
	for ll := m + 2; ll <= l; ll++ {
		pll = (x*float64(2*ll-1)*pmm1 - float64(ll+m-1)*pmm) / float64(ll-m)
		pmm = pmm1
		pmm1 = pll
	}
	return pll
}

// Tensor returns the second moment T = integral of f(u) u u^T over the unit
// sphere of the series coefs. Only the l=0 and l=2 terms contribute. A
// delta function along d yields exactly d d^T.
func Tensor(coefs []float64) (*mat.SymDense, error) {
	if _, err := LmaxForCount(len(coefs)); err != nil {
		return nil, err
	}

	iso := coefs[0] * math.Sqrt(4*math.Pi) / 3
	t := [6]float64{iso, 0, 0, iso, 0, iso} // xx xy xz yy yz zz
	if len(coefs) >= NumCoefficients(2) {
		// each degree-2 basis function is a traceless quadratic form u^T A u,
		// and the integral of (u^T A u) u u^T is 8pi/15 A
		k := 8 * math.Pi / 15
		k0 := 0.25 * math.Sqrt(5/math.Pi)
		k1 := 0.5 * math.Sqrt(15/math.Pi)
		k2 := 0.25 * math.Sqrt(15/math.Pi)

		c := func(m int) float64 { return coefs[Index(2, m)] }

		t[0] += k * (-k0*c(0) + k2*c(2))
		t[3] += k * (-k0*c(0) - k2*c(2))
		t[5] += k * (2 * k0 * c(0))
		t[1] += k * (0.5 * k1 * c(-2))
		t[2] += k * (0.5 * k1 * c(1))
		t[4] += k * (0.5 * k1 * c(-1))
	}

	return mat.NewSymDense(3, []float64{
		t[0], t[1], t[2],
		t[1], t[3], t[4],
		t[2], t[4], t[5],
	}), nil
}
