package initialiser

import (
	"io"
	"log/slog"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"mriinit/internal/models"
	"mriinit/pkg/transform"
)

// recordingTransform wraps a real transform and records every mutation
type recordingTransform struct {
	*transform.Affine
	calls []string
}

func newRecordingTransform() *recordingTransform {
	return &recordingTransform{Affine: transform.NewAffine()}
}

func (r *recordingTransform) SetCentre(c r3.Vec) {
	r.calls = append(r.calls, "SetCentre")
	r.Affine.SetCentre(c)
}

func (r *recordingTransform) SetCentreWithoutTransformUpdate(c r3.Vec) {
	r.calls = append(r.calls, "SetCentreWithoutTransformUpdate")
	r.Affine.SetCentreWithoutTransformUpdate(c)
}

func (r *recordingTransform) SetTranslation(t r3.Vec) {
	r.calls = append(r.calls, "SetTranslation")
	r.Affine.SetTranslation(t)
}

func (r *recordingTransform) SetLinear(m mat.Matrix) error {
	r.calls = append(r.calls, "SetLinear")
	return r.Affine.SetLinear(m)
}

// newTestInitialiser returns an initialiser with a small chunk size so
// that the parallel reduction is exercised on small volumes
func newTestInitialiser() *Initialiser {
	return New(Options{
		Workers:   3,
		ChunkSize: 64,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

// createBoxVolume creates a size^3 scalar volume with value inside the
// inclusive box [lo, hi]
func createBoxVolume(size int, lo, hi [3]int, value float64) *models.Volume {
	v := models.NewVolume(size, size, size, 1)
	for z := lo[2]; z <= hi[2]; z++ {
		for y := lo[1]; y <= hi[1]; y++ {
			for x := lo[0]; x <= hi[0]; x++ {
				v.Set(x, y, z, 0, value)
			}
		}
	}
	return v
}

// createAsymmetricVolume creates a volume with an L-shaped object whose
// centroid differs from the grid centre and whose principal axes are distinct
func createAsymmetricVolume(size int) *models.Volume {
	v := createBoxVolume(size, [3]int{1, 1, 1}, [3]int{size - 2, 3, 2}, 1.0)
	for z := 1; z <= 2; z++ {
		for y := 4; y <= size/2+1; y++ {
			for x := 1; x <= 2; x++ {
				v.Set(x, y, z, 0, 2.0)
			}
		}
	}
	return v
}

func rotationZ(deg float64) *mat.Dense {
	s, c := math.Sincos(deg * math.Pi / 180)
	return mat.NewDense(3, 3, []float64{
		c, -s, 0,
		s, c, 0,
		0, 0, 1,
	})
}

// withAffine returns a copy of v whose voxel-to-scanner map is
// lin * (identity affine of v) + offset
func withAffine(v *models.Volume, lin mat.Matrix, offset r3.Vec) *models.Volume {
	out := v.Clone()
	var a models.Affine
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			sum := 0.0
			for k := 0; k < 3; k++ {
				sum += lin.At(r, k) * v.VoxelToScanner.Linear[k][c]
			}
			a.Linear[r][c] = sum
		}
	}
	orig := r3.Vec{X: v.VoxelToScanner.Offset[0], Y: v.VoxelToScanner.Offset[1], Z: v.VoxelToScanner.Offset[2]}
	moved := r3.Add(mulVec(lin, orig), offset)
	a.Offset = [3]float64{moved.X, moved.Y, moved.Z}
	out.VoxelToScanner = a
	return out
}

func mulVec(m mat.Matrix, p r3.Vec) r3.Vec {
	return r3.Vec{
		X: m.At(0, 0)*p.X + m.At(0, 1)*p.Y + m.At(0, 2)*p.Z,
		Y: m.At(1, 0)*p.X + m.At(1, 1)*p.Y + m.At(1, 2)*p.Z,
		Z: m.At(2, 0)*p.X + m.At(2, 1)*p.Y + m.At(2, 2)*p.Z,
	}
}

func assertVec(t *testing.T, name string, got, want r3.Vec, tol float64) {
	t.Helper()
	if r3.Norm(r3.Sub(got, want)) > tol {
		t.Errorf("%s = %v, expected %v", name, got, want)
	}
}

func assertMatrix(t *testing.T, name string, got, want mat.Matrix, tol float64) {
	t.Helper()
	if got == nil {
		t.Fatalf("%s is nil", name)
	}
	if !mat.EqualApprox(got, want, tol) {
		t.Errorf("%s =\n%v\nexpected\n%v", name, mat.Formatted(got), mat.Formatted(want))
	}
}

func identity3() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}
