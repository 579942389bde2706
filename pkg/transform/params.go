package transform

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

// Params is a serialisable snapshot of an Affine
type Params struct {
	Centre      [3]float64    `yaml:"centre"`
	Translation [3]float64    `yaml:"translation"`
	Linear      [3][3]float64 `yaml:"linear"`
	Offset      [3]float64    `yaml:"offset"`
	Matrix      [4][4]float64 `yaml:"matrix"`
}

func toArray(v r3.Vec) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

func toVec(a [3]float64) r3.Vec { return r3.Vec{X: a[0], Y: a[1], Z: a[2]} }

// Params returns a snapshot of the transform
func (a *Affine) Params() Params {
	p := Params{
		Centre:      toArray(a.centre),
		Translation: toArray(a.translation),
		Offset:      toArray(a.offset),
	}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			p.Linear[r][c] = a.linear.At(r, c)
		}
	}
	m := a.Matrix()
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			p.Matrix[r][c] = m.At(r, c)
		}
	}
	return p
}

// FromParams rebuilds a transform from its linear part, centre and translation.
// Offset and Matrix are derived and ignored on input.
func FromParams(p Params) (*Affine, error) {
	a := NewAffine()
	lin := mat.NewDense(3, 3, nil)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			lin.Set(r, c, p.Linear[r][c])
		}
	}
	if err := a.SetLinear(lin); err != nil {
		return nil, err
	}
	a.SetCentre(toVec(p.Centre))
	a.SetTranslation(toVec(p.Translation))
	return a, nil
}

// SaveParams writes the transform snapshot to a YAML file
func SaveParams(p Params, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating transform directory: %w", err)
		}
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("error marshaling transform: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing transform file: %w", err)
	}
	return nil
}

// LoadParams reads a transform snapshot from a YAML file
func LoadParams(path string) (Params, error) {
	var p Params
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("error reading transform file: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("error parsing transform file: %w", err)
	}
	return p, nil
}
