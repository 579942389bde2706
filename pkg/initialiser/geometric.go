package initialiser

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// geometric aligns the centres of the two voxel grids. Only header
// geometry is read.
func (in *Initialiser) geometric(req Request) *Result {
	c1 := req.Image1.GeometricCentre()
	c2 := req.Image2.GeometricCentre()

	in.logger.Debug("geometric centres", "image1", c1, "image2", c2)

	return &Result{
		Centre:      midpoint(c1, c2),
		Translation: r3.Sub(c1, c2),
	}
}
