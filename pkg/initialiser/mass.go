package initialiser

import (
	"gonum.org/v1/gonum/spatial/r3"

	"mriinit/pkg/mask"
	"mriinit/pkg/moments"
)

// centroids returns the intensity-weighted centroids of both images, each
// gated by its selected mask
func (in *Initialiser) centroids(req Request, sel mask.Selection) (r3.Vec, r3.Vec, error) {
	s1, err := in.acc.Centroid(moments.Source{Image: req.Image1, Mask: sel.Mask1})
	if err != nil {
		return r3.Vec{}, r3.Vec{}, sampleError(1, err)
	}
	s2, err := in.acc.Centroid(moments.Source{Image: req.Image2, Mask: sel.Mask2})
	if err != nil {
		return r3.Vec{}, r3.Vec{}, sampleError(2, err)
	}

	in.logger.Debug("centres of mass", "image1", s1.Centroid, "mass1", s1.Mass, "image2", s2.Centroid, "mass2", s2.Mass)
	return s1.Centroid, s2.Centroid, nil
}

// mass centres the transform between the centroids as seen from the
// midway space of the current transform (image 1 through the inverse half,
// image 2 through the half). The translation is always the raw offset
// between the centroids.
func (in *Initialiser) mass(req Request, sel mask.Selection, t Transform) (*Result, error) {
	c1, c2, err := in.centroids(req, sel)
	if err != nil {
		return nil, err
	}

	p1 := t.TransformHalfInverse(c1)
	p2 := t.TransformHalf(c2)

	return &Result{
		Centre:      midpoint(p1, p2),
		Translation: r3.Sub(c1, c2),
	}, nil
}

// setCentreMass moves the centre of rotation to the midpoint of the raw
// centroids, leaving the mapping itself as it was
func (in *Initialiser) setCentreMass(req Request, sel mask.Selection) (*Result, error) {
	c1, c2, err := in.centroids(req, sel)
	if err != nil {
		return nil, err
	}

	return &Result{
		Centre:     midpoint(c1, c2),
		CentreOnly: true,
	}, nil
}
