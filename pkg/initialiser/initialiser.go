// Package initialiser computes the starting transform for registering two
// volumes: a shared centre of rotation, the translation between the
// images and, for the moments and FOD strategies, a rotation aligning
// their principal axes.
//
// Translations follow the convention reference1 - reference2, so the
// initialised transform carries image 2's reference point onto image 1's.
package initialiser

import (
	"fmt"
	"log/slog"

	"mriinit/internal/models"
	"mriinit/pkg/mask"
	"mriinit/pkg/moments"
)

// DefaultDegeneracyTolerance is the relative eigenvalue gap below which
// principal axes are reported as ambiguous
const DefaultDegeneracyTolerance = 0.01

// LmaxNative selects the largest spherical harmonic degree stored by both images
const LmaxNative = -1

// Options configures an Initialiser
type Options struct {
	// Workers is the number of goroutines used per voxel reduction
	Workers int

	// ChunkSize is the number of voxels per reduction task
	ChunkSize int

	// DegeneracyTolerance is the relative eigenvalue gap that triggers an
	// ambiguity warning; <= 0 means DefaultDegeneracyTolerance
	DegeneracyTolerance float64

	// Logger receives progress and warnings; nil means slog.Default()
	Logger *slog.Logger
}

// Request holds the inputs of one initialisation
type Request struct {
	Image1 *models.Volume
	Image2 *models.Volume

	// Mask1 and Mask2 are optional; nil means no mask
	Mask1 *models.Volume
	Mask2 *models.Volume

	Kind InitType

	// Lmax is the spherical harmonic degree used by FOD. LmaxNative
	// selects the largest degree both images store; any other value must be
	// an even degree of at least two.
	Lmax int
}

// Initialiser runs initialisation strategies. It holds no state between
// calls and is safe for concurrent use.
type Initialiser struct {
	acc       *moments.Accumulator
	tolerance float64
	logger    *slog.Logger
}

// New creates an Initialiser
func New(opts Options) *Initialiser {
	tol := opts.DegeneracyTolerance
	if tol <= 0 {
		tol = DefaultDegeneracyTolerance
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Initialiser{
		acc:       moments.NewAccumulator(moments.Options{Workers: opts.Workers, ChunkSize: opts.ChunkSize}),
		tolerance: tol,
		logger:    logger,
	}
}

// Run computes the requested initialisation and applies it to t.
//
// Parameters:
//   - req: the two images, optional masks, strategy and FOD degree
//   - t: the transform to initialise; only read by the mass strategies
//     until the result is complete
//
// Returns:
//   - the applied result, including any warnings
//   - an error wrapping ErrConfiguration or ErrDegenerateInput when the
//     strategy cannot run; t is unchanged in that case
func (in *Initialiser) Run(req Request, t Transform) (*Result, error) {
	res, err := in.Compute(req, t)
	if err != nil {
		return nil, err
	}
	if err := res.Apply(t); err != nil {
		return nil, err
	}
	return res, nil
}

// Compute runs the requested strategy without modifying t
func (in *Initialiser) Compute(req Request, t Transform) (*Result, error) {
	if !req.Kind.valid() {
		return nil, fmt.Errorf("%w: invalid initialisation type %d", ErrConfiguration, int(req.Kind))
	}
	if req.Kind == None {
		return &Result{Kind: None}, nil
	}
	if err := checkImages(req); err != nil {
		return nil, err
	}

	sel, err := mask.Validate(req.Kind.maskRequirement(), req.Image1, req.Image2, req.Mask1, req.Mask2)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot run %s initialisation without a valid mask: %w", ErrConfiguration, req.Kind, err)
	}

	var res *Result
	switch req.Kind {
	case Geometric:
		in.logger.Info("initialising centre of rotation and translation using geometric centre")
		res = in.geometric(req)
	case Mass, MassUnmasked:
		in.logger.Info("initialising centre of rotation and translation using centre of mass", "masks", sel.Valid())
		res, err = in.mass(req, sel, t)
	case SetCentreMass:
		in.logger.Info("initialising centre of rotation using centre of mass", "masks", sel.Valid())
		res, err = in.setCentreMass(req, sel)
	case Moments, MomentsUnmasked:
		in.logger.Info("initialising using image moments", "masks", sel.Valid())
		res, err = in.imageMoments(req, sel, false)
	case MomentsUseMaskIntensity:
		in.logger.Info("initialising using image moments using mask values instead of image values", "masks", sel.Valid())
		res, err = in.imageMoments(req, sel, true)
	case FOD:
		in.logger.Info("initialising using masked images interpreted as FOD", "masks", sel.Valid(), "lmax", req.Lmax)
		res, err = in.fod(req, sel)
	}
	if err != nil {
		return nil, fmt.Errorf("%s initialisation failed: %w", req.Kind, err)
	}

	res.Kind = req.Kind
	warnings := make([]Warning, 0, len(sel.Issues)+len(res.Warnings))
	for _, issue := range sel.Issues {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("%v; sampling unmasked", issue)})
	}
	res.Warnings = append(warnings, res.Warnings...)
	for _, w := range res.Warnings {
		in.logger.Warn(w.Message, "image", w.Image, "init", req.Kind.String())
	}
	return res, nil
}

// checkImages rejects requests without two well-formed images. The
// geometric strategy only needs the grid header.
func checkImages(req Request) error {
	for i, img := range []*models.Volume{req.Image1, req.Image2} {
		if img == nil {
			return fmt.Errorf("%w: image %d is missing", ErrConfiguration, i+1)
		}
		if req.Kind == Geometric {
			if img.Width <= 0 || img.Height <= 0 || img.Depth <= 0 {
				return fmt.Errorf("%w: image %d has empty extents %dx%dx%d", ErrConfiguration, i+1, img.Width, img.Height, img.Depth)
			}
			continue
		}
		if err := img.Validate(); err != nil {
			return fmt.Errorf("%w: image %d: %v", ErrConfiguration, i+1, err)
		}
	}
	return nil
}
