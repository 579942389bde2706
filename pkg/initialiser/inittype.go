package initialiser

import (
	"fmt"
	"strings"

	"mriinit/pkg/mask"
)

// InitType selects the initialisation strategy
type InitType int

const (
	// Mass uses the mask-gated intensity centroids
	Mass InitType = iota
	// Geometric uses the centres of the voxel grids
	Geometric
	// Moments uses mask-gated centroids and principal axes
	Moments
	// MassUnmasked uses intensity centroids and ignores masks
	MassUnmasked
	// MomentsUseMaskIntensity weights moments by mask values instead of intensities
	MomentsUseMaskIntensity
	// MomentsUnmasked uses centroids and principal axes and ignores masks
	MomentsUnmasked
	// FOD uses centroids and the orientation tensor of the mean orientation distribution
	FOD
	// SetCentreMass only moves the centre of rotation to the centroid midpoint
	SetCentreMass
	// None leaves the transform untouched
	None
)

var initTypeNames = [...]string{
	Mass:                    "mass",
	Geometric:               "geometric",
	Moments:                 "moments",
	MassUnmasked:            "mass_unmasked",
	MomentsUseMaskIntensity: "moments_use_mask_intensity",
	MomentsUnmasked:         "moments_unmasked",
	FOD:                     "fod",
	SetCentreMass:           "set_centre_mass",
	None:                    "none",
}

// InitTypes lists every strategy in declaration order
func InitTypes() []InitType {
	out := make([]InitType, len(initTypeNames))
	for i := range initTypeNames {
		out[i] = InitType(i)
	}
	return out
}

func (k InitType) valid() bool {
	return k >= 0 && int(k) < len(initTypeNames)
}

func (k InitType) String() string {
	if !k.valid() {
		return fmt.Sprintf("InitType(%d)", int(k))
	}
	return initTypeNames[k]
}

// ParseInitType converts a strategy name such as "moments_unmasked" to an InitType
func ParseInitType(s string) (InitType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range initTypeNames {
		if n == name {
			return InitType(i), nil
		}
	}
	return None, fmt.Errorf("%w: unknown initialisation type %q (choices: %s)",
		ErrConfiguration, s, strings.Join(initTypeNames[:], ", "))
}

// MarshalText implements encoding.TextMarshaler
func (k InitType) MarshalText() ([]byte, error) {
	if !k.valid() {
		return nil, fmt.Errorf("%w: invalid initialisation type %d", ErrConfiguration, int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *InitType) UnmarshalText(text []byte) error {
	parsed, err := ParseInitType(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// maskRequirement reports how the strategy treats the supplied masks
func (k InitType) maskRequirement() mask.Requirement {
	switch k {
	case Mass, Moments, FOD, SetCentreMass:
		return mask.Optional
	case MomentsUseMaskIntensity:
		return mask.Required
	default:
		return mask.Ignored
	}
}
