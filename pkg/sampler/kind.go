package sampler

import (
	"fmt"
	"strings"
)

// Kind identifies a probability distribution of an uncertainty input.
type Kind int

const (
	KindNone Kind = iota - 1
	KindUniform
	KindNormal
	KindTriangular
	KindGamma
	KindLogNormal
	KindFractile
)

var kindNames = map[Kind]string{
	KindNone:       "",
	KindUniform:    "uniform",
	KindNormal:     "normal",
	KindTriangular: "triangular",
	KindGamma:      "gamma",
	KindLogNormal:  "lognormal",
	KindFractile:   "fractile",
}

// ParseKind maps a distribution name from an input table to its Kind. The
// second return is false for names that are not recognised at all; an empty
// name yields KindNone and true.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return KindNone, true
	case "uniform":
		return KindUniform, true
	case "normal":
		return KindNormal, true
	case "triangle", "triangular":
		return KindTriangular, true
	case "gamma":
		return KindGamma, true
	case "lognormal", "log-normal":
		return KindLogNormal, true
	case "fractile":
		return KindFractile, true
	default:
		return KindNone, false
	}
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		if s == "" {
			return "none"
		}
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Supported reports whether the sampler can draw from the kind.
func (k Kind) Supported() bool {
	return k >= KindUniform && k <= KindLogNormal
}

// Symmetric reports whether the input gives one symmetric half-width
// rather than separate lower and upper bounds.
func (k Kind) Symmetric() bool {
	return k == KindNormal || k == KindUniform || k == KindGamma
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(kindNames[k]), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	v, ok := ParseKind(string(b))
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDistribution, string(b))
	}
	*k = v
	return nil
}
