package grating

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/photomask/pkg/layout"
)

// ErrDomain is returned when the optical parameters describe no real
// curve, or when a parameter is outside its valid range.
var ErrDomain = errors.New("grating: parameter outside domain")

// Direction is the compass direction a grating radiates towards.
type Direction string

const (
	PlusX  Direction = "+x"
	MinusX Direction = "-x"
	PlusY  Direction = "+y"
	MinusY Direction = "-y"
)

// ParseDirection accepts "+x", "-x", "+y", "-y". The empty string means +y.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case PlusX, MinusX, PlusY, MinusY:
		return d, nil
	case "":
		return PlusY, nil
	}
	return "", fmt.Errorf("%w: unknown direction %q", ErrDomain, s)
}

// Rotation returns the rotation in degrees that turns a +y grating into d.
func (d Direction) Rotation() float64 {
	switch d {
	case MinusX:
		return 90
	case PlusX:
		return -90
	case MinusY:
		return 180
	default:
		return 0
	}
}

// Variant selects the focusing curve family.
type Variant int

const (
	// VariantExact solves the phase-matching condition for every tooth
	// index starting at round(FocusDistance/Period).
	VariantExact Variant = iota
	// VariantCircular approximates teeth as circular arcs of radius
	// q·Period + FocusDistance spanning the FocusWidth aperture.
	VariantCircular
)

func (v Variant) String() string {
	switch v {
	case VariantExact:
		return "exact"
	case VariantCircular:
		return "circular"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// ParseVariant accepts "exact", "circular" and its alias "lumerical".
func ParseVariant(s string) (Variant, error) {
	switch s {
	case "", "exact":
		return VariantExact, nil
	case "circular", "lumerical":
		return VariantCircular, nil
	}
	return 0, fmt.Errorf("%w: unknown variant %q", ErrDomain, s)
}

func (v Variant) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

func (v *Variant) UnmarshalText(b []byte) error {
	p, err := ParseVariant(string(b))
	if err != nil {
		return err
	}
	*v = p
	return nil
}

// Spec holds the parameters of one grating. Lengths are in user units
// (micrometres).
type Spec struct {
	Period       float64     `json:"period"`
	Teeth        int         `json:"teeth"`
	FillFraction float64     `json:"fill_fraction"`
	Width        float64     `json:"width"`
	Position     layout.Vec2 `json:"position"` // feed point
	Direction    Direction   `json:"direction"`

	Wavelength    float64 `json:"wavelength"`
	SinTheta      float64 `json:"sin_theta"`
	FocusDistance float64 `json:"focus_distance"` // negative for a straight grating
	FocusWidth    float64 `json:"focus_width"`    // negative leaves the focusing area open

	Tolerance float64 `json:"tolerance"`
	MaxPoints int     `json:"max_points"` // spine cap, 0 for none

	Layer    int `json:"layer"`
	Datatype int `json:"datatype"`

	Variant Variant `json:"variant"`
	// FillTable gives absolute band widths per tooth, in tooth order. When
	// empty, every band is Period·FillFraction wide.
	FillTable []float64 `json:"fill_table,omitempty"`
}

// DefaultSpec returns a straight +y grating with unit wavelength and a
// 1 nm sampling tolerance. Callers set the geometry.
func DefaultSpec() Spec {
	return Spec{
		Direction:     PlusY,
		Wavelength:    1,
		FocusDistance: -1,
		FocusWidth:    -1,
		Tolerance:     0.001,
	}
}

// IsFocusing reports whether s describes a curved grating.
func (s Spec) IsFocusing() bool { return s.FocusDistance >= 0 }

// Validate checks the parameters shared by all grating kinds.
func (s Spec) Validate() error {
	switch {
	case !(s.Period > 0):
		return fmt.Errorf("%w: period %v must be positive", ErrDomain, s.Period)
	case s.Teeth < 1:
		return fmt.Errorf("%w: teeth %d must be at least 1", ErrDomain, s.Teeth)
	case !(s.Width > 0):
		return fmt.Errorf("%w: width %v must be positive", ErrDomain, s.Width)
	case s.MaxPoints < 0:
		return fmt.Errorf("%w: max points %d must not be negative", ErrDomain, s.MaxPoints)
	case s.MaxPoints > 0 && s.MaxPoints < 2:
		return fmt.Errorf("%w: max points %d leaves no segment", ErrDomain, s.MaxPoints)
	}
	if _, err := ParseDirection(string(s.Direction)); err != nil {
		return err
	}
	if s.IsFocusing() {
		if !(s.Tolerance > 0) {
			return fmt.Errorf("%w: tolerance %v must be positive", ErrDomain, s.Tolerance)
		}
		if len(s.FillTable) > 0 && len(s.FillTable) < s.Teeth {
			return fmt.Errorf("%w: fill table has %d entries for %d teeth", ErrDomain, len(s.FillTable), s.Teeth)
		}
	}
	return nil
}

// bandWidth returns the width of tooth k (0-based, in generation order).
func (s Spec) bandWidth(k int) float64 {
	if s.IsFocusing() && len(s.FillTable) > 0 {
		return s.FillTable[k]
	}
	return s.Period * s.FillFraction
}

// qmin is the first phase-matching order of the exact variant.
func (s Spec) qmin() int {
	return int(math.Floor(s.FocusDistance/s.Period + 0.5))
}
