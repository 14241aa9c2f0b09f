package layout

import (
	"fmt"
	"math"

	"honnef.co/go/curve"
)

// Vec2 is a point or displacement in user units (micrometres).
type Vec2 struct {
	X, Y float64
}

// V returns the vector (x, y).
func V(x, y float64) Vec2 { return Vec2{X: x, Y: y} }

func (v Vec2) Add(o Vec2) Vec2      { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2      { return Vec2{v.X - o.X, v.Y - o.Y} }
func (v Vec2) Scale(f float64) Vec2 { return Vec2{v.X * f, v.Y * f} }
func (v Vec2) Neg() Vec2            { return Vec2{-v.X, -v.Y} }
func (v Vec2) Len() float64         { return math.Hypot(v.X, v.Y) }
func (v Vec2) Dist(o Vec2) float64  { return v.Sub(o).Len() }
func (v Vec2) Dot(o Vec2) float64   { return v.X*o.X + v.Y*o.Y }
func (v Vec2) Cross(o Vec2) float64 { return v.X*o.Y - v.Y*o.X }
func (v Vec2) Point() curve.Point   { return curve.Point{X: v.X, Y: v.Y} }
func FromPoint(p curve.Point) Vec2  { return Vec2{X: p.X, Y: p.Y} }
func (v Vec2) String() string       { return fmt.Sprintf("(%g, %g)", v.X, v.Y) }

// Perp returns v rotated a quarter turn counter-clockwise.
func (v Vec2) Perp() Vec2 { return Vec2{-v.Y, v.X} }

// Unit returns v scaled to length 1. The zero vector is returned unchanged.
func (v Vec2) Unit() Vec2 {
	l := v.Len()
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}

// Transform places geometry: reflect about the x axis (optional), scale by
// Magnification, rotate by Rotation degrees counter-clockwise, then
// translate by Origin. This is the GDSII reference order.
type Transform struct {
	Origin        Vec2    `json:"origin"`
	Rotation      float64 `json:"rotation,omitempty"` // degrees
	Magnification float64 `json:"magnification,omitempty"`
	XReflection   bool    `json:"x_reflection,omitempty"`
}

// Translation returns a transform that only moves geometry by v.
func Translation(v Vec2) Transform { return Transform{Origin: v} }

// RotationAbout returns a transform rotating by deg degrees about center.
func RotationAbout(deg float64, center Vec2) Transform {
	s, c := SinCosDeg(deg)
	// Solve origin so that center is a fixed point.
	rc := Vec2{c*center.X - s*center.Y, s*center.X + c*center.Y}
	return Transform{Origin: center.Sub(rc), Rotation: deg}
}

// IsIdentity reports whether t leaves geometry unchanged.
func (t Transform) IsIdentity() bool {
	return t.Origin == (Vec2{}) && math.Mod(t.Rotation, 360) == 0 && t.mag() == 1 && !t.XReflection
}

func (t Transform) mag() float64 {
	if t.Magnification == 0 {
		return 1
	}
	return t.Magnification
}

// Affine returns the transform as an affine matrix. Quarter-turn rotations
// use exact coefficients so placed coordinates stay bit-reproducible.
func (t Transform) Affine() curve.Affine {
	m := t.mag()
	ys := m
	if t.XReflection {
		ys = -m
	}
	s, c := SinCosDeg(t.Rotation)
	rot := curve.Affine{N0: c, N1: s, N2: -s, N3: c}
	return curve.Translate(curve.Vec2{X: t.Origin.X, Y: t.Origin.Y}).
		Mul(rot).
		Mul(curve.Scale(m, ys))
}

// Apply transforms a single point.
func (t Transform) Apply(p Vec2) Vec2 {
	return FromPoint(p.Point().Transform(t.Affine()))
}

// ApplyAll transforms pts into a new slice.
func (t Transform) ApplyAll(pts []Vec2) []Vec2 {
	aff := t.Affine()
	out := make([]Vec2, len(pts))
	for i, p := range pts {
		out[i] = FromPoint(p.Point().Transform(aff))
	}
	return out
}

// SinCosDeg returns the sine and cosine of deg degrees, exact for
// multiples of 90.
func SinCosDeg(deg float64) (s, c float64) {
	r := math.Mod(deg, 360)
	if r < 0 {
		r += 360
	}
	switch r {
	case 0:
		return 0, 1
	case 90:
		return 1, 0
	case 180:
		return 0, -1
	case 270:
		return -1, 0
	}
	return math.Sincos(deg * math.Pi / 180)
}

// Polygon is a closed boundary. The closing vertex is implicit.
type Polygon struct {
	Points   []Vec2 `json:"points"`
	Layer    int    `json:"layer"`
	Datatype int    `json:"datatype"`
}

// Transformed returns a copy of p with t applied to every vertex.
func (p Polygon) Transformed(t Transform) Polygon {
	return Polygon{Points: t.ApplyAll(p.Points), Layer: p.Layer, Datatype: p.Datatype}
}

// PathType selects how a path's ends are drawn.
type PathType int

const (
	PathFlush    PathType = iota // ends flush with the spine endpoints
	PathRound                    // half-circle ends
	PathExtended                 // ends extended by half the width
)

func (k PathType) String() string {
	switch k {
	case PathFlush:
		return "flush"
	case PathRound:
		return "round"
	case PathExtended:
		return "extended"
	default:
		return fmt.Sprintf("PathType(%d)", int(k))
	}
}

// Path is a spine with a constant width, serialized as a GDSII PATH.
type Path struct {
	Spine    []Vec2   `json:"spine"`
	Width    float64  `json:"width"`
	Type     PathType `json:"type"`
	Layer    int      `json:"layer"`
	Datatype int      `json:"datatype"`
}

// Transformed returns a copy of p with t applied to the spine. The width
// scales with the magnification.
func (p Path) Transformed(t Transform) Path {
	q := p
	q.Spine = t.ApplyAll(p.Spine)
	q.Width = p.Width * math.Abs(t.mag())
	return q
}

// Ref places the named cell. Columns and Rows of zero mean a single
// placement; otherwise the reference is an array stepped by ColSpacing
// and RowSpacing in the referenced cell's frame.
type Ref struct {
	Cell       string    `json:"cell"`
	Transform  Transform `json:"transform"`
	Columns    int       `json:"columns,omitempty"`
	Rows       int       `json:"rows,omitempty"`
	ColSpacing Vec2      `json:"col_spacing,omitempty"`
	RowSpacing Vec2      `json:"row_spacing,omitempty"`
}

// IsArray reports whether r repeats its cell.
func (r Ref) IsArray() bool { return r.Columns > 0 || r.Rows > 0 }

// Placements expands r into one transform per array element.
func (r Ref) Placements() []Transform {
	if !r.IsArray() {
		return []Transform{r.Transform}
	}
	cols, rows := max(r.Columns, 1), max(r.Rows, 1)
	out := make([]Transform, 0, cols*rows)
	for j := 0; j < rows; j++ {
		for i := 0; i < cols; i++ {
			off := r.ColSpacing.Scale(float64(i)).Add(r.RowSpacing.Scale(float64(j)))
			t := r.Transform
			// Array steps are expressed in the referenced cell's frame.
			frame := r.Transform
			frame.Origin = Vec2{}
			t.Origin = t.Origin.Add(frame.Apply(off))
			out = append(out, t)
		}
	}
	return out
}
