// Package waveguide draws waveguide cladding rails: multi-rail flexible
// paths with circular bends, tapered grating surrounds and small rail
// markers.
package waveguide

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/photomask/pkg/layout"
	"honnef.co/go/curve"
)

// ErrGeometry is returned when a waveguide cannot be drawn as requested.
var ErrGeometry = errors.New("waveguide: invalid geometry")

// DefaultTolerance is the bend flattening tolerance in user units.
const DefaultTolerance = 0.01

// Flex is a bundle of parallel rails following a polyline spine. Interior
// corners are rounded with circular arcs of BendRadius; a zero radius
// keeps them sharp.
type Flex struct {
	Start    layout.Vec2   `json:"start"`
	Segments []layout.Vec2 `json:"segments"` // relative moves from Start
	Widths   []float64     `json:"widths"`   // one entry per rail
	// Offset is the distance between adjacent rail centres. Rails are
	// centred on the spine.
	Offset     float64         `json:"offset"`
	BendRadius float64         `json:"bend_radius"`
	Tolerance  float64         `json:"tolerance"`
	Type       layout.PathType `json:"type"`
	Layer      int             `json:"layer"`
	Datatype   int             `json:"datatype"`
}

// Vertices returns the unrounded spine corners.
func (f Flex) Vertices() []layout.Vec2 {
	out := make([]layout.Vec2, 0, len(f.Segments)+1)
	p := f.Start
	out = append(out, p)
	for _, d := range f.Segments {
		p = p.Add(d)
		out = append(out, p)
	}
	return out
}

// Spine returns the centre line with bends flattened to Tolerance.
func (f Flex) Spine() ([]layout.Vec2, error) {
	v := f.Vertices()
	if len(v) < 2 {
		return nil, fmt.Errorf("%w: path needs at least one segment", ErrGeometry)
	}
	for i, d := range f.Segments {
		if d.Len() == 0 {
			return nil, fmt.Errorf("%w: segment %d has zero length", ErrGeometry, i)
		}
	}
	if f.BendRadius < 0 {
		return nil, fmt.Errorf("%w: bend radius %v is negative", ErrGeometry, f.BendRadius)
	}
	if f.BendRadius == 0 || len(v) == 2 {
		return v, nil
	}

	tol := f.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}

	// Tangent lengths consumed at each interior corner.
	cut := make([]float64, len(v))
	turn := make([]float64, len(v))
	for i := 1; i < len(v)-1; i++ {
		in, out := v[i].Sub(v[i-1]).Unit(), v[i+1].Sub(v[i]).Unit()
		turn[i] = math.Atan2(in.Cross(out), in.Dot(out))
		cut[i] = f.BendRadius * math.Tan(math.Abs(turn[i])/2)
	}
	for i := 0; i < len(v)-1; i++ {
		if l := v[i+1].Sub(v[i]).Len(); cut[i]+cut[i+1] > l+1e-9 {
			return nil, fmt.Errorf("%w: segment %d of length %v too short for bend radius %v", ErrGeometry, i, l, f.BendRadius)
		}
	}

	spine := []layout.Vec2{v[0]}
	for i := 1; i < len(v)-1; i++ {
		if turn[i] == 0 {
			continue
		}
		in := v[i].Sub(v[i-1]).Unit()
		a := v[i].Sub(in.Scale(cut[i]))
		spine = appendPoint(spine, a)
		spine = append(spine, arcPoints(a, in, turn[i], f.BendRadius, tol)...)
	}
	return appendPoint(spine, v[len(v)-1]), nil
}

// arcPoints flattens the bend starting at a with heading in, turning by
// sweep radians. The start point is not included.
func arcPoints(a, in layout.Vec2, sweep, r, tol float64) []layout.Vec2 {
	side := in.Perp()
	if sweep < 0 {
		side = side.Neg()
	}
	c := a.Add(side.Scale(r))
	rel := a.Sub(c)
	arc := curve.Arc{
		Center:     c.Point(),
		Radii:      curve.Vec(r, r),
		StartAngle: math.Atan2(rel.Y, rel.X),
		SweepAngle: sweep,
	}
	var out []layout.Vec2
	for el := range curve.Flatten(arc.PathElements(tol), tol) {
		if el.Kind == curve.LineToKind {
			out = append(out, layout.FromPoint(el.P0))
		}
	}
	return out
}

func appendPoint(pts []layout.Vec2, p layout.Vec2) []layout.Vec2 {
	if len(pts) > 0 && pts[len(pts)-1].Dist(p) < 1e-12 {
		return pts
	}
	return append(pts, p)
}

// RailOffsets returns the signed distance of each rail from the spine,
// positive to the left of the direction of travel.
func (f Flex) RailOffsets() []float64 {
	n := len(f.Widths)
	out := make([]float64, n)
	for i := range out {
		out[i] = (float64(i) - float64(n-1)/2) * f.Offset
	}
	return out
}

// Paths returns one GDSII path per rail.
func (f Flex) Paths() ([]layout.Path, error) {
	if len(f.Widths) == 0 {
		return nil, fmt.Errorf("%w: no rails", ErrGeometry)
	}
	spine, err := f.Spine()
	if err != nil {
		return nil, err
	}
	offs := f.RailOffsets()
	paths := make([]layout.Path, len(f.Widths))
	for i, w := range f.Widths {
		if !(w > 0) {
			return nil, fmt.Errorf("%w: rail %d width %v must be positive", ErrGeometry, i, w)
		}
		paths[i] = layout.Path{
			Spine:    Offset(spine, offs[i]),
			Width:    w,
			Type:     f.Type,
			Layer:    f.Layer,
			Datatype: f.Datatype,
		}
	}
	return paths, nil
}

// Offset returns the polyline pts shifted by d along its left normal,
// with mitred interior vertices.
func Offset(pts []layout.Vec2, d float64) []layout.Vec2 {
	out := make([]layout.Vec2, len(pts))
	if d == 0 {
		copy(out, pts)
		return out
	}
	n := len(pts)
	normal := func(i int) layout.Vec2 { return pts[i+1].Sub(pts[i]).Unit().Perp() }
	for i, p := range pts {
		switch {
		case n < 2:
			out[i] = p
		case i == 0:
			out[i] = p.Add(normal(0).Scale(d))
		case i == n-1:
			out[i] = p.Add(normal(n - 2).Scale(d))
		default:
			n0, n1 := normal(i-1), normal(i)
			m := n0.Add(n1).Unit()
			cos := m.Dot(n0)
			if cos < 1e-6 {
				// Reversal; fall back to the incoming normal.
				out[i] = p.Add(n0.Scale(d))
				continue
			}
			out[i] = p.Add(m.Scale(d / cos))
		}
	}
	return out
}
