package grating

import (
	"fmt"
	"math"

	"github.com/chazu/photomask/pkg/kernel"
	"github.com/chazu/photomask/pkg/layout"
)

// Tooth is one generated tooth. Spine is the sampled centre curve and
// Outline the closed band around it (the closing vertex is implicit).
type Tooth struct {
	Q       int           `json:"q"`
	Width   float64       `json:"width"`
	Spine   []layout.Vec2 `json:"spine"`
	Outline []layout.Vec2 `json:"outline"`
}

// Grating is the result of Generate. Teeth and Polygons are in final
// (rotated) coordinates.
type Grating struct {
	Spec  Spec    `json:"spec"`
	Teeth []Tooth `json:"teeth"`
	// Closure holds the vertices appended to the first tooth to close the
	// focusing area. Empty when no closure was applied.
	Closure  []layout.Vec2    `json:"closure,omitempty"`
	Polygons []layout.Polygon `json:"polygons"`
}

// Generate builds the grating described by s. Tooth outlines are merged
// with k.Union and split with k.Fracture to kernel.DefaultMaxPoints
// vertices. Errors wrap ErrDomain for invalid parameters.
func Generate(s Spec, k kernel.Kernel) (*Grating, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if s.Direction == "" {
		s.Direction = PlusY
	}

	var (
		teeth []Tooth
		err   error
	)
	switch {
	case !s.IsFocusing():
		teeth = straightTeeth(s)
	case s.Variant == VariantCircular:
		teeth, err = circularTeeth(s)
	default:
		teeth, err = exactTeeth(s)
	}
	if err != nil {
		return nil, err
	}

	g := &Grating{Spec: s, Teeth: teeth}
	polys := make([]layout.Polygon, len(teeth))
	for i, t := range teeth {
		polys[i] = layout.Polygon{Points: t.Outline, Layer: s.Layer, Datatype: s.Datatype}
	}
	if s.IsFocusing() && s.Variant == VariantExact && s.FocusWidth >= 0 {
		closed, extra := closeFocus(teeth[0].Outline, s.Position, s.FocusWidth)
		polys[0].Points = closed
		g.Closure = extra
	}

	merged, err := k.Union(polys)
	if err != nil {
		return nil, fmt.Errorf("grating: union: %w", err)
	}
	merged, err = k.Fracture(merged, kernel.DefaultMaxPoints)
	if err != nil {
		return nil, fmt.Errorf("grating: fracture: %w", err)
	}

	rot := layout.RotationAbout(s.Direction.Rotation(), s.Position)
	g.Polygons = kernel.Transform(merged, rot)
	for i := range g.Teeth {
		g.Teeth[i].Spine = rot.ApplyAll(g.Teeth[i].Spine)
		g.Teeth[i].Outline = rot.ApplyAll(g.Teeth[i].Outline)
	}
	g.Closure = rot.ApplyAll(g.Closure)
	if len(g.Closure) == 0 {
		g.Closure = nil
	}
	return g, nil
}

// straightTeeth lays out rectangles stacked in +y from the feed point.
func straightTeeth(s Spec) []Tooth {
	h := s.Period * s.FillFraction
	x0, x1 := s.Position.X-s.Width/2, s.Position.X+s.Width/2
	teeth := make([]Tooth, s.Teeth)
	for k := range teeth {
		y0 := s.Position.Y + float64(k)*s.Period
		y1 := y0 + h
		ym := (y0 + y1) / 2
		teeth[k] = Tooth{
			Q:       k,
			Width:   h,
			Spine:   []layout.Vec2{{X: x0, Y: ym}, {X: x1, Y: ym}},
			Outline: []layout.Vec2{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}},
		}
	}
	return teeth
}

// exactTeeth solves the phase-matching curve for orders qmin..qmin+Teeth-1.
func exactTeeth(s Spec) ([]Tooth, error) {
	neff := s.Wavelength/s.Period + s.SinTheta
	c3 := neff*neff - s.SinTheta*s.SinTheta
	if !(c3 > 0) {
		return nil, fmt.Errorf("%w: neff² - sin²θ = %v must be positive", ErrDomain, c3)
	}
	qmin := s.qmin()
	w := s.Width / 2

	teeth := make([]Tooth, 0, s.Teeth)
	for k := range s.Teeth {
		q := qmin + k
		ql := float64(q) * s.Wavelength
		c1 := ql * s.SinTheta
		c2 := ql * ql
		if c2-c3*w*w < 0 {
			return nil, fmt.Errorf("%w: tooth order %d has no real solution across width %v", ErrDomain, q, s.Width)
		}
		f := func(t float64) (layout.Vec2, error) {
			x := s.Width*t - w
			arg := c2 - c3*x*x
			if arg < 0 {
				// Round-off at the ends of a tangent curve.
				if arg > -1e-12*c2 {
					arg = 0
				} else {
					return layout.Vec2{}, fmt.Errorf("%w: negative root argument %v at order %d", ErrDomain, arg, q)
				}
			}
			y := (c1 + neff*math.Sqrt(arg)) / c3
			return s.Position.Add(layout.V(x, y)), nil
		}
		tooth, err := buildTooth(f, q, s.bandWidth(k), s)
		if err != nil {
			return nil, err
		}
		teeth = append(teeth, tooth)
	}
	return teeth, nil
}

// circularTeeth lays out arcs of radius q·Period + FocusDistance.
func circularTeeth(s Spec) ([]Tooth, error) {
	if s.FocusDistance == 0 {
		return nil, fmt.Errorf("%w: circular variant needs a non-zero focus distance", ErrDomain)
	}
	if !(s.FocusWidth > 0) {
		return nil, fmt.Errorf("%w: circular variant needs a positive focus width aperture, got %v", ErrDomain, s.FocusWidth)
	}
	if s.FocusWidth/2 > s.FocusDistance {
		return nil, fmt.Errorf("%w: aperture %v wider than twice the focus distance %v", ErrDomain, s.FocusWidth, s.FocusDistance)
	}

	teeth := make([]Tooth, 0, s.Teeth)
	for q := range s.Teeth {
		c1 := float64(q)*s.Period + s.FocusDistance
		c2 := c1 / s.FocusDistance * s.FocusWidth / 2
		f := func(t float64) (layout.Vec2, error) {
			x := c2 * (2*t - 1)
			arg := c1*c1 - x*x
			if arg < 0 {
				return layout.Vec2{}, fmt.Errorf("%w: negative root argument %v at order %d", ErrDomain, arg, q)
			}
			return s.Position.Add(layout.V(x, math.Sqrt(arg))), nil
		}
		tooth, err := buildTooth(f, q, s.bandWidth(q), s)
		if err != nil {
			return nil, err
		}
		teeth = append(teeth, tooth)
	}
	return teeth, nil
}

func buildTooth(f CurveFunc, q int, width float64, s Spec) (Tooth, error) {
	if !(width > 0) {
		return Tooth{}, fmt.Errorf("%w: tooth %d band width %v must be positive", ErrDomain, q, width)
	}
	spine, err := Sample(f, s.Tolerance, s.MaxPoints)
	if err != nil {
		return Tooth{}, err
	}
	return Tooth{Q: q, Width: width, Spine: spine, Outline: Band(spine, width)}, nil
}

// Band returns the closed outline of a band of the given width centred on
// spine: the side offset along the left normal in spine order, followed
// by the right side reversed.
func Band(spine []layout.Vec2, width float64) []layout.Vec2 {
	n := len(spine)
	out := make([]layout.Vec2, 2*n)
	h := width / 2
	for i, p := range spine {
		var tan layout.Vec2
		switch {
		case n < 2:
		case i == 0:
			tan = spine[1].Sub(spine[0])
		case i == n-1:
			tan = spine[n-1].Sub(spine[n-2])
		default:
			tan = spine[i+1].Sub(spine[i-1])
		}
		nrm := tan.Unit().Perp().Scale(h)
		out[i] = p.Add(nrm)
		out[2*n-1-i] = p.Sub(nrm)
	}
	return out
}

// closeFocus keeps the first half of outline (the outer side of the first
// tooth) and appends the feed point, or a segment of width fw centred on
// it, forming the focusing area.
func closeFocus(outline []layout.Vec2, pos layout.Vec2, fw float64) (closed, extra []layout.Vec2) {
	half := outline[:len(outline)/2]
	if fw == 0 {
		extra = []layout.Vec2{pos}
	} else {
		extra = []layout.Vec2{
			{X: pos.X + fw/2, Y: pos.Y},
			{X: pos.X - fw/2, Y: pos.Y},
		}
	}
	closed = make([]layout.Vec2, 0, len(half)+len(extra))
	closed = append(closed, half...)
	closed = append(closed, extra...)
	return closed, extra
}
