package flatten

import (
	"fmt"

	"honnef.co/go/curve"

	"github.com/chazu/photomask/pkg/layout"
)

// miterLimit matches the sharp corners GDSII viewers draw for paths.
const miterLimit = 16

func capFor(k layout.PathType) curve.Cap {
	switch k {
	case layout.PathRound:
		return curve.RoundCap
	case layout.PathExtended:
		return curve.SquareCap
	default:
		return curve.ButtCap
	}
}

// PathPolygons strokes p into closed boundaries on p's layer and
// datatype. Curved caps are flattened to within tol.
func PathPolygons(p layout.Path, tol float64) ([]layout.Polygon, error) {
	if len(p.Spine) < 2 {
		return nil, fmt.Errorf("path has %d spine points, need at least 2", len(p.Spine))
	}
	if !(p.Width > 0) {
		return nil, fmt.Errorf("path width %v must be positive", p.Width)
	}
	if tol <= 0 {
		tol = DefaultTolerance
	}

	var spine curve.BezPath
	spine.MoveTo(p.Spine[0].Point())
	for _, v := range p.Spine[1:] {
		spine.LineTo(v.Point())
	}
	style := curve.Stroke{
		Width:      p.Width,
		Join:       curve.MiterJoin,
		MiterLimit: miterLimit,
		StartCap:   capFor(p.Type),
		EndCap:     capFor(p.Type),
	}
	outline := curve.StrokePath(spine.Elements(), style, curve.StrokeOpts{}, tol)

	var out []layout.Polygon
	var ring []layout.Vec2
	emit := func() {
		if len(ring) >= 3 {
			if ring[0] == ring[len(ring)-1] {
				ring = ring[:len(ring)-1]
			}
			out = append(out, layout.Polygon{Points: ring, Layer: p.Layer, Datatype: p.Datatype})
		}
		ring = nil
	}
	for el := range curve.Flatten(outline, tol) {
		switch el.Kind {
		case curve.MoveToKind:
			emit()
			ring = append(ring, layout.FromPoint(el.P0))
		case curve.LineToKind:
			v := layout.FromPoint(el.P0)
			if n := len(ring); n == 0 || ring[n-1] != v {
				ring = append(ring, v)
			}
		case curve.ClosePathKind:
			emit()
		}
	}
	emit()
	if len(out) == 0 {
		return nil, fmt.Errorf("path stroke produced no outline")
	}
	return out, nil
}
