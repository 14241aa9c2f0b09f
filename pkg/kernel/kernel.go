// Package kernel defines the narrow 2D geometry kernel the layout
// generators depend on. Backends (clip) provide polygon booleans behind
// this interface; bounds, containment and placement are shared helpers
// built on sdfx and the layout transform.
package kernel

import (
	"fmt"

	"github.com/chazu/photomask/pkg/layout"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// DefaultMaxPoints is the vertex limit generators fracture to. It stays
// well under the GDSII boundary limit so that downstream tools which
// append a closing vertex or re-fracture never overflow.
const DefaultMaxPoints = 199

// Kernel is the abstract geometry kernel interface.
type Kernel interface {
	// Union merges overlapping polygons that share a layer and datatype.
	// Polygons on different tags are never merged. The result contains
	// simple polygons without holes.
	Union(polys []layout.Polygon) ([]layout.Polygon, error)

	// Fracture splits every polygon with more than maxPoints vertices into
	// pieces with at most maxPoints vertices each, covering the same area.
	Fracture(polys []layout.Polygon, maxPoints int) ([]layout.Polygon, error)
}

// Transform applies t to every polygon and returns new polygons.
func Transform(polys []layout.Polygon, t layout.Transform) []layout.Polygon {
	out := make([]layout.Polygon, len(polys))
	for i, p := range polys {
		out[i] = p.Transformed(t)
	}
	return out
}

// Bounds returns the axis-aligned bounding box of all vertices. ok is false
// when there are no vertices.
func Bounds(polys []layout.Polygon) (box sdf.Box2, ok bool) {
	for _, p := range polys {
		for _, v := range p.Points {
			pt := v2.Vec{X: v.X, Y: v.Y}
			if !ok {
				box = sdf.Box2{Min: pt, Max: pt}
				ok = true
				continue
			}
			box = box.Include(pt)
		}
	}
	return box, ok
}

// Contains reports whether pt lies strictly inside poly.
func Contains(poly layout.Polygon, pt layout.Vec2) (bool, error) {
	if len(poly.Points) < 3 {
		return false, fmt.Errorf("kernel: polygon has %d vertices, need at least 3", len(poly.Points))
	}
	vs := make([]v2.Vec, len(poly.Points))
	for i, p := range poly.Points {
		vs[i] = v2.Vec{X: p.X, Y: p.Y}
	}
	s, err := sdf.Polygon2D(vs)
	if err != nil {
		return false, fmt.Errorf("kernel: %w", err)
	}
	return s.Evaluate(v2.Vec{X: pt.X, Y: pt.Y}) < 0, nil
}
