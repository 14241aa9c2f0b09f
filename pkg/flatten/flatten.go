// Package flatten walks a cell hierarchy and produces flat polygon
// geometry using a geometry kernel. References are expanded through a
// transform stack and paths are stroked into boundaries.
package flatten

import (
	"fmt"

	"honnef.co/go/curve"

	"github.com/chazu/photomask/pkg/kernel"
	"github.com/chazu/photomask/pkg/layout"
)

// DefaultTolerance bounds the distance between a stroked path's round
// caps and their flattened outline, in user units.
const DefaultTolerance = 0.001

// Options controls a flattening pass.
type Options struct {
	Tolerance float64 // DefaultTolerance when zero
	MaxDepth  int     // reference levels to expand; zero means unlimited
	Merge     bool    // union overlapping polygons per tag through the kernel
}

// transformStack accumulates placements during the hierarchy walk.
type transformStack struct {
	frames []curve.Affine
}

func newTransformStack() *transformStack {
	return &transformStack{frames: []curve.Affine{curve.Identity}}
}

func (ts *transformStack) push(t layout.Transform) {
	ts.frames = append(ts.frames, ts.top().Mul(t.Affine()))
}

func (ts *transformStack) pop() {
	if len(ts.frames) > 1 {
		ts.frames = ts.frames[:len(ts.frames)-1]
	}
}

func (ts *transformStack) top() curve.Affine {
	return ts.frames[len(ts.frames)-1]
}

func (ts *transformStack) depth() int {
	return len(ts.frames) - 1
}

// Flatten expands the cell named top into polygons in top's frame. The
// walk is read-only and never mutates the library. When opts.Merge is set
// the result is unioned per tag with k; k may be nil otherwise.
func Flatten(lib *layout.Library, top string, k kernel.Kernel, opts Options) (*kernel.Shapes, error) {
	root := lib.Lookup(top)
	if root == nil {
		return nil, fmt.Errorf("flatten: no cell named %q", top)
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultTolerance
	}
	w := &walker{lib: lib, opts: opts, ts: newTransformStack(), active: make(map[string]bool)}
	if err := w.walkCell(root); err != nil {
		return nil, err
	}
	polys := w.out
	if opts.Merge {
		if k == nil {
			return nil, fmt.Errorf("flatten: merge requested without a kernel")
		}
		merged, err := k.Union(polys)
		if err != nil {
			return nil, fmt.Errorf("flatten: union of %s: %w", top, err)
		}
		polys = merged
	}
	return &kernel.Shapes{Polygons: polys, CellName: top}, nil
}

type walker struct {
	lib    *layout.Library
	opts   Options
	ts     *transformStack
	active map[string]bool
	out    []layout.Polygon
}

// walkCell emits c's own geometry under the current transform, then
// recurses into its references.
func (w *walker) walkCell(c *layout.Cell) error {
	if w.active[c.Name] {
		return fmt.Errorf("flatten: cell %q references itself through a cycle", c.Name)
	}
	w.active[c.Name] = true
	defer delete(w.active, c.Name)

	aff := w.ts.top()
	for _, p := range c.Polygons {
		w.out = append(w.out, transformPolygon(p, aff))
	}
	for _, p := range c.Paths {
		polys, err := PathPolygons(p, w.opts.Tolerance)
		if err != nil {
			return fmt.Errorf("flatten: cell %q: %w", c.Name, err)
		}
		for _, q := range polys {
			w.out = append(w.out, transformPolygon(q, aff))
		}
	}

	if w.opts.MaxDepth > 0 && w.ts.depth() >= w.opts.MaxDepth {
		return nil
	}
	for _, r := range c.Refs {
		child := w.lib.Lookup(r.Cell)
		if child == nil {
			return fmt.Errorf("flatten: cell %q references undefined cell %q", c.Name, r.Cell)
		}
		for _, t := range r.Placements() {
			w.ts.push(t)
			err := w.walkCell(child)
			w.ts.pop()
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func transformPolygon(p layout.Polygon, aff curve.Affine) layout.Polygon {
	pts := make([]layout.Vec2, len(p.Points))
	for i, v := range p.Points {
		pts[i] = layout.FromPoint(v.Point().Transform(aff))
	}
	return layout.Polygon{Points: pts, Layer: p.Layer, Datatype: p.Datatype}
}
