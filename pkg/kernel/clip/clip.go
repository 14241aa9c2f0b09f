// Package clip implements the kernel.Kernel interface using the
// github.com/ctessum/geom polygon clipping library.
package clip

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/chazu/photomask/pkg/kernel"
	"github.com/chazu/photomask/pkg/layout"
	"github.com/ctessum/geom"
)

// Compile-time interface check.
var _ kernel.Kernel = (*ClipKernel)(nil)

// maxDepth bounds fracture recursion. Each level halves the vertex count
// of a reasonable polygon, so hitting it means the clipper is not making
// progress.
const maxDepth = 48

// areaEpsilon discards slivers produced by clipping round-off, in square
// user units.
const areaEpsilon = 1e-12

// areaTolerance is the relative area a single cut may lose to round-off.
const areaTolerance = 1e-7

// ErrNoProgress is returned when fracturing cannot reduce a polygon.
var ErrNoProgress = errors.New("clip: fracture made no progress")

// ClipKernel implements kernel.Kernel using ctessum/geom.
type ClipKernel struct{}

// New returns a new ClipKernel.
func New() *ClipKernel {
	return &ClipKernel{}
}

// Union merges polygons per layer/datatype. Output order follows the first
// appearance of each tag in polys.
func (k *ClipKernel) Union(polys []layout.Polygon) ([]layout.Polygon, error) {
	var order []kernel.Tag
	groups := make(map[kernel.Tag]geom.Polygon)
	for _, p := range polys {
		if len(p.Points) < 3 {
			return nil, fmt.Errorf("clip: union: polygon has %d vertices", len(p.Points))
		}
		t := kernel.TagOf(p)
		acc, ok := groups[t]
		if !ok {
			order = append(order, t)
			groups[t] = toGeom(p.Points)
			continue
		}
		groups[t] = merge(acc.Union(toGeom(p.Points)))
	}

	var out []layout.Polygon
	for _, t := range order {
		pieces, err := resolveHoles(groups[t], 0)
		if err != nil {
			return nil, fmt.Errorf("clip: union: %w", err)
		}
		for _, ring := range pieces {
			out = append(out, layout.Polygon{Points: ring, Layer: t.Layer, Datatype: t.Datatype})
		}
	}
	return out, nil
}

// Fracture splits oversize polygons by repeatedly cutting them in half
// across their longer bounding-box side.
func (k *ClipKernel) Fracture(polys []layout.Polygon, maxPoints int) ([]layout.Polygon, error) {
	if maxPoints < 4 {
		return nil, fmt.Errorf("clip: fracture: maxPoints %d must be at least 4", maxPoints)
	}
	var out []layout.Polygon
	for _, p := range polys {
		if len(p.Points) <= maxPoints {
			out = append(out, p)
			continue
		}
		rings, err := fracture(clean(p.Points), maxPoints, 0)
		if err != nil {
			return nil, fmt.Errorf("clip: fracture: %w", err)
		}
		for _, r := range rings {
			out = append(out, layout.Polygon{Points: r, Layer: p.Layer, Datatype: p.Datatype})
		}
	}
	return out, nil
}

func fracture(ring []layout.Vec2, maxPoints, depth int) ([][]layout.Vec2, error) {
	if len(ring) <= maxPoints {
		return [][]layout.Vec2{ring}, nil
	}
	if depth > maxDepth {
		return nil, fmt.Errorf("%w after %d cuts (%d vertices left)", ErrNoProgress, depth, len(ring))
	}

	lo, hi := halves(ring)
	poly := toGeom(ring)
	var pieces [][]layout.Vec2
	for _, half := range []*geom.Bounds{lo, hi} {
		p, err := resolveHoles(merge(poly.Intersection(half)), depth+1)
		if err != nil {
			return nil, err
		}
		pieces = append(pieces, p...)
	}

	want, got := math.Abs(signedArea(ring)), 0.0
	for _, p := range pieces {
		got += math.Abs(signedArea(p))
	}
	if math.Abs(got-want) > areaTolerance*want+areaEpsilon {
		return nil, fmt.Errorf("%w: cut kept area %g of %g", ErrNoProgress, got, want)
	}

	var out [][]layout.Vec2
	for _, piece := range pieces {
		sub, err := fracture(piece, maxPoints, depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}

// halves returns two boxes splitting ring's bounds near the median vertex
// coordinate of its longer side, so each half keeps about half the
// vertices.
func halves(ring []layout.Vec2) (lo, hi *geom.Bounds) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range ring {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	// Pad so the boxes strictly enclose the polygon.
	pad := math.Max(maxX-minX, maxY-minY) + 1
	minX, minY, maxX, maxY = minX-pad, minY-pad, maxX+pad, maxY+pad

	if maxX-minX >= maxY-minY {
		cut := median(ring, func(p layout.Vec2) float64 { return p.X })
		return &geom.Bounds{Min: geom.Point{X: minX, Y: minY}, Max: geom.Point{X: cut, Y: maxY}},
			&geom.Bounds{Min: geom.Point{X: cut, Y: minY}, Max: geom.Point{X: maxX, Y: maxY}}
	}
	cut := median(ring, func(p layout.Vec2) float64 { return p.Y })
	return &geom.Bounds{Min: geom.Point{X: minX, Y: minY}, Max: geom.Point{X: maxX, Y: cut}},
		&geom.Bounds{Min: geom.Point{X: minX, Y: cut}, Max: geom.Point{X: maxX, Y: maxY}}
}

// median returns a cut coordinate near the median of coord over ring that
// lies strictly between two distinct vertex coordinates. A cut through a
// vertex makes the clipper emit degenerate edges along the box side.
func median(ring []layout.Vec2, coord func(layout.Vec2) float64) float64 {
	vs := make([]float64, len(ring))
	for i, p := range ring {
		vs[i] = coord(p)
	}
	slices.Sort(vs)
	mid := len(vs) / 2
	for d := 0; mid-d >= 1 || mid+d < len(vs); d++ {
		for _, k := range []int{mid - d, mid + d} {
			if k >= 1 && k < len(vs) && vs[k-1] != vs[k] {
				return (vs[k-1] + vs[k]) / 2
			}
		}
	}
	return vs[0]
}

// resolveHoles turns a clipper result, which may contain hole rings, into
// simple outer rings. A polygon with holes is cut through its first hole
// and each side resolved again.
func resolveHoles(p geom.Polygon, depth int) ([][]layout.Vec2, error) {
	var rings [][]layout.Vec2
	for _, path := range p {
		r := clean(fromGeom(path))
		if len(r) >= 3 && math.Abs(signedArea(r)) > areaEpsilon {
			rings = append(rings, r)
		}
	}

	var outers, holes [][]layout.Vec2
	for i, r := range rings {
		depthIn := 0
		for j, o := range rings {
			if i != j && ringContains(o, r[0]) {
				depthIn++
			}
		}
		if depthIn%2 == 0 {
			outers = append(outers, orient(r, true))
		} else {
			holes = append(holes, r)
		}
	}
	if len(holes) == 0 {
		return outers, nil
	}
	if depth > maxDepth {
		return nil, fmt.Errorf("%w resolving holes", ErrNoProgress)
	}

	// Cut vertically through the first hole's leftmost vertex.
	h := holes[0]
	cut := h[0].X
	for _, v := range h {
		cut = math.Min(cut, v.X)
	}
	// Use the hole's horizontal middle so both sides get part of it.
	hmax := math.Inf(-1)
	for _, v := range h {
		hmax = math.Max(hmax, v.X)
	}
	cut = (cut + hmax) / 2

	b := p.Bounds()
	pad := math.Max(b.Max.X-b.Min.X, b.Max.Y-b.Min.Y) + 1
	left := &geom.Bounds{Min: geom.Point{X: b.Min.X - pad, Y: b.Min.Y - pad}, Max: geom.Point{X: cut, Y: b.Max.Y + pad}}
	right := &geom.Bounds{Min: geom.Point{X: cut, Y: b.Min.Y - pad}, Max: geom.Point{X: b.Max.X + pad, Y: b.Max.Y + pad}}

	var out [][]layout.Vec2
	for _, side := range []*geom.Bounds{left, right} {
		pieces, err := resolveHoles(merge(p.Intersection(side)), depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, pieces...)
	}
	return out, nil
}

func toGeom(pts []layout.Vec2) geom.Polygon {
	path := make(geom.Path, len(pts))
	for i, p := range pts {
		path[i] = geom.Point{X: p.X, Y: p.Y}
	}
	return geom.Polygon{path}
}

// merge flattens a clipper result into a single polygon whose rings are
// classified later by even-odd nesting.
func merge(pg geom.Polygonal) geom.Polygon {
	if pg == nil {
		return nil
	}
	var out geom.Polygon
	for _, p := range pg.Polygons() {
		out = append(out, p...)
	}
	return out
}

func fromGeom(path geom.Path) []layout.Vec2 {
	out := make([]layout.Vec2, len(path))
	for i, p := range path {
		out[i] = layout.Vec2{X: p.X, Y: p.Y}
	}
	return out
}
