package clip

import (
	"slices"

	"github.com/chazu/photomask/pkg/layout"
)

// clean drops consecutive duplicate vertices and an explicit closing
// vertex.
func clean(ring []layout.Vec2) []layout.Vec2 {
	out := make([]layout.Vec2, 0, len(ring))
	for _, p := range ring {
		if len(out) > 0 && out[len(out)-1] == p {
			continue
		}
		out = append(out, p)
	}
	for len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	return out
}

// signedArea is positive for counter-clockwise rings.
func signedArea(ring []layout.Vec2) float64 {
	a := 0.0
	for i, p := range ring {
		q := ring[(i+1)%len(ring)]
		a += p.Cross(q)
	}
	return a / 2
}

// orient returns ring wound counter-clockwise when ccw is true.
func orient(ring []layout.Vec2, ccw bool) []layout.Vec2 {
	if (signedArea(ring) > 0) == ccw {
		return ring
	}
	out := slices.Clone(ring)
	slices.Reverse(out)
	return out
}

// ringContains is the even-odd crossing test.
func ringContains(ring []layout.Vec2, pt layout.Vec2) bool {
	in := false
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		a, b := ring[i], ring[j]
		if (a.Y > pt.Y) != (b.Y > pt.Y) &&
			pt.X < (b.X-a.X)*(pt.Y-a.Y)/(b.Y-a.Y)+a.X {
			in = !in
		}
	}
	return in
}
