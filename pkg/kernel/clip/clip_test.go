package clip

import (
	"errors"
	"math"
	"testing"

	"github.com/chazu/photomask/pkg/kernel"
	"github.com/chazu/photomask/pkg/layout"
)

func rect(x0, y0, x1, y1 float64, layer int) layout.Polygon {
	return layout.Polygon{
		Points: []layout.Vec2{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}},
		Layer:  layer,
	}
}

func circle(n int, r float64) layout.Polygon {
	pts := make([]layout.Vec2, n)
	for i := range pts {
		s, c := math.Sincos(2 * math.Pi * float64(i) / float64(n))
		pts[i] = layout.V(r*c, r*s)
	}
	return layout.Polygon{Points: pts, Layer: 1}
}

func shifted(p layout.Polygon, dx, dy float64) layout.Polygon {
	pts := make([]layout.Vec2, len(p.Points))
	for i, v := range p.Points {
		pts[i] = layout.V(v.X+dx, v.Y+dy)
	}
	return layout.Polygon{Points: pts, Layer: p.Layer}
}

// staircase is a monotone step outline with many vertices sharing each
// x and y coordinate.
func staircase(steps int) layout.Polygon {
	pts := []layout.Vec2{{0, 0}}
	for i := 0; i < steps; i++ {
		x, y := float64(i+1), float64(i)
		pts = append(pts, layout.V(x, y), layout.V(x, y+1))
	}
	pts = append(pts, layout.V(0, float64(steps)))
	return layout.Polygon{Points: pts, Layer: 1}
}

func totalArea(polys []layout.Polygon) float64 {
	a := 0.0
	for _, p := range polys {
		a += math.Abs(signedArea(p.Points))
	}
	return a
}

func TestUnionOverlapping(t *testing.T) {
	k := New()
	out, err := k.Union([]layout.Polygon{rect(0, 0, 2, 1, 1), rect(1, 0, 3, 1, 1)})
	if err != nil {
		t.Fatalf("Union: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("Union produced %d polygons, want 1", len(out))
	}
	if a := totalArea(out); math.Abs(a-3) > 1e-9 {
		t.Errorf("area = %v, want 3", a)
	}
}

func TestUnionKeepsTagsApart(t *testing.T) {
	k := New()
	out, err := k.Union([]layout.Polygon{rect(0, 0, 2, 1, 1), rect(1, 0, 3, 1, 2), rect(5, 5, 6, 6, 1)})
	if err != nil {
		t.Fatalf("Union: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("Union produced %d polygons, want 3", len(out))
	}
	layers := map[int]int{}
	for _, p := range out {
		layers[p.Layer]++
	}
	if layers[1] != 2 || layers[2] != 1 {
		t.Errorf("per-layer counts = %v, want map[1:2 2:1]", layers)
	}
}

func TestUnionResolvesHoles(t *testing.T) {
	// A frame of four bars around a 2x2 hole.
	frame := []layout.Polygon{
		rect(0, 0, 4, 1, 1),
		rect(0, 3, 4, 4, 1),
		rect(0, 0, 1, 4, 1),
		rect(3, 0, 4, 4, 1),
	}
	out, err := New().Union(frame)
	if err != nil {
		t.Fatalf("Union: %v", err)
	}
	if a := totalArea(out); math.Abs(a-12) > 1e-6 {
		t.Errorf("area = %v, want 12", a)
	}
	for i, p := range out {
		if ringContains(p.Points, layout.V(2, 2)) {
			t.Errorf("polygon %d covers the hole centre", i)
		}
		if signedArea(p.Points) <= 0 {
			t.Errorf("polygon %d is not counter-clockwise", i)
		}
	}
}

func TestUnionRejectsDegenerate(t *testing.T) {
	_, err := New().Union([]layout.Polygon{{Points: []layout.Vec2{{0, 0}, {1, 1}}}})
	if err == nil {
		t.Error("Union of a two-point polygon should fail")
	}
}

func TestFracture(t *testing.T) {
	tests := []struct {
		name      string
		poly      layout.Polygon
		maxPoints int
		wantOne   bool
	}{
		{"small passes through", rect(0, 0, 1, 1, 1), kernel.DefaultMaxPoints, true},
		{"circle 400", circle(400, 10), kernel.DefaultMaxPoints, false},
		{"circle 1000 tight", circle(1000, 50), 16, false},
		{"odd circle off centre", shifted(circle(401, 7), 3.5, -12), kernel.DefaultMaxPoints, false},
		{"staircase", staircase(120), 16, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := New().Fracture([]layout.Polygon{tt.poly}, tt.maxPoints)
			if err != nil {
				t.Fatalf("Fracture: %v", err)
			}
			if tt.wantOne && len(out) != 1 {
				t.Fatalf("got %d pieces, want 1", len(out))
			}
			if !tt.wantOne && len(out) < 2 {
				t.Fatalf("got %d pieces, want several", len(out))
			}
			for i, p := range out {
				if len(p.Points) > tt.maxPoints {
					t.Errorf("piece %d has %d vertices > %d", i, len(p.Points), tt.maxPoints)
				}
				if p.Layer != tt.poly.Layer {
					t.Errorf("piece %d layer %d, want %d", i, p.Layer, tt.poly.Layer)
				}
			}
			want := math.Abs(signedArea(tt.poly.Points))
			if got := totalArea(out); math.Abs(got-want) > 1e-6*want {
				t.Errorf("area %v, want %v", got, want)
			}
		})
	}
}

func TestMedianAvoidsVertices(t *testing.T) {
	x := func(p layout.Vec2) float64 { return p.X }
	tests := []struct {
		name string
		ring []layout.Vec2
	}{
		{"symmetric circle", circle(400, 10).Points},
		{"odd circle", circle(401, 3).Points},
		{"repeated median", []layout.Vec2{{0, 0}, {1, 0}, {1, 1}, {1, 2}, {1, 3}, {2, 3}}},
		{"staircase", staircase(30).Points},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cut := median(tt.ring, x)
			lo, hi := math.Inf(1), math.Inf(-1)
			for _, p := range tt.ring {
				if p.X == cut {
					t.Fatalf("cut %v passes through vertex %v", cut, p)
				}
				lo, hi = math.Min(lo, p.X), math.Max(hi, p.X)
			}
			if cut <= lo || cut >= hi {
				t.Errorf("cut %v outside (%v, %v)", cut, lo, hi)
			}
		})
	}
}

func TestFractureRejectsTinyLimit(t *testing.T) {
	_, err := New().Fracture([]layout.Polygon{circle(10, 1)}, 3)
	if err == nil {
		t.Error("maxPoints below 4 should fail")
	}
	if errors.Is(err, ErrNoProgress) {
		t.Error("argument error should not be reported as ErrNoProgress")
	}
}

func TestRingHelpers(t *testing.T) {
	sq := []layout.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}
	c := clean(sq)
	if len(c) != 4 {
		t.Errorf("clean kept %d vertices, want 4", len(c))
	}
	if signedArea(c) != 1 {
		t.Errorf("signedArea = %v, want 1", signedArea(c))
	}
	cw := orient(c, false)
	if signedArea(cw) != -1 {
		t.Errorf("orient(cw) area = %v, want -1", signedArea(cw))
	}
	if !ringContains(c, layout.V(0.5, 0.5)) || ringContains(c, layout.V(1.5, 0.5)) {
		t.Error("ringContains gave the wrong answer")
	}
}
