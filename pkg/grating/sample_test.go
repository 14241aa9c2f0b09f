package grating

import (
	"errors"
	"math"
	"testing"

	"github.com/chazu/photomask/pkg/layout"
)

func TestSampleWithinTolerance(t *testing.T) {
	arc := func(t float64) (layout.Vec2, error) {
		s, c := math.Sincos(math.Pi * t)
		return layout.V(10*c, 10*s), nil
	}
	for _, tol := range []float64{0.1, 0.01, 0.001} {
		ts, pts, err := sample(arc, tol, 0)
		if err != nil {
			t.Fatal(err)
		}
		if ts[0] != 0 || ts[len(ts)-1] != 1 {
			t.Fatalf("tol %v: parameters span [%v, %v], want [0, 1]", tol, ts[0], ts[len(ts)-1])
		}
		for i := 0; i < len(ts)-1; i++ {
			pm, _ := arc((ts[i] + ts[i+1]) / 2)
			chord := pts[i].Add(pts[i+1]).Scale(0.5)
			if d := chord.Dist(pm); d > tol {
				t.Errorf("tol %v: segment %d deviates by %v", tol, i, d)
			}
		}
	}
}

func TestChordError(t *testing.T) {
	tests := []struct {
		name     string
		a, b, pm layout.Vec2
		want     float64
	}{
		{"on chord", layout.V(0, 0), layout.V(2, 0), layout.V(1, 0), 0},
		{"bulge", layout.V(0, 0), layout.V(2, 0), layout.V(1, 0.5), 0.5},
		{"skewed", layout.V(-1, 1), layout.V(3, 5), layout.V(4, 7), 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := chordError(tt.a, tt.b, tt.pm); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("chordError = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSampleStraightLineIsMinimal(t *testing.T) {
	line := func(t float64) (layout.Vec2, error) { return layout.V(t, 2*t), nil }
	pts, err := Sample(line, 1e-6, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(pts) != initialSegments+1 {
		t.Errorf("straight line sampled with %d points, want %d", len(pts), initialSegments+1)
	}
}

func TestSamplePropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	f := func(t float64) (layout.Vec2, error) {
		if t > 0.5 {
			return layout.Vec2{}, boom
		}
		return layout.V(t, 0), nil
	}
	if _, err := Sample(f, 0.1, 0); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if _, err := Sample(f, 0, 0); !errors.Is(err, ErrDomain) {
		t.Errorf("zero tolerance err = %v, want ErrDomain", err)
	}
}

func TestBandWidth(t *testing.T) {
	spine := []layout.Vec2{{0, 0}, {1, 0}, {2, 0}}
	out := Band(spine, 0.5)
	want := []layout.Vec2{{0, 0.25}, {1, 0.25}, {2, 0.25}, {2, -0.25}, {1, -0.25}, {0, -0.25}}
	for i := range want {
		if out[i].Dist(want[i]) > 1e-15 {
			t.Errorf("Band[%d] = %v, want %v", i, out[i], want[i])
		}
	}
}
