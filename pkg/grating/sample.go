package grating

import (
	"fmt"

	"honnef.co/go/curve"

	"github.com/chazu/photomask/pkg/layout"
)

// CurveFunc evaluates a parametric curve at t ∈ [0, 1].
type CurveFunc func(t float64) (layout.Vec2, error)

const (
	initialSegments = 4
	maxPasses       = 30
)

// Sample evaluates f on [0, 1] and bisects every segment whose chord
// midpoint is farther than tol from the curve at the parameter midpoint.
// maxPoints > 0 caps the number of returned points; refinement stops when
// the cap is reached.
func Sample(f CurveFunc, tol float64, maxPoints int) ([]layout.Vec2, error) {
	_, pts, err := sample(f, tol, maxPoints)
	return pts, err
}

func sample(f CurveFunc, tol float64, maxPoints int) ([]float64, []layout.Vec2, error) {
	if !(tol > 0) {
		return nil, nil, fmt.Errorf("%w: tolerance %v must be positive", ErrDomain, tol)
	}
	n := initialSegments
	if maxPoints > 0 && maxPoints-1 < n {
		n = maxPoints - 1
	}
	ts := make([]float64, n+1)
	pts := make([]layout.Vec2, n+1)
	for i := range ts {
		ts[i] = float64(i) / float64(n)
		p, err := f(ts[i])
		if err != nil {
			return nil, nil, err
		}
		pts[i] = p
	}

	for range maxPasses {
		nextT := make([]float64, 0, 2*len(ts))
		nextP := make([]layout.Vec2, 0, 2*len(pts))
		added := 0
		for i := 0; i < len(ts)-1; i++ {
			nextT = append(nextT, ts[i])
			nextP = append(nextP, pts[i])
			if maxPoints > 0 && len(ts)+added >= maxPoints {
				continue
			}
			tm := (ts[i] + ts[i+1]) / 2
			pm, err := f(tm)
			if err != nil {
				return nil, nil, err
			}
			if chordError(pts[i], pts[i+1], pm) > tol {
				nextT = append(nextT, tm)
				nextP = append(nextP, pm)
				added++
			}
		}
		nextT = append(nextT, ts[len(ts)-1])
		nextP = append(nextP, pts[len(pts)-1])
		ts, pts = nextT, nextP
		if added == 0 {
			break
		}
	}
	return ts, pts, nil
}

// chordError is the distance from the chord midpoint of a and b to the
// curve point pm sampled at the parameter midpoint.
func chordError(a, b, pm layout.Vec2) float64 {
	mid := curve.Pt(a.X, a.Y).Midpoint(curve.Pt(b.X, b.Y))
	return mid.Distance(curve.Pt(pm.X, pm.Y))
}
