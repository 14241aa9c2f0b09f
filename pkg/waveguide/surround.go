package waveguide

import (
	"fmt"

	"github.com/chazu/photomask/pkg/layout"
)

// Heading returns the unit vector of a compass direction "+x", "-x", "+y"
// or "-y".
func Heading(dir string) (layout.Vec2, error) {
	switch dir {
	case "+x":
		return layout.V(1, 0), nil
	case "-x":
		return layout.V(-1, 0), nil
	case "+y", "":
		return layout.V(0, 1), nil
	case "-y":
		return layout.V(0, -1), nil
	}
	return layout.Vec2{}, fmt.Errorf("%w: unknown direction %q", ErrGeometry, dir)
}

// Taper is a pair of straight rails of equal width whose centre distance
// changes linearly from StartDistance to EndDistance over Length.
type Taper struct {
	Origin        layout.Vec2 `json:"origin"`
	Direction     string      `json:"direction"`
	Length        float64     `json:"length"`
	RailWidth     float64     `json:"rail_width"`
	StartDistance float64     `json:"start_distance"`
	EndDistance   float64     `json:"end_distance"`
	Layer         int         `json:"layer"`
	Datatype      int         `json:"datatype"`
}

// Polygons returns the two rails as quadrilaterals, right rail first.
func (t Taper) Polygons() ([]layout.Polygon, error) {
	u, err := Heading(t.Direction)
	if err != nil {
		return nil, err
	}
	switch {
	case !(t.Length > 0):
		return nil, fmt.Errorf("%w: length %v must be positive", ErrGeometry, t.Length)
	case !(t.RailWidth > 0):
		return nil, fmt.Errorf("%w: rail width %v must be positive", ErrGeometry, t.RailWidth)
	case t.StartDistance < t.RailWidth || t.EndDistance < t.RailWidth:
		return nil, fmt.Errorf("%w: rails of width %v overlap at distance %v..%v", ErrGeometry, t.RailWidth, t.StartDistance, t.EndDistance)
	}
	n := u.Perp()
	end := t.Origin.Add(u.Scale(t.Length))
	hw := t.RailWidth / 2
	out := make([]layout.Polygon, 0, 2)
	for _, s := range []float64{-1, 1} {
		c0 := t.Origin.Add(n.Scale(s * t.StartDistance / 2))
		c1 := end.Add(n.Scale(s * t.EndDistance / 2))
		out = append(out, layout.Polygon{
			Points: []layout.Vec2{
				c0.Sub(n.Scale(hw)),
				c1.Sub(n.Scale(hw)),
				c1.Add(n.Scale(hw)),
				c0.Add(n.Scale(hw)),
			},
			Layer:    t.Layer,
			Datatype: t.Datatype,
		})
	}
	return out, nil
}

// Surround returns the cladding around a grating fed by a waveguide of
// width wgWidth: rails of width margin that open from margin+wgWidth to
// margin+finalGap over length.
func Surround(origin layout.Vec2, dir string, length, wgWidth, margin, finalGap float64, layer, datatype int) Taper {
	return Taper{
		Origin:        origin,
		Direction:     dir,
		Length:        length,
		RailWidth:     margin,
		StartDistance: margin + wgWidth,
		EndDistance:   margin + finalGap,
		Layer:         layer,
		Datatype:      datatype,
	}
}

// Marker returns a short rail pair of length margin pointing -y with
// centre distance 3·margin+wgWidth.
func Marker(origin layout.Vec2, wgWidth, margin float64, layer, datatype int) Taper {
	d := 3*margin + wgWidth
	return Taper{
		Origin:        origin,
		Direction:     "-y",
		Length:        margin,
		RailWidth:     margin,
		StartDistance: d,
		EndDistance:   d,
		Layer:         layer,
		Datatype:      datatype,
	}
}
