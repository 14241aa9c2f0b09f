// Package posts builds diffractive-layer post arrays from phase masks.
//
// Each layer is a column of rectangular posts at a fixed x. Post i sits on
// a regular pitch in y and its half-height is proportional to a decimated
// mask sample; posts below a threshold are omitted, so output is sparse.
package posts

import (
	"errors"
	"fmt"

	"github.com/chazu/photomask/pkg/layout"
	"gonum.org/v1/gonum/mat"
)

// ErrParams is returned for inconsistent sampling or stacking parameters.
var ErrParams = errors.New("posts: invalid parameters")

// Params controls how a mask row is sampled into posts.
type Params struct {
	Row        int `json:"row"`         // mask row to sample
	Stride     int `json:"stride"`      // decimation factor
	SubOffset  int `json:"sub_offset"`  // column offset within each stride
	PixelCount int `json:"pixel_count"` // 0 samples every available pixel

	Pitch     float64 `json:"pitch"`     // y spacing of posts
	Depth     float64 `json:"depth"`     // x extent, growing towards -x
	Scale     float64 `json:"scale"`     // mask value to half-height
	Threshold float64 `json:"threshold"` // minimum half-height, exclusive

	Layer    int `json:"layer"`
	Datatype int `json:"datatype"`
}

// DefaultParams returns the sampling used by the 200 nm lateral-range
// modulator design.
func DefaultParams() Params {
	return Params{
		Stride:    10,
		SubOffset: 5,
		Pitch:     0.3,
		Depth:     0.4,
		Scale:     0.05 / 2,
		Threshold: 0.01,
	}
}

// Rect is one post. Pixel is the sampled pixel index.
type Rect struct {
	Pixel int         `json:"pixel"`
	Min   layout.Vec2 `json:"min"`
	Max   layout.Vec2 `json:"max"`
}

// Points returns the four corners counter-clockwise from the lower right.
func (r Rect) Points() []layout.Vec2 {
	return []layout.Vec2{
		{X: r.Max.X, Y: r.Min.Y},
		{X: r.Max.X, Y: r.Max.Y},
		{X: r.Min.X, Y: r.Max.Y},
		{X: r.Min.X, Y: r.Min.Y},
	}
}

// Height returns the y extent of r.
func (r Rect) Height() float64 { return r.Max.Y - r.Min.Y }

// Available returns how many pixels a row of cols columns can supply.
func (p Params) Available(cols int) int {
	if p.Stride < 1 || cols <= p.SubOffset {
		return 0
	}
	return (cols-p.SubOffset-1)/p.Stride + 1
}

func (p Params) validate() error {
	switch {
	case p.Stride < 1:
		return fmt.Errorf("%w: stride %d must be at least 1", ErrParams, p.Stride)
	case p.SubOffset < 0:
		return fmt.Errorf("%w: sub-offset %d must not be negative", ErrParams, p.SubOffset)
	case p.PixelCount < 0:
		return fmt.Errorf("%w: pixel count %d must not be negative", ErrParams, p.PixelCount)
	case !(p.Pitch > 0):
		return fmt.Errorf("%w: pitch %v must be positive", ErrParams, p.Pitch)
	case !(p.Depth > 0):
		return fmt.Errorf("%w: depth %v must be positive", ErrParams, p.Depth)
	}
	return nil
}

// BuildLayer samples mask row p.Row at columns Stride·i+SubOffset and
// returns a post for every pixel whose half-height raw·Scale exceeds
// Threshold. Posts span x ∈ [origin.X-Depth, origin.X] and are centred at
// y = origin.Y + Pitch·i + Pitch/2.
func BuildLayer(mask mat.Matrix, origin layout.Vec2, p Params) ([]Rect, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	rows, cols := mask.Dims()
	if p.Row < 0 || p.Row >= rows {
		return nil, fmt.Errorf("%w: row %d outside mask of %d rows", ErrParams, p.Row, rows)
	}
	n := p.Available(cols)
	if p.PixelCount > 0 {
		if p.PixelCount > n {
			return nil, fmt.Errorf("%w: %d pixels requested, mask row supplies %d", ErrParams, p.PixelCount, n)
		}
		n = p.PixelCount
	}

	var out []Rect
	for i := range n {
		half := mask.At(p.Row, p.Stride*i+p.SubOffset) * p.Scale
		if !(half > p.Threshold) {
			continue
		}
		yc := origin.Y + p.Pitch*float64(i) + p.Pitch/2
		out = append(out, Rect{
			Pixel: i,
			Min:   layout.V(origin.X-p.Depth, yc-half),
			Max:   layout.V(origin.X, yc+half),
		})
	}
	return out, nil
}

// Polygons converts rects into polygons on p's layer and datatype.
func Polygons(rects []Rect, p Params) []layout.Polygon {
	out := make([]layout.Polygon, len(rects))
	for i, r := range rects {
		out[i] = layout.Polygon{Points: r.Points(), Layer: p.Layer, Datatype: p.Datatype}
	}
	return out
}
