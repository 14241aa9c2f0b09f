package posts

import (
	"fmt"

	"github.com/chazu/photomask/pkg/layout"
	"gonum.org/v1/gonum/mat"
)

// MaskSource supplies the mask of each diffractive layer.
type MaskSource interface {
	Mask(layer int) (*mat.Dense, error)
}

// MaskFunc adapts a function to MaskSource.
type MaskFunc func(layer int) (*mat.Dense, error)

// Mask calls f(layer).
func (f MaskFunc) Mask(layer int) (*mat.Dense, error) { return f(layer) }

// StackParams places NumLayers post columns leftwards from XMax.
type StackParams struct {
	Params
	NumLayers     int     `json:"num_layers"`
	XMax          float64 `json:"x_max"`
	YMin          float64 `json:"y_min"`
	InputDistance float64 `json:"input_distance"` // gap from XMax to the first layer
	LayerDistance float64 `json:"layer_distance"` // gap between layers
}

// LayerX returns the x coordinate of layer i.
func (sp StackParams) LayerX(i int) float64 {
	return sp.XMax - sp.InputDistance - float64(i)*sp.LayerDistance
}

// Layer is one built post column.
type Layer struct {
	Index int     `json:"index"`
	X     float64 `json:"x"`
	Rects []Rect  `json:"rects"`
}

// Stack builds every layer in order, loading masks from src. The first
// failing layer aborts the stack.
func Stack(sp StackParams, src MaskSource) ([]Layer, error) {
	if sp.NumLayers < 0 {
		return nil, fmt.Errorf("%w: %d layers", ErrParams, sp.NumLayers)
	}
	layers := make([]Layer, 0, sp.NumLayers)
	for i := range sp.NumLayers {
		m, err := src.Mask(i)
		if err != nil {
			return nil, fmt.Errorf("posts: layer %d: %w", i, err)
		}
		x := sp.LayerX(i)
		rects, err := BuildLayer(m, layout.V(x, sp.YMin), sp.Params)
		if err != nil {
			return nil, fmt.Errorf("posts: layer %d: %w", i, err)
		}
		layers = append(layers, Layer{Index: i, X: x, Rects: rects})
	}
	return layers, nil
}
