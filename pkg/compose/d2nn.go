package compose

import (
	"fmt"

	"github.com/chazu/photomask/pkg/layout"
	"github.com/chazu/photomask/pkg/posts"
	"github.com/chazu/photomask/pkg/waveguide"
)

// D2NNParams places one diffractive network block. The post stack grows
// leftwards from XMax; two feeds leave the last layer and end in grating
// couplers.
type D2NNParams struct {
	posts.StackParams

	Grating  string `json:"grating"`  // coupler cell
	Surround string `json:"surround"` // coupler cladding cell

	SmallMargin    float64    `json:"small_margin"`    // feed rail width
	WaveguideWidth float64    `json:"waveguide_width"` // gap between feed rails
	BendRadius     float64    `json:"bend_radius"`
	HorizontalRun  float64    `json:"horizontal_run"` // signed x run of each feed
	WgLen          float64    `json:"wg_len"`         // vertical run of each feed
	FeedY          [2]float64 `json:"feed_y"`         // feed heights above YMin; the first turns up
	FeedLayer      int        `json:"feed_layer"`

	MarkerSize   float64 `json:"marker_size"`   // input marker squares
	MarkerSpan   float64 `json:"marker_span"`   // y extent covered by the markers
	BracketWidth float64 `json:"bracket_width"` // x extent of the bracket marker
	MarkerLayer  int     `json:"marker_layer"`
	BracketLayer int     `json:"bracket_layer"`
}

// DefaultD2NN returns the five-layer block with 300 µm feeds.
func DefaultD2NN() D2NNParams {
	sp := posts.StackParams{
		Params:        posts.DefaultParams(),
		NumLayers:     5,
		InputDistance: 100,
		LayerDistance: 200,
	}
	sp.PixelCount = 3000
	sp.Layer = 2
	return D2NNParams{
		StackParams:    sp,
		Grating:        "PGrat_lumerical",
		Surround:       "PGratSur_lumerical",
		SmallMargin:    5,
		WaveguideWidth: 0.5,
		BendRadius:     150,
		HorizontalRun:  -300,
		WgLen:          300,
		FeedY:          [2]float64{600, 300},
		MarkerSize:     50,
		MarkerSpan:     900,
		BracketWidth:   150,
		BracketLayer:   3,
	}
}

// FeedX returns the x coordinate where the feeds leave the post stack.
func (p D2NNParams) FeedX() float64 {
	return p.LayerX(p.NumLayers)
}

// D2NN builds the block into the cell named cell, loading one mask per
// layer from src. It returns the number of posts placed.
func (b *Builder) D2NN(cell string, p D2NNParams, src posts.MaskSource) (int, error) {
	c, err := b.Cell(cell)
	if err != nil {
		return 0, err
	}

	layers, err := posts.Stack(p.StackParams, src)
	if err != nil {
		return 0, fmt.Errorf("compose: d2nn %s: %w", cell, err)
	}
	total := 0
	for _, l := range layers {
		c.AddPolygons(posts.Polygons(l.Rects, p.Params)...)
		total += len(l.Rects)
		b.logf("compose: d2nn %s layer %d at x=%g: %d posts", cell, l.Index, l.X, len(l.Rects))
	}

	for _, m := range markers(p) {
		c.AddPolygons(m)
	}

	x := p.FeedX()
	ends := [2]float64{p.WgLen, -p.WgLen}
	for i, fy := range p.FeedY {
		f := waveguide.Flex{
			Start:      layout.V(x, p.YMin+fy),
			Segments:   []layout.Vec2{layout.V(p.HorizontalRun, 0), layout.V(0, ends[i])},
			Widths:     []float64{p.SmallMargin, p.SmallMargin},
			Offset:     p.SmallMargin + p.WaveguideWidth,
			BendRadius: p.BendRadius,
			Layer:      p.FeedLayer,
		}
		paths, err := f.Paths()
		if err != nil {
			return 0, fmt.Errorf("compose: d2nn %s feed %d: %w", cell, i, err)
		}
		for _, path := range paths {
			c.AddPath(path)
		}
	}

	up := layout.V(x+p.HorizontalRun, p.YMin+p.FeedY[0]+p.WgLen)
	down := layout.V(x+p.HorizontalRun, p.YMin+p.FeedY[1]-p.WgLen)
	for _, name := range []string{p.Grating, p.Surround} {
		if name == "" {
			continue
		}
		Stamp(c, name, up, 0)
		Stamp(c, name, down, 180)
	}
	return total, nil
}

// markers returns the two input squares above and below the first layer
// and the bracket that spans them on its own layer.
func markers(p D2NNParams) []layout.Polygon {
	s, w, span := p.MarkerSize, p.BracketWidth, p.MarkerSpan
	x, y := p.XMax, p.YMin
	square := func(y0 float64) layout.Polygon {
		return layout.Polygon{
			Points: []layout.Vec2{
				{X: x + s, Y: y0}, {X: x, Y: y0}, {X: x, Y: y0 - s}, {X: x + s, Y: y0 - s},
			},
			Layer: p.MarkerLayer,
		}
	}
	xr := x + w
	bracket := layout.Polygon{
		Points: []layout.Vec2{
			{X: xr, Y: y - s},
			{X: x + s, Y: y - s},
			{X: x + s, Y: y},
			{X: x, Y: y},
			{X: x, Y: y + span},
			{X: x + s, Y: y + span},
			{X: x + s, Y: y + span + s},
			{X: xr, Y: y + span + s},
		},
		Layer: p.BracketLayer,
	}
	return []layout.Polygon{square(y), square(y + span + s), bracket}
}
