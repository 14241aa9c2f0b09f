// Package preview renders flat layout geometry to static images and DXF
// drawings for a quick look at generated masks.
package preview

import (
	"errors"
	"fmt"
	"image/color"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/chazu/photomask/pkg/kernel"
	"github.com/chazu/photomask/pkg/layout"
)

// ErrEmpty is returned when there is nothing to draw.
var ErrEmpty = errors.New("preview: no geometry")

// colorPalette assigns distinct colors to layers.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// LayerColor returns the fill color used for a GDSII layer.
func LayerColor(layer int) color.RGBA {
	if layer < 0 {
		layer = -layer
	}
	var r, g, b uint8
	fmt.Sscanf(colorPalette[layer%len(colorPalette)], "#%02x%02x%02x", &r, &g, &b)
	return color.RGBA{R: r, G: g, B: b, A: 200}
}

// Options controls image output.
type Options struct {
	Title string
	Width vg.Length // side of the square image, 8 inches when zero
}

// Plot builds a plot of polys with equal x and y scales.
func Plot(polys []layout.Polygon, title string) (*plot.Plot, error) {
	box, ok := kernel.Bounds(polys)
	if !ok {
		return nil, ErrEmpty
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x (µm)"
	p.Y.Label.Text = "y (µm)"

	for i, poly := range polys {
		if len(poly.Points) < 3 {
			continue
		}
		xys := make(plotter.XYs, len(poly.Points))
		for j, v := range poly.Points {
			xys[j] = plotter.XY{X: v.X, Y: v.Y}
		}
		shape, err := plotter.NewPolygon(xys)
		if err != nil {
			return nil, fmt.Errorf("preview: polygon %d: %w", i, err)
		}
		shape.Color = LayerColor(poly.Layer)
		shape.LineStyle.Width = 0
		p.Add(shape)
	}

	// Equal x and y scales on a square canvas.
	w, h := box.Max.X-box.Min.X, box.Max.Y-box.Min.Y
	side := max(w, h, 1e-3) * 1.05
	cx, cy := (box.Min.X+box.Max.X)/2, (box.Min.Y+box.Max.Y)/2
	p.X.Min, p.X.Max = cx-side/2, cx+side/2
	p.Y.Min, p.Y.Max = cy-side/2, cy+side/2
	return p, nil
}

// Render draws polys to path. The format follows the extension: .png,
// .svg or .pdf.
func Render(polys []layout.Polygon, path string, opts Options) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".png", ".svg", ".pdf":
	default:
		return fmt.Errorf("preview: unsupported image format %q", ext)
	}
	p, err := Plot(polys, opts.Title)
	if err != nil {
		return err
	}
	width := opts.Width
	if width <= 0 {
		width = 8 * vg.Inch
	}
	if err := p.Save(width, width, path); err != nil {
		return fmt.Errorf("preview: %w", err)
	}
	return nil
}
