package preview

import (
	"fmt"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"

	"github.com/chazu/photomask/pkg/layout"
)

// WriteDXF writes the outline of every polygon as closed line loops.
func WriteDXF(polys []layout.Polygon, path string) error {
	d := render.NewDXF(path)
	n := 0
	for _, p := range polys {
		if len(p.Points) < 2 {
			continue
		}
		for i, a := range p.Points {
			b := p.Points[(i+1)%len(p.Points)]
			d.Line(&sdf.Line2{{X: a.X, Y: a.Y}, {X: b.X, Y: b.Y}})
		}
		n++
	}
	if n == 0 {
		return ErrEmpty
	}
	if err := d.Save(); err != nil {
		return fmt.Errorf("preview: %w", err)
	}
	return nil
}
