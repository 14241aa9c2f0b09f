package compose

import (
	"fmt"

	"github.com/chazu/photomask/pkg/layout"
	"github.com/chazu/photomask/pkg/waveguide"
)

// LinkParams describes a straight bus waveguide with a grating coupler at
// each end.
type LinkParams struct {
	Origin         layout.Vec2 `json:"origin"` // near end of the bus
	Length         float64     `json:"length"` // bus length, along +y before rotation
	Rotation       float64     `json:"rotation"`
	RailWidth      float64     `json:"rail_width"`
	WaveguideWidth float64     `json:"waveguide_width"`
	Layer          int         `json:"layer"`
	Grating        string      `json:"grating"`
	Surround       string      `json:"surround"`
}

// Link adds the bus rails to the cell named cell, stamps the coupler at
// the far end facing away and a mirrored coupler at the near end, and
// turns everything by p.Rotation about p.Origin.
func (b *Builder) Link(cell string, p LinkParams) error {
	c, err := b.Cell(cell)
	if err != nil {
		return err
	}
	f := waveguide.Flex{
		Start:    p.Origin,
		Segments: []layout.Vec2{layout.V(0, p.Length)},
		Widths:   []float64{p.RailWidth, p.RailWidth},
		Offset:   p.RailWidth + p.WaveguideWidth,
		Layer:    p.Layer,
	}
	paths, err := f.Paths()
	if err != nil {
		return fmt.Errorf("compose: link in %s: %w", cell, err)
	}
	rot := layout.RotationAbout(p.Rotation, p.Origin)
	for _, path := range paths {
		c.AddPath(path.Transformed(rot))
	}

	far := layout.Transform{Origin: p.Origin.Add(layout.V(0, p.Length))}
	near := layout.Transform{Origin: p.Origin, Rotation: 180}
	for _, name := range []string{p.Grating, p.Surround} {
		if name == "" {
			continue
		}
		c.AddRef(name, rotateRef(far, p.Rotation, p.Origin))
		c.AddRef(name, rotateRef(near, p.Rotation, p.Origin))
	}
	return nil
}
