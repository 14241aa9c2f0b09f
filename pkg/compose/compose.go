// Package compose assembles generated geometry into a layout library:
// grating and surround cells, D2NN post blocks with their feeds and
// markers, grating links, and stamped instances of composed cells.
package compose

import (
	"fmt"

	"github.com/chazu/photomask/pkg/grating"
	"github.com/chazu/photomask/pkg/kernel"
	"github.com/chazu/photomask/pkg/layout"
	"github.com/chazu/photomask/pkg/waveguide"
)

// Builder adds cells to one library. It is not safe for concurrent use.
type Builder struct {
	Lib    *layout.Library
	Kernel kernel.Kernel
	// Logf receives progress messages. Nil discards them.
	Logf func(format string, args ...any)
}

// New returns a builder for lib using k for grating union and fracture.
func New(lib *layout.Library, k kernel.Kernel) *Builder {
	return &Builder{Lib: lib, Kernel: k}
}

func (b *Builder) logf(format string, args ...any) {
	if b.Logf != nil {
		b.Logf(format, args...)
	}
}

// Cell returns the named cell, creating it when it does not exist yet.
func (b *Builder) Cell(name string) (*layout.Cell, error) {
	if c := b.Lib.Lookup(name); c != nil {
		return c, nil
	}
	c, err := b.Lib.NewCell(name)
	if err != nil {
		return nil, fmt.Errorf("compose: %w", err)
	}
	return c, nil
}

// Grating generates s into a new cell called name.
func (b *Builder) Grating(name string, s grating.Spec) (*grating.Grating, error) {
	g, err := grating.Generate(s, b.Kernel)
	if err != nil {
		return nil, fmt.Errorf("compose: grating %s: %w", name, err)
	}
	c, err := b.Lib.NewCell(name)
	if err != nil {
		return nil, fmt.Errorf("compose: %w", err)
	}
	c.AddPolygons(g.Polygons...)
	b.logf("compose: grating %s: %d teeth, %d polygons", name, len(g.Teeth), len(g.Polygons))
	return g, nil
}

// Tapers adds the rails of every taper to a new cell called name. It
// builds grating surrounds and rail markers.
func (b *Builder) Tapers(name string, tapers ...waveguide.Taper) error {
	c, err := b.Lib.NewCell(name)
	if err != nil {
		return fmt.Errorf("compose: %w", err)
	}
	for i, t := range tapers {
		polys, err := t.Polygons()
		if err != nil {
			return fmt.Errorf("compose: %s taper %d: %w", name, i, err)
		}
		c.AddPolygons(polys...)
	}
	return nil
}

// Stamp places cell in dst at origin, rotated by rotation degrees.
func Stamp(dst *layout.Cell, cell string, origin layout.Vec2, rotation float64) {
	dst.AddRef(cell, layout.Transform{Origin: origin, Rotation: rotation})
}

// Stamp places cell inside the cell named dst, creating dst if needed.
func (b *Builder) Stamp(dst, cell string, origin layout.Vec2, rotation float64) error {
	c, err := b.Cell(dst)
	if err != nil {
		return err
	}
	Stamp(c, cell, origin, rotation)
	return nil
}

// Top creates the cell name holding one instance of cell per offset.
func (b *Builder) Top(name, cell string, offsets ...layout.Vec2) error {
	c, err := b.Lib.NewCell(name)
	if err != nil {
		return fmt.Errorf("compose: %w", err)
	}
	for _, off := range offsets {
		c.AddRef(cell, layout.Translation(off))
	}
	return nil
}

// rotateRef turns a reference about center. Only rotation and
// translation are involved, so the reference's own reflection and
// magnification are kept.
func rotateRef(t layout.Transform, deg float64, center layout.Vec2) layout.Transform {
	r := layout.RotationAbout(deg, center)
	t.Origin = r.Apply(t.Origin)
	t.Rotation += deg
	return t
}
