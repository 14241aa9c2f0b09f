package config

import (
	"fmt"
	"path/filepath"

	"github.com/chazu/photomask/pkg/compose"
	"github.com/chazu/photomask/pkg/kernel"
	"github.com/chazu/photomask/pkg/layout"
	"github.com/chazu/photomask/pkg/maskdata"
	"github.com/chazu/photomask/pkg/waveguide"
)

// Build generates every cell of d into a new library. Leaf cells are
// built first, then blocks, links and instances in file order, then the
// top cell. logf may be nil.
func Build(d *Design, k kernel.Kernel, logf func(format string, args ...any)) (*layout.Library, error) {
	lib := layout.New(d.Library.Name)
	lib.Unit = d.Library.Unit
	lib.Precision = d.Library.Precision
	if d.Library.Timestamp != nil {
		lib.Timestamp = *d.Library.Timestamp
	}
	b := compose.New(lib, k)
	b.Logf = logf

	for _, g := range d.Gratings {
		s := g.Spec
		if g.Table != "" {
			t, err := d.table(g.Table)
			if err != nil {
				return nil, fmt.Errorf("config: grating %s: %w", g.Name, err)
			}
			s.FillTable = t
		}
		if _, err := b.Grating(g.Name, s); err != nil {
			return nil, err
		}
	}
	for _, s := range d.Surrounds {
		t := waveguide.Surround(layout.Vec2{}, s.Direction, s.Length, s.WaveguideWidth, s.Margin, s.FinalGap, s.Layer, s.Datatype)
		if err := b.Tapers(s.Name, t); err != nil {
			return nil, err
		}
	}
	for _, m := range d.Markers {
		t := waveguide.Marker(m.Origin, m.WaveguideWidth, m.Margin, m.Layer, m.Datatype)
		if err := b.Tapers(m.Name, t); err != nil {
			return nil, err
		}
	}
	for _, bl := range d.Blocks {
		src := maskdata.Dir{Root: d.resolve(bl.MaskDir), Pattern: bl.Pattern, Field: bl.Field}
		if _, err := b.D2NN(bl.Cell, bl.D2NNParams, src); err != nil {
			return nil, err
		}
	}
	for _, l := range d.Links {
		if err := b.Link(l.Cell, l.LinkParams); err != nil {
			return nil, err
		}
	}
	for _, in := range d.Instances {
		if err := b.Stamp(in.Cell, in.Of, in.Origin, in.Rotation); err != nil {
			return nil, err
		}
	}
	if t := d.Top; t != nil {
		if err := b.Top(t.Name, t.Cell, t.Offsets...); err != nil {
			return nil, err
		}
	}
	return lib, nil
}

func (d *Design) resolve(dir string) string {
	if filepath.IsAbs(dir) || d.BaseDir == "" {
		return dir
	}
	return filepath.Join(d.BaseDir, dir)
}

// TopName returns the cell to treat as the design's top: the top cell
// when one is configured, else the first composed cell, else the first
// grating.
func (d *Design) TopName() string {
	switch {
	case d.Top != nil:
		return d.Top.Name
	case len(d.Blocks) > 0:
		return d.Blocks[0].Cell
	case len(d.Links) > 0:
		return d.Links[0].Cell
	case len(d.Instances) > 0:
		return d.Instances[0].Cell
	case len(d.Gratings) > 0:
		return d.Gratings[0].Name
	}
	return ""
}
