package layout

import (
	"errors"
	"fmt"
	"time"
)

// ErrDuplicateCell is returned when a cell name is already taken.
var ErrDuplicateCell = errors.New("layout: duplicate cell name")

// Default units: one user unit is a micrometre, the database grid is a
// nanometre.
const (
	DefaultUnit      = 1e-6
	DefaultPrecision = 1e-9
)

// Cell is a named structure. Geometry is appended in place while the
// composer builds the library and is treated as read-only afterwards.
type Cell struct {
	Name     string    `json:"name"`
	Polygons []Polygon `json:"polygons,omitempty"`
	Paths    []Path    `json:"paths,omitempty"`
	Refs     []Ref     `json:"refs,omitempty"`
}

// AddPolygon appends a boundary on layer/datatype.
func (c *Cell) AddPolygon(pts []Vec2, layer, datatype int) {
	c.Polygons = append(c.Polygons, Polygon{Points: pts, Layer: layer, Datatype: datatype})
}

// AddPolygons appends already-tagged polygons.
func (c *Cell) AddPolygons(polys ...Polygon) {
	c.Polygons = append(c.Polygons, polys...)
}

// AddPath appends a path.
func (c *Cell) AddPath(p Path) {
	c.Paths = append(c.Paths, p)
}

// AddRef places the named cell with t.
func (c *Cell) AddRef(cell string, t Transform) {
	c.Refs = append(c.Refs, Ref{Cell: cell, Transform: t})
}

// IsEmpty reports whether c has no geometry and no references.
func (c *Cell) IsEmpty() bool {
	return len(c.Polygons) == 0 && len(c.Paths) == 0 && len(c.Refs) == 0
}

// Library is the top-level layout produced by one generation pass.
type Library struct {
	Name      string    `json:"name"`
	Unit      float64   `json:"unit"`      // user unit in metres
	Precision float64   `json:"precision"` // database unit in metres
	Timestamp time.Time `json:"timestamp"` // zero means the Unix epoch on output

	cells map[string]*Cell
	order []string
}

// New creates an empty library with micrometre user units and a
// nanometre grid.
func New(name string) *Library {
	return &Library{
		Name:      name,
		Unit:      DefaultUnit,
		Precision: DefaultPrecision,
		cells:     make(map[string]*Cell),
	}
}

// NewCell creates and registers an empty cell.
func (l *Library) NewCell(name string) (*Cell, error) {
	c := &Cell{Name: name}
	if err := l.Add(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Add registers c. Names must be unique within the library.
func (l *Library) Add(c *Cell) error {
	if c.Name == "" {
		return errors.New("layout: cell name must not be empty")
	}
	if _, ok := l.cells[c.Name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateCell, c.Name)
	}
	l.cells[c.Name] = c
	l.order = append(l.order, c.Name)
	return nil
}

// Lookup returns the cell with the given name, or nil.
func (l *Library) Lookup(name string) *Cell {
	return l.cells[name]
}

// MustLookup returns the cell with the given name, or panics.
func (l *Library) MustLookup(name string) *Cell {
	c := l.Lookup(name)
	if c == nil {
		panic(fmt.Sprintf("layout: no cell named %q", name))
	}
	return c
}

// Cells returns all cells in insertion order.
func (l *Library) Cells() []*Cell {
	out := make([]*Cell, 0, len(l.order))
	for _, n := range l.order {
		out = append(out, l.cells[n])
	}
	return out
}

// Children returns the distinct cells referenced by c, in first-reference
// order. Dangling names are skipped.
func (l *Library) Children(c *Cell) []*Cell {
	seen := make(map[string]bool, len(c.Refs))
	var out []*Cell
	for _, r := range c.Refs {
		if seen[r.Cell] {
			continue
		}
		seen[r.Cell] = true
		if child := l.cells[r.Cell]; child != nil {
			out = append(out, child)
		}
	}
	return out
}

// TopCells returns the cells no other cell references, in insertion order.
func (l *Library) TopCells() []*Cell {
	referenced := make(map[string]bool)
	for _, c := range l.cells {
		for _, r := range c.Refs {
			referenced[r.Cell] = true
		}
	}
	var out []*Cell
	for _, n := range l.order {
		if !referenced[n] {
			out = append(out, l.cells[n])
		}
	}
	return out
}

// CellCount returns the number of cells.
func (l *Library) CellCount() int {
	return len(l.cells)
}

// Scale returns the number of database units per user unit.
func (l *Library) Scale() float64 {
	return l.Unit / l.Precision
}
