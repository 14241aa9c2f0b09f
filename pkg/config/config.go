// Package config loads JSON design files describing a photomask layout
// and builds them into a library through the composer.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/chazu/photomask/pkg/compose"
	"github.com/chazu/photomask/pkg/grating"
	"github.com/chazu/photomask/pkg/layout"
)

// Defaults applied to rails whose widths are left out.
const (
	DefaultSmallMargin    = 5.0
	DefaultWaveguideWidth = 0.5
)

// maxFileSize caps the size of a design file.
const maxFileSize = 1 * 1024 * 1024

// ErrInvalid is returned for designs that fail validation.
var ErrInvalid = errors.New("config: invalid design")

// Design is the root of a design file.
type Design struct {
	Library LibrarySettings `json:"library"`

	SmallMargin    float64 `json:"small_margin,omitempty"`
	WaveguideWidth float64 `json:"waveguide_width,omitempty"`

	// Tables adds named fill tables to the built-in ones.
	Tables map[string][]float64 `json:"tables,omitempty"`

	Gratings  []GratingCell  `json:"gratings,omitempty"`
	Surrounds []SurroundCell `json:"surrounds,omitempty"`
	Markers   []MarkerCell   `json:"markers,omitempty"`
	Blocks    []Block        `json:"d2nn,omitempty"`
	Links     []Link         `json:"links,omitempty"`
	Instances []Instance     `json:"instances,omitempty"`
	Top       *TopCell       `json:"top,omitempty"`

	// BaseDir resolves relative mask directories. Load sets it to the
	// directory of the design file.
	BaseDir string `json:"-"`
}

// LibrarySettings names the library and fixes its units.
type LibrarySettings struct {
	Name      string     `json:"name"`
	Unit      float64    `json:"unit,omitempty"`      // metres per user unit
	Precision float64    `json:"precision,omitempty"` // metres per database unit
	Timestamp *time.Time `json:"timestamp,omitempty"` // Unix epoch when absent
}

// GratingCell is a cell holding one generated grating. Spec fields that
// are left out take grating.DefaultSpec values.
type GratingCell struct {
	Name string `json:"name"`
	grating.Spec
	// Table names a fill table from Design.Tables or the built-ins.
	Table string `json:"table,omitempty"`
	// IncidenceDeg, when set, overrides SinTheta with its sine.
	IncidenceDeg *float64 `json:"incidence_deg,omitempty"`
}

// UnmarshalJSON starts from grating.DefaultSpec so that a straight
// grating needs no focus fields.
func (g *GratingCell) UnmarshalJSON(b []byte) error {
	type plain GratingCell
	v := plain{Spec: grating.DefaultSpec()}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*g = GratingCell(v)
	return nil
}

// SurroundCell is the cladding rail pair around a grating.
type SurroundCell struct {
	Name           string  `json:"name"`
	Direction      string  `json:"direction,omitempty"`
	Length         float64 `json:"length"`
	FinalGap       float64 `json:"final_gap"`
	Margin         float64 `json:"margin,omitempty"`
	WaveguideWidth float64 `json:"waveguide_width,omitempty"`
	Layer          int     `json:"layer,omitempty"`
	Datatype       int     `json:"datatype,omitempty"`
}

// MarkerCell is a short rail pair pointing -y.
type MarkerCell struct {
	Name           string      `json:"name"`
	Origin         layout.Vec2 `json:"origin"`
	Margin         float64     `json:"margin,omitempty"`
	WaveguideWidth float64     `json:"waveguide_width,omitempty"`
	Layer          int         `json:"layer,omitempty"`
	Datatype       int         `json:"datatype,omitempty"`
}

// Block is one D2NN block. Parameters left out take
// compose.DefaultD2NN values.
type Block struct {
	Cell    string `json:"cell"`
	MaskDir string `json:"mask_dir"`
	Pattern string `json:"pattern,omitempty"`
	Field   string `json:"field,omitempty"`
	compose.D2NNParams
}

// UnmarshalJSON starts from compose.DefaultD2NN.
func (bl *Block) UnmarshalJSON(b []byte) error {
	type plain Block
	v := plain{D2NNParams: compose.DefaultD2NN()}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*bl = Block(v)
	return nil
}

// Link is a bus waveguide with couplers at both ends.
type Link struct {
	Cell string `json:"cell"`
	compose.LinkParams
}

// Instance stamps a cell into another.
type Instance struct {
	Cell     string      `json:"cell"` // where the instance is placed
	Of       string      `json:"of"`   // what is placed
	Origin   layout.Vec2 `json:"origin"`
	Rotation float64     `json:"rotation,omitempty"`
}

// TopCell holds copies of a composed cell at fixed offsets.
type TopCell struct {
	Name    string        `json:"name"`
	Cell    string        `json:"cell"`
	Offsets []layout.Vec2 `json:"offsets"`
}

// Load reads a design from a .json file no larger than 1 MB, fills in
// defaults and validates it.
func Load(path string) (*Design, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config: design file must have .json extension, got %q", ext)
	}
	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("config: failed to stat design file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config: design file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read design file: %w", err)
	}
	d, err := Parse(data)
	if err != nil {
		return nil, err
	}
	d.BaseDir = filepath.Dir(cleanPath)
	return d, nil
}

// Parse decodes, defaults and validates a design.
func Parse(data []byte) (*Design, error) {
	d := &Design{}
	if err := json.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("config: failed to parse design JSON: %w", err)
	}
	d.applyDefaults()
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Design) applyDefaults() {
	if d.Library.Name == "" {
		d.Library.Name = "LIB"
	}
	if d.Library.Unit == 0 {
		d.Library.Unit = layout.DefaultUnit
	}
	if d.Library.Precision == 0 {
		d.Library.Precision = layout.DefaultPrecision
	}
	if d.SmallMargin == 0 {
		d.SmallMargin = DefaultSmallMargin
	}
	if d.WaveguideWidth == 0 {
		d.WaveguideWidth = DefaultWaveguideWidth
	}
	for i := range d.Gratings {
		g := &d.Gratings[i]
		if g.IncidenceDeg != nil {
			g.SinTheta = math.Sin(*g.IncidenceDeg * math.Pi / 180)
		}
	}
	for i := range d.Surrounds {
		s := &d.Surrounds[i]
		s.Margin = orDefault(s.Margin, d.SmallMargin)
		s.WaveguideWidth = orDefault(s.WaveguideWidth, d.WaveguideWidth)
	}
	for i := range d.Markers {
		m := &d.Markers[i]
		m.Margin = orDefault(m.Margin, d.SmallMargin)
		m.WaveguideWidth = orDefault(m.WaveguideWidth, d.WaveguideWidth)
	}
	for i := range d.Links {
		l := &d.Links[i]
		l.RailWidth = orDefault(l.RailWidth, d.SmallMargin)
		l.WaveguideWidth = orDefault(l.WaveguideWidth, d.WaveguideWidth)
	}
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

// Validate checks names and references between the parts of d. Geometry
// parameters are checked by the generators at build time.
func (d *Design) Validate() error {
	if !(d.Library.Unit > 0) || !(d.Library.Precision > 0) || d.Library.Precision > d.Library.Unit {
		return fmt.Errorf("%w: units %g/%g", ErrInvalid, d.Library.Unit, d.Library.Precision)
	}
	defined := make(map[string]string) // cell name -> kind
	define := func(kind, name string) error {
		if name == "" {
			return fmt.Errorf("%w: %s without a name", ErrInvalid, kind)
		}
		if prev, ok := defined[name]; ok {
			return fmt.Errorf("%w: %s %q already defined as a %s", ErrInvalid, kind, name, prev)
		}
		defined[name] = kind
		return nil
	}
	for _, g := range d.Gratings {
		if err := define("grating", g.Name); err != nil {
			return err
		}
		if g.Table != "" {
			if _, err := d.table(g.Table); err != nil {
				return fmt.Errorf("%w: grating %q: %v", ErrInvalid, g.Name, err)
			}
		}
	}
	for _, s := range d.Surrounds {
		if err := define("surround", s.Name); err != nil {
			return err
		}
	}
	for _, m := range d.Markers {
		if err := define("marker", m.Name); err != nil {
			return err
		}
	}

	// Composed cells may collect several blocks, links and instances.
	composed := make(map[string]bool)
	use := func(kind, name string) error {
		if name == "" {
			return fmt.Errorf("%w: %s without a target cell", ErrInvalid, kind)
		}
		if prev, ok := defined[name]; ok {
			return fmt.Errorf("%w: %s target %q is a %s cell", ErrInvalid, kind, name, prev)
		}
		composed[name] = true
		return nil
	}
	for _, b := range d.Blocks {
		if err := use("d2nn block", b.Cell); err != nil {
			return err
		}
		if b.MaskDir == "" {
			return fmt.Errorf("%w: d2nn block in %q has no mask_dir", ErrInvalid, b.Cell)
		}
	}
	for _, l := range d.Links {
		if err := use("link", l.Cell); err != nil {
			return err
		}
	}
	for _, in := range d.Instances {
		if err := use("instance", in.Cell); err != nil {
			return err
		}
	}

	known := func(name string) bool {
		_, ok := defined[name]
		return ok || composed[name]
	}
	for _, b := range d.Blocks {
		for _, n := range []string{b.Grating, b.Surround} {
			if n != "" && !known(n) {
				return fmt.Errorf("%w: d2nn block in %q uses undefined cell %q", ErrInvalid, b.Cell, n)
			}
		}
	}
	for _, l := range d.Links {
		for _, n := range []string{l.Grating, l.Surround} {
			if n != "" && !known(n) {
				return fmt.Errorf("%w: link in %q uses undefined cell %q", ErrInvalid, l.Cell, n)
			}
		}
	}
	for _, in := range d.Instances {
		if !known(in.Of) {
			return fmt.Errorf("%w: instance in %q of undefined cell %q", ErrInvalid, in.Cell, in.Of)
		}
	}
	if t := d.Top; t != nil {
		if t.Name == "" || known(t.Name) {
			return fmt.Errorf("%w: top cell name %q is empty or taken", ErrInvalid, t.Name)
		}
		if !known(t.Cell) {
			return fmt.Errorf("%w: top cell stamps undefined cell %q", ErrInvalid, t.Cell)
		}
		if len(t.Offsets) == 0 {
			return fmt.Errorf("%w: top cell %q has no offsets", ErrInvalid, t.Name)
		}
	}
	return nil
}

// table looks name up in the design's tables, then the built-ins.
func (d *Design) table(name string) ([]float64, error) {
	if t, ok := d.Tables[name]; ok {
		return append([]float64(nil), t...), nil
	}
	return grating.Table(name)
}
