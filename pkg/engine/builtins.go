package engine

import (
	"fmt"
	"math"
	"path/filepath"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/photomask/pkg/compose"
	"github.com/chazu/photomask/pkg/grating"
	"github.com/chazu/photomask/pkg/layout"
	"github.com/chazu/photomask/pkg/maskdata"
	"github.com/chazu/photomask/pkg/waveguide"
)

// recipe is the state shared by the builtins of one evaluation.
type recipe struct {
	lib     *layout.Library
	b       *compose.Builder
	baseDir string
	tables  map[string][]float64
}

func (r *recipe) table(name string) ([]float64, error) {
	if t, ok := r.tables[name]; ok {
		return append([]float64(nil), t...), nil
	}
	return grating.Table(name)
}

func (r *recipe) resolve(dir string) string {
	if dir == "" || filepath.IsAbs(dir) || r.baseDir == "" {
		return dir
	}
	return filepath.Join(r.baseDir, dir)
}

func pathType(s string) (layout.PathType, error) {
	switch s {
	case "flush", "":
		return layout.PathFlush, nil
	case "round":
		return layout.PathRound, nil
	case "extended":
		return layout.PathExtended, nil
	}
	return 0, fmt.Errorf("unknown path type %q, expected flush, round or extended", s)
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the layout builtins into a zygomys environment.
// The builtins populate r.lib through r.b during evaluation.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, r *recipe) {

	// (library :name "PHOTONICS" :unit 1e-6 :precision 1e-9)
	env.AddFunction("library", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		a := newArgs("library", args)
		a.str("name", &r.lib.Name)
		a.float("unit", &r.lib.Unit)
		a.float("precision", &r.lib.Precision)
		if a.err != nil {
			return zygo.SexpNull, a.err
		}
		if r.lib.Unit <= 0 || r.lib.Precision <= 0 || r.lib.Precision > r.lib.Unit {
			return zygo.SexpNull, fmt.Errorf("library: need 0 < precision <= unit, got %g and %g", r.lib.Precision, r.lib.Unit)
		}
		return zygo.SexpNull, nil
	})

	// (vec2 x y)
	env.AddFunction("vec2", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("vec2 requires 2 arguments (x y), got %d", len(args))
		}
		x, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec2: x: %w", err)
		}
		y, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec2: y: %w", err)
		}
		return &sexpVec2{vec: layout.V(x, y)}, nil
	})

	// (sin-deg 10)
	env.AddFunction("sin_deg", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("sin-deg requires 1 argument, got %d", len(args))
		}
		d, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("sin-deg: %w", err)
		}
		return &zygo.SexpFloat{Val: math.Sin(d * math.Pi / 180)}, nil
	})

	// (table "lumerical" (list 0.15 0.15 ...))
	env.AddFunction("table", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("table requires a name and a list of widths")
		}
		tname, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("table: name: %w", err)
		}
		items, err := sexpListToSlice(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("table %s: %w", tname, err)
		}
		widths := make([]float64, len(items))
		for i, it := range items {
			if widths[i], err = toFloat64(it); err != nil {
				return zygo.SexpNull, fmt.Errorf("table %s: element %d: %w", tname, i, err)
			}
		}
		if r.tables == nil {
			r.tables = make(map[string][]float64)
		}
		r.tables[tname] = widths
		return zygo.SexpNull, nil
	})

	// (grating "PGrat" :period 0.75 :teeth 28 :fill-fraction 0.28 :width 19
	//   :direction "+y" :wavelength 1.55 :incidence 10 :focus-distance 21.5
	//   :variant :exact :layer 1)
	env.AddFunction("grating", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		a := newArgs("grating", args)
		cell := a.name(0, "name")
		s := grating.DefaultSpec()
		a.float("period", &s.Period)
		a.integer("teeth", &s.Teeth)
		a.float("fill-fraction", &s.FillFraction)
		a.float("width", &s.Width)
		a.vec("position", &s.Position)
		a.float("wavelength", &s.Wavelength)
		a.float("sin-theta", &s.SinTheta)
		a.float("focus-distance", &s.FocusDistance)
		a.float("focus-width", &s.FocusWidth)
		a.float("tolerance", &s.Tolerance)
		a.integer("max-points", &s.MaxPoints)
		a.integer("layer", &s.Layer)
		a.integer("datatype", &s.Datatype)

		var dir, variant, table string
		var incidence float64
		a.str("direction", &dir)
		a.str("variant", &variant)
		a.str("table", &table)
		a.float("incidence", &incidence)
		if a.err != nil {
			return zygo.SexpNull, a.err
		}
		if a.has("incidence") {
			s.SinTheta = math.Sin(incidence * math.Pi / 180)
		}
		var err error
		if dir != "" {
			if s.Direction, err = grating.ParseDirection(dir); err != nil {
				return zygo.SexpNull, fmt.Errorf("grating %s: %w", cell, err)
			}
		}
		if variant != "" {
			if s.Variant, err = grating.ParseVariant(variant); err != nil {
				return zygo.SexpNull, fmt.Errorf("grating %s: %w", cell, err)
			}
		}
		if table != "" {
			if s.FillTable, err = r.table(table); err != nil {
				return zygo.SexpNull, fmt.Errorf("grating %s: %w", cell, err)
			}
		}
		if _, err := r.b.Grating(cell, s); err != nil {
			return zygo.SexpNull, err
		}
		return &sexpCellRef{name: cell}, nil
	})

	// (surround "PGratSur" :direction "+y" :length 21.5 :final-gap 19)
	env.AddFunction("surround", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		a := newArgs("surround", args)
		cell := a.name(0, "name")
		dir := "+y"
		var length, finalGap float64
		margin, wg := 5.0, 0.5
		var layer, datatype int
		a.str("direction", &dir)
		a.float("length", &length)
		a.float("final-gap", &finalGap)
		a.float("margin", &margin)
		a.float("waveguide-width", &wg)
		a.integer("layer", &layer)
		a.integer("datatype", &datatype)
		if a.err != nil {
			return zygo.SexpNull, a.err
		}
		t := waveguide.Surround(layout.Vec2{}, dir, length, wg, margin, finalGap, layer, datatype)
		if err := r.b.Tapers(cell, t); err != nil {
			return zygo.SexpNull, err
		}
		return &sexpCellRef{name: cell}, nil
	})

	// (marker "Mark" :at (vec2 0 0) :margin 5)
	env.AddFunction("marker", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		a := newArgs("marker", args)
		cell := a.name(0, "name")
		var at layout.Vec2
		margin, wg := 5.0, 0.5
		var layer, datatype int
		a.vec("at", &at)
		a.float("margin", &margin)
		a.float("waveguide-width", &wg)
		a.integer("layer", &layer)
		a.integer("datatype", &datatype)
		if a.err != nil {
			return zygo.SexpNull, a.err
		}
		if err := r.b.Tapers(cell, waveguide.Marker(at, wg, margin, layer, datatype)); err != nil {
			return zygo.SexpNull, err
		}
		return &sexpCellRef{name: cell}, nil
	})

	// (cell "Positive")
	env.AddFunction("cell", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		a := newArgs("cell", args)
		cell := a.name(0, "name")
		if a.err != nil {
			return zygo.SexpNull, a.err
		}
		if _, err := r.b.Cell(cell); err != nil {
			return zygo.SexpNull, err
		}
		return &sexpCellRef{name: cell}, nil
	})

	// (place (cell "Positive") "PGrat" :at (vec2 -300 900) :rotation 180)
	env.AddFunction("place", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		a := newArgs("place", args)
		dst := a.name(0, "target")
		src := a.name(1, "cell")
		var at layout.Vec2
		var rot float64
		a.vec("at", &at)
		a.float("rotation", &rot)
		if a.err != nil {
			return zygo.SexpNull, a.err
		}
		if err := r.b.Stamp(dst, src, at, rot); err != nil {
			return zygo.SexpNull, err
		}
		return &sexpCellRef{name: dst}, nil
	})

	// (waveguide (cell "Positive") :start (vec2 0 0)
	//   :segments (list (vec2 -300 0) (vec2 0 300))
	//   :widths (list 5 5) :offset 5.5 :bend-radius 150)
	env.AddFunction("waveguide", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		a := newArgs("waveguide", args)
		dst := a.name(0, "target")
		var f waveguide.Flex
		var kind string
		a.vec("start", &f.Start)
		a.vecs("segments", &f.Segments)
		a.floats("widths", &f.Widths)
		a.float("offset", &f.Offset)
		a.float("bend-radius", &f.BendRadius)
		a.float("tolerance", &f.Tolerance)
		a.str("type", &kind)
		a.integer("layer", &f.Layer)
		a.integer("datatype", &f.Datatype)
		if a.err != nil {
			return zygo.SexpNull, a.err
		}
		var err error
		if f.Type, err = pathType(kind); err != nil {
			return zygo.SexpNull, fmt.Errorf("waveguide: %w", err)
		}
		c, err := r.b.Cell(dst)
		if err != nil {
			return zygo.SexpNull, err
		}
		paths, err := f.Paths()
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("waveguide in %s: %w", dst, err)
		}
		for _, p := range paths {
			c.AddPath(p)
		}
		return &sexpCellRef{name: dst}, nil
	})

	// (d2nn (cell "Positive") :mask-dir "masks/0_1" :y-min 3500)
	env.AddFunction("d2nn", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		a := newArgs("d2nn", args)
		dst := a.name(0, "target")
		p := compose.DefaultD2NN()
		var src maskdata.Dir
		a.str("mask-dir", &src.Root)
		a.str("pattern", &src.Pattern)
		a.str("field", &src.Field)

		a.integer("num-layers", &p.NumLayers)
		a.float("x-max", &p.XMax)
		a.float("y-min", &p.YMin)
		a.float("input-distance", &p.InputDistance)
		a.float("layer-distance", &p.LayerDistance)

		a.integer("row", &p.Row)
		a.integer("stride", &p.Stride)
		a.integer("sub-offset", &p.SubOffset)
		a.integer("pixel-count", &p.PixelCount)
		a.float("pitch", &p.Pitch)
		a.float("depth", &p.Depth)
		a.float("scale", &p.Scale)
		a.float("threshold", &p.Threshold)
		a.integer("layer", &p.Layer)
		a.integer("datatype", &p.Datatype)

		a.str("grating", &p.Grating)
		a.str("surround", &p.Surround)
		a.float("small-margin", &p.SmallMargin)
		a.float("waveguide-width", &p.WaveguideWidth)
		a.float("bend-radius", &p.BendRadius)
		a.float("horizontal-run", &p.HorizontalRun)
		a.float("wg-len", &p.WgLen)
		a.integer("feed-layer", &p.FeedLayer)
		a.integer("marker-layer", &p.MarkerLayer)
		a.integer("bracket-layer", &p.BracketLayer)
		if a.err != nil {
			return zygo.SexpNull, a.err
		}
		if src.Root == "" {
			return zygo.SexpNull, fmt.Errorf("d2nn %s: :mask-dir is required", dst)
		}
		src.Root = r.resolve(src.Root)
		n, err := r.b.D2NN(dst, p, src)
		if err != nil {
			return zygo.SexpNull, err
		}
		return &zygo.SexpInt{Val: int64(n)}, nil
	})

	// (link (cell "Positive") :origin (vec2 -4400 0) :length 2000 :rotation -90
	//   :grating "PGrat_lumerical" :surround "PGratSur_lumerical")
	env.AddFunction("link", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		a := newArgs("link", args)
		dst := a.name(0, "target")
		p := compose.LinkParams{RailWidth: 5, WaveguideWidth: 0.5}
		a.vec("origin", &p.Origin)
		a.float("length", &p.Length)
		a.float("rotation", &p.Rotation)
		a.float("rail-width", &p.RailWidth)
		a.float("waveguide-width", &p.WaveguideWidth)
		a.integer("layer", &p.Layer)
		a.str("grating", &p.Grating)
		a.str("surround", &p.Surround)
		if a.err != nil {
			return zygo.SexpNull, a.err
		}
		if err := r.b.Link(dst, p); err != nil {
			return zygo.SexpNull, err
		}
		return &sexpCellRef{name: dst}, nil
	})

	// (top "all" (cell "Positive") :offsets (list (vec2 0 0) (vec2 0 -40)))
	env.AddFunction("top", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		a := newArgs("top", args)
		top := a.name(0, "name")
		of := a.name(1, "cell")
		offsets := []layout.Vec2{{}}
		a.vecs("offsets", &offsets)
		if a.err != nil {
			return zygo.SexpNull, a.err
		}
		if len(offsets) == 0 {
			return zygo.SexpNull, fmt.Errorf("top %s: no offsets", top)
		}
		if err := r.b.Top(top, of, offsets...); err != nil {
			return zygo.SexpNull, err
		}
		return &sexpCellRef{name: top}, nil
	})
}
