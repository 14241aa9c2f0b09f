package grating_test

import (
	"errors"
	"math"
	"testing"

	"github.com/chazu/photomask/pkg/grating"
	"github.com/chazu/photomask/pkg/kernel"
	"github.com/chazu/photomask/pkg/kernel/clip"
	"github.com/chazu/photomask/pkg/layout"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// passKernel returns its input unchanged and counts calls.
type passKernel struct {
	unions, fractures int
	maxPoints         int
}

func (k *passKernel) Union(polys []layout.Polygon) ([]layout.Polygon, error) {
	k.unions++
	return polys, nil
}

func (k *passKernel) Fracture(polys []layout.Polygon, maxPoints int) ([]layout.Polygon, error) {
	k.fractures++
	k.maxPoints = maxPoints
	return polys, nil
}

var _ kernel.Kernel = (*passKernel)(nil)

func straightSpec() grating.Spec {
	s := grating.DefaultSpec()
	s.Period = 1
	s.Teeth = 5
	s.FillFraction = 0.4
	s.Width = 3
	s.Position = layout.V(1, 2)
	s.Layer = 4
	return s
}

// focusingSpec is the demo focusing grating: period 0.75, 28 teeth, fill
// 0.28, width 19, wavelength 1.55, 10° incidence, focus 21.5, open.
func focusingSpec() grating.Spec {
	s := grating.DefaultSpec()
	s.Period = 0.75
	s.Teeth = 28
	s.FillFraction = 0.28
	s.Width = 19
	s.Wavelength = 1.55
	s.SinTheta = math.Sin(10 * math.Pi / 180)
	s.FocusDistance = 21.5
	s.FocusWidth = -1
	return s
}

func xRange(pts []layout.Vec2) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, p := range pts {
		lo, hi = math.Min(lo, p.X), math.Max(hi, p.X)
	}
	return lo, hi
}

func yRange(pts []layout.Vec2) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, p := range pts {
		lo, hi = math.Min(lo, p.Y), math.Max(hi, p.Y)
	}
	return lo, hi
}

func TestStraightTeeth(t *testing.T) {
	k := &passKernel{}
	s := straightSpec()
	g, err := grating.Generate(s, k)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(g.Teeth) != s.Teeth || len(g.Polygons) != s.Teeth {
		t.Fatalf("got %d teeth / %d polygons, want %d", len(g.Teeth), len(g.Polygons), s.Teeth)
	}
	for i, tooth := range g.Teeth {
		x0, x1 := xRange(tooth.Outline)
		y0, y1 := yRange(tooth.Outline)
		if x0 != -0.5 || x1 != 2.5 {
			t.Errorf("tooth %d x-range [%v, %v], want [-0.5, 2.5]", i, x0, x1)
		}
		wantY0 := 2 + float64(i)
		if math.Abs(y0-wantY0) > 1e-12 || math.Abs(y1-y0-0.4) > 1e-12 {
			t.Errorf("tooth %d y-range [%v, %v], want start %v height 0.4", i, y0, y1, wantY0)
		}
		if g.Polygons[i].Layer != 4 {
			t.Errorf("polygon %d layer %d, want 4", i, g.Polygons[i].Layer)
		}
	}
	if g.Closure != nil {
		t.Errorf("straight grating got closure %v", g.Closure)
	}
	if k.unions != 1 || k.fractures != 1 || k.maxPoints != kernel.DefaultMaxPoints {
		t.Errorf("kernel calls: unions=%d fractures=%d maxPoints=%d", k.unions, k.fractures, k.maxPoints)
	}
}

func TestStraightCentreLine(t *testing.T) {
	// Teeth are symmetric about y = py + ½(Teeth-1+FillFraction)·Period.
	s := straightSpec()
	g, err := grating.Generate(s, &passKernel{})
	if err != nil {
		t.Fatal(err)
	}
	lo, _ := yRange(g.Teeth[0].Outline)
	_, hi := yRange(g.Teeth[len(g.Teeth)-1].Outline)
	want := s.Position.Y + 0.5*(float64(s.Teeth)-1+s.FillFraction)*s.Period
	if got := (lo + hi) / 2; math.Abs(got-want) > 1e-12 {
		t.Errorf("centre line %v, want %v", got, want)
	}
}

func TestDirectionIsIsometry(t *testing.T) {
	base := focusingSpec()
	base.Teeth = 3
	base.Position = layout.V(10, -4)
	up, err := grating.Generate(base, &passKernel{})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		dir grating.Direction
		deg float64
	}{
		{grating.MinusX, 90},
		{grating.PlusX, -90},
		{grating.MinusY, 180},
		{grating.PlusY, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.dir), func(t *testing.T) {
			s := base
			s.Direction = tt.dir
			g, err := grating.Generate(s, &passKernel{})
			if err != nil {
				t.Fatal(err)
			}
			rot := layout.RotationAbout(tt.deg, s.Position)
			for i := range up.Polygons {
				want := rot.ApplyAll(up.Polygons[i].Points)
				if diff := cmp.Diff(want, g.Polygons[i].Points, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
					t.Fatalf("polygon %d mismatch (-want +got):\n%s", i, diff)
				}
			}
		})
	}
}

func TestFocusingClosedForm(t *testing.T) {
	s := focusingSpec()
	s.Teeth = 4
	s.Position = layout.V(3, 7)
	g, err := grating.Generate(s, &passKernel{})
	if err != nil {
		t.Fatal(err)
	}
	neff := s.Wavelength/s.Period + s.SinTheta
	c3 := neff*neff - s.SinTheta*s.SinTheta
	qmin := int(s.FocusDistance/s.Period + 0.5)
	for k, tooth := range g.Teeth {
		if tooth.Q != qmin+k {
			t.Errorf("tooth %d order %d, want %d", k, tooth.Q, qmin+k)
		}
		ql := float64(tooth.Q) * s.Wavelength
		for _, p := range tooth.Spine {
			x := p.X - s.Position.X
			want := (ql*s.SinTheta + neff*math.Sqrt(ql*ql-c3*x*x)) / c3
			if got := p.Y - s.Position.Y; math.Abs(got-want) > 1e-9 {
				t.Fatalf("tooth %d point %v: y=%v, want %v", k, p, got, want)
			}
		}
		if w := tooth.Width; math.Abs(w-s.Period*s.FillFraction) > 1e-15 {
			t.Errorf("tooth %d width %v, want %v", k, w, s.Period*s.FillFraction)
		}
	}
}

func TestClosure(t *testing.T) {
	tests := []struct {
		name      string
		fw        float64
		wantExtra int
	}{
		{"open", -1, 0},
		{"point", 0, 1},
		{"segment", 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := focusingSpec()
			s.Teeth = 3
			s.FocusWidth = tt.fw
			s.Position = layout.V(-2, 5)
			g, err := grating.Generate(s, &passKernel{})
			if err != nil {
				t.Fatal(err)
			}
			if len(g.Closure) != tt.wantExtra {
				t.Fatalf("closure %v, want %d points", g.Closure, tt.wantExtra)
			}
			first := g.Polygons[0].Points
			outline := g.Teeth[0].Outline
			switch tt.wantExtra {
			case 0:
				if len(first) != len(outline) {
					t.Errorf("open grating changed the first tooth: %d vs %d points", len(first), len(outline))
				}
			case 1:
				if g.Closure[0] != s.Position {
					t.Errorf("closure point %v, want %v", g.Closure[0], s.Position)
				}
			case 2:
				a, b := g.Closure[0], g.Closure[1]
				if d := a.Dist(b); math.Abs(d-tt.fw) > 1e-12 {
					t.Errorf("closure segment length %v, want %v", d, tt.fw)
				}
				mid := a.Add(b).Scale(0.5)
				if mid.Dist(s.Position) > 1e-12 {
					t.Errorf("closure segment centred on %v, want %v", mid, s.Position)
				}
			}
			if tt.wantExtra > 0 {
				if want := len(outline)/2 + tt.wantExtra; len(first) != want {
					t.Errorf("first polygon has %d points, want %d", len(first), want)
				}
				// Later teeth are untouched.
				if len(g.Polygons[1].Points) != len(g.Teeth[1].Outline) {
					t.Error("closure leaked into the second tooth")
				}
			}
		})
	}
}

func TestCircularVariantUsesTable(t *testing.T) {
	table, err := grating.Table("lumerical")
	if err != nil {
		t.Fatal(err)
	}
	s := grating.DefaultSpec()
	s.Variant = grating.VariantCircular
	s.Period = 0.6
	s.Teeth = 20
	s.FillFraction = 0.38
	s.Width = 19
	s.Wavelength = 1.55
	s.SinTheta = math.Sin(10 * math.Pi / 180)
	s.FocusDistance = 25
	s.FocusWidth = 16
	s.FillTable = table
	s.Position = layout.V(1, 1)

	g, err := grating.Generate(s, &passKernel{})
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Teeth) != 20 {
		t.Fatalf("got %d teeth, want 20", len(g.Teeth))
	}
	if g.Closure != nil {
		t.Error("circular variant must not apply closure")
	}
	for q, tooth := range g.Teeth {
		if tooth.Width != table[q] {
			t.Errorf("tooth %d width %v, want %v", q, tooth.Width, table[q])
		}
		r := float64(q)*s.Period + s.FocusDistance
		for _, p := range tooth.Spine {
			if d := p.Dist(s.Position); math.Abs(d-r) > 1e-9 {
				t.Fatalf("tooth %d point %v at radius %v, want %v", q, p, d, r)
			}
		}
		half := r / s.FocusDistance * s.FocusWidth / 2
		lo, hi := xRange(tooth.Spine)
		if math.Abs(lo-(s.Position.X-half)) > 1e-9 || math.Abs(hi-(s.Position.X+half)) > 1e-9 {
			t.Errorf("tooth %d aperture [%v, %v], want ±%v", q, lo, hi, half)
		}
	}
}

func TestMaxPointsCapsSpine(t *testing.T) {
	s := focusingSpec()
	s.Teeth = 2
	s.Tolerance = 1e-6
	s.MaxPoints = 12
	g, err := grating.Generate(s, &passKernel{})
	if err != nil {
		t.Fatal(err)
	}
	for i, tooth := range g.Teeth {
		if len(tooth.Spine) > s.MaxPoints {
			t.Errorf("tooth %d spine has %d points > %d", i, len(tooth.Spine), s.MaxPoints)
		}
	}
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*grating.Spec)
	}{
		{"zero period", func(s *grating.Spec) { s.Period = 0 }},
		{"no teeth", func(s *grating.Spec) { s.Teeth = 0 }},
		{"zero width", func(s *grating.Spec) { s.Width = 0 }},
		{"bad direction", func(s *grating.Spec) { s.Direction = "up" }},
		{"zero tolerance", func(s *grating.Spec) { s.Tolerance = 0 }},
		{"c3 not positive", func(s *grating.Spec) { s.Wavelength = -s.Period * s.SinTheta }},
		{"negative root", func(s *grating.Spec) { s.FocusDistance = 0 }},
		{"short fill table", func(s *grating.Spec) { s.FillTable = []float64{0.2, 0.2} }},
		{"circular zero focus", func(s *grating.Spec) {
			s.Variant = grating.VariantCircular
			s.FocusDistance = 0
		}},
		{"circular no aperture", func(s *grating.Spec) {
			s.Variant = grating.VariantCircular
			s.FocusWidth = -1
		}},
		{"circular aperture too wide", func(s *grating.Spec) {
			s.Variant = grating.VariantCircular
			s.FocusWidth = 3 * s.FocusDistance
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := focusingSpec()
			tt.mutate(&s)
			g, err := grating.Generate(s, &passKernel{})
			if !errors.Is(err, grating.ErrDomain) {
				t.Fatalf("err = %v, want ErrDomain", err)
			}
			if g != nil {
				t.Error("no geometry expected on error")
			}
		})
	}
}

func TestParseHelpers(t *testing.T) {
	for _, d := range []string{"+x", "-x", "+y", "-y", ""} {
		if _, err := grating.ParseDirection(d); err != nil {
			t.Errorf("ParseDirection(%q): %v", d, err)
		}
	}
	if _, err := grating.ParseDirection("x"); !errors.Is(err, grating.ErrDomain) {
		t.Errorf("ParseDirection(x) = %v, want ErrDomain", err)
	}
	v, err := grating.ParseVariant("lumerical")
	if err != nil || v != grating.VariantCircular {
		t.Errorf("ParseVariant(lumerical) = %v, %v", v, err)
	}
	var u grating.Variant
	if err := u.UnmarshalText([]byte("exact")); err != nil || u != grating.VariantExact {
		t.Errorf("UnmarshalText(exact) = %v, %v", u, err)
	}
}

func TestTableIsCopy(t *testing.T) {
	a, _ := grating.Table("lumerical")
	a[0] = 99
	b, _ := grating.Table("lumerical")
	if b[0] == 99 {
		t.Error("Table returned shared storage")
	}
	if len(b) != 20 {
		t.Errorf("lumerical table has %d entries, want 20", len(b))
	}
	if _, err := grating.Table("nope"); err == nil {
		t.Error("unknown table should fail")
	}
	if names := grating.TableNames(); len(names) == 0 || names[0] != "lumerical" {
		t.Errorf("TableNames() = %v", names)
	}
}

// segmentsCross reports whether segments ab and cd properly intersect.
func segmentsCross(a, b, c, d layout.Vec2) bool {
	d1 := b.Sub(a).Cross(c.Sub(a))
	d2 := b.Sub(a).Cross(d.Sub(a))
	d3 := d.Sub(c).Cross(a.Sub(c))
	d4 := d.Sub(c).Cross(b.Sub(c))
	return d1*d2 < 0 && d3*d4 < 0
}

func selfIntersects(ring []layout.Vec2) bool {
	n := len(ring)
	for i := 0; i < n; i++ {
		a, b := ring[i], ring[(i+1)%n]
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue
			}
			if segmentsCross(a, b, ring[j], ring[(j+1)%n]) {
				return true
			}
		}
	}
	return false
}

func TestEndToEndFocusingGrating(t *testing.T) {
	s := focusingSpec()
	g, err := grating.Generate(s, clip.New())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(g.Teeth) != 28 {
		t.Fatalf("got %d teeth, want 28", len(g.Teeth))
	}
	for i, tooth := range g.Teeth {
		if len(tooth.Outline) < 4 {
			t.Errorf("tooth %d outline has %d points", i, len(tooth.Outline))
		}
		if selfIntersects(tooth.Outline) {
			t.Errorf("tooth %d outline self-intersects", i)
		}
		lo, hi := xRange(tooth.Spine)
		if lo < s.Position.X-s.Width/2-1e-9 || hi > s.Position.X+s.Width/2+1e-9 {
			t.Errorf("tooth %d spine x-range [%v, %v] exceeds ±%v", i, lo, hi, s.Width/2)
		}
	}
	if len(g.Polygons) < 28 {
		t.Errorf("got %d output polygons, want at least 28", len(g.Polygons))
	}
	for i, p := range g.Polygons {
		if len(p.Points) > kernel.DefaultMaxPoints {
			t.Errorf("polygon %d has %d vertices", i, len(p.Points))
		}
	}
}
