package layout

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestLibraryAddAndLookup(t *testing.T) {
	l := New("lib")
	a, err := l.NewCell("a")
	if err != nil {
		t.Fatalf("NewCell(a): %v", err)
	}
	if _, err := l.NewCell("b"); err != nil {
		t.Fatalf("NewCell(b): %v", err)
	}
	if got := l.Lookup("a"); got != a {
		t.Errorf("Lookup(a) = %p, want %p", got, a)
	}
	if l.Lookup("missing") != nil {
		t.Error("Lookup(missing) should be nil")
	}
	if l.CellCount() != 2 {
		t.Errorf("CellCount() = %d, want 2", l.CellCount())
	}

	_, err = l.NewCell("a")
	if !errors.Is(err, ErrDuplicateCell) {
		t.Errorf("duplicate NewCell error = %v, want ErrDuplicateCell", err)
	}
	if err := l.Add(&Cell{}); err == nil {
		t.Error("Add with empty name should fail")
	}
}

func TestMustLookupPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustLookup on a missing cell should panic")
		}
	}()
	New("lib").MustLookup("nope")
}

func TestCellsInsertionOrder(t *testing.T) {
	l := New("lib")
	for _, n := range []string{"z", "a", "m"} {
		if _, err := l.NewCell(n); err != nil {
			t.Fatal(err)
		}
	}
	var got []string
	for _, c := range l.Cells() {
		got = append(got, c.Name)
	}
	if diff := cmp.Diff([]string{"z", "a", "m"}, got); diff != "" {
		t.Errorf("Cells() order mismatch (-want +got):\n%s", diff)
	}
}

func TestTopCellsAndChildren(t *testing.T) {
	l := New("lib")
	top, _ := l.NewCell("top")
	mid, _ := l.NewCell("mid")
	leaf, _ := l.NewCell("leaf")
	leaf.AddPolygon([]Vec2{{0, 0}, {1, 0}, {1, 1}}, 1, 0)
	mid.AddRef("leaf", Transform{})
	top.AddRef("mid", Transform{})
	top.AddRef("mid", Translation(V(10, 0)))
	top.AddRef("leaf", Transform{})

	tops := l.TopCells()
	if len(tops) != 1 || tops[0].Name != "top" {
		t.Fatalf("TopCells() = %v, want [top]", tops)
	}
	children := l.Children(top)
	if len(children) != 2 || children[0].Name != "mid" || children[1].Name != "leaf" {
		t.Errorf("Children(top) = %v, want [mid leaf]", children)
	}
}

func TestScale(t *testing.T) {
	l := New("lib")
	if got := l.Scale(); math.Abs(got-1000) > 1e-9 {
		t.Errorf("Scale() = %v, want 1000", got)
	}
}

var approx = cmpopts.EquateApprox(0, 1e-12)

func TestTransformApply(t *testing.T) {
	tests := []struct {
		name string
		tr   Transform
		in   Vec2
		want Vec2
	}{
		{"identity", Transform{}, V(1, 2), V(1, 2)},
		{"translate", Translation(V(3, -1)), V(1, 2), V(4, 1)},
		{"rot90", Transform{Rotation: 90}, V(1, 0), V(0, 1)},
		{"rot180", Transform{Rotation: 180}, V(1, 2), V(-1, -2)},
		{"rot-90", Transform{Rotation: -90}, V(1, 0), V(0, -1)},
		{"mag", Transform{Magnification: 2}, V(1, 2), V(2, 4)},
		{"reflect", Transform{XReflection: true}, V(1, 2), V(1, -2)},
		{"reflect then rotate", Transform{XReflection: true, Rotation: 90}, V(0, 1), V(1, 0)},
		{"full", Transform{Origin: V(10, 0), Rotation: 90, Magnification: 2}, V(1, 0), V(10, 2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.tr.Apply(tt.in)
			if diff := cmp.Diff(tt.want, got, approx); diff != "" {
				t.Errorf("Apply(%v) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestQuarterTurnsAreExact(t *testing.T) {
	p := V(0.123456789, 98.7654321)
	for _, deg := range []float64{90, 180, 270, -90, 450} {
		got := Transform{Rotation: deg}.Apply(p)
		s, c := SinCosDeg(deg)
		want := V(c*p.X-s*p.Y, s*p.X+c*p.Y)
		if got != want {
			t.Errorf("rotation %v: got %v, want exactly %v", deg, got, want)
		}
	}
}

func TestRotationAboutFixesCenter(t *testing.T) {
	center := V(5, -3)
	for _, deg := range []float64{0, 90, 180, 270, 33} {
		tr := RotationAbout(deg, center)
		if diff := cmp.Diff(center, tr.Apply(center), cmpopts.EquateApprox(0, 1e-9)); diff != "" {
			t.Errorf("RotationAbout(%v) moved center (-want +got):\n%s", deg, diff)
		}
		// Isometry: distances from center are preserved.
		p := V(7, 1)
		if d0, d1 := p.Dist(center), tr.Apply(p).Dist(center); math.Abs(d0-d1) > 1e-9 {
			t.Errorf("RotationAbout(%v) changed distance %v -> %v", deg, d0, d1)
		}
	}
}

func TestIsIdentity(t *testing.T) {
	if !(Transform{}).IsIdentity() {
		t.Error("zero Transform should be identity")
	}
	if !(Transform{Rotation: 360, Magnification: 1}).IsIdentity() {
		t.Error("full turn should be identity")
	}
	if (Transform{Rotation: 90}).IsIdentity() {
		t.Error("quarter turn should not be identity")
	}
}

func TestRefPlacements(t *testing.T) {
	single := Ref{Cell: "c", Transform: Translation(V(1, 1))}
	if got := single.Placements(); len(got) != 1 || got[0].Origin != V(1, 1) {
		t.Errorf("single Placements() = %v", got)
	}

	arr := Ref{
		Cell:       "c",
		Transform:  Transform{Origin: V(100, 0), Rotation: 90},
		Columns:    2,
		Rows:       2,
		ColSpacing: V(10, 0),
		RowSpacing: V(0, 5),
	}
	var origins []Vec2
	for _, p := range arr.Placements() {
		origins = append(origins, p.Origin)
	}
	want := []Vec2{{100, 0}, {100, 10}, {95, 0}, {95, 10}}
	if diff := cmp.Diff(want, origins, approx); diff != "" {
		t.Errorf("array origins mismatch (-want +got):\n%s", diff)
	}
}

func TestPolygonTransformed(t *testing.T) {
	p := Polygon{Points: []Vec2{{0, 0}, {1, 0}, {1, 1}}, Layer: 3, Datatype: 1}
	got := p.Transformed(Translation(V(1, 1)))
	want := Polygon{Points: []Vec2{{1, 1}, {2, 1}, {2, 2}}, Layer: 3, Datatype: 1}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("Transformed mismatch (-want +got):\n%s", diff)
	}
	if p.Points[0] != V(0, 0) {
		t.Error("Transformed mutated the receiver")
	}
}
