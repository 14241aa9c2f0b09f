package kernel

import (
	"sort"

	"github.com/chazu/photomask/pkg/layout"
)

// Tag identifies a GDSII layer/datatype pair.
type Tag struct {
	Layer    int `json:"layer"`
	Datatype int `json:"datatype"`
}

// TagOf returns the tag of p.
func TagOf(p layout.Polygon) Tag { return Tag{Layer: p.Layer, Datatype: p.Datatype} }

// Shapes is flat polygon geometry grouped by tag, suitable for previewing
// and export.
type Shapes struct {
	Polygons []layout.Polygon `json:"polygons"`
	CellName string           `json:"cellName"` // which cell was flattened
}

// PolygonCount returns the number of polygons.
func (s *Shapes) PolygonCount() int {
	return len(s.Polygons)
}

// VertexCount returns the total number of vertices.
func (s *Shapes) VertexCount() int {
	n := 0
	for _, p := range s.Polygons {
		n += len(p.Points)
	}
	return n
}

// IsEmpty returns true if there is no geometry.
func (s *Shapes) IsEmpty() bool {
	return len(s.Polygons) == 0
}

// Tags returns the distinct tags present, sorted by layer then datatype.
func (s *Shapes) Tags() []Tag {
	seen := make(map[Tag]bool)
	var out []Tag
	for _, p := range s.Polygons {
		t := TagOf(p)
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Layer != out[j].Layer {
			return out[i].Layer < out[j].Layer
		}
		return out[i].Datatype < out[j].Datatype
	})
	return out
}

// ByTag groups polygons by tag, preserving order within each group.
func ByTag(polys []layout.Polygon) map[Tag][]layout.Polygon {
	out := make(map[Tag][]layout.Polygon)
	for _, p := range polys {
		t := TagOf(p)
		out[t] = append(out[t], p)
	}
	return out
}
