// Package layout defines the hierarchical layout model for photomask.
// A Library holds named cells; each cell owns polygons and paths on
// layer/datatype pairs and places other cells through references.
package layout
