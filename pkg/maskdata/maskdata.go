// Package maskdata loads per-layer phase-mask arrays from MATLAB level-5
// (.mat), netCDF (.nc) and CSV files into gonum matrices.
package maskdata

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// DefaultField is the variable holding a layer's mask.
const DefaultField = "save_mask_phase"

// DefaultPattern names the mask file of layer i.
const DefaultPattern = "mask_length_0_%d.mat"

var (
	// ErrFieldNotFound is returned when a file has no variable of the
	// requested name.
	ErrFieldNotFound = errors.New("maskdata: field not found")
	// ErrFormat is returned for malformed or unsupported file contents.
	ErrFormat = errors.New("maskdata: unsupported format")
)

// Load reads the named field of the mask file at path. The format is
// chosen by extension; CSV files hold a single matrix and ignore field.
func Load(path, field string) (*mat.Dense, error) {
	if field == "" {
		field = DefaultField
	}
	var read func(*os.File) (*mat.Dense, error)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mat":
		read = func(f *os.File) (*mat.Dense, error) { return ReadMAT(f, field) }
	case ".nc":
		read = func(f *os.File) (*mat.Dense, error) { return ReadNetCDF(f, field) }
	case ".csv":
		read = func(f *os.File) (*mat.Dense, error) { return ReadCSV(f) }
	default:
		return nil, fmt.Errorf("%w: extension %q", ErrFormat, ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("maskdata: %w", err)
	}
	defer f.Close()

	m, err := read(f)
	if err != nil {
		return nil, fmt.Errorf("maskdata: %s: %w", path, err)
	}
	return m, nil
}

// Dir serves masks for successive layers from files in one directory.
type Dir struct {
	Root    string // directory holding the files
	Pattern string // fmt pattern taking the layer index; DefaultPattern if empty
	Field   string // variable name; DefaultField if empty
}

// Path returns the file that holds layer i.
func (d Dir) Path(i int) string {
	p := d.Pattern
	if p == "" {
		p = DefaultPattern
	}
	return filepath.Join(d.Root, fmt.Sprintf(p, i))
}

// Mask loads the mask of layer i.
func (d Dir) Mask(i int) (*mat.Dense, error) {
	return Load(d.Path(i), d.Field)
}
