package layout

import (
	"fmt"
	"sort"
)

// GDSII limits enforced by validation.
const (
	MaxBoundaryPoints = 8190 // XY record holds 8191 pairs including the closing vertex
	MaxPathPoints     = 1024
	MaxNameLength     = 32
	MaxLayer          = 255
)

// ValidationSeverity indicates whether a validation finding blocks output
// or is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // blocks output
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	Cell     string             // which cell has the problem (empty if library-level)
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.Cell == "" {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] cell %s: %s", e.Severity, e.Cell, e.Message)
}

// HasErrors reports whether any finding in errs blocks output.
func HasErrors(errs []ValidationError) bool {
	for _, e := range errs {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate runs all structural checks on the library and returns the
// findings, errors first. This function is read-only.
func Validate(l *Library) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateReferences(l)...)
	errs = append(errs, validateDAG(l)...)
	errs = append(errs, validateNames(l)...)
	errs = append(errs, validateGeometry(l)...)
	errs = append(errs, validateEmpty(l)...)
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Severity < errs[j].Severity })
	return errs
}

// validateReferences checks that every reference names an existing cell.
func validateReferences(l *Library) []ValidationError {
	var errs []ValidationError
	for _, c := range l.Cells() {
		for _, r := range c.Refs {
			if l.Lookup(r.Cell) == nil {
				errs = append(errs, ValidationError{
					Cell:     c.Name,
					Message:  fmt.Sprintf("reference to undefined cell %q", r.Cell),
					Severity: SeverityError,
				})
			}
			if r.Columns < 0 || r.Rows < 0 {
				errs = append(errs, ValidationError{
					Cell:     c.Name,
					Message:  fmt.Sprintf("array reference to %q has negative size %dx%d", r.Cell, r.Columns, r.Rows),
					Severity: SeverityError,
				})
			}
		}
	}
	return errs
}

// validateDAG checks for reference cycles using DFS with 3-color marking.
// White (0) = unvisited, gray (1) = on the current DFS path, black (2) =
// fully explored. Reaching a gray cell means a cycle.
func validateDAG(l *Library) []ValidationError {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int)
	var errs []ValidationError

	var visit func(name string) bool
	visit = func(name string) bool {
		switch color[name] {
		case black:
			return false
		case gray:
			errs = append(errs, ValidationError{
				Cell:     name,
				Message:  "cell references itself through a cycle",
				Severity: SeverityError,
			})
			return true
		}

		color[name] = gray
		c := l.Lookup(name)
		if c == nil {
			// Dangling reference; handled by validateReferences.
			color[name] = black
			return false
		}
		for _, r := range c.Refs {
			if visit(r.Cell) {
				return true
			}
		}
		color[name] = black
		return false
	}

	for _, c := range l.Cells() {
		if color[c.Name] == white {
			if visit(c.Name) {
				// One cycle error is sufficient.
				break
			}
		}
	}
	return errs
}

// validateNames warns about names older GDSII readers truncate or reject.
func validateNames(l *Library) []ValidationError {
	var errs []ValidationError
	if len(l.Name) == 0 {
		errs = append(errs, ValidationError{
			Message:  "library name is empty",
			Severity: SeverityWarning,
		})
	}
	for _, c := range l.Cells() {
		if len(c.Name) > MaxNameLength {
			errs = append(errs, ValidationError{
				Cell:     c.Name,
				Message:  fmt.Sprintf("name is %d characters, longer than %d", len(c.Name), MaxNameLength),
				Severity: SeverityWarning,
			})
		}
		for _, r := range c.Name {
			if !validNameRune(r) {
				errs = append(errs, ValidationError{
					Cell:     c.Name,
					Message:  fmt.Sprintf("name contains %q, outside [A-Za-z0-9_?$]", r),
					Severity: SeverityWarning,
				})
				break
			}
		}
	}
	return errs
}

func validNameRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
		r == '_' || r == '?' || r == '$'
}

// validateGeometry checks vertex counts, widths and layer ranges.
func validateGeometry(l *Library) []ValidationError {
	var errs []ValidationError
	for _, c := range l.Cells() {
		for i, p := range c.Polygons {
			switch {
			case len(p.Points) < 3:
				errs = append(errs, ValidationError{
					Cell:     c.Name,
					Message:  fmt.Sprintf("polygon %d has %d vertices, need at least 3", i, len(p.Points)),
					Severity: SeverityError,
				})
			case len(p.Points) > MaxBoundaryPoints:
				errs = append(errs, ValidationError{
					Cell:     c.Name,
					Message:  fmt.Sprintf("polygon %d has %d vertices, limit is %d (fracture it)", i, len(p.Points), MaxBoundaryPoints),
					Severity: SeverityError,
				})
			}
			errs = append(errs, checkTag(c.Name, "polygon", i, p.Layer, p.Datatype)...)
		}
		for i, p := range c.Paths {
			if len(p.Spine) < 2 {
				errs = append(errs, ValidationError{
					Cell:     c.Name,
					Message:  fmt.Sprintf("path %d has %d spine points, need at least 2", i, len(p.Spine)),
					Severity: SeverityError,
				})
			}
			if len(p.Spine) > MaxPathPoints {
				errs = append(errs, ValidationError{
					Cell:     c.Name,
					Message:  fmt.Sprintf("path %d has %d spine points, some readers stop at %d", i, len(p.Spine), MaxPathPoints),
					Severity: SeverityWarning,
				})
			}
			if p.Width <= 0 {
				errs = append(errs, ValidationError{
					Cell:     c.Name,
					Message:  fmt.Sprintf("path %d width is %.4f, must be positive", i, p.Width),
					Severity: SeverityError,
				})
			}
			errs = append(errs, checkTag(c.Name, "path", i, p.Layer, p.Datatype)...)
		}
	}
	return errs
}

func checkTag(cell, kind string, i, layer, datatype int) []ValidationError {
	var errs []ValidationError
	if layer < 0 || layer > MaxLayer {
		errs = append(errs, ValidationError{
			Cell:     cell,
			Message:  fmt.Sprintf("%s %d layer %d outside 0..%d", kind, i, layer, MaxLayer),
			Severity: SeverityError,
		})
	}
	if datatype < 0 || datatype > MaxLayer {
		errs = append(errs, ValidationError{
			Cell:     cell,
			Message:  fmt.Sprintf("%s %d datatype %d outside 0..%d", kind, i, datatype, MaxLayer),
			Severity: SeverityError,
		})
	}
	return errs
}

// validateEmpty warns about cells that contribute nothing.
func validateEmpty(l *Library) []ValidationError {
	var errs []ValidationError
	for _, c := range l.Cells() {
		if c.IsEmpty() {
			errs = append(errs, ValidationError{
				Cell:     c.Name,
				Message:  "cell is empty",
				Severity: SeverityWarning,
			})
		}
	}
	return errs
}
