package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/photomask/pkg/config"
	"github.com/chazu/photomask/pkg/engine"
	"github.com/chazu/photomask/pkg/flatten"
	"github.com/chazu/photomask/pkg/gdsii"
	"github.com/chazu/photomask/pkg/kernel"
	"github.com/chazu/photomask/pkg/kernel/clip"
	"github.com/chazu/photomask/pkg/layout"
	"github.com/chazu/photomask/pkg/preview"
)

// App builds layouts from design files or recipes and writes them out.
type App struct {
	engine *engine.Engine
	kernel kernel.Kernel
}

// BuildError is a recipe, configuration or validation error.
type BuildError struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// BuildResult is the full result of one build.
type BuildResult struct {
	Library  *layout.Library `json:"-"`
	Top      string          `json:"top"`
	Errors   []BuildError    `json:"errors"`
	Warnings []BuildError    `json:"warnings"`
}

// OK reports whether the build produced a usable library.
func (r BuildResult) OK() bool {
	return r.Library != nil && len(r.Errors) == 0
}

// NewApp creates a new App with a recipe engine and the clipping kernel.
func NewApp() *App {
	k := clip.New()
	e := engine.NewEngine(k)
	e.Logf = log.Printf
	return &App{engine: e, kernel: k}
}

// Evaluate runs recipe source and validates the library it builds.
// Relative mask directories resolve against baseDir.
func (a *App) Evaluate(source, baseDir string) BuildResult {
	result := BuildResult{
		Errors:   []BuildError{},
		Warnings: []BuildError{},
	}

	// Step 1: Evaluate the recipe into a layout library.
	a.engine.BaseDir = baseDir
	lib, evalErrs, err := a.engine.Evaluate(source)
	if err != nil {
		// Fatal error (panic, timeout, etc.)
		log.Printf("Evaluate fatal error: %v", err)
		result.Errors = append(result.Errors, BuildError{Message: err.Error()})
		return result
	}

	// Step 2: Convert eval errors.
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			result.Errors = append(result.Errors, BuildError{
				Line:    e.Line,
				Col:     e.Col,
				Message: e.Message,
			})
		}
		return result
	}

	// Step 3: Validate the structure and pick the top cell.
	a.finish(&result, lib, "")
	return result
}

// EvaluateFile runs the recipe at path.
func (a *App) EvaluateFile(path string) BuildResult {
	src, err := os.ReadFile(path)
	if err != nil {
		return BuildResult{Errors: []BuildError{{Message: err.Error()}}}
	}
	return a.Evaluate(string(src), filepath.Dir(path))
}

// BuildConfig loads a JSON design and builds it.
func (a *App) BuildConfig(path string) BuildResult {
	result := BuildResult{
		Errors:   []BuildError{},
		Warnings: []BuildError{},
	}
	d, err := config.Load(path)
	if err != nil {
		result.Errors = append(result.Errors, BuildError{Message: err.Error()})
		return result
	}
	lib, err := config.Build(d, a.kernel, log.Printf)
	if err != nil {
		log.Printf("Build error: %v", err)
		result.Errors = append(result.Errors, BuildError{Message: err.Error()})
		return result
	}
	a.finish(&result, lib, d.TopName())
	return result
}

// finish validates lib and records it in result when it has no errors.
func (a *App) finish(result *BuildResult, lib *layout.Library, top string) {
	for _, v := range layout.Validate(lib) {
		e := BuildError{Message: v.Error()}
		if v.Severity == layout.SeverityError {
			result.Errors = append(result.Errors, e)
		} else {
			result.Warnings = append(result.Warnings, e)
		}
	}
	if len(result.Errors) > 0 {
		return
	}
	if top == "" {
		if tops := lib.TopCells(); len(tops) == 1 {
			top = tops[0].Name
		}
	}
	result.Library = lib
	result.Top = top
}

// Export options select the files written for a successful build.
type ExportOptions struct {
	GDS     string // GDSII stream
	Top     string // overrides the build's top cell for previews
	Preview string // .png, .svg or .pdf
	DXF     string
	Merge   bool // union the flattened polygons per layer first
}

// Export writes the requested outputs for result.
func (a *App) Export(result BuildResult, opts ExportOptions) error {
	if !result.OK() {
		return fmt.Errorf("nothing to export: build failed")
	}
	lib := result.Library
	if opts.GDS != "" {
		if err := gdsii.WriteFile(opts.GDS, lib); err != nil {
			return err
		}
		log.Printf("wrote %s: %d cells", opts.GDS, lib.CellCount())
	}
	if opts.Preview == "" && opts.DXF == "" {
		return nil
	}

	top := opts.Top
	if top == "" {
		top = result.Top
	}
	if top == "" {
		return fmt.Errorf("no single top cell; choose one for the preview")
	}
	shapes, err := flatten.Flatten(lib, top, a.kernel, flatten.Options{Merge: opts.Merge})
	if err != nil {
		log.Printf("Flatten error: %v", err)
		return err
	}
	if opts.Preview != "" {
		title := fmt.Sprintf("%s / %s", lib.Name, top)
		if err := preview.Render(shapes.Polygons, opts.Preview, preview.Options{Title: title}); err != nil {
			return err
		}
		log.Printf("wrote %s: %d polygons", opts.Preview, shapes.PolygonCount())
	}
	if opts.DXF != "" {
		if err := preview.WriteDXF(shapes.Polygons, opts.DXF); err != nil {
			return err
		}
		log.Printf("wrote %s", opts.DXF)
	}
	return nil
}

// Describe returns one line per message for terminal output.
func (r BuildResult) Describe() string {
	var sb strings.Builder
	for _, e := range r.Errors {
		if e.Line > 0 {
			fmt.Fprintf(&sb, "error: line %d: %s\n", e.Line, e.Message)
		} else {
			fmt.Fprintf(&sb, "error: %s\n", e.Message)
		}
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&sb, "warning: %s\n", w.Message)
	}
	return sb.String()
}
