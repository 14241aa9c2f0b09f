package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/chazu/photomask/pkg/gdsii"
)

func main() {
	var (
		configPath = flag.String("config", "", "JSON design file")
		recipePath = flag.String("recipe", "", "Lisp recipe file")
		out        = flag.String("out", "", "GDSII output file")
		top        = flag.String("top", "", "top cell for -preview and -dxf (default: the design's top cell)")
		previewOut = flag.String("preview", "", "write a .png, .svg or .pdf preview of the top cell")
		dxfOut     = flag.String("dxf", "", "write the flattened top cell as DXF")
		merge      = flag.Bool("merge", false, "union overlapping polygons before -preview and -dxf")
		dumpPath   = flag.String("dump", "", "print the records of a GDSII file and exit")
	)
	flag.Parse()

	if *dumpPath != "" {
		if err := dump(*dumpPath); err != nil {
			log.Fatal(err)
		}
		return
	}

	if (*configPath == "") == (*recipePath == "") {
		fmt.Fprintln(os.Stderr, "exactly one of -config or -recipe is required")
		flag.Usage()
		os.Exit(2)
	}
	if *out == "" && *previewOut == "" && *dxfOut == "" {
		fmt.Fprintln(os.Stderr, "nothing to write: give -out, -preview or -dxf")
		os.Exit(2)
	}

	app := NewApp()
	var result BuildResult
	if *configPath != "" {
		result = app.BuildConfig(*configPath)
	} else {
		result = app.EvaluateFile(*recipePath)
	}
	fmt.Fprint(os.Stderr, result.Describe())
	if !result.OK() {
		os.Exit(1)
	}

	opts := ExportOptions{GDS: *out, Top: *top, Preview: *previewOut, DXF: *dxfOut, Merge: *merge}
	if err := app.Export(result, opts); err != nil {
		log.Fatal(err)
	}
}

func dump(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gdsii.Dump(os.Stdout, f)
}
