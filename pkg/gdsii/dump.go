package gdsii

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Dump writes one line per record of the stream r to w, indenting the
// contents of structures and elements.
func Dump(w io.Writer, r io.Reader) error {
	br := bufio.NewReader(r)
	bw := bufio.NewWriter(w)
	depth := 0
	for {
		rec, err := ReadRecord(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		switch rec.Type {
		case EndStr, EndEl:
			depth = max(depth-1, 0)
		}
		fmt.Fprintf(bw, "%s%s%s\n", strings.Repeat("  ", depth), rec.Type, formatPayload(rec))
		switch rec.Type {
		case BgnStr, Boundary, PathRec, SRef, ARef, Text, Box:
			depth++
		}
		if rec.Type == EndLib {
			break
		}
	}
	return bw.Flush()
}

func formatPayload(rec Record) string {
	switch rec.Data {
	case NoData:
		return ""
	case ASCII:
		return fmt.Sprintf(" %q", rec.Str())
	case Real8:
		v, err := rec.Reals()
		if err != nil {
			return " ?"
		}
		return " " + joinValues(v)
	case BitArray:
		if len(rec.Raw) < 2 {
			return " ?"
		}
		return fmt.Sprintf(" 0x%02x%02x", rec.Raw[0], rec.Raw[1])
	default:
		v, err := rec.Ints()
		if err != nil {
			return " ?"
		}
		if rec.Type == XY {
			return " " + joinPairs(v)
		}
		return " " + joinValues(v)
	}
}

func joinValues[T int | float64](vs []T) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, " ")
}

func joinPairs(vs []int) string {
	parts := make([]string, 0, len(vs)/2)
	for i := 0; i+1 < len(vs); i += 2 {
		parts = append(parts, fmt.Sprintf("(%d,%d)", vs[i], vs[i+1]))
	}
	return strings.Join(parts, " ")
}
