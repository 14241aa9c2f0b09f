package gdsii

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/chazu/photomask/pkg/layout"
)

// streamVersion is written in the HEADER record.
const streamVersion = 600

// Write serializes lib as a GDSII stream. Referenced cells are written
// before the cells that use them. The library must be free of dangling
// references and cycles.
func Write(w io.Writer, lib *layout.Library) error {
	order, err := writeOrder(lib)
	if err != nil {
		return err
	}
	if !(lib.Unit > 0) || !(lib.Precision > 0) {
		return fmt.Errorf("gdsii: units %v/%v must be positive", lib.Unit, lib.Precision)
	}

	bw := bufio.NewWriter(w)
	e := &encoder{w: bw, scale: lib.Scale()}
	stamp := timestamp(lib.Timestamp)

	e.int2(Header, streamVersion)
	e.int2(BgnLib, append(stamp, stamp...)...)
	e.str(LibName, lib.Name)
	e.real8(Units, lib.Precision/lib.Unit, lib.Precision)
	for _, c := range order {
		e.cell(c, stamp)
	}
	e.empty(EndLib)
	if e.err != nil {
		return e.err
	}
	return bw.Flush()
}

// WriteFile writes lib to path through a temporary file in the same
// directory, renaming it into place only after a complete write.
func WriteFile(path string, lib *layout.Library) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("gdsii: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	if err = Write(tmp, lib); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("gdsii: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("gdsii: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("gdsii: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("gdsii: %w", err)
	}
	return nil
}

// writeOrder returns all cells with every cell after the cells it
// references, keeping insertion order otherwise.
func writeOrder(lib *layout.Library) ([]*layout.Cell, error) {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int)
	var out []*layout.Cell
	var visit func(c *layout.Cell) error
	visit = func(c *layout.Cell) error {
		switch color[c.Name] {
		case black:
			return nil
		case gray:
			return fmt.Errorf("gdsii: cell %q references itself through a cycle", c.Name)
		}
		color[c.Name] = gray
		for _, r := range c.Refs {
			child := lib.Lookup(r.Cell)
			if child == nil {
				return fmt.Errorf("gdsii: cell %q references undefined cell %q", c.Name, r.Cell)
			}
			if err := visit(child); err != nil {
				return err
			}
		}
		color[c.Name] = black
		out = append(out, c)
		return nil
	}
	for _, c := range lib.Cells() {
		if err := visit(c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// timestamp returns the BGNLIB/BGNSTR date fields. The zero time maps to
// the Unix epoch so output is reproducible.
func timestamp(t time.Time) []int {
	if t.IsZero() {
		t = time.Unix(0, 0)
	}
	t = t.UTC()
	return []int{t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second()}
}

// encoder writes records, remembering the first error.
type encoder struct {
	w     *bufio.Writer
	scale float64
	err   error
}

func (e *encoder) record(t RecordType, d DataType, payload []byte) {
	if e.err != nil {
		return
	}
	n := len(payload) + 4
	if n > maxRecordLen {
		e.err = fmt.Errorf("gdsii: %s record of %d bytes exceeds the stream limit", t, n)
		return
	}
	var hdr [4]byte
	binary.BigEndian.PutUint16(hdr[:], uint16(n))
	hdr[2], hdr[3] = byte(t), byte(d)
	if _, err := e.w.Write(hdr[:]); err != nil {
		e.err = err
		return
	}
	if _, err := e.w.Write(payload); err != nil {
		e.err = err
	}
}

func (e *encoder) empty(t RecordType) { e.record(t, NoData, nil) }

func (e *encoder) int2(t RecordType, vs ...int) {
	b := make([]byte, 2*len(vs))
	for i, v := range vs {
		if v < math.MinInt16 || v > math.MaxInt16 {
			if e.err == nil {
				e.err = fmt.Errorf("gdsii: %s value %d out of int2 range", t, v)
			}
			return
		}
		binary.BigEndian.PutUint16(b[2*i:], uint16(int16(v)))
	}
	e.record(t, Int2, b)
}

func (e *encoder) bits(t RecordType, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	e.record(t, BitArray, b[:])
}

func (e *encoder) int4(t RecordType, vs ...int64) {
	b := make([]byte, 4*len(vs))
	for i, v := range vs {
		if v < math.MinInt32 || v > math.MaxInt32 {
			if e.err == nil {
				e.err = fmt.Errorf("gdsii: %s value %d out of int4 range", t, v)
			}
			return
		}
		binary.BigEndian.PutUint32(b[4*i:], uint32(int32(v)))
	}
	e.record(t, Int4, b)
}

func (e *encoder) real8(t RecordType, vs ...float64) {
	b := make([]byte, 8*len(vs))
	for i, v := range vs {
		bits, err := EncodeReal8(v)
		if err != nil {
			if e.err == nil {
				e.err = err
			}
			return
		}
		binary.BigEndian.PutUint64(b[8*i:], bits)
	}
	e.record(t, Real8, b)
}

func (e *encoder) str(t RecordType, s string) {
	b := []byte(s)
	if len(b)%2 != 0 {
		b = append(b, 0)
	}
	e.record(t, ASCII, b)
}

// db converts a user-unit coordinate to database units.
func (e *encoder) db(v float64) int64 {
	return int64(math.Round(v * e.scale))
}

func (e *encoder) xy(pts []layout.Vec2, closeRing bool) {
	n := len(pts)
	if closeRing {
		n++
	}
	vs := make([]int64, 0, 2*n)
	for _, p := range pts {
		vs = append(vs, e.db(p.X), e.db(p.Y))
	}
	if closeRing && len(pts) > 0 {
		vs = append(vs, vs[0], vs[1])
	}
	e.int4(XY, vs...)
}

func (e *encoder) cell(c *layout.Cell, stamp []int) {
	e.int2(BgnStr, append(stamp, stamp...)...)
	e.str(StrName, c.Name)
	for _, p := range c.Polygons {
		e.empty(Boundary)
		e.int2(Layer, p.Layer)
		e.int2(Datatype, p.Datatype)
		e.xy(p.Points, true)
		e.empty(EndEl)
	}
	for _, p := range c.Paths {
		e.empty(PathRec)
		e.int2(Layer, p.Layer)
		e.int2(Datatype, p.Datatype)
		if p.Type != layout.PathFlush {
			e.int2(PathType, pathTypeCode(p.Type))
		}
		e.int4(Width, e.db(p.Width))
		e.xy(p.Spine, false)
		e.empty(EndEl)
	}
	for _, r := range c.Refs {
		e.ref(r)
	}
	e.empty(EndStr)
}

func pathTypeCode(k layout.PathType) int {
	switch k {
	case layout.PathRound:
		return 1
	case layout.PathExtended:
		return 2
	default:
		return 0
	}
}

func (e *encoder) ref(r layout.Ref) {
	t := r.Transform
	if r.IsArray() {
		e.empty(ARef)
	} else {
		e.empty(SRef)
	}
	e.str(SName, r.Cell)

	rot := math.Mod(t.Rotation, 360)
	if rot < 0 {
		rot += 360
	}
	mag := t.Magnification
	if mag == 0 {
		mag = 1
	}
	if t.XReflection || rot != 0 || mag != 1 {
		var flags uint16
		if t.XReflection {
			flags |= 0x8000
		}
		e.bits(STrans, flags)
		if mag != 1 {
			e.real8(Mag, mag)
		}
		if rot != 0 {
			e.real8(Angle, rot)
		}
	}

	if !r.IsArray() {
		e.xy([]layout.Vec2{t.Origin}, false)
		e.empty(EndEl)
		return
	}
	cols, rows := max(r.Columns, 1), max(r.Rows, 1)
	e.int2(ColRow, cols, rows)
	frame := t
	frame.Origin = layout.Vec2{}
	colEnd := t.Origin.Add(frame.Apply(r.ColSpacing.Scale(float64(cols))))
	rowEnd := t.Origin.Add(frame.Apply(r.RowSpacing.Scale(float64(rows))))
	e.xy([]layout.Vec2{t.Origin, colEnd, rowEnd}, false)
	e.empty(EndEl)
}
