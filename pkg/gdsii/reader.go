package gdsii

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/chazu/photomask/pkg/layout"
)

// ReadFile parses the stream file at path.
func ReadFile(path string) (*layout.Library, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gdsii: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses a GDSII stream into a library. Boundaries, paths and
// references are kept; text, box and node elements are skipped.
func Read(r io.Reader) (*layout.Library, error) {
	d := &decoder{r: bufio.NewReader(r)}
	return d.library()
}

type decoder struct {
	r     io.Reader
	scale float64 // database units per user unit
}

func (d *decoder) next() (Record, error) {
	rec, err := ReadRecord(d.r)
	if err == io.EOF {
		return Record{}, fmt.Errorf("%w: unexpected end of stream", ErrStream)
	}
	return rec, err
}

func (d *decoder) expect(t RecordType) (Record, error) {
	rec, err := d.next()
	if err != nil {
		return rec, err
	}
	if rec.Type != t {
		return rec, fmt.Errorf("%w: expected %s, found %s", ErrStream, t, rec.Type)
	}
	return rec, nil
}

func (d *decoder) library() (*layout.Library, error) {
	if _, err := d.expect(Header); err != nil {
		return nil, err
	}
	bgn, err := d.expect(BgnLib)
	if err != nil {
		return nil, err
	}
	name, err := d.expect(LibName)
	if err != nil {
		return nil, err
	}
	lib := layout.New(name.Str())
	lib.Timestamp = parseStamp(bgn)

	for {
		rec, err := d.next()
		if err != nil {
			return nil, err
		}
		switch rec.Type {
		case Units:
			u, err := rec.Reals()
			if err != nil || len(u) != 2 || u[0] <= 0 || u[1] <= 0 {
				return nil, fmt.Errorf("%w: bad UNITS record", ErrStream)
			}
			lib.Precision = u[1]
			lib.Unit = u[1] / u[0]
			d.scale = lib.Scale()
		case BgnStr:
			if d.scale == 0 {
				return nil, fmt.Errorf("%w: structure before UNITS", ErrStream)
			}
			c, err := d.cell()
			if err != nil {
				return nil, err
			}
			if err := lib.Add(c); err != nil {
				return nil, fmt.Errorf("gdsii: %w", err)
			}
		case EndLib:
			return lib, nil
		}
		// Other library-level records (REFLIBS, FONTS, ...) are ignored.
	}
}

func parseStamp(rec Record) time.Time {
	v, err := rec.Ints()
	if err != nil || len(v) < 6 {
		return time.Time{}
	}
	t := time.Date(v[0], time.Month(v[1]), v[2], v[3], v[4], v[5], 0, time.UTC)
	if t.Equal(time.Unix(0, 0)) {
		return time.Time{}
	}
	return t
}

func (d *decoder) cell() (*layout.Cell, error) {
	name, err := d.expect(StrName)
	if err != nil {
		return nil, err
	}
	c := &layout.Cell{Name: name.Str()}
	for {
		rec, err := d.next()
		if err != nil {
			return nil, err
		}
		switch rec.Type {
		case EndStr:
			return c, nil
		case Boundary:
			el, err := d.element()
			if err != nil {
				return nil, fmt.Errorf("gdsii: cell %q: %w", c.Name, err)
			}
			pts := el.points(d.scale)
			if n := len(pts); n > 1 && pts[0] == pts[n-1] {
				pts = pts[:n-1]
			}
			c.AddPolygon(pts, el.layer, el.datatype)
		case PathRec:
			el, err := d.element()
			if err != nil {
				return nil, fmt.Errorf("gdsii: cell %q: %w", c.Name, err)
			}
			c.AddPath(layout.Path{
				Spine:    el.points(d.scale),
				Width:    math.Abs(float64(el.width)) / d.scale,
				Type:     el.pathType,
				Layer:    el.layer,
				Datatype: el.datatype,
			})
		case SRef, ARef:
			el, err := d.element()
			if err != nil {
				return nil, fmt.Errorf("gdsii: cell %q: %w", c.Name, err)
			}
			ref, err := el.ref(d.scale, rec.Type == ARef)
			if err != nil {
				return nil, fmt.Errorf("gdsii: cell %q: %w", c.Name, err)
			}
			c.Refs = append(c.Refs, ref)
		default:
			// TEXT, BOX, NODE and unknown elements.
			if _, err := d.element(); err != nil {
				return nil, fmt.Errorf("gdsii: cell %q: %w", c.Name, err)
			}
		}
	}
}

// element collects the records of one element up to ENDEL.
type element struct {
	layer, datatype int
	pathType        layout.PathType
	width           int
	xy              []int
	sname           string
	reflect         bool
	mag, angle      float64
	cols, rows      int
}

func (d *decoder) element() (*element, error) {
	el := &element{mag: 1}
	for {
		rec, err := d.next()
		if err != nil {
			return nil, err
		}
		switch rec.Type {
		case EndEl:
			return el, nil
		case Layer, Datatype, PathType, Width, ColRow, XY:
			v, err := rec.Ints()
			if err != nil {
				return nil, err
			}
			if len(v) == 0 {
				return nil, fmt.Errorf("%w: empty %s", ErrStream, rec.Type)
			}
			switch rec.Type {
			case Layer:
				el.layer = v[0]
			case Datatype:
				el.datatype = v[0]
			case PathType:
				el.pathType = pathTypeFromCode(v[0])
			case Width:
				el.width = v[0]
			case ColRow:
				if len(v) < 2 {
					return nil, fmt.Errorf("%w: short COLROW", ErrStream)
				}
				el.cols, el.rows = v[0], v[1]
			case XY:
				el.xy = v
			}
		case SName:
			el.sname = rec.Str()
		case STrans:
			v, err := rec.Ints()
			if err != nil || len(v) == 0 {
				return nil, fmt.Errorf("%w: bad STRANS", ErrStream)
			}
			el.reflect = uint16(v[0])&0x8000 != 0
		case Mag, Angle:
			v, err := rec.Reals()
			if err != nil || len(v) == 0 {
				return nil, fmt.Errorf("%w: bad %s", ErrStream, rec.Type)
			}
			if rec.Type == Mag {
				el.mag = v[0]
			} else {
				el.angle = v[0]
			}
		case EndStr, EndLib, BgnStr:
			return nil, fmt.Errorf("%w: %s inside an element", ErrStream, rec.Type)
		}
	}
}

func pathTypeFromCode(c int) layout.PathType {
	switch c {
	case 1:
		return layout.PathRound
	case 2, 4:
		return layout.PathExtended
	default:
		return layout.PathFlush
	}
}

func (el *element) points(scale float64) []layout.Vec2 {
	out := make([]layout.Vec2, len(el.xy)/2)
	for i := range out {
		out[i] = layout.V(float64(el.xy[2*i])/scale, float64(el.xy[2*i+1])/scale)
	}
	return out
}

func (el *element) ref(scale float64, array bool) (layout.Ref, error) {
	pts := el.points(scale)
	if el.sname == "" || len(pts) == 0 {
		return layout.Ref{}, fmt.Errorf("%w: reference without SNAME or XY", ErrStream)
	}
	r := layout.Ref{
		Cell: el.sname,
		Transform: layout.Transform{
			Origin:      pts[0],
			Rotation:    el.angle,
			XReflection: el.reflect,
		},
	}
	if el.mag != 1 {
		r.Transform.Magnification = el.mag
	}
	if !array {
		return r, nil
	}
	if len(pts) < 3 || el.cols < 1 || el.rows < 1 {
		return layout.Ref{}, fmt.Errorf("%w: AREF needs COLROW and three points", ErrStream)
	}
	r.Columns, r.Rows = el.cols, el.rows
	frame := r.Transform
	frame.Origin = layout.Vec2{}
	inv := frame.Affine().Invert()
	step := func(end layout.Vec2, n int) layout.Vec2 {
		d := end.Sub(pts[0]).Scale(1 / float64(n))
		return layout.FromPoint(d.Point().Transform(inv))
	}
	r.ColSpacing = step(pts[1], el.cols)
	r.RowSpacing = step(pts[2], el.rows)
	return r, nil
}
