package maskdata

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/mat"
)

// MAT-file level 5 data types.
const (
	miINT8       = 1
	miUINT8      = 2
	miINT16      = 3
	miUINT16     = 4
	miINT32      = 5
	miUINT32     = 6
	miSINGLE     = 7
	miDOUBLE     = 9
	miINT64      = 12
	miUINT64     = 13
	miMATRIX     = 14
	miCOMPRESSED = 15
)

// Numeric array classes span mxDOUBLE..mxUINT64.
const (
	mxDOUBLE = 6
	mxUINT64 = 15
)

const matHeaderLen = 128

// ReadMAT returns the real part of the numeric variable named field in a
// MATLAB level-5 MAT-file. Both byte orders and zlib-compressed elements
// are accepted. Data is converted from column-major storage.
func ReadMAT(r io.Reader, field string) (*mat.Dense, error) {
	hdr := make([]byte, matHeaderLen)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, fmt.Errorf("mat: header: %w", err)
	}
	var order binary.ByteOrder
	switch string(hdr[126:128]) {
	case "IM":
		order = binary.LittleEndian
	case "MI":
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("%w: not a level-5 MAT-file", ErrFormat)
	}
	if v := order.Uint16(hdr[124:126]); v != 0x0100 {
		return nil, fmt.Errorf("%w: MAT-file version %#x", ErrFormat, v)
	}

	d := &matDecoder{order: order}
	for {
		typ, body, err := d.element(r)
		if err == io.EOF {
			return nil, fmt.Errorf("%w: %q", ErrFieldNotFound, field)
		}
		if err != nil {
			return nil, fmt.Errorf("mat: %w", err)
		}
		if typ == miCOMPRESSED {
			zr, err := zlib.NewReader(bytes.NewReader(body))
			if err != nil {
				return nil, fmt.Errorf("mat: compressed element: %w", err)
			}
			typ, body, err = d.element(zr)
			zr.Close()
			if err != nil {
				return nil, fmt.Errorf("mat: compressed element: %w", err)
			}
		}
		if typ != miMATRIX {
			continue
		}
		// Other variables are skipped even when they fail to decode.
		name, m, err := d.matrix(body)
		if name != field {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("mat: variable %q: %w", name, err)
		}
		if m == nil {
			return nil, fmt.Errorf("%w: variable %q is not a numeric array", ErrFormat, name)
		}
		return m, nil
	}
}

type matDecoder struct {
	order binary.ByteOrder
}

// element reads one tagged data element and its padding. Compressed
// elements carry no padding.
func (d *matDecoder) element(r io.Reader) (typ uint32, body []byte, err error) {
	var tag [8]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return 0, nil, fmt.Errorf("%w: truncated element tag", ErrFormat)
		}
		return 0, nil, err
	}
	first := d.order.Uint32(tag[:4])
	if n := first >> 16; n != 0 {
		// Small data element: type and size share the first word.
		if n > 4 {
			return 0, nil, fmt.Errorf("%w: small element of %d bytes", ErrFormat, n)
		}
		return first & 0xffff, append([]byte(nil), tag[4:4+n]...), nil
	}
	typ = first
	n := d.order.Uint32(tag[4:])
	// The size is untrusted, so the body grows with the data actually read.
	body, err = io.ReadAll(io.LimitReader(r, int64(n)))
	if err != nil {
		return 0, nil, fmt.Errorf("mat: element of type %d: %w", typ, err)
	}
	if uint32(len(body)) != n {
		return 0, nil, fmt.Errorf("%w: element of type %d truncated at %d of %d bytes", ErrFormat, typ, len(body), n)
	}
	if typ != miCOMPRESSED {
		if pad := (8 - n%8) % 8; pad != 0 {
			if _, err := io.CopyN(io.Discard, r, int64(pad)); err != nil && err != io.EOF {
				return 0, nil, err
			}
		}
	}
	return typ, body, nil
}

// matrix decodes a miMATRIX body. Non-numeric classes return a nil matrix
// with the variable name so callers can skip them.
func (d *matDecoder) matrix(body []byte) (string, *mat.Dense, error) {
	r := bytes.NewReader(body)

	_, flags, err := d.element(r)
	if err != nil {
		return "", nil, err
	}
	if len(flags) < 8 {
		return "", nil, fmt.Errorf("%w: array flags of %d bytes", ErrFormat, len(flags))
	}
	class := d.order.Uint32(flags[:4]) & 0xff

	_, dimsRaw, err := d.element(r)
	if err != nil {
		return "", nil, err
	}
	dims := make([]int, len(dimsRaw)/4)
	for i := range dims {
		dims[i] = int(int32(d.order.Uint32(dimsRaw[4*i:])))
	}

	_, nameRaw, err := d.element(r)
	if err != nil {
		return "", nil, err
	}
	name := string(nameRaw)

	if class < mxDOUBLE || class > mxUINT64 {
		return name, nil, nil
	}

	rows, cols, err := shape2D(dims)
	if err != nil {
		return name, nil, err
	}
	// An imaginary part, if present, follows the real part and is ignored.
	typ, raw, err := d.element(r)
	if err != nil {
		return name, nil, err
	}
	vals, err := d.numbers(typ, raw)
	if err != nil {
		return name, nil, err
	}
	if len(vals) != rows*cols {
		return name, nil, fmt.Errorf("%w: %d values for shape %v", ErrFormat, len(vals), dims)
	}
	if rows*cols == 0 {
		return name, nil, fmt.Errorf("%w: empty array", ErrFormat)
	}

	m := mat.NewDense(rows, cols, nil)
	for c := 0; c < cols; c++ {
		for rr := 0; rr < rows; rr++ {
			m.Set(rr, c, vals[c*rows+rr])
		}
	}
	return name, m, nil
}

// numbers converts a numeric element to float64s.
func (d *matDecoder) numbers(typ uint32, raw []byte) ([]float64, error) {
	var size int
	switch typ {
	case miINT8, miUINT8:
		size = 1
	case miINT16, miUINT16:
		size = 2
	case miINT32, miUINT32, miSINGLE:
		size = 4
	case miDOUBLE, miINT64, miUINT64:
		size = 8
	default:
		return nil, fmt.Errorf("%w: numeric data of type %d", ErrFormat, typ)
	}
	if len(raw)%size != 0 {
		return nil, fmt.Errorf("%w: %d bytes of %d-byte values", ErrFormat, len(raw), size)
	}
	out := make([]float64, len(raw)/size)
	o := d.order
	for i := range out {
		b := raw[i*size:]
		switch typ {
		case miINT8:
			out[i] = float64(int8(b[0]))
		case miUINT8:
			out[i] = float64(b[0])
		case miINT16:
			out[i] = float64(int16(o.Uint16(b)))
		case miUINT16:
			out[i] = float64(o.Uint16(b))
		case miINT32:
			out[i] = float64(int32(o.Uint32(b)))
		case miUINT32:
			out[i] = float64(o.Uint32(b))
		case miSINGLE:
			out[i] = float64(math.Float32frombits(o.Uint32(b)))
		case miDOUBLE:
			out[i] = math.Float64frombits(o.Uint64(b))
		case miINT64:
			out[i] = float64(int64(o.Uint64(b)))
		case miUINT64:
			out[i] = float64(o.Uint64(b))
		}
	}
	return out, nil
}
