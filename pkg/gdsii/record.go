// Package gdsii reads and writes GDSII stream files.
package gdsii

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// ErrStream is returned for malformed stream data.
var ErrStream = errors.New("gdsii: malformed stream")

// RecordType identifies a GDSII record.
type RecordType uint8

const (
	Header   RecordType = 0x00
	BgnLib   RecordType = 0x01
	LibName  RecordType = 0x02
	Units    RecordType = 0x03
	EndLib   RecordType = 0x04
	BgnStr   RecordType = 0x05
	StrName  RecordType = 0x06
	EndStr   RecordType = 0x07
	Boundary RecordType = 0x08
	PathRec  RecordType = 0x09
	SRef     RecordType = 0x0A
	ARef     RecordType = 0x0B
	Text     RecordType = 0x0C
	Layer    RecordType = 0x0D
	Datatype RecordType = 0x0E
	Width    RecordType = 0x0F
	XY       RecordType = 0x10
	EndEl    RecordType = 0x11
	SName    RecordType = 0x12
	ColRow   RecordType = 0x13
	TextType RecordType = 0x16
	Presentn RecordType = 0x17
	String   RecordType = 0x19
	STrans   RecordType = 0x1A
	Mag      RecordType = 0x1B
	Angle    RecordType = 0x1C
	PathType RecordType = 0x21
	Box      RecordType = 0x2D
	BoxType  RecordType = 0x2E
)

var recordNames = map[RecordType]string{
	Header: "HEADER", BgnLib: "BGNLIB", LibName: "LIBNAME", Units: "UNITS",
	EndLib: "ENDLIB", BgnStr: "BGNSTR", StrName: "STRNAME", EndStr: "ENDSTR",
	Boundary: "BOUNDARY", PathRec: "PATH", SRef: "SREF", ARef: "AREF",
	Text: "TEXT", Layer: "LAYER", Datatype: "DATATYPE", Width: "WIDTH",
	XY: "XY", EndEl: "ENDEL", SName: "SNAME", ColRow: "COLROW",
	TextType: "TEXTTYPE", Presentn: "PRESENTATION", String: "STRING",
	STrans: "STRANS", Mag: "MAG", Angle: "ANGLE", PathType: "PATHTYPE",
	Box: "BOX", BoxType: "BOXTYPE",
}

func (r RecordType) String() string {
	if n, ok := recordNames[r]; ok {
		return n
	}
	return fmt.Sprintf("RECORD_%02X", uint8(r))
}

// DataType is the payload encoding of a record.
type DataType uint8

const (
	NoData   DataType = 0
	BitArray DataType = 1
	Int2     DataType = 2
	Int4     DataType = 3
	Real8    DataType = 5
	ASCII    DataType = 6
)

// maxRecordLen is the largest record, header included.
const maxRecordLen = 0xFFFF &^ 1

// Record is one decoded stream record.
type Record struct {
	Type RecordType
	Data DataType
	Raw  []byte
}

// Ints returns the payload as int2 or int4 values.
func (r Record) Ints() ([]int, error) {
	switch r.Data {
	case Int2, BitArray:
		out := make([]int, len(r.Raw)/2)
		for i := range out {
			out[i] = int(int16(binary.BigEndian.Uint16(r.Raw[2*i:])))
		}
		return out, nil
	case Int4:
		out := make([]int, len(r.Raw)/4)
		for i := range out {
			out[i] = int(int32(binary.BigEndian.Uint32(r.Raw[4*i:])))
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s holds data type %d, not integers", ErrStream, r.Type, r.Data)
}

// Reals returns the payload as real8 values.
func (r Record) Reals() ([]float64, error) {
	if r.Data != Real8 {
		return nil, fmt.Errorf("%w: %s holds data type %d, not reals", ErrStream, r.Type, r.Data)
	}
	out := make([]float64, len(r.Raw)/8)
	for i := range out {
		out[i] = DecodeReal8(binary.BigEndian.Uint64(r.Raw[8*i:]))
	}
	return out, nil
}

// Str returns the payload as a string with NUL padding removed.
func (r Record) Str() string {
	b := r.Raw
	for len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	return string(b)
}

// ReadRecord reads one record. It returns io.EOF only at a clean record
// boundary.
func ReadRecord(r io.Reader) (Record, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return Record{}, fmt.Errorf("%w: truncated record header", ErrStream)
		}
		return Record{}, err
	}
	n := int(binary.BigEndian.Uint16(hdr[:2]))
	if n == 0 {
		// Zero padding after ENDLIB.
		return Record{}, io.EOF
	}
	if n < 4 || n%2 != 0 {
		return Record{}, fmt.Errorf("%w: record length %d", ErrStream, n)
	}
	rec := Record{Type: RecordType(hdr[2]), Data: DataType(hdr[3]), Raw: make([]byte, n-4)}
	if _, err := io.ReadFull(r, rec.Raw); err != nil {
		return Record{}, fmt.Errorf("%w: %s truncated", ErrStream, rec.Type)
	}
	return rec, nil
}

// EncodeReal8 converts v to the GDSII excess-64 base-16 format.
func EncodeReal8(v float64) (uint64, error) {
	if v == 0 {
		return 0, nil
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("gdsii: cannot encode %v as real8", v)
	}
	var sign uint64
	if v < 0 {
		sign = 1 << 63
		v = -v
	}
	_, exp := math.Frexp(v) // v = f·2^exp, f ∈ [0.5, 1)
	e16 := int(math.Ceil(float64(exp) / 4))
	m := math.Ldexp(v, -4*e16) // ∈ [1/16, 1)
	biased := e16 + 64
	if biased < 0 || biased > 127 {
		return 0, fmt.Errorf("gdsii: %v out of real8 range", v)
	}
	mant := uint64(math.Ldexp(m, 56))
	return sign | uint64(biased)<<56 | mant, nil
}

// DecodeReal8 converts a GDSII real8 to float64.
func DecodeReal8(bits uint64) float64 {
	mant := bits & (1<<56 - 1)
	if mant == 0 {
		return 0
	}
	exp := int((bits>>56)&0x7f) - 64
	v := math.Ldexp(float64(mant), 4*exp-56)
	if bits>>63 != 0 {
		return -v
	}
	return v
}
