package maskdata

import (
	"fmt"
	"slices"

	"github.com/ctessum/cdf"
	"gonum.org/v1/gonum/mat"
)

// ReadNetCDF reads variable v from a netCDF classic file. One-dimensional
// variables become a single-row matrix; higher ranks are rejected unless
// their leading dimensions are 1.
func ReadNetCDF(rw cdf.ReaderWriterAt, v string) (*mat.Dense, error) {
	f, err := cdf.Open(rw)
	if err != nil {
		return nil, fmt.Errorf("netcdf: %w", err)
	}
	if !slices.Contains(f.Header.Variables(), v) {
		return nil, fmt.Errorf("%w: %q", ErrFieldNotFound, v)
	}

	dims := f.Header.Lengths(v)
	rows, cols, err := shape2D(dims)
	if err != nil {
		return nil, fmt.Errorf("netcdf: variable %q: %w", v, err)
	}
	n := rows * cols
	if n == 0 {
		return nil, fmt.Errorf("%w: variable %q is empty", ErrFormat, v)
	}

	buf := f.Header.ZeroValue(v, n)
	r := f.Reader(v, nil, nil)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("netcdf: reading %q: %w", v, err)
	}
	data, err := toFloat64(buf)
	if err != nil {
		return nil, fmt.Errorf("netcdf: variable %q: %w", v, err)
	}
	if len(data) != n {
		return nil, fmt.Errorf("%w: variable %q dims are %d but array length is %d", ErrFormat, v, n, len(data))
	}
	// netCDF stores row-major, like mat.Dense.
	return mat.NewDense(rows, cols, data), nil
}

// shape2D collapses leading unit dimensions.
func shape2D(dims []int) (rows, cols int, err error) {
	switch len(dims) {
	case 0:
		return 1, 1, nil
	case 1:
		return 1, dims[0], nil
	}
	for _, d := range dims[:len(dims)-2] {
		if d != 1 {
			return 0, 0, fmt.Errorf("%w: shape %v has more than two non-unit dimensions", ErrFormat, dims)
		}
	}
	return dims[len(dims)-2], dims[len(dims)-1], nil
}

func toFloat64(buf any) ([]float64, error) {
	switch b := buf.(type) {
	case []float64:
		return b, nil
	case []float32:
		return convert(b), nil
	case []int32:
		return convert(b), nil
	case []int16:
		return convert(b), nil
	case []int8:
		return convert(b), nil
	case []uint8:
		return convert(b), nil
	}
	return nil, fmt.Errorf("%w: element type %T", ErrFormat, buf)
}

type number interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64 | ~float32 | ~float64
}

func convert[T number](in []T) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
