package maskdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// ReadCSV parses rows of comma-separated numbers. Every row must have the
// same number of columns; blank lines are skipped.
func ReadCSV(r io.Reader) (*mat.Dense, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var (
		data []float64
		cols int
		rows int
	)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: %w", err)
		}
		if rows == 0 {
			cols = len(rec)
		}
		for j, s := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("csv: row %d column %d: %w", rows+1, j+1, err)
			}
			data = append(data, v)
		}
		rows++
	}
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("%w: empty csv", ErrFormat)
	}
	return mat.NewDense(rows, cols, data), nil
}
