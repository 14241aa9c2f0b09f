package grating

import (
	"fmt"
	"slices"
	"sort"
)

// tables holds per-tooth band widths in micrometres, keyed by design name.
var tables = map[string][]float64{
	// 20-tooth apodized design for the circular variant.
	"lumerical": {
		0.15, 0.15, 0.15, 0.15, 0.17, 0.22, 0.25, 0.25, 0.27, 0.27,
		0.264, 0.262, 0.263, 0.260, 0.264, 0.267, 0.289, 0.305, 0.314, 0.303,
	},
}

// Table returns a copy of the named fill table.
func Table(name string) ([]float64, error) {
	t, ok := tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: no fill table %q", ErrDomain, name)
	}
	return slices.Clone(t), nil
}

// TableNames lists the built-in fill tables.
func TableNames() []string {
	names := make([]string, 0, len(tables))
	for n := range tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
