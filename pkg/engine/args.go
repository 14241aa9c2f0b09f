package engine

import (
	"fmt"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/photomask/pkg/layout"
)

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpCellRef names a cell of the library under construction.
type sexpCellRef struct {
	name string
}

func (c *sexpCellRef) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("#<cell %s>", c.name)
}
func (c *sexpCellRef) Type() *zygo.RegisteredType { return nil }

// sexpVec2 wraps a layout.Vec2.
type sexpVec2 struct {
	vec layout.Vec2
}

func (v *sexpVec2) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec2 %g %g)", v.vec.X, v.vec.Y)
}
func (v *sexpVec2) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// Keyword at end with no value: treat as flag with nil.
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// fnArgs binds parsed arguments to the builtin they belong to and keeps
// the first conversion error, prefixed with the builtin and key.
type fnArgs struct {
	kwArgs
	fn  string
	err error
}

func newArgs(fn string, args []zygo.Sexp) *fnArgs {
	return &fnArgs{kwArgs: parseArgs(args), fn: fn}
}

func (a *fnArgs) fail(key string, err error) {
	if a.err == nil {
		a.err = fmt.Errorf("%s: %s: %w", a.fn, key, err)
	}
}

func (a *fnArgs) has(key string) bool {
	_, ok := a.kw[key]
	return ok
}

func (a *fnArgs) float(key string, dst *float64) {
	v, ok := a.kw[key]
	if !ok {
		return
	}
	f, err := toFloat64(v)
	if err != nil {
		a.fail(key, err)
		return
	}
	*dst = f
}

func (a *fnArgs) integer(key string, dst *int) {
	v, ok := a.kw[key]
	if !ok {
		return
	}
	n, err := toInt(v)
	if err != nil {
		a.fail(key, err)
		return
	}
	*dst = n
}

// str accepts a string or a keyword.
func (a *fnArgs) str(key string, dst *string) {
	v, ok := a.kw[key]
	if !ok {
		return
	}
	s, err := toName(v)
	if err != nil {
		a.fail(key, err)
		return
	}
	*dst = s
}

func (a *fnArgs) vec(key string, dst *layout.Vec2) {
	v, ok := a.kw[key]
	if !ok {
		return
	}
	p, err := toVec2(v)
	if err != nil {
		a.fail(key, err)
		return
	}
	*dst = p
}

func (a *fnArgs) floats(key string, dst *[]float64) {
	v, ok := a.kw[key]
	if !ok {
		return
	}
	items, err := sexpListToSlice(v)
	if err != nil {
		a.fail(key, err)
		return
	}
	out := make([]float64, len(items))
	for i, it := range items {
		if out[i], err = toFloat64(it); err != nil {
			a.fail(key, fmt.Errorf("element %d: %w", i, err))
			return
		}
	}
	*dst = out
}

func (a *fnArgs) vecs(key string, dst *[]layout.Vec2) {
	v, ok := a.kw[key]
	if !ok {
		return
	}
	items, err := sexpListToSlice(v)
	if err != nil {
		a.fail(key, err)
		return
	}
	out := make([]layout.Vec2, len(items))
	for i, it := range items {
		if out[i], err = toVec2(it); err != nil {
			a.fail(key, fmt.Errorf("element %d: %w", i, err))
			return
		}
	}
	*dst = out
}

// name returns positional argument i as a cell name.
func (a *fnArgs) name(i int, what string) string {
	if i >= len(a.positional) {
		a.fail(what, fmt.Errorf("missing"))
		return ""
	}
	s, err := toName(a.positional[i])
	if err != nil {
		a.fail(what, err)
		return ""
	}
	if s == "" {
		a.fail(what, fmt.Errorf("empty name"))
	}
	return s
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toInt accepts integers and integral floats.
func toInt(s zygo.Sexp) (int, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return int(v.Val), nil
	case *zygo.SexpFloat:
		if v.Val == float64(int(v.Val)) {
			return int(v.Val), nil
		}
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
// Handles both preprocessed keywords (__kw_exact) and plain strings ("exact").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], nil
	}
	return str.S, nil
}

// toName accepts a cell reference, a string or a keyword.
func toName(s zygo.Sexp) (string, error) {
	if ref, ok := s.(*sexpCellRef); ok {
		return ref.name, nil
	}
	return toKeywordString(s)
}

// toVec2 extracts a Vec2 from a sexpVec2.
func toVec2(s zygo.Sexp) (layout.Vec2, error) {
	if v, ok := s.(*sexpVec2); ok {
		return v.vec, nil
	}
	return layout.Vec2{}, fmt.Errorf("expected vec2, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}
