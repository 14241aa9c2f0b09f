// Package engine provides the Lisp recipe engine for photomask.
// It wraps zygomys in a sandboxed environment and produces a layout
// library from user source code.
package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/photomask/pkg/compose"
	"github.com/chazu/photomask/pkg/kernel"
	"github.com/chazu/photomask/pkg/layout"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Engine wraps the zygomys interpreter for recipe evaluation.
// It is safe for concurrent use; each call to Evaluate creates a fresh
// sandboxed environment and a fresh library for determinism.
type Engine struct {
	// BaseDir resolves relative mask directories named by d2nn forms.
	BaseDir string
	// Timeout bounds one evaluation; EvalTimeout when zero.
	Timeout time.Duration
	// Logf receives composer progress. Nil discards it.
	Logf func(format string, args ...any)

	kernel     kernel.Kernel
	mu         sync.Mutex
	generation uint64
}

// NewEngine creates an engine whose gratings are merged and fractured
// by k.
func NewEngine(k kernel.Kernel) *Engine {
	return &Engine{kernel: k}
}

// Evaluate runs a recipe and returns the library it built.
//
// Return semantics:
//   - On success: returns library + nil errors + nil error
//   - On parse/eval failure: returns nil library + eval errors + nil error
//   - On fatal failure (timeout, panic): returns nil + nil + error
func (e *Engine) Evaluate(source string) (*layout.Library, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		lib, evalErrs, err := e.evaluate(source)
		ch <- evalResult{lib: lib, errors: evalErrs, err: err}
	}()

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = EvalTimeout
	}
	return waitWithTimeout(ch, gen, timeout, &e.mu, &e.generation)
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(source string) (*layout.Library, []EvalError, error) {
	lib := layout.New("LIB")

	// Empty source is a valid program that produces an empty library.
	if strings.TrimSpace(source) == "" {
		return lib, nil, nil
	}

	// Sandbox mode keeps user code away from the filesystem and syscalls;
	// only the builtins below read mask files.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	b := compose.New(lib, e.kernel)
	b.Logf = e.Logf
	registerBuiltins(env, &recipe{lib: lib, b: b, baseDir: e.BaseDir})

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err), nil
	}
	if _, err := env.Run(); err != nil {
		return nil, parseZygomysError(err), nil
	}
	return lib, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values.
// It attempts to extract line number information from the error message.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	// zygomys formats parse errors as "Error on line N: <details>\n"
	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
