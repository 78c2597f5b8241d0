package condition

import (
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/NenyaBit/PartialAnimationReplacer/pkg/replacer"
	"github.com/NenyaBit/PartialAnimationReplacer/pkg/subject"
)

// Parser compiles condition expressions. Compiled programs are cached by
// source text, so rules sharing a condition share a program. A Parser is
// safe for concurrent use.
type Parser struct {
	logger *slog.Logger

	mu       sync.RWMutex
	programs map[string]*vm.Program
}

// NewParser creates a parser. A nil logger falls back to slog.Default().
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{
		logger:   logger.With("component", "condition"),
		programs: make(map[string]*vm.Program),
	}
}

// Parse implements replacer.ConditionParser.
func (p *Parser) Parse(expression string, refs replacer.RefTable) (replacer.Predicate, error) {
	program, err := p.compile(expression)
	if err != nil {
		return nil, err
	}

	table := make(map[string]any, len(refs))
	for k, v := range refs {
		table[k] = v
	}

	return &predicate{
		source:  expression,
		program: program,
		refs:    table,
		logger:  p.logger,
	}, nil
}

// Compile checks expression without building a predicate.
func (p *Parser) Compile(expression string) error {
	_, err := p.compile(expression)
	return err
}

func (p *Parser) compile(expression string) (*vm.Program, error) {
	p.mu.RLock()
	program, ok := p.programs[expression]
	p.mu.RUnlock()
	if ok {
		return program, nil
	}

	program, err := expr.Compile(expression, compileOptions()...)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", expression, err)
	}

	p.mu.Lock()
	p.programs[expression] = program
	p.mu.Unlock()

	return program, nil
}

func compileOptions() []expr.Option {
	return []expr.Option{
		expr.Env(map[string]any{
			"actor":  map[string]any{},
			"target": map[string]any{},
			"refs":   map[string]any{},
		}),
		expr.AsBool(),
		expr.Function("resolved", func(params ...any) (any, error) {
			return params[0] != nil, nil
		}, new(func(any) bool)),
		expr.Function("has", func(params ...any) (any, error) {
			return contains(params[0], params[1]), nil
		}, new(func(any, any) bool)),
	}
}

// contains reports whether collection holds x. Slices match by element,
// maps by key.
func contains(collection, x any) bool {
	if collection == nil {
		return false
	}
	v := reflect.ValueOf(collection)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if equal(v.Index(i).Interface(), x) {
				return true
			}
		}
	case reflect.Map:
		for _, k := range v.MapKeys() {
			if equal(k.Interface(), x) {
				return true
			}
		}
	}
	return false
}

func equal(a, b any) bool {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af == bf
		}
	}
	if a == nil || b == nil {
		return a == b
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

type predicate struct {
	source  string
	program *vm.Program
	refs    map[string]any
	logger  *slog.Logger
}

// IsTrue implements replacer.Predicate.
func (p *predicate) IsTrue(acting, target subject.Subject) bool {
	env := map[string]any{
		"actor":  attributes(acting),
		"target": attributes(target),
		"refs":   p.refs,
	}

	out, err := expr.Run(p.program, env)
	if err != nil {
		p.logger.Debug("Condition evaluation failed",
			"expression", p.source,
			"subject", idOf(acting),
			"error", err,
		)
		return false
	}

	b, ok := out.(bool)
	return ok && b
}

func attributes(s subject.Subject) map[string]any {
	if s == nil {
		return map[string]any{}
	}
	attrs := make(map[string]any)
	if a, ok := s.(subject.Attributed); ok {
		maps.Copy(attrs, a.Attributes())
	}
	attrs["id"] = string(s.ID())
	return attrs
}

func idOf(s subject.Subject) string {
	if s == nil {
		return ""
	}
	return string(s.ID())
}
