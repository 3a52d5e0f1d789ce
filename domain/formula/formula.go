// Package formula parses model specifications of the form
//
//	<outcome> ~ <term> (+ <term>)*
//
// into a small syntax tree. A term is an identifier, a log-transformed
// identifier log(x), an interaction a:b, or the intercept 1. Dispersion
// specifications omit the outcome, e.g. "~a+b".
package formula

import (
	"sort"
	"strings"

	"modelcheck/domain/core"
)

// Transform is applied to a variable before it enters the design matrix
type Transform int

const (
	Identity Transform = iota
	Log
)

// LogPrefix names the derived column holding log(x)
const LogPrefix = "log_"

// Factor is a single variable reference inside a term
type Factor struct {
	Name      string
	Transform Transform
}

// Column returns the dataset column a prepared factor reads from
func (f Factor) Column() string {
	if f.Transform == Log {
		return LogPrefix + f.Name
	}
	return f.Name
}

func (f Factor) String() string {
	if f.Transform == Log {
		return "log(" + f.Name + ")"
	}
	return f.Name
}

// Term is a product of one or more factors; a single factor is a main effect
type Term struct {
	Factors []Factor
}

// Key is the canonical identity of a term: factor texts sorted and joined by ':'.
// Two terms match exactly when their keys are equal.
func (t Term) Key() string {
	parts := make([]string, len(t.Factors))
	for i, f := range t.Factors {
		parts[i] = f.String()
	}
	sort.Strings(parts)
	return strings.Join(parts, ":")
}

func (t Term) String() string {
	parts := make([]string, len(t.Factors))
	for i, f := range t.Factors {
		parts[i] = f.String()
	}
	return strings.Join(parts, ":")
}

// IsInteraction reports whether the term crosses two or more factors
func (t Term) IsInteraction() bool {
	return len(t.Factors) > 1
}

// Formula is a parsed specification. Outcome is nil for dispersion specs.
type Formula struct {
	Outcome   *Factor
	Intercept bool
	Terms     []Term
}

// IsInterceptOnly reports whether the formula has no predictor terms
func (f Formula) IsInterceptOnly() bool {
	return len(f.Terms) == 0 && f.Intercept
}

// HasTerm reports whether a term with the given key is present
func (f Formula) HasTerm(key string) bool {
	for _, t := range f.Terms {
		if t.Key() == key {
			return true
		}
	}
	return false
}

// Factors returns every distinct factor referenced, outcome first
func (f Formula) Factors() []Factor {
	seen := make(map[Factor]bool)
	var out []Factor
	add := func(x Factor) {
		if !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	if f.Outcome != nil {
		add(*f.Outcome)
	}
	for _, t := range f.Terms {
		for _, x := range t.Factors {
			add(x)
		}
	}
	return out
}

// LogFactors returns the distinct log-transformed factors
func (f Formula) LogFactors() []Factor {
	var out []Factor
	for _, x := range f.Factors() {
		if x.Transform == Log {
			out = append(out, x)
		}
	}
	return out
}

// Map returns a copy of f with fn applied to every factor
func (f Formula) Map(fn func(Factor) Factor) Formula {
	out := Formula{Intercept: f.Intercept}
	if f.Outcome != nil {
		o := fn(*f.Outcome)
		out.Outcome = &o
	}
	for _, t := range f.Terms {
		nt := Term{Factors: make([]Factor, len(t.Factors))}
		for i, x := range t.Factors {
			nt.Factors[i] = fn(x)
		}
		out.Terms = append(out.Terms, nt)
	}
	return out
}

// WithTerms returns a copy of f with its term list replaced
func (f Formula) WithTerms(terms []Term) Formula {
	out := Formula{Outcome: f.Outcome, Intercept: f.Intercept}
	out.Terms = append(out.Terms, terms...)
	return out
}

// String renders the canonical text form, e.g. "y ~ a + b + a:b" or "~ 1".
// Parsing the result yields an equal formula.
func (f Formula) String() string {
	var b strings.Builder
	if f.Outcome != nil {
		b.WriteString(f.Outcome.String())
		b.WriteString(" ")
	}
	b.WriteString("~ ")
	var parts []string
	switch {
	case !f.Intercept:
		parts = append(parts, "0")
	case len(f.Terms) == 0:
		parts = append(parts, "1")
	}
	for _, t := range f.Terms {
		parts = append(parts, t.String())
	}
	b.WriteString(strings.Join(parts, " + "))
	return b.String()
}

// Parse parses a mean specification, which must name an outcome
func Parse(spec string) (Formula, error) {
	f, err := parse(spec)
	if err != nil {
		return Formula{}, err
	}
	if f.Outcome == nil {
		return Formula{}, core.NewSpecError(spec, "missing outcome before '~'")
	}
	return f, nil
}

// ParseDispersion parses a dispersion specification, which must not name an
// outcome. An empty string is the intercept-only model "~1".
func ParseDispersion(spec string) (Formula, error) {
	if strings.TrimSpace(spec) == "" {
		return Formula{Intercept: true}, nil
	}
	f, err := parse(spec)
	if err != nil {
		return Formula{}, err
	}
	if f.Outcome != nil {
		return Formula{}, core.NewSpecError(spec, "dispersion specification must not name an outcome")
	}
	return f, nil
}

// ParseTerm parses a single term such as "a", "log(x)" or "a:b"
func ParseTerm(src string) (Term, error) {
	toks, err := lex(src)
	if err != nil {
		return Term{}, core.NewSpecError(src, "%v", err)
	}
	p := &parser{src: src, toks: toks}
	terms, err := p.parseProduct()
	if err != nil {
		return Term{}, err
	}
	if p.peek().typ != tokEOF || len(terms) != 1 {
		return Term{}, core.NewSpecError(src, "expected a single term")
	}
	return terms[0], nil
}

func parse(spec string) (Formula, error) {
	toks, err := lex(spec)
	if err != nil {
		return Formula{}, core.NewSpecError(spec, "%v", err)
	}
	p := &parser{src: spec, toks: toks}
	return p.parseFormula()
}
