package formula

import (
	"modelcheck/domain/core"
)

type parser struct {
	src  string
	toks []token
	pos  int
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.typ != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(typ tokenType) (token, error) {
	t := p.next()
	if t.typ != typ {
		return t, p.errorf(t, "expected %s, found %s", typ, describe(t))
	}
	return t, nil
}

func (p *parser) errorf(t token, format string, args ...interface{}) error {
	args = append(args, t.pos)
	return core.NewSpecError(p.src, format+" at offset %d", args...)
}

func describe(t token) string {
	if t.lexeme == "" {
		return t.typ.String()
	}
	return t.typ.String() + " " + "\"" + t.lexeme + "\""
}

func (p *parser) parseFormula() (Formula, error) {
	f := Formula{Intercept: true}
	if p.peek().typ != tokTilde {
		outcome, err := p.parseFactor()
		if err != nil {
			return Formula{}, err
		}
		f.Outcome = &outcome
	}
	if _, err := p.expect(tokTilde); err != nil {
		return Formula{}, err
	}

	seen := make(map[string]bool)
	add := func(terms []Term) {
		for _, t := range terms {
			if k := t.Key(); !seen[k] {
				seen[k] = true
				f.Terms = append(f.Terms, t)
			}
		}
	}

	negate := false
	if p.peek().typ == tokMinus {
		p.next()
		negate = true
	}
	for {
		t := p.peek()
		switch {
		case t.typ == tokNumber:
			p.next()
			switch {
			case t.lexeme == "1" && !negate:
				f.Intercept = true
			case t.lexeme == "1" && negate, t.lexeme == "0" && !negate:
				f.Intercept = false
			default:
				return Formula{}, p.errorf(t, "unsupported constant term %q", t.lexeme)
			}
		case negate:
			return Formula{}, p.errorf(t, "only the intercept can be removed with '-'")
		default:
			terms, err := p.parseProduct()
			if err != nil {
				return Formula{}, err
			}
			add(terms)
		}

		sep := p.next()
		switch sep.typ {
		case tokEOF:
			return f, nil
		case tokPlus:
			negate = false
		case tokMinus:
			negate = true
		default:
			return Formula{}, p.errorf(sep, "expected '+' or end of input, found %s", describe(sep))
		}
	}
}

// parseProduct parses factors joined by ':' and '*'. Crossing with '*'
// expands to every main effect and interaction of its operands.
func (p *parser) parseProduct() ([]Term, error) {
	var chunks []Term
	current := Term{}
loop:
	for {
		fac, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		current.Factors = appendFactor(current.Factors, fac)

		switch p.peek().typ {
		case tokColon:
			p.next()
			continue
		case tokStar:
			p.next()
			chunks = append(chunks, current)
			current = Term{}
			continue
		}
		break loop
	}
	chunks = append(chunks, current)
	if len(chunks) == 1 {
		return chunks, nil
	}
	return cross(chunks), nil
}

func (p *parser) parseFactor() (Factor, error) {
	t, err := p.expect(tokIdent)
	if err != nil {
		return Factor{}, err
	}
	if p.peek().typ != tokLRound {
		return Factor{Name: t.lexeme}, nil
	}
	if t.lexeme != "log" {
		return Factor{}, p.errorf(t, "unsupported function %q", t.lexeme)
	}
	p.next()
	arg := p.next()
	if arg.typ != tokIdent || p.peek().typ == tokLRound {
		return Factor{}, p.errorf(arg, "log() takes a single column name")
	}
	if _, err := p.expect(tokRRound); err != nil {
		return Factor{}, err
	}
	return Factor{Name: arg.lexeme, Transform: Log}, nil
}

func appendFactor(fs []Factor, f Factor) []Factor {
	for _, x := range fs {
		if x == f {
			return fs
		}
	}
	return append(fs, f)
}

// cross returns all non-empty combinations of chunks, smaller order first
func cross(chunks []Term) []Term {
	n := len(chunks)
	var out []Term
	for size := 1; size <= n; size++ {
		for mask := 1; mask < 1<<n; mask++ {
			if popcount(mask) != size {
				continue
			}
			var t Term
			for i := 0; i < n; i++ {
				if mask&(1<<i) != 0 {
					for _, f := range chunks[i].Factors {
						t.Factors = appendFactor(t.Factors, f)
					}
				}
			}
			out = append(out, t)
		}
	}
	return out
}

func popcount(x int) int {
	c := 0
	for x != 0 {
		x &= x - 1
		c++
	}
	return c
}
