package formula

import (
	"fmt"
	"unicode"
)

// tokenType represents the kind of token in a model specification
type tokenType int

const (
	tokEOF tokenType = iota
	tokIdent
	tokNumber
	tokTilde  // "~"
	tokPlus   // "+"
	tokMinus  // "-"
	tokColon  // ":"
	tokStar   // "*"
	tokLRound // "("
	tokRRound // ")"
)

type token struct {
	typ    tokenType
	lexeme string
	pos    int
}

func (t tokenType) String() string {
	switch t {
	case tokEOF:
		return "end of input"
	case tokIdent:
		return "identifier"
	case tokNumber:
		return "number"
	case tokTilde:
		return "'~'"
	case tokPlus:
		return "'+'"
	case tokMinus:
		return "'-'"
	case tokColon:
		return "':'"
	case tokStar:
		return "'*'"
	case tokLRound:
		return "'('"
	case tokRRound:
		return "')'"
	}
	return "unknown"
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '.' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}

// lex splits a specification string into tokens; whitespace is insignificant
func lex(src string) ([]token, error) {
	runes := []rune(src)
	var toks []token
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '~':
			toks = append(toks, token{tokTilde, "~", i})
			i++
		case r == '+':
			toks = append(toks, token{tokPlus, "+", i})
			i++
		case r == '-':
			toks = append(toks, token{tokMinus, "-", i})
			i++
		case r == ':':
			toks = append(toks, token{tokColon, ":", i})
			i++
		case r == '*':
			toks = append(toks, token{tokStar, "*", i})
			i++
		case r == '(':
			toks = append(toks, token{tokLRound, "(", i})
			i++
		case r == ')':
			toks = append(toks, token{tokRRound, ")", i})
			i++
		case unicode.IsDigit(r):
			start := i
			for i < len(runes) && unicode.IsDigit(runes[i]) {
				i++
			}
			toks = append(toks, token{tokNumber, string(runes[start:i]), start})
		case isIdentStart(r):
			start := i
			for i < len(runes) && isIdentPart(runes[i]) {
				i++
			}
			toks = append(toks, token{tokIdent, string(runes[start:i]), start})
		default:
			return nil, fmt.Errorf("unexpected character %q at offset %d", r, i)
		}
	}
	toks = append(toks, token{tokEOF, "", len(runes)})
	return toks, nil
}
