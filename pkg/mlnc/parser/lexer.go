package parser

import (
	"fmt"
	"unicode"

	"github.com/cognicore/mlnc/pkg/mlnc/internalerr"
)

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNumber
	tokString
	tokInclude
	tokLParen
	tokRParen
	tokComma
	tokNot
	tokAnd
	tokImplies
	tokEquiv
	tokColonDash
	tokEquals
	tokPeriod
)

type token struct {
	kind tokenKind
	text string
	line int
}

func (t token) String() string {
	switch t.kind {
	case tokIdent, tokNumber, tokString:
		return t.text
	case tokInclude:
		return "#include"
	case tokLParen:
		return "("
	case tokRParen:
		return ")"
	case tokComma:
		return ","
	case tokNot:
		return "!"
	case tokAnd:
		return "^"
	case tokImplies:
		return "=>"
	case tokEquiv:
		return "<=>"
	case tokColonDash:
		return ":-"
	case tokEquals:
		return "="
	case tokPeriod:
		return "."
	default:
		return "?"
	}
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '$' || r == '\''
}

// scanLine tokenizes one statement line. A "//" comment runs to the end of
// the line. A "." only counts as part of a number when a digit follows it,
// so the hard-constraint marker at the end of a statement stays its own
// token.
func scanLine(line string, lineNo int) ([]token, error) {
	runes := []rune(line)
	var out []token
	emit := func(kind tokenKind, text string) {
		out = append(out, token{kind: kind, text: text, line: lineNo})
	}

	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++

		case r == '/' && i+1 < len(runes) && runes[i+1] == '/':
			return out, nil

		case r == '#':
			word := ""
			for j := i + 1; j < len(runes) && unicode.IsLetter(runes[j]); j++ {
				word += string(runes[j])
			}
			if word != "include" {
				return nil, fmt.Errorf("%w: line %d: unknown directive #%s", internalerr.ErrInvalidInput, lineNo, word)
			}
			emit(tokInclude, "#include")
			i += 1 + len(word)

		case r == '"':
			j := i + 1
			for j < len(runes) && runes[j] != '"' {
				j++
			}
			if j == len(runes) {
				return nil, fmt.Errorf("%w: line %d: unterminated string", internalerr.ErrInvalidInput, lineNo)
			}
			emit(tokString, string(runes[i+1:j]))
			i = j + 1

		case isIdentStart(r):
			j := i + 1
			for j < len(runes) && isIdentPart(runes[j]) {
				j++
			}
			emit(tokIdent, string(runes[i:j]))
			i = j

		case unicode.IsDigit(r) || (r == '-' && i+1 < len(runes) && unicode.IsDigit(runes[i+1])):
			j := i
			if runes[j] == '-' {
				j++
			}
			for j < len(runes) && unicode.IsDigit(runes[j]) {
				j++
			}
			if j+1 < len(runes) && runes[j] == '.' && unicode.IsDigit(runes[j+1]) {
				j++
				for j < len(runes) && unicode.IsDigit(runes[j]) {
					j++
				}
			}
			if j < len(runes) && (runes[j] == 'e' || runes[j] == 'E') {
				k := j + 1
				if k < len(runes) && (runes[k] == '+' || runes[k] == '-') {
					k++
				}
				if k < len(runes) && unicode.IsDigit(runes[k]) {
					for k < len(runes) && unicode.IsDigit(runes[k]) {
						k++
					}
					j = k
				}
			}
			emit(tokNumber, string(runes[i:j]))
			i = j

		case r == '(':
			emit(tokLParen, "(")
			i++
		case r == ')':
			emit(tokRParen, ")")
			i++
		case r == ',':
			emit(tokComma, ",")
			i++
		case r == '!':
			emit(tokNot, "!")
			i++
		case r == '^':
			emit(tokAnd, "^")
			i++
		case r == '.':
			emit(tokPeriod, ".")
			i++
		case r == '<' && i+2 < len(runes) && runes[i+1] == '=' && runes[i+2] == '>':
			emit(tokEquiv, "<=>")
			i += 3
		case r == '=' && i+1 < len(runes) && runes[i+1] == '>':
			emit(tokImplies, "=>")
			i += 2
		case r == '=':
			emit(tokEquals, "=")
			i++
		case r == ':' && i+1 < len(runes) && runes[i+1] == '-':
			emit(tokColonDash, ":-")
			i += 2

		default:
			return nil, fmt.Errorf("%w: line %d: unexpected character %q", internalerr.ErrInvalidInput, lineNo, string(r))
		}
	}
	return out, nil
}
