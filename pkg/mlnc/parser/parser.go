package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cognicore/mlnc/pkg/mlnc/internalerr"
	"github.com/cognicore/mlnc/pkg/mlnc/kb"
	"github.com/cognicore/mlnc/pkg/mlnc/logic"
)

// ParseTheory reads a theory source: declarations, weighted formulas and
// definite clauses, one statement per line. "//" comments and blank lines
// are skipped.
func ParseTheory(src string) ([]Expression, error) {
	var out []Expression
	for lineNo, line := range strings.Split(src, "\n") {
		toks, err := scanLine(line, lineNo+1)
		if err != nil {
			return nil, err
		}
		if len(toks) == 0 {
			continue
		}
		expr, err := parseTheoryStatement(&stmt{toks: toks, line: lineNo + 1})
		if err != nil {
			return nil, err
		}
		out = append(out, expr)
	}
	return out, nil
}

// ParseEvidence reads an evidence source: ground observations and function
// mappings, one per line.
func ParseEvidence(src string) ([]Expression, error) {
	var out []Expression
	for lineNo, line := range strings.Split(src, "\n") {
		toks, err := scanLine(line, lineNo+1)
		if err != nil {
			return nil, err
		}
		if len(toks) == 0 {
			continue
		}
		expr, err := parseEvidenceStatement(&stmt{toks: toks, line: lineNo + 1})
		if err != nil {
			return nil, err
		}
		out = append(out, expr)
	}
	return out, nil
}

// ParseFormula reads a single bare formula, without weight or hard marker.
func ParseFormula(src string) (logic.Formula, error) {
	toks, err := scanLine(src, 1)
	if err != nil {
		return nil, err
	}
	s := &stmt{toks: toks, line: 1}
	f, err := s.parseFormula()
	if err != nil {
		return nil, err
	}
	if !s.done() {
		tok, _ := s.peek()
		return nil, s.errf("unexpected %q after formula", tok.String())
	}
	return f, nil
}

type stmt struct {
	toks []token
	pos  int
	line int
}

func (s *stmt) done() bool { return s.pos >= len(s.toks) }

func (s *stmt) peek() (token, bool) {
	if s.done() {
		return token{}, false
	}
	return s.toks[s.pos], true
}

func (s *stmt) next() (token, bool) {
	t, ok := s.peek()
	if ok {
		s.pos++
	}
	return t, ok
}

func (s *stmt) expect(kind tokenKind) (token, error) {
	t, ok := s.next()
	if !ok {
		return token{}, s.errf("unexpected end of statement, wanted %q", token{kind: kind}.String())
	}
	if t.kind != kind {
		return token{}, s.errf("unexpected %q, wanted %q", t.String(), token{kind: kind}.String())
	}
	return t, nil
}

func (s *stmt) errf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: line %d: %s", internalerr.ErrInvalidInput, s.line, fmt.Sprintf(format, args...))
}

func parseTheoryStatement(s *stmt) (Expression, error) {
	if t, _ := s.peek(); t.kind == tokInclude {
		s.next()
		path, err := s.expect(tokString)
		if err != nil {
			return nil, err
		}
		if !s.done() {
			return nil, s.errf("trailing tokens after #include")
		}
		return IncludeFile{Path: path.text}, nil
	}
	if s.contains(tokColonDash) {
		return parseDefiniteClauseStatement(s)
	}
	if s.contains(tokEquals) {
		return parseFunctionType(s)
	}
	if isDeclarationShape(s.toks) {
		return parseAtomicType(s)
	}
	return parseWeightedFormulaStatement(s)
}

func parseEvidenceStatement(s *stmt) (Expression, error) {
	if s.contains(tokEquals) {
		return parseFunctionMapping(s)
	}

	probability := math.NaN()
	if t, _ := s.peek(); t.kind == tokNumber {
		s.next()
		p, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, s.errf("bad probability %q", t.text)
		}
		probability = p
	}
	state := logic.TriTrue
	if t, _ := s.peek(); t.kind == tokNot {
		s.next()
		state = logic.TriFalse
	}
	atom, err := s.parseAtom()
	if err != nil {
		return nil, err
	}
	if !s.done() {
		tok, _ := s.peek()
		return nil, s.errf("unexpected %q after evidence atom", tok.String())
	}
	ev, err := logic.NewProbabilisticEvidenceAtom(atom.Predicate, state, probability, atom.Terms...)
	if err != nil {
		return nil, s.errf("%v", err)
	}
	return EvidenceAtomExpr{Atom: ev}, nil
}

func (s *stmt) contains(kind tokenKind) bool {
	for _, t := range s.toks {
		if t.kind == kind {
			return true
		}
	}
	return false
}

// isDeclarationShape matches "Pred(type, type, ...)": a single bare atom
// whose every argument is a lower-case identifier. Anything with a weight,
// a hard marker, an operator or a non-type argument is a formula instead.
func isDeclarationShape(toks []token) bool {
	if len(toks) < 3 || toks[0].kind != tokIdent || toks[1].kind != tokLParen ||
		toks[len(toks)-1].kind != tokRParen {
		return false
	}
	wantIdent := true
	for _, t := range toks[2 : len(toks)-1] {
		if wantIdent {
			if t.kind != tokIdent || isConstantSymbol(t.text) || strings.ContainsRune(t.text, '$') {
				return false
			}
		} else if t.kind != tokComma {
			return false
		}
		wantIdent = !wantIdent
	}
	return !wantIdent
}

func parseAtomicType(s *stmt) (Expression, error) {
	symbol, err := s.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	argTypes, err := s.parseIdentList()
	if err != nil {
		return nil, err
	}
	return AtomicType{Symbol: symbol.text, ArgTypes: argTypes}, nil
}

// parseFunctionType reads "returntype = symbol(argtype, ...)".
func parseFunctionType(s *stmt) (Expression, error) {
	ret, err := s.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	if _, err := s.expect(tokEquals); err != nil {
		return nil, err
	}
	symbol, err := s.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	argTypes, err := s.parseIdentList()
	if err != nil {
		return nil, err
	}
	if !s.done() {
		tok, _ := s.peek()
		return nil, s.errf("unexpected %q after function declaration", tok.String())
	}
	return FunctionType{ReturnType: ret.text, Symbol: symbol.text, ArgTypes: argTypes}, nil
}

// parseFunctionMapping reads "ReturnValue = symbol(Constant, ...)".
func parseFunctionMapping(s *stmt) (Expression, error) {
	ret, err := s.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	if _, err := s.expect(tokEquals); err != nil {
		return nil, err
	}
	symbol, err := s.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	values, err := s.parseIdentList()
	if err != nil {
		return nil, err
	}
	if !s.done() {
		tok, _ := s.peek()
		return nil, s.errf("unexpected %q after function mapping", tok.String())
	}
	return FunctionMappingExpr{Mapping: kb.FunctionMapping{
		ReturnValue: ret.text,
		Symbol:      symbol.text,
		Values:      values,
	}}, nil
}

func (s *stmt) parseIdentList() ([]string, error) {
	if _, err := s.expect(tokLParen); err != nil {
		return nil, err
	}
	var out []string
	for {
		t, ok := s.next()
		if !ok {
			return nil, s.errf("unterminated argument list")
		}
		if t.kind != tokIdent && t.kind != tokNumber {
			return nil, s.errf("unexpected %q in argument list", t.String())
		}
		out = append(out, t.text)
		sep, ok := s.next()
		if !ok {
			return nil, s.errf("unterminated argument list")
		}
		if sep.kind == tokRParen {
			return out, nil
		}
		if sep.kind != tokComma {
			return nil, s.errf("unexpected %q in argument list", sep.String())
		}
	}
}

func parseWeightedFormulaStatement(s *stmt) (Expression, error) {
	weight, hard, err := s.stripWeight()
	if err != nil {
		return nil, err
	}
	f, err := s.parseFormula()
	if err != nil {
		return nil, err
	}
	if !s.done() {
		tok, _ := s.peek()
		return nil, s.errf("unexpected %q after formula", tok.String())
	}
	if hard {
		weight = math.Inf(1)
	}
	return WeightedFormulaExpr{WeightedFormula: logic.WeightedFormula{Weight: weight, Formula: f}}, nil
}

func parseDefiniteClauseStatement(s *stmt) (Expression, error) {
	weight, hard, err := s.stripWeight()
	if err != nil {
		return nil, err
	}
	head, err := s.parseAtom()
	if err != nil {
		return nil, err
	}
	if _, err := s.expect(tokColonDash); err != nil {
		return nil, err
	}
	body, err := s.parseFormula()
	if err != nil {
		return nil, err
	}
	if !s.done() {
		tok, _ := s.peek()
		return nil, s.errf("unexpected %q after clause body", tok.String())
	}
	dc, err := logic.NewDefiniteClause(head, body)
	if err != nil {
		return nil, s.errf("%v", err)
	}
	if hard {
		weight = math.Inf(1)
	}
	return WeightedDefiniteClauseExpr{WeightedClause: logic.WeightedDefiniteClause{Weight: weight, Clause: dc}}, nil
}

// stripWeight consumes a leading weight literal and removes a trailing
// hard-constraint period. A statement cannot carry both.
func (s *stmt) stripWeight() (float64, bool, error) {
	weight := math.NaN()
	weighted := false
	if t, _ := s.peek(); t.kind == tokNumber {
		s.next()
		w, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return 0, false, s.errf("bad weight %q", t.text)
		}
		weight = w
		weighted = true
	}
	hard := false
	if n := len(s.toks); n > 0 && s.toks[n-1].kind == tokPeriod {
		s.toks = s.toks[:n-1]
		hard = true
	}
	if weighted && hard {
		return 0, false, s.errf("a statement takes a weight or a hard marker, not both")
	}
	return weight, hard, nil
}

// Formula grammar, loosest to tightest: <=> then => then v then ^ then !.
// A quantifier body is a unary formula; compound bodies arrive
// parenthesized, which is how the renderer prints them.

func (s *stmt) parseFormula() (logic.Formula, error) {
	left, err := s.parseImplication()
	if err != nil {
		return nil, err
	}
	for {
		t, _ := s.peek()
		if t.kind != tokEquiv {
			return left, nil
		}
		s.next()
		right, err := s.parseImplication()
		if err != nil {
			return nil, err
		}
		left = logic.NewEquivalence(left, right)
	}
}

func (s *stmt) parseImplication() (logic.Formula, error) {
	left, err := s.parseDisjunction()
	if err != nil {
		return nil, err
	}
	if t, _ := s.peek(); t.kind == tokImplies {
		s.next()
		right, err := s.parseImplication()
		if err != nil {
			return nil, err
		}
		return logic.NewImplies(left, right), nil
	}
	return left, nil
}

func (s *stmt) parseDisjunction() (logic.Formula, error) {
	left, err := s.parseConjunction()
	if err != nil {
		return nil, err
	}
	for {
		t, _ := s.peek()
		if t.kind != tokIdent || t.text != "v" {
			return left, nil
		}
		s.next()
		right, err := s.parseConjunction()
		if err != nil {
			return nil, err
		}
		left = logic.NewOr(left, right)
	}
}

func (s *stmt) parseConjunction() (logic.Formula, error) {
	left, err := s.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t, _ := s.peek()
		if t.kind != tokAnd {
			return left, nil
		}
		s.next()
		right, err := s.parseUnary()
		if err != nil {
			return nil, err
		}
		left = logic.NewAnd(left, right)
	}
}

func (s *stmt) parseUnary() (logic.Formula, error) {
	t, ok := s.peek()
	if !ok {
		return nil, s.errf("unexpected end of statement, wanted a formula")
	}
	switch {
	case t.kind == tokNot:
		s.next()
		arg, err := s.parseUnary()
		if err != nil {
			return nil, err
		}
		return logic.NewNot(arg), nil

	case t.kind == tokLParen:
		s.next()
		f, err := s.parseFormula()
		if err != nil {
			return nil, err
		}
		if _, err := s.expect(tokRParen); err != nil {
			return nil, err
		}
		return f, nil

	case t.kind == tokIdent && strings.EqualFold(t.text, "Forall"):
		s.next()
		v, err := s.parseQuantifiedVariable()
		if err != nil {
			return nil, err
		}
		body, err := s.parseUnary()
		if err != nil {
			return nil, err
		}
		return logic.NewForall(v, body), nil

	case t.kind == tokIdent && strings.EqualFold(t.text, "Exist"):
		s.next()
		v, err := s.parseQuantifiedVariable()
		if err != nil {
			return nil, err
		}
		body, err := s.parseUnary()
		if err != nil {
			return nil, err
		}
		return logic.NewExists(v, body), nil

	case t.kind == tokIdent:
		return s.parseAtom()

	default:
		return nil, s.errf("unexpected %q, wanted a formula", t.String())
	}
}

func (s *stmt) parseQuantifiedVariable() (*logic.Variable, error) {
	t, err := s.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	if isConstantSymbol(t.text) {
		return nil, s.errf("quantified symbol %q must be a variable", t.text)
	}
	return parseVariable(t.text), nil
}

func (s *stmt) parseAtom() (*logic.AtomicFormula, error) {
	symbol, err := s.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	terms, err := s.parseTermList()
	if err != nil {
		return nil, err
	}
	return logic.NewAtom(symbol.text, terms...), nil
}

func (s *stmt) parseTermList() ([]logic.Term, error) {
	if _, err := s.expect(tokLParen); err != nil {
		return nil, err
	}
	if t, _ := s.peek(); t.kind == tokRParen {
		s.next()
		return nil, nil
	}
	var out []logic.Term
	for {
		term, err := s.parseTerm()
		if err != nil {
			return nil, err
		}
		out = append(out, term)
		sep, ok := s.next()
		if !ok {
			return nil, s.errf("unterminated term list")
		}
		if sep.kind == tokRParen {
			return out, nil
		}
		if sep.kind != tokComma {
			return nil, s.errf("unexpected %q in term list", sep.String())
		}
	}
}

func (s *stmt) parseTerm() (logic.Term, error) {
	t, ok := s.next()
	if !ok {
		return nil, s.errf("unexpected end of statement, wanted a term")
	}
	switch t.kind {
	case tokNumber:
		return logic.NewConstant(t.text), nil
	case tokIdent:
		if p, _ := s.peek(); p.kind == tokLParen {
			args, err := s.parseTermList()
			if err != nil {
				return nil, err
			}
			return logic.NewFunction(t.text, args...), nil
		}
		if isConstantSymbol(t.text) {
			return logic.NewConstant(t.text), nil
		}
		return parseVariable(t.text), nil
	default:
		return nil, s.errf("unexpected %q, wanted a term", t.String())
	}
}

// isConstantSymbol follows the MLN convention: constants start upper-case
// or with a digit, variables start lower-case.
func isConstantSymbol(symbol string) bool {
	r, _ := utf8.DecodeRuneInString(symbol)
	return unicode.IsUpper(r) || unicode.IsDigit(r)
}

// parseVariable resolves the renderer's "$index" suffix back into the
// variable's standardization index.
func parseVariable(symbol string) *logic.Variable {
	if at := strings.IndexRune(symbol, '$'); at > 0 {
		if idx, err := strconv.Atoi(symbol[at+1:]); err == nil {
			return logic.NewVariable(symbol[:at], logic.UndefinedDomain).WithIndex(idx)
		}
	}
	return logic.NewVariable(symbol, logic.UndefinedDomain)
}
