package logic

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// AtomSignature is the unique identity of a predicate or function:
// its symbol together with its arity.
type AtomSignature struct {
	Symbol string
	Arity  int
}

func (s AtomSignature) String() string {
	return s.Symbol + "/" + strconv.Itoa(s.Arity)
}

// Formula is a first-order formula construct. The variant set is closed:
// AtomicFormula, Not, And, Or, Implies, Equivalence, UniversalQuantifier
// and ExistentialQuantifier.
type Formula interface {
	// String renders the formula in the MLN surface syntax.
	String() string

	// subformulas returns the direct children, left to right.
	subformulas() []Formula

	sealedFormula()
}

// AtomicFormula is a predicate applied to an ordered list of terms.
type AtomicFormula struct {
	Predicate string
	Terms     []Term
}

// NewAtom creates an atomic formula.
func NewAtom(predicate string, terms ...Term) *AtomicFormula {
	return &AtomicFormula{Predicate: predicate, Terms: terms}
}

// Signature returns the atom's predicate symbol/arity identity.
func (a *AtomicFormula) Signature() AtomSignature {
	return AtomSignature{Symbol: a.Predicate, Arity: len(a.Terms)}
}

// IsGround reports whether the atom's terms contain no variable.
func (a *AtomicFormula) IsGround() bool {
	for _, t := range a.Terms {
		if !t.IsGround() {
			return false
		}
	}
	return true
}

// Equal reports structural equality of two atoms.
func (a *AtomicFormula) Equal(b *AtomicFormula) bool {
	if b == nil {
		return a == nil
	}
	return a.atomKey() == b.atomKey()
}

// Similar reports whether the two atoms differ only by variable naming:
// same signature and a unifier exists mapping variables to variables only.
func (a *AtomicFormula) Similar(b *AtomicFormula) bool {
	if a.Signature() != b.Signature() {
		return false
	}
	theta, ok := UnifyAtoms(a, b)
	if !ok {
		return false
	}
	renaming := true
	theta.Each(func(from, to Term) bool {
		if _, ok := from.(*Variable); !ok {
			renaming = false
			return false
		}
		if _, ok := to.(*Variable); !ok {
			renaming = false
			return false
		}
		return true
	})
	return renaming
}

func (a *AtomicFormula) String() string {
	var b strings.Builder
	b.WriteString(a.Predicate)
	b.WriteByte('(')
	for i, t := range a.Terms {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(t.String())
	}
	b.WriteByte(')')
	return b.String()
}

func (a *AtomicFormula) atomKey() string {
	var b strings.Builder
	b.WriteString(a.Predicate)
	b.WriteByte('(')
	for i, t := range a.Terms {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(t.key())
	}
	b.WriteByte(')')
	return b.String()
}

func (a *AtomicFormula) subformulas() []Formula { return nil }
func (a *AtomicFormula) sealedFormula()         {}

// TriState is the truth state of an evidence atom.
type TriState int8

const (
	TriUnknown TriState = iota
	TriTrue
	TriFalse
)

func (s TriState) String() string {
	switch s {
	case TriTrue:
		return "TRUE"
	case TriFalse:
		return "FALSE"
	default:
		return "UNKNOWN"
	}
}

// EvidenceAtom is a ground atomic formula carrying an observed truth state
// and an optional probability. Its terms are restricted to constants;
// substitution over an evidence atom is the identity.
type EvidenceAtom struct {
	AtomicFormula
	State TriState

	// Probability is the observation confidence in [0,1].
	// NaN marks a plain, non-probabilistic observation.
	Probability float64
}

// NewEvidenceAtom creates a non-probabilistic evidence atom. It fails when
// any argument term is not a constant.
func NewEvidenceAtom(predicate string, state TriState, constants ...Term) (*EvidenceAtom, error) {
	return NewProbabilisticEvidenceAtom(predicate, state, math.NaN(), constants...)
}

// NewProbabilisticEvidenceAtom creates an evidence atom with an observation
// probability in [0,1].
func NewProbabilisticEvidenceAtom(predicate string, state TriState, probability float64, constants ...Term) (*EvidenceAtom, error) {
	for _, t := range constants {
		if _, ok := t.(*Constant); !ok {
			return nil, fmt.Errorf("evidence atom %s: argument %s is not a constant", predicate, t)
		}
	}
	if !math.IsNaN(probability) && (probability < 0 || probability > 1) {
		return nil, fmt.Errorf("evidence atom %s: probability %v out of [0,1]", predicate, probability)
	}
	return &EvidenceAtom{
		AtomicFormula: AtomicFormula{Predicate: predicate, Terms: constants},
		State:         state,
		Probability:   probability,
	}, nil
}

func (e *EvidenceAtom) String() string {
	if e.State == TriFalse {
		return "!" + e.AtomicFormula.String()
	}
	return e.AtomicFormula.String()
}

// Not is logical negation.
type Not struct {
	Arg Formula
}

func NewNot(arg Formula) *Not { return &Not{Arg: arg} }

func (n *Not) String() string {
	if a, ok := n.Arg.(*AtomicFormula); ok {
		return "!" + a.String()
	}
	return "!(" + n.Arg.String() + ")"
}

func (n *Not) subformulas() []Formula { return []Formula{n.Arg} }
func (n *Not) sealedFormula()         {}

// And is logical conjunction.
type And struct {
	Left, Right Formula
}

func NewAnd(left, right Formula) *And { return &And{Left: left, Right: right} }

func (a *And) String() string {
	return binaryText(a.Left, "^", a.Right)
}

func (a *And) subformulas() []Formula { return []Formula{a.Left, a.Right} }
func (a *And) sealedFormula()         {}

// Or is logical disjunction.
type Or struct {
	Left, Right Formula
}

func NewOr(left, right Formula) *Or { return &Or{Left: left, Right: right} }

func (o *Or) String() string {
	return binaryText(o.Left, "v", o.Right)
}

func (o *Or) subformulas() []Formula { return []Formula{o.Left, o.Right} }
func (o *Or) sealedFormula()         {}

// Implies is material implication.
type Implies struct {
	Left, Right Formula
}

func NewImplies(left, right Formula) *Implies { return &Implies{Left: left, Right: right} }

func (i *Implies) String() string {
	return binaryText(i.Left, "=>", i.Right)
}

func (i *Implies) subformulas() []Formula { return []Formula{i.Left, i.Right} }
func (i *Implies) sealedFormula()         {}

// Equivalence is logical biconditional.
type Equivalence struct {
	Left, Right Formula
}

func NewEquivalence(left, right Formula) *Equivalence {
	return &Equivalence{Left: left, Right: right}
}

func (e *Equivalence) String() string {
	return binaryText(e.Left, "<=>", e.Right)
}

func (e *Equivalence) subformulas() []Formula { return []Formula{e.Left, e.Right} }
func (e *Equivalence) sealedFormula()         {}

// UniversalQuantifier binds a single variable universally over its body.
type UniversalQuantifier struct {
	V    *Variable
	Body Formula
}

func NewForall(v *Variable, body Formula) *UniversalQuantifier {
	return &UniversalQuantifier{V: v, Body: body}
}

func (q *UniversalQuantifier) String() string {
	return "Forall " + q.V.String() + " " + quantifiedText(q.Body)
}

func (q *UniversalQuantifier) subformulas() []Formula { return []Formula{q.Body} }
func (q *UniversalQuantifier) sealedFormula()         {}

// ExistentialQuantifier binds a single variable existentially over its body.
type ExistentialQuantifier struct {
	V    *Variable
	Body Formula
}

func NewExists(v *Variable, body Formula) *ExistentialQuantifier {
	return &ExistentialQuantifier{V: v, Body: body}
}

func (q *ExistentialQuantifier) String() string {
	return "Exist " + q.V.String() + " " + quantifiedText(q.Body)
}

func (q *ExistentialQuantifier) subformulas() []Formula { return []Formula{q.Body} }
func (q *ExistentialQuantifier) sealedFormula()         {}

// binaryText renders a binary connective, parenthesizing compound operands
// so the output re-parses without precedence ambiguity.
func binaryText(left Formula, op string, right Formula) string {
	return operandText(left) + " " + op + " " + operandText(right)
}

func operandText(f Formula) string {
	switch f.(type) {
	case *AtomicFormula, *EvidenceAtom, *Not:
		return f.String()
	default:
		return "(" + f.String() + ")"
	}
}

func quantifiedText(f Formula) string {
	switch f.(type) {
	case *AtomicFormula, *EvidenceAtom, *Not:
		return f.String()
	default:
		return "(" + f.String() + ")"
	}
}

// Variables returns the distinct variables of a formula in first
// occurrence order, walking the tree with an explicit stack.
func Variables(f Formula) []*Variable {
	var out []*Variable
	seen := make(map[string]struct{})
	walkAtoms(f, func(a *AtomicFormula) {
		for _, t := range a.Terms {
			out = termVariables(t, seen, out)
		}
	}, func(q Formula) {})
	return out
}

// Constants returns the distinct constants of a formula in first
// occurrence order.
func Constants(f Formula) []*Constant {
	var out []*Constant
	seen := make(map[string]struct{})
	walkAtoms(f, func(a *AtomicFormula) {
		for _, t := range a.Terms {
			stack := []Term{t}
			for len(stack) > 0 {
				cur := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				switch x := cur.(type) {
				case *Constant:
					if _, ok := seen[x.key()]; !ok {
						seen[x.key()] = struct{}{}
						out = append(out, x)
					}
				case *Function:
					for i := len(x.Terms) - 1; i >= 0; i-- {
						stack = append(stack, x.Terms[i])
					}
				}
			}
		}
	}, func(q Formula) {})
	return out
}

// Functions returns the distinct function terms of a formula in first
// occurrence order.
func Functions(f Formula) []*Function {
	var out []*Function
	seen := make(map[string]struct{})
	walkAtoms(f, func(a *AtomicFormula) {
		for _, t := range a.Terms {
			stack := []Term{t}
			for len(stack) > 0 {
				cur := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if fn, ok := cur.(*Function); ok {
					if _, dup := seen[fn.key()]; !dup {
						seen[fn.key()] = struct{}{}
						out = append(out, fn)
					}
					for i := len(fn.Terms) - 1; i >= 0; i-- {
						stack = append(stack, fn.Terms[i])
					}
				}
			}
		}
	}, func(q Formula) {})
	return out
}

// QuantifiedVariables returns the variables bound by quantifiers in f,
// outermost first.
func QuantifiedVariables(f Formula) []*Variable {
	var out []*Variable
	walkAtoms(f, func(a *AtomicFormula) {}, func(q Formula) {
		switch x := q.(type) {
		case *UniversalQuantifier:
			out = append(out, x.V)
		case *ExistentialQuantifier:
			out = append(out, x.V)
		}
	})
	return out
}

// walkAtoms visits every node of f in pre-order using an explicit stack,
// calling onAtom for atomic formulas and onNode for every non-atomic node.
func walkAtoms(f Formula, onAtom func(*AtomicFormula), onNode func(Formula)) {
	stack := []Formula{f}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		switch x := cur.(type) {
		case *AtomicFormula:
			onAtom(x)
		case *EvidenceAtom:
			onAtom(&x.AtomicFormula)
		default:
			onNode(cur)
			subs := cur.subformulas()
			for i := len(subs) - 1; i >= 0; i-- {
				stack = append(stack, subs[i])
			}
		}
	}
}

// FindAtom returns the first atomic formula with the given signature in a
// pre-order traversal of f, or nil when none exists.
func FindAtom(f Formula, sig AtomSignature) *AtomicFormula {
	var found *AtomicFormula
	stack := []Formula{f}
	for len(stack) > 0 && found == nil {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if a, ok := cur.(*AtomicFormula); ok {
			if a.Signature() == sig {
				found = a
			}
			continue
		}
		subs := cur.subformulas()
		for i := len(subs) - 1; i >= 0; i-- {
			stack = append(stack, subs[i])
		}
	}
	return found
}

// WeightedFormula attaches a real-valued weight to a formula.
// +Inf marks a hard constraint; NaN marks an unweighted formula.
type WeightedFormula struct {
	Weight  float64
	Formula Formula
}

// IsHard reports whether the formula is a hard constraint.
func (w WeightedFormula) IsHard() bool { return math.IsInf(w.Weight, 1) }

func (w WeightedFormula) String() string {
	if w.IsHard() {
		return w.Formula.String() + "."
	}
	if math.IsNaN(w.Weight) {
		return w.Formula.String()
	}
	return formatWeight(w.Weight) + " " + w.Formula.String()
}

// DefiniteClause is a Horn clause with a single positive head atom and a
// body restricted to atoms, negation and conjunction.
type DefiniteClause struct {
	Head *AtomicFormula
	Body Formula
}

// NewDefiniteClause validates the Horn restrictions and builds the clause:
// the head must be a plain (non-evidence, non-negated) atom and the body a
// definite-clause construct.
func NewDefiniteClause(head *AtomicFormula, body Formula) (*DefiniteClause, error) {
	if head == nil {
		return nil, fmt.Errorf("definite clause: missing head")
	}
	if !IsDefiniteClauseConstruct(body) {
		return nil, fmt.Errorf("definite clause %s: body %s must only use atoms, negation and conjunction", head, body)
	}
	return &DefiniteClause{Head: head, Body: body}, nil
}

// ToFormula rewrites the clause as the implication body => head.
func (d *DefiniteClause) ToFormula() Formula {
	return NewImplies(d.Body, d.Head)
}

func (d *DefiniteClause) String() string {
	return d.Head.String() + " :- " + d.Body.String()
}

// IsDefiniteClauseConstruct reports whether f only uses the sub-variant set
// legal inside a Horn-clause body: atoms, negation and conjunction.
func IsDefiniteClauseConstruct(f Formula) bool {
	if f == nil {
		return false
	}
	ok := true
	walkAtoms(f, func(a *AtomicFormula) {}, func(node Formula) {
		switch node.(type) {
		case *Not, *And:
		default:
			ok = false
		}
	})
	return ok
}

// WeightedDefiniteClause attaches a weight to a definite clause.
type WeightedDefiniteClause struct {
	Weight float64
	Clause *DefiniteClause
}

// IsHard reports whether the clause is a hard constraint.
func (w WeightedDefiniteClause) IsHard() bool { return math.IsInf(w.Weight, 1) }

// ToWeightedFormula rewrites the clause as a weighted implication.
func (w WeightedDefiniteClause) ToWeightedFormula() WeightedFormula {
	return WeightedFormula{Weight: w.Weight, Formula: w.Clause.ToFormula()}
}

func (w WeightedDefiniteClause) String() string {
	if w.IsHard() {
		return w.Clause.String() + "."
	}
	if math.IsNaN(w.Weight) {
		return w.Clause.String()
	}
	return formatWeight(w.Weight) + " " + w.Clause.String()
}

// Literal wraps an atomic formula with a polarity.
type Literal struct {
	Sentence *AtomicFormula
	Positive bool
}

// Pos creates a positive literal.
func Pos(a *AtomicFormula) Literal { return Literal{Sentence: a, Positive: true} }

// Neg creates a negative literal.
func Neg(a *AtomicFormula) Literal { return Literal{Sentence: a, Positive: false} }

// Negate flips the literal's polarity.
func (l Literal) Negate() Literal {
	return Literal{Sentence: l.Sentence, Positive: !l.Positive}
}

// Similar reports same polarity and similar sentences.
func (l Literal) Similar(o Literal) bool {
	return l.Positive == o.Positive && l.Sentence.Similar(o.Sentence)
}

func (l Literal) String() string {
	if l.Positive {
		return l.Sentence.String()
	}
	return "!" + l.Sentence.String()
}

func (l Literal) key() string {
	if l.Positive {
		return "+" + l.Sentence.atomKey()
	}
	return "-" + l.Sentence.atomKey()
}

// Clause is a weighted disjunction of literals. The literal set is kept
// sorted by canonical key and deduplicated.
type Clause struct {
	Weight   float64
	Literals []Literal
}

// NewClause builds a clause from the given literals, deduplicating them.
func NewClause(weight float64, literals ...Literal) *Clause {
	seen := make(map[string]struct{}, len(literals))
	out := make([]Literal, 0, len(literals))
	for _, l := range literals {
		k := l.key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key() < out[j].key() })
	return &Clause{Weight: weight, Literals: out}
}

// IsHard reports whether the clause weight is +Inf.
func (c *Clause) IsHard() bool { return math.IsInf(c.Weight, 1) }

// IsUnit reports whether the clause has exactly one literal.
func (c *Clause) IsUnit() bool { return len(c.Literals) == 1 }

// Key is the canonical identity of the clause, fit for set membership.
func (c *Clause) Key() string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(math.Float64bits(c.Weight), 16))
	for _, l := range c.Literals {
		b.WriteByte('|')
		b.WriteString(l.key())
	}
	return b.String()
}

// Similar reports whether the two clauses have the same cardinality and a
// bijection of similarly-polarized, similar literals exists between them.
func (c *Clause) Similar(o *Clause) bool {
	if len(c.Literals) != len(o.Literals) {
		return false
	}
	used := make([]bool, len(o.Literals))
	for _, l := range c.Literals {
		matched := false
		for i, m := range o.Literals {
			if !used[i] && l.Similar(m) {
				used[i] = true
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// String renders the clause in the MLN surface syntax: literals joined by
// "v", a trailing "." for hard clauses, a leading weight otherwise.
func (c *Clause) String() string {
	var b strings.Builder
	if !c.IsHard() && !math.IsNaN(c.Weight) {
		b.WriteString(formatWeight(c.Weight))
		b.WriteByte(' ')
	}
	for i, l := range c.Literals {
		if i > 0 {
			b.WriteString(" v ")
		}
		b.WriteString(l.String())
	}
	if c.IsHard() {
		b.WriteByte('.')
	}
	return b.String()
}

func formatWeight(w float64) string {
	return strconv.FormatFloat(w, 'g', -1, 64)
}
