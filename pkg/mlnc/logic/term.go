// Package logic implements the first-order data model of an MLN theory:
// terms, atoms, formulas, literals and clauses, together with the
// substitution, unification and anti-unification primitives that the
// predicate-completion and CNF-compilation stages are built on.
//
// All structures in this package are immutable by convention. Every
// transformation produces new nodes and never mutates an existing tree,
// which is what makes the batch compilation stages safe to run in parallel.
package logic

import (
	"strconv"
	"strings"
)

// UndefinedDomain marks a variable whose domain has not been resolved yet.
// Variables produced by the parser carry this sentinel until a schema
// lookup assigns the declared argument domain.
const UndefinedDomain = "0"

// UndefinedReturnType marks a function term whose return domain has not
// been resolved against the function schema yet.
const UndefinedReturnType = "_?"

// Term is a first-order term: a Constant, a Variable or a Function.
// The variant set is closed; external packages cannot add implementations.
type Term interface {
	// String renders the term in the MLN surface syntax.
	String() string

	// IsGround reports whether no variable is reachable from the term.
	IsGround() bool

	// key is a canonical identity string. Two terms are equal iff their
	// keys are equal; the key doubles as the hash for map membership.
	key() string

	sealedTerm()
}

// TermEqual reports value equality of two terms.
func TermEqual(a, b Term) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.key() == b.key()
}

// Constant is a ground value, identified by its symbol alone.
type Constant struct {
	Symbol string
}

// NewConstant creates a constant term.
func NewConstant(symbol string) *Constant {
	return &Constant{Symbol: symbol}
}

func (c *Constant) String() string { return c.Symbol }

// IsGround always reports true for constants.
func (c *Constant) IsGround() bool { return true }

func (c *Constant) key() string { return "c:" + c.Symbol }

func (c *Constant) sealedTerm() {}

// Variable is a typed logic variable. Domain names a finite constant set;
// Index disambiguates variables renamed during standardization (0 marks the
// original). GroundPerConstant is carried as grounding advice for the
// downstream collaborator and is deliberately excluded from identity.
type Variable struct {
	Symbol            string
	Domain            string
	Index             int
	GroundPerConstant bool
}

// NewVariable creates a variable with index 0 in the given domain.
// Pass UndefinedDomain for variables that a schema lookup will type later.
func NewVariable(symbol, domain string) *Variable {
	return &Variable{Symbol: symbol, Domain: domain}
}

// WithIndex returns a copy of the variable carrying the given index.
func (v *Variable) WithIndex(index int) *Variable {
	return &Variable{Symbol: v.Symbol, Domain: v.Domain, Index: index, GroundPerConstant: v.GroundPerConstant}
}

// WithDomain returns a copy of the variable typed by the given domain.
func (v *Variable) WithDomain(domain string) *Variable {
	return &Variable{Symbol: v.Symbol, Domain: domain, Index: v.Index, GroundPerConstant: v.GroundPerConstant}
}

func (v *Variable) String() string {
	if v.Index == 0 {
		return v.Symbol
	}
	return v.Symbol + "$" + strconv.Itoa(v.Index)
}

// IsGround always reports false for variables.
func (v *Variable) IsGround() bool { return false }

func (v *Variable) key() string {
	// GroundPerConstant does not participate in identity.
	return "v:" + v.Symbol + "/" + v.Domain + "#" + strconv.Itoa(v.Index)
}

func (v *Variable) sealedTerm() {}

// Function is a term-level function application. Domain is the declared
// return domain, or UndefinedReturnType until resolved against the
// function schema.
type Function struct {
	Symbol string
	Terms  []Term
	Domain string
}

// NewFunction creates a function term with an unresolved return domain.
func NewFunction(symbol string, terms ...Term) *Function {
	return &Function{Symbol: symbol, Terms: terms, Domain: UndefinedReturnType}
}

// NewTypedFunction creates a function term with a known return domain.
func NewTypedFunction(symbol, domain string, terms ...Term) *Function {
	return &Function{Symbol: symbol, Terms: terms, Domain: domain}
}

// Signature returns the function's symbol/arity identity.
func (f *Function) Signature() AtomSignature {
	return AtomSignature{Symbol: f.Symbol, Arity: len(f.Terms)}
}

func (f *Function) String() string {
	var b strings.Builder
	b.WriteString(f.Symbol)
	b.WriteByte('(')
	for i, t := range f.Terms {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(t.String())
	}
	b.WriteByte(')')
	return b.String()
}

// IsGround reports whether no variable is reachable in the term tree.
func (f *Function) IsGround() bool {
	for _, t := range f.Terms {
		if !t.IsGround() {
			return false
		}
	}
	return true
}

func (f *Function) key() string {
	var b strings.Builder
	b.WriteString("f:")
	b.WriteString(f.Symbol)
	b.WriteByte('/')
	b.WriteString(f.Domain)
	b.WriteByte('(')
	for i, t := range f.Terms {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(t.key())
	}
	b.WriteByte(')')
	return b.String()
}

func (f *Function) sealedTerm() {}

// termVariables appends the distinct variables reachable from t, in first
// occurrence order, using an explicit stack rather than recursion.
func termVariables(t Term, seen map[string]struct{}, out []*Variable) []*Variable {
	stack := []Term{t}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		switch x := cur.(type) {
		case *Variable:
			if _, ok := seen[x.key()]; !ok {
				seen[x.key()] = struct{}{}
				out = append(out, x)
			}
		case *Function:
			// Push arguments in reverse so they pop left to right.
			for i := len(x.Terms) - 1; i >= 0; i-- {
				stack = append(stack, x.Terms[i])
			}
		}
	}
	return out
}

// termContains reports whether target occurs anywhere inside t.
func termContains(t, target Term) bool {
	want := target.key()
	stack := []Term{t}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur.key() == want {
			return true
		}
		if fn, ok := cur.(*Function); ok {
			stack = append(stack, fn.Terms...)
		}
	}
	return false
}

