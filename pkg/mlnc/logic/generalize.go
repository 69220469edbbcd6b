package logic

import "strconv"

// Typer resolves the declared argument domains of predicates and
// functions. The knowledge-base schema implements it.
type Typer interface {
	// PredicateArgTypes returns the declared argument domains of a
	// predicate signature.
	PredicateArgTypes(sig AtomSignature) ([]string, bool)

	// FunctionArgTypes returns the declared argument domains of a
	// function signature.
	FunctionArgTypes(sig AtomSignature) ([]string, bool)
}

// Generalize computes the most specific common abstraction of two atoms
// with the same signature (anti-unification). Positionally, a variable on
// either side stays a variable, equal constants are kept, differing
// constants become a fresh variable typed by the schema's declared
// argument domain, and functions with the same signature recurse. Any
// other positional mismatch fails the whole generalization.
func Generalize(a, b *AtomicFormula, types Typer) (*AtomicFormula, bool) {
	if a.Signature() != b.Signature() {
		return nil, false
	}
	if a.Equal(b) {
		return a, true
	}
	argTypes, ok := types.PredicateArgTypes(a.Signature())
	if !ok {
		return nil, false
	}
	fresh := newFreshNamer(a, b)
	terms := make([]Term, len(a.Terms))
	for i := range a.Terms {
		g, ok := generalizeTerm(a.Terms[i], b.Terms[i], argTypes[i], types, fresh)
		if !ok {
			return nil, false
		}
		terms[i] = g
	}
	return &AtomicFormula{Predicate: a.Predicate, Terms: terms}, true
}

func generalizeTerm(x, y Term, domain string, types Typer, fresh *freshNamer) (Term, bool) {
	if v, ok := x.(*Variable); ok {
		return v, true
	}
	if v, ok := y.(*Variable); ok {
		return v, true
	}
	cx, okx := x.(*Constant)
	cy, oky := y.(*Constant)
	if okx && oky {
		if cx.Symbol == cy.Symbol {
			return cx, true
		}
		return fresh.variable(domain), true
	}
	fx, okx := x.(*Function)
	fy, oky := y.(*Function)
	if okx && oky && fx.Symbol == fy.Symbol && len(fx.Terms) == len(fy.Terms) {
		argTypes, ok := types.FunctionArgTypes(fx.Signature())
		if !ok {
			return nil, false
		}
		args := make([]Term, len(fx.Terms))
		for i := range fx.Terms {
			g, ok := generalizeTerm(fx.Terms[i], fy.Terms[i], argTypes[i], types, fresh)
			if !ok {
				return nil, false
			}
			args[i] = g
		}
		return &Function{Symbol: fx.Symbol, Terms: args, Domain: fx.Domain}, true
	}
	return nil, false
}

// freshNamer hands out variable symbols that collide with no variable
// already present in either source atom.
type freshNamer struct {
	used map[string]struct{}
	next int
}

func newFreshNamer(atoms ...*AtomicFormula) *freshNamer {
	used := make(map[string]struct{})
	seen := make(map[string]struct{})
	for _, a := range atoms {
		var vars []*Variable
		for _, t := range a.Terms {
			vars = termVariables(t, seen, vars)
		}
		for _, v := range vars {
			used[v.Symbol] = struct{}{}
		}
	}
	return &freshNamer{used: used}
}

func (f *freshNamer) variable(domain string) *Variable {
	for {
		sym := "x" + strconv.Itoa(f.next)
		f.next++
		if _, taken := f.used[sym]; !taken {
			f.used[sym] = struct{}{}
			return NewVariable(sym, domain)
		}
	}
}
