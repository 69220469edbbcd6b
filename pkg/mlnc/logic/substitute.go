package logic

import (
	"sort"
	"strings"
)

// Theta is a finite mapping from terms to terms. In practice the mapping
// domain is restricted to variables; it is the result of unification and
// the input of substitution.
type Theta struct {
	m map[string]binding
}

type binding struct {
	from, to Term
}

// NewTheta creates an empty substitution.
func NewTheta() *Theta {
	return &Theta{m: make(map[string]binding)}
}

// Bind adds the mapping from -> to, replacing any previous mapping of from.
func (t *Theta) Bind(from, to Term) {
	t.m[from.key()] = binding{from: from, to: to}
}

// Lookup returns the mapped term for the given key term. A single lookup
// only: chains are not resolved.
func (t *Theta) Lookup(term Term) (Term, bool) {
	b, ok := t.m[term.key()]
	if !ok {
		return nil, false
	}
	return b.to, true
}

// Len returns the number of bindings.
func (t *Theta) Len() int { return len(t.m) }

// IsEmpty reports whether the substitution has no bindings.
func (t *Theta) IsEmpty() bool { return len(t.m) == 0 }

// Each visits every binding in deterministic (key-sorted) order, stopping
// early when the visitor returns false.
func (t *Theta) Each(visit func(from, to Term) bool) {
	keys := make([]string, 0, len(t.m))
	for k := range t.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b := t.m[k]
		if !visit(b.from, b.to) {
			return
		}
	}
}

// Clone returns an independent copy of the substitution.
func (t *Theta) Clone() *Theta {
	c := &Theta{m: make(map[string]binding, len(t.m))}
	for k, v := range t.m {
		c.m[k] = v
	}
	return c
}

func (t *Theta) String() string {
	var parts []string
	t.Each(func(from, to Term) bool {
		parts = append(parts, from.String()+" -> "+to.String())
		return true
	})
	return "{" + strings.Join(parts, ", ") + "}"
}

// SubstituteTerm applies theta to a term, producing a new term. If theta
// maps the term directly, the mapped term is returned without resolving
// further. Otherwise function arguments are substituted recursively and
// constants are returned unchanged.
func SubstituteTerm(theta *Theta, t Term) Term {
	if mapped, ok := theta.Lookup(t); ok {
		return mapped
	}
	if fn, ok := t.(*Function); ok {
		args := make([]Term, len(fn.Terms))
		for i, a := range fn.Terms {
			args[i] = SubstituteTerm(theta, a)
		}
		return &Function{Symbol: fn.Symbol, Terms: args, Domain: fn.Domain}
	}
	return t
}

// SubstituteAtom applies theta to every term of an atom.
func SubstituteAtom(theta *Theta, a *AtomicFormula) *AtomicFormula {
	terms := make([]Term, len(a.Terms))
	for i, t := range a.Terms {
		terms[i] = SubstituteTerm(theta, t)
	}
	return &AtomicFormula{Predicate: a.Predicate, Terms: terms}
}

// Substitute applies theta to a formula, rebuilding the same construct
// shape with substituted sub-structures. Evidence atoms are already ground
// and pass through unchanged. A quantifier whose bound variable is mapped
// to another variable is renamed accordingly; this carries the renames
// produced by variable standardization.
func Substitute(theta *Theta, f Formula) Formula {
	switch x := f.(type) {
	case *EvidenceAtom:
		return x
	case *AtomicFormula:
		return SubstituteAtom(theta, x)
	case *Not:
		return &Not{Arg: Substitute(theta, x.Arg)}
	case *And:
		return &And{Left: Substitute(theta, x.Left), Right: Substitute(theta, x.Right)}
	case *Or:
		return &Or{Left: Substitute(theta, x.Left), Right: Substitute(theta, x.Right)}
	case *Implies:
		return &Implies{Left: Substitute(theta, x.Left), Right: Substitute(theta, x.Right)}
	case *Equivalence:
		return &Equivalence{Left: Substitute(theta, x.Left), Right: Substitute(theta, x.Right)}
	case *UniversalQuantifier:
		return &UniversalQuantifier{V: substituteBound(theta, x.V), Body: Substitute(theta, x.Body)}
	case *ExistentialQuantifier:
		return &ExistentialQuantifier{V: substituteBound(theta, x.V), Body: Substitute(theta, x.Body)}
	default:
		return f
	}
}

func substituteBound(theta *Theta, v *Variable) *Variable {
	if mapped, ok := theta.Lookup(v); ok {
		if renamed, isVar := mapped.(*Variable); isVar {
			return renamed
		}
	}
	return v
}
