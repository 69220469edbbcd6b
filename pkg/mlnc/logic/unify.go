package logic

// UnifyTerms computes the most general unifier of two terms. The boolean
// result is false when no unifier exists; this is an expected outcome,
// not an error.
func UnifyTerms(x, y Term) (*Theta, bool) {
	return unifyTerm(x, y, NewTheta())
}

// UnifyAtoms computes the most general unifier of two atoms. Atoms with
// different signatures never unify.
func UnifyAtoms(a, b *AtomicFormula) (*Theta, bool) {
	if a.Signature() != b.Signature() {
		return nil, false
	}
	return unifyTermLists(a.Terms, b.Terms, NewTheta())
}

// UnifyAtomWithFormula unifies atom against the first atomic formula with
// the same signature found in a pre-order traversal of f.
func UnifyAtomWithFormula(atom *AtomicFormula, f Formula) (*Theta, bool) {
	target := FindAtom(f, atom.Signature())
	if target == nil {
		return nil, false
	}
	return UnifyAtoms(atom, target)
}

// unifyTerm attempts to unify x and y against the accumulator theta.
// Success narrows theta in place; any conflict aborts with false.
func unifyTerm(x, y Term, theta *Theta) (*Theta, bool) {
	if TermEqual(x, y) {
		return theta, true
	}
	if v, ok := x.(*Variable); ok {
		return unifyVariable(v, y, theta)
	}
	if v, ok := y.(*Variable); ok {
		return unifyVariable(v, x, theta)
	}
	fx, okx := x.(*Function)
	fy, oky := y.(*Function)
	if okx && oky && fx.Symbol == fy.Symbol {
		return unifyTermLists(fx.Terms, fy.Terms, theta)
	}
	return nil, false
}

// unifyVariable binds v to x, chasing existing bindings of either side
// first. A function term that still contains v after grounding under the
// current theta is rejected to prevent infinite terms.
func unifyVariable(v *Variable, x Term, theta *Theta) (*Theta, bool) {
	if bound, ok := theta.Lookup(v); ok {
		return unifyTerm(bound, x, theta)
	}
	if xv, ok := x.(*Variable); ok {
		if bound, has := theta.Lookup(xv); has {
			return unifyTerm(v, bound, theta)
		}
	}
	if fn, ok := x.(*Function); ok {
		grounded := SubstituteTerm(theta, fn)
		if termContains(grounded, v) {
			return nil, false
		}
	}
	theta.Bind(v, x)
	return theta, true
}

// unifyTermLists unifies two term lists pairwise, strictly left to right,
// each success narrowing the accumulator used by the next pair.
func unifyTermLists(xs, ys []Term, theta *Theta) (*Theta, bool) {
	if len(xs) != len(ys) {
		return nil, false
	}
	for i := range xs {
		var ok bool
		theta, ok = unifyTerm(xs[i], ys[i], theta)
		if !ok {
			return nil, false
		}
	}
	return theta, true
}
