package logic

import "testing"

func TestSubstituteGroundTermIsNoOp(t *testing.T) {
	theta := NewTheta()
	theta.Bind(NewVariable("x", "person"), NewConstant("Alice"))

	ground := NewFunction("next", NewConstant("1"))
	if got := SubstituteTerm(theta, ground); !TermEqual(got, ground) {
		t.Errorf("substitution changed a ground term: %s", got)
	}
	if got := SubstituteTerm(theta, NewConstant("Bob")); !TermEqual(got, NewConstant("Bob")) {
		t.Errorf("substitution changed a constant: %s", got)
	}
}

func TestSubstituteSingleLookupOnly(t *testing.T) {
	// x -> y and y -> Alice: a single application maps x to y, not to
	// Alice. Chains are deliberately not resolved.
	x := NewVariable("x", "person")
	y := NewVariable("y", "person")
	theta := NewTheta()
	theta.Bind(x, y)
	theta.Bind(y, NewConstant("Alice"))

	if got := SubstituteTerm(theta, x); !TermEqual(got, y) {
		t.Errorf("single lookup should map x to y, got %s", got)
	}
}

func TestSubstituteFunctionArguments(t *testing.T) {
	tVar := NewVariable("t", "time")
	theta := NewTheta()
	theta.Bind(tVar, NewConstant("3"))

	fn := NewTypedFunction("next", "time", tVar)
	got := SubstituteTerm(theta, fn)
	want := NewTypedFunction("next", "time", NewConstant("3"))
	if !TermEqual(got, want) {
		t.Errorf("substituted function = %s, want %s", got, want)
	}
	// Original must be untouched.
	if !TermEqual(fn.Terms[0], tVar) {
		t.Error("substitution mutated the original function term")
	}
}

func TestSubstituteFormulaShape(t *testing.T) {
	x := NewVariable("x", "person")
	theta := NewTheta()
	theta.Bind(x, NewConstant("Alice"))

	f := NewImplies(NewAtom("Smokes", x), NewAtom("Cancer", x))
	got := Substitute(theta, f)
	want := "Smokes(Alice) => Cancer(Alice)"
	if got.String() != want {
		t.Errorf("substituted formula = %q, want %q", got, want)
	}
}

func TestSubstituteQuantifierRenamesBoundVariable(t *testing.T) {
	x := NewVariable("x", "person")
	renamed := x.WithIndex(1)
	theta := NewTheta()
	theta.Bind(x, renamed)

	f := NewExists(x, NewAtom("Smokes", x))
	got, ok := Substitute(theta, f).(*ExistentialQuantifier)
	if !ok {
		t.Fatal("substitution should preserve the quantifier shape")
	}
	if !TermEqual(got.V, renamed) {
		t.Errorf("bound variable = %s, want %s", got.V, renamed)
	}
	if got.Body.String() != "Smokes(x$1)" {
		t.Errorf("body = %q, want Smokes(x$1)", got.Body)
	}
}

func TestSubstituteQuantifierKeepsBoundVariableOnGroundMapping(t *testing.T) {
	// A variable mapped to a constant must not replace the bound
	// variable slot, only occurrences in the body.
	x := NewVariable("x", "person")
	theta := NewTheta()
	theta.Bind(x, NewConstant("Alice"))

	f := NewForall(x, NewAtom("Smokes", x))
	got := Substitute(theta, f).(*UniversalQuantifier)
	if !TermEqual(got.V, x) {
		t.Errorf("bound variable changed to %s", got.V)
	}
}

func TestSubstituteEvidenceAtomIdentity(t *testing.T) {
	ev, err := NewEvidenceAtom("Smokes", TriTrue, NewConstant("Alice"))
	if err != nil {
		t.Fatalf("NewEvidenceAtom: %v", err)
	}
	theta := NewTheta()
	theta.Bind(NewVariable("x", "person"), NewConstant("Bob"))

	if got := Substitute(theta, ev); got != Formula(ev) {
		t.Error("substitution over an evidence atom should be the identity")
	}
}
