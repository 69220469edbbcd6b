package logic

import "testing"

func TestUnifyIdenticalTerms(t *testing.T) {
	x := NewVariable("x", "person")
	theta, ok := UnifyTerms(x, NewVariable("x", "person"))
	if !ok {
		t.Fatal("identical variables should unify")
	}
	if theta.Len() != 0 {
		t.Errorf("identical terms should unify with an empty theta, got %s", theta)
	}
}

func TestUnifyVariableWithConstant(t *testing.T) {
	// Happens(x, t) against Happens(Event_A, t)
	x := NewVariable("x", "event")
	tm := NewVariable("t", "time")
	a := NewAtom("Happens", x, tm)
	b := NewAtom("Happens", NewConstant("Event_A"), tm)

	theta, ok := UnifyAtoms(a, b)
	if !ok {
		t.Fatal("atoms should unify")
	}
	if theta.Len() != 1 {
		t.Fatalf("want a single binding, got %s", theta)
	}
	mapped, found := theta.Lookup(x)
	if !found {
		t.Fatal("x should be bound")
	}
	if !TermEqual(mapped, NewConstant("Event_A")) {
		t.Errorf("x bound to %s, want Event_A", mapped)
	}
}

func TestUnifySoundness(t *testing.T) {
	// Applying the unifier to both sides must make them structurally equal.
	x := NewVariable("x", "person")
	y := NewVariable("y", "person")
	a := NewAtom("Knows", x, NewConstant("Bob"))
	b := NewAtom("Knows", NewConstant("Alice"), y)

	theta, ok := UnifyAtoms(a, b)
	if !ok {
		t.Fatal("atoms should unify")
	}
	ga := SubstituteAtom(theta, a)
	gb := SubstituteAtom(theta, b)
	if !ga.Equal(gb) {
		t.Errorf("substituted atoms differ: %s vs %s", ga, gb)
	}
}

func TestUnifyChasesBindings(t *testing.T) {
	// x already bound via y: unify(x, y) then unify(x, Alice) must
	// propagate to y.
	x := NewVariable("x", "person")
	y := NewVariable("y", "person")
	a := NewAtom("P", x, x)
	b := NewAtom("P", y, NewConstant("Alice"))

	theta, ok := UnifyAtoms(a, b)
	if !ok {
		t.Fatal("atoms should unify")
	}
	ga := SubstituteAtom(theta, SubstituteAtom(theta, a))
	gb := SubstituteAtom(theta, SubstituteAtom(theta, b))
	if !ga.Equal(gb) {
		t.Errorf("substituted atoms differ: %s vs %s", ga, gb)
	}
}

func TestUnifyRejectsInfiniteTerm(t *testing.T) {
	// x against next(x) would be an infinite term.
	x := NewVariable("x", "time")
	if _, ok := UnifyTerms(x, NewFunction("next", x)); ok {
		t.Error("variable should not unify with a function containing it")
	}
}

func TestUnifyFunctionArityMismatch(t *testing.T) {
	a := NewFunction("next", NewVariable("t", "time"))
	b := NewFunction("next", NewVariable("t", "time"), NewConstant("1"))
	if _, ok := UnifyTerms(a, b); ok {
		t.Error("functions of different arity should not unify")
	}
}

func TestUnifyFunctionsPositional(t *testing.T) {
	a := NewFunction("pair", NewVariable("x", "d"), NewConstant("B"))
	b := NewFunction("pair", NewConstant("A"), NewVariable("y", "d"))
	theta, ok := UnifyTerms(a, b)
	if !ok {
		t.Fatal("functions should unify")
	}
	if !TermEqual(SubstituteTerm(theta, a), SubstituteTerm(theta, b)) {
		t.Error("unifier should make both functions equal")
	}
}

func TestUnifySignatureMismatch(t *testing.T) {
	if _, ok := UnifyAtoms(NewAtom("P", NewConstant("A")), NewAtom("Q", NewConstant("A"))); ok {
		t.Error("atoms with different predicates should not unify")
	}
	if _, ok := UnifyAtoms(NewAtom("P", NewConstant("A")), NewAtom("P", NewConstant("A"), NewConstant("B"))); ok {
		t.Error("atoms with different arity should not unify")
	}
}

func TestUnifyAtomWithFormula(t *testing.T) {
	x := NewVariable("x", "person")
	f := NewAnd(
		NewAtom("Smokes", NewConstant("Alice")),
		NewOr(NewAtom("Cancer", NewConstant("Bob")), NewAtom("Smokes", NewConstant("Carol"))),
	)

	// Pre-order search finds Smokes(Alice) first.
	theta, ok := UnifyAtomWithFormula(NewAtom("Smokes", x), f)
	if !ok {
		t.Fatal("atom should unify against the formula")
	}
	mapped, _ := theta.Lookup(x)
	if !TermEqual(mapped, NewConstant("Alice")) {
		t.Errorf("x bound to %s, want Alice (first pre-order occurrence)", mapped)
	}

	if _, ok := UnifyAtomWithFormula(NewAtom("Friends", x, x), f); ok {
		t.Error("atom with absent signature should not unify")
	}
}
