package cnf

import (
	"errors"
	"testing"

	"github.com/cognicore/mlnc/pkg/mlnc/internalerr"
	"github.com/cognicore/mlnc/pkg/mlnc/logic"
)

func TestRemoveImplications(t *testing.T) {
	x := logic.NewVariable("x", "person")
	p := logic.NewAtom("Smokes", x)
	q := logic.NewAtom("Cancer", x)

	tests := []struct {
		name     string
		in       logic.Formula
		expected string
	}{
		{
			name:     "implication",
			in:       logic.NewImplies(p, q),
			expected: "!Smokes(x) v Cancer(x)",
		},
		{
			name:     "equivalence",
			in:       logic.NewEquivalence(p, q),
			expected: "(!Smokes(x) v Cancer(x)) ^ (Smokes(x) v !Cancer(x))",
		},
		{
			name:     "nested under quantifier",
			in:       logic.NewForall(x, logic.NewImplies(p, q)),
			expected: "Forall x (!Smokes(x) v Cancer(x))",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := RemoveImplications(tc.in)
			if got.String() != tc.expected {
				t.Errorf("expected %q, got %q", tc.expected, got)
			}
			again := RemoveImplications(got)
			if again.String() != tc.expected {
				t.Errorf("not idempotent: second pass gave %q", again)
			}
		})
	}
}

func TestNegationsIn(t *testing.T) {
	x := logic.NewVariable("x", "person")
	p := logic.NewAtom("Smokes", x)
	q := logic.NewAtom("Cancer", x)

	tests := []struct {
		name     string
		in       logic.Formula
		expected string
	}{
		{
			name:     "de morgan over conjunction",
			in:       logic.NewNot(logic.NewAnd(p, q)),
			expected: "!Smokes(x) v !Cancer(x)",
		},
		{
			name:     "de morgan over disjunction",
			in:       logic.NewNot(logic.NewOr(p, q)),
			expected: "!Smokes(x) ^ !Cancer(x)",
		},
		{
			name:     "double negation",
			in:       logic.NewNot(logic.NewNot(p)),
			expected: "Smokes(x)",
		},
		{
			name:     "negated universal",
			in:       logic.NewNot(logic.NewForall(x, p)),
			expected: "Exist x !Smokes(x)",
		},
		{
			name:     "negated existential",
			in:       logic.NewNot(logic.NewExists(x, p)),
			expected: "Forall x !Smokes(x)",
		},
		{
			name:     "negation stays on the atom",
			in:       logic.NewOr(logic.NewNot(p), q),
			expected: "!Smokes(x) v Cancer(x)",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := NegationsIn(tc.in)
			if got.String() != tc.expected {
				t.Errorf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestStandardizeVariables(t *testing.T) {
	x := logic.NewVariable("x", "person")
	inner := logic.NewForall(x, logic.NewAtom("Cancer", x))
	f := logic.NewForall(x, logic.NewAnd(logic.NewAtom("Smokes", x), inner))

	got := StandardizeVariables(f)
	expected := "Forall x$1 (Smokes(x$1) ^ (Forall x$2 Cancer(x$2)))"
	if got.String() != expected {
		t.Errorf("expected %q, got %q", expected, got)
	}
}

func TestStandardizeVariablesLeavesFreeVariables(t *testing.T) {
	x := logic.NewVariable("x", "person")
	f := logic.NewOr(logic.NewAtom("Smokes", x), logic.NewAtom("Cancer", x))

	got := StandardizeVariables(f)
	if got.String() != f.String() {
		t.Errorf("free variables must not be renamed, got %q", got)
	}
}

func TestRemoveExistentialQuantifiers(t *testing.T) {
	domains := ConstantsPerDomain{"time": {"1", "2", "3"}}

	tTime := logic.NewVariable("t", "time")
	f := logic.NewExists(tTime, logic.NewAtom("Happens", logic.NewConstant("Event_A"), tTime))

	got, err := RemoveExistentialQuantifiers(f, domains)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := "(Happens(Event_A,1) v Happens(Event_A,2)) v Happens(Event_A,3)"
	if got.String() != expected {
		t.Errorf("expected %q, got %q", expected, got)
	}
}

func TestRemoveExistentialQuantifiersNested(t *testing.T) {
	domains := ConstantsPerDomain{"bit": {"0", "1"}}

	a := logic.NewVariable("a", "bit")
	b := logic.NewVariable("b", "bit")
	f := logic.NewExists(a, logic.NewExists(b, logic.NewAtom("Edge", a, b)))

	got, err := RemoveExistentialQuantifiers(f, domains)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	atoms := logic.Constants(got)
	if len(atoms) != 2 {
		t.Fatalf("expected the two bit constants, got %v", atoms)
	}
	if rest := findInnermostExists(got); rest != nil {
		t.Errorf("existential quantifier survived: %s", got)
	}
}

func TestRemoveExistentialQuantifiersUnknownDomain(t *testing.T) {
	tTime := logic.NewVariable("t", "time")
	f := logic.NewExists(tTime, logic.NewAtom("Happens", tTime))

	_, err := RemoveExistentialQuantifiers(f, ConstantsPerDomain{})
	if !errors.Is(err, internalerr.ErrUnknownDomain) {
		t.Errorf("expected ErrUnknownDomain, got %v", err)
	}
}

func TestRemoveUniversalQuantifiers(t *testing.T) {
	x := logic.NewVariable("x", "person")
	y := logic.NewVariable("y", "person")
	f := logic.NewForall(x, logic.NewForall(y, logic.NewAtom("Knows", x, y)))

	got := RemoveUniversalQuantifiers(f)
	if got.String() != "Knows(x,y)" {
		t.Errorf("expected bare matrix, got %q", got)
	}
}
