package parser

import (
	"errors"
	"math"
	"testing"

	"github.com/cognicore/mlnc/pkg/mlnc/internalerr"
	"github.com/cognicore/mlnc/pkg/mlnc/logic"
)

func TestParseTheoryDeclarations(t *testing.T) {
	src := `
// schema
Smokes(person)
Friends(person, person)
fluent = nextFluent(fluent)
`
	exprs, err := ParseTheory(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(exprs) != 3 {
		t.Fatalf("expected 3 expressions, got %d", len(exprs))
	}

	smokes, ok := exprs[0].(AtomicType)
	if !ok {
		t.Fatalf("expected AtomicType, got %T", exprs[0])
	}
	if smokes.Symbol != "Smokes" || len(smokes.ArgTypes) != 1 || smokes.ArgTypes[0] != "person" {
		t.Errorf("unexpected declaration %+v", smokes)
	}

	friends, ok := exprs[1].(AtomicType)
	if !ok {
		t.Fatalf("expected AtomicType, got %T", exprs[1])
	}
	if len(friends.ArgTypes) != 2 {
		t.Errorf("expected 2 argument types, got %v", friends.ArgTypes)
	}

	next, ok := exprs[2].(FunctionType)
	if !ok {
		t.Fatalf("expected FunctionType, got %T", exprs[2])
	}
	if next.ReturnType != "fluent" || next.Symbol != "nextFluent" || len(next.ArgTypes) != 1 {
		t.Errorf("unexpected function declaration %+v", next)
	}
}

func TestParseTheoryFormulas(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		weight   float64
		expected string
	}{
		{
			name:     "soft implication",
			src:      "1.5 Smokes(x) => Cancer(x)",
			weight:   1.5,
			expected: "Smokes(x) => Cancer(x)",
		},
		{
			name:     "negative weight",
			src:      "-0.5 Smokes(x)",
			weight:   -0.5,
			expected: "Smokes(x)",
		},
		{
			name:     "hard disjunction",
			src:      "Smokes(x) v Cancer(x).",
			weight:   math.Inf(1),
			expected: "Smokes(x) v Cancer(x)",
		},
		{
			name:     "quantifier",
			src:      "Exist t Happens(Event_A, t).",
			weight:   math.Inf(1),
			expected: "Exist t Happens(Event_A,t)",
		},
		{
			name:     "function term",
			src:      "2 Holds(nextFluent(F1), t)",
			weight:   2,
			expected: "Holds(nextFluent(F1),t)",
		},
		{
			name:     "precedence",
			src:      "1 A(x) v B(x) ^ C(x) => D(x)",
			weight:   1,
			expected: "(A(x) v (B(x) ^ C(x))) => D(x)",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			exprs, err := ParseTheory(tc.src)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(exprs) != 1 {
				t.Fatalf("expected 1 expression, got %d", len(exprs))
			}
			wf, ok := exprs[0].(WeightedFormulaExpr)
			if !ok {
				t.Fatalf("expected WeightedFormulaExpr, got %T", exprs[0])
			}
			if math.IsInf(tc.weight, 1) != wf.WeightedFormula.IsHard() ||
				(!math.IsInf(tc.weight, 1) && wf.WeightedFormula.Weight != tc.weight) {
				t.Errorf("expected weight %g, got %g", tc.weight, wf.WeightedFormula.Weight)
			}
			if got := wf.WeightedFormula.Formula.String(); got != tc.expected {
				t.Errorf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestParseTheoryBareFormulaHasNaNWeight(t *testing.T) {
	exprs, err := ParseTheory("Smokes(x) => Cancer(x)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wf, ok := exprs[0].(WeightedFormulaExpr)
	if !ok {
		t.Fatalf("expected WeightedFormulaExpr, got %T", exprs[0])
	}
	if !math.IsNaN(wf.WeightedFormula.Weight) {
		t.Errorf("expected NaN weight, got %g", wf.WeightedFormula.Weight)
	}
}

func TestParseTheoryDefiniteClause(t *testing.T) {
	exprs, err := ParseTheory("1.2 Q(x, t) :- A(x, t) ^ !B(x, t)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wdc, ok := exprs[0].(WeightedDefiniteClauseExpr)
	if !ok {
		t.Fatalf("expected WeightedDefiniteClauseExpr, got %T", exprs[0])
	}
	if wdc.WeightedClause.Weight != 1.2 {
		t.Errorf("expected weight 1.2, got %g", wdc.WeightedClause.Weight)
	}
	if expected := "Q(x,t) :- A(x,t) ^ !B(x,t)"; wdc.WeightedClause.Clause.String() != expected {
		t.Errorf("expected %q, got %q", expected, wdc.WeightedClause.Clause)
	}
}

func TestParseTheoryDefiniteClauseRejectsDisjunctiveBody(t *testing.T) {
	_, err := ParseTheory("Q(x) :- A(x) v B(x).")
	if !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestParseTheoryInclude(t *testing.T) {
	exprs, err := ParseTheory(`#include "base.mln"`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	inc, ok := exprs[0].(IncludeFile)
	if !ok {
		t.Fatalf("expected IncludeFile, got %T", exprs[0])
	}
	if inc.Path != "base.mln" {
		t.Errorf("expected path base.mln, got %q", inc.Path)
	}
}

func TestParseTheoryErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "weight and hard marker", src: "1.5 Smokes(x)."},
		{name: "unknown directive", src: "#import \"x\""},
		{name: "stray character", src: "Smokes(x) & Cancer(x)"},
		{name: "unterminated parenthesis", src: "1 (Smokes(x) v Cancer(x)"},
		{name: "missing operand", src: "2 Smokes(x) v"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseTheory(tc.src); !errors.Is(err, internalerr.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestParseEvidence(t *testing.T) {
	src := `
Smokes(Anna)
!Smokes(Bob)
0.8 Cancer(Anna)
F2 = nextFluent(F1)
`
	exprs, err := ParseEvidence(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(exprs) != 4 {
		t.Fatalf("expected 4 expressions, got %d", len(exprs))
	}

	anna := exprs[0].(EvidenceAtomExpr).Atom
	if anna.State != logic.TriTrue || !math.IsNaN(anna.Probability) {
		t.Errorf("expected plain true evidence, got %+v", anna)
	}
	bob := exprs[1].(EvidenceAtomExpr).Atom
	if bob.State != logic.TriFalse {
		t.Errorf("expected false evidence, got %+v", bob)
	}
	cancer := exprs[2].(EvidenceAtomExpr).Atom
	if cancer.Probability != 0.8 || cancer.State != logic.TriTrue {
		t.Errorf("expected probability 0.8, got %+v", cancer)
	}

	m, ok := exprs[3].(FunctionMappingExpr)
	if !ok {
		t.Fatalf("expected FunctionMappingExpr, got %T", exprs[3])
	}
	if m.Mapping.ReturnValue != "F2" || m.Mapping.Symbol != "nextFluent" ||
		len(m.Mapping.Values) != 1 || m.Mapping.Values[0] != "F1" {
		t.Errorf("unexpected mapping %+v", m.Mapping)
	}
}

func TestParseEvidenceRejectsVariables(t *testing.T) {
	if _, err := ParseEvidence("Smokes(x)"); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestFormulaTextRoundTrips(t *testing.T) {
	x := logic.NewVariable("x", "person")
	y := logic.NewVariable("y", "person")
	tt := logic.NewVariable("t", "time")
	formulas := []logic.Formula{
		logic.NewImplies(logic.NewAtom("Smokes", x), logic.NewAtom("Cancer", x)),
		logic.NewEquivalence(
			logic.NewAtom("Q", x, tt),
			logic.NewOr(logic.NewAtom("A", x, tt), logic.NewAtom("B", x, tt))),
		logic.NewForall(x, logic.NewExists(y, logic.NewAtom("Friends", x, y))),
		logic.NewNot(logic.NewAnd(logic.NewAtom("Smokes", x), logic.NewNot(logic.NewAtom("Cancer", x)))),
		logic.NewAtom("Holds", logic.NewFunction("nextFluent", logic.NewConstant("F1")), tt),
		logic.NewOr(logic.NewAtom("P", x.WithIndex(1)), logic.NewNot(logic.NewAtom("P", x.WithIndex(2)))),
	}
	for _, f := range formulas {
		text := f.String()
		parsed, err := ParseFormula(text)
		if err != nil {
			t.Errorf("%q did not parse: %v", text, err)
			continue
		}
		if parsed.String() != text {
			t.Errorf("round trip changed %q to %q", text, parsed.String())
		}
	}
}
