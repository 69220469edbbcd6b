package mlnc

import (
	"context"
	"math"
	"testing"

	"github.com/cognicore/mlnc/pkg/mlnc/completion"
	"github.com/cognicore/mlnc/pkg/mlnc/kb/memstore"
	"github.com/cognicore/mlnc/pkg/mlnc/logic"
	"github.com/cognicore/mlnc/pkg/mlnc/parser"
)

// TestEndToEnd walks the complete workflow:
// 1. Theory parsing
// 2. Schema declarations and evidence loading
// 3. Predicate completion
// 4. CNF compilation
func TestEndToEnd(t *testing.T) {
	ctx := context.Background()

	theoryText := `
// The friends-and-smokers theory.
Smokes(person)
Cancer(person)
Friends(person, person)
Holds(person)
Nominated(person)

1.5 Smokes(x) => Cancer(x)
1.1 Friends(x, y) => (Smokes(x) <=> Smokes(y))
Holds(x) :- Nominated(x)
`
	evidenceText := `
Smokes(Anna)
!Smokes(Bob)
0.7 Cancer(Anna)
`

	c := New(Options{
		Store:          memstore.New(),
		CompletionMode: completion.ModeStandard,
		Domains:        map[string][]string{"person": {"Anna", "Bob"}},
		FastDistribute: true,
		Parallelism:    2,
	})
	defer c.Close()

	var theory Theory
	exprs, err := parser.ParseTheory(theoryText)
	if err != nil {
		t.Fatalf("parse theory: %v", err)
	}
	includes, err := c.Apply(ctx, &theory, exprs)
	if err != nil {
		t.Fatalf("apply theory: %v", err)
	}
	if len(includes) != 0 {
		t.Fatalf("unexpected includes %v", includes)
	}
	evidence, err := parser.ParseEvidence(evidenceText)
	if err != nil {
		t.Fatalf("parse evidence: %v", err)
	}
	if _, err := c.Apply(ctx, &theory, evidence); err != nil {
		t.Fatalf("apply evidence: %v", err)
	}

	if len(theory.Formulas) != 2 || len(theory.Clauses) != 1 {
		t.Fatalf("unexpected theory shape: %d formulas, %d clauses", len(theory.Formulas), len(theory.Clauses))
	}
	if _, ok := c.Schema().PredicateArgTypes(logic.AtomSignature{Symbol: "Friends", Arity: 2}); !ok {
		t.Fatal("Friends/2 was not declared")
	}

	result, err := c.Compile(ctx, theory)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if result.ID == "" {
		t.Error("expected a run ID")
	}

	// 1.5 Smokes => Cancer compiles to one clause, the friendship
	// equivalence to two, and the completed Holds <=> Nominated
	// equivalence to two hard ones.
	if len(result.Clauses) != 5 {
		t.Fatalf("expected 5 clauses, got %d: %v", len(result.Clauses), result.Clauses)
	}

	byText := make(map[string]*logic.Clause, len(result.Clauses))
	for _, clause := range result.Clauses {
		byText[clause.String()] = clause
	}
	if _, ok := byText["1.5 Cancer(x) v !Smokes(x)"]; !ok {
		t.Errorf("missing smoking clause in %v", result.Clauses)
	}
	hard := 0
	for _, clause := range result.Clauses {
		if clause.IsHard() {
			hard++
		}
		if len(clause.Literals) == 3 && !clause.IsHard() && clause.Weight != 0.55 {
			t.Errorf("friendship clause must carry half the weight, got %s", clause)
		}
	}
	if hard != 2 {
		t.Errorf("expected 2 hard completion clauses, got %d", hard)
	}
}

func TestCompileMergesStoreConstants(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	c := New(Options{
		Store:          store,
		CompletionMode: completion.ModeStandard,
		Domains:        map[string][]string{"time": {"1", "2"}},
	})
	defer c.Close()

	if err := store.AddConstants(ctx, "time", "3"); err != nil {
		t.Fatal(err)
	}

	c.Schema().DeclarePredicate("Happens", "time")
	tt := logic.NewVariable("t", "time")
	theory := Theory{Formulas: []logic.WeightedFormula{{
		Weight:  math.Inf(1),
		Formula: logic.NewExists(tt, logic.NewAtom("Happens", tt)),
	}}}

	result, err := c.Compile(ctx, theory)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(result.Clauses) != 1 {
		t.Fatalf("expected 1 clause, got %d", len(result.Clauses))
	}
	if got := len(result.Clauses[0].Literals); got != 3 {
		t.Errorf("grounding must cover the store constant, expected 3 literals, got %d", got)
	}
}

func TestCompileRejectsUndeclaredPredicate(t *testing.T) {
	c := New(Options{})
	defer c.Close()

	x := logic.NewVariable("x", "person")
	theory := Theory{Formulas: []logic.WeightedFormula{{
		Weight:  1,
		Formula: logic.NewAtom("Smokes", x),
	}}}

	if _, err := c.Compile(context.Background(), theory); err == nil {
		t.Error("expected an error for an undeclared predicate")
	}
}

func TestApplyEvidenceNeedsStore(t *testing.T) {
	c := New(Options{})
	defer c.Close()
	c.Schema().DeclarePredicate("Smokes", "person")

	ev, err := logic.NewEvidenceAtom("Smokes", logic.TriTrue, logic.NewConstant("Anna"))
	if err != nil {
		t.Fatal(err)
	}
	var theory Theory
	if _, err := c.Apply(context.Background(), &theory, []parser.Expression{parser.EvidenceAtomExpr{Atom: ev}}); err == nil {
		t.Error("expected an error without a store")
	}
}
