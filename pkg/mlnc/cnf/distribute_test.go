package cnf

import (
	"errors"
	"math/rand"
	"sort"
	"testing"

	"github.com/cognicore/mlnc/pkg/mlnc/internalerr"
	"github.com/cognicore/mlnc/pkg/mlnc/logic"
)

func TestDistribute(t *testing.T) {
	a := logic.NewConstant("A")
	p := logic.NewAtom("P", a)
	q := logic.NewAtom("Q", a)
	r := logic.NewAtom("R", a)
	s := logic.NewAtom("S", a)

	tests := []struct {
		name     string
		in       logic.Formula
		expected string
	}{
		{
			name:     "or over and on the right",
			in:       logic.NewOr(p, logic.NewAnd(q, r)),
			expected: "(P(A) v Q(A)) ^ (P(A) v R(A))",
		},
		{
			name:     "or over and on the left",
			in:       logic.NewOr(logic.NewAnd(q, r), p),
			expected: "(Q(A) v P(A)) ^ (R(A) v P(A))",
		},
		{
			name:     "already conjunctive",
			in:       logic.NewAnd(logic.NewOr(p, q), r),
			expected: "(P(A) v Q(A)) ^ R(A)",
		},
		{
			name: "two conjunctions",
			in:   logic.NewOr(logic.NewAnd(p, q), logic.NewAnd(r, s)),
			expected: "((P(A) v R(A)) ^ (P(A) v S(A))) ^ " +
				"((Q(A) v R(A)) ^ (Q(A) v S(A)))",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Distribute(tc.in, 0)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tc.expected {
				t.Errorf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestDistributeIterationCap(t *testing.T) {
	a := logic.NewConstant("A")
	f := logic.NewOr(logic.NewAtom("P", a),
		logic.NewAnd(logic.NewAtom("Q", a), logic.NewAtom("R", a)))

	_, err := Distribute(f, 1)
	if !errors.Is(err, internalerr.ErrDiverged) {
		t.Errorf("expected ErrDiverged, got %v", err)
	}
}

func TestFastDistributeFlatDisjunction(t *testing.T) {
	a := logic.NewConstant("A")
	f := logic.NewOr(logic.NewAtom("P", a), logic.NewNot(logic.NewAtom("Q", a)))

	got, err := FastDistribute(f, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != f {
		t.Errorf("flat disjunction must pass through unchanged, got %q", got)
	}
}

func TestFastDistributeMatchesGeneral(t *testing.T) {
	a := logic.NewConstant("A")
	p := logic.NewAtom("P", a)
	q := logic.NewAtom("Q", a)
	r := logic.NewAtom("R", a)
	s := logic.NewAtom("S", a)

	f := logic.NewOr(p,
		logic.NewOr(
			logic.NewAnd(q, logic.NewOr(r, s)),
			logic.NewAnd(logic.NewNot(r), s)))

	slow, err := Distribute(f, 0)
	if err != nil {
		t.Fatalf("general distribution failed: %v", err)
	}
	fast, err := FastDistribute(f, 0)
	if err != nil {
		t.Fatalf("fast distribution failed: %v", err)
	}
	if got, expected := clauseKeySet(t, fast), clauseKeySet(t, slow); !equalStrings(got, expected) {
		t.Errorf("clause sets diverge:\n  general: %v\n  fast:    %v", expected, got)
	}
}

func TestFastDistributeMatchesGeneralRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	pool := []logic.Formula{
		logic.NewAtom("P", logic.NewConstant("A")),
		logic.NewNot(logic.NewAtom("P", logic.NewConstant("A"))),
		logic.NewAtom("Q", logic.NewConstant("A")),
		logic.NewAtom("R", logic.NewConstant("B")),
		logic.NewNot(logic.NewAtom("S", logic.NewConstant("B"))),
	}

	for trial := 0; trial < 100; trial++ {
		f := randomDisjunction(rng, pool)

		slow, err := Distribute(f, 0)
		if err != nil {
			t.Fatalf("trial %d: general distribution failed on %s: %v", trial, f, err)
		}
		fast, err := FastDistribute(f, 0)
		if err != nil {
			t.Fatalf("trial %d: fast distribution failed on %s: %v", trial, f, err)
		}
		if got, expected := clauseKeySet(t, fast), clauseKeySet(t, slow); !equalStrings(got, expected) {
			t.Errorf("trial %d: clause sets diverge for %s:\n  general: %v\n  fast:    %v",
				trial, f, expected, got)
		}
	}
}

// randomDisjunction builds an OR of literals and of conjunctions whose
// operands are literals or flat disjunctions of literals.
func randomDisjunction(rng *rand.Rand, pool []logic.Formula) logic.Formula {
	operand := func() logic.Formula {
		if rng.Intn(2) == 0 {
			return pool[rng.Intn(len(pool))]
		}
		inner := pool[rng.Intn(len(pool))]
		for i := rng.Intn(3); i > 0; i-- {
			inner = logic.NewOr(inner, pool[rng.Intn(len(pool))])
		}
		return inner
	}

	f := pool[rng.Intn(len(pool))]
	for i := 1 + rng.Intn(3); i > 0; i-- {
		if rng.Intn(2) == 0 {
			f = logic.NewOr(f, pool[rng.Intn(len(pool))])
			continue
		}
		conj := logic.NewAnd(operand(), operand())
		for j := rng.Intn(2); j > 0; j-- {
			conj = logic.NewAnd(conj, operand())
		}
		f = logic.NewOr(f, conj)
	}
	return f
}

// clauseKeySet reduces a conjunction of disjunctions to the sorted set of
// its clause identities, ignoring weights.
func clauseKeySet(t *testing.T, f logic.Formula) []string {
	t.Helper()
	seen := make(map[string]struct{})
	var out []string
	for _, conjunct := range flattenSpine(f, encAnd) {
		literals, _, err := orChainLiterals(conjunct)
		if err != nil {
			t.Fatalf("malformed clause %s: %v", conjunct, err)
		}
		key := logic.NewClause(0, literals...).Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
