// Package cnf compiles first-order formulas into weighted clausal normal
// form. The pipeline is strictly staged: implication elimination, negation
// normal form, variable standardization, existential elimination by
// finite-domain grounding, universal-quantifier stripping, distribution of
// disjunction over conjunction, and clause extraction with weight
// redistribution.
package cnf

import (
	"fmt"

	"github.com/cognicore/mlnc/pkg/mlnc/internalerr"
	"github.com/cognicore/mlnc/pkg/mlnc/logic"
)

// ConstantsPerDomain maps a domain name to its finite constant set.
type ConstantsPerDomain map[string][]string

// RemoveImplications rewrites implications and equivalences into
// disjunctions: a => b becomes !a v b, and a <=> b becomes
// (!a v b) ^ (a v !b). All other constructs keep their shape.
func RemoveImplications(f logic.Formula) logic.Formula {
	switch x := f.(type) {
	case *logic.Implies:
		left := RemoveImplications(x.Left)
		right := RemoveImplications(x.Right)
		return logic.NewOr(logic.NewNot(left), right)
	case *logic.Equivalence:
		left := RemoveImplications(x.Left)
		right := RemoveImplications(x.Right)
		return logic.NewAnd(
			logic.NewOr(logic.NewNot(left), right),
			logic.NewOr(left, logic.NewNot(right)),
		)
	case *logic.Not:
		return logic.NewNot(RemoveImplications(x.Arg))
	case *logic.And:
		return logic.NewAnd(RemoveImplications(x.Left), RemoveImplications(x.Right))
	case *logic.Or:
		return logic.NewOr(RemoveImplications(x.Left), RemoveImplications(x.Right))
	case *logic.UniversalQuantifier:
		return logic.NewForall(x.V, RemoveImplications(x.Body))
	case *logic.ExistentialQuantifier:
		return logic.NewExists(x.V, RemoveImplications(x.Body))
	default:
		return f
	}
}

// NegationsIn pushes negations inward until they rest on atoms: De Morgan
// over conjunction and disjunction, quantifier duality, and double
// negation elimination.
func NegationsIn(f logic.Formula) logic.Formula {
	switch x := f.(type) {
	case *logic.Not:
		switch inner := x.Arg.(type) {
		case *logic.Not:
			return NegationsIn(inner.Arg)
		case *logic.And:
			return logic.NewOr(
				NegationsIn(logic.NewNot(inner.Left)),
				NegationsIn(logic.NewNot(inner.Right)),
			)
		case *logic.Or:
			return logic.NewAnd(
				NegationsIn(logic.NewNot(inner.Left)),
				NegationsIn(logic.NewNot(inner.Right)),
			)
		case *logic.ExistentialQuantifier:
			return logic.NewForall(inner.V, NegationsIn(logic.NewNot(inner.Body)))
		case *logic.UniversalQuantifier:
			return logic.NewExists(inner.V, NegationsIn(logic.NewNot(inner.Body)))
		default:
			// Negated atom: a literal, terminal.
			return x
		}
	case *logic.And:
		return logic.NewAnd(NegationsIn(x.Left), NegationsIn(x.Right))
	case *logic.Or:
		return logic.NewOr(NegationsIn(x.Left), NegationsIn(x.Right))
	case *logic.UniversalQuantifier:
		return logic.NewForall(x.V, NegationsIn(x.Body))
	case *logic.ExistentialQuantifier:
		return logic.NewExists(x.V, NegationsIn(x.Body))
	default:
		return f
	}
}

// StandardizeVariables renames every quantifier-bound variable to a fresh
// index so that reusing the same symbol under different quantifiers cannot
// collide after the quantifiers are eliminated. Indexes increase
// monotonically per distinct original variable identity; the rename map is
// local to a single call.
func StandardizeVariables(f logic.Formula) logic.Formula {
	counters := make(map[string]int)
	return standardize(f, counters)
}

func standardize(f logic.Formula, counters map[string]int) logic.Formula {
	switch x := f.(type) {
	case *logic.Not:
		return logic.NewNot(standardize(x.Arg, counters))
	case *logic.And:
		return logic.NewAnd(standardize(x.Left, counters), standardize(x.Right, counters))
	case *logic.Or:
		return logic.NewOr(standardize(x.Left, counters), standardize(x.Right, counters))
	case *logic.Implies:
		return logic.NewImplies(standardize(x.Left, counters), standardize(x.Right, counters))
	case *logic.Equivalence:
		return logic.NewEquivalence(standardize(x.Left, counters), standardize(x.Right, counters))
	case *logic.UniversalQuantifier:
		renamed, body := standardizeBound(x.V, x.Body, counters)
		return logic.NewForall(renamed, body)
	case *logic.ExistentialQuantifier:
		renamed, body := standardizeBound(x.V, x.Body, counters)
		return logic.NewExists(renamed, body)
	default:
		return f
	}
}

func standardizeBound(v *logic.Variable, body logic.Formula, counters map[string]int) (*logic.Variable, logic.Formula) {
	ident := v.Symbol + "/" + v.Domain
	counters[ident]++
	renamed := v.WithIndex(counters[ident])

	theta := logic.NewTheta()
	theta.Bind(v, renamed)
	return renamed, standardize(logic.Substitute(theta, body), counters)
}

// RemoveExistentialQuantifiers eliminates every existential quantifier by
// grounding its body over the finite constant set of the bound variable's
// domain, producing the disjunction of the grounded bodies. A domain with
// no known constants is a configuration error. The rewriting is driven by
// an explicit stack so that deeply nested quantifiers cannot exhaust the
// call stack.
func RemoveExistentialQuantifiers(f logic.Formula, domains ConstantsPerDomain) (logic.Formula, error) {
	for {
		path := findInnermostExists(f)
		if path == nil {
			return f, nil
		}
		target := path[len(path)-1].(*logic.ExistentialQuantifier)
		constants := domains[target.V.Domain]
		if len(constants) == 0 {
			return nil, fmt.Errorf("%w: no constants for domain %q of variable %s in %s",
				internalerr.ErrUnknownDomain, target.V.Domain, target.V, f)
		}

		var expanded logic.Formula
		for _, c := range constants {
			theta := logic.NewTheta()
			theta.Bind(target.V, logic.NewConstant(c))
			ground := logic.Substitute(theta, target.Body)
			if expanded == nil {
				expanded = ground
			} else {
				expanded = logic.NewOr(expanded, ground)
			}
		}
		f = replaceAlongPath(path, expanded)
	}
}

// findInnermostExists returns the root-to-node path of the first
// existential quantifier, in pre-order, whose body holds no further
// existential. The walk keeps its own frame stack.
func findInnermostExists(f logic.Formula) []logic.Formula {
	type frame struct {
		node logic.Formula
		next int
	}
	stack := []frame{{node: f}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next == 0 {
			if ex, ok := top.node.(*logic.ExistentialQuantifier); ok && !containsExists(ex.Body) {
				path := make([]logic.Formula, len(stack))
				for i, fr := range stack {
					path[i] = fr.node
				}
				return path
			}
		}
		subs := subformulasOf(top.node)
		if top.next < len(subs) {
			child := subs[top.next]
			top.next++
			stack = append(stack, frame{node: child})
		} else {
			stack = stack[:len(stack)-1]
		}
	}
	return nil
}

func containsExists(f logic.Formula) bool {
	stack := []logic.Formula{f}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := cur.(*logic.ExistentialQuantifier); ok {
			return true
		}
		stack = append(stack, subformulasOf(cur)...)
	}
	return false
}

// replaceAlongPath substitutes replacement for the last node of the path
// and rebuilds the ancestor spine bottom-up, iteratively.
func replaceAlongPath(path []logic.Formula, replacement logic.Formula) logic.Formula {
	rebuilt := replacement
	for i := len(path) - 2; i >= 0; i-- {
		rebuilt = rebuildWithChild(path[i], path[i+1], rebuilt)
	}
	return rebuilt
}

func rebuildWithChild(parent, oldChild, newChild logic.Formula) logic.Formula {
	switch x := parent.(type) {
	case *logic.Not:
		return logic.NewNot(newChild)
	case *logic.And:
		if x.Left == oldChild {
			return logic.NewAnd(newChild, x.Right)
		}
		return logic.NewAnd(x.Left, newChild)
	case *logic.Or:
		if x.Left == oldChild {
			return logic.NewOr(newChild, x.Right)
		}
		return logic.NewOr(x.Left, newChild)
	case *logic.Implies:
		if x.Left == oldChild {
			return logic.NewImplies(newChild, x.Right)
		}
		return logic.NewImplies(x.Left, newChild)
	case *logic.Equivalence:
		if x.Left == oldChild {
			return logic.NewEquivalence(newChild, x.Right)
		}
		return logic.NewEquivalence(x.Left, newChild)
	case *logic.UniversalQuantifier:
		return logic.NewForall(x.V, newChild)
	case *logic.ExistentialQuantifier:
		return logic.NewExists(x.V, newChild)
	default:
		return newChild
	}
}

// RemoveUniversalQuantifiers strips every universal quantifier; universal
// scope is implicit in clause form.
func RemoveUniversalQuantifiers(f logic.Formula) logic.Formula {
	switch x := f.(type) {
	case *logic.UniversalQuantifier:
		return RemoveUniversalQuantifiers(x.Body)
	case *logic.ExistentialQuantifier:
		return logic.NewExists(x.V, RemoveUniversalQuantifiers(x.Body))
	case *logic.Not:
		return logic.NewNot(RemoveUniversalQuantifiers(x.Arg))
	case *logic.And:
		return logic.NewAnd(RemoveUniversalQuantifiers(x.Left), RemoveUniversalQuantifiers(x.Right))
	case *logic.Or:
		return logic.NewOr(RemoveUniversalQuantifiers(x.Left), RemoveUniversalQuantifiers(x.Right))
	default:
		return f
	}
}

func subformulasOf(f logic.Formula) []logic.Formula {
	switch x := f.(type) {
	case *logic.Not:
		return []logic.Formula{x.Arg}
	case *logic.And:
		return []logic.Formula{x.Left, x.Right}
	case *logic.Or:
		return []logic.Formula{x.Left, x.Right}
	case *logic.Implies:
		return []logic.Formula{x.Left, x.Right}
	case *logic.Equivalence:
		return []logic.Formula{x.Left, x.Right}
	case *logic.UniversalQuantifier:
		return []logic.Formula{x.Body}
	case *logic.ExistentialQuantifier:
		return []logic.Formula{x.Body}
	default:
		return nil
	}
}
