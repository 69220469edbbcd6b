package cnf

import (
	"fmt"

	"github.com/cognicore/mlnc/pkg/mlnc/internalerr"
	"github.com/cognicore/mlnc/pkg/mlnc/logic"
)

// Distribute rewrites a negation-normal, quantifier-free formula into a
// conjunction of disjunctions by repeatedly distributing OR over AND until
// a fixed point. The iteration cap guards against non-termination on
// pathological input; exceeding it is a fatal error.
func Distribute(f logic.Formula, maxIterations int) (logic.Formula, error) {
	for i := 0; ; i++ {
		if maxIterations > 0 && i >= maxIterations {
			return nil, fmt.Errorf("%w: gave up after %d passes over %s",
				internalerr.ErrDiverged, i, f)
		}
		changed := false
		f = distributeOnce(f, &changed)
		if !changed {
			return f, nil
		}
	}
}

// distributeOnce applies one top-down rewriting pass, flagging whether any
// rewrite fired.
func distributeOnce(f logic.Formula, changed *bool) logic.Formula {
	switch x := f.(type) {
	case *logic.Or:
		if conj, ok := x.Left.(*logic.And); ok {
			*changed = true
			return logic.NewAnd(
				logic.NewOr(conj.Left, x.Right),
				logic.NewOr(conj.Right, x.Right),
			)
		}
		if conj, ok := x.Right.(*logic.And); ok {
			*changed = true
			return logic.NewAnd(
				logic.NewOr(x.Left, conj.Left),
				logic.NewOr(x.Left, conj.Right),
			)
		}
		return logic.NewOr(distributeOnce(x.Left, changed), distributeOnce(x.Right, changed))
	case *logic.And:
		return logic.NewAnd(distributeOnce(x.Left, changed), distributeOnce(x.Right, changed))
	default:
		return f
	}
}

// FastDistribute is a combinatorial shortcut for the common shape where
// the formula is a disjunction of literals and of conjunctions whose
// operands are themselves literals or flat disjunctions of literals. The
// formula is encoded over small integers (0 and 1 are reserved for the
// two connectives, identifiers from 2 upward name literals); literals
// hanging directly under the OR spine form a prefix hoisted out of the
// distribution workload, and the remaining conjunction groups distribute
// as a plain vector product. Any other shape falls back to the general
// fixed-point algorithm, which remains the correctness oracle.
func FastDistribute(f logic.Formula, maxIterations int) (logic.Formula, error) {
	enc := &literalEncoder{ids: make(map[string]int)}
	prefix, groups, ok := enc.encode(f)
	if !ok {
		return Distribute(f, maxIterations)
	}
	if len(groups) == 0 {
		// Already a flat disjunction.
		return f, nil
	}

	// One clause per element of the cartesian product over the groups.
	selection := make([]int, len(groups))
	var conj logic.Formula
	for {
		ids := append([]int(nil), prefix...)
		for gi, pick := range selection {
			ids = append(ids, groups[gi][pick]...)
		}
		clause := enc.disjunction(ids)
		if conj == nil {
			conj = clause
		} else {
			conj = logic.NewAnd(conj, clause)
		}

		// Advance the selection vector.
		carry := len(selection) - 1
		for carry >= 0 {
			selection[carry]++
			if selection[carry] < len(groups[carry]) {
				break
			}
			selection[carry] = 0
			carry--
		}
		if carry < 0 {
			return conj, nil
		}
	}
}

const (
	encOr  = 0
	encAnd = 1
)

// literalEncoder assigns integer identifiers (>= 2) to literals. The maps
// are local to a single FastDistribute call.
type literalEncoder struct {
	ids      map[string]int
	literals []logic.Formula
}

// literalID returns the identifier of an atom or negated atom, or false
// for any other construct.
func (e *literalEncoder) literalID(f logic.Formula) (int, bool) {
	switch x := f.(type) {
	case *logic.AtomicFormula:
	case *logic.Not:
		if _, ok := x.Arg.(*logic.AtomicFormula); !ok {
			return 0, false
		}
	default:
		return 0, false
	}
	key := f.String()
	if id, ok := e.ids[key]; ok {
		return id, true
	}
	id := len(e.literals) + 2
	e.ids[key] = id
	e.literals = append(e.literals, f)
	return id, true
}

func (e *literalEncoder) decode(id int) logic.Formula {
	return e.literals[id-2]
}

// encode flattens the OR spine of f into prefix literal identifiers and
// conjunction groups, each group a list of flat disjunctions of literal
// identifiers. ok is false when the shape does not qualify for the fast
// path.
func (e *literalEncoder) encode(f logic.Formula) (prefix []int, groups [][][]int, ok bool) {
	for _, operand := range flattenSpine(f, encOr) {
		if id, isLit := e.literalID(operand); isLit {
			prefix = append(prefix, id)
			continue
		}
		conj, isAnd := operand.(*logic.And)
		if !isAnd {
			return nil, nil, false
		}
		var group [][]int
		for _, element := range flattenSpine(conj, encAnd) {
			ids, flat := e.flatDisjunction(element)
			if !flat {
				return nil, nil, false
			}
			group = append(group, ids)
		}
		groups = append(groups, group)
	}
	return prefix, groups, true
}

// flatDisjunction encodes a literal or an OR chain of literals.
func (e *literalEncoder) flatDisjunction(f logic.Formula) ([]int, bool) {
	var ids []int
	for _, operand := range flattenSpine(f, encOr) {
		id, isLit := e.literalID(operand)
		if !isLit {
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

// disjunction rebuilds an OR chain from literal identifiers, left-folded.
func (e *literalEncoder) disjunction(ids []int) logic.Formula {
	var out logic.Formula
	for _, id := range ids {
		lit := e.decode(id)
		if out == nil {
			out = lit
		} else {
			out = logic.NewOr(out, lit)
		}
	}
	return out
}

// flattenSpine returns the operands of a left-to-right chain of the given
// connective, walking with an explicit stack.
func flattenSpine(f logic.Formula, connective int) []logic.Formula {
	var out []logic.Formula
	stack := []logic.Formula{f}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		switch x := cur.(type) {
		case *logic.Or:
			if connective == encOr {
				stack = append(stack, x.Right, x.Left)
				continue
			}
		case *logic.And:
			if connective == encAnd {
				stack = append(stack, x.Right, x.Left)
				continue
			}
		}
		out = append(out, cur)
	}
	return out
}
