// Package parser reads the MLN surface syntax: predicate and function
// declarations, weighted formulas, definite clauses, evidence atoms and
// function mappings. Formula text produced by the logic package's
// renderers parses back to an equal tree.
package parser

import (
	"github.com/cognicore/mlnc/pkg/mlnc/kb"
	"github.com/cognicore/mlnc/pkg/mlnc/logic"
)

// Expression is one parsed top-level statement.
type Expression interface {
	expression()
}

// IncludeFile references another theory file to be loaded in place.
type IncludeFile struct {
	Path string
}

// AtomicType declares a predicate and the domains of its arguments.
type AtomicType struct {
	Symbol   string
	ArgTypes []string
}

// FunctionType declares a term function, its return domain and the
// domains of its arguments.
type FunctionType struct {
	ReturnType string
	Symbol     string
	ArgTypes   []string
}

// WeightedFormulaExpr is a formula statement with its parsed weight.
type WeightedFormulaExpr struct {
	WeightedFormula logic.WeightedFormula
}

// WeightedDefiniteClauseExpr is a "head :- body" statement.
type WeightedDefiniteClauseExpr struct {
	WeightedClause logic.WeightedDefiniteClause
}

// EvidenceAtomExpr is one ground observation.
type EvidenceAtomExpr struct {
	Atom *logic.EvidenceAtom
}

// FunctionMappingExpr fixes a function's value on one argument tuple.
type FunctionMappingExpr struct {
	Mapping kb.FunctionMapping
}

func (IncludeFile) expression()                {}
func (AtomicType) expression()                 {}
func (FunctionType) expression()               {}
func (WeightedFormulaExpr) expression()        {}
func (WeightedDefiniteClauseExpr) expression() {}
func (EvidenceAtomExpr) expression()           {}
func (FunctionMappingExpr) expression()        {}
