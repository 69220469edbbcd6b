// Package kb holds the knowledge-base side of a theory: the declared
// predicate and function schemas, the finite constant sets of every
// domain, and the evidence database interface with its backends.
package kb

import (
	"context"
	"fmt"

	"github.com/cognicore/mlnc/pkg/mlnc/internalerr"
	"github.com/cognicore/mlnc/pkg/mlnc/logic"
)

// equalsSignature is the built-in equality predicate injected by
// predicate completion. It is implicitly declared for every theory.
var equalsSignature = logic.AtomSignature{Symbol: "equals", Arity: 2}

// FunctionType declares a function's return domain and argument domains.
type FunctionType struct {
	ReturnType string
	ArgTypes   []string
}

// Schema maps predicate and function signatures to their declared
// argument domains.
type Schema struct {
	Predicates map[logic.AtomSignature][]string
	Functions  map[logic.AtomSignature]FunctionType
}

// NewSchema creates an empty schema.
func NewSchema() *Schema {
	return &Schema{
		Predicates: make(map[logic.AtomSignature][]string),
		Functions:  make(map[logic.AtomSignature]FunctionType),
	}
}

// DeclarePredicate registers a predicate and its argument domains.
func (s *Schema) DeclarePredicate(symbol string, argTypes ...string) {
	s.Predicates[logic.AtomSignature{Symbol: symbol, Arity: len(argTypes)}] = argTypes
}

// DeclareFunction registers a function, its return domain and its
// argument domains.
func (s *Schema) DeclareFunction(symbol, returnType string, argTypes ...string) {
	s.Functions[logic.AtomSignature{Symbol: symbol, Arity: len(argTypes)}] = FunctionType{
		ReturnType: returnType,
		ArgTypes:   argTypes,
	}
}

// PredicateArgTypes implements logic.Typer.
func (s *Schema) PredicateArgTypes(sig logic.AtomSignature) ([]string, bool) {
	types, ok := s.Predicates[sig]
	return types, ok
}

// FunctionArgTypes implements logic.Typer.
func (s *Schema) FunctionArgTypes(sig logic.AtomSignature) ([]string, bool) {
	ft, ok := s.Functions[sig]
	return ft.ArgTypes, ok
}

// Annotate resolves every variable's domain and every function's return
// domain in f against the schema, producing a new, fully typed formula.
// Undeclared predicates or functions, return-type/argument-type
// mismatches and variables whose domain cannot be resolved are
// configuration errors that abort the compilation.
func (s *Schema) Annotate(f logic.Formula) (logic.Formula, error) {
	domains := make(map[string]string)
	if err := s.resolveDomains(f, domains); err != nil {
		return nil, err
	}
	out, err := s.rebuild(f, domains)
	if err != nil {
		return nil, err
	}
	for _, v := range logic.Variables(out) {
		if v.Domain == logic.UndefinedDomain {
			return nil, fmt.Errorf("%w: variable %s of %s has no resolvable domain",
				internalerr.ErrInvalidInput, v, f)
		}
	}
	return out, nil
}

// AnnotateWeighted annotates the formula of a weighted formula.
func (s *Schema) AnnotateWeighted(wf logic.WeightedFormula) (logic.WeightedFormula, error) {
	f, err := s.Annotate(wf.Formula)
	if err != nil {
		return logic.WeightedFormula{}, err
	}
	return logic.WeightedFormula{Weight: wf.Weight, Formula: f}, nil
}

// AnnotateDefiniteClause annotates head and body of a weighted definite
// clause.
func (s *Schema) AnnotateDefiniteClause(wdc logic.WeightedDefiniteClause) (logic.WeightedDefiniteClause, error) {
	domains := make(map[string]string)
	if err := s.resolveDomains(wdc.Clause.Head, domains); err != nil {
		return logic.WeightedDefiniteClause{}, err
	}
	if err := s.resolveDomains(wdc.Clause.Body, domains); err != nil {
		return logic.WeightedDefiniteClause{}, err
	}
	head, err := s.rebuild(wdc.Clause.Head, domains)
	if err != nil {
		return logic.WeightedDefiniteClause{}, err
	}
	body, err := s.rebuild(wdc.Clause.Body, domains)
	if err != nil {
		return logic.WeightedDefiniteClause{}, err
	}
	dc, err := logic.NewDefiniteClause(head.(*logic.AtomicFormula), body)
	if err != nil {
		return logic.WeightedDefiniteClause{}, err
	}
	return logic.WeightedDefiniteClause{Weight: wdc.Weight, Clause: dc}, nil
}

// resolveDomains walks f once, assigning each variable symbol the domain
// declared for the argument positions it occupies.
func (s *Schema) resolveDomains(f logic.Formula, domains map[string]string) error {
	switch x := f.(type) {
	case *logic.EvidenceAtom:
		return nil
	case *logic.AtomicFormula:
		sig := x.Signature()
		if sig == equalsSignature {
			// Built-in equality: argument domains are inferred from
			// the surrounding formula, never declared.
			return nil
		}
		argTypes, ok := s.Predicates[sig]
		if !ok {
			return fmt.Errorf("%w: %s in %s", internalerr.ErrUnknownPredicate, sig, x)
		}
		for i, t := range x.Terms {
			if err := s.resolveTermDomain(t, argTypes[i], x, domains); err != nil {
				return err
			}
		}
		return nil
	default:
		for _, sub := range subformulasOf(f) {
			if err := s.resolveDomains(sub, domains); err != nil {
				return err
			}
		}
		return nil
	}
}

func (s *Schema) resolveTermDomain(t logic.Term, expected string, in *logic.AtomicFormula, domains map[string]string) error {
	switch x := t.(type) {
	case *logic.Variable:
		prev, seen := domains[varDomainKey(x)]
		if seen && prev != expected {
			return fmt.Errorf("%w: variable %s is used as both %s and %s in %s",
				internalerr.ErrInvalidInput, x, prev, expected, in)
		}
		if x.Domain != logic.UndefinedDomain && x.Domain != expected {
			return fmt.Errorf("%w: variable %s declared %s but used as %s in %s",
				internalerr.ErrInvalidInput, x, x.Domain, expected, in)
		}
		domains[varDomainKey(x)] = expected
		return nil
	case *logic.Function:
		ft, ok := s.Functions[x.Signature()]
		if !ok {
			return fmt.Errorf("%w: %s in %s", internalerr.ErrUnknownFunction, x.Signature(), in)
		}
		if ft.ReturnType != expected {
			return fmt.Errorf("%w: function %s returns %s where %s is expected in %s",
				internalerr.ErrInvalidInput, x.Symbol, ft.ReturnType, expected, in)
		}
		for i, arg := range x.Terms {
			if err := s.resolveTermDomain(arg, ft.ArgTypes[i], in, domains); err != nil {
				return err
			}
		}
		return nil
	default:
		return nil
	}
}

// rebuild produces a copy of f with every variable typed according to the
// resolved domains and every function carrying its declared return domain.
func (s *Schema) rebuild(f logic.Formula, domains map[string]string) (logic.Formula, error) {
	switch x := f.(type) {
	case *logic.EvidenceAtom:
		return x, nil
	case *logic.AtomicFormula:
		terms := make([]logic.Term, len(x.Terms))
		for i, t := range x.Terms {
			terms[i] = s.rebuildTerm(t, domains)
		}
		return logic.NewAtom(x.Predicate, terms...), nil
	case *logic.Not:
		arg, err := s.rebuild(x.Arg, domains)
		if err != nil {
			return nil, err
		}
		return logic.NewNot(arg), nil
	case *logic.And:
		return s.rebuildBinary(x.Left, x.Right, domains, func(l, r logic.Formula) logic.Formula { return logic.NewAnd(l, r) })
	case *logic.Or:
		return s.rebuildBinary(x.Left, x.Right, domains, func(l, r logic.Formula) logic.Formula { return logic.NewOr(l, r) })
	case *logic.Implies:
		return s.rebuildBinary(x.Left, x.Right, domains, func(l, r logic.Formula) logic.Formula { return logic.NewImplies(l, r) })
	case *logic.Equivalence:
		return s.rebuildBinary(x.Left, x.Right, domains, func(l, r logic.Formula) logic.Formula { return logic.NewEquivalence(l, r) })
	case *logic.UniversalQuantifier:
		body, err := s.rebuild(x.Body, domains)
		if err != nil {
			return nil, err
		}
		return logic.NewForall(s.rebuildVariable(x.V, domains), body), nil
	case *logic.ExistentialQuantifier:
		body, err := s.rebuild(x.Body, domains)
		if err != nil {
			return nil, err
		}
		return logic.NewExists(s.rebuildVariable(x.V, domains), body), nil
	default:
		return nil, fmt.Errorf("%w: unexpected construct %T", internalerr.ErrMalformedFormula, f)
	}
}

func (s *Schema) rebuildBinary(left, right logic.Formula, domains map[string]string, join func(l, r logic.Formula) logic.Formula) (logic.Formula, error) {
	l, err := s.rebuild(left, domains)
	if err != nil {
		return nil, err
	}
	r, err := s.rebuild(right, domains)
	if err != nil {
		return nil, err
	}
	return join(l, r), nil
}

func (s *Schema) rebuildTerm(t logic.Term, domains map[string]string) logic.Term {
	switch x := t.(type) {
	case *logic.Variable:
		return s.rebuildVariable(x, domains)
	case *logic.Function:
		args := make([]logic.Term, len(x.Terms))
		for i, a := range x.Terms {
			args[i] = s.rebuildTerm(a, domains)
		}
		domain := x.Domain
		if ft, ok := s.Functions[x.Signature()]; ok {
			domain = ft.ReturnType
		}
		return &logic.Function{Symbol: x.Symbol, Terms: args, Domain: domain}
	default:
		return t
	}
}

func (s *Schema) rebuildVariable(v *logic.Variable, domains map[string]string) *logic.Variable {
	if d, ok := domains[varDomainKey(v)]; ok && v.Domain == logic.UndefinedDomain {
		return v.WithDomain(d)
	}
	return v
}

// varDomainKey identifies a variable for domain resolution. Index is part
// of the key; the carried domain is what is being resolved.
func varDomainKey(v *logic.Variable) string {
	return fmt.Sprintf("%s#%d", v.Symbol, v.Index)
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

// FunctionMapping is an observed ground function value: the function
// applied to the given constant values returns ReturnValue.
type FunctionMapping struct {
	ReturnValue string
	Symbol      string
	Values      []string
}

// Signature returns the mapping's function signature.
func (m FunctionMapping) Signature() logic.AtomSignature {
	return logic.AtomSignature{Symbol: m.Symbol, Arity: len(m.Values)}
}

// Store is the main interface for persisting the constant sets, evidence
// atoms and function mappings of a knowledge base.
type Store interface {
	Close() error

	// Constant sets per domain
	AddConstants(ctx context.Context, domain string, symbols ...string) error
	Constants(ctx context.Context, domain string) ([]string, error)
	ConstantsPerDomain(ctx context.Context) (map[string][]string, error)

	// Evidence atoms
	AssertEvidence(ctx context.Context, ev *logic.EvidenceAtom) error
	Evidence(ctx context.Context, sig logic.AtomSignature) ([]*logic.EvidenceAtom, error)

	// Function mappings
	AddFunctionMapping(ctx context.Context, m FunctionMapping) error
	FunctionMappings(ctx context.Context, sig logic.AtomSignature) ([]FunctionMapping, error)
}
