package cnf

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cognicore/mlnc/pkg/mlnc/internalerr"
	"github.com/cognicore/mlnc/pkg/mlnc/logic"
)

// defaultMaxDistributeIterations bounds the distribution fixed point.
const defaultMaxDistributeIterations = 10000

// Options configures a Compiler.
type Options struct {
	// Domains supplies the finite constant set of every domain, used by
	// existential-quantifier grounding.
	Domains ConstantsPerDomain

	// FastDistribute enables the combinatorial distribution shortcut.
	FastDistribute bool

	// MaxDistributeIterations caps the distribution fixed point.
	// Zero selects the default.
	MaxDistributeIterations int

	// KeepUnitClauses emits every unit clause of a soft formula
	// separately instead of merging them into one negated-disjunction
	// clause. Each unit then counts as its own share of the weight.
	KeepUnitClauses bool

	// Parallelism bounds the workers of CompileCNF. Zero selects the
	// number of CPUs.
	Parallelism int

	// Logger receives tautology warnings. Nil selects a no-op logger.
	Logger *zap.Logger
}

// Compiler reduces weighted formulas to weighted CNF clauses.
type Compiler struct {
	domains     ConstantsPerDomain
	fast        bool
	maxIter     int
	keepUnits   bool
	parallelism int
	log         *zap.Logger
}

// New creates a Compiler with the given options.
func New(opts Options) *Compiler {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	maxIter := opts.MaxDistributeIterations
	if maxIter <= 0 {
		maxIter = defaultMaxDistributeIterations
	}
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	return &Compiler{
		domains:     opts.Domains,
		fast:        opts.FastDistribute,
		maxIter:     maxIter,
		keepUnits:   opts.KeepUnitClauses,
		parallelism: parallelism,
		log:         log,
	}
}

// Normalize runs the staged pipeline short of clause extraction: the
// result is a conjunction of disjunctions of literals.
func (c *Compiler) Normalize(f logic.Formula) (logic.Formula, error) {
	f = RemoveImplications(f)
	f = NegationsIn(f)
	f = StandardizeVariables(f)
	f, err := RemoveExistentialQuantifiers(f, c.domains)
	if err != nil {
		return nil, err
	}
	f = RemoveUniversalQuantifiers(f)
	if c.fast {
		return FastDistribute(f, c.maxIter)
	}
	return Distribute(f, c.maxIter)
}

// ToCNF compiles one weighted formula to its set of weighted clauses.
func (c *Compiler) ToCNF(wf logic.WeightedFormula) ([]*logic.Clause, error) {
	normalized, err := c.Normalize(wf.Formula)
	if err != nil {
		return nil, err
	}
	return c.extractClauses(normalized, wf.Weight)
}

// DefiniteClauseToCNF compiles a definite clause as a hard implication.
func (c *Compiler) DefiniteClauseToCNF(dc *logic.DefiniteClause) ([]*logic.Clause, error) {
	return c.ToCNF(logic.WeightedFormula{Weight: math.Inf(1), Formula: dc.ToFormula()})
}

// WeightedDefiniteClauseToCNF compiles a weighted definite clause as an
// implication carrying the clause's own weight.
func (c *Compiler) WeightedDefiniteClauseToCNF(wdc logic.WeightedDefiniteClause) ([]*logic.Clause, error) {
	return c.ToCNF(wdc.ToWeightedFormula())
}

// CompileCNF compiles a batch of weighted formulas and unions their
// clause sets. Formulas are independent, so the batch is data-parallel;
// the union is deduplicated by clause identity.
func (c *Compiler) CompileCNF(ctx context.Context, formulas []logic.WeightedFormula) ([]*logic.Clause, error) {
	results := make([][]*logic.Clause, len(formulas))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallelism)
	for i, wf := range formulas {
		i, wf := i, wf
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			clauses, err := c.ToCNF(wf)
			if err != nil {
				return fmt.Errorf("compiling %s: %w", wf, err)
			}
			results[i] = clauses
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var out []*logic.Clause
	for _, clauses := range results {
		for _, clause := range clauses {
			key := clause.Key()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, clause)
		}
	}
	return out, nil
}

// extractClauses walks the final AND-of-ORs tree. Every OR chain becomes
// one clause; tautological chains are dropped with a warning. A hard
// weight propagates unchanged to every clause. A finite weight is divided
// evenly over the non-unit clauses, plus one share for the unit clauses
// taken together; multiple unit clauses merge into a single
// negated-disjunction clause with the negated share, preserving the
// formula's total weight mass.
func (c *Compiler) extractClauses(f logic.Formula, weight float64) ([]*logic.Clause, error) {
	var unitLiterals []logic.Literal
	var nonUnit [][]logic.Literal

	for _, conjunct := range flattenSpine(f, encAnd) {
		literals, tautology, err := orChainLiterals(conjunct)
		if err != nil {
			return nil, err
		}
		if tautology {
			c.log.Warn("dropping tautological clause",
				zap.String("clause", conjunct.String()))
			continue
		}
		if len(literals) == 1 {
			unitLiterals = append(unitLiterals, literals[0])
		} else {
			nonUnit = append(nonUnit, literals)
		}
	}

	if math.IsInf(weight, 1) {
		out := make([]*logic.Clause, 0, len(nonUnit)+len(unitLiterals))
		for _, literals := range nonUnit {
			out = append(out, logic.NewClause(weight, literals...))
		}
		for _, lit := range unitLiterals {
			out = append(out, logic.NewClause(weight, lit))
		}
		return out, nil
	}

	shares := len(nonUnit)
	if c.keepUnits {
		shares += len(unitLiterals)
	} else if len(unitLiterals) > 0 {
		shares++
	}
	if shares == 0 {
		return nil, nil
	}
	share := weight / float64(shares)

	out := make([]*logic.Clause, 0, shares)
	for _, literals := range nonUnit {
		out = append(out, logic.NewClause(share, literals...))
	}
	switch {
	case c.keepUnits || len(unitLiterals) == 1:
		for _, lit := range unitLiterals {
			out = append(out, logic.NewClause(share, lit))
		}
	case len(unitLiterals) > 1:
		negated := make([]logic.Literal, len(unitLiterals))
		for i, lit := range unitLiterals {
			negated[i] = lit.Negate()
		}
		out = append(out, logic.NewClause(-share, negated...))
	}
	return out, nil
}

// orChainLiterals flattens one OR chain into its literal set. The chain
// must consist of atoms and negated atoms only; anything else at this
// stage is an internal-invariant violation, not recoverable input.
func orChainLiterals(f logic.Formula) ([]logic.Literal, bool, error) {
	seen := make(map[string]logic.Literal)
	var out []logic.Literal
	tautology := false

	for _, operand := range flattenSpine(f, encOr) {
		var lit logic.Literal
		switch x := operand.(type) {
		case *logic.AtomicFormula:
			lit = logic.Pos(x)
		case *logic.Not:
			atom, ok := x.Arg.(*logic.AtomicFormula)
			if !ok {
				return nil, false, fmt.Errorf("%w: %s inside a clause", internalerr.ErrMalformedFormula, operand)
			}
			lit = logic.Neg(atom)
		default:
			return nil, false, fmt.Errorf("%w: %s inside a clause", internalerr.ErrMalformedFormula, operand)
		}

		atomText := lit.Sentence.String()
		if prev, ok := seen[atomText]; ok && prev.Positive != lit.Positive {
			tautology = true
		}
		seen[atomText] = lit
		out = append(out, lit)
	}
	return out, tautology, nil
}
