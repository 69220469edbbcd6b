// Package mlnc compiles weighted first-order theories of Markov Logic
// Networks into weighted CNF clause sets for downstream grounding and
// inference.
package mlnc

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/cognicore/mlnc/pkg/mlnc/cnf"
	"github.com/cognicore/mlnc/pkg/mlnc/completion"
	"github.com/cognicore/mlnc/pkg/mlnc/internalerr"
	"github.com/cognicore/mlnc/pkg/mlnc/kb"
	"github.com/cognicore/mlnc/pkg/mlnc/logic"
	"github.com/cognicore/mlnc/pkg/mlnc/parser"
)

// Compiler is the knowledge-compilation facade: a schema, an optional
// evidence store, predicate completion and the CNF pipeline behind one
// entry point.
type Compiler struct {
	schema  *kb.Schema
	store   kb.Store
	mode    completion.Mode
	domains map[string][]string
	cnfOpts cnf.Options
	log     *zap.Logger
	entropy *ulid.MonotonicEntropy
}

// Options configures a Compiler.
type Options struct {
	// Schema declares predicates and functions. Nil starts empty;
	// declarations can arrive later through Apply.
	Schema *kb.Schema

	// Store receives evidence and constants. Optional; its per-domain
	// constants supplement Domains at compile time.
	Store kb.Store

	CompletionMode completion.Mode

	// Domains maps each domain name to its constant set, used for
	// existential grounding and decomposed completion.
	Domains map[string][]string

	FastDistribute          bool
	MaxDistributeIterations int
	KeepUnitClauses         bool

	// Parallelism bounds the batch compilation workers.
	Parallelism int

	// Logger receives diagnostics. Nil selects a no-op logger.
	Logger *zap.Logger
}

// New creates a Compiler with the given dependencies.
func New(opts Options) *Compiler {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	schema := opts.Schema
	if schema == nil {
		schema = kb.NewSchema()
	}
	domains := make(map[string][]string, len(opts.Domains))
	for domain, constants := range opts.Domains {
		domains[domain] = append([]string(nil), constants...)
	}
	return &Compiler{
		schema:  schema,
		store:   opts.Store,
		mode:    opts.CompletionMode,
		domains: domains,
		cnfOpts: cnf.Options{
			FastDistribute:          opts.FastDistribute,
			MaxDistributeIterations: opts.MaxDistributeIterations,
			KeepUnitClauses:         opts.KeepUnitClauses,
			Parallelism:             opts.Parallelism,
			Logger:                  log,
		},
		log:     log,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Close shuts down the evidence store, when one is attached.
func (c *Compiler) Close() error {
	if c.store == nil {
		return nil
	}
	return c.store.Close()
}

// Schema exposes the predicate and function declarations.
func (c *Compiler) Schema() *kb.Schema { return c.schema }

// Theory is the logical content of a compilation: its weighted formulas
// and its definite clauses, before completion.
type Theory struct {
	Formulas []logic.WeightedFormula
	Clauses  []logic.WeightedDefiniteClause
}

// Apply routes parsed expressions: declarations into the schema, evidence
// and function mappings into the store, formulas and definite clauses
// into the theory. Include paths are returned for the caller to resolve,
// since only the caller knows the file layout.
func (c *Compiler) Apply(ctx context.Context, theory *Theory, exprs []parser.Expression) ([]string, error) {
	var includes []string
	for _, expr := range exprs {
		switch x := expr.(type) {
		case parser.IncludeFile:
			includes = append(includes, x.Path)

		case parser.AtomicType:
			c.schema.DeclarePredicate(x.Symbol, x.ArgTypes...)

		case parser.FunctionType:
			c.schema.DeclareFunction(x.Symbol, x.ReturnType, x.ArgTypes...)

		case parser.WeightedFormulaExpr:
			theory.Formulas = append(theory.Formulas, x.WeightedFormula)

		case parser.WeightedDefiniteClauseExpr:
			theory.Clauses = append(theory.Clauses, x.WeightedClause)

		case parser.EvidenceAtomExpr:
			if err := c.storeEvidence(ctx, x.Atom); err != nil {
				return nil, err
			}

		case parser.FunctionMappingExpr:
			if c.store == nil {
				return nil, fmt.Errorf("%w: function mapping %s without a store", internalerr.ErrInvalidConfig, x.Mapping.Symbol)
			}
			if err := c.store.AddFunctionMapping(ctx, x.Mapping); err != nil {
				return nil, err
			}

		default:
			return nil, fmt.Errorf("%w: unsupported expression %T", internalerr.ErrInvalidInput, expr)
		}
	}
	return includes, nil
}

// storeEvidence asserts the atom and registers its constants under the
// domains the schema declares for the predicate.
func (c *Compiler) storeEvidence(ctx context.Context, ev *logic.EvidenceAtom) error {
	if c.store == nil {
		return fmt.Errorf("%w: evidence %s without a store", internalerr.ErrInvalidConfig, ev)
	}
	if err := c.store.AssertEvidence(ctx, ev); err != nil {
		return err
	}
	argTypes, ok := c.schema.PredicateArgTypes(ev.Signature())
	if !ok {
		return fmt.Errorf("%w: evidence %s", internalerr.ErrUnknownPredicate, ev)
	}
	for i, term := range ev.Terms {
		con, ok := term.(*logic.Constant)
		if !ok {
			return fmt.Errorf("%w: evidence %s holds a non-constant term", internalerr.ErrInvalidInput, ev)
		}
		if err := c.store.AddConstants(ctx, argTypes[i], con.Symbol); err != nil {
			return err
		}
	}
	return nil
}

// Result is the outcome of one compilation run.
type Result struct {
	// ID is the run's ULID.
	ID string

	// Clauses is the deduplicated weighted CNF clause set.
	Clauses []*logic.Clause

	// Formulas counts the completed formulas that were compiled.
	Formulas int

	// Elapsed is the wall-clock compilation time.
	Elapsed time.Duration
}

// Compile annotates the theory against the schema, runs predicate
// completion, and reduces the completed formula set to CNF clauses.
func (c *Compiler) Compile(ctx context.Context, theory Theory) (*Result, error) {
	started := time.Now()

	formulas := make([]logic.WeightedFormula, len(theory.Formulas))
	for i, wf := range theory.Formulas {
		annotated, err := c.schema.AnnotateWeighted(wf)
		if err != nil {
			return nil, err
		}
		formulas[i] = annotated
	}
	clauses := make([]logic.WeightedDefiniteClause, len(theory.Clauses))
	for i, wdc := range theory.Clauses {
		annotated, err := c.schema.AnnotateDefiniteClause(wdc)
		if err != nil {
			return nil, err
		}
		clauses[i] = annotated
	}

	domains, err := c.constantsPerDomain(ctx)
	if err != nil {
		return nil, err
	}

	completed, err := completion.New(completion.Options{
		Mode:    c.mode,
		Types:   c.schema,
		Domains: domains,
		Logger:  c.log,
	}).Complete(formulas, clauses)
	if err != nil {
		return nil, err
	}

	opts := c.cnfOpts
	opts.Domains = domains
	compiled, err := cnf.New(opts).CompileCNF(ctx, completed)
	if err != nil {
		return nil, err
	}

	result := &Result{
		ID:       ulid.MustNew(ulid.Now(), c.entropy).String(),
		Clauses:  compiled,
		Formulas: len(completed),
		Elapsed:  time.Since(started),
	}
	c.log.Info("compiled theory",
		zap.String("run", result.ID),
		zap.Int("formulas", result.Formulas),
		zap.Int("clauses", len(result.Clauses)),
		zap.Duration("elapsed", result.Elapsed))
	return result, nil
}

// constantsPerDomain merges the configured domains with the store's.
func (c *Compiler) constantsPerDomain(ctx context.Context) (map[string][]string, error) {
	merged := make(map[string][]string, len(c.domains))
	for domain, constants := range c.domains {
		merged[domain] = append([]string(nil), constants...)
	}
	if c.store == nil {
		return merged, nil
	}
	stored, err := c.store.ConstantsPerDomain(ctx)
	if err != nil {
		return nil, err
	}
	for domain, constants := range stored {
		seen := make(map[string]struct{}, len(merged[domain]))
		for _, con := range merged[domain] {
			seen[con] = struct{}{}
		}
		for _, con := range constants {
			if _, dup := seen[con]; !dup {
				merged[domain] = append(merged[domain], con)
			}
		}
	}
	return merged, nil
}
