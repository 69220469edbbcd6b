// Package completion implements predicate completion: it eliminates the
// definite clauses of a theory, replacing them with formulas that capture
// circumscription semantics. The head of every definite clause holds if
// and only if one of its defining bodies holds.
package completion

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/cognicore/mlnc/pkg/mlnc/internalerr"
	"github.com/cognicore/mlnc/pkg/mlnc/logic"
)

// Mode selects how completion formulas are emitted.
type Mode int

const (
	// ModeStandard emits one hard equivalence per completed head.
	ModeStandard Mode = iota

	// ModeDecomposed keeps the original implications, adds the reverse
	// implication per head, and closes off uncovered ground head
	// instances with hard negated unit formulas.
	ModeDecomposed

	// ModeSimplification substitutes each completed head's combined
	// body into the background theory instead of emitting equivalences.
	ModeSimplification
)

func (m Mode) String() string {
	switch m {
	case ModeStandard:
		return "standard"
	case ModeDecomposed:
		return "decomposed"
	case ModeSimplification:
		return "simplification"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode resolves a mode name as it appears in configuration files.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "standard", "":
		return ModeStandard, nil
	case "decomposed":
		return ModeDecomposed, nil
	case "simplification":
		return ModeSimplification, nil
	default:
		return 0, fmt.Errorf("%w: completion mode %q", internalerr.ErrInvalidConfig, s)
	}
}

// Options configures a Completer.
type Options struct {
	Mode Mode

	// Types resolves declared argument domains, used when merging heads
	// that differ by constants.
	Types logic.Typer

	// Domains supplies the constant set of each domain; only the
	// decomposed mode needs it, for complementary ground instances.
	Domains map[string][]string

	// Logger receives diagnostics. Nil selects a no-op logger.
	Logger *zap.Logger
}

// Completer runs predicate completion over a theory.
type Completer struct {
	mode    Mode
	types   logic.Typer
	domains map[string][]string
	log     *zap.Logger
}

// New creates a Completer with the given options.
func New(opts Options) *Completer {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Completer{
		mode:    opts.Mode,
		types:   opts.Types,
		domains: opts.Domains,
		log:     log,
	}
}

// bucket holds one generalized head and the bodies collected under it,
// already adapted to the head's variable names.
type bucket struct {
	head   *logic.AtomicFormula
	bodies []logic.Formula
}

// group is the per-signature worklist entry.
type group struct {
	signature logic.AtomSignature
	buckets   []*bucket

	// heads records every original clause head, used by the decomposed
	// mode to find uncovered ground instances.
	heads []*logic.AtomicFormula

	// lossy is set when merging ever produced a head strictly more
	// general than one of the originals. The decomposed mode cannot
	// reconstruct the original clause boundaries in that case.
	lossy bool
}

// Complete eliminates the definite clauses and returns the resulting
// theory: the background formulas plus (or rewritten by) the completion
// formulas, depending on the mode.
func (c *Completer) Complete(background []logic.WeightedFormula, clauses []logic.WeightedDefiniteClause) ([]logic.WeightedFormula, error) {
	groups, order, err := c.collect(clauses)
	if err != nil {
		return nil, err
	}

	switch c.mode {
	case ModeStandard:
		out := append([]logic.WeightedFormula(nil), background...)
		for _, sig := range order {
			for _, b := range groups[sig].buckets {
				out = append(out, hard(logic.NewEquivalence(b.head, combinedBody(b))))
			}
		}
		return out, nil

	case ModeDecomposed:
		for _, sig := range order {
			if groups[sig].lossy {
				return nil, fmt.Errorf("%w: heads of %s/%d required lossy merging, use the standard or simplification mode",
					internalerr.ErrCannotDecompose, sig.Symbol, sig.Arity)
			}
		}
		out := append([]logic.WeightedFormula(nil), background...)
		for _, wdc := range clauses {
			out = append(out, logic.WeightedFormula{
				Weight:  wdc.Weight,
				Formula: wdc.Clause.ToFormula(),
			})
		}
		for _, sig := range order {
			g := groups[sig]
			for _, b := range g.buckets {
				out = append(out, hard(logic.NewImplies(b.head, combinedBody(b))))
			}
			complementary, err := c.complementary(g)
			if err != nil {
				return nil, err
			}
			out = append(out, complementary...)
		}
		return out, nil

	case ModeSimplification:
		out := append([]logic.WeightedFormula(nil), background...)
		for _, sig := range order {
			for _, b := range groups[sig].buckets {
				body := combinedBody(b)
				replaced := false
				for i, wf := range out {
					rewritten, hit := replaceHead(wf.Formula, b.head, body)
					if hit {
						out[i] = logic.WeightedFormula{Weight: wf.Weight, Formula: rewritten}
						replaced = true
					}
				}
				if !replaced {
					c.log.Debug("completed head not referenced by any background formula",
						zap.String("head", b.head.String()))
				}
			}
		}
		return out, nil

	default:
		return nil, fmt.Errorf("%w: completion mode %d", internalerr.ErrInvalidConfig, int(c.mode))
	}
}

// collect groups the clauses by head signature and merges heads within a
// signature, returning the groups and a deterministic signature order.
func (c *Completer) collect(clauses []logic.WeightedDefiniteClause) (map[logic.AtomSignature]*group, []logic.AtomSignature, error) {
	groups := make(map[logic.AtomSignature]*group)
	var order []logic.AtomSignature

	for _, wdc := range clauses {
		head := wdc.Clause.Head
		sig := head.Signature()
		g, ok := groups[sig]
		if !ok {
			g = &group{signature: sig}
			groups[sig] = g
			order = append(order, sig)
		}
		g.heads = append(g.heads, head)
		if err := c.merge(g, head, wdc.Clause.Body); err != nil {
			return nil, nil, err
		}
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].Symbol != order[j].Symbol {
			return order[i].Symbol < order[j].Symbol
		}
		return order[i].Arity < order[j].Arity
	})
	return groups, order, nil
}

// merge folds one (head, body) pair into the group. An identical head
// shares its bucket directly; a differing head is generalized against the
// first bucket it can merge with, rewriting the stored bodies and the
// incoming body to the generalized head's terms.
func (c *Completer) merge(g *group, head *logic.AtomicFormula, body logic.Formula) error {
	for _, b := range g.buckets {
		if b.head.Equal(head) {
			b.bodies = append(b.bodies, body)
			return nil
		}
	}
	for _, b := range g.buckets {
		gen, ok := logic.Generalize(b.head, head, c.types)
		if !ok {
			continue
		}
		thetaStored, ok := logic.UnifyAtoms(gen, b.head)
		if !ok {
			return fmt.Errorf("%w: generalized head %s does not cover %s",
				internalerr.ErrHeadsMismatch, gen, b.head)
		}
		thetaNew, ok := logic.UnifyAtoms(gen, head)
		if !ok {
			return fmt.Errorf("%w: generalized head %s does not cover %s",
				internalerr.ErrHeadsMismatch, gen, head)
		}
		if !gen.Similar(b.head) || !gen.Similar(head) {
			g.lossy = true
		}

		for i, stored := range b.bodies {
			b.bodies[i] = adaptBody(stored, thetaStored)
		}
		b.head = gen
		b.bodies = append(b.bodies, adaptBody(body, thetaNew))
		return nil
	}
	if len(g.buckets) > 0 {
		// Same signature but no bucket accepts the head. Well-typed
		// input cannot reach this.
		return fmt.Errorf("%w: head %s under signature %s/%d",
			internalerr.ErrHeadsMismatch, head, g.signature.Symbol, g.signature.Arity)
	}
	g.buckets = append(g.buckets, &bucket{head: head, bodies: []logic.Formula{body}})
	return nil
}

// adaptBody rewrites a clause body to the variable names of a generalized
// head. The unifier maps the generalized head's variables to the original
// head's terms: a variable target becomes a rename of the body, any other
// target becomes an equality constraint conjoined to the body.
func adaptBody(body logic.Formula, theta *logic.Theta) logic.Formula {
	renames := logic.NewTheta()
	var equalities []logic.Formula
	theta.Each(func(from, to logic.Term) bool {
		if v, ok := to.(*logic.Variable); ok {
			renames.Bind(v, from)
			return true
		}
		equalities = append(equalities, logic.NewAtom("equals", from, to))
		return true
	})

	out := body
	if !renames.IsEmpty() {
		out = logic.Substitute(renames, out)
	}
	for _, eq := range equalities {
		out = logic.NewAnd(out, eq)
	}
	return out
}

// combinedBody disjoins a bucket's bodies and existentially quantifies
// every body variable that does not appear in the head.
func combinedBody(b *bucket) logic.Formula {
	var body logic.Formula
	for _, part := range b.bodies {
		if body == nil {
			body = part
		} else {
			body = logic.NewOr(body, part)
		}
	}

	inHead := make(map[string]struct{})
	for _, v := range logic.Variables(b.head) {
		inHead[variableIdent(v)] = struct{}{}
	}
	free := logic.Variables(body)
	for i := len(free) - 1; i >= 0; i-- {
		v := free[i]
		if _, ok := inHead[variableIdent(v)]; ok {
			continue
		}
		body = logic.NewExists(v, body)
	}
	return body
}

func variableIdent(v *logic.Variable) string {
	return fmt.Sprintf("%s/%s#%d", v.Symbol, v.Domain, v.Index)
}

// complementary produces one hard negated unit formula for every ground
// head instance built from the cartesian product of the per-position
// constant complements. A position where any stored head carries a
// non-constant term covers its whole domain, so its complement is empty
// and no formulas are emitted for the group.
func (c *Completer) complementary(g *group) ([]logic.WeightedFormula, error) {
	if g.signature.Arity == 0 {
		return nil, nil
	}
	if c.types == nil {
		return nil, fmt.Errorf("%w: decomposed completion needs a predicate schema", internalerr.ErrInvalidConfig)
	}
	argTypes, ok := c.types.PredicateArgTypes(g.signature)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%d", internalerr.ErrUnknownPredicate, g.signature.Symbol, g.signature.Arity)
	}

	complements := make([][]string, g.signature.Arity)
	for pos := 0; pos < g.signature.Arity; pos++ {
		covered := make(map[string]struct{})
		coversAll := false
		for _, head := range g.heads {
			if con, ok := head.Terms[pos].(*logic.Constant); ok {
				covered[con.Symbol] = struct{}{}
			} else {
				coversAll = true
				break
			}
		}
		if coversAll {
			return nil, nil
		}
		domain := c.domains[argTypes[pos]]
		if len(domain) == 0 {
			return nil, fmt.Errorf("%w: no constants for domain %q of %s/%d argument %d",
				internalerr.ErrUnknownDomain, argTypes[pos], g.signature.Symbol, g.signature.Arity, pos)
		}
		for _, con := range domain {
			if _, ok := covered[con]; !ok {
				complements[pos] = append(complements[pos], con)
			}
		}
		if len(complements[pos]) == 0 {
			return nil, nil
		}
	}

	var out []logic.WeightedFormula
	selection := make([]int, len(complements))
	for {
		terms := make([]logic.Term, len(complements))
		for pos, pick := range selection {
			terms[pos] = logic.NewConstant(complements[pos][pick])
		}
		out = append(out, hard(logic.NewNot(logic.NewAtom(g.signature.Symbol, terms...))))

		carry := len(selection) - 1
		for carry >= 0 {
			selection[carry]++
			if selection[carry] < len(complements[carry]) {
				break
			}
			selection[carry] = 0
			carry--
		}
		if carry < 0 {
			return out, nil
		}
	}
}

// replaceHead substitutes the combined body for every atom of the head's
// signature that the head unifies with, instantiated by the unifier. The
// rewrite is a single pass: atoms introduced by the replacement body are
// not themselves revisited.
func replaceHead(f logic.Formula, head *logic.AtomicFormula, body logic.Formula) (logic.Formula, bool) {
	switch x := f.(type) {
	case *logic.AtomicFormula:
		if x.Signature() != head.Signature() {
			return f, false
		}
		theta, ok := logic.UnifyAtoms(head, x)
		if !ok {
			return f, false
		}
		return logic.Substitute(theta, body), true
	case *logic.EvidenceAtom:
		return f, false
	case *logic.Not:
		arg, hit := replaceHead(x.Arg, head, body)
		if !hit {
			return f, false
		}
		return logic.NewNot(arg), true
	case *logic.And:
		left, hitL := replaceHead(x.Left, head, body)
		right, hitR := replaceHead(x.Right, head, body)
		if !hitL && !hitR {
			return f, false
		}
		return logic.NewAnd(left, right), true
	case *logic.Or:
		left, hitL := replaceHead(x.Left, head, body)
		right, hitR := replaceHead(x.Right, head, body)
		if !hitL && !hitR {
			return f, false
		}
		return logic.NewOr(left, right), true
	case *logic.Implies:
		left, hitL := replaceHead(x.Left, head, body)
		right, hitR := replaceHead(x.Right, head, body)
		if !hitL && !hitR {
			return f, false
		}
		return logic.NewImplies(left, right), true
	case *logic.Equivalence:
		left, hitL := replaceHead(x.Left, head, body)
		right, hitR := replaceHead(x.Right, head, body)
		if !hitL && !hitR {
			return f, false
		}
		return logic.NewEquivalence(left, right), true
	case *logic.UniversalQuantifier:
		inner, hit := replaceHead(x.Body, head, body)
		if !hit {
			return f, false
		}
		return logic.NewForall(x.V, inner), true
	case *logic.ExistentialQuantifier:
		inner, hit := replaceHead(x.Body, head, body)
		if !hit {
			return f, false
		}
		return logic.NewExists(x.V, inner), true
	default:
		return f, false
	}
}

func hard(f logic.Formula) logic.WeightedFormula {
	return logic.WeightedFormula{Weight: math.Inf(1), Formula: f}
}
