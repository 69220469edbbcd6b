// Package memstore provides an in-memory implementation of kb.Store,
// used by tests and by small theories that do not need persistence.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/cognicore/mlnc/pkg/mlnc/kb"
	"github.com/cognicore/mlnc/pkg/mlnc/logic"
)

// Store is an in-memory implementation of kb.Store.
type Store struct {
	mu        sync.RWMutex
	constants map[string]map[string]struct{}
	evidence  map[logic.AtomSignature][]*logic.EvidenceAtom
	functions map[logic.AtomSignature][]kb.FunctionMapping
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		constants: make(map[string]map[string]struct{}),
		evidence:  make(map[logic.AtomSignature][]*logic.EvidenceAtom),
		functions: make(map[logic.AtomSignature][]kb.FunctionMapping),
	}
}

// Close implements kb.Store.
func (s *Store) Close() error { return nil }

// AddConstants adds symbols to a domain's constant set.
func (s *Store) AddConstants(ctx context.Context, domain string, symbols ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.constants[domain]
	if !ok {
		set = make(map[string]struct{})
		s.constants[domain] = set
	}
	for _, sym := range symbols {
		set[sym] = struct{}{}
	}
	return nil
}

// Constants returns the sorted constant set of a domain.
func (s *Store) Constants(ctx context.Context, domain string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedSymbols(s.constants[domain]), nil
}

// ConstantsPerDomain returns every domain's sorted constant set.
func (s *Store) ConstantsPerDomain(ctx context.Context) (map[string][]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]string, len(s.constants))
	for domain, set := range s.constants {
		out[domain] = sortedSymbols(set)
	}
	return out, nil
}

// AssertEvidence records an evidence atom. A later assertion for the same
// ground atom replaces the earlier one.
func (s *Store) AssertEvidence(ctx context.Context, ev *logic.EvidenceAtom) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sig := ev.Signature()
	list := s.evidence[sig]
	for i, existing := range list {
		if existing.AtomicFormula.Equal(&ev.AtomicFormula) {
			list[i] = ev
			return nil
		}
	}
	s.evidence[sig] = append(list, ev)
	return nil
}

// Evidence returns the recorded evidence atoms of a signature.
func (s *Store) Evidence(ctx context.Context, sig logic.AtomSignature) ([]*logic.EvidenceAtom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*logic.EvidenceAtom, len(s.evidence[sig]))
	copy(out, s.evidence[sig])
	return out, nil
}

// AddFunctionMapping records an observed ground function value.
func (s *Store) AddFunctionMapping(ctx context.Context, m kb.FunctionMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.functions[m.Signature()] = append(s.functions[m.Signature()], m)
	return nil
}

// FunctionMappings returns the recorded mappings of a function signature.
func (s *Store) FunctionMappings(ctx context.Context, sig logic.AtomSignature) ([]kb.FunctionMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]kb.FunctionMapping, len(s.functions[sig]))
	copy(out, s.functions[sig])
	return out, nil
}

func sortedSymbols(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for sym := range set {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
