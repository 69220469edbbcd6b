// Package sqlite provides a SQLite-backed implementation of kb.Store for
// evidence databases that outlive a single process.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"

	_ "modernc.org/sqlite"

	"github.com/cognicore/mlnc/pkg/mlnc/kb"
	"github.com/cognicore/mlnc/pkg/mlnc/logic"
)

// sqliteStore implements the kb.Store interface using SQLite.
type sqliteStore struct {
	db *sql.DB
}

// Open opens a SQLite evidence database with WAL mode enabled, creating
// the schema if it does not exist.
func Open(ctx context.Context, path string) (kb.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection.
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist.
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS constants (
	domain TEXT NOT NULL,
	symbol TEXT NOT NULL,
	UNIQUE(domain, symbol)
);

CREATE TABLE IF NOT EXISTS evidence (
	predicate TEXT NOT NULL,
	arity INTEGER NOT NULL,
	args TEXT NOT NULL,
	state INTEGER NOT NULL,
	probability REAL,
	UNIQUE(predicate, arity, args)
);

CREATE TABLE IF NOT EXISTS function_mappings (
	symbol TEXT NOT NULL,
	arity INTEGER NOT NULL,
	values_json TEXT NOT NULL,
	return_value TEXT NOT NULL,
	UNIQUE(symbol, arity, values_json)
);

CREATE INDEX IF NOT EXISTS idx_constants_domain ON constants(domain);
CREATE INDEX IF NOT EXISTS idx_evidence_sig ON evidence(predicate, arity);
CREATE INDEX IF NOT EXISTS idx_functions_sig ON function_mappings(symbol, arity);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// AddConstants adds symbols to a domain's constant set.
func (s *sqliteStore) AddConstants(ctx context.Context, domain string, symbols ...string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, sym := range symbols {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO constants(domain, symbol) VALUES(?, ?)", domain, sym); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Constants returns the sorted constant set of a domain.
func (s *sqliteStore) Constants(ctx context.Context, domain string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT symbol FROM constants WHERE domain = ? ORDER BY symbol", domain)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

// ConstantsPerDomain returns every domain's sorted constant set.
func (s *sqliteStore) ConstantsPerDomain(ctx context.Context) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT domain, symbol FROM constants ORDER BY domain, symbol")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var domain, sym string
		if err := rows.Scan(&domain, &sym); err != nil {
			return nil, err
		}
		out[domain] = append(out[domain], sym)
	}
	return out, rows.Err()
}

// AssertEvidence records an evidence atom, replacing any earlier
// assertion for the same ground atom.
func (s *sqliteStore) AssertEvidence(ctx context.Context, ev *logic.EvidenceAtom) error {
	args := make([]string, len(ev.Terms))
	for i, t := range ev.Terms {
		c, ok := t.(*logic.Constant)
		if !ok {
			return fmt.Errorf("evidence atom %s is not ground", ev)
		}
		args[i] = c.Symbol
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return err
	}

	var prob sql.NullFloat64
	if !math.IsNaN(ev.Probability) {
		prob = sql.NullFloat64{Float64: ev.Probability, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO evidence(predicate, arity, args, state, probability)
VALUES(?, ?, ?, ?, ?)
ON CONFLICT(predicate, arity, args) DO UPDATE SET state=excluded.state, probability=excluded.probability`,
		ev.Predicate, len(ev.Terms), string(encoded), int(ev.State), prob)
	return err
}

// Evidence returns the recorded evidence atoms of a signature.
func (s *sqliteStore) Evidence(ctx context.Context, sig logic.AtomSignature) ([]*logic.EvidenceAtom, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT args, state, probability FROM evidence WHERE predicate = ? AND arity = ? ORDER BY args",
		sig.Symbol, sig.Arity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*logic.EvidenceAtom
	for rows.Next() {
		var encoded string
		var state int
		var prob sql.NullFloat64
		if err := rows.Scan(&encoded, &state, &prob); err != nil {
			return nil, err
		}
		var args []string
		if err := json.Unmarshal([]byte(encoded), &args); err != nil {
			return nil, err
		}
		terms := make([]logic.Term, len(args))
		for i, a := range args {
			terms[i] = logic.NewConstant(a)
		}
		p := math.NaN()
		if prob.Valid {
			p = prob.Float64
		}
		ev, err := logic.NewProbabilisticEvidenceAtom(sig.Symbol, logic.TriState(state), p, terms...)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// AddFunctionMapping records an observed ground function value.
func (s *sqliteStore) AddFunctionMapping(ctx context.Context, m kb.FunctionMapping) error {
	encoded, err := json.Marshal(m.Values)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO function_mappings(symbol, arity, values_json, return_value)
VALUES(?, ?, ?, ?)
ON CONFLICT(symbol, arity, values_json) DO UPDATE SET return_value=excluded.return_value`,
		m.Symbol, len(m.Values), string(encoded), m.ReturnValue)
	return err
}

// FunctionMappings returns the recorded mappings of a function signature.
func (s *sqliteStore) FunctionMappings(ctx context.Context, sig logic.AtomSignature) ([]kb.FunctionMapping, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT values_json, return_value FROM function_mappings WHERE symbol = ? AND arity = ? ORDER BY values_json",
		sig.Symbol, sig.Arity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []kb.FunctionMapping
	for rows.Next() {
		var encoded, ret string
		if err := rows.Scan(&encoded, &ret); err != nil {
			return nil, err
		}
		var values []string
		if err := json.Unmarshal([]byte(encoded), &values); err != nil {
			return nil, err
		}
		out = append(out, kb.FunctionMapping{ReturnValue: ret, Symbol: sig.Symbol, Values: values})
	}
	return out, rows.Err()
}
