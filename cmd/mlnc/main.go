package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/cognicore/mlnc/pkg/mlnc"
	"github.com/cognicore/mlnc/pkg/mlnc/config"
	"github.com/cognicore/mlnc/pkg/mlnc/kb"
	"github.com/cognicore/mlnc/pkg/mlnc/kb/memstore"
	"github.com/cognicore/mlnc/pkg/mlnc/kb/sqlite"
	"github.com/cognicore/mlnc/pkg/mlnc/parser"
)

func main() {
	var (
		configPath   = flag.String("config", "", "YAML configuration file (required)")
		theoryPath   = flag.String("theory", "", "Theory file (required)")
		evidencePath = flag.String("evidence", "", "Evidence file (optional)")
		verbose      = flag.Bool("v", false, "Log compilation progress")
	)
	flag.Parse()

	if *configPath == "" {
		log.Fatal("--config required")
	}
	if *theoryPath == "" {
		log.Fatal("--theory required")
	}

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	mode, err := cfg.CompletionMode()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}

	logger := zap.NewNop()
	if *verbose {
		logger, err = zap.NewProduction()
		if err != nil {
			log.Fatalf("init logger: %v", err)
		}
		defer logger.Sync()
	}

	compiler := mlnc.New(mlnc.Options{
		Store:                   store,
		CompletionMode:          mode,
		Domains:                 cfg.Domains,
		FastDistribute:          cfg.CNF.FastDistribute,
		MaxDistributeIterations: cfg.CNF.MaxDistributeIterations,
		KeepUnitClauses:         cfg.CNF.KeepUnitClauses,
		Parallelism:             cfg.Parallelism,
		Logger:                  logger,
	})
	defer compiler.Close()

	var theory mlnc.Theory
	if err := loadTheory(ctx, compiler, &theory, *theoryPath, nil); err != nil {
		log.Fatalf("load theory: %v", err)
	}

	if *evidencePath != "" {
		src, err := os.ReadFile(*evidencePath)
		if err != nil {
			log.Fatalf("load evidence: %v", err)
		}
		exprs, err := parser.ParseEvidence(string(src))
		if err != nil {
			log.Fatalf("parse evidence %s: %v", *evidencePath, err)
		}
		if _, err := compiler.Apply(ctx, &theory, exprs); err != nil {
			log.Fatalf("apply evidence: %v", err)
		}
	}

	result, err := compiler.Compile(ctx, theory)
	if err != nil {
		log.Fatalf("compile: %v", err)
	}

	for _, clause := range result.Clauses {
		fmt.Println(clause)
	}
}

// loadTheory parses a theory file and applies it, following include
// directives relative to the including file. The seen set breaks
// include cycles.
func loadTheory(ctx context.Context, compiler *mlnc.Compiler, theory *mlnc.Theory, path string, seen map[string]bool) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if seen == nil {
		seen = make(map[string]bool)
	}
	if seen[abs] {
		return nil
	}
	seen[abs] = true

	src, err := os.ReadFile(abs)
	if err != nil {
		return err
	}
	exprs, err := parser.ParseTheory(string(src))
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	includes, err := compiler.Apply(ctx, theory, exprs)
	if err != nil {
		return err
	}
	for _, include := range includes {
		if !filepath.IsAbs(include) {
			include = filepath.Join(filepath.Dir(abs), include)
		}
		if err := loadTheory(ctx, compiler, theory, include, seen); err != nil {
			return err
		}
	}
	return nil
}

// openStore selects the evidence store backend. An empty backend means
// evidence is kept in memory for the run.
func openStore(ctx context.Context, cfg config.StoreConfig) (kb.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return memstore.New(), nil
	case "sqlite":
		return sqlite.Open(ctx, cfg.Path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
