// Package sqlite persists the adaptive learning state (strategy performance,
// few-shot examples, tuned hybrid weights) in a local SQLite database so it
// survives restarts of the API process.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/whatsgood/brand-retrieval/internal/core/domain"
	"github.com/whatsgood/brand-retrieval/internal/core/ports"
)

type LearningStateRepository struct {
	db *sql.DB
}

var _ ports.LearningStateStore = (*LearningStateRepository)(nil)

// Open opens (or creates) the database at path and runs the schema migration.
// Use ":memory:" in tests.
func Open(path string) (*LearningStateRepository, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open %s: %w", path, err)
	}
	// Single connection: writers never contend and ":memory:" stays one database.
	db.SetMaxOpenConns(1)

	repo := &LearningStateRepository{db: db}
	if err := repo.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *LearningStateRepository) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS strategy_performance (
    strategy     TEXT    PRIMARY KEY,
    success_rate REAL    NOT NULL,
    uses         INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS examples (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    brand_description TEXT    NOT NULL,
    matched_content   TEXT    NOT NULL,
    embedding         TEXT    NOT NULL DEFAULT '[]',
    relevance_score   REAL    NOT NULL,
    created_at        INTEGER NOT NULL  -- unix nanoseconds
);
CREATE TABLE IF NOT EXISTS hybrid_weights (
    id             INTEGER PRIMARY KEY CHECK (id = 1),
    vector_weight  REAL NOT NULL,
    keyword_weight REAL NOT NULL
);
`
	if _, err := r.db.Exec(ddl); err != nil {
		return fmt.Errorf("sqlite migrate: %w", err)
	}
	return nil
}

// Load returns the stored snapshot, or nil when nothing has been saved yet.
func (r *LearningStateRepository) Load(ctx context.Context) (*domain.LearningSnapshot, error) {
	snap := domain.LearningSnapshot{
		Performance: []domain.StrategyPerformance{},
		Examples:    []domain.Example{},
	}
	found := false

	perfRows, err := r.db.QueryContext(ctx, `SELECT strategy, success_rate, uses FROM strategy_performance ORDER BY strategy`)
	if err != nil {
		return nil, fmt.Errorf("query strategy performance: %w", err)
	}
	for perfRows.Next() {
		var (
			perf domain.StrategyPerformance
			name string
		)
		if err := perfRows.Scan(&name, &perf.SuccessRate, &perf.Uses); err != nil {
			_ = perfRows.Close()
			return nil, fmt.Errorf("scan strategy performance: %w", err)
		}
		perf.Strategy = domain.StrategyName(name)
		snap.Performance = append(snap.Performance, perf)
		found = true
	}
	if err := perfRows.Err(); err != nil {
		_ = perfRows.Close()
		return nil, fmt.Errorf("iterate strategy performance: %w", err)
	}
	_ = perfRows.Close()

	exRows, err := r.db.QueryContext(ctx, `
SELECT brand_description, matched_content, embedding, relevance_score, created_at
FROM examples
ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query examples: %w", err)
	}
	for exRows.Next() {
		var (
			ex        domain.Example
			matched   string
			embedding string
			createdAt int64
		)
		if err := exRows.Scan(&ex.BrandDescription, &matched, &embedding, &ex.RelevanceScore, &createdAt); err != nil {
			_ = exRows.Close()
			return nil, fmt.Errorf("scan example: %w", err)
		}
		if err := json.Unmarshal([]byte(matched), &ex.MatchedContent); err != nil {
			_ = exRows.Close()
			return nil, fmt.Errorf("decode example content: %w", err)
		}
		if err := json.Unmarshal([]byte(embedding), &ex.Embedding); err != nil {
			_ = exRows.Close()
			return nil, fmt.Errorf("decode example embedding: %w", err)
		}
		ex.Timestamp = time.Unix(0, createdAt).UTC()
		snap.Examples = append(snap.Examples, ex)
		found = true
	}
	if err := exRows.Err(); err != nil {
		_ = exRows.Close()
		return nil, fmt.Errorf("iterate examples: %w", err)
	}
	_ = exRows.Close()

	err = r.db.QueryRowContext(ctx, `SELECT vector_weight, keyword_weight FROM hybrid_weights WHERE id = 1`).
		Scan(&snap.HybridWeights.Vector, &snap.HybridWeights.Keyword)
	switch {
	case err == nil:
		found = true
	case err == sql.ErrNoRows:
		snap.HybridWeights = domain.DefaultHybridWeights()
	default:
		return nil, fmt.Errorf("query hybrid weights: %w", err)
	}

	if !found {
		return nil, nil
	}
	return &snap, nil
}

// Save replaces the stored state with snapshot in one transaction.
func (r *LearningStateRepository) Save(ctx context.Context, snapshot domain.LearningSnapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, stmt := range []string{`DELETE FROM strategy_performance`, `DELETE FROM examples`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear learning state: %w", err)
		}
	}

	for _, perf := range snapshot.Performance {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO strategy_performance (strategy, success_rate, uses) VALUES (?, ?, ?)`,
			string(perf.Strategy), perf.SuccessRate, perf.Uses,
		); err != nil {
			return fmt.Errorf("insert strategy performance: %w", err)
		}
	}

	for _, ex := range snapshot.Examples {
		matched, err := json.Marshal(ex.MatchedContent)
		if err != nil {
			return fmt.Errorf("encode example content: %w", err)
		}
		embedding := ex.Embedding
		if embedding == nil {
			embedding = []float32{}
		}
		vec, err := json.Marshal(embedding)
		if err != nil {
			return fmt.Errorf("encode example embedding: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO examples (brand_description, matched_content, embedding, relevance_score, created_at)
VALUES (?, ?, ?, ?, ?)`,
			ex.BrandDescription, string(matched), string(vec), ex.RelevanceScore, ex.Timestamp.UnixNano(),
		); err != nil {
			return fmt.Errorf("insert example: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO hybrid_weights (id, vector_weight, keyword_weight) VALUES (1, ?, ?)
ON CONFLICT(id) DO UPDATE SET vector_weight = excluded.vector_weight, keyword_weight = excluded.keyword_weight`,
		snapshot.HybridWeights.Vector, snapshot.HybridWeights.Keyword,
	); err != nil {
		return fmt.Errorf("upsert hybrid weights: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save tx: %w", err)
	}
	return nil
}

func (r *LearningStateRepository) Close() error {
	return r.db.Close()
}
