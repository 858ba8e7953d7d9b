package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/whatsgood/brand-retrieval/internal/core/domain"
	"github.com/whatsgood/brand-retrieval/internal/core/ports"
)

const articleColumns = `article_id, title, summary, category, source, url, published_at, created_at`

type ArticleRepository struct {
	db *sql.DB
}

var _ ports.ArticleStore = (*ArticleRepository)(nil)

func NewArticleRepository(db *sql.DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *ArticleRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101601)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS articles (
	article_id TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	summary TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT 'unknown',
	source TEXT NOT NULL DEFAULT '',
	url TEXT NOT NULL DEFAULT '',
	published_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_articles_category ON articles(category);
CREATE INDEX IF NOT EXISTS idx_articles_created_at ON articles(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Upsert inserts an article or replaces the stored fields of an existing one.
func (r *ArticleRepository) Upsert(ctx context.Context, article domain.Article) error {
	if strings.TrimSpace(article.ArticleID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "upsert article", fmt.Errorf("article_id is required"))
	}
	if article.Category == "" {
		article.Category = domain.CategoryUnknown
	}
	if article.CreatedAt.IsZero() {
		article.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO articles (`+articleColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (article_id) DO UPDATE SET
	title = EXCLUDED.title,
	summary = EXCLUDED.summary,
	category = EXCLUDED.category,
	source = EXCLUDED.source,
	url = EXCLUDED.url,
	published_at = EXCLUDED.published_at
`,
		article.ArticleID, article.Title, article.Summary, article.Category,
		article.Source, article.URL, article.PublishedAt, article.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert article: %w", err)
	}
	return nil
}

func (r *ArticleRepository) GetByID(ctx context.Context, articleID string) (*domain.Article, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+articleColumns+`
FROM articles
WHERE article_id = $1
`, articleID)

	article, err := scanArticle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrArticleNotFound, "get article", fmt.Errorf("article %s", articleID))
		}
		return nil, fmt.Errorf("scan article: %w", err)
	}
	return article, nil
}

// FetchByIDs returns the stored articles among articleIDs. Unknown IDs are
// absent from the result; order follows the database.
func (r *ArticleRepository) FetchByIDs(ctx context.Context, articleIDs []string) ([]domain.Article, error) {
	if len(articleIDs) == 0 {
		return []domain.Article{}, nil
	}
	placeholders := make([]string, len(articleIDs))
	args := make([]any, len(articleIDs))
	for i, id := range articleIDs {
		placeholders[i] = "$" + strconv.Itoa(i+1)
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+articleColumns+`
FROM articles
WHERE article_id IN (`+strings.Join(placeholders, ",")+`)
`, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles by id: %w", err)
	}
	return collectArticles(rows)
}

func (r *ArticleRepository) ListArticles(ctx context.Context, limit, offset int) ([]domain.Article, error) {
	if limit <= 0 {
		return []domain.Article{}, nil
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+articleColumns+`
FROM articles
ORDER BY created_at ASC, article_id ASC
LIMIT $1 OFFSET $2
`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	return collectArticles(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*domain.Article, error) {
	var (
		article     domain.Article
		publishedAt sql.NullTime
	)
	if err := row.Scan(
		&article.ArticleID, &article.Title, &article.Summary, &article.Category,
		&article.Source, &article.URL, &publishedAt, &article.CreatedAt,
	); err != nil {
		return nil, err
	}
	if publishedAt.Valid {
		t := publishedAt.Time
		article.PublishedAt = &t
	}
	return &article, nil
}

func collectArticles(rows *sql.Rows) ([]domain.Article, error) {
	defer rows.Close()
	out := make([]domain.Article, 0)
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		out = append(out, *article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return out, nil
}
