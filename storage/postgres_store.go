package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"catalog-importer/models"
	"catalog-importer/utils"
)

const pageColumns = `id, COALESCE(parent_id, 0), kind, path, title, slug, price,
	description, sku, live, created_at, updated_at`

// singletonIndex is matched against pq unique violations.
const singletonIndex = "ux_pages_singleton"

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore persists the page tree to PostgreSQL using a materialized
// path column for subtree lookups.
type PostgresStore struct {
	db     *sql.DB
	q      queryer
	tx     *sql.Tx
	depth  int
	logger *utils.Logger
}

// NewPostgresStore opens a connection to PostgreSQL, waits for it to accept
// pings, runs schema migrations and returns a ready-to-use store.
func NewPostgresStore(dsn string, retry *utils.RetryConfig, logger *utils.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	if err := retry.Do("postgres ping", db.Ping); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	ps := NewPostgresStoreFromDB(db, logger)
	if err := ps.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return ps, nil
}

// NewPostgresStoreFromDB wraps an already opened handle without migrating.
func NewPostgresStoreFromDB(db *sql.DB, logger *utils.Logger) *PostgresStore {
	return &PostgresStore{db: db, q: db, logger: logger}
}

// Migrate creates the pages table and its indexes if they do not exist.
func (ps *PostgresStore) Migrate(ctx context.Context) error {
	_, err := ps.q.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS pages (
			id          BIGSERIAL     PRIMARY KEY,
			parent_id   BIGINT        REFERENCES pages(id) ON DELETE CASCADE,
			kind        VARCHAR(32)   NOT NULL,
			path        TEXT          NOT NULL DEFAULT '',
			title       TEXT          NOT NULL,
			slug        TEXT          NOT NULL,
			price       NUMERIC(10,2),
			description TEXT          NOT NULL DEFAULT '',
			sku         VARCHAR(50)   NOT NULL DEFAULT '',
			live        BOOLEAN       NOT NULL DEFAULT TRUE,
			created_at  TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ   NOT NULL DEFAULT NOW()
		);

		CREATE UNIQUE INDEX IF NOT EXISTS ux_pages_singleton
			ON pages(kind) WHERE kind IN ('home', 'about', 'contact', 'listing_root');
		CREATE INDEX IF NOT EXISTS idx_pages_parent     ON pages(parent_id);
		CREATE INDEX IF NOT EXISTS idx_pages_path       ON pages(path text_pattern_ops);
		CREATE INDEX IF NOT EXISTS idx_pages_kind_title ON pages(kind, title);
	`)
	return err
}

func (ps *PostgresStore) FindSingleton(ctx context.Context, kind models.PageKind) (*models.Page, error) {
	row := ps.q.QueryRowContext(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE kind = $1 ORDER BY id LIMIT 1`, string(kind))
	p, err := scanPage(row)
	if err != nil {
		return nil, fmt.Errorf("postgres: find %s: %w", kind, err)
	}
	return p, nil
}

func (ps *PostgresStore) FindChildByTitle(ctx context.Context, parent *models.Page, kind models.PageKind, title string) (*models.Page, error) {
	if parent == nil {
		return nil, fmt.Errorf("postgres: find %s %q: nil parent", kind, title)
	}
	row := ps.q.QueryRowContext(ctx,
		`SELECT `+pageColumns+` FROM pages
		WHERE kind = $1 AND title = $2 AND path LIKE $3 AND id <> $4
		ORDER BY id LIMIT 1`,
		string(kind), title, parent.Path+"%", parent.ID)
	p, err := scanPage(row)
	if err != nil {
		return nil, fmt.Errorf("postgres: find %s %q: %w", kind, title, err)
	}
	return p, nil
}

func (ps *PostgresStore) ListLive(ctx context.Context, parent *models.Page, kind models.PageKind) ([]models.Page, error) {
	if parent == nil {
		return nil, fmt.Errorf("postgres: list %s: nil parent", kind)
	}
	rows, err := ps.q.QueryContext(ctx,
		`SELECT `+pageColumns+` FROM pages
		WHERE kind = $1 AND live AND path LIKE $2 AND id <> $3
		ORDER BY title, id`,
		string(kind), parent.Path+"%", parent.ID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list %s: %w", kind, err)
	}
	defer rows.Close()

	var pages []models.Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: list %s: %w", kind, err)
		}
		pages = append(pages, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list %s: %w", kind, err)
	}
	return pages, nil
}

func (ps *PostgresStore) CreateChild(ctx context.Context, parent *models.Page, page *models.Page) error {
	var existing *models.Page
	if page.Kind.IsSingleton() {
		var err error
		if existing, err = ps.FindSingleton(ctx, page.Kind); err != nil {
			return err
		}
	}
	if err := checkCreate(parent, page, existing); err != nil {
		return err
	}

	var parentID any
	parentPath := ""
	if parent != nil {
		parentID = parent.ID
		parentPath = parent.Path
	}

	var createdAt time.Time
	err := ps.q.QueryRowContext(ctx, `
		INSERT INTO pages (parent_id, kind, title, slug, price, description, sku, live)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`,
		parentID, string(page.Kind), page.Title, page.Slug, priceArg(page), page.Description, page.SKU, page.Live,
	).Scan(&page.ID, &createdAt)
	if err != nil {
		return translateInsertError(page, err)
	}

	page.Path = childPath(parentPath, page.ID)
	if _, err := ps.q.ExecContext(ctx,
		`UPDATE pages SET path = $1 WHERE id = $2`, page.Path, page.ID); err != nil {
		return fmt.Errorf("postgres: set path of %d: %w", page.ID, err)
	}

	if parent != nil {
		page.ParentID = parent.ID
	}
	page.CreatedAt = createdAt
	page.UpdatedAt = createdAt
	ps.logger.Debug("[postgres] Created %s %q (id=%d path=%s)", page.Kind, page.Title, page.ID, page.Path)
	return nil
}

func (ps *PostgresStore) UpdatePrice(ctx context.Context, page *models.Page, price decimal.Decimal) error {
	res, err := ps.q.ExecContext(ctx,
		`UPDATE pages SET price = $1, updated_at = NOW() WHERE id = $2 AND kind = $3`,
		price, page.ID, string(models.KindProduct))
	if err != nil {
		return fmt.Errorf("postgres: update price of %d: %w", page.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: update price of %d: %w", page.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("postgres: update price of %d: %w", page.ID, models.ErrPageNotFound)
	}
	page.Price = price
	return nil
}

// WithinTx begins a transaction on a plain store. On a store already bound to
// a transaction it wraps fn in a savepoint, so one failed statement does not
// abort the outer transaction.
func (ps *PostgresStore) WithinTx(ctx context.Context, fn func(tx CatalogStore) error) error {
	if ps.tx == nil {
		tx, err := ps.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("postgres: begin: %w", err)
		}
		child := &PostgresStore{db: ps.db, q: tx, tx: tx, depth: 1, logger: ps.logger}
		if err := fn(child); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				ps.logger.Error("[postgres] Rollback failed: %v", rbErr)
			}
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("postgres: commit: %w", err)
		}
		return nil
	}

	name := fmt.Sprintf("sp_%d", ps.depth)
	if _, err := ps.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("postgres: savepoint: %w", err)
	}
	child := &PostgresStore{db: ps.db, q: ps.tx, tx: ps.tx, depth: ps.depth + 1, logger: ps.logger}
	if err := fn(child); err != nil {
		if _, rbErr := ps.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return fmt.Errorf("postgres: rollback to savepoint: %v (after %w)", rbErr, err)
		}
		return err
	}
	if _, err := ps.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("postgres: release savepoint: %w", err)
	}
	return nil
}

// Close releases the connection pool. Transaction-bound views close nothing.
func (ps *PostgresStore) Close() error {
	if ps.tx != nil {
		return nil
	}
	return ps.db.Close()
}

func priceArg(page *models.Page) any {
	if page.Kind != models.KindProduct {
		return nil
	}
	return page.Price
}

func translateInsertError(page *models.Page, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == singletonIndex {
		return models.SingletonError(page.Kind)
	}
	return fmt.Errorf("postgres: insert %s %q: %w", page.Kind, page.Title, err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPage(row rowScanner) (*models.Page, error) {
	var (
		p     models.Page
		kind  string
		price decimal.NullDecimal
	)
	err := row.Scan(&p.ID, &p.ParentID, &kind, &p.Path, &p.Title, &p.Slug, &price,
		&p.Description, &p.SKU, &p.Live, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Kind = models.PageKind(kind)
	if price.Valid {
		p.Price = price.Decimal
	}
	return &p, nil
}
