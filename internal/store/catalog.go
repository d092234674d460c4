package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	fuseerrors "github.com/searchworks/partfuse/internal/errors"
	"github.com/searchworks/partfuse/internal/search"
)

// SQLiteCatalog serves product payloads for result enrichment from the
// snapshot's catalog database.
type SQLiteCatalog struct {
	db *sql.DB
}

var _ search.Catalog = (*SQLiteCatalog)(nil)

// catalogError tags a failure with the catalog error code.
func catalogError(message string, cause error) *fuseerrors.FuseError {
	return fuseerrors.New(fuseerrors.ErrCodeCatalogUnavailable, message, cause)
}

// OpenCatalog opens (or creates) the catalog database at path.
// The same connection also carries the telemetry tables.
func OpenCatalog(path string) (*SQLiteCatalog, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, catalogError("failed to open catalog database", err)
	}

	if err := initCatalogSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteCatalog{db: db}, nil
}

// NewSQLiteCatalog wraps an existing database connection.
func NewSQLiteCatalog(db *sql.DB) (*SQLiteCatalog, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if err := initCatalogSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteCatalog{db: db}, nil
}

// initCatalogSchema creates the products table if it doesn't exist.
func initCatalogSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		part_number TEXT NOT NULL,
		mfr_part_number TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		brand TEXT NOT NULL DEFAULT '',
		price REAL NOT NULL DEFAULT 0,
		image_url TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_products_part_number ON products(part_number);
	`

	if _, err := db.Exec(schema); err != nil {
		return catalogError("failed to create catalog schema", err)
	}
	return nil
}

// Products looks up payloads by document ID. IDs missing from the catalog
// are absent from the returned map, not an error.
func (c *SQLiteCatalog) Products(ctx context.Context, ids []string) (map[string]search.Product, error) {
	result := make(map[string]search.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	query := fmt.Sprintf(`
		SELECT id, part_number, mfr_part_number, description, brand, price, image_url
		FROM products WHERE id IN (%s)`, placeholders)

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, catalogError("failed to query products", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id string
		var p search.Product
		if err := rows.Scan(&id, &p.PartNumber, &p.MfrPartNumber, &p.Description, &p.Brand, &p.Price, &p.ImageURL); err != nil {
			return nil, catalogError("failed to scan product row", err)
		}
		result[id] = p
	}
	if err := rows.Err(); err != nil {
		return nil, catalogError("failed to read product rows", err)
	}

	return result, nil
}

// Upsert inserts or replaces products, keyed by document ID.
func (c *SQLiteCatalog) Upsert(ctx context.Context, docs []ProductDoc) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return catalogError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO products (id, part_number, mfr_part_number, description, brand, price, image_url)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			part_number = excluded.part_number,
			mfr_part_number = excluded.mfr_part_number,
			description = excluded.description,
			brand = excluded.brand,
			price = excluded.price,
			image_url = excluded.image_url`)
	if err != nil {
		return catalogError("failed to prepare upsert", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, doc := range docs {
		p := doc.Product
		if _, err := stmt.ExecContext(ctx, doc.ID, p.PartNumber, p.MfrPartNumber, p.Description, p.Brand, p.Price, p.ImageURL); err != nil {
			return catalogError(fmt.Sprintf("failed to upsert product %s", doc.ID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return catalogError("failed to commit upsert", err)
	}
	return nil
}

// Delete removes products by document ID.
func (c *SQLiteCatalog) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := fmt.Sprintf("DELETE FROM products WHERE id IN (%s)", placeholders)
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return catalogError("failed to delete products", err)
	}
	return nil
}

// Count returns the number of catalog entries.
func (c *SQLiteCatalog) Count(ctx context.Context) (int, error) {
	var count int
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&count); err != nil {
		return 0, catalogError("failed to count products", err)
	}
	return count, nil
}

// DB exposes the underlying connection so the telemetry store can share it.
func (c *SQLiteCatalog) DB() *sql.DB {
	return c.db
}

// Close closes the database connection.
func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}
