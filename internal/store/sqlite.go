package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/mitsuke/internal/models"
)

// openMetadataDB opens or creates the SQLite metadata database at dbPath
// and initializes the schema. Parent directories are created if they do
// not exist.
func openMetadataDB(dbPath string) (*sql.DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS catalog_items (
		row_id INTEGER PRIMARY KEY,
		external_id TEXT NOT NULL,
		title TEXT NOT NULL,
		brand TEXT,
		price TEXT,
		color TEXT,
		article_type TEXT,
		gender TEXT,
		snippet TEXT,
		image_path TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_catalog_external_id ON catalog_items(external_id);
	CREATE INDEX IF NOT EXISTS idx_catalog_article_type ON catalog_items(article_type);
	`
	_, err := db.Exec(schema)
	return err
}

// writeItems replaces the full metadata table with items, in one
// transaction so a failed persist never leaves a partial table.
func writeItems(ctx context.Context, db *sql.DB, items []*models.CatalogItem) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM catalog_items"); err != nil {
		return fmt.Errorf("clear metadata table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO catalog_items (row_id, external_id, title, brand, price, color, article_type, gender, snippet, image_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		_, err := stmt.ExecContext(ctx, item.RowID, item.ExternalID, item.Title, item.Brand,
			item.Price, item.Color, item.ArticleType, item.Gender, item.Snippet, item.ImagePath)
		if err != nil {
			return fmt.Errorf("insert row %d: %w", item.RowID, err)
		}
	}

	return tx.Commit()
}

// readItems loads the full metadata table ordered by row.
func readItems(ctx context.Context, db *sql.DB) ([]*models.CatalogItem, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT row_id, external_id, title, brand, price, color, article_type, gender, snippet, image_path
		FROM catalog_items ORDER BY row_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query metadata table: %w", err)
	}
	defer rows.Close()

	var items []*models.CatalogItem
	for rows.Next() {
		var item models.CatalogItem
		err := rows.Scan(&item.RowID, &item.ExternalID, &item.Title, &item.Brand,
			&item.Price, &item.Color, &item.ArticleType, &item.Gender, &item.Snippet, &item.ImagePath)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}
