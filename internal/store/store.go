// Package store provides the product store: a flat vector index over
// catalog image embeddings paired with a row-aligned metadata table.
// The pair persists as two artifacts, the binary index file and a SQLite
// database, and restore refuses to load them unless they agree.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/mitsuke/internal/models"
	"github.com/hyperjump/mitsuke/internal/vector"
)

var (
	// ErrNotLoaded is returned by read operations before a successful
	// Build or Restore.
	ErrNotLoaded = errors.New("product store not loaded")
	// ErrRowOutOfRange is returned by Metadata for rows outside the table.
	ErrRowOutOfRange = errors.New("metadata row out of range")
	// ErrEmptyBuild is returned when a build produces no usable items.
	ErrEmptyBuild = errors.New("no catalog items could be embedded")
)

// ImageEmbedder produces one embedding per catalog image.
type ImageEmbedder interface {
	EmbedImage(ctx context.Context, path string) ([]float32, error)
}

// ProductStore pairs the vector index with its metadata table. Rows are
// the join key: hit row N resolves to metadata row N. The two structures
// change only together, under one write lock.
type ProductStore struct {
	indexPath string
	dbPath    string

	index  *vector.FlatIndex
	items  []*models.CatalogItem
	loaded bool
	mu     sync.RWMutex

	logger *zap.Logger
}

// Option configures a ProductStore.
type Option func(*ProductStore)

// WithLogger sets the logger used for build and restore progress.
func WithLogger(logger *zap.Logger) Option {
	return func(s *ProductStore) { s.logger = logger }
}

// NewProductStore creates an unloaded store persisting at the given
// artifact paths.
func NewProductStore(indexPath, dbPath string, dimensions int, opts ...Option) (*ProductStore, error) {
	idx, err := vector.NewFlatIndex(dimensions)
	if err != nil {
		return nil, err
	}
	s := &ProductStore{
		indexPath: indexPath,
		dbPath:    dbPath,
		index:     idx,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Build embeds every catalog item image and fills the index and metadata
// table in lockstep. Items whose image is missing or fails to embed are
// skipped; row IDs are reassigned to the surviving items in order. The
// previous contents are replaced only on success.
func (s *ProductStore) Build(ctx context.Context, items []*models.CatalogItem, embedder ImageEmbedder) error {
	idx, err := vector.NewFlatIndex(s.index.Dimensions())
	if err != nil {
		return err
	}
	kept := make([]*models.CatalogItem, 0, len(items))
	skipped := 0

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := os.Stat(item.ImagePath); err != nil {
			skipped++
			continue
		}
		emb, err := embedder.EmbedImage(ctx, item.ImagePath)
		if err != nil {
			s.logger.Warn("failed to embed catalog image",
				zap.String("external_id", item.ExternalID),
				zap.Error(err))
			skipped++
			continue
		}
		row, err := idx.Add(emb)
		if err != nil {
			return fmt.Errorf("index item %s: %w", item.ExternalID, err)
		}
		cp := item.Clone()
		cp.RowID = row
		kept = append(kept, cp)
	}

	if len(kept) == 0 {
		return ErrEmptyBuild
	}

	s.mu.Lock()
	s.index = idx
	s.items = kept
	s.loaded = true
	s.mu.Unlock()

	s.logger.Info("product store built",
		zap.Int("items", len(kept)),
		zap.Int("skipped", skipped))
	return nil
}

// Persist writes both artifacts. It refuses to persist an unloaded store.
func (s *ProductStore) Persist(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded || len(s.items) == 0 {
		return ErrNotLoaded
	}
	if err := s.index.Save(s.indexPath); err != nil {
		return fmt.Errorf("persist vector index: %w", err)
	}
	db, err := openMetadataDB(s.dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := writeItems(ctx, db, s.items); err != nil {
		return fmt.Errorf("persist metadata: %w", err)
	}
	return nil
}

// Restore loads both artifacts and swaps them in atomically. It fails
// closed: if either artifact is missing, unreadable, or the vector count
// does not equal the metadata row count, the store keeps its previous
// state and reports the error.
func (s *ProductStore) Restore(ctx context.Context) error {
	if _, err := os.Stat(s.indexPath); err != nil {
		return fmt.Errorf("vector index artifact unavailable: %w", err)
	}
	if _, err := os.Stat(s.dbPath); err != nil {
		return fmt.Errorf("metadata artifact unavailable: %w", err)
	}

	idx, err := vector.NewFlatIndex(s.index.Dimensions())
	if err != nil {
		return err
	}
	if err := idx.Load(s.indexPath); err != nil {
		return fmt.Errorf("restore vector index: %w", err)
	}

	db, err := openMetadataDB(s.dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	items, err := readItems(ctx, db)
	if err != nil {
		return fmt.Errorf("restore metadata: %w", err)
	}

	if idx.Size() != len(items) {
		return fmt.Errorf("artifact mismatch: index has %d vectors, metadata has %d rows", idx.Size(), len(items))
	}
	for i, item := range items {
		if item.RowID != i {
			return fmt.Errorf("artifact mismatch: metadata row %d carries row_id %d", i, item.RowID)
		}
	}

	s.mu.Lock()
	s.index = idx
	s.items = items
	s.loaded = true
	s.mu.Unlock()

	s.logger.Info("product store restored", zap.Int("items", len(items)))
	return nil
}

// Search returns the top-k rows for the query embedding.
func (s *ProductStore) Search(ctx context.Context, query []float32, k int) ([]vector.Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return nil, ErrNotLoaded
	}
	return s.index.Search(query, k)
}

// Metadata resolves a hit row to its catalog item.
func (s *ProductStore) Metadata(row int) (*models.CatalogItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return nil, ErrNotLoaded
	}
	if row < 0 || row >= len(s.items) {
		return nil, fmt.Errorf("%w: row %d of %d", ErrRowOutOfRange, row, len(s.items))
	}
	return s.items[row], nil
}

// Items returns the full metadata table in row order. The returned slice
// must not be mutated.
func (s *ProductStore) Items() []*models.CatalogItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return nil
	}
	return s.items
}

// ItemByExternalID returns the first item with the given catalog ID.
func (s *ProductStore) ItemByExternalID(id string) (*models.CatalogItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.items {
		if item.ExternalID == id {
			return item, true
		}
	}
	return nil, false
}

// Size returns the number of indexed products.
func (s *ProductStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Loaded reports whether the store can serve searches.
func (s *ProductStore) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}
