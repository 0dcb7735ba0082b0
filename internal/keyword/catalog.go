// Package keyword provides a Bleve index over catalog items for the
// text-based product browse endpoints.
package keyword

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/hyperjump/mitsuke/internal/models"
)

// Hit is one keyword search result.
type Hit struct {
	ExternalID string
	Score      float64
}

// catalogDoc is the indexed shape of a catalog item.
type catalogDoc struct {
	Title       string `json:"title"`
	Brand       string `json:"brand"`
	Color       string `json:"color"`
	ArticleType string `json:"article_type"`
	Gender      string `json:"gender"`
	Snippet     string `json:"snippet"`
}

// CatalogIndex indexes catalog items by their text attributes.
type CatalogIndex struct {
	index bleve.Index
}

func catalogMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so exact
	// attribute words like "tshirts" match as typed.
	textFieldMapping.Analyzer = standard.Name
	for _, field := range []string{"title", "brand", "color", "article_type", "gender", "snippet"} {
		docMapping.AddFieldMappingsAt(field, textFieldMapping)
	}
	im.DefaultMapping = docMapping
	return im
}

// NewCatalogIndex creates or opens a Bleve index at path. An existing
// index is reused; remove the directory to force a rebuild after mapping
// changes.
func NewCatalogIndex(path string) (*CatalogIndex, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &CatalogIndex{index: index}, nil
	}
	index, err := bleve.New(path, catalogMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &CatalogIndex{index: index}, nil
}

// NewMemCatalogIndex creates an in-memory index, used by tests and by
// servers running without a keyword index path.
func NewMemCatalogIndex() (*CatalogIndex, error) {
	index, err := bleve.NewMemOnly(catalogMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
	}
	return &CatalogIndex{index: index}, nil
}

// IndexItems indexes all items in one batch, keyed by external ID.
func (c *CatalogIndex) IndexItems(ctx context.Context, items []*models.CatalogItem) error {
	batch := c.index.NewBatch()
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc := catalogDoc{
			Title:       item.Title,
			Brand:       item.Brand,
			Color:       item.Color,
			ArticleType: item.ArticleType,
			Gender:      item.Gender,
			Snippet:     item.Snippet,
		}
		if err := batch.Index(item.ExternalID, doc); err != nil {
			return fmt.Errorf("batch index item %s: %w", item.ExternalID, err)
		}
	}
	if err := c.index.Batch(batch); err != nil {
		return fmt.Errorf("index catalog batch: %w", err)
	}
	return nil
}

// Search runs a match query over all attribute fields.
func (c *CatalogIndex) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	req := bleve.NewSearchRequest(bleve.NewMatchQuery(query))
	req.Size = limit
	results, err := c.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}
	out := make([]Hit, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = Hit{ExternalID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// DocCount returns the number of indexed items.
func (c *CatalogIndex) DocCount() (uint64, error) {
	return c.index.DocCount()
}

// Close releases the index.
func (c *CatalogIndex) Close() error {
	return c.index.Close()
}
