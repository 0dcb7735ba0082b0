// Package models defines the core data structures shared across the
// catalog, planning, retrieval, and conversation layers.
package models

// CatalogItem is a single row of the catalog metadata table. Rows are
// aligned 1:1 by ordinal position with vectors in the product index and
// are immutable once the index has been built.
type CatalogItem struct {
	RowID       int    `json:"row_id"`
	ExternalID  string `json:"external_id"`
	Title       string `json:"title"`
	Brand       string `json:"brand"`
	Price       string `json:"price"`
	Color       string `json:"color"`
	ArticleType string `json:"article_type"`
	Gender      string `json:"gender"`
	Snippet     string `json:"snippet"`
	ImagePath   string `json:"image_path"`
}

// Clone returns a copy of the item.
func (c *CatalogItem) Clone() *CatalogItem {
	cp := *c
	return &cp
}
