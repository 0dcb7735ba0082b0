// Package catalog loads the product catalog from its CSV manifest and
// image directory, and derives the attribute vocabulary used elsewhere
// in the pipeline.
package catalog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/mitsuke/internal/models"
)

// ErrNoItems is returned when the CSV yields no usable rows.
var ErrNoItems = fmt.Errorf("catalog contains no usable items")

// Loader reads catalog rows and resolves their images.
type Loader struct {
	csvPath    string
	imagesPath string
	maxItems   int
	logger     *zap.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithMaxItems caps how many rows are loaded. Zero means no cap.
func WithMaxItems(n int) Option {
	return func(l *Loader) { l.maxItems = n }
}

// WithLogger sets the logger used for load progress.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// NewLoader creates a loader over the CSV manifest and image directory.
func NewLoader(csvPath, imagesPath string, opts ...Option) *Loader {
	l := &Loader{
		csvPath:    csvPath,
		imagesPath: imagesPath,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load parses the CSV and returns items whose image file exists. Rows
// with a missing or unreadable image are dropped, not errored. Row IDs
// are left unset; the store assigns them at build time.
func (l *Loader) Load() ([]*models.CatalogItem, error) {
	f, err := os.Open(l.csvPath)
	if err != nil {
		return nil, fmt.Errorf("open catalog csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	// Some catalog exports carry ragged rows; tolerate them and skip.
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read catalog header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"id", "gender", "articleType", "baseColour"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("catalog csv missing column %q", required)
		}
	}

	field := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var items []*models.CatalogItem
	skipped := 0
	for {
		record, err := r.Read()
		if err != nil {
			break
		}
		if l.maxItems > 0 && len(items) >= l.maxItems {
			break
		}
		id := field(record, "id")
		if id == "" {
			skipped++
			continue
		}
		imagePath := filepath.Join(l.imagesPath, id+".jpg")
		if _, err := os.Stat(imagePath); err != nil {
			skipped++
			continue
		}

		gender := strings.ToLower(field(record, "gender"))
		articleType := field(record, "articleType")
		color := field(record, "baseColour")
		brand := field(record, "brandName")
		price := field(record, "price")
		if price == "" {
			price = "N/A"
		}

		items = append(items, &models.CatalogItem{
			ExternalID:  id,
			Title:       fmt.Sprintf("%s - %s", articleType, color),
			Brand:       brand,
			Price:       price,
			Color:       strings.ToLower(color),
			ArticleType: strings.ToLower(articleType),
			Gender:      gender,
			Snippet:     fmt.Sprintf("%s %s in %s", gender, articleType, color),
			ImagePath:   imagePath,
		})
	}

	if len(items) == 0 {
		return nil, ErrNoItems
	}
	l.logger.Info("catalog loaded",
		zap.Int("items", len(items)),
		zap.Int("skipped", skipped))
	return items, nil
}
