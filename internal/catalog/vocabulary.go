package catalog

import (
	"sort"
	"strings"

	"github.com/hyperjump/mitsuke/internal/models"
)

// Vocabulary is the set of attribute values observed in the catalog,
// lowercased and deduplicated. It feeds zero-shot image description and
// expansion context.
type Vocabulary struct {
	ArticleTypes []string
	Colors       []string
	Genders      []string
	Brands       []string
}

// BuildVocabulary derives the vocabulary from loaded items.
func BuildVocabulary(items []*models.CatalogItem) *Vocabulary {
	articles := map[string]bool{}
	colors := map[string]bool{}
	genders := map[string]bool{}
	brands := map[string]bool{}
	for _, item := range items {
		add(articles, item.ArticleType)
		add(colors, item.Color)
		add(genders, item.Gender)
		add(brands, item.Brand)
	}
	return &Vocabulary{
		ArticleTypes: sorted(articles),
		Colors:       sorted(colors),
		Genders:      sorted(genders),
		Brands:       sorted(brands),
	}
}

func add(set map[string]bool, v string) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v != "" {
		set[v] = true
	}
}

func sorted(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
