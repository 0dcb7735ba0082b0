package planner

import "strings"

// Closed keyword lists driving the rule-based parts of planning. These
// are matched against lowercased query text; gender words match whole
// tokens, the rest match as substrings.

var attributeKeywords = []string{
	"white", "black", "red", "blue", "green", "yellow", "pink", "purple",
	"beige", "brown", "grey", "gray", "orange", "gold", "silver",
	"cheap", "expensive",
	"cotton", "silk", "denim", "leather",
	"casual", "formal", "summer", "winter",
}

var maleKeywords = []string{
	"men", "man", "male", "guy", "boy", "gentleman", "his", "he", "him",
}

var femaleKeywords = []string{
	"women", "woman", "female", "girl", "lady", "her", "she",
}

// imageOnlyPhrases are whole queries that add nothing beyond the image.
var imageOnlyPhrases = []string{"", "similar", "like this", "same"}

// occasionKeywords trigger the outfit template in fallback planning.
var occasionKeywords = []string{"wedding", "party", "office", "recommend", "outfit"}

// itemTypeKeywords are the product nouns remembered across turns.
var itemTypeKeywords = []string{
	"shirt", "tshirt", "jeans", "pants", "trousers", "dress", "skirt",
	"shoes", "sneakers", "boots", "heels", "jacket", "coat", "blazer",
	"watch", "bag", "handbag", "belt", "scarf", "hat", "cap",
	"suit", "tuxedo", "shorts", "leggings", "sweater", "hoodie",
}

// outfitTemplate is the per-category fallback for occasion queries, in
// presentation order.
var outfitTemplate = []struct {
	category string
	query    string
}{
	{"top", "formal shirt"},
	{"bottom", "dress pants"},
	{"footwear", "formal shoes"},
	{"accessories", "leather belt"},
	{"watches", "formal watch"},
}

func containsAny(query string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(query, kw) {
			return true
		}
	}
	return false
}

func hasToken(tokens []string, keywords []string) bool {
	for _, tok := range tokens {
		for _, kw := range keywords {
			if tok == kw {
				return true
			}
		}
	}
	return false
}

// firstItemType returns the first remembered product noun appearing in
// the query, or "".
func firstItemType(query string) string {
	for _, item := range itemTypeKeywords {
		if strings.Contains(query, item) {
			return item
		}
	}
	return ""
}

func isImageOnlyPhrase(query string) bool {
	for _, phrase := range imageOnlyPhrases {
		if query == phrase {
			return true
		}
	}
	return false
}
