package retrieval

import (
	"fmt"
	"strings"

	"github.com/hyperjump/mitsuke/internal/models"
)

// categoryOrder is the presentation order for outfit recommendations.
var categoryOrder = []string{"top", "bottom", "footwear", "accessories", "watches"}

// buildResponse renders the conversational summary for the retrieved
// groups.
func buildResponse(st *models.ConversationState) string {
	total := 0
	for _, g := range st.Groups {
		total += g.ItemCount
	}

	if total == 0 {
		if st.Mode == models.ModeImageOnly {
			return "I could not find items visually similar to your image. Try a clearer product photo or add a text description."
		}
		return "I could not find matching items for that. Try different wording or fewer constraints."
	}

	var b strings.Builder
	switch {
	case st.Mode == models.ModeImageOnly:
		fmt.Fprintf(&b, "Found %d visually similar items.", total)
	case st.IntentType == models.IntentRecommendation:
		fmt.Fprintf(&b, "Here is an outfit suggestion with %d items:", total)
		b.WriteString(categoryBreakdown(st.Groups))
	default:
		fmt.Fprintf(&b, "Found %d matching items.", total)
	}

	switch st.Gender {
	case models.GenderMen:
		b.WriteString(" Showing men's fashion only.")
	case models.GenderWomen:
		b.WriteString(" Showing women's fashion only.")
	}
	return b.String()
}

// categoryBreakdown lists per-category counts in the fixed outfit order,
// with unknown categories last in first-seen order.
func categoryBreakdown(groups []models.ResultGroup) string {
	counts := map[string]int{}
	var extras []string
	seen := map[string]bool{}
	known := map[string]bool{}
	for _, c := range categoryOrder {
		known[c] = true
	}
	for _, g := range groups {
		counts[g.Category] += g.ItemCount
		if !known[g.Category] && !seen[g.Category] {
			seen[g.Category] = true
			extras = append(extras, g.Category)
		}
	}

	var b strings.Builder
	for _, c := range append(append([]string{}, categoryOrder...), extras...) {
		if counts[c] > 0 {
			fmt.Fprintf(&b, " %s: %d.", c, counts[c])
		}
	}
	return b.String()
}
