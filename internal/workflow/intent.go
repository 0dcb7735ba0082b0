package workflow

import "strings"

// welcomePatterns are greetings and small talk handled without search.
var welcomePatterns = []string{
	"hi", "hello", "hey", "hii", "hiii",
	"good morning", "good evening", "good afternoon", "good night",
	"what can you", "who are you", "what do you do", "help me",
	"greetings", "howdy", "sup", "yo", "hola",
	"thank you", "thanks", "bye", "goodbye", "see you",
	"how are you", "what's up", "whats up",
}

// fashionSignals override the greeting patterns: "hi, show me shirts"
// is a search, not small talk. They also back up the text classifier
// when it is unavailable.
var fashionSignals = []string{
	"shirt", "tshirt", "t-shirt", "dress", "jeans", "pants", "trousers",
	"skirt", "shoes", "sneakers", "boots", "heels", "sandals",
	"jacket", "coat", "blazer", "suit", "sweater", "hoodie",
	"watch", "bag", "handbag", "belt", "scarf", "hat", "cap",
	"wear", "outfit", "fashion", "clothing", "clothes", "style",
	"buy", "shopping", "show me", "looking for", "find me", "search",
}

// isPureGreeting reports whether the query matches a welcome pattern and
// carries no fashion signal.
func isPureGreeting(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	q = strings.Trim(q, "!.?,")
	if q == "" {
		return false
	}
	if hasFashionSignal(q) {
		return false
	}
	for _, pattern := range welcomePatterns {
		if q == pattern || strings.HasPrefix(q, pattern+" ") || strings.HasPrefix(q, pattern+",") {
			return true
		}
	}
	return false
}

func hasFashionSignal(query string) bool {
	q := strings.ToLower(query)
	for _, kw := range fashionSignals {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}
