package models

import "strings"

// QueryRequest is the caller-facing entry point of the conversation
// pipeline. ImagePath points at a local file the transport layer has
// already saved; it may be empty.
type QueryRequest struct {
	Text      string `json:"text"`
	ImagePath string `json:"image_path,omitempty"`
	Gender    string `json:"gender"`
	SessionID string `json:"session_id"`
}

// Normalize trims the text and coerces the gender selection to one of
// the supported values, defaulting to both.
func (r *QueryRequest) Normalize() {
	r.Text = strings.TrimSpace(r.Text)
	r.Gender = strings.ToLower(strings.TrimSpace(r.Gender))
	switch r.Gender {
	case GenderMen, GenderWomen:
	default:
		r.Gender = GenderBoth
	}
}

// ResultItem is one retrieved product as returned to callers.
type ResultItem struct {
	ExternalID  string  `json:"id"`
	Title       string  `json:"title"`
	Brand       string  `json:"brand"`
	Price       string  `json:"price"`
	Color       string  `json:"color"`
	ArticleType string  `json:"article_type"`
	Gender      string  `json:"gender"`
	Snippet     string  `json:"snippet"`
	ImagePath   string  `json:"image_path"`
	Score       float64 `json:"score"`
}

// ResultGroup holds the survivors of one sub-query, in rank order.
type ResultGroup struct {
	QueryNumber  int          `json:"query_number"`
	QueryText    string       `json:"query"`
	Category     string       `json:"category"`
	GenderFilter string       `json:"gender_filter,omitempty"`
	ItemCount    int          `json:"item_count"`
	Items        []ResultItem `json:"items"`
}

// QueryResponse is the terminal result of a conversation run. Success is
// false only when the product index is unavailable; content outcomes such
// as rejections and empty result sets are successful responses.
type QueryResponse struct {
	Success      bool          `json:"success"`
	RequestID    string        `json:"request_id"`
	Response     string        `json:"response"`
	Groups       []ResultGroup `json:"results"`
	Mode         SearchMode    `json:"mode,omitempty"`
	IntentType   string        `json:"intent_type,omitempty"`
	Gender       string        `json:"gender,omitempty"`
	GenderSource string        `json:"gender_source,omitempty"`
	SessionID    string        `json:"session_id,omitempty"`
	Trace        []string      `json:"trace,omitempty"`
}
