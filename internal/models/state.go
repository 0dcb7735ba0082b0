package models

import "fmt"

// SearchMode selects which retrieval path a query takes.
type SearchMode string

const (
	ModeImageOnly SearchMode = "image_only"
	ModeTextOnly  SearchMode = "text_only"
	ModeHybrid    SearchMode = "hybrid"
)

// Target gender values for result filtering.
const (
	GenderMen   = "men"
	GenderWomen = "women"
	GenderBoth  = "both"
)

// Provenance of the resolved target gender.
const (
	GenderFromQuery     = "query_text"
	GenderFromSelection = "user_selection"
	GenderDefaultBoth   = "default_both"
)

// Intent labels produced by query planning.
const (
	IntentDirectSearch   = "direct_search"
	IntentRecommendation = "outfit_recommendation"
	IntentImageSearch    = "image_search"
)

// Plan provenance values.
const (
	PlanSourceGenerator = "generator"
	PlanSourceFallback  = "fallback"
)

// SubQuery is one concrete retrieval probe produced by planning, tagged
// with the outfit category it contributes to.
type SubQuery struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

// ConversationState carries a single request through the conversation
// graph. Stage functions read and mutate it in place; it is never shared
// between requests.
type ConversationState struct {
	RawText        string
	ImagePath      string
	SessionID      string
	SelectedGender string

	ImageEmbedding   []float32
	FashionImage     bool
	ImageChecked     bool
	ImageReason      string
	ImageDescription string

	Query        string
	IntentType   string
	Mode         SearchMode
	Gender       string
	GenderSource string
	SubQueries   []SubQuery
	PlanSource   string

	Groups   []ResultGroup
	Response string
	Trace    []string
}

// NewConversationState seeds a state from a validated request.
func NewConversationState(req *QueryRequest) *ConversationState {
	return &ConversationState{
		RawText:        req.Text,
		ImagePath:      req.ImagePath,
		SessionID:      req.SessionID,
		SelectedGender: req.Gender,
		Gender:         GenderBoth,
		GenderSource:   GenderDefaultBoth,
	}
}

// Tracef appends a formatted entry to the request trace.
func (s *ConversationState) Tracef(format string, args ...interface{}) {
	s.Trace = append(s.Trace, fmt.Sprintf(format, args...))
}

// HasImage reports whether the request carried an image.
func (s *ConversationState) HasImage() bool {
	return s.ImagePath != ""
}
