// Package ai defines the model collaborators the pipeline depends on:
// the joint text/image encoder, the image gate, the query expander, the
// text classifier, and the voice transcriber. Implementations call
// OpenAI-compatible services; deterministic in-process variants exist
// for tests and offline runs.
package ai

import "context"

// Encoder embeds text and images into one joint vector space. Returned
// vectors are unit-normalized.
type Encoder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedImage(ctx context.Context, path string) ([]float32, error)
	Dimensions() int
}

// ImageVerdict is the outcome of the fashion image gate.
type ImageVerdict struct {
	IsFashion bool
	// Evidence names the best-matching visual category.
	Evidence string
	Score    float64
}

// ImageClassifier decides whether an image shows fashion content.
type ImageClassifier interface {
	ClassifyImage(ctx context.Context, path string) (*ImageVerdict, error)
}

// Describer turns an image into a short indexable text description.
type Describer interface {
	DescribeImage(ctx context.Context, path string) (string, error)
}

// Text classifier labels.
const (
	LabelFashion    = "fashion"
	LabelNonFashion = "non_fashion"
)

// TextClassifier labels a query as fashion-related or not.
type TextClassifier interface {
	ClassifyText(ctx context.Context, text string) (label string, confidence float64, err error)
}

// Transcriber converts recorded speech to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Expansion intents.
const (
	ExpandDirect         = "direct_search"
	ExpandRecommendation = "outfit_recommendation"
)

// ExpansionRequest carries the query and its resolved context to the
// expander.
type ExpansionRequest struct {
	Query   string
	Gender  string
	Context string
}

// ExpansionCategory is one outfit slot with its retrieval probes.
type ExpansionCategory struct {
	Category string   `json:"category"`
	Queries  []string `json:"queries"`
}

// ExpansionResult is the structured plan returned by the expander.
// Direct searches carry Queries; recommendations carry Categories.
type ExpansionResult struct {
	Intent     string              `json:"intent"`
	Queries    []string            `json:"queries,omitempty"`
	Categories []ExpansionCategory `json:"categories,omitempty"`
}

// Expander rewrites a query into a structured retrieval plan.
type Expander interface {
	ExpandQuery(ctx context.Context, req *ExpansionRequest) (*ExpansionResult, error)
}
