package ai

import (
	"context"
	"math"
)

// MockEncoder is a deterministic encoder for tests and offline runs. The
// same input always gets the same unit vector; images are keyed by path.
type MockEncoder struct {
	dimensions int
}

// NewMockEncoder returns an encoder producing deterministic embeddings
// of the given dimensions.
func NewMockEncoder(dimensions int) *MockEncoder {
	if dimensions <= 0 {
		dimensions = 512
	}
	return &MockEncoder{dimensions: dimensions}
}

// Dimensions returns the embedding dimension.
func (e *MockEncoder) Dimensions() int {
	return e.dimensions
}

// EmbedText returns a deterministic embedding based on the text hash.
func (e *MockEncoder) EmbedText(_ context.Context, text string) ([]float32, error) {
	return e.hashEmbed(text), nil
}

// EmbedImage returns a deterministic embedding based on the path hash.
func (e *MockEncoder) EmbedImage(_ context.Context, path string) ([]float32, error) {
	return e.hashEmbed("image:" + path), nil
}

func (e *MockEncoder) hashEmbed(s string) []float32 {
	h := hashString(s)
	emb := make([]float32, e.dimensions)
	for i := 0; i < e.dimensions; i++ {
		emb[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
	}
	var sum float64
	for _, v := range emb {
		sum += float64(v * v)
	}
	if sum > 0 {
		norm := 1.0 / math.Sqrt(sum)
		for i := range emb {
			emb[i] *= float32(norm)
		}
	}
	return emb
}

func hashString(s string) int {
	h := 0
	for _, c := range s {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	return h
}

// ExpanderFunc adapts a function to the Expander interface.
type ExpanderFunc func(ctx context.Context, req *ExpansionRequest) (*ExpansionResult, error)

// ExpandQuery calls f.
func (f ExpanderFunc) ExpandQuery(ctx context.Context, req *ExpansionRequest) (*ExpansionResult, error) {
	return f(ctx, req)
}

// TextClassifierFunc adapts a function to the TextClassifier interface.
type TextClassifierFunc func(ctx context.Context, text string) (string, float64, error)

// ClassifyText calls f.
func (f TextClassifierFunc) ClassifyText(ctx context.Context, text string) (string, float64, error) {
	return f(ctx, text)
}

// ImageClassifierFunc adapts a function to the ImageClassifier interface.
type ImageClassifierFunc func(ctx context.Context, path string) (*ImageVerdict, error)

// ClassifyImage calls f.
func (f ImageClassifierFunc) ClassifyImage(ctx context.Context, path string) (*ImageVerdict, error) {
	return f(ctx, path)
}

// DescriberFunc adapts a function to the Describer interface.
type DescriberFunc func(ctx context.Context, path string) (string, error)

// DescribeImage calls f.
func (f DescriberFunc) DescribeImage(ctx context.Context, path string) (string, error) {
	return f(ctx, path)
}
