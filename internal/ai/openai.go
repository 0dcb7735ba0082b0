package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/jpeg"
	"net/http"
	"time"

	"github.com/disintegration/imaging"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperjump/mitsuke/pkg/utils"
)

// maxPayloadEdge bounds the longer edge of images sent to the encoder
// service. The service does its own model preprocessing; this only keeps
// request payloads small.
const maxPayloadEdge = 512

// ClientOptions configures an OpenAI-compatible service client.
type ClientOptions struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

func newClient(opts ClientOptions) *openai.Client {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return openai.NewClientWithConfig(cfg)
}

// OpenAIEncoder embeds text and images through an OpenAI-compatible
// embeddings endpoint backed by a joint text/image model. Images are
// sent as base64 JPEG payloads on the embeddings route. Text embeddings
// are cached.
type OpenAIEncoder struct {
	client     *openai.Client
	model      string
	dimensions int
	cache      *EmbeddingCache
}

// NewOpenAIEncoder creates an encoder against the given service.
func NewOpenAIEncoder(opts ClientOptions, dimensions, cacheSize int) *OpenAIEncoder {
	if cacheSize <= 0 {
		cacheSize = 10000
	}
	return &OpenAIEncoder{
		client:     newClient(opts),
		model:      opts.Model,
		dimensions: dimensions,
		cache:      NewEmbeddingCache(cacheSize),
	}
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEncoder) Dimensions() int {
	return e.dimensions
}

// EmbedText returns the unit-normalized embedding of text.
func (e *OpenAIEncoder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := e.cache.Get("text:" + text); ok {
		return cached, nil
	}
	emb, err := e.embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}
	e.cache.Set("text:"+text, emb)
	return emb, nil
}

// EmbedImage returns the unit-normalized embedding of the image at path.
func (e *OpenAIEncoder) EmbedImage(ctx context.Context, path string) ([]float32, error) {
	payload, err := imagePayload(path)
	if err != nil {
		return nil, err
	}
	emb, err := e.embed(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("embed image %s: %w", path, err)
	}
	return emb, nil
}

func (e *OpenAIEncoder) embed(ctx context.Context, input string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{input},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding service returned no data")
	}
	emb := resp.Data[0].Embedding
	if len(emb) != e.dimensions {
		return nil, fmt.Errorf("embedding dimension mismatch: got %d, expected %d", len(emb), e.dimensions)
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// imagePayload decodes the image, downscales it, and returns a base64
// data URL of the re-encoded JPEG. Decoding also rejects files that are
// not images before they reach the service.
func imagePayload(path string) (string, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("decode image %s: %w", path, err)
	}
	if img.Bounds().Dx() > maxPayloadEdge || img.Bounds().Dy() > maxPayloadEdge {
		img = imaging.Fit(img, maxPayloadEdge, maxPayloadEdge, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpeg.DefaultQuality)); err != nil {
		return "", fmt.Errorf("encode image payload: %w", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// OpenAITranscriber converts audio to text through a Whisper-compatible
// transcription endpoint.
type OpenAITranscriber struct {
	client *openai.Client
	model  string
}

// NewOpenAITranscriber creates a transcriber against the given service.
func NewOpenAITranscriber(opts ClientOptions) *OpenAITranscriber {
	model := opts.Model
	if model == "" {
		model = openai.Whisper1
	}
	return &OpenAITranscriber{client: newClient(opts), model: model}
}

// Transcribe returns the transcript of the audio file at path.
func (t *OpenAITranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: audioPath,
	})
	if err != nil {
		return "", fmt.Errorf("transcribe %s: %w", audioPath, err)
	}
	return resp.Text, nil
}
