package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const expanderSystemPrompt = `You are a fashion shopping assistant that turns a user request into retrieval queries over a product catalog.

Classify the request as "direct_search" (the user names what they want) or "outfit_recommendation" (the user asks for an outfit or what to wear for an occasion).

For direct_search respond with:
{"intent": "direct_search", "queries": ["<specific product query>", ...]}

For outfit_recommendation respond with:
{"intent": "outfit_recommendation", "categories": [{"category": "top", "queries": ["..."]}, {"category": "bottom", "queries": ["..."]}, {"category": "footwear", "queries": ["..."]}, {"category": "accessories", "queries": ["..."]}, {"category": "watches", "queries": ["..."]}]}

Every query must start with the target gender when it is men or women. Respond with JSON only.`

// OpenAIExpander rewrites queries into structured retrieval plans via a
// chat completion endpoint.
type OpenAIExpander struct {
	client *openai.Client
	model  string
}

// NewOpenAIExpander creates an expander against the given service.
func NewOpenAIExpander(opts ClientOptions) *OpenAIExpander {
	return &OpenAIExpander{client: newClient(opts), model: opts.Model}
}

// ExpandQuery asks the model for a structured plan and parses it. Any
// transport or parse failure is returned to the caller, which falls back
// to rule-based planning.
func (e *OpenAIExpander) ExpandQuery(ctx context.Context, req *ExpansionRequest) (*ExpansionResult, error) {
	user := fmt.Sprintf("Request: %s\nTarget gender: %s", req.Query, req.Gender)
	if req.Context != "" {
		user += "\nContext: " + req.Context
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		Temperature: 0.3,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: expanderSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("expand query: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("expand query: no choices returned")
	}
	return parseExpansion(resp.Choices[0].Message.Content)
}

// parseExpansion decodes the model output, tolerating markdown fences.
func parseExpansion(content string) (*ExpansionResult, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var result ExpansionResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, fmt.Errorf("parse expansion: %w", err)
	}
	switch result.Intent {
	case ExpandDirect, ExpandRecommendation:
	default:
		return nil, fmt.Errorf("parse expansion: unknown intent %q", result.Intent)
	}
	if len(result.Queries) == 0 && len(result.Categories) == 0 {
		return nil, fmt.Errorf("parse expansion: plan is empty")
	}
	return &result, nil
}

// OpenAITextClassifier labels queries through a chat completion endpoint.
type OpenAITextClassifier struct {
	client *openai.Client
	model  string
}

// NewOpenAITextClassifier creates a text classifier against the given service.
func NewOpenAITextClassifier(opts ClientOptions) *OpenAITextClassifier {
	return &OpenAITextClassifier{client: newClient(opts), model: opts.Model}
}

const classifierSystemPrompt = `Label the user text as "fashion" if it is about clothing, footwear, accessories, outfits, or shopping for them, otherwise "non_fashion". Respond with JSON only: {"label": "...", "confidence": 0.0}`

// ClassifyText returns the label and the model's confidence.
func (c *OpenAITextClassifier) ClassifyText(ctx context.Context, text string) (string, float64, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifierSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return "", 0, fmt.Errorf("classify text: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", 0, fmt.Errorf("classify text: no choices returned")
	}
	var out struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return "", 0, fmt.Errorf("classify text: %w", err)
	}
	if out.Label != LabelFashion && out.Label != LabelNonFashion {
		return "", 0, fmt.Errorf("classify text: unknown label %q", out.Label)
	}
	return out.Label, out.Confidence, nil
}
