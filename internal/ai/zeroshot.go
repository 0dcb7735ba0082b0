package ai

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
)

// fashionScoreThreshold is the minimum share of softmax probability mass
// the fashion categories must hold for an image to pass the gate. The
// fashion mass must also exceed the non-fashion mass.
const fashionScoreThreshold = 0.20

// topPromptCount limits scoring to the highest-probability prompts.
const topPromptCount = 10

var fashionPrompts = []string{
	"a photo of clothing",
	"a photo of a shirt or tshirt",
	"a photo of a dress",
	"a photo of pants or jeans",
	"a photo of shoes or sneakers",
	"a photo of a jacket or coat",
	"a photo of a handbag or purse",
	"a photo of a watch",
	"a photo of fashion accessories",
	"a photo of a person wearing an outfit",
}

var nonFashionPrompts = []string{
	"a photo of a car or vehicle",
	"a photo of food",
	"a photo of a building",
	"a photo of a landscape",
	"a photo of an animal",
	"a photo of electronics",
	"a photo of furniture",
	"a photo of a document or text",
}

// ZeroShotGate classifies images as fashion or not by comparing the
// image embedding against text prompts in the encoder's joint space.
type ZeroShotGate struct {
	encoder Encoder
}

// NewZeroShotGate creates an image gate on top of the encoder.
func NewZeroShotGate(encoder Encoder) *ZeroShotGate {
	return &ZeroShotGate{encoder: encoder}
}

// ClassifyImage embeds the image and all category prompts, softmaxes the
// similarities, and accepts the image when the fashion categories hold
// enough probability mass and more mass than the non-fashion categories.
func (g *ZeroShotGate) ClassifyImage(ctx context.Context, path string) (*ImageVerdict, error) {
	imgEmb, err := g.encoder.EmbedImage(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("image gate: %w", err)
	}

	prompts := make([]string, 0, len(fashionPrompts)+len(nonFashionPrompts))
	prompts = append(prompts, fashionPrompts...)
	prompts = append(prompts, nonFashionPrompts...)

	sims := make([]float64, len(prompts))
	for i, prompt := range prompts {
		txtEmb, err := g.encoder.EmbedText(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("image gate: %w", err)
		}
		sims[i] = dot(imgEmb, txtEmb)
	}
	probs := softmax(sims)

	// Scores are summed over the top 10 prompts only, so the two masses
	// do not add up to one.
	order := make([]int, len(probs))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return probs[order[a]] > probs[order[b]] })
	top := order
	if len(top) > topPromptCount {
		top = top[:topPromptCount]
	}

	var fashionScore, nonFashionScore float64
	for _, i := range top {
		if i < len(fashionPrompts) {
			fashionScore += probs[i]
		} else {
			nonFashionScore += probs[i]
		}
	}

	return &ImageVerdict{
		IsFashion: fashionScore > fashionScoreThreshold && fashionScore > nonFashionScore,
		Evidence:  prompts[order[0]],
		Score:     fashionScore,
	}, nil
}

// ZeroShotDescriber builds a short text description of an image by
// picking the best-matching value per catalog facet.
type ZeroShotDescriber struct {
	encoder  Encoder
	articles []string
	colors   []string
	genders  []string
}

// NewZeroShotDescriber creates a describer over the catalog vocabulary.
func NewZeroShotDescriber(encoder Encoder, articles, colors, genders []string) *ZeroShotDescriber {
	return &ZeroShotDescriber{
		encoder:  encoder,
		articles: articles,
		colors:   colors,
		genders:  genders,
	}
}

// DescribeImage returns a description like "women red dress" built from
// the best-matching gender, color, and article type.
func (d *ZeroShotDescriber) DescribeImage(ctx context.Context, path string) (string, error) {
	imgEmb, err := d.encoder.EmbedImage(ctx, path)
	if err != nil {
		return "", fmt.Errorf("describe image: %w", err)
	}

	var parts []string
	for _, facet := range [][]string{d.genders, d.colors, d.articles} {
		value, err := d.bestMatch(ctx, imgEmb, facet)
		if err != nil {
			return "", err
		}
		if value != "" {
			parts = append(parts, value)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("describe image: empty vocabulary")
	}
	return strings.Join(parts, " "), nil
}

func (d *ZeroShotDescriber) bestMatch(ctx context.Context, imgEmb []float32, values []string) (string, error) {
	best := ""
	bestSim := math.Inf(-1)
	for _, v := range values {
		txtEmb, err := d.encoder.EmbedText(ctx, "a photo of "+v)
		if err != nil {
			return "", fmt.Errorf("describe image: %w", err)
		}
		if sim := dot(imgEmb, txtEmb); sim > bestSim {
			bestSim = sim
			best = v
		}
	}
	return best, nil
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i] * b[i])
	}
	return sum
}

// softmax uses the conventional 100x logit scale for contrastive
// embedding similarities so probabilities are not near-uniform.
func softmax(sims []float64) []float64 {
	const scale = 100
	max := math.Inf(-1)
	for _, s := range sims {
		if s*scale > max {
			max = s * scale
		}
	}
	var sum float64
	out := make([]float64, len(sims))
	for i, s := range sims {
		out[i] = math.Exp(s*scale - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
