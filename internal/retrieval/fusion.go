// Package retrieval executes planned searches against the product store
// and shapes the results into grouped, capped, gender-filtered output.
package retrieval

import (
	"fmt"

	"github.com/hyperjump/mitsuke/pkg/utils"
)

// Fuse returns the unit-normalized weighted combination of two
// embeddings. Both inputs are normalized before mixing so the weights
// act on directions, not magnitudes.
func Fuse(text, image []float32, textWeight, imageWeight float64) ([]float32, error) {
	if len(text) != len(image) {
		return nil, fmt.Errorf("fusion dimension mismatch: text %d, image %d", len(text), len(image))
	}
	t := make([]float32, len(text))
	copy(t, text)
	utils.NormalizeL2(t)
	img := make([]float32, len(image))
	copy(img, image)
	utils.NormalizeL2(img)

	fused := make([]float32, len(t))
	for i := range fused {
		fused[i] = float32(textWeight)*t[i] + float32(imageWeight)*img[i]
	}
	utils.NormalizeL2(fused)
	return fused, nil
}

// genderAllowed reports whether an item's catalog gender passes the
// target filter. The filter widens to the catalog's label variants.
func genderAllowed(target, itemGender string) bool {
	switch target {
	case "men":
		return itemGender == "men" || itemGender == "male" || itemGender == "boys"
	case "women":
		return itemGender == "women" || itemGender == "female" || itemGender == "girls"
	default:
		return true
	}
}
