package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

const DefaultFallbackCategoryWeight = 0.1

type BrandContext struct {
	BrandID  string `json:"brand_id,omitempty"`
	Industry string `json:"industry"`
	Values   string `json:"values"`
	Audience string `json:"audience"`
}

func (b BrandContext) Description() string {
	parts := make([]string, 0, 3)
	for _, part := range []string{b.Industry, b.Values, b.Audience} {
		part = strings.TrimSpace(part)
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, " ")
}

// CategoryWeights maps a category name to a brand relevance weight in [0,1].
type CategoryWeights map[string]float64

func (w CategoryWeights) Validate() error {
	for category, weight := range w {
		if !IsKnownCategory(category) {
			return WrapError(ErrInvalidInput, "validate category weights", fmt.Errorf("unknown category %q", category))
		}
		if math.IsNaN(weight) || weight < 0 || weight > 1 {
			return WrapError(ErrInvalidInput, "validate category weights", fmt.Errorf("weight for %q must be in [0,1], got %v", category, weight))
		}
	}
	return nil
}

// WeightFor returns the weight for category, or fallback when the brand has no
// opinion about it. A non-positive fallback is replaced by the default.
func (w CategoryWeights) WeightFor(category string, fallback float64) float64 {
	if weight, ok := w[category]; ok {
		return weight
	}
	if fallback <= 0 {
		return DefaultFallbackCategoryWeight
	}
	return fallback
}

func (w CategoryWeights) Max() float64 {
	maxWeight := 0.0
	for _, weight := range w {
		if weight > maxWeight {
			maxWeight = weight
		}
	}
	return maxWeight
}

// Variance is the population variance of the weights; zero for an empty map.
func (w CategoryWeights) Variance() float64 {
	if len(w) == 0 {
		return 0
	}
	values := w.sortedValues()
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return variance / float64(len(values))
}

func (w CategoryWeights) CountAbove(threshold float64) int {
	count := 0
	for _, weight := range w {
		if weight > threshold {
			count++
		}
	}
	return count
}

// Above lists categories with weight strictly greater than threshold, highest first.
func (w CategoryWeights) Above(threshold float64) []string {
	out := make([]string, 0, len(w))
	for category, weight := range w {
		if weight > threshold {
			out = append(out, category)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if w[out[i]] == w[out[j]] {
			return out[i] < out[j]
		}
		return w[out[i]] > w[out[j]]
	})
	return out
}

func (w CategoryWeights) sortedValues() []float64 {
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]float64, 0, len(keys))
	for _, k := range keys {
		values = append(values, w[k])
	}
	return values
}

func WordCount(text string) int {
	return len(strings.Fields(text))
}
