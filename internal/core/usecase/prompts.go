package usecase

import (
	"fmt"
	"strings"

	"github.com/whatsgood/brand-retrieval/internal/core/domain"
)

const primaryCategoryThreshold = 0.5

func buildHyDEPrompt(brand domain.BrandContext, weights domain.CategoryWeights) string {
	var b strings.Builder
	b.WriteString("Write a short article excerpt that this brand would want to share with its audience.\n")
	b.WriteString("Use the vocabulary of the brand's industry and reflect its values.\n\n")
	writeBrandBlock(&b, brand, weights)
	b.WriteString("\nRules:\n")
	b.WriteString("- two or three compact paragraphs, at most 200 words\n")
	b.WriteString("- concrete trends, innovations and practical takeaways\n")
	b.WriteString("- no headings, no preamble\n\n")
	b.WriteString("Excerpt:")
	return b.String()
}

func buildSelfQueryPrompt(brand domain.BrandContext, weights domain.CategoryWeights) string {
	var b strings.Builder
	b.WriteString("Turn the brand profile below into one search phrase for finding relevant news articles.\n")
	b.WriteString("Answer with the phrase only, under 30 words, built from key industry terms.\n\n")
	writeBrandBlock(&b, brand, weights)
	b.WriteString("\nSearch phrase:")
	return b.String()
}

func buildFewShotPrompt(brand domain.BrandContext, weights domain.CategoryWeights, examples []domain.Example) string {
	var b strings.Builder
	b.WriteString("Articles below were confirmed relevant for brands similar to this one.\n\n")
	for i, ex := range examples {
		fmt.Fprintf(&b, "Example %d\n", i+1)
		fmt.Fprintf(&b, "Brand: %s\n", ex.BrandDescription)
		fmt.Fprintf(&b, "Relevant article: %s (%s)\n", articleLabel(ex.MatchedContent), ex.MatchedContent.Category)
		fmt.Fprintf(&b, "Relevance: %.2f\n\n", ex.RelevanceScore)
	}
	writeBrandBlock(&b, brand, weights)
	b.WriteString("\nWrite one search phrase, under 30 words, that finds articles of the same kind for this brand.\n")
	b.WriteString("Search phrase:")
	return b.String()
}

func writeBrandBlock(b *strings.Builder, brand domain.BrandContext, weights domain.CategoryWeights) {
	fmt.Fprintf(b, "Industry: %s\n", brand.Industry)
	fmt.Fprintf(b, "Values: %s\n", brand.Values)
	fmt.Fprintf(b, "Audience: %s\n", brand.Audience)
	if primary := weights.Above(primaryCategoryThreshold); len(primary) > 0 {
		fmt.Fprintf(b, "Primary categories: %s\n", strings.Join(primary, ", "))
	}
}

func articleLabel(c domain.ScoredCandidate) string {
	if c.Title != "" {
		return c.Title
	}
	text := strings.Fields(c.Text)
	if len(text) > 30 {
		text = text[:30]
	}
	if len(text) == 0 {
		return c.ArticleID
	}
	return strings.Join(text, " ")
}

// firstWords truncates text to at most n whitespace separated words.
func firstWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
