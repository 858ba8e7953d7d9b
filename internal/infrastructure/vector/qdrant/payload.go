package qdrant

import (
	"errors"
	"fmt"

	"github.com/whatsgood/brand-retrieval/internal/core/domain"
	"github.com/whatsgood/brand-retrieval/internal/infrastructure/resilience"
)

func documentPayload(namespace string, doc domain.Document) map[string]any {
	return map[string]any{
		"namespace":           namespace,
		"article_id":          doc.ArticleID,
		"text":                doc.Text,
		"category":            doc.Category,
		"title":               doc.Metadata.Title,
		"original_word_count": doc.Metadata.OriginalWordCount,
		"summary_word_count":  doc.Metadata.SummaryWordCount,
	}
}

func payloadDocument(payload map[string]any) domain.Document {
	category := getStringPayload(payload, "category")
	if category == "" {
		category = domain.CategoryUnknown
	}
	return domain.Document{
		ArticleID: getStringPayload(payload, "article_id"),
		Text:      getStringPayload(payload, "text"),
		Category:  category,
		Metadata: domain.DocumentMetadata{
			Title:             getStringPayload(payload, "title"),
			OriginalWordCount: getIntPayload(payload, "original_word_count"),
			SummaryWordCount:  getIntPayload(payload, "summary_word_count"),
		},
	}
}

func namespaceFilter(namespace string) map[string]any {
	return map[string]any{
		"must": []map[string]any{
			{"key": "namespace", "match": map[string]any{"value": namespace}},
		},
	}
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func isStatus(err error, status int) bool {
	var statusErr *resilience.HTTPStatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == status
}
