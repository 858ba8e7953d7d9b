package domain

import "time"

const CategoryUnknown = "unknown"

// Categories is the fixed classification vocabulary shared by the indexer and
// brand category weights.
var Categories = []string{
	"technology",
	"healthcare",
	"lifestyle",
	"business",
	"finance",
	"entertainment",
	"sports",
	"science",
	"education",
	"environment",
}

func IsKnownCategory(category string) bool {
	if category == CategoryUnknown {
		return true
	}
	for _, known := range Categories {
		if known == category {
			return true
		}
	}
	return false
}

type DocumentMetadata struct {
	Title             string `json:"title,omitempty"`
	OriginalWordCount int    `json:"original_word_count,omitempty"`
	SummaryWordCount  int    `json:"summary_word_count,omitempty"`
}

// Document is a searchable unit held by the vector index and the lexical index.
// Vector is only populated when the index returns stored vectors.
type Document struct {
	ArticleID string           `json:"article_id"`
	Text      string           `json:"text"`
	Category  string           `json:"category"`
	Metadata  DocumentMetadata `json:"metadata"`
	Vector    []float32        `json:"-"`
}

type DenseMatch struct {
	Document Document
	Distance float64
}

type Article struct {
	ArticleID   string     `json:"article_id"`
	Title       string     `json:"title"`
	Summary     string     `json:"summary"`
	Category    string     `json:"category"`
	Source      string     `json:"source,omitempty"`
	URL         string     `json:"url,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (a Article) Document() Document {
	category := a.Category
	if category == "" {
		category = CategoryUnknown
	}
	return Document{
		ArticleID: a.ArticleID,
		Text:      a.Summary,
		Category:  category,
		Metadata: DocumentMetadata{
			Title:            a.Title,
			SummaryWordCount: WordCount(a.Summary),
		},
	}
}
