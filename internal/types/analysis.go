// Package types provides type definitions for structured data used throughout the weixin-spider system.
package types

// Stats holds derived statistics for one article.
type Stats struct {
	WordCount                int      `json:"word_count"`
	CharCount                int      `json:"char_count"`
	ImageCount               int      `json:"image_count"`
	ParagraphCount           int      `json:"paragraph_count"`
	EstimatedReadTimeMinutes float64  `json:"estimated_read_time_minutes"`
	KeyPhrases               []string `json:"key_phrases"`
}

// Summary is a short projection of an article with a content preview.
type Summary struct {
	Title         string `json:"title"`
	AccountName   string `json:"account_name"`
	Author        string `json:"author"`
	PublishDate   string `json:"publish_date"`
	WordCount     int    `json:"word_count"`
	ImageCount    int    `json:"image_count"`
	First300Chars string `json:"first_300_chars"`
	URL           string `json:"url"`
}

// AnalyzedArticle pairs an article with its analysis.
type AnalyzedArticle struct {
	Content  map[string]any `json:"content"`
	Analysis Stats          `json:"analysis"`
}

// URLError records a failed crawl inside a batch or comparison.
type URLError struct {
	URL   string `json:"url"`
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// ComparedArticle is one successfully analyzed entry of a comparison.
type ComparedArticle struct {
	Summary  Summary `json:"summary"`
	Analysis Stats   `json:"analysis"`
}

// ComparisonStats aggregates a comparison.
type ComparisonStats struct {
	TotalArticles        int     `json:"total_articles"`
	SuccessfullyAnalyzed int     `json:"successfully_analyzed"`
	AvgWordCount         float64 `json:"avg_word_count"`
}

// Comparison holds the ranked views of a comparison.
type Comparison struct {
	ByWordCount  []ComparedArticle `json:"by_word_count"`
	ByImageCount []ComparedArticle `json:"by_image_count"`
	Stats        ComparisonStats   `json:"stats"`
}

// ComparisonReport is the result of comparing 2-5 articles.
type ComparisonReport struct {
	Articles   []ComparedArticle `json:"articles"`
	Errors     []URLError        `json:"errors"`
	Comparison Comparison        `json:"comparison"`
	Kind       string            `json:"kind,omitempty"` // "PartialFailure" when some URLs failed
}

// BatchReport is the result of crawling a list of articles.
type BatchReport struct {
	Total    int        `json:"total"`
	Success  int        `json:"success"`
	Failed   int        `json:"failed"`
	Articles []Summary  `json:"articles"`
	Errors   []URLError `json:"errors"`
	Kind     string     `json:"kind,omitempty"`
}
