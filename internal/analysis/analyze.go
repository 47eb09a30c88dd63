// Package analysis derives statistics, summaries and comparisons from crawled articles.
// Everything here except Batch and Compare is a pure function of its input.
package analysis

import (
	"html"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/weixin-spider/internal/types"
)

const (
	// ReadingSpeedCPM is the assumed reading speed in characters per minute.
	ReadingSpeedCPM = 200

	// MaxKeyPhraseLength excludes emphasized spans that are really whole paragraphs.
	MaxKeyPhraseLength = 100

	// MaxKeyPhrases caps the key phrase list.
	MaxKeyPhrases = 10

	// PreviewLength is the summary preview size in characters.
	PreviewLength = 300

	// Ellipsis marks a truncated preview.
	Ellipsis = "..."
)

// These patterns scan markup rather than parse it. They are good enough for
// the flat paragraph structure article bodies use, but nested or malformed
// markup can be miscounted.
var (
	paragraphPattern = regexp.MustCompile(`(?is)<p(?:\s[^>]*)?>.*?</p>`)
	strongPattern    = regexp.MustCompile(`(?is)<strong(?:\s[^>]*)?>(.*?)</strong>`)
	tagPattern       = regexp.MustCompile(`<[^>]+>`)
)

// Analyze computes statistics for article.
func Analyze(article *types.Article) types.Stats {
	stats := types.Stats{
		WordCount:                article.WordCount,
		CharCount:                utf8.RuneCountInString(article.ContentText),
		ImageCount:               article.ImageCount(),
		EstimatedReadTimeMinutes: ReadTimeMinutes(article.WordCount),
		KeyPhrases:               []string{},
	}

	if article.ContentHTML != "" {
		stats.ParagraphCount = len(paragraphPattern.FindAllStringIndex(article.ContentHTML, -1))
		stats.KeyPhrases = KeyPhrases(article.ContentHTML)
	}
	return stats
}

// ReadTimeMinutes returns wordCount / ReadingSpeedCPM rounded to one decimal,
// ties to even.
func ReadTimeMinutes(wordCount int) float64 {
	return math.RoundToEven(float64(wordCount)/ReadingSpeedCPM*10) / 10
}

// KeyPhrases returns the text of up to MaxKeyPhrases <strong> spans in
// document order, skipping empty and overlong ones.
func KeyPhrases(contentHTML string) []string {
	phrases := []string{}
	for _, m := range strongPattern.FindAllStringSubmatch(contentHTML, -1) {
		text := strings.TrimSpace(html.UnescapeString(tagPattern.ReplaceAllString(m[1], "")))
		if text == "" || utf8.RuneCountInString(text) >= MaxKeyPhraseLength {
			continue
		}
		phrases = append(phrases, text)
		if len(phrases) == MaxKeyPhrases {
			break
		}
	}
	return phrases
}

// Summarize projects article onto a Summary with a short content preview.
func Summarize(article *types.Article) types.Summary {
	return types.Summary{
		Title:         article.Title,
		AccountName:   article.AccountName,
		Author:        article.Author,
		PublishDate:   article.PublishDate,
		WordCount:     article.WordCount,
		ImageCount:    article.ImageCount(),
		First300Chars: Preview(article.ContentText, PreviewLength),
		URL:           article.URL,
	}
}

// Preview returns the first n characters of text, followed by Ellipsis only
// when something was cut.
func Preview(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return string(runes[:n]) + Ellipsis
}
