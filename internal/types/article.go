// Package types provides type definitions for structured data used throughout the weixin-spider system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"
)

// Image is one embedded picture of an article, in document order.
type Image struct {
	Index     int    `json:"index"`
	URL       string `json:"url"`
	Alt       string `json:"alt"`
	LocalPath string `json:"local_path,omitempty"` // Set only when the image was downloaded
}

// Article is one crawled document.
//
// URL and CrawlTimestamp are set by NewArticle and are not changed afterwards.
// Content fields go through SetContent so WordCount always matches ContentText.
type Article struct {
	URL            string  `json:"url"`
	Title          string  `json:"title"`
	Author         string  `json:"author"`
	AccountName    string  `json:"account_name"`
	PublishDate    string  `json:"publish_date"`
	ContentHTML    string  `json:"content_html"`
	ContentText    string  `json:"content_text"`
	Images         []Image `json:"images"`
	WordCount      int     `json:"word_count"`
	CrawlTimestamp string  `json:"crawl_timestamp"` // RFC3339 format
}

// NewArticle creates an empty article for url stamped with now.
func NewArticle(url string, now time.Time) *Article {
	return &Article{
		URL:            url,
		Images:         []Image{},
		CrawlTimestamp: now.Format(time.RFC3339),
	}
}

// SetContent stores the body HTML and text and recomputes WordCount.
// Length is counted in characters, not bytes, since article bodies are mostly CJK.
func (a *Article) SetContent(html, text string) {
	a.ContentHTML = html
	a.ContentText = text
	a.WordCount = utf8.RuneCountInString(text)
}

// AddImage appends an image and assigns it the next contiguous index.
func (a *Article) AddImage(url, alt string) {
	a.Images = append(a.Images, Image{
		Index: len(a.Images),
		URL:   url,
		Alt:   alt,
	})
}

// ImageCount returns the number of images on the article.
func (a *Article) ImageCount() int {
	return len(a.Images)
}

// ToMap converts the article to a generic map using the JSON field names.
func (a *Article) ToMap() map[string]any {
	images := make([]map[string]any, 0, len(a.Images))
	for _, img := range a.Images {
		m := map[string]any{
			"index": img.Index,
			"url":   img.URL,
			"alt":   img.Alt,
		}
		if img.LocalPath != "" {
			m["local_path"] = img.LocalPath
		}
		images = append(images, m)
	}

	return map[string]any{
		"url":             a.URL,
		"title":           a.Title,
		"author":          a.Author,
		"account_name":    a.AccountName,
		"publish_date":    a.PublishDate,
		"content_html":    a.ContentHTML,
		"content_text":    a.ContentText,
		"images":          images,
		"word_count":      a.WordCount,
		"crawl_timestamp": a.CrawlTimestamp,
	}
}

// ArticleFromMap rebuilds an article from the output of ToMap, or from the
// same document after a trip through encoding/json.
func ArticleFromMap(m map[string]any) (*Article, error) {
	a := &Article{Images: []Image{}}

	strFields := map[string]*string{
		"url":             &a.URL,
		"title":           &a.Title,
		"author":          &a.Author,
		"account_name":    &a.AccountName,
		"publish_date":    &a.PublishDate,
		"content_html":    &a.ContentHTML,
		"content_text":    &a.ContentText,
		"crawl_timestamp": &a.CrawlTimestamp,
	}
	for key, dst := range strFields {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("field %q: expected string, got %T", key, v)
		}
		*dst = s
	}

	if v, ok := m["word_count"]; ok && v != nil {
		n, err := toInt(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", "word_count", err)
		}
		a.WordCount = n
	}

	var rawImages []any
	switch imgs := m["images"].(type) {
	case nil:
	case []any:
		rawImages = imgs
	case []map[string]any:
		for _, img := range imgs {
			rawImages = append(rawImages, img)
		}
	default:
		return nil, fmt.Errorf("field %q: expected list, got %T", "images", imgs)
	}

	for i, raw := range rawImages {
		im, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("images[%d]: expected object, got %T", i, raw)
		}
		img := Image{}
		if v, ok := im["index"]; ok {
			n, err := toInt(v)
			if err != nil {
				return nil, fmt.Errorf("images[%d].index: %w", i, err)
			}
			img.Index = n
		}
		img.URL, _ = im["url"].(string)
		img.Alt, _ = im["alt"].(string)
		img.LocalPath, _ = im["local_path"].(string)
		a.Images = append(a.Images, img)
	}

	return a, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		return int(i), err
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}
