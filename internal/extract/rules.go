// Package extract turns a rendered article page into a types.Article.
package extract

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jonathan/weixin-spider/internal/crawlerr"
)

// Rules holds the page-specific knowledge the extractor relies on.
// Every value can be overridden from configuration.
type Rules struct {
	AllowedHosts     []string
	ChallengeMarkers []string

	TitleSelectors   []string
	AuthorSelectors  []string
	AccountSelectors []string
	DateSelectors    []string

	ContentSelector string
	ImageSelector   string
	ImageAttributes []string // Tried in order; lazy-load attribute first

	// ChallengeSelector is queried for challenge markers.
	ChallengeSelector string

	// SettleDelay lets late scripts finish after the content appears.
	SettleDelay time.Duration
}

// DefaultRules returns the rules for mp.weixin.qq.com article pages.
func DefaultRules() Rules {
	return Rules{
		AllowedHosts:     []string{"mp.weixin.qq.com", "weixin.qq.com"},
		ChallengeMarkers: []string{"环境异常", "完成验证"},
		TitleSelectors: []string{
			"h1.rich_media_title",
			"#activity-name",
			"h1",
		},
		AuthorSelectors: []string{
			"span.rich_media_meta.rich_media_meta_text",
			"#js_name",
			".profile_nickname",
		},
		AccountSelectors: []string{
			"#js_name",
			".profile_nickname",
			"a.weui-wa-hotarea",
		},
		DateSelectors: []string{
			"#publish_time",
			"em.rich_media_meta.rich_media_meta_text",
			".rich_media_meta_list em",
		},
		ContentSelector:   "#js_content",
		ImageSelector:     "#js_content img",
		ImageAttributes:   []string{"data-src", "src"},
		ChallengeSelector: "body",
		SettleDelay:       2 * time.Second,
	}
}

// ValidateURL checks that rawURL is an http(s) URL on an allowed host.
func (r Rules) ValidateURL(rawURL string) error {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return &crawlerr.ValidationError{Field: "url", Message: "url is required"}
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return &crawlerr.ValidationError{Field: "url", Message: fmt.Sprintf("invalid url: %v", err)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &crawlerr.ValidationError{Field: "url", Message: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}

	host := strings.ToLower(u.Hostname())
	for _, allowed := range r.AllowedHosts {
		if host == strings.ToLower(allowed) {
			return nil
		}
	}
	return &crawlerr.ValidationError{
		Field:   "url",
		Message: fmt.Sprintf("host %q is not an allowed article host", u.Hostname()),
	}
}

// FindChallenge returns the first challenge marker contained in text, or "".
func (r Rules) FindChallenge(text string) string {
	for _, marker := range r.ChallengeMarkers {
		if marker != "" && strings.Contains(text, marker) {
			return marker
		}
	}
	return ""
}
