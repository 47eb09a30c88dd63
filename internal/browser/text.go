package browser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	spaceRun      = regexp.MustCompile(`[ \t\f\v\p{Zs}]+`)
	blankLineRuns = regexp.MustCompile(`\n{3,}`)
)

// visibleText approximates a rendered element's innerText from parsed HTML:
// script and style contents are dropped, whitespace runs collapse to one
// space, lines are trimmed and at most one blank line separates blocks.
func visibleText(sel *goquery.Selection) string {
	clone := sel.Clone()
	clone.Find("script, style, noscript, template").Remove()
	return cleanText(clone.Text())
}

// cleanText normalizes line endings and whitespace while keeping line structure.
func cleanText(content string) string {
	if content == "" {
		return ""
	}

	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
	}

	result := blankLineRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(result)
}
