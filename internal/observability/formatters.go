// Package observability provides formatted output utilities for the CLI's pretty mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/jonathan/weixin-spider/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// innerWidth is the printable width between the box borders
	innerWidth = boxWidth - 4
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
	// maxPreviewLines bounds the wrapped content preview
	maxPreviewLines = 6
)

// Printer handles formatted output for pretty mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// fit pads or truncates s to exactly width display columns. CJK runes
// occupy two columns, so byte or rune lengths would misalign the border.
func fit(s string, width int) string {
	if runewidth.StringWidth(s) > width {
		s = runewidth.Truncate(s, width, "...")
	}
	return runewidth.FillRight(s, width)
}

// clip shortens s to width columns without padding.
func clip(s string, width int) string {
	return runewidth.Truncate(s, width, "...")
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %s │\n", fit(title, innerWidth))
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %s │\n", fit(line, innerWidth))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

func writeHeadline(sb *strings.Builder, title, account, author, date string) {
	fmt.Fprintf(sb, "Title:    %s\n", orDash(title))
	fmt.Fprintf(sb, "Account:  %s\n", orDash(account))
	fmt.Fprintf(sb, "Author:   %s\n", orDash(author))
	fmt.Fprintf(sb, "Date:     %s\n", orDash(date))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// wrapPreview flattens whitespace and wraps text to the box width.
func wrapPreview(text string) []string {
	flat := strings.Join(strings.Fields(text), " ")
	if flat == "" {
		return nil
	}
	lines := strings.Split(runewidth.Wrap(flat, innerWidth), "\n")
	if len(lines) > maxPreviewLines {
		lines = lines[:maxPreviewLines]
		lines[maxPreviewLines-1] = clip(lines[maxPreviewLines-1]+" ...", innerWidth)
	}
	return lines
}

// PrintSummary outputs the headline fields and preview of one article.
func (p *Printer) PrintSummary(summary *types.Summary) {
	if summary == nil {
		return
	}

	var sb strings.Builder
	writeHeadline(&sb, summary.Title, summary.AccountName, summary.Author, summary.PublishDate)
	fmt.Fprintf(&sb, "Words:    %d    Images: %d\n", summary.WordCount, summary.ImageCount)
	fmt.Fprintf(&sb, "URL:      %s\n", summary.URL)

	if preview := wrapPreview(summary.First300Chars); len(preview) > 0 {
		sb.WriteString("\n")
		sb.WriteString(strings.Join(preview, "\n"))
	}

	p.printBox("ARTICLE SUMMARY", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintArticle outputs an extracted article with its image list.
func (p *Printer) PrintArticle(article *types.Article) {
	if article == nil {
		return
	}

	var sb strings.Builder
	writeHeadline(&sb, article.Title, article.AccountName, article.Author, article.PublishDate)
	fmt.Fprintf(&sb, "Words:    %d\n", article.WordCount)
	fmt.Fprintf(&sb, "Crawled:  %s\n", article.CrawlTimestamp)

	if len(article.Images) > 0 {
		fmt.Fprintf(&sb, "\nImages (%d):\n", len(article.Images))
		count := min(len(article.Images), maxItemsToShow)
		for i := 0; i < count; i++ {
			img := article.Images[i]
			ref := img.URL
			if img.LocalPath != "" {
				ref = img.LocalPath
			}
			fmt.Fprintf(&sb, "  %d. %s\n", img.Index, clip(ref, innerWidth-6))
		}
		if len(article.Images) > maxItemsToShow {
			fmt.Fprintf(&sb, "  ... and %d more\n", len(article.Images)-maxItemsToShow)
		}
	}

	if preview := wrapPreview(article.ContentText); len(preview) > 0 {
		sb.WriteString("\n")
		sb.WriteString(strings.Join(preview, "\n"))
	}

	p.printBox("ARTICLE", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintStats outputs content statistics.
func (p *Printer) PrintStats(stats *types.Stats) {
	if stats == nil {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Words:       %d\n", stats.WordCount)
	fmt.Fprintf(&sb, "Characters:  %d\n", stats.CharCount)
	fmt.Fprintf(&sb, "Images:      %d\n", stats.ImageCount)
	fmt.Fprintf(&sb, "Paragraphs:  %d\n", stats.ParagraphCount)
	fmt.Fprintf(&sb, "Read time:   %.1f min\n", stats.EstimatedReadTimeMinutes)

	if len(stats.KeyPhrases) > 0 {
		sb.WriteString("\nKey phrases:\n")
		for _, phrase := range stats.KeyPhrases {
			fmt.Fprintf(&sb, "  • %s\n", clip(phrase, innerWidth-4))
		}
	}

	p.printBox("CONTENT ANALYSIS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintComparison outputs both rankings of a comparison and its failures.
func (p *Printer) PrintComparison(report *types.ComparisonReport) {
	if report == nil {
		return
	}

	var sb strings.Builder
	stats := report.Comparison.Stats
	fmt.Fprintf(&sb, "Analyzed %d of %d articles, avg %.1f words\n",
		stats.SuccessfullyAnalyzed, stats.TotalArticles, stats.AvgWordCount)

	writeRanking(&sb, "By word count:", report.Comparison.ByWordCount, func(a types.ComparedArticle) int {
		return a.Analysis.WordCount
	})
	writeRanking(&sb, "By image count:", report.Comparison.ByImageCount, func(a types.ComparedArticle) int {
		return a.Analysis.ImageCount
	})
	writeErrors(&sb, report.Errors)

	p.printBox("ARTICLE COMPARISON", strings.TrimSuffix(sb.String(), "\n"))
}

func writeRanking(sb *strings.Builder, heading string, ranked []types.ComparedArticle, metric func(types.ComparedArticle) int) {
	if len(ranked) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n%s\n", heading)
	for i, a := range ranked {
		label := fmt.Sprintf("#%d %6d  ", i+1, metric(a))
		fmt.Fprintf(sb, "%s%s\n", label, clip(orDash(a.Summary.Title), innerWidth-runewidth.StringWidth(label)))
	}
}

func writeErrors(sb *strings.Builder, errs []types.URLError) {
	if len(errs) == 0 {
		return
	}
	fmt.Fprintf(sb, "\nFailed (%d):\n", len(errs))
	for _, e := range errs {
		fmt.Fprintf(sb, "⚠ %s\n", clip(e.URL, innerWidth-2))
		fmt.Fprintf(sb, "  %s: %s\n", e.Kind, e.Error)
	}
}

// PrintBatch outputs per-URL results of a batch crawl.
func (p *Printer) PrintBatch(report *types.BatchReport) {
	if report == nil {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Total: %d    Success: %d    Failed: %d\n", report.Total, report.Success, report.Failed)

	if len(report.Articles) > 0 {
		sb.WriteString("\n")
		for _, s := range report.Articles {
			fmt.Fprintf(&sb, "✓ %s\n", clip(orDash(s.Title), innerWidth-2))
			fmt.Fprintf(&sb, "  %s · %d words · %d images\n", orDash(s.AccountName), s.WordCount, s.ImageCount)
		}
	}
	writeErrors(&sb, report.Errors)

	p.printBox("BATCH CRAWL", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintError outputs a failed operation.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintError(kind, message string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %s │\n", fit("✖ "+kind, innerWidth))
	for _, line := range strings.Split(runewidth.Wrap(message, innerWidth), "\n") {
		fmt.Fprintf(p.out, "│ %s │\n", fit(line, innerWidth))
	}
	fmt.Fprintf(p.out, "└%s┘\n", border)
}
