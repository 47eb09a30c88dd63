package main

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/jonathan/weixin-spider/internal/observability"
	"github.com/jonathan/weixin-spider/internal/tools"
	"github.com/jonathan/weixin-spider/internal/types"
)

// Output formats.
const (
	formatJSON   = "json"
	formatYAML   = "yaml"
	formatPretty = "pretty"
)

func checkFormat(format string) error {
	switch format {
	case formatJSON, formatYAML, formatPretty:
		return nil
	default:
		return fmt.Errorf("unknown format %q (want json, yaml or pretty)", format)
	}
}

// render writes a tool result to w. A failed result is still written, and
// also returned as an error so the process exits non-zero.
func render(w io.Writer, format string, payload any) error {
	var err error
	switch format {
	case formatYAML:
		err = writeYAML(w, payload)
	case formatPretty:
		err = writePretty(w, payload)
	default:
		err = writeJSON(w, payload)
	}
	if err != nil {
		return err
	}

	if failed, ok := payload.(*tools.ErrorResult); ok {
		return fmt.Errorf("%s: %s", failed.Kind, failed.Error)
	}
	return nil
}

func writeJSON(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// writeYAML goes through JSON first so keys match the JSON field names.
func writeYAML(w io.Writer, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return enc.Close()
}

func writePretty(w io.Writer, payload any) error {
	p := observability.NewPrinter(w)

	switch v := payload.(type) {
	case *tools.ErrorResult:
		p.PrintError(v.Kind, v.Error)
	case *types.Summary:
		p.PrintSummary(v)
	case *types.AnalyzedArticle:
		article, err := types.ArticleFromMap(v.Content)
		if err != nil {
			return err
		}
		p.PrintArticle(article)
		p.PrintStats(&v.Analysis)
	case map[string]any:
		article, err := types.ArticleFromMap(v)
		if err != nil {
			return err
		}
		p.PrintArticle(article)
	case *types.BatchReport:
		p.PrintBatch(v)
	case *types.ComparisonReport:
		p.PrintComparison(v)
	default:
		return writeJSON(w, payload)
	}
	return nil
}
