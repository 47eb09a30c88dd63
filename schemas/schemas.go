// Package schemas embeds the JSON Schemas for every document the tools emit.
package schemas

import "embed"

// Document schema names.
const (
	Article    = "article"
	Summary    = "summary"
	Analysis   = "analysis"
	Comparison = "comparison"
	Batch      = "batch"
	Error      = "error"
)

// Names lists every embedded schema.
var Names = []string{Article, Summary, Analysis, Comparison, Batch, Error}

//go:embed *.schema.json
var files embed.FS

// Read returns the schema document for name.
func Read(name string) ([]byte, error) {
	return files.ReadFile(name + ".schema.json")
}
