package main

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/weixin-spider/internal/schemas"
	docs "github.com/jonathan/weixin-spider/schemas"
)

func newValidateCmd(_ *cli) *cobra.Command {
	var schemaPath string

	cmd := &cobra.Command{
		Use:   "validate <kind> <file> | validate --schema <schema.json> <file>",
		Short: "Validate a saved JSON result against its schema",
		Long: fmt.Sprintf("Validates a JSON document produced by a tool call. Kinds: %s.\n"+
			"With --schema the document is checked against that JSON Schema file instead.", strings.Join(docs.Names, ", ")),
		Args: func(cmd *cobra.Command, args []string) error {
			if schemaPath != "" {
				return cobra.ExactArgs(1)(cmd, args)
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if schemaPath != "" {
				path := args[0]
				if err := validateAgainst(schemaPath, path); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ %s matches %s\n", path, schemaPath)
				return nil
			}

			kind, path := args[0], args[1]
			if !slices.Contains(docs.Names, kind) {
				return fmt.Errorf("unknown kind %q (want one of %s)", kind, strings.Join(docs.Names, ", "))
			}

			if err := schemas.ValidateFile(kind, path); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is a valid %s document\n", path, kind)
			return nil
		},
	}

	cmd.Flags().StringVar(&schemaPath, "schema", "", "JSON Schema file to validate against instead of a built-in kind")
	return cmd
}

func validateAgainst(schemaPath, path string) error {
	schema, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("failed to read schema %s: %w", schemaPath, err)
	}
	doc, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return schemas.ValidateJSONString(string(schema), string(doc))
}
