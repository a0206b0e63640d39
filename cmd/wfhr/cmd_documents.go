package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"workflowhr/internal/client"
	"workflowhr/internal/themes"
)

var themesCmd = &cobra.Command{
	Use:   "themes [name]",
	Short: "List the built-in themes, or print one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runThemes,
}

var previewCmd = &cobra.Command{
	Use:   "preview <template-id>",
	Short: "Fill a template and print the preview HTML",
	Long: `Fill a template and print the result. Fields without a value are
shown as [Label].`,
	Args: cobra.ExactArgs(1),
	RunE: runPreview,
}

var generateCmd = &cobra.Command{
	Use:   "generate <template-id>",
	Short: "Generate a PDF from a template",
	Args:  cobra.ExactArgs(1),
	RunE:  runGenerate,
}

var (
	fieldSets      []string
	valuesFile     string
	generateOutput string
)

func init() {
	for _, c := range []*cobra.Command{previewCmd, generateCmd} {
		c.Flags().StringArrayVar(&fieldSets, "set", nil, "Field value as tag=value (repeatable)")
		c.Flags().StringVar(&valuesFile, "values", "", "JSON file with field values")
	}
	generateCmd.Flags().StringVarP(&generateOutput, "output", "o", "", "Output file (default: server supplied name)")
}

// fieldValues merges --values and --set; --set wins.
func fieldValues(sets []string, file string) (map[string]string, error) {
	values := map[string]string{}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read values: %w", err)
		}
		if err := json.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("parse values: %w", err)
		}
	}
	for _, s := range sets {
		tag, value, ok := strings.Cut(s, "=")
		tag = strings.TrimSpace(tag)
		if !ok || tag == "" {
			return nil, fmt.Errorf("invalid --set %q, want tag=value", s)
		}
		values[tag] = value
	}
	return values, nil
}

// themes is a static catalog and needs no login.
func runThemes(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if len(args) == 1 {
		theme, err := themes.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, theme.Template)
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Suggested fields:")
		for _, f := range themes.SuggestedFields(theme) {
			fmt.Fprintf(out, "  {{%s}}  %s\n", f.Tag, f.Label)
		}
		return nil
	}
	for _, t := range themes.List() {
		fmt.Fprintf(out, "%-24s %s\n", t.Name, t.Description)
	}
	return nil
}

func runPreview(cmd *cobra.Command, args []string) error {
	id, err := parseIDArg(args[0])
	if err != nil {
		return err
	}
	values, err := fieldValues(fieldSets, valuesFile)
	if err != nil {
		return err
	}
	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		p, err := c.Preview(ctx, id, values)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, p.Content)
		printCoverage(out, p.Warnings)
		return nil
	})
}

func runGenerate(cmd *cobra.Command, args []string) error {
	id, err := parseIDArg(args[0])
	if err != nil {
		return err
	}
	values, err := fieldValues(fieldSets, valuesFile)
	if err != nil {
		return err
	}
	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		file, err := c.Generate(ctx, id, values)
		if err != nil {
			return err
		}
		path, err := writeDownload(file, generateOutput, fmt.Sprintf("document_%d.pdf", id))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d bytes)\n", path, len(file.Data))
		return nil
	})
}
