package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"workflowhr/internal/client"
	"workflowhr/internal/fieldschema"
)

var templatesCmd = &cobra.Command{
	Use:     "templates",
	Aliases: []string{"tpl"},
	Short:   "Manage document templates",
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List templates",
	RunE:  runTemplatesList,
}

var templatesGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a template",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplatesGet,
}

var templatesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a template and every document generated from it",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplatesDelete,
}

var templatesExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Download a template as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplatesExport,
}

var templatesImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Create a template from an exported JSON file",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplatesImport,
}

var templatesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a template from a theme or an HTML body",
	Long: `Create a template.

The body comes from --theme or --body-file (a blank letter otherwise).
Each --field adds a field from its label; the tag is derived from the
label. --suggested also registers the fields the theme refers to.
--insert appends a placeholder to the end of the body.`,
	RunE: runTemplatesCreate,
}

var (
	exportOutput string
	compose      composeOptions
)

func init() {
	templatesExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: server supplied name)")

	templatesCreateCmd.Flags().StringVar(&compose.Name, "name", "", "Document name")
	templatesCreateCmd.Flags().StringVar(&compose.Theme, "theme", "", "Theme to start from")
	templatesCreateCmd.Flags().StringVar(&compose.BodyFile, "body-file", "", "HTML body file")
	templatesCreateCmd.Flags().StringArrayVar(&compose.Fields, "field", nil, "Field label (repeatable)")
	templatesCreateCmd.Flags().BoolVar(&compose.Suggested, "suggested", false, "Register the fields suggested by the theme")
	templatesCreateCmd.Flags().StringArrayVar(&compose.Insert, "insert", nil, "Placeholder tag to append (repeatable)")

	templatesCmd.AddCommand(templatesListCmd)
	templatesCmd.AddCommand(templatesGetCmd)
	templatesCmd.AddCommand(templatesDeleteCmd)
	templatesCmd.AddCommand(templatesExportCmd)
	templatesCmd.AddCommand(templatesImportCmd)
	templatesCmd.AddCommand(templatesCreateCmd)
}

func parseIDArg(arg string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(arg), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return uint(id), nil
}

func runTemplatesList(cmd *cobra.Command, args []string) error {
	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		list, err := c.List(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(list) == 0 {
			fmt.Fprintln(out, "No templates yet.")
			return nil
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tFIELDS\tVERSION\tUPDATED")
		for _, t := range list {
			fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\n", t.ID, t.DocumentName, t.FieldCount, t.Version, t.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	})
}

func runTemplatesGet(cmd *cobra.Command, args []string) error {
	id, err := parseIDArg(args[0])
	if err != nil {
		return err
	}
	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		tpl, err := c.Get(ctx, id)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s (id %d, version %d)\n\nFields:\n", tpl.DocumentName, tpl.ID, tpl.Version)
		for _, f := range tpl.FieldTags {
			fmt.Fprintf(out, "  {{%s}}  %s\n", f.Tag, f.Label)
		}
		fmt.Fprintf(out, "\nContent:\n%s\n", tpl.Content)
		printCoverage(out, fieldschema.CheckCoverage(tpl.Content, tpl.FieldTags))
		return nil
	})
}

func runTemplatesDelete(cmd *cobra.Command, args []string) error {
	id, err := parseIDArg(args[0])
	if err != nil {
		return err
	}
	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		if err := c.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Template %d deleted.\n", id)
		return nil
	})
}

func runTemplatesExport(cmd *cobra.Command, args []string) error {
	id, err := parseIDArg(args[0])
	if err != nil {
		return err
	}
	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		file, err := c.Export(ctx, id)
		if err != nil {
			return err
		}
		path, err := writeDownload(file, exportOutput, fmt.Sprintf("template_%d.json", id))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", path)
		return nil
	})
}

func runTemplatesImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		tpl, err := c.Import(ctx, filepath.Base(args[0]), data)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Imported %q as template %d.\n", tpl.DocumentName, tpl.ID)
		if tpl.Warnings != nil {
			printCoverage(out, *tpl.Warnings)
		}
		return nil
	})
}

func runTemplatesCreate(cmd *cobra.Command, args []string) error {
	in, err := composeTemplate(compose, nil)
	if err != nil {
		var verr *fieldschema.ValidationError
		if errors.As(err, &verr) {
			for _, v := range verr.Violations {
				fmt.Fprintln(cmd.ErrOrStderr(), "-", v.Message)
			}
			return errors.New("template is not valid")
		}
		return err
	}
	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		tpl, err := c.Create(ctx, in)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Created %q as template %d.\n", tpl.DocumentName, tpl.ID)
		if tpl.Warnings != nil {
			printCoverage(out, *tpl.Warnings)
		}
		return nil
	})
}

// printCoverage 占位符覆盖问题只提示，不阻止保存。
func printCoverage(out io.Writer, cov fieldschema.Coverage) {
	if len(cov.Missing) > 0 {
		fmt.Fprintf(out, "Warning: placeholders without a field: %s\n", strings.Join(cov.Missing, ", "))
	}
	if len(cov.Unused) > 0 {
		fmt.Fprintf(out, "Warning: fields not used in the content: %s\n", strings.Join(cov.Unused, ", "))
	}
}

func writeDownload(file *client.File, output, fallback string) (string, error) {
	path := output
	if path == "" {
		path = filepath.Base(file.Filename)
		if path == "" || path == "." || path == "/" {
			path = fallback
		}
	}
	if err := os.WriteFile(path, file.Data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
