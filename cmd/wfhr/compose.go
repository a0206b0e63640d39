package main

import (
	"fmt"
	"os"

	"workflowhr/internal/client"
	"workflowhr/internal/document"
	"workflowhr/internal/fieldschema"
	"workflowhr/internal/richtext"
	"workflowhr/internal/themes"
)

// composeOptions describe a new template assembled on the command line.
type composeOptions struct {
	Name      string
	Theme     string
	BodyFile  string
	Fields    []string
	Suggested bool
	Insert    []string
}

// composeTemplate builds the create request the way the editor would:
// load the theme or body, append placeholders at the end of the document
// and register fields one label at a time.
func composeTemplate(opts composeOptions, readFile func(string) ([]byte, error)) (client.TemplateInput, error) {
	if readFile == nil {
		readFile = os.ReadFile
	}

	content := document.BlankContent
	var suggested []fieldschema.FieldTag
	switch {
	case opts.Theme != "" && opts.BodyFile != "":
		return client.TemplateInput{}, fmt.Errorf("--theme and --body-file are mutually exclusive")
	case opts.Theme != "":
		theme, err := themes.Get(opts.Theme)
		if err != nil {
			return client.TemplateInput{}, err
		}
		content = theme.Template
		suggested = themes.SuggestedFields(theme)
	case opts.BodyFile != "":
		data, err := readFile(opts.BodyFile)
		if err != nil {
			return client.TemplateInput{}, fmt.Errorf("read body: %w", err)
		}
		content = string(data)
	}

	editor, err := richtext.NewEditor(content, nil)
	if err != nil {
		return client.TemplateInput{}, fmt.Errorf("parse body: %w", err)
	}
	for _, tag := range opts.Insert {
		end := editor.Document().Len()
		editor.Select(end, end)
		editor.InsertPlaceholder(tag)
	}

	schema := fieldschema.New()
	n := 0
	next := func() int {
		if n > 0 {
			schema.Add()
		}
		n++
		return schema.Len() - 1
	}
	for _, label := range opts.Fields {
		if err := schema.Update(next(), fieldschema.AttrLabel, label); err != nil {
			return client.TemplateInput{}, err
		}
	}
	if opts.Suggested {
		for _, f := range suggested {
			i := next()
			if err := schema.Update(i, fieldschema.AttrLabel, f.Label); err != nil {
				return client.TemplateInput{}, err
			}
			if err := schema.Update(i, fieldschema.AttrTag, f.Tag); err != nil {
				return client.TemplateInput{}, err
			}
		}
	}

	in := client.TemplateInput{
		DocumentName: opts.Name,
		FieldTags:    schema.Fields(),
		Content:      editor.HTML(),
	}
	if err := fieldschema.Validate(in.DocumentName, in.Content, in.FieldTags); err != nil {
		return client.TemplateInput{}, err
	}
	return in, nil
}
