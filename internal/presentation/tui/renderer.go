package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/aretw0/switchbot/pkg/domain"
)

// NewRenderer returns a function that renders markdown using glamour.
// Output is plain markdown when the terminal renderer cannot be created.
func NewRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}
	return r.Render
}

// CatalogMarkdown describes programs and their options as markdown.
func CatalogMarkdown(programs []domain.ProgramMetadata) string {
	var b strings.Builder
	b.WriteString("# Programs\n\n")
	if len(programs) == 0 {
		b.WriteString("_No programs are registered._\n")
		return b.String()
	}
	for _, p := range programs {
		fmt.Fprintf(&b, "## %s\n\n", p.Name)
		if p.Description != "" {
			fmt.Fprintf(&b, "%s\n\n", p.Description)
		}
		if len(p.Options) == 0 {
			continue
		}
		b.WriteString("| Option | Type | Default | Runtime |\n|---|---|---|---|\n")
		for _, o := range p.Options {
			runtime := ""
			if o.ChangeableAtRuntime() {
				runtime = "yes"
			}
			fmt.Fprintf(&b, "| %s | %s | `%v` | %s |\n", o.OptionName(), o.Type(), o.DefaultValue(), runtime)
		}
		b.WriteString("\n")
	}
	return b.String()
}
