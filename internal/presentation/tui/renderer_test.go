package tui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/switchbot/pkg/domain"
)

func TestCatalogMarkdown(t *testing.T) {
	md := CatalogMarkdown([]domain.ProgramMetadata{
		{
			Name:        "Test Program",
			Description: "Only used for testing",
			Options: []domain.Option{
				domain.StringOption{
					OptionBase: domain.OptionBase{Name: "Text", AllowChangeAtRuntime: true},
					Default:    "hi",
				},
			},
		},
		{Name: "Bare"},
	})

	assert.Contains(t, md, "## Test Program\n\nOnly used for testing")
	assert.Contains(t, md, "| Text | string | `hi` | yes |")
	assert.Contains(t, md, "## Bare")
}

func TestCatalogMarkdown_Empty(t *testing.T) {
	assert.Contains(t, CatalogMarkdown(nil), "No programs")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "1.2.3", "0.0.0.0:8765")
	assert.Contains(t, buf.String(), "v1.2.3")
	assert.Contains(t, buf.String(), "listening on 0.0.0.0:8765")
}

func TestNewRenderer(t *testing.T) {
	out, err := NewRenderer()("# Title")
	assert.NoError(t, err)
	assert.Contains(t, out, "Title")
}
