package ws

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/switchbot/pkg/domain"
)

func TestSanitize_SizeLimit(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"Under Limit", MaxInputSize - 1, false},
		{"Exact Limit", MaxInputSize, false},
		{"Over Limit", MaxInputSize + 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sanitize(strings.Repeat("a", tt.size))
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrProtocol)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitize_ControlChars(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Normal Text", "Hello World", "Hello World"},
		{"Safe Controls", "Line1\nLine2\tTabbed", "Line1\nLine2\tTabbed"},
		{"ANSI Code", "\x1b[31mRed\x1b[0m", "[31mRed[0m"},
		{"Null Byte", "Null\x00Byte", "NullByte"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sanitize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestSanitize_InvalidUTF8(t *testing.T) {
	_, err := sanitize("bad\xff")
	assert.ErrorIs(t, err, domain.ErrProtocol)
}

func TestSanitizeValues(t *testing.T) {
	values := map[string]any{"Text": "hi\x07", "Count": 3.0}
	require.NoError(t, sanitizeValues(values))
	assert.Equal(t, map[string]any{"Text": "hi", "Count": 3.0}, values)

	err := sanitizeValues(map[string]any{"Text": strings.Repeat("x", MaxInputSize+1)})
	assert.ErrorIs(t, err, domain.ErrProtocol)
}
