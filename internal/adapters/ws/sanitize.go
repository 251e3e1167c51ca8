package ws

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aretw0/switchbot/pkg/domain"
)

// MaxInputSize bounds a single client supplied string value.
const MaxInputSize = 4096

// sanitize enforces the size limit, validates UTF-8 and strips control
// characters other than newline, tab and carriage return. Values that reach
// the program log or a dialog must not carry terminal escapes.
func sanitize(input string) (string, error) {
	if len(input) > MaxInputSize {
		return "", fmt.Errorf("%w: value of %d bytes exceeds limit of %d", domain.ErrProtocol, len(input), MaxInputSize)
	}
	if !utf8.ValidString(input) {
		return "", fmt.Errorf("%w: value is not valid UTF-8", domain.ErrProtocol)
	}

	clean := true
	for _, r := range input {
		if unsafeControl(r) {
			clean = false
			break
		}
	}
	if clean {
		return input, nil
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !unsafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

func unsafeControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r'
}

// sanitizeValues cleans the string entries of an option value map in place.
func sanitizeValues(values map[string]any) error {
	for name, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		clean, err := sanitize(s)
		if err != nil {
			return fmt.Errorf("option %q: %w", name, err)
		}
		values[name] = clean
	}
	return nil
}
