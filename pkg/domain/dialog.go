package domain

import "fmt"

// Dialog is a question posed to the remote operator.
type Dialog struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Buttons []string `json:"buttons"`
	IsModal bool     `json:"is_modal"`
}

// NewDialog creates a modal dialog with the given answer labels.
func NewDialog(title, content string, buttons ...string) Dialog {
	return Dialog{
		Title:   title,
		Content: content,
		Buttons: buttons,
		IsModal: true,
	}
}

// Validate checks that the dialog offers at least one answer and no duplicates.
func (d Dialog) Validate() error {
	if len(d.Buttons) == 0 {
		return fmt.Errorf("%w: dialog %q has no buttons", ErrInvalidDialog, d.Title)
	}
	seen := make(map[string]struct{}, len(d.Buttons))
	for _, b := range d.Buttons {
		if _, dup := seen[b]; dup {
			return fmt.Errorf("%w: dialog %q has duplicate button %q", ErrInvalidDialog, d.Title, b)
		}
		seen[b] = struct{}{}
	}
	return nil
}

// HasButton reports whether label is one of the dialog's answers.
func (d Dialog) HasButton(label string) bool {
	for _, b := range d.Buttons {
		if b == label {
			return true
		}
	}
	return false
}

// Clone returns a copy that does not share the button slice.
func (d Dialog) Clone() Dialog {
	d.Buttons = append([]string(nil), d.Buttons...)
	return d
}
