package domain

// ProgramMetadata describes a loaded program for listing and start requests.
type ProgramMetadata struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Options     []Option `json:"options"`
}

// Validate checks the program name and its option declarations.
func (m ProgramMetadata) Validate() error {
	if m.Name == "" {
		return ErrInvalidProgram
	}
	return ValidateOptionSet(m.Options)
}
