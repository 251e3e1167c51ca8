package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
)

// OptionType discriminates the option variants on the wire.
type OptionType string

const (
	OptionSelection OptionType = "selection"
	OptionInt       OptionType = "int"
	OptionBool      OptionType = "bool"
	OptionString    OptionType = "string"
)

// Option is a typed, named, user-adjustable parameter declared by a program.
type Option interface {
	// OptionName is the unique key of the option within a program.
	OptionName() string
	// Type reports the variant.
	Type() OptionType
	// ChangeableAtRuntime reports whether the value may change while the program runs.
	ChangeableAtRuntime() bool
	// DefaultValue returns the value used when a start request omits the option.
	DefaultValue() any
	// Coerce checks that value matches the option and returns its normalized form.
	Coerce(value any) (any, error)
	// Validate checks the declaration itself.
	Validate() error
}

// OptionBase holds the fields shared by all option variants.
type OptionBase struct {
	Name                 string `json:"name"`
	Description          string `json:"description"`
	AllowChangeAtRuntime bool   `json:"allow_change_at_runtime"`
}

func (b OptionBase) OptionName() string { return b.Name }

func (b OptionBase) ChangeableAtRuntime() bool { return b.AllowChangeAtRuntime }

func (b OptionBase) validateBase() error {
	if b.Name == "" {
		return fmt.Errorf("option name must not be empty")
	}
	return nil
}

// SelectionOption lets the user pick one of a fixed set of strings.
type SelectionOption struct {
	OptionBase
	Choices           []string `json:"choices"`
	DefaultValueIndex int      `json:"default_value_index"`
}

func (o SelectionOption) Type() OptionType { return OptionSelection }

func (o SelectionOption) DefaultValue() any {
	if o.DefaultValueIndex < 0 || o.DefaultValueIndex >= len(o.Choices) {
		return nil
	}
	return o.Choices[o.DefaultValueIndex]
}

func (o SelectionOption) Coerce(value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("option %q expects a string choice, got %T", o.Name, value)
	}
	if !slices.Contains(o.Choices, s) {
		return nil, fmt.Errorf("option %q: %q is not one of %v", o.Name, s, o.Choices)
	}
	return s, nil
}

func (o SelectionOption) Validate() error {
	if err := o.validateBase(); err != nil {
		return err
	}
	if len(o.Choices) == 0 {
		return fmt.Errorf("selection option %q has no choices", o.Name)
	}
	if o.DefaultValueIndex < 0 || o.DefaultValueIndex >= len(o.Choices) {
		return fmt.Errorf("selection option %q default index %d out of range", o.Name, o.DefaultValueIndex)
	}
	return nil
}

func (o SelectionOption) MarshalJSON() ([]byte, error) {
	type alias SelectionOption
	return json.Marshal(struct {
		Type OptionType `json:"type"`
		alias
	}{OptionSelection, alias(o)})
}

// IntOption is an integer with optional inclusive bounds.
type IntOption struct {
	OptionBase
	Default  int  `json:"default_value"`
	MinValue *int `json:"min_value"`
	MaxValue *int `json:"max_value"`
}

func (o IntOption) Type() OptionType { return OptionInt }

func (o IntOption) DefaultValue() any { return o.Default }

func (o IntOption) Coerce(value any) (any, error) {
	var n int
	switch v := value.(type) {
	case int:
		n = v
	case int64:
		n = int(v)
	case float64:
		// JSON numbers decode as float64.
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("option %q expects an integer, got %v", o.Name, v)
		}
		n = int(v)
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return nil, fmt.Errorf("option %q expects an integer: %w", o.Name, err)
		}
		n = int(i)
	default:
		return nil, fmt.Errorf("option %q expects an integer, got %T", o.Name, value)
	}
	if o.MinValue != nil && n < *o.MinValue {
		return nil, fmt.Errorf("option %q: %d is below minimum %d", o.Name, n, *o.MinValue)
	}
	if o.MaxValue != nil && n > *o.MaxValue {
		return nil, fmt.Errorf("option %q: %d is above maximum %d", o.Name, n, *o.MaxValue)
	}
	return n, nil
}

func (o IntOption) Validate() error {
	if err := o.validateBase(); err != nil {
		return err
	}
	if o.MinValue != nil && o.MaxValue != nil && *o.MinValue > *o.MaxValue {
		return fmt.Errorf("int option %q has min %d above max %d", o.Name, *o.MinValue, *o.MaxValue)
	}
	if _, err := o.Coerce(o.Default); err != nil {
		return fmt.Errorf("int option %q default: %w", o.Name, err)
	}
	return nil
}

func (o IntOption) MarshalJSON() ([]byte, error) {
	type alias IntOption
	return json.Marshal(struct {
		Type OptionType `json:"type"`
		alias
	}{OptionInt, alias(o)})
}

// BoolOption is a simple on/off switch.
type BoolOption struct {
	OptionBase
	Default bool `json:"default_value"`
}

func (o BoolOption) Type() OptionType { return OptionBool }

func (o BoolOption) DefaultValue() any { return o.Default }

func (o BoolOption) Coerce(value any) (any, error) {
	b, ok := value.(bool)
	if !ok {
		return nil, fmt.Errorf("option %q expects a bool, got %T", o.Name, value)
	}
	return b, nil
}

func (o BoolOption) Validate() error { return o.validateBase() }

func (o BoolOption) MarshalJSON() ([]byte, error) {
	type alias BoolOption
	return json.Marshal(struct {
		Type OptionType `json:"type"`
		alias
	}{OptionBool, alias(o)})
}

// StringOption is free text.
type StringOption struct {
	OptionBase
	Default string `json:"default_value"`
}

func (o StringOption) Type() OptionType { return OptionString }

func (o StringOption) DefaultValue() any { return o.Default }

func (o StringOption) Coerce(value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("option %q expects a string, got %T", o.Name, value)
	}
	return s, nil
}

func (o StringOption) Validate() error { return o.validateBase() }

func (o StringOption) MarshalJSON() ([]byte, error) {
	type alias StringOption
	return json.Marshal(struct {
		Type OptionType `json:"type"`
		alias
	}{OptionString, alias(o)})
}

// ValidateOptionSet checks every declaration and that names are unique.
func ValidateOptionSet(options []Option) error {
	seen := make(map[string]struct{}, len(options))
	for _, opt := range options {
		if err := opt.Validate(); err != nil {
			return err
		}
		if _, dup := seen[opt.OptionName()]; dup {
			return fmt.Errorf("duplicate option name %q", opt.OptionName())
		}
		seen[opt.OptionName()] = struct{}{}
	}
	return nil
}

// DefaultOptionValues builds the value map a program starts with.
func DefaultOptionValues(options []Option) map[string]any {
	values := make(map[string]any, len(options))
	for _, opt := range options {
		values[opt.OptionName()] = opt.DefaultValue()
	}
	return values
}

// ValidateOptionValues type-checks values against the declared options.
// Unknown names and mismatched types fail with ErrInvalidOption; omitted options
// are filled with their defaults. The input map is never modified.
func ValidateOptionValues(options []Option, values map[string]any) (map[string]any, error) {
	byName := make(map[string]Option, len(options))
	for _, opt := range options {
		byName[opt.OptionName()] = opt
	}

	result := DefaultOptionValues(options)
	for name, raw := range values {
		opt, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown option %q", ErrInvalidOption, name)
		}
		v, err := opt.Coerce(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidOption, err)
		}
		result[name] = v
	}
	return result, nil
}

// FindOption looks up a declared option by name.
func FindOption(options []Option, name string) (Option, bool) {
	for _, opt := range options {
		if opt.OptionName() == name {
			return opt, true
		}
	}
	return nil, false
}

// IntPtr is a helper for the optional IntOption bounds.
func IntPtr(v int) *int {
	return &v
}
