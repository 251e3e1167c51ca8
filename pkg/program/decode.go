package program

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Decode copies option values into a routine-specific struct. Fields are matched by
// their `option` tag, which holds the option name:
//
//	type settings struct {
//		Preset      string `option:"Pokemon"`
//		Screenshots bool   `option:"Save screenshots"`
//	}
//
// Values that arrived as JSON numbers are converted to the field's numeric type.
func Decode(values map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "option",
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create option decoder: %w", err)
	}
	if err := decoder.Decode(values); err != nil {
		return fmt.Errorf("failed to decode option values: %w", err)
	}
	return nil
}
