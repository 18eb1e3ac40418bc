// Package cfg decodes loosely typed driver sections (the maps under
// [sandbox.store.drivers.<name>]) into typed option structs.
package cfg

import (
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"
)

// Setter is implemented by option structs that fill in their own defaults.
type Setter interface {
	ApplyDefaults()
}

// Decode decodes input into the struct pointed to by c.
// If c implements Setter, ApplyDefaults is called after decoding.
func Decode(input map[string]any, c any) error {
	_, err := DecodeWithUnused(input, c)
	return err
}

// DecodeWithUnused decodes input into c and returns the keys that did not
// map onto any field, sorted. Callers log these so typos do not go unnoticed.
func DecodeWithUnused(input map[string]any, c any) ([]string, error) {
	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata:         &md,
		Result:           c,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(input); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}

	if s, ok := c.(Setter); ok {
		s.ApplyDefaults()
	}

	unused := md.Unused
	sort.Strings(unused)
	return unused, nil
}
