package netsuke

import (
	"fmt"
	"reflect"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"
)

// StringOrList is a sum type with three variants: absent, a single string,
// or a sequence of strings. It appears wherever the manifest format allows
// a scalar as shorthand for a one-element list. Deserialisation is
// order-preserving: a sequence `[b, a]` stays `[b, a]`.
type StringOrList struct {
	present bool
	values  []string
}

// Absent reports whether the field was omitted from the manifest entirely.
func (s StringOrList) Absent() bool { return !s.present }

// Slice returns the values in manifest order. An absent or empty
// StringOrList returns nil, never a non-nil empty slice, so callers can use
// len() without special-casing the absent variant.
func (s StringOrList) Slice() []string {
	if !s.present || len(s.values) == 0 {
		return nil
	}
	return s.values
}

// NewStringOrList builds a StringOrList directly from a slice, useful when
// constructing synthetic targets during template expansion.
func NewStringOrList(values ...string) StringOrList {
	return StringOrList{present: len(values) > 0, values: values}
}

// UnmarshalYAML implements yaml.Unmarshaler so a StringOrList can appear
// directly in structs decoded straight from YAML. The manifest pipeline
// itself decodes through stringOrListHookFunc below instead.
func (s *StringOrList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var single string
		if err := value.Decode(&single); err != nil {
			return err
		}
		*s = StringOrList{present: true, values: []string{single}}
		return nil
	case yaml.SequenceNode:
		var many []string
		if err := value.Decode(&many); err != nil {
			return err
		}
		*s = StringOrList{present: true, values: many}
		return nil
	case 0:
		*s = StringOrList{}
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings, got %s", value.Line, value.Tag)
	}
}

// stringOrListHookFunc adapts StringOrList to mapstructure's decode-hook
// protocol so the untyped (post-expansion) tree can be decoded into typed
// Target/Rule structs without a second bespoke decoder.
func stringOrListHookFunc() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(StringOrList{}) {
			return data, nil
		}
		if data == nil {
			return StringOrList{}, nil
		}
		switch v := data.(type) {
		case string:
			return StringOrList{present: true, values: []string{v}}, nil
		case []string:
			return StringOrList{present: true, values: v}, nil
		case []any:
			out := make([]string, 0, len(v))
			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("expected a string list element, got %T", item)
				}
				out = append(out, s)
			}
			return StringOrList{present: true, values: out}, nil
		default:
			return nil, fmt.Errorf("expected a string or a list of strings, got %T", data)
		}
	}
}
