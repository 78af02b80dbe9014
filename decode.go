package netsuke

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// DecodeManifest is the second half of stage 3/4: having already expanded
// foreach/when over the untyped tree (foreach.go), decode what remains into
// the typed Manifest. Keeping the untyped-tree pass and the typed-decode
// pass separate means YAML-shaped errors (§4.2) and schema-shaped errors
// (§6, unknown/mistyped fields) never get confused with each other; see
// the decode.go row of SPEC_FULL.md §2.
func DecodeManifest(tree map[string]any) (*Manifest, error) {
	var m Manifest
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &m,
		ErrorUnused:      true,
		WeaklyTypedInput: false,
		DecodeHook:       stringOrListHookFunc(),
		TagName:          "mapstructure",
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(tree); err != nil {
		return nil, &ParseError{Pos: Position{Line: 1, Column: 1}, Msg: err.Error()}
	}

	if err := CheckManifestVersion(m.NetsukeVersion); err != nil {
		return nil, err
	}

	for i := range m.Rules {
		if err := m.Rules[i].Recipe.resolveKind(); err != nil {
			return nil, fmt.Errorf("rule %q: %w", m.Rules[i].Name, err)
		}
	}
	for i := range m.Actions {
		m.Actions[i].Phony = true
		if err := m.Actions[i].Recipe.resolveKind(); err != nil {
			return nil, fmt.Errorf("action %q: %w", m.Actions[i].DisplayName(), err)
		}
	}
	for i := range m.Targets {
		if err := m.Targets[i].Recipe.resolveKind(); err != nil {
			return nil, fmt.Errorf("target %q: %w", m.Targets[i].DisplayName(), err)
		}
	}

	return &m, nil
}

// resolveKind determines which of Command/Script/Rule was actually
// supplied. Exactly one is allowed; none is allowed too (some targets are
// pure phony groupings with no recipe of their own).
func (r *Recipe) resolveKind() error {
	set := 0
	if r.Command != "" {
		r.Kind = RecipeCommand
		set++
	}
	if r.Script != "" {
		r.Kind = RecipeScript
		set++
	}
	if !r.Rule.Absent() {
		r.Kind = RecipeRule
		set++
	}
	if set > 1 {
		return fmt.Errorf("a recipe may set only one of command, script, or rule")
	}
	return nil
}
