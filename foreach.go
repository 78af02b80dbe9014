package netsuke

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// stringFields are the scalar fields a foreach-expanded element renders
// after `vars` and `when` have been resolved; everything else is either a
// StringOrList field (listFields) or passed through untouched.
var stringFields = []string{"command", "script", "description", "depfile", "deps_format", "pool"}

// listFields are the StringOrList-shaped fields a foreach-expanded element
// renders element-wise.
var listFields = []string{"name", "rule", "sources", "deps", "order_only"}

// ExpandManifest is stage 3: it walks tree's `targets` and `actions`
// sequences and rewrites every element bearing a `foreach` key into zero or
// more concrete elements, after first registering `vars` as template
// globals and compiling `macros` (spec.md §4.3 "Variables stage" and
// "Macros stage"). Elements without a `foreach` key pass through
// unexamined; their fields are rendered later, in stage 4 (render.go),
// against the manifest-wide scope.
func (e *Env) ExpandManifest(tree map[string]any) (map[string]any, error) {
	if rawVars, ok := tree["vars"]; ok {
		vars, ok := rawVars.(map[string]any)
		if !ok {
			return nil, &TemplateError{Field: "vars", Msg: "vars must be a mapping of string keys"}
		}
		for k, v := range vars {
			s, ok := v.(string)
			if !ok {
				return nil, &TemplateError{Field: "vars." + k, Msg: "top-level vars values must be strings"}
			}
			e.set.Globals[k] = s
		}
	}

	if rawMacros, ok := tree["macros"]; ok {
		items, ok := rawMacros.([]any)
		if !ok {
			return nil, &TemplateError{Field: "macros", Msg: "macros must be a sequence"}
		}
		var defs []MacroDefinition
		if err := mapstructure.Decode(items, &defs); err != nil {
			return nil, &TemplateError{Field: "macros", Msg: "malformed macro definition", Err: err}
		}
		if err := e.macros.RegisterMacros(defs); err != nil {
			return nil, err
		}
	}

	for _, key := range []string{"targets", "actions"} {
		rawSeq, ok := tree[key]
		if !ok {
			continue
		}
		seq, ok := rawSeq.([]any)
		if !ok {
			return nil, &TemplateError{Field: key, Msg: key + " must be a sequence"}
		}
		expanded, err := e.expandSequence(key, seq)
		if err != nil {
			return nil, err
		}
		tree[key] = expanded
	}

	return tree, nil
}

// expandSequence expands every foreach-bearing element of seq in place,
// preserving the order of non-foreach elements and the per-item order
// within a single foreach block.
func (e *Env) expandSequence(field string, seq []any) ([]any, error) {
	out := make([]any, 0, len(seq))
	for _, raw := range seq {
		elem, ok := raw.(map[string]any)
		if !ok {
			out = append(out, raw)
			continue
		}
		foreachSrc, has := elem["foreach"]
		if !has {
			out = append(out, elem)
			continue
		}

		items, err := e.resolveForeachSource(foreachSrc)
		if err != nil {
			return nil, err
		}

		for index, item := range items {
			rendered, err := e.expandOneItem(elem, item, index)
			if err != nil {
				return nil, fmt.Errorf("%s[foreach index %d]: %w", field, index, err)
			}
			if rendered != nil {
				out = append(out, rendered)
			}
		}
	}
	return out, nil
}

// resolveForeachSource accepts either a literal YAML sequence or a
// template string that evaluates to an iterable; scalars and non-iterables
// are errors (spec.md §4.3 "foreach accepts either a YAML sequence or a
// string template that evaluates to an iterable").
func (e *Env) resolveForeachSource(src any) ([]any, error) {
	switch v := src.(type) {
	case []any:
		return v, nil
	case string:
		rendered, err := e.renderString(v, nil)
		if err != nil {
			return nil, &TemplateError{Field: "foreach", Msg: "evaluating foreach source", Err: err}
		}
		// A rendered string is only useful as a foreach source if it was
		// itself a textual list; comma-separated is the conservative,
		// dependency-free interpretation, since pongo2 renders everything
		// to plain text and we have no further structure to recover.
		items, err := splitForeachList(rendered)
		if err != nil {
			return nil, err
		}
		return items, nil
	default:
		return nil, &TemplateError{Field: "foreach", Msg: fmt.Sprintf("foreach source must be a list or an iterable template, got %T", src)}
	}
}

// splitForeachList turns a comma-separated rendered foreach template into
// its iterable elements, trimming surrounding brackets and whitespace.
func splitForeachList(rendered string) ([]any, error) {
	s := strings.TrimSpace(rendered)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]any, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		p = strings.Trim(p, `"`)
		out[i] = p
	}
	return out, nil
}

// expandOneItem renders one foreach iteration: an optional `vars`
// sub-mapping, an optional `when` guard, then every remaining string and
// StringOrList field, with `item` and `index` bound in scope throughout.
// Returns nil (no error) when `when` is falsy, meaning the caller should
// skip emitting a target for this iteration without treating it as an
// error (spec.md §7 "Recovery": filtered items are not errors).
func (e *Env) expandOneItem(elem map[string]any, item any, index int) (map[string]any, error) {
	scope := map[string]any{"item": item, "index": index}

	if rawVars, has := elem["vars"]; has {
		varsMap, ok := rawVars.(map[string]any)
		if !ok {
			return nil, &TemplateError{Field: "vars", Msg: "foreach vars must be a mapping"}
		}
		rendered := map[string]any{}
		for k, v := range varsMap {
			s, ok := v.(string)
			if !ok {
				rendered[k] = v
				continue
			}
			out, err := e.renderString(s, scope)
			if err != nil {
				return nil, &TemplateError{Field: "vars." + k, Msg: "rendering foreach vars", Err: err}
			}
			rendered[k] = out
			scope[k] = out
		}
	}

	if rawWhen, has := elem["when"]; has {
		whenStr, ok := rawWhen.(string)
		if !ok {
			return nil, &TemplateError{Field: "when", Msg: "when must be a string"}
		}
		out, err := e.renderString(whenStr, scope)
		if err != nil {
			return nil, &TemplateError{Field: "when", Msg: "rendering when", Err: err}
		}
		if !truthy(out) {
			return nil, nil
		}
	}

	result := map[string]any{}
	for k, v := range elem {
		switch k {
		case "foreach", "vars", "when":
			continue
		}
		result[k] = v
	}
	for k, v := range scope {
		if k == "item" || k == "index" {
			continue
		}
		result[k] = v
	}

	for _, field := range stringFields {
		raw, has := result[field]
		if !has {
			continue
		}
		s, ok := raw.(string)
		if !ok {
			continue
		}
		out, err := e.renderString(s, scope)
		if err != nil {
			return nil, &TemplateError{Field: field, Msg: "rendering foreach field", Err: err}
		}
		result[field] = out
	}
	for _, field := range listFields {
		raw, has := result[field]
		if !has {
			continue
		}
		rendered, err := e.renderListField(field, raw, scope)
		if err != nil {
			return nil, err
		}
		result[field] = rendered
	}

	return result, nil
}

// renderListField renders a StringOrList-shaped untyped field (string or
// []any of strings), preserving its original scalar-vs-sequence shape.
func (e *Env) renderListField(field string, raw any, scope map[string]any) (any, error) {
	switch v := raw.(type) {
	case string:
		out, err := e.renderString(v, scope)
		if err != nil {
			return nil, &TemplateError{Field: field, Msg: "rendering foreach field", Err: err}
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				out[i] = item
				continue
			}
			rendered, err := e.renderString(s, scope)
			if err != nil {
				return nil, &TemplateError{Field: fmt.Sprintf("%s[%d]", field, i), Msg: "rendering foreach field", Err: err}
			}
			out[i] = rendered
		}
		return out, nil
	default:
		return raw, nil
	}
}

// truthy mirrors the falsy/truthy rule spec.md §4.3 relies on for `when`:
// empty string, "false", "False", and "0" (after trimming whitespace) are
// falsy; everything else is truthy.
func truthy(rendered string) bool {
	switch strings.TrimSpace(rendered) {
	case "", "false", "False", "0":
		return false
	default:
		return true
	}
}
