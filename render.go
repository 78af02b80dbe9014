package netsuke

// RenderManifest is stage 4: after foreach/when expansion and typed
// decoding, every remaining string and StringOrList field in the typed
// manifest is rendered. Target variables are rendered first, in a snapshot
// scope, since a target's own vars may be referenced by its other fields;
// rules are rendered against an empty scope, since a Rule has no vars of
// its own.
func (e *Env) RenderManifest(m *Manifest) error {
	for i := range m.Rules {
		if err := e.renderRule(&m.Rules[i]); err != nil {
			return err
		}
	}
	for i := range m.Actions {
		if err := e.renderTarget(&m.Actions[i]); err != nil {
			return err
		}
	}
	for i := range m.Targets {
		if err := e.renderTarget(&m.Targets[i]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Env) renderRule(r *Rule) error {
	scope := map[string]any{}
	var err error
	if r.Description != "" {
		if r.Description, err = e.renderString(r.Description, scope); err != nil {
			return &TemplateError{Field: "rules[" + r.Name + "].description", Err: err}
		}
	}
	if err := e.renderRecipe(&r.Recipe, scope); err != nil {
		return &TemplateError{Field: "rules[" + r.Name + "].recipe", Err: err}
	}
	if r.Deps, err = e.renderStringOrList(r.Deps, scope); err != nil {
		return &TemplateError{Field: "rules[" + r.Name + "].deps", Err: err}
	}
	return nil
}

func (e *Env) renderTarget(t *Target) error {
	scope := map[string]any{}
	for k, v := range t.Vars {
		out, err := e.renderString(v, scope)
		if err != nil {
			return &TemplateError{Field: "vars." + k, Err: err}
		}
		t.Vars[k] = out
		scope[k] = out
	}

	var err error
	if t.Name, err = e.renderStringOrList(t.Name, scope); err != nil {
		return &TemplateError{Field: "name", Err: err}
	}
	if err := e.renderRecipe(&t.Recipe, scope); err != nil {
		return &TemplateError{Field: t.DisplayName() + ".recipe", Err: err}
	}
	if t.Sources, err = e.renderStringOrList(t.Sources, scope); err != nil {
		return &TemplateError{Field: t.DisplayName() + ".sources", Err: err}
	}
	if t.Deps, err = e.renderStringOrList(t.Deps, scope); err != nil {
		return &TemplateError{Field: t.DisplayName() + ".deps", Err: err}
	}
	if t.OrderOnly, err = e.renderStringOrList(t.OrderOnly, scope); err != nil {
		return &TemplateError{Field: t.DisplayName() + ".order_only", Err: err}
	}
	if t.Description != "" {
		if t.Description, err = e.renderString(t.Description, scope); err != nil {
			return &TemplateError{Field: t.DisplayName() + ".description", Err: err}
		}
	}
	return nil
}

func (e *Env) renderRecipe(r *Recipe, scope map[string]any) error {
	var err error
	switch r.Kind {
	case RecipeCommand:
		r.Command, err = e.renderString(r.Command, scope)
	case RecipeScript:
		r.Script, err = e.renderString(r.Script, scope)
	case RecipeRule:
		r.Rule, err = e.renderStringOrList(r.Rule, scope)
	}
	return err
}

func (e *Env) renderStringOrList(s StringOrList, scope map[string]any) (StringOrList, error) {
	if s.Absent() {
		return s, nil
	}
	values := s.Slice()
	out := make([]string, len(values))
	for i, v := range values {
		rendered, err := e.renderString(v, scope)
		if err != nil {
			return StringOrList{}, err
		}
		out[i] = rendered
	}
	return NewStringOrList(out...), nil
}
