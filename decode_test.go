package netsuke

import "testing"

func TestDecodeManifestBasic(t *testing.T) {
	tree := map[string]any{
		"netsuke_version": "1.0",
		"rules": []any{
			map[string]any{"name": "cc", "command": "gcc -c $in -o $out"},
		},
		"targets": []any{
			map[string]any{"name": "out.o", "rule": "cc", "sources": "out.c"},
		},
		"actions": []any{
			map[string]any{"name": "clean", "command": "rm -rf build"},
		},
		"defaults": []any{"out.o"},
	}

	m, err := DecodeManifest(tree)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Rules) != 1 || m.Rules[0].Name != "cc" {
		t.Errorf("rules = %+v", m.Rules)
	}
	if len(m.Targets) != 1 || m.Targets[0].Recipe.Kind != RecipeRule {
		t.Errorf("targets = %+v", m.Targets)
	}
	if len(m.Actions) != 1 || !m.Actions[0].Phony {
		t.Errorf("expected actions entries to be forced phony, got %+v", m.Actions)
	}
	if len(m.Defaults) != 1 || m.Defaults[0] != "out.o" {
		t.Errorf("defaults = %v", m.Defaults)
	}
}

func TestDecodeManifestRejectsMultipleRecipeKinds(t *testing.T) {
	tree := map[string]any{
		"targets": []any{
			map[string]any{"name": "out", "command": "echo hi", "script": "echo hi"},
		},
	}
	if _, err := DecodeManifest(tree); err == nil {
		t.Fatal("expected an error when both command and script are set")
	}
}

func TestDecodeManifestRejectsUnknownField(t *testing.T) {
	tree := map[string]any{
		"targets": []any{
			map[string]any{"name": "out", "command": "echo hi", "bogus_field": 1},
		},
	}
	if _, err := DecodeManifest(tree); err == nil {
		t.Fatal("expected an error for an unknown field, since ErrorUnused is set")
	}
}

func TestDecodeManifestRejectsIncompatibleVersion(t *testing.T) {
	tree := map[string]any{"netsuke_version": "99.0"}
	if _, err := DecodeManifest(tree); err == nil {
		t.Fatal("expected an error for an unsupported netsuke_version")
	}
}

func TestRecipeResolveKindAllowsNoRecipe(t *testing.T) {
	var r Recipe
	if err := r.resolveKind(); err != nil {
		t.Errorf("a recipe-less target should be valid (pure phony grouping): %v", err)
	}
}
