package netsuke

import "testing"

func newTestEnv(t *testing.T) *Env {
	t.Helper()
	e, err := NewEnv(t.TempDir(), NewNetworkPolicy(), Budgets{})
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestTruthy(t *testing.T) {
	cases := map[string]bool{
		"":      false,
		"false": false,
		"False": false,
		"0":     false,
		"true":  true,
		"1":     true,
		"yes":   true,
	}
	for in, want := range cases {
		if got := truthy(in); got != want {
			t.Errorf("truthy(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSplitForeachListCommaSeparated(t *testing.T) {
	got, err := splitForeachList(`a, b, c`)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("splitForeachList = %v", got)
	}
}

func TestSplitForeachListBracketedAndQuoted(t *testing.T) {
	got, err := splitForeachList(`["a", "b"]`)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("splitForeachList = %v", got)
	}
}

func TestSplitForeachListEmpty(t *testing.T) {
	got, err := splitForeachList("")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("splitForeachList(\"\") = %v, want nil", got)
	}
}

func TestExpandSequenceLiteralList(t *testing.T) {
	e := newTestEnv(t)
	seq := []any{
		map[string]any{
			"foreach": []any{"a", "b"},
			"name":    "out-{{ item }}.txt",
		},
	}
	out, err := e.expandSequence("targets", seq)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 expanded elements, got %d", len(out))
	}
	first := out[0].(map[string]any)
	if first["name"] != "out-a.txt" {
		t.Errorf("name = %v", first["name"])
	}
	second := out[1].(map[string]any)
	if second["name"] != "out-b.txt" {
		t.Errorf("name = %v", second["name"])
	}
}

func TestExpandSequencePassesThroughNonForeach(t *testing.T) {
	e := newTestEnv(t)
	seq := []any{
		map[string]any{"name": "plain.txt"},
	}
	out, err := e.expandSequence("targets", seq)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("expected the element to pass through unchanged, got %v", out)
	}
}

func TestExpandSequenceWhenFiltersItems(t *testing.T) {
	e := newTestEnv(t)
	seq := []any{
		map[string]any{
			"foreach": []any{"a", "b"},
			"when":    `{{ "true" if item == "a" else "false" }}`,
			"name":    "out-{{ item }}.txt",
		},
	}
	out, err := e.expandSequence("targets", seq)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("expected when to filter out one item, got %d elements", len(out))
	}
	elem := out[0].(map[string]any)
	if elem["name"] != "out-a.txt" {
		t.Errorf("name = %v", elem["name"])
	}
}

func TestExpandOneItemRendersVarsIntoLaterFields(t *testing.T) {
	e := newTestEnv(t)
	elem := map[string]any{
		"vars":    map[string]any{"tag": "v-{{ item }}"},
		"command": "echo {{ tag }}",
	}
	out, err := e.expandOneItem(elem, "1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if out["command"] != "echo v-1" {
		t.Errorf("command = %v", out["command"])
	}
}

func TestResolveForeachSourceRejectsScalar(t *testing.T) {
	e := newTestEnv(t)
	if _, err := e.resolveForeachSource(42); err == nil {
		t.Fatal("expected an error for a non-list, non-string foreach source")
	}
}

func TestExpandManifestRegistersVarsAndMacros(t *testing.T) {
	e := newTestEnv(t)
	tree := map[string]any{
		"vars":   map[string]any{"greeting": "hi"},
		"macros": []any{map[string]any{"signature": "shout(w)", "body": "{{ w }}!"}},
		"targets": []any{
			map[string]any{"name": "out.txt", "command": "echo {{ greeting }} {{ shout(\"x\") }}"},
		},
	}
	out, err := e.ExpandManifest(tree)
	if err != nil {
		t.Fatal(err)
	}
	targets := out["targets"].([]any)
	if len(targets) != 1 {
		t.Fatalf("targets = %v", targets)
	}
}

func TestExpandManifestRejectsNonMappingVars(t *testing.T) {
	e := newTestEnv(t)
	if _, err := e.ExpandManifest(map[string]any{"vars": "nope"}); err == nil {
		t.Fatal("expected an error for non-mapping vars")
	}
}
