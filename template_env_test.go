package netsuke

import (
	"os"
	"testing"
)

func TestBudgetsWithDefaults(t *testing.T) {
	b := Budgets{}.withDefaults()
	if b.CaptureBytes != 1<<20 {
		t.Errorf("CaptureBytes = %d", b.CaptureBytes)
	}
	if b.StreamBytes != 64<<20 {
		t.Errorf("StreamBytes = %d", b.StreamBytes)
	}
	if b.FetchMaxBytes != 8<<20 {
		t.Errorf("FetchMaxBytes = %d", b.FetchMaxBytes)
	}
}

func TestBudgetsWithDefaultsPreservesExplicitValues(t *testing.T) {
	b := Budgets{CaptureBytes: 42}.withDefaults()
	if b.CaptureBytes != 42 {
		t.Errorf("CaptureBytes = %d, want 42", b.CaptureBytes)
	}
	if b.StreamBytes != 64<<20 {
		t.Errorf("StreamBytes should still take its default, got %d", b.StreamBytes)
	}
}

func TestNewEnvConstructs(t *testing.T) {
	e, err := NewEnv(t.TempDir(), NewNetworkPolicy(), Budgets{})
	if err != nil {
		t.Fatal(err)
	}
	if e.workspaceRoot == "" {
		t.Error("expected workspaceRoot to be set")
	}
	if e.Impure() {
		t.Error("a freshly constructed Env should not be impure")
	}
}

func TestGlobalEnvReadsProcessEnv(t *testing.T) {
	e, err := NewEnv(t.TempDir(), NewNetworkPolicy(), Budgets{})
	if err != nil {
		t.Fatal(err)
	}
	os.Setenv("NETSUKE_TEST_VAR", "hi")
	defer os.Unsetenv("NETSUKE_TEST_VAR")

	v, err := e.globalEnv("NETSUKE_TEST_VAR")
	if err != nil || v != "hi" {
		t.Errorf("globalEnv() = (%q, %v), want (\"hi\", nil)", v, err)
	}
}

func TestGlobalEnvMissingFails(t *testing.T) {
	e, err := NewEnv(t.TempDir(), NewNetworkPolicy(), Budgets{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.globalEnv("NETSUKE_DEFINITELY_UNSET_VAR"); err == nil {
		t.Fatal("expected an error for an unset variable")
	}
}

func TestRenderStringBasic(t *testing.T) {
	e, err := NewEnv(t.TempDir(), NewNetworkPolicy(), Budgets{})
	if err != nil {
		t.Fatal(err)
	}
	out, err := e.renderString("hello {{ name }}", map[string]any{"name": "world"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "hello world" {
		t.Errorf("renderString() = %q", out)
	}
}

func TestRenderStringUndefinedVariableFails(t *testing.T) {
	e, err := NewEnv(t.TempDir(), NewNetworkPolicy(), Budgets{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.renderString("hello {{ missing }}", map[string]any{}); err == nil {
		t.Fatal("expected an error for an undefined variable")
	}
}

func TestRenderStringUsesMacroPrelude(t *testing.T) {
	e, err := NewEnv(t.TempDir(), NewNetworkPolicy(), Budgets{})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.macros.RegisterMacros([]MacroDefinition{
		{Signature: "shout(word)", Body: "{{ word }}!"},
	}); err != nil {
		t.Fatal(err)
	}
	out, err := e.renderString("{{ shout(\"hi\") }}", map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	if out != "hi!" {
		t.Errorf("renderString() = %q", out)
	}
}

func TestValidateStrictUndefinedAllowsKeywordsAndGlobals(t *testing.T) {
	globals := map[string]any{"basename": func() {}}
	err := validateStrictUndefined("{% if x %}{{ basename(y) }}{% endif %}",
		map[string]any{"x": true, "y": "z"}, globals)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateStrictUndefinedRejectsMissing(t *testing.T) {
	err := validateStrictUndefined("{{ nope }}", map[string]any{}, map[string]any{})
	if err == nil {
		t.Fatal("expected an error for an undefined identifier")
	}
}
