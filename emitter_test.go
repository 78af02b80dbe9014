package netsuke

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrintfEscape(t *testing.T) {
	got := printfEscape("line one\\\nline two")
	if got != `line one\\\nline two` {
		t.Errorf("printfEscape() = %q", got)
	}
}

func TestNinjaEscapeDoublesDollar(t *testing.T) {
	if got := ninjaEscape("echo $HOME"); got != "echo $$HOME" {
		t.Errorf("ninjaEscape() = %q", got)
	}
}

func TestScriptCommandWrapsInPrintfPipeSh(t *testing.T) {
	got := scriptCommand("echo hi")
	if !strings.HasPrefix(got, "printf %b ") || !strings.HasSuffix(got, " | sh") {
		t.Errorf("scriptCommand() = %q", got)
	}
}

func TestPrimaryOutput(t *testing.T) {
	if got := primaryOutput(&BuildEdge{Outputs: []string{"a", "b"}}); got != "a" {
		t.Errorf("primaryOutput() = %q", got)
	}
	if got := primaryOutput(&BuildEdge{}); got != "" {
		t.Errorf("primaryOutput(no outputs) = %q, want empty", got)
	}
}

func TestEmitNinjaDeterministicRuleNamingAndOrder(t *testing.T) {
	g, err := GenerateIR(&Manifest{
		Targets: []Target{
			{Name: NewStringOrList("z.o"), Sources: NewStringOrList("z.c"),
				Recipe: Recipe{Kind: RecipeCommand, Command: "cc -c $in -o $out"}},
			{Name: NewStringOrList("a.o"), Sources: NewStringOrList("a.c"),
				Recipe: Recipe{Kind: RecipeCommand, Command: "cc -c $in -o $out"}},
		},
		Defaults: []string{"z.o", "a.o"},
	})
	if err != nil {
		t.Fatal(err)
	}

	var buf1, buf2 bytes.Buffer
	if err := EmitNinja(&buf1, g); err != nil {
		t.Fatal(err)
	}
	if err := EmitNinja(&buf2, g); err != nil {
		t.Fatal(err)
	}
	if buf1.String() != buf2.String() {
		t.Error("expected two synthesis runs over the same graph to agree byte-for-byte")
	}

	out := buf1.String()
	aIdx := strings.Index(out, "build a.o:")
	zIdx := strings.Index(out, "build z.o:")
	if aIdx == -1 || zIdx == -1 || aIdx > zIdx {
		t.Errorf("expected edges sorted by output (a.o before z.o), got:\n%s", out)
	}
	if !strings.Contains(out, "default a.o z.o\n") {
		t.Errorf("expected sorted defaults, got:\n%s", out)
	}
	if !strings.Contains(out, "rule r0") {
		t.Errorf("expected a stable synthetic rule name r0, got:\n%s", out)
	}
}

func TestEmitNinjaScriptRecipe(t *testing.T) {
	g := &BuildGraph{
		Actions: []*Action{{Script: "echo hi", hash: "h1"}},
		Edges:   []*BuildEdge{{Outputs: []string{"out"}, Action: &Action{Script: "echo hi", hash: "h1"}}},
	}
	g.Edges[0].Action = g.Actions[0]

	var buf bytes.Buffer
	if err := EmitNinja(&buf, g); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "printf %b") {
		t.Errorf("expected a script recipe to be wrapped via scriptCommand, got:\n%s", buf.String())
	}
}

func TestEmitNinjaPhonyEdgeUsesBuiltinRule(t *testing.T) {
	g := &BuildGraph{
		Edges: []*BuildEdge{{Outputs: []string{"clean"}, Phony: true}},
	}
	var buf bytes.Buffer
	if err := EmitNinja(&buf, g); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "build clean: phony") {
		t.Errorf("expected a phony edge to route to the built-in phony rule, got:\n%s", buf.String())
	}
}

func TestEmitNinjaPhonyEdgeWithActionStillUsesPhonyRule(t *testing.T) {
	g := &BuildGraph{
		Actions: []*Action{{Command: "echo hi", hash: "h1"}},
		Edges:   []*BuildEdge{{Outputs: []string{"clean"}, Phony: true}},
	}
	g.Edges[0].Action = g.Actions[0]

	var buf bytes.Buffer
	if err := EmitNinja(&buf, g); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "build clean: phony") {
		t.Errorf("expected Phony=true to win even when an Action is also set, got:\n%s", buf.String())
	}
}

func TestEmitNinjaEdgeWithDepsAndOrderOnly(t *testing.T) {
	g := &BuildGraph{
		Actions: []*Action{{Command: "cc", hash: "h1"}},
		Edges: []*BuildEdge{{
			Outputs:   []string{"out.o"},
			Sources:   []string{"out.c"},
			Deps:      []string{"out.h"},
			OrderOnly: []string{"gen_headers"},
		}},
	}
	g.Edges[0].Action = g.Actions[0]

	var buf bytes.Buffer
	if err := EmitNinja(&buf, g); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "build out.o: r0 out.c | out.h || gen_headers") {
		t.Errorf("unexpected build line, got:\n%s", out)
	}
}
