package netsuke

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGlobalGlobSortedMatches(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"b.txt", "a.txt", "c.md"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	e := &Env{workspaceRoot: root}
	got, err := e.globalGlob("*.txt")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != "a.txt" || got[1] != "b.txt" {
		t.Errorf("globalGlob() = %v", got)
	}
}

func TestGlobalGlobNoMatches(t *testing.T) {
	e := &Env{workspaceRoot: t.TempDir()}
	got, err := e.globalGlob("*.nope")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("globalGlob() = %v, want empty", got)
	}
}

func TestUnescapeGlobLiterals(t *testing.T) {
	got := unescapeGlobLiterals(`a\*b`)
	if got != `a\*b` {
		t.Errorf("unescapeGlobLiterals() = %q", got)
	}
	got = unescapeGlobLiterals(`a\nb`)
	if got != `a\nb` {
		t.Errorf("unescapeGlobLiterals() should leave non-wildcard escapes untouched, got %q", got)
	}
}
