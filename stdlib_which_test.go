package netsuke

import (
	"os"
	"path/filepath"
	"testing"
)

func writeExecutable(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestResolveWhichDirectPath(t *testing.T) {
	dir := t.TempDir()
	path := writeExecutable(t, dir, "tool")

	results, err := resolveWhich(path, dir, WhichOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0] != path {
		t.Errorf("resolveWhich() = %v, want [%q]", results, path)
	}
}

func TestResolveWhichSearchesPATH(t *testing.T) {
	dir := t.TempDir()
	path := writeExecutable(t, dir, "tool")

	old := os.Getenv("PATH")
	os.Setenv("PATH", dir)
	defer os.Setenv("PATH", old)

	results, err := resolveWhich("tool", t.TempDir(), WhichOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0] != path {
		t.Errorf("resolveWhich() = %v, want [%q]", results, path)
	}
}

func TestResolveWhichNotFound(t *testing.T) {
	old := os.Getenv("PATH")
	os.Setenv("PATH", t.TempDir())
	defer os.Setenv("PATH", old)

	if _, err := resolveWhich("definitely-not-a-real-tool", t.TempDir(), WhichOptions{}); err == nil {
		t.Fatal("expected an error when the command cannot be found")
	}
}

func TestResolveWhichRejectsEmptyCommand(t *testing.T) {
	if _, err := resolveWhich("", t.TempDir(), WhichOptions{}); err == nil {
		t.Fatal("expected an error for an empty command")
	}
}

func TestResolveWhichAllReturnsEveryMatch(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()
	writeExecutable(t, dirA, "tool")
	writeExecutable(t, dirB, "tool")

	old := os.Getenv("PATH")
	os.Setenv("PATH", dirA+string(os.PathListSeparator)+dirB)
	defer os.Setenv("PATH", old)

	results, err := resolveWhich("tool", t.TempDir(), WhichOptions{All: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("resolveWhich(All) = %v, want 2 matches", results)
	}
}

func TestPathDirsEmpty(t *testing.T) {
	if got := pathDirs(""); got != nil {
		t.Errorf("pathDirs(\"\") = %v, want nil", got)
	}
}

func TestPathDirsSplits(t *testing.T) {
	got := pathDirs("/a" + string(os.PathListSeparator) + "/b")
	if len(got) != 2 || got[0] != "/a" || got[1] != "/b" {
		t.Errorf("pathDirs() = %v", got)
	}
}

func TestWhichResultValueSingle(t *testing.T) {
	got := whichResultValue([]string{"/a", "/b"}, false)
	if got != "/a" {
		t.Errorf("whichResultValue(all=false) = %v, want \"/a\"", got)
	}
}

func TestWhichResultValueAll(t *testing.T) {
	got := whichResultValue([]string{"/a", "/b"}, true)
	list, ok := got.([]string)
	if !ok || len(list) != 2 {
		t.Errorf("whichResultValue(all=true) = %v", got)
	}
}

func TestWhichResultValueEmpty(t *testing.T) {
	if got := whichResultValue(nil, false); got != nil {
		t.Errorf("whichResultValue(nil) = %v, want nil", got)
	}
}

func TestGlobalWhichCachesAcrossCalls(t *testing.T) {
	e := newTestEnv(t)
	dir := t.TempDir()
	writeExecutable(t, dir, "tool")
	old := os.Getenv("PATH")
	os.Setenv("PATH", dir)
	defer os.Setenv("PATH", old)

	got1, err := e.globalWhich("tool", WhichOptions{})
	if err != nil {
		t.Fatal(err)
	}
	got2, err := e.globalWhich("tool", WhichOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if got1 != got2 {
		t.Errorf("cached result mismatch: %v vs %v", got1, got2)
	}
}
