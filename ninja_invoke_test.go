package netsuke

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestBuildNinjaInvocationDefaults(t *testing.T) {
	inv := BuildNinjaInvocation(".", "build.ninja", []string{"all"})
	if inv.Program != "ninja" {
		t.Errorf("Program = %q, want %q", inv.Program, "ninja")
	}
	if !reflect.DeepEqual(inv.Args, []string{"-f", "build.ninja", "all"}) {
		t.Errorf("Args = %v", inv.Args)
	}
}

func TestBuildNinjaInvocationWithOptionsJobsAndTool(t *testing.T) {
	inv := BuildNinjaInvocationWithOptions(".", "build.ninja", []string{"ignored"},
		InvocationOptions{Jobs: 4, Tool: "clean"})
	want := []string{"-j", "4", "-f", "build.ninja", "-t", "clean"}
	if !reflect.DeepEqual(inv.Args, want) {
		t.Errorf("Args = %v, want %v", inv.Args, want)
	}
}

func TestBuildNinjaInvocationHonoursEnvOverride(t *testing.T) {
	t.Setenv(ninjaPathEnvVar, "/opt/bin/ninja-custom")
	inv := BuildNinjaInvocation(".", "build.ninja", nil)
	if inv.Program != "/opt/bin/ninja-custom" {
		t.Errorf("Program = %q, want the env override", inv.Program)
	}
}

func TestBuildNinjaInvocationCanonicalizesDir(t *testing.T) {
	dir := t.TempDir()
	inv := BuildNinjaInvocation(dir, "build.ninja", nil)
	want, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatal(err)
	}
	if inv.Dir != want {
		t.Errorf("Dir = %q, want %q", inv.Dir, want)
	}
}

func TestBuildNinjaInvocationOmitsDirWhenNotConfigured(t *testing.T) {
	inv := BuildNinjaInvocationWithOptions(".", "build.ninja", nil, InvocationOptions{})
	if inv.Dir != "" {
		t.Errorf("Dir = %q, want empty when no working directory is configured", inv.Dir)
	}
}

func TestBuildNinjaInvocationNoJobsOmitsFlag(t *testing.T) {
	inv := BuildNinjaInvocationWithOptions(".", "build.ninja", []string{"all"}, InvocationOptions{})
	for _, a := range inv.Args {
		if a == "-j" {
			t.Errorf("Args = %v, want no -j flag when Jobs is 0", inv.Args)
		}
	}
}
