package netsuke

import (
	"fmt"
	"path/filepath"
	"strings"
)

// pathBasename implements the `basename` helper: a pure transformation, no
// filesystem access.
func pathBasename(p string) string { return filepath.Base(p) }

// pathDirname implements the `dirname` helper.
func pathDirname(p string) string { return filepath.Dir(p) }

// pathWithSuffix implements `with_suffix(ext, count=1, sep=".")`: strips up
// to count separators from the filename, then appends ext. An empty
// separator is an error (spec.md §4.5.1).
func pathWithSuffix(p, ext string, count int, sep string) (string, error) {
	if sep == "" {
		return "", &StdlibError{Kind: StdlibIO, Helper: "with_suffix", Operation: "validate", Path: p,
			Err: fmt.Errorf("separator must not be empty")}
	}
	if count <= 0 {
		count = 1
	}
	dir, base := filepath.Split(p)
	for i := 0; i < count; i++ {
		idx := strings.LastIndex(base, sep)
		if idx < 0 {
			break
		}
		base = base[:idx]
	}
	return filepath.Join(dir, base+ext), nil
}

// pathRelativeTo implements `relative_to(root)`, failing when p is not
// prefixed by root.
func pathRelativeTo(p, root string) (string, error) {
	rel, err := filepath.Rel(root, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", &StdlibError{Kind: StdlibIO, Helper: "relative_to", Operation: "relativize", Path: p,
			Err: fmt.Errorf("%q is not prefixed by %q", p, root)}
	}
	return rel, nil
}

// pathRealpath implements `realpath`: canonicalises a path, with root and
// "." handled specially (resolved against the workspace root rather than
// the process's actual working directory, preserving the capability
// boundary described in spec.md §4.1).
func (e *Env) pathRealpath(p string) (string, error) {
	if p == "." || p == "" {
		p = e.workspaceRoot
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(e.workspaceRoot, p)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", &StdlibError{Kind: StdlibIO, Helper: "realpath", Operation: "resolve", Path: p, Err: err}
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", &StdlibError{Kind: StdlibIO, Helper: "realpath", Operation: "resolve", Path: p, Err: err}
	}
	return resolved, nil
}
