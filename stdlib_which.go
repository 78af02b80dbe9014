package netsuke

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// WhichOptions configures `which(command, ...)` (spec.md §4.5.6). CwdMode
// controls whether the current workspace directory participates in
// resolution the way a shell would when "." happens to be on PATH.
type WhichOptions struct {
	All       bool
	Canonical bool
	Fresh     bool
	CwdMode   CwdMode
}

type CwdMode int

const (
	CwdAuto CwdMode = iota
	CwdAlways
	CwdNever
)

// whichCacheKey identifies one resolution request. PATH and PATHEXT are
// captured raw (not split) so a changed environment invalidates the cache
// key outright rather than requiring per-entry comparison.
type whichCacheKey struct {
	command string
	path    string
	pathext string
	cwd     string
	all     bool
	canonical bool
	cwdMode   CwdMode
}

type whichCacheEntry struct {
	result []string
}

// globalWhich implements `which(command, all=false, canonical=false,
// fresh=false, cwd_mode="auto")`. Direct paths (containing a separator) are
// resolved relative to cwd without a PATH search; bare names are searched
// along PATH with PATHEXT-based suffix matching on Windows. Results are
// cached keyed by the input configuration other than `fresh`. A
// `fresh=true` call skips the cache lookup and resolves anew, then stores
// its result; a cache hit is revalidated and evicted when stale.
func (e *Env) globalWhich(command string, opts WhichOptions) (any, error) {
	e.markImpure()

	cwd := e.workspaceRoot
	key := whichCacheKey{
		command:   command,
		path:      os.Getenv("PATH"),
		pathext:   os.Getenv("PATHEXT"),
		cwd:       cwd,
		all:       opts.All,
		canonical: opts.Canonical,
		cwdMode:   opts.CwdMode,
	}

	if !opts.Fresh {
		e.whichCacheMu.Lock()
		entry, ok := e.whichCache.Get(key)
		if ok && !entryStillValid(entry) {
			e.whichCache.Remove(key)
			ok = false
		}
		e.whichCacheMu.Unlock()
		if ok {
			return whichResultValue(entry.result, opts.All), nil
		}
	}

	results, err := resolveWhich(command, cwd, opts)
	if err != nil {
		return nil, err
	}

	e.whichCacheMu.Lock()
	e.whichCache.Add(key, &whichCacheEntry{result: results})
	e.whichCacheMu.Unlock()

	return whichResultValue(results, opts.All), nil
}

// entryStillValid revalidates a cache hit: if any path it recorded is no
// longer a regular executable file, the entry is stale and must be evicted
// rather than served (spec.md §4.5.6 "Cache").
func entryStillValid(entry *whichCacheEntry) bool {
	for _, p := range entry.result {
		info, err := os.Stat(p)
		if err != nil || info.IsDir() || !isExecutable(info) {
			return false
		}
	}
	return true
}

func whichResultValue(results []string, all bool) any {
	if all {
		return results
	}
	if len(results) == 0 {
		return nil
	}
	return results[0]
}

// resolveWhich performs the actual filesystem search, never consulting the
// cache. Direct paths (those containing a path separator) are checked as-is;
// bare command names are searched along PATH, optionally including cwd per
// CwdMode.
func resolveWhich(command string, cwd string, opts WhichOptions) ([]string, error) {
	if command == "" {
		return nil, &StdlibError{Kind: StdlibIO, Helper: "which", Operation: "resolve",
			Err: fmt.Errorf("command must not be empty")}
	}

	var dirs []string
	isDirect := strings.ContainsAny(command, "/\\")
	if isDirect {
		dirs = []string{cwd}
	} else {
		dirs = pathDirs(os.Getenv("PATH"))
		switch opts.CwdMode {
		case CwdAlways:
			dirs = append([]string{cwd}, dirs...)
		case CwdNever:
			// cwd excluded.
		case CwdAuto:
			if runtime.GOOS == "windows" {
				dirs = append([]string{cwd}, dirs...)
			}
		}
	}

	if !isDirect && len(dirs) == 0 && opts.CwdMode != CwdNever {
		found, err := scanWorkspace(cwd, command)
		if err == nil && found != "" {
			return []string{found}, nil
		}
	}

	exts := pathExts()
	var results []string
	seen := map[string]bool{}
	for _, dir := range dirs {
		candidate := command
		if !isDirect {
			candidate = filepath.Join(dir, command)
		} else if !filepath.IsAbs(candidate) {
			candidate = filepath.Join(dir, candidate)
		}
		for _, ext := range exts {
			full := candidate + ext
			info, err := os.Stat(full)
			if err != nil || info.IsDir() {
				continue
			}
			if !isExecutable(info) {
				continue
			}
			resolved := full
			if opts.Canonical {
				if r, err := filepath.EvalSymlinks(full); err == nil {
					resolved = r
				}
			}
			resolved = normalizeWhichPath(resolved)
			if seen[resolved] {
				continue
			}
			seen[resolved] = true
			results = append(results, resolved)
			if !opts.All {
				return results, nil
			}
		}
	}

	if len(results) == 0 {
		op := "resolve"
		if isDirect {
			op = "direct_not_found"
		}
		return nil, &StdlibError{Kind: StdlibIO, Helper: "which", Operation: op, Path: command,
			Err: fmt.Errorf("not found")}
	}
	return results, nil
}

// defaultWhichSkipDirs lists directory names a workspace scan never
// descends into: version control metadata and build output (spec.md §4.5.6;
// original_source src/stdlib/which/lookup/mod.rs, SKIP_DIRS).
var defaultWhichSkipDirs = map[string]bool{
	".git": true, "target": true,
}

// scanWorkspace is the PATH-empty fallback: a bounded walk of the
// workspace rooted at root, looking for an executable file named command,
// skipping heavy directories. It stops at the first match (workspace
// fallback never collects "all" matches; spec.md §4.5.6 describes it as a
// last resort, not a PATH replacement).
func scanWorkspace(root, command string) (string, error) {
	var found string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if found != "" {
			return filepath.SkipAll
		}
		if err != nil {
			return nil
		}
		if d.IsDir() {
			name := d.Name()
			if runtime.GOOS == "windows" {
				name = strings.ToLower(name)
			}
			if defaultWhichSkipDirs[name] {
				return filepath.SkipDir
			}
			return nil
		}
		name := d.Name()
		match := name == command
		if runtime.GOOS == "windows" {
			match = strings.EqualFold(name, command) || strings.EqualFold(strings.TrimSuffix(name, filepath.Ext(name)), command)
		}
		if !match {
			return nil
		}
		info, err := d.Info()
		if err != nil || !isExecutable(info) {
			return nil
		}
		found = path
		return nil
	})
	if err != nil {
		return "", err
	}
	return found, nil
}

func pathDirs(path string) []string {
	if path == "" {
		return nil
	}
	sep := string(os.PathListSeparator)
	parts := strings.Split(path, sep)
	dirs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			dirs = append(dirs, p)
		}
	}
	return dirs
}

// pathExts returns the ordered suffix candidates to try: a single empty
// string on non-Windows, or PATHEXT's entries (falling back to a documented
// default list) on Windows.
func pathExts() []string {
	if runtime.GOOS != "windows" {
		return []string{""}
	}
	raw := os.Getenv("PATHEXT")
	if raw == "" {
		raw = ".COM;.EXE;.BAT;.CMD"
	}
	parts := strings.Split(raw, ";")
	exts := make([]string, 0, len(parts)+1)
	exts = append(exts, "")
	for _, p := range parts {
		if p != "" {
			exts = append(exts, p)
		}
	}
	return exts
}

func isExecutable(info os.FileInfo) bool {
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode()&0111 != 0
}

// normalizeWhichPath rewrites backslashes to forward slashes on Windows so
// which() output is stable across platforms in templates that embed it
// directly into generated build files (spec.md §4.5.6).
func normalizeWhichPath(p string) string {
	if runtime.GOOS == "windows" {
		return strings.ReplaceAll(p, "\\", "/")
	}
	return p
}
