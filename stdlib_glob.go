package netsuke

import (
	"os"
	"runtime"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// globalGlob implements the `glob(pattern)` template global: a lazily
// sorted sequence of UTF-8 file paths under the workspace root matching a
// brace/wildcard pattern, with UNIX-only literal-escape handling for
// `\*`, `\?`, `\[`, etc. (spec.md §4.3).
func (e *Env) globalGlob(pattern string) ([]string, error) {
	e.markImpure()

	effective := pattern
	if runtime.GOOS != "windows" {
		effective = unescapeGlobLiterals(pattern)
	}

	matches, err := doublestar.Glob(os.DirFS(e.workspaceRoot), effective)
	if err != nil {
		return nil, &StdlibError{Kind: StdlibIO, Helper: "glob", Operation: "match", Path: pattern, Err: err}
	}
	sort.Strings(matches)
	return matches, nil
}

// unescapeGlobLiterals honours a backslash-escaped wildcard character as a
// literal on UNIX, where the shell itself would otherwise have consumed the
// backslash. Windows paths use backslash as a separator, so no escaping
// convention applies there (spec.md §4.3).
func unescapeGlobLiterals(pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if c == '\\' && i+1 < len(pattern) {
			next := pattern[i+1]
			if next == '*' || next == '?' || next == '[' || next == ']' {
				b.WriteByte('\\')
				b.WriteByte(next)
				i++
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}
