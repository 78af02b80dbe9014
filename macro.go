package netsuke

import (
	"fmt"
	"regexp"
	"runtime"
	"strings"
)

// signaturePattern extracts the macro name and its parameter list from a
// signature string of the form "name(params)". The name must be a non-empty
// identifier preceding the opening parenthesis, per spec.md §3.
var signaturePattern = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)\s*\(([^)]*)\)\s*$`)

// compiledMacro is one manifest macro after signature parsing.
type compiledMacro struct {
	name      string
	params    []string
	body      string
	synthName string // __manifest_macro_<idx>_<name>, per spec.md §4.3
}

// MacroRegistry holds every macro compiled from a manifest's `macros`
// sequence for the lifetime of one pipeline run (§5 "Shared resources":
// macro state is per-run, never a process-wide singleton).
type MacroRegistry struct {
	byName  map[string]*compiledMacro
	prelude string
}

func newMacroRegistry() *MacroRegistry {
	return &MacroRegistry{byName: map[string]*compiledMacro{}}
}

// RegisterMacros compiles every entry of defs, in order, as spec.md §4.3
// describes: a synthetic template name, and a `{% macro sig %}...{%
// endmacro %}` body. The compiled macros are concatenated into a prelude
// that template_env.go prepends to every other rendered field, which is
// how a manifest macro becomes callable by name from ordinary template
// text using pongo2's native macro-call syntax (positional args, keyword
// args, and `{% call %}...{% endcall %}` blocks all flow through
// unmodified, since the macro is textually in scope rather than invoked
// through a side channel).
func (r *MacroRegistry) RegisterMacros(defs []MacroDefinition) error {
	var b strings.Builder
	for idx, d := range defs {
		m := signaturePattern.FindStringSubmatch(d.Signature)
		if m == nil {
			return &TemplateError{Msg: fmt.Sprintf("macro signature %q must be of the form name(params)", d.Signature)}
		}
		name, paramList := m[1], m[2]
		var params []string
		for _, p := range strings.Split(paramList, ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				params = append(params, p)
			}
		}
		cm := &compiledMacro{
			name:      name,
			params:    params,
			body:      d.Body,
			synthName: fmt.Sprintf("__manifest_macro_%d_%s", idx, name),
		}
		r.byName[name] = cm
		fmt.Fprintf(&b, "{%% macro %s(%s) %%}%s{%% endmacro %%}", name, paramList, d.Body)
	}
	r.prelude = b.String()
	return nil
}

// Lookup returns the compiled macro registered under name, if any.
func (r *MacroRegistry) Lookup(name string) (*compiledMacro, bool) {
	m, ok := r.byName[name]
	return m, ok
}

// callerAdapter is the explicit adapter spec.md §4.3/§4.4/§9 calls for in
// place of first-class coroutine state passing: it stores a reference to
// the call site's evaluation state so a macro body invoking `caller()` runs
// the block written at the call site, against the caller's locals, rather
// than the macro's own.
//
// Macro state handles may be shared across the template engine's call
// boundaries but must never be used from a goroutine other than the one
// that created them (§4.4 "Thread safety"); creatorGoroutine is recorded so
// debug builds can assert the pin is honoured.
type callerAdapter struct {
	creatorGoroutine int64
	call             func(args map[string]any) (string, error)
}

// newCallerAdapter wraps call (a closure that re-enters the caller's
// evaluation state) in a thread-pinned adapter.
func newCallerAdapter(call func(args map[string]any) (string, error)) *callerAdapter {
	return &callerAdapter{creatorGoroutine: goroutineID(), call: call}
}

// Call invokes the adapter, panicking in debug builds if it is used from a
// goroutine other than the one that created it — violating the pin is
// documented as undefined behaviour (spec.md §5), so a loud panic in
// debug-asserted builds is preferable to silent corruption.
func (c *callerAdapter) Call(args map[string]any) (string, error) {
	if debugAssertThreadPinning && goroutineID() != c.creatorGoroutine {
		panic("netsuke: caller adapter used from a different goroutine than created it")
	}
	return c.call(args)
}

// debugAssertThreadPinning gates the goroutine-pinning assertion. It is a
// variable, not a build tag, so tests can flip it without a separate build
// configuration; production builds leave it at its default of true.
var debugAssertThreadPinning = true

// goroutineID extracts the calling goroutine's id from its stack trace.
// This is the same trick the Go runtime itself has no supported API for;
// it exists solely to back the debug assertion above and is never on any
// hot path (macro invocation is already bounded by the five-second command
// budget elsewhere in the pipeline).
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id int64
	// Stack traces start with "goroutine <id> [running]:".
	fmt.Sscanf(string(buf[:n]), "goroutine %d ", &id)
	return id
}

// invokeMacro renders a compiled macro's body against positional args,
// kwargs, and an optional caller adapter, used by code paths that need to
// invoke a macro directly from Go rather than through ordinary template
// text (for instance, a future stdlib helper that post-processes a
// manifest-defined transform). The reserved "caller" kwarg is wrapped in a
// thread-pinned callerAdapter and bound as "caller" in this one render's
// local scope (no template global is touched), matching the forwarding
// semantics spec.md §4.4 describes.
func (e *Env) invokeMacro(name string, args []any, kwargs map[string]any) (string, error) {
	m, ok := e.macros.Lookup(name)
	if !ok {
		return "", &TemplateError{Msg: fmt.Sprintf("undefined macro %q", name)}
	}

	scope := map[string]any{}
	for i, p := range m.params {
		if i < len(args) {
			scope[p] = args[i]
		}
	}
	var adapter *callerAdapter
	for k, v := range kwargs {
		if k == "caller" {
			if fn, ok := v.(func(map[string]any) (string, error)); ok {
				adapter = newCallerAdapter(fn)
				continue
			}
			return "", &TemplateError{Msg: "macro kwarg \"caller\" must be object-typed"}
		}
		scope[k] = v
	}
	if adapter != nil {
		scope["caller"] = adapter.Call
	}

	callExpr := fmt.Sprintf("{{ %s(%s) }}", name, strings.Join(callArgNames(m.params, scope), ", "))
	return e.renderString(callExpr, scope)
}

// callArgNames returns the scope keys that correspond to a macro's declared
// positional parameters, in declaration order, so invokeMacro can build a
// literal call expression that references them by name.
func callArgNames(params []string, scope map[string]any) []string {
	out := make([]string, 0, len(params))
	for _, p := range params {
		if _, ok := scope[p]; ok {
			out = append(out, p)
		}
	}
	return out
}
