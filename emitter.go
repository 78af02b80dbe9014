// Copyright 2011 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package netsuke

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
)

// EmitNinja synthesises a build.ninja file from a resolved BuildGraph.
// Actions are assigned stable rule names in sorted-hash order, edges are
// sorted by the NUL-joined, sorted list of their outputs, and defaults are
// sorted, so two
// synthesis runs over the same BuildGraph byte-for-byte agree (spec.md
// §4.7's determinism requirement).
func EmitNinja(w io.Writer, g *BuildGraph) error {
	bw := bufio.NewWriter(w)

	actions := append([]*Action(nil), g.Actions...)
	sort.Slice(actions, func(i, j int) bool { return actions[i].hash < actions[j].hash })
	ruleNames := make(map[*Action]string, len(actions))
	for i, a := range actions {
		name := fmt.Sprintf("r%d", i)
		ruleNames[a] = name
		if err := emitRule(bw, name, a); err != nil {
			return err
		}
	}

	edges := append([]*BuildEdge(nil), g.Edges...)
	edgeKeys := make(map[*BuildEdge]string, len(edges))
	for _, e := range edges {
		outs := append([]string(nil), e.Outputs...)
		sort.Strings(outs)
		edgeKeys[e] = strings.Join(outs, "\x00")
	}
	sort.Slice(edges, func(i, j int) bool { return edgeKeys[edges[i]] < edgeKeys[edges[j]] })
	for _, e := range edges {
		if err := emitEdge(bw, e, ruleNames[e.Action]); err != nil {
			return err
		}
	}

	if len(g.Defaults) > 0 {
		defaults := append([]string(nil), g.Defaults...)
		sort.Strings(defaults)
		fmt.Fprintf(bw, "\ndefault %s\n", strings.Join(defaults, " "))
	}

	return bw.Flush()
}

func primaryOutput(e *BuildEdge) string {
	if len(e.Outputs) == 0 {
		return ""
	}
	return e.Outputs[0]
}

// emitRule writes one Ninja `rule` block. A script recipe is turned into a
// single-line `printf %b '...' | sh` pipeline via scriptCommand so
// multi-line script bodies survive Ninja's single-line command syntax.
func emitRule(w *bufio.Writer, name string, a *Action) error {
	command := a.Command
	if a.Script != "" {
		command = scriptCommand(a.Script)
	}
	fmt.Fprintf(w, "rule %s\n  command = %s\n", name, command)
	if a.Description != "" {
		fmt.Fprintf(w, "  description = %s\n", a.Description)
	}
	if a.Depfile != "" {
		fmt.Fprintf(w, "  depfile = %s\n", a.Depfile)
	}
	if a.DepsFormat != "" {
		fmt.Fprintf(w, "  deps = %s\n", a.DepsFormat)
	}
	if a.Restat {
		fmt.Fprintf(w, "  restat = 1\n")
	}
	fmt.Fprintln(w)
	return nil
}

// scriptCommand converts a multi-line script body into a single-line shell
// invocation: the body is escaped for printf's %b and wrapped in single
// quotes (an embedded quote closes the quoting, is backslash-escaped, and
// reopens it) so embedded newlines,
// backslashes, and percent signs round-trip exactly, then piped into `sh`
// (spec.md §4.7 "command vs script recipe emission").
func scriptCommand(script string) string {
	var b strings.Builder
	b.WriteString("printf %b '")
	b.WriteString(ninjaEscape(strings.ReplaceAll(printfEscape(script), "'", `'\''`)))
	b.WriteString("' | sh")
	return b.String()
}

// printfEscape escapes what printf's %b would otherwise interpret or what
// cannot sit on one command line: each backslash is doubled and each newline
// becomes the two-character `\n` escape. Percent signs are left as they are,
// since %b does not treat them specially in its argument.
func printfEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}

// ninjaEscape escapes the characters significant to Ninja's own lexer
// inside a command value: `$` must be doubled.
func ninjaEscape(s string) string {
	return strings.ReplaceAll(s, "$", "$$")
}

// emitEdge writes one Ninja `build` statement.
func emitEdge(w *bufio.Writer, e *BuildEdge, ruleName string) error {
	if e.Phony || e.Action == nil || ruleName == "" {
		ruleName = "phony"
	}
	outputs := strings.Join(e.Outputs, " ")
	fmt.Fprintf(w, "build %s: %s", outputs, ruleName)
	if len(e.Sources) > 0 {
		fmt.Fprintf(w, " %s", strings.Join(e.Sources, " "))
	}
	if len(e.Deps) > 0 {
		fmt.Fprintf(w, " | %s", strings.Join(e.Deps, " "))
	}
	if len(e.OrderOnly) > 0 {
		fmt.Fprintf(w, " || %s", strings.Join(e.OrderOnly, " "))
	}
	fmt.Fprintln(w)
	if e.Always && (e.Action == nil || !e.Action.Restat) {
		fmt.Fprintf(w, "  restat = 1\n")
	}
	fmt.Fprintln(w)
	return nil
}
