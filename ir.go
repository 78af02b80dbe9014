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
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Action is one synthesised unit of work: either a command line or a
// script body, never both, resolved from either a Target's own recipe or
// the named Rule it references (spec.md §4.6).
type Action struct {
	Command     string
	Script      string
	Description string
	Pool        string
	Restat      bool
	Depfile     string
	DepsFormat  string

	// hash identifies this Action's content for dedup: two targets whose
	// fully-resolved recipe, description, pool, and restat/depfile settings
	// are identical share one Action rather than emitting duplicate Ninja
	// rules.
	hash string
}

// BuildEdge connects one Action to the outputs it produces and the inputs
// it depends on.
type BuildEdge struct {
	Outputs   []string
	Sources   []string
	Deps      []string
	OrderOnly []string
	Phony     bool
	Always    bool
	Action    *Action
}

// BuildGraph is the fully resolved intermediate representation handed to
// the Ninja emitter: deduplicated actions, their edges, and the manifest's
// default target list, copied through unchanged (spec.md §4.6).
type BuildGraph struct {
	Actions  []*Action
	Edges    []*BuildEdge
	Defaults []string
}

// GenerateIR walks a typed, fully rendered Manifest and produces its
// BuildGraph: rules are collected into a name-keyed lookup, then every
// action and target is resolved against either its own inline recipe or a
// named rule, interpolating $in/$out, before being canonicalised and
// deduplicated by content hash (spec.md §4.6).
func GenerateIR(m *Manifest) (*BuildGraph, error) {
	rules := make(map[string]*Rule, len(m.Rules))
	for i := range m.Rules {
		rules[m.Rules[i].Name] = &m.Rules[i]
	}

	g := &BuildGraph{Defaults: append([]string(nil), m.Defaults...)}
	byHash := map[string]*Action{}

	add := func(t *Target) error {
		edge, err := resolveEdge(t, rules)
		if err != nil {
			return err
		}

		if existing, ok := byHash[edge.Action.hash]; ok {
			edge.Action = existing
		} else {
			byHash[edge.Action.hash] = edge.Action
			g.Actions = append(g.Actions, edge.Action)
		}
		g.Edges = append(g.Edges, edge)
		return nil
	}

	for i := range m.Actions {
		if err := add(&m.Actions[i]); err != nil {
			return nil, err
		}
	}
	for i := range m.Targets {
		if err := add(&m.Targets[i]); err != nil {
			return nil, err
		}
	}

	if dupes := findDuplicateOutputs(g.Edges); len(dupes) > 0 {
		return nil, &IRError{Kind: IRDuplicateOutputs, Names: dupes}
	}

	if cycle := DetectCycle(g); cycle != nil {
		return nil, &IRError{Kind: IRCircularDependency, Cycle: cycle}
	}

	return g, nil
}

// resolveEdge builds one BuildEdge for t, resolving its recipe either
// inline or via a named rule and interpolating $in/$out into the result.
func resolveEdge(t *Target, rules map[string]*Rule) (*BuildEdge, error) {
	outputs := t.Outputs()
	sources := t.Sources.Slice()
	deps := t.Deps.Slice()

	recipe := t.Recipe
	description := t.Description
	var ruleDeps []string

	if recipe.Kind == RecipeRule {
		names := recipe.Rule.Slice()
		switch len(names) {
		case 0:
			return nil, &IRError{Kind: IREmptyRule, Target: t.DisplayName()}
		case 1:
			// fallthrough to lookup below
		default:
			return nil, &IRError{Kind: IRMultipleRules, Target: t.DisplayName(), Names: names}
		}
		name := names[0]
		rule, ok := rules[name]
		if !ok {
			return nil, &IRError{Kind: IRRuleNotFound, Target: t.DisplayName(), RuleLookup: name}
		}
		recipe = rule.Recipe
		if description == "" {
			description = rule.Description
		}
		ruleDeps = rule.Deps.Slice()
	}

	in := strings.Join(sources, " ")
	out := strings.Join(outputs, " ")
	command := interpolate(recipe.Command, in, out)
	script := interpolate(recipe.Script, in, out)

	action := &Action{
		Command:     command,
		Script:      script,
		Description: interpolate(description, in, out),
		Pool:        t.Pool,
		Restat:      t.Restat,
		Depfile:     t.Depfile,
		DepsFormat:  t.DepsFormat,
	}
	action.hash = hashAction(action)

	return &BuildEdge{
		Outputs:   outputs,
		Sources:   sources,
		Deps:      append(append([]string(nil), deps...), ruleDeps...),
		OrderOnly: t.OrderOnly.Slice(),
		Phony:     t.Phony,
		Always:    t.Always,
		Action:    action,
	}, nil
}

// interpolate replaces Ninja's $in/$out placeholders in a rule or recipe
// string with the edge's resolved sources and outputs, joined by spaces.
func interpolate(s, in, out string) string {
	if s == "" {
		return s
	}
	r := strings.NewReplacer("$in", in, "$out", out)
	return r.Replace(s)
}

// hashAction computes a canonical SHA-256 digest of an Action's content so
// structurally identical actions produced by different targets are
// deduplicated into a single emitted rule (spec.md §4.6).
func hashAction(a *Action) string {
	canonical, _ := json.Marshal(struct {
		Command     string
		Script      string
		Description string
		Pool        string
		Restat      bool
		Depfile     string
		DepsFormat  string
	}{a.Command, a.Script, a.Description, a.Pool, a.Restat, a.Depfile, a.DepsFormat})
	sum := sha256.Sum256(canonical)
	return fmt.Sprintf("%x", sum)
}

// findDuplicateOutputs scans every edge's outputs for a path claimed by
// more than one edge, returning the sorted set of offending paths.
func findDuplicateOutputs(edges []*BuildEdge) []string {
	count := map[string]int{}
	for _, e := range edges {
		for _, out := range e.Outputs {
			count[out]++
		}
	}
	var dupes []string
	for out, n := range count {
		if n > 1 {
			dupes = append(dupes, out)
		}
	}
	sort.Strings(dupes)
	return dupes
}
