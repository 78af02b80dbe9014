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

import "sort"

type colour int

const (
	white colour = iota // unvisited
	grey                // on the current DFS stack
	black               // fully explored
)

// DetectCycle walks the BuildGraph's outputs-as-nodes dependency graph with
// a three-colour DFS, returning the first circular dependency found,
// canonicalised by rotating it to start at its lexicographically smallest
// node and closing the loop (first == last), matching spec.md §4.6.1's
// requirement for a deterministic, reproducible error across runs. A
// self-referential edge (an output that names itself as its own input) is
// reported as the two-element cycle [x, x].
func DetectCycle(g *BuildGraph) []string {
	deps := make(map[string][]string)
	for _, e := range g.Edges {
		var ins []string
		ins = append(ins, e.Deps...)
		ins = append(ins, e.Sources...)
		for _, out := range e.Outputs {
			deps[out] = append(deps[out], ins...)
		}
	}

	colours := make(map[string]colour, len(deps))
	var stack []string

	var nodes []string
	for out := range deps {
		nodes = append(nodes, out)
	}
	sort.Strings(nodes)

	var cycle []string
	var visit func(node string) bool
	visit = func(node string) bool {
		switch colours[node] {
		case black:
			return false
		case grey:
			cycle = closeCycle(stack, node)
			return true
		}
		colours[node] = grey
		stack = append(stack, node)
		for _, dep := range deps[node] {
			if visit(dep) {
				return true
			}
		}
		stack = stack[:len(stack)-1]
		colours[node] = black
		return false
	}

	for _, n := range nodes {
		if colours[n] == white {
			if visit(n) {
				return canonicalizeCycle(cycle)
			}
		}
	}
	return nil
}

// closeCycle extracts the portion of the DFS stack from the first
// occurrence of repeat to the top, appending repeat again to close the
// loop.
func closeCycle(stack []string, repeat string) []string {
	start := 0
	for i, n := range stack {
		if n == repeat {
			start = i
			break
		}
	}
	cyc := append([]string(nil), stack[start:]...)
	cyc = append(cyc, repeat)
	return cyc
}

// canonicalizeCycle rotates a closed cycle (first == last) so it begins at
// its lexicographically smallest node, giving a stable representation
// regardless of which node the DFS happened to revisit first.
func canonicalizeCycle(cycle []string) []string {
	if len(cycle) <= 2 {
		return cycle // self-loop [x, x]
	}
	body := cycle[:len(cycle)-1]
	minIdx := 0
	for i, n := range body {
		if n < body[minIdx] {
			minIdx = i
		}
	}
	rotated := append(append([]string(nil), body[minIdx:]...), body[:minIdx]...)
	rotated = append(rotated, rotated[0])
	return rotated
}
