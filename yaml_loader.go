package netsuke

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// knownTopLevelKeys is the closed set §6 allows at the manifest root.
var knownTopLevelKeys = []string{
	"netsuke_version", "vars", "rules", "actions", "targets", "defaults", "macros",
}

// LoadManifestSource is stage 1: given a manifest path, produce its UTF-8
// source buffer and a logical name for diagnostics. It never interprets
// the bytes.
func LoadManifestSource(path string) (src []byte, logicalName string, err error) {
	data, readErr := os.ReadFile(path)
	if readErr != nil {
		if os.IsNotExist(readErr) {
			dir := filepath.Dir(path)
			return nil, "", &RunnerError{Msg: fmt.Sprintf(
				"manifest not found: %s (looked for %q in %s)",
				path, filepath.Base(path), dir)}
		}
		return nil, "", &RunnerError{Msg: fmt.Sprintf("reading manifest %s: %v", path, readErr)}
	}
	if !utf8.Valid(data) {
		return nil, "", &RunnerError{Msg: fmt.Sprintf("manifest %s is not valid UTF-8", path)}
	}
	return data, path, nil
}

// ParseYAML is stage 2: it consumes a UTF-8 source buffer and produces an
// untyped tree whose keys are strings and whose values are
// nil/bool/int/float64/string/[]any/map[string]any (JSON-shaped).
//
// Mapping keys that are not string scalars are rejected, as are unknown
// top-level keys and duplicate keys within any mapping. Every error is
// reported with a reconstructed line/column/byte span and, where
// applicable, an advisory hint (see hints.go). A syntax error from yaml.v3
// names only its line, so its column is reported as 1.
func ParseYAML(src []byte, logicalName string) (map[string]any, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(src, &root); err != nil {
		return nil, wrapYAMLError(src, logicalName, err)
	}
	if len(root.Content) == 0 {
		return map[string]any{}, nil
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		pos := resolvePosition(src, doc.Line, doc.Column)
		return nil, &ParseError{Source: logicalName, Pos: pos, Msg: "manifest root must be a mapping"}
	}

	if err := rejectDuplicateKeys(src, logicalName, doc); err != nil {
		return nil, err
	}

	tree, err := decodeNode(src, logicalName, doc)
	if err != nil {
		return nil, err
	}
	mapping, ok := tree.(map[string]any)
	if !ok {
		pos := resolvePosition(src, doc.Line, doc.Column)
		return nil, &ParseError{Source: logicalName, Pos: pos, Msg: "manifest root must be a mapping"}
	}

	for key := range mapping {
		if !contains(knownTopLevelKeys, key) {
			pos := keyPosition(src, doc, key)
			msg := fmt.Sprintf("unknown top-level key %q", key)
			hint := ""
			if s := spellcheck(key, knownTopLevelKeys); s != "" {
				hint = fmt.Sprintf("did you mean %q?", s)
			}
			return nil, &ParseError{Source: logicalName, Pos: pos, Msg: msg, Hint: hint}
		}
	}

	return mapping, nil
}

// decodeNode walks a *yaml.Node recursively into the JSON-shaped untyped
// tree, rejecting non-string mapping keys along the way.
func decodeNode(src []byte, logicalName string, node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return decodeNode(src, logicalName, node.Content[0])
	case yaml.MappingNode:
		out := make(map[string]any, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			keyNode := node.Content[i]
			if keyNode.Kind != yaml.ScalarNode || (keyNode.Tag != "" && keyNode.Tag != "!!str" && keyNode.Tag != "!!merge") {
				pos := resolvePosition(src, keyNode.Line, keyNode.Column)
				return nil, &ParseError{Source: logicalName, Pos: pos, Msg: "mapping keys must be string scalars"}
			}
			valNode := node.Content[i+1]
			val, err := decodeNode(src, logicalName, valNode)
			if err != nil {
				return nil, err
			}
			out[keyNode.Value] = val
		}
		return out, nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(node.Content))
		for _, c := range node.Content {
			val, err := decodeNode(src, logicalName, c)
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		}
		return out, nil
	case yaml.ScalarNode:
		var v any
		if err := node.Decode(&v); err != nil {
			pos := resolvePosition(src, node.Line, node.Column)
			return nil, &ParseError{Source: logicalName, Pos: pos, Msg: err.Error()}
		}
		return v, nil
	case yaml.AliasNode:
		return decodeNode(src, logicalName, node.Alias)
	default:
		return nil, nil
	}
}

// rejectDuplicateKeys scans every mapping node in the tree (recursively)
// for a key string that appears twice, which yaml.v3's Decode otherwise
// resolves silently by letting the last one win.
func rejectDuplicateKeys(src []byte, logicalName string, node *yaml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		seen := make(map[string]bool, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			keyNode := node.Content[i]
			if keyNode.Kind == yaml.ScalarNode {
				if seen[keyNode.Value] {
					pos := resolvePosition(src, keyNode.Line, keyNode.Column)
					msg := fmt.Sprintf("duplicate key %q", keyNode.Value)
					return &ParseError{Source: logicalName, Pos: pos, Msg: msg,
						Hint: attachHint(src, pos, msg)}
				}
				seen[keyNode.Value] = true
			}
			if err := rejectDuplicateKeys(src, logicalName, node.Content[i+1]); err != nil {
				return err
			}
		}
	case yaml.SequenceNode:
		for _, c := range node.Content {
			if err := rejectDuplicateKeys(src, logicalName, c); err != nil {
				return err
			}
		}
	case yaml.DocumentNode:
		for _, c := range node.Content {
			if err := rejectDuplicateKeys(src, logicalName, c); err != nil {
				return err
			}
		}
	}
	return nil
}

// keyPosition re-walks doc to find the source position of a known key name,
// used only for error reporting (the untyped tree itself has already lost
// node positions by the time the caller notices the key is unknown).
func keyPosition(src []byte, doc *yaml.Node, key string) Position {
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if doc.Content[i].Value == key {
			return resolvePosition(src, doc.Content[i].Line, doc.Content[i].Column)
		}
	}
	return resolvePosition(src, doc.Line, doc.Column)
}

// yamlErrLinePattern picks the 1-based line number out of a yaml.v3 error
// message such as "yaml: line 3: mapping values are not allowed".
var yamlErrLinePattern = regexp.MustCompile(`line (\d+)`)

func wrapYAMLError(src []byte, logicalName string, err error) error {
	pos := resolvePosition(src, 1, 1)
	if m := yamlErrLinePattern.FindStringSubmatch(err.Error()); m != nil {
		if line, convErr := strconv.Atoi(m[1]); convErr == nil {
			pos = resolvePosition(src, line, 1)
		}
	}
	var te *yaml.TypeError
	if errors.As(err, &te) {
		msg := bytes.NewBufferString("")
		for i, m := range te.Errors {
			if i > 0 {
				msg.WriteString("; ")
			}
			msg.WriteString(m)
		}
		return &ParseError{Source: logicalName, Pos: pos, Msg: msg.String(),
			Hint: attachHint(src, pos, msg.String())}
	}
	return &ParseError{Source: logicalName, Pos: pos, Msg: err.Error(),
		Hint: attachHint(src, pos, err.Error())}
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
