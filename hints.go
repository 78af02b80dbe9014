package netsuke

import "strings"

// hintRule is one entry of the ordered (substring -> hint) table consulted
// against a lower-cased parse error message.
type hintRule struct {
	substring string
	hint      string
}

// hintTable is deliberately small and ordered: the first matching rule
// wins. It is advisory only: attachHint returns the matching text, which is
// stored in a ParseError's Hint and printed after its Msg with a "help:"
// prefix.
var hintTable = []hintRule{
	{"found character that cannot start any token", "check for a stray tab or unescaped special character"},
	{"mapping values are not allowed", "a colon inside a scalar value usually needs quoting"},
	{"did not find expected key", "check indentation of the preceding mapping"},
	{"did not find expected node content", "an empty value after ':' needs 'null' or a nested block"},
	{"found unexpected end of stream", "a quote, bracket, or block scalar was left unterminated"},
	{"control characters are not allowed", "remove non-printable characters from the scalar"},
	{"duplicate key", "keys in a mapping must be unique within their block"},
}

// attachHint consults hintTable (and the leading-tab override) against msg
// and returns the advisory text to show, or "" when nothing matches.
//
// A leading tab on the offending line overrides every other hint: YAML
// forbids tabs for indentation, and that is by far the most common novice
// mistake, so it is surfaced unconditionally when present.
func attachHint(src []byte, pos Position, msg string) string {
	if lineHasLeadingTab(src, pos) {
		return "use spaces for indentation"
	}
	lower := strings.ToLower(msg)
	for _, r := range hintTable {
		if strings.Contains(lower, r.substring) {
			return r.hint
		}
	}
	return ""
}

// lineHasLeadingTab reports whether the line containing pos starts with a
// tab character, scanning backward from pos.Offset to the start of the line
// and checking the first byte there.
func lineHasLeadingTab(src []byte, pos Position) bool {
	start := pos.Offset
	for start > 0 && src[start-1] != '\n' && src[start-1] != '\r' {
		start--
	}
	return start < len(src) && src[start] == '\t'
}
