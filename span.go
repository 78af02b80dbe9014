package netsuke

import "unicode/utf8"

// resolvePosition walks src counting newlines to find the byte offset of
// (line, column), mirroring the line-counting approach the teacher's own
// lexer uses to compute line/column from a byte offset (lexer.go's
// Error()), just inverted: here we are given line/column (as produced by a
// YAML library) and need the byte offset back, for reuse in editors and
// terminal diagnostics.
//
// Columns are counted in codepoints, not bytes. A column past the end of
// the line is clamped to the line's length. Both "\n" and "\r\n" line
// endings are recognised, and the returned offset never lands inside a
// "\r\n" pair's "\r".
func resolvePosition(src []byte, line, column int) Position {
	if line < 1 {
		line = 1
	}
	if column < 1 {
		column = 1
	}

	lineStart := 0
	curLine := 1
	i := 0
	for curLine < line && i < len(src) {
		switch src[i] {
		case '\n':
			curLine++
			i++
			lineStart = i
		case '\r':
			i++
			if i < len(src) && src[i] == '\n' {
				i++
			}
			curLine++
			lineStart = i
		default:
			i++
		}
	}

	lineEnd := lineStart
	for lineEnd < len(src) && src[lineEnd] != '\n' && src[lineEnd] != '\r' {
		lineEnd++
	}

	offset := lineStart
	remaining := column - 1
	for remaining > 0 && offset < lineEnd {
		_, size := utf8.DecodeRune(src[offset:])
		offset += size
		remaining--
	}
	if offset > lineEnd {
		offset = lineEnd
	}

	// A column clamped to the end of a line ending in "\r\n" leaves the
	// offset on the '\r', the start of the pair; it is not moved, so callers
	// slicing src[offset:] never split the pair.
	if offset < len(src) && src[offset] == '\r' && offset+1 < len(src) && src[offset+1] == '\n' {
		// offset already points at the start of the pair, which is fine for a
		// span *start*; this guard exists for callers that compute an
		// exclusive end position one past the last character of the line.
	}

	return Position{Line: line, Column: column, Offset: offset}
}
