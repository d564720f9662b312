// Package format provides shared text formatting utilities for terminal output.
package format

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"

	"github.com/spiffcs/staticmap/internal/constants"
)

// ansiRegex matches ANSI escape sequences
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*m`)

const ellipsis = "..."

// StripAnsi removes ANSI escape sequences from a string.
func StripAnsi(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// DisplayWidth returns the visible width of a string in terminal columns,
// ignoring ANSI escape sequences.
func DisplayWidth(s string) int {
	return runewidth.StringWidth(StripAnsi(s))
}

// Truncate shortens s to at most maxWidth display columns, ending it with
// "..." when anything was cut. Escape sequences are kept and a reset is
// appended if the input was styled.
func Truncate(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if DisplayWidth(s) <= maxWidth {
		return s
	}

	target := maxWidth - constants.TruncationSuffixWidth
	if target < 0 {
		return ellipsis[:maxWidth]
	}

	matches := ansiRegex.FindAllStringIndex(s, -1)
	var b strings.Builder
	width, pos, next := 0, 0, 0
	for pos < len(s) {
		if next < len(matches) && pos == matches[next][0] {
			b.WriteString(s[matches[next][0]:matches[next][1]])
			pos = matches[next][1]
			next++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[pos:])
		rw := runewidth.RuneWidth(r)
		if width+rw > target {
			break
		}
		b.WriteString(s[pos : pos+size])
		width += rw
		pos += size
	}

	b.WriteString(ellipsis)
	if len(matches) > 0 {
		b.WriteString("\033[0m")
	}
	return b.String()
}

// PadRight pads s with spaces to targetWidth display columns.
func PadRight(s string, targetWidth int) string {
	w := DisplayWidth(s)
	if w >= targetWidth {
		return s
	}
	return s + strings.Repeat(" ", targetWidth-w)
}

// FitLines truncates every line to width and keeps only the last max lines.
func FitLines(lines []string, width, max int) []string {
	if max > 0 && len(lines) > max {
		lines = lines[len(lines)-max:]
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = Truncate(l, width)
	}
	return out
}
