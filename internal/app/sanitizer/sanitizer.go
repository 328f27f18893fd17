// Package sanitizer strips terminal control sequences from forge text (PR
// titles, bodies, comments, branch and run names) before it reaches the
// screen.
package sanitizer

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var escapePatterns = []*regexp.Regexp{
	// CSI
	regexp.MustCompile(`\x1b\[[<>?=]?[0-9;]*[A-Za-z@^` + "`" + `~{|}!]`),
	// OSC, terminated by BEL or ST
	regexp.MustCompile(`\x1b\][^\x07\x1b]*(?:\x07|\x1b\\)`),
	// charset selection
	regexp.MustCompile(`\x1b[()][AB012]`),
	// mouse reports that lost their ESC prefix
	regexp.MustCompile(`\[<[0-9]+;[0-9]+;[0-9]+[Mm]`),
}

const tabWidth = 4

func RemoveEscapeSequences(input string) string {
	for _, p := range escapePatterns {
		input = p.ReplaceAllString(input, "")
	}
	return input
}

// Text keeps newlines, turns CRLF into LF, expands tabs and drops every other
// control character.
func Text(input string) string {
	return clean(input, false)
}

// Line is Text folded onto one line.
func Line(input string) string {
	return strings.TrimSpace(clean(input, true))
}

// Truncate cuts s to at most max runes, marking the cut with an ellipsis.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	if max == 1 {
		return "…"
	}
	return string(runes[:max-1]) + "…"
}

func clean(input string, singleLine bool) string {
	if input == "" {
		return input
	}
	input = RemoveEscapeSequences(strings.ReplaceAll(input, "\r\n", "\n"))
	var b strings.Builder
	b.Grow(len(input))
	lastSpace := false
	for _, r := range input {
		switch {
		case r == '\n' && singleLine:
			if !lastSpace {
				b.WriteByte(' ')
			}
			lastSpace = true
			continue
		case r == '\n':
			b.WriteRune(r)
		case r == '\t':
			if singleLine {
				if !lastSpace {
					b.WriteByte(' ')
				}
				lastSpace = true
				continue
			}
			b.WriteString(strings.Repeat(" ", tabWidth))
		case r < 32 || r == 127 || (r >= 0x80 && r < 0xa0):
			continue
		default:
			b.WriteRune(r)
		}
		lastSpace = r == ' '
	}
	return b.String()
}
