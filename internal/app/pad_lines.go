package app

import (
	"strings"

	xansi "github.com/charmbracelet/x/ansi"
)

// padLines right-pads styled lines to width and fills the block to height
// so a shorter frame fully overwrites the previous one.
func padLines(lines []string, width, height int) string {
	for len(lines) < height {
		lines = append(lines, "")
	}
	if height > 0 && len(lines) > height {
		lines = lines[:height]
	}
	if width <= 0 {
		return strings.Join(lines, "\n")
	}
	out := make([]string, len(lines))
	for i, line := range lines {
		lineWidth := xansi.StringWidth(line)
		switch {
		case lineWidth > width:
			line = xansi.Truncate(line, width, "")
		case lineWidth < width:
			line += strings.Repeat(" ", width-lineWidth)
		}
		out[i] = line
	}
	return strings.Join(out, "\n")
}
