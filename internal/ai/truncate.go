package ai

import (
	"fmt"
	"strings"
)

const (
	summaryHeader       = "\n--- FILES SUMMARIZED (diff too large) ---\n"
	summaryBytesPerFile = 60
)

type diffSection struct {
	path      string
	content   string
	additions int
	deletions int
	binary    bool
}

func splitDiff(diff string) []diffSection {
	var sections []diffSection
	var current *diffSection
	var b strings.Builder
	flush := func() {
		if current != nil {
			current.content = b.String()
			sections = append(sections, *current)
		}
		b.Reset()
	}
	for _, line := range strings.Split(diff, "\n") {
		if strings.HasPrefix(line, "diff --git ") {
			flush()
			path := line
			if i := strings.LastIndex(line, " b/"); i >= 0 {
				path = line[i+3:]
			}
			current = &diffSection{path: path}
		}
		if current == nil {
			continue
		}
		switch {
		case strings.HasPrefix(line, "Binary files") || strings.Contains(line, "GIT binary patch"):
			current.binary = true
		case strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
			current.additions++
		case strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
			current.deletions++
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	flush()
	return sections
}

// TruncateDiff keeps whole file sections that fit within max bytes and
// lists the remaining files with their line counts.
func TruncateDiff(diff string, max int) string {
	if len(diff) <= max {
		return diff
	}
	sections := splitDiff(diff)
	if len(sections) == 0 {
		return truncateLines(diff, max)
	}
	var out strings.Builder
	var summarized []diffSection
	for _, section := range sections {
		remaining := len(sections) - len(summarized)
		reserve := len(summaryHeader) + remaining*summaryBytesPerFile
		available := max - out.Len() - reserve
		if len(section.content) <= available {
			out.WriteString(section.content)
			continue
		}
		summarized = append(summarized, section)
	}
	if len(summarized) > 0 {
		out.WriteString(summaryHeader)
		for _, section := range summarized {
			if section.binary {
				fmt.Fprintf(&out, "%s (binary file)\n", section.path)
				continue
			}
			fmt.Fprintf(&out, "%s (+%d/-%d lines)\n", section.path, section.additions, section.deletions)
		}
	}
	return out.String()
}

func truncateLines(diff string, max int) string {
	var out strings.Builder
	for _, line := range strings.Split(diff, "\n") {
		if out.Len()+len(line)+1 > max {
			out.WriteString("\n... (diff truncated)")
			break
		}
		if out.Len() > 0 {
			out.WriteByte('\n')
		}
		out.WriteString(line)
	}
	return out.String()
}
