package tools

import (
	"fmt"
	"regexp"
	"strings"
)

var hunkHeaderPattern = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// ApplyUnifiedDiff applies a unified diff to original content and returns
// the reconstructed text. Hunks are applied in order against a running
// cursor into the original lines; any malformed hunk fails the whole patch
// so the caller can fall back to requesting full content.
func ApplyUnifiedDiff(original, diff string) (string, error) {
	lines := strings.Split(original, "\n")
	diffLines := strings.Split(diff, "\n")

	var out []string
	cursor := 0
	applied := 0

	i := 0
	for i < len(diffLines) {
		m := hunkHeaderPattern.FindStringSubmatch(diffLines[i])
		if m == nil {
			i++
			continue
		}

		oldStart := atoiOrZero(m[1])
		if oldStart < 1 {
			oldStart = 1
		}
		if oldStart-1 < cursor {
			return "", fmt.Errorf("hunk at line %d overlaps a previous hunk", oldStart)
		}
		if oldStart-1 > len(lines) {
			return "", fmt.Errorf("hunk start %d is past end of file", oldStart)
		}

		// Copy unchanged lines up to the hunk start.
		out = append(out, lines[cursor:oldStart-1]...)
		cursor = oldStart - 1

		i++
		for i < len(diffLines) {
			dl := diffLines[i]
			if strings.HasPrefix(dl, "@@") {
				break
			}
			switch {
			case strings.HasPrefix(dl, "+"):
				out = append(out, dl[1:])
			case strings.HasPrefix(dl, "-"):
				if cursor >= len(lines) {
					return "", fmt.Errorf("deletion past end of file in hunk at line %d", oldStart)
				}
				cursor++
			case strings.HasPrefix(dl, " "):
				if cursor >= len(lines) {
					return "", fmt.Errorf("context past end of file in hunk at line %d", oldStart)
				}
				out = append(out, lines[cursor])
				cursor++
			case dl == "":
				// Trailing blank line in the diff text; treat as context
				// only while original lines remain.
				if cursor < len(lines) {
					out = append(out, lines[cursor])
					cursor++
				}
			default:
				// Unprefixed lines are tolerated as context.
				if cursor >= len(lines) {
					return "", fmt.Errorf("context past end of file in hunk at line %d", oldStart)
				}
				out = append(out, lines[cursor])
				cursor++
			}
			i++
		}
		applied++
	}

	if applied == 0 {
		return "", fmt.Errorf("no valid hunk header found")
	}

	out = append(out, lines[cursor:]...)
	return strings.Join(out, "\n"), nil
}

func atoiOrZero(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}
