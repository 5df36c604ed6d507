package tools

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// SSOTFiles are the governance documents that require approval before any
// write, whether through apply_patch or update_ssot.
var SSOTFiles = []string{
	"HANDOVER.md",
	"CONSTITUTION.md",
	"ARCHITECTURE.md",
	"CHECKLIST.md",
	"DECISIONS.md",
}

// IsSSOTFile reports whether the path names a governance document. Only the
// base name matters; a HANDOVER.md in a subdirectory is still gated.
func IsSSOTFile(path string) bool {
	name := filepath.Base(path)
	for _, f := range SSOTFiles {
		if name == f {
			return true
		}
	}
	return false
}

// PendingChange is a governance write queued when no approver is attached.
// The change is held, not applied; ResolvePending applies or discards it.
type PendingChange struct {
	Path       string
	FullPath   string
	FileName   string
	OldContent string
	NewContent string
}

var (
	lastUpdatedPattern = regexp.MustCompile(`Last updated:.*`)
	checkboxPattern    = regexp.MustCompile(`(?m)^- \[[ x]\].*$`)
)

// touchLastUpdated stamps the document's freshness line: an existing
// "Last updated:" line is rewritten in place, otherwise one is inserted
// after the title line.
func touchLastUpdated(content, timestamp string) string {
	if lastUpdatedPattern.MatchString(content) {
		return lastUpdatedPattern.ReplaceAllString(content, "Last updated: "+timestamp)
	}
	lines := strings.Split(content, "\n")
	if len(lines) > 1 {
		lines = append(lines[:1], append([]string{"Last updated: " + timestamp}, lines[1:]...)...)
		return strings.Join(lines, "\n")
	}
	return "Last updated: " + timestamp + "\n" + content
}

// findSection locates a "## <name>" block. It returns the byte range from
// the header line up to (not including) the next header line or end of
// content, and false when the section does not exist.
func findSection(content, section string) (start, end int, ok bool) {
	headerPattern := regexp.MustCompile(`(?m)^#{2,} ` + regexp.QuoteMeta(section) + `.*$`)
	loc := headerPattern.FindStringIndex(content)
	if loc == nil {
		return 0, 0, false
	}
	start = loc[0]

	rest := content[loc[1]:]
	nextHeader := regexp.MustCompile(`(?m)^##`).FindStringIndex(rest)
	if nextHeader == nil {
		return start, len(content), true
	}
	return start, loc[1] + nextHeader[0], true
}

// applySSOTAction applies one structured edit to a governance document and
// returns the new content.
//
//	append:     add content inside the section (or at the end of the file)
//	add_item:   add "- [ ] content" after the section's last checklist item
//	check_item: flip "- [ ] content" to "- [x] content"
//	replace:    replace the section body, keeping the header line
func applySSOTAction(content, section, text, action string) (string, error) {
	switch action {
	case "append":
		if section == "" {
			return content + "\n" + text + "\n", nil
		}
		_, end, ok := findSection(content, section)
		if !ok {
			return content + "\n## " + section + "\n" + text + "\n", nil
		}
		return strings.TrimRight(content[:end], "\n \t") + "\n" + text + "\n" + content[end:], nil

	case "add_item":
		if section == "" {
			return content, nil
		}
		start, end, ok := findSection(content, section)
		if !ok {
			return content, nil
		}
		sectionText := content[start:end]
		items := checkboxPattern.FindAllStringIndex(sectionText, -1)
		if len(items) > 0 {
			insertAt := start + items[len(items)-1][1]
			return content[:insertAt] + "\n- [ ] " + text + content[insertAt:], nil
		}
		return strings.TrimRight(content[:end], "\n \t") + "\n- [ ] " + text + "\n" + content[end:], nil

	case "check_item":
		itemPattern := regexp.MustCompile(`(?m)^- \[ \] ` + regexp.QuoteMeta(text))
		return itemPattern.ReplaceAllString(content, "- [x] "+text), nil

	case "replace":
		if section == "" {
			return content, nil
		}
		start, end, ok := findSection(content, section)
		if !ok {
			return content, nil
		}
		headerEnd := strings.IndexByte(content[start:end], '\n')
		if headerEnd < 0 {
			headerEnd = end - start
		}
		header := content[start : start+headerEnd]
		return content[:start] + header + "\n" + text + "\n" + content[end:], nil

	default:
		return "", fmt.Errorf("unknown action %q", action)
	}
}
