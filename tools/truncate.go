package tools

import (
	"fmt"
	"strings"
)

// TruncationMode specifies how oversized tool output is trimmed.
type TruncationMode string

const (
	TruncateHeadTail TruncationMode = "head_tail"
	TruncateTail     TruncationMode = "tail"
)

// Default character limits per tool.
var DefaultToolCharLimits = map[string]int{
	"read_file":   50000,
	"search":      20000,
	"run_tests":   30000,
	"list_files":  20000,
	"get_diff":    30000,
	"apply_patch": 10000,
	"update_ssot": 10000,
	"git_commit":  10000,
	"git_push":    10000,
}

// Default truncation modes per tool.
var DefaultTruncationModes = map[string]TruncationMode{
	"read_file":   TruncateHeadTail,
	"search":      TruncateTail,
	"run_tests":   TruncateHeadTail,
	"list_files":  TruncateTail,
	"get_diff":    TruncateHeadTail,
	"apply_patch": TruncateTail,
	"update_ssot": TruncateTail,
	"git_commit":  TruncateTail,
	"git_push":    TruncateTail,
}

// Default line limits per tool (applied after character truncation).
var DefaultToolLineLimits = map[string]int{
	"run_tests":  256,
	"search":     200,
	"list_files": 500,
}

// TruncateOutput applies character-based truncation to output.
func TruncateOutput(output string, maxChars int, mode TruncationMode) string {
	if len(output) <= maxChars {
		return output
	}

	removed := len(output) - maxChars
	switch mode {
	case TruncateTail:
		return fmt.Sprintf("[WARNING: Tool output was truncated. First %d characters were removed. "+
			"Re-run the tool with more targeted parameters if you need them.]\n\n",
			removed) +
			output[len(output)-maxChars:]
	default:
		half := maxChars / 2
		return output[:half] +
			fmt.Sprintf("\n\n[WARNING: Tool output was truncated. %d characters were removed from the middle. "+
				"Re-run the tool with more targeted parameters if you need them.]\n\n",
				removed) +
			output[len(output)-half:]
	}
}

// TruncateLines applies line-based truncation using a head/tail split.
func TruncateLines(output string, maxLines int) string {
	lines := strings.Split(output, "\n")
	if len(lines) <= maxLines {
		return output
	}

	headCount := maxLines / 2
	tailCount := maxLines - headCount
	omitted := len(lines) - headCount - tailCount

	return strings.Join(lines[:headCount], "\n") +
		fmt.Sprintf("\n[... %d lines omitted ...]\n", omitted) +
		strings.Join(lines[len(lines)-tailCount:], "\n")
}

// TruncateToolOutput applies the full truncation pipeline for a tool:
// character-based truncation first to handle pathological cases, then
// line-based truncation for readability. Overrides replace the per-tool
// character limits when non-nil.
func TruncateToolOutput(output, toolName string, charLimits map[string]int) string {
	maxChars, ok := charLimits[toolName]
	if !ok {
		maxChars, ok = DefaultToolCharLimits[toolName]
		if !ok {
			maxChars = 30000
		}
	}

	mode, ok := DefaultTruncationModes[toolName]
	if !ok {
		mode = TruncateHeadTail
	}

	result := TruncateOutput(output, maxChars, mode)

	if maxLines, ok := DefaultToolLineLimits[toolName]; ok {
		result = TruncateLines(result, maxLines)
	}

	return result
}
