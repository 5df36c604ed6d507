// Package tools executes the fixed catalog of project operations the model
// can request: file reads and writes, search, tests, git, and governance
// document updates. Every operation runs behind a path-containment sandbox
// and is recorded in the work log.
package tools

import (
	"encoding/json"
	"unicode/utf8"
)

// Result is the outcome of one tool invocation. Success is false whenever
// Error is non-empty.
type Result struct {
	Success bool           `json:"success"`
	Output  string         `json:"output"`
	Error   string         `json:"error,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

func failure(format string) Result {
	return Result{Success: false, Error: format}
}

// Definition describes a tool for advertisement to the model. The catalog
// must stay in lockstep with the executor's dispatch.
type Definition struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Parameters  map[string]string `json:"parameters"`
}

// Catalog returns the fixed tool catalog in a stable order.
func Catalog() []Definition {
	return []Definition{
		{
			Name:        "read_file",
			Description: "Read file content",
			Parameters: map[string]string{
				"path":       "File path (required)",
				"start_line": "Start line (optional)",
				"end_line":   "End line (optional)",
			},
		},
		{
			Name:        "search",
			Description: "Search text in code",
			Parameters: map[string]string{
				"query":       "Search query (required)",
				"glob":        "File pattern (optional, e.g., *.go)",
				"max_results": "Max results (optional, default 20)",
			},
		},
		{
			Name:        "apply_patch",
			Description: "Create new files or modify existing files. Use this tool to write code, create schemas, config files, etc.",
			Parameters: map[string]string{
				"files": "List of files to create/modify [{path: 'file/path.go', content: 'file content'}]",
			},
		},
		{
			Name:        "run_tests",
			Description: "Run tests",
			Parameters: map[string]string{
				"cmd":     "Test command (optional, default project test runner)",
				"timeout": "Timeout in seconds (optional, default 60)",
			},
		},
		{
			Name:        "list_files",
			Description: "List files",
			Parameters: map[string]string{
				"path":      "Directory path (optional, default .)",
				"glob":      "File pattern (optional, default *)",
				"recursive": "Recursive search (optional, default true)",
			},
		},
		{
			Name:        "get_diff",
			Description: "Get Git diff",
			Parameters: map[string]string{
				"staged": "Staged changes only (optional, default false)",
				"path":   "File path (optional)",
			},
		},
		{
			Name:        "update_ssot",
			Description: "Update SSOT documents (HANDOVER.md, CHECKLIST.md, DECISIONS.md, etc.)",
			Parameters: map[string]string{
				"updates": "List of updates [{file, section, content, action}]. action: append|add_item|check_item|replace",
			},
		},
		{
			Name:        "git_commit",
			Description: "Stage files and create a git commit",
			Parameters: map[string]string{
				"message": "Commit message (required)",
				"files":   "List of files to stage (optional, default: all changes)",
			},
		},
		{
			Name:        "git_push",
			Description: "Push commits to remote repository",
			Parameters: map[string]string{
				"remote": "Remote name (optional, default: origin)",
				"branch": "Branch name (optional, default: current branch)",
			},
		},
	}
}

// Recorder receives the executor's audit trail. The memory store implements
// it; tests substitute a fake.
type Recorder interface {
	LogWork(action, target, description, result string, details map[string]any) (int64, error)
	IndexFile(path string, size int64, contentHash string) error
}

// Argument helpers for the loosely typed maps the parser produces.

func stringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func intArg(args map[string]any, key string) (int, bool) {
	v, ok := args[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}

func boolArg(args map[string]any, key string) (bool, bool) {
	v, ok := args[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// truncateString cuts s to at most max bytes without splitting a rune.
func truncateString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
