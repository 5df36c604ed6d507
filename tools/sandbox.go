package tools

import (
	"fmt"
	"path/filepath"
	"strings"
)

// sensitivePatterns match resolved paths that no tool may touch regardless
// of containment: system directories, version-control internals, and
// credential file conventions. Matching is case-insensitive substring.
var sensitivePatterns = []string{
	"/etc/", "/usr/", "/bin/", "/sbin/",
	`c:\windows`, `c:\program files`,
	".git/config", ".git/hooks",
	".env", ".credentials", "secrets",
	".ssh/", ".aws/", "id_rsa",
}

// validatePath checks that a tool-supplied path stays inside the project
// root. It runs before any read or write. The raw path is rejected when it
// is absolute or contains a parent-traversal segment; the resolved path is
// rejected when it escapes the root or matches the sensitive denylist.
func validatePath(root, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path required")
	}
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("absolute paths not allowed: %q", path)
	}
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if seg == ".." {
			return "", fmt.Errorf("path traversal detected in %q", path)
		}
	}

	resolved := filepath.Clean(filepath.Join(root, path))
	rel, err := filepath.Rel(root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside project root", path)
	}

	lower := strings.ToLower(filepath.ToSlash(resolved))
	for _, pattern := range sensitivePatterns {
		if strings.Contains(lower, strings.ToLower(filepath.ToSlash(pattern))) {
			return "", fmt.Errorf("cannot access sensitive location: %q", path)
		}
	}

	return resolved, nil
}
