package toolcall

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Call is a single tool invocation extracted from model output.
type Call struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// strategy extracts zero or more calls from raw model text. Strategies never
// fail; malformed candidates are skipped silently.
type strategy func(text string) []Call

// Strategies are ordered by reliability. The dedicated apply_patch tag form
// runs before the generic tag form, so a response containing both yields
// only the apply_patch calls.
var strategies = []strategy{
	parseFencedJSON,
	parseApplyPatchTag,
	parseGenericTags,
	parseLineJSON,
	parseEmbeddedJSON,
}

// Parse extracts tool calls from raw model text. Strategies are tried in
// priority order; the first one producing at least one call wins. An empty
// result means the text is a final natural-language answer, not an error.
func Parse(text string) []Call {
	for _, s := range strategies {
		if calls := s(text); len(calls) > 0 {
			return calls
		}
	}
	return nil
}

var fencedJSONPattern = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// parseFencedJSON handles fenced blocks explicitly marked as JSON, each
// holding either a single call object or an array of them.
func parseFencedJSON(text string) []Call {
	var calls []Call
	for _, m := range fencedJSONPattern.FindAllStringSubmatch(text, -1) {
		var decoded any
		if err := json.Unmarshal([]byte(m[1]), &decoded); err != nil {
			continue
		}
		switch v := decoded.(type) {
		case []any:
			for _, item := range v {
				if obj, ok := item.(map[string]any); ok {
					if c, ok := callFromMap(obj); ok {
						calls = append(calls, c)
					}
				}
			}
		case map[string]any:
			if c, ok := callFromMap(v); ok {
				calls = append(calls, c)
			}
		}
	}
	return calls
}

var (
	applyPatchPattern = regexp.MustCompile(`(?s)<apply_patch>(.*?)</apply_patch>`)
	fileTagPattern    = regexp.MustCompile(`(?s)<file>(.*?)</file>`)
	pathTagPattern    = regexp.MustCompile(`(?s)<path>(.*?)</path>`)
	contentTagPattern = regexp.MustCompile(`(?s)<content>(.*?)</content>`)
)

// parseApplyPatchTag handles the dedicated file-write tag form. Multi-line
// file content breaks naive JSON escaping, so the tag form lets the model
// embed content without escaping newlines. Sub-strategies fall through:
// inline JSON, nested <file> tags, then a flat path/content pair.
func parseApplyPatchTag(text string) []Call {
	m := applyPatchPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	inner := strings.TrimSpace(m[1])

	var files []any

	// Inline JSON: an array of file objects or {"files": [...]}.
	var decoded any
	if err := json.Unmarshal([]byte(inner), &decoded); err == nil {
		switch v := decoded.(type) {
		case []any:
			files = v
		case map[string]any:
			if f, ok := v["files"].([]any); ok {
				files = f
			}
		}
	}

	// Nested <file> tags, each holding inline JSON or path/content sub-tags.
	if len(files) == 0 {
		for _, fm := range fileTagPattern.FindAllStringSubmatch(inner, -1) {
			var fileObj map[string]any
			if err := json.Unmarshal([]byte(fm[1]), &fileObj); err == nil {
				files = append(files, fileObj)
				continue
			}
			if f, ok := pathContentPair(fm[1]); ok {
				files = append(files, f)
			}
		}
	}

	// Flat path/content pair directly inside the tag.
	if len(files) == 0 {
		if f, ok := pathContentPair(inner); ok {
			files = append(files, f)
		}
	}

	if len(files) == 0 {
		return nil
	}
	return []Call{{Tool: "apply_patch", Args: map[string]any{"files": files}}}
}

func pathContentPair(text string) (map[string]any, bool) {
	pm := pathTagPattern.FindStringSubmatch(text)
	cm := contentTagPattern.FindStringSubmatch(text)
	if pm == nil || cm == nil {
		return nil, false
	}
	return map[string]any{
		"path":    strings.TrimSpace(pm[1]),
		"content": cm[1],
	}, true
}

// taggedTool pairs a tool name with the parameters its tag form recognizes.
// Order is fixed so parsing stays deterministic.
var taggedTools = []struct {
	name   string
	params []string
}{
	{"read_file", []string{"path"}},
	{"search", []string{"query", "path"}},
	{"run_tests", []string{"cmd"}},
	{"list_files", []string{"path"}},
	{"get_diff", nil},
	{"update_ssot", []string{"updates"}},
	{"git_commit", []string{"message", "files"}},
	{"git_push", []string{"remote", "branch"}},
}

// parseGenericTags handles <tool_name> tags for the simple-parameter tools.
// Parameter values that look like JSON arrays or objects are decoded;
// everything else stays a raw string.
func parseGenericTags(text string) []Call {
	var calls []Call
	for _, tt := range taggedTools {
		pattern := regexp.MustCompile(`(?s)<` + tt.name + `>(.*?)</` + tt.name + `>`)
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		inner := m[1]
		args := map[string]any{}
		for _, param := range tt.params {
			paramPattern := regexp.MustCompile(`(?s)<` + param + `>(.*?)</` + param + `>`)
			pm := paramPattern.FindStringSubmatch(inner)
			if pm == nil {
				continue
			}
			value := strings.TrimSpace(pm[1])
			args[param] = decodeMaybeJSON(value)
		}
		if len(args) > 0 || len(tt.params) == 0 {
			calls = append(calls, Call{Tool: tt.name, Args: args})
		}
	}
	return calls
}

func decodeMaybeJSON(value string) any {
	if strings.HasPrefix(value, "[") || strings.HasPrefix(value, "{") {
		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err == nil {
			return decoded
		}
	}
	return value
}

// parseLineJSON scans line by line for bare single-line call objects.
func parseLineJSON(text string) []Call {
	var calls []Call
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") || !strings.Contains(line, `"tool"`) {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			continue
		}
		if c, ok := callFromMap(obj); ok {
			calls = append(calls, c)
		}
	}
	return calls
}

var embeddedJSONPattern = regexp.MustCompile(`(?s)\{\s*"tool"\s*:\s*"[^"]+"\s*,\s*"args"\s*:\s*\{.*?\}\s*\}`)

// parseEmbeddedJSON locates call-shaped JSON spans anywhere in the text,
// fencing or not.
func parseEmbeddedJSON(text string) []Call {
	var calls []Call
	for _, m := range embeddedJSONPattern.FindAllString(text, -1) {
		var obj map[string]any
		if err := json.Unmarshal([]byte(m), &obj); err != nil {
			continue
		}
		if c, ok := callFromMap(obj); ok {
			calls = append(calls, c)
		}
	}
	return calls
}

func callFromMap(obj map[string]any) (Call, bool) {
	name, ok := obj["tool"].(string)
	if !ok || name == "" {
		return Call{}, false
	}
	args, _ := obj["args"].(map[string]any)
	if args == nil {
		args = map[string]any{}
	}
	return Call{Tool: name, Args: args}, true
}
