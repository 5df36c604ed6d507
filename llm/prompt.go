package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/madorolabs/madoro/tools"
)

// toolPrimer teaches the model the fenced-JSON call convention. Models
// without native function calling follow worked examples far more reliably
// than schema descriptions alone.
const toolPrimer = `
To use a tool, respond with the following JSON format:

` + "```json" + `
{"tool": "tool_name", "args": {"parameter": "value"}}
` + "```" + `

Example - Read file:
` + "```json" + `
{"tool": "read_file", "args": {"path": "README.md"}}
` + "```" + `

Example - Create/modify file (IMPORTANT!):
` + "```json" + `
{"tool": "apply_patch", "args": {"files": [{"path": "schema.go", "content": "// Schema content here\npackage schema"}]}}
` + "```" + `

Example - Git commit:
` + "```json" + `
{"tool": "git_commit", "args": {"message": "Add schema file"}}
` + "```" + `

ALWAYS use apply_patch tool when creating or modifying files.
If no tool is needed, respond with plain text.
`

// RenderToolPrompt renders the tool catalog plus the calling convention for
// inclusion in the system prompt.
func RenderToolPrompt(catalog []tools.Definition) string {
	var sb strings.Builder
	sb.WriteString("Available tools:\n")
	for _, tool := range catalog {
		fmt.Fprintf(&sb, "- %s: %s\n", tool.Name, tool.Description)
		params, _ := json.Marshal(tool.Parameters)
		fmt.Fprintf(&sb, "  Parameters: %s\n", params)
	}
	sb.WriteString(toolPrimer)
	return sb.String()
}
