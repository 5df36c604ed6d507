// Package agent runs the request loop: build a context pack, call the
// model with the tool catalog, execute the tool calls it asks for, fold
// the results back into the next prompt, and stop on a plain-text answer
// or the iteration budget. All durable state goes through the memory
// store.
package agent

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/madorolabs/madoro/contextpack"
	"github.com/madorolabs/madoro/llm"
	"github.com/madorolabs/madoro/memory"
	"github.com/madorolabs/madoro/toolcall"
	"github.com/madorolabs/madoro/tools"
)

// MaxIterations bounds tool-call rounds per request. When the budget runs
// out the loop falls back to a summarizing call instead of looping on.
const MaxIterations = 5

const systemPrompt = `You are Madoro, a coding assistant.

Core Principles:
1. Memory is managed by the system. Don't try to remember entire conversation history.
2. Only reference the provided context (SSOT docs, related files, recent conversation).
3. Use tools when file modifications are needed.
4. Don't guess - use the search tool when you need to find something.

Response Rules:
- Respond in the same language the user uses
- IMPORTANT: When creating or modifying files, ALWAYS use the apply_patch tool. Never just show code in text.
- Use apply_patch tool for: creating new files, writing code, schemas, configs, any file content
- Use run_tests tool when testing is needed
- Use git_commit tool when user asks to commit changes
- Use git_push tool when user asks to push to remote
- If the user pastes content directly, analyze it immediately without using file read tools
- Only use read_file tool when the user mentions a file path without providing content
- Avoid unnecessary tool calls: respond directly if the user already provided the information

File Creation Rules:
- When asked to create a file, schema, or any code: USE apply_patch tool immediately
- Format: {"tool": "apply_patch", "args": {"files": [{"path": "path/to/file.go", "content": "file content here"}]}}
- Do NOT just display code in response - actually create the file using the tool

Git Rules:
- When user says "commit": use git_commit tool with appropriate message
- When user says "push": use git_push tool
- Commit message should describe what changed

SSOT Update Rules (when user says "save", "update docs", "save progress"):
- Use update_ssot tool to update project documentation
- Analyze recent conversation to extract: completed tasks, decisions, progress
- Update appropriate files:
  - HANDOVER.md: Current state, completed items, in progress, next steps
  - CHECKLIST.md: Check completed items [x], add new items [ ]
  - DECISIONS.md: Add new architectural/design decisions
- Include brief description of changes
`

const (
	outcomeOutputCap  = 500
	promptOutputCap   = 200
	autoTestOutputCap = 300
	turnRecordCap     = 500
	workLogInputCap   = 100

	repeatWindow = 6
)

// ToolOutcome records one executed tool call for prompt folding and the
// final response.
type ToolOutcome struct {
	Tool    string         `json:"tool"`
	Args    map[string]any `json:"args,omitempty"`
	Success bool           `json:"success"`
	Output  string         `json:"output"`
	Error   string         `json:"error,omitempty"`
}

// Response is the outcome of one processed request.
type Response struct {
	Message      string
	ToolOutcomes []ToolOutcome
}

// Agent orchestrates one project's request loop.
type Agent struct {
	sessionID string
	root      string
	store     *memory.Store
	executor  *tools.Executor
	builder   *contextpack.Builder
	emitter   *EventEmitter
	log       *zap.Logger

	mu          sync.Mutex
	client      llm.Client
	testCommand string
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogger attaches a logger. The default is a nop logger.
func WithLogger(log *zap.Logger) Option {
	return func(a *Agent) { a.log = log }
}

// WithTestCommand overrides auto-test command detection.
func WithTestCommand(cmd string) Option {
	return func(a *Agent) { a.testCommand = cmd }
}

// New creates an agent over a project root. The executor and context
// builder are supplied by the caller so the approval gate and turn bounds
// can be wired once at startup.
func New(projectRoot string, store *memory.Store, client llm.Client, executor *tools.Executor, builder *contextpack.Builder, opts ...Option) *Agent {
	a := &Agent{
		sessionID: "sess_" + uuid.New().String()[:8],
		root:      projectRoot,
		store:     store,
		client:    client,
		executor:  executor,
		builder:   builder,
		log:       zap.NewNop(),
	}
	a.emitter = NewEventEmitter(a.sessionID, 0)
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SessionID returns this agent's session identifier.
func (a *Agent) SessionID() string {
	return a.sessionID
}

// Events returns the progress event channel.
func (a *Agent) Events() <-chan Event {
	return a.emitter.Events()
}

// Close shuts down the event channel.
func (a *Agent) Close() {
	a.emitter.Close()
}

// SetClient swaps the transport, typically after a model switch.
func (a *Agent) SetClient(c llm.Client) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.client = c
}

func (a *Agent) currentClient() llm.Client {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.client
}

// Process runs one user request through the loop. The returned error is
// reserved for transport failures; tool failures are folded back to the
// model and surface in the outcomes.
func (a *Agent) Process(ctx context.Context, userInput string) (*Response, error) {
	client := a.currentClient()
	if client == nil {
		return nil, fmt.Errorf("no model client configured")
	}

	a.emitter.Emit(EventProcessStart, map[string]any{"input": truncate(userInput, 50)})

	if a.store != nil {
		if err := a.store.AppendTurn("user", userInput); err != nil {
			a.log.Warn("turn record failed", zap.Error(err))
		}
	}

	a.emitter.Emit(EventContextBuild, nil)
	pack := a.builder.Build(ctx, userInput)

	var outcomes []ToolOutcome
	finalResponse := ""

	for iteration := 0; iteration < MaxIterations; iteration++ {
		prompt := a.buildPrompt(userInput, pack, outcomes)

		a.emitter.Emit(EventModelCall, map[string]any{"iteration": iteration})
		resp, err := client.GenerateWithTools(ctx, prompt, tools.Catalog(), systemPrompt)
		if err != nil {
			a.emitter.Emit(EventError, map[string]any{"error": err.Error()})
			return nil, fmt.Errorf("model call failed: %w", err)
		}
		a.emitter.Emit(EventModelResponse, map[string]any{"chars": len(resp.Content)})

		calls := toolcall.Parse(resp.Content)
		if len(calls) == 0 {
			finalResponse = resp.Content
			break
		}

		patched := false
		for _, call := range calls {
			a.emitter.Emit(EventToolStart, map[string]any{
				"tool":   call.Tool,
				"detail": toolDetail(call.Tool, call.Args),
			})

			result := a.executor.Execute(ctx, call.Tool, call.Args)

			a.emitter.Emit(EventToolEnd, map[string]any{
				"tool":    call.Tool,
				"success": result.Success,
			})

			outcomes = append(outcomes, ToolOutcome{
				Tool:    call.Tool,
				Args:    call.Args,
				Success: result.Success,
				Output:  truncate(result.Output, outcomeOutputCap),
				Error:   result.Error,
			})
			if call.Tool == "apply_patch" && result.Success {
				patched = true
			}
		}

		if patched {
			a.autoTest(ctx, &outcomes)
		}

		if DetectRepeat(outcomes, repeatWindow) {
			a.emitter.Emit(EventRepeatWarning, map[string]any{"window": repeatWindow})
			break
		}
	}

	if finalResponse == "" {
		a.emitter.Emit(EventSummarize, nil)
		finalResponse = a.summarize(ctx, client, userInput, outcomes)
	}

	a.recordTurn(userInput, finalResponse, len(outcomes))
	a.emitter.Emit(EventProcessEnd, nil)

	return &Response{Message: finalResponse, ToolOutcomes: outcomes}, nil
}

// autoTest runs the project test command after a successful patch, but only
// when test files actually exist.
func (a *Agent) autoTest(ctx context.Context, outcomes *[]ToolOutcome) {
	cmd := a.testCommand
	if cmd == "" {
		cmd = detectTestCommand(a.root)
	}
	if cmd == "" {
		a.log.Debug("auto-test skipped, no test files")
		return
	}

	a.emitter.Emit(EventAutoTest, map[string]any{"cmd": cmd})
	result := a.executor.Execute(ctx, "run_tests", map[string]any{"cmd": cmd})
	*outcomes = append(*outcomes, ToolOutcome{
		Tool:    "run_tests (auto)",
		Success: result.Success,
		Output:  truncate(result.Output, autoTestOutputCap),
		Error:   result.Error,
	})
}

func (a *Agent) summarize(ctx context.Context, client llm.Client, userInput string, outcomes []ToolOutcome) string {
	resp, err := client.Generate(ctx, buildSummaryPrompt(userInput, outcomes), systemPrompt)
	if err != nil {
		return fmt.Sprintf("Task complete. (Summary generation failed: %v)", err)
	}
	return resp.Content
}

func (a *Agent) recordTurn(userInput, finalResponse string, toolCalls int) {
	if a.store == nil {
		return
	}
	if err := a.store.AppendTurn("assistant", truncate(finalResponse, turnRecordCap)); err != nil {
		a.log.Warn("turn record failed", zap.Error(err))
	}
	if _, err := a.store.LogWork("CHAT", "agent", truncate(userInput, workLogInputCap), "SUCCESS",
		map[string]any{
			"tool_calls":      toolCalls,
			"response_length": len(finalResponse),
		}); err != nil {
		a.log.Warn("work log write failed", zap.Error(err))
	}
}

// buildPrompt assembles the per-iteration prompt: the context pack, the
// last few tool results, then the request.
func (a *Agent) buildPrompt(userInput string, pack *contextpack.Pack, outcomes []ToolOutcome) string {
	var parts []string
	parts = append(parts, pack.ToPrompt())

	if len(outcomes) > 0 {
		parts = append(parts, "[TOOL RESULTS]")
		recent := outcomes
		if len(recent) > 3 {
			recent = recent[len(recent)-3:]
		}
		for _, o := range recent {
			status := "✅"
			if !o.Success {
				status = "❌"
			}
			parts = append(parts, fmt.Sprintf("%s %s: %s", status, o.Tool, truncate(o.Output, promptOutputCap)))
		}
		parts = append(parts, "")
	}

	parts = append(parts, "[USER REQUEST]", userInput)
	return strings.Join(parts, "\n")
}

func buildSummaryPrompt(userInput string, outcomes []ToolOutcome) string {
	var parts []string
	parts = append(parts,
		"The following tasks have been completed. Please summarize the results.",
		"",
		fmt.Sprintf("[Request] %s", userInput),
		"",
		"[Performed Tasks]")
	for _, o := range outcomes {
		status := "success"
		if !o.Success {
			status = "failed"
		}
		parts = append(parts, fmt.Sprintf("- %s: %s", o.Tool, status))
		if o.Error != "" {
			parts = append(parts, fmt.Sprintf("  Error: %s", o.Error))
		}
	}
	return strings.Join(parts, "\n")
}

// toolDetail produces the short human-readable argument summary shown in
// progress events.
func toolDetail(name string, args map[string]any) string {
	str := func(key string) string {
		if v, ok := args[key].(string); ok {
			return v
		}
		return ""
	}
	switch name {
	case "read_file":
		return truncate(str("path"), 50)
	case "search":
		return fmt.Sprintf("%q", str("query"))
	case "apply_patch":
		if files, ok := args["files"].([]any); ok && len(files) > 0 {
			return fmt.Sprintf("%d files", len(files))
		}
		return ""
	case "run_tests":
		return truncate(str("cmd"), 30)
	case "list_files":
		path := str("path")
		if path == "" {
			path = "."
		}
		return truncate(path, 30)
	case "get_diff":
		return "git changes"
	}
	return ""
}

// detectTestCommand picks the auto-test command from the files present.
func detectTestCommand(root string) string {
	var hasGo, hasPython, hasJS bool
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || name == "node_modules") {
				return filepath.SkipDir
			}
			return nil
		}
		name := d.Name()
		switch {
		case strings.HasSuffix(name, "_test.go"):
			hasGo = true
		case strings.HasPrefix(name, "test_") && strings.HasSuffix(name, ".py"),
			strings.HasSuffix(name, "_test.py"),
			strings.HasSuffix(name, ".py") && filepath.Base(filepath.Dir(path)) == "tests":
			hasPython = true
		case strings.HasSuffix(name, ".test.js"), strings.HasSuffix(name, ".spec.js"):
			hasJS = true
		}
		if hasGo {
			return filepath.SkipAll
		}
		return nil
	})

	switch {
	case hasGo:
		return "go test ./..."
	case hasPython:
		return "pytest -q"
	case hasJS:
		return "npm test"
	default:
		return ""
	}
}

// truncate cuts s to at most max bytes without splitting a rune, so
// persisted turns and prompt folds stay valid UTF-8.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
