package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madorolabs/madoro/contextpack"
	"github.com/madorolabs/madoro/llm"
	"github.com/madorolabs/madoro/memory"
	"github.com/madorolabs/madoro/tools"
)

// scriptedClient replays a fixed sequence of tool-capable responses and a
// single summary response.
type scriptedClient struct {
	responses    []string
	summary      string
	summaryErr   error
	generateErr  error
	toolCalls    int
	summaryCalls int
}

func (c *scriptedClient) Generate(ctx context.Context, prompt, system string) (*llm.Response, error) {
	c.summaryCalls++
	if c.summaryErr != nil {
		return nil, c.summaryErr
	}
	return &llm.Response{Content: c.summary, Model: "scripted"}, nil
}

func (c *scriptedClient) GenerateWithTools(ctx context.Context, prompt string, catalog []tools.Definition, system string) (*llm.Response, error) {
	if c.generateErr != nil {
		return nil, c.generateErr
	}
	if c.toolCalls >= len(c.responses) {
		return &llm.Response{Content: "done", Model: "scripted"}, nil
	}
	resp := c.responses[c.toolCalls]
	c.toolCalls++
	return &llm.Response{Content: resp, Model: "scripted"}, nil
}

func (c *scriptedClient) ModelKey() string { return "scripted" }

func newTestAgent(t *testing.T, client llm.Client, opts ...Option) (*Agent, *memory.Store, string) {
	t.Helper()
	root := t.TempDir()
	store, err := memory.Open(filepath.Join(t.TempDir(), "memory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	executor, err := tools.NewExecutor(root, store)
	require.NoError(t, err)
	builder := contextpack.NewBuilder(root, store)

	return New(root, store, client, executor, builder, opts...), store, root
}

func TestProcessPlainTextAnswer(t *testing.T) {
	client := &scriptedClient{responses: []string{"Just an answer, no tools needed."}}
	a, store, _ := newTestAgent(t, client)

	resp, err := a.Process(context.Background(), "what is this project?")
	require.NoError(t, err)
	assert.Equal(t, "Just an answer, no tools needed.", resp.Message)
	assert.Empty(t, resp.ToolOutcomes)
	assert.Equal(t, 1, client.toolCalls)
	assert.Zero(t, client.summaryCalls)

	// Both turns recorded.
	turns, err := store.RecentTurns(10)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "user", turns[0].Role)
	assert.Equal(t, "assistant", turns[1].Role)

	// One CHAT work log for the exchange.
	logs, err := store.RecentLogs(10)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, "CHAT", logs[0].Action)
}

func TestProcessToolCallThenAnswer(t *testing.T) {
	client := &scriptedClient{responses: []string{
		"```json\n{\"tool\": \"list_files\", \"args\": {}}\n```",
		"The project has no files yet.",
	}}
	a, _, _ := newTestAgent(t, client)

	resp, err := a.Process(context.Background(), "list the files")
	require.NoError(t, err)
	assert.Equal(t, "The project has no files yet.", resp.Message)
	require.Len(t, resp.ToolOutcomes, 1)
	assert.Equal(t, "list_files", resp.ToolOutcomes[0].Tool)
	assert.True(t, resp.ToolOutcomes[0].Success)
	assert.Equal(t, 2, client.toolCalls)
}

func TestProcessApplyPatchWritesFile(t *testing.T) {
	client := &scriptedClient{responses: []string{
		"```json\n{\"tool\": \"apply_patch\", \"args\": {\"files\": [{\"path\": \"hello.go\", \"content\": \"package main\\n\"}]}}\n```",
		"Created hello.go.",
	}}
	a, _, root := newTestAgent(t, client)

	resp, err := a.Process(context.Background(), "create hello.go")
	require.NoError(t, err)
	assert.Equal(t, "Created hello.go.", resp.Message)

	data, err := os.ReadFile(filepath.Join(root, "hello.go"))
	require.NoError(t, err)
	assert.Equal(t, "package main\n", string(data))
}

func TestProcessBudgetExhaustionSummarizes(t *testing.T) {
	toolResp := "```json\n{\"tool\": \"get_diff\", \"args\": {\"staged\": true}}\n```"
	client := &scriptedClient{
		responses: []string{
			toolResp,
			"```json\n{\"tool\": \"get_diff\", \"args\": {}}\n```",
			toolResp,
			"```json\n{\"tool\": \"list_files\", \"args\": {\"glob\": \"*.go\"}}\n```",
			"```json\n{\"tool\": \"list_files\", \"args\": {}}\n```",
		},
		summary: "Inspected the working tree five times.",
	}
	a, _, _ := newTestAgent(t, client)

	resp, err := a.Process(context.Background(), "keep poking")
	require.NoError(t, err)
	assert.Equal(t, "Inspected the working tree five times.", resp.Message)
	assert.Equal(t, MaxIterations, client.toolCalls)
	assert.Equal(t, 1, client.summaryCalls)
	assert.Len(t, resp.ToolOutcomes, 5)
}

func TestProcessSummaryFailureTemplate(t *testing.T) {
	toolResp := "```json\n{\"tool\": \"list_files\", \"args\": {\"path\": \"a\"}}\n```"
	client := &scriptedClient{
		responses:  []string{toolResp, toolResp, toolResp, toolResp, toolResp},
		summaryErr: errors.New("model went away"),
	}
	// Vary args per call to dodge repeat detection.
	client.responses[1] = "```json\n{\"tool\": \"list_files\", \"args\": {\"path\": \"b\"}}\n```"
	client.responses[3] = "```json\n{\"tool\": \"list_files\", \"args\": {\"path\": \"c\"}}\n```"
	a, _, _ := newTestAgent(t, client)

	resp, err := a.Process(context.Background(), "loop forever")
	require.NoError(t, err)
	assert.Contains(t, resp.Message, "Task complete. (Summary generation failed:")
	assert.Contains(t, resp.Message, "model went away")
}

func TestProcessTransportErrorAborts(t *testing.T) {
	client := &scriptedClient{generateErr: errors.New("connection refused")}
	a, store, _ := newTestAgent(t, client)

	_, err := a.Process(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model call failed")

	// The user turn is still recorded; no assistant turn follows.
	turns, err := store.RecentTurns(10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "user", turns[0].Role)
}

func TestProcessRepeatDetectionShortCircuits(t *testing.T) {
	// Two identical calls per response; after three iterations the last six
	// invocations are identical and the loop bails out early.
	doubled := "```json\n[{\"tool\": \"get_diff\", \"args\": {}}, {\"tool\": \"get_diff\", \"args\": {}}]\n```"
	client := &scriptedClient{
		responses: []string{doubled, doubled, doubled, doubled, doubled},
		summary:   "Stopped repeating.",
	}
	a, _, _ := newTestAgent(t, client)

	resp, err := a.Process(context.Background(), "diff please")
	require.NoError(t, err)
	assert.Equal(t, "Stopped repeating.", resp.Message)
	assert.Equal(t, 3, client.toolCalls)
	assert.Len(t, resp.ToolOutcomes, 6)
}

func TestProcessWithoutClient(t *testing.T) {
	a, _, _ := newTestAgent(t, nil)

	_, err := a.Process(context.Background(), "hi")
	assert.Error(t, err)
}

func TestSetClientSwapsTransport(t *testing.T) {
	first := &scriptedClient{responses: []string{"from first"}}
	second := &scriptedClient{responses: []string{"from second"}}
	a, _, _ := newTestAgent(t, first)

	a.SetClient(second)
	resp, err := a.Process(context.Background(), "which client?")
	require.NoError(t, err)
	assert.Equal(t, "from second", resp.Message)
	assert.Zero(t, first.toolCalls)
}

func TestDoctorReport(t *testing.T) {
	client := &scriptedClient{}
	a, store, root := newTestAgent(t, client)

	require.NoError(t, os.WriteFile(filepath.Join(root, "HANDOVER.md"),
		[]byte("# P - HANDOVER\n## Current State\n- parser done\n"), 0o644))
	_, err := store.AddIssue("flaky test", "", "HIGH")
	require.NoError(t, err)
	require.NoError(t, store.AppendTurn("user", "fix the flaky test"))

	report := a.Doctor(context.Background())

	assert.Contains(t, report, "Project Status Report")
	assert.Contains(t, report, "- parser done")
	assert.Contains(t, report, "[HIGH] flaky test")
	assert.Contains(t, report, "[user] fix the flaky test")
	assert.Contains(t, report, "Current model: scripted")
}

func TestDetectRepeat(t *testing.T) {
	same := func(n int) []ToolOutcome {
		out := make([]ToolOutcome, n)
		for i := range out {
			out[i] = ToolOutcome{Tool: "get_diff", Args: map[string]any{}}
		}
		return out
	}

	assert.False(t, DetectRepeat(same(5), 6), "below window")
	assert.True(t, DetectRepeat(same(6), 6), "single-call loop")

	// Alternating two-call cycle.
	alt := make([]ToolOutcome, 6)
	for i := range alt {
		if i%2 == 0 {
			alt[i] = ToolOutcome{Tool: "read_file", Args: map[string]any{"path": "a.go"}}
		} else {
			alt[i] = ToolOutcome{Tool: "search", Args: map[string]any{"query": "x"}}
		}
	}
	assert.True(t, DetectRepeat(alt, 6))

	// Distinct calls do not trip it.
	distinct := []ToolOutcome{
		{Tool: "read_file", Args: map[string]any{"path": "a.go"}},
		{Tool: "read_file", Args: map[string]any{"path": "b.go"}},
		{Tool: "read_file", Args: map[string]any{"path": "c.go"}},
		{Tool: "search", Args: map[string]any{"query": "x"}},
		{Tool: "get_diff", Args: map[string]any{}},
		{Tool: "list_files", Args: map[string]any{}},
	}
	assert.False(t, DetectRepeat(distinct, 6))
}

func TestTruncateKeepsRuneBoundary(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))

	// "한국어" is 9 bytes; cutting at 4 must not leave half a rune behind.
	cut := truncate("한국어", 4)
	assert.Equal(t, "한", cut)
	assert.True(t, utf8.ValidString(cut))

	cut = truncate("héllo wörld", 8)
	assert.True(t, utf8.ValidString(cut))
	assert.LessOrEqual(t, len(cut), 8)
}

func TestDetectTestCommand(t *testing.T) {
	root := t.TempDir()
	assert.Empty(t, detectTestCommand(root))

	require.NoError(t, os.WriteFile(filepath.Join(root, "x_test.go"), []byte("package x"), 0o644))
	assert.Equal(t, "go test ./...", detectTestCommand(root))

	pyRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(pyRoot, "test_app.py"), []byte(""), 0o644))
	assert.Equal(t, "pytest -q", detectTestCommand(pyRoot))

	jsRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(jsRoot, "app.test.js"), []byte(""), 0o644))
	assert.Equal(t, "npm test", detectTestCommand(jsRoot))
}
