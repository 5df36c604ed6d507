package contextpack

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madorolabs/madoro/memory"
)

type fakeStore struct {
	turns  []memory.Turn
	issues []memory.Issue
}

func (s *fakeStore) RecentTurns(limit int) ([]memory.Turn, error) {
	if limit < len(s.turns) {
		return s.turns[len(s.turns)-limit:], nil
	}
	return s.turns, nil
}

func (s *fakeStore) OpenIssues() ([]memory.Issue, error) {
	return s.issues, nil
}

func TestBuildReadsGovernanceHeads(t *testing.T) {
	root := t.TempDir()
	handover := "# HANDOVER\n## Current State\n- building parser\n"
	constitution := "# CONSTITUTION\n1. tests required\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "HANDOVER.md"), []byte(handover), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "CONSTITUTION.md"), []byte(constitution), 0o644))

	b := NewBuilder(root, &fakeStore{})
	pack := b.Build(context.Background(), "add feature")

	assert.Contains(t, pack.ProjectState, "## Current State (HANDOVER.md)")
	assert.Contains(t, pack.ProjectState, "- building parser")
	assert.Contains(t, pack.ProjectState, "## Rules (CONSTITUTION.md)")
	assert.Equal(t, "add feature", pack.CurrentTask)
}

func TestBuildWithoutGovernanceDocs(t *testing.T) {
	b := NewBuilder(t.TempDir(), &fakeStore{})
	pack := b.Build(context.Background(), "")

	assert.Equal(t, "(No SSOT documents found)", pack.ProjectState)
}

func TestBuildTruncatesHandoverHead(t *testing.T) {
	root := t.TempDir()
	long := strings.Repeat("line\n", 200)
	require.NoError(t, os.WriteFile(filepath.Join(root, "HANDOVER.md"), []byte(long), 0o644))

	b := NewBuilder(root, &fakeStore{})
	pack := b.Build(context.Background(), "")

	// Header line plus at most the first 50 lines of the doc.
	lines := strings.Split(pack.ProjectState, "\n")
	assert.LessOrEqual(t, len(lines), 52)
}

func TestToPromptSectionOrderAndCaps(t *testing.T) {
	pack := &Pack{
		ProjectState: "state",
		CurrentTask:  "task",
		RelatedFiles: []RelatedFile{{Path: "a.go", Content: "package a"}},
		RecentTurns: []memory.Turn{
			{Role: "user", Content: "one"},
			{Role: "assistant", Content: "two"},
			{Role: "user", Content: "three"},
			{Role: "assistant", Content: strings.Repeat("x", 400)},
		},
		OpenIssues: []memory.Issue{
			{Severity: "CRITICAL", Title: "i1"},
			{Severity: "HIGH", Title: "i2"},
			{Severity: "LOW", Title: "i3"},
			{Severity: "LOW", Title: "i4"},
		},
		RecentChanges: "M main.go",
	}

	prompt := pack.ToPrompt()

	order := []string{"[PROJECT STATE]", "[CURRENT TASK]", "[RELATED FILES]", "[OPEN ISSUES]", "[RECENT CHANGES]", "[RECENT CONVERSATION]"}
	last := -1
	for _, marker := range order {
		idx := strings.Index(prompt, marker)
		require.GreaterOrEqual(t, idx, 0, marker)
		assert.Greater(t, idx, last, marker)
		last = idx
	}

	// Only three issues and only the last three turns survive.
	assert.NotContains(t, prompt, "i4")
	assert.NotContains(t, prompt, "user: one")
	assert.Contains(t, prompt, "user: three")

	// Turn content capped at 200 chars.
	assert.NotContains(t, prompt, strings.Repeat("x", 201))
	assert.Contains(t, prompt, strings.Repeat("x", 200))
}

func TestToPromptOmitsEmptySections(t *testing.T) {
	pack := &Pack{ProjectState: "(No SSOT documents found)"}
	prompt := pack.ToPrompt()

	assert.Contains(t, prompt, "[PROJECT STATE]")
	assert.NotContains(t, prompt, "[CURRENT TASK]")
	assert.NotContains(t, prompt, "[OPEN ISSUES]")
	assert.NotContains(t, prompt, "[RECENT CONVERSATION]")
}

func TestRecentChangesOutsideGitRepo(t *testing.T) {
	b := NewBuilder(t.TempDir(), nil)
	out := b.recentChanges(context.Background())
	assert.Equal(t, "(Not a git repo)", out)
}

func TestClipKeepsRuneBoundary(t *testing.T) {
	assert.Equal(t, "ok", clip("ok", 5))

	cut := clip("héllo wörld", 2)
	assert.Equal(t, "h", cut)
	assert.True(t, utf8.ValidString(cut))
}

func TestToPromptTurnClipIsValidUTF8(t *testing.T) {
	content := strings.Repeat("한", 100)
	pack := &Pack{
		ProjectState: "state",
		RecentTurns:  []memory.Turn{{Role: "user", Content: content}},
	}

	prompt := pack.ToPrompt()
	assert.True(t, utf8.ValidString(prompt))
	assert.NotContains(t, prompt, content)
}
