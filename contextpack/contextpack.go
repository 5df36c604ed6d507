// Package contextpack assembles the bounded per-turn context handed to the
// model. Context is queried, never injected wholesale: governance document
// heads, the last few conversation turns, open issues, and a short change
// summary. The full history stays in the store.
package contextpack

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/madorolabs/madoro/memory"
)

const (
	handoverHeadLines     = 50
	constitutionHeadLines = 30
	gitStatusTimeout      = 3 * time.Second

	maxPromptFiles       = 5
	maxPromptFileChars   = 500
	maxPromptIssues      = 3
	maxPromptChangeChars = 500
	maxStatusChars       = 300
	maxPromptTurns       = 3
	maxPromptTurnChars   = 200
)

// RelatedFile is a file excerpt included as evidence.
type RelatedFile struct {
	Path    string
	Content string
}

// Pack is the minimal context for one model call.
type Pack struct {
	ProjectState  string
	CurrentTask   string
	RelatedFiles  []RelatedFile
	RecentTurns   []memory.Turn
	OpenIssues    []memory.Issue
	RecentChanges string
}

// ToPrompt renders the pack in its fixed section order. Empty sections are
// omitted except the project state, which always leads.
func (p *Pack) ToPrompt() string {
	var sections []string

	sections = append(sections, "[PROJECT STATE]", p.ProjectState, "")

	if p.CurrentTask != "" {
		sections = append(sections, "[CURRENT TASK]", p.CurrentTask, "")
	}

	if len(p.RelatedFiles) > 0 {
		sections = append(sections, "[RELATED FILES]")
		files := p.RelatedFiles
		if len(files) > maxPromptFiles {
			files = files[:maxPromptFiles]
		}
		for _, f := range files {
			sections = append(sections, fmt.Sprintf("--- %s ---", f.Path))
			content := f.Content
			if len(content) > maxPromptFileChars {
				content = clip(content, maxPromptFileChars) + "\n... (truncated)"
			}
			sections = append(sections, content, "")
		}
	}

	if len(p.OpenIssues) > 0 {
		sections = append(sections, "[OPEN ISSUES]")
		issues := p.OpenIssues
		if len(issues) > maxPromptIssues {
			issues = issues[:maxPromptIssues]
		}
		for _, issue := range issues {
			sections = append(sections, fmt.Sprintf("- [%s] %s", issue.Severity, issue.Title))
		}
		sections = append(sections, "")
	}

	if p.RecentChanges != "" {
		changes := clip(p.RecentChanges, maxPromptChangeChars)
		sections = append(sections, "[RECENT CHANGES]", changes, "")
	}

	if len(p.RecentTurns) > 0 {
		sections = append(sections, "[RECENT CONVERSATION]")
		turns := p.RecentTurns
		if len(turns) > maxPromptTurns {
			turns = turns[len(turns)-maxPromptTurns:]
		}
		for _, turn := range turns {
			content := clip(turn.Content, maxPromptTurnChars)
			sections = append(sections, fmt.Sprintf("%s: %s", turn.Role, content))
		}
		sections = append(sections, "")
	}

	return strings.Join(sections, "\n")
}

// Store is the slice of the memory store the builder reads.
type Store interface {
	RecentTurns(limit int) ([]memory.Turn, error)
	OpenIssues() ([]memory.Issue, error)
}

// Builder assembles context packs for one project root.
type Builder struct {
	root           string
	store          Store
	maxRecentTurns int
	log            *zap.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithMaxRecentTurns bounds how many stored turns go into the pack.
func WithMaxRecentTurns(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.maxRecentTurns = n
		}
	}
}

// WithLogger attaches a logger. The default is a nop logger.
func WithLogger(log *zap.Logger) BuilderOption {
	return func(b *Builder) { b.log = log }
}

// NewBuilder creates a builder over the project root and store.
func NewBuilder(projectRoot string, store Store, opts ...BuilderOption) *Builder {
	b := &Builder{
		root:           projectRoot,
		store:          store,
		maxRecentTurns: 5,
		log:            zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build assembles a pack for the given task. Store and git failures degrade
// to empty sections; a model call with partial context beats no call.
func (b *Builder) Build(ctx context.Context, task string) *Pack {
	pack := &Pack{
		ProjectState: b.readGovernanceDocs(),
		CurrentTask:  task,
	}

	if b.store != nil {
		turns, err := b.store.RecentTurns(b.maxRecentTurns)
		if err != nil {
			b.log.Warn("recent turns unavailable", zap.Error(err))
		} else {
			pack.RecentTurns = turns
		}

		issues, err := b.store.OpenIssues()
		if err != nil {
			b.log.Warn("open issues unavailable", zap.Error(err))
		} else {
			pack.OpenIssues = issues
		}
	}

	pack.RecentChanges = b.recentChanges(ctx)
	return pack
}

// readGovernanceDocs returns the heads of HANDOVER.md and CONSTITUTION.md.
// Only the leading lines matter for orientation; the model can read_file
// for the rest.
func (b *Builder) readGovernanceDocs() string {
	var parts []string

	if head, ok := readHead(filepath.Join(b.root, "HANDOVER.md"), handoverHeadLines); ok {
		parts = append(parts, "## Current State (HANDOVER.md)", head)
	}
	if head, ok := readHead(filepath.Join(b.root, "CONSTITUTION.md"), constitutionHeadLines); ok {
		parts = append(parts, "\n## Rules (CONSTITUTION.md)", head)
	}

	if len(parts) == 0 {
		return "(No SSOT documents found)"
	}
	return strings.Join(parts, "\n")
}

func readHead(path string, maxLines int) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	lines := strings.Split(string(data), "\n")
	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	return strings.Join(lines, "\n"), true
}

// recentChanges summarizes the working tree with a short git status. The
// timeout is deliberately tight; a slow repo loses this section, not the
// turn.
func (b *Builder) recentChanges(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, gitStatusTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "status", "--short")
	cmd.Dir = b.root
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ""
		}
		return "(Not a git repo)"
	}
	out := stdout.String()
	if out == "" {
		return "(No changes)"
	}
	return clip(out, maxStatusChars)
}

// clip cuts s to at most max bytes without splitting a rune.
func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
