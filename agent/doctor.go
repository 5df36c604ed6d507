package agent

import (
	"context"
	"fmt"
	"strings"
)

// Doctor produces a project status report: governance state, open issues,
// working-tree changes, recent conversation, and store counts.
func (a *Agent) Doctor(ctx context.Context) string {
	pack := a.builder.Build(ctx, "Project status check")

	var report []string
	rule := strings.Repeat("=", 60)
	report = append(report, rule, "  Madoro Doctor - Project Status Report", rule, "")

	report = append(report, "[📋 Project Status]")
	if pack.ProjectState == "" || pack.ProjectState == "(No SSOT documents found)" {
		report = append(report, "  No governance documents; run project setup first")
	} else {
		for _, line := range strings.Split(pack.ProjectState, "\n") {
			line = strings.TrimSpace(line)
			if strings.HasPrefix(line, "##") || strings.HasPrefix(line, "- ") {
				report = append(report, "  "+line)
			}
		}
	}
	report = append(report, "")

	report = append(report, "[🐛 Open Issues]")
	if len(pack.OpenIssues) > 0 {
		for _, issue := range pack.OpenIssues {
			report = append(report, fmt.Sprintf("  [%s] %s", issue.Severity, issue.Title))
		}
	} else {
		report = append(report, "  None")
	}
	report = append(report, "")

	report = append(report, "[📝 Recent Changes]")
	if pack.RecentChanges != "" && pack.RecentChanges != "(Not a git repo)" {
		lines := strings.Split(strings.TrimRight(pack.RecentChanges, "\n"), "\n")
		if len(lines) > 5 {
			lines = lines[:5]
		}
		for _, line := range lines {
			report = append(report, "  "+line)
		}
	} else {
		report = append(report, "  No changes")
	}
	report = append(report, "")

	report = append(report, "[💬 Recent Conversation]")
	if len(pack.RecentTurns) > 0 {
		turns := pack.RecentTurns
		if len(turns) > 3 {
			turns = turns[len(turns)-3:]
		}
		for _, turn := range turns {
			content := turn.Content
			if len(content) > 50 {
				content = content[:50] + "..."
			}
			report = append(report, fmt.Sprintf("  [%s] %s", turn.Role, content))
		}
	} else {
		report = append(report, "  No conversation")
	}
	report = append(report, "")

	report = append(report, "[🤖 Model Status]")
	if client := a.currentClient(); client != nil {
		report = append(report, "  Current model: "+client.ModelKey())
	} else {
		report = append(report, "  No model configured")
	}
	if a.store != nil {
		if turns, logs, openIssues, err := a.store.Counts(); err == nil {
			report = append(report, fmt.Sprintf("  Memory: %d turns, %d work logs, %d open issues",
				turns, logs, openIssues))
		}
	}
	report = append(report, "", rule)

	return strings.Join(report, "\n")
}
