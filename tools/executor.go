package tools

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const (
	defaultTestTimeout = 60 * time.Second
	searchTimeout      = 30 * time.Second
	gitTimeout         = 30 * time.Second
	pushTimeout        = 60 * time.Second

	maxListedFiles = 100
	maxShownFiles  = 20
)

// Executor dispatches tool calls against a single project root. All paths
// are validated against the root before any filesystem access, governance
// document writes pass through the approval gate, and every invocation is
// recorded in the work log.
type Executor struct {
	root        string
	rec         Recorder
	approval    ApprovalFunc
	testCommand string
	charLimits  map[string]int
	log         *zap.Logger

	mu      sync.Mutex
	pending []PendingChange
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithApproval installs the governance-write decision callback. Without one,
// governance writes are queued as pending changes instead of applied.
func WithApproval(fn ApprovalFunc) ExecutorOption {
	return func(e *Executor) { e.approval = fn }
}

// WithTestCommand overrides the default command run_tests uses when the
// model supplies none.
func WithTestCommand(cmd string) ExecutorOption {
	return func(e *Executor) { e.testCommand = cmd }
}

// WithOutputLimits overrides per-tool output character limits.
func WithOutputLimits(limits map[string]int) ExecutorOption {
	return func(e *Executor) { e.charLimits = limits }
}

// WithExecutorLogger attaches a logger. The default is a nop logger.
func WithExecutorLogger(log *zap.Logger) ExecutorOption {
	return func(e *Executor) { e.log = log }
}

// NewExecutor creates an executor rooted at projectRoot. The recorder
// receives the audit trail and the file index updates.
func NewExecutor(projectRoot string, rec Recorder, opts ...ExecutorOption) (*Executor, error) {
	root, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}
	e := &Executor{
		root:        root,
		rec:         rec,
		testCommand: "go test ./...",
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Root returns the resolved project root.
func (e *Executor) Root() string {
	return e.root
}

// Execute runs one tool call. Unknown tools and handler panics become
// failed results, never errors or crashes; the loop always gets a Result
// it can relay to the model.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any) (result Result) {
	if args == nil {
		args = map[string]any{}
	}

	defer func() {
		if r := recover(); r != nil {
			e.log.Error("tool panicked", zap.String("tool", name), zap.Any("panic", r))
			result = failure(fmt.Sprintf("tool %s panicked: %v", name, r))
		}
		e.logInvocation(name, args, result)
		result.Output = TruncateToolOutput(result.Output, name, e.charLimits)
	}()

	e.log.Debug("executing tool", zap.String("tool", name))

	switch name {
	case "read_file":
		return e.readFile(args)
	case "search":
		return e.search(ctx, args)
	case "apply_patch":
		return e.applyPatch(args)
	case "run_tests":
		return e.runTests(ctx, args)
	case "list_files":
		return e.listFiles(args)
	case "get_diff":
		return e.getDiff(ctx, args)
	case "update_ssot":
		return e.updateSSOT(args)
	case "git_commit":
		return e.gitCommit(ctx, args)
	case "git_push":
		return e.gitPush(ctx, args)
	default:
		return failure(fmt.Sprintf("Unknown tool: %s", name))
	}
}

func (e *Executor) logInvocation(name string, args map[string]any, result Result) {
	if e.rec == nil {
		return
	}
	argsJSON, _ := json.Marshal(args)
	outcome := "SUCCESS"
	var details map[string]any
	if !result.Success {
		outcome = "FAIL"
		if result.Error != "" {
			details = map[string]any{"error": result.Error}
		}
	}
	if _, err := e.rec.LogWork("TOOL", name, "Args: "+truncateString(string(argsJSON), 100), outcome, details); err != nil {
		e.log.Warn("work log write failed", zap.Error(err))
	}
}

func (e *Executor) readFile(args map[string]any) Result {
	path, _ := stringArg(args, "path")
	if path == "" {
		return failure("path parameter required")
	}

	resolved, err := validatePath(e.root, path)
	if err != nil {
		return failure(err.Error())
	}

	if _, statErr := os.Stat(resolved); statErr != nil {
		// The model frequently gets the case wrong; try a
		// case-insensitive match in the parent directory.
		if fixed, ok := fixCase(resolved); ok {
			resolved = fixed
		} else {
			return failure(fmt.Sprintf("File not found: %s", path))
		}
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return failure(fmt.Sprintf("Failed to read file: %v", err))
	}
	content := string(data)

	startLine, _ := intArg(args, "start_line")
	endLine, hasEnd := intArg(args, "end_line")
	if startLine > 1 || hasEnd {
		lines := strings.Split(content, "\n")
		startIdx := 0
		if startLine > 1 {
			startIdx = startLine - 1
		}
		if startIdx > len(lines) {
			startIdx = len(lines)
		}
		endIdx := len(lines)
		if hasEnd && endLine < endIdx {
			endIdx = endLine
		}
		if endIdx < startIdx {
			endIdx = startIdx
		}
		content = strings.Join(lines[startIdx:endIdx], "\n")
	}

	info, _ := os.Stat(resolved)
	var size int64
	if info != nil {
		size = info.Size()
	}
	return Result{
		Success: true,
		Output:  content,
		Data:    map[string]any{"path": path, "size": size},
	}
}

// fixCase looks for a sibling whose name matches case-insensitively.
func fixCase(resolved string) (string, bool) {
	parent := filepath.Dir(resolved)
	want := strings.ToLower(filepath.Base(resolved))
	entries, err := os.ReadDir(parent)
	if err != nil {
		return "", false
	}
	for _, entry := range entries {
		if strings.ToLower(entry.Name()) == want {
			return filepath.Join(parent, entry.Name()), true
		}
	}
	return "", false
}

type searchMatch struct {
	File string `json:"file"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

func (e *Executor) search(ctx context.Context, args map[string]any) Result {
	query, _ := stringArg(args, "query")
	if query == "" {
		return failure("query parameter required")
	}
	globPattern, _ := stringArg(args, "glob")
	maxResults, ok := intArg(args, "max_results")
	if !ok || maxResults <= 0 {
		maxResults = 20
	}

	rgPath, err := exec.LookPath("rg")
	if err != nil {
		return e.searchFallback(query, globPattern, maxResults)
	}

	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	rgArgs := []string{"--json", "-m", fmt.Sprintf("%d", maxResults)}
	if globPattern != "" {
		rgArgs = append(rgArgs, "-g", globPattern)
	}
	rgArgs = append(rgArgs, query, e.root)

	cmd := exec.CommandContext(ctx, rgPath, rgArgs...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	_ = cmd.Run() // rg exits 1 on no matches, which is not an error here.
	if ctx.Err() == context.DeadlineExceeded {
		return failure("Search timeout")
	}

	var matches []searchMatch
	for _, line := range strings.Split(strings.TrimSpace(stdout.String()), "\n") {
		if line == "" {
			continue
		}
		var event struct {
			Type string `json:"type"`
			Data struct {
				Path struct {
					Text string `json:"text"`
				} `json:"path"`
				LineNumber int `json:"line_number"`
				Lines      struct {
					Text string `json:"text"`
				} `json:"lines"`
			} `json:"data"`
		}
		if err := json.Unmarshal([]byte(line), &event); err != nil || event.Type != "match" {
			continue
		}
		file := event.Data.Path.Text
		if rel, relErr := filepath.Rel(e.root, file); relErr == nil && !strings.HasPrefix(rel, "..") {
			file = rel
		}
		matches = append(matches, searchMatch{
			File: file,
			Line: event.Data.LineNumber,
			Text: strings.TrimSpace(event.Data.Lines.Text),
		})
		if len(matches) >= maxResults {
			break
		}
	}

	return searchResult(matches, "")
}

// searchFallback walks the tree when ripgrep is not installed. Substring
// match, case-insensitive, hidden directories skipped.
func (e *Executor) searchFallback(query, globPattern string, maxResults int) Result {
	var matches []searchMatch
	lowerQuery := strings.ToLower(query)

	_ = filepath.WalkDir(e.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != e.root {
				return filepath.SkipDir
			}
			return nil
		}
		if globPattern != "" {
			if ok, _ := filepath.Match(globPattern, d.Name()); !ok {
				return nil
			}
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		rel, _ := filepath.Rel(e.root, path)
		for i, line := range strings.Split(string(data), "\n") {
			if strings.Contains(strings.ToLower(line), lowerQuery) {
				matches = append(matches, searchMatch{
					File: rel,
					Line: i + 1,
					Text: truncateString(strings.TrimSpace(line), 100),
				})
				if len(matches) >= maxResults {
					return filepath.SkipAll
				}
			}
		}
		return nil
	})

	return searchResult(matches, " (fallback)")
}

func searchResult(matches []searchMatch, suffix string) Result {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d matches%s:\n", len(matches), suffix)
	for _, m := range matches {
		fmt.Fprintf(&sb, "  %s:%d: %s\n", m.File, m.Line, truncateString(m.Text, 80))
	}
	data := make([]map[string]any, 0, len(matches))
	for _, m := range matches {
		data = append(data, map[string]any{"file": m.File, "line": m.Line, "text": m.Text})
	}
	return Result{
		Success: true,
		Output:  sb.String(),
		Data:    map[string]any{"matches": data, "count": len(matches)},
	}
}

type patchOutcome struct {
	path    string
	success bool
	action  string
	err     string
}

func (e *Executor) applyPatch(args map[string]any) Result {
	rawFiles, ok := args["files"].([]any)
	if !ok || len(rawFiles) == 0 {
		return failure("files parameter required")
	}

	var outcomes []patchOutcome
	for _, raw := range rawFiles {
		spec, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		path, _ := stringArg(spec, "path")
		if path == "" {
			continue
		}
		outcomes = append(outcomes, e.patchOneFile(path, spec))
	}

	successCount := 0
	for _, o := range outcomes {
		if o.success {
			successCount++
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Patched %d/%d files:\n", successCount, len(outcomes))
	results := make([]map[string]any, 0, len(outcomes))
	for _, o := range outcomes {
		status := "✅"
		if !o.success {
			status = "❌"
		}
		fmt.Fprintf(&sb, "  %s %s", status, o.path)
		if o.err != "" {
			fmt.Fprintf(&sb, " (%s)", o.err)
		}
		sb.WriteString("\n")
		entry := map[string]any{"path": o.path, "success": o.success}
		if o.action != "" {
			entry["action"] = o.action
		}
		if o.err != "" {
			entry["error"] = o.err
		}
		results = append(results, entry)
	}

	return Result{
		Success: successCount == len(outcomes) && len(outcomes) > 0,
		Output:  sb.String(),
		Data:    map[string]any{"results": results},
	}
}

func (e *Executor) patchOneFile(path string, spec map[string]any) patchOutcome {
	resolved, err := validatePath(e.root, path)
	if err != nil {
		return patchOutcome{path: path, err: err.Error()}
	}

	var backup string
	hadBackup := false
	if data, readErr := os.ReadFile(resolved); readErr == nil {
		backup = string(data)
		hadBackup = true
	}

	content, hasContent := stringArg(spec, "content")
	diff, hasDiff := stringArg(spec, "diff")

	var newContent string
	action := "write"
	switch {
	case hasContent:
		newContent = content
	case hasDiff && diff != "":
		if !hadBackup {
			return patchOutcome{path: path, err: "Original file not found"}
		}
		patched, patchErr := ApplyUnifiedDiff(backup, diff)
		if patchErr != nil {
			return patchOutcome{path: path, err: fmt.Sprintf("Diff apply failed: %v", patchErr)}
		}
		newContent = patched
		action = "patch"
	default:
		return patchOutcome{path: path, err: "content or diff required"}
	}

	if IsSSOTFile(path) {
		fileName := filepath.Base(path)
		if e.approval != nil {
			if !e.approval(fileName, resolved, backup, newContent) {
				return patchOutcome{path: path, err: fmt.Sprintf("User rejected %s changes", fileName)}
			}
		} else {
			e.queuePending(PendingChange{
				Path:       path,
				FullPath:   resolved,
				FileName:   fileName,
				OldContent: backup,
				NewContent: newContent,
			})
			return patchOutcome{path: path, err: fmt.Sprintf("SSOT file %s requires user approval", fileName)}
		}
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return patchOutcome{path: path, err: err.Error()}
	}
	if err := os.WriteFile(resolved, []byte(newContent), 0o644); err != nil {
		return patchOutcome{path: path, err: err.Error()}
	}

	e.indexFile(path, resolved)
	return patchOutcome{path: path, success: true, action: action}
}

func (e *Executor) indexFile(path, resolved string) {
	if e.rec == nil {
		return
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return
	}
	sum := sha256.Sum256(data)
	if err := e.rec.IndexFile(path, int64(len(data)), hex.EncodeToString(sum[:])); err != nil {
		e.log.Warn("file index update failed", zap.String("path", path), zap.Error(err))
	}
}

func (e *Executor) queuePending(change PendingChange) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = append(e.pending, change)
}

// Pending returns a copy of the queued governance changes.
func (e *Executor) Pending() []PendingChange {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]PendingChange, len(e.pending))
	copy(out, e.pending)
	return out
}

// ResolvePending applies or discards the queued governance change at index.
func (e *Executor) ResolvePending(index int, approved bool) error {
	e.mu.Lock()
	if index < 0 || index >= len(e.pending) {
		e.mu.Unlock()
		return fmt.Errorf("no pending change at index %d", index)
	}
	change := e.pending[index]
	e.pending = append(e.pending[:index], e.pending[index+1:]...)
	e.mu.Unlock()

	if !approved {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(change.FullPath), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(change.FullPath, []byte(change.NewContent), 0o644); err != nil {
		return err
	}
	e.indexFile(change.Path, change.FullPath)
	return nil
}

func (e *Executor) runTests(ctx context.Context, args map[string]any) Result {
	cmdLine, _ := stringArg(args, "cmd")
	if cmdLine == "" {
		cmdLine = e.testCommand
	}
	timeoutSec, ok := intArg(args, "timeout")
	timeout := defaultTestTimeout
	if ok && timeoutSec > 0 {
		timeout = time.Duration(timeoutSec) * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "/bin/bash", "-c", cmdLine)
	cmd.Dir = e.root
	// Process group so a timeout kills the whole test tree, not just bash.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		if cmd.Process != nil {
			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		return failure(fmt.Sprintf("Test timeout (%ds)", int(timeout.Seconds())))
	}

	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return failure(fmt.Sprintf("Test execution failed: %v", runErr))
		}
	}

	output := stdout.String()
	if stderr.Len() > 0 {
		output += "\n\nSTDERR:\n" + stderr.String()
	}

	success := exitCode == 0
	if e.rec != nil {
		outcome := "SUCCESS"
		if !success {
			outcome = "FAIL"
		}
		if _, err := e.rec.LogWork("TEST", cmdLine, fmt.Sprintf("Exit code: %d", exitCode), outcome,
			map[string]any{"returncode": exitCode, "output": truncateString(output, 1000)}); err != nil {
			e.log.Warn("work log write failed", zap.Error(err))
		}
	}

	return Result{
		Success: success,
		Output:  output,
		Data:    map[string]any{"returncode": exitCode},
	}
}

func (e *Executor) listFiles(args map[string]any) Result {
	path, _ := stringArg(args, "path")
	if path == "" {
		path = "."
	}
	globPattern, _ := stringArg(args, "glob")
	if globPattern == "" {
		globPattern = "*"
	}
	recursive := true
	if r, ok := boolArg(args, "recursive"); ok {
		recursive = r
	}

	target, err := validatePath(e.root, path)
	if err != nil {
		if path == "." {
			target = e.root
		} else {
			return failure(err.Error())
		}
	}

	type fileInfo struct {
		path  string
		isDir bool
		size  int64
	}
	var files []fileInfo

	walkErr := filepath.WalkDir(target, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if p == target {
			return nil
		}
		rel, relErr := filepath.Rel(e.root, p)
		if relErr != nil {
			return nil
		}
		for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
			if strings.HasPrefix(part, ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}
		if !recursive && filepath.Dir(p) != target {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ok, _ := filepath.Match(globPattern, d.Name()); !ok && !d.IsDir() {
			return nil
		}
		var size int64
		if info, infoErr := d.Info(); infoErr == nil && !d.IsDir() {
			size = info.Size()
		}
		files = append(files, fileInfo{path: rel, isDir: d.IsDir(), size: size})
		if len(files) >= maxListedFiles {
			return filepath.SkipAll
		}
		return nil
	})
	if walkErr != nil {
		return failure(fmt.Sprintf("Failed to list files: %v", walkErr))
	}

	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d files:\n", len(files))
	shown := len(files)
	if shown > maxShownFiles {
		shown = maxShownFiles
	}
	for _, f := range files[:shown] {
		prefix := "📄"
		if f.isDir {
			prefix = "📁"
		}
		fmt.Fprintf(&sb, "  %s %s\n", prefix, f.path)
	}
	if len(files) > maxShownFiles {
		fmt.Fprintf(&sb, "  ... and %d more\n", len(files)-maxShownFiles)
	}

	data := make([]map[string]any, 0, len(files))
	for _, f := range files {
		data = append(data, map[string]any{"path": f.path, "is_dir": f.isDir, "size": f.size})
	}
	return Result{
		Success: true,
		Output:  sb.String(),
		Data:    map[string]any{"files": data},
	}
}

func (e *Executor) getDiff(ctx context.Context, args map[string]any) Result {
	staged, _ := boolArg(args, "staged")
	path, _ := stringArg(args, "path")

	gitArgs := []string{"diff"}
	if staged {
		gitArgs = append(gitArgs, "--staged")
	}
	if path != "" {
		gitArgs = append(gitArgs, path)
	}

	out, err := e.git(ctx, gitTimeout, gitArgs...)
	if err != nil {
		return failure(fmt.Sprintf("Failed to get diff: %v", err))
	}
	if out == "" {
		out = "(no changes)"
	}
	return Result{Success: true, Output: out, Data: map[string]any{"staged": staged}}
}

func (e *Executor) gitCommit(ctx context.Context, args map[string]any) Result {
	message, _ := stringArg(args, "message")
	if message == "" {
		return failure("commit message required")
	}

	var files []string
	if raw, ok := args["files"].([]any); ok {
		for _, f := range raw {
			if s, ok := f.(string); ok && s != "" {
				files = append(files, s)
			}
		}
	}

	if len(files) > 0 {
		for _, f := range files {
			if _, err := e.git(ctx, gitTimeout, "add", f); err != nil {
				return failure(fmt.Sprintf("Git add failed for %s: %v", f, err))
			}
		}
	} else {
		if _, err := e.git(ctx, gitTimeout, "add", "-A"); err != nil {
			return failure(fmt.Sprintf("Git add failed: %v", err))
		}
	}

	out, err := e.git(ctx, gitTimeout, "commit", "-m", message)
	if err != nil {
		return Result{Success: false, Output: out, Error: err.Error()}
	}
	return Result{Success: true, Output: out, Data: map[string]any{"message": message}}
}

func (e *Executor) gitPush(ctx context.Context, args map[string]any) Result {
	remote, _ := stringArg(args, "remote")
	if remote == "" {
		remote = "origin"
	}
	branch, _ := stringArg(args, "branch")

	gitArgs := []string{"push", remote}
	if branch != "" {
		gitArgs = append(gitArgs, branch)
	}

	out, err := e.git(ctx, pushTimeout, gitArgs...)
	if err != nil {
		return Result{Success: false, Output: out, Error: err.Error()}
	}
	if out == "" {
		out = "Push successful"
	}
	return Result{Success: true, Output: out, Data: map[string]any{"remote": remote, "branch": branch}}
}

// git runs a git subcommand in the project root with a bounded timeout and
// returns combined output.
func (e *Executor) git(ctx context.Context, timeout time.Duration, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = e.root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return strings.TrimSpace(stdout.String()), fmt.Errorf("%s", msg)
	}
	out := strings.TrimSpace(stdout.String())
	if out == "" {
		out = strings.TrimSpace(stderr.String())
	}
	return out, nil
}

func (e *Executor) updateSSOT(args map[string]any) Result {
	rawUpdates, ok := args["updates"].([]any)
	if !ok || len(rawUpdates) == 0 {
		return failure("No updates provided")
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	var results []string
	var updatedFiles []string

	for _, raw := range rawUpdates {
		update, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		fileName, _ := stringArg(update, "file")
		section, _ := stringArg(update, "section")
		content, _ := stringArg(update, "content")
		action, _ := stringArg(update, "action")
		if action == "" {
			action = "append"
		}
		updatedFiles = append(updatedFiles, fileName)

		if !IsSSOTFile(fileName) || strings.ContainsAny(fileName, "/\\") {
			results = append(results, fmt.Sprintf("❌ %s: Not a valid SSOT file", fileName))
			continue
		}

		filePath := filepath.Join(e.root, fileName)

		var oldContent string
		if data, err := os.ReadFile(filePath); err == nil {
			oldContent = string(data)
		} else {
			oldContent = "# " + strings.TrimSuffix(fileName, ".md") + "\n"
		}

		newContent := touchLastUpdated(oldContent, timestamp)
		newContent, err := applySSOTAction(newContent, section, content, action)
		if err != nil {
			results = append(results, fmt.Sprintf("❌ %s: %v", fileName, err))
			continue
		}

		if e.approval != nil {
			if !e.approval(fileName, filePath, oldContent, newContent) {
				results = append(results, fmt.Sprintf("⏭️ %s: Skipped (not approved)", fileName))
				continue
			}
		}

		if err := os.WriteFile(filePath, []byte(newContent), 0o644); err != nil {
			results = append(results, fmt.Sprintf("❌ %s: %v", fileName, err))
			continue
		}
		e.indexFile(fileName, filePath)
		results = append(results, fmt.Sprintf("✅ %s: Updated successfully", fileName))
	}

	allOK := len(results) > 0
	for _, r := range results {
		if !strings.Contains(r, "✅") {
			allOK = false
		}
	}

	return Result{
		Success: allOK,
		Output:  strings.Join(results, "\n"),
		Data:    map[string]any{"updated_files": updatedFiles},
	}
}
