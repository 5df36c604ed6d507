// Package project manages the multi-project registry: creation with slug
// IDs, switching, per-project settings, the per-project database path, and
// governance document template seeding.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Project is one registered project.
type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Path        string `json:"path"`
	CreatedAt   string `json:"created_at"`
	LastOpened  string `json:"last_opened"`
	Description string `json:"description"`
}

// Settings are the per-project knobs stored next to its database.
type Settings struct {
	TechStack string `json:"tech_stack"`
	MaxTurns  int    `json:"max_turns"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// DefaultSettings is what an unknown or unset project reports.
func DefaultSettings() Settings {
	return Settings{MaxTurns: 50}
}

type registry struct {
	Projects      []Project `json:"projects"`
	ActiveProject string    `json:"active_project,omitempty"`
}

// Manager owns the projects.json registry under one base directory.
type Manager struct {
	basePath    string
	configFile  string
	projectsDir string
	log         *zap.Logger

	mu  sync.Mutex
	reg registry
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger attaches a logger. The default is a nop logger.
func WithLogger(log *zap.Logger) ManagerOption {
	return func(m *Manager) { m.log = log }
}

// NewManager opens (or initializes) the registry under basePath.
func NewManager(basePath string, opts ...ManagerOption) (*Manager, error) {
	m := &Manager{
		basePath:    basePath,
		configFile:  filepath.Join(basePath, "config", "projects.json"),
		projectsDir: filepath.Join(basePath, "projects"),
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if err := os.MkdirAll(m.projectsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create projects dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(m.configFile), 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	if data, err := os.ReadFile(m.configFile); err == nil {
		if err := json.Unmarshal(data, &m.reg); err != nil {
			// Corrupt registry: start fresh rather than refuse to run.
			m.log.Warn("projects.json unreadable, starting empty", zap.Error(err))
			m.reg = registry{}
		}
	}
	return m, nil
}

func (m *Manager) saveLocked() error {
	data, err := json.MarshalIndent(m.reg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.configFile, data, 0o644)
}

// List returns all registered projects.
func (m *Manager) List() []Project {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Project, len(m.reg.Projects))
	copy(out, m.reg.Projects)
	return out
}

// Get looks a project up by ID.
func (m *Manager) Get(id string) (Project, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(id)
}

func (m *Manager) getLocked(id string) (Project, bool) {
	for _, p := range m.reg.Projects {
		if p.ID == id {
			return p, true
		}
	}
	return Project{}, false
}

// Active returns the current active project, if any.
func (m *Manager) Active() (Project, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reg.ActiveProject == "" {
		return Project{}, false
	}
	return m.getLocked(m.reg.ActiveProject)
}

// slugify derives a project ID from its name: lowercase, spaces and dashes
// to underscores, everything else non-alphanumeric dropped.
func slugify(name string) string {
	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	var b strings.Builder
	for _, c := range s {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteRune(c)
		}
	}
	return b.String()
}

// Create registers a new project, seeds the governance templates at its
// path, writes its settings, and makes it active. A name collision gets a
// numeric suffix.
func (m *Manager) Create(name, path, description, techStack string, maxTurns int) (Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := slugify(name)
	if id == "" {
		id = "project"
	}
	existing := map[string]bool{}
	for _, p := range m.reg.Projects {
		existing[p.ID] = true
	}
	if existing[id] {
		for i := 2; ; i++ {
			candidate := fmt.Sprintf("%s_%d", id, i)
			if !existing[candidate] {
				id = candidate
				break
			}
		}
	}

	now := time.Now().Format(time.RFC3339)
	proj := Project{
		ID:          id,
		Name:        name,
		Path:        path,
		CreatedAt:   now,
		LastOpened:  now,
		Description: description,
	}

	dataDir := filepath.Join(m.projectsDir, id)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return Project{}, fmt.Errorf("create project data dir: %w", err)
	}

	meta, _ := json.MarshalIndent(proj, "", "  ")
	if err := os.WriteFile(filepath.Join(dataDir, "project.json"), meta, 0o644); err != nil {
		return Project{}, fmt.Errorf("write project meta: %w", err)
	}

	if maxTurns <= 0 {
		maxTurns = 50
	}
	settings := Settings{
		TechStack: techStack,
		MaxTurns:  maxTurns,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.writeSettings(id, settings); err != nil {
		return Project{}, err
	}

	if err := seedGovernanceTemplates(path, name); err != nil {
		return Project{}, err
	}

	m.reg.Projects = append(m.reg.Projects, proj)
	m.reg.ActiveProject = id
	if err := m.saveLocked(); err != nil {
		return Project{}, err
	}

	m.log.Info("project created", zap.String("id", id), zap.String("path", path))
	return proj, nil
}

// Import registers an existing directory as a project. Templates are only
// written for governance docs that do not already exist.
func (m *Manager) Import(name, path, description string) (Project, error) {
	return m.Create(name, path, description, "", 50)
}

// Switch makes a project active and stamps its last-opened time.
func (m *Manager) Switch(id string) (Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.reg.Projects {
		if m.reg.Projects[i].ID == id {
			m.reg.Projects[i].LastOpened = time.Now().Format(time.RFC3339)
			m.reg.ActiveProject = id
			if err := m.saveLocked(); err != nil {
				return Project{}, err
			}
			return m.reg.Projects[i], nil
		}
	}
	return Project{}, fmt.Errorf("unknown project %q", id)
}

// Update changes a project's name or description. Empty arguments leave the
// field unchanged.
func (m *Manager) Update(id, name, description string) (Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.reg.Projects {
		if m.reg.Projects[i].ID == id {
			if name != "" {
				m.reg.Projects[i].Name = name
			}
			if description != "" {
				m.reg.Projects[i].Description = description
			}
			m.reg.Projects[i].LastOpened = time.Now().Format(time.RFC3339)
			if err := m.saveLocked(); err != nil {
				return Project{}, err
			}
			return m.reg.Projects[i], nil
		}
	}
	return Project{}, fmt.Errorf("unknown project %q", id)
}

// Delete removes a project from the registry. With deleteData the
// per-project database directory goes too; the working tree is never
// touched. The active project falls back to the first remaining one.
func (m *Manager) Delete(id string, deleteData bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.reg.Projects[:0]
	found := false
	for _, p := range m.reg.Projects {
		if p.ID == id {
			found = true
			continue
		}
		kept = append(kept, p)
	}
	if !found {
		return fmt.Errorf("unknown project %q", id)
	}
	m.reg.Projects = kept

	if deleteData {
		if err := os.RemoveAll(filepath.Join(m.projectsDir, id)); err != nil {
			return err
		}
	}

	if m.reg.ActiveProject == id {
		m.reg.ActiveProject = ""
		if len(m.reg.Projects) > 0 {
			m.reg.ActiveProject = m.reg.Projects[0].ID
		}
	}
	return m.saveLocked()
}

// DBPath returns the project's memory database path, creating its data
// directory on the way. An empty id resolves the active project, falling
// back to "default".
func (m *Manager) DBPath(id string) (string, error) {
	m.mu.Lock()
	if id == "" {
		id = m.reg.ActiveProject
	}
	m.mu.Unlock()
	if id == "" {
		id = "default"
	}

	dataDir := filepath.Join(m.projectsDir, id)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "memory.db"), nil
}

// ProjectSettings reads a project's settings, defaulting when absent or
// unreadable. An empty id resolves the active project.
func (m *Manager) ProjectSettings(id string) Settings {
	m.mu.Lock()
	if id == "" {
		id = m.reg.ActiveProject
	}
	m.mu.Unlock()
	if id == "" {
		return DefaultSettings()
	}

	data, err := os.ReadFile(filepath.Join(m.projectsDir, id, "settings.json"))
	if err != nil {
		return DefaultSettings()
	}
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return DefaultSettings()
	}
	if s.MaxTurns <= 0 {
		s.MaxTurns = 50
	}
	return s
}

// SaveSettings writes a project's settings with a fresh updated-at stamp.
func (m *Manager) SaveSettings(id string, s Settings) error {
	s.UpdatedAt = time.Now().Format(time.RFC3339)
	if err := os.MkdirAll(filepath.Join(m.projectsDir, id), 0o755); err != nil {
		return err
	}
	return m.writeSettings(id, s)
}

func (m *Manager) writeSettings(id string, s Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(m.projectsDir, id, "settings.json"), data, 0o644)
}
