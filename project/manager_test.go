package project

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)
	return m
}

func TestCreateProjectSeedsTemplatesAndActivates(t *testing.T) {
	m := newTestManager(t)
	workTree := t.TempDir()

	p, err := m.Create("My App", workTree, "demo project", "go", 40)
	require.NoError(t, err)
	assert.Equal(t, "my_app", p.ID)

	active, ok := m.Active()
	require.True(t, ok)
	assert.Equal(t, p.ID, active.ID)

	handover, err := os.ReadFile(filepath.Join(workTree, "HANDOVER.md"))
	require.NoError(t, err)
	assert.Contains(t, string(handover), "# My App - HANDOVER")
	assert.Contains(t, string(handover), "## Current State")

	constitution, err := os.ReadFile(filepath.Join(workTree, "CONSTITUTION.md"))
	require.NoError(t, err)
	assert.Contains(t, string(constitution), "## Prohibited")

	s := m.ProjectSettings(p.ID)
	assert.Equal(t, "go", s.TechStack)
	assert.Equal(t, 40, s.MaxTurns)
}

func TestCreateDoesNotOverwriteExistingGovernanceDocs(t *testing.T) {
	m := newTestManager(t)
	workTree := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(workTree, "HANDOVER.md"), []byte("# custom\n"), 0o644))

	_, err := m.Import("Legacy", workTree, "")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(workTree, "HANDOVER.md"))
	require.NoError(t, err)
	assert.Equal(t, "# custom\n", string(data))

	// The missing doc still gets seeded.
	_, err = os.Stat(filepath.Join(workTree, "CONSTITUTION.md"))
	assert.NoError(t, err)
}

func TestSlugCollisionGetsNumericSuffix(t *testing.T) {
	m := newTestManager(t)

	p1, err := m.Create("Demo-App", t.TempDir(), "", "", 0)
	require.NoError(t, err)
	p2, err := m.Create("demo app", t.TempDir(), "", "", 0)
	require.NoError(t, err)
	p3, err := m.Create("Demo App!", t.TempDir(), "", "", 0)
	require.NoError(t, err)

	assert.Equal(t, "demo_app", p1.ID)
	assert.Equal(t, "demo_app_2", p2.ID)
	assert.Equal(t, "demo_app_3", p3.ID)
}

func TestRegistryPersistsAcrossManagers(t *testing.T) {
	base := t.TempDir()
	m1, err := NewManager(base)
	require.NoError(t, err)
	p, err := m1.Create("Persisted", t.TempDir(), "", "", 0)
	require.NoError(t, err)

	m2, err := NewManager(base)
	require.NoError(t, err)
	got, ok := m2.Get(p.ID)
	require.True(t, ok)
	assert.Equal(t, "Persisted", got.Name)

	active, ok := m2.Active()
	require.True(t, ok)
	assert.Equal(t, p.ID, active.ID)
}

func TestRegistryFileShape(t *testing.T) {
	base := t.TempDir()
	m, err := NewManager(base)
	require.NoError(t, err)
	_, err = m.Create("Shape", t.TempDir(), "", "", 0)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(base, "config", "projects.json"))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "projects")
	assert.Equal(t, "shape", raw["active_project"])
}

func TestSwitchUpdatesActiveAndLastOpened(t *testing.T) {
	m := newTestManager(t)
	p1, err := m.Create("One", t.TempDir(), "", "", 0)
	require.NoError(t, err)
	_, err = m.Create("Two", t.TempDir(), "", "", 0)
	require.NoError(t, err)

	switched, err := m.Switch(p1.ID)
	require.NoError(t, err)
	assert.Equal(t, p1.ID, switched.ID)

	active, ok := m.Active()
	require.True(t, ok)
	assert.Equal(t, p1.ID, active.ID)

	_, err = m.Switch("nope")
	assert.Error(t, err)
}

func TestDeleteFallsBackToFirstRemaining(t *testing.T) {
	m := newTestManager(t)
	p1, err := m.Create("A", t.TempDir(), "", "", 0)
	require.NoError(t, err)
	p2, err := m.Create("B", t.TempDir(), "", "", 0)
	require.NoError(t, err)

	// p2 is active after creation; deleting it falls back to p1.
	require.NoError(t, m.Delete(p2.ID, true))

	active, ok := m.Active()
	require.True(t, ok)
	assert.Equal(t, p1.ID, active.ID)

	assert.Error(t, m.Delete("ghost", false))
}

func TestDBPathCreatesDataDir(t *testing.T) {
	m := newTestManager(t)
	p, err := m.Create("DB Test", t.TempDir(), "", "", 0)
	require.NoError(t, err)

	path, err := m.DBPath(p.ID)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path) || filepath.Dir(path) != "")
	assert.Equal(t, "memory.db", filepath.Base(path))

	// Empty id resolves the active project.
	activePath, err := m.DBPath("")
	require.NoError(t, err)
	assert.Equal(t, path, activePath)
}

func TestSettingsRoundTripAndDefaults(t *testing.T) {
	m := newTestManager(t)
	p, err := m.Create("Settings", t.TempDir(), "", "python", 30)
	require.NoError(t, err)

	require.NoError(t, m.SaveSettings(p.ID, Settings{TechStack: "rust", MaxTurns: 25}))
	s := m.ProjectSettings(p.ID)
	assert.Equal(t, "rust", s.TechStack)
	assert.Equal(t, 25, s.MaxTurns)
	assert.NotEmpty(t, s.UpdatedAt)

	// Unknown project falls back to defaults.
	s = m.ProjectSettings("ghost")
	assert.Equal(t, DefaultSettings().MaxTurns, s.MaxTurns)
}
