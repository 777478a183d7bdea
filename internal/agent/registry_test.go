package agent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAgent(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeAgent(t, dir, "alpha.md", "---\ndescription: First\n---\nAlpha prompt.")
	writeAgent(t, dir, "beta.md", "---\ndescription: Second\ntools: [shell]\n---\nBeta prompt.")
	writeAgent(t, dir, "notes.txt", "---\ndescription: Not an agent\n---\nIgnored.")
	writeAgent(t, dir, "broken.md", "no frontmatter here")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.md"), 0755))

	descriptors, err := LoadDirectory(dir, ScopeUser)
	require.NoError(t, err)
	require.Len(t, descriptors, 2)

	assert.Equal(t, "alpha", descriptors[0].Name)
	assert.Equal(t, ScopeUser, descriptors[0].Scope)
	assert.Equal(t, filepath.Join(dir, "alpha.md"), descriptors[0].Path)
	assert.Equal(t, "beta", descriptors[1].Name)
	assert.Equal(t, []string{"shell"}, descriptors[1].Tools)
}

func TestLoadDirectory_Missing(t *testing.T) {
	descriptors, err := LoadDirectory(filepath.Join(t.TempDir(), "nope"), ScopeProject)
	require.NoError(t, err)
	assert.Empty(t, descriptors)
}

func TestLoadDirectory_Unreadable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}
	dir := filepath.Join(t.TempDir(), "locked")
	writeAgent(t, dir, "a.md", "---\ndescription: A\n---\nA.")
	require.NoError(t, os.Chmod(dir, 0000))
	defer os.Chmod(dir, 0755)

	_, err := LoadDirectory(dir, ScopeUser)
	var derr *DiscoveryError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, ScopeUser, derr.Scope)
}

func TestDiscover_FailedScopeIsolated(t *testing.T) {
	root := t.TempDir()
	userDir := filepath.Join(root, "user")
	loop := filepath.Join(root, "loop")
	// A symlink loop fails os.Stat with ELOOP, even for root.
	require.NoError(t, os.Symlink(loop, userDir))
	require.NoError(t, os.Symlink(userDir, loop))

	projectDir := filepath.Join(root, "project")
	writeAgent(t, projectDir, "docs.md", "---\ndescription: Writes docs\n---\nDocs body.")

	reg, err := Discover(Sources{UserDir: userDir, ProjectDir: projectDir})
	require.NotNil(t, reg)

	var derr *DiscoveryError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, ScopeUser, derr.Scope)
	assert.Equal(t, userDir, derr.Dir)

	docs, ok := reg.Get("docs")
	require.True(t, ok)
	assert.Equal(t, "Writes docs", docs.Description)
	assert.Equal(t, 1, reg.Count())

	assert.ErrorAs(t, reg.Reload(), &derr)
	assert.Equal(t, 1, reg.Count())
}

func TestDiscover_ProjectOverridesUser(t *testing.T) {
	root := t.TempDir()
	userDir := filepath.Join(root, "user")
	projectDir := filepath.Join(root, "project")

	writeAgent(t, userDir, "reviewer.md", "---\ndescription: User reviewer\n---\nUser body.")
	writeAgent(t, userDir, "helper.md", "---\ndescription: User helper\n---\nHelper body.")
	writeAgent(t, projectDir, "reviewer.md", "---\ndescription: Project reviewer\ntools: [edit]\n---\nProject body.")

	reg, err := Discover(Sources{UserDir: userDir, ProjectDir: projectDir})
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Count())

	reviewer, ok := reg.Get("reviewer")
	require.True(t, ok)
	assert.Equal(t, "Project reviewer", reviewer.Description)
	assert.Equal(t, "Project body.", reviewer.Body)
	assert.Equal(t, []string{"edit"}, reviewer.Tools)
	assert.Equal(t, ScopeProject, reviewer.Scope)

	helper, ok := reg.Get("helper")
	require.True(t, ok)
	assert.Equal(t, ScopeUser, helper.Scope)
}

func TestDiscover_NoDirectories(t *testing.T) {
	reg, err := Discover(Sources{})
	require.NoError(t, err)
	assert.Equal(t, 0, reg.Count())
	assert.Empty(t, reg.List())
}

func TestDiscover_NonDirectoryScopeIgnored(t *testing.T) {
	root := t.TempDir()
	projectDir := filepath.Join(root, "project")
	writeAgent(t, projectDir, "docs.md", "---\ndescription: Docs\n---\nWrite docs.")

	// A regular file where the user directory should be is skipped, not an error.
	userFile := filepath.Join(root, "user")
	require.NoError(t, os.WriteFile(userFile, []byte("x"), 0644))

	reg, err := Discover(Sources{UserDir: userFile, ProjectDir: projectDir})
	require.NoError(t, err)
	assert.True(t, reg.Exists("docs"))
}

func TestRegistry_ListSorted(t *testing.T) {
	dir := t.TempDir()
	writeAgent(t, dir, "zeta.md", "---\ndescription: Z\n---\nZ.")
	writeAgent(t, dir, "alpha.md", "---\ndescription: A\n---\nA.")
	writeAgent(t, dir, "mid.md", "---\ndescription: M\n---\nM.")

	reg, err := Discover(Sources{ProjectDir: dir})
	require.NoError(t, err)

	assert.Equal(t, []Summary{
		{Name: "alpha", Description: "A"},
		{Name: "mid", Description: "M"},
		{Name: "zeta", Description: "Z"},
	}, reg.List())
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, reg.Names())
}

func TestRegistry_GetReturnsCopy(t *testing.T) {
	dir := t.TempDir()
	writeAgent(t, dir, "a.md", "---\ndescription: A\ntools: [shell]\n---\nA.")

	reg, err := Discover(Sources{ProjectDir: dir})
	require.NoError(t, err)

	d, ok := reg.Get("a")
	require.True(t, ok)
	d.Description = "mutated"
	d.Tools[0] = "edit"

	again, _ := reg.Get("a")
	assert.Equal(t, "A", again.Description)
	assert.Equal(t, []string{"shell"}, again.Tools)
}

func TestRegistry_GetExactNameOnly(t *testing.T) {
	dir := t.TempDir()
	writeAgent(t, dir, "docs-writer.md", "---\ndescription: D\n---\nD.")

	reg, err := Discover(Sources{ProjectDir: dir})
	require.NoError(t, err)

	_, ok := reg.Get("docs")
	assert.False(t, ok)
	_, ok = reg.Get("Docs-Writer")
	assert.False(t, ok)
	_, ok = reg.Get("docs-writer")
	assert.True(t, ok)
}

func TestRegistry_Reload(t *testing.T) {
	dir := t.TempDir()
	writeAgent(t, dir, "first.md", "---\ndescription: First\n---\nFirst.")

	reg, err := Discover(Sources{ProjectDir: dir})
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, reg.Names())

	writeAgent(t, dir, "second.md", "---\ndescription: Second\n---\nSecond.")
	require.NoError(t, os.Remove(filepath.Join(dir, "first.md")))

	require.NoError(t, reg.Reload())
	assert.Equal(t, []string{"second"}, reg.Names())
}

func TestNewRegistry_Empty(t *testing.T) {
	reg := NewRegistry()
	assert.Equal(t, 0, reg.Count())
	assert.NoError(t, reg.Reload())
	_, ok := reg.Get("anything")
	assert.False(t, ok)
}
