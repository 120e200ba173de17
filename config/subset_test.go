package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearSearchEnv keeps composition from picking up defaults through the
// caller's real environment.
func clearSearchEnv(t *testing.T) {
	t.Helper()
	t.Setenv(ConfigPathEnvVar, "")
	t.Setenv(InstallDirEnvVar, "")
}

func TestDefaultsLayering(t *testing.T) {
	installDir := t.TempDir()
	writeFile(t, installDir, "config/sub.yaml", "a: 1\nb: 1\n")
	envDir := t.TempDir()
	writeFile(t, envDir, "sub.yaml", "b: 2\n")

	t.Setenv(InstallDirEnvVar, installDir)
	t.Setenv(ConfigPathEnvVar, envDir)

	desc := Subset{Kind: "test", DefaultConfigFile: "sub.yaml"}
	s, err := NewSubset(desc, map[string]any{"b": 3}, nil)
	require.NoError(t, err)

	assert.True(t, s.Equal(map[string]any{"a": 1, "b": 3}))
	assert.Equal(t, []string{
		filepath.Join(installDir, "config", "sub.yaml"),
		filepath.Join(envDir, "sub.yaml"),
	}, s.FilesRead)
}

func TestExplicitSearchPathsRankAboveEnvironment(t *testing.T) {
	envDir := t.TempDir()
	writeFile(t, envDir, "sub.yaml", "b: 2\n")
	explicitDir := t.TempDir()
	writeFile(t, explicitDir, "sub.yaml", "b: 9\nc: 4\n")

	t.Setenv(ConfigPathEnvVar, envDir)
	t.Setenv(InstallDirEnvVar, "")

	desc := Subset{Kind: "test", DefaultConfigFile: "sub.yaml"}
	opts := &SubsetOptions{Validate: true, MergeDefaults: true, SearchPaths: []string{explicitDir}}
	s, err := NewSubset(desc, map[string]any{}, opts)
	require.NoError(t, err)

	assert.True(t, s.Equal(map[string]any{"b": 9, "c": 4}))
}

func TestAbsoluteDefaultConfigFile(t *testing.T) {
	clearSearchEnv(t)

	dir := t.TempDir()
	file := writeFile(t, dir, "defaults.yaml", "a: 1\n")

	desc := Subset{Kind: "test", DefaultConfigFile: file}
	s, err := NewSubset(desc, map[string]any{"b": 2}, nil)
	require.NoError(t, err)

	assert.True(t, s.Equal(map[string]any{"a": 1, "b": 2}))
}

func TestComponentSelection(t *testing.T) {
	clearSearchEnv(t)

	desc := Subset{Kind: "test", Component: "comp"}

	s, err := NewSubset(desc, map[string]any{
		"comp":  map[string]any{"x": 1},
		"other": 2,
	}, nil)
	require.NoError(t, err)
	assert.True(t, s.Equal(map[string]any{"x": 1}))

	// An include can re-introduce the component name one level deeper;
	// the doubled form wins.
	s, err = NewSubset(desc, map[string]any{
		"comp": map[string]any{"comp": map[string]any{"x": 2}},
	}, nil)
	require.NoError(t, err)
	assert.True(t, s.Equal(map[string]any{"x": 2}))

	// Without the component key the whole input is already the subset.
	s, err = NewSubset(desc, map[string]any{"x": 3}, nil)
	require.NoError(t, err)
	assert.True(t, s.Equal(map[string]any{"x": 3}))
}

func TestComponentSelectionAppliesToDefaultFiles(t *testing.T) {
	clearSearchEnv(t)

	dir := t.TempDir()
	writeFile(t, dir, "sub.yaml", "comp:\n  a: 1\n")

	desc := Subset{Kind: "test", Component: "comp", DefaultConfigFile: "sub.yaml"}
	opts := &SubsetOptions{Validate: true, MergeDefaults: true, SearchPaths: []string{dir}}
	s, err := NewSubset(desc, map[string]any{"comp": map[string]any{"b": 2}}, opts)
	require.NoError(t, err)

	assert.True(t, s.Equal(map[string]any{"a": 1, "b": 2}))
}

func TestDiscriminatorDefaultsAndContainerChildren(t *testing.T) {
	clearSearchEnv(t)

	dir := t.TempDir()
	writeFile(t, dir, "sub.yaml", "cls: thing\np: 1\n")
	writeFile(t, dir, "thing.yaml", "q: 5\n")

	RegisterSubsetType("thing", Subset{
		Kind:              "thing",
		DefaultConfigFile: "thing.yaml",
		ContainerKey:      "children",
	})

	desc := Subset{Kind: "parent", DefaultConfigFile: "sub.yaml"}
	opts := &SubsetOptions{Validate: true, MergeDefaults: true, SearchPaths: []string{dir}}
	s, err := NewSubset(desc, map[string]any{
		"children": []any{
			map[string]any{},
			map[string]any{"p": 7},
		},
	}, opts)
	require.NoError(t, err)

	for key, want := range map[string]any{
		".p":            1,
		".q":            5,
		".cls":          "thing",
		".children.0.p": 1,
		".children.0.q": 5,
		".children.1.p": 7,
		".children.1.q": 5,
	} {
		v, err := s.Get(key)
		require.NoError(t, err, "key %q", key)
		assert.Equal(t, want, v, "key %q", key)
	}
}

func TestDiscriminatorUnregistered(t *testing.T) {
	clearSearchEnv(t)

	desc := Subset{Kind: "test"}
	_, err := NewSubset(desc, map[string]any{"cls": "never-registered"}, nil)
	require.Error(t, err)
}

func TestValidationReportsAllMissingKeys(t *testing.T) {
	clearSearchEnv(t)

	desc := Subset{Kind: "widget", RequiredKeys: []string{"x", "y", "z"}}
	_, err := NewSubset(desc, map[string]any{"x": 1}, nil)

	var missing *MissingKeysError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "widget", missing.Kind)
	assert.Equal(t, []string{"y", "z"}, missing.Keys)
	assert.Error(t, missing.Unwrap())
}

func TestValidationDisabled(t *testing.T) {
	clearSearchEnv(t)

	desc := Subset{Kind: "widget", RequiredKeys: []string{"y"}}
	s, err := NewSubset(desc, map[string]any{"x": 1}, &SubsetOptions{MergeDefaults: true})
	require.NoError(t, err)
	assert.True(t, s.Contains("x"))
}

func TestMergeDefaultsDisabled(t *testing.T) {
	envDir := t.TempDir()
	writeFile(t, envDir, "sub.yaml", "b: 2\n")
	t.Setenv(ConfigPathEnvVar, envDir)
	t.Setenv(InstallDirEnvVar, "")

	desc := Subset{Kind: "test", DefaultConfigFile: "sub.yaml"}
	s, err := NewSubset(desc, map[string]any{"a": 1}, &SubsetOptions{})
	require.NoError(t, err)

	assert.True(t, s.Equal(map[string]any{"a": 1}))
	assert.Empty(t, s.FilesRead)
}

func TestUpdateParameters(t *testing.T) {
	clearSearchEnv(t)

	desc := Subset{Kind: "registry", Component: "registry"}
	cfg := mustNew(t, map[string]any{"registry": map[string]any{"k": 1}})
	full := mustNew(t, map[string]any{"registry": map[string]any{"k": 1, "ref": 42}})

	err := UpdateParameters(desc, cfg, full, map[string]any{"k2": 2}, []any{"ref"}, true)
	require.NoError(t, err)

	assert.True(t, cfg.Equal(map[string]any{
		"registry": map[string]any{"k": 1, "k2": 2, "ref": 42},
	}))
}

func TestUpdateParametersNoOverwrite(t *testing.T) {
	clearSearchEnv(t)

	desc := Subset{Kind: "registry", Component: "registry"}
	cfg := mustNew(t, map[string]any{"registry": map[string]any{"k": 1}})
	full := mustNew(t, map[string]any{"registry": map[string]any{"k": 99}})

	err := UpdateParameters(desc, cfg, full, map[string]any{"k": 50}, nil, false)
	require.NoError(t, err)

	v, err := cfg.Get(".registry.k")
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestUpdateParametersCreatesComponentStub(t *testing.T) {
	clearSearchEnv(t)

	desc := Subset{Kind: "registry", Component: "registry"}
	cfg := mustNew(t, nil)
	full := mustNew(t, map[string]any{"registry": map[string]any{"ref": 42}})

	err := UpdateParameters(desc, cfg, full, nil, []any{"ref"}, true)
	require.NoError(t, err)

	assert.True(t, cfg.Equal(map[string]any{
		"registry": map[string]any{"ref": 42},
	}))
}

func TestUpdateParametersRequiresWork(t *testing.T) {
	clearSearchEnv(t)

	desc := Subset{Kind: "registry"}
	require.Error(t, UpdateParameters(desc, mustNew(t, nil), mustNew(t, nil), nil, nil, true))
}
