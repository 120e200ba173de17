package config

import (
	"path/filepath"
)

// ConfigPathEnvVar is a PATH-like environment variable holding extra
// directories to search for default config files, highest priority first.
const ConfigPathEnvVar = "DAF_BUTLER_CONFIG_PATH"

// InstallDirEnvVar locates the installed defaults tree. Its config
// subdirectory is the fixed lowest-priority search entry.
const InstallDirEnvVar = "DAF_BUTLER_DIR"

// SearchContext is the ordered set of directories consulted for default
// config files. It is resolved from the process environment once, at the
// entry of a composition, and threaded through every recursive step
// instead of being read ambiently mid-algorithm.
type SearchContext struct {
	// Explicit caller-supplied directories, highest priority.
	Explicit []string
	// EnvPaths read from ConfigPathEnvVar.
	EnvPaths []string
	// Builtin fallback directory, lowest priority. Empty when the install
	// root is unknown.
	Builtin string
}

// NewSearchContext reads the process environment once and builds the
// search context for a composition, with explicit paths ranked above
// everything discovered from the environment.
func NewSearchContext(explicit ...string) SearchContext {
	ctx := SearchContext{Explicit: append([]string(nil), explicit...)}
	if v := Getenv(ConfigPathEnvVar); v != "" {
		ctx.EnvPaths = filepath.SplitList(v)
	}
	if dir := Getenv(InstallDirEnvVar); dir != "" {
		ctx.Builtin = filepath.Join(dir, "config")
	}
	return ctx
}

// Dirs returns the search directories in priority order, highest first.
// The builtin directory is always last.
func (s SearchContext) Dirs() []string {
	dirs := make([]string, 0, len(s.Explicit)+len(s.EnvPaths)+1)
	dirs = append(dirs, s.Explicit...)
	dirs = append(dirs, s.EnvPaths...)
	if s.Builtin != "" {
		dirs = append(dirs, s.Builtin)
	}
	return dirs
}
