package agent

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/opencode-ai/subagents/internal/logging"
)

const definitionPattern = "*.md"

// Sources names the scope directories to discover from. Either may be empty.
type Sources struct {
	UserDir    string `json:"userDir,omitempty"`
	ProjectDir string `json:"projectDir,omitempty"`
}

// scopes returns the directories in load order. Later entries win.
func (s Sources) scopes() []scopeDir {
	return []scopeDir{
		{scope: ScopeUser, dir: s.UserDir},
		{scope: ScopeProject, dir: s.ProjectDir},
	}
}

type scopeDir struct {
	scope Scope
	dir   string
}

// LoadDirectory parses every definition document directly inside dir.
// A missing directory yields no descriptors and no error. Documents that fail
// to parse are logged and skipped.
func LoadDirectory(dir string, scope Scope) ([]*Descriptor, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &DiscoveryError{Scope: scope, Dir: dir, Err: err}
	}
	if !info.IsDir() {
		return nil, nil
	}

	matches, err := doublestar.Glob(os.DirFS(dir), definitionPattern,
		doublestar.WithFailOnIOErrors(),
		doublestar.WithFilesOnly(),
	)
	if err != nil {
		return nil, &DiscoveryError{Scope: scope, Dir: dir, Err: err}
	}
	sort.Strings(matches)

	descriptors := make([]*Descriptor, 0, len(matches))
	for _, match := range matches {
		path := filepath.Join(dir, match)
		name := strings.TrimSuffix(match, filepath.Ext(match))

		desc, err := loadFile(path, name)
		if err != nil {
			logging.Warn().Err(err).Str("scope", string(scope)).Str("path", path).Msg("skipping agent definition")
			continue
		}
		desc.Scope = scope
		desc.Path = path
		descriptors = append(descriptors, desc)
	}

	return descriptors, nil
}

func loadFile(path, name string) (*Descriptor, error) {
	if name == "" {
		return nil, &ParseError{Name: name, Path: path, Err: errors.New("invalid filename for agent")}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Name: name, Path: path, Err: err}
	}

	desc, warnings, err := Parse(string(data), name)
	if err != nil {
		return nil, &ParseError{Name: name, Path: path, Err: err}
	}
	for _, w := range warnings {
		logging.Warn().Str("agent", w.Agent).Str("path", path).Msg(w.Message)
	}
	return desc, nil
}

// load overlays the scopes in order. Failed scopes are reported and skipped.
func load(src Sources) (map[string]*Descriptor, error) {
	agents := make(map[string]*Descriptor)
	var errs []error

	for _, s := range src.scopes() {
		if s.dir == "" {
			continue
		}

		descriptors, err := LoadDirectory(s.dir, s.scope)
		if err != nil {
			logging.Error().Err(err).Str("scope", string(s.scope)).Msg("agent discovery failed for scope")
			errs = append(errs, err)
			continue
		}

		for _, d := range descriptors {
			if prev, ok := agents[d.Name]; ok {
				logging.Debug().
					Str("agent", d.Name).
					Str("scope", string(d.Scope)).
					Str("overrides", string(prev.Scope)).
					Msg("agent definition overridden")
			}
			agents[d.Name] = d
		}

		logging.Debug().Str("scope", string(s.scope)).Str("dir", s.dir).Int("count", len(descriptors)).Msg("loaded agents")
	}

	return agents, errors.Join(errs...)
}
