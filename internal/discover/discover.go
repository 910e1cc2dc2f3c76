// Package discover finds the C source and header files a build
// should analyse: a gitignore-aware directory walk narrowed by the
// config's include/exclude glob patterns, grounded in
// phobologic-repoguide's internal/discover.
package discover

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"

	"cxref/pkg/cast"
)

var skipDirs = map[string]struct{}{
	"node_modules": {},
	".git":         {},
	".hg":          {},
	".svn":         {},
	"build":        {},
	"dist":         {},
}

// Entry is one discovered file, with the kind the builder will treat
// it as (Header or Source).
type Entry struct {
	Path string // absolute
	Rel  string // relative to root, slash-separated
	Kind cast.FileKind
}

// Files walks root, keeping files whose root-relative path matches at
// least one of include and none of exclude, honoring .gitignore.
// Anything outside the .c/.h extension set is skipped outright: the
// "unknown extension defaults to Source" rule only governs file-kind
// classification once a file has already been selected for parsing.
func Files(root string, include, exclude []string) ([]Entry, error) {
	root = filepath.Clean(root)
	gi := loadGitignore(root)

	var results []Entry
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		name := d.Name()

		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".c" && ext != ".h" {
			return nil
		}

		matched, err := matchesAny(include, rel)
		if err != nil {
			return err
		}
		if !matched {
			return nil
		}
		excluded, err := matchesAny(exclude, rel)
		if err != nil {
			return err
		}
		if excluded {
			return nil
		}

		results = append(results, Entry{Path: path, Rel: rel, Kind: cast.KindOfExt(ext)})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Rel < results[j].Rel })
	return results, nil
}

// Paths is a convenience over Files returning just the absolute
// paths, in the order the builder expects to receive them.
func Paths(root string, include, exclude []string) ([]string, error) {
	entries, err := Files(root, include, exclude)
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
	}
	return paths, nil
}

func matchesAny(patterns []string, rel string) (bool, error) {
	if len(patterns) == 0 {
		return false, nil
	}
	for _, p := range patterns {
		ok, err := doublestar.Match(p, rel)
		if err != nil {
			return false, fmt.Errorf("bad glob pattern %q: %w", p, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}
