package reconcile

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agentic-research/ttsync/internal/tags"
)

// relative converts p, absolute or relative to the working directory, into
// a slash-separated path relative to the project root.
func (e *Engine) relative(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", p, err)
	}
	rel, err := filepath.Rel(e.root, abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s", tags.ErrOutsideRoot, p)
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%w: %s", tags.ErrOutsideRoot, p)
	}
	return rel, nil
}

// ReducePaths drops duplicates and every path nested under another one in
// the set. Paths are slash-separated and relative; "." covers everything.
func ReducePaths(paths []string) []string {
	clean := make([]string, 0, len(paths))
	for _, p := range paths {
		clean = append(clean, path.Clean(p))
	}
	sort.Strings(clean)

	var out []string
	for _, p := range clean {
		if covered(out, p) {
			continue
		}
		if p == "." {
			return []string{"."}
		}
		out = append(out, p)
	}
	return out
}

func covered(kept []string, p string) bool {
	for _, k := range kept {
		if k == p || strings.HasPrefix(p, k+"/") {
			return true
		}
	}
	return false
}

func (e *Engine) reduce(paths []string) ([]string, error) {
	if len(paths) == 0 {
		return []string{"."}, nil
	}
	rel := make([]string, 0, len(paths))
	for _, p := range paths {
		r, err := e.relative(p)
		if err != nil {
			return nil, err
		}
		rel = append(rel, r)
	}
	return ReducePaths(rel), nil
}
