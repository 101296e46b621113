// Package tags implements the naming convention that binds a file on disk to
// an object in a save.
//
// A tag is either a script tag (`lua/<path>.lua`, `lua/<path>.ttslua`) or a UI
// tag (`xml/<path>.xml`), where <path> is slash-separated and relative to the
// project root. The path is cleaned before use, so `lua/a//b.lua` and
// `lua/./a/b.lua` both bind `a/b.lua`; a path that escapes the root, is
// absolute, contains a backslash, or has nothing in front of its suffix is
// not a tag. Any string that is not a tag is foreign: it is never matched,
// never rewritten and never dropped.
package tags

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Namespace is the category of file a tag binds.
type Namespace int

const (
	Foreign Namespace = iota
	Script
	UI
)

const (
	ScriptPrefix = "lua/"
	UIPrefix     = "xml/"
)

var (
	ErrUnsupportedFile = errors.New("tags: not a lua or xml file")
	ErrOutsideRoot     = errors.New("tags: path is outside the project root")
)

func (n Namespace) String() string {
	switch n {
	case Script:
		return "script"
	case UI:
		return "ui"
	default:
		return "foreign"
	}
}

func (n Namespace) prefix() string {
	switch n {
	case Script:
		return ScriptPrefix
	case UI:
		return UIPrefix
	default:
		return ""
	}
}

// NamespaceForFile reports which namespace a file with this name belongs to.
func NamespaceForFile(name string) Namespace {
	switch path.Ext(filepath.ToSlash(name)) {
	case ".lua", ".ttslua":
		return Script
	case ".xml":
		return UI
	default:
		return Foreign
	}
}

// Tag is a parsed, valid tag.
type Tag struct {
	Namespace Namespace
	// Path is slash-separated and relative to the project root.
	Path string
}

func (t Tag) String() string {
	return t.Namespace.prefix() + t.Path
}

// FilePath returns the OS path of the file this tag points at, relative to
// the project root.
func (t Tag) FilePath() string {
	return filepath.FromSlash(t.Path)
}

// Under reports whether the tag's file is one of the changed paths or lies
// inside one of them. A changed path of "" or "." covers the whole root.
func (t Tag) Under(changed []string) bool {
	for _, c := range changed {
		c = path.Clean(filepath.ToSlash(c))
		if c == "." || c == t.Path || strings.HasPrefix(t.Path, c+"/") {
			return true
		}
	}
	return false
}

// Parse returns the tag encoded in raw. ok is false for foreign strings.
// The returned path is cleaned, so String may differ from raw.
func Parse(raw string) (Tag, bool) {
	var ns Namespace
	var rel string
	switch {
	case strings.HasPrefix(raw, ScriptPrefix):
		ns, rel = Script, strings.TrimPrefix(raw, ScriptPrefix)
	case strings.HasPrefix(raw, UIPrefix):
		ns, rel = UI, strings.TrimPrefix(raw, UIPrefix)
	default:
		return Tag{}, false
	}
	if rel == "" || path.IsAbs(rel) || strings.Contains(rel, "\\") {
		return Tag{}, false
	}
	rel = path.Clean(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") || NamespaceForFile(rel) != ns {
		return Tag{}, false
	}
	// "lua/.lua" has no file name in front of the suffix
	if base := path.Base(rel); base == path.Ext(base) {
		return Tag{}, false
	}
	return Tag{Namespace: ns, Path: rel}, true
}

// FromPath derives the tag for file, which must live inside root.
func FromPath(root, file string) (Tag, error) {
	ns := NamespaceForFile(file)
	if ns == Foreign {
		return Tag{}, fmt.Errorf("%w: %s", ErrUnsupportedFile, file)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return Tag{}, fmt.Errorf("resolve root %s: %w", root, err)
	}
	absFile, err := filepath.Abs(file)
	if err != nil {
		return Tag{}, fmt.Errorf("resolve %s: %w", file, err)
	}
	rel, err := filepath.Rel(absRoot, absFile)
	if err != nil {
		return Tag{}, fmt.Errorf("%w: %s", ErrOutsideRoot, file)
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return Tag{}, fmt.Errorf("%w: %s", ErrOutsideRoot, file)
	}
	t, ok := Parse(ns.prefix() + rel)
	if !ok {
		return Tag{}, fmt.Errorf("%w: %s", ErrUnsupportedFile, file)
	}
	return t, nil
}

// Partition splits raw into the valid tags of namespace ns and everything
// else, preserving order in both halves.
func Partition(raw []string, ns Namespace) (valid []Tag, rest []string) {
	for _, r := range raw {
		if t, ok := Parse(r); ok && t.Namespace == ns {
			valid = append(valid, t)
			continue
		}
		rest = append(rest, r)
	}
	return valid, rest
}

// Replace removes every valid tag in t's namespace from raw and appends t.
// Foreign tags and tags of the other namespace keep their position.
func Replace(raw []string, t Tag) []string {
	_, rest := Partition(raw, t.Namespace)
	out := make([]string, 0, len(rest)+1)
	out = append(out, rest...)
	return append(out, t.String())
}

// Strip removes every valid tag of both namespaces from raw.
func Strip(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if _, ok := Parse(r); !ok {
			out = append(out, r)
		}
	}
	return out
}
