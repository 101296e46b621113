// Package reconcile keeps a save in step with the files its tags point at.
//
// A pass takes a save, mutates a copy, and returns the copy together with
// what changed. Passes never touch the host or the save on disk; Runner
// loads the save, runs a pass, and commits the result only when something
// changed.
package reconcile

import (
	"fmt"
	"path/filepath"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/rs/zerolog"

	"github.com/agentic-research/ttsync/internal/savefile"
	"github.com/agentic-research/ttsync/internal/tags"
)

// Engine runs passes against files under one project root.
type Engine struct {
	root  string
	files billy.Filesystem
	log   zerolog.Logger
}

// NewEngine returns an engine for root. files must be rooted at root; tag
// paths are opened on it as-is.
func NewEngine(root string, files billy.Filesystem, log zerolog.Logger) (*Engine, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", root, err)
	}
	return &Engine{root: abs, files: files, log: log.With().Str("component", "reconcile").Logger()}, nil
}

// Root returns the absolute project root.
func (e *Engine) Root() string { return e.root }

// ChangeSet is the input of a reload pass.
type ChangeSet struct {
	// Paths changed on disk, absolute or relative to the working
	// directory. Empty means the whole root.
	Paths []string
	// GUID restricts the pass to one object when set.
	GUID string
}

func (e *Engine) read(t tags.Tag) (string, error) {
	data, err := util.ReadFile(e.files, t.FilePath())
	if err != nil {
		return "", fmt.Errorf("read %s for tag '%s': %w", t.FilePath(), t, err)
	}
	return string(data), nil
}

// positions resolves guids to object positions, in save order. No guids
// selects every object.
func positions(save *savefile.Save, guids []string) ([]int, error) {
	if len(guids) == 0 {
		all := make([]int, len(save.Objects))
		for i := range all {
			all[i] = i
		}
		return all, nil
	}
	want := make(map[string]bool, len(guids))
	for _, g := range guids {
		if _, err := save.Object(g); err != nil {
			return nil, err
		}
		want[g] = true
	}
	var out []int
	for i, o := range save.Objects {
		if want[o.GUID] {
			out = append(out, i)
		}
	}
	return out, nil
}

// Attach binds file to every object in guids: the object's tag in the
// file's namespace is replaced and the matching body is set to the file's
// contents.
func (e *Engine) Attach(save *savefile.Save, file string, guids []string) (*Outcome, error) {
	if len(guids) == 0 {
		return nil, fmt.Errorf("attach %s: %w", file, ErrNoTarget)
	}
	t, err := tags.FromPath(e.root, file)
	if err != nil {
		return nil, err
	}
	body, err := e.read(t)
	if err != nil {
		return nil, err
	}

	out := newOutcome(Attach, save)
	pos, err := positions(out.Save, guids)
	if err != nil {
		return nil, err
	}
	for _, p := range pos {
		o := out.Save.Objects[p]
		prev, ok, err := o.ValidTag(t.Namespace)
		if err != nil || !ok || prev != t {
			if err != nil {
				e.log.Debug().Err(err).Str("guid", o.GUID).Msg("replacing ambiguous tags")
			}
			o.ReplaceTag(t)
			out.record(Added, o, t.Namespace, t.String())
		}
		if o.Body(t.Namespace) != body {
			o.SetBody(t.Namespace, body)
			out.record(Updated, o, t.Namespace, t.String())
		}
	}
	if out.Save.RegisterLabel(t.String()) {
		out.Changed = true
	}
	if err := e.finish(out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

// Detach removes every valid tag from the objects in guids, or from every
// object when guids is empty, and clears both bodies. Foreign tags stay.
func (e *Engine) Detach(save *savefile.Save, guids []string) (*Outcome, error) {
	out := newOutcome(Detach, save)
	pos, err := positions(out.Save, guids)
	if err != nil {
		return nil, err
	}
	cleared := clearedSet{}
	for _, p := range pos {
		o := out.Save.Objects[p]
		for _, raw := range o.Tags {
			if t, ok := tags.Parse(raw); ok {
				out.record(Removed, o, t.Namespace, raw)
			}
		}
		o.StripTags()
		for _, ns := range namespaces {
			cleared.add(p, ns)
			if o.Body(ns) != "" {
				o.SetBody(ns, "")
				out.record(Cleared, o, ns, "")
			}
		}
	}
	if err := e.finish(out, cleared); err != nil {
		return nil, err
	}
	return out, nil
}

// Reload refreshes every body whose tag points at or below a changed path
// and clears bodies that have lost their tag.
func (e *Engine) Reload(save *savefile.Save, cs ChangeSet) (*Outcome, error) {
	changed, err := e.reduce(cs.Paths)
	if err != nil {
		return nil, err
	}
	out := newOutcome(Reload, save)
	var guids []string
	if cs.GUID != "" {
		guids = []string{cs.GUID}
	}
	pos, err := positions(out.Save, guids)
	if err != nil {
		return nil, err
	}
	idx, err := buildIndex(out.Save.Objects, pos)
	if err != nil {
		return nil, err
	}

	cleared := clearedSet{}
	for _, ns := range namespaces {
		bodies := make(map[string]string)
		for _, p := range idx.paths(ns) {
			t := tags.Tag{Namespace: ns, Path: p}
			if !t.Under(changed) {
				continue
			}
			body, err := e.read(t)
			if err != nil {
				return nil, err
			}
			bodies[p] = body
		}

		it := idx.under(ns, changed).Iterator()
		for it.HasNext() {
			o := out.Save.Objects[it.Next()]
			t, _, _ := o.ValidTag(ns)
			if body := bodies[t.Path]; o.Body(ns) != body {
				o.SetBody(ns, body)
				out.record(Updated, o, ns, t.String())
			}
		}

		for _, p := range pos {
			o := out.Save.Objects[p]
			if idx.isTagged(ns, p) || o.Body(ns) == "" {
				continue
			}
			o.SetBody(ns, "")
			cleared.add(p, ns)
			out.record(Cleared, o, ns, "")
		}
	}
	e.log.Debug().Strs("paths", changed).Int("changes", len(out.Changes)).Msg("reload pass")
	if err := e.finish(out, cleared); err != nil {
		return nil, err
	}
	return out, nil
}

// finish resolves the global bodies and checks every object for bodies
// without a tag.
func (e *Engine) finish(out *Outcome, cleared clearedSet) error {
	if err := e.resolveGlobals(out); err != nil {
		return err
	}
	for p, o := range out.Save.Objects {
		for _, ns := range namespaces {
			_, ok, err := o.ValidTag(ns)
			if err != nil {
				return err
			}
			if ok || o.Body(ns) == "" || cleared.has(p, ns) {
				continue
			}
			out.Warnings = append(out.Warnings, Warning{GUID: o.GUID, Object: o.String(), Namespace: ns})
		}
	}
	return nil
}
