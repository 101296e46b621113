package reconcile

import (
	"fmt"

	"github.com/agentic-research/ttsync/internal/savefile"
	"github.com/agentic-research/ttsync/internal/tags"
)

// Mode names the kind of pass.
type Mode int

const (
	Attach Mode = iota
	Detach
	Reload
)

func (m Mode) String() string {
	switch m {
	case Attach:
		return "attach"
	case Detach:
		return "detach"
	default:
		return "reload"
	}
}

// ChangeKind classifies one recorded change.
type ChangeKind int

const (
	// Added means a tag was attached.
	Added ChangeKind = iota
	// Updated means a body was replaced with file contents.
	Updated
	// Removed means a tag was detached.
	Removed
	// Cleared means a body was emptied.
	Cleared
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Updated:
		return "updated"
	case Removed:
		return "removed"
	default:
		return "cleared"
	}
}

// Change is one difference a pass introduced.
type Change struct {
	Kind      ChangeKind
	GUID      string
	Object    string
	Namespace tags.Namespace
	// Tag is the tag involved, or the global file name for the global
	// object. Empty for Cleared changes without a tag.
	Tag string
}

func (c Change) String() string {
	switch c.Kind {
	case Added:
		return fmt.Sprintf("'%s' as a tag to %s", c.Tag, c.Object)
	case Removed:
		return fmt.Sprintf("'%s' from %s", c.Tag, c.Object)
	case Cleared:
		return fmt.Sprintf("%s of %s", c.Namespace, c.Object)
	default:
		return fmt.Sprintf("%s with tag '%s'", c.Object, c.Tag)
	}
}

// Warning is a recoverable inconsistency found after a pass.
type Warning struct {
	GUID      string
	Object    string
	Namespace tags.Namespace
}

func (w Warning) String() string {
	return fmt.Sprintf("%s has a %s body but no valid %s tag; use detach to remove it", w.Object, w.Namespace, w.Namespace)
}

// Outcome is the result of a pass over one save.
type Outcome struct {
	Mode Mode
	// Save is the mutated copy; the input save is never modified.
	Save *savefile.Save
	// Changed is false when the pass found nothing to write back.
	Changed  bool
	Changes  []Change
	Warnings []Warning

	// SavePath and Committed are filled in by Runner.
	SavePath  string
	Committed bool
}

func newOutcome(mode Mode, save *savefile.Save) *Outcome {
	return &Outcome{Mode: mode, Save: save.Clone()}
}

func (o *Outcome) record(kind ChangeKind, obj *savefile.Object, ns tags.Namespace, tag string) {
	o.Changed = true
	o.Changes = append(o.Changes, Change{
		Kind:      kind,
		GUID:      obj.GUID,
		Object:    obj.String(),
		Namespace: ns,
		Tag:       tag,
	})
}

// clearedSet tracks bodies emptied during a pass, keyed by object position.
type clearedSet map[int][2]bool

func (c clearedSet) add(pos int, ns tags.Namespace) {
	v := c[pos]
	v[nsIndex(ns)] = true
	c[pos] = v
}

func (c clearedSet) has(pos int, ns tags.Namespace) bool {
	return c[pos][nsIndex(ns)]
}

func nsIndex(ns tags.Namespace) int {
	if ns == tags.UI {
		return 1
	}
	return 0
}

var namespaces = [...]tags.Namespace{tags.Script, tags.UI}
