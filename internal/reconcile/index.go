package reconcile

import (
	"sort"

	"github.com/RoaringBitmap/roaring"

	"github.com/agentic-research/ttsync/internal/savefile"
	"github.com/agentic-research/ttsync/internal/tags"
)

// tagIndex maps each tag path to the positions of the objects carrying it,
// per namespace. Positions index Save.Objects, so iterating a bitmap walks
// objects in save order.
type tagIndex struct {
	byPath [2]map[string]*roaring.Bitmap
	// tagged holds every position with a valid tag in the namespace.
	tagged [2]*roaring.Bitmap
}

// buildIndex resolves the valid tags of the objects at positions. Any
// ambiguous object fails the whole index.
func buildIndex(objects []*savefile.Object, positions []int) (*tagIndex, error) {
	idx := &tagIndex{}
	for i := range idx.byPath {
		idx.byPath[i] = make(map[string]*roaring.Bitmap)
		idx.tagged[i] = roaring.New()
	}
	for _, pos := range positions {
		o := objects[pos]
		for _, ns := range namespaces {
			t, ok, err := o.ValidTag(ns)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			n := nsIndex(ns)
			bm, exists := idx.byPath[n][t.Path]
			if !exists {
				bm = roaring.New()
				idx.byPath[n][t.Path] = bm
			}
			bm.Add(uint32(pos))
			idx.tagged[n].Add(uint32(pos))
		}
	}
	return idx, nil
}

// under returns the positions whose ns tag points at or below one of the
// changed paths.
func (idx *tagIndex) under(ns tags.Namespace, changed []string) *roaring.Bitmap {
	hits := roaring.New()
	for p, bm := range idx.byPath[nsIndex(ns)] {
		if (tags.Tag{Namespace: ns, Path: p}).Under(changed) {
			hits.Or(bm)
		}
	}
	return hits
}

// paths lists the distinct tag paths in ns, sorted.
func (idx *tagIndex) paths(ns tags.Namespace) []string {
	m := idx.byPath[nsIndex(ns)]
	out := make([]string, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (idx *tagIndex) isTagged(ns tags.Namespace, pos int) bool {
	return idx.tagged[nsIndex(ns)].Contains(uint32(pos))
}
