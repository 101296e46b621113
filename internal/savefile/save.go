// Package savefile models the host's persisted save: the global script and
// UI, the ordered object list, and the component tag registry. Keys that are
// not modelled are carried through load and store untouched.
package savefile

import (
	"encoding/json"
	"fmt"
)

const (
	keySaveName      = "SaveName"
	keyObjectStates  = "ObjectStates"
	keyComponentTags = "ComponentTags"
	keyLabels        = "labels"

	// GlobalGUID identifies the save-wide script state on the wire.
	GlobalGUID = "-1"
)

// Label is one entry of the save's ComponentTags registry. The host only
// lists tags in its UI when they are registered here.
type Label struct {
	Displayed  string `json:"displayed"`
	Normalized string `json:"normalized"`
}

// Save is the decoded save document.
type Save struct {
	Name    string
	Script  string
	UI      string
	Objects []*Object
	Labels  []Label

	raw           fields
	componentTags *fields
}

func (s *Save) UnmarshalJSON(data []byte) error {
	var raw fields
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.raw = raw
	if err := raw.get(keySaveName, &s.Name); err != nil {
		return err
	}
	if err := raw.get(keyScript, &s.Script); err != nil {
		return err
	}
	if err := raw.get(keyUI, &s.UI); err != nil {
		return err
	}
	if err := raw.get(keyObjectStates, &s.Objects); err != nil {
		return err
	}
	if raw.has(keyComponentTags) {
		if err := raw.get(keyComponentTags, &s.componentTags); err != nil {
			return err
		}
		if s.componentTags != nil {
			if err := s.componentTags.get(keyLabels, &s.Labels); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Save) MarshalJSON() ([]byte, error) {
	out := s.raw.clone()
	if err := out.set(keySaveName, s.Name); err != nil {
		return nil, err
	}
	for _, kv := range []struct{ key, val string }{{keyScript, s.Script}, {keyUI, s.UI}} {
		if kv.val == "" && !out.has(kv.key) {
			continue
		}
		if err := out.set(kv.key, kv.val); err != nil {
			return nil, err
		}
	}
	objects := s.Objects
	if objects == nil {
		objects = []*Object{}
	}
	if err := out.set(keyObjectStates, objects); err != nil {
		return nil, err
	}
	if len(s.Labels) > 0 || s.componentTags != nil {
		var ct fields
		if s.componentTags != nil {
			ct = s.componentTags.clone()
		}
		labels := s.Labels
		if labels == nil {
			labels = []Label{}
		}
		if err := ct.set(keyLabels, labels); err != nil {
			return nil, err
		}
		if err := out.set(keyComponentTags, &ct); err != nil {
			return nil, err
		}
	}
	return out.MarshalJSON()
}

// Parse decodes a save document.
func Parse(data []byte) (*Save, error) {
	var s Save
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSave, err)
	}
	if !s.raw.has(keyObjectStates) {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedSave, keyObjectStates)
	}
	return &s, nil
}

// Clone returns a deep copy, so a reconciliation pass can mutate freely and
// the caller decides whether the result is ever persisted.
func (s *Save) Clone() *Save {
	c := *s
	c.raw = s.raw.clone()
	if s.componentTags != nil {
		ct := s.componentTags.clone()
		c.componentTags = &ct
	}
	c.Labels = append([]Label(nil), s.Labels...)
	c.Objects = make([]*Object, len(s.Objects))
	for i, o := range s.Objects {
		c.Objects[i] = o.Clone()
	}
	return &c
}

// Object returns the object with the given identifier.
func (s *Save) Object(guid string) (*Object, error) {
	for _, o := range s.Objects {
		if o.GUID == guid {
			return o, nil
		}
	}
	return nil, &UnknownObjectError{GUID: guid}
}

// RegisterLabel adds tag to the ComponentTags registry unless it is
// already present. It reports whether the registry changed.
func (s *Save) RegisterLabel(tag string) bool {
	for _, l := range s.Labels {
		if l.Displayed == tag {
			return false
		}
	}
	s.Labels = append(s.Labels, Label{Displayed: tag, Normalized: tag})
	return true
}
