package savefile

import (
	"encoding/json"
	"fmt"

	"github.com/agentic-research/ttsync/internal/tags"
)

const (
	keyGUID     = "GUID"
	keyNickname = "Nickname"
	keyName     = "Name"
	keyScript   = "LuaScript"
	keyUI       = "XmlUI"
	keyTags     = "Tags"
)

// Object is one entry of a save's ObjectStates.
type Object struct {
	GUID     string
	Nickname string
	Name     string
	Script   string
	UI       string
	// Tags keeps the order the host stored them in.
	Tags []string

	raw fields
}

func (o *Object) String() string {
	if o.Nickname != "" {
		return fmt.Sprintf("%s (%s)", o.GUID, o.Nickname)
	}
	if o.Name != "" {
		return fmt.Sprintf("%s (%s)", o.GUID, o.Name)
	}
	return o.GUID
}

func (o *Object) UnmarshalJSON(data []byte) error {
	var raw fields
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	o.raw = raw
	for key, dst := range map[string]*string{
		keyGUID:     &o.GUID,
		keyNickname: &o.Nickname,
		keyName:     &o.Name,
		keyScript:   &o.Script,
		keyUI:       &o.UI,
	} {
		if err := raw.get(key, dst); err != nil {
			return err
		}
	}
	return raw.get(keyTags, &o.Tags)
}

func (o *Object) MarshalJSON() ([]byte, error) {
	out := o.raw.clone()
	for _, kv := range []struct{ key, val string }{
		{keyGUID, o.GUID},
		{keyNickname, o.Nickname},
		{keyName, o.Name},
		{keyScript, o.Script},
		{keyUI, o.UI},
	} {
		if kv.val == "" && !out.has(kv.key) {
			continue
		}
		if err := out.set(kv.key, kv.val); err != nil {
			return nil, err
		}
	}
	if len(o.Tags) > 0 || out.has(keyTags) {
		list := o.Tags
		if list == nil {
			list = []string{}
		}
		if err := out.set(keyTags, list); err != nil {
			return nil, err
		}
	}
	return out.MarshalJSON()
}

// Clone returns a deep copy.
func (o *Object) Clone() *Object {
	c := *o
	c.Tags = append([]string(nil), o.Tags...)
	c.raw = o.raw.clone()
	return &c
}

// ValidTag returns the object's single valid tag in namespace ns. ok is
// false when there is none; more than one is an *AmbiguousTagError.
func (o *Object) ValidTag(ns tags.Namespace) (t tags.Tag, ok bool, err error) {
	valid, _ := tags.Partition(o.Tags, ns)
	switch len(valid) {
	case 0:
		return tags.Tag{}, false, nil
	case 1:
		return valid[0], true, nil
	default:
		conflict := make([]string, len(valid))
		for i, v := range valid {
			conflict[i] = v.String()
		}
		return tags.Tag{}, false, &AmbiguousTagError{GUID: o.GUID, Namespace: ns, Tags: conflict}
	}
}

func (o *Object) ValidScriptTag() (tags.Tag, bool, error) {
	return o.ValidTag(tags.Script)
}

func (o *Object) ValidUITag() (tags.Tag, bool, error) {
	return o.ValidTag(tags.UI)
}

// ReplaceTag drops every tag in t's namespace and appends t, leaving
// foreign tags untouched.
func (o *Object) ReplaceTag(t tags.Tag) {
	o.Tags = tags.Replace(o.Tags, t)
}

// StripTags drops every valid tag of both namespaces.
func (o *Object) StripTags() {
	o.Tags = tags.Strip(o.Tags)
}

// Body returns the script or UI body for ns.
func (o *Object) Body(ns tags.Namespace) string {
	if ns == tags.UI {
		return o.UI
	}
	return o.Script
}

// SetBody sets the script or UI body for ns.
func (o *Object) SetBody(ns tags.Namespace, body string) {
	if ns == tags.UI {
		o.UI = body
		return
	}
	o.Script = body
}
