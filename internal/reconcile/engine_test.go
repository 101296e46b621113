package reconcile

import (
	"errors"
	"testing"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/ttsync/internal/savefile"
	"github.com/agentic-research/ttsync/internal/tags"
)

const root = "/proj"

const fixture = `{
  "SaveName": "Fixture",
  "LuaScript": "-- stored global",
  "XmlUI": "",
  "ObjectStates": [
    {"GUID": "A1B2C3", "Nickname": "Board", "Name": "Custom_Board", "Transform": {"posX": 1.5}},
    {"GUID": "D4E5F6", "Nickname": "Deck", "LuaScript": "old", "Tags": ["lua/scripts/bar.lua", "Cards"]},
    {"GUID": "G7H8I9", "Nickname": "Dice", "LuaScript": "old", "XmlUI": "<Old/>", "Tags": ["lua/scripts/bar.lua", "xml/ui/dice.xml"]}
  ]
}`

func newTestEngine(t *testing.T, files map[string]string) (*Engine, billy.Filesystem) {
	t.Helper()
	fs := memfs.New()
	for name, body := range files {
		require.NoError(t, util.WriteFile(fs, name, []byte(body), 0o644))
	}
	e, err := NewEngine(root, fs, zerolog.Nop())
	require.NoError(t, err)
	return e, fs
}

func loadFixture(t *testing.T, doc string) *savefile.Save {
	t.Helper()
	s, err := savefile.Parse([]byte(doc))
	require.NoError(t, err)
	return s
}

func object(t *testing.T, s *savefile.Save, guid string) *savefile.Object {
	t.Helper()
	o, err := s.Object(guid)
	require.NoError(t, err)
	return o
}

func TestAttachScriptToUntaggedObject(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{"scripts/foo.lua": "print('foo')"})
	save := loadFixture(t, fixture)

	out, err := e.Attach(save, root+"/scripts/foo.lua", []string{"A1B2C3"})
	require.NoError(t, err)
	require.True(t, out.Changed)

	o := object(t, out.Save, "A1B2C3")
	assert.Equal(t, []string{"lua/scripts/foo.lua"}, o.Tags)
	assert.Equal(t, "print('foo')", o.Script)
	assert.Contains(t, out.Save.Labels, savefile.Label{Displayed: "lua/scripts/foo.lua", Normalized: "lua/scripts/foo.lua"})

	kinds := []ChangeKind{}
	for _, c := range out.Changes {
		kinds = append(kinds, c.Kind)
	}
	assert.Equal(t, []ChangeKind{Added, Updated}, kinds)

	// The input save is untouched.
	assert.Empty(t, object(t, save, "A1B2C3").Tags)
	assert.Empty(t, object(t, save, "A1B2C3").Script)
}

func TestAttachReplacesTagKeepsForeign(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{"scripts/new.ttslua": "new"})
	save := loadFixture(t, fixture)

	out, err := e.Attach(save, root+"/scripts/new.ttslua", []string{"D4E5F6"})
	require.NoError(t, err)

	o := object(t, out.Save, "D4E5F6")
	assert.Equal(t, []string{"Cards", "lua/scripts/new.ttslua"}, o.Tags)
	assert.Equal(t, "new", o.Script)

	tag, ok, err := o.ValidScriptTag()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "scripts/new.ttslua", tag.Path)
}

func TestAttachUI(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{"ui/board.xml": "<Panel/>"})
	out, err := e.Attach(loadFixture(t, fixture), root+"/ui/board.xml", []string{"A1B2C3"})
	require.NoError(t, err)

	o := object(t, out.Save, "A1B2C3")
	assert.Equal(t, []string{"xml/ui/board.xml"}, o.Tags)
	assert.Equal(t, "<Panel/>", o.UI)
	assert.Empty(t, o.Script)
}

func TestAttachTwiceIsNoop(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{"scripts/foo.lua": "x"})
	first, err := e.Attach(loadFixture(t, fixture), root+"/scripts/foo.lua", []string{"A1B2C3"})
	require.NoError(t, err)

	second, err := e.Attach(first.Save, root+"/scripts/foo.lua", []string{"A1B2C3"})
	require.NoError(t, err)
	assert.False(t, second.Changed)
	assert.Empty(t, second.Changes)
}

func TestAttachErrors(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{"scripts/foo.lua": "x", "notes.txt": "x"})
	save := loadFixture(t, fixture)

	_, err := e.Attach(save, root+"/scripts/foo.lua", nil)
	assert.ErrorIs(t, err, ErrNoTarget)

	_, err = e.Attach(save, root+"/scripts/foo.lua", []string{"ZZZZZZ"})
	assert.ErrorIs(t, err, savefile.ErrUnknownObject)

	_, err = e.Attach(save, root+"/notes.txt", []string{"A1B2C3"})
	assert.ErrorIs(t, err, tags.ErrUnsupportedFile)

	_, err = e.Attach(save, "/elsewhere/foo.lua", []string{"A1B2C3"})
	assert.ErrorIs(t, err, tags.ErrOutsideRoot)

	_, err = e.Attach(save, root+"/scripts/missing.lua", []string{"A1B2C3"})
	assert.Error(t, err)
}

func TestDetach(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	out, err := e.Detach(loadFixture(t, fixture), []string{"G7H8I9"})
	require.NoError(t, err)
	require.True(t, out.Changed)

	o := object(t, out.Save, "G7H8I9")
	assert.Empty(t, o.Tags)
	assert.Empty(t, o.Script)
	assert.Empty(t, o.UI)

	// Other objects are left alone.
	assert.Equal(t, "old", object(t, out.Save, "D4E5F6").Script)
}

func TestDetachAllKeepsForeignTags(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	out, err := e.Detach(loadFixture(t, fixture), nil)
	require.NoError(t, err)

	for _, o := range out.Save.Objects {
		assert.Empty(t, o.Script, o.GUID)
		assert.Empty(t, o.UI, o.GUID)
		_, ok, err := o.ValidScriptTag()
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, []string{"Cards"}, object(t, out.Save, "D4E5F6").Tags)
	assert.Empty(t, out.Warnings)
}

func TestReloadUpdatesEveryObjectSharingATag(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{
		"scripts/bar.lua": "bar v2",
		"ui/dice.xml":     "<Old/>",
	})
	out, err := e.Reload(loadFixture(t, fixture), ChangeSet{Paths: []string{root + "/scripts/bar.lua"}})
	require.NoError(t, err)
	require.True(t, out.Changed)

	assert.Equal(t, "bar v2", object(t, out.Save, "D4E5F6").Script)
	assert.Equal(t, "bar v2", object(t, out.Save, "G7H8I9").Script)

	var updated []string
	for _, c := range out.Changes {
		if c.Kind == Updated {
			updated = append(updated, c.GUID)
		}
	}
	assert.Equal(t, []string{"D4E5F6", "G7H8I9"}, updated)
}

func TestReloadIsIdempotent(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{
		"scripts/bar.lua": "bar v2",
		"ui/dice.xml":     "<New/>",
		"Global.lua":      "-- global",
	})
	first, err := e.Reload(loadFixture(t, fixture), ChangeSet{})
	require.NoError(t, err)
	assert.True(t, first.Changed)

	second, err := e.Reload(first.Save, ChangeSet{})
	require.NoError(t, err)
	assert.False(t, second.Changed)
	assert.Empty(t, second.Changes)
}

func TestReloadOnlyTouchesChangedPaths(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{
		"scripts/bar.lua": "bar v2",
		"ui/dice.xml":     "<New/>",
	})
	out, err := e.Reload(loadFixture(t, fixture), ChangeSet{Paths: []string{root + "/ui"}})
	require.NoError(t, err)

	o := object(t, out.Save, "G7H8I9")
	assert.Equal(t, "<New/>", o.UI)
	assert.Equal(t, "old", o.Script)
}

func TestReloadClearsUntaggedBodies(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{"scripts/bar.lua": "old", "ui/dice.xml": "<Old/>"})
	save := loadFixture(t, `{"ObjectStates": [
		{"GUID": "AAAAAA", "LuaScript": "orphan", "XmlUI": "<Orphan/>", "Tags": ["Cards"]}
	]}`)

	out, err := e.Reload(save, ChangeSet{})
	require.NoError(t, err)
	require.True(t, out.Changed)

	o := object(t, out.Save, "AAAAAA")
	assert.Empty(t, o.Script)
	assert.Empty(t, o.UI)
	assert.Equal(t, []string{"Cards"}, o.Tags)
	assert.Empty(t, out.Warnings)
}

func TestReloadAmbiguousTagFails(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{"a.lua": "a", "b.lua": "b"})
	save := loadFixture(t, `{"ObjectStates": [
		{"GUID": "AAAAAA", "Tags": ["lua/a.lua", "lua/b.lua"]}
	]}`)

	_, err := e.Reload(save, ChangeSet{})
	var amb *savefile.AmbiguousTagError
	require.True(t, errors.As(err, &amb), "got %v", err)
	assert.Equal(t, "AAAAAA", amb.GUID)
	assert.Equal(t, []string{"lua/a.lua", "lua/b.lua"}, amb.Tags)
}

func TestReloadSingleTarget(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{"scripts/bar.lua": "bar v2", "ui/dice.xml": "<Old/>"})
	out, err := e.Reload(loadFixture(t, fixture), ChangeSet{GUID: "D4E5F6"})
	require.NoError(t, err)

	assert.Equal(t, "bar v2", object(t, out.Save, "D4E5F6").Script)
	assert.Equal(t, "old", object(t, out.Save, "G7H8I9").Script)

	_, err = e.Reload(loadFixture(t, fixture), ChangeSet{GUID: "ZZZZZZ"})
	assert.ErrorIs(t, err, savefile.ErrUnknownObject)
}

func TestReloadMissingTaggedFile(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{"ui/dice.xml": "<Old/>"})
	_, err := e.Reload(loadFixture(t, fixture), ChangeSet{})
	assert.Error(t, err)
}

func TestWarningForUntaggedBodyOutsidePass(t *testing.T) {
	e, _ := newTestEngine(t, map[string]string{"scripts/foo.lua": "foo"})
	save := loadFixture(t, `{"ObjectStates": [
		{"GUID": "AAAAAA"},
		{"GUID": "BBBBBB", "Nickname": "Loose", "LuaScript": "hand written"}
	]}`)

	out, err := e.Attach(save, root+"/scripts/foo.lua", []string{"AAAAAA"})
	require.NoError(t, err)
	require.Len(t, out.Warnings, 1)
	assert.Equal(t, "BBBBBB", out.Warnings[0].GUID)
	assert.Equal(t, tags.Script, out.Warnings[0].Namespace)
	assert.Equal(t, "hand written", object(t, out.Save, "BBBBBB").Script)
}

func TestGlobalResolution(t *testing.T) {
	t.Run("file wins over stored body", func(t *testing.T) {
		e, _ := newTestEngine(t, map[string]string{"Global.ttslua": "-- from file", "Global.xml": "<Global/>"})
		out, err := e.Detach(loadFixture(t, fixture), []string{"A1B2C3"})
		require.NoError(t, err)
		assert.Equal(t, "-- from file", out.Save.Script)
		assert.Equal(t, "<Global/>", out.Save.UI)
		assert.True(t, out.Changed)
	})

	t.Run("no file keeps stored body", func(t *testing.T) {
		e, _ := newTestEngine(t, nil)
		out, err := e.Detach(loadFixture(t, fixture), []string{"A1B2C3"})
		require.NoError(t, err)
		assert.Equal(t, "-- stored global", out.Save.Script)
		assert.False(t, out.Changed)
	})

	t.Run("empty files get placeholders", func(t *testing.T) {
		e, _ := newTestEngine(t, map[string]string{"Global.lua": "  \n", "Global.xml": ""})
		out, err := e.Detach(loadFixture(t, fixture), []string{"A1B2C3"})
		require.NoError(t, err)
		assert.Equal(t, ScriptPlaceholder, out.Save.Script)
		assert.Equal(t, UIPlaceholder, out.Save.UI)
	})

	t.Run("two script aliases fail", func(t *testing.T) {
		e, _ := newTestEngine(t, map[string]string{"Global.lua": "a", "Global.ttslua": "b"})
		_, err := e.Reload(loadFixture(t, fixture), ChangeSet{GUID: "A1B2C3"})
		assert.ErrorIs(t, err, ErrAmbiguousGlobal)
		assert.EqualError(t, err, "Global.lua and Global.ttslua both exist in the project root")
	})
}

func TestReducePaths(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{[]string{"scripts/a.lua", "scripts/a.lua"}, []string{"scripts/a.lua"}},
		{[]string{"scripts/a.lua", "scripts"}, []string{"scripts"}},
		{[]string{"scripts2/a.lua", "scripts"}, []string{"scripts", "scripts2/a.lua"}},
		{[]string{"ui/", "scripts/./b.lua"}, []string{"scripts/b.lua", "ui"}},
		{[]string{"ui", "."}, []string{"."}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ReducePaths(tt.in), "in %v", tt.in)
	}
}
