package reconcile

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-git/go-billy/v5/util"

	"github.com/agentic-research/ttsync/internal/savefile"
	"github.com/agentic-research/ttsync/internal/tags"
)

// Well-known global files, looked up in the project root.
const (
	GlobalLua    = "Global.lua"
	GlobalTTSLua = "Global.ttslua"
	GlobalXML    = "Global.xml"
)

// Placeholders stand in for empty global files; the host treats an empty
// global body as "keep what is loaded".
const (
	ScriptPlaceholder = "-- ttsync: intentionally empty"
	UIPlaceholder     = "<!-- ttsync: intentionally empty -->"
)

var globalObject = &savefile.Object{GUID: savefile.GlobalGUID, Nickname: "Global"}

// resolveGlobals replaces the save's global bodies with the global files
// that exist. A missing file keeps the stored body.
func (e *Engine) resolveGlobals(out *Outcome) error {
	script, file, err := e.globalScript()
	if err != nil {
		return err
	}
	if file != "" && out.Save.Script != script {
		out.Save.Script = script
		out.record(Updated, globalObject, tags.Script, file)
	}

	ui, ok, err := e.readGlobal(GlobalXML, UIPlaceholder)
	if err != nil {
		return err
	}
	if ok && out.Save.UI != ui {
		out.Save.UI = ui
		out.record(Updated, globalObject, tags.UI, GlobalXML)
	}
	return nil
}

func (e *Engine) globalScript() (body, file string, err error) {
	var found []string
	for _, name := range []string{GlobalLua, GlobalTTSLua} {
		if _, err := e.files.Stat(name); err == nil {
			found = append(found, name)
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", "", fmt.Errorf("stat %s: %w", name, err)
		}
	}
	switch len(found) {
	case 0:
		return "", "", nil
	case 1:
		body, _, err := e.readGlobal(found[0], ScriptPlaceholder)
		return body, found[0], err
	default:
		return "", "", &AmbiguousGlobalError{Files: found}
	}
}

func (e *Engine) readGlobal(name, placeholder string) (string, bool, error) {
	data, err := util.ReadFile(e.files, name)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", name, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return placeholder, true, nil
	}
	return string(data), true, nil
}
