package protocol

import (
	"encoding/json"
	"fmt"
)

// MessageID is the wire discriminant.
type MessageID int

// Outbound IDs.
const (
	GetScriptsID    MessageID = 0
	ReloadID        MessageID = 1
	CustomMessageID MessageID = 2
	ExecuteID       MessageID = 3
)

// Inbound IDs.
const (
	NewObjectID      MessageID = 0
	ReloadCompleteID MessageID = 1
	PrintID          MessageID = 2
	ErrorID          MessageID = 3
	CustomID         MessageID = 4
	ReturnID         MessageID = 5
	GameSavedID      MessageID = 6
	ObjectCreatedID  MessageID = 7
)

// GlobalGUID addresses the save-wide script state.
const GlobalGUID = "-1"

// ScriptState is one object's script and UI as the host reports them.
type ScriptState struct {
	Name   string `json:"name,omitempty"`
	GUID   string `json:"guid"`
	Script string `json:"script"`
	UI     string `json:"ui"`
}

// Request is an outbound message.
type Request interface {
	MessageID() MessageID
}

// GetScripts asks for every script state; the host answers with
// *ReloadComplete.
type GetScripts struct{}

func (GetScripts) MessageID() MessageID { return GetScriptsID }

// Reload replaces the listed scripts and UI and reloads the save, the way
// "Save & Play" does in the host. The host answers with *ReloadComplete.
type Reload struct {
	ScriptStates []ScriptState `json:"scriptStates"`
}

func (Reload) MessageID() MessageID { return ReloadID }

// CustomMessage is forwarded to the game's onExternalMessage handler. The
// host ignores payloads that are not objects.
type CustomMessage struct {
	CustomMessage map[string]any `json:"customMessage"`
}

func (CustomMessage) MessageID() MessageID { return CustomMessageID }

// Execute runs script on the object guid (GlobalGUID for global). The host
// answers with *Return carrying the same ReturnID.
type Execute struct {
	ReturnID int    `json:"returnID"`
	GUID     string `json:"guid"`
	Script   string `json:"script"`
}

func (Execute) MessageID() MessageID { return ExecuteID }

// Answer is an inbound message.
type Answer interface {
	MessageID() MessageID
	fmt.Stringer
	answer()
}

// NewObject is sent when the operator opens the script editor on an
// object that has no script yet.
type NewObject struct {
	ScriptStates []ScriptState `json:"scriptStates"`
}

// ReloadComplete is sent after a game loads, and in response to GetScripts
// and Reload.
type ReloadComplete struct {
	SavePath     string        `json:"savePath"`
	ScriptStates []ScriptState `json:"scriptStates"`
}

// Global returns the save-wide script state, if present.
func (r *ReloadComplete) Global() (ScriptState, bool) {
	for _, s := range r.ScriptStates {
		if s.GUID == GlobalGUID {
			return s, true
		}
	}
	return ScriptState{}, false
}

// Print carries the text of a print() call.
type Print struct {
	Message string `json:"message"`
}

// Error carries a script error.
type Error struct {
	Error              string `json:"error"`
	GUID               string `json:"guid"`
	ErrorMessagePrefix string `json:"errorMessagePrefix"`
}

// Custom is sent by sendExternalMessage in the game.
type Custom struct {
	CustomMessage json.RawMessage `json:"customMessage"`
}

// Return carries the value returned by an Execute script.
type Return struct {
	ReturnID int `json:"returnID"`
	// ReturnValue is whatever the script returned; scripts usually return a
	// JSON.encode'd string.
	ReturnValue json.RawMessage `json:"returnValue,omitempty"`
}

// Value decodes the return value. A JSON string holding a JSON document is
// unwrapped one level, since that is how scripts hand back tables.
func (r *Return) Value() (any, error) {
	if len(r.ReturnValue) == 0 || string(r.ReturnValue) == "null" {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(r.ReturnValue, &v); err != nil {
		return nil, fmt.Errorf("decode return value: %w", err)
	}
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	var inner any
	if err := json.Unmarshal([]byte(s), &inner); err != nil {
		return s, nil
	}
	return inner, nil
}

// GameSaved is sent whenever the game is saved in the host.
type GameSaved struct{}

// ObjectCreated is sent when an object is spawned.
type ObjectCreated struct {
	GUID string `json:"guid"`
}

// Unrecognized holds a document whose ID this package does not know.
type Unrecognized struct {
	ID  MessageID
	Raw json.RawMessage
}

func (*NewObject) MessageID() MessageID      { return NewObjectID }
func (*ReloadComplete) MessageID() MessageID { return ReloadCompleteID }
func (*Print) MessageID() MessageID          { return PrintID }
func (*Error) MessageID() MessageID          { return ErrorID }
func (*Custom) MessageID() MessageID         { return CustomID }
func (*Return) MessageID() MessageID         { return ReturnID }
func (*GameSaved) MessageID() MessageID      { return GameSavedID }
func (*ObjectCreated) MessageID() MessageID  { return ObjectCreatedID }
func (u *Unrecognized) MessageID() MessageID { return u.ID }

func (*NewObject) String() string      { return "New Object" }
func (*ReloadComplete) String() string { return "Reload" }
func (*Print) String() string          { return "Print" }
func (*Error) String() string          { return "Error" }
func (*Custom) String() string         { return "Custom Message" }
func (*Return) String() string         { return "Return" }
func (*GameSaved) String() string      { return "Game Saved" }
func (*ObjectCreated) String() string  { return "Object Created" }
func (u *Unrecognized) String() string { return fmt.Sprintf("Unrecognized(%d)", u.ID) }

func (*NewObject) answer()      {}
func (*ReloadComplete) answer() {}
func (*Print) answer()          {}
func (*Error) answer()          {}
func (*Custom) answer()         {}
func (*Return) answer()         {}
func (*GameSaved) answer()      {}
func (*ObjectCreated) answer()  {}
func (*Unrecognized) answer()   {}
