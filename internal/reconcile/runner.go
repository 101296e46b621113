package reconcile

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/agentic-research/ttsync/internal/journal"
	"github.com/agentic-research/ttsync/internal/protocol"
	"github.com/agentic-research/ttsync/internal/savefile"
)

// Host is the part of the host API a commit needs.
type Host interface {
	GetState(ctx context.Context) (*protocol.ReloadComplete, error)
	Reload(ctx context.Context, states []protocol.ScriptState) (*protocol.ReloadComplete, error)
}

// Recorder journals commits. Journal failures are logged, never returned.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) (journal.Entry, error)
}

// Runner loads the host's current save, runs one pass, and commits the
// result: the save is written back and the host reloads it.
type Runner struct {
	engine  *Engine
	host    Host
	store   *savefile.Store
	journal Recorder
	log     zerolog.Logger
}

// NewRunner wires a runner. rec may be nil.
func NewRunner(engine *Engine, host Host, store *savefile.Store, rec Recorder, log zerolog.Logger) *Runner {
	return &Runner{
		engine:  engine,
		host:    host,
		store:   store,
		journal: rec,
		log:     log.With().Str("component", "runner").Logger(),
	}
}

// Engine returns the engine passes run on.
func (r *Runner) Engine() *Engine { return r.engine }

func (r *Runner) Attach(ctx context.Context, file string, guids []string) (*Outcome, error) {
	return r.run(ctx, func(s *savefile.Save) (*Outcome, error) {
		return r.engine.Attach(s, file, guids)
	})
}

func (r *Runner) Detach(ctx context.Context, guids []string) (*Outcome, error) {
	return r.run(ctx, func(s *savefile.Save) (*Outcome, error) {
		return r.engine.Detach(s, guids)
	})
}

func (r *Runner) Reload(ctx context.Context, cs ChangeSet) (*Outcome, error) {
	return r.run(ctx, func(s *savefile.Save) (*Outcome, error) {
		return r.engine.Reload(s, cs)
	})
}

// Load fetches the save the host has open, with its path.
func (r *Runner) Load(ctx context.Context) (*savefile.Save, string, error) {
	state, err := r.host.GetState(ctx)
	if err != nil {
		return nil, "", err
	}
	save, err := r.store.Load(state.SavePath)
	if err != nil {
		return nil, "", err
	}
	return save, state.SavePath, nil
}

func (r *Runner) run(ctx context.Context, pass func(*savefile.Save) (*Outcome, error)) (*Outcome, error) {
	save, path, err := r.Load(ctx)
	if err != nil {
		return nil, err
	}
	out, err := pass(save)
	if err != nil {
		return nil, err
	}
	out.SavePath = path
	if !out.Changed {
		r.log.Debug().Stringer("mode", out.Mode).Msg("nothing changed, skipping write-back")
		return out, nil
	}

	if err := r.store.Write(path, out.Save); err != nil {
		return nil, fmt.Errorf("write back: %w", err)
	}
	if _, err := r.host.Reload(ctx, ScriptStates(out.Save)); err != nil {
		return nil, err
	}
	out.Committed = true
	r.log.Info().Stringer("mode", out.Mode).Int("changes", len(out.Changes)).Str("save", path).Msg("committed")
	r.record(ctx, out)
	return out, nil
}

func (r *Runner) record(ctx context.Context, out *Outcome) {
	if r.journal == nil {
		return
	}
	lines := make([]string, len(out.Changes))
	for i, c := range out.Changes {
		lines[i] = c.Kind.String() + ": " + c.String()
	}
	_, err := r.journal.Record(ctx, journal.Entry{
		Kind:     out.Mode.String(),
		SavePath: out.SavePath,
		SaveName: out.Save.Name,
		Changes:  lines,
	})
	if err != nil {
		r.log.Warn().Err(err).Msg("journal")
	}
}

// ScriptStates lists every object's script and UI followed by the global
// state, in the form a reload request carries.
func ScriptStates(save *savefile.Save) []protocol.ScriptState {
	out := make([]protocol.ScriptState, 0, len(save.Objects)+1)
	for _, o := range save.Objects {
		out = append(out, protocol.ScriptState{GUID: o.GUID, Script: o.Script, UI: o.UI})
	}
	return append(out, protocol.ScriptState{GUID: savefile.GlobalGUID, Script: save.Script, UI: save.UI})
}
