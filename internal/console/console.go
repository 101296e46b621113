// Package console runs the long-lived loop that shows host notifications
// and, in watch mode, reconciles whenever files change or the game reloads.
//
// The loop is the only consumer of notifications. Reconciliation passes run
// synchronously inside it, so a pass never races the loop for inbound
// messages.
package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/agentic-research/ttsync/internal/hostapi"
	"github.com/agentic-research/ttsync/internal/protocol"
	"github.com/agentic-research/ttsync/internal/reconcile"
	"github.com/agentic-research/ttsync/internal/report"
	"github.com/agentic-research/ttsync/internal/transport"
)

// Source supplies notifications.
type Source interface {
	Notifications() <-chan hostapi.Notification
	Err() error
}

// Reconciler runs reload passes.
type Reconciler interface {
	Reload(ctx context.Context, cs reconcile.ChangeSet) (*reconcile.Outcome, error)
}

// Forwarder copies a raw document somewhere else.
type Forwarder func(ctx context.Context, doc []byte) error

// ForwardTo returns a Forwarder that sends to addr. Nobody listening at
// addr is not an error.
func ForwardTo(addr string) Forwarder {
	return func(ctx context.Context, doc []byte) error {
		err := transport.Send(ctx, addr, doc)
		if errors.Is(err, transport.ErrHostUnreachable) {
			return nil
		}
		return err
	}
}

// Loop is the console loop.
type Loop struct {
	src     Source
	out     *report.Printer
	log     zerolog.Logger
	forward Forwarder

	// watch mode only
	reconciler Reconciler
	roots      []string
	changes    <-chan []string
}

// Option configures a Loop.
type Option func(*Loop)

// WithForward copies every notification through f.
func WithForward(f Forwarder) Option {
	return func(l *Loop) { l.forward = f }
}

// WithWatch enables watch mode: each batch from changes, and each
// reload-complete notification, triggers a reload pass over roots.
func WithWatch(r Reconciler, roots []string, changes <-chan []string) Option {
	return func(l *Loop) {
		l.reconciler = r
		l.roots = roots
		l.changes = changes
	}
}

func New(src Source, out *report.Printer, log zerolog.Logger, opts ...Option) *Loop {
	l := &Loop{src: src, out: out, log: log.With().Str("component", "console").Logger()}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Run blocks until ctx ends or the notification stream closes. A closed
// stream is an error: the inbound listener is gone.
func (l *Loop) Run(ctx context.Context) error {
	notes := l.src.Notifications()
	for {
		select {
		case <-ctx.Done():
			return nil

		case n, ok := <-notes:
			if !ok {
				return fmt.Errorf("inbound stream ended: %w", l.src.Err())
			}
			l.show(n.Answer)
			if l.forward != nil {
				if err := l.forward(ctx, n.Raw); err != nil {
					l.log.Warn().Err(err).Msg("forward")
				}
			}
			if _, ok := n.Answer.(*protocol.ReloadComplete); ok && l.reconciler != nil {
				l.reconcile(ctx, l.roots)
			}

		case paths, ok := <-l.changes:
			if !ok {
				return errors.New("watcher stopped")
			}
			l.reconcile(ctx, paths)
		}
	}
}

// reconcile runs one pass. Failures are reported and the loop carries on.
func (l *Loop) reconcile(ctx context.Context, paths []string) {
	l.log.Debug().Strs("paths", paths).Msg("reconcile")
	out, err := l.reconciler.Reload(ctx, reconcile.ChangeSet{Paths: paths})
	if err != nil {
		l.out.Failure("error: " + err.Error())
		return
	}
	if !out.Changed {
		return
	}
	l.out.Outcome(out)
}

func (l *Loop) show(a protocol.Answer) {
	switch m := a.(type) {
	case *protocol.Print:
		l.out.Muted(m.Message)
	case *protocol.Error:
		l.out.Failure(m.ErrorMessagePrefix + m.Error)
	case *protocol.ReloadComplete:
		l.out.Done("Loading complete.")
	case *protocol.GameSaved:
		l.out.Info("saved:", "game saved")
	case *protocol.ObjectCreated:
		l.out.Info("created:", "%s", m.GUID)
	case *protocol.NewObject:
		for _, s := range m.ScriptStates {
			l.out.Info("opened:", "%s (%s)", s.GUID, s.Name)
		}
	case *protocol.Custom:
		l.out.Info("custom:", "%s", compact(m.CustomMessage))
	case *protocol.Return:
		l.log.Debug().Int("returnID", m.ReturnID).Msg("unsolicited return")
	case *protocol.Unrecognized:
		l.log.Warn().Int("messageID", int(m.ID)).Msg("unrecognized message")
	}
}

func compact(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return string(raw)
	}
	return string(b)
}
