// Package hostapi is the request/reply layer over the host's
// one-document-per-connection protocol.
//
// Replies arrive on the same inbound stream as unsolicited notifications,
// so a Dispatcher owns that stream: a request registers what its reply
// looks like before sending, and every other message is queued for the
// notification consumer.
package hostapi

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/agentic-research/ttsync/internal/protocol"
	"github.com/agentic-research/ttsync/internal/transport"
)

// Sender delivers an encoded document to the host.
type Sender func(ctx context.Context, doc []byte) error

// Client issues requests to the host and pairs them with replies.
type Client struct {
	send     Sender
	dispatch *Dispatcher
	returnID atomic.Uint32
	log      zerolog.Logger
}

// NewClient returns a client that sends through send and reads replies from
// d.
func NewClient(send Sender, d *Dispatcher, log zerolog.Logger) *Client {
	return &Client{send: send, dispatch: d, log: log.With().Str("component", "hostapi").Logger()}
}

// Dial wires a client to the host at hostAddr and an already-bound inbound
// listener.
func Dial(hostAddr string, ln *transport.Listener, log zerolog.Logger) *Client {
	send := func(ctx context.Context, doc []byte) error {
		return transport.Send(ctx, hostAddr, doc)
	}
	return NewClient(send, NewDispatcher(ln.Docs(), ln.Err, log), log)
}

// Notifications yields inbound messages that were not replies.
func (c *Client) Notifications() <-chan Notification { return c.dispatch.Notifications() }

// Err reports why the inbound stream ended.
func (c *Client) Err() error { return c.dispatch.Err() }

// Send delivers a request without waiting for anything back.
func (c *Client) Send(ctx context.Context, r protocol.Request) error {
	doc, err := protocol.Encode(r)
	if err != nil {
		return err
	}
	c.log.Debug().Int("messageID", int(r.MessageID())).Int("bytes", len(doc)).Msg("send")
	return c.send(ctx, doc)
}

func (c *Client) request(ctx context.Context, r protocol.Request, m match) (protocol.Answer, error) {
	return c.dispatch.Exchange(ctx, m, func() error { return c.Send(ctx, r) })
}

func isReload(a protocol.Answer) bool {
	_, ok := a.(*protocol.ReloadComplete)
	return ok
}

// GetState asks the host for every script state and the path of the
// loaded save.
func (c *Client) GetState(ctx context.Context) (*protocol.ReloadComplete, error) {
	a, err := c.request(ctx, protocol.GetScripts{}, isReload)
	if err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}
	return a.(*protocol.ReloadComplete), nil
}

// Reload pushes states to the host and waits for the game to finish
// reloading.
func (c *Client) Reload(ctx context.Context, states []protocol.ScriptState) (*protocol.ReloadComplete, error) {
	a, err := c.request(ctx, protocol.Reload{ScriptStates: states}, isReload)
	if err != nil {
		return nil, fmt.Errorf("reload: %w", err)
	}
	return a.(*protocol.ReloadComplete), nil
}

// Execute runs script on guid and returns the script's result.
func (c *Client) Execute(ctx context.Context, guid, script string) (*protocol.Return, error) {
	id := int(c.returnID.Add(1) % 256)
	m := func(a protocol.Answer) bool {
		r, ok := a.(*protocol.Return)
		return ok && r.ReturnID == id
	}
	a, err := c.request(ctx, protocol.Execute{ReturnID: id, GUID: guid, Script: script}, m)
	if err != nil {
		return nil, fmt.Errorf("execute on %s: %w", guid, err)
	}
	return a.(*protocol.Return), nil
}

// SendCustom forwards payload to the game's onExternalMessage handler.
func (c *Client) SendCustom(ctx context.Context, payload map[string]any) error {
	return c.Send(ctx, protocol.CustomMessage{CustomMessage: payload})
}
