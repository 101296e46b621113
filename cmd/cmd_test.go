package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/ttsync/internal/savefile"
	"github.com/agentic-research/ttsync/internal/transport"
)

const gameSave = `{
  "SaveName": "CLI",
  "LuaScript": "",
  "ObjectStates": [
    {"GUID": "A1B2C3", "Nickname": "Board", "Tags": ["Table"]},
    {"GUID": "D4E5F6", "Nickname": "Deck", "LuaScript": "old", "Tags": ["lua/scripts/deck.lua"]}
  ]
}`

// fakeGame answers requests the way the game does: every reply goes to
// ttsync's listen address on a fresh connection.
type fakeGame struct {
	ln       *transport.Listener
	replyTo  string
	savePath string

	mu      sync.Mutex
	reloads [][]map[string]any
	execute func(req map[string]any) string
}

func startGame(t *testing.T, savePath string) *fakeGame {
	t.Helper()
	ln, err := transport.Listen(context.Background(), "127.0.0.1:0", zerolog.Nop())
	require.NoError(t, err)
	g := &fakeGame{ln: ln, replyTo: freeAddr(t), savePath: savePath}
	t.Cleanup(func() { _ = ln.Close() })
	go g.serve()
	return g
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func (g *fakeGame) serve() {
	for doc := range g.ln.Docs() {
		var req map[string]any
		if err := json.Unmarshal(doc, &req); err != nil {
			continue
		}
		var reply string
		switch int(req["messageID"].(float64)) {
		case 0:
			reply = g.reloadComplete()
		case 1:
			var states []map[string]any
			for _, s := range req["scriptStates"].([]any) {
				states = append(states, s.(map[string]any))
			}
			g.mu.Lock()
			g.reloads = append(g.reloads, states)
			g.mu.Unlock()
			reply = g.reloadComplete()
		case 3:
			g.mu.Lock()
			f := g.execute
			g.mu.Unlock()
			reply = f(req)
		default:
			continue
		}
		_ = transport.Send(context.Background(), g.replyTo, []byte(reply))
	}
}

func (g *fakeGame) reloadComplete() string {
	b, _ := json.Marshal(map[string]any{"messageID": 1, "savePath": g.savePath, "scriptStates": []any{}})
	return string(b)
}

func (g *fakeGame) onExecute(f func(req map[string]any) string) {
	g.mu.Lock()
	g.execute = f
	g.mu.Unlock()
}

func (g *fakeGame) reloadCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.reloads)
}

type project struct {
	dir      string
	savePath string
	config   string
	game     *fakeGame
}

func newProject(t *testing.T) *project {
	t.Helper()
	dir := t.TempDir()
	p := &project{dir: dir, savePath: filepath.Join(dir, "saves", "TS_Save_1.json")}
	require.NoError(t, os.MkdirAll(filepath.Dir(p.savePath), 0o755))
	require.NoError(t, os.WriteFile(p.savePath, []byte(gameSave), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "scripts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scripts", "deck.lua"), []byte("-- deck"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scripts", "board.lua"), []byte("-- board"), 0o644))

	p.game = startGame(t, p.savePath)
	p.config = filepath.Join(dir, "ttsync.toml")
	cfg := fmt.Sprintf("root = %q\nhost_addr = %q\nlisten_addr = %q\njournal_path = %q\nno_color = true\n",
		dir, p.game.ln.Addr().String(), p.game.replyTo, filepath.Join(dir, "journal.db"))
	require.NoError(t, os.WriteFile(p.config, []byte(cfg), 0o644))
	t.Chdir(dir)
	return p
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func (p *project) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--config", p.config}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (p *project) save(t *testing.T) *savefile.Save {
	t.Helper()
	data, err := os.ReadFile(p.savePath)
	require.NoError(t, err)
	s, err := savefile.Parse(data)
	require.NoError(t, err)
	return s
}

func TestAttachCommand(t *testing.T) {
	p := newProject(t)

	out, err := p.run(t, "attach", "scripts/board.lua", "A1B2C3")
	require.NoError(t, err)
	assert.Contains(t, out, "added: 'lua/scripts/board.lua' as a tag to A1B2C3 (Board)")
	assert.Contains(t, out, "reloaded save!")

	o, err := p.save(t).Object("A1B2C3")
	require.NoError(t, err)
	assert.Equal(t, []string{"Table", "lua/scripts/board.lua"}, o.Tags)
	assert.Equal(t, "-- board", o.Script)
	assert.Equal(t, 1, p.game.reloadCount())

	hist, err := p.run(t, "history")
	require.NoError(t, err)
	assert.Contains(t, hist, "attach:")
	assert.Contains(t, hist, "updated: A1B2C3 (Board) with tag 'lua/scripts/board.lua'")
}

func TestReloadCommandIsIdempotent(t *testing.T) {
	p := newProject(t)

	out, err := p.run(t, "reload")
	require.NoError(t, err)
	assert.Contains(t, out, "updated: D4E5F6 (Deck) with tag 'lua/scripts/deck.lua'")

	out, err = p.run(t, "reload", "scripts")
	require.NoError(t, err)
	assert.Contains(t, out, "unchanged:")
	assert.Equal(t, 1, p.game.reloadCount())
}

func TestDetachCommand(t *testing.T) {
	p := newProject(t)

	_, err := p.run(t, "detach", "D4E5F6")
	require.NoError(t, err)
	o, err := p.save(t).Object("D4E5F6")
	require.NoError(t, err)
	assert.Empty(t, o.Tags)
	assert.Empty(t, o.Script)
}

func TestListCommand(t *testing.T) {
	p := newProject(t)
	out, err := p.run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "A1B2C3  Board  Table")
	assert.Contains(t, out, "D4E5F6  Deck   lua/scripts/deck.lua")
}

func TestBackupCommand(t *testing.T) {
	p := newProject(t)
	out, err := p.run(t, "backup", "copies/before")
	require.NoError(t, err)
	assert.Contains(t, out, "save: 'TS_Save_1.json' as 'copies/before.json'")

	data, err := os.ReadFile(filepath.Join(p.dir, "copies", "before.json"))
	require.NoError(t, err)
	assert.JSONEq(t, gameSave, string(data))
}

func TestExecCommand(t *testing.T) {
	p := newProject(t)
	p.game.onExecute(func(req map[string]any) string {
		b, _ := json.Marshal(map[string]any{"messageID": 5, "returnID": req["returnID"], "returnValue": `{"guid":"` + req["guid"].(string) + `"}`})
		return string(b)
	})
	out, err := p.run(t, "exec", "--guid", "A1B2C3", "return JSON.encode({guid=self.guid})")
	require.NoError(t, err)
	assert.JSONEq(t, `{"guid":"A1B2C3"}`, out)
}

func TestExecCommandHostError(t *testing.T) {
	p := newProject(t)
	p.game.onExecute(func(map[string]any) string {
		return `{"messageID":3,"error":"attempt to call a nil value","guid":"-1","errorMessagePrefix":"Error in Global Script: "}`
	})
	_, err := p.run(t, "exec", "nope()")
	assert.EqualError(t, err, "execute on -1: Error in Global Script: attempt to call a nil value")
}

func TestArgumentValidation(t *testing.T) {
	p := newProject(t)
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"attach", "scripts/board.lua", "nope"}, `"nope" is not a valid guid`},
		{[]string{"attach", "scripts/board.lua"}, "no target object"},
		{[]string{"attach", "scripts/missing.lua", "A1B2C3"}, "scripts/missing.lua is not a file"},
		{[]string{"detach", "A1B2C3D4"}, `"A1B2C3D4" is not a valid guid`},
		{[]string{"reload", "--id", "x"}, `"x" is not a valid guid`},
		{[]string{"reload", "nowhere"}, "nowhere does not exist"},
		{[]string{"detach", "ZZZZZZ"}, "ZZZZZZ does not exist"},
	}
	for _, tt := range tests {
		_, err := p.run(t, tt.args...)
		require.Error(t, err, "%v", tt.args)
		assert.Contains(t, err.Error(), tt.want)
	}
	assert.Equal(t, 0, p.game.reloadCount())
}

func TestValidGUID(t *testing.T) {
	for _, s := range []string{"A1B2C3", "abcdef", "000000"} {
		assert.True(t, validGUID(s), s)
	}
	for _, s := range []string{"", "-1", "A1B2C", "A1B2C3D", "A1B2C!", "ÄÖÜäöü"} {
		assert.False(t, validGUID(s), s)
	}
}

func TestBackupPath(t *testing.T) {
	assert.Equal(t, "a.json", backupPath("a"))
	assert.Equal(t, "a.json", backupPath("a.txt"))
	assert.Equal(t, "dir/a.b.json", backupPath("dir/a.b.c"))
	assert.Equal(t, "a.json", backupPath("a.json"))
}

// syncBuffer is a bytes.Buffer safe to read while a command writes to it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchCommandCommitsOncePerWrite(t *testing.T) {
	p := newProject(t)
	_, err := p.run(t, "attach", "scripts/board.lua", "A1B2C3", "D4E5F6")
	require.NoError(t, err)
	require.Equal(t, 1, p.game.reloadCount())

	resetFlags(rootCmd)
	var out, errOut syncBuffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs([]string{"--config", p.config, "watch"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- rootCmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool { return strings.Contains(errOut.String(), "watching") },
		5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(p.dir, "scripts", "board.lua"), []byte("-- board v2"), 0o644))
	require.Eventually(t, func() bool { return p.game.reloadCount() == 2 }, 5*time.Second, 10*time.Millisecond)

	// the write-back itself lands under the root; it must not cause another commit
	time.Sleep(500 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
	assert.Equal(t, 2, p.game.reloadCount())

	for _, guid := range []string{"A1B2C3", "D4E5F6"} {
		o, err := p.save(t).Object(guid)
		require.NoError(t, err)
		assert.Equal(t, "-- board v2", o.Script, guid)
	}
	assert.Contains(t, out.String(), "updated: A1B2C3 (Board) with tag 'lua/scripts/board.lua'")
	assert.Contains(t, out.String(), "updated: D4E5F6 (Deck) with tag 'lua/scripts/board.lua'")
}

func TestRunLoopsFirstFailureStopsTheRest(t *testing.T) {
	boom := errors.New("boom")
	err := runLoops(context.Background(),
		func(context.Context) error { return boom },
		func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	)
	assert.ErrorIs(t, err, boom)
}

func TestRunLoopsInterruptIsCleanExit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := runLoops(ctx,
		func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		},
		func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	)
	assert.NoError(t, err)
}
