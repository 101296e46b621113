// Package config resolves ttsync's settings from defaults and an optional
// TOML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/agentic-research/ttsync/api"
	"github.com/agentic-research/ttsync/internal/transport"
	"github.com/agentic-research/ttsync/internal/watch"
)

// DefaultFile is read from the working directory when no file is named.
const DefaultFile = "ttsync.toml"

// JournalOff disables the journal when given as the journal path.
const JournalOff = "off"

// DefaultForwardAddr is the conventional address for forwarded console
// output. Forwarding is off unless configured.
const DefaultForwardAddr = "127.0.0.1:39997"

// Settings are the resolved settings.
type Settings struct {
	Root        string
	HostAddr    string
	ListenAddr  string
	ForwardAddr string
	Debounce    time.Duration
	JournalPath string
	LogLevel    string
	NoColor     bool
}

// Defaults returns the settings used when nothing is configured.
func Defaults() Settings {
	return Settings{
		Root:        ".",
		HostAddr:    transport.DefaultHostAddr,
		ListenAddr:  transport.DefaultListenAddr,
		Debounce:    watch.DefaultDebounce,
		JournalPath: defaultJournalPath(),
		LogLevel:    "info",
	}
}

func defaultJournalPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(".ttsync", "journal.db")
	}
	return filepath.Join(dir, "ttsync", "journal.db")
}

// Load applies the file at path on top of the defaults. An empty path
// tries DefaultFile and silently keeps the defaults when it does not exist;
// a named file must exist.
func Load(path string) (Settings, error) {
	cfg := Defaults()
	if path == "" {
		if _, err := os.Stat(DefaultFile); errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		path = DefaultFile
	}

	var raw api.Config
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Settings{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Settings{}, fmt.Errorf("load config %s: unknown key %q", path, undecoded[0].String())
	}
	base := filepath.Dir(path)

	if meta.IsDefined("root") {
		cfg.Root = resolve(base, strings.TrimSpace(raw.Root))
	}
	if meta.IsDefined("host_addr") {
		cfg.HostAddr = strings.TrimSpace(raw.HostAddr)
	}
	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("forward_addr") {
		cfg.ForwardAddr = strings.TrimSpace(raw.ForwardAddr)
	}
	if meta.IsDefined("debounce") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Debounce))
		if err != nil {
			return Settings{}, fmt.Errorf("parse debounce: %w", err)
		}
		cfg.Debounce = d
	}
	if meta.IsDefined("journal_path") {
		p := strings.TrimSpace(raw.JournalPath)
		if p != JournalOff {
			p = resolve(base, p)
		}
		cfg.JournalPath = p
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("no_color") {
		cfg.NoColor = raw.NoColor
	}

	return cfg, cfg.Validate()
}

// resolve makes relative paths in a config file relative to the file.
func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// Validate reports the first setting that cannot work.
func (s Settings) Validate() error {
	if s.Root == "" {
		return errors.New("root must not be empty")
	}
	if s.HostAddr == "" {
		return errors.New("host_addr must not be empty")
	}
	if s.ListenAddr == "" {
		return errors.New("listen_addr must not be empty")
	}
	if s.Debounce <= 0 {
		return fmt.Errorf("debounce must be positive, got %s", s.Debounce)
	}
	if s.JournalPath == "" {
		return errors.New("journal_path must not be empty; use \"off\" to disable")
	}
	return nil
}

// JournalEnabled reports whether commits should be journaled.
func (s Settings) JournalEnabled() bool { return s.JournalPath != JournalOff }
