package cmd

import (
	"context"
	"fmt"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agentic-research/ttsync/internal/config"
	"github.com/agentic-research/ttsync/internal/hostapi"
	"github.com/agentic-research/ttsync/internal/journal"
	"github.com/agentic-research/ttsync/internal/logging"
	"github.com/agentic-research/ttsync/internal/reconcile"
	"github.com/agentic-research/ttsync/internal/report"
	"github.com/agentic-research/ttsync/internal/savefile"
	"github.com/agentic-research/ttsync/internal/transport"
)

// environment is what every subcommand runs with, built once per
// invocation from config and flags.
type environment struct {
	cfg config.Settings
	log zerolog.Logger
	out *report.Printer
}

var env *environment

func setup(cmd *cobra.Command) (*environment, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("root") {
		cfg.Root = rootDir
	}
	if flags.Changed("host") {
		cfg.HostAddr = hostAddr
	}
	if flags.Changed("listen") {
		cfg.ListenAddr = listenAddr
	}
	if flags.Changed("no-color") {
		cfg.NoColor = noColor
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, err := logging.Level(verbosity, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	stderr, stdout := cmd.ErrOrStderr(), cmd.OutOrStdout()
	return &environment{
		cfg: cfg,
		log: logging.New(stderr, level, report.ColorEnabled(stderr, cfg.NoColor)),
		out: report.New(stdout, report.ColorEnabled(stdout, cfg.NoColor)),
	}, nil
}

// session is one connection to the game: the inbound listener, the client
// on top of it, and the runner that commits passes through it.
type session struct {
	ln      *transport.Listener
	client  *hostapi.Client
	runner  *reconcile.Runner
	journal *journal.Journal
}

func (s *session) Close() {
	if s.journal != nil {
		_ = s.journal.Close()
	}
	_ = s.ln.Close()
}

// connect binds the inbound listener first, so no reply can arrive before
// anyone is listening, then wires the client, engine and journal.
func (e *environment) connect(ctx context.Context) (*session, error) {
	ln, err := transport.Listen(ctx, e.cfg.ListenAddr, e.log)
	if err != nil {
		return nil, err
	}
	s := &session{ln: ln, client: hostapi.Dial(e.cfg.HostAddr, ln, e.log)}

	engine, err := reconcile.NewEngine(e.cfg.Root, osfs.New(e.cfg.Root), e.log)
	if err != nil {
		s.Close()
		return nil, err
	}
	var rec reconcile.Recorder
	if e.cfg.JournalEnabled() {
		j, err := journal.Open(e.cfg.JournalPath)
		if err != nil {
			e.log.Warn().Err(err).Msg("journal disabled")
		} else {
			s.journal = j
			rec = j
		}
	}
	s.runner = reconcile.NewRunner(engine, s.client, savefile.NewStore(osfs.New("/")), rec, e.log)
	return s, nil
}

// withSession runs fn against a fresh session.
func (e *environment) withSession(ctx context.Context, fn func(*session) error) error {
	s, err := e.connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func (e *environment) openJournal() (*journal.Journal, error) {
	if !e.cfg.JournalEnabled() {
		return nil, fmt.Errorf("journal is disabled (journal_path = %q)", config.JournalOff)
	}
	return journal.Open(e.cfg.JournalPath)
}
