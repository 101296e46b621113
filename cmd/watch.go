package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/agentic-research/ttsync/internal/console"
	"github.com/agentic-research/ttsync/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [path...]",
	Short: "Show game output and reload whenever watched files change",
	Long: `Watch runs the console and additionally watches the given paths (the project
root by default). Every batch of changed files, and every time the game
finishes loading, runs a reload over those paths. A failed reload is
reported and watching continues.`,
	Args: func(cmd *cobra.Command, args []string) error {
		for _, p := range args {
			if err := mustExist(p); err != nil {
				return err
			}
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		roots := args
		if len(roots) == 0 {
			roots = []string{env.cfg.Root}
		}
		return env.withSession(cmd.Context(), func(s *session) error {
			w, err := watch.New(roots, env.cfg.Debounce, env.log)
			if err != nil {
				return err
			}
			defer w.Close()

			changes := make(chan []string)
			opts := append(forwardOption(), console.WithWatch(s.runner, w.Roots(), changes))
			loop := console.New(s.client, env.out, env.log, opts...)

			env.log.Info().Strs("roots", w.Roots()).Str("listen", s.ln.Addr().String()).Msg("watching")
			return runLoops(cmd.Context(),
				func(ctx context.Context) error { return w.Run(ctx, changes) },
				loop.Run,
			)
		})
	},
}

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Show print, log and error messages from the game",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return env.withSession(cmd.Context(), func(s *session) error {
			loop := console.New(s.client, env.out, env.log, forwardOption()...)
			env.log.Info().Str("listen", s.ln.Addr().String()).Msg("console")
			return loop.Run(cmd.Context())
		})
	},
}

func forwardOption() []console.Option {
	if env.cfg.ForwardAddr == "" {
		return nil
	}
	return []console.Option{console.WithForward(console.ForwardTo(env.cfg.ForwardAddr))}
}

// runLoops runs every loop until the first one returns. An interrupted
// context is a clean exit.
func runLoops(ctx context.Context, loops ...func(context.Context) error) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, loop := range loops {
		g.Go(func() error {
			err := loop(ctx)
			if err == nil {
				err = context.Canceled
			}
			return err
		})
	}
	err := g.Wait()
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return nil
	}
	return err
}

func init() {
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(consoleCmd)
}
