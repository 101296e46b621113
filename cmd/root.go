package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	configPath string
	rootDir    string
	hostAddr   string
	listenAddr string
	noColor    bool
	verbosity  int
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v debug, -vv trace)")
	pf.StringVarP(&configPath, "config", "c", "", "Path to config file (default ./ttsync.toml if present)")
	pf.StringVar(&rootDir, "root", "", "Project root that tags are relative to (default current directory)")
	pf.StringVar(&hostAddr, "host", "", "Address the game listens on")
	pf.StringVar(&listenAddr, "listen", "", "Address the game sends messages to")
	pf.BoolVar(&noColor, "no-color", false, "Disable styled output")
}

var rootCmd = &cobra.Command{
	Use:   "ttsync",
	Short: "ttsync: keep Tabletop Simulator scripts and UI in sync with files on disk",
	Long: `ttsync binds script and UI files to objects in the save loaded in Tabletop
Simulator. Objects carry tags such as lua/scripts/deck.lua or xml/ui/deck.xml;
attach, detach and reload rewrite the save from those files and reload it
through the External Editor API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		env = e
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
