package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentic-research/ttsync/internal/reconcile"
)

var reloadGUID string

var reloadCmd = &cobra.Command{
	Use:   "reload [path...]",
	Short: "Update scripts and UI from their files and reload the save",
	Long: `Reload re-reads every tagged file at or below the given paths (the whole
project root by default) into the objects that carry its tag, clears script
and UI of objects without a tag, refreshes the global script and UI from
Global.lua / Global.ttslua / Global.xml, and reloads the save if anything
changed.`,
	Args: func(cmd *cobra.Command, args []string) error {
		for _, p := range args {
			if err := mustExist(p); err != nil {
				return err
			}
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if reloadGUID != "" && !validGUID(reloadGUID) {
			return fmt.Errorf("%q is not a valid guid", reloadGUID)
		}
		return env.withSession(cmd.Context(), func(s *session) error {
			out, err := s.runner.Reload(cmd.Context(), reconcile.ChangeSet{Paths: args, GUID: reloadGUID})
			if err != nil {
				return err
			}
			env.out.Outcome(out)
			return nil
		})
	},
}

func init() {
	reloadCmd.Flags().StringVar(&reloadGUID, "id", "", "Only reload the object with this guid")
	rootCmd.AddCommand(reloadCmd)
}
