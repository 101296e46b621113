package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentic-research/ttsync/internal/reconcile"
)

var attachCmd = &cobra.Command{
	Use:   "attach <file> <guid>...",
	Short: "Attach a script or UI file to one or more objects",
	Long: `Attach tags each object with the file's path relative to the project root
(lua/<path> for .lua and .ttslua files, xml/<path> for .xml files), replacing
any earlier tag of the same kind, sets the object's script or UI to the file's
contents and reloads the save.`,
	Args: cobra.MatchAll(cobra.MinimumNArgs(1), guidArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, guids := args[0], args[1:]
		if info, err := os.Stat(file); err != nil || !info.Mode().IsRegular() {
			return fmt.Errorf("%s is not a file", file)
		}
		if len(guids) == 0 {
			return fmt.Errorf("%w: name at least one object guid (see 'ttsync list')", reconcile.ErrNoTarget)
		}
		return env.withSession(cmd.Context(), func(s *session) error {
			out, err := s.runner.Attach(cmd.Context(), file, guids)
			if err != nil {
				return err
			}
			env.out.Outcome(out)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(attachCmd)
}
