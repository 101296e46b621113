package cmd

import (
	"github.com/spf13/cobra"
)

var detachCmd = &cobra.Command{
	Use:   "detach [guid...]",
	Short: "Remove script and UI tags from objects and clear their script and UI",
	Long: `Detach removes every script and UI tag from the named objects, or from every
object in the save when no guid is given, and clears their script and UI.
Other tags are kept.`,
	Args: guidArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		return env.withSession(cmd.Context(), func(s *session) error {
			out, err := s.runner.Detach(cmd.Context(), args)
			if err != nil {
				return err
			}
			env.out.Outcome(out)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(detachCmd)
}
