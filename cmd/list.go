package cmd

import (
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the objects in the loaded save with their tags",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return env.withSession(cmd.Context(), func(s *session) error {
			save, _, err := s.runner.Load(cmd.Context())
			if err != nil {
				return err
			}
			env.out.Objects(save.Objects)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
