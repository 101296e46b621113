package cmd

import (
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent commits and backups from the journal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		j, err := env.openJournal()
		if err != nil {
			return err
		}
		defer j.Close()

		entries, err := j.List(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		env.out.Journal(entries)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of entries to show (0 for all)")
	rootCmd.AddCommand(historyCmd)
}
