package cmd

import (
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/agentic-research/ttsync/internal/journal"
	"github.com/agentic-research/ttsync/internal/savefile"
)

var backupCmd = &cobra.Command{
	Use:   "backup <path>",
	Short: "Copy the save currently loaded in the game",
	Long:  `Backup copies the loaded save file to path. The .json extension is always used.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dst := backupPath(args[0])
		return env.withSession(cmd.Context(), func(s *session) error {
			state, err := s.client.GetState(cmd.Context())
			if err != nil {
				return err
			}
			absDst, err := filepath.Abs(dst)
			if err != nil {
				return err
			}
			if err := savefile.NewStore(osfs.New("/")).Copy(state.SavePath, absDst); err != nil {
				return err
			}
			env.out.Info("save:", "'%s' as '%s'", filepath.Base(state.SavePath), dst)

			if s.journal != nil {
				_, err := s.journal.Record(cmd.Context(), journal.Entry{
					Kind:     "backup",
					SavePath: state.SavePath,
					SaveName: filepath.Base(state.SavePath),
					Changes:  []string{"copied to " + dst},
				})
				if err != nil {
					env.log.Warn().Err(err).Msg("journal")
				}
			}
			return nil
		})
	},
}

// backupPath replaces any extension of p with .json.
func backupPath(p string) string {
	return strings.TrimSuffix(p, filepath.Ext(p)) + ".json"
}

func init() {
	rootCmd.AddCommand(backupCmd)
}
