package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/agentic-research/ttsync/internal/protocol"
)

var execGUID string

var execCmd = &cobra.Command{
	Use:   "exec <lua>",
	Short: "Run Lua in the game and print what it returns",
	Long: `Exec runs the given Lua code on an object (the global script by default) and
prints its return value. Pass - to read the code from stdin. Return a table
with JSON.encode to get structured output.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		guid := execGUID
		if guid == "" {
			guid = protocol.GlobalGUID
		} else if !validGUID(guid) {
			return fmt.Errorf("%q is not a valid guid", guid)
		}
		code := args[0]
		if code == "-" {
			b, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			code = string(b)
		}

		return env.withSession(cmd.Context(), func(s *session) error {
			ret, err := s.client.Execute(cmd.Context(), guid, code)
			if err != nil {
				return err
			}
			v, err := ret.Value()
			if err != nil {
				return err
			}
			if v == nil {
				return nil
			}
			if str, ok := v.(string); ok {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), str)
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(v)
		})
	},
}

func init() {
	execCmd.Flags().StringVar(&execGUID, "guid", "", "Object to run the code on (default: global)")
	rootCmd.AddCommand(execCmd)
}
