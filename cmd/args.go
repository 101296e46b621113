package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// validGUID reports whether s looks like an object GUID: six ASCII letters
// or digits.
func validGUID(s string) bool {
	if len(s) != 6 {
		return false
	}
	for _, c := range []byte(s) {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		default:
			return false
		}
	}
	return true
}

// guidArgs validates every positional argument from index from on as a
// GUID.
func guidArgs(from int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		for i := from; i < len(args); i++ {
			if !validGUID(args[i]) {
				return fmt.Errorf("%q is not a valid guid", args[i])
			}
		}
		return nil
	}
}

func mustExist(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%s does not exist", path)
	}
	return nil
}
