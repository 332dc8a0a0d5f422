package cmd

import (
	"fmt"

	"github.com/josephlewis42/bsh/core/builtins"
	"github.com/spf13/cobra"
)

// builtinsCmd lists the shell builtins
var builtinsCmd = &cobra.Command{
	Use:   "builtins",
	Short: "Show the builtin commands of the shell.",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range builtins.Names() {
			fmt.Fprintln(cmd.OutOrStdout(), builtins.AllBuiltins[name].Usage())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(builtinsCmd)
}
