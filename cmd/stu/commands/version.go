package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"go.stu.dev/stu/internal/build"
)

// newVersionCmd mirrors cobra's -V flag as an explicit subcommand, kept
// for parity with the teacher's cmd/same/commands/version.go.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "stu %s\n", build.Version)
			return err
		},
	}
}
