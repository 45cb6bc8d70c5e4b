package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/tripsync/internal/version"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := map[string]string{
				"version":   version.Version,
				"commit":    version.Commit,
				"buildDate": version.BuildDate,
				"goVersion": version.GoVersion,
			}
			return newPrinter(rootOpts, cmd.OutOrStdout()).result(info, func(w io.Writer) {
				fmt.Fprintln(w, version.String())
			})
		},
	}
}
