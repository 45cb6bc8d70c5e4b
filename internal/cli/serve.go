package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the sync loop and the local status API",
		Long: `Run the sync loop and the local status API.

Favorites are loaded from the local store, bookings are refreshed on
TRIPSYNC_REFRESH_SCHEDULE and on POST /reload, until SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// serve always logs at the configured level
			opts := *rootOpts
			opts.Verbose = true

			a, log, err := openApp(cmd, &opts)
			if err != nil {
				return err
			}
			defer func() {
				a.Close()
				_ = log.Sync()
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.Run(ctx)
		},
	}
}
