package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/tripsync/internal/app"
	"github.com/MrSnakeDoc/tripsync/internal/domain"
)

// BookingsOptions holds flags for the bookings commands.
type BookingsOptions struct {
	*RootOptions
	Force bool
}

// NewBookingsCommand creates the bookings command group.
func NewBookingsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BookingsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "bookings",
		Short: "Show and refresh the user's bookings",
	}

	refresh := &cobra.Command{
		Use:   "refresh",
		Short: "Refresh bookings from the remote and print them",
		Long: `Refresh bookings from the remote and print them.

Without --force the local snapshot is reused when it is younger than
TRIPSYNC_BOOKINGS_CACHE_WINDOW. Remote failures fall back to the local
snapshot instead of failing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts.RootOptions, func(ctx context.Context, a *app.App) error {
				res := a.Bookings.Refresh(ctx, opts.Force)
				list := a.Bookings.Bookings()
				return newPrinter(opts.RootOptions, cmd.OutOrStdout()).result(
					map[string]any{"source": res.Source.String(), "bookings": list},
					func(w io.Writer) {
						fmt.Fprintf(w, "source: %s\n", res.Source)
						printBookings(w, list)
					})
			})
		},
	}
	refresh.Flags().BoolVar(&opts.Force, "force", false, "ignore the cache window")

	list := &cobra.Command{
		Use:   "list",
		Short: "Print the bookings from the local store, without network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts.RootOptions, func(ctx context.Context, a *app.App) error {
				res := a.Bookings.Restore(ctx)
				list := a.Bookings.Bookings()
				return newPrinter(opts.RootOptions, cmd.OutOrStdout()).result(
					map[string]any{"source": res.Source.String(), "bookings": list},
					func(w io.Writer) { printBookings(w, list) })
			})
		},
	}

	cancel := &cobra.Command{
		Use:   "cancel <code>",
		Short: "Mark a booking cancelled on this device",
		Long: `Mark a booking cancelled on this device.

The cancellation is local only: the remote is not told, and the next
successful refresh replaces it with the remote status.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts.RootOptions, func(ctx context.Context, a *app.App) error {
				p := newPrinter(opts.RootOptions, cmd.OutOrStdout())
				a.Bookings.Restore(ctx)
				b, err := a.Bookings.Cancel(ctx, args[0])
				if err != nil {
					return p.failure(err.Error(), nil)
				}
				return p.result(b, func(w io.Writer) {
					fmt.Fprintf(w, "booking %s is now %s (local only)\n", b.BookingID, b.Status)
				})
			})
		},
	}

	cmd.AddCommand(refresh, list, cancel)
	return cmd
}

func printBookings(w io.Writer, list []domain.Booking) {
	if len(list) == 0 {
		fmt.Fprintln(w, "no bookings")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tSTATUS\tSERVICE\tTITLE\tSTART\tTOTAL")
	for _, b := range list {
		start := "-"
		if b.Dates.Start != nil {
			start = b.Dates.Start.Format(time.DateOnly)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			b.BookingID, b.Status, b.ServiceKind, b.Title, start, b.TotalPrice.StringFixed(2))
	}
	_ = tw.Flush()
}
