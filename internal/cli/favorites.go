package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/tripsync/internal/app"
	"github.com/MrSnakeDoc/tripsync/internal/domain"
	"github.com/MrSnakeDoc/tripsync/internal/favorites"
)

// FavoritesOptions holds flags for the favorites commands.
type FavoritesOptions struct {
	*RootOptions
	Kind string
}

// NewFavoritesCommand creates the favorites command group.
func NewFavoritesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FavoritesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "favorites",
		Short: "Manage favorites (applied locally first, synced when signed in)",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Print the favorites",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts.RootOptions, func(ctx context.Context, a *app.App) error {
				marks := a.Favorites.List()
				return newPrinter(opts.RootOptions, cmd.OutOrStdout()).result(marks, func(w io.Writer) {
					printFavorites(w, marks)
				})
			})
		},
	}

	add := &cobra.Command{
		Use:   "add <entity-id>",
		Short: "Favorite an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, kind, err := parseEntity(args[0], opts.Kind)
			if err != nil {
				return err
			}
			return withApp(cmd, opts.RootOptions, func(ctx context.Context, a *app.App) error {
				res := a.Favorites.Add(ctx, id, kind).Wait()
				return printOutcome(cmd, opts.RootOptions, res, membership(a, id))
			})
		},
	}

	remove := &cobra.Command{
		Use:   "remove <entity-id>",
		Short: "Unfavorite an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid entity id %q", args[0]))
			}
			return withApp(cmd, opts.RootOptions, func(ctx context.Context, a *app.App) error {
				res := a.Favorites.Remove(ctx, id).Wait()
				return printOutcome(cmd, opts.RootOptions, res, membership(a, id))
			})
		},
	}

	toggle := &cobra.Command{
		Use:   "toggle <entity-id>",
		Short: "Favorite an entity, or unfavorite it if already favorited",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, kind, err := parseEntity(args[0], opts.Kind)
			if err != nil {
				return err
			}
			return withApp(cmd, opts.RootOptions, func(ctx context.Context, a *app.App) error {
				_, p := a.Favorites.Toggle(ctx, id, kind)
				res := p.Wait()
				return printOutcome(cmd, opts.RootOptions, res, membership(a, id))
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every favorite",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts.RootOptions, func(ctx context.Context, a *app.App) error {
				return printOutcome(cmd, opts.RootOptions, a.Favorites.Clear(ctx).Wait(), nil)
			})
		},
	}

	for _, c := range []*cobra.Command{add, toggle} {
		c.Flags().StringVar(&opts.Kind, "kind", string(domain.KindHotel), "entity kind (hotel|car|space|tour|event|flight|boat)")
	}

	cmd.AddCommand(list, add, remove, toggle, clearCmd)
	return cmd
}

func parseEntity(rawID, rawKind string) (int64, domain.EntityKind, error) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return 0, "", NewExitError(ExitCommandError, fmt.Sprintf("invalid entity id %q", rawID))
	}
	kind, err := domain.ParseEntityKind(rawKind)
	if err != nil {
		return 0, "", WrapExitError(ExitCommandError, "invalid --kind", err)
	}
	return id, kind, nil
}

type outcomeView struct {
	Op        string `json:"op"`
	EntityID  int64  `json:"entityId"`
	Outcome   string `json:"outcome"`
	Favorited *bool  `json:"favorited,omitempty"`
	Error     string `json:"error,omitempty"`
}

// membership reads the entity's state once its mutation has settled, so a
// rollback is reflected.
func membership(a *app.App, entityID int64) *bool {
	in := a.Favorites.Contains(entityID)
	return &in
}

// printOutcome reports a settled mutation. A rollback is a failure, a
// local-only mutation is not. favorited is nil for collection-wide ops.
func printOutcome(cmd *cobra.Command, opts *RootOptions, res favorites.Result, favorited *bool) error {
	view := outcomeView{Op: string(res.Op), EntityID: res.EntityID, Outcome: res.Outcome.String(), Favorited: favorited}
	if res.Err != nil {
		view.Error = res.Err.Error()
	}

	p := newPrinter(opts, cmd.OutOrStdout())
	if res.Outcome == favorites.RolledBack {
		return p.failure("the change was refused and has been undone", view)
	}
	return p.result(view, func(w io.Writer) {
		switch res.Outcome {
		case favorites.KeptLocal:
			fmt.Fprintf(w, "%s %d: saved on this device only (sign in to sync)\n", res.Op, res.EntityID)
		case favorites.Noop:
			fmt.Fprintf(w, "%s %d: nothing to do\n", res.Op, res.EntityID)
		default:
			fmt.Fprintf(w, "%s %d: done\n", res.Op, res.EntityID)
		}
		if favorited != nil {
			fmt.Fprintf(w, "favorited: %t\n", *favorited)
		}
	})
}

func printFavorites(w io.Writer, marks []domain.FavoriteMark) {
	if len(marks) == 0 {
		fmt.Fprintln(w, "no favorites")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tADDED")
	for _, m := range marks {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", m.EntityID, m.EntityKind, m.AddedAt.Local().Format(time.DateTime))
	}
	_ = tw.Flush()
}
