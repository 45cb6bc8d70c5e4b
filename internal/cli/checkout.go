package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/tripsync/internal/app"
	"github.com/MrSnakeDoc/tripsync/internal/checkout"
	"github.com/MrSnakeDoc/tripsync/internal/domain"
)

// ReserveOptions holds flags for the reserve command.
type ReserveOptions struct {
	*RootOptions
	OfferID  int64
	Kind     string
	Start    string
	End      string
	Adults   int
	Children int
	Rooms    int
	Extra    []string
}

// NewReserveCommand creates the reserve command, the cart phase.
func NewReserveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReserveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:     "reserve",
		Short:   "Reserve an offer and print the pending booking code",
		Example: `  tripsync reserve --offer 42 --kind hotel --start 2026-07-01 --end 2026-07-04 --adults 2`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.request()
			if err != nil {
				return err
			}
			return withApp(cmd, opts.RootOptions, func(ctx context.Context, a *app.App) error {
				p := newPrinter(opts.RootOptions, cmd.OutOrStdout())
				b, err := a.Checkout.Reserve(ctx, req)
				if err != nil {
					return p.failure(reserveMessage(err), nil)
				}
				return p.result(b, func(w io.Writer) {
					fmt.Fprintf(w, "reserved %s (%s), complete it with: tripsync checkout %s\n", b.BookingID, b.Status, b.BookingID)
				})
			})
		},
	}

	cmd.Flags().Int64Var(&opts.OfferID, "offer", 0, "id of the listing to reserve (required)")
	cmd.Flags().StringVar(&opts.Kind, "kind", string(domain.KindHotel), "service type of the offer")
	cmd.Flags().StringVar(&opts.Start, "start", "", "start date, YYYY-MM-DD")
	cmd.Flags().StringVar(&opts.End, "end", "", "end date, YYYY-MM-DD")
	cmd.Flags().IntVar(&opts.Adults, "adults", 0, "number of adults")
	cmd.Flags().IntVar(&opts.Children, "children", 0, "number of children")
	cmd.Flags().IntVar(&opts.Rooms, "rooms", 0, "number of rooms")
	cmd.Flags().StringArrayVar(&opts.Extra, "extra", nil, "extra cart field as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("offer")
	return cmd
}

func (o *ReserveOptions) request() (checkout.CartRequest, error) {
	if o.OfferID <= 0 {
		return checkout.CartRequest{}, NewExitError(ExitCommandError, "--offer must be a positive id")
	}
	kind, err := domain.ParseEntityKind(o.Kind)
	if err != nil {
		return checkout.CartRequest{}, WrapExitError(ExitCommandError, "invalid --kind", err)
	}
	req := checkout.CartRequest{OfferID: o.OfferID, ServiceKind: kind}

	if req.Start, err = parseDate("--start", o.Start); err != nil {
		return checkout.CartRequest{}, err
	}
	if req.End, err = parseDate("--end", o.End); err != nil {
		return checkout.CartRequest{}, err
	}
	if req.Start != nil && req.End != nil && req.End.Before(*req.Start) {
		return checkout.CartRequest{}, NewExitError(ExitCommandError, "--end is before --start")
	}

	if o.Adults > 0 || o.Children > 0 || o.Rooms > 0 {
		req.Guests = &domain.Guests{Adults: o.Adults, Children: o.Children, Rooms: o.Rooms}
	}

	extra, err := parseFields(o.Extra)
	if err != nil {
		return checkout.CartRequest{}, err
	}
	req.Extra = extra
	return req, nil
}

func parseDate(flag, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid %s %q: expected YYYY-MM-DD", flag, s))
	}
	return &t, nil
}

// reserveMessage maps a cart failure to what the user should read.
func reserveMessage(err error) string {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		if e := domain.AsError(err); e != nil && len(e.Fields) > 0 {
			return e.FieldMessages("; ")
		}
		return err.Error()
	case domain.KindUnauthenticated:
		return checkout.MsgUnauthenticated
	default:
		return err.Error()
	}
}

// CheckoutOptions holds flags for the checkout command.
type CheckoutOptions struct {
	*RootOptions
	Fields []string
}

// NewCheckoutCommand creates the checkout command, the payment phase.
func NewCheckoutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckoutOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:     "checkout <code>",
		Short:   "Complete a reserved booking",
		Example: `  tripsync checkout BK-1A2B --field first_name=Ada --field payment_gateway=offline`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseFields(opts.Fields)
			if err != nil {
				return err
			}
			return withApp(cmd, opts.RootOptions, func(ctx context.Context, a *app.App) error {
				p := newPrinter(opts.RootOptions, cmd.OutOrStdout())
				res := a.Checkout.Checkout(ctx, args[0], fields)
				view := checkoutView{
					Success:     res.Success,
					Duplicate:   res.Duplicate,
					Code:        res.Code,
					RedirectURL: res.RedirectURL,
					Message:     res.Message,
				}
				if !res.Success {
					return p.failure(res.Message, view)
				}
				return p.result(view, func(w io.Writer) {
					switch {
					case res.Duplicate:
						fmt.Fprintf(w, "checkout for %s is already in progress\n", args[0])
					case res.RedirectURL != "":
						fmt.Fprintf(w, "continue payment at %s\n", res.RedirectURL)
					default:
						fmt.Fprintf(w, "booking %s completed\n", res.Code)
					}
				})
			})
		},
	}

	cmd.Flags().StringArrayVar(&opts.Fields, "field", nil, "checkout form field as key=value (repeatable)")
	return cmd
}

type checkoutView struct {
	Success     bool   `json:"success"`
	Duplicate   bool   `json:"duplicate,omitempty"`
	Code        string `json:"code,omitempty"`
	RedirectURL string `json:"redirectUrl,omitempty"`
	Message     string `json:"message,omitempty"`
}

func parseFields(pairs []string) (map[string]any, error) {
	params, err := parseParams(pairs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out, nil
}
