package checkout

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/tripsync/internal/bookings"
	"github.com/MrSnakeDoc/tripsync/internal/domain"
	"github.com/MrSnakeDoc/tripsync/internal/gateway"
	"github.com/MrSnakeDoc/tripsync/internal/logger"
	"github.com/MrSnakeDoc/tripsync/internal/normalize"
)

// Refresher is the part of the bookings cache the flow needs.
type Refresher interface {
	Refresh(ctx context.Context, force bool) bookings.RefreshResult
}

// CartRequest is the first phase of a booking: reserving an offer.
type CartRequest struct {
	OfferID     int64
	ServiceKind domain.EntityKind
	Start       *time.Time
	End         *time.Time
	Guests      *domain.Guests
	// Extra is merged into the payload for service-specific fields.
	Extra map[string]any
}

func (r CartRequest) payload() map[string]any {
	p := make(map[string]any, len(r.Extra)+7)
	for k, v := range r.Extra {
		p[k] = v
	}
	p["service_id"] = r.OfferID
	p["service_type"] = string(r.ServiceKind)
	if r.Start != nil {
		p["start_date"] = r.Start.Format(time.DateOnly)
	}
	if r.End != nil {
		p["end_date"] = r.End.Format(time.DateOnly)
	}
	if r.Guests != nil {
		p["adults"] = r.Guests.Adults
		p["children"] = r.Guests.Children
		p["rooms"] = r.Guests.Rooms
	}
	return p
}

// Flow runs reservation then checkout against the remote.
type Flow struct {
	gateway    gateway.Gateway
	guard      *Guard
	bookings   Refresher
	normalizer *normalize.Normalizer
	logger     logger.Logger
	now        func() time.Time
}

// NewFlow creates a flow. bookings may be nil when no cache is wired.
func NewFlow(gw gateway.Gateway, guard *Guard, bookings Refresher, n *normalize.Normalizer, log logger.Logger, now func() time.Time) *Flow {
	if now == nil {
		now = time.Now
	}
	return &Flow{
		gateway:    gw,
		guard:      guard,
		bookings:   bookings,
		normalizer: n,
		logger:     log,
		now:        now,
	}
}

// Reserve submits the cart and returns the pending booking it created.
func (f *Flow) Reserve(ctx context.Context, req CartRequest) (domain.Booking, error) {
	res, err := f.gateway.Submit(ctx, gateway.KindCart, req.payload())
	if err != nil {
		return domain.Booking{}, err
	}
	if !res.Success {
		e := &domain.Error{Kind: domain.KindServerError, Op: "reserve", Message: res.Message}
		if len(res.Errors) > 0 {
			e.Kind = domain.KindValidation
			e.Fields = res.Errors
		}
		return domain.Booking{}, e
	}
	if res.Data == nil || res.Data.Code == "" {
		return domain.Booking{}, domain.NewError(domain.KindServerError, "reserve", "no booking code in response", nil)
	}

	b := f.normalizer.Booking(res.Data.Raw)
	b.BookingID = res.Data.Code
	b.Status = domain.StatusPending
	if b.OfferID == 0 {
		b.OfferID = req.OfferID
	}
	if b.ServiceKind == "" {
		b.ServiceKind = string(req.ServiceKind)
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = f.now()
	}
	if b.Dates.Start == nil {
		b.Dates.Start = req.Start
	}
	if b.Dates.End == nil {
		b.Dates.End = req.End
	}
	if b.Guests == nil {
		b.Guests = req.Guests
	}

	f.logger.Info("booking reserved",
		logger.String("booking_id", b.BookingID),
		logger.Int64("offer_id", b.OfferID))
	return b, nil
}

// Checkout completes the booking identified by code. Concurrent calls for
// the same code collapse into one submission. A successful checkout forces
// a bookings refresh.
func (f *Flow) Checkout(ctx context.Context, code string, form map[string]any) Result {
	res := f.guard.SubmitOnce(ctx, code, func(ctx context.Context) (*gateway.SubmitResult, error) {
		payload := make(map[string]any, len(form)+1)
		for k, v := range form {
			payload[k] = v
		}
		payload["code"] = code
		return f.gateway.Submit(ctx, gateway.KindCheckout, payload)
	})

	if res.Success && !res.Duplicate {
		f.logger.Info("checkout completed",
			logger.String("booking_id", res.Code),
			logger.Bool("redirect", res.RedirectURL != ""))
		if f.bookings != nil {
			f.bookings.Refresh(ctx, true)
		}
	}
	return res
}
