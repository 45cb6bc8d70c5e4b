// Package normalize maps heterogeneous remote payloads to canonical domain
// records. Every function here is pure and total: missing fields fall back
// to documented defaults instead of failing.
package normalize

import (
	"time"

	"github.com/MrSnakeDoc/tripsync/internal/domain"
)

// LocationUnavailable is used when a payload carries no usable location.
const LocationUnavailable = "Location not available"

// Normalizer applies a RuleSet to raw records.
type Normalizer struct {
	rules RuleSet
}

// New creates a normalizer for the given rules.
func New(rules RuleSet) *Normalizer {
	return &Normalizer{rules: rules}
}

// NewDefault creates a normalizer with DefaultRules.
func NewDefault() *Normalizer {
	return New(DefaultRules())
}

func (n *Normalizer) booking(raw domain.Raw, field string) (any, bool) {
	return first(raw, n.rules.Booking[field])
}

func (n *Normalizer) listing(raw domain.Raw, field string) (any, bool) {
	return first(raw, n.rules.Listing[field])
}

// Booking normalizes one booking record.
func (n *Normalizer) Booking(raw domain.Raw) domain.Booking {
	b := domain.Booking{
		Location: LocationUnavailable,
		Status:   domain.StatusUnknown,
	}

	if v, ok := n.booking(raw, BookingID); ok {
		b.BookingID = asString(v)
	}
	if v, ok := n.booking(raw, BookingOfferID); ok {
		b.OfferID = asInt64(v)
	}
	if v, ok := n.booking(raw, BookingServiceKind); ok {
		b.ServiceKind = asString(v)
	}
	if v, ok := n.booking(raw, BookingTitle); ok {
		b.Title = asString(v)
	}
	if v, ok := n.booking(raw, BookingImage); ok {
		b.Image = asString(v)
	}
	if v, ok := n.booking(raw, BookingLocation); ok {
		if loc := asString(v); loc != "" {
			b.Location = loc
		}
	}
	if v, ok := n.booking(raw, BookingPrice); ok {
		b.Price = asDecimal(v)
	}
	if v, ok := n.booking(raw, BookingTotalPrice); ok {
		b.TotalPrice = asDecimal(v)
	}
	if v, ok := n.booking(raw, BookingCreatedAt); ok {
		b.CreatedAt = asTime(v)
	}
	if v, ok := n.booking(raw, BookingStatus); ok {
		b.Status = domain.ParseBookingStatus(asString(v))
	}
	if v, ok := n.booking(raw, BookingStart); ok {
		b.Dates.Start = timePtr(asTime(v))
	}
	if v, ok := n.booking(raw, BookingEnd); ok {
		b.Dates.End = timePtr(asTime(v))
	}
	if v, ok := n.booking(raw, BookingGateway); ok {
		b.Gateway = asString(v)
	}

	adults, hasAdults := n.booking(raw, BookingAdults)
	children, hasChildren := n.booking(raw, BookingChildren)
	rooms, hasRooms := n.booking(raw, BookingRooms)
	if hasAdults || hasChildren || hasRooms {
		b.Guests = &domain.Guests{
			Adults:   int(asInt64(adults)),
			Children: int(asInt64(children)),
			Rooms:    int(asInt64(rooms)),
		}
	}

	return b
}

// Listing normalizes one marketplace record.
func (n *Normalizer) Listing(raw domain.Raw) domain.Listing {
	l := domain.Listing{Location: LocationUnavailable}

	if v, ok := n.listing(raw, ListingID); ok {
		l.ID = asInt64(v)
	}
	if v, ok := n.listing(raw, ListingKind); ok {
		l.Kind = asString(v)
	}
	if v, ok := n.listing(raw, ListingTitle); ok {
		l.Title = asString(v)
	}
	if v, ok := n.listing(raw, ListingLocation); ok {
		if loc := asString(v); loc != "" {
			l.Location = loc
		}
	}
	if v, ok := n.listing(raw, ListingImage); ok {
		l.Image = asString(v)
	}
	if v, ok := n.listing(raw, ListingPrice); ok {
		l.Price = asDecimal(v)
	}
	if v, ok := n.listing(raw, ListingSalePrice); ok {
		l.SalePrice = asDecimal(v)
	}
	if v, ok := n.listing(raw, ListingRating); ok {
		l.Rating = asFloat(v)
	}
	if v, ok := n.listing(raw, ListingReviewCount); ok {
		l.ReviewCount = int(asInt64(v))
	}
	if v, ok := n.listing(raw, ListingFeatured); ok {
		l.Featured = asBool(v)
	}

	return l
}

// Bookings normalizes a batch, preserving order.
func (n *Normalizer) Bookings(raws []domain.Raw) []domain.Booking {
	out := make([]domain.Booking, 0, len(raws))
	for _, raw := range raws {
		out = append(out, n.Booking(raw))
	}
	return out
}

// Listings normalizes a batch, preserving order.
func (n *Normalizer) Listings(raws []domain.Raw) []domain.Listing {
	out := make([]domain.Listing, 0, len(raws))
	for _, raw := range raws {
		out = append(out, n.Listing(raw))
	}
	return out
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
