package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusPending    BookingStatus = "pending"
	StatusProcessing BookingStatus = "processing"
	StatusConfirmed  BookingStatus = "confirmed"
	StatusCompleted  BookingStatus = "completed"
	StatusCancelled  BookingStatus = "cancelled"
	StatusUnknown    BookingStatus = "unknown"
)

var statusAliases = map[string]BookingStatus{
	"pending":    StatusPending,
	"unpaid":     StatusPending,
	"draft":      StatusPending,
	"processing": StatusProcessing,
	"confirmed":  StatusConfirmed,
	"paid":       StatusConfirmed,
	"completed":  StatusCompleted,
	"cancelled":  StatusCancelled,
	"canceled":   StatusCancelled,
}

// ParseBookingStatus maps a remote status string to a BookingStatus.
// Anything it does not recognise is StatusUnknown.
func ParseBookingStatus(s string) BookingStatus {
	if st, ok := statusAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return st
	}
	return StatusUnknown
}

// Dates is the optional stay or rental window of a booking.
type Dates struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// Guests is the optional party composition of a booking.
type Guests struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
	Rooms    int `json:"rooms"`
}

// Booking is a reservation owned by the authenticated user.
type Booking struct {
	// ─────────────────────────────
	// Identity
	// ─────────────────────────────

	// BookingID is the opaque booking code issued by the cart phase.
	BookingID string `json:"bookingId"`

	// OfferID is the id of the booked listing.
	OfferID int64 `json:"offerId"`

	// ServiceKind is the remote service type (hotel, car, ...). Kept as a
	// string because the backend may report kinds this client does not know.
	ServiceKind string `json:"serviceKind"`

	// ─────────────────────────────
	// Display
	// ─────────────────────────────

	Title      string          `json:"title"`
	Image      string          `json:"image"`
	Location   string          `json:"location"`
	Price      decimal.Decimal `json:"price"`
	TotalPrice decimal.Decimal `json:"totalPrice"`

	// ─────────────────────────────
	// Lifecycle
	// ─────────────────────────────

	CreatedAt time.Time     `json:"createdAt"`
	Status    BookingStatus `json:"status"`
	Dates     Dates         `json:"dates"`
	Guests    *Guests       `json:"guests,omitempty"`
	Gateway   string        `json:"gateway,omitempty"`
}
