// Package gateway is the client side of the remote REST API.
package gateway

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/MrSnakeDoc/tripsync/internal/domain"
)

// Remote collection and submission kinds.
const (
	KindBookings  = "bookings"
	KindFavorites = "favorites"
	KindListings  = "listings"
	KindCart      = "cart"
	KindCheckout  = "checkout"
)

// Op is a mutation verb.
type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
	OpClear  Op = "clear"
)

// Gateway is the remote authority for every collection.
type Gateway interface {
	FetchCollection(ctx context.Context, kind string, params domain.Params) (*domain.Page, error)
	Mutate(ctx context.Context, kind string, op Op, payload MutatePayload) (*MutateResult, error)
	Submit(ctx context.Context, kind string, payload map[string]any) (*SubmitResult, error)
}

// MutatePayload identifies the entity a mutation applies to.
type MutatePayload struct {
	EntityID   int64             `json:"entityId"`
	EntityKind domain.EntityKind `json:"entityKind"`
}

// MutateResult is the remote answer to a mutation.
type MutateResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// SubmitResult is the remote answer to a non-idempotent submission.
type SubmitResult struct {
	Success bool                `json:"success"`
	Data    *SubmitData         `json:"data,omitempty"`
	Message string              `json:"message,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// SubmitData carries the booking code and, for checkout, where to send
// the user to pay. Raw keeps the whole payload.
type SubmitData struct {
	Code        string         `json:"code"`
	RedirectURL string         `json:"redirectUrl,omitempty"`
	Raw         map[string]any `json:"-"`
}

// UnmarshalJSON accepts the key variants the backend deployments use.
func (d *SubmitData) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	d.Raw = raw
	d.Code = firstString(raw, "code", "booking_code", "bookingCode")
	d.RedirectURL = firstString(raw, "redirectUrl", "redirect_url", "url", "redirect")
	return nil
}

// HasPayload reports whether the result carried any data at all.
func (r *SubmitResult) HasPayload() bool {
	return r.Data != nil && (len(r.Data.Raw) > 0 || r.Data.Code != "" || r.Data.RedirectURL != "")
}

func firstString(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := raw[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
