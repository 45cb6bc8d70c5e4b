package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/tripsync/internal/httpserver/deps"
)

type componentStatus struct {
	OK        bool   `json:"ok"`
	Count     *int   `json:"count,omitempty"`
	Driver    string `json:"driver,omitempty"`
	LastFetch string `json:"last_fetch,omitempty"`
	InFlight  *bool  `json:"in_flight,omitempty"`
	Error     string `json:"error,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

// Infra reports the state of each engine and of the durable store.
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components := map[string]componentStatus{
			"store":     checkStore(r.Context(), d),
			"bookings":  bookingsStatus(d),
			"favorites": {OK: true, Count: ptr(d.Favorites.Count())},
			"listings":  {OK: true, Count: ptr(len(d.Listings.Listings()))},
		}

		writeJSON(w, http.StatusOK, infraResponse{
			Mode:       determineMode(components),
			Components: components,
		})
	}
}

func bookingsStatus(d deps.Deps) componentStatus {
	last := d.Bookings.LastFetchAt()
	lastStr := "never"
	if !last.IsZero() {
		lastStr = last.UTC().Format(time.RFC3339)
	}
	return componentStatus{
		OK:        !last.IsZero(),
		Count:     ptr(d.Bookings.Count()),
		LastFetch: lastStr,
		InFlight:  ptr(d.Bookings.InFlight()),
	}
}

func checkStore(ctx context.Context, d deps.Deps) componentStatus {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := d.Store.Ping(ctx); err != nil {
		return componentStatus{OK: false, Driver: d.StoreDriver, Error: err.Error()}
	}
	return componentStatus{OK: true, Driver: d.StoreDriver}
}

// determineMode is "offline" until bookings have been fetched once,
// "degraded" without a durable store and "online" otherwise.
func determineMode(components map[string]componentStatus) string {
	if !components["bookings"].OK {
		return "offline"
	}
	if !components["store"].OK {
		return "degraded"
	}
	return "online"
}

func ptr[T any](v T) *T { return &v }
