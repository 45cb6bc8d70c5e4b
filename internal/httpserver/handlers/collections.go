package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/tripsync/internal/domain"
	"github.com/MrSnakeDoc/tripsync/internal/httpserver/deps"
)

type bookingsResponse struct {
	Bookings    []domain.Booking `json:"bookings"`
	Total       int              `json:"total"`
	LastFetchAt string           `json:"last_fetch_at,omitempty"`
}

// Bookings lists the cached bookings, optionally filtered by ?status=.
func Bookings(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all := d.Bookings.Bookings()

		list := all
		if s := r.URL.Query().Get("status"); s != "" {
			status := domain.ParseBookingStatus(s)
			list = make([]domain.Booking, 0, len(all))
			for _, b := range all {
				if b.Status == status {
					list = append(list, b)
				}
			}
		}

		resp := bookingsResponse{Bookings: list, Total: len(list)}
		if last := d.Bookings.LastFetchAt(); !last.IsZero() {
			resp.LastFetchAt = last.UTC().Format(time.RFC3339)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// Booking returns one cached booking by code.
func Booking(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, ok := d.Bookings.Get(chi.URLParam(r, "code"))
		if !ok {
			writeError(w, http.StatusNotFound, "booking not found")
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

type favoritesResponse struct {
	Favorites []domain.FavoriteMark `json:"favorites"`
	Total     int                   `json:"total"`
}

func Favorites(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list := d.Favorites.List()
		writeJSON(w, http.StatusOK, favoritesResponse{Favorites: list, Total: len(list)})
	}
}

type listingsResponse struct {
	Listings []domain.Listing `json:"listings"`
	Total    int              `json:"total"`
}

// Listings returns the last aggregated listing collection.
func Listings(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list := d.Listings.Listings()
		writeJSON(w, http.StatusOK, listingsResponse{Listings: list, Total: len(list)})
	}
}
