package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/tripsync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/tripsync/internal/httpserver/handlers"
)

func init() { Register("collections", registerCollections) }

func registerCollections(r chi.Router, d deps.Deps) {
	r.Route("/bookings", func(r chi.Router) {
		r.Get("/", handlers.Bookings(d))
		r.Get("/{code}", handlers.Booking(d))
	})
	r.Get("/favorites", handlers.Favorites(d))
	r.Get("/listings", handlers.Listings(d))
}
