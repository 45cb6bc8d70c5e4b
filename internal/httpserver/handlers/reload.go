package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/tripsync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/tripsync/internal/logger"
)

type reloadResponse struct {
	Triggered bool   `json:"triggered"`
	Message   string `json:"message"`
}

// Reload queues a forced bookings refresh. Only one request can be queued
// at a time; extra ones get 429.
func Reload(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case d.ReloadTrigger <- struct{}{}:
			d.Logger.Info("manual bookings refresh queued via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, http.StatusAccepted, reloadResponse{Triggered: true, Message: "refresh queued"})
		default:
			d.Logger.Warn("bookings refresh already queued",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, http.StatusTooManyRequests, reloadResponse{Message: "refresh already queued, please wait"})
		}
	}
}
