package deps

import (
	"time"

	"github.com/MrSnakeDoc/tripsync/internal/bookings"
	"github.com/MrSnakeDoc/tripsync/internal/favorites"
	"github.com/MrSnakeDoc/tripsync/internal/listings"
	"github.com/MrSnakeDoc/tripsync/internal/logger"
	"github.com/MrSnakeDoc/tripsync/internal/store"
)

type Deps struct {
	Logger         logger.Logger
	StartTime      time.Time
	Version        string
	Commit         string
	BuildDate      string
	GoVersion      string
	TimeNow        func() time.Time     // for testing, defaults to time.Now
	AllowedOrigins []string             // CORS origins allowed to call the API
	Store          store.Store          // durable store backing the engines
	StoreDriver    string               // "sqlite" | "redis" | "memory"
	Bookings       *bookings.Cache      // bookings fetch cache
	Favorites      *favorites.Engine    // favorites mutation engine
	Listings       *listings.Aggregator // listings aggregator
	ReloadTrigger  chan struct{}        // Channel to trigger a forced bookings refresh
}

func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
