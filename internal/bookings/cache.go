// Package bookings keeps the user's bookings behind a short fetch window
// so that bursts of refresh requests cost at most one network round-trip.
package bookings

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/tripsync/internal/credentials"
	"github.com/MrSnakeDoc/tripsync/internal/domain"
	"github.com/MrSnakeDoc/tripsync/internal/gateway"
	"github.com/MrSnakeDoc/tripsync/internal/logger"
	"github.com/MrSnakeDoc/tripsync/internal/normalize"
	"github.com/MrSnakeDoc/tripsync/internal/store"
)

// DefaultWindow is how long a successful fetch is served without
// contacting the remote again.
const DefaultWindow = 30 * time.Second

// Source tells where the collection came from after a refresh.
type Source int

const (
	// SkippedInFlight: another refresh was running, nothing was done.
	SkippedInFlight Source = iota
	// ServedCached: the in-memory snapshot is fresh enough.
	ServedCached
	// ServedStore: fresh but empty in memory, hydrated from the store.
	ServedStore
	// Fetched: the remote answered and the snapshot was replaced.
	Fetched
	// FallbackStore: the remote failed, the stored snapshot was served.
	FallbackStore
	// FallbackEmpty: the remote and the store both failed.
	FallbackEmpty
	// NoCredential: signed out, the stored snapshot was served.
	NoCredential
)

func (s Source) String() string {
	switch s {
	case SkippedInFlight:
		return "skipped_in_flight"
	case ServedCached:
		return "served_cached"
	case ServedStore:
		return "served_store"
	case Fetched:
		return "fetched"
	case FallbackStore:
		return "fallback_store"
	case FallbackEmpty:
		return "fallback_empty"
	case NoCredential:
		return "no_credential"
	default:
		return "unknown"
	}
}

// RefreshResult reports what a refresh did. Err holds the absorbed remote
// or store error, if any.
type RefreshResult struct {
	Source Source
	Count  int
	Err    error
}

// Options configures a Cache.
type Options struct {
	Window time.Duration
	Now    func() time.Time
}

// Cache owns the bookings collection and its durable mirror.
type Cache struct {
	gateway    gateway.Gateway
	store      store.Store
	creds      credentials.Provider
	normalizer *normalize.Normalizer
	logger     logger.Logger
	window     time.Duration
	now        func() time.Time

	mu          sync.Mutex
	bookings    []domain.Booking
	lastFetchAt time.Time
	inFlight    bool
	// gen advances whenever the snapshot is replaced by a fetch or a
	// local edit. Store reads started under an older gen are discarded.
	gen uint64
}

// New creates an empty cache. Zero options fall back to DefaultWindow and
// the wall clock.
func New(gw gateway.Gateway, st store.Store, creds credentials.Provider, n *normalize.Normalizer, log logger.Logger, opts Options) *Cache {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache{
		gateway:    gw,
		store:      st,
		creds:      creds,
		normalizer: n,
		logger:     log,
		window:     opts.Window,
		now:        opts.Now,
		bookings:   []domain.Booking{},
	}
}

// Refresh brings the collection up to date. It never fails: remote and
// store errors degrade to the best snapshot available and are reported in
// the result.
func (c *Cache) Refresh(ctx context.Context, force bool) RefreshResult {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		c.logger.Debug("bookings refresh skipped, already in flight")
		return RefreshResult{Source: SkippedInFlight, Count: c.Count()}
	}

	fresh := !c.lastFetchAt.IsZero() && c.now().Sub(c.lastFetchAt) < c.window
	if !force && fresh {
		if n := len(c.bookings); n > 0 {
			c.mu.Unlock()
			return RefreshResult{Source: ServedCached, Count: n}
		}
		c.mu.Unlock()
		return c.fromStore(ctx, ServedStore, nil)
	}

	c.inFlight = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	// Nobody can cancel a refresh once the guard is taken.
	ctx = context.WithoutCancel(ctx)

	if !credentials.Present(ctx, c.creds) {
		c.logger.Info("bookings served from store, no credential")
		return c.fromStore(ctx, NoCredential, domain.ErrNoCredential)
	}

	page, err := c.gateway.FetchCollection(ctx, gateway.KindBookings, nil)
	if err != nil {
		c.logger.Warn("bookings fetch failed, falling back to store",
			logger.String("kind", domain.KindOf(err).String()),
			logger.Error(err))
		return c.fromStore(ctx, FallbackStore, err)
	}

	bookings := c.normalizer.Bookings(page.Data)
	c.mu.Lock()
	c.bookings = bookings
	c.lastFetchAt = c.now()
	c.gen++
	c.mu.Unlock()

	if err := c.persist(ctx, bookings); err != nil {
		c.logger.Warn("failed to persist bookings", logger.Error(err))
	}

	c.logger.Info("bookings fetched", logger.Int("count", len(bookings)))
	return RefreshResult{Source: Fetched, Count: len(bookings)}
}

// Restore loads the stored snapshot without touching the remote. The
// fetch time is left alone, so the next Refresh still goes to the network.
func (c *Cache) Restore(ctx context.Context) RefreshResult {
	return c.fromStore(ctx, ServedStore, nil)
}

// fromStore replaces the collection with the stored snapshot, or with an
// empty one when the store cannot serve it. A fetch or cancel that lands
// while the store is being read wins over what was read.
func (c *Cache) fromStore(ctx context.Context, source Source, cause error) RefreshResult {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	bookings, err := c.load(ctx)
	if err != nil {
		c.logger.Warn("bookings store read failed", logger.Error(err))
		if cause == nil {
			cause = err
		}
		bookings, source = []domain.Booking{}, FallbackEmpty
	}

	c.mu.Lock()
	if c.gen != gen {
		n := len(c.bookings)
		c.mu.Unlock()
		c.logger.Debug("stale bookings store read discarded")
		return RefreshResult{Source: source, Count: n, Err: cause}
	}
	c.bookings = bookings
	c.mu.Unlock()

	return RefreshResult{Source: source, Count: len(bookings), Err: cause}
}

func (c *Cache) load(ctx context.Context) ([]domain.Booking, error) {
	data, err := c.store.Get(ctx, store.KeyBookings)
	if err != nil {
		return nil, fmt.Errorf("failed to read bookings: %w", err)
	}
	bookings := []domain.Booking{}
	if len(data) == 0 {
		return bookings, nil
	}
	if err := json.Unmarshal(data, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

func (c *Cache) persist(ctx context.Context, bookings []domain.Booking) error {
	data, err := json.Marshal(bookings)
	if err != nil {
		return fmt.Errorf("failed to encode bookings: %w", err)
	}
	return c.store.Set(ctx, store.KeyBookings, data)
}

// Cancel marks a booking cancelled locally and persists the snapshot.
// Nothing is sent to the remote; the next successful fetch wins.
func (c *Cache) Cancel(ctx context.Context, bookingID string) (domain.Booking, error) {
	c.mu.Lock()
	idx := -1
	for i, b := range c.bookings {
		if b.BookingID == bookingID {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return domain.Booking{}, fmt.Errorf("booking %q: %w", bookingID, domain.ErrNotFound)
	}

	next := make([]domain.Booking, len(c.bookings))
	copy(next, c.bookings)
	next[idx].Status = domain.StatusCancelled
	c.bookings = next
	c.gen++
	cancelled := next[idx]
	c.mu.Unlock()

	if err := c.persist(ctx, next); err != nil {
		return cancelled, err
	}
	c.logger.Info("booking cancelled locally", logger.String("booking_id", bookingID))
	return cancelled, nil
}

// Bookings returns a copy of the current collection.
func (c *Cache) Bookings() []domain.Booking {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Booking, len(c.bookings))
	copy(out, c.bookings)
	return out
}

// Get returns the booking with the given code.
func (c *Cache) Get(bookingID string) (domain.Booking, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.bookings {
		if b.BookingID == bookingID {
			return b, true
		}
	}
	return domain.Booking{}, false
}

func (c *Cache) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bookings)
}

// LastFetchAt is the time of the last successful remote fetch.
func (c *Cache) LastFetchAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastFetchAt
}

func (c *Cache) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}
