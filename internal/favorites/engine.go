// Package favorites keeps the user's favorites optimistic: every mutation
// is visible locally before the remote confirms it, and is undone if the
// remote rejects it.
package favorites

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
	"github.com/MrSnakeDoc/tripsync/internal/store"
)

// Engine owns the favorites collection and its durable mirror. Nothing
// else writes either of them.
type Engine struct {
	gateway gateway.Gateway
	store   store.Store
	creds   credentials.Provider
	logger  logger.Logger
	now     func() time.Time

	mu      sync.Mutex
	marks   []domain.FavoriteMark
	version uint64 // bumped on every local commit
	origin  map[int64]uint64

	inflight sync.WaitGroup
}

// New creates an empty engine. Call Load to hydrate it from the store.
func New(gw gateway.Gateway, st store.Store, creds credentials.Provider, log logger.Logger, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{
		gateway: gw,
		store:   st,
		creds:   creds,
		logger:  log,
		now:     now,
		marks:   []domain.FavoriteMark{},
		origin:  map[int64]uint64{},
	}
}

// Load replaces the in-memory collection with the durable snapshot. A
// missing snapshot leaves the collection empty.
func (e *Engine) Load(ctx context.Context) error {
	data, err := e.store.Get(ctx, store.KeyFavorites)
	if err != nil {
		return fmt.Errorf("failed to read favorites: %w", err)
	}

	marks := []domain.FavoriteMark{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &marks); err != nil {
			return fmt.Errorf("failed to decode favorites: %w", err)
		}
	}
	marks = dedupe(marks)

	e.mu.Lock()
	e.marks = marks
	e.version++
	e.origin = map[int64]uint64{}
	e.mu.Unlock()

	e.logger.Info("favorites loaded from store", logger.Int("count", len(marks)))
	return nil
}

// List returns a copy of the collection in insertion order.
func (e *Engine) List() []domain.FavoriteMark {
	e.mu.Lock()
	defer e.mu.Unlock()
	return clone(e.marks)
}

// Contains reports whether entityID is favorited.
func (e *Engine) Contains(entityID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return indexOf(e.marks, entityID) >= 0
}

// Count returns the number of favorites.
func (e *Engine) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.marks)
}

// Add favorites an entity. Adding an entity already present is a Noop.
func (e *Engine) Add(ctx context.Context, entityID int64, kind domain.EntityKind) *Pending {
	return e.mutate(ctx, &mutation{
		op:   gateway.OpAdd,
		mark: domain.FavoriteMark{EntityID: entityID, EntityKind: kind},
	})
}

// Remove unfavorites an entity. Removing an absent entity is a Noop.
func (e *Engine) Remove(ctx context.Context, entityID int64) *Pending {
	return e.mutate(ctx, &mutation{
		op:   gateway.OpRemove,
		mark: domain.FavoriteMark{EntityID: entityID},
	})
}

// Toggle removes the entity if present and adds it otherwise. It returns
// the membership that results from the local commit.
func (e *Engine) Toggle(ctx context.Context, entityID int64, kind domain.EntityKind) (bool, *Pending) {
	if e.Contains(entityID) {
		return false, e.Remove(ctx, entityID)
	}
	return true, e.Add(ctx, entityID, kind)
}

// Clear removes every favorite.
func (e *Engine) Clear(ctx context.Context) *Pending {
	return e.mutate(ctx, &mutation{op: gateway.OpClear})
}

// Settle blocks until every remote call started so far has settled.
func (e *Engine) Settle() {
	e.inflight.Wait()
}

func (e *Engine) mutate(ctx context.Context, m *mutation) *Pending {
	e.mu.Lock()
	previous := clone(e.marks)
	next, changed := m.apply(clone(previous), e.now())
	if !changed {
		e.mu.Unlock()
		return settled(m.result(Noop, nil))
	}
	e.commitLocked(ctx, next)
	committed := e.version
	m.version = committed
	if m.op == gateway.OpAdd {
		e.origin[m.mark.EntityID] = committed
	}
	e.mu.Unlock()

	if !credentials.Present(ctx, e.creds) {
		e.logger.Info("favorite kept local, no credential",
			logger.String("op", string(m.op)),
			logger.Int64("entity_id", m.mark.EntityID))
		return settled(m.result(KeptLocal, domain.ErrNoCredential))
	}

	p := newPending()
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		// The remote call always runs to completion, even if the caller
		// has moved on.
		p.resolve(e.sync(context.WithoutCancel(ctx), m, previous, committed))
	}()
	return p
}

// sync sends m upstream and reconciles the local state with the answer.
func (e *Engine) sync(ctx context.Context, m *mutation, previous []domain.FavoriteMark, committed uint64) Result {
	res, err := e.gateway.Mutate(ctx, gateway.KindFavorites, m.op, m.payload())
	if err == nil && res != nil && !res.Success {
		err = domain.NewError(domain.KindValidation, "favorites "+string(m.op), res.Message, nil)
	}
	if err == nil {
		return m.result(Applied, nil)
	}

	if domain.KindOf(err) == domain.KindUnauthenticated {
		e.logger.Info("favorite kept local, remote refused credential",
			logger.String("op", string(m.op)),
			logger.Int64("entity_id", m.mark.EntityID),
			logger.Error(err))
		return m.result(KeptLocal, err)
	}

	e.mu.Lock()
	if e.version == committed {
		e.commitLocked(ctx, previous)
	} else {
		// Later mutations are committed on top of ours: undo only ours.
		e.commitLocked(ctx, m.invert(clone(e.marks), e.origin))
	}
	e.mu.Unlock()

	e.logger.Warn("favorite rolled back",
		logger.String("op", string(m.op)),
		logger.Int64("entity_id", m.mark.EntityID),
		logger.String("kind", domain.KindOf(err).String()),
		logger.Error(err))
	return m.result(RolledBack, err)
}

// commitLocked publishes marks to memory and the durable store. e.mu must
// be held so the two copies are written in the same order.
func (e *Engine) commitLocked(ctx context.Context, marks []domain.FavoriteMark) {
	e.marks = marks
	e.version++

	data, err := json.Marshal(marks)
	if err != nil {
		e.logger.Error("failed to encode favorites", logger.Error(err))
		return
	}
	if err := e.store.Set(ctx, store.KeyFavorites, data); err != nil {
		e.logger.Warn("failed to persist favorites", logger.Error(err))
	}
}
