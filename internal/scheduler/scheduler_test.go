package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrSnakeDoc/tripsync/internal/bookings"
	"github.com/MrSnakeDoc/tripsync/internal/logger"
)

type fakeRefresher struct {
	mu     sync.Mutex
	calls  []bool
	called chan bool
}

func newFakeRefresher() *fakeRefresher {
	return &fakeRefresher{called: make(chan bool, 8)}
}

func (f *fakeRefresher) Refresh(_ context.Context, force bool) bookings.RefreshResult {
	f.mu.Lock()
	f.calls = append(f.calls, force)
	f.mu.Unlock()
	f.called <- force
	return bookings.RefreshResult{Source: bookings.Fetched, Count: 1}
}

func waitCall(t *testing.T, f *fakeRefresher) bool {
	t.Helper()
	select {
	case force := <-f.called:
		return force
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a refresh")
		return false
	}
}

func TestBookingsRefresher_StartAndManualTrigger(t *testing.T) {
	log := logger.New("error", false)
	cache := newFakeRefresher()
	trigger := make(chan struct{}, 1)

	br := NewBookingsRefresher(cache, log, "@every 1h", trigger)
	if err := br.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer br.Stop()

	if force := waitCall(t, cache); force {
		t.Errorf("initial refresh should not be forced")
	}

	trigger <- struct{}{}
	if force := waitCall(t, cache); !force {
		t.Errorf("manual refresh should be forced")
	}
}

func TestBookingsRefresher_InvalidSchedule(t *testing.T) {
	log := logger.New("error", false)
	cache := newFakeRefresher()

	br := NewBookingsRefresher(cache, log, "every now and then", make(chan struct{}))
	if err := br.Start(context.Background()); err == nil {
		t.Fatal("Start should fail on an invalid schedule")
	}
	if len(cache.calls) != 0 {
		t.Errorf("no refresh expected, got %d", len(cache.calls))
	}
}

type fakeFavorites struct {
	err   error
	count int
	loads int
}

func (f *fakeFavorites) Load(context.Context) error {
	f.loads++
	return f.err
}

func (f *fakeFavorites) Count() int { return f.count }

func TestStoreSyncer_Sync(t *testing.T) {
	log := logger.New("error", false)

	tests := []struct {
		name    string
		fav     *fakeFavorites
		wantErr bool
	}{
		{name: "loads favorites", fav: &fakeFavorites{count: 3}},
		{name: "empty store", fav: &fakeFavorites{}},
		{name: "store failure", fav: &fakeFavorites{err: errors.New("disk I/O error")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewStoreSyncer(tt.fav, log).Sync(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("Sync() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.fav.loads != 1 {
				t.Errorf("Load called %d times, want 1", tt.fav.loads)
			}
		})
	}
}
