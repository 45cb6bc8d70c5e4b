package bookings

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/tripsync/internal/credentials"
	"github.com/MrSnakeDoc/tripsync/internal/domain"
	"github.com/MrSnakeDoc/tripsync/internal/gateway"
	"github.com/MrSnakeDoc/tripsync/internal/logger"
	"github.com/MrSnakeDoc/tripsync/internal/normalize"
	"github.com/MrSnakeDoc/tripsync/internal/store"
	"github.com/MrSnakeDoc/tripsync/internal/testutil"
)

type fixture struct {
	cache *Cache
	gw    *testutil.FakeGateway
	store *store.Memory
	clock *testutil.FakeClock
}

func newFixture(t *testing.T, token string) *fixture {
	t.Helper()
	f := &fixture{
		gw:    &testutil.FakeGateway{},
		store: store.NewMemory(),
		clock: testutil.NewFakeClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)),
	}
	f.cache = New(f.gw, f.store, credentials.NewStatic(token), normalize.NewDefault(), logger.NewNop(),
		Options{Window: 30 * time.Second, Now: f.clock.Now})
	return f
}

func page(codes ...string) *domain.Page {
	p := &domain.Page{Total: len(codes), TotalPages: 1}
	for _, c := range codes {
		p.Data = append(p.Data, domain.Raw{"code": c, "status": "confirmed", "total": "120.50"})
	}
	return p
}

func (f *fixture) serve(p *domain.Page) {
	f.gw.FetchFunc = func(context.Context, string, domain.Params) (*domain.Page, error) {
		return p, nil
	}
}

func (f *fixture) seedStore(t *testing.T, codes ...string) {
	t.Helper()
	bookings := make([]domain.Booking, 0, len(codes))
	for _, c := range codes {
		bookings = append(bookings, domain.Booking{BookingID: c, Status: domain.StatusPending})
	}
	data, err := json.Marshal(bookings)
	require.NoError(t, err)
	require.NoError(t, f.store.Set(context.Background(), store.KeyBookings, data))
}

func codes(bookings []domain.Booking) []string {
	out := make([]string, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, b.BookingID)
	}
	return out
}

func TestRefreshWithinWindowCallsRemoteOnce(t *testing.T) {
	f := newFixture(t, "token")
	f.serve(page("BK-1", "BK-2"))
	ctx := context.Background()

	res := f.cache.Refresh(ctx, false)
	assert.Equal(t, Fetched, res.Source)
	assert.Equal(t, 2, res.Count)

	f.clock.Advance(10 * time.Second)
	assert.Equal(t, ServedCached, f.cache.Refresh(ctx, false).Source)
	assert.Len(t, f.gw.FetchCalls(), 1)

	f.clock.Advance(25 * time.Second)
	assert.Equal(t, Fetched, f.cache.Refresh(ctx, false).Source)
	assert.Len(t, f.gw.FetchCalls(), 2)
	assert.Equal(t, gateway.KindBookings, f.gw.FetchCalls()[0].Kind)
}

func TestForceBypassesWindow(t *testing.T) {
	f := newFixture(t, "token")
	f.serve(page("BK-1"))
	ctx := context.Background()

	f.cache.Refresh(ctx, false)
	assert.Equal(t, Fetched, f.cache.Refresh(ctx, true).Source)
	assert.Len(t, f.gw.FetchCalls(), 2)
}

func TestFetchPersistsNormalizedSnapshot(t *testing.T) {
	f := newFixture(t, "token")
	f.serve(page("BK-9"))

	f.cache.Refresh(context.Background(), false)

	data, err := f.store.Get(context.Background(), store.KeyBookings)
	require.NoError(t, err)
	var stored []domain.Booking
	require.NoError(t, json.Unmarshal(data, &stored))
	require.Len(t, stored, 1)
	assert.Equal(t, "BK-9", stored[0].BookingID)
	assert.Equal(t, domain.StatusConfirmed, stored[0].Status)
	assert.Equal(t, "120.5", stored[0].TotalPrice.String())
	assert.Equal(t, f.clock.Now(), f.cache.LastFetchAt())
}

func TestConcurrentRefreshIsDropped(t *testing.T) {
	f := newFixture(t, "token")
	entered := make(chan struct{})
	release := make(chan struct{})
	f.gw.FetchFunc = func(context.Context, string, domain.Params) (*domain.Page, error) {
		close(entered)
		<-release
		return page("BK-1"), nil
	}
	ctx := context.Background()

	var wg sync.WaitGroup
	var first RefreshResult
	wg.Add(1)
	go func() {
		defer wg.Done()
		first = f.cache.Refresh(ctx, true)
	}()

	<-entered
	assert.True(t, f.cache.InFlight())
	assert.Equal(t, SkippedInFlight, f.cache.Refresh(ctx, true).Source)

	close(release)
	wg.Wait()

	assert.Equal(t, Fetched, first.Source)
	assert.Len(t, f.gw.FetchCalls(), 1)
	assert.False(t, f.cache.InFlight())
}

func TestFreshButEmptyReadsStore(t *testing.T) {
	f := newFixture(t, "token")
	f.serve(page())
	ctx := context.Background()

	assert.Equal(t, Fetched, f.cache.Refresh(ctx, false).Source)

	// Another writer filled the store meanwhile.
	f.seedStore(t, "BK-7")
	res := f.cache.Refresh(ctx, false)
	assert.Equal(t, ServedStore, res.Source)
	assert.Equal(t, []string{"BK-7"}, codes(f.cache.Bookings()))
	assert.Len(t, f.gw.FetchCalls(), 1)
}

func TestRemoteFailureFallsBackToStore(t *testing.T) {
	f := newFixture(t, "token")
	f.seedStore(t, "BK-1", "BK-2")
	f.gw.FetchFunc = func(context.Context, string, domain.Params) (*domain.Page, error) {
		return nil, domain.NewError(domain.KindServerError, "fetch bookings", "boom", nil)
	}

	res := f.cache.Refresh(context.Background(), false)
	assert.Equal(t, FallbackStore, res.Source)
	assert.Equal(t, domain.KindServerError, domain.KindOf(res.Err))
	assert.Equal(t, []string{"BK-1", "BK-2"}, codes(f.cache.Bookings()))
	assert.True(t, f.cache.LastFetchAt().IsZero())
	assert.False(t, f.cache.InFlight())
}

func TestRemoteAndStoreFailureEmpties(t *testing.T) {
	f := newFixture(t, "token")
	f.serve(page("BK-1"))
	f.cache.Refresh(context.Background(), false)
	require.Equal(t, 1, f.cache.Count())

	f.gw.FetchFunc = func(context.Context, string, domain.Params) (*domain.Page, error) {
		return nil, domain.NewError(domain.KindNetworkError, "fetch bookings", "offline", nil)
	}
	f.store.SetFailure(assert.AnError)

	res := f.cache.Refresh(context.Background(), true)
	assert.Equal(t, FallbackEmpty, res.Source)
	assert.Zero(t, f.cache.Count())
}

func TestNoCredentialServesStore(t *testing.T) {
	f := newFixture(t, "")
	f.seedStore(t, "BK-3")

	res := f.cache.Refresh(context.Background(), true)
	assert.Equal(t, NoCredential, res.Source)
	assert.ErrorIs(t, res.Err, domain.ErrNoCredential)
	assert.Equal(t, []string{"BK-3"}, codes(f.cache.Bookings()))
	assert.Empty(t, f.gw.FetchCalls())
}

func TestCancelIsLocal(t *testing.T) {
	f := newFixture(t, "token")
	f.serve(page("BK-1", "BK-2"))
	ctx := context.Background()
	f.cache.Refresh(ctx, false)

	b, err := f.cache.Cancel(ctx, "BK-2")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, b.Status)

	got, ok := f.cache.Get("BK-2")
	require.True(t, ok)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	assert.Empty(t, f.gw.MutateCalls())
	assert.Zero(t, f.gw.SubmitCalls())

	data, err := f.store.Get(ctx, store.KeyBookings)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"cancelled"`)

	_, err = f.cache.Cancel(ctx, "BK-404")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRestoreReadsStoreOnly(t *testing.T) {
	f := newFixture(t, "token")
	f.seedStore(t, "BK-7", "BK-8")
	f.serve(page("BK-9"))
	ctx := context.Background()

	res := f.cache.Restore(ctx)
	assert.Equal(t, ServedStore, res.Source)
	assert.Equal(t, 2, res.Count)
	assert.Empty(t, f.gw.FetchCalls())
	assert.True(t, f.cache.LastFetchAt().IsZero())

	res = f.cache.Refresh(ctx, false)
	assert.Equal(t, Fetched, res.Source)
	assert.Equal(t, []string{"BK-9"}, codes(f.cache.Bookings()))
}

// stallingStore reads the snapshot, then holds the result until released.
type stallingStore struct {
	*store.Memory
	entered chan struct{}
	release chan struct{}
}

func (s *stallingStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.Memory.Get(ctx, key)
	s.entered <- struct{}{}
	<-s.release
	return data, err
}

func TestStaleStoreReadDoesNotOverwriteFetch(t *testing.T) {
	f := newFixture(t, "token")
	stalling := &stallingStore{
		Memory:  f.store,
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	cache := New(f.gw, stalling, credentials.NewStatic("token"), normalize.NewDefault(), logger.NewNop(),
		Options{Window: 30 * time.Second, Now: f.clock.Now})
	ctx := context.Background()

	f.serve(page())
	require.Equal(t, Fetched, cache.Refresh(ctx, false).Source)

	done := make(chan RefreshResult, 1)
	go func() { done <- cache.Refresh(ctx, false) }()
	<-stalling.entered

	f.serve(page("BK-1"))
	require.Equal(t, Fetched, cache.Refresh(ctx, true).Source)

	close(stalling.release)
	res := <-done
	assert.Equal(t, ServedStore, res.Source)
	assert.Equal(t, 1, res.Count)

	assert.Equal(t, []string{"BK-1"}, codes(cache.Bookings()))
	stored, err := f.store.Get(ctx, store.KeyBookings)
	require.NoError(t, err)
	assert.Contains(t, string(stored), "BK-1")
}

func TestStaleStoreReadDoesNotUndoCancel(t *testing.T) {
	f := newFixture(t, "token")
	stalling := &stallingStore{
		Memory:  f.store,
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	cache := New(f.gw, stalling, credentials.NewStatic("token"), normalize.NewDefault(), logger.NewNop(),
		Options{Window: 30 * time.Second, Now: f.clock.Now})
	ctx := context.Background()

	f.serve(page("BK-1"))
	require.Equal(t, Fetched, cache.Refresh(ctx, false).Source)

	done := make(chan RefreshResult, 1)
	go func() { done <- cache.Restore(ctx) }()
	<-stalling.entered

	_, err := cache.Cancel(ctx, "BK-1")
	require.NoError(t, err)

	close(stalling.release)
	<-done

	b, ok := cache.Get("BK-1")
	require.True(t, ok)
	assert.Equal(t, domain.StatusCancelled, b.Status)
}
