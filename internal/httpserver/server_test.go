package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/tripsync/internal/bookings"
	"github.com/MrSnakeDoc/tripsync/internal/config"
	"github.com/MrSnakeDoc/tripsync/internal/credentials"
	"github.com/MrSnakeDoc/tripsync/internal/domain"
	"github.com/MrSnakeDoc/tripsync/internal/favorites"
	"github.com/MrSnakeDoc/tripsync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/tripsync/internal/httpserver/routes"
	"github.com/MrSnakeDoc/tripsync/internal/listings"
	"github.com/MrSnakeDoc/tripsync/internal/logger"
	"github.com/MrSnakeDoc/tripsync/internal/normalize"
	"github.com/MrSnakeDoc/tripsync/internal/store"
	"github.com/MrSnakeDoc/tripsync/internal/testutil"
)

type env struct {
	handler http.Handler
	store   *store.Memory
	deps    deps.Deps
}

func newEnv(t *testing.T) *env {
	t.Helper()
	log := logger.NewNop()
	gw := &testutil.FakeGateway{
		FetchFunc: func(context.Context, string, domain.Params) (*domain.Page, error) {
			return &domain.Page{TotalPages: 1, Data: []domain.Raw{
				{"code": "BK-1", "status": "confirmed"},
				{"code": "BK-2", "status": "pending"},
			}}, nil
		},
	}
	st := store.NewMemory()
	creds := credentials.NewStatic("token")
	n := normalize.NewDefault()

	d := deps.Deps{
		Logger:        log,
		StartTime:     time.Now().Add(-time.Minute),
		Version:       "test",
		Store:         st,
		StoreDriver:   config.StoreMemory,
		Bookings:      bookings.New(gw, st, creds, n, log, bookings.Options{}),
		Favorites:     favorites.New(gw, st, creds, log, nil),
		Listings:      listings.New(gw, n, log, 0),
		ReloadTrigger: make(chan struct{}, 1),
	}
	srv := New(&config.Config{ListenPort: ":0"}, log, d)
	return &env{handler: srv.Handler(), store: st, deps: d}
}

func (e *env) do(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	decode(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["build"].(map[string]any)["version"])
	assert.Greater(t, body["uptime_seconds"].(float64), 0.0)
}

func TestReadyz(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/readyz").Code)

	e.store.SetFailure(assert.AnError)
	assert.Equal(t, http.StatusServiceUnavailable, e.do(t, http.MethodGet, "/readyz").Code)
}

func TestReloadQueuesOnce(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, http.StatusAccepted, e.do(t, http.MethodPost, "/reload").Code)
	assert.Equal(t, http.StatusTooManyRequests, e.do(t, http.MethodPost, "/reload").Code)

	<-e.deps.ReloadTrigger
	assert.Equal(t, http.StatusAccepted, e.do(t, http.MethodPost, "/reload").Code)
}

func TestInfra(t *testing.T) {
	e := newEnv(t)

	var before struct {
		Mode string `json:"mode"`
	}
	decode(t, e.do(t, http.MethodGet, "/infra"), &before)
	assert.Equal(t, "offline", before.Mode)

	e.deps.Bookings.Refresh(context.Background(), true)

	var after struct {
		Mode       string `json:"mode"`
		Components map[string]struct {
			OK     bool   `json:"ok"`
			Count  *int   `json:"count"`
			Driver string `json:"driver"`
		} `json:"components"`
	}
	decode(t, e.do(t, http.MethodGet, "/infra"), &after)
	assert.Equal(t, "online", after.Mode)
	assert.Equal(t, 2, *after.Components["bookings"].Count)
	assert.Equal(t, "memory", after.Components["store"].Driver)
}

func TestBookingsEndpoints(t *testing.T) {
	e := newEnv(t)
	e.deps.Bookings.Refresh(context.Background(), true)

	var all struct {
		Bookings []domain.Booking `json:"bookings"`
		Total    int              `json:"total"`
	}
	decode(t, e.do(t, http.MethodGet, "/bookings"), &all)
	assert.Equal(t, 2, all.Total)

	var pending struct {
		Bookings []domain.Booking `json:"bookings"`
	}
	decode(t, e.do(t, http.MethodGet, "/bookings?status=unpaid"), &pending)
	require.Len(t, pending.Bookings, 1)
	assert.Equal(t, "BK-2", pending.Bookings[0].BookingID)

	rec := e.do(t, http.MethodGet, "/bookings/BK-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/bookings/BK-404").Code)
}

func TestFavoritesEndpoint(t *testing.T) {
	e := newEnv(t)
	e.deps.Favorites.Add(context.Background(), 42, domain.KindHotel).Wait()

	var body struct {
		Favorites []domain.FavoriteMark `json:"favorites"`
		Total     int                   `json:"total"`
	}
	decode(t, e.do(t, http.MethodGet, "/favorites"), &body)
	require.Equal(t, 1, body.Total)
	assert.Equal(t, int64(42), body.Favorites[0].EntityID)
}

func TestListingsEndpointEmpty(t *testing.T) {
	e := newEnv(t)
	var body struct {
		Listings []domain.Listing `json:"listings"`
		Total    int              `json:"total"`
	}
	decode(t, e.do(t, http.MethodGet, "/listings"), &body)
	assert.Zero(t, body.Total)
	assert.NotNil(t, body.Listings)
}

func TestRouteGroups(t *testing.T) {
	assert.ElementsMatch(t, []string{"status", "reload", "collections"}, routes.Groups())
}

func TestReloadRejectsNonJSONBody(t *testing.T) {
	e := newEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/reload", strings.NewReader("now please"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Empty(t, e.deps.ReloadTrigger)
}

func TestStartStop(t *testing.T) {
	e := newEnv(t)
	srv := New(&config.Config{ListenPort: "127.0.0.1:0"}, logger.NewNop(), e.deps)
	assert.Nil(t, srv.Addr())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	require.Eventually(t, func() bool { return srv.Addr() != nil }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + srv.Addr().String() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
	require.NoError(t, <-errCh)
}
