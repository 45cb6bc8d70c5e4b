package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/tripsync/internal/credentials"
	"github.com/MrSnakeDoc/tripsync/internal/domain"
	"github.com/MrSnakeDoc/tripsync/internal/logger"
)

func newBackend(t *testing.T, register func(r chi.Router)) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func newGateway(t *testing.T, baseURL, token string) *HTTPGateway {
	t.Helper()
	g, err := NewHTTP(Options{BaseURL: baseURL + "/api"}, credentials.NewStatic(token), logger.NewNop())
	require.NoError(t, err)
	return g
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewHTTP_InvalidBaseURL(t *testing.T) {
	_, err := NewHTTP(Options{BaseURL: "not a url"}, credentials.NewStatic("t"), logger.NewNop())
	assert.Error(t, err)
}

func TestFetchCollection(t *testing.T) {
	var gotAuth, gotReqID, gotPage string
	srv := newBackend(t, func(r chi.Router) {
		r.Get("/api/listings", func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			gotReqID = r.Header.Get("X-Request-ID")
			gotPage = r.URL.Query().Get("page")
			writeJSON(w, http.StatusOK, map[string]any{
				"data":       []map[string]any{{"id": 1}, {"id": 2}},
				"total":      5,
				"totalPages": 3,
			})
		})
	})

	page, err := newGateway(t, srv.URL, "secret").FetchCollection(context.Background(), KindListings, domain.Params{"page": "2"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret", gotAuth)
	assert.NotEmpty(t, gotReqID)
	assert.Equal(t, "2", gotPage)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 3, page.TotalPages)
	assert.Len(t, page.Data, 2)
}

func TestFetchCollection_DerivesTotalPages(t *testing.T) {
	srv := newBackend(t, func(r chi.Router) {
		r.Get("/api/bookings", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"rows":  []map[string]any{{"code": "A"}, {"code": "B"}},
				"total": 5,
			})
		})
	})

	page, err := newGateway(t, srv.URL, "t").FetchCollection(context.Background(), KindBookings, domain.Params{"per_page": "2"})
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalPages)
}

func TestFetchCollection_NoCredential(t *testing.T) {
	called := false
	srv := newBackend(t, func(r chi.Router) {
		r.Get("/api/bookings", func(w http.ResponseWriter, r *http.Request) { called = true })
	})

	_, err := newGateway(t, srv.URL, "").FetchCollection(context.Background(), KindBookings, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNoCredential))
	assert.Equal(t, domain.KindUnauthenticated, domain.KindOf(err))
	assert.False(t, called, "no request without a credential")
}

func TestClassification(t *testing.T) {
	tests := []struct {
		status int
		want   domain.Kind
	}{
		{http.StatusUnauthorized, domain.KindUnauthenticated},
		{http.StatusForbidden, domain.KindUnauthenticated},
		{http.StatusUnprocessableEntity, domain.KindValidation},
		{http.StatusNotFound, domain.KindNotFound},
		{http.StatusInternalServerError, domain.KindServerError},
		{http.StatusBadGateway, domain.KindServerError},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := newBackend(t, func(r chi.Router) {
				r.Post("/api/favorites/add", func(w http.ResponseWriter, r *http.Request) {
					writeJSON(w, tt.status, map[string]any{"message": "nope"})
				})
			})

			_, err := newGateway(t, srv.URL, "t").Mutate(context.Background(), KindFavorites, OpAdd, MutatePayload{EntityID: 1, EntityKind: domain.KindHotel})
			require.Error(t, err)
			assert.Equal(t, tt.want, domain.KindOf(err))
		})
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newGateway(t, url, "t").FetchCollection(context.Background(), KindBookings, nil)
	require.Error(t, err)
	assert.Equal(t, domain.KindNetworkError, domain.KindOf(err))
}

func TestMutate_Payload(t *testing.T) {
	var got MutatePayload
	srv := newBackend(t, func(r chi.Router) {
		r.Post("/api/favorites/remove", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&got)
			w.WriteHeader(http.StatusNoContent)
		})
	})

	res, err := newGateway(t, srv.URL, "t").Mutate(context.Background(), KindFavorites, OpRemove, MutatePayload{EntityID: 42, EntityKind: domain.KindCar})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, MutatePayload{EntityID: 42, EntityKind: domain.KindCar}, got)
}

func TestSubmit_ValidationErrors(t *testing.T) {
	var idemKey string
	srv := newBackend(t, func(r chi.Router) {
		r.Post("/api/checkout", func(w http.ResponseWriter, r *http.Request) {
			idemKey = r.Header.Get("Idempotency-Key")
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"message": "The given data was invalid.",
				"errors":  map[string][]string{"email": {"The email field is required."}},
			})
		})
	})

	_, err := newGateway(t, srv.URL, "t").Submit(context.Background(), KindCheckout, map[string]any{"code": "BK-1"})
	require.Error(t, err)

	assert.Equal(t, "BK-1", idemKey)
	e := domain.AsError(err)
	assert.Equal(t, domain.KindValidation, e.Kind)
	assert.Equal(t, "The email field is required.", e.FieldMessages("; "))
}

func TestSubmit_DataVariants(t *testing.T) {
	srv := newBackend(t, func(r chi.Router) {
		r.Post("/api/cart", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"success": true,
				"data":    map[string]any{"booking_code": "BK-9", "url": "https://pay.example/checkout"},
			})
		})
	})

	res, err := newGateway(t, srv.URL, "t").Submit(context.Background(), KindCart, map[string]any{"service_id": 1})
	require.NoError(t, err)
	require.NotNil(t, res.Data)
	assert.True(t, res.Success)
	assert.True(t, res.HasPayload())
	assert.Equal(t, "BK-9", res.Data.Code)
	assert.Equal(t, "https://pay.example/checkout", res.Data.RedirectURL)
}
