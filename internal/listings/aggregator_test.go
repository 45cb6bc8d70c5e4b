package listings

import (
	"context"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/tripsync/internal/domain"
	"github.com/MrSnakeDoc/tripsync/internal/logger"
	"github.com/MrSnakeDoc/tripsync/internal/normalize"
	"github.com/MrSnakeDoc/tripsync/internal/testutil"
)

func records(title string, ids ...int) []domain.Raw {
	out := make([]domain.Raw, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Raw{"id": float64(id), "title": title})
	}
	return out
}

// pagedGateway serves pages by number; a nil entry fails.
func pagedGateway(pages map[int][]domain.Raw) *testutil.FakeGateway {
	return &testutil.FakeGateway{
		FetchFunc: func(_ context.Context, _ string, params domain.Params) (*domain.Page, error) {
			n, _ := strconv.Atoi(params[ParamPage])
			data, ok := pages[n]
			if !ok || data == nil {
				return nil, domain.NewError(domain.KindServerError, "fetch listings", "page "+params[ParamPage]+" unavailable", nil)
			}
			return &domain.Page{Total: 100, TotalPages: len(pages), Data: data}, nil
		},
	}
}

func ids(listings []domain.Listing) []int64 {
	out := make([]int64, 0, len(listings))
	for _, l := range listings {
		out = append(out, l.ID)
	}
	return out
}

func newAggregator(gw *testutil.FakeGateway) *Aggregator {
	return New(gw, normalize.NewDefault(), logger.NewNop(), 0)
}

func TestFetchAllDedupesOverlap(t *testing.T) {
	gw := pagedGateway(map[int][]domain.Raw{
		1: records("first", 1, 2, 3),
		2: records("second", 3, 4, 5),
	})
	agg := newAggregator(gw)

	res, err := agg.FetchAll(context.Background(), domain.Params{ParamKind: "hotel"})
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2, 3, 4, 5}, ids(res.Listings))
	assert.Equal(t, 5, res.Total)
	assert.Empty(t, res.FailedPages)

	// Later page wins, first position kept.
	assert.Equal(t, "second", res.Listings[2].Title)
	assert.Equal(t, res.Listings, agg.Listings())
}

func TestFetchAllSinglePage(t *testing.T) {
	gw := pagedGateway(map[int][]domain.Raw{1: records("only", 7, 8)})

	res, err := newAggregator(gw).FetchAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 8}, ids(res.Listings))
	assert.Len(t, gw.FetchCalls(), 1)
}

func TestFetchAllForwardsParams(t *testing.T) {
	gw := pagedGateway(map[int][]domain.Raw{
		1: records("a", 1),
		2: records("b", 2),
	})
	params := domain.Params{ParamKind: "car", "location_id": "12"}

	_, err := New(gw, normalize.NewDefault(), logger.NewNop(), 50).FetchAll(context.Background(), params)
	require.NoError(t, err)

	calls := gw.FetchCalls()
	require.Len(t, calls, 2)
	for _, c := range calls {
		assert.Equal(t, "car", c.Params[ParamKind])
		assert.Equal(t, "12", c.Params["location_id"])
		assert.Equal(t, "50", c.Params[ParamPerPage])
	}
	assert.NotContains(t, params, ParamPage)
}

func TestFetchAllFirstPageFatal(t *testing.T) {
	gw := pagedGateway(map[int][]domain.Raw{1: nil, 2: records("b", 2)})
	agg := newAggregator(gw)

	res, err := agg.FetchAll(context.Background(), nil)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, domain.ErrFirstPageFailed)
	assert.Equal(t, domain.KindServerError, domain.KindOf(err))
	assert.Empty(t, agg.Listings())
	assert.Len(t, gw.FetchCalls(), 1)
}

func TestFetchAllToleratesLaterPageFailure(t *testing.T) {
	gw := pagedGateway(map[int][]domain.Raw{
		1: records("a", 1, 2),
		2: nil,
		3: records("c", 5, 6),
	})

	res, err := newAggregator(gw).FetchAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 5, 6}, ids(res.Listings))
	assert.Equal(t, []int{2}, res.FailedPages)
	assert.Equal(t, 4, res.Total)
}

func TestDedupeKeepsListingsWithoutID(t *testing.T) {
	in := []domain.Listing{{ID: 0, Title: "a"}, {ID: 0, Title: "b"}, {ID: 4}}
	assert.Len(t, dedupe(in), 3)
}

func TestFetchAllCapsAdvertisedPages(t *testing.T) {
	gw := &testutil.FakeGateway{
		FetchFunc: func(_ context.Context, _ string, params domain.Params) (*domain.Page, error) {
			n, _ := strconv.Atoi(params[ParamPage])
			return &domain.Page{TotalPages: 1 << 30, Data: records("page", n)}, nil
		},
	}
	agg := newAggregator(gw)

	res, err := agg.FetchAll(context.Background(), nil)
	require.NoError(t, err)

	assert.Len(t, gw.FetchCalls(), MaxPages)
	assert.Equal(t, MaxPages, res.Total)
	assert.Empty(t, res.FailedPages)
}

func TestFetchAllBoundsConcurrency(t *testing.T) {
	var running, peak atomic.Int32
	gw := &testutil.FakeGateway{
		FetchFunc: func(_ context.Context, _ string, params domain.Params) (*domain.Page, error) {
			n, _ := strconv.Atoi(params[ParamPage])
			if n > 1 {
				cur := running.Add(1)
				defer running.Add(-1)
				for {
					p := peak.Load()
					if cur <= p || peak.CompareAndSwap(p, cur) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
			}
			return &domain.Page{TotalPages: 50, Data: records("page", n)}, nil
		},
	}
	agg := newAggregator(gw)

	res, err := agg.FetchAll(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 50, res.Total)
	assert.LessOrEqual(t, peak.Load(), int32(maxConcurrentPages))
	assert.Positive(t, peak.Load())
}
