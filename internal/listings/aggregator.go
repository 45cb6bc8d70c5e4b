// Package listings aggregates every page of a remote listing collection
// into one deduplicated result.
package listings

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/MrSnakeDoc/tripsync/internal/domain"
	"github.com/MrSnakeDoc/tripsync/internal/gateway"
	"github.com/MrSnakeDoc/tripsync/internal/logger"
	"github.com/MrSnakeDoc/tripsync/internal/normalize"
)

// Query parameters understood by the listings endpoint.
const (
	ParamPage    = "page"
	ParamPerPage = "per_page"
	ParamKind    = "service_type"
)

// DefaultPageSize keeps most collections to a single round-trip.
const DefaultPageSize = 100

// MaxPages caps the page count a server can make us fetch. Pages past it
// are not requested.
const MaxPages = 1000

// maxConcurrentPages bounds the page fetches running at once.
const maxConcurrentPages = 8

// Result is an aggregated collection. Total is the number of listings
// after deduplication, not the count the server advertised.
type Result struct {
	Listings    []domain.Listing
	Total       int
	FailedPages []int
}

// Aggregator fetches listings and owns the last collection it built.
type Aggregator struct {
	gateway    gateway.Gateway
	normalizer *normalize.Normalizer
	logger     logger.Logger
	pageSize   int

	mu   sync.RWMutex
	last []domain.Listing
}

// New creates an aggregator. A pageSize <= 0 uses DefaultPageSize.
func New(gw gateway.Gateway, n *normalize.Normalizer, log logger.Logger, pageSize int) *Aggregator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Aggregator{
		gateway:    gw,
		normalizer: n,
		logger:     log,
		pageSize:   pageSize,
		last:       []domain.Listing{},
	}
}

type pageResult struct {
	number int
	data   []domain.Raw
	err    error
}

// FetchAll fetches page 1, then every remaining page concurrently. Only a
// page 1 failure is fatal; other failed pages contribute nothing and are
// listed in the result.
func (a *Aggregator) FetchAll(ctx context.Context, params domain.Params) (*Result, error) {
	first, err := a.fetchPage(ctx, params, 1)
	if err != nil {
		a.logger.Warn("listings first page failed", logger.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrFirstPageFailed, err)
	}

	total := first.TotalPages
	if total > MaxPages {
		a.logger.Warn("listings page count capped",
			logger.Int("advertised", total),
			logger.Int("max", MaxPages))
		total = MaxPages
	}

	pages := []pageResult{{number: 1, data: first.Data}}
	if total > 1 {
		rest := make([]pageResult, total-1)

		sem := make(chan struct{}, maxConcurrentPages)
		var wg sync.WaitGroup
		for i := range rest {
			i := i
			number := i + 2
			sem <- struct{}{}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				p, err := a.fetchPage(ctx, params, number)
				rest[i] = pageResult{number: number, err: err}
				if err == nil {
					rest[i].data = p.Data
				}
			}()
		}
		wg.Wait()

		pages = append(pages, rest...)
	}

	res := &Result{}
	var raws []domain.Raw
	for _, p := range pages {
		if p.err != nil {
			a.logger.Warn("listings page failed, skipping",
				logger.Int("page", p.number),
				logger.String("kind", domain.KindOf(p.err).String()),
				logger.Error(p.err))
			res.FailedPages = append(res.FailedPages, p.number)
			continue
		}
		raws = append(raws, p.data...)
	}

	res.Listings = dedupe(a.normalizer.Listings(raws))
	res.Total = len(res.Listings)

	a.mu.Lock()
	a.last = res.Listings
	a.mu.Unlock()

	a.logger.Info("listings aggregated",
		logger.Int("pages", len(pages)),
		logger.Int("failed", len(res.FailedPages)),
		logger.Int("total", res.Total))
	return res, nil
}

func (a *Aggregator) fetchPage(ctx context.Context, params domain.Params, number int) (*domain.Page, error) {
	q := params.Clone()
	q[ParamPage] = strconv.Itoa(number)
	q[ParamPerPage] = strconv.Itoa(a.pageSize)
	return a.gateway.FetchCollection(ctx, gateway.KindListings, q)
}

// Listings returns the collection built by the last successful FetchAll.
func (a *Aggregator) Listings() []domain.Listing {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]domain.Listing, len(a.last))
	copy(out, a.last)
	return out
}

// dedupe collapses listings sharing an id. The later record wins but
// keeps the position of the first one. Listings without an id are kept.
func dedupe(in []domain.Listing) []domain.Listing {
	out := make([]domain.Listing, 0, len(in))
	index := make(map[int64]int, len(in))
	for _, l := range in {
		if l.ID == 0 {
			out = append(out, l)
			continue
		}
		if i, ok := index[l.ID]; ok {
			out[i] = l
			continue
		}
		index[l.ID] = len(out)
		out = append(out, l)
	}
	return out
}
