// Package testutil holds test doubles shared by the engine packages.
package testutil

import (
	"context"
	"sync"

	"github.com/MrSnakeDoc/tripsync/internal/domain"
	"github.com/MrSnakeDoc/tripsync/internal/gateway"
)

// MutateCall records one Mutate invocation.
type MutateCall struct {
	Kind    string
	Op      gateway.Op
	Payload gateway.MutatePayload
}

// FetchCall records one FetchCollection invocation.
type FetchCall struct {
	Kind   string
	Params domain.Params
}

// FakeGateway is a scriptable gateway.Gateway. Nil funcs succeed with an
// empty result.
type FakeGateway struct {
	FetchFunc  func(ctx context.Context, kind string, params domain.Params) (*domain.Page, error)
	MutateFunc func(ctx context.Context, kind string, op gateway.Op, payload gateway.MutatePayload) (*gateway.MutateResult, error)
	SubmitFunc func(ctx context.Context, kind string, payload map[string]any) (*gateway.SubmitResult, error)

	mu      sync.Mutex
	fetches []FetchCall
	mutates []MutateCall
	submits []map[string]any
}

var _ gateway.Gateway = (*FakeGateway)(nil)

func (g *FakeGateway) FetchCollection(ctx context.Context, kind string, params domain.Params) (*domain.Page, error) {
	g.mu.Lock()
	g.fetches = append(g.fetches, FetchCall{Kind: kind, Params: params.Clone()})
	fn := g.FetchFunc
	g.mu.Unlock()

	if fn == nil {
		return &domain.Page{TotalPages: 1}, nil
	}
	return fn(ctx, kind, params)
}

func (g *FakeGateway) Mutate(ctx context.Context, kind string, op gateway.Op, payload gateway.MutatePayload) (*gateway.MutateResult, error) {
	g.mu.Lock()
	g.mutates = append(g.mutates, MutateCall{Kind: kind, Op: op, Payload: payload})
	fn := g.MutateFunc
	g.mu.Unlock()

	if fn == nil {
		return &gateway.MutateResult{Success: true}, nil
	}
	return fn(ctx, kind, op, payload)
}

func (g *FakeGateway) Submit(ctx context.Context, kind string, payload map[string]any) (*gateway.SubmitResult, error) {
	g.mu.Lock()
	g.submits = append(g.submits, payload)
	fn := g.SubmitFunc
	g.mu.Unlock()

	if fn == nil {
		return &gateway.SubmitResult{Success: true}, nil
	}
	return fn(ctx, kind, payload)
}

// FetchCalls returns the recorded fetches.
func (g *FakeGateway) FetchCalls() []FetchCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]FetchCall(nil), g.fetches...)
}

// MutateCalls returns the recorded mutations.
func (g *FakeGateway) MutateCalls() []MutateCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]MutateCall(nil), g.mutates...)
}

// SubmitCalls returns the number of submissions.
func (g *FakeGateway) SubmitCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.submits)
}
