// Package checkout drives the two-phase booking flow and makes sure a
// booking code is never submitted twice at the same time.
package checkout

import (
	"context"
	"sync"

	"github.com/MrSnakeDoc/tripsync/internal/domain"
	"github.com/MrSnakeDoc/tripsync/internal/gateway"
	"github.com/MrSnakeDoc/tripsync/internal/logger"
)

// User-facing failure messages.
const (
	MsgGenericFailure  = "Something went wrong while processing your payment. Please try again."
	MsgUnauthenticated = "Please sign in to complete your booking."
)

// Operation performs the guarded submission.
type Operation func(ctx context.Context) (*gateway.SubmitResult, error)

// Result is the interpreted outcome of a guarded submission. Duplicate is
// set when the call was absorbed because the same key was in flight.
type Result struct {
	Success     bool
	Duplicate   bool
	Code        string
	RedirectURL string
	Message     string
	Err         error
}

// Guard tracks which keys have a submission in flight.
type Guard struct {
	logger logger.Logger

	mu     sync.Mutex
	active map[string]struct{}
}

func NewGuard(log logger.Logger) *Guard {
	return &Guard{logger: log, active: make(map[string]struct{})}
}

// Active reports whether key has a submission in flight.
func (g *Guard) Active(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.active[key]
	return ok
}

// SubmitOnce runs op unless a submission for key is already running, in
// which case it returns a success-shaped duplicate result at once. The key
// is released when op returns, whatever the outcome.
func (g *Guard) SubmitOnce(ctx context.Context, key string, op Operation) Result {
	g.mu.Lock()
	if _, busy := g.active[key]; busy {
		g.mu.Unlock()
		g.logger.Info("duplicate submission absorbed", logger.String("key", key))
		return Result{
			Success:   true,
			Duplicate: true,
			Code:      key,
			Err:       domain.NewError(domain.KindAlreadyInProgress, "checkout", "submission in progress", nil),
		}
	}
	g.active[key] = struct{}{}
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.active, key)
		g.mu.Unlock()
	}()

	res, err := op(ctx)
	out := interpret(key, res, err)
	if !out.Success {
		g.logger.Warn("submission failed",
			logger.String("key", key),
			logger.String("kind", domain.KindOf(out.Err).String()),
			logger.Error(out.Err))
	} else if res != nil && !res.HasPayload() {
		g.logger.Debug("submission accepted without payload", logger.String("key", key))
	}
	return out
}

// interpret turns a remote answer into a Result. A success flag is enough;
// the payload is optional.
func interpret(key string, res *gateway.SubmitResult, err error) Result {
	if err == nil && res == nil {
		err = domain.NewError(domain.KindServerError, "checkout", "empty response", nil)
	}
	if err != nil {
		return Result{Code: key, Message: Message(err), Err: err}
	}

	if res.Success {
		out := Result{Success: true, Code: key, Message: res.Message}
		if res.Data != nil {
			if res.Data.Code != "" {
				out.Code = res.Data.Code
			}
			out.RedirectURL = res.Data.RedirectURL
		}
		return out
	}

	e := &domain.Error{Kind: domain.KindServerError, Op: "checkout", Message: res.Message}
	if len(res.Errors) > 0 {
		e.Kind = domain.KindValidation
		e.Fields = res.Errors
	}
	return Result{Code: key, Message: Message(e), Err: e}
}

// Message is the text shown to the user for a failed submission.
func Message(err error) string {
	if err == nil {
		return ""
	}
	e := domain.AsError(err)
	if e == nil {
		return MsgGenericFailure
	}
	switch e.Kind {
	case domain.KindValidation:
		if msg := e.FieldMessages("; "); msg != "" {
			return msg
		}
		if e.Message != "" {
			return e.Message
		}
	case domain.KindUnauthenticated:
		return MsgUnauthenticated
	}
	return MsgGenericFailure
}
