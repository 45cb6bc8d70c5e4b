package favorites

import (
	"github.com/MrSnakeDoc/tripsync/internal/gateway"
)

// Outcome is how a mutation settled once the remote answered.
type Outcome int

const (
	// Applied: the remote accepted the mutation, local state stands.
	Applied Outcome = iota
	// RolledBack: the remote rejected it and local state was restored.
	RolledBack
	// KeptLocal: the user is not signed in; the mutation stays local only.
	KeptLocal
	// Noop: the mutation did not change anything and was not sent.
	Noop
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case RolledBack:
		return "rolled_back"
	case KeptLocal:
		return "kept_local"
	case Noop:
		return "noop"
	default:
		return "unknown"
	}
}

// Result describes a settled mutation. Err is the classified remote error
// for RolledBack and KeptLocal outcomes.
type Result struct {
	Op       gateway.Op
	EntityID int64
	Outcome  Outcome
	Err      error
}

// Pending is a mutation already committed locally whose remote call may
// still be running.
type Pending struct {
	done   chan struct{}
	result Result
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func settled(r Result) *Pending {
	p := newPending()
	p.resolve(r)
	return p
}

func (p *Pending) resolve(r Result) {
	p.result = r
	close(p.done)
}

// Done is closed once the mutation has settled.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the mutation settles and returns its result.
func (p *Pending) Wait() Result {
	<-p.done
	return p.result
}
