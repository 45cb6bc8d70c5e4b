package favorites

import (
	"time"

	"github.com/MrSnakeDoc/tripsync/internal/domain"
	"github.com/MrSnakeDoc/tripsync/internal/gateway"
)

type mutation struct {
	op   gateway.Op
	mark domain.FavoriteMark
	// removed holds what remove and clear took out, for inversion.
	removed []domain.FavoriteMark
	// version is the engine version this mutation committed at.
	version uint64
}

// apply returns the collection after m. marks is owned by the caller.
func (m *mutation) apply(marks []domain.FavoriteMark, now time.Time) ([]domain.FavoriteMark, bool) {
	switch m.op {
	case gateway.OpAdd:
		if indexOf(marks, m.mark.EntityID) >= 0 {
			return marks, false
		}
		m.mark.AddedAt = now
		return append(marks, m.mark), true

	case gateway.OpRemove:
		i := indexOf(marks, m.mark.EntityID)
		if i < 0 {
			return marks, false
		}
		m.mark = marks[i]
		m.removed = []domain.FavoriteMark{marks[i]}
		return append(marks[:i:i], marks[i+1:]...), true

	case gateway.OpClear:
		if len(marks) == 0 {
			return marks, false
		}
		m.removed = marks
		return []domain.FavoriteMark{}, true
	}
	return marks, false
}

// invert undoes m on a collection that may contain later mutations. An
// add only takes out the mark it created: origin maps each entity to the
// version of the add that produced its current mark.
func (m *mutation) invert(marks []domain.FavoriteMark, origin map[int64]uint64) []domain.FavoriteMark {
	if m.op == gateway.OpAdd {
		if origin[m.mark.EntityID] != m.version {
			return marks
		}
		if i := indexOf(marks, m.mark.EntityID); i >= 0 {
			return append(marks[:i:i], marks[i+1:]...)
		}
		return marks
	}
	for _, r := range m.removed {
		if indexOf(marks, r.EntityID) < 0 {
			marks = append(marks, r)
		}
	}
	return marks
}

func (m *mutation) payload() gateway.MutatePayload {
	return gateway.MutatePayload{EntityID: m.mark.EntityID, EntityKind: m.mark.EntityKind}
}

func (m *mutation) result(o Outcome, err error) Result {
	return Result{Op: m.op, EntityID: m.mark.EntityID, Outcome: o, Err: err}
}

func indexOf(marks []domain.FavoriteMark, entityID int64) int {
	for i, m := range marks {
		if m.EntityID == entityID {
			return i
		}
	}
	return -1
}

func clone(marks []domain.FavoriteMark) []domain.FavoriteMark {
	out := make([]domain.FavoriteMark, len(marks))
	copy(out, marks)
	return out
}

// dedupe keeps the first mark of each entity.
func dedupe(marks []domain.FavoriteMark) []domain.FavoriteMark {
	out := make([]domain.FavoriteMark, 0, len(marks))
	seen := make(map[int64]bool, len(marks))
	for _, m := range marks {
		if seen[m.EntityID] {
			continue
		}
		seen[m.EntityID] = true
		out = append(out, m)
	}
	return out
}
