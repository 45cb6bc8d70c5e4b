package domain

import (
	"fmt"
	"strings"
	"time"
)

// EntityKind is the marketplace vertical an entity belongs to.
type EntityKind string

const (
	KindHotel  EntityKind = "hotel"
	KindCar    EntityKind = "car"
	KindSpace  EntityKind = "space"
	KindTour   EntityKind = "tour"
	KindEvent  EntityKind = "event"
	KindFlight EntityKind = "flight"
	KindBoat   EntityKind = "boat"
)

var entityKinds = []EntityKind{KindHotel, KindCar, KindSpace, KindTour, KindEvent, KindFlight, KindBoat}

// EntityKinds returns every supported kind in a stable order.
func EntityKinds() []EntityKind {
	out := make([]EntityKind, len(entityKinds))
	copy(out, entityKinds)
	return out
}

// ParseEntityKind accepts a kind case-insensitively.
func ParseEntityKind(s string) (EntityKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, k := range entityKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown entity kind %q", s)
}

// FavoriteMark records that the user favorited an entity.
// An entity can be favorited at most once, whatever its kind.
type FavoriteMark struct {
	EntityID   int64      `json:"entityId"`
	EntityKind EntityKind `json:"entityKind"`
	AddedAt    time.Time  `json:"addedAt"`
}
