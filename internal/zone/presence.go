package zone

import (
	"sort"

	"github.com/ayusman/rtspwatch/internal/detector"
)

// IDSet is a set of tracker identities.
type IDSet map[int]struct{}

// NewIDSet builds a set from ids.
func NewIDSet(ids ...int) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts id.
func (s IDSet) Add(id int) {
	s[id] = struct{}{}
}

// Has reports whether id is in the set.
func (s IDSet) Has(id int) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the members in ascending order.
func (s IDSet) Sorted() []int {
	ids := make([]int, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// PresenceTracker counts the tracked people considered inside the zone.
// Each frame, people no longer visible anywhere are dropped and people
// newly seen inside are added. A person stays counted after stepping out
// of the zone for as long as they remain visible.
//
// Known limitation: if a person's track ID changes while inside the zone
// and the new ID is not seen inside, they drop out of the count.
type PresenceTracker struct {
	active IDSet
}

// NewPresenceTracker creates an empty tracker.
func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{active: IDSet{}}
}

// Update applies one frame and returns the occupancy count.
// active = (active ∩ visible) ∪ inside.
func (t *PresenceTracker) Update(visible, inside IDSet) int {
	next := make(IDSet, len(t.active)+len(inside))
	for id := range t.active {
		if visible.Has(id) {
			next.Add(id)
		}
	}
	for id := range inside {
		next.Add(id)
	}
	t.active = next
	return len(t.active)
}

// Count returns the current occupancy.
func (t *PresenceTracker) Count() int {
	return len(t.active)
}

// Active returns the tracked identities, ascending.
func (t *PresenceTracker) Active() []int {
	return t.active.Sorted()
}

// Reset empties the tracker.
func (t *PresenceTracker) Reset() {
	t.active = IDSet{}
}

// Detection is one person detection classified against the zone.
type Detection struct {
	Person detector.Person
	Inside bool
}

// SplitTracks classifies detections against the polygon. It returns the set
// of visible tracked IDs, the set of tracked IDs inside the zone and the
// per-detection classification. Detections without a track ID are classified
// but never enter either set.
func SplitTracks(people []detector.Person, polygon Polygon) (visible, inside IDSet, detections []Detection) {
	visible = IDSet{}
	inside = IDSet{}
	detections = make([]Detection, 0, len(people))

	for _, p := range people {
		in := polygon.Contains(p.Center())
		detections = append(detections, Detection{Person: p, Inside: in})

		if !p.Tracked() {
			continue
		}
		visible.Add(p.TrackID)
		if in {
			inside.Add(p.TrackID)
		}
	}
	return visible, inside, detections
}
