package selection

import (
	"github.com/vocalab/vococode-go/internal/datastore"
)

// Intersects reports whether the segment's time range intersects the
// exclusion window. Touching endpoints do not count as intersection.
//
// Any intersection disqualifies a segment from sampling, not only full
// containment: a segment half inside a nap window is just as unusable for
// coding as one fully inside it.
func Intersects(segment *datastore.Segment, window *datastore.ExclusionWindow) bool {
	return segment.StartTime < window.EndTime && window.StartTime < segment.EndTime
}

// FilterExcluded returns the segments that do not intersect any of the given
// exclusion windows. Order is preserved.
func FilterExcluded(segments []datastore.Segment, windows []datastore.ExclusionWindow) []datastore.Segment {
	if len(windows) == 0 {
		return segments
	}

	candidates := make([]datastore.Segment, 0, len(segments))
	for i := range segments {
		excluded := false
		for j := range windows {
			if Intersects(&segments[i], &windows[j]) {
				excluded = true
				break
			}
		}
		if !excluded {
			candidates = append(candidates, segments[i])
		}
	}
	return candidates
}
