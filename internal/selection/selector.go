// Package selection implements the two-tier segment sampling policy: the most
// active segments of a recording by child vocalization count, plus a uniform
// random draw from the remaining candidates.
package selection

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/vocalab/vococode-go/internal/datastore"
	"github.com/vocalab/vococode-go/internal/errors"
	"github.com/vocalab/vococode-go/internal/logging"
)

// Selector chooses which segments of a recording enter the rating pipeline.
type Selector struct {
	store  datastore.Interface
	rng    *rand.Rand
	logger *slog.Logger
}

// New creates a Selector backed by the given store.
func New(store datastore.Interface) *Selector {
	return &Selector{
		store:  store,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		logger: logging.ForService("selection"),
	}
}

// NewWithRand creates a Selector with a caller-supplied random source, used by
// tests that need a reproducible random draw.
func NewWithRand(store datastore.Interface, rng *rand.Rand) *Selector {
	s := New(store)
	s.rng = rng
	return s
}

// Select applies the sampling policy to one recording. The top
// highVolubilityCount candidates by activity metric are tagged
// high-volubility and randomCount more are drawn uniformly at random from the
// remainder, skipping any segment that intersects an exclusion window.
//
// Selection happens at most once per recording: when any segment is already
// selected the call is a successful no-op. When fewer candidates remain than
// highVolubilityCount+randomCount nothing is selected and the first return
// value is false. All flags are persisted in one transaction.
func (s *Selector) Select(ctx context.Context, recordingID uint, highVolubilityCount, randomCount int) (bool, error) {
	if highVolubilityCount < 0 || randomCount < 0 {
		return false, errors.Newf("selection counts must not be negative, got %d and %d",
			highVolubilityCount, randomCount).
			Component("selection").
			Category(errors.CategoryValidation).
			Build()
	}

	logger := s.logger.With("recording_id", recordingID)

	// At-most-once guard: re-running selection must not re-select.
	alreadySelected, err := s.store.AnySegmentSelected(ctx, recordingID)
	if err != nil {
		return false, err
	}
	if alreadySelected {
		logger.Debug("Recording already has selected segments, skipping selection")
		return true, nil
	}

	segments, err := s.store.SegmentsByActivity(ctx, recordingID)
	if err != nil {
		return false, err
	}

	windows, err := s.store.ExclusionsForRecording(ctx, recordingID)
	if err != nil {
		return false, err
	}

	candidates := FilterExcluded(segments, windows)

	needed := highVolubilityCount + randomCount
	if len(candidates) < needed {
		logger.Warn("Not enough candidate segments for selection",
			"candidates", len(candidates),
			"needed", needed,
			"excluded", len(segments)-len(candidates))
		return false, nil
	}

	selections := make([]datastore.SegmentSelection, 0, needed)

	// Candidates arrive ordered by activity metric, ties broken by segment
	// ID, so the high-volubility tier is deterministic.
	for _, segment := range candidates[:highVolubilityCount] {
		selections = append(selections, datastore.SegmentSelection{
			SegmentID: segment.ID,
			Criterion: datastore.CriterionHighVolubility,
		})
	}

	remainder := candidates[highVolubilityCount:]
	for _, idx := range s.rng.Perm(len(remainder))[:randomCount] {
		selections = append(selections, datastore.SegmentSelection{
			SegmentID: remainder[idx].ID,
			Criterion: datastore.CriterionRandomSample,
		})
	}

	if err := s.store.MarkSegmentsSelected(ctx, selections); err != nil {
		return false, err
	}

	logger.Info("Segments selected for coding",
		"high_volubility", highVolubilityCount,
		"random_sample", randomCount,
		"candidates", len(candidates))

	return true, nil
}
