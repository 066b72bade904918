// Package samplepool builds and serves the shared work queue of utterances.
// Each sampled utterance becomes one pool entry per intended rater; raters
// claim entries one at a time under a protocol that guarantees an entry is
// only ever mid-assignment with a single rater and that no rater codes the
// same utterance twice.
package samplepool

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/vocalab/vococode-go/internal/datastore"
	"github.com/vocalab/vococode-go/internal/errors"
	"github.com/vocalab/vococode-go/internal/logging"
	"github.com/vocalab/vococode-go/internal/observability/metrics"
)

// DefaultCoderCount is the number of independent raters per utterance.
const DefaultCoderCount = 3

// Coding is one rater's completed judgment, submitted against a claimed pool
// entry. A nonzero CodingID marks an in-session revision of an earlier
// submission.
type Coding struct {
	CodingID               uint // zero for a new coding
	UtteranceID            uint
	CoderID                uint
	Annotation             string
	TotalSyllableCount     int
	CanonicalSyllableCount int
	WordSyllableCount      int
	WordCount              int
	Comments               string
}

// Allocator expands sampled utterances into pool entries and serves them to
// raters.
type Allocator struct {
	store   datastore.Interface
	rng     *rand.Rand
	logger  *slog.Logger
	metrics *metrics.PoolMetrics
}

// New creates an Allocator backed by the given store.
func New(store datastore.Interface) *Allocator {
	return &Allocator{
		store:  store,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		logger: logging.ForService("samplepool"),
	}
}

// NewWithRand creates an Allocator with a caller-supplied random source, used
// by tests that need a reproducible shuffle.
func NewWithRand(store datastore.Interface, rng *rand.Rand) *Allocator {
	a := New(store)
	a.rng = rng
	return a
}

// SetMetrics attaches pool metrics collection.
func (a *Allocator) SetMetrics(m *metrics.PoolMetrics) {
	a.metrics = m
}

// Expand creates coderCount pool entries for every utterance linked to the
// given batch group, with no coder pre-assigned. The full multiset of entries
// is shuffled before insertion so that claim order across utterances is not
// clustered by recording. Expand refuses to run twice for the same group;
// callers must also never run it concurrently with claims on that group.
func (a *Allocator) Expand(ctx context.Context, batchGroup, coderCount int) error {
	if coderCount < 1 {
		return errors.Newf("coder count must be at least 1, got %d", coderCount).
			Component("samplepool").
			Category(errors.CategoryValidation).
			Build()
	}

	existing, err := a.store.PoolEntryCountForGroup(ctx, batchGroup)
	if err != nil {
		return err
	}
	if existing > 0 {
		return errors.Newf("batch group %d already has %d pool entries", batchGroup, existing).
			Component("samplepool").
			Category(errors.CategoryState).
			Context("batch_group", batchGroup).
			Build()
	}

	utteranceIDs, err := a.store.UtteranceIDsForBatchGroup(ctx, batchGroup)
	if err != nil {
		return err
	}
	if len(utteranceIDs) == 0 {
		return errors.Newf("batch group %d has no utterances to pool", batchGroup).
			Component("samplepool").
			Category(errors.CategoryValidation).
			Context("batch_group", batchGroup).
			Build()
	}

	pooled := make([]uint, 0, len(utteranceIDs)*coderCount)
	for n := 0; n < coderCount; n++ {
		pooled = append(pooled, utteranceIDs...)
	}
	a.rng.Shuffle(len(pooled), func(i, j int) {
		pooled[i], pooled[j] = pooled[j], pooled[i]
	})

	entries := make([]datastore.SamplePoolEntry, 0, len(pooled))
	for _, utteranceID := range pooled {
		entries = append(entries, datastore.SamplePoolEntry{
			UtteranceID: utteranceID,
			BatchGroup:  batchGroup,
		})
	}

	if err := a.store.CreatePoolEntries(ctx, entries); err != nil {
		return err
	}

	a.logger.Info("Sample pool expanded",
		"batch_group", batchGroup,
		"utterances", len(utteranceIDs),
		"coder_count", coderCount,
		"entries", len(entries))

	if a.metrics != nil {
		a.metrics.RecordExpansion(len(entries))
	}

	return nil
}

// ClaimNext atomically claims the next eligible pool entry for the coder and
// returns its work item. A nil item with a nil error means no eligible work is
// available, which is a normal outcome, not an error. The claim is held until
// Submit; there is no expiry.
func (a *Allocator) ClaimNext(ctx context.Context, coderID uint) (*datastore.ClaimedEntry, error) {
	start := time.Now()
	entry, err := a.store.ClaimNextEntry(ctx, coderID)
	if err != nil {
		return nil, err
	}

	if entry == nil {
		a.logger.Debug("No utterances available for coding", "coder_id", coderID)
		if a.metrics != nil {
			a.metrics.RecordClaim("empty", time.Since(start))
		}
		return nil, nil
	}

	a.logger.Info("Pool entry claimed",
		"coder_id", coderID,
		"pool_entry_id", entry.PoolEntryID,
		"utterance_id", entry.UtteranceID)
	if a.metrics != nil {
		a.metrics.RecordClaim("claimed", time.Since(start))
	}

	return entry, nil
}

// Submit validates and persists a completed coding against a claimed pool
// entry. It returns false with no writes when the entry is not in the
// expected "processing, unassigned" state, for example after a duplicate
// submit; the caller should re-claim instead of retrying.
func (a *Allocator) Submit(ctx context.Context, poolEntryID uint, coding *Coding) (bool, error) {
	utteranceType, ok := datastore.AnnotationType(coding.Annotation)
	if !ok {
		return false, errors.Newf("unknown annotation %q", coding.Annotation).
			Component("samplepool").
			Category(errors.CategoryValidation).
			Context("annotation", coding.Annotation).
			Build()
	}
	if coding.CanonicalSyllableCount > coding.TotalSyllableCount {
		return false, errors.Newf("canonical syllable count %d exceeds total %d",
			coding.CanonicalSyllableCount, coding.TotalSyllableCount).
			Component("samplepool").
			Category(errors.CategoryValidation).
			Build()
	}

	row := &datastore.UtteranceCoding{
		UtteranceID:               coding.UtteranceID,
		CoderID:                   coding.CoderID,
		Annotation:                coding.Annotation,
		UtteranceType:             utteranceType,
		TotalSyllableCount:        coding.TotalSyllableCount,
		CanonicalSyllableCount:    coding.CanonicalSyllableCount,
		NonCanonicalSyllableCount: coding.TotalSyllableCount - coding.CanonicalSyllableCount,
		WordSyllableCount:         coding.WordSyllableCount,
		WordCount:                 coding.WordCount,
		Comments:                  coding.Comments,
		IsAcceptable:              true,
	}

	// A coding carrying an identifier is an in-session revision of a row the
	// coder already submitted: only the coding changes, the pool entry was
	// completed on first submit.
	if coding.CodingID != 0 {
		row.ID = coding.CodingID
		updated, err := a.store.UpdateCoding(ctx, row)
		if err != nil {
			return false, err
		}
		if !updated {
			a.logger.Warn("Revision rejected, coding row not found",
				"coding_id", coding.CodingID,
				"coder_id", coding.CoderID)
		}
		return updated, nil
	}

	accepted, err := a.store.CompleteEntry(ctx, poolEntryID, row)
	if err != nil {
		return false, err
	}

	if !accepted {
		a.logger.Warn("Submission rejected, pool entry not in claimed state",
			"pool_entry_id", poolEntryID,
			"coder_id", coding.CoderID)
		if a.metrics != nil {
			a.metrics.RecordSubmit("conflict")
		}
		return false, nil
	}

	a.logger.Info("Coding submitted",
		"pool_entry_id", poolEntryID,
		"utterance_id", coding.UtteranceID,
		"coder_id", coding.CoderID)
	if a.metrics != nil {
		a.metrics.RecordSubmit("accepted")
	}

	return true, nil
}
