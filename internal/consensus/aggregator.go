// Package consensus aggregates the independent codes of each utterance into a
// single denormalized report row: a strict-majority consensus and agreement
// strength per coded field, plus numeric averages scoped to the reference
// utterance type.
package consensus

import (
	"context"
	"log/slog"
	"time"

	"github.com/vocalab/vococode-go/internal/datastore"
	"github.com/vocalab/vococode-go/internal/errors"
	"github.com/vocalab/vococode-go/internal/logging"
	"github.com/vocalab/vococode-go/internal/observability/metrics"
)

// NumericField is the aggregate of one numeric coded field: its consensus,
// agreement strength, and the mean over codes whose utterance type equals the
// reference category. Average is independent of the consensus outcome.
type NumericField struct {
	Consensus *int
	Agreement float64
	Average   *float64
}

// CategoryField is the aggregate of one categorical coded field.
type CategoryField struct {
	Consensus *string
	Agreement float64
}

// Record is one denormalized consensus report row per utterance.
type Record struct {
	UtteranceID          uint
	AssessmentID         string
	RecordingDate        time.Time
	ChildID              string
	ChildSex             string
	ChildDOB             time.Time
	AgeAtRecordingMonths float64
	Cohort               string
	SegmentID            uint
	SelectionCriterion   string
	StartTime            float64
	EndTime              float64
	Duration             float64
	MinPitch             float64
	MaxPitch             float64
	AvgPitch             float64
	PitchRange           float64

	TotalSyllableCount        NumericField
	CanonicalSyllableCount    NumericField
	NonCanonicalSyllableCount NumericField
	WordSyllableCount         NumericField
	WordCount                 NumericField
	UtteranceType             CategoryField
	Annotation                CategoryField
}

// Aggregator computes consensus report rows. It only reads from the store.
type Aggregator struct {
	store             datastore.Interface
	coderCount        int
	referenceCategory string
	logger            *slog.Logger
	metrics           *metrics.ConsensusMetrics
}

// New creates an Aggregator expecting coderCount codes per utterance and
// scoping numeric averages to the given reference utterance type.
func New(store datastore.Interface, coderCount int, referenceCategory string) *Aggregator {
	return &Aggregator{
		store:             store,
		coderCount:        coderCount,
		referenceCategory: referenceCategory,
		logger:            logging.ForService("consensus"),
	}
}

// SetMetrics attaches consensus metrics collection.
func (a *Aggregator) SetMetrics(m *metrics.ConsensusMetrics) {
	a.metrics = m
}

// Aggregate builds one Record per qualifying utterance. Every utterance must
// carry exactly the expected number of acceptable codes; any mismatch fails
// the whole run, since a consensus over a partial rater set would be silently
// wrong. Ordering follows the input IDs.
func (a *Aggregator) Aggregate(ctx context.Context, utteranceIDs []uint) ([]Record, error) {
	start := time.Now()

	records, err := a.aggregate(ctx, utteranceIDs)
	if a.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		a.metrics.RecordRun(status, time.Since(start), len(records))
	}
	return records, err
}

func (a *Aggregator) aggregate(ctx context.Context, utteranceIDs []uint) ([]Record, error) {
	if len(utteranceIDs) == 0 {
		return nil, nil
	}

	codingsByUtterance, err := a.store.AcceptableCodings(ctx, utteranceIDs)
	if err != nil {
		return nil, err
	}

	// Verify the full rater set is present before building anything.
	for _, utteranceID := range utteranceIDs {
		if got := len(codingsByUtterance[utteranceID]); got != a.coderCount {
			return nil, errors.Newf("utterance %d has %d acceptable codes, expected %d",
				utteranceID, got, a.coderCount).
				Component("consensus").
				Category(errors.CategoryConsistency).
				Priority(errors.PriorityHigh).
				Context("utterance_id", utteranceID).
				Build()
		}
	}

	metadataRows, err := a.store.UtteranceMetadataRows(ctx, utteranceIDs)
	if err != nil {
		return nil, err
	}
	metadataByUtterance := make(map[uint]datastore.UtteranceMetadata, len(metadataRows))
	for _, row := range metadataRows {
		metadataByUtterance[row.UtteranceID] = row
	}

	records := make([]Record, 0, len(utteranceIDs))
	for _, utteranceID := range utteranceIDs {
		metadata, ok := metadataByUtterance[utteranceID]
		if !ok {
			return nil, errors.Newf("no metadata row for utterance %d", utteranceID).
				Component("consensus").
				Category(errors.CategoryConsistency).
				Context("utterance_id", utteranceID).
				Build()
		}
		records = append(records, a.buildRecord(&metadata, codingsByUtterance[utteranceID]))
	}

	a.logger.Info("Aggregation completed",
		"utterances", len(utteranceIDs),
		"records", len(records))

	return records, nil
}

func (a *Aggregator) buildRecord(metadata *datastore.UtteranceMetadata, codings []datastore.UtteranceCoding) Record {
	types := make([]string, len(codings))
	for i := range codings {
		types[i] = codings[i].UtteranceType
	}

	record := Record{
		UtteranceID:          metadata.UtteranceID,
		AssessmentID:         metadata.AssessmentID,
		RecordingDate:        metadata.RecordingDate,
		ChildID:              metadata.ChildID,
		ChildSex:             metadata.ChildSex,
		ChildDOB:             metadata.ChildDOB,
		AgeAtRecordingMonths: metadata.AgeAtRecordingMonths,
		Cohort:               metadata.Cohort,
		SegmentID:            metadata.SegmentID,
		SelectionCriterion:   metadata.SelectionCriterion,
		StartTime:            metadata.StartTime,
		EndTime:              metadata.EndTime,
		Duration:             metadata.Duration,
		MinPitch:             metadata.MinPitch,
		MaxPitch:             metadata.MaxPitch,
		AvgPitch:             metadata.AvgPitch,
		PitchRange:           metadata.PitchRange,
	}

	record.TotalSyllableCount = a.numericField(codings, types, func(c *datastore.UtteranceCoding) int {
		return c.TotalSyllableCount
	})
	record.CanonicalSyllableCount = a.numericField(codings, types, func(c *datastore.UtteranceCoding) int {
		return c.CanonicalSyllableCount
	})
	record.NonCanonicalSyllableCount = a.numericField(codings, types, func(c *datastore.UtteranceCoding) int {
		return c.NonCanonicalSyllableCount
	})
	record.WordSyllableCount = a.numericField(codings, types, func(c *datastore.UtteranceCoding) int {
		return c.WordSyllableCount
	})
	record.WordCount = a.numericField(codings, types, func(c *datastore.UtteranceCoding) int {
		return c.WordCount
	})

	record.UtteranceType = a.categoryField(types)

	annotations := make([]string, len(codings))
	for i := range codings {
		annotations[i] = codings[i].Annotation
	}
	record.Annotation = a.categoryField(annotations)

	return record
}

func (a *Aggregator) numericField(codings []datastore.UtteranceCoding, types []string, value func(*datastore.UtteranceCoding) int) NumericField {
	values := make([]int, len(codings))
	for i := range codings {
		values[i] = value(&codings[i])
	}

	vote := Plurality(values)
	if a.metrics != nil {
		a.metrics.RecordAgreement(vote.Agreement)
	}

	return NumericField{
		Consensus: vote.Consensus,
		Agreement: vote.Agreement,
		Average:   ScopedAverage(values, types, a.referenceCategory),
	}
}

func (a *Aggregator) categoryField(values []string) CategoryField {
	vote := Plurality(values)
	if a.metrics != nil {
		a.metrics.RecordAgreement(vote.Agreement)
	}
	return CategoryField{
		Consensus: vote.Consensus,
		Agreement: vote.Agreement,
	}
}
