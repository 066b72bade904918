package datastore

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// legacyComment marks codings imported from the pre-database workflow. They
// are kept for audit but never aggregated.
const legacyComment = "Legacy Code"

// AcceptableCodings returns the acceptable, non-legacy codings for the given
// utterances, grouped by utterance ID and ordered by submission time within
// each group.
func (ds *DataStore) AcceptableCodings(ctx context.Context, utteranceIDs []uint) (map[uint][]UtteranceCoding, error) {
	if len(utteranceIDs) == 0 {
		return map[uint][]UtteranceCoding{}, nil
	}

	var codings []UtteranceCoding
	err := ds.DB.WithContext(ctx).
		Where("utterance_id IN ?", utteranceIDs).
		Where("is_acceptable = ?", true).
		Where("comments IS NULL OR comments != ?", legacyComment).
		Order("utterance_id ASC, created_at ASC").
		Find(&codings).Error
	if err != nil {
		return nil, dbError(err, "acceptable_codings", "",
			"utterance_count", len(utteranceIDs))
	}

	grouped := make(map[uint][]UtteranceCoding, len(utteranceIDs))
	for _, coding := range codings {
		grouped[coding.UtteranceID] = append(grouped[coding.UtteranceID], coding)
	}
	return grouped, nil
}

// recordingsInProcess returns a subquery of recording IDs that still have
// pool entries unassigned or mid-claim. Their utterances are not ready for
// the consensus report.
func (ds *DataStore) recordingsInProcess(ctx context.Context) *gorm.DB {
	return ds.DB.WithContext(ctx).
		Model(&SamplePoolEntry{}).
		Distinct("segments.recording_id").
		Joins("JOIN utterances ON utterances.id = sample_pool_entries.utterance_id").
		Joins("JOIN segments ON segments.id = utterances.segment_id").
		Where("sample_pool_entries.coder_id IS NULL OR sample_pool_entries.is_processing = ?", true)
}

// ReportUtteranceIDs returns the utterances qualifying for the consensus
// report: coded, belonging to a valid recording, and with the whole recording
// finished coding.
func (ds *DataStore) ReportUtteranceIDs(ctx context.Context) ([]uint, error) {
	var utteranceIDs []uint
	err := ds.DB.WithContext(ctx).
		Model(&Utterance{}).
		Distinct("utterances.id").
		Joins("JOIN utterance_codings ON utterance_codings.utterance_id = utterances.id").
		Joins("JOIN segments ON segments.id = utterances.segment_id").
		Joins("JOIN recordings ON recordings.id = segments.recording_id").
		Where("recordings.is_valid = ?", true).
		Where("utterance_codings.is_acceptable = ?", true).
		Where("segments.recording_id NOT IN (?)", ds.recordingsInProcess(ctx)).
		Order("utterances.id").
		Pluck("utterances.id", &utteranceIDs).Error
	if err != nil {
		return nil, dbError(err, "report_utterance_ids", "")
	}
	return utteranceIDs, nil
}

// UtteranceMetadataRows returns the denormalized recording, participant and
// segment metadata for the given utterances, ordered by utterance ID.
func (ds *DataStore) UtteranceMetadataRows(ctx context.Context, utteranceIDs []uint) ([]UtteranceMetadata, error) {
	if len(utteranceIDs) == 0 {
		return nil, nil
	}

	var rows []UtteranceMetadata
	err := ds.DB.WithContext(ctx).
		Model(&Utterance{}).
		Select(`utterances.id AS utterance_id,
			recordings.assessment_id,
			recordings.recording_date,
			participants.child_id,
			participants.sex AS child_sex,
			participants.date_of_birth AS child_dob,
			recordings.age_at_recording_months,
			participants.cohort,
			segments.id AS segment_id,
			segments.selection_criterion,
			utterances.start_time,
			utterances.end_time,
			utterances.duration,
			utterances.min_pitch,
			utterances.max_pitch,
			utterances.avg_pitch,
			utterances.pitch_range`).
		Joins("JOIN segments ON segments.id = utterances.segment_id").
		Joins("JOIN recordings ON recordings.id = segments.recording_id").
		Joins("JOIN participants ON participants.id = recordings.participant_id").
		Where("utterances.id IN ?", utteranceIDs).
		Order("utterances.id").
		Scan(&rows).Error
	if err != nil {
		return nil, dbError(err, "utterance_metadata_rows", "",
			"utterance_count", len(utteranceIDs))
	}
	// The joins drop utterances with a broken segment/recording/participant
	// chain, which would silently produce report rows with empty metadata.
	if len(rows) != len(utteranceIDs) {
		return nil, consistencyError("utterance metadata incomplete",
			"requested", len(utteranceIDs), "found", len(rows))
	}
	return rows, nil
}

// CodingEvents returns coding submissions joined with coder names, ordered by
// coder and submission time. Legacy codes are excluded. Either bound may be
// nil to leave that end of the range open.
func (ds *DataStore) CodingEvents(ctx context.Context, start, end *time.Time) ([]CodingEvent, error) {
	query := ds.DB.WithContext(ctx).
		Model(&UtteranceCoding{}).
		Select(`utterance_codings.coder_id,
			coders.name AS coder_name,
			utterance_codings.utterance_id,
			utterance_codings.created_at AS coded_at`).
		Joins("JOIN coders ON coders.id = utterance_codings.coder_id").
		Where("utterance_codings.comments IS NULL OR utterance_codings.comments != ?", legacyComment).
		Order("coders.name ASC, utterance_codings.created_at ASC")

	if start != nil {
		query = query.Where("utterance_codings.created_at >= ?", *start)
	}
	if end != nil {
		query = query.Where("utterance_codings.created_at <= ?", *end)
	}

	var events []CodingEvent
	if err := query.Scan(&events).Error; err != nil {
		return nil, dbError(err, "coding_events", "")
	}
	return events, nil
}
