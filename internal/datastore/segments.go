package datastore

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/vocalab/vococode-go/internal/errors"
)

// GetRecording returns the recording with the given ID, with its participant.
func (ds *DataStore) GetRecording(ctx context.Context, recordingID uint) (Recording, error) {
	var recording Recording
	err := ds.DB.WithContext(ctx).
		Preload("Participant").
		First(&recording, recordingID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Recording{}, notFoundError("recording", fmt.Sprintf("%d", recordingID))
		}
		return Recording{}, dbError(err, "get_recording", "", "recording_id", recordingID)
	}
	return recording, nil
}

// RecordingIDForAssessment resolves an assessment identifier to a recording ID.
func (ds *DataStore) RecordingIDForAssessment(ctx context.Context, assessmentID string) (uint, error) {
	var recording Recording
	err := ds.DB.WithContext(ctx).
		Select("id").
		Where("assessment_id = ?", assessmentID).
		First(&recording).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, notFoundError("recording", assessmentID)
		}
		return 0, dbError(err, "recording_id_for_assessment", "", "assessment_id", assessmentID)
	}
	return recording.ID, nil
}

// SegmentsByActivity returns all segments of a recording ordered by descending
// activity metric, ties broken by ascending segment ID so the ordering is
// stable and reproducible.
func (ds *DataStore) SegmentsByActivity(ctx context.Context, recordingID uint) ([]Segment, error) {
	var segments []Segment
	err := ds.DB.WithContext(ctx).
		Where("recording_id = ?", recordingID).
		Order("child_vocalization_count DESC, id ASC").
		Find(&segments).Error
	if err != nil {
		return nil, dbError(err, "segments_by_activity", "", "recording_id", recordingID)
	}
	return segments, nil
}

// ExclusionsForRecording returns all exclusion windows of a recording.
func (ds *DataStore) ExclusionsForRecording(ctx context.Context, recordingID uint) ([]ExclusionWindow, error) {
	var windows []ExclusionWindow
	err := ds.DB.WithContext(ctx).
		Where("recording_id = ?", recordingID).
		Find(&windows).Error
	if err != nil {
		return nil, dbError(err, "exclusions_for_recording", "", "recording_id", recordingID)
	}
	return windows, nil
}

// AnySegmentSelected reports whether any segment of the recording already
// carries the selected flag. Used as the at-most-once selection guard.
func (ds *DataStore) AnySegmentSelected(ctx context.Context, recordingID uint) (bool, error) {
	var count int64
	err := ds.DB.WithContext(ctx).
		Model(&Segment{}).
		Where("recording_id = ? AND is_selected = ?", recordingID, true).
		Count(&count).Error
	if err != nil {
		return false, dbError(err, "any_segment_selected", "", "recording_id", recordingID)
	}
	return count > 0, nil
}

// MarkSegmentsSelected applies the selection flags and criteria in a single
// transaction so a failed selection never persists partially.
func (ds *DataStore) MarkSegmentsSelected(ctx context.Context, selections []SegmentSelection) error {
	if len(selections) == 0 {
		return nil
	}

	err := ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, sel := range selections {
			result := tx.Model(&Segment{}).
				Where("id = ? AND is_selected = ?", sel.SegmentID, false).
				Updates(map[string]any{
					"is_selected":         true,
					"selection_criterion": sel.Criterion,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected != 1 {
				return fmt.Errorf("segment %d already selected or missing", sel.SegmentID)
			}
		}
		return nil
	})
	if err != nil {
		return dbError(err, "mark_segments_selected", errors.PriorityHigh,
			"selection_count", len(selections))
	}
	return nil
}

// SelectedSegments returns the selected segments of a recording.
func (ds *DataStore) SelectedSegments(ctx context.Context, recordingID uint) ([]Segment, error) {
	var segments []Segment
	err := ds.DB.WithContext(ctx).
		Where("recording_id = ? AND is_selected = ?", recordingID, true).
		Order("start_time ASC").
		Find(&segments).Error
	if err != nil {
		return nil, dbError(err, "selected_segments", "", "recording_id", recordingID)
	}
	return segments, nil
}

// SaveUtterances bulk-inserts utterance rows.
func (ds *DataStore) SaveUtterances(ctx context.Context, utterances []Utterance) error {
	if len(utterances) == 0 {
		return nil
	}
	if err := ds.DB.WithContext(ctx).Create(&utterances).Error; err != nil {
		return dbError(err, "save_utterances", "", "utterance_count", len(utterances))
	}
	return nil
}

// UtteranceCountForRecording counts utterances belonging to a recording.
func (ds *DataStore) UtteranceCountForRecording(ctx context.Context, recordingID uint) (int64, error) {
	var count int64
	err := ds.DB.WithContext(ctx).
		Model(&Utterance{}).
		Joins("JOIN segments ON segments.id = utterances.segment_id").
		Where("segments.recording_id = ?", recordingID).
		Count(&count).Error
	if err != nil {
		return 0, dbError(err, "utterance_count_for_recording", "", "recording_id", recordingID)
	}
	return count, nil
}
