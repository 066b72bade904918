package datastore

import (
	"context"

	"gorm.io/gorm"
)

// batchGroupStep is the spacing between batch group numbers. Groups are
// numbered 100, 200, 300, ... so manual inserts between rounds stay visible.
const batchGroupStep = 100

// CreateCodingBatch registers the given assessments as one new sampling round
// and returns the new batch group number. It fails when any assessment is
// unknown and refuses to re-batch a recording that already belongs to a round.
func (ds *DataStore) CreateCodingBatch(ctx context.Context, assessmentIDs []string) (int, error) {
	if len(assessmentIDs) == 0 {
		return 0, validationError("no assessment IDs given", "assessment_ids", assessmentIDs)
	}

	var newGroup int
	err := ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var recordingIDs []uint
		if err := tx.Model(&Recording{}).
			Where("assessment_id IN ?", assessmentIDs).
			Pluck("id", &recordingIDs).Error; err != nil {
			return err
		}

		if len(recordingIDs) != len(assessmentIDs) {
			return validationError("one or more assessment IDs are not present in the store",
				"assessment_ids", assessmentIDs)
		}

		var alreadyBatched int64
		if err := tx.Model(&CodingBatch{}).
			Where("recording_id IN ?", recordingIDs).
			Count(&alreadyBatched).Error; err != nil {
			return err
		}
		if alreadyBatched > 0 {
			return validationError("one or more recordings already belong to a coding batch",
				"assessment_ids", assessmentIDs)
		}

		var maxGroup int
		if err := tx.Model(&CodingBatch{}).
			Select("COALESCE(MAX(batch_group), 0)").
			Scan(&maxGroup).Error; err != nil {
			return err
		}
		newGroup = maxGroup + batchGroupStep

		batches := make([]CodingBatch, 0, len(recordingIDs))
		for _, recordingID := range recordingIDs {
			batches = append(batches, CodingBatch{RecordingID: recordingID, Group: newGroup})
		}
		return tx.Create(&batches).Error
	})
	if err != nil {
		return 0, err
	}
	return newGroup, nil
}

// BatchGroupsInProgress returns the batch groups that still have at least one
// pool entry unassigned or mid-claim. Utterances in these groups must not be
// aggregated yet.
func (ds *DataStore) BatchGroupsInProgress(ctx context.Context) ([]int, error) {
	var groups []int
	err := ds.DB.WithContext(ctx).
		Model(&SamplePoolEntry{}).
		Distinct("batch_group").
		Where("coder_id IS NULL OR is_processing = ?", true).
		Order("batch_group").
		Pluck("batch_group", &groups).Error
	if err != nil {
		return nil, dbError(err, "batch_groups_in_progress", "")
	}
	return groups, nil
}
