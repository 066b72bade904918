package datastore

import (
	"context"

	"gorm.io/gorm"

	"github.com/vocalab/vococode-go/internal/errors"
)

// UtteranceIDsForBatchGroup returns the IDs of all utterances reachable from
// the recordings of the given batch group.
func (ds *DataStore) UtteranceIDsForBatchGroup(ctx context.Context, batchGroup int) ([]uint, error) {
	var utteranceIDs []uint
	err := ds.DB.WithContext(ctx).
		Model(&Utterance{}).
		Joins("JOIN segments ON segments.id = utterances.segment_id").
		Joins("JOIN coding_batches ON coding_batches.recording_id = segments.recording_id").
		Where("coding_batches.batch_group = ?", batchGroup).
		Order("utterances.id").
		Pluck("utterances.id", &utteranceIDs).Error
	if err != nil {
		return nil, dbError(err, "utterance_ids_for_batch_group", "", "batch_group", batchGroup)
	}
	return utteranceIDs, nil
}

// CreatePoolEntries bulk-inserts sample pool entries.
func (ds *DataStore) CreatePoolEntries(ctx context.Context, entries []SamplePoolEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := ds.DB.WithContext(ctx).Create(&entries).Error; err != nil {
		return dbError(err, "create_pool_entries", errors.PriorityHigh,
			"entry_count", len(entries))
	}
	return nil
}

// PoolEntryCountForGroup counts pool entries in a batch group.
func (ds *DataStore) PoolEntryCountForGroup(ctx context.Context, batchGroup int) (int64, error) {
	var count int64
	err := ds.DB.WithContext(ctx).
		Model(&SamplePoolEntry{}).
		Where("batch_group = ?", batchGroup).
		Count(&count).Error
	if err != nil {
		return 0, dbError(err, "pool_entry_count_for_group", "", "batch_group", batchGroup)
	}
	return count, nil
}

// ClaimNextEntry finds and claims the lowest-ID eligible pool entry for the
// given coder: not processing, not yet assigned, and not for an utterance the
// coder has already coded. The claim itself is a compare-and-swap UPDATE whose
// WHERE clause re-checks the free state, so two concurrent callers can never
// claim the same entry regardless of dialect; a caller that loses the race
// simply moves on to the next candidate. Returns (nil, nil) when no eligible
// entry exists.
func (ds *DataStore) ClaimNextEntry(ctx context.Context, coderID uint) (*ClaimedEntry, error) {
	for {
		codedByCoder := ds.DB.WithContext(ctx).
			Model(&UtteranceCoding{}).
			Select("utterance_id").
			Where("coder_id = ?", coderID)

		var entry SamplePoolEntry
		err := ds.DB.WithContext(ctx).
			Where("is_processing = ? AND coder_id IS NULL", false).
			Where("utterance_id NOT IN (?)", codedByCoder).
			Order("id ASC").
			First(&entry).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, dbError(err, "claim_next_entry", "", "coder_id", coderID)
		}

		result := ds.DB.WithContext(ctx).
			Model(&SamplePoolEntry{}).
			Where("id = ? AND is_processing = ? AND coder_id IS NULL", entry.ID, false).
			Update("is_processing", true)
		if result.Error != nil {
			return nil, dbError(result.Error, "claim_next_entry", errors.PriorityHigh,
				"coder_id", coderID, "entry_id", entry.ID)
		}
		if result.RowsAffected == 0 {
			// Another session claimed this entry between the read and the
			// update. Try the next candidate.
			continue
		}

		var utterance Utterance
		if err := ds.DB.WithContext(ctx).First(&utterance, entry.UtteranceID).Error; err != nil {
			return nil, dbError(err, "claim_next_entry", "",
				"utterance_id", entry.UtteranceID)
		}

		return &ClaimedEntry{
			PoolEntryID:   entry.ID,
			UtteranceID:   entry.UtteranceID,
			Duration:      utterance.Duration,
			AudioFileName: utterance.AudioFileName,
		}, nil
	}
}

// CompleteEntry moves a claimed pool entry to its terminal state and persists
// the new coding in the same transaction. The entry must still be in the
// "processing, unassigned" state; if it is not, nothing is written and the
// first return value is false so the caller can re-claim.
func (ds *DataStore) CompleteEntry(ctx context.Context, entryID uint, coding *UtteranceCoding) (bool, error) {
	var conflict bool
	err := ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&SamplePoolEntry{}).
			Where("id = ? AND is_processing = ? AND coder_id IS NULL", entryID, true).
			Updates(map[string]any{
				"is_processing": false,
				"coder_id":      coding.CoderID,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// Entry was never claimed, or another actor finished it first.
			conflict = true
			return gorm.ErrInvalidTransaction
		}

		return tx.Create(coding).Error
	})
	if err != nil {
		if conflict {
			return false, nil
		}
		return false, dbError(err, "complete_entry", errors.PriorityHigh,
			"entry_id", entryID, "coder_id", coding.CoderID)
	}
	return true, nil
}

// UpdateCoding revises an existing coding row in place. Pool entry state is
// untouched: the entry was completed when the coding was first submitted.
// Returns false when no row with the coding's ID exists.
func (ds *DataStore) UpdateCoding(ctx context.Context, coding *UtteranceCoding) (bool, error) {
	result := ds.DB.WithContext(ctx).
		Model(&UtteranceCoding{}).
		Where("id = ?", coding.ID).
		Updates(map[string]any{
			"annotation":                   coding.Annotation,
			"utterance_type":               coding.UtteranceType,
			"total_syllable_count":         coding.TotalSyllableCount,
			"canonical_syllable_count":     coding.CanonicalSyllableCount,
			"non_canonical_syllable_count": coding.NonCanonicalSyllableCount,
			"word_syllable_count":          coding.WordSyllableCount,
			"word_count":                   coding.WordCount,
			"comments":                     coding.Comments,
		})
	if result.Error != nil {
		return false, dbError(result.Error, "update_coding", "", "coding_id", coding.ID)
	}
	return result.RowsAffected == 1, nil
}
