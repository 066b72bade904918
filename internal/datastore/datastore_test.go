package datastore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vocalab/vococode-go/internal/conf"
	"github.com/vocalab/vococode-go/internal/errors"
)

// createDatabase initializes a temporary database for testing purposes.
// It ensures the database connection is opened and handles potential errors.
func createDatabase(t *testing.T, settings *conf.Settings) Interface {
	t.Helper()
	tempDir := t.TempDir()
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = tempDir + "/test.db"

	dataStore := New(settings)

	require.NoError(t, dataStore.Open(), "Failed to open database")

	t.Cleanup(func() {
		assert.NoError(t, dataStore.Close(), "Failed to close datastore")
	})

	return dataStore
}

// gormDB exposes the raw connection for seeding test fixtures.
func gormDB(t *testing.T, store Interface) *DataStore {
	t.Helper()
	sqlite, ok := store.(*SQLiteStore)
	require.True(t, ok, "test store should be SQLite-backed")
	return &sqlite.DataStore
}

// seedRecording creates a participant and one recording with the given
// assessment ID, returning the recording ID.
func seedRecording(t *testing.T, ds *DataStore, assessmentID string) uint {
	t.Helper()
	participant := Participant{
		ChildID:     "child-" + assessmentID,
		Sex:         "F",
		DateOfBirth: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
		Cohort:      "control",
	}
	require.NoError(t, ds.DB.Create(&participant).Error)

	recording := Recording{
		ParticipantID:        participant.ID,
		AssessmentID:         assessmentID,
		RecordingDate:        time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		AgeAtRecordingMonths: 9.5,
		BaseFileName:         "rec_" + assessmentID,
		IsValid:              true,
	}
	require.NoError(t, ds.DB.Create(&recording).Error)
	return recording.ID
}

// seedSegments creates count five-minute segments with descending activity.
func seedSegments(t *testing.T, ds *DataStore, recordingID uint, count int) []Segment {
	t.Helper()
	segments := make([]Segment, count)
	for i := range segments {
		segments[i] = Segment{
			RecordingID:            recordingID,
			StartTime:              float64(i) * 300,
			EndTime:                float64(i+1) * 300,
			ChildVocalizationCount: count - i,
		}
	}
	require.NoError(t, ds.DB.Create(&segments).Error)
	return segments
}

// seedUtterance creates one utterance inside the given segment.
func seedUtterance(t *testing.T, ds *DataStore, segment *Segment, offset float64) uint {
	t.Helper()
	utterance := Utterance{
		SegmentID:     segment.ID,
		StartTime:     segment.StartTime + offset,
		EndTime:       segment.StartTime + offset + 1.2,
		Duration:      1.2,
		AudioFileName: "clip.wav",
		MinPitch:      210,
		MaxPitch:      480,
		AvgPitch:      320,
		PitchRange:    270,
	}
	require.NoError(t, ds.DB.Create(&utterance).Error)
	return utterance.ID
}

func seedCoder(t *testing.T, ds *DataStore, name string) uint {
	t.Helper()
	coder := Coder{Name: name, IsActive: true}
	require.NoError(t, ds.DB.Create(&coder).Error)
	return coder.ID
}

func TestCreateCodingBatchNumbering(t *testing.T) {
	t.Parallel()
	store := createDatabase(t, &conf.Settings{})
	ds := gormDB(t, store)
	ctx := context.Background()

	seedRecording(t, ds, "A-001")
	seedRecording(t, ds, "A-002")
	seedRecording(t, ds, "A-003")

	group, err := store.CreateCodingBatch(ctx, []string{"A-001", "A-002"})
	require.NoError(t, err)
	assert.Equal(t, 100, group, "first batch should start numbering at 100")

	group, err = store.CreateCodingBatch(ctx, []string{"A-003"})
	require.NoError(t, err)
	assert.Equal(t, 200, group, "second batch should get the next group number")
}

func TestCreateCodingBatchRejectsRebatching(t *testing.T) {
	t.Parallel()
	store := createDatabase(t, &conf.Settings{})
	ds := gormDB(t, store)
	ctx := context.Background()

	seedRecording(t, ds, "B-001")
	seedRecording(t, ds, "B-002")

	_, err := store.CreateCodingBatch(ctx, []string{"B-001"})
	require.NoError(t, err)

	_, err = store.CreateCodingBatch(ctx, []string{"B-001", "B-002"})
	require.Error(t, err, "a recording must not enter two batches")

	var count int64
	require.NoError(t, ds.DB.Model(&CodingBatch{}).Count(&count).Error)
	assert.EqualValues(t, 1, count, "failed batch must not persist rows")
}

func TestCreateCodingBatchUnknownAssessment(t *testing.T) {
	t.Parallel()
	store := createDatabase(t, &conf.Settings{})
	ctx := context.Background()

	_, err := store.CreateCodingBatch(ctx, []string{"missing"})
	require.Error(t, err)

	_, err = store.CreateCodingBatch(ctx, nil)
	require.Error(t, err)
}

func TestClaimNextEntryOrderAndSelfExclusion(t *testing.T) {
	t.Parallel()
	store := createDatabase(t, &conf.Settings{})
	ds := gormDB(t, store)
	ctx := context.Background()

	recordingID := seedRecording(t, ds, "C-001")
	segments := seedSegments(t, ds, recordingID, 1)
	utteranceID := seedUtterance(t, ds, &segments[0], 10)
	coderID := seedCoder(t, ds, "alice")

	entries := []SamplePoolEntry{
		{UtteranceID: utteranceID, BatchGroup: 100},
		{UtteranceID: utteranceID, BatchGroup: 100},
	}
	require.NoError(t, store.CreatePoolEntries(ctx, entries))

	entry, err := store.ClaimNextEntry(ctx, coderID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, utteranceID, entry.UtteranceID)

	accepted, err := store.CompleteEntry(ctx, entry.PoolEntryID, &UtteranceCoding{
		UtteranceID:   utteranceID,
		CoderID:       coderID,
		Annotation:    "Canonical",
		UtteranceType: ReferenceCategorySpeech,
	})
	require.NoError(t, err)
	assert.True(t, accepted)

	// The second entry is for an utterance alice already coded, so she must
	// not receive it again.
	entry, err = store.ClaimNextEntry(ctx, coderID)
	require.NoError(t, err)
	assert.Nil(t, entry, "coder must never code the same utterance twice")

	otherCoder := seedCoder(t, ds, "bob")
	entry, err = store.ClaimNextEntry(ctx, otherCoder)
	require.NoError(t, err)
	require.NotNil(t, entry, "another coder should receive the remaining entry")
}

func TestClaimNextEntryHonorsCanceledContext(t *testing.T) {
	t.Parallel()
	store := createDatabase(t, &conf.Settings{})
	ds := gormDB(t, store)

	recordingID := seedRecording(t, ds, "C-002")
	segments := seedSegments(t, ds, recordingID, 1)
	utteranceID := seedUtterance(t, ds, &segments[0], 10)
	coderID := seedCoder(t, ds, "dora")

	require.NoError(t, store.CreatePoolEntries(context.Background(), []SamplePoolEntry{
		{UtteranceID: utteranceID, BatchGroup: 100},
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	entry, err := store.ClaimNextEntry(ctx, coderID)
	require.Error(t, err)
	assert.Nil(t, entry)

	var claimed int64
	require.NoError(t, ds.DB.Model(&SamplePoolEntry{}).
		Where("is_processing = ?", true).
		Count(&claimed).Error)
	assert.Zero(t, claimed, "a canceled claim must not mark entries as processing")
}

func TestClaimNextEntrySkipsClaimedEntries(t *testing.T) {
	t.Parallel()
	store := createDatabase(t, &conf.Settings{})
	ds := gormDB(t, store)
	ctx := context.Background()

	recordingID := seedRecording(t, ds, "D-001")
	segments := seedSegments(t, ds, recordingID, 1)
	first := seedUtterance(t, ds, &segments[0], 5)
	second := seedUtterance(t, ds, &segments[0], 20)
	coderID := seedCoder(t, ds, "carol")

	require.NoError(t, store.CreatePoolEntries(ctx, []SamplePoolEntry{
		{UtteranceID: first, BatchGroup: 100},
		{UtteranceID: second, BatchGroup: 100},
	}))

	// Simulate another session holding a claim on the lowest entry.
	require.NoError(t, ds.DB.Model(&SamplePoolEntry{}).
		Where("utterance_id = ?", first).
		Update("is_processing", true).Error)

	entry, err := store.ClaimNextEntry(ctx, coderID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, second, entry.UtteranceID, "claimed entries must be skipped")
}

func TestClaimNextEntryConcurrent(t *testing.T) {
	t.Parallel()
	store := createDatabase(t, &conf.Settings{})
	ds := gormDB(t, store)
	ctx := context.Background()

	recordingID := seedRecording(t, ds, "E-001")
	segments := seedSegments(t, ds, recordingID, 1)

	var entries []SamplePoolEntry
	for i := 0; i < 6; i++ {
		utteranceID := seedUtterance(t, ds, &segments[0], float64(i*10))
		entries = append(entries, SamplePoolEntry{UtteranceID: utteranceID, BatchGroup: 100})
	}
	require.NoError(t, store.CreatePoolEntries(ctx, entries))

	coders := []uint{
		seedCoder(t, ds, "w1"),
		seedCoder(t, ds, "w2"),
		seedCoder(t, ds, "w3"),
	}

	var mu sync.Mutex
	claimed := make(map[uint]int)

	var wg sync.WaitGroup
	for _, coderID := range coders {
		coderID := coderID
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				entry, err := store.ClaimNextEntry(ctx, coderID)
				if !assert.NoError(t, err) {
					return
				}
				if entry == nil {
					return
				}
				mu.Lock()
				claimed[entry.PoolEntryID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, claimed, len(entries), "every entry should be claimed exactly once")
	for entryID, count := range claimed {
		assert.Equal(t, 1, count, "entry %d claimed more than once", entryID)
	}
}

func TestCompleteEntryConflicts(t *testing.T) {
	t.Parallel()
	store := createDatabase(t, &conf.Settings{})
	ds := gormDB(t, store)
	ctx := context.Background()

	recordingID := seedRecording(t, ds, "F-001")
	segments := seedSegments(t, ds, recordingID, 1)
	utteranceID := seedUtterance(t, ds, &segments[0], 3)
	coderID := seedCoder(t, ds, "dave")

	require.NoError(t, store.CreatePoolEntries(ctx, []SamplePoolEntry{
		{UtteranceID: utteranceID, BatchGroup: 100},
	}))

	var entry SamplePoolEntry
	require.NoError(t, ds.DB.First(&entry).Error)

	coding := &UtteranceCoding{
		UtteranceID:   utteranceID,
		CoderID:       coderID,
		Annotation:    "Word",
		UtteranceType: ReferenceCategorySpeech,
	}

	// Completing an entry that was never claimed is a conflict, not an error.
	accepted, err := store.CompleteEntry(ctx, entry.ID, coding)
	require.NoError(t, err)
	assert.False(t, accepted, "unclaimed entry must not complete")

	var codingCount int64
	require.NoError(t, ds.DB.Model(&UtteranceCoding{}).Count(&codingCount).Error)
	assert.Zero(t, codingCount, "rejected completion must not write a coding")

	claimedEntry, err := store.ClaimNextEntry(ctx, coderID)
	require.NoError(t, err)
	require.NotNil(t, claimedEntry)

	accepted, err = store.CompleteEntry(ctx, claimedEntry.PoolEntryID, coding)
	require.NoError(t, err)
	assert.True(t, accepted)

	// A duplicate submit finds the entry in its terminal state.
	accepted, err = store.CompleteEntry(ctx, claimedEntry.PoolEntryID, coding)
	require.NoError(t, err)
	assert.False(t, accepted, "terminal entry must reject a second completion")
}

func TestUpdateCoding(t *testing.T) {
	t.Parallel()
	store := createDatabase(t, &conf.Settings{})
	ds := gormDB(t, store)
	ctx := context.Background()

	recordingID := seedRecording(t, ds, "G-001")
	segments := seedSegments(t, ds, recordingID, 1)
	utteranceID := seedUtterance(t, ds, &segments[0], 1)
	coderID := seedCoder(t, ds, "erin")

	original := UtteranceCoding{
		UtteranceID:        utteranceID,
		CoderID:            coderID,
		Annotation:         "Crying",
		UtteranceType:      UtteranceTypeNonSpeech,
		TotalSyllableCount: 0,
		IsAcceptable:       true,
	}
	require.NoError(t, ds.DB.Create(&original).Error)

	revised := original
	revised.Annotation = "Canonical"
	revised.UtteranceType = ReferenceCategorySpeech
	revised.TotalSyllableCount = 3
	revised.CanonicalSyllableCount = 2
	revised.NonCanonicalSyllableCount = 1

	updated, err := store.UpdateCoding(ctx, &revised)
	require.NoError(t, err)
	assert.True(t, updated)

	var stored UtteranceCoding
	require.NoError(t, ds.DB.First(&stored, original.ID).Error)
	assert.Equal(t, "Canonical", stored.Annotation)
	assert.Equal(t, 3, stored.TotalSyllableCount)

	missing := revised
	missing.ID = 9999
	updated, err = store.UpdateCoding(ctx, &missing)
	require.NoError(t, err)
	assert.False(t, updated, "revising a missing coding must report failure")
}

func TestBatchGroupsInProgress(t *testing.T) {
	t.Parallel()
	store := createDatabase(t, &conf.Settings{})
	ds := gormDB(t, store)
	ctx := context.Background()

	recordingID := seedRecording(t, ds, "H-001")
	segments := seedSegments(t, ds, recordingID, 1)
	utteranceID := seedUtterance(t, ds, &segments[0], 2)
	coderID := seedCoder(t, ds, "frank")

	require.NoError(t, store.CreatePoolEntries(ctx, []SamplePoolEntry{
		{UtteranceID: utteranceID, BatchGroup: 100},
	}))

	groups, err := store.BatchGroupsInProgress(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{100}, groups)

	entry, err := store.ClaimNextEntry(ctx, coderID)
	require.NoError(t, err)
	require.NotNil(t, entry)

	// A claim in flight still counts as in progress.
	groups, err = store.BatchGroupsInProgress(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{100}, groups)

	accepted, err := store.CompleteEntry(ctx, entry.PoolEntryID, &UtteranceCoding{
		UtteranceID:   utteranceID,
		CoderID:       coderID,
		Annotation:    "Word",
		UtteranceType: ReferenceCategorySpeech,
	})
	require.NoError(t, err)
	require.True(t, accepted)

	groups, err = store.BatchGroupsInProgress(ctx)
	require.NoError(t, err)
	assert.Empty(t, groups, "fully coded group must leave the in-progress list")
}

func TestReportUtteranceIDsExcludesInProcessRecordings(t *testing.T) {
	t.Parallel()
	store := createDatabase(t, &conf.Settings{})
	ds := gormDB(t, store)
	ctx := context.Background()

	codeUtterance := func(utteranceID, coderID uint) {
		t.Helper()
		entry, err := store.ClaimNextEntry(ctx, coderID)
		require.NoError(t, err)
		require.NotNil(t, entry)
		accepted, err := store.CompleteEntry(ctx, entry.PoolEntryID, &UtteranceCoding{
			UtteranceID:   entry.UtteranceID,
			CoderID:       coderID,
			Annotation:    "Canonical",
			UtteranceType: ReferenceCategorySpeech,
		})
		require.NoError(t, err)
		require.True(t, accepted)
		assert.Equal(t, utteranceID, entry.UtteranceID)
	}

	doneRecording := seedRecording(t, ds, "I-001")
	doneSegments := seedSegments(t, ds, doneRecording, 1)
	doneUtterance := seedUtterance(t, ds, &doneSegments[0], 1)
	coderID := seedCoder(t, ds, "grace")

	require.NoError(t, store.CreatePoolEntries(ctx, []SamplePoolEntry{
		{UtteranceID: doneUtterance, BatchGroup: 100},
	}))
	codeUtterance(doneUtterance, coderID)

	// Second recording still has an unassigned pool entry, so its coded
	// utterance must stay out of the report.
	busyRecording := seedRecording(t, ds, "I-002")
	busySegments := seedSegments(t, ds, busyRecording, 1)
	busyCoded := seedUtterance(t, ds, &busySegments[0], 1)
	busyPending := seedUtterance(t, ds, &busySegments[0], 30)

	require.NoError(t, store.CreatePoolEntries(ctx, []SamplePoolEntry{
		{UtteranceID: busyCoded, BatchGroup: 200},
		{UtteranceID: busyPending, BatchGroup: 200},
	}))
	codeUtterance(busyCoded, coderID)

	utteranceIDs, err := store.ReportUtteranceIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint{doneUtterance}, utteranceIDs)
}

func TestAcceptableCodingsFiltersLegacyAndRejected(t *testing.T) {
	t.Parallel()
	store := createDatabase(t, &conf.Settings{})
	ds := gormDB(t, store)
	ctx := context.Background()

	recordingID := seedRecording(t, ds, "J-001")
	segments := seedSegments(t, ds, recordingID, 1)
	utteranceID := seedUtterance(t, ds, &segments[0], 1)

	coders := []uint{
		seedCoder(t, ds, "c1"),
		seedCoder(t, ds, "c2"),
		seedCoder(t, ds, "c3"),
		seedCoder(t, ds, "c4"),
	}

	codings := []UtteranceCoding{
		{UtteranceID: utteranceID, CoderID: coders[0], Annotation: "Word", UtteranceType: ReferenceCategorySpeech, IsAcceptable: true},
		{UtteranceID: utteranceID, CoderID: coders[1], Annotation: "Word", UtteranceType: ReferenceCategorySpeech, IsAcceptable: true},
		{UtteranceID: utteranceID, CoderID: coders[2], Annotation: "Word", UtteranceType: ReferenceCategorySpeech, IsAcceptable: false},
		{UtteranceID: utteranceID, CoderID: coders[3], Annotation: "Word", UtteranceType: ReferenceCategorySpeech, IsAcceptable: true, Comments: "Legacy Code"},
	}
	require.NoError(t, ds.DB.Create(&codings).Error)

	grouped, err := store.AcceptableCodings(ctx, []uint{utteranceID})
	require.NoError(t, err)
	assert.Len(t, grouped[utteranceID], 2, "rejected and legacy codings must be filtered")
}

func TestUtteranceMetadataRows(t *testing.T) {
	t.Parallel()
	store := createDatabase(t, &conf.Settings{})
	ds := gormDB(t, store)
	ctx := context.Background()

	recordingID := seedRecording(t, ds, "K-001")
	segments := seedSegments(t, ds, recordingID, 1)
	require.NoError(t, ds.DB.Model(&Segment{}).
		Where("id = ?", segments[0].ID).
		Updates(map[string]any{
			"is_selected":         true,
			"selection_criterion": CriterionHighVolubility,
		}).Error)
	utteranceID := seedUtterance(t, ds, &segments[0], 10)

	rows, err := store.UtteranceMetadataRows(ctx, []uint{utteranceID})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, utteranceID, row.UtteranceID)
	assert.Equal(t, "K-001", row.AssessmentID)
	assert.Equal(t, "child-K-001", row.ChildID)
	assert.Equal(t, "F", row.ChildSex)
	assert.Equal(t, "control", row.Cohort)
	assert.Equal(t, segments[0].ID, row.SegmentID)
	assert.Equal(t, CriterionHighVolubility, row.SelectionCriterion)
	assert.InDelta(t, 9.5, row.AgeAtRecordingMonths, 0.001)
	assert.InDelta(t, 1.2, row.Duration, 0.001)
	assert.InDelta(t, 270, row.PitchRange, 0.001)
}

func TestUtteranceMetadataRowsDetectsMissingUtterance(t *testing.T) {
	t.Parallel()
	store := createDatabase(t, &conf.Settings{})
	ds := gormDB(t, store)
	ctx := context.Background()

	recordingID := seedRecording(t, ds, "K-002")
	segments := seedSegments(t, ds, recordingID, 1)
	utteranceID := seedUtterance(t, ds, &segments[0], 3)

	rows, err := store.UtteranceMetadataRows(ctx, []uint{utteranceID, utteranceID + 1000})
	require.Error(t, err, "a requested utterance without a metadata chain must fail the lookup")
	assert.Nil(t, rows)
	assert.Equal(t, errors.CategoryConsistency, errors.CategoryOf(err))
}

func TestCodingEventsBounds(t *testing.T) {
	t.Parallel()
	store := createDatabase(t, &conf.Settings{})
	ds := gormDB(t, store)
	ctx := context.Background()

	recordingID := seedRecording(t, ds, "L-001")
	segments := seedSegments(t, ds, recordingID, 1)
	utteranceID := seedUtterance(t, ds, &segments[0], 1)
	secondUtterance := seedUtterance(t, ds, &segments[0], 40)
	coderID := seedCoder(t, ds, "heidi")

	early := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	late := time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC)

	codings := []UtteranceCoding{
		{UtteranceID: utteranceID, CoderID: coderID, Annotation: "Word", UtteranceType: ReferenceCategorySpeech, IsAcceptable: true, CreatedAt: early},
		{UtteranceID: secondUtterance, CoderID: coderID, Annotation: "Word", UtteranceType: ReferenceCategorySpeech, IsAcceptable: true, CreatedAt: late},
	}
	require.NoError(t, ds.DB.Create(&codings).Error)

	events, err := store.CodingEvents(ctx, nil, nil)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "heidi", events[0].CoderName)

	cutoff := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	events, err = store.CodingEvents(ctx, &cutoff, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, secondUtterance, events[0].UtteranceID)

	events, err = store.CodingEvents(ctx, nil, &cutoff)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, utteranceID, events[0].UtteranceID)
}
