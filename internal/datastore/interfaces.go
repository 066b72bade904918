// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/vocalab/vococode-go/internal/conf"
)

// Interface abstracts the underlying database implementation and defines the
// operations the sampling and consensus engine needs from the store.
type Interface interface {
	Open() error
	Close() error

	// Recordings and batches
	GetRecording(ctx context.Context, recordingID uint) (Recording, error)
	RecordingIDForAssessment(ctx context.Context, assessmentID string) (uint, error)
	CreateCodingBatch(ctx context.Context, assessmentIDs []string) (int, error)
	BatchGroupsInProgress(ctx context.Context) ([]int, error)

	// Segment selection
	SegmentsByActivity(ctx context.Context, recordingID uint) ([]Segment, error)
	ExclusionsForRecording(ctx context.Context, recordingID uint) ([]ExclusionWindow, error)
	AnySegmentSelected(ctx context.Context, recordingID uint) (bool, error)
	MarkSegmentsSelected(ctx context.Context, selections []SegmentSelection) error
	SelectedSegments(ctx context.Context, recordingID uint) ([]Segment, error)

	// Utterances
	SaveUtterances(ctx context.Context, utterances []Utterance) error
	UtteranceCountForRecording(ctx context.Context, recordingID uint) (int64, error)

	// Sample pool
	UtteranceIDsForBatchGroup(ctx context.Context, batchGroup int) ([]uint, error)
	CreatePoolEntries(ctx context.Context, entries []SamplePoolEntry) error
	PoolEntryCountForGroup(ctx context.Context, batchGroup int) (int64, error)
	ClaimNextEntry(ctx context.Context, coderID uint) (*ClaimedEntry, error)
	CompleteEntry(ctx context.Context, entryID uint, coding *UtteranceCoding) (bool, error)
	UpdateCoding(ctx context.Context, coding *UtteranceCoding) (bool, error)

	// Codings and report
	AcceptableCodings(ctx context.Context, utteranceIDs []uint) (map[uint][]UtteranceCoding, error)
	ReportUtteranceIDs(ctx context.Context) ([]uint, error)
	UtteranceMetadataRows(ctx context.Context, utteranceIDs []uint) ([]UtteranceMetadata, error)
	CodingEvents(ctx context.Context, start, end *time.Time) ([]CodingEvent, error)
}

// SegmentSelection pairs a segment with its selection criterion. The store
// applies the full set in a single transaction.
type SegmentSelection struct {
	SegmentID uint
	Criterion string
}

// ClaimedEntry is the work item returned by ClaimNextEntry: the pool entry
// reference plus the utterance payload the rater client needs.
type ClaimedEntry struct {
	PoolEntryID   uint
	UtteranceID   uint
	Duration      float64
	AudioFileName string
}

// UtteranceMetadata is the denormalized per-utterance metadata joined across
// Recording, Participant and Segment for the consensus report.
type UtteranceMetadata struct {
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
}

// CodingEvent is one coding submission timestamped for rate statistics.
type CodingEvent struct {
	CoderID     uint
	CoderName   string
	UtteranceID uint
	CodedAt     time.Time
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a new store instance based on the provided configuration.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			Settings: settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			Settings: settings,
		}
	default:
		// Validation rejects this configuration before we get here.
		return nil
	}
}
