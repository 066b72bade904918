// model.go this code defines the data model for the application
package datastore

import "time"

// Selection criteria assigned to segments chosen for coding.
const (
	CriterionHighVolubility = "high-volubility"
	CriterionRandomSample   = "random-sample"
)

// Exclusion window categories.
const (
	ExclusionNap   = "nap"
	ExclusionScrub = "scrub"
	ExclusionOther = "other"
)

// ReferenceCategorySpeech is the utterance type that scopes numeric averages
// in the consensus report.
const ReferenceCategorySpeech = "Speech"

// UtteranceTypeNonSpeech is the type assigned to non-speech annotations.
const UtteranceTypeNonSpeech = "Non-speech"

// annotationTypes maps an annotation to its parent utterance type.
var annotationTypes = map[string]string{
	"Canonical":     ReferenceCategorySpeech,
	"Non-Canonical": ReferenceCategorySpeech,
	"Word":          ReferenceCategorySpeech,
	"Laughing":      UtteranceTypeNonSpeech,
	"Crying":        UtteranceTypeNonSpeech,
	"Vegetative":    UtteranceTypeNonSpeech,
	"Unclear":       UtteranceTypeNonSpeech,
}

// AnnotationType returns the utterance type for a known annotation.
func AnnotationType(annotation string) (string, bool) {
	t, ok := annotationTypes[annotation]
	return t, ok
}

// Participant represents a child enrolled in the study.
type Participant struct {
	ID          uint   `gorm:"primaryKey"`
	ChildID     string `gorm:"uniqueIndex;not null"` // external child identifier
	Sex         string `gorm:"type:varchar(20)"`
	DateOfBirth time.Time
	Cohort      string `gorm:"type:varchar(50)"` // study group, e.g. risk cohort
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Recording represents one daylong home recording of a participant.
type Recording struct {
	ID                   uint   `gorm:"primaryKey"`
	ParticipantID        uint   `gorm:"index;not null"`
	AssessmentID         string `gorm:"uniqueIndex;not null"` // lab-assigned assessment identifier
	RecordingDate        time.Time
	AgeAtRecordingMonths float64
	BaseFileName         string
	IsValid              bool `gorm:"default:true"`
	CreatedAt            time.Time
	UpdatedAt            time.Time

	Participant Participant `gorm:"foreignKey:ParticipantID"`
}

// Segment is a fixed slice of a recording's timeline, the unit of sampling.
// Times are seconds relative to the recording start.
type Segment struct {
	ID                     uint    `gorm:"primaryKey"`
	RecordingID            uint    `gorm:"index;not null"`
	StartTime              float64 `gorm:"not null"`
	EndTime                float64 `gorm:"not null"`
	ChildVocalizationCount int     `gorm:"index"` // activity metric driving selection
	IsSelected             bool    `gorm:"default:false"`
	SelectionCriterion     string  `gorm:"type:varchar(20)"` // empty until selected
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// ExclusionWindow is a time range of a recording removed from sampling,
// e.g. a nap or a scrubbed period. Times are seconds relative to the
// recording start, on the same timeline as Segment.
type ExclusionWindow struct {
	ID          uint    `gorm:"primaryKey"`
	RecordingID uint    `gorm:"index;not null"`
	StartTime   float64 `gorm:"not null"`
	EndTime     float64 `gorm:"not null"`
	Category    string  `gorm:"type:varchar(20)"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CodingBatch ties a recording to a sampling round.
type CodingBatch struct {
	ID          uint `gorm:"primaryKey"`
	RecordingID uint `gorm:"index;not null"`
	Group       int  `gorm:"column:batch_group;index;not null"` // "group" is reserved in MySQL
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Recording Recording `gorm:"foreignKey:RecordingID"`
}

// Utterance is a detected vocal event inside a selected segment, the unit
// raters actually code. Immutable once created.
type Utterance struct {
	ID            uint    `gorm:"primaryKey"`
	SegmentID     uint    `gorm:"index:idx_utterances_segment;uniqueIndex:idx_utterances_window;not null"`
	StartTime     float64 `gorm:"uniqueIndex:idx_utterances_window;not null"`
	EndTime       float64 `gorm:"uniqueIndex:idx_utterances_window;not null"`
	Duration      float64 `gorm:"not null"`
	AudioFileName string
	MinPitch      float64
	MaxPitch      float64
	AvgPitch      float64
	PitchRange    float64
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Segment Segment `gorm:"foreignKey:SegmentID"`
}

// SamplePoolEntry is one rater slot for one utterance within a batch group.
// Entries are created unassigned, claimed by flipping IsProcessing, and
// completed by assigning a coder. Entries are never deleted.
type SamplePoolEntry struct {
	ID           uint  `gorm:"primaryKey"`
	UtteranceID  uint  `gorm:"index;not null"`
	BatchGroup   int   `gorm:"index;not null"`
	CoderID      *uint `gorm:"index"` // nil until a coding is submitted
	IsProcessing bool  `gorm:"default:false"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Utterance Utterance `gorm:"foreignKey:UtteranceID"`
}

// UtteranceCoding is one rater's judgment of one utterance. A coder may
// revise their own row but never holds two rows for the same utterance.
type UtteranceCoding struct {
	ID                        uint      `gorm:"primaryKey"`
	UtteranceID               uint      `gorm:"uniqueIndex:idx_codings_utterance_coder;not null"`
	CoderID                   uint      `gorm:"uniqueIndex:idx_codings_utterance_coder;not null"`
	Annotation                string    `gorm:"type:varchar(50);not null"`
	UtteranceType             string    `gorm:"type:varchar(50);not null"` // derived from Annotation
	TotalSyllableCount        int       `gorm:"default:0"`
	CanonicalSyllableCount    int       `gorm:"default:0"`
	NonCanonicalSyllableCount int       `gorm:"default:0"` // always Total - Canonical
	WordSyllableCount         int       `gorm:"default:0"`
	WordCount                 int       `gorm:"default:0"`
	Comments                  string    `gorm:"type:text"`
	IsAcceptable              bool      `gorm:"default:true"`
	CreatedAt                 time.Time `gorm:"index"`
	UpdatedAt                 time.Time
}

// Coder is a trained rater.
type Coder struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	IsActive  bool   `gorm:"default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
