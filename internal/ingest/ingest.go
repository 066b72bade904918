// Package ingest turns detected vocal events into utterance rows for the
// segments a recording's sampling pass selected.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vocalab/vococode-go/internal/datastore"
	"github.com/vocalab/vococode-go/internal/errors"
	"github.com/vocalab/vococode-go/internal/logging"
)

// VocalEvent is one detected child vocalization on the recording timeline.
// Times are seconds relative to the recording start.
type VocalEvent struct {
	StartTime  float64
	EndTime    float64
	MinPitch   float64
	MaxPitch   float64
	AvgPitch   float64
	PitchRange float64
}

// VocalEventProvider supplies the detected vocal events of a recording,
// typically parsed from the detector's output files.
type VocalEventProvider interface {
	VocalEvents(ctx context.Context, recording *datastore.Recording) ([]VocalEvent, error)
}

// Ingester materializes utterances from vocal events.
type Ingester struct {
	store    datastore.Interface
	provider VocalEventProvider
	logger   *slog.Logger
}

// New creates an Ingester reading events from the given provider.
func New(store datastore.Interface, provider VocalEventProvider) *Ingester {
	return &Ingester{
		store:    store,
		provider: provider,
		logger:   logging.ForService("ingest"),
	}
}

// IngestUtterances creates one Utterance per vocal event whose start falls
// inside a selected segment of the recording. Events outside selected
// segments are dropped. The call is idempotent: if the recording already has
// utterances it does nothing and reports how many exist.
func (in *Ingester) IngestUtterances(ctx context.Context, recordingID uint) (int, error) {
	existing, err := in.store.UtteranceCountForRecording(ctx, recordingID)
	if err != nil {
		return 0, err
	}
	if existing > 0 {
		in.logger.Info("Recording already has utterances, skipping ingest",
			"recording_id", recordingID,
			"utterances", existing)
		return int(existing), nil
	}

	segments, err := in.store.SelectedSegments(ctx, recordingID)
	if err != nil {
		return 0, err
	}
	if len(segments) == 0 {
		return 0, errors.Newf("recording %d has no selected segments", recordingID).
			Component("ingest").
			Category(errors.CategoryState).
			Context("recording_id", recordingID).
			Build()
	}

	recording, err := in.store.GetRecording(ctx, recordingID)
	if err != nil {
		return 0, err
	}

	events, err := in.provider.VocalEvents(ctx, &recording)
	if err != nil {
		return 0, errors.New(err).
			Component("ingest").
			Category(errors.CategoryFileIO).
			Context("recording_id", recordingID).
			Build()
	}

	utterances := make([]datastore.Utterance, 0, len(events))
	for _, event := range events {
		segment, ok := containingSegment(segments, event.StartTime)
		if !ok {
			continue
		}
		utterances = append(utterances, datastore.Utterance{
			SegmentID:     segment.ID,
			StartTime:     event.StartTime,
			EndTime:       event.EndTime,
			Duration:      event.EndTime - event.StartTime,
			AudioFileName: clipFileName(&recording, event.StartTime, event.EndTime),
			MinPitch:      event.MinPitch,
			MaxPitch:      event.MaxPitch,
			AvgPitch:      event.AvgPitch,
			PitchRange:    event.PitchRange,
		})
	}

	if len(utterances) > 0 {
		if err := in.store.SaveUtterances(ctx, utterances); err != nil {
			return 0, err
		}
	}

	in.logger.Info("Utterance ingest completed",
		"recording_id", recordingID,
		"events", len(events),
		"utterances", len(utterances))

	return len(utterances), nil
}

// containingSegment returns the selected segment whose window contains the
// given start time. Segment windows never overlap within a recording.
func containingSegment(segments []datastore.Segment, start float64) (*datastore.Segment, bool) {
	for i := range segments {
		if start >= segments[i].StartTime && start < segments[i].EndTime {
			return &segments[i], true
		}
	}
	return nil, false
}

// clipFileName derives the audio clip name raters play back, anchored to the
// recording's base file and the event window in milliseconds.
func clipFileName(recording *datastore.Recording, start, end float64) string {
	return fmt.Sprintf("%s_%d_%d.wav", recording.BaseFileName, int(start*1000), int(end*1000))
}
