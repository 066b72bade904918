package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/vocalab/vococode-go/internal/datastore"
)

// FileProvider reads vocal events from per-recording CSV files produced by
// the acoustic detector. The file for a recording is named
// "<BaseFileName>_events.csv" and carries a header row followed by
// start,end,min_pitch,max_pitch,avg_pitch columns.
type FileProvider struct {
	Dir string
}

// NewFileProvider creates a provider reading event files from dir.
func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{Dir: dir}
}

// VocalEvents parses the recording's event file.
func (p *FileProvider) VocalEvents(_ context.Context, recording *datastore.Recording) ([]VocalEvent, error) {
	path := filepath.Join(p.Dir, recording.BaseFileName+"_events.csv")
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open events file %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = 5

	// Skip the header row.
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("failed to read events header of %s: %w", path, err)
	}

	var events []VocalEvent
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read events file %s: %w", path, err)
		}

		event, err := parseEventRow(row)
		if err != nil {
			return nil, fmt.Errorf("invalid event at %s line %d: %w", path, line, err)
		}
		events = append(events, event)
	}

	return events, nil
}

func parseEventRow(row []string) (VocalEvent, error) {
	fields := make([]float64, len(row))
	for i, cell := range row {
		value, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return VocalEvent{}, fmt.Errorf("column %d: %w", i+1, err)
		}
		fields[i] = value
	}

	if fields[1] <= fields[0] {
		return VocalEvent{}, fmt.Errorf("end time %.3f not after start time %.3f", fields[1], fields[0])
	}

	return VocalEvent{
		StartTime:  fields[0],
		EndTime:    fields[1],
		MinPitch:   fields[2],
		MaxPitch:   fields[3],
		AvgPitch:   fields[4],
		PitchRange: fields[3] - fields[2],
	}, nil
}
