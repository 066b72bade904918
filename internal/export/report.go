// Package export writes consensus report rows to CSV for downstream
// statistical analysis.
package export

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vocalab/vococode-go/internal/consensus"
	"github.com/vocalab/vococode-go/internal/logging"
)

// reportHeader is the CSV column layout of the consensus report. One row per
// utterance: identifying metadata, then consensus/agreement/average triplets
// for the numeric fields and consensus/agreement pairs for the categorical
// ones.
const reportHeader = "report_run,utterance_id,assessment_id,recording_date,child_id,child_sex,child_dob,age_months,cohort," +
	"segment_id,selection_criterion,start_s,end_s,duration_s,min_pitch,max_pitch,avg_pitch,pitch_range," +
	"total_syll,total_syll_agreement,total_syll_avg," +
	"canonical_syll,canonical_syll_agreement,canonical_syll_avg," +
	"noncanonical_syll,noncanonical_syll_agreement,noncanonical_syll_avg," +
	"word_syll,word_syll_agreement,word_syll_avg," +
	"word_count,word_count_agreement,word_count_avg," +
	"utterance_type,utterance_type_agreement," +
	"annotation,annotation_agreement\n"

// WriteReportCsv writes the consensus records to the given destination in CSV
// format. If filename is an empty string, the function writes to stdout.
// Every row carries a run identifier so downstream merges can tell report
// generations apart. Returns the run identifier.
func WriteReportCsv(records []consensus.Record, filename string) (string, error) {
	var w io.Writer

	// Determine the output destination, file or screen
	if filename != "" {
		// Ensure the filename has a .csv extension.
		if !strings.HasSuffix(filename, ".csv") {
			filename += ".csv"
		}
		file, err := os.Create(filename)
		if err != nil {
			return "", fmt.Errorf("failed to create file %s: %w", filename, err)
		}
		defer file.Close()
		w = file
	} else {
		w = os.Stdout
	}

	runID := uuid.New().String()

	if _, err := w.Write([]byte(reportHeader)); err != nil {
		return "", fmt.Errorf("failed to write header to CSV: %w", err)
	}

	// Pre-declare err outside the loop to avoid re-declaration
	var err error

	for i := range records {
		line := formatRow(runID, &records[i])
		if _, err = w.Write([]byte(line)); err != nil {
			break
		}
	}

	if err != nil {
		return "", fmt.Errorf("failed to write report row to CSV: %w", err)
	}

	if filename != "" {
		logging.ForService("export").Info("Report written",
			"file", filename,
			"rows", len(records),
			"report_run", runID)
	}

	return runID, nil
}

func formatRow(runID string, r *consensus.Record) string {
	return fmt.Sprintf("%s,%d,%s,%s,%s,%s,%s,%.1f,%s,%d,%s,%.2f,%.2f,%.3f,%.1f,%.1f,%.1f,%.1f,%s,%s,%s,%s,%s,%s,%s\n",
		runID,
		r.UtteranceID,
		r.AssessmentID,
		r.RecordingDate.Format(time.DateOnly),
		r.ChildID,
		r.ChildSex,
		r.ChildDOB.Format(time.DateOnly),
		r.AgeAtRecordingMonths,
		r.Cohort,
		r.SegmentID,
		r.SelectionCriterion,
		r.StartTime,
		r.EndTime,
		r.Duration,
		r.MinPitch,
		r.MaxPitch,
		r.AvgPitch,
		r.PitchRange,
		numericCells(&r.TotalSyllableCount),
		numericCells(&r.CanonicalSyllableCount),
		numericCells(&r.NonCanonicalSyllableCount),
		numericCells(&r.WordSyllableCount),
		numericCells(&r.WordCount),
		categoryCells(&r.UtteranceType),
		categoryCells(&r.Annotation))
}

// numericCells renders consensus, agreement and average. A field with no
// strict majority leaves the consensus cell empty; an average with no
// reference-type codes leaves the average cell empty.
func numericCells(f *consensus.NumericField) string {
	consensusCell := ""
	if f.Consensus != nil {
		consensusCell = fmt.Sprintf("%d", *f.Consensus)
	}
	averageCell := ""
	if f.Average != nil {
		averageCell = fmt.Sprintf("%.2f", *f.Average)
	}
	return fmt.Sprintf("%s,%.2f,%s", consensusCell, f.Agreement, averageCell)
}

func categoryCells(f *consensus.CategoryField) string {
	consensusCell := ""
	if f.Consensus != nil {
		consensusCell = *f.Consensus
	}
	return fmt.Sprintf("%s,%.2f", consensusCell, f.Agreement)
}
