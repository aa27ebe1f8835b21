package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

var defaultCSVHeader = []string{"elapsed_s", "temperature", "humidity"}

// CSVExportOptions configures how the history window is written to CSV.
type CSVExportOptions struct {
	FilePath     string
	FilterByTime bool
	Start, End   float64  // elapsed seconds, inclusive
	CustomHeader []string // Custom header row; if nil, defaultCSVHeader is used.
}

// ExportCSV writes samples to a CSV file and returns how many rows it wrote.
func ExportCSV(samples []Sample, opts CSVExportOptions) (int, error) {
	f, err := os.Create(opts.FilePath)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	header := defaultCSVHeader
	if len(opts.CustomHeader) > 0 {
		header = opts.CustomHeader
	}
	if err := w.Write(header); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	rows := 0
	for _, s := range samples {
		if opts.FilterByTime && (s.Elapsed < opts.Start || s.Elapsed > opts.End) {
			continue
		}
		record := []string{
			strconv.FormatFloat(s.Elapsed, 'f', 3, 64),
			strconv.FormatFloat(s.Temperature, 'g', -1, 64),
			strconv.FormatFloat(s.Humidity, 'g', -1, 64),
		}
		if err := w.Write(record); err != nil {
			return rows, fmt.Errorf("failed to write record: %w", err)
		}
		rows++
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return rows, fmt.Errorf("failed to flush csv writer: %w", err)
	}
	return rows, nil
}
