package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestExportCSVDefaultHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	samples := []Sample{
		{Elapsed: 1.0004, Temperature: 22.5, Humidity: 48},
		{Elapsed: 2.5, Temperature: 23.1, Humidity: 47.5},
	}

	rows, err := ExportCSV(samples, CSVExportOptions{FilePath: path})
	require.NoError(t, err)
	assert.Equal(t, 2, rows)
	assert.Equal(t, "elapsed_s,temperature,humidity\n1.000,22.5,48\n2.500,23.1,47.5\n", readFile(t, path))
}

func TestExportCSVCustomHeaderAndFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	samples := []Sample{sampleN(1), sampleN(2), sampleN(3), sampleN(4)}

	rows, err := ExportCSV(samples, CSVExportOptions{
		FilePath:     path,
		FilterByTime: true,
		Start:        2,
		End:          3,
		CustomHeader: []string{"t", "temp", "rh"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, rows)
	assert.Equal(t, "t,temp,rh\n2.000,22,42\n3.000,23,43\n", readFile(t, path))
}

func TestExportCSVBadPath(t *testing.T) {
	_, err := ExportCSV(nil, CSVExportOptions{FilePath: filepath.Join(t.TempDir(), "missing", "out.csv")})
	assert.Error(t, err)
}
