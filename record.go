package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// faultSentinel is the line the sketch prints when the sensor read fails.
const faultSentinel = "ERROR"

var (
	// ErrEmptyRecord is returned for blank lines.
	ErrEmptyRecord = errors.New("empty record")
	// ErrDeviceFault is returned when the device reports a sensor fault.
	ErrDeviceFault = errors.New("device reported fault")
	// ErrMalformedRecord is returned for lines that are not "<float>,<float>".
	ErrMalformedRecord = errors.New("malformed record")
)

// Sample is one parsed reading, timed relative to the clock origin.
type Sample struct {
	Elapsed     float64 // seconds since the clock origin
	Temperature float64
	Humidity    float64
}

// parseRecord splits a "temperature,humidity" line into its two values.
func parseRecord(line string) (temperature, humidity float64, err error) {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return 0, 0, ErrEmptyRecord
	case faultSentinel:
		return 0, 0, ErrDeviceFault
	}

	fields := strings.Split(line, ",")
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("%w: want 2 fields, got %d", ErrMalformedRecord, len(fields))
	}

	temperature, err = strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: temperature: %w", ErrMalformedRecord, err)
	}
	humidity, err = strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: humidity: %w", ErrMalformedRecord, err)
	}
	return temperature, humidity, nil
}
