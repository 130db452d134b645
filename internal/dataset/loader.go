// Package dataset parses uploaded sensor-history files into typed readings.
// Validation happens entirely at this boundary: scoring logic downstream
// never sees a missing or out-of-range field.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"irricast/internal/types"
)

// columns is the required CSV schema. Column order in the file is free; all
// fifteen headers must be present.
var columns = []string{
	"id", "date", "time", "crop", "stage",
	"soil_moisture", "ph", "temperature",
	"nitrogen", "phosphorus", "potassium",
	"rain_probability", "rainfall_mm",
	"irrigation_status", "relay_on",
}

// Load parses a CSV sensor history from r. When gzipped is true the stream
// is decompressed first (.csv.gz uploads). The returned readings are sorted
// by timestamp ascending. Any malformed row aborts the load with
// data_malformed_record carrying the offending line number.
func Load(r io.Reader, gzipped bool) ([]types.SensorReading, error) {
	if gzipped {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeDataMalformedRecord, "invalid gzip stream", err)
		}
		defer gz.Close()
		r = gz
	}

	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeDataMalformedRecord, "reading csv header", err)
	}
	idx, err := headerIndex(header)
	if err != nil {
		return nil, err
	}

	var readings []types.SensorReading
	line := 1 // header consumed
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, malformed(line, "unparseable csv record", err)
		}

		reading, err := parseRow(record, idx, line)
		if err != nil {
			return nil, err
		}
		readings = append(readings, reading)
	}

	if len(readings) == 0 {
		return nil, types.NewAppError(types.ErrCodeDataNoHistory, "dataset contained no data rows", nil)
	}

	types.SortReadings(readings)
	return readings, nil
}

// headerIndex maps each required column name to its position, failing with
// data_missing_field when any is absent.
func headerIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range columns {
		if _, ok := idx[name]; !ok {
			return nil, types.NewAppError(
				types.ErrCodeDataMissingField,
				fmt.Sprintf("dataset header missing column %q", name),
				nil,
			).WithDetails(map[string]any{"column": name})
		}
	}
	return idx, nil
}

func parseRow(record []string, idx map[string]int, line int) (types.SensorReading, error) {
	field := func(name string) (string, error) {
		i := idx[name]
		if i >= len(record) {
			return "", malformed(line, fmt.Sprintf("row too short for column %q", name), nil)
		}
		return strings.TrimSpace(record[i]), nil
	}

	var r types.SensorReading
	var err error

	if r.ID, err = field("id"); err != nil {
		return r, err
	}
	if r.Crop, err = field("crop"); err != nil {
		return r, err
	}
	if r.Stage, err = field("stage"); err != nil {
		return r, err
	}

	dateStr, err := field("date")
	if err != nil {
		return r, err
	}
	timeStr, err := field("time")
	if err != nil {
		return r, err
	}
	if r.Timestamp, err = parseTimestamp(dateStr, timeStr); err != nil {
		return r, malformed(line, fmt.Sprintf("invalid date/time %q %q", dateStr, timeStr), err)
	}

	floats := []struct {
		name     string
		dst      *float64
		min, max float64
	}{
		{"soil_moisture", &r.SoilMoisture, 0, 100},
		{"ph", &r.PH, 0, 14},
		{"temperature", &r.TemperatureC, -60, 70},
		{"nitrogen", &r.Nitrogen, 0, 1000},
		{"phosphorus", &r.Phosphorus, 0, 1000},
		{"potassium", &r.Potassium, 0, 1000},
		{"rain_probability", &r.RainProbability, 0, 100},
		{"rainfall_mm", &r.RainfallMM, 0, 1000},
	}
	for _, f := range floats {
		raw, err := field(f.name)
		if err != nil {
			return r, err
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return r, malformed(line, fmt.Sprintf("column %q is not numeric: %q", f.name, raw), err)
		}
		if v < f.min || v > f.max {
			return r, malformed(line, fmt.Sprintf("column %q value %.2f outside [%g, %g]", f.name, v, f.min, f.max), nil)
		}
		*f.dst = v
	}

	bools := []struct {
		name string
		dst  *bool
	}{
		{"irrigation_status", &r.Irrigated},
		{"relay_on", &r.RelayOn},
	}
	for _, b := range bools {
		raw, err := field(b.name)
		if err != nil {
			return r, err
		}
		v, err := parseFlag(raw)
		if err != nil {
			return r, malformed(line, fmt.Sprintf("column %q is not a flag: %q", b.name, raw), nil)
		}
		*b.dst = v
	}

	return r, nil
}

// parseTimestamp combines the date and time columns into a UTC timestamp.
// Seconds in the time column are optional.
func parseTimestamp(dateStr, timeStr string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02 15:04"} {
		if ts, err := time.ParseInLocation(layout, dateStr+" "+timeStr, time.UTC); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date/time format")
}

// parseFlag accepts the label vocabulary seen in controller exports.
func parseFlag(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("unrecognized flag value")
}

func malformed(line int, msg string, err error) *types.AppError {
	return types.NewAppError(types.ErrCodeDataMalformedRecord, msg, err).
		WithDetails(map[string]any{"line": line})
}
