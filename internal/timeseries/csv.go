package timeseries

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadCSV reads a delimited file into a frame. The file must contain a
// `dates` column in ISO format; every other column is parsed as
// float64, with empty cells becoming NaN.
func LoadCSV(path string, sep rune) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = sep
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%w: %s has no data rows", ErrInvalidInput, path)
	}

	header := records[0]
	dateCol := -1
	for i, name := range header {
		if strings.TrimSpace(name) == "dates" {
			dateCol = i
		}
	}
	if dateCol == -1 {
		return nil, fmt.Errorf("%w: %s is missing required column \"dates\"", ErrInvalidInput, path)
	}

	rows := records[1:]
	dates := make([]time.Time, len(rows))
	values := make(map[string][]float64, len(header)-1)
	for i, name := range header {
		if i != dateCol {
			values[name] = make([]float64, len(rows))
		}
	}

	for r, record := range rows {
		if len(record) != len(header) {
			return nil, fmt.Errorf("%w: row %d has %d fields, expected %d",
				ErrInvalidInput, r+2, len(record), len(header))
		}

		d, err := time.Parse(DateLayout, strings.TrimSpace(record[dateCol]))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d has malformed date %q",
				ErrInvalidInput, r+2, record[dateCol])
		}
		dates[r] = Normalize(d)

		for i, name := range header {
			if i == dateCol {
				continue
			}
			cell := strings.TrimSpace(record[i])
			if cell == "" {
				values[name][r] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d column %q has non-numeric value %q",
					ErrInvalidInput, r+2, name, cell)
			}
			values[name][r] = v
		}
	}

	frame := New(dates)
	for i, name := range header {
		if i == dateCol {
			continue
		}
		frame, err = frame.WithColumn(name, values[name])
		if err != nil {
			return nil, err
		}
	}

	return frame, nil
}
