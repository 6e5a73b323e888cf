package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/miradorstack/climate-econometrics/internal/models"
	"github.com/miradorstack/climate-econometrics/internal/utils"
)

// CSVOptions names the header columns holding dates and values. Matching ignores case.
type CSVOptions struct {
	DateColumn  string
	ValueColumn string
}

// DefaultCSVOptions reads a plain date,value file.
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{DateColumn: "date", ValueColumn: "value"}
}

// ReadCSV parses a headed CSV document. Empty and NA cells become missing (NaN) values.
func ReadCSV(r io.Reader, name string, opts CSVOptions) (models.Series, error) {
	if opts.DateColumn == "" {
		opts.DateColumn = "date"
	}
	if opts.ValueColumn == "" {
		opts.ValueColumn = "value"
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return models.Series{}, fmt.Errorf("empty csv document")
	}
	if err != nil {
		return models.Series{}, fmt.Errorf("read header: %w", err)
	}
	dateIdx, valueIdx := -1, -1
	for i, col := range header {
		col = strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
		switch {
		case strings.EqualFold(col, opts.DateColumn):
			dateIdx = i
		case strings.EqualFold(col, opts.ValueColumn):
			valueIdx = i
		}
	}
	if dateIdx < 0 {
		return models.Series{}, fmt.Errorf("column %q not found in header", opts.DateColumn)
	}
	if valueIdx < 0 {
		return models.Series{}, fmt.Errorf("column %q not found in header", opts.ValueColumn)
	}

	s := models.Series{Name: name}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return models.Series{}, err
		}
		line, _ := reader.FieldPos(0)
		if len(record) <= dateIdx || len(record) <= valueIdx {
			return models.Series{}, fmt.Errorf("line %d: expected at least %d fields, got %d", line, max(dateIdx, valueIdx)+1, len(record))
		}
		date, err := utils.ParseDate(record[dateIdx])
		if err != nil {
			return models.Series{}, fmt.Errorf("line %d: %w", line, err)
		}
		value, err := parseValue(record[valueIdx])
		if err != nil {
			return models.Series{}, fmt.Errorf("line %d: %w", line, err)
		}
		s.Points = append(s.Points, models.Observation{Date: date, Value: value})
	}
	return s, nil
}

func parseValue(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(raw) {
	case "", "na", "nan", "null":
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q", raw)
	}
	return v, nil
}
