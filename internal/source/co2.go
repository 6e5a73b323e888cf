package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/miradorstack/climate-econometrics/internal/models"
	"github.com/miradorstack/climate-econometrics/internal/utils"
)

// co2Document is the global-warming.org CO2 payload. Fields arrive either as JSON
// numbers or as quoted strings.
type co2Document struct {
	CO2 []co2Record `json:"co2"`
}

type co2Record struct {
	Year  flexNumber `json:"year"`
	Month flexNumber `json:"month"`
	Day   flexNumber `json:"day"`
	Trend flexNumber `json:"trend"`
}

type flexNumber struct {
	value float64
	set   bool
}

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return nil
		}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s", data)
	}
	n.value, n.set = v, true
	return nil
}

func (n flexNumber) int() (int, bool) {
	if !n.set || n.value != float64(int(n.value)) {
		return 0, false
	}
	return int(n.value), true
}

// ReadCO2JSON decodes the daily CO2 trend series. Records without a trend reading
// are kept as missing values.
func ReadCO2JSON(r io.Reader, name string) (models.Series, error) {
	var doc co2Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return models.Series{}, fmt.Errorf("decode co2 document: %w", err)
	}
	if doc.CO2 == nil {
		return models.Series{}, fmt.Errorf("co2 document has no \"co2\" array")
	}

	s := models.Series{Name: name, Points: make([]models.Observation, 0, len(doc.CO2))}
	for i, rec := range doc.CO2 {
		year, okY := rec.Year.int()
		month, okM := rec.Month.int()
		day, okD := rec.Day.int()
		if !okY || !okM || !okD {
			return models.Series{}, fmt.Errorf("co2[%d]: calendar fields must be integers", i)
		}
		date, err := utils.CivilDate(year, month, day)
		if err != nil {
			return models.Series{}, fmt.Errorf("co2[%d]: %w", i, err)
		}
		value := rec.Trend.value
		if !rec.Trend.set {
			value = math.NaN()
		}
		s.Points = append(s.Points, models.Observation{Date: date, Value: value})
	}
	return s, nil
}
