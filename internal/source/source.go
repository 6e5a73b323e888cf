// Package source reads already-downloaded input series from disk.
package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/miradorstack/climate-econometrics/internal/models"
	"github.com/miradorstack/climate-econometrics/internal/utils"
)

// Format identifies an input file layout.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatCO2JSON Format = "co2-json"
)

// DetectFormat picks a format from the file extension.
func DetectFormat(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatCO2JSON
	}
	return FormatCSV
}

// LoadFile reads path as a series named name. CSV files use opts to locate columns.
func LoadFile(path, name string, opts CSVOptions) (models.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.Series{}, utils.NewAppError("source.LoadFile", "open input", err)
	}
	defer f.Close()

	var s models.Series
	switch DetectFormat(path) {
	case FormatCO2JSON:
		s, err = ReadCO2JSON(f, name)
	default:
		s, err = ReadCSV(f, name, opts)
	}
	if err != nil {
		return models.Series{}, utils.NewAppError("source.LoadFile", fmt.Sprintf("read %s", filepath.Base(path)), err)
	}
	return s, nil
}
