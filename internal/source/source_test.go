package source

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV(t *testing.T) {
	doc := "Date,Value\n2020-01-02,100.5\n2020-01-03,\n2020-01-06, 101.25\n"

	s, err := ReadCSV(strings.NewReader(doc), "dow", DefaultCSVOptions())
	require.NoError(t, err)
	require.Equal(t, 3, s.Len())
	assert.Equal(t, "dow", s.Name)
	assert.Equal(t, time.Date(2020, time.January, 2, 0, 0, 0, 0, time.UTC), s.Points[0].Date)
	assert.Equal(t, 100.5, s.Points[0].Value)
	assert.True(t, math.IsNaN(s.Points[1].Value))
	assert.Equal(t, 101.25, s.Points[2].Value)
}

func TestReadCSVSelectsColumns(t *testing.T) {
	doc := "Date,Open,Close,Volume\n2020-01-02,1,28868.80,251820000\n2020-01-03,2,28634.88,239590000\n"

	s, err := ReadCSV(strings.NewReader(doc), "dow", CSVOptions{DateColumn: "date", ValueColumn: "close"})
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())
	assert.Equal(t, 28634.88, s.Points[1].Value)
}

func TestReadCSVErrors(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"missing column": "date,price\n2020-01-01,1\n",
		"bad date":       "date,value\nsoon,1\n",
		"bad value":      "date,value\n2020-01-01,abc\n",
		"short record":   "value,date\n1\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(doc), "x", DefaultCSVOptions())
			assert.Error(t, err)
		})
	}
}

func TestReadCSVReportsLine(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("date,value\n2020-01-01,1\n2020-01-02,oops\n"), "x", DefaultCSVOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}

func TestReadCO2JSON(t *testing.T) {
	doc := `{"co2":[
		{"year":"2015","month":"1","day":"1","cycle":"399.22","trend":"398.43"},
		{"year":2015,"month":1,"day":2,"trend":398.44},
		{"year":"2015","month":"1","day":"3","trend":""}
	]}`

	s, err := ReadCO2JSON(strings.NewReader(doc), "co2")
	require.NoError(t, err)
	require.Equal(t, 3, s.Len())
	assert.Equal(t, time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC), s.Points[0].Date)
	assert.Equal(t, 398.43, s.Points[0].Value)
	assert.Equal(t, 398.44, s.Points[1].Value)
	assert.True(t, math.IsNaN(s.Points[2].Value))
}

func TestReadCO2JSONErrors(t *testing.T) {
	cases := map[string]string{
		"not json":      `co2`,
		"missing array": `{"data":[]}`,
		"bad date":      `{"co2":[{"year":"2015","month":"2","day":"30","trend":"1"}]}`,
		"fractional":    `{"co2":[{"year":"2015.5","month":"2","day":"1","trend":"1"}]}`,
		"bad trend":     `{"co2":[{"year":"2015","month":"2","day":"1","trend":"high"}]}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadCO2JSON(strings.NewReader(doc), "co2")
			assert.Error(t, err)
		})
	}
}

func TestLoadFileDetectsFormat(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "dow.csv")
	jsonPath := filepath.Join(dir, "co2.JSON")
	require.NoError(t, os.WriteFile(csvPath, []byte("date,value\n2020-01-01,1\n"), 0o600))
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"co2":[{"year":2020,"month":1,"day":1,"trend":410.1}]}`), 0o600))

	assert.Equal(t, FormatCSV, DetectFormat(csvPath))
	assert.Equal(t, FormatCO2JSON, DetectFormat(jsonPath))

	dow, err := LoadFile(csvPath, "dow", DefaultCSVOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, dow.Len())

	co2, err := LoadFile(jsonPath, "co2", DefaultCSVOptions())
	require.NoError(t, err)
	assert.Equal(t, 410.1, co2.Points[0].Value)

	_, err = LoadFile(filepath.Join(dir, "absent.csv"), "x", DefaultCSVOptions())
	assert.Error(t, err)
}
