package series

import (
	"math"
	"sort"
	"time"

	"github.com/miradorstack/climate-econometrics/internal/models"
)

// Stage is the name used in errors raised by series preparation.
const Stage = "series_preparation"

// MinObservations is the smallest pair the regression engine accepts.
const MinObservations = 2

type dayKey struct {
	year  int
	month time.Month
	day   int
}

func keyOf(t time.Time) dayKey {
	y, m, d := t.UTC().Date()
	return dayKey{year: y, month: m, day: d}
}

// Align inner-joins two raw series on calendar day (UTC) and drops rows where either
// value is missing or non-finite. For a duplicated day the first finite observation
// wins.
// The result is ordered by date.
func Align(explanatory, dependent models.Series) (models.TimeSeriesPair, error) {
	var summary models.DropSummary

	xs, dupX := index(explanatory)
	ys, dupY := index(dependent)
	summary.Duplicates = dupX + dupY

	keys := make([]dayKey, 0, len(xs))
	for k := range xs {
		if _, ok := ys[k]; ok {
			keys = append(keys, k)
		} else {
			summary.ExplanatoryOnly++
		}
	}
	for k := range ys {
		if _, ok := xs[k]; !ok {
			summary.DependentOnly++
		}
	}

	sort.Slice(keys, func(i, j int) bool {
		return xs[keys[i]].Date.Before(xs[keys[j]].Date)
	})

	pair := models.TimeSeriesPair{
		XName: explanatory.Name,
		YName: dependent.Name,
		Dates: make([]time.Time, 0, len(keys)),
		X:     make([]float64, 0, len(keys)),
		Y:     make([]float64, 0, len(keys)),
	}
	for _, k := range keys {
		x, y := xs[k], ys[k]
		if !finite(x.Value) || !finite(y.Value) {
			summary.Missing++
			continue
		}
		pair.Dates = append(pair.Dates, time.Date(k.year, k.month, k.day, 0, 0, 0, 0, time.UTC))
		pair.X = append(pair.X, x.Value)
		pair.Y = append(pair.Y, y.Value)
	}
	pair.Dropped = summary

	if pair.N() < MinObservations {
		return models.TimeSeriesPair{}, &models.InsufficientDataError{Stage: Stage, Need: MinObservations, Got: pair.N()}
	}
	return pair, nil
}

// FromSlices builds a pair from already-aligned vectors, applying the same cleaning
// rules as Align. Dates are synthesised as consecutive days from start when nil.
func FromSlices(x, y []float64, dates []time.Time) (models.TimeSeriesPair, error) {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	if dates == nil {
		start := time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
		dates = make([]time.Time, n)
		for i := range dates {
			dates[i] = start.AddDate(0, 0, i)
		}
	}
	ex := models.Series{Name: "x", Points: make([]models.Observation, 0, n)}
	dep := models.Series{Name: "y", Points: make([]models.Observation, 0, n)}
	for i := 0; i < n && i < len(dates); i++ {
		ex.Points = append(ex.Points, models.Observation{Date: dates[i], Value: x[i]})
		dep.Points = append(dep.Points, models.Observation{Date: dates[i], Value: y[i]})
	}
	return Align(ex, dep)
}

func index(s models.Series) (map[dayKey]models.Observation, int) {
	out := make(map[dayKey]models.Observation, len(s.Points))
	dups := 0
	for _, p := range s.Points {
		k := keyOf(p.Date)
		prev, ok := out[k]
		if !ok {
			out[k] = p
			continue
		}
		dups++
		if !finite(prev.Value) && finite(p.Value) {
			out[k] = p
		}
	}
	return out, dups
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
