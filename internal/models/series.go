package models

import "time"

// Observation is a single dated value. Missing values are carried as NaN.
type Observation struct {
	Date  time.Time
	Value float64
}

// Series is a raw, possibly unaligned, date-indexed series as delivered by a loader.
type Series struct {
	Name   string
	Points []Observation
}

// Len reports the number of raw observations.
func (s Series) Len() int {
	return len(s.Points)
}

// TimeSeriesPair holds two aligned series with no missing values, ordered by date.
// X is the explanatory series and Y the dependent one. Produced once by series
// preparation and never mutated afterwards.
type TimeSeriesPair struct {
	XName string
	YName string
	Dates []time.Time
	X     []float64
	Y     []float64
	// Dropped counts rows lost during alignment and cleaning.
	Dropped DropSummary
}

// DropSummary explains why raw rows did not survive preparation.
type DropSummary struct {
	ExplanatoryOnly int
	DependentOnly   int
	Missing         int
	Duplicates      int
}

// Total returns the number of dropped rows.
func (d DropSummary) Total() int {
	return d.ExplanatoryOnly + d.DependentOnly + d.Missing + d.Duplicates
}

// N returns the number of usable observations.
func (p TimeSeriesPair) N() int {
	return len(p.X)
}

// Start returns the first date of the pair, or the zero time when empty.
func (p TimeSeriesPair) Start() time.Time {
	if len(p.Dates) == 0 {
		return time.Time{}
	}
	return p.Dates[0]
}

// End returns the last date of the pair, or the zero time when empty.
func (p TimeSeriesPair) End() time.Time {
	if len(p.Dates) == 0 {
		return time.Time{}
	}
	return p.Dates[len(p.Dates)-1]
}
