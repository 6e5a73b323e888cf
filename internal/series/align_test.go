package series

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/miradorstack/climate-econometrics/internal/models"
)

func day(i int) time.Time {
	return time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func TestAlignDropsMissingRows(t *testing.T) {
	dji := []float64{100, math.NaN(), 200, 300, 400, 500, 600, 700, 800, 900}
	co2 := []float64{400, 401, math.NaN(), 403, 404, 405, 406, 407, 408, 409}

	ex := models.Series{Name: "CO2_Level"}
	dep := models.Series{Name: "DJI_Close"}
	for i := range dji {
		ex.Points = append(ex.Points, models.Observation{Date: day(i), Value: co2[i]})
		dep.Points = append(dep.Points, models.Observation{Date: day(i), Value: dji[i]})
	}

	pair, err := Align(ex, dep)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pair.N() != 8 {
		t.Fatalf("expected 8 rows, got %d", pair.N())
	}
	if pair.Dropped.Missing != 2 {
		t.Fatalf("expected 2 missing rows, got %d", pair.Dropped.Missing)
	}
	for i := range pair.X {
		if math.IsNaN(pair.X[i]) || math.IsNaN(pair.Y[i]) {
			t.Fatalf("row %d still carries NaN", i)
		}
	}
}

func TestAlignInnerJoinsAndOrders(t *testing.T) {
	ex := models.Series{Name: "co2", Points: []models.Observation{
		{Date: day(3), Value: 3},
		{Date: day(1), Value: 1},
		{Date: day(2), Value: 2},
		{Date: day(9), Value: 9},
	}}
	dep := models.Series{Name: "dji", Points: []models.Observation{
		{Date: day(2).Add(16 * time.Hour), Value: 20},
		{Date: day(1), Value: 10},
		{Date: day(3), Value: 30},
		{Date: day(3), Value: 31},
		{Date: day(5), Value: 50},
	}}

	pair, err := Align(ex, dep)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pair.N() != 3 {
		t.Fatalf("expected 3 joined rows, got %d", pair.N())
	}
	for i, want := range []float64{1, 2, 3} {
		if pair.X[i] != want || pair.Y[i] != want*10 {
			t.Fatalf("row %d: got (%v, %v)", i, pair.X[i], pair.Y[i])
		}
	}
	if pair.Dropped.ExplanatoryOnly != 1 || pair.Dropped.DependentOnly != 1 || pair.Dropped.Duplicates != 1 {
		t.Fatalf("unexpected drop summary: %+v", pair.Dropped)
	}
	if !pair.Start().Equal(day(1)) || !pair.End().Equal(day(3)) {
		t.Fatalf("unexpected range %v..%v", pair.Start(), pair.End())
	}
}

func TestAlignInsufficientData(t *testing.T) {
	_, err := FromSlices([]float64{1}, []float64{2}, nil)
	var insufficient *models.InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
	if insufficient.Got != 1 || insufficient.Need != MinObservations {
		t.Fatalf("unexpected error detail: %+v", insufficient)
	}
}

func TestAlignRejectsInfinities(t *testing.T) {
	pair, err := FromSlices([]float64{1, 2, math.Inf(1), 4}, []float64{1, 2, 3, 4}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pair.N() != 3 {
		t.Fatalf("expected 3 rows, got %d", pair.N())
	}
}

func TestSinceKeepsWindow(t *testing.T) {
	s := models.Series{Name: "co2"}
	for i := 0; i < 10; i++ {
		s.Points = append(s.Points, models.Observation{Date: day(i).Add(13 * time.Hour), Value: float64(i)})
	}

	got := Since(s, day(4).Add(20*time.Hour))
	if got.Len() != 6 {
		t.Fatalf("expected 6 points from day 4 onward, got %d", got.Len())
	}
	if got.Points[0].Value != 4 {
		t.Fatalf("expected first kept value 4, got %v", got.Points[0].Value)
	}
	if Since(s, time.Time{}).Len() != 10 {
		t.Fatalf("zero start should keep every point")
	}
}

func TestAlignDuplicateDayPrefersFiniteValue(t *testing.T) {
	ex := models.Series{Name: "co2", Points: []models.Observation{
		{Date: day(0), Value: 400},
		{Date: day(1), Value: math.NaN()},
		{Date: day(1).Add(6 * time.Hour), Value: 401},
		{Date: day(1).Add(12 * time.Hour), Value: 999},
	}}
	dep := models.Series{Name: "dji", Points: []models.Observation{
		{Date: day(0), Value: 100},
		{Date: day(1), Value: 110},
	}}

	pair, err := Align(ex, dep)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pair.N() != 2 {
		t.Fatalf("expected 2 rows, got %d", pair.N())
	}
	if pair.X[1] != 401 {
		t.Fatalf("expected first finite value 401 for the duplicated day, got %v", pair.X[1])
	}
	if pair.Dropped.Duplicates != 2 || pair.Dropped.Missing != 0 {
		t.Fatalf("unexpected drop summary %+v", pair.Dropped)
	}
}
