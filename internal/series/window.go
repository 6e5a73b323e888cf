package series

import (
	"time"

	"github.com/miradorstack/climate-econometrics/internal/models"
)

// Since keeps the observations dated on or after the calendar day of start. A zero
// start returns s unchanged.
func Since(s models.Series, start time.Time) models.Series {
	if start.IsZero() {
		return s
	}
	y, m, d := start.UTC().Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	out := models.Series{Name: s.Name, Points: make([]models.Observation, 0, len(s.Points))}
	for _, p := range s.Points {
		if !p.Date.UTC().Before(from) {
			out.Points = append(out.Points, p)
		}
	}
	return out
}
