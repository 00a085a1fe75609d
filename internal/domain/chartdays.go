package domain

import (
	"math"
	"sort"
	"time"
)

// Extremum names one of the two daily chart variants.
type Extremum string

const (
	ExtremumHigh Extremum = "highs"
	ExtremumLow  Extremum = "lows"
)

// Extremums lists both variants in rendering order.
var Extremums = []Extremum{ExtremumHigh, ExtremumLow}

// HourOffset returns the solar-time hour-angle offset for a longitude:
// round(lon/15), wrapped so offsets east of the antimeridian become negative.
// For the 0–360 east convention the result lies in [-11, +12].
func HourOffset(lon float64) int {
	h := int(math.Round(lon / 15))
	if h > 12 {
		h -= 24
	}
	return h
}

// CompleteDays returns the UTC-labeled days for which every grid point has a
// full 24-hour sample set after shifting each point's timestamps by its
// solar-time offset. Days with any point missing any shifted hour are
// excluded. The result is ascending.
func CompleteDays(ds *Dataset) []time.Time {
	points := ds.Grid.NumPoints()
	if points == 0 {
		return nil
	}

	// hours[day][point] is a 24-bit set of the shifted hours present.
	hours := make(map[time.Time][]uint32)
	for i, cell := range ds.Cells {
		offset := time.Duration(HourOffset(ds.Grid.Point(i).Lon)) * time.Hour
		for _, s := range cell {
			local := s.Time.Add(offset)
			day := floorDay(local)
			cover, ok := hours[day]
			if !ok {
				cover = make([]uint32, points)
				hours[day] = cover
			}
			cover[i] |= 1 << local.Hour()
		}
	}

	const fullDay = 1<<24 - 1
	var days []time.Time
	for day, cover := range hours {
		complete := true
		for _, bits := range cover {
			if bits != fullDay {
				complete = false
				break
			}
		}
		if complete {
			days = append(days, day)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

// DayExtremes aggregates one complete day into per-point daily highs or lows
// of UTCI, using each point's solar-day alignment. Call only for days
// reported by CompleteDays; points with no samples on the day yield NaN.
func DayExtremes(ds *Dataset, day time.Time, ex Extremum) []float64 {
	out := make([]float64, ds.Grid.NumPoints())
	dayEnd := day.AddDate(0, 0, 1)
	for i, cell := range ds.Cells {
		offset := time.Duration(HourOffset(ds.Grid.Point(i).Lon)) * time.Hour
		v := math.NaN()
		for _, s := range cell {
			local := s.Time.Add(offset)
			if local.Before(day) || !local.Before(dayEnd) {
				continue
			}
			switch {
			case math.IsNaN(v):
				v = s.UTCI
			case ex == ExtremumHigh && s.UTCI > v:
				v = s.UTCI
			case ex == ExtremumLow && s.UTCI < v:
				v = s.UTCI
			}
		}
		out[i] = v
	}
	return out
}
