package domain

import "time"

// RetentionWindow bounds how far back merged data and chart references are kept.
type RetentionWindow struct {
	// EarliestRetained is the trim cutoff handed to Merge. Samples before it
	// are dropped so the dataset cannot grow without bound.
	EarliestRetained time.Time

	// EarliestChartDate is the earliest UTC-labeled day any reader can still
	// chart ("yesterday" for the westernmost solar-day offset). Chart
	// references older than this are pruned from the status record.
	EarliestChartDate time.Time
}

// ComputeRetention derives the retention window from the first timestamp of
// the newly computed data and the current time.
//
// Two needs bound the cutoff. Charts: the earliest day the new data can
// update starts at floorDay(firstIncoming), and solar-day shifting moves
// samples forward by up to 12 hours, so charting needs data back to 12 hours
// before that. Point forecasts: the start of any local day is always within
// 25 hours of now (24 plus one for daylight saving), so floorDay(now-25h)
// suffices. The cutoff is the earlier of the two.
//
// The chart floor uses now-11h: the westernmost hour-angle offset is -11, so
// that is the earliest longitude still inside the current UTC-labeled date;
// one day before it is the earliest accessible "yesterday".
func ComputeRetention(firstIncoming time.Time) RetentionWindow {
	now := clock.Now().UTC()

	chartData := floorDay(firstIncoming).Add(-12 * time.Hour)
	forecast := floorDay(now.Add(-25 * time.Hour))

	earliest := forecast
	if chartData.Before(earliest) {
		earliest = chartData
	}

	return RetentionWindow{
		EarliestRetained:  earliest,
		EarliestChartDate: floorDay(now.Add(-11 * time.Hour)).AddDate(0, 0, -1),
	}
}

func floorDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
