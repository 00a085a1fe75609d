package domain

import "time"

// ChartDateFormat is the key format for chart references in the status record.
const ChartDateFormat = "2006-01-02"

// StatusRecord is the singleton progress/lock document readers poll and the
// update guard arbitrates on. Exactly one writer (the current lease holder)
// may mutate it per run; readers tolerate advisory, non-transactional phase
// markers.
type StatusRecord struct {
	// IsUpdating is the cross-run mutual-exclusion flag. Only the process
	// that observes the false→true transition may proceed.
	IsUpdating bool

	// LastSourceEndpoint names the model run the published dataset was built
	// from. An identical freshly discovered endpoint means no update is needed.
	LastSourceEndpoint string

	// LastChartDate is the newest day with a published chart, if any.
	LastChartDate *time.Time

	// Charts maps chart dates (ChartDateFormat) to the source version the
	// chart was rendered from, so readers can poll chart availability.
	Charts map[string]string

	// HolderID and AcquiredAt describe the current lease when IsUpdating is
	// true. They exist for operational stuck-lock diagnosis only; the guard
	// never expires a lease on its own.
	HolderID   string
	AcquiredAt *time.Time
}

// StaleCharts returns the chart dates older than earliestChartDate, the days
// no reader can reach anymore. Malformed keys are returned too so they get
// pruned rather than accumulate.
func (s *StatusRecord) StaleCharts(earliestChartDate time.Time) []string {
	var stale []string
	for date := range s.Charts {
		t, err := time.Parse(ChartDateFormat, date)
		if err != nil || t.Before(earliestChartDate) {
			stale = append(stale, date)
		}
	}
	return stale
}
