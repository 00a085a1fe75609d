package domain

import (
	"fmt"
	"time"
)

// Merge combines the previously published state with a newly computed one.
// Per grid point, per timestamp: where both hold a sample, the incoming one
// wins (a newer model run supersedes an older); samples present in only one
// side are kept; samples earlier than earliestRetained are dropped from the
// result regardless of origin. Both inputs must be cell-wise strictly
// increasing in time; a violation in either marks corrupted state and fails
// with a MergeInvariantError. Merge is idempotent: merging a result with
// itself, or with an empty incoming set, reproduces the result.
//
// A nil previous dataset is treated as empty over the incoming grid.
func Merge(previous, incoming *Dataset, earliestRetained time.Time) (*Dataset, error) {
	if previous == nil {
		previous = NewDataset(incoming.Grid)
	}
	if !previous.Grid.Equal(incoming.Grid) {
		return nil, &MergeInvariantError{Detail: "previous and incoming grids differ"}
	}

	merged := NewDataset(incoming.Grid)
	for i := range merged.Cells {
		point := merged.Grid.Point(i)
		if err := validateCell(point, previous.Cells[i]); err != nil {
			return nil, err
		}
		if err := validateCell(point, incoming.Cells[i]); err != nil {
			return nil, err
		}
		merged.Cells[i] = mergeCell(previous.Cells[i], incoming.Cells[i], earliestRetained)
	}
	return merged, nil
}

// mergeCell merges two sorted sample sequences. Incoming wins on equal
// timestamps; anything before earliestRetained is trimmed.
func mergeCell(prev, inc []Sample, earliestRetained time.Time) []Sample {
	out := make([]Sample, 0, len(prev)+len(inc))
	p, q := 0, 0
	for p < len(prev) || q < len(inc) {
		var s Sample
		switch {
		case p == len(prev):
			s = inc[q]
			q++
		case q == len(inc):
			s = prev[p]
			p++
		case prev[p].Time.Before(inc[q].Time):
			s = prev[p]
			p++
		case inc[q].Time.Before(prev[p].Time):
			s = inc[q]
			q++
		default: // equal timestamps: newer run supersedes
			s = inc[q]
			p++
			q++
		}
		if s.Time.Before(earliestRetained) {
			continue
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func validateCell(point Coordinate, cell []Sample) error {
	for i := 1; i < len(cell); i++ {
		if !cell[i].Time.After(cell[i-1].Time) {
			return &MergeInvariantError{
				Point: point,
				Detail: fmt.Sprintf("timestamps not strictly increasing: %s then %s",
					cell[i-1].Time.Format(time.RFC3339), cell[i].Time.Format(time.RFC3339)),
			}
		}
	}
	return nil
}
