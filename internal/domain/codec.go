package domain

import (
	"fmt"
	"math"
	"time"
)

// Encoding constants. Each temperature occupies 2000 steps of 0.1 °C with a
// -100 °C floor; the hour offset occupies 200 steps. The packed maximum,
// (1999*2000+1999)*200+199, fits in 30 bits.
const (
	tempSteps    = 2000
	tempFloorC   = -100.0
	tempScale    = 10 // steps per °C
	offsetSteps  = 200
	MaxTempC     = tempFloorC + float64(tempSteps-1)/tempScale // +99.9
	MinTempC     = tempFloorC
	MaxOffsetHrs = offsetSteps - 1
)

// Encode packs a (UTCI, WBGT, hour offset) triple into one int32.
// Temperatures are clamped to [MinTempC, MaxTempC] and quantized to 0.1 °C;
// the offset must already be within [0, MaxOffsetHrs]. Encoding is pure and
// deterministic: equal inputs always produce equal outputs.
func Encode(utci, wbgt float64, offsetHours int) (int32, error) {
	if offsetHours < 0 || offsetHours > MaxOffsetHrs {
		return 0, fmt.Errorf("encode: hour offset %d outside [0, %d]", offsetHours, MaxOffsetHrs)
	}
	e := (quantizeTemp(utci)*tempSteps+quantizeTemp(wbgt))*offsetSteps + int32(offsetHours)
	return e, nil
}

// Decode unpacks an encoded record. Temperatures are recovered to the 0.1 °C
// quantization grid (within 0.05 °C of the encoded value); the offset is exact.
func Decode(v int32) (utci, wbgt float64, offsetHours int) {
	offsetHours = int(v % offsetSteps)
	v /= offsetSteps
	wbgt = float64(v%tempSteps)/tempScale + tempFloorC
	utci = float64(v/tempSteps)/tempScale + tempFloorC
	return utci, wbgt, offsetHours
}

// EncodeCell encodes one grid point's samples against the dataset's start
// time. Sample times must land on whole hours relative to start and within
// the offset range; the merge window keeps retained data well inside it.
func EncodeCell(cell []Sample, start time.Time) ([]int32, error) {
	encoded := make([]int32, len(cell))
	for i, s := range cell {
		offset := int(math.Round(s.Time.Sub(start).Hours()))
		e, err := Encode(s.UTCI, s.WBGT, offset)
		if err != nil {
			return nil, fmt.Errorf("encode cell sample %s: %w", s.Time.Format(time.RFC3339), err)
		}
		encoded[i] = e
	}
	return encoded, nil
}

func quantizeTemp(t float64) int32 {
	q := int32(math.Round((t - tempFloorC) * tempScale))
	if q < 0 {
		q = 0
	}
	if q > tempSteps-1 {
		q = tempSteps - 1
	}
	return q
}
