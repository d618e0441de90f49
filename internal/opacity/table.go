package opacity

import (
	"encoding/json"
	"fmt"
	"strconv"

	"gonum.org/v1/gonum/stat"
)

// FrequencyTable counts, per opacity percentage 0..100, how many window
// pairs selected that opacity as their best fit.
//
// A FrequencyTable belongs to a single scan. It is not safe for concurrent
// use; parallel producers should fill their own tables and Merge them.
type FrequencyTable struct {
	counts [Max + 1]int
}

// Bin is a single non-empty entry of a FrequencyTable.
type Bin struct {
	Opacity int `json:"opacity"`
	Count   int `json:"count"`
}

// Record adds one occurrence of the given opacity. Values outside 0..100
// are ignored.
func (t *FrequencyTable) Record(opacity int) {
	if opacity < 0 || opacity > Max {
		return
	}
	t.counts[opacity]++
}

// Count returns the number of occurrences recorded for opacity.
func (t *FrequencyTable) Count(opacity int) int {
	if opacity < 0 || opacity > Max {
		return 0
	}
	return t.counts[opacity]
}

// Total returns the number of recorded pairs, including None.
func (t *FrequencyTable) Total() int {
	total := 0
	for _, c := range t.counts {
		total += c
	}
	return total
}

// Detected returns the number of pairs for which an opacity was selected.
func (t *FrequencyTable) Detected() int {
	return t.Total() - t.counts[None]
}

// DetectionRatio returns Detected/Total, or 0 for an empty table.
func (t *FrequencyTable) DetectionRatio() float64 {
	total := t.Total()
	if total == 0 {
		return 0
	}
	return float64(t.Detected()) / float64(total)
}

// Merge adds all counts of other into t.
func (t *FrequencyTable) Merge(other *FrequencyTable) {
	if other == nil {
		return
	}
	for i, c := range other.counts {
		t.counts[i] += c
	}
}

// Bins returns the non-empty bins in ascending opacity order.
func (t *FrequencyTable) Bins() []Bin {
	bins := make([]Bin, 0)
	for op, c := range t.counts {
		if c > 0 {
			bins = append(bins, Bin{Opacity: op, Count: c})
		}
	}
	return bins
}

// Dominant returns the most frequently selected opacity, excluding None.
// Ties go to the lower opacity. ok is false if nothing was detected.
func (t *FrequencyTable) Dominant() (opacity int, ok bool) {
	best := 0
	for op := 1; op <= Max; op++ {
		if t.counts[op] > best {
			best = t.counts[op]
			opacity = op
		}
	}
	return opacity, best > 0
}

// Stats returns the count-weighted mean and standard deviation of the
// detected opacities. Both are 0 when nothing was detected;
// the standard deviation is 0 for a single detection.
func (t *FrequencyTable) Stats() (mean, stdDev float64) {
	values := make([]float64, 0)
	weights := make([]float64, 0)
	for op := 1; op <= Max; op++ {
		if t.counts[op] == 0 {
			continue
		}
		values = append(values, float64(op))
		weights = append(weights, float64(t.counts[op]))
	}

	switch {
	case len(values) == 0:
		return 0, 0
	case t.Detected() == 1:
		return values[0], 0
	}

	mean, stdDev = stat.MeanStdDev(values, weights)
	return mean, stdDev
}

// MarshalJSON encodes the table as a sparse object keyed by opacity,
// e.g. {"0": 120, "30": 14}.
func (t FrequencyTable) MarshalJSON() ([]byte, error) {
	m := make(map[string]int)
	for op, c := range t.counts {
		if c > 0 {
			m[strconv.Itoa(op)] = c
		}
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes the sparse object produced by MarshalJSON.
func (t *FrequencyTable) UnmarshalJSON(data []byte) error {
	var m map[string]int
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}

	var counts [Max + 1]int
	for k, v := range m {
		op, err := strconv.Atoi(k)
		if err != nil {
			return fmt.Errorf("invalid opacity key %q: %w", k, err)
		}
		if op < 0 || op > Max {
			return fmt.Errorf("opacity key %d out of range 0..%d", op, Max)
		}
		counts[op] = v
	}
	t.counts = counts
	return nil
}
