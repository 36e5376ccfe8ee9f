package analytics

import (
	"math"

	"github.com/montanaflynn/stats"

	"pattern-detector/models"
)

type Polarity string

const (
	PolarityBoth Polarity = "both"
	PolarityUp   Polarity = "up"
	PolarityDown Polarity = "down"
)

const (
	// madConsistency scales a MAD to a standard deviation under normality.
	madConsistency = 1.4826
	// meanADConsistency does the same for the mean absolute deviation (sqrt(pi/2)).
	meanADConsistency = 1.2533
	scaleEpsilon      = 1e-12
)

type EventOptions struct {
	IntervalSeconds      int      `json:"interval_seconds"`
	ZThreshold           float64  `json:"z_threshold"`
	MinSeparationBuckets int      `json:"min_separation_buckets"`
	Polarity             Polarity `json:"polarity"`
}

// Event is a qualifying first difference. Index is the position of the later
// point of the difference in the input series.
type Event struct {
	Index     int      `json:"index"`
	Timestamp int64    `json:"ts"`
	Delta     float64  `json:"delta"`
	ZScore    float64  `json:"z"`
	Polarity  Polarity `json:"polarity"`
}

type difference struct {
	index int
	ts    int64
	delta float64
}

// DetectEvents extracts change events from the first differences of one
// series. Differences are robustly z-scored against their median and MAD; a
// greedy left-to-right pass keeps events at least MinSeparationBuckets
// interval-wide buckets apart.
func DetectEvents(points []models.Point, opts EventOptions) []Event {
	var diffs []difference
	for i := 1; i < len(points); i++ {
		if !linked(points[i-1], points[i], opts.IntervalSeconds) {
			continue
		}
		diffs = append(diffs, difference{
			index: i,
			ts:    points[i].Timestamp,
			delta: *points[i].Value - *points[i-1].Value,
		})
	}
	if len(diffs) < 2 {
		return nil
	}

	deltas := make([]float64, len(diffs))
	for i, d := range diffs {
		deltas[i] = d.delta
	}
	center, scale, ok := robustScale(deltas)
	if !ok {
		return nil
	}

	polarity := opts.Polarity
	if polarity == "" {
		polarity = PolarityBoth
	}

	var events []Event
	var last *difference
	for _, d := range diffs {
		z := (d.delta - center) / scale
		if math.Abs(z) < opts.ZThreshold || z == 0 {
			continue
		}
		dir := PolarityUp
		if z < 0 {
			dir = PolarityDown
		}
		if polarity != PolarityBoth && polarity != dir {
			continue
		}
		if last != nil && tooClose(*last, d, opts) {
			continue
		}
		events = append(events, Event{
			Index:     d.index,
			Timestamp: d.ts,
			Delta:     d.delta,
			ZScore:    z,
			Polarity:  dir,
		})
		d := d
		last = &d
	}
	return events
}

// tooClose reports whether d falls within MinSeparationBuckets of the last
// kept event. Buckets are IntervalSeconds wide; without an interval they fall
// back to point indices.
func tooClose(last, d difference, opts EventOptions) bool {
	if opts.MinSeparationBuckets <= 0 {
		return false
	}
	if opts.IntervalSeconds > 0 {
		return d.ts-last.ts < int64(opts.MinSeparationBuckets)*int64(opts.IntervalSeconds)*1000
	}
	return d.index-last.index < opts.MinSeparationBuckets
}

// DetectAll runs DetectEvents over every series, keyed by sensor id.
func DetectAll(series []models.Series, opts EventOptions) map[string][]Event {
	out := make(map[string][]Event, len(series))
	for _, s := range series {
		out[s.SensorID] = DetectEvents(s.Points, opts)
	}
	return out
}

// robustScale returns the median of xs and a dispersion estimate. The MAD is
// preferred; on flat or quantized telemetry more than half of the differences
// are identical and the MAD collapses to zero, so the mean absolute deviation
// around the median is used instead. It stays positive as long as a single
// difference departs from the median, which keeps rare large steps visible.
func robustScale(xs []float64) (center, scale float64, ok bool) {
	center, err := stats.Median(stats.Float64Data(xs))
	if err != nil {
		return 0, 0, false
	}

	dev := make([]float64, len(xs))
	var sumDev float64
	for i, x := range xs {
		dev[i] = math.Abs(x - center)
		sumDev += dev[i]
	}

	mad, err := stats.Median(stats.Float64Data(dev))
	if err != nil {
		return 0, 0, false
	}
	if scale = madConsistency * mad; scale > scaleEpsilon {
		return center, scale, true
	}

	if scale = meanADConsistency * sumDev / float64(len(xs)); scale > scaleEpsilon {
		return center, scale, true
	}
	return center, 0, false
}
