package analytics

import (
	"math"
	"sort"
)

const defaultMinSensors = 2

type CooccurrenceOptions struct {
	IntervalSeconds  int `json:"interval_seconds"`
	ToleranceBuckets int `json:"tolerance_buckets"`
	MinSensors       int `json:"min_sensors"`
	MaxResults       int `json:"max_results"`
}

type SensorZ struct {
	SensorID string  `json:"sensor_id"`
	Z        float64 `json:"z"`
}

// CooccurrenceBucket is one instant at which several sensors had events.
// GroupSize always equals len(Sensors).
type CooccurrenceBucket struct {
	Timestamp   int64     `json:"ts"`
	Sensors     []SensorZ `json:"sensors"`
	GroupSize   int       `json:"group_size"`
	SeveritySum float64   `json:"severity_sum"`
}

// SensorCooccurrence accumulates how strongly a sensor co-moves with the focus.
type SensorCooccurrence struct {
	SensorID          string  `json:"sensor_id"`
	Score             float64 `json:"score"`
	CooccurrenceCount int     `json:"cooccurrence_count"`
	MaxBucketZ        float64 `json:"max_bucket_z"`
}

type taggedEvent struct {
	sensorID string
	ts       int64
	z        float64
}

// AggregateCooccurrence buckets events from many sensors. Events are sorted
// by time and merged greedily: a bucket opens at its first event and absorbs
// every later event within ToleranceBuckets intervals of that opening time.
// A sensor counts once per bucket, with its largest |z|. Buckets with fewer
// than MinSensors sensors are dropped; the rest are ranked by group size,
// then severity sum, then time.
func AggregateCooccurrence(events map[string][]Event, opts CooccurrenceOptions) []CooccurrenceBucket {
	minSensors := opts.MinSensors
	if minSensors <= 0 {
		minSensors = defaultMinSensors
	}
	tolerance := int64(opts.ToleranceBuckets) * int64(opts.IntervalSeconds) * 1000

	var all []taggedEvent
	for id, evs := range events {
		for _, e := range evs {
			all = append(all, taggedEvent{sensorID: id, ts: e.Timestamp, z: e.ZScore})
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].ts != all[j].ts {
			return all[i].ts < all[j].ts
		}
		return all[i].sensorID < all[j].sensorID
	})

	buckets := []CooccurrenceBucket{}
	for i := 0; i < len(all); {
		open := all[i].ts
		strongest := make(map[string]float64)
		j := i
		for ; j < len(all) && all[j].ts-open <= tolerance; j++ {
			e := all[j]
			if prev, ok := strongest[e.sensorID]; !ok || math.Abs(e.z) > math.Abs(prev) {
				strongest[e.sensorID] = e.z
			}
		}
		i = j

		if len(strongest) < minSensors {
			continue
		}
		b := CooccurrenceBucket{Timestamp: open, GroupSize: len(strongest)}
		for id, z := range strongest {
			b.Sensors = append(b.Sensors, SensorZ{SensorID: id, Z: z})
			b.SeveritySum += math.Abs(z)
		}
		sort.Slice(b.Sensors, func(x, y int) bool {
			ax, ay := math.Abs(b.Sensors[x].Z), math.Abs(b.Sensors[y].Z)
			if ax != ay {
				return ax > ay
			}
			return b.Sensors[x].SensorID < b.Sensors[y].SensorID
		})
		buckets = append(buckets, b)
	}

	sort.SliceStable(buckets, func(i, j int) bool {
		if buckets[i].GroupSize != buckets[j].GroupSize {
			return buckets[i].GroupSize > buckets[j].GroupSize
		}
		if buckets[i].SeveritySum != buckets[j].SeveritySum {
			return buckets[i].SeveritySum > buckets[j].SeveritySum
		}
		return buckets[i].Timestamp < buckets[j].Timestamp
	})

	if opts.MaxResults > 0 && len(buckets) > opts.MaxResults {
		buckets = buckets[:opts.MaxResults]
	}
	return buckets
}

// RankCooccurringSensors scores every sensor that shares a bucket with the
// focus: score += |z_focus| * |z_sensor| per shared bucket. Sensors are ranked
// by score, then shared-bucket count, then id.
func RankCooccurringSensors(buckets []CooccurrenceBucket, focusID string) []SensorCooccurrence {
	acc := make(map[string]*SensorCooccurrence)
	for _, b := range buckets {
		focusZ, found := 0.0, false
		for _, s := range b.Sensors {
			if s.SensorID == focusID {
				focusZ, found = math.Abs(s.Z), true
				break
			}
		}
		if !found {
			continue
		}
		for _, s := range b.Sensors {
			if s.SensorID == focusID {
				continue
			}
			entry, ok := acc[s.SensorID]
			if !ok {
				entry = &SensorCooccurrence{SensorID: s.SensorID}
				acc[s.SensorID] = entry
			}
			z := math.Abs(s.Z)
			entry.Score += focusZ * z
			entry.CooccurrenceCount++
			entry.MaxBucketZ = math.Max(entry.MaxBucketZ, z)
		}
	}

	out := make([]SensorCooccurrence, 0, len(acc))
	for _, entry := range acc {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].CooccurrenceCount != out[j].CooccurrenceCount {
			return out[i].CooccurrenceCount > out[j].CooccurrenceCount
		}
		return out[i].SensorID < out[j].SensorID
	})
	return out
}
