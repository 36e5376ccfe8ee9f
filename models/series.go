package models

// Point is one sample of a sensor series. Timestamp is epoch milliseconds.
// A nil Value marks a gap: the bucket exists but carries no measurement.
type Point struct {
	Timestamp   int64    `json:"ts"`
	Value       *float64 `json:"value"`
	SampleCount int      `json:"sample_count,omitempty"`
}

// Present reports whether the point carries a value.
func (p Point) Present() bool {
	return p.Value != nil
}

// Series is a decoded per-sensor point array, ascending by timestamp.
type Series struct {
	SensorID        string  `json:"sensor_id"`
	SensorName      *string `json:"sensor_name"`
	BaseTimestampMs float64 `json:"base_timestamp_ms"`
	Points          []Point `json:"points"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// FindSeries returns the series with the given sensor id.
func FindSeries(series []Series, sensorID string) (Series, bool) {
	for _, s := range series {
		if s.SensorID == sensorID {
			return s, true
		}
	}
	return Series{}, false
}

// Values returns the present values of the series in order, dropping gaps.
func Values(points []Point) []float64 {
	out := make([]float64, 0, len(points))
	for _, p := range points {
		if p.Value != nil {
			out = append(out, *p.Value)
		}
	}
	return out
}
