package analytics

import "pattern-detector/models"

const testBase = int64(1_700_000_000_000)

// seriesOf builds points one interval apart. math.NaN entries become gaps.
func seriesOf(intervalSeconds int, values ...float64) []models.Point {
	out := make([]models.Point, len(values))
	for i, v := range values {
		out[i] = models.Point{Timestamp: testBase + int64(i*intervalSeconds)*1000}
		if v == v {
			out[i].Value = models.Float(v)
		}
	}
	return out
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
