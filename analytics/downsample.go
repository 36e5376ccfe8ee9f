package analytics

import "pattern-detector/models"

// Downsample reduces points to at most maxPoints by averaging consecutive
// buckets of equal size. Each output point keeps the first timestamp of its
// bucket and records how many present values it averaged; a bucket with no
// values stays a gap. maxPoints <= 0 disables downsampling.
func Downsample(points []models.Point, maxPoints int) []models.Point {
	if maxPoints <= 0 || len(points) <= maxPoints {
		return points
	}
	size := (len(points) + maxPoints - 1) / maxPoints

	out := make([]models.Point, 0, maxPoints)
	for start := 0; start < len(points); start += size {
		end := start + size
		if end > len(points) {
			end = len(points)
		}
		p := models.Point{Timestamp: points[start].Timestamp}
		var sum float64
		for _, q := range points[start:end] {
			if q.Value == nil {
				continue
			}
			sum += *q.Value
			p.SampleCount++
		}
		if p.SampleCount > 0 {
			p.Value = models.Float(sum / float64(p.SampleCount))
		}
		out = append(out, p)
	}
	return out
}
