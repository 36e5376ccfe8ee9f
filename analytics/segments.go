package analytics

import "pattern-detector/models"

// linked reports whether b directly continues a: both carry values and the
// timestamp step is no larger than twice the nominal interval. An interval of
// zero disables the timestamp check.
func linked(a, b models.Point, intervalSeconds int) bool {
	if a.Value == nil || b.Value == nil {
		return false
	}
	if intervalSeconds > 0 && b.Timestamp-a.Timestamp > 2*int64(intervalSeconds)*1000 {
		return false
	}
	return true
}

// segmentRanges splits points into maximal [start, end) runs of linked points.
func segmentRanges(points []models.Point, intervalSeconds int) [][2]int {
	var ranges [][2]int
	start := -1
	for i, p := range points {
		switch {
		case p.Value == nil:
			if start >= 0 {
				ranges = append(ranges, [2]int{start, i})
				start = -1
			}
		case start < 0:
			start = i
		case !linked(points[i-1], p, intervalSeconds):
			ranges = append(ranges, [2]int{start, i})
			start = i
		}
	}
	if start >= 0 {
		ranges = append(ranges, [2]int{start, len(points)})
	}
	return ranges
}
