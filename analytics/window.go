package analytics

import "math"

// flatStdEpsilon is the relative spread below which a window counts as flat.
const flatStdEpsilon = 1e-10

// slidingWindow keeps the most recent size values of a stream in a ring.
type slidingWindow struct {
	size   int
	values []float64
	index  int
	count  int
	sum    float64
}

func newSlidingWindow(size int) *slidingWindow {
	return &slidingWindow{
		size:   size,
		values: make([]float64, size),
	}
}

func (w *slidingWindow) Add(value float64) {
	if w.count < w.size {
		w.values[w.index] = value
		w.sum += value
		w.count++
	} else {
		w.sum = w.sum - w.values[w.index] + value
		w.values[w.index] = value
	}
	w.index = (w.index + 1) % w.size

	// Resync once per revolution so the running sum cannot drift.
	if w.index == 0 {
		w.sum = 0
		for _, v := range w.values[:w.count] {
			w.sum += v
		}
	}
}

func (w *slidingWindow) Full() bool {
	return w.count == w.size
}

func (w *slidingWindow) Mean() float64 {
	if w.count == 0 {
		return 0
	}
	return w.sum / float64(w.count)
}

// StdDev is the population standard deviation of the current contents.
func (w *slidingWindow) StdDev() float64 {
	if w.count < 2 {
		return 0
	}
	mean := w.Mean()
	var ss float64
	for _, v := range w.values[:w.count] {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(w.count))
}

// ZNormalized writes the contents, oldest first, into dst after subtracting
// the mean and dividing by the standard deviation. A flat window is written
// as the zero vector so constant segments compare as identical.
func (w *slidingWindow) ZNormalized(dst []float64) {
	mean := w.Mean()
	std := w.StdDev()
	flat := std <= flatStdEpsilon*(1+math.Abs(mean))

	start := 0
	if w.count == w.size {
		start = w.index
	}
	for i := 0; i < w.count; i++ {
		if flat {
			dst[i] = 0
			continue
		}
		dst[i] = (w.values[(start+i)%w.size] - mean) / std
	}
}
