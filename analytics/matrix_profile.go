package analytics

import (
	"math"
	"sort"
)

const (
	// minProfileWindows is the smallest number of windows worth comparing.
	minProfileWindows    = 4
	defaultHeatmapTarget = 100
)

// MatrixProfile holds, for each window start i, the distance to its nearest
// non-trivial neighbour and that neighbour's start. Both slices are empty when
// the profile is not computable.
type MatrixProfile struct {
	Window        int       `json:"window"`
	ExclusionZone int       `json:"exclusion_zone"`
	Profile       []float64 `json:"profile"`
	ProfileIndex  []int     `json:"profile_index"`
}

func (mp MatrixProfile) Empty() bool {
	return len(mp.Profile) == 0
}

// ProfileHit is one motif or discord extracted from a profile.
type ProfileHit struct {
	Index         int     `json:"index"`
	NeighborIndex int     `json:"neighbor_index"`
	Distance      float64 `json:"distance"`
}

// Heatmap is the pairwise z-normalized distance between sampled windows.
type Heatmap struct {
	Window    int         `json:"window"`
	Stride    int         `json:"stride"`
	Indices   []int       `json:"indices"`
	Distances [][]float64 `json:"distances"`
}

func emptyProfile(window, exclusionZone int) MatrixProfile {
	return MatrixProfile{
		Window:        window,
		ExclusionZone: exclusionZone,
		Profile:       []float64{},
		ProfileIndex:  []int{},
	}
}

// normalizedWindows returns every length-w window of values, z-normalized.
func normalizedWindows(values []float64, w int) [][]float64 {
	n := len(values) - w + 1
	out := make([][]float64, 0, n)
	sw := newSlidingWindow(w)
	for _, v := range values {
		sw.Add(v)
		if !sw.Full() {
			continue
		}
		z := make([]float64, w)
		sw.ZNormalized(z)
		out = append(out, z)
	}
	return out
}

func euclidean(a, b []float64) float64 {
	var ss float64
	for i := range a {
		d := a[i] - b[i]
		ss += d * d
	}
	return math.Sqrt(ss)
}

// ComputeMatrixProfile runs a brute-force self-join over all windows of
// length window. exclusionZone <= 0 selects the default of window/2. Inputs
// shorter than window+4 values, or where some window has no neighbour outside
// its exclusion zone, yield an empty profile.
//
// Cost is O(N^2 * W); callers bound N by downsampling first.
func ComputeMatrixProfile(values []float64, window, exclusionZone int) MatrixProfile {
	if exclusionZone <= 0 {
		exclusionZone = window / 2
	}
	if window < 2 || len(values) < window+minProfileWindows {
		return emptyProfile(window, exclusionZone)
	}

	windows := normalizedWindows(values, window)
	n := len(windows)
	profile := make([]float64, n)
	index := make([]int, n)
	for i := range profile {
		profile[i] = math.Inf(1)
		index[i] = -1
	}

	for i := 0; i < n; i++ {
		for j := i + exclusionZone + 1; j < n; j++ {
			d := euclidean(windows[i], windows[j])
			if d < profile[i] {
				profile[i], index[i] = d, j
			}
			if d < profile[j] {
				profile[j], index[j] = d, i
			}
		}
	}

	for _, idx := range index {
		if idx < 0 {
			return emptyProfile(window, exclusionZone)
		}
	}

	return MatrixProfile{
		Window:        window,
		ExclusionZone: exclusionZone,
		Profile:       profile,
		ProfileIndex:  index,
	}
}

// TopMotifs returns up to k lowest-distance windows, skipping any window
// that overlaps an already chosen window or its neighbour.
func TopMotifs(mp MatrixProfile, k int) []ProfileHit {
	return pickHits(mp, k, func(a, b float64) bool { return a < b })
}

// TopDiscords returns up to k highest-distance windows without overlap.
func TopDiscords(mp MatrixProfile, k int) []ProfileHit {
	return pickHits(mp, k, func(a, b float64) bool { return a > b })
}

func pickHits(mp MatrixProfile, k int, better func(a, b float64) bool) []ProfileHit {
	hits := []ProfileHit{}
	if mp.Empty() || k <= 0 {
		return hits
	}

	order := make([]int, len(mp.Profile))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return better(mp.Profile[order[a]], mp.Profile[order[b]])
	})

	var taken []int
	overlaps := func(i int) bool {
		for _, t := range taken {
			if absInt(i-t) <= mp.ExclusionZone {
				return true
			}
		}
		return false
	}

	for _, i := range order {
		if len(hits) == k {
			break
		}
		if overlaps(i) {
			continue
		}
		hits = append(hits, ProfileHit{
			Index:         i,
			NeighborIndex: mp.ProfileIndex[i],
			Distance:      mp.Profile[i],
		})
		taken = append(taken, i, mp.ProfileIndex[i])
	}
	return hits
}

// SimilarityHeatmap computes pairwise window distances over a strided sample
// of window starts, stride = max(1, windows/target). The diagonal is zero and
// no exclusion zone applies.
func SimilarityHeatmap(values []float64, window, target int) Heatmap {
	if target <= 0 {
		target = defaultHeatmapTarget
	}
	hm := Heatmap{Window: window, Indices: []int{}, Distances: [][]float64{}}
	if window < 2 || len(values) < window+minProfileWindows {
		return hm
	}

	windows := normalizedWindows(values, window)
	stride := len(windows) / target
	if stride < 1 {
		stride = 1
	}
	hm.Stride = stride
	for i := 0; i < len(windows); i += stride {
		hm.Indices = append(hm.Indices, i)
	}

	k := len(hm.Indices)
	hm.Distances = make([][]float64, k)
	for a := range hm.Distances {
		hm.Distances[a] = make([]float64, k)
	}
	for a := 0; a < k; a++ {
		for b := a + 1; b < k; b++ {
			d := euclidean(windows[hm.Indices[a]], windows[hm.Indices[b]])
			hm.Distances[a][b] = d
			hm.Distances[b][a] = d
		}
	}
	return hm
}
