package analytics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"pattern-detector/models"
)

type Method string

const (
	MethodPearson  Method = "pearson"
	MethodSpearman Method = "spearman"
)

// CorrelationResult is a correlation of two aligned series. Pointer fields
// are nil when the quantity could not be computed.
type CorrelationResult struct {
	R          *float64 `json:"r"`
	N          int      `json:"n"`
	LagSeconds int      `json:"lag_seconds"`
	Slope      *float64 `json:"slope,omitempty"`
	Intercept  *float64 `json:"intercept,omitempty"`
	R2         *float64 `json:"r2,omitempty"`
}

// LagPoint is one sample of a lag scan.
type LagPoint struct {
	LagBuckets int      `json:"lag_buckets"`
	LagSeconds int      `json:"lag_seconds"`
	R          *float64 `json:"r"`
	N          int      `json:"n"`
}

// Alignment holds the rows two series share after shifting b.
type Alignment struct {
	Timestamps []int64   `json:"timestamps"`
	AIndex     []int     `json:"a_index"`
	BIndex     []int     `json:"b_index"`
	X          []float64 `json:"x"`
	Y          []float64 `json:"y"`
}

type Regression struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	R2        float64 `json:"r2"`
}

func constant(xs []float64) bool {
	for _, x := range xs[1:] {
		if x != xs[0] {
			return false
		}
	}
	return true
}

// Pearson is the product-moment correlation. It is not computable for
// mismatched lengths, fewer than two pairs, or a zero-variance input.
func Pearson(x, y []float64) (float64, bool) {
	if len(x) != len(y) || len(x) < 2 {
		return 0, false
	}
	if constant(x) || constant(y) {
		return 0, false
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return 0, false
	}
	return math.Max(-1, math.Min(1, r)), true
}

// Spearman is Pearson over average ranks.
func Spearman(x, y []float64) (float64, bool) {
	if len(x) != len(y) || len(x) < 2 {
		return 0, false
	}
	return Pearson(Rank(x), Rank(y))
}

// Rank returns 1-based ranks; ties share the average of their positions.
func Rank(xs []float64) []float64 {
	order := make([]int, len(xs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return xs[order[a]] < xs[order[b]] })

	ranks := make([]float64, len(xs))
	for i := 0; i < len(order); {
		j := i + 1
		for j < len(order) && xs[order[j]] == xs[order[i]] {
			j++
		}
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[order[k]] = avg
		}
		i = j
	}
	return ranks
}

// Correlate dispatches on method.
func Correlate(x, y []float64, method Method) (float64, bool) {
	if method == MethodSpearman {
		return Spearman(x, y)
	}
	return Pearson(x, y)
}

// AlignByTimestamp inner-joins a and b on exact timestamps after moving b
// forward by lagSeconds, so a(t) pairs with b(t - lag). Absent values are
// skipped. Rows keep the order of a.
func AlignByTimestamp(a, b []models.Point, lagSeconds int) Alignment {
	shift := int64(lagSeconds) * 1000
	byTs := make(map[int64]int, len(b))
	for j, p := range b {
		if p.Value != nil {
			byTs[p.Timestamp+shift] = j
		}
	}

	var out Alignment
	for i, p := range a {
		if p.Value == nil {
			continue
		}
		j, ok := byTs[p.Timestamp]
		if !ok {
			continue
		}
		out.Timestamps = append(out.Timestamps, p.Timestamp)
		out.AIndex = append(out.AIndex, i)
		out.BIndex = append(out.BIndex, j)
		out.X = append(out.X, *p.Value)
		out.Y = append(out.Y, *b[j].Value)
	}
	return out
}

// LagScan correlates a with b shifted by every lag in
// [-maxLagBuckets, +maxLagBuckets] buckets. The curve is a hypothesis aid;
// no significance correction is applied.
func LagScan(a, b []models.Point, method Method, intervalSeconds, maxLagBuckets int) []LagPoint {
	out := make([]LagPoint, 0, 2*maxLagBuckets+1)
	for lag := -maxLagBuckets; lag <= maxLagBuckets; lag++ {
		seconds := lag * intervalSeconds
		al := AlignByTimestamp(a, b, seconds)
		point := LagPoint{LagBuckets: lag, LagSeconds: seconds, N: len(al.X)}
		if r, ok := Correlate(al.X, al.Y, method); ok {
			point.R = &r
		}
		out = append(out, point)
	}
	return out
}

// BestLag picks the lag with the strongest |r|, preferring the smaller
// absolute lag and then the negative side on ties.
func BestLag(points []LagPoint) (LagPoint, bool) {
	var best LagPoint
	found := false
	for _, p := range points {
		if p.R == nil {
			continue
		}
		if !found {
			best, found = p, true
			continue
		}
		cur, prev := math.Abs(*p.R), math.Abs(*best.R)
		switch {
		case cur > prev:
			best = p
		case cur == prev && absInt(p.LagBuckets) < absInt(best.LagBuckets):
			best = p
		}
	}
	return best, found
}

// LinearRegression fits y = intercept + slope*x by ordinary least squares.
func LinearRegression(x, y []float64) (Regression, bool) {
	if len(x) != len(y) || len(x) < 2 || constant(x) {
		return Regression{}, false
	}
	alpha, beta := stat.LinearRegression(x, y, nil, false)
	r2 := 1.0
	if !constant(y) {
		r2 = stat.RSquared(x, y, nil, alpha, beta)
	}
	if math.IsNaN(alpha) || math.IsNaN(beta) || math.IsNaN(r2) {
		return Regression{}, false
	}
	return Regression{Slope: beta, Intercept: alpha, R2: r2}, true
}

// CorrelatePoints aligns two series at a lag and reports correlation and the
// regression of b on a.
func CorrelatePoints(a, b []models.Point, method Method, lagSeconds int) CorrelationResult {
	al := AlignByTimestamp(a, b, lagSeconds)
	res := CorrelationResult{N: len(al.X), LagSeconds: lagSeconds}
	if r, ok := Correlate(al.X, al.Y, method); ok {
		res.R = &r
	}
	if reg, ok := LinearRegression(al.X, al.Y); ok {
		res.Slope = &reg.Slope
		res.Intercept = &reg.Intercept
		res.R2 = &reg.R2
	}
	return res
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
