package analytics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"pattern-detector/models"
)

// SmoothOptions configures a Savitzky–Golay filter. Delta is the sample
// spacing; derivatives are reported per unit of Delta.
type SmoothOptions struct {
	WindowLength int     `json:"window_length"`
	PolyOrder    int     `json:"poly_order"`
	DerivOrder   int     `json:"deriv_order"`
	Delta        float64 `json:"delta"`
}

// SmoothResult reports either the filtered values or why the options were
// rejected. Values holds nil wherever the input had a gap.
type SmoothResult struct {
	OK     bool       `json:"ok"`
	Reason string     `json:"reason,omitempty"`
	Values []*float64 `json:"values,omitempty"`
}

func rejected(format string, args ...interface{}) SmoothResult {
	return SmoothResult{OK: false, Reason: fmt.Sprintf(format, args...)}
}

func ValidateSmoothing(opts SmoothOptions) SmoothResult {
	switch {
	case opts.WindowLength < 1:
		return rejected("window length must be positive, got %d", opts.WindowLength)
	case opts.WindowLength%2 == 0:
		return rejected("window length must be odd, got %d", opts.WindowLength)
	case opts.PolyOrder < 0:
		return rejected("polynomial order must be non-negative, got %d", opts.PolyOrder)
	case opts.WindowLength <= opts.PolyOrder:
		return rejected("window length %d must be greater than polynomial order %d", opts.WindowLength, opts.PolyOrder)
	case opts.DerivOrder < 0:
		return rejected("derivative order must be non-negative, got %d", opts.DerivOrder)
	case opts.PolyOrder < opts.DerivOrder:
		return rejected("polynomial order %d must be at least derivative order %d", opts.PolyOrder, opts.DerivOrder)
	case opts.Delta == 0 || math.IsNaN(opts.Delta) || math.IsInf(opts.Delta, 0):
		return rejected("delta must be a non-zero finite number")
	}
	return SmoothResult{OK: true}
}

// Smooth filters a value array in which nil marks a gap. Each run of
// consecutive values is filtered on its own and never blends across a gap.
func Smooth(values []*float64, opts SmoothOptions) SmoothResult {
	points := make([]models.Point, len(values))
	for i, v := range values {
		points[i] = models.Point{Timestamp: int64(i), Value: v}
	}
	return SmoothSeries(points, 0, opts)
}

// SmoothSeries is Smooth over timestamped points; a timestamp jump larger
// than twice intervalSeconds also splits segments.
func SmoothSeries(points []models.Point, intervalSeconds int, opts SmoothOptions) SmoothResult {
	if res := ValidateSmoothing(opts); !res.OK {
		return res
	}

	out := make([]*float64, len(points))
	f := newSavGol(opts)
	for _, r := range segmentRanges(points, intervalSeconds) {
		seg := make([]float64, r[1]-r[0])
		for i := range seg {
			seg[i] = *points[r[0]+i].Value
		}
		filtered, err := f.filter(seg)
		if err != nil {
			return rejected("cannot fit window %d with polynomial order %d: %v", opts.WindowLength, opts.PolyOrder, err)
		}
		for i, v := range filtered {
			if v != nil {
				out[r[0]+i] = v
			}
		}
	}
	return SmoothResult{OK: true, Values: out}
}

// savGol caches convolution coefficients keyed by window evaluation offset.
type savGol struct {
	opts   SmoothOptions
	scale  float64
	byEval map[int][]float64
}

func newSavGol(opts SmoothOptions) *savGol {
	return &savGol{
		opts:   opts,
		scale:  1 / math.Pow(opts.Delta, float64(opts.DerivOrder)),
		byEval: make(map[int][]float64),
	}
}

// windowCoefficients returns the weights over a full window (offsets -m..m)
// that evaluate the fitted polynomial's derivative at offset at.
func (f *savGol) windowCoefficients(at int) ([]float64, error) {
	if c, ok := f.byEval[at]; ok {
		return c, nil
	}
	m := f.opts.WindowLength / 2
	positions := make([]float64, f.opts.WindowLength)
	for k := range positions {
		positions[k] = float64(k - m)
	}
	c, err := lsqCoefficients(positions, f.opts.PolyOrder, f.opts.DerivOrder, float64(at))
	if err != nil {
		return nil, err
	}
	f.byEval[at] = c
	return c, nil
}

func (f *savGol) apply(c []float64, seg []float64) *float64 {
	var acc float64
	for k, w := range c {
		acc += w * seg[k]
	}
	acc *= f.scale
	return &acc
}

// filter handles one contiguous segment. Interior points use the centred
// kernel; the first and last m points evaluate the polynomial fitted to the
// edge window at their own offset, which keeps polynomial inputs exact all
// the way to the segment boundary.
func (f *savGol) filter(seg []float64) ([]*float64, error) {
	n := len(seg)
	out := make([]*float64, n)
	l := f.opts.WindowLength
	m := l / 2

	if n < l {
		return f.filterShort(seg)
	}

	center, err := f.windowCoefficients(0)
	if err != nil {
		return nil, err
	}
	for i := m; i < n-m; i++ {
		out[i] = f.apply(center, seg[i-m:i+m+1])
	}
	for i := 0; i < m; i++ {
		head, err := f.windowCoefficients(i - m)
		if err != nil {
			return nil, err
		}
		tail, err := f.windowCoefficients(i + 1)
		if err != nil {
			return nil, err
		}
		out[i] = f.apply(head, seg[:l])
		out[n-m+i] = f.apply(tail, seg[n-l:])
	}
	return out, nil
}

// filterShort fits a single polynomial to a segment shorter than the window.
// The degree drops to what the segment supports; if that is below the
// derivative order the output stays nil.
func (f *savGol) filterShort(seg []float64) ([]*float64, error) {
	n := len(seg)
	out := make([]*float64, n)
	degree := f.opts.PolyOrder
	if degree > n-1 {
		degree = n - 1
	}
	if degree < f.opts.DerivOrder {
		return out, nil
	}

	mid := float64(n-1) / 2
	positions := make([]float64, n)
	for k := range positions {
		positions[k] = float64(k) - mid
	}
	for i := range seg {
		c, err := lsqCoefficients(positions, degree, f.opts.DerivOrder, positions[i])
		if err != nil {
			return nil, err
		}
		out[i] = f.apply(c, seg)
	}
	return out, nil
}

// lsqCoefficients returns weights c such that sum(c[k]*y[k]) is the deriv-th
// derivative, at position at, of the degree-`degree` least-squares polynomial
// through (positions[k], y[k]). With A the Vandermonde matrix and v the
// derivative of the monomial basis at at, c = A (AᵀA)⁻¹ v, which is the
// minimum-norm solution of Aᵀc = v. Positions are scaled into [-1, 1] first so
// wide windows and high orders stay well conditioned.
func lsqCoefficients(positions []float64, degree, deriv int, at float64) ([]float64, error) {
	n, p := len(positions), degree+1
	scale := 1.0
	for _, x := range positions {
		scale = math.Max(scale, math.Abs(x))
	}

	a := mat.NewDense(n, p, nil)
	for k, x := range positions {
		u := x / scale
		term := 1.0
		for j := 0; j < p; j++ {
			a.Set(k, j, term)
			term *= u
		}
	}

	u := at / scale
	v := mat.NewVecDense(p, nil)
	for j := deriv; j < p; j++ {
		coef := 1.0
		for q := j - deriv + 1; q <= j; q++ {
			coef *= float64(q)
		}
		v.SetVec(j, coef*math.Pow(u, float64(j-deriv)))
	}

	var c mat.VecDense
	if err := c.SolveVec(a.T(), v); err != nil {
		return nil, fmt.Errorf("savitzky-golay coefficients: %w", err)
	}

	// d/dx = d/du / scale for each derivative order.
	unscale := math.Pow(scale, -float64(deriv))
	out := make([]float64, n)
	for k := range out {
		out[k] = c.AtVec(k) * unscale
	}
	return out, nil
}
