package analytics

import (
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"pattern-detector/models"
)

const (
	msPerDay = 86_400_000.0

	lagScanStepSeconds = 300
	lagScanSteps       = 24
)

// DriftSample is one raw reading paired with its covariate.
type DriftSample struct {
	Timestamp int64   `json:"ts"`
	Value     float64 `json:"value"`
	Covariate float64 `json:"covariate"`
}

// DriftModel is a polynomial in (covariate - center). Coefficients[0] is the
// fitted baseline and Coefficients[k] multiplies (covariate - center)^k. When
// a time slope was fitted jointly, TimeSlopePerDay is its coefficient against
// days since TimeCenterMs.
type DriftModel struct {
	CenterCovariate  float64   `json:"center_covariate"`
	Coefficients     []float64 `json:"coefficients"`
	TimeSlopePerDay  *float64  `json:"time_slope_per_day,omitempty"`
	TimeCenterMs     float64   `json:"time_center_ms,omitempty"`
	R2               float64   `json:"r2"`
	N                int       `json:"n"`
	ResidualVariance float64   `json:"residual_variance"`
}

// LagSuggestion is the covariate lag that best explains the raw signal.
type LagSuggestion struct {
	LagSeconds               int        `json:"lag_seconds"`
	ReductionPercent         float64    `json:"reduction_percent"`
	BaselineResidualVariance float64    `json:"baseline_residual_variance"`
	ResidualVariance         float64    `json:"residual_variance"`
	Model                    DriftModel `json:"model"`
}

// FitDrift solves ordinary least squares for all coefficients at once. With
// includeTimeSlope a centred time-in-days column joins the design so that a
// slow drift does not leak into the covariate terms. It is not computable when
// there are no more samples than parameters or the design is singular.
func FitDrift(samples []DriftSample, degree int, center float64, includeTimeSlope bool) (DriftModel, bool) {
	if degree < 1 {
		return DriftModel{}, false
	}
	params := degree + 1
	if includeTimeSlope {
		params++
	}
	n := len(samples)
	if n <= params {
		return DriftModel{}, false
	}

	var timeCenter float64
	if includeTimeSlope {
		for _, s := range samples {
			timeCenter += float64(s.Timestamp)
		}
		timeCenter /= float64(n)
	}

	a := mat.NewDense(n, params, nil)
	y := mat.NewVecDense(n, nil)
	for i, s := range samples {
		x := s.Covariate - center
		term := 1.0
		for k := 0; k <= degree; k++ {
			a.Set(i, k, term)
			term *= x
		}
		if includeTimeSlope {
			a.Set(i, degree+1, (float64(s.Timestamp)-timeCenter)/msPerDay)
		}
		y.SetVec(i, s.Value)
	}

	var beta mat.VecDense
	if err := beta.SolveVec(a, y); err != nil {
		return DriftModel{}, false
	}

	var fitted mat.VecDense
	fitted.MulVec(a, &beta)

	var mean float64
	for _, s := range samples {
		mean += s.Value
	}
	mean /= float64(n)

	var ssRes, ssTot float64
	for i, s := range samples {
		r := s.Value - fitted.AtVec(i)
		ssRes += r * r
		d := s.Value - mean
		ssTot += d * d
	}

	model := DriftModel{
		CenterCovariate:  center,
		Coefficients:     make([]float64, degree+1),
		R2:               1,
		N:                n,
		ResidualVariance: ssRes / float64(n),
	}
	for k := range model.Coefficients {
		model.Coefficients[k] = beta.AtVec(k)
	}
	if includeTimeSlope {
		slope := beta.AtVec(degree + 1)
		model.TimeSlopePerDay = &slope
		model.TimeCenterMs = timeCenter
	}
	if ssTot > 0 {
		model.R2 = 1 - ssRes/ssTot
	}
	return model, true
}

// ApplyDrift removes the covariate-dependent part of the model from raw. The
// baseline term is kept, so at covariate == center raw comes back unchanged.
func ApplyDrift(raw, covariate float64, model DriftModel) float64 {
	x := covariate - model.CenterCovariate
	term := 1.0
	correction := 0.0
	for k := 1; k < len(model.Coefficients); k++ {
		term *= x
		correction += model.Coefficients[k] * term
	}
	return raw - correction
}

// BuildDriftExpression renders the correction as a derived-sensor formula,
// e.g. "raw - clamp(0.5*(temp - 20) + 0.01*(temp - 20)^2, -3, 3)". clampAbs
// <= 0 leaves the polynomial unclamped.
func BuildDriftExpression(model DriftModel, rawRef, covariateRef string, clampAbs float64) string {
	base := covariateRef
	switch c := model.CenterCovariate; {
	case c > 0:
		base = "(" + covariateRef + " - " + formatNumber(c) + ")"
	case c < 0:
		base = "(" + covariateRef + " + " + formatNumber(-c) + ")"
	}

	var terms []string
	for k := 1; k < len(model.Coefficients); k++ {
		coef := model.Coefficients[k]
		if coef == 0 {
			continue
		}
		term := formatNumber(coef) + "*" + base
		if k > 1 {
			term += "^" + strconv.Itoa(k)
		}
		terms = append(terms, term)
	}
	if len(terms) == 0 {
		return rawRef
	}

	poly := strings.Join(terms, " + ")
	poly = strings.ReplaceAll(poly, "+ -", "- ")
	if clampAbs > 0 {
		limit := formatNumber(clampAbs)
		return rawRef + " - clamp(" + poly + ", -" + limit + ", " + limit + ")"
	}
	return rawRef + " - (" + poly + ")"
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', 8, 64)
}

// PairSamples pairs raw(t) with covariate(t - lagSeconds).
func PairSamples(raw, covariate []models.Point, lagSeconds int) []DriftSample {
	al := AlignByTimestamp(raw, covariate, lagSeconds)
	out := make([]DriftSample, len(al.X))
	for i := range out {
		out[i] = DriftSample{Timestamp: al.Timestamps[i], Value: al.X[i], Covariate: al.Y[i]}
	}
	return out
}

func meanCovariate(samples []DriftSample) float64 {
	var sum float64
	for _, s := range samples {
		sum += s.Covariate
	}
	return sum / float64(len(samples))
}

// SuggestLag refits the drift model with the covariate delayed by each
// multiple of the scan step (300 s, or the interval when coarser) up to 24
// steps, and returns the lag with the largest residual-variance reduction
// against the unlagged fit. Lag 0 with zero reduction means no lag helped.
func SuggestLag(raw, covariate []models.Point, intervalSeconds, degree int) (LagSuggestion, bool) {
	baseSamples := PairSamples(raw, covariate, 0)
	if len(baseSamples) == 0 {
		return LagSuggestion{}, false
	}
	base, ok := FitDrift(baseSamples, degree, meanCovariate(baseSamples), false)
	if !ok {
		return LagSuggestion{}, false
	}

	best := LagSuggestion{
		BaselineResidualVariance: base.ResidualVariance,
		ResidualVariance:         base.ResidualVariance,
		Model:                    base,
	}
	if base.ResidualVariance <= 0 {
		return best, true
	}

	step := lagScanStepSeconds
	if intervalSeconds > step {
		step = intervalSeconds
	}
	for s := 1; s <= lagScanSteps; s++ {
		lag := s * step
		samples := PairSamples(raw, covariate, lag)
		if len(samples) == 0 {
			continue
		}
		model, ok := FitDrift(samples, degree, meanCovariate(samples), false)
		if !ok {
			continue
		}
		reduction := (base.ResidualVariance - model.ResidualVariance) / base.ResidualVariance * 100
		if reduction > best.ReductionPercent {
			best.LagSeconds = lag
			best.ReductionPercent = reduction
			best.ResidualVariance = model.ResidualVariance
			best.Model = model
		}
	}
	best.ReductionPercent = math.Max(0, best.ReductionPercent)
	return best, true
}
