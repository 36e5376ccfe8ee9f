package analytics

import (
	"errors"
	"fmt"

	"pattern-detector/models"
)

var ErrSensorNotFound = errors.New("sensor not found in frame")

const (
	defaultTopK      = 3
	defaultMaxLag    = 12
	defaultSmoothLen = 7
)

type EventsResult struct {
	SensorID string  `json:"sensor_id"`
	Events   []Event `json:"events"`
}

type MatrixProfileResult struct {
	SensorID string        `json:"sensor_id"`
	Points   int           `json:"points"`
	Profile  MatrixProfile `json:"matrix_profile"`
	Motifs   []ProfileHit  `json:"motifs"`
	Discords []ProfileHit  `json:"discords"`
}

type LagScanResult struct {
	SensorID      string            `json:"sensor_id"`
	OtherSensorID string            `json:"other_sensor_id"`
	Method        Method            `json:"method"`
	Curve         []LagPoint        `json:"curve"`
	Best          *LagPoint         `json:"best,omitempty"`
	AtBest        CorrelationResult `json:"at_best"`
}

type DriftResult struct {
	SensorID    string      `json:"sensor_id"`
	CovariateID string      `json:"covariate_id"`
	Model       *DriftModel `json:"model"`
	Expression  string      `json:"expression,omitempty"`
}

// DriftLagResult carries a nil Suggestion when the pair has too little
// overlap to fit a model.
type DriftLagResult struct {
	SensorID    string         `json:"sensor_id"`
	CovariateID string         `json:"covariate_id"`
	Suggestion  *LagSuggestion `json:"suggestion"`
}

type CooccurrenceResult struct {
	Buckets []CooccurrenceBucket `json:"buckets"`
	Ranking []SensorCooccurrence `json:"ranking,omitempty"`
}

func lookup(series []models.Series, id string) ([]models.Point, error) {
	s, ok := models.FindSeries(series, id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSensorNotFound, id)
	}
	return s.Points, nil
}

// Run executes one validated analysis request against a decoded frame.
func Run(req models.AnalysisRequest, series []models.Series) (interface{}, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	switch req.Kind {
	case models.KindEvents:
		points, err := lookup(series, req.SensorID)
		if err != nil {
			return nil, err
		}
		events := DetectEvents(points, eventOptions(req))
		if events == nil {
			events = []Event{}
		}
		return EventsResult{SensorID: req.SensorID, Events: events}, nil

	case models.KindMatrixProfile:
		points, err := lookup(series, req.SensorID)
		if err != nil {
			return nil, err
		}
		values := models.Values(Downsample(points, req.MaxPoints))
		mp := ComputeMatrixProfile(values, req.Window, req.ExclusionZone)
		k := req.TopK
		if k <= 0 {
			k = defaultTopK
		}
		return MatrixProfileResult{
			SensorID: req.SensorID,
			Points:   len(values),
			Profile:  mp,
			Motifs:   TopMotifs(mp, k),
			Discords: TopDiscords(mp, k),
		}, nil

	case models.KindHeatmap:
		points, err := lookup(series, req.SensorID)
		if err != nil {
			return nil, err
		}
		values := models.Values(Downsample(points, req.MaxPoints))
		return SimilarityHeatmap(values, req.Window, req.Target), nil

	case models.KindLagScan:
		a, err := lookup(series, req.SensorID)
		if err != nil {
			return nil, err
		}
		b, err := lookup(series, req.OtherSensorID)
		if err != nil {
			return nil, err
		}
		method := Method(req.Method)
		if method == "" {
			method = MethodPearson
		}
		maxLag := req.MaxLagBuckets
		if maxLag == 0 {
			maxLag = defaultMaxLag
		}
		res := LagScanResult{
			SensorID:      req.SensorID,
			OtherSensorID: req.OtherSensorID,
			Method:        method,
			Curve:         LagScan(a, b, method, req.IntervalSeconds, maxLag),
		}
		if best, ok := BestLag(res.Curve); ok {
			res.Best = &best
			res.AtBest = CorrelatePoints(a, b, method, best.LagSeconds)
		} else {
			res.AtBest = CorrelatePoints(a, b, method, 0)
		}
		return res, nil

	case models.KindSmooth:
		points, err := lookup(series, req.SensorID)
		if err != nil {
			return nil, err
		}
		opts := SmoothOptions{
			WindowLength: req.Window,
			PolyOrder:    req.PolyOrder,
			DerivOrder:   req.DerivOrder,
			Delta:        req.Delta,
		}
		if opts.WindowLength == 0 {
			opts.WindowLength = defaultSmoothLen
		}
		if opts.Delta == 0 {
			opts.Delta = 1
		}
		return SmoothSeries(points, req.IntervalSeconds, opts), nil

	case models.KindDrift:
		raw, err := lookup(series, req.SensorID)
		if err != nil {
			return nil, err
		}
		cov, err := lookup(series, req.OtherSensorID)
		if err != nil {
			return nil, err
		}
		samples := PairSamples(raw, cov, 0)
		res := DriftResult{SensorID: req.SensorID, CovariateID: req.OtherSensorID}
		if len(samples) == 0 {
			return res, nil
		}
		center := meanCovariate(samples)
		if req.Center != nil {
			center = *req.Center
		}
		if model, ok := FitDrift(samples, req.Degree, center, req.TimeSlope); ok {
			res.Model = &model
			res.Expression = BuildDriftExpression(model, req.SensorID, req.OtherSensorID, 0)
		}
		return res, nil

	case models.KindDriftLag:
		raw, err := lookup(series, req.SensorID)
		if err != nil {
			return nil, err
		}
		cov, err := lookup(series, req.OtherSensorID)
		if err != nil {
			return nil, err
		}
		res := DriftLagResult{SensorID: req.SensorID, CovariateID: req.OtherSensorID}
		if suggestion, ok := SuggestLag(raw, cov, req.IntervalSeconds, req.Degree); ok {
			res.Suggestion = &suggestion
		}
		return res, nil

	case models.KindCooccurrence:
		events := DetectAll(series, eventOptions(req))
		res := CooccurrenceResult{
			Buckets: AggregateCooccurrence(events, CooccurrenceOptions{
				IntervalSeconds:  req.IntervalSeconds,
				ToleranceBuckets: req.ToleranceBuckets,
				MinSensors:       req.MinSensors,
				MaxResults:       req.MaxResults,
			}),
		}
		if req.SensorID != "" {
			res.Ranking = RankCooccurringSensors(res.Buckets, req.SensorID)
		}
		return res, nil
	}

	return nil, fmt.Errorf("unsupported analysis kind %q", req.Kind)
}

func eventOptions(req models.AnalysisRequest) EventOptions {
	return EventOptions{
		IntervalSeconds:      req.IntervalSeconds,
		ZThreshold:           req.ZThreshold,
		MinSeparationBuckets: req.MinSeparation,
		Polarity:             Polarity(req.Polarity),
	}
}
