package analytics

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pattern-detector/models"
)

func dispatchFrame() []models.Series {
	const n = 720
	temp := make([]float64, n)
	raw := make([]float64, n)
	for i := range temp {
		temp[i] = 20 + 4*math.Sin(2*math.Pi*float64(i)/180)
		raw[i] = 50 + 0.5*(temp[i]-20)
	}
	return []models.Series{
		{SensorID: "raw", Points: seriesOf(60, raw...)},
		{SensorID: "temp", Points: seriesOf(60, temp...)},
	}
}

func TestRunMatrixProfile(t *testing.T) {
	out, err := Run(models.AnalysisRequest{Kind: models.KindMatrixProfile, SensorID: "temp", Window: 30, MaxPoints: 360}, dispatchFrame())
	require.NoError(t, err)

	res, ok := out.(MatrixProfileResult)
	require.True(t, ok)
	assert.Equal(t, 360, res.Points)
	assert.Len(t, res.Profile.Profile, 360-30+1)
	assert.Len(t, res.Motifs, defaultTopK)
	assert.Len(t, res.Discords, defaultTopK)
}

func TestRunHeatmap(t *testing.T) {
	out, err := Run(models.AnalysisRequest{Kind: models.KindHeatmap, SensorID: "temp", Window: 20, Target: 40}, dispatchFrame())
	require.NoError(t, err)

	hm, ok := out.(Heatmap)
	require.True(t, ok)
	assert.Equal(t, (720-20+1)/40, hm.Stride)
}

func TestRunLagScan(t *testing.T) {
	out, err := Run(models.AnalysisRequest{
		Kind:            models.KindLagScan,
		SensorID:        "raw",
		OtherSensorID:   "temp",
		IntervalSeconds: 60,
		MaxLagBuckets:   4,
		Method:          "spearman",
	}, dispatchFrame())
	require.NoError(t, err)

	res := out.(LagScanResult)
	assert.Equal(t, MethodSpearman, res.Method)
	assert.Len(t, res.Curve, 9)
	require.NotNil(t, res.Best)
	assert.Equal(t, 0, res.Best.LagBuckets)
	require.NotNil(t, res.AtBest.Slope)
	assert.InDelta(t, 0.5, *res.AtBest.Slope, 1e-9)
}

func TestRunSmooth(t *testing.T) {
	out, err := Run(models.AnalysisRequest{Kind: models.KindSmooth, SensorID: "temp", PolyOrder: 2}, dispatchFrame())
	require.NoError(t, err)

	res := out.(SmoothResult)
	require.True(t, res.OK, res.Reason)
	assert.Len(t, res.Values, 720)

	out, err = Run(models.AnalysisRequest{Kind: models.KindSmooth, SensorID: "temp", Window: 4, PolyOrder: 2}, dispatchFrame())
	require.NoError(t, err)
	assert.False(t, out.(SmoothResult).OK)
}

func TestRunDrift(t *testing.T) {
	out, err := Run(models.AnalysisRequest{
		Kind:          models.KindDrift,
		SensorID:      "raw",
		OtherSensorID: "temp",
		Degree:        1,
		Center:        models.Float(20),
	}, dispatchFrame())
	require.NoError(t, err)

	res := out.(DriftResult)
	require.NotNil(t, res.Model)
	assert.Equal(t, 20.0, res.Model.CenterCovariate)
	assert.InDelta(t, 0.5, res.Model.Coefficients[1], 1e-9)
	assert.Contains(t, res.Expression, "raw - (")
	assert.Contains(t, res.Expression, "(temp - 20)")
}

func TestRunDriftLag(t *testing.T) {
	out, err := Run(models.AnalysisRequest{
		Kind:            models.KindDriftLag,
		SensorID:        "raw",
		OtherSensorID:   "temp",
		IntervalSeconds: 60,
		Degree:          1,
	}, dispatchFrame())
	require.NoError(t, err)

	res := out.(DriftLagResult)
	assert.Equal(t, "raw", res.SensorID)
	assert.Equal(t, "temp", res.CovariateID)
	require.NotNil(t, res.Suggestion)
	assert.GreaterOrEqual(t, res.Suggestion.ReductionPercent, 0.0)
}

func TestRunDriftLagWithoutOverlap(t *testing.T) {
	frame := dispatchFrame()
	for i := range frame[1].Points {
		frame[1].Points[i].Timestamp += 17_000
	}

	out, err := Run(models.AnalysisRequest{
		Kind:            models.KindDriftLag,
		SensorID:        "raw",
		OtherSensorID:   "temp",
		IntervalSeconds: 60,
		Degree:          1,
	}, frame)
	require.NoError(t, err)

	res, ok := out.(DriftLagResult)
	require.True(t, ok)
	assert.Equal(t, "raw", res.SensorID)
	assert.Equal(t, "temp", res.CovariateID)
	assert.Nil(t, res.Suggestion)
}

func TestRunCooccurrence(t *testing.T) {
	values := repeat(1, 30)
	for i := 10; i < 30; i++ {
		values[i] = 8
	}
	series := []models.Series{
		{SensorID: "a", Points: seriesOf(60, values...)},
		{SensorID: "b", Points: seriesOf(60, values...)},
		{SensorID: "c", Points: seriesOf(60, repeat(2, 30)...)},
	}

	out, err := Run(models.AnalysisRequest{Kind: models.KindCooccurrence, SensorID: "a", IntervalSeconds: 60, ZThreshold: 3}, series)
	require.NoError(t, err)

	res := out.(CooccurrenceResult)
	require.Len(t, res.Buckets, 1)
	assert.Equal(t, 2, res.Buckets[0].GroupSize)
	require.Len(t, res.Ranking, 1)
	assert.Equal(t, "b", res.Ranking[0].SensorID)
}

func TestRunErrors(t *testing.T) {
	_, err := Run(models.AnalysisRequest{Kind: models.KindEvents, SensorID: "nope", IntervalSeconds: 60, ZThreshold: 3}, dispatchFrame())
	assert.True(t, errors.Is(err, ErrSensorNotFound))

	_, err = Run(models.AnalysisRequest{Kind: models.KindLagScan, SensorID: "raw", OtherSensorID: "nope", IntervalSeconds: 60}, dispatchFrame())
	assert.True(t, errors.Is(err, ErrSensorNotFound))

	_, err = Run(models.AnalysisRequest{Kind: "fft", SensorID: "raw"}, dispatchFrame())
	assert.Error(t, err)

	_, err = Run(models.AnalysisRequest{Kind: models.KindMatrixProfile, SensorID: "raw", Window: 1}, dispatchFrame())
	assert.Error(t, err)
}
