package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalysisRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     AnalysisRequest
		wantErr string
	}{
		{"events ok", AnalysisRequest{Kind: KindEvents, SensorID: "a", IntervalSeconds: 60, ZThreshold: 3}, ""},
		{"unknown kind", AnalysisRequest{Kind: "fft", SensorID: "a"}, "unknown analysis kind"},
		{"missing sensor", AnalysisRequest{Kind: KindSmooth}, "sensor_id"},
		{"pair needs other", AnalysisRequest{Kind: KindDrift, SensorID: "a", Degree: 1}, "other_sensor_id"},
		{"events need interval", AnalysisRequest{Kind: KindEvents, SensorID: "a", ZThreshold: 3}, "interval_seconds"},
		{"events need threshold", AnalysisRequest{Kind: KindEvents, SensorID: "a", IntervalSeconds: 60}, "z_threshold"},
		{"bad polarity", AnalysisRequest{Kind: KindCooccurrence, IntervalSeconds: 60, ZThreshold: 3, Polarity: "sideways"}, "polarity"},
		{"cooccurrence needs no sensor", AnalysisRequest{Kind: KindCooccurrence, IntervalSeconds: 60, ZThreshold: 3}, ""},
		{"short window", AnalysisRequest{Kind: KindMatrixProfile, SensorID: "a", Window: 1}, "window"},
		{"bad method", AnalysisRequest{Kind: KindLagScan, SensorID: "a", OtherSensorID: "b", IntervalSeconds: 60, Method: "kendall"}, "method"},
		{"negative lag", AnalysisRequest{Kind: KindLagScan, SensorID: "a", OtherSensorID: "b", IntervalSeconds: 60, MaxLagBuckets: -1}, "max_lag_buckets"},
		{"degree zero", AnalysisRequest{Kind: KindDriftLag, SensorID: "a", OtherSensorID: "b", IntervalSeconds: 60}, "degree"},
		{"negative limit", AnalysisRequest{Kind: KindHeatmap, SensorID: "a", Window: 10, MaxPoints: -5}, "non-negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValuesDropsGaps(t *testing.T) {
	points := []Point{{Timestamp: 1, Value: Float(1)}, {Timestamp: 2}, {Timestamp: 3, Value: Float(3)}}

	assert.Equal(t, []float64{1, 3}, Values(points))
	assert.False(t, points[1].Present())

	s, ok := FindSeries([]Series{{SensorID: "x"}, {SensorID: "y"}}, "y")
	assert.True(t, ok)
	assert.Equal(t, "y", s.SensorID)
	_, ok = FindSeries(nil, "y")
	assert.False(t, ok)
}
