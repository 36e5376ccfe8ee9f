package selection

import (
	"encoding/json"
	"testing"

	"pattern-detector/analytics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestNormalizeSortsByScoreThenID(t *testing.T) {
	evidence := []Evidence{
		UnifiedEvidence{SensorID: "b", Value: 0.5},
		UnifiedEvidence{SensorID: "c", Value: 0.9},
		UnifiedEvidence{SensorID: "a", Value: 0.5, SensorName: ptr("Boiler")},
		UnifiedEvidence{SensorID: "focus", Value: 1},
	}

	got := Normalize(evidence, NormalizeOptions{FocusID: "focus"})
	require.Len(t, got, 3)

	assert.Equal(t, []string{"c", "a", "b"}, []string{got[0].SensorID, got[1].SensorID, got[2].SensorID})
	assert.Equal(t, []int{1, 2, 3}, []int{got[0].Rank, got[1].Rank, got[2].Rank})
	assert.Equal(t, "Boiler", got[1].Label)
	assert.Equal(t, "b", got[2].Label)
	for _, c := range got {
		assert.Equal(t, StatusOK, c.Status)
		assert.Equal(t, StrategyUnified, c.Strategy)
	}
}

func TestNormalizeMarksDerivedCandidates(t *testing.T) {
	graph := GraphSnapshot{
		"delta_t": {"supply", "focus"},
		"other":   {"supply"},
	}
	evidence := []Evidence{
		CorrelationEvidence{SensorID: "delta_t", R: -0.95, N: 100},
		CorrelationEvidence{SensorID: "other", R: 0.4, N: 100},
	}

	got := Normalize(evidence, NormalizeOptions{FocusID: "focus", Graph: graph})
	require.Len(t, got, 2)
	assert.Equal(t, "delta_t", got[0].SensorID)
	assert.InDelta(t, 0.95, got[0].Score, 1e-12)
	assert.Equal(t, "|r|", got[0].ScoreLabel)
	assert.Equal(t, StatusDerived, got[0].Status)
	assert.Equal(t, StatusOK, got[1].Status)
}

func TestCorrelationBadges(t *testing.T) {
	ev := CorrelationEvidence{SensorID: "x", R: 0.8123, LagSeconds: -600, N: 42, PValue: ptr(0.0001), NEff: ptr(17.4)}

	assert.Equal(t, []Badge{
		{"r", "0.81"},
		{"lag", "-10m"},
		{"n", "42"},
		{"p", "<0.001"},
		{"n_eff", "17"},
	}, ev.Badges())
}

func TestFormatLag(t *testing.T) {
	assert.Equal(t, "0", formatLag(0))
	assert.Equal(t, "+2h", formatLag(7200))
	assert.Equal(t, "+5m", formatLag(300))
	assert.Equal(t, "-45s", formatLag(-45))
}

func TestDecodePayload(t *testing.T) {
	t.Run("similarity", func(t *testing.T) {
		data := []byte(`[{"sensor_id":"s1","similarity":0.7,"episode_count":3},{"sensor_id":"s2","similarity":0.9,"episode_count":1}]`)
		ev, err := DecodePayload(StrategySimilarity, "focus", data)
		require.NoError(t, err)
		require.Len(t, ev, 2)

		got := Normalize(ev, NormalizeOptions{FocusID: "focus"})
		assert.Equal(t, "s2", got[0].SensorID)
		raw, ok := got[1].Raw.(SimilarityEvidence)
		require.True(t, ok)
		assert.Equal(t, 3, raw.EpisodeCount)
	})

	t.Run("event match", func(t *testing.T) {
		data := []byte(`[{"sensor_id":"s1","match_rate":0.25,"matched_events":1,"focus_events":4}]`)
		ev, err := DecodePayload(StrategyEventMatch, "focus", data)
		require.NoError(t, err)
		require.Len(t, ev, 1)
		assert.Equal(t, []Badge{{"match", "25%"}, {"events", "1/4"}}, ev[0].Badges())
	})

	t.Run("cooccurrence buckets", func(t *testing.T) {
		buckets := []analytics.CooccurrenceBucket{
			{Timestamp: 1000, GroupSize: 2, Sensors: []analytics.SensorZ{{SensorID: "focus", Z: 4}, {SensorID: "pump", Z: 3}}},
			{Timestamp: 5000, GroupSize: 2, Sensors: []analytics.SensorZ{{SensorID: "focus", Z: -2}, {SensorID: "fan", Z: 5}}},
		}
		data, err := json.Marshal(buckets)
		require.NoError(t, err)

		ev, err := DecodePayload(StrategyCooccurrence, "focus", data)
		require.NoError(t, err)
		got := Normalize(ev, NormalizeOptions{FocusID: "focus"})
		require.Len(t, got, 2)
		assert.Equal(t, "pump", got[0].SensorID)
		assert.InDelta(t, 12.0, got[0].Score, 1e-12)
		assert.Equal(t, "fan", got[1].SensorID)
		assert.InDelta(t, 10.0, got[1].Score, 1e-12)
	})

	t.Run("unknown strategy", func(t *testing.T) {
		_, err := DecodePayload("astrology", "focus", []byte(`[]`))
		assert.Error(t, err)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := DecodePayload(StrategyUnified, "focus", []byte(`{"sensor_id":1}`))
		assert.Error(t, err)
	})
}

func TestFromLagScans(t *testing.T) {
	scans := []analytics.LagScanResult{
		{OtherSensorID: "a", Best: &analytics.LagPoint{LagSeconds: 300, R: ptr(0.6), N: 50}},
		{OtherSensorID: "b"},
		{OtherSensorID: "c", Best: &analytics.LagPoint{LagSeconds: -60, R: ptr(-0.9), N: 40}},
	}

	got := Normalize(FromLagScans(scans), NormalizeOptions{FocusID: "focus"})
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].SensorID)
	assert.Equal(t, "a", got[1].SensorID)
	raw := got[1].Raw.(CorrelationEvidence)
	assert.Equal(t, 300, raw.LagSeconds)
}

func TestIsDerivedFromFocus(t *testing.T) {
	graph := GraphSnapshot{
		"a":     {"b"},
		"b":     {"c"},
		"c":     {"focus"},
		"x":     {"y"},
		"y":     {"x"},
		"loop1": {"loop2"},
		"loop2": {"loop1", "focus"},
	}

	tests := []struct {
		name      string
		candidate string
		maxDepth  int
		want      bool
	}{
		{"direct input", "c", 1, true},
		{"three hops within depth", "a", 3, true},
		{"three hops beyond depth", "a", 2, false},
		{"cycle without focus", "x", 10, false},
		{"cycle through focus", "loop1", 10, true},
		{"unknown sensor", "nope", 10, false},
		{"focus itself", "focus", 10, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDerivedFromFocus(tt.candidate, "focus", graph, tt.maxDepth, 100))
		})
	}
}

func TestIsDerivedFromFocusRespectsVisitCap(t *testing.T) {
	graph := GraphSnapshot{
		"a":  {"b1", "b2", "b3"},
		"b3": {"focus"},
	}
	assert.True(t, IsDerivedFromFocus("a", "focus", graph, 5, 10))
	assert.False(t, IsDerivedFromFocus("a", "focus", graph, 5, 2))
}

func TestPickStableCandidateID(t *testing.T) {
	candidates := []NormalizedCandidate{{SensorID: "top"}, {SensorID: "kept"}}

	assert.Equal(t, "kept", PickStableCandidateID("kept", candidates))
	assert.Equal(t, "top", PickStableCandidateID("gone", candidates))
	assert.Equal(t, "top", PickStableCandidateID("", candidates))
	assert.Equal(t, "", PickStableCandidateID("kept", nil))
}

func TestDiagnosePriority(t *testing.T) {
	job := JobResult{
		RankedIDs:          []string{"ranked"},
		EvaluatedIDs:       []string{"ranked", "weak", "truncated", "skipped"},
		CoverageDroppedIDs: []string{"sparse", "truncated"},
		TruncatedIDs:       []string{"truncated", "cut", "pinned"},
		PinnedIDs:          []string{"pinned"},
		CandidateCap:       50,
		Skipped: map[string]string{
			"forecast": SkipForecast,
			"cut":      SkipNoHistory,
			"odd":      "timeout",
		},
	}
	eligible := []string{"ranked", "weak", "sparse", "truncated", "cut", "pinned", "forecast", "odd", "silent"}

	tests := []struct {
		sensor string
		want   Reason
	}{
		{"focus", ReasonFocus},
		{"ranked", ReasonPresent},
		{"outsider", ReasonNotEligible},
		{"sparse", ReasonCoverage},
		{"truncated", ReasonCoverage},
		{"cut", ReasonTruncated},
		{"pinned", ReasonTruncatedPinned},
		{"forecast", ReasonSkipped},
		{"odd", ReasonSkipped},
		{"weak", ReasonBelowThreshold},
		{"silent", ReasonNotEvaluated},
	}
	for _, tt := range tests {
		t.Run(tt.sensor, func(t *testing.T) {
			d := Diagnose("focus", tt.sensor, eligible, job)
			assert.Equal(t, tt.want, d.Reason)
			assert.Equal(t, tt.sensor, d.SensorID)
			assert.NotEmpty(t, d.Label)
		})
	}

	assert.Equal(t, providerSkipLabel, Diagnose("focus", "forecast", eligible, job).Label)
	assert.Equal(t, "Skipped: timeout", Diagnose("focus", "odd", eligible, job).Label)
	assert.Contains(t, Diagnose("focus", "pinned", eligible, job).Label, "50")
}
