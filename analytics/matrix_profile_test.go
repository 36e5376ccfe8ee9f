package analytics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatrixProfileConstantSeries(t *testing.T) {
	const n, w = 50, 8
	mp := ComputeMatrixProfile(repeat(3.25, n), w, 0)

	require.Len(t, mp.Profile, n-w+1)
	require.Len(t, mp.ProfileIndex, n-w+1)
	assert.Equal(t, w/2, mp.ExclusionZone)
	for i, d := range mp.Profile {
		assert.Equal(t, 0.0, d, "window %d", i)
		assert.Greater(t, absInt(mp.ProfileIndex[i]-i), mp.ExclusionZone)
	}
}

func TestMatrixProfileTooShort(t *testing.T) {
	const w = 8
	values := make([]float64, w+3)
	for i := range values {
		values[i] = float64(i * i)
	}

	mp := ComputeMatrixProfile(values, w, 0)
	assert.True(t, mp.Empty())
	assert.Empty(t, mp.ProfileIndex)

	assert.True(t, ComputeMatrixProfile(values, 1, 0).Empty())
}

func TestMatrixProfileFindsInjectedAnomaly(t *testing.T) {
	const (
		n      = 400
		period = 20
		w      = 20
		start  = 200
		end    = 212
	)
	values := make([]float64, n)
	for i := range values {
		values[i] = math.Sin(2 * math.Pi * float64(i) / period)
	}
	for i := start; i < end; i++ {
		values[i] = 0.2 * float64(i-start)
	}

	mp := ComputeMatrixProfile(values, w, 0)
	require.False(t, mp.Empty())

	argmax := 0
	for i, d := range mp.Profile {
		assert.GreaterOrEqual(t, d, 0.0)
		if d > mp.Profile[argmax] {
			argmax = i
		}
	}
	assert.GreaterOrEqual(t, argmax, start-w+1)
	assert.Less(t, argmax, end)

	discords := TopDiscords(mp, 1)
	require.Len(t, discords, 1)
	assert.Equal(t, argmax, discords[0].Index)

	motifs := TopMotifs(mp, 3)
	require.Len(t, motifs, 3)
	for _, m := range motifs {
		assert.InDelta(t, 0.0, m.Distance, 1e-6)
		assert.True(t, m.Index+w <= start || m.Index >= end, "motif %d overlaps the anomaly", m.Index)
	}
}

func TestTopHitsDoNotOverlap(t *testing.T) {
	values := make([]float64, 120)
	for i := range values {
		values[i] = math.Sin(float64(i)*0.7) + 0.3*math.Sin(float64(i)*0.13)
	}
	mp := ComputeMatrixProfile(values, 10, 0)
	require.False(t, mp.Empty())

	hits := TopDiscords(mp, 4)
	for i := range hits {
		for j := i + 1; j < len(hits); j++ {
			assert.Greater(t, absInt(hits[i].Index-hits[j].Index), mp.ExclusionZone)
		}
	}
	assert.Empty(t, TopMotifs(mp, 0))
}

func TestSimilarityHeatmap(t *testing.T) {
	values := make([]float64, 240)
	for i := range values {
		values[i] = math.Sin(2 * math.Pi * float64(i) / 24)
	}

	hm := SimilarityHeatmap(values, 12, 50)
	windows := len(values) - 12 + 1
	assert.Equal(t, windows/50, hm.Stride)
	require.Len(t, hm.Distances, len(hm.Indices))
	for i := range hm.Distances {
		require.Len(t, hm.Distances[i], len(hm.Indices))
		assert.Equal(t, 0.0, hm.Distances[i][i])
		for j := range hm.Distances[i] {
			assert.InDelta(t, hm.Distances[i][j], hm.Distances[j][i], 1e-12)
		}
	}

	assert.Empty(t, SimilarityHeatmap(values[:10], 12, 50).Indices)
}
