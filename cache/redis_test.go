package cache

import (
	"context"
	"testing"
	"time"

	"pattern-detector/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, ttl time.Duration) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	rc, err := NewRedisClient(context.Background(), Options{Addr: mr.Addr(), TTL: ttl})
	require.NoError(t, err)
	t.Cleanup(func() { rc.Close() })
	return rc, mr
}

func TestNewRedisClientFailsWithoutServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRedisClient(ctx, Options{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}

func TestNewWithClientDefaultsTTL(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer rdb.Close()

	assert.Equal(t, 5*time.Minute, NewWithClient(rdb, 0).ttl)
	assert.Equal(t, time.Hour, NewWithClient(rdb, time.Hour).ttl)
}

func TestSaveAndGetAnalysis(t *testing.T) {
	rc, mr := newTestClient(t, time.Minute)
	ctx := context.Background()

	saved := models.AnalysisResult{
		ID:     "job-1",
		Kind:   models.KindEvents,
		Status: models.StatusDone,
		Result: []byte(`{"events":[]}`),
	}
	require.NoError(t, rc.SaveAnalysis(ctx, "job-1", saved))
	assert.True(t, mr.Exists(keyPrefix+"job-1"))
	assert.Equal(t, time.Minute, mr.TTL(keyPrefix+"job-1"))

	got, err := rc.GetAnalysis(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, saved.ID, got.ID)
	assert.Equal(t, saved.Kind, got.Kind)
	assert.Equal(t, saved.Status, got.Status)
	assert.JSONEq(t, `{"events":[]}`, string(got.Result))
}

func TestGetAnalysisMissingOrExpired(t *testing.T) {
	rc, mr := newTestClient(t, time.Minute)
	ctx := context.Background()

	got, err := rc.GetAnalysis(ctx, "unknown")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, rc.SaveAnalysis(ctx, "job-2", models.AnalysisResult{ID: "job-2", Status: models.StatusPending}))
	mr.FastForward(2 * time.Minute)

	got, err = rc.GetAnalysis(ctx, "job-2")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetAnalysisRejectsCorruptValue(t *testing.T) {
	rc, mr := newTestClient(t, time.Minute)
	require.NoError(t, mr.Set(keyPrefix+"job-3", "not json"))

	_, err := rc.GetAnalysis(context.Background(), "job-3")
	assert.Error(t, err)
}
