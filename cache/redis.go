package cache

import (
	"context"
	"encoding/json"
	"time"

	"pattern-detector/models"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "analysis:"

type Options struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	TTL      time.Duration
}

type RedisClient struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisClient(ctx context.Context, opts Options) (*RedisClient, error) {
	poolSize := opts.PoolSize
	if poolSize <= 0 {
		poolSize = 50
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     poolSize,
		MinIdleConns: 10,
		MaxRetries:   3,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}

	return NewWithClient(rdb, opts.TTL), nil
}

// NewWithClient wraps an existing client. A non-positive ttl keeps the
// default of five minutes.
func NewWithClient(rdb *redis.Client, ttl time.Duration) *RedisClient {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisClient{client: rdb, ttl: ttl}
}

func (rc *RedisClient) Close() error {
	return rc.client.Close()
}

func (rc *RedisClient) Ping(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

func (rc *RedisClient) SaveAnalysis(ctx context.Context, id string, result models.AnalysisResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	return rc.client.Set(ctx, keyPrefix+id, data, rc.ttl).Err()
}

// GetAnalysis returns nil, nil when the id is unknown or has expired.
func (rc *RedisClient) GetAnalysis(ctx context.Context, id string) (*models.AnalysisResult, error) {
	val, err := rc.client.Get(ctx, keyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var result models.AnalysisResult
	if err := json.Unmarshal(val, &result); err != nil {
		return nil, err
	}

	return &result, nil
}
