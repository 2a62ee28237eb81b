package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"spotiqueue/model"

	"github.com/go-redis/redis/v8"
)

const (
	queueSnapshotKey = "queue:snapshot"
	nowPlayingKey    = "queue:now_playing"

	// Short TTLs: the provider queue changes under us as playback advances,
	// so staleness is bounded rather than avoided.
	queueSnapshotTTL = 15 * time.Second
	nowPlayingTTL    = 5 * time.Second
)

// GetQueueSnapshot returns the cached queue state, or nil on a miss.
func GetQueueSnapshot(ctx context.Context) (*model.QueueSnapshot, error) {
	if RedisClient == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}

	data, err := RedisClient.Get(ctx, queueSnapshotKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get queue snapshot: %w", err)
	}

	var snapshot model.QueueSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal queue snapshot: %w", err)
	}
	return &snapshot, nil
}

// SetQueueSnapshot stores the queue state with a short TTL.
func SetQueueSnapshot(ctx context.Context, snapshot *model.QueueSnapshot) error {
	if RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal queue snapshot: %w", err)
	}

	if err := RedisClient.Set(ctx, queueSnapshotKey, data, queueSnapshotTTL).Err(); err != nil {
		return fmt.Errorf("failed to set queue snapshot: %w", err)
	}
	return nil
}

// InvalidateQueueSnapshot drops the cached queue state. Called after every
// successful enqueue so the next read reflects the new track.
func InvalidateQueueSnapshot(ctx context.Context) error {
	if RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	if err := RedisClient.Del(ctx, queueSnapshotKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate queue snapshot: %w", err)
	}
	return nil
}

// GetNowPlaying returns the cached playback state, or nil on a miss.
func GetNowPlaying(ctx context.Context) (*model.NowPlaying, error) {
	if RedisClient == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}

	data, err := RedisClient.Get(ctx, nowPlayingKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get now playing: %w", err)
	}

	var np model.NowPlaying
	if err := json.Unmarshal(data, &np); err != nil {
		return nil, fmt.Errorf("failed to unmarshal now playing: %w", err)
	}
	return &np, nil
}

// SetNowPlaying stores the playback state with a short TTL.
func SetNowPlaying(ctx context.Context, np *model.NowPlaying) error {
	if RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	data, err := json.Marshal(np)
	if err != nil {
		return fmt.Errorf("failed to marshal now playing: %w", err)
	}

	if err := RedisClient.Set(ctx, nowPlayingKey, data, nowPlayingTTL).Err(); err != nil {
		return fmt.Errorf("failed to set now playing: %w", err)
	}
	return nil
}
