package vision

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store keeps recent frames per session in redis with a short TTL, so a just
// completed detection can be revisited without the client resending.
type Store struct {
	redis    *redis.Client
	frameTTL time.Duration
}

func NewStore(redisClient *redis.Client, frameTTL time.Duration) *Store {
	if frameTTL == 0 {
		frameTTL = 60 * time.Second
	}
	return &Store{
		redis:    redisClient,
		frameTTL: frameTTL,
	}
}

func frameKey(sessionID string) string {
	return fmt.Sprintf("repair:%s:frames", sessionID)
}

func (s *Store) StoreFrame(ctx context.Context, frame *Frame) error {
	member := redis.Z{
		Score:  float64(frame.Timestamp),
		Member: frame.Data,
	}

	pipe := s.redis.Pipeline()
	pipe.ZAdd(ctx, frameKey(frame.SessionID), member)
	pipe.Expire(ctx, frameKey(frame.SessionID), s.frameTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) GetLatestFrame(ctx context.Context, sessionID string) (*Frame, error) {
	results, err := s.redis.ZRevRangeWithScores(ctx, frameKey(sessionID), 0, 0).Result()
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}

	data, ok := results[0].Member.(string)
	if !ok {
		return nil, fmt.Errorf("invalid frame data type")
	}

	return &Frame{
		SessionID: sessionID,
		Timestamp: int64(results[0].Score),
		Data:      []byte(data),
	}, nil
}

func (s *Store) DeleteFrames(ctx context.Context, sessionID string) error {
	return s.redis.Del(ctx, frameKey(sessionID)).Err()
}
