package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/dtce-ai/dtce-rag/common/logger"
	"github.com/dtce-ai/dtce-rag/config"
	"github.com/dtce-ai/dtce-rag/schema"
)

// RedisStore keeps each session as a capped redis list of JSON turns:
//
//	prefix+id => [turn, turn, ...] with TTL
type RedisStore struct {
	client   *redis.Client
	prefix   string
	ttl      time.Duration
	maxTurns int
}

func NewRedisStore(cfg config.SessionConfig) (*RedisStore, error) {
	if cfg.Redis.Address == "" {
		return nil, errors.New("redis address is required")
	}
	prefix := cfg.Redis.KeyPrefix
	if prefix == "" {
		prefix = "dtce:sess:"
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Address,
		Username:     cfg.Redis.Username,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	return &RedisStore{client: client, prefix: prefix, ttl: ttl(cfg), maxTurns: cfg.MaxTurns}, nil
}

func (s *RedisStore) key(id string) string { return s.prefix + id }

// Create only allocates an id; the list appears on first Append.
func (s *RedisStore) Create(ctx context.Context) (string, error) {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return "", fmt.Errorf("session store unavailable: %w", err)
	}
	return newID(), nil
}

func (s *RedisStore) History(ctx context.Context, id string) ([]schema.Turn, error) {
	raw, err := s.client.LRange(ctx, s.key(id), 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	turns := make([]schema.Turn, 0, len(raw))
	for _, r := range raw {
		var t schema.Turn
		if err := json.Unmarshal([]byte(r), &t); err != nil {
			logger.Warnf("session: skip malformed turn in %s: %v", id, err)
			continue
		}
		turns = append(turns, t)
	}
	return turns, nil
}

func (s *RedisStore) Append(ctx context.Context, id string, turns ...schema.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(turns))
	for _, t := range turns {
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("encode turn: %w", err)
		}
		values = append(values, string(b))
	}
	key := s.key(id)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, key, values...)
		if s.maxTurns > 0 {
			p.LTrim(ctx, key, int64(-s.maxTurns), -1)
		}
		p.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append session %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) Close() error { return s.client.Close() }
