// Package redis keeps each document under its own Redis key with no TTL.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ecogrove/market/internal/store"
)

const keyPrefix = "market:doc:"

type Store struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	doc, err := s.rdb.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNoDocument
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	return doc, nil
}

func (s *Store) Save(ctx context.Context, key string, doc []byte) error {
	err := s.rdb.Set(ctx, keyPrefix+key, doc, 0).Err()
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.rdb.Del(ctx, keyPrefix+key).Err()
	if err != nil {
		return fmt.Errorf("redis del: %w", err)
	}

	return nil
}
