package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/rueidis"
)

// ErrKeyNotFound is returned by Store.Get for a missing key.
var ErrKeyNotFound = errors.New("key not found")

type StoreConfig struct {
	Addrs    []string
	Password string
	DB       int
	TTL      time.Duration
}

// Store is a byte key-value store backed by rueidis.
type Store struct {
	client rueidis.Client
	ttl    time.Duration
}

func NewStore(cfg StoreConfig) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("redis addrs is required")
	}
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create redis client: %w", err)
	}
	return &Store{client: client, ttl: cfg.TTL}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Do(ctx, s.client.B().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

// Set stores value under key, expiring it after the configured TTL when one is set.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	var cmd rueidis.Completed
	if s.ttl > 0 {
		cmd = s.client.B().Set().Key(key).Value(rueidis.BinaryString(value)).Ex(s.ttl).Build()
	} else {
		cmd = s.client.B().Set().Key(key).Value(rueidis.BinaryString(value)).Build()
	}
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	s.client.Close()
}
