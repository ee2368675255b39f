// Package ttlcache adapts jellydator/ttlcache as a Backend: an in-process
// store whose entries expire after a fixed TTL. No Watcher support.
package ttlcache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/Stefano-Trinca/liverepo/backend"
)

type Store struct {
	c *ttlcache.Cache[string, []byte]
}

var _ backend.Backend = (*Store)(nil)

type Config struct {
	TTL      time.Duration // 0 => entries never expire
	Capacity uint64        // 0 = unlimited; LRU beyond capacity
}

func New(cfg Config) *Store {
	opts := []ttlcache.Option[string, []byte]{
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	}
	if cfg.TTL > 0 {
		opts = append(opts, ttlcache.WithTTL[string, []byte](cfg.TTL))
	}
	if cfg.Capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, []byte](cfg.Capacity))
	}
	c := ttlcache.New[string, []byte](opts...)
	go c.Start() // expiry loop; stopped by Close
	return &Store{c: c}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	it := s.c.Get(key)
	if it == nil {
		return nil, false, nil
	}
	return it.Value(), true, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) (bool, error) {
	s.c.Set(key, value, ttlcache.DefaultTTL)
	return true, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.c.Delete(key)
	return nil
}

func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	return s.c.Has(key), nil
}

func (s *Store) Close(_ context.Context) error {
	s.c.Stop()
	return nil
}
