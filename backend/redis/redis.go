// Package redis implements a Backend over a Redis server. Watch support is
// built on pub/sub: every Set/Delete publishes a wire-framed event on a
// per-key channel, so replicas sharing the server observe each other's
// writes.
package redis

import (
	"context"
	"errors"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Stefano-Trinca/liverepo/backend"
	"github.com/Stefano-Trinca/liverepo/internal/wire"
)

var ErrNilClient = errors.New("redis backend: nil client")

// eventChannel derives the pub/sub channel carrying events for a key.
func eventChannel(key string) string { return "liverepo:evt:" + key }

type Redis struct {
	rdb         goredis.UniversalClient
	closeClient bool
}

var (
	_ backend.Backend = (*Redis)(nil)
	_ backend.Watcher = (*Redis)(nil)
)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool // set true only if this backend exclusively owns the client
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Redis{rdb: cfg.Client, closeClient: cfg.CloseClient}, nil
}

func (b *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := b.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, err // transport/server error
	}
	return raw, true, nil
}

func (b *Redis) Set(ctx context.Context, key string, value []byte) (bool, error) {
	if err := b.rdb.Set(ctx, key, value, 0).Err(); err != nil {
		return false, err
	}
	// best-effort: a lost event only delays watchers until the next write
	_ = b.rdb.Publish(ctx, eventChannel(key), wire.EncodeEvent(wire.OpPut, value)).Err()
	return true, nil
}

func (b *Redis) Delete(ctx context.Context, key string) error {
	if err := b.rdb.Del(ctx, key).Err(); err != nil {
		return err
	}
	_ = b.rdb.Publish(ctx, eventChannel(key), wire.EncodeEvent(wire.OpDel, nil)).Err()
	return nil
}

func (b *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := b.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Watch subscribes to the key's event channel. Frames that fail strict
// decoding are dropped; they cannot have been produced by this backend.
func (b *Redis) Watch(ctx context.Context, key string) (<-chan backend.Event, error) {
	sub := b.rdb.Subscribe(ctx, eventChannel(key))
	// force the SUBSCRIBE round-trip so a broken connection fails here,
	// not silently inside the pump
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan backend.Event, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				op, payload, err := wire.DecodeEvent([]byte(msg.Payload))
				if err != nil {
					continue
				}
				ev := backend.Event{Kind: backend.EventPut, Value: payload}
				if op == wire.OpDel {
					ev = backend.Event{Kind: backend.EventDelete}
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close releases the underlying redis client only when this backend owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (b *Redis) Close(context.Context) error {
	if b.closeClient {
		if err := b.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
