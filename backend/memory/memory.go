// Package memory provides the in-process reference backend: a mutex-guarded
// map with per-key watch fan-out and optional TTL expiry.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Stefano-Trinca/liverepo/backend"
)

var ErrClosed = errors.New("memory backend: closed")

type entry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

type watcher struct {
	ch      chan backend.Event
	done    chan struct{}
	pending sync.WaitGroup // in-flight deliveries; ch closes only after Wait
	once    sync.Once      // ctx cancellation and Close may race
}

// Store is an in-process Backend with watch support.
// Optional TTL with a periodic cleanup loop to prune expired entries.
type Store struct {
	mu       sync.Mutex
	m        map[string]entry
	watchers map[string][]*watcher
	closed   bool

	ttl    time.Duration
	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
}

var (
	_ backend.Backend = (*Store)(nil)
	_ backend.Watcher = (*Store)(nil)
)

type Config struct {
	TTL             time.Duration // 0 => entries never expire
	CleanupInterval time.Duration // 0 => no cleanup loop (expiry still lazy on Get)
}

func New(cfg Config) *Store {
	s := &Store{
		m:        make(map[string]entry),
		watchers: make(map[string][]*watcher),
		ttl:      cfg.TTL,
	}
	if cfg.TTL > 0 && cfg.CleanupInterval > 0 {
		s.ticker = time.NewTicker(cfg.CleanupInterval)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.ticker.C:
					s.cleanup()
				case <-s.stopCh:
					return
				}
			}
		}()
	}
	return s
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false, ErrClosed
	}
	e, ok := s.m[key]
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		delete(s.m, key)
		return nil, false, nil
	}
	return e.v, true, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) (bool, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, ErrClosed
	}
	var exp time.Time
	if s.ttl > 0 {
		exp = time.Now().Add(s.ttl)
	}
	s.m[key] = entry{v: value, exp: exp}
	ws := s.claimWatchersLocked(key)
	s.mu.Unlock()

	notify(ws, backend.Event{Kind: backend.EventPut, Value: value})
	return true, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	delete(s.m, key)
	ws := s.claimWatchersLocked(key)
	s.mu.Unlock()

	notify(ws, backend.Event{Kind: backend.EventDelete})
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

// Watch streams put/delete events for key until ctx ends or the store
// closes.
func (s *Store) Watch(ctx context.Context, key string) (<-chan backend.Event, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, backend.ErrWatchClosed
	}
	w := &watcher{
		ch:   make(chan backend.Event, 16),
		done: make(chan struct{}),
	}
	s.watchers[key] = append(s.watchers[key], w)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.dropWatcher(key, w)
	}()
	return w.ch, nil
}

func (s *Store) Close(_ context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.m = nil
	all := s.watchers
	s.watchers = nil
	s.mu.Unlock()

	if s.stopCh != nil {
		close(s.stopCh)
		s.ticker.Stop()
		s.wg.Wait()
	}
	for _, ws := range all {
		for _, w := range ws {
			w.shutdown()
		}
	}
	return nil
}

// claimWatchersLocked snapshots the watcher list for key and marks one
// pending delivery on each, so a concurrent shutdown waits for the sends.
func (s *Store) claimWatchersLocked(key string) []*watcher {
	ws := s.watchers[key]
	for _, w := range ws {
		w.pending.Add(1)
	}
	return ws
}

func (s *Store) dropWatcher(key string, w *watcher) {
	s.mu.Lock()
	ws := s.watchers[key]
	for i, cand := range ws {
		if cand == w {
			s.watchers[key] = append(ws[:i:i], ws[i+1:]...)
			break
		}
	}
	if len(s.watchers[key]) == 0 {
		delete(s.watchers, key)
	}
	s.mu.Unlock()
	w.shutdown()
}

func notify(ws []*watcher, ev backend.Event) {
	for _, w := range ws {
		select {
		case w.ch <- ev:
		case <-w.done:
		}
		w.pending.Done()
	}
}

// shutdown stops a watcher: abort pending sends, then close the channel.
func (w *watcher) shutdown() {
	w.once.Do(func() {
		close(w.done)
		w.pending.Wait()
		close(w.ch)
	})
}

func (s *Store) cleanup() {
	now := time.Now()
	s.mu.Lock()
	for k, e := range s.m {
		if !e.exp.IsZero() && e.exp.Before(now) {
			delete(s.m, k)
		}
	}
	s.mu.Unlock()
}
