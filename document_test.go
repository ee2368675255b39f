package liverepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Stefano-Trinca/liverepo/backend"
	"github.com/Stefano-Trinca/liverepo/backend/memory"
	"github.com/Stefano-Trinca/liverepo/path"
)

type profile struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

var anon = profile{Name: "anon"}

func newDocTestRepo(t *testing.T, be backend.Backend, mod func(*DocumentOptions[profile])) DocumentRepository[profile] {
	t.Helper()
	opts := DocumentOptions[profile]{
		Path:    path.Col("users").Doc("u1"),
		Backend: be,
		Default: anon,
	}
	if mod != nil {
		mod(&opts)
	}
	repo, err := NewDocument[profile](opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close(context.Background()) })
	return repo
}

func TestDocumentLifecycle(t *testing.T) {
	ctx := context.Background()
	st := memory.New(memory.Config{})
	t.Cleanup(func() { _ = st.Close(ctx) })
	repo := newDocTestRepo(t, st, nil)

	// empty document reads as the default
	assert.Equal(t, anon, repo.Read(ctx))
	assert.False(t, repo.Exists(ctx))

	ada := profile{Name: "Ada", Score: 1}
	require.True(t, repo.Set(ctx, ada))
	require.Eventually(t, func() bool {
		v, ok := repo.Peek()
		return ok && v == ada
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, ada, repo.Read(ctx))
	assert.True(t, repo.Exists(ctx))

	// partial update merges into the stored map form
	require.True(t, repo.Update(ctx, map[string]any{"score": 10}))
	require.Eventually(t, func() bool {
		v, ok := repo.Peek()
		return ok && v == profile{Name: "Ada", Score: 10}
	}, 2*time.Second, 5*time.Millisecond)

	require.True(t, repo.Delete(ctx))
	require.Eventually(t, func() bool {
		v, ok := repo.Peek()
		return ok && v == anon
	}, 2*time.Second, 5*time.Millisecond)
	assert.False(t, repo.Exists(ctx))
}

func TestDocumentWatch(t *testing.T) {
	ctx := context.Background()
	st := memory.New(memory.Config{})
	t.Cleanup(func() { _ = st.Close(ctx) })
	repo := newDocTestRepo(t, st, nil)

	w := repo.Watch(ctx)
	assert.Equal(t, anon, recv(t, w)) // initial snapshot

	ada := profile{Name: "Ada", Score: 1}
	require.True(t, repo.Set(ctx, ada))
	assert.Equal(t, ada, recv(t, w))

	require.True(t, repo.Delete(ctx))
	assert.Equal(t, anon, recv(t, w))
}

func TestDocumentUpdateMissing(t *testing.T) {
	ctx := context.Background()
	st := memory.New(memory.Config{})
	t.Cleanup(func() { _ = st.Close(ctx) })
	repo := newDocTestRepo(t, st, nil)

	assert.False(t, repo.Update(ctx, map[string]any{"score": 1}),
		"Update must not create a missing document")
}

func TestDocumentPermissionDenied(t *testing.T) {
	ctx := context.Background()
	st := memory.New(memory.Config{})
	t.Cleanup(func() { _ = st.Close(ctx) })

	denyWrites := func(_ context.Context, op Operation, _ string) bool {
		return op == OpRead || op == OpWatch
	}
	repo := newDocTestRepo(t, st, func(o *DocumentOptions[profile]) { o.Allow = denyWrites })

	assert.False(t, repo.Set(ctx, profile{Name: "Ada"}))
	assert.False(t, repo.Delete(ctx))
	assert.False(t, repo.Exists(ctx))

	// the denied Set never reached the backend
	_, ok, err := st.Get(ctx, "doc:users/u1")
	require.NoError(t, err)
	assert.False(t, ok)

	denyAll := func(context.Context, Operation, string) bool { return false }
	locked := newDocTestRepo(t, st, func(o *DocumentOptions[profile]) { o.Allow = denyAll })
	assert.Equal(t, anon, locked.Read(ctx))
	recvClosed(t, locked.Watch(ctx))
	// denial short-circuits before the cache: nothing was initialized
	_, ok = locked.Peek()
	assert.False(t, ok)
}

// TestDocumentConcurrentUpdates: two writers merging disjoint fields must
// both land; an unserialized read-modify-write would let one writer's Set
// overwrite the other's fields with a stale snapshot.
func TestDocumentConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	st := memory.New(memory.Config{})
	t.Cleanup(func() { _ = st.Close(ctx) })
	repo := newDocTestRepo(t, st, nil)

	require.True(t, repo.Set(ctx, profile{Name: "v0", Score: 0}))

	const iters = 200
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 1; i <= iters; i++ {
			if !repo.Update(ctx, map[string]any{"score": i}) {
				t.Error("score update failed")
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 1; i <= iters; i++ {
			if !repo.Update(ctx, map[string]any{"name": fmt.Sprintf("v%d", i)}) {
				t.Error("name update failed")
				return
			}
		}
	}()
	wg.Wait()

	// check the stored bytes directly; the cache may still be draining
	raw, ok, err := st.Get(ctx, "doc:users/u1")
	require.NoError(t, err)
	require.True(t, ok)
	var got profile
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, fmt.Sprintf("v%d", iters), got.Name)
	assert.Equal(t, iters, got.Score)
}

func TestDocumentClosedRepository(t *testing.T) {
	ctx := context.Background()
	st := memory.New(memory.Config{})
	t.Cleanup(func() { _ = st.Close(ctx) })
	repo := newDocTestRepo(t, st, nil)

	assert.Equal(t, anon, repo.Read(ctx))
	require.NoError(t, repo.Close(ctx))

	// the live view is gone for good; reads degrade to the default
	require.Eventually(t, func() bool {
		_, ok := repo.Peek()
		return !ok
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, anon, repo.Read(ctx))
	recvClosed(t, repo.Watch(ctx))
}

// ==============================
// Backends without watch support
// ==============================

// plainStore is a minimal Backend with no Watcher: repositories fall back to
// one-shot reads plus local cache refresh on writes.
type plainStore struct {
	m      map[string][]byte
	reject bool
	err    error
}

var _ backend.Backend = (*plainStore)(nil)

func newPlainStore() *plainStore { return &plainStore{m: make(map[string][]byte)} }

func (p *plainStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if p.err != nil {
		return nil, false, p.err
	}
	v, ok := p.m[key]
	return v, ok, nil
}

func (p *plainStore) Set(_ context.Context, key string, value []byte) (bool, error) {
	if p.err != nil {
		return false, p.err
	}
	if p.reject {
		return false, nil
	}
	p.m[key] = value
	return true, nil
}

func (p *plainStore) Delete(_ context.Context, key string) error {
	delete(p.m, key)
	return p.err
}

func (p *plainStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := p.m[key]
	return ok, p.err
}

func (p *plainStore) Close(_ context.Context) error { return nil }

func TestDocumentOneShotBackend(t *testing.T) {
	ctx := context.Background()
	st := newPlainStore()
	repo := newDocTestRepo(t, st, nil)

	ada := profile{Name: "Ada", Score: 1}
	require.True(t, repo.Set(ctx, ada))
	// a write before any read cannot seed the cache (write gating)
	_, ok := repo.Peek()
	assert.False(t, ok)

	// first read initializes from a one-shot snapshot
	assert.Equal(t, ada, repo.Read(ctx))

	// later writes refresh the cache locally, since nothing streams back
	ada2 := profile{Name: "Ada", Score: 2}
	require.True(t, repo.Set(ctx, ada2))
	v, ok := repo.Peek()
	require.True(t, ok)
	assert.Equal(t, ada2, v)
}

// TestDocumentCloseRetiresOneShotSource: the forwarding goroutine behind a
// one-shot source must end with the repository, not linger forever.
func TestDocumentCloseRetiresOneShotSource(t *testing.T) {
	ctx := context.Background()
	start := runtime.NumGoroutine()

	st := newPlainStore()
	repo := newDocTestRepo(t, st, nil)
	require.True(t, repo.Set(ctx, profile{Name: "Ada"}))
	assert.Equal(t, profile{Name: "Ada"}, repo.Read(ctx)) // one-shot source now live

	require.NoError(t, repo.Close(ctx))
	// polled inline so the check itself adds no goroutines
	eventually(t, func() bool { return runtime.NumGoroutine() <= start })
}

func TestDocumentBackendFailures(t *testing.T) {
	ctx := context.Background()

	rejecting := newPlainStore()
	rejecting.reject = true
	repo := newDocTestRepo(t, rejecting, nil)
	assert.False(t, repo.Set(ctx, profile{Name: "Ada"}),
		"backend pressure rejection must surface as a false result")

	broken := newPlainStore()
	broken.err = errors.New("backend down")
	repo2 := newDocTestRepo(t, broken, nil)
	assert.False(t, repo2.Set(ctx, profile{Name: "Ada"}))
	assert.False(t, repo2.Exists(ctx))
	assert.Equal(t, anon, repo2.Read(ctx), "reads degrade to the default, never an error")
}
