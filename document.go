package liverepo

import (
	"context"
	"fmt"
	"sync"

	"github.com/Stefano-Trinca/liverepo/backend"
	c "github.com/Stefano-Trinca/liverepo/codec"
	"github.com/Stefano-Trinca/liverepo/path"
)

type docRepo[E any] struct {
	p            path.Document
	key          string // storage key
	backend      backend.Backend
	codec        c.Codec[E]
	mapper       c.Mapper[E]
	def          E
	log          Logger
	hooks        Hooks
	allow        PermissionFunc
	closeBackend bool

	cache *Cache[E]

	// mu serializes writers so Update's read-modify-write cannot interleave
	// with another write and drop its fields.
	mu sync.Mutex

	// lifeCtx bounds the live subscription; cancelled by Close.
	lifeCtx context.Context
	cancel  context.CancelFunc
	once    sync.Once
}

func newDocRepo[E any](opts DocumentOptions[E]) (*docRepo[E], error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("liverepo: backend is required")
	}
	if err := opts.Path.Validate(); err != nil {
		return nil, err
	}

	r := &docRepo[E]{
		p:            opts.Path,
		key:          "doc:" + opts.Path.String(),
		backend:      opts.Backend,
		def:          opts.Default,
		allow:        opts.Allow,
		closeBackend: opts.CloseBackend,
		cache:        NewCache[E](),
	}

	// defaults
	r.codec = coalesce[c.Codec[E]](opts.Codec, c.JSON[E]{})
	r.mapper = coalesce[c.Mapper[E]](opts.Mapper, c.JSONMap[E]{})
	r.log = coalesce[Logger](opts.Logger, NopLogger{})
	r.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})

	r.lifeCtx, r.cancel = context.WithCancel(context.Background())
	return r, nil
}

func (r *docRepo[E]) Read(ctx context.Context) E {
	if !r.allowed(ctx, OpRead) {
		return r.def
	}
	v, ok := r.cache.Latest(ctx, r.source)
	if !ok {
		reason := "no_value"
		if r.cache.Closed() {
			reason = "closed"
		}
		r.hooks.ReadDegraded(r.p.String(), OpRead, reason)
		r.log.Debug("read degraded to default", Fields{"path": r.p.String(), "reason": reason})
		return r.def
	}
	return v
}

func (r *docRepo[E]) Watch(ctx context.Context) <-chan E {
	if !r.allowed(ctx, OpWatch) {
		return closedChan[E]()
	}
	return r.cache.Watch(r.source)
}

func (r *docRepo[E]) Peek() (E, bool) { return r.cache.Peek() }

func (r *docRepo[E]) Set(ctx context.Context, entity E) bool {
	if !r.allowed(ctx, OpSet) {
		return false
	}
	raw, err := r.codec.Encode(entity)
	if err != nil {
		r.writeFailed(OpSet, err)
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ok, err := r.backend.Set(ctx, r.key, raw)
	if err != nil {
		r.writeFailed(OpSet, err)
		return false
	}
	if !ok {
		r.hooks.WriteRejected(r.p.String(), OpSet)
		r.log.Debug("set rejected by backend (pressure)", Fields{"path": r.p.String()})
		return false
	}
	r.refresh(entity)
	return true
}

func (r *docRepo[E]) Update(ctx context.Context, fields map[string]any) bool {
	if !r.allowed(ctx, OpUpdate) {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, ok, err := r.backend.Get(ctx, r.key)
	if err != nil {
		r.writeFailed(OpUpdate, err)
		return false
	}
	if !ok {
		r.log.Debug("update skipped (document missing)", Fields{"path": r.p.String()})
		return false
	}
	cur, err := r.codec.Decode(raw)
	if err != nil {
		r.hooks.DecodeFailed(r.p.String(), err)
		r.writeFailed(OpUpdate, err)
		return false
	}

	m, err := r.mapper.ToMap(cur)
	if err != nil {
		r.writeFailed(OpUpdate, err)
		return false
	}
	for k, v := range fields {
		m[k] = v
	}
	next, err := r.mapper.FromMap(m)
	if err != nil {
		r.writeFailed(OpUpdate, err)
		return false
	}

	enc, err := r.codec.Encode(next)
	if err != nil {
		r.writeFailed(OpUpdate, err)
		return false
	}
	stored, err := r.backend.Set(ctx, r.key, enc)
	if err != nil {
		r.writeFailed(OpUpdate, err)
		return false
	}
	if !stored {
		r.hooks.WriteRejected(r.p.String(), OpUpdate)
		return false
	}
	r.refresh(next)
	return true
}

func (r *docRepo[E]) Delete(ctx context.Context) bool {
	if !r.allowed(ctx, OpDelete) {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.backend.Delete(ctx, r.key); err != nil {
		r.writeFailed(OpDelete, err)
		return false
	}
	r.refresh(r.def)
	return true
}

func (r *docRepo[E]) Exists(ctx context.Context) bool {
	if !r.allowed(ctx, OpExists) {
		return false
	}
	ok, err := r.backend.Exists(ctx, r.key)
	if err != nil {
		r.log.Warn("exists check failed", Fields{"path": r.p.String(), "err": err})
		return false
	}
	return ok
}

func (r *docRepo[E]) Close(ctx context.Context) error {
	var err error
	r.once.Do(func() {
		r.cancel()
		r.cache.Close()
		if r.closeBackend {
			err = r.backend.Close(ctx)
		}
	})
	return err
}

func (r *docRepo[E]) allowed(ctx context.Context, op Operation) bool {
	if r.allow == nil || r.allow(ctx, op, r.p.String()) {
		return true
	}
	r.hooks.PermissionDenied(r.p.String(), op)
	r.log.Debug("permission denied", Fields{"path": r.p.String(), "op": op})
	return false
}

func (r *docRepo[E]) writeFailed(op Operation, err error) {
	r.hooks.WriteFailed(r.p.String(), op, err)
	r.log.Error("write failed", Fields{"path": r.p.String(), "op": op, "err": err})
}

// source builds the cache's value stream. Invoked at most once, on the first
// read that initializes the cache.
func (r *docRepo[E]) source() <-chan E {
	w, ok := r.backend.(backend.Watcher)
	if !ok {
		return r.oneShot()
	}
	events, err := w.Watch(r.lifeCtx, r.key)
	if err != nil {
		r.log.Warn("watch failed; using one-shot read", Fields{"path": r.p.String(), "err": err})
		return r.oneShot()
	}

	out := make(chan E)
	go r.pump(events, out)
	return out
}

// oneShot emits the current value and leaves the stream open so the cache
// stays live for later Write refreshes. The stream closes with lifeCtx, so
// the forwarding goroutine retires once the repository closes.
func (r *docRepo[E]) oneShot() <-chan E {
	r.hooks.WatchFallback(r.p.String())
	out := make(chan E, 1)
	out <- r.load()
	go func() {
		<-r.lifeCtx.Done()
		close(out)
	}()
	return out
}

// pump forwards backend events into the cache stream. When the event stream
// ends the cache stream is closed, which closes the cache for good.
func (r *docRepo[E]) pump(events <-chan backend.Event, out chan<- E) {
	out <- r.load()
	for ev := range events {
		switch ev.Kind {
		case backend.EventPut:
			v, err := r.codec.Decode(ev.Value)
			if err != nil {
				r.hooks.DecodeFailed(r.p.String(), err)
				r.log.Warn("dropping undecodable event", Fields{"path": r.p.String(), "err": err})
				continue
			}
			out <- v
		case backend.EventDelete:
			out <- r.def
		}
	}
	r.hooks.SourceClosed(r.p.String())
	close(out)
}

// load reads the document once, degrading to the default value.
func (r *docRepo[E]) load() E {
	raw, ok, err := r.backend.Get(r.lifeCtx, r.key)
	if err != nil {
		r.log.Warn("read failed", Fields{"path": r.p.String(), "err": err})
		return r.def
	}
	if !ok {
		return r.def
	}
	v, err := r.codec.Decode(raw)
	if err != nil {
		r.hooks.DecodeFailed(r.p.String(), err)
		r.log.Warn("stored document undecodable", Fields{"path": r.p.String(), "err": err})
		return r.def
	}
	return v
}

// refresh pushes a locally written value into the cache when the backend
// cannot stream it back. Gated by Cache.Write: a never-read repository stays
// uninitialized.
func (r *docRepo[E]) refresh(v E) {
	if _, ok := r.backend.(backend.Watcher); !ok {
		r.cache.Write(v)
	}
}
