package liverepo

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/Stefano-Trinca/liverepo/backend"
	c "github.com/Stefano-Trinca/liverepo/codec"
	"github.com/Stefano-Trinca/liverepo/internal/wire"
	"github.com/Stefano-Trinca/liverepo/path"
)

// collRepo stores each member document individually and keeps a per
// collection index document holding the ordered member ids. Every mutation
// rewrites the index with a bumped revision, so index watchers observe
// membership changes and content-only changes alike.
type collRepo[K, E any] struct {
	pathOf       func(K) path.Collection
	backend      backend.Backend
	codec        c.Codec[E]
	less         func(a, b E) bool
	log          Logger
	hooks        Hooks
	allow        PermissionFunc
	closeBackend bool

	reg *Registry[K, []E]

	// mu serializes index read-modify-write across mutations.
	mu sync.Mutex

	lifeCtx context.Context
	cancel  context.CancelFunc
	once    sync.Once
}

func newCollRepo[K, E any](opts CollectionOptions[K, E]) (*collRepo[K, E], error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("liverepo: backend is required")
	}
	if opts.Path == nil {
		return nil, fmt.Errorf("liverepo: collection path func is required")
	}
	if opts.Equal == nil {
		return nil, fmt.Errorf("liverepo: key equality func is required")
	}

	r := &collRepo[K, E]{
		pathOf:       opts.Path,
		backend:      opts.Backend,
		less:         opts.Order,
		allow:        opts.Allow,
		closeBackend: opts.CloseBackend,
		reg:          NewRegistry[K, []E](opts.Equal),
	}
	r.codec = coalesce[c.Codec[E]](opts.Codec, c.JSON[E]{})
	r.log = coalesce[Logger](opts.Logger, NopLogger{})
	r.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})

	r.lifeCtx, r.cancel = context.WithCancel(context.Background())
	return r, nil
}

func (r *collRepo[K, E]) List(ctx context.Context, key K) []E {
	col, ok := r.resolve(ctx, OpRead, key)
	if !ok {
		return nil
	}
	vs, ok := r.reg.Latest(ctx, key, r.sourceFor(col))
	if !ok {
		r.hooks.ReadDegraded(col.String(), OpRead, "no_value")
		r.log.Debug("list degraded to empty", Fields{"path": col.String()})
		return nil
	}
	return vs
}

func (r *collRepo[K, E]) Watch(ctx context.Context, key K) <-chan []E {
	col, ok := r.resolve(ctx, OpWatch, key)
	if !ok {
		return closedChan[[]E]()
	}
	return r.reg.Watch(key, r.sourceFor(col))
}

func (r *collRepo[K, E]) Peek(key K) ([]E, bool) { return r.reg.Peek(key) }

func (r *collRepo[K, E]) Add(ctx context.Context, key K, entity E) (string, bool) {
	col, ok := r.resolve(ctx, OpCreate, key)
	if !ok {
		return "", false
	}
	id := path.NewID()
	if !r.put(ctx, OpCreate, key, col, id, entity) {
		return "", false
	}
	return id, true
}

func (r *collRepo[K, E]) Set(ctx context.Context, key K, id string, entity E) bool {
	col, ok := r.resolve(ctx, OpSet, key)
	if !ok {
		return false
	}
	return r.put(ctx, OpSet, key, col, id, entity)
}

func (r *collRepo[K, E]) Delete(ctx context.Context, key K, id string) bool {
	col, ok := r.resolve(ctx, OpDelete, key)
	if !ok {
		return false
	}

	r.mu.Lock()
	docErr := r.backend.Delete(ctx, r.docKey(col, id))
	rev, ids, idxErr := r.loadIndex(ctx, col)
	if idxErr == nil {
		if i := slices.Index(ids, id); i >= 0 {
			ids = append(ids[:i:i], ids[i+1:]...)
		}
		idxErr = r.storeIndex(ctx, OpDelete, col, rev+1, ids)
	}
	r.mu.Unlock()

	if docErr != nil || idxErr != nil {
		r.reportWrite(OpDelete, col, docErr, idxErr)
		return false
	}
	r.refresh(key, col)
	return true
}

func (r *collRepo[K, E]) Exists(ctx context.Context, key K, id string) bool {
	col, ok := r.resolve(ctx, OpExists, key)
	if !ok {
		return false
	}
	found, err := r.backend.Exists(ctx, r.docKey(col, id))
	if err != nil {
		r.log.Warn("exists check failed", Fields{"path": col.Doc(id).String(), "err": err})
		return false
	}
	return found
}

func (r *collRepo[K, E]) Close(ctx context.Context) error {
	var err error
	r.once.Do(func() {
		r.cancel()
		r.reg.Close()
		if r.closeBackend {
			err = r.backend.Close(ctx)
		}
	})
	return err
}

// resolve maps key to its collection path and runs validation plus the
// permission check.
func (r *collRepo[K, E]) resolve(ctx context.Context, op Operation, key K) (path.Collection, bool) {
	col := r.pathOf(key)
	if err := col.Validate(); err != nil {
		r.log.Error("bad collection path", Fields{"path": col.String(), "err": err})
		return col, false
	}
	if r.allow != nil && !r.allow(ctx, op, col.String()) {
		r.hooks.PermissionDenied(col.String(), op)
		r.log.Debug("permission denied", Fields{"path": col.String(), "op": op})
		return col, false
	}
	return col, true
}

// put writes one member document and rewrites the index.
func (r *collRepo[K, E]) put(ctx context.Context, op Operation, key K, col path.Collection, id string, entity E) bool {
	raw, err := r.codec.Encode(entity)
	if err != nil {
		r.reportWrite(op, col, err, nil)
		return false
	}

	r.mu.Lock()
	stored, err := r.backend.Set(ctx, r.docKey(col, id), raw)
	if err != nil {
		r.mu.Unlock()
		r.reportWrite(op, col, err, nil)
		return false
	}
	if !stored {
		r.mu.Unlock()
		r.hooks.WriteRejected(col.Doc(id).String(), op)
		r.log.Debug("set rejected by backend (pressure)", Fields{"path": col.Doc(id).String()})
		return false
	}
	rev, ids, idxErr := r.loadIndex(ctx, col)
	if idxErr == nil {
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
		idxErr = r.storeIndex(ctx, op, col, rev+1, ids)
	}
	r.mu.Unlock()

	if idxErr != nil {
		r.reportWrite(op, col, nil, idxErr)
		return false
	}
	r.refresh(key, col)
	return true
}

func (r *collRepo[K, E]) reportWrite(op Operation, col path.Collection, docErr, idxErr error) {
	we := &WriteError{Path: col.String(), Op: op, DocErr: docErr, IndexErr: idxErr}
	r.hooks.WriteFailed(col.String(), op, we)
	r.log.Error("collection write failed", Fields{"path": col.String(), "op": op, "err": we})
}

// sourceFor builds the value stream for one collection key. Invoked at most
// once per registry entry.
func (r *collRepo[K, E]) sourceFor(col path.Collection) Source[[]E] {
	return func() <-chan []E {
		w, ok := r.backend.(backend.Watcher)
		if !ok {
			return r.oneShot(col)
		}
		events, err := w.Watch(r.lifeCtx, r.idxKey(col))
		if err != nil {
			r.log.Warn("watch failed; using one-shot read", Fields{"path": col.String(), "err": err})
			return r.oneShot(col)
		}

		out := make(chan []E)
		go func() {
			out <- r.assemble(col)
			for range events {
				// any index event (membership or rev bump) means re-list
				out <- r.assemble(col)
			}
			r.hooks.SourceClosed(col.String())
			close(out)
		}()
		return out
	}
}

// oneShot streams close with lifeCtx, so their forwarding goroutines retire
// once the repository closes.
func (r *collRepo[K, E]) oneShot(col path.Collection) <-chan []E {
	r.hooks.WatchFallback(col.String())
	out := make(chan []E, 1)
	out <- r.assemble(col)
	go func() {
		<-r.lifeCtx.Done()
		close(out)
	}()
	return out
}

// assemble reads the index and every member document, in index order.
// Members that are missing or undecodable are skipped.
func (r *collRepo[K, E]) assemble(col path.Collection) []E {
	_, ids, err := r.loadIndex(r.lifeCtx, col)
	if err != nil {
		r.log.Warn("index read failed", Fields{"path": col.String(), "err": err})
		return []E{}
	}
	out := make([]E, 0, len(ids))
	for _, id := range ids {
		raw, ok, err := r.backend.Get(r.lifeCtx, r.docKey(col, id))
		if err != nil {
			r.log.Warn("member read failed", Fields{"path": col.Doc(id).String(), "err": err})
			continue
		}
		if !ok {
			continue // index ghost; next rewrite prunes it
		}
		v, err := r.codec.Decode(raw)
		if err != nil {
			r.hooks.DecodeFailed(col.Doc(id).String(), err)
			r.log.Warn("member undecodable", Fields{"path": col.Doc(id).String(), "err": err})
			continue
		}
		out = append(out, v)
	}
	if r.less != nil {
		sort.SliceStable(out, func(i, j int) bool { return r.less(out[i], out[j]) })
	}
	return out
}

// refresh pushes a freshly assembled list into the registry when the backend
// cannot stream the change back. Gated by Cache.Write semantics.
func (r *collRepo[K, E]) refresh(key K, col path.Collection) {
	if _, ok := r.backend.(backend.Watcher); !ok {
		r.reg.Write(key, r.assemble(col))
	}
}

// loadIndex returns the collection's member index; a missing index is an
// empty collection. Corrupt indexes are deleted (self-heal) and read as
// empty.
func (r *collRepo[K, E]) loadIndex(ctx context.Context, col path.Collection) (uint64, []string, error) {
	raw, ok, err := r.backend.Get(ctx, r.idxKey(col))
	if err != nil {
		return 0, nil, err
	}
	if !ok {
		return 0, nil, nil
	}
	rev, ids, err := wire.DecodeIndex(raw)
	if err != nil {
		_ = r.backend.Delete(ctx, r.idxKey(col)) // self-heal corrupt
		r.log.Warn("corrupt index dropped", Fields{"path": col.String()})
		return 0, nil, nil
	}
	return rev, ids, nil
}

func (r *collRepo[K, E]) storeIndex(ctx context.Context, op Operation, col path.Collection, rev uint64, ids []string) error {
	b, err := wire.EncodeIndex(rev, ids)
	if err != nil {
		return err
	}
	ok, err := r.backend.Set(ctx, r.idxKey(col), b)
	if err != nil {
		return err
	}
	if !ok {
		r.hooks.WriteRejected(col.String(), op)
		return fmt.Errorf("liverepo: index write rejected by backend")
	}
	return nil
}

func (r *collRepo[K, E]) docKey(col path.Collection, id string) string {
	return "doc:" + col.Doc(id).String()
}

func (r *collRepo[K, E]) idxKey(col path.Collection) string {
	// isolate from document entries
	return "idx:" + col.String()
}
