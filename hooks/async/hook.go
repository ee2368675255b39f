// usage:
//
// import (
//
//	"log/slog"
//
//	"github.com/Stefano-Trinca/liverepo"
//	"github.com/Stefano-Trinca/liverepo/backend/memory"
//	"github.com/Stefano-Trinca/liverepo/hooks/async"
//	"github.com/Stefano-Trinca/liverepo/sloghooks"
//
// )
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    ReadDegradedEvery: 10, // sample logs: ~every 10th degraded read
//	    DecodeFailedEvery: 1,  // log every decode failure
//	})
//
// hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
// defer hooks.Close()
//
//	repo, _ := liverepo.NewDocument[User](liverepo.DocumentOptions[User]{
//	    Path:    path.Col("users").Doc("u1"),
//	    Backend: memory.New(memory.Config{}),
//	    Hooks:   hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"

	"github.com/Stefano-Trinca/liverepo"
)

type Hooks struct {
	inner liverepo.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ liverepo.Hooks = (*Hooks)(nil)

func New(inner liverepo.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) SourceClosed(p string)  { h.try(func() { h.inner.SourceClosed(p) }) }
func (h *Hooks) WatchFallback(p string) { h.try(func() { h.inner.WatchFallback(p) }) }
func (h *Hooks) ReadDegraded(p string, op liverepo.Operation, reason string) {
	h.try(func() { h.inner.ReadDegraded(p, op, reason) })
}
func (h *Hooks) PermissionDenied(p string, op liverepo.Operation) {
	h.try(func() { h.inner.PermissionDenied(p, op) })
}
func (h *Hooks) WriteFailed(p string, op liverepo.Operation, err error) {
	h.try(func() { h.inner.WriteFailed(p, op, err) })
}
func (h *Hooks) WriteRejected(p string, op liverepo.Operation) {
	h.try(func() { h.inner.WriteRejected(p, op) })
}
func (h *Hooks) DecodeFailed(p string, err error) {
	h.try(func() { h.inner.DecodeFailed(p, err) })
}
