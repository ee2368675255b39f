package liverepo

import (
	"context"

	"github.com/Stefano-Trinca/liverepo/backend"
	c "github.com/Stefano-Trinca/liverepo/codec"
	"github.com/Stefano-Trinca/liverepo/path"
)

// Operation identifies a repository operation for permission checks, hooks,
// and logs.
type Operation string

const (
	OpRead   Operation = "read"
	OpWatch  Operation = "watch"
	OpCreate Operation = "create"
	OpSet    Operation = "set"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
	OpExists Operation = "exists"
)

// PermissionFunc decides whether op may proceed against the given path.
// A denial short-circuits before the cache or backend is touched and the
// operation degrades like any other failure. nil allows everything.
type PermissionFunc func(ctx context.Context, op Operation, path string) bool

// DocumentRepository is the read/write surface over a single document.
// All operations are total: reads degrade to the configured default value,
// writes degrade to a false result; failures are logged, never returned.
type DocumentRepository[E any] interface {
	// Read returns the document's current value. The first call that
	// initializes the live view waits for its first value; later calls
	// answer from the cache without suspending.
	Read(ctx context.Context) E
	// Watch returns a shared stream of document values. A new watcher
	// immediately receives the most recent value, then every update. The
	// stream finishes when the repository closes.
	Watch(ctx context.Context) <-chan E
	// Peek returns the cached value without touching the backend and
	// without suspending.
	Peek() (E, bool)

	Set(ctx context.Context, entity E) bool
	// Update merges fields into the stored document's map form. A missing
	// document is not created; Update reports false instead.
	Update(ctx context.Context, fields map[string]any) bool
	Delete(ctx context.Context) bool
	Exists(ctx context.Context) bool

	Close(ctx context.Context) error
}

// CollectionRepository is the read/write surface over keyed collections of
// documents. The cached value per key is the collection's ordered member
// list. Keys are compared with the configured EqualFunc only.
type CollectionRepository[K, E any] interface {
	// List returns the collection's current members in insertion order
	// (or the configured Order). Degrades to nil.
	List(ctx context.Context, key K) []E
	// Watch returns a shared stream of member lists for key.
	Watch(ctx context.Context, key K) <-chan []E
	Peek(key K) ([]E, bool)

	// Add stores entity under a freshly generated id and returns it.
	Add(ctx context.Context, key K, entity E) (id string, ok bool)
	Set(ctx context.Context, key K, id string, entity E) bool
	Delete(ctx context.Context, key K, id string) bool
	Exists(ctx context.Context, key K, id string) bool

	Close(ctx context.Context) error
}

// DocumentOptions tune a document repository.
// Only Path and Backend are required; others have sensible defaults.
type DocumentOptions[E any] struct {
	// Required
	Path    path.Document
	Backend backend.Backend

	Codec   c.Codec[E]  // nil => codec.JSON[E]{}
	Mapper  c.Mapper[E] // nil => codec.JSONMap[E]{}; used by Update
	Default E           // value answered by degraded reads

	Logger       Logger         // if nil, NopLogger is used
	Hooks        Hooks          // if nil, NopHooks is used
	Allow        PermissionFunc // nil => allow all
	CloseBackend bool           // set true only if this repository exclusively owns the backend
}

func NewDocument[E any](opts DocumentOptions[E]) (DocumentRepository[E], error) {
	return newDocRepo(opts)
}

// CollectionOptions tune a collection repository.
// Path, Equal and Backend are required.
type CollectionOptions[K, E any] struct {
	// Required
	Path    func(K) path.Collection // maps an application key to its collection path
	Equal   EqualFunc[K]
	Backend backend.Backend

	Codec c.Codec[E]        // nil => codec.JSON[E]{}
	Order func(a, b E) bool // optional stable listing order; nil keeps insertion order

	Logger       Logger
	Hooks        Hooks
	Allow        PermissionFunc
	CloseBackend bool
}

func NewCollection[K, E any](opts CollectionOptions[K, E]) (CollectionRepository[K, E], error) {
	return newCollRepo(opts)
}
