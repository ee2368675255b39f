package liverepo

// Hooks lightweight callbacks for high-signal repository events.
// Implementations MUST be cheap and non-blocking. Repositories call them on
// hot paths; wrap with hooks/async when a sink is slow.
type Hooks interface {
	// A read operation answered the configured default instead of a value.
	// reason ∈ {"no_value", "closed"}
	ReadDegraded(path string, op Operation, reason string)

	// The permission callback denied op before the cache or backend was
	// touched.
	PermissionDenied(path string, op Operation)

	// A write-side operation failed against the backend.
	WriteFailed(path string, op Operation, err error)

	// Backend returned ok=false on Set (backpressure/eviction).
	WriteRejected(path string, op Operation)

	// Stored bytes could not be decoded into the entity type.
	DecodeFailed(path string, err error)

	// The live source stream for path ended; the cache is now closed.
	SourceClosed(path string)

	// Backend has no watch support; a one-shot source was used instead.
	WatchFallback(path string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) ReadDegraded(string, Operation, string)   {}
func (NopHooks) PermissionDenied(string, Operation)       {}
func (NopHooks) WriteFailed(string, Operation, error)     {}
func (NopHooks) WriteRejected(string, Operation)          {}
func (NopHooks) DecodeFailed(string, error)               {}
func (NopHooks) SourceClosed(string)                      {}
func (NopHooks) WatchFallback(string)                     {}
