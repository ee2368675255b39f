// Package liverepo implements document- and collection-style repositories
// over pluggable storage backends, built around a lazy multicast latest-value
// cache. Reads share at most one live subscription per document (or per
// collection key) and fan the latest value out to every reader; late readers
// immediately receive the most recent value.
//
// Components:
//   - Cache[V]: single-slot lazy latest-value multicast cache.
//   - Registry[K,V]: ordered, append-only set of keyed caches with a
//     caller-supplied key-equality predicate.
//   - DocumentRepository[E] / CollectionRepository[K,E]: the repository
//     surface; permission checks, (de)serialization, and failure logging
//     live here, never in the cache core.
//   - Backend: byte store (memory, Redis, BigCache, Ristretto, ttlcache);
//     backends that also implement Watcher feed live updates into caches.
//   - Codec[E]: (de)serializes E <-> []byte (JSON, Msgpack, CBOR, YAML,
//     Protobuf, raw).
//
// Keys:
//
//	doc:<path> - document entries ("users/u1")
//	idx:<path> - collection member index ("users")
//
// Failure model: repository reads degrade to the configured default value and
// a logged message; writes degrade to a boolean result and a logged message.
// No read or write ever returns an error to its caller.
package liverepo
